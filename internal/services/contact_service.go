package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/florentd35/teachly/internal/models"
	apperrors "github.com/florentd35/teachly/pkg/errors"
)

// ContactService manages the symmetric contact relation and the invitations
// that establish it. Contacts are stored as two mirrored rows; every write
// touches both inside a transaction so the relation never drifts.
type ContactService struct {
	db       *gorm.DB
	notifier *Notifier
}

// NewContactService constructs a ContactService.
func NewContactService(db *gorm.DB, notifier *Notifier) (*ContactService, error) {
	if db == nil {
		return nil, errors.New("contact service: db is required")
	}
	return &ContactService{db: db, notifier: notifier}, nil
}

// SendInvitation creates a pending contact invitation from sender to
// receiver. It conflicts when the two are already contacts or when an
// invitation already exists in either direction.
func (s *ContactService) SendInvitation(ctx context.Context, senderID, receiverID string) (*models.ContactInvitation, error) {
	ctx = ensureContext(ctx)

	if senderID == receiverID {
		return nil, apperrors.NewBadRequest("you cannot invite yourself")
	}

	var sender models.User
	if err := s.db.WithContext(ctx).
		Where("id = ? AND is_deleted = ?", senderID, false).
		First(&sender).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound.WithMessage("user not found")
		}
		return nil, fmt.Errorf("contact service: load sender: %w", err)
	}
	var receiverCount int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND is_deleted = ?", receiverID, false).
		Count(&receiverCount).Error; err != nil {
		return nil, fmt.Errorf("contact service: check receiver: %w", err)
	}
	if receiverCount == 0 {
		return nil, apperrors.ErrNotFound.WithMessage("user not found")
	}

	invitation := models.ContactInvitation{SenderID: senderID, ReceiverID: receiverID}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var contacts int64
		if err := tx.Model(&models.Contact{}).
			Where("user_id = ? AND contact_id = ?", senderID, receiverID).
			Count(&contacts).Error; err != nil {
			return fmt.Errorf("contact service: check contacts: %w", err)
		}
		if contacts > 0 {
			return apperrors.NewConflict("this user is already in your contacts")
		}

		var pending int64
		if err := tx.Model(&models.ContactInvitation{}).
			Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
				senderID, receiverID, receiverID, senderID).
			Count(&pending).Error; err != nil {
			return fmt.Errorf("contact service: check invitations: %w", err)
		}
		if pending > 0 {
			return apperrors.NewConflict("an invitation between you already exists")
		}

		if err := tx.Create(&invitation).Error; err != nil {
			if isUniqueConstraintError(err) {
				return apperrors.NewConflict("an invitation between you already exists")
			}
			return fmt.Errorf("contact service: create invitation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Emit(ctx, []string{receiverID}, EventInvitationSent,
		"New contact invitation",
		fmt.Sprintf("%s wants to add you as a contact", sender.Username),
		map[string]any{"invitation_id": invitation.ID, "sender_id": senderID})

	return &invitation, nil
}

// AcceptInvitation deletes the invitation and writes the mirrored contact
// pair. Only the invitation's receiver may accept.
func (s *ContactService) AcceptInvitation(ctx context.Context, invitationID, actorID string) error {
	ctx = ensureContext(ctx)

	var invitation models.ContactInvitation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&invitation, "id = ?", invitationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound
			}
			return fmt.Errorf("contact service: load invitation: %w", err)
		}
		if invitation.ReceiverID != actorID {
			return apperrors.ErrForbidden.WithMessage("only the invited user can accept this invitation")
		}

		pair := []models.Contact{
			{UserID: invitation.SenderID, ContactID: invitation.ReceiverID},
			{UserID: invitation.ReceiverID, ContactID: invitation.SenderID},
		}
		if err := tx.Create(&pair).Error; err != nil {
			if isUniqueConstraintError(err) {
				return apperrors.NewConflict("this user is already in your contacts")
			}
			return fmt.Errorf("contact service: create contact pair: %w", err)
		}

		if err := tx.Delete(&invitation).Error; err != nil {
			return fmt.Errorf("contact service: delete invitation: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.notifier.Emit(ctx, []string{invitation.SenderID}, EventInvitationAccepted,
		"Contact invitation accepted",
		"your contact invitation was accepted",
		map[string]any{"contact_id": invitation.ReceiverID})

	return nil
}

// DeclineInvitation removes the invitation without any side effect. The
// receiver declines, or the sender withdraws their own invitation.
func (s *ContactService) DeclineInvitation(ctx context.Context, invitationID, actorID string) error {
	ctx = ensureContext(ctx)

	var invitation models.ContactInvitation
	if err := s.db.WithContext(ctx).First(&invitation, "id = ?", invitationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("contact service: load invitation: %w", err)
	}
	if invitation.SenderID != actorID && invitation.ReceiverID != actorID {
		return apperrors.ErrForbidden.WithMessage("you are not part of this invitation")
	}

	if err := s.db.WithContext(ctx).Delete(&invitation).Error; err != nil {
		return fmt.Errorf("contact service: delete invitation: %w", err)
	}
	return nil
}

// ListInvitations returns the pending invitations the user received and sent.
func (s *ContactService) ListInvitations(ctx context.Context, userID string) (received, sent []models.ContactInvitation, err error) {
	ctx = ensureContext(ctx)

	if err := s.db.WithContext(ctx).
		Preload("Sender").
		Where("receiver_id = ?", userID).
		Order("created_at DESC").
		Find(&received).Error; err != nil {
		return nil, nil, fmt.Errorf("contact service: list received: %w", err)
	}
	if err := s.db.WithContext(ctx).
		Preload("Receiver").
		Where("sender_id = ?", userID).
		Order("created_at DESC").
		Find(&sent).Error; err != nil {
		return nil, nil, fmt.Errorf("contact service: list sent: %w", err)
	}
	return received, sent, nil
}

// ListContacts returns the user's contacts with the peer profile preloaded.
func (s *ContactService) ListContacts(ctx context.Context, userID string) ([]models.Contact, error) {
	ctx = ensureContext(ctx)

	var contacts []models.Contact
	if err := s.db.WithContext(ctx).
		Preload("Peer").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&contacts).Error; err != nil {
		return nil, fmt.Errorf("contact service: list contacts: %w", err)
	}
	return contacts, nil
}

// RemoveContact deletes both mirrored rows of the relation. Removal never
// touches supervision: a mentor relation established through a teaching
// demand survives the contact being dropped.
func (s *ContactService) RemoveContact(ctx context.Context, userID, contactID string) error {
	ctx = ensureContext(ctx)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("(user_id = ? AND contact_id = ?) OR (user_id = ? AND contact_id = ?)",
			userID, contactID, contactID, userID).
			Delete(&models.Contact{})
		if result.Error != nil {
			return fmt.Errorf("contact service: remove contact: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.ErrNotFound.WithMessage("this user is not in your contacts")
		}
		return nil
	})
}
