package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/florentd35/teachly/internal/models"
	apperrors "github.com/florentd35/teachly/pkg/errors"
	"github.com/florentd35/teachly/pkg/metrics"
)

// DemandService drives the teaching demand lifecycle: a student sends a
// demand to a teacher, the teacher accepts or either side cancels. All
// transitions run inside a storage transaction; correctness never rests on
// in-process locks, so multiple server processes stay safe.
type DemandService struct {
	db       *gorm.DB
	notifier *Notifier
}

// NewDemandService constructs a DemandService.
func NewDemandService(db *gorm.DB, notifier *Notifier) (*DemandService, error) {
	if db == nil {
		return nil, errors.New("demand service: db is required")
	}
	return &DemandService{db: db, notifier: notifier}, nil
}

// Send creates a pending demand from a student to a teacher.
//
// It conflicts when a non-cancelled demand already exists between the pair,
// with the message depending on whether that demand is accepted or still
// pending, and when the sender already has an accepted mentor anywhere.
func (s *DemandService) Send(ctx context.Context, senderID, receiverID string) (*models.TeachingDemand, error) {
	ctx = ensureContext(ctx)

	if senderID == receiverID {
		return nil, apperrors.NewBadRequest("you cannot send a teaching request to yourself")
	}

	sender, err := s.loadUser(ctx, senderID)
	if err != nil {
		return nil, err
	}
	receiver, err := s.loadUser(ctx, receiverID)
	if err != nil {
		return nil, err
	}

	if !sender.IsStudent() {
		return nil, apperrors.ErrForbidden.WithMessage("only students can send teaching requests")
	}
	if !receiver.IsTeacher() {
		return nil, apperrors.ErrForbidden.WithMessage("teaching requests can only be sent to teachers")
	}

	demand := models.TeachingDemand{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Sent:       time.Now().UTC(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Serialize demand writes per sender; see Accept for the pairing lock.
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&models.User{}, "id = ?", senderID).Error; err != nil {
			return fmt.Errorf("demand service: lock sender: %w", err)
		}

		var existing models.TeachingDemand
		err := tx.Where("sender_id = ? AND receiver_id = ? AND cancelled = ?", senderID, receiverID, false).
			First(&existing).Error
		switch {
		case err == nil:
			if existing.Accepted {
				return apperrors.NewConflict("you are already collaborating with this teacher")
			}
			return apperrors.NewConflict("you already have a pending teaching request with this teacher")
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("demand service: check existing demand: %w", err)
		}

		var acceptedCount int64
		if err := tx.Model(&models.TeachingDemand{}).
			Where("sender_id = ? AND accepted = ? AND cancelled = ?", senderID, true, false).
			Count(&acceptedCount).Error; err != nil {
			return fmt.Errorf("demand service: check accepted demands: %w", err)
		}
		if acceptedCount > 0 {
			return apperrors.NewConflict("you cannot have multiple mentors")
		}

		if err := tx.Create(&demand).Error; err != nil {
			return fmt.Errorf("demand service: create demand: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.DemandTransitions.WithLabelValues("sent").Inc()
	s.notifier.Emit(ctx, []string{receiverID}, EventDemandSent,
		"New teaching request",
		fmt.Sprintf("%s sent you a teaching request", sender.Username),
		map[string]any{"demand_id": demand.ID, "sender_id": senderID})

	return &demand, nil
}

// Accept marks a pending demand accepted and applies the supervision
// cascade: every other pending demand from the same sender is cancelled and
// the sender's supervisor becomes the receiver. Only the demand's receiver
// may accept. The whole cascade commits or rolls back as one unit.
//
// Two teachers accepting different demands from the same student race on
// the sender row lock; the loser re-checks and fails with an invalid state
// error instead of creating a second mentor.
func (s *DemandService) Accept(ctx context.Context, demandID, actorID string) (*models.TeachingDemand, error) {
	ctx = ensureContext(ctx)

	var demand models.TeachingDemand
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Read without locking first: the sender row must be locked before
		// any demand row. Locking the demand first deadlocks when two
		// teachers accept different demands from the same student, because
		// the winner's sibling-cancel needs the demand row the loser holds.
		if err := tx.First(&demand, "id = ?", demandID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound
			}
			return fmt.Errorf("demand service: load demand: %w", err)
		}

		if demand.ReceiverID != actorID {
			return apperrors.ErrForbidden.WithMessage("only the teacher who received the request can accept it")
		}

		// Concurrent accepts from the same student serialize here; the
		// loser re-reads its demand below and sees the winner's cascade.
		var sender models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&sender, "id = ?", demand.SenderID).Error; err != nil {
			return fmt.Errorf("demand service: lock sender: %w", err)
		}

		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&demand, "id = ?", demandID).Error; err != nil {
			return fmt.Errorf("demand service: reload demand: %w", err)
		}

		if demand.Cancelled {
			return apperrors.NewInvalidState("this teaching request was already cancelled")
		}
		if demand.Accepted {
			return apperrors.NewInvalidState("this teaching request was already accepted")
		}

		return s.applyAcceptCascade(tx, &demand)
	})
	if err != nil {
		return nil, err
	}

	metrics.DemandTransitions.WithLabelValues("accepted").Inc()
	s.notifier.Emit(ctx, []string{demand.SenderID}, EventDemandAccepted,
		"Teaching request accepted",
		"your teaching request was accepted",
		map[string]any{"demand_id": demand.ID, "receiver_id": demand.ReceiverID})

	return &demand, nil
}

// Cancel marks a demand cancelled. Either side of the demand may cancel a
// pending one; an accepted demand can no longer be cancelled (mentorship
// revocation does not exist). Repeating a cancel fails rather than silently
// succeeding so double submissions surface.
func (s *DemandService) Cancel(ctx context.Context, demandID, actorID string) (*models.TeachingDemand, error) {
	ctx = ensureContext(ctx)

	var demand models.TeachingDemand
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&demand, "id = ?", demandID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound
			}
			return fmt.Errorf("demand service: load demand: %w", err)
		}

		if demand.SenderID != actorID && demand.ReceiverID != actorID {
			return apperrors.ErrForbidden.WithMessage("only the student or the teacher involved can cancel this request")
		}
		if demand.Accepted {
			return apperrors.NewInvalidState("an accepted teaching request cannot be cancelled")
		}
		if demand.Cancelled {
			return apperrors.NewInvalidState("this teaching request was already cancelled")
		}

		demand.Cancelled = true
		if err := tx.Model(&demand).Update("cancelled", true).Error; err != nil {
			return fmt.Errorf("demand service: cancel demand: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.DemandTransitions.WithLabelValues("cancelled").Inc()

	counterpart := demand.ReceiverID
	if actorID == demand.ReceiverID {
		counterpart = demand.SenderID
	}
	s.notifier.Emit(ctx, []string{counterpart}, EventDemandCancelled,
		"Teaching request cancelled",
		"a teaching request involving you was cancelled",
		map[string]any{"demand_id": demand.ID})

	return &demand, nil
}

// Get returns a demand visible to the actor (sender or receiver; admins see all).
func (s *DemandService) Get(ctx context.Context, demandID, actorID, actorRole string) (*models.TeachingDemand, error) {
	ctx = ensureContext(ctx)

	var demand models.TeachingDemand
	if err := s.db.WithContext(ctx).
		Preload("Sender").Preload("Receiver").
		First(&demand, "id = ?", demandID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("demand service: load demand: %w", err)
	}

	if actorRole != models.RoleAdmin && demand.SenderID != actorID && demand.ReceiverID != actorID {
		return nil, apperrors.ErrNotFound
	}
	return &demand, nil
}

// ListForUser returns all demands in which the user participates, newest first.
func (s *DemandService) ListForUser(ctx context.Context, userID string) ([]models.TeachingDemand, error) {
	ctx = ensureContext(ctx)

	var demands []models.TeachingDemand
	if err := s.db.WithContext(ctx).
		Preload("Sender").Preload("Receiver").
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("sent DESC").
		Find(&demands).Error; err != nil {
		return nil, fmt.Errorf("demand service: list demands: %w", err)
	}
	return demands, nil
}

func (s *DemandService) loadUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).
		Where("id = ? AND is_deleted = ?", userID, false).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound.WithMessage("user not found")
		}
		return nil, fmt.Errorf("demand service: load user: %w", err)
	}
	return &user, nil
}
