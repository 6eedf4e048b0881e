package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/florentd35/teachly/internal/models"
	apperrors "github.com/florentd35/teachly/pkg/errors"
)

// applyAcceptCascade is the supervision resolver. It runs inside the accept
// transaction with the sender row and the demand row already locked, in that
// order, and the demand verified pending. It performs the three cascade
// steps as one unit:
//
//  1. cancel every other non-accepted demand from the same sender,
//  2. point the sender's supervisor at the receiver,
//  3. thereby extend the receiver's supervised set (the has-many inverse of
//     the supervisor column, so both sides can never disagree).
//
// Supervision is only ever transferred by a new accept; nothing here or
// elsewhere revokes it.
func (s *DemandService) applyAcceptCascade(tx *gorm.DB, demand *models.TeachingDemand) error {
	var acceptedCount int64
	if err := tx.Model(&models.TeachingDemand{}).
		Where("sender_id = ? AND accepted = ? AND cancelled = ? AND id <> ?",
			demand.SenderID, true, false, demand.ID).
		Count(&acceptedCount).Error; err != nil {
		return fmt.Errorf("supervision: check existing mentor: %w", err)
	}
	if acceptedCount > 0 {
		return apperrors.NewInvalidState("this student already has a mentor")
	}

	demand.Accepted = true
	if err := tx.Model(demand).Update("accepted", true).Error; err != nil {
		return fmt.Errorf("supervision: accept demand: %w", err)
	}

	if err := tx.Model(&models.TeachingDemand{}).
		Where("sender_id = ? AND id <> ? AND accepted = ? AND cancelled = ?",
			demand.SenderID, demand.ID, false, false).
		Update("cancelled", true).Error; err != nil {
		return fmt.Errorf("supervision: cancel sibling demands: %w", err)
	}

	if err := tx.Model(&models.User{}).
		Where("id = ?", demand.SenderID).
		Update("supervisor_id", demand.ReceiverID).Error; err != nil {
		return fmt.Errorf("supervision: set supervisor: %w", err)
	}

	return nil
}

// Supervised returns the students currently mentored by the teacher.
func (s *DemandService) Supervised(ctx context.Context, teacherID string) ([]models.User, error) {
	ctx = ensureContext(ctx)

	var students []models.User
	if err := s.db.WithContext(ctx).
		Where("supervisor_id = ? AND is_deleted = ?", teacherID, false).
		Order("username ASC").
		Find(&students).Error; err != nil {
		return nil, fmt.Errorf("supervision: list supervised: %w", err)
	}
	return students, nil
}
