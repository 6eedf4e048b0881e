package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/florentd35/teachly/internal/models"
	apperrors "github.com/florentd35/teachly/pkg/errors"
)

func newTestContactService(t *testing.T) (*ContactService, *gorm.DB) {
	t.Helper()

	db := newServiceTestDB(t)
	svc, err := NewContactService(db, newTestNotifier(t, db))
	require.NoError(t, err)
	return svc, db
}

func TestContactServiceInvitationLifecycle(t *testing.T) {
	svc, db := newTestContactService(t)
	ctx := context.Background()

	alice := createTestUser(t, db, "alice", models.RoleStudent)
	bob := createTestUser(t, db, "bob", models.RoleTeacher)

	invitation, err := svc.SendInvitation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	received, sent, err := svc.ListInvitations(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, received, 1)
	require.Empty(t, sent)
	require.Equal(t, "alice", received[0].Sender.Username)

	// Only the receiver can accept.
	err = svc.AcceptInvitation(ctx, invitation.ID, alice.ID)
	require.Equal(t, "FORBIDDEN", apperrors.FromError(err).Code)

	require.NoError(t, svc.AcceptInvitation(ctx, invitation.ID, bob.ID))

	// Both directions exist and the invitation is gone.
	for _, userID := range []string{alice.ID, bob.ID} {
		contacts, err := svc.ListContacts(ctx, userID)
		require.NoError(t, err)
		require.Len(t, contacts, 1)
	}
	var remaining int64
	require.NoError(t, db.Model(&models.ContactInvitation{}).Count(&remaining).Error)
	require.Zero(t, remaining)

	rows := notificationsFor(t, db, alice.ID)
	require.Len(t, rows, 1)
	require.Equal(t, EventInvitationAccepted, rows[0].Type)
}

func TestContactServiceSendInvitationConflicts(t *testing.T) {
	svc, db := newTestContactService(t)
	ctx := context.Background()

	alice := createTestUser(t, db, "alice", models.RoleStudent)
	bob := createTestUser(t, db, "bob", models.RoleTeacher)

	_, err := svc.SendInvitation(ctx, alice.ID, alice.ID)
	require.Equal(t, "VALIDATION_FAILED", apperrors.FromError(err).Code)

	_, err = svc.SendInvitation(ctx, alice.ID, "missing")
	require.Equal(t, "NOT_FOUND", apperrors.FromError(err).Code)

	invitation, err := svc.SendInvitation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = svc.SendInvitation(ctx, alice.ID, bob.ID)
	require.Equal(t, "CONFLICT", apperrors.FromError(err).Code)

	// The reverse direction conflicts too while the first is pending.
	_, err = svc.SendInvitation(ctx, bob.ID, alice.ID)
	require.Equal(t, "CONFLICT", apperrors.FromError(err).Code)

	require.NoError(t, svc.AcceptInvitation(ctx, invitation.ID, bob.ID))

	// Established contacts cannot be re-invited.
	_, err = svc.SendInvitation(ctx, bob.ID, alice.ID)
	appErr := apperrors.FromError(err)
	require.Equal(t, "CONFLICT", appErr.Code)
	require.Contains(t, appErr.Message, "already in your contacts")
}

func TestContactServiceDeclineInvitation(t *testing.T) {
	svc, db := newTestContactService(t)
	ctx := context.Background()

	alice := createTestUser(t, db, "alice", models.RoleStudent)
	bob := createTestUser(t, db, "bob", models.RoleTeacher)
	stranger := createTestUser(t, db, "stranger", models.RoleStudent)

	invitation, err := svc.SendInvitation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	err = svc.DeclineInvitation(ctx, invitation.ID, stranger.ID)
	require.Equal(t, "FORBIDDEN", apperrors.FromError(err).Code)

	require.NoError(t, svc.DeclineInvitation(ctx, invitation.ID, bob.ID))

	contacts, err := svc.ListContacts(ctx, bob.ID)
	require.NoError(t, err)
	require.Empty(t, contacts)

	// A declined pair can start over, and the sender may withdraw.
	again, err := svc.SendInvitation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.NoError(t, svc.DeclineInvitation(ctx, again.ID, alice.ID))
}

func TestContactServiceRemoveContactKeepsSupervision(t *testing.T) {
	svc, db := newTestContactService(t)
	ctx := context.Background()

	student := createTestUser(t, db, "student", models.RoleStudent)
	teacher := createTestUser(t, db, "teacher", models.RoleTeacher)

	invitation, err := svc.SendInvitation(ctx, student.ID, teacher.ID)
	require.NoError(t, err)
	require.NoError(t, svc.AcceptInvitation(ctx, invitation.ID, teacher.ID))

	demands, err := NewDemandService(db, newTestNotifier(t, db))
	require.NoError(t, err)
	demand, err := demands.Send(ctx, student.ID, teacher.ID)
	require.NoError(t, err)
	_, err = demands.Accept(ctx, demand.ID, teacher.ID)
	require.NoError(t, err)

	require.NoError(t, svc.RemoveContact(ctx, student.ID, teacher.ID))

	contacts, err := svc.ListContacts(ctx, teacher.ID)
	require.NoError(t, err)
	require.Empty(t, contacts)

	// Dropping the contact never revokes the mentorship.
	var reloaded models.User
	require.NoError(t, db.First(&reloaded, "id = ?", student.ID).Error)
	require.NotNil(t, reloaded.SupervisorID)
	require.Equal(t, teacher.ID, *reloaded.SupervisorID)

	err = svc.RemoveContact(ctx, student.ID, teacher.ID)
	require.Equal(t, "NOT_FOUND", apperrors.FromError(err).Code)
}
