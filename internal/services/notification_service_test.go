package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/florentd35/teachly/internal/models"
	"github.com/florentd35/teachly/internal/query"
	apperrors "github.com/florentd35/teachly/pkg/errors"
)

func TestNotificationServiceLifecycle(t *testing.T) {
	db := newServiceTestDB(t)
	svc, err := NewNotificationService(db)
	require.NoError(t, err)
	notifier := newTestNotifier(t, db)
	ctx := context.Background()

	alice := createTestUser(t, db, "alice", models.RoleStudent)
	bob := createTestUser(t, db, "bob", models.RoleTeacher)

	notifier.Emit(ctx, []string{alice.ID}, EventDemandSent, "New teaching request", "bob sent you a request", nil)
	notifier.Emit(ctx, []string{alice.ID}, EventInvitationSent, "New contact invitation", "bob invited you", nil)
	notifier.Emit(ctx, []string{bob.ID}, EventDemandAccepted, "Accepted", "accepted", nil)

	page, err := svc.ListForUser(ctx, alice.ID, query.Params{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.EqualValues(t, 2, page.Total)

	unread, err := svc.UnreadCount(ctx, alice.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, unread)

	first := page.Items[0]
	require.NoError(t, svc.MarkRead(ctx, first.ID, alice.ID))

	// Another user's notification is invisible to mark or delete.
	err = svc.MarkRead(ctx, first.ID, bob.ID)
	require.Equal(t, "NOT_FOUND", apperrors.FromError(err).Code)
	err = svc.Delete(ctx, first.ID, bob.ID)
	require.Equal(t, "NOT_FOUND", apperrors.FromError(err).Code)

	updated, err := svc.MarkAllRead(ctx, alice.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, updated)

	unread, err = svc.UnreadCount(ctx, alice.ID)
	require.NoError(t, err)
	require.Zero(t, unread)

	filtered, err := svc.ListForUser(ctx, alice.ID, query.Params{
		Page:    1,
		Limit:   10,
		Filters: []query.Filter{{Field: "type", Op: "eq", Value: EventDemandSent}},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, filtered.Total)

	require.NoError(t, svc.Delete(ctx, first.ID, alice.ID))
	page, err = svc.ListForUser(ctx, alice.ID, query.Params{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.EqualValues(t, 1, page.Total)
}
