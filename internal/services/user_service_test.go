package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/florentd35/teachly/internal/models"
	"github.com/florentd35/teachly/internal/query"
	apperrors "github.com/florentd35/teachly/pkg/errors"
	"github.com/florentd35/teachly/pkg/mail"
)

func newTestUserService(t *testing.T) (*UserService, *mail.NopMailer, *gorm.DB) {
	t.Helper()

	db := newServiceTestDB(t)
	mailer := &mail.NopMailer{}
	svc, err := NewUserService(db, mailer)
	require.NoError(t, err)
	return svc, mailer, db
}

// lastMailToken pulls the token out of the most recent message body; tokens
// are always the final word.
func lastMailToken(t *testing.T, mailer *mail.NopMailer) string {
	t.Helper()

	require.NotEmpty(t, mailer.Sent)
	fields := strings.Fields(mailer.Sent[len(mailer.Sent)-1].Body)
	require.NotEmpty(t, fields)
	return fields[len(fields)-1]
}

func TestUserServiceSignupAndConfirm(t *testing.T) {
	svc, mailer, db := newTestUserService(t)
	ctx := context.Background()

	user, err := svc.Signup(ctx, SignupInput{
		Email:    "Alice@Example.com",
		Username: "Alice",
		Password: "correct-horse",
		Role:     models.RoleStudent,
	})
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", user.Email)
	require.Equal(t, "alice", user.Username)
	require.False(t, user.Confirmed)
	require.NotEqual(t, "correct-horse", user.Password)

	// Unconfirmed accounts cannot log in.
	_, err = svc.Authenticate(ctx, "alice", "correct-horse")
	require.Equal(t, "FORBIDDEN", apperrors.FromError(err).Code)

	token := lastMailToken(t, mailer)
	require.NoError(t, svc.ConfirmAccount(ctx, token))

	logged, err := svc.Authenticate(ctx, "Alice@Example.com", "correct-horse")
	require.NoError(t, err)
	require.Equal(t, user.ID, logged.ID)

	// Tokens are single use.
	err = svc.ConfirmAccount(ctx, token)
	require.Equal(t, "VALIDATION_FAILED", apperrors.FromError(err).Code)

	var tokens int64
	require.NoError(t, db.Model(&models.AccountToken{}).
		Where("consumed_at IS NOT NULL").Count(&tokens).Error)
	require.EqualValues(t, 1, tokens)
}

func TestUserServiceSignupValidation(t *testing.T) {
	svc, _, _ := newTestUserService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, SignupInput{Email: "a@b.c", Username: "a", Password: "longenough", Role: models.RoleAdmin})
	require.Equal(t, "VALIDATION_FAILED", apperrors.FromError(err).Code)

	_, err = svc.Signup(ctx, SignupInput{Email: "a@b.c", Username: "a", Password: "short", Role: models.RoleStudent})
	require.Equal(t, "VALIDATION_FAILED", apperrors.FromError(err).Code)

	_, err = svc.Signup(ctx, SignupInput{Email: "a@b.c", Username: "alice", Password: "longenough", Role: models.RoleStudent})
	require.NoError(t, err)

	// Case-insensitive duplicates conflict.
	_, err = svc.Signup(ctx, SignupInput{Email: "A@B.C", Username: "other", Password: "longenough", Role: models.RoleTeacher})
	require.Equal(t, "CONFLICT", apperrors.FromError(err).Code)
	_, err = svc.Signup(ctx, SignupInput{Email: "new@b.c", Username: "ALICE", Password: "longenough", Role: models.RoleTeacher})
	require.Equal(t, "CONFLICT", apperrors.FromError(err).Code)
}

func TestUserServiceAuthenticateRejectsBadCredentials(t *testing.T) {
	svc, mailer, _ := newTestUserService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, SignupInput{Email: "a@b.c", Username: "alice", Password: "longenough", Role: models.RoleStudent})
	require.NoError(t, err)
	require.NoError(t, svc.ConfirmAccount(ctx, lastMailToken(t, mailer)))

	_, err = svc.Authenticate(ctx, "alice", "wrong-password")
	require.Equal(t, "INVALID_CREDENTIALS", apperrors.FromError(err).Code)

	_, err = svc.Authenticate(ctx, "nobody", "longenough")
	require.Equal(t, "INVALID_CREDENTIALS", apperrors.FromError(err).Code)
}

func TestUserServicePasswordReset(t *testing.T) {
	svc, mailer, _ := newTestUserService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, SignupInput{Email: "a@b.c", Username: "alice", Password: "longenough", Role: models.RoleStudent})
	require.NoError(t, err)
	require.NoError(t, svc.ConfirmAccount(ctx, lastMailToken(t, mailer)))

	// Unknown addresses are silently accepted.
	require.NoError(t, svc.RequestPasswordReset(ctx, "nobody@b.c"))
	require.Len(t, mailer.Sent, 1)

	require.NoError(t, svc.RequestPasswordReset(ctx, "a@b.c"))
	token := lastMailToken(t, mailer)

	require.NoError(t, svc.ResetPassword(ctx, token, "brand-new-password"))

	_, err = svc.Authenticate(ctx, "alice", "longenough")
	require.Equal(t, "INVALID_CREDENTIALS", apperrors.FromError(err).Code)
	_, err = svc.Authenticate(ctx, "alice", "brand-new-password")
	require.NoError(t, err)

	// Consumed tokens cannot be replayed.
	err = svc.ResetPassword(ctx, token, "another-password")
	require.Equal(t, "VALIDATION_FAILED", apperrors.FromError(err).Code)
}

func TestUserServiceChangePassword(t *testing.T) {
	svc, mailer, _ := newTestUserService(t)
	ctx := context.Background()

	user, err := svc.Signup(ctx, SignupInput{Email: "a@b.c", Username: "alice", Password: "longenough", Role: models.RoleStudent})
	require.NoError(t, err)
	require.NoError(t, svc.ConfirmAccount(ctx, lastMailToken(t, mailer)))

	err = svc.ChangePassword(ctx, user.ID, "wrong", "next-password")
	require.Equal(t, "INVALID_CREDENTIALS", apperrors.FromError(err).Code)

	require.NoError(t, svc.ChangePassword(ctx, user.ID, "longenough", "next-password"))
	_, err = svc.Authenticate(ctx, "alice", "next-password")
	require.NoError(t, err)
}

func TestUserServiceSoftDeleteSchedulesHardDelete(t *testing.T) {
	svc, _, db := newTestUserService(t)
	ctx := context.Background()

	user := createTestUser(t, db, "alice", models.RoleStudent)
	stranger := createTestUser(t, db, "bob", models.RoleStudent)

	err := svc.SoftDelete(ctx, user.ID, stranger.ID, models.RoleStudent)
	require.Equal(t, "FORBIDDEN", apperrors.FromError(err).Code)

	before := time.Now().UTC()
	require.NoError(t, svc.SoftDelete(ctx, user.ID, user.ID, models.RoleStudent))

	// The account disappears immediately.
	_, err = svc.Get(ctx, user.ID)
	require.Equal(t, "NOT_FOUND", apperrors.FromError(err).Code)
	_, err = svc.Authenticate(ctx, "alice", "hashed-secret")
	require.Equal(t, "INVALID_CREDENTIALS", apperrors.FromError(err).Code)

	var schedule models.DeletionSchedule
	require.NoError(t, db.First(&schedule, "user_id = ?", user.ID).Error)
	require.Nil(t, schedule.ExecutedAt)
	require.WithinDuration(t, before.Add(DeletionGracePeriod), schedule.DueAt, time.Minute)

	// Admins may delete anyone; a repeat keeps the original schedule.
	admin := createTestUser(t, db, "admin", models.RoleAdmin)
	require.NoError(t, svc.SoftDelete(ctx, stranger.ID, admin.ID, models.RoleAdmin))
}

func TestUserServiceList(t *testing.T) {
	svc, _, db := newTestUserService(t)
	ctx := context.Background()

	createTestUser(t, db, "alice", models.RoleStudent)
	createTestUser(t, db, "bob", models.RoleTeacher)
	deleted := createTestUser(t, db, "carol", models.RoleStudent)
	require.NoError(t, db.Model(deleted).Update("is_deleted", true).Error)

	page, err := svc.List(ctx, query.Params{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.EqualValues(t, 2, page.Total)

	students, err := svc.List(ctx, query.Params{
		Page:    1,
		Limit:   10,
		Filters: []query.Filter{{Field: "role", Op: "eq", Value: models.RoleStudent}},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, students.Total)
	require.Equal(t, "alice", students.Items[0].Username)
}
