package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/florentd35/teachly/internal/database/testutil"
	"github.com/florentd35/teachly/internal/models"
)

func seedUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	user := &models.User{
		Email:    username + "@example.com",
		Username: username,
		Password: "hashed-secret",
		Role:     models.RoleStudent,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestExecuteDueDeletionsPurgesAccount(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	ctx := context.Background()

	student := seedUser(t, db, "student")
	teacher := seedUser(t, db, "teacher")
	peer := seedUser(t, db, "peer")

	// Student has a mentor and also mentors nobody; the peer is supervised
	// by the account being purged to check the release.
	require.NoError(t, db.Model(peer).Update("supervisor_id", student.ID).Error)

	require.NoError(t, db.Create(&models.Contact{UserID: student.ID, ContactID: teacher.ID}).Error)
	require.NoError(t, db.Create(&models.Contact{UserID: teacher.ID, ContactID: student.ID}).Error)
	require.NoError(t, db.Create(&models.Message{
		SenderID: student.ID, ReceiverID: teacher.ID,
		PairKey: models.PairKey(student.ID, teacher.ID), Index: 1,
		Content: "hello", Sent: time.Now().UTC(),
	}).Error)
	require.NoError(t, db.Create(&models.Notification{UserID: student.ID, Type: "demand.sent", Title: "x"}).Error)

	now := time.Now().UTC()
	require.NoError(t, db.Create(&models.DeletionSchedule{UserID: student.ID, DueAt: now.Add(-time.Minute)}).Error)
	// Not yet due; must survive.
	require.NoError(t, db.Create(&models.DeletionSchedule{UserID: teacher.ID, DueAt: now.Add(time.Hour)}).Error)

	executed, err := ExecuteDueDeletions(ctx, db, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, executed)

	var users int64
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", student.ID).Count(&users).Error)
	require.Zero(t, users)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", teacher.ID).Count(&users).Error)
	require.EqualValues(t, 1, users)

	for _, count := range []int64{
		tableCount(t, db, &models.Contact{}),
		tableCount(t, db, &models.Message{}),
		tableCount(t, db, &models.Notification{}),
	} {
		require.Zero(t, count)
	}

	var released models.User
	require.NoError(t, db.First(&released, "id = ?", peer.ID).Error)
	require.Nil(t, released.SupervisorID)

	var schedule models.DeletionSchedule
	require.NoError(t, db.First(&schedule, "user_id = ?", student.ID).Error)
	require.NotNil(t, schedule.ExecutedAt)

	// Re-running is a no-op.
	executed, err = ExecuteDueDeletions(ctx, db, now)
	require.NoError(t, err)
	require.Zero(t, executed)
}

func tableCount(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(model).Count(&count).Error)
	return count
}

func TestCleanupTokens(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	ctx := context.Background()

	user := seedUser(t, db, "alice")
	now := time.Now().UTC()
	consumed := now.Add(-time.Hour)

	tokens := []models.AccountToken{
		{UserID: user.ID, Purpose: models.TokenPurposeConfirm, Digest: "expired", ExpiresAt: now.Add(-time.Minute)},
		{UserID: user.ID, Purpose: models.TokenPurposeReset, Digest: "consumed", ExpiresAt: now.Add(time.Hour), ConsumedAt: &consumed},
		{UserID: user.ID, Purpose: models.TokenPurposeReset, Digest: "live", ExpiresAt: now.Add(time.Hour)},
	}
	for i := range tokens {
		require.NoError(t, db.Create(&tokens[i]).Error)
	}

	stats, err := CleanupTokens(ctx, db, now)
	require.NoError(t, err)
	require.EqualValues(t, 2, stats.AccountTokens)

	var remaining []models.AccountToken
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	require.Equal(t, "live", remaining[0].Digest)
}

func TestCleanerRunOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	user := seedUser(t, db, "alice")
	now := time.Now().UTC()
	require.NoError(t, db.Create(&models.DeletionSchedule{UserID: user.ID, DueAt: now.Add(-time.Minute)}).Error)

	cleaner := NewCleaner(db, WithNow(func() time.Time { return now }))
	require.NoError(t, cleaner.RunOnce(context.Background()))

	require.Zero(t, tableCount(t, db, &models.User{}))
}
