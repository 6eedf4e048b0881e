package services

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/florentd35/teachly/internal/database/testutil"
	"github.com/florentd35/teachly/internal/models"
)

func newServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
}

func createTestUser(t *testing.T, db *gorm.DB, username, role string) *models.User {
	t.Helper()

	user := &models.User{
		Email:     username + "@example.com",
		Username:  username,
		Password:  "hashed-secret",
		Role:      role,
		Confirmed: true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func newTestNotifier(t *testing.T, db *gorm.DB) *Notifier {
	t.Helper()
	return NewNotifier(db, nil)
}

func notificationsFor(t *testing.T, db *gorm.DB, userID string) []models.Notification {
	t.Helper()

	var rows []models.Notification
	require.NoError(t, db.Where("user_id = ?", userID).Order("created_at ASC").Find(&rows).Error)
	return rows
}
