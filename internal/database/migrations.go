package database

import (
	"errors"
	"os"
	"strings"

	"gorm.io/gorm"

	"github.com/florentd35/teachly/internal/models"
	"github.com/florentd35/teachly/pkg/crypto"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Contact{},
		&models.ContactInvitation{},
		&models.TeachingDemand{},
		&models.Message{},
		&models.Event{},
		&models.Task{},
		&models.Notification{},
		&models.AccountToken{},
		&models.DeletionSchedule{},
	)
}

// SeedData provisions the initial admin account when none exists. Credentials
// come from TEACHLY_ADMIN_EMAIL / TEACHLY_ADMIN_PASSWORD; without them
// seeding is a no-op so tests and fresh checkouts stay clean.
func SeedData(db *gorm.DB) error {
	email := strings.ToLower(strings.TrimSpace(os.Getenv("TEACHLY_ADMIN_EMAIL")))
	password := os.Getenv("TEACHLY_ADMIN_PASSWORD")
	if email == "" || password == "" {
		return nil
	}

	var count int64
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return err
	}

	admin := models.User{
		Email:     email,
		Username:  "admin",
		Password:  hash,
		Role:      models.RoleAdmin,
		Confirmed: true,
	}
	if err := db.Create(&admin).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return err
	}
	return nil
}
