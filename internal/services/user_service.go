package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/florentd35/teachly/internal/models"
	"github.com/florentd35/teachly/internal/query"
	"github.com/florentd35/teachly/pkg/crypto"
	apperrors "github.com/florentd35/teachly/pkg/errors"
	"github.com/florentd35/teachly/pkg/logger"
	"github.com/florentd35/teachly/pkg/mail"
)

const (
	minPasswordLength = 8

	confirmTokenTTL = 48 * time.Hour
	resetTokenTTL   = time.Hour

	// DeletionGracePeriod is how long a soft-deleted account survives before
	// the maintenance executor hard-deletes it.
	DeletionGracePeriod = 7 * 24 * time.Hour
)

var userColumns = query.Allowed{
	"username":   "username",
	"email":      "email",
	"role":       "role",
	"confirmed":  "confirmed",
	"created_at": "created_at",
}

// UserService manages accounts: signup and confirmation, authentication,
// profile updates, password recovery and the two-phase account deletion.
type UserService struct {
	db     *gorm.DB
	mailer mail.Mailer
	log    *zap.Logger
}

// NewUserService constructs a UserService.
func NewUserService(db *gorm.DB, mailer mail.Mailer) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	if mailer == nil {
		mailer = &mail.NopMailer{}
	}
	return &UserService{
		db:     db,
		mailer: mailer,
		log:    logger.WithModule("users"),
	}, nil
}

// SignupInput defines the attributes required to register an account.
type SignupInput struct {
	Email     string
	Username  string
	Password  string
	FirstName string
	LastName  string
	Role      string
}

// Signup registers a student or teacher account and emails a confirmation
// link. The account stays unconfirmed, and unable to log in, until the link
// is followed. Admin accounts are provisioned by seeding only.
func (s *UserService) Signup(ctx context.Context, input SignupInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	email := normalizeEmail(input.Email)
	username := normalizeUsername(input.Username)

	if email == "" || username == "" {
		return nil, apperrors.NewBadRequest("email and username are required")
	}
	if input.Role != models.RoleStudent && input.Role != models.RoleTeacher {
		return nil, apperrors.NewBadRequest("role must be student or teacher")
	}
	if len(input.Password) < minPasswordLength {
		return nil, apperrors.NewBadRequest("password must be at least 8 characters")
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	token, err := crypto.GenerateToken(32)
	if err != nil {
		return nil, fmt.Errorf("user service: generate token: %w", err)
	}

	user := models.User{
		Email:     email,
		Username:  username,
		Password:  hashed,
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		Role:      input.Role,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.User{}).
			Where("email = ? OR username = ?", email, username).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("user service: check existing: %w", err)
		}
		if existing > 0 {
			return apperrors.NewConflict("an account with this email or username already exists")
		}

		if err := tx.Create(&user).Error; err != nil {
			if isUniqueConstraintError(err) {
				return apperrors.NewConflict("an account with this email or username already exists")
			}
			return fmt.Errorf("user service: create user: %w", err)
		}

		record := models.AccountToken{
			UserID:    user.ID,
			Purpose:   models.TokenPurposeConfirm,
			Digest:    crypto.HashToken(token),
			ExpiresAt: time.Now().UTC().Add(confirmTokenTTL),
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("user service: create confirm token: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.sendMail(ctx, user.Email, "Confirm your account",
		fmt.Sprintf("Welcome %s! Use this token to confirm your account: %s", user.Username, token))

	return &user, nil
}

// ConfirmAccount consumes a confirmation token and marks the account
// confirmed. Tokens are single use and expire.
func (s *UserService) ConfirmAccount(ctx context.Context, token string) error {
	ctx = ensureContext(ctx)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := s.consumeToken(tx, token, models.TokenPurposeConfirm)
		if err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).
			Where("id = ?", record.UserID).
			Update("confirmed", true).Error; err != nil {
			return fmt.Errorf("user service: confirm user: %w", err)
		}
		return nil
	})
}

// Authenticate verifies a login (email or username) and password. Deleted
// accounts are invisible and unconfirmed accounts cannot log in. The
// credential errors are indistinguishable on purpose.
func (s *UserService) Authenticate(ctx context.Context, login, password string) (*models.User, error) {
	ctx = ensureContext(ctx)

	login = strings.ToLower(strings.TrimSpace(login))

	var user models.User
	err := s.db.WithContext(ctx).
		Where("(email = ? OR username = ?) AND is_deleted = ?", login, login, false).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("user service: load user: %w", err)
	}

	if !crypto.VerifyPassword(user.Password, password) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if !user.Confirmed {
		return nil, apperrors.ErrForbidden.WithMessage("confirm your email address before logging in")
	}
	return &user, nil
}

// Get loads an active user by id.
func (s *UserService) Get(ctx context.Context, userID string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	if err := s.db.WithContext(ctx).
		Preload("Supervisor").
		Where("id = ? AND is_deleted = ?", userID, false).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound.WithMessage("user not found")
		}
		return nil, fmt.Errorf("user service: load user: %w", err)
	}
	return &user, nil
}

// List returns a page of active users honoring the generic query options.
func (s *UserService) List(ctx context.Context, params query.Params) (*query.Result[models.User], error) {
	ctx = ensureContext(ctx)

	scope := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("is_deleted = ?", false)
	return query.Run[models.User](scope, params, userColumns)
}

// ProfileInput defines the self-editable profile attributes.
type ProfileInput struct {
	FirstName   string
	LastName    string
	Description string
	Avatar      string
}

// UpdateProfile updates the user's own profile attributes.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, input ProfileInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{
		"first_name":  strings.TrimSpace(input.FirstName),
		"last_name":   strings.TrimSpace(input.LastName),
		"description": input.Description,
		"avatar":      input.Avatar,
	}
	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("user service: update profile: %w", err)
	}
	return user, nil
}

// ChangePassword replaces the password after verifying the current one.
func (s *UserService) ChangePassword(ctx context.Context, userID, current, next string) error {
	ctx = ensureContext(ctx)

	if len(next) < minPasswordLength {
		return apperrors.NewBadRequest("password must be at least 8 characters")
	}

	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !crypto.VerifyPassword(user.Password, current) {
		return apperrors.ErrInvalidCredentials.WithMessage("current password is incorrect")
	}

	hashed, err := crypto.HashPassword(next)
	if err != nil {
		return fmt.Errorf("user service: hash password: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(user).Update("password", hashed).Error; err != nil {
		return fmt.Errorf("user service: change password: %w", err)
	}
	return nil
}

// RequestPasswordReset emails a reset token. Unknown addresses are silently
// ignored so the endpoint cannot be used to probe for accounts.
func (s *UserService) RequestPasswordReset(ctx context.Context, email string) error {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).
		Where("email = ? AND is_deleted = ?", normalizeEmail(email), false).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("user service: load user: %w", err)
	}

	token, err := crypto.GenerateToken(32)
	if err != nil {
		return fmt.Errorf("user service: generate token: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// One live reset token per account.
		if err := tx.Where("user_id = ? AND purpose = ?", user.ID, models.TokenPurposeReset).
			Delete(&models.AccountToken{}).Error; err != nil {
			return fmt.Errorf("user service: drop old tokens: %w", err)
		}
		record := models.AccountToken{
			UserID:    user.ID,
			Purpose:   models.TokenPurposeReset,
			Digest:    crypto.HashToken(token),
			ExpiresAt: time.Now().UTC().Add(resetTokenTTL),
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("user service: create reset token: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.sendMail(ctx, user.Email, "Reset your password",
		fmt.Sprintf("Use this token to reset your password: %s", token))
	return nil
}

// ResetPassword consumes a reset token and installs the new password.
func (s *UserService) ResetPassword(ctx context.Context, token, next string) error {
	ctx = ensureContext(ctx)

	if len(next) < minPasswordLength {
		return apperrors.NewBadRequest("password must be at least 8 characters")
	}

	hashed, err := crypto.HashPassword(next)
	if err != nil {
		return fmt.Errorf("user service: hash password: %w", err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := s.consumeToken(tx, token, models.TokenPurposeReset)
		if err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).
			Where("id = ?", record.UserID).
			Update("password", hashed).Error; err != nil {
			return fmt.Errorf("user service: reset password: %w", err)
		}
		return nil
	})
}

// SoftDelete hides the account immediately and schedules the hard delete
// after the grace period. Users delete themselves; admins delete anyone.
// The schedule row survives restarts, so the purge is never lost.
func (s *UserService) SoftDelete(ctx context.Context, userID, actorID, actorRole string) error {
	ctx = ensureContext(ctx)

	if actorID != userID && actorRole != models.RoleAdmin {
		return apperrors.ErrForbidden.WithMessage("you can only delete your own account")
	}

	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(user).Updates(map[string]any{
			"is_deleted": true,
			"deleted_at": now,
		}).Error; err != nil {
			return fmt.Errorf("user service: soft delete: %w", err)
		}

		schedule := models.DeletionSchedule{
			UserID: user.ID,
			DueAt:  now.Add(DeletionGracePeriod),
		}
		if err := tx.Create(&schedule).Error; err != nil {
			if isUniqueConstraintError(err) {
				// Already scheduled by an earlier delete; keep the first due date.
				return nil
			}
			return fmt.Errorf("user service: schedule deletion: %w", err)
		}
		return nil
	})
}

func (s *UserService) consumeToken(tx *gorm.DB, token, purpose string) (*models.AccountToken, error) {
	var record models.AccountToken
	err := tx.Where("digest = ? AND purpose = ?", crypto.HashToken(token), purpose).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewBadRequest("this link is invalid or has expired")
		}
		return nil, fmt.Errorf("user service: load token: %w", err)
	}

	now := time.Now().UTC()
	if record.ConsumedAt != nil || now.After(record.ExpiresAt) {
		return nil, apperrors.NewBadRequest("this link is invalid or has expired")
	}

	if err := tx.Model(&record).Update("consumed_at", now).Error; err != nil {
		return nil, fmt.Errorf("user service: consume token: %w", err)
	}
	return &record, nil
}

func (s *UserService) sendMail(ctx context.Context, to, subject, body string) {
	err := s.mailer.Send(ctx, mail.Message{To: to, Subject: subject, Body: body})
	if err != nil && !errors.Is(err, mail.ErrDisabled) {
		s.log.Warn("send mail failed", zap.String("to", to), zap.Error(err))
	}
}
