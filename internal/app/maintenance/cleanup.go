package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/florentd35/teachly/internal/models"
	"github.com/florentd35/teachly/pkg/logger"
)

const (
	defaultDeletionSpec = "@hourly"
	defaultTokenSpec    = "@daily"
)

// Cleaner coordinates background maintenance: executing due account
// deletions and purging expired account tokens. Deletion schedules live in
// the database, so pending deletes survive restarts and the executor just
// picks up whatever is due.
type Cleaner struct {
	db   *gorm.DB
	cron *cron.Cron
	now  func() time.Time
	log  *zap.Logger

	deletionSchedule string
	tokenSchedule    string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for due-date comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithDeletionSchedule overrides the cron expression for account deletion.
func WithDeletionSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.deletionSchedule = spec
		}
	}
}

// WithTokenSchedule overrides the cron expression for token cleanup.
func WithTokenSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.tokenSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults.
func NewCleaner(db *gorm.DB, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:               db,
		now:              time.Now,
		deletionSchedule: defaultDeletionSpec,
		tokenSchedule:    defaultTokenSpec,
		log:              logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers the cleanup jobs with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.db == nil {
		return nil
	}

	if _, err := c.cron.AddFunc(c.deletionSchedule, func() {
		ctx := context.Background()
		if _, err := ExecuteDueDeletions(ctx, c.db, c.now()); err != nil {
			c.log.Warn("account deletion failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	if _, err := c.cron.AddFunc(c.tokenSchedule, func() {
		ctx := context.Background()
		if _, err := CleanupTokens(ctx, c.db, c.now()); err != nil {
			c.log.Warn("token cleanup failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all cleanup routines sequentially. Used in tests and
// during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.db == nil {
		return nil
	}

	var errs error
	if _, err := ExecuteDueDeletions(ctx, c.db, c.now()); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, err := CleanupTokens(ctx, c.db, c.now()); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}

// ExecuteDueDeletions hard-deletes every account whose deletion schedule is
// due and not yet executed. Each account purges in its own transaction; the
// schedule row is kept with an execution timestamp so re-runs are no-ops.
func ExecuteDueDeletions(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	if db == nil {
		return 0, errors.New("execute deletions: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var due []models.DeletionSchedule
	if err := db.WithContext(ctx).
		Where("due_at <= ? AND executed_at IS NULL", now).
		Find(&due).Error; err != nil {
		return 0, fmt.Errorf("execute deletions: load due: %w", err)
	}

	var executed int64
	var errs error
	for _, schedule := range due {
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return purgeUser(tx, schedule.UserID, now, schedule.ID)
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("execute deletions: user %s: %w", schedule.UserID, err))
			continue
		}
		executed++
	}
	return executed, errs
}

// purgeUser removes every row that references the user, then the user row
// itself, and stamps the schedule.
func purgeUser(tx *gorm.DB, userID string, now time.Time, scheduleID string) error {
	if err := tx.Where("user_id = ? OR contact_id = ?", userID, userID).
		Delete(&models.Contact{}).Error; err != nil {
		return fmt.Errorf("contacts: %w", err)
	}
	if err := tx.Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Delete(&models.ContactInvitation{}).Error; err != nil {
		return fmt.Errorf("invitations: %w", err)
	}
	if err := tx.Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Delete(&models.Message{}).Error; err != nil {
		return fmt.Errorf("messages: %w", err)
	}
	if err := tx.Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Delete(&models.TeachingDemand{}).Error; err != nil {
		return fmt.Errorf("demands: %w", err)
	}
	if err := tx.Where("performer_id = ?", userID).
		Delete(&models.Task{}).Error; err != nil {
		return fmt.Errorf("tasks: %w", err)
	}
	if err := tx.Exec("DELETE FROM event_guests WHERE user_id = ?", userID).Error; err != nil {
		return fmt.Errorf("event guests: %w", err)
	}
	if err := tx.Exec("DELETE FROM event_attendees WHERE user_id = ?", userID).Error; err != nil {
		return fmt.Errorf("event attendees: %w", err)
	}
	var organized []models.Event
	if err := tx.Where("organizer_id = ?", userID).Find(&organized).Error; err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	for _, event := range organized {
		if err := tx.Exec("DELETE FROM event_guests WHERE event_id = ?", event.ID).Error; err != nil {
			return fmt.Errorf("event guests: %w", err)
		}
		if err := tx.Exec("DELETE FROM event_attendees WHERE event_id = ?", event.ID).Error; err != nil {
			return fmt.Errorf("event attendees: %w", err)
		}
	}
	if err := tx.Where("organizer_id = ?", userID).Delete(&models.Event{}).Error; err != nil {
		return fmt.Errorf("events: %w", err)
	}
	if err := tx.Where("user_id = ?", userID).
		Delete(&models.Notification{}).Error; err != nil {
		return fmt.Errorf("notifications: %w", err)
	}
	if err := tx.Where("user_id = ?", userID).
		Delete(&models.AccountToken{}).Error; err != nil {
		return fmt.Errorf("tokens: %w", err)
	}

	// A departed mentor releases their students.
	if err := tx.Model(&models.User{}).
		Where("supervisor_id = ?", userID).
		Update("supervisor_id", nil).Error; err != nil {
		return fmt.Errorf("release supervised: %w", err)
	}

	if err := tx.Where("id = ?", userID).Delete(&models.User{}).Error; err != nil {
		return fmt.Errorf("user: %w", err)
	}

	if err := tx.Model(&models.DeletionSchedule{}).
		Where("id = ?", scheduleID).
		Update("executed_at", now).Error; err != nil {
		return fmt.Errorf("stamp schedule: %w", err)
	}
	return nil
}

// TokenCleanupStats captures the number of records removed during cleanup.
type TokenCleanupStats struct {
	AccountTokens int64
}

// CleanupTokens removes expired or consumed account tokens.
func CleanupTokens(ctx context.Context, db *gorm.DB, now time.Time) (TokenCleanupStats, error) {
	if db == nil {
		return TokenCleanupStats{}, errors.New("cleanup tokens: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	stats := TokenCleanupStats{}
	result := db.WithContext(ctx).
		Where("expires_at < ? OR consumed_at IS NOT NULL", now).
		Delete(&models.AccountToken{})
	if result.Error != nil {
		return stats, fmt.Errorf("cleanup tokens: account tokens: %w", result.Error)
	}
	stats.AccountTokens = result.RowsAffected
	return stats, nil
}
