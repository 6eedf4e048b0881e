package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/florentd35/teachly/internal/models"
	apperrors "github.com/florentd35/teachly/pkg/errors"
)

func newTestTaskService(t *testing.T) (*TaskService, *gorm.DB) {
	t.Helper()

	db := newServiceTestDB(t)
	svc, err := NewTaskService(db, newTestNotifier(t, db))
	require.NoError(t, err)
	return svc, db
}

// setSupervisor wires the mentor relation directly; the demand service tests
// cover how it is normally established.
func setSupervisor(t *testing.T, db *gorm.DB, studentID, teacherID string) {
	t.Helper()
	require.NoError(t, db.Model(&models.User{}).
		Where("id = ?", studentID).
		Update("supervisor_id", teacherID).Error)
}

func TestTaskServiceCreate(t *testing.T) {
	svc, db := newTestTaskService(t)
	ctx := context.Background()

	student := createTestUser(t, db, "student", models.RoleStudent)
	teacher := createTestUser(t, db, "teacher", models.RoleTeacher)
	stranger := createTestUser(t, db, "stranger", models.RoleTeacher)
	setSupervisor(t, db, student.ID, teacher.ID)

	due := time.Date(2026, 9, 15, 18, 0, 0, 0, time.UTC)
	task, err := svc.Create(ctx, student.ID, student.ID, TaskInput{Title: "Read chapter 3", DueAt: &due})
	require.NoError(t, err)
	require.False(t, task.Done)
	require.False(t, task.Validated)
	require.Empty(t, notificationsFor(t, db, student.ID))

	// The mentor can assign, and the student is notified.
	_, err = svc.Create(ctx, teacher.ID, student.ID, TaskInput{Title: "Write summary"})
	require.NoError(t, err)
	rows := notificationsFor(t, db, student.ID)
	require.Len(t, rows, 1)
	require.Equal(t, EventTaskCreated, rows[0].Type)

	_, err = svc.Create(ctx, stranger.ID, student.ID, TaskInput{Title: "Nope"})
	require.Equal(t, "FORBIDDEN", apperrors.FromError(err).Code)

	_, err = svc.Create(ctx, student.ID, student.ID, TaskInput{Title: "  "})
	require.Equal(t, "VALIDATION_FAILED", apperrors.FromError(err).Code)
}

func TestTaskServiceComplete(t *testing.T) {
	svc, db := newTestTaskService(t)
	ctx := context.Background()

	student := createTestUser(t, db, "student", models.RoleStudent)
	teacher := createTestUser(t, db, "teacher", models.RoleTeacher)
	setSupervisor(t, db, student.ID, teacher.ID)

	task, err := svc.Create(ctx, student.ID, student.ID, TaskInput{Title: "Read chapter 3"})
	require.NoError(t, err)

	// Not even the mentor completes on the student's behalf.
	_, err = svc.Complete(ctx, task.ID, teacher.ID)
	require.Equal(t, "FORBIDDEN", apperrors.FromError(err).Code)

	done, err := svc.Complete(ctx, task.ID, student.ID)
	require.NoError(t, err)
	require.True(t, done.Done)

	_, err = svc.Complete(ctx, task.ID, student.ID)
	require.Equal(t, "INVALID_STATE", apperrors.FromError(err).Code)

	rows := notificationsFor(t, db, teacher.ID)
	require.Len(t, rows, 1)
	require.Equal(t, EventTaskCompleted, rows[0].Type)
}

func TestTaskServiceValidate(t *testing.T) {
	svc, db := newTestTaskService(t)
	ctx := context.Background()

	student := createTestUser(t, db, "student", models.RoleStudent)
	teacher := createTestUser(t, db, "teacher", models.RoleTeacher)
	stranger := createTestUser(t, db, "stranger", models.RoleTeacher)
	setSupervisor(t, db, student.ID, teacher.ID)

	task, err := svc.Create(ctx, student.ID, student.ID, TaskInput{Title: "Read chapter 3"})
	require.NoError(t, err)

	_, err = svc.Validate(ctx, task.ID, stranger.ID)
	require.Equal(t, "FORBIDDEN", apperrors.FromError(err).Code)
	_, err = svc.Validate(ctx, task.ID, student.ID)
	require.Equal(t, "FORBIDDEN", apperrors.FromError(err).Code)

	// Validating an open task also marks it done.
	validated, err := svc.Validate(ctx, task.ID, teacher.ID)
	require.NoError(t, err)
	require.True(t, validated.Done)
	require.True(t, validated.Validated)
	require.NotNil(t, validated.ValidatorID)
	require.Equal(t, teacher.ID, *validated.ValidatorID)

	_, err = svc.Validate(ctx, task.ID, teacher.ID)
	require.Equal(t, "INVALID_STATE", apperrors.FromError(err).Code)

	// Validated tasks are frozen.
	_, err = svc.Update(ctx, task.ID, student.ID, TaskInput{Title: "Changed"})
	require.Equal(t, "INVALID_STATE", apperrors.FromError(err).Code)
	err = svc.Delete(ctx, task.ID, student.ID)
	require.Equal(t, "INVALID_STATE", apperrors.FromError(err).Code)
}

func TestTaskServiceUpdateAndDelete(t *testing.T) {
	svc, db := newTestTaskService(t)
	ctx := context.Background()

	student := createTestUser(t, db, "student", models.RoleStudent)
	teacher := createTestUser(t, db, "teacher", models.RoleTeacher)
	stranger := createTestUser(t, db, "stranger", models.RoleStudent)
	setSupervisor(t, db, student.ID, teacher.ID)

	task, err := svc.Create(ctx, student.ID, student.ID, TaskInput{Title: "Draft essay"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, task.ID, stranger.ID, TaskInput{Title: "Hijacked"})
	require.Equal(t, "FORBIDDEN", apperrors.FromError(err).Code)

	updated, err := svc.Update(ctx, task.ID, teacher.ID, TaskInput{Title: "Draft essay v2"})
	require.NoError(t, err)
	require.Equal(t, "Draft essay v2", updated.Title)

	require.NoError(t, svc.Delete(ctx, task.ID, student.ID))
	_, err = svc.Get(ctx, task.ID, student.ID, models.RoleStudent)
	require.Equal(t, "NOT_FOUND", apperrors.FromError(err).Code)
}

func TestTaskServiceGetVisibility(t *testing.T) {
	svc, db := newTestTaskService(t)
	ctx := context.Background()

	student := createTestUser(t, db, "student", models.RoleStudent)
	teacher := createTestUser(t, db, "teacher", models.RoleTeacher)
	stranger := createTestUser(t, db, "stranger", models.RoleStudent)
	admin := createTestUser(t, db, "admin", models.RoleAdmin)
	setSupervisor(t, db, student.ID, teacher.ID)

	task, err := svc.Create(ctx, student.ID, student.ID, TaskInput{Title: "Draft essay"})
	require.NoError(t, err)

	for _, actor := range []*models.User{student, teacher, admin} {
		role := actor.Role
		_, err := svc.Get(ctx, task.ID, actor.ID, role)
		require.NoError(t, err)
	}

	_, err = svc.Get(ctx, task.ID, stranger.ID, models.RoleStudent)
	require.Equal(t, "NOT_FOUND", apperrors.FromError(err).Code)

	tasks, err := svc.ListForPerformer(ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
}
