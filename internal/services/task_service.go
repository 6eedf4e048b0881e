package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/florentd35/teachly/internal/models"
	apperrors "github.com/florentd35/teachly/pkg/errors"
)

// TaskService manages student tasks. A task belongs to its performer;
// completion is the performer's call and validation is reserved to the
// performer's current supervisor. Validation implies completion.
type TaskService struct {
	db       *gorm.DB
	notifier *Notifier
}

// NewTaskService constructs a TaskService.
func NewTaskService(db *gorm.DB, notifier *Notifier) (*TaskService, error) {
	if db == nil {
		return nil, errors.New("task service: db is required")
	}
	return &TaskService{db: db, notifier: notifier}, nil
}

// TaskInput defines the mutable attributes of a task.
type TaskInput struct {
	Title       string
	Description string
	DueAt       *time.Time
}

func (in *TaskInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return apperrors.NewBadRequest("task title is required")
	}
	return nil
}

// Create stores a task for the performer. The performer creates their own
// tasks, and their supervisor may assign tasks to them.
func (s *TaskService) Create(ctx context.Context, actorID, performerID string, input TaskInput) (*models.Task, error) {
	ctx = ensureContext(ctx)

	if err := input.validate(); err != nil {
		return nil, err
	}

	performer, err := s.loadPerformer(ctx, performerID)
	if err != nil {
		return nil, err
	}
	if actorID != performerID && !isSupervisorOf(performer, actorID) {
		return nil, apperrors.ErrForbidden.WithMessage("only the student or their mentor can create this task")
	}

	task := models.Task{
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		PerformerID: performerID,
		DueAt:       input.DueAt,
	}
	if err := s.db.WithContext(ctx).Create(&task).Error; err != nil {
		return nil, fmt.Errorf("task service: create task: %w", err)
	}

	if actorID != performerID {
		s.notifier.Emit(ctx, []string{performerID}, EventTaskCreated,
			"New task",
			fmt.Sprintf("you were assigned %q", task.Title),
			map[string]any{"task_id": task.ID})
	}

	return &task, nil
}

// Update modifies a task's attributes. Performer or supervisor, and never
// after validation.
func (s *TaskService) Update(ctx context.Context, taskID, actorID string, input TaskInput) (*models.Task, error) {
	ctx = ensureContext(ctx)

	if err := input.validate(); err != nil {
		return nil, err
	}

	task, err := s.loadManagedTask(ctx, taskID, actorID)
	if err != nil {
		return nil, err
	}
	if task.Validated {
		return nil, apperrors.NewInvalidState("a validated task can no longer be modified")
	}

	updates := map[string]any{
		"title":       strings.TrimSpace(input.Title),
		"description": input.Description,
		"due_at":      input.DueAt,
	}
	if err := s.db.WithContext(ctx).Model(task).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("task service: update task: %w", err)
	}
	return task, nil
}

// Delete removes a task. Performer or supervisor, never after validation.
func (s *TaskService) Delete(ctx context.Context, taskID, actorID string) error {
	ctx = ensureContext(ctx)

	task, err := s.loadManagedTask(ctx, taskID, actorID)
	if err != nil {
		return err
	}
	if task.Validated {
		return apperrors.NewInvalidState("a validated task can no longer be deleted")
	}

	if err := s.db.WithContext(ctx).Delete(task).Error; err != nil {
		return fmt.Errorf("task service: delete task: %w", err)
	}
	return nil
}

// Complete marks the task done. Only the performer completes their own work.
func (s *TaskService) Complete(ctx context.Context, taskID, actorID string) (*models.Task, error) {
	ctx = ensureContext(ctx)

	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.PerformerID != actorID {
		return nil, apperrors.ErrForbidden.WithMessage("only the assignee can complete this task")
	}
	if task.Done {
		return nil, apperrors.NewInvalidState("this task is already done")
	}

	task.Done = true
	if err := s.db.WithContext(ctx).Model(task).Update("done", true).Error; err != nil {
		return nil, fmt.Errorf("task service: complete task: %w", err)
	}

	performer, err := s.loadPerformer(ctx, task.PerformerID)
	if err == nil && performer.SupervisorID != nil {
		s.notifier.Emit(ctx, []string{*performer.SupervisorID}, EventTaskCompleted,
			"Task completed",
			fmt.Sprintf("%s completed %q", performer.Username, task.Title),
			map[string]any{"task_id": task.ID})
	}

	return task, nil
}

// Validate marks the task validated by the performer's current supervisor.
// Validating an open task also marks it done, so a validated task is always
// a done task.
func (s *TaskService) Validate(ctx context.Context, taskID, actorID string) (*models.Task, error) {
	ctx = ensureContext(ctx)

	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	performer, err := s.loadPerformer(ctx, task.PerformerID)
	if err != nil {
		return nil, err
	}
	if !isSupervisorOf(performer, actorID) {
		return nil, apperrors.ErrForbidden.WithMessage("only the student's mentor can validate this task")
	}
	if task.Validated {
		return nil, apperrors.NewInvalidState("this task is already validated")
	}

	task.Done = true
	task.Validated = true
	task.ValidatorID = &actorID
	updates := map[string]any{"done": true, "validated": true, "validator_id": actorID}
	if err := s.db.WithContext(ctx).Model(task).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("task service: validate task: %w", err)
	}

	s.notifier.Emit(ctx, []string{task.PerformerID}, EventTaskValidated,
		"Task validated",
		fmt.Sprintf("%q was validated by your mentor", task.Title),
		map[string]any{"task_id": task.ID})

	return task, nil
}

// Get loads a task visible to the actor: the performer, their supervisor, or
// an admin.
func (s *TaskService) Get(ctx context.Context, taskID, actorID, actorRole string) (*models.Task, error) {
	ctx = ensureContext(ctx)

	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if actorRole == models.RoleAdmin || task.PerformerID == actorID {
		return task, nil
	}

	performer, err := s.loadPerformer(ctx, task.PerformerID)
	if err != nil || !isSupervisorOf(performer, actorID) {
		return nil, apperrors.ErrNotFound
	}
	return task, nil
}

// ListForPerformer returns a student's tasks, most recently created first.
func (s *TaskService) ListForPerformer(ctx context.Context, performerID string) ([]models.Task, error) {
	ctx = ensureContext(ctx)

	var tasks []models.Task
	if err := s.db.WithContext(ctx).
		Preload("Validator").
		Where("performer_id = ?", performerID).
		Order("created_at DESC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("task service: list tasks: %w", err)
	}
	return tasks, nil
}

func (s *TaskService) loadTask(ctx context.Context, taskID string) (*models.Task, error) {
	var task models.Task
	if err := s.db.WithContext(ctx).First(&task, "id = ?", taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("task service: load task: %w", err)
	}
	return &task, nil
}

func (s *TaskService) loadManagedTask(ctx context.Context, taskID, actorID string) (*models.Task, error) {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.PerformerID == actorID {
		return task, nil
	}

	performer, err := s.loadPerformer(ctx, task.PerformerID)
	if err != nil {
		return nil, err
	}
	if !isSupervisorOf(performer, actorID) {
		return nil, apperrors.ErrForbidden.WithMessage("only the student or their mentor can manage this task")
	}
	return task, nil
}

func (s *TaskService) loadPerformer(ctx context.Context, performerID string) (*models.User, error) {
	var performer models.User
	if err := s.db.WithContext(ctx).
		Where("id = ? AND is_deleted = ?", performerID, false).
		First(&performer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound.WithMessage("student not found")
		}
		return nil, fmt.Errorf("task service: load performer: %w", err)
	}
	return &performer, nil
}

func isSupervisorOf(student *models.User, actorID string) bool {
	return student.SupervisorID != nil && *student.SupervisorID == actorID
}
