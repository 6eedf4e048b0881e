package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/florentd35/teachly/internal/services"
	"github.com/florentd35/teachly/pkg/response"
)

// TaskHandler exposes task endpoints.
type TaskHandler struct {
	tasks *services.TaskService
}

// NewTaskHandler constructs a TaskHandler.
func NewTaskHandler(tasks *services.TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

type taskRequest struct {
	Title       string     `json:"title" validate:"required,max=255"`
	Description string     `json:"description" validate:"max=2000"`
	PerformerID string     `json:"performer_id"`
	DueAt       *time.Time `json:"due_at"`
}

// Create registers a task. Students create their own; mentors assign to
// their students by setting performer_id.
func (h *TaskHandler) Create(c *gin.Context) {
	var req taskRequest
	if !bindAndValidate(c, &req) {
		return
	}

	performerID := strings.TrimSpace(req.PerformerID)
	if performerID == "" {
		performerID = currentUserID(c)
	}

	task, err := h.tasks.Create(requestContext(c), currentUserID(c), performerID, services.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		DueAt:       req.DueAt,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, task)
}

// List returns tasks of the requested performer, defaulting to the caller.
func (h *TaskHandler) List(c *gin.Context) {
	performerID := strings.TrimSpace(c.Query("performer_id"))
	if performerID == "" {
		performerID = currentUserID(c)
	}

	tasks, err := h.tasks.ListForPerformer(requestContext(c), performerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, tasks)
}

// Get returns a single task visible to the caller.
func (h *TaskHandler) Get(c *gin.Context) {
	task, err := h.tasks.Get(requestContext(c), strings.TrimSpace(c.Param("id")), currentUserID(c), currentRole(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, task)
}

// Update modifies a task's attributes.
func (h *TaskHandler) Update(c *gin.Context) {
	var req taskRequest
	if !bindAndValidate(c, &req) {
		return
	}

	task, err := h.tasks.Update(requestContext(c), strings.TrimSpace(c.Param("id")), currentUserID(c), services.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		DueAt:       req.DueAt,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, task)
}

// Delete removes a task.
func (h *TaskHandler) Delete(c *gin.Context) {
	if err := h.tasks.Delete(requestContext(c), strings.TrimSpace(c.Param("id")), currentUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// Complete marks the task done as its performer.
func (h *TaskHandler) Complete(c *gin.Context) {
	task, err := h.tasks.Complete(requestContext(c), strings.TrimSpace(c.Param("id")), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, task)
}

// Validate marks the task validated as the performer's mentor.
func (h *TaskHandler) Validate(c *gin.Context) {
	task, err := h.tasks.Validate(requestContext(c), strings.TrimSpace(c.Param("id")), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, task)
}
