package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/florentd35/teachly/internal/services"
	"github.com/florentd35/teachly/pkg/response"
)

// UserHandler exposes account and profile endpoints.
type UserHandler struct {
	users   *services.UserService
	demands *services.DemandService
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(users *services.UserService, demands *services.DemandService) *UserHandler {
	return &UserHandler{users: users, demands: demands}
}

// List returns a page of users. Filters, sorting and projection follow the
// generic collection query conventions.
func (h *UserHandler) List(c *gin.Context) {
	result, err := h.users.List(requestContext(c), listParams(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, result.Items, pageMeta(result))
}

// Get returns a single user profile.
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.users.Get(requestContext(c), strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// Me returns the authenticated user's profile.
func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.users.Get(requestContext(c), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

type updateProfileRequest struct {
	FirstName   string `json:"first_name" validate:"max=64"`
	LastName    string `json:"last_name" validate:"max=64"`
	Description string `json:"description" validate:"max=2000"`
	Avatar      string `json:"avatar" validate:"max=512"`
}

// UpdateMe updates the authenticated user's profile.
func (h *UserHandler) UpdateMe(c *gin.Context) {
	var req updateProfileRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.UpdateProfile(requestContext(c), currentUserID(c), services.ProfileInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Description: req.Description,
		Avatar:      req.Avatar,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// ChangePassword replaces the authenticated user's password.
func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	err := h.users.ChangePassword(requestContext(c), currentUserID(c), req.CurrentPassword, req.NewPassword)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"changed": true})
}

// Delete soft-deletes an account and schedules the hard delete. Users delete
// themselves, admins anyone.
func (h *UserHandler) Delete(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("id"))
	err := h.users.SoftDelete(requestContext(c), userID, currentUserID(c), currentRole(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// Supervised lists the students currently mentored by the authenticated teacher.
func (h *UserHandler) Supervised(c *gin.Context) {
	students, err := h.demands.Supervised(requestContext(c), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, students)
}
