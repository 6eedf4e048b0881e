package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/florentd35/teachly/internal/services"
	"github.com/florentd35/teachly/pkg/response"
)

// EventHandler exposes event endpoints.
type EventHandler struct {
	events *services.EventService
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(events *services.EventService) *EventHandler {
	return &EventHandler{events: events}
}

type eventRequest struct {
	Title       string    `json:"title" validate:"required,max=255"`
	Description string    `json:"description" validate:"max=2000"`
	Beginning   time.Time `json:"beginning" validate:"required"`
	End         time.Time `json:"end" validate:"required"`
	GuestIDs    []string  `json:"guest_ids" validate:"max=100"`
}

func (r *eventRequest) toInput() services.EventInput {
	return services.EventInput{
		Title:       r.Title,
		Description: r.Description,
		Beginning:   r.Beginning,
		End:         r.End,
		GuestIDs:    r.GuestIDs,
	}
}

// Create registers a new event organized by the authenticated user.
func (h *EventHandler) Create(c *gin.Context) {
	var req eventRequest
	if !bindAndValidate(c, &req) {
		return
	}

	event, err := h.events.Create(requestContext(c), currentUserID(c), req.toInput())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, event)
}

// List returns the events the authenticated user is involved in.
func (h *EventHandler) List(c *gin.Context) {
	events, err := h.events.ListForUser(requestContext(c), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, events)
}

// Get returns a single event with its guest and attendee lists.
func (h *EventHandler) Get(c *gin.Context) {
	event, err := h.events.Get(requestContext(c), strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, event)
}

// Update modifies an event's attributes. Organizer only.
func (h *EventHandler) Update(c *gin.Context) {
	var req eventRequest
	if !bindAndValidate(c, &req) {
		return
	}

	event, err := h.events.Update(requestContext(c), strings.TrimSpace(c.Param("id")), currentUserID(c), req.toInput())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, event)
}

// Delete removes an event. Organizer only.
func (h *EventHandler) Delete(c *gin.Context) {
	if err := h.events.Delete(requestContext(c), strings.TrimSpace(c.Param("id")), currentUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

type inviteGuestsRequest struct {
	GuestIDs []string `json:"guest_ids" validate:"required,min=1,max=100"`
}

// Invite adds guests to an event. Organizer only.
func (h *EventHandler) Invite(c *gin.Context) {
	var req inviteGuestsRequest
	if !bindAndValidate(c, &req) {
		return
	}

	event, err := h.events.Invite(requestContext(c), strings.TrimSpace(c.Param("id")), currentUserID(c), req.GuestIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, event)
}

type respondRequest struct {
	Accept bool `json:"accept"`
}

// Respond records the authenticated guest's answer to an invitation.
func (h *EventHandler) Respond(c *gin.Context) {
	var req respondRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.events.Respond(requestContext(c), strings.TrimSpace(c.Param("id")), currentUserID(c), req.Accept); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"accepted": req.Accept})
}
