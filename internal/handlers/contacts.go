package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/florentd35/teachly/internal/services"
	"github.com/florentd35/teachly/pkg/response"
)

// ContactHandler exposes contact and invitation endpoints.
type ContactHandler struct {
	contacts *services.ContactService
}

// NewContactHandler constructs a ContactHandler.
func NewContactHandler(contacts *services.ContactService) *ContactHandler {
	return &ContactHandler{contacts: contacts}
}

// List returns the authenticated user's contacts.
func (h *ContactHandler) List(c *gin.Context) {
	contacts, err := h.contacts.ListContacts(requestContext(c), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, contacts)
}

// Remove deletes a contact relation in both directions.
func (h *ContactHandler) Remove(c *gin.Context) {
	contactID := strings.TrimSpace(c.Param("id"))
	if err := h.contacts.RemoveContact(requestContext(c), currentUserID(c), contactID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": true})
}

type sendInvitationRequest struct {
	ReceiverID string `json:"receiver_id" validate:"required"`
}

// Invite sends a contact invitation.
func (h *ContactHandler) Invite(c *gin.Context) {
	var req sendInvitationRequest
	if !bindAndValidate(c, &req) {
		return
	}

	invitation, err := h.contacts.SendInvitation(requestContext(c), currentUserID(c), req.ReceiverID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, invitation)
}

// Invitations lists pending invitations, both received and sent.
func (h *ContactHandler) Invitations(c *gin.Context) {
	received, sent, err := h.contacts.ListInvitations(requestContext(c), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"received": received,
		"sent":     sent,
	})
}

// Accept accepts an invitation and establishes the contact.
func (h *ContactHandler) Accept(c *gin.Context) {
	invitationID := strings.TrimSpace(c.Param("id"))
	if err := h.contacts.AcceptInvitation(requestContext(c), invitationID, currentUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"accepted": true})
}

// Decline removes an invitation without establishing the contact.
func (h *ContactHandler) Decline(c *gin.Context) {
	invitationID := strings.TrimSpace(c.Param("id"))
	if err := h.contacts.DeclineInvitation(requestContext(c), invitationID, currentUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"declined": true})
}
