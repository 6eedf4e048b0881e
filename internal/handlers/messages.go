package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/florentd35/teachly/internal/services"
	"github.com/florentd35/teachly/pkg/response"
)

// MessageHandler exposes direct messaging endpoints.
type MessageHandler struct {
	messages *services.MessageService
}

// NewMessageHandler constructs a MessageHandler.
func NewMessageHandler(messages *services.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

type sendMessageRequest struct {
	ReceiverID string   `json:"receiver_id" validate:"required"`
	Content    string   `json:"content" validate:"max=255"`
	Files      []string `json:"files" validate:"max=10,dive,max=512"`
}

// Send stores a new message for the conversation pair.
func (h *MessageHandler) Send(c *gin.Context) {
	var req sendMessageRequest
	if !bindAndValidate(c, &req) {
		return
	}

	message, err := h.messages.Send(requestContext(c), services.SendMessageInput{
		SenderID:   currentUserID(c),
		ReceiverID: req.ReceiverID,
		Content:    req.Content,
		Files:      req.Files,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, message)
}

// Conversation returns a page of the history with one counterpart.
func (h *MessageHandler) Conversation(c *gin.Context) {
	otherID := strings.TrimSpace(c.Param("id"))
	result, err := h.messages.Conversation(requestContext(c), currentUserID(c), otherID, listParams(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, result.Items, pageMeta(result))
}

// Latest returns the most recent message per counterpart, the conversation
// overview a chat sidebar renders.
func (h *MessageHandler) Latest(c *gin.Context) {
	latest, err := h.messages.LastPerCounterpart(requestContext(c), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, latest)
}

// MarkRead flags the conversation with a counterpart as read.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	otherID := strings.TrimSpace(c.Param("id"))
	updated, err := h.messages.MarkConversationRead(requestContext(c), currentUserID(c), otherID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"updated": updated})
}

// UnreadCount reports unread totals, optionally scoped to one sender via
// the "from" query parameter.
func (h *MessageHandler) UnreadCount(c *gin.Context) {
	count, err := h.messages.UnreadCount(requestContext(c), currentUserID(c), strings.TrimSpace(c.Query("from")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"unread": count})
}
