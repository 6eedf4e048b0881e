package services

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/florentd35/teachly/internal/models"
	"github.com/florentd35/teachly/internal/realtime"
	"github.com/florentd35/teachly/pkg/logger"
)

// Notification event types emitted by the services.
const (
	EventMessageSent = "message.sent"

	EventInvitationSent     = "invitation.sent"
	EventInvitationAccepted = "invitation.accepted"

	EventDemandSent      = "demand.sent"
	EventDemandAccepted  = "demand.accepted"
	EventDemandCancelled = "demand.cancelled"

	EventEventCreated  = "event.created"
	EventEventAccepted = "event.accepted"
	EventEventDeclined = "event.declined"
	EventEventModified = "event.modified"
	EventEventDeleted  = "event.deleted"

	EventTaskCreated   = "task.created"
	EventTaskCompleted = "task.completed"
	EventTaskValidated = "task.validated"
)

// Notifier persists in-app notifications and pushes them to connected
// clients. Emission is strictly best-effort and always happens after the
// triggering mutation committed; a delivery failure never rolls anything
// back, it is only logged.
type Notifier struct {
	db  *gorm.DB
	hub *realtime.Hub
	log *zap.Logger
}

// NewNotifier constructs a Notifier. The hub may be nil, in which case only
// the persistent notification row is written.
func NewNotifier(db *gorm.DB, hub *realtime.Hub) *Notifier {
	return &Notifier{
		db:  db,
		hub: hub,
		log: logger.WithModule("notifier"),
	}
}

// Emit records a notification for each recipient and broadcasts it on the
// notifications stream.
func (n *Notifier) Emit(ctx context.Context, recipientIDs []string, eventType, title, message string, metadata map[string]any) {
	if n == nil || len(recipientIDs) == 0 {
		return
	}
	ctx = ensureContext(ctx)

	var encoded datatypes.JSON
	if metadata != nil {
		if data, err := json.Marshal(metadata); err == nil {
			encoded = datatypes.JSON(data)
		}
	}

	for _, recipientID := range recipientIDs {
		if recipientID == "" {
			continue
		}

		notification := models.Notification{
			UserID:   recipientID,
			Type:     eventType,
			Title:    title,
			Message:  message,
			Metadata: encoded,
		}
		if err := n.db.WithContext(ctx).Create(&notification).Error; err != nil {
			n.log.Warn("persist notification failed",
				zap.String("type", eventType),
				zap.String("user_id", recipientID),
				zap.Error(err))
			continue
		}

		if n.hub != nil {
			n.hub.BroadcastToUser(realtime.StreamNotifications, recipientID, realtime.Message{
				Event: eventType,
				Data: map[string]any{
					"id":       notification.ID,
					"type":     eventType,
					"title":    title,
					"message":  message,
					"metadata": metadata,
				},
			})
		}
	}
}

// Push broadcasts a transient realtime event without persisting anything.
// Used for payloads that already live in their own table, like messages.
func (n *Notifier) Push(stream, recipientID, eventType string, data any) {
	if n == nil || n.hub == nil {
		return
	}
	n.hub.BroadcastToUser(stream, recipientID, realtime.Message{Event: eventType, Data: data})
}
