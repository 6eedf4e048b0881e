package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/florentd35/teachly/internal/models"
	"github.com/florentd35/teachly/internal/query"
	"github.com/florentd35/teachly/internal/realtime"
	apperrors "github.com/florentd35/teachly/pkg/errors"
	"github.com/florentd35/teachly/pkg/metrics"
)

// maxContentLength caps the text body of a direct message.
const maxContentLength = 255

// sendAttempts bounds the sequencer retry loop. Each retry means another
// send won the (pair_key, index_message) unique index race.
const sendAttempts = 3

var messageColumns = query.Allowed{
	"sent":          "sent",
	"read":          "is_read",
	"index_message": "index_message",
	"created_at":    "created_at",
}

// MessageService persists direct messages and maintains the per-conversation
// sequence. Index values number the conversation pair, not the sender: for
// {A,B} they form the contiguous run 1..N whichever side sent each message.
type MessageService struct {
	db       *gorm.DB
	notifier *Notifier
}

// NewMessageService constructs a MessageService.
func NewMessageService(db *gorm.DB, notifier *Notifier) (*MessageService, error) {
	if db == nil {
		return nil, errors.New("message service: db is required")
	}
	return &MessageService{db: db, notifier: notifier}, nil
}

// SendMessageInput defines the attributes of an outbound message.
type SendMessageInput struct {
	SenderID   string
	ReceiverID string
	Content    string
	Files      []string
}

// Send stores a new message with the next index for the conversation pair.
//
// The index is assigned inside a transaction by reading the current maximum
// and inserting max+1. When two sends race, the composite unique index
// rejects the second insert and the loop retries with a fresh read, so the
// pair can never hold duplicate indexes.
func (s *MessageService) Send(ctx context.Context, input SendMessageInput) (*models.Message, error) {
	ctx = ensureContext(ctx)

	content := strings.TrimSpace(input.Content)
	if content == "" && len(input.Files) == 0 {
		return nil, apperrors.NewBadRequest("a message needs either content or at least one file")
	}
	if utf8.RuneCountInString(content) > maxContentLength {
		return nil, apperrors.NewBadRequest("message content cannot exceed 255 characters")
	}
	if input.SenderID == input.ReceiverID {
		return nil, apperrors.NewBadRequest("you cannot message yourself")
	}

	if err := s.ensureUserExists(ctx, input.ReceiverID); err != nil {
		return nil, err
	}

	files, err := encodeStringList(input.Files)
	if err != nil {
		return nil, fmt.Errorf("message service: encode files: %w", err)
	}

	pairKey := models.PairKey(input.SenderID, input.ReceiverID)

	var message models.Message
	for attempt := 0; attempt < sendAttempts; attempt++ {
		message = models.Message{
			SenderID:   input.SenderID,
			ReceiverID: input.ReceiverID,
			PairKey:    pairKey,
			Content:    content,
			Files:      files,
			Sent:       time.Now().UTC(),
		}

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var maxIndex int
			row := tx.Model(&models.Message{}).
				Select("COALESCE(MAX(index_message), 0)").
				Where("pair_key = ?", pairKey).
				Row()
			if err := row.Scan(&maxIndex); err != nil {
				return fmt.Errorf("message service: read max index: %w", err)
			}

			message.Index = maxIndex + 1
			if err := tx.Create(&message).Error; err != nil {
				return err
			}
			return nil
		})

		if err == nil {
			break
		}
		if isUniqueConstraintError(err) {
			metrics.MessageIndexRetries.Inc()
			continue
		}
		return nil, fmt.Errorf("message service: send: %w", err)
	}
	if err != nil {
		return nil, apperrors.ErrConflict.WithMessage("could not assign a message index, please retry").WithInternal(err)
	}

	metrics.MessagesSent.Inc()
	s.notifier.Push(realtime.StreamMessages, input.ReceiverID, EventMessageSent, &message)

	return &message, nil
}

// Conversation returns one page of the message history between the user and
// a counterpart, newest first by conversation index unless the query says
// otherwise.
func (s *MessageService) Conversation(ctx context.Context, userID, otherID string, params query.Params) (*query.Result[models.Message], error) {
	ctx = ensureContext(ctx)

	if len(params.Sort) == 0 {
		params.Sort = []string{"-index_message"}
	}

	scope := s.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("pair_key = ?", models.PairKey(userID, otherID))

	return query.Run[models.Message](scope, params, messageColumns)
}

// LastPerCounterpart resolves the most recent message exchanged with each of
// the user's counterparts.
//
// Messages are grouped by the unordered pair key in an explicit two-pass
// reduce: rows arrive ordered by sent descending, the first row seen per
// pair wins. This is what collapses the two directional (sender, receiver)
// groupings into a single entry per counterpart.
func (s *MessageService) LastPerCounterpart(ctx context.Context, userID string) ([]models.Message, error) {
	ctx = ensureContext(ctx)

	var rows []models.Message
	if err := s.db.WithContext(ctx).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("sent DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("message service: load messages: %w", err)
	}

	seen := make(map[string]struct{}, len(rows))
	latest := make([]models.Message, 0, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.PairKey]; ok {
			continue
		}
		seen[row.PairKey] = struct{}{}
		latest = append(latest, row)
	}
	return latest, nil
}

// MarkConversationRead flags every unread message the user received from the
// counterpart as read and returns how many were updated.
func (s *MessageService) MarkConversationRead(ctx context.Context, userID, otherID string) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("receiver_id = ? AND sender_id = ? AND is_read = ?", userID, otherID, false).
		Update("is_read", true)
	if result.Error != nil {
		return 0, fmt.Errorf("message service: mark read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// UnreadCount counts unread messages for the receiver, optionally scoped to
// a single sender.
func (s *MessageService) UnreadCount(ctx context.Context, receiverID, senderID string) (int64, error) {
	ctx = ensureContext(ctx)

	stmt := s.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("receiver_id = ? AND is_read = ?", receiverID, false)
	if senderID != "" {
		stmt = stmt.Where("sender_id = ?", senderID)
	}

	var count int64
	if err := stmt.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("message service: unread count: %w", err)
	}
	return count, nil
}

func (s *MessageService) ensureUserExists(ctx context.Context, userID string) error {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND is_deleted = ?", userID, false).
		Count(&count).Error; err != nil {
		return fmt.Errorf("message service: check user: %w", err)
	}
	if count == 0 {
		return apperrors.ErrNotFound.WithMessage("recipient not found")
	}
	return nil
}
