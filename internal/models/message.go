package models

import (
	"time"

	"gorm.io/datatypes"
)

// Message is a direct message between two users. Index numbers the
// conversation, not the per-sender count: for a pair {A,B} the values form a
// contiguous sequence starting at 1 regardless of direction. The composite
// unique index on (pair_key, index_message) is what the sequencer retries on
// when two sends race.
type Message struct {
	BaseModel

	SenderID   string `gorm:"type:uuid;not null;index" json:"sender_id"`
	ReceiverID string `gorm:"type:uuid;not null;index" json:"receiver_id"`

	// PairKey identifies the unordered conversation pair: the two user IDs
	// sorted lexicographically and joined with ':'.
	PairKey string `gorm:"type:varchar(80);not null;uniqueIndex:idx_pair_index" json:"-"`
	Index   int    `gorm:"column:index_message;not null;uniqueIndex:idx_pair_index" json:"index_message"`

	Content string         `gorm:"type:varchar(255)" json:"content"`
	Files   datatypes.JSON `json:"files,omitempty"`

	Sent time.Time `gorm:"not null;index" json:"sent"`
	Read bool      `gorm:"column:is_read;default:false;index" json:"read"`

	Sender   *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Receiver *User `gorm:"foreignKey:ReceiverID" json:"receiver,omitempty"`
}

// PairKey returns the unordered conversation key for two user IDs.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

// Counterpart returns the other participant of the message relative to userID.
func (m *Message) Counterpart(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}
