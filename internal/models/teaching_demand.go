package models

import "time"

// Demand lifecycle states derived from the accepted/cancelled flags.
const (
	DemandPending   = "pending"
	DemandAccepted  = "accepted"
	DemandCancelled = "cancelled"
)

// TeachingDemand is a mentorship request from a student to a teacher.
// Demands are never deleted; terminal states are accepted or cancelled.
// For a (sender, receiver) pair at most one demand is non-cancelled at a
// time, and a sender holds at most one accepted demand overall.
type TeachingDemand struct {
	BaseModel

	SenderID   string `gorm:"type:uuid;not null;index" json:"sender_id"`
	ReceiverID string `gorm:"type:uuid;not null;index" json:"receiver_id"`

	Sent      time.Time `gorm:"not null" json:"sent"`
	Accepted  bool      `gorm:"default:false" json:"accepted"`
	Cancelled bool      `gorm:"default:false" json:"cancelled"`

	Sender   *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Receiver *User `gorm:"foreignKey:ReceiverID" json:"receiver,omitempty"`
}

// State reports the lifecycle state encoded by the two flags.
func (d *TeachingDemand) State() string {
	switch {
	case d.Cancelled:
		return DemandCancelled
	case d.Accepted:
		return DemandAccepted
	default:
		return DemandPending
	}
}
