package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Platform roles. Admin accounts are provisioned by seeding, never by signup.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// User describes a platform account. Email and username are stored
// case-normalized so uniqueness holds regardless of input casing.
type User struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Username string `gorm:"uniqueIndex;not null" json:"username"`
	Password string `gorm:"not null" json:"-"`

	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Description string `gorm:"type:text" json:"description"`
	Avatar      string `json:"avatar"`

	Role      string `gorm:"type:varchar(16);not null;index" json:"role"`
	Confirmed bool   `gorm:"default:false" json:"confirmed"`

	// Supervision is derived state: SupervisorID is only ever written by the
	// teaching demand accept cascade. Supervised is its has-many inverse, so
	// both sides always agree.
	SupervisorID *string `gorm:"type:uuid;index" json:"supervisor_id,omitempty"`
	Supervisor   *User   `gorm:"foreignKey:SupervisorID" json:"supervisor,omitempty"`
	Supervised   []User  `gorm:"foreignKey:SupervisorID" json:"supervised,omitempty"`

	IsDeleted bool       `gorm:"default:false;index" json:"-"`
	DeletedAt *time.Time `json:"-"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate ensures a UUID is present before persisting.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// IsTeacher reports whether the user can receive teaching demands.
func (u *User) IsTeacher() bool {
	return u.Role == RoleTeacher
}

// IsStudent reports whether the user can send teaching demands.
func (u *User) IsStudent() bool {
	return u.Role == RoleStudent
}

// Contact is one direction of a symmetric contact relationship. Rows are
// always written in pairs inside a transaction so the relation never drifts.
type Contact struct {
	BaseModel

	UserID    string `gorm:"type:uuid;not null;uniqueIndex:idx_contact_pair" json:"user_id"`
	ContactID string `gorm:"type:uuid;not null;uniqueIndex:idx_contact_pair" json:"contact_id"`

	User    *User `gorm:"foreignKey:UserID" json:"-"`
	Peer    *User `gorm:"foreignKey:ContactID" json:"contact,omitempty"`
}

// ContactInvitation is a pending contact request from Sender to Receiver.
// Accepting deletes the row and creates the symmetric contact pair; declining
// just deletes the row.
type ContactInvitation struct {
	BaseModel

	SenderID   string `gorm:"type:uuid;not null;uniqueIndex:idx_invitation_pair" json:"sender_id"`
	ReceiverID string `gorm:"type:uuid;not null;uniqueIndex:idx_invitation_pair" json:"receiver_id"`

	Sender   *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Receiver *User `gorm:"foreignKey:ReceiverID" json:"receiver,omitempty"`
}

// AccountToken stores digests of single-use account links (signup
// confirmation, password reset). Plaintext tokens are never persisted.
type AccountToken struct {
	BaseModel

	UserID     string     `gorm:"type:uuid;not null;index" json:"user_id"`
	Purpose    string     `gorm:"type:varchar(16);not null" json:"purpose"`
	Digest     string     `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt  time.Time  `gorm:"not null;index" json:"expires_at"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
}

// AccountToken purposes.
const (
	TokenPurposeConfirm = "confirm"
	TokenPurposeReset   = "reset"
)

// DeletionSchedule is a durable record of a pending account hard-delete,
// written when a user soft-deletes their account. The maintenance executor
// picks up due rows, so a process restart never loses the schedule.
type DeletionSchedule struct {
	BaseModel

	UserID     string     `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	DueAt      time.Time  `gorm:"not null;index" json:"due_at"`
	ExecutedAt *time.Time `json:"executed_at,omitempty"`
}
