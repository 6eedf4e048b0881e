package models

import "time"

// Task is a piece of work assigned to a student. Validation is reserved to
// the performer's current supervisor, and a validated task is always done.
type Task struct {
	BaseModel

	Title       string `gorm:"not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`

	PerformerID string `gorm:"type:uuid;not null;index" json:"performer_id"`
	Performer   *User  `gorm:"foreignKey:PerformerID" json:"performer,omitempty"`

	Done      bool `gorm:"default:false" json:"done"`
	Validated bool `gorm:"default:false" json:"validated"`

	ValidatorID *string `gorm:"type:uuid" json:"validator_id,omitempty"`
	Validator   *User   `gorm:"foreignKey:ValidatorID" json:"validator,omitempty"`

	DueAt *time.Time `json:"due_at,omitempty"`
}
