package models

import "time"

// Event is a scheduled event with an organizer, invited guests and confirmed
// attendees. A user is in at most one of the two sets: accepting an
// invitation moves them from guests to attendees, declining removes them
// from whichever set they are in. Every transition goes through the event
// service so the two lists never drift.
type Event struct {
	BaseModel

	Title       string `gorm:"not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`

	Beginning time.Time `gorm:"not null;index" json:"beginning"`
	End       time.Time `gorm:"not null" json:"end"`

	OrganizerID string `gorm:"type:uuid;not null;index" json:"organizer_id"`
	Organizer   *User  `gorm:"foreignKey:OrganizerID" json:"organizer,omitempty"`

	Guests    []User `gorm:"many2many:event_guests;" json:"guests,omitempty"`
	Attendees []User `gorm:"many2many:event_attendees;" json:"attendees,omitempty"`
}
