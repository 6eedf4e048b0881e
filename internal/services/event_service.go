package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/florentd35/teachly/internal/models"
	apperrors "github.com/florentd35/teachly/pkg/errors"
)

// EventService manages events, guest invitations and attendance. Guest and
// attendee sets are disjoint; all membership changes run through here inside
// transactions so a user never appears in both.
type EventService struct {
	db       *gorm.DB
	notifier *Notifier
}

// NewEventService constructs an EventService.
func NewEventService(db *gorm.DB, notifier *Notifier) (*EventService, error) {
	if db == nil {
		return nil, errors.New("event service: db is required")
	}
	return &EventService{db: db, notifier: notifier}, nil
}

// EventInput defines the mutable attributes of an event.
type EventInput struct {
	Title       string
	Description string
	Beginning   time.Time
	End         time.Time
	GuestIDs    []string
}

func (in *EventInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return apperrors.NewBadRequest("event title is required")
	}
	if in.Beginning.IsZero() || in.End.IsZero() {
		return apperrors.NewBadRequest("event beginning and end are required")
	}
	if in.End.Before(in.Beginning) {
		return apperrors.NewBadRequest("event cannot end before it begins")
	}
	return nil
}

// Create stores a new event with the organizer's guest list and notifies
// every invited guest.
func (s *EventService) Create(ctx context.Context, organizerID string, input EventInput) (*models.Event, error) {
	ctx = ensureContext(ctx)

	if err := input.validate(); err != nil {
		return nil, err
	}

	guests, err := s.loadGuests(ctx, organizerID, input.GuestIDs)
	if err != nil {
		return nil, err
	}

	event := models.Event{
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Beginning:   input.Beginning.UTC(),
		End:         input.End.UTC(),
		OrganizerID: organizerID,
		Guests:      guests,
	}
	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		return nil, fmt.Errorf("event service: create event: %w", err)
	}

	s.notifier.Emit(ctx, input.GuestIDs, EventEventCreated,
		"Event invitation",
		fmt.Sprintf("you are invited to %q", event.Title),
		map[string]any{"event_id": event.ID})

	return &event, nil
}

// Update modifies an event's attributes. Only the organizer may update, and
// every guest and attendee is notified of the change. The guest list itself
// is managed through Invite/Respond, not here.
func (s *EventService) Update(ctx context.Context, eventID, actorID string, input EventInput) (*models.Event, error) {
	ctx = ensureContext(ctx)

	if err := input.validate(); err != nil {
		return nil, err
	}

	event, err := s.loadOwnedEvent(ctx, eventID, actorID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{
		"title":       strings.TrimSpace(input.Title),
		"description": input.Description,
		"beginning":   input.Beginning.UTC(),
		"end":         input.End.UTC(),
	}
	if err := s.db.WithContext(ctx).Model(event).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("event service: update event: %w", err)
	}

	s.notifier.Emit(ctx, s.participantIDs(event), EventEventModified,
		"Event updated",
		fmt.Sprintf("%q was updated", event.Title),
		map[string]any{"event_id": event.ID})

	return event, nil
}

// Delete removes an event and its membership rows. Organizer only.
func (s *EventService) Delete(ctx context.Context, eventID, actorID string) error {
	ctx = ensureContext(ctx)

	event, err := s.loadOwnedEvent(ctx, eventID, actorID)
	if err != nil {
		return err
	}

	participants := s.participantIDs(event)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(event).Association("Guests").Clear(); err != nil {
			return fmt.Errorf("event service: clear guests: %w", err)
		}
		if err := tx.Model(event).Association("Attendees").Clear(); err != nil {
			return fmt.Errorf("event service: clear attendees: %w", err)
		}
		if err := tx.Delete(event).Error; err != nil {
			return fmt.Errorf("event service: delete event: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.notifier.Emit(ctx, participants, EventEventDeleted,
		"Event cancelled",
		fmt.Sprintf("%q was cancelled", event.Title),
		map[string]any{"event_id": event.ID})

	return nil
}

// Invite adds users to the guest list. Organizer only; users already invited
// or attending are skipped rather than duplicated.
func (s *EventService) Invite(ctx context.Context, eventID, actorID string, guestIDs []string) (*models.Event, error) {
	ctx = ensureContext(ctx)

	event, err := s.loadOwnedEvent(ctx, eventID, actorID)
	if err != nil {
		return nil, err
	}

	current := make(map[string]struct{})
	for _, id := range s.participantIDs(event) {
		current[id] = struct{}{}
	}

	fresh := make([]string, 0, len(guestIDs))
	for _, id := range guestIDs {
		if _, ok := current[id]; !ok && id != event.OrganizerID {
			fresh = append(fresh, id)
		}
	}
	if len(fresh) == 0 {
		return event, nil
	}

	guests, err := s.loadGuests(ctx, actorID, fresh)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(event).Association("Guests").Append(&guests); err != nil {
		return nil, fmt.Errorf("event service: append guests: %w", err)
	}

	s.notifier.Emit(ctx, fresh, EventEventCreated,
		"Event invitation",
		fmt.Sprintf("you are invited to %q", event.Title),
		map[string]any{"event_id": event.ID})

	return s.Get(ctx, eventID)
}

// Respond records an invited guest's answer. Accepting moves the user from
// guests to attendees in one transaction; declining removes them from either
// set. Users who were never invited cannot respond.
func (s *EventService) Respond(ctx context.Context, eventID, userID string, accept bool) error {
	ctx = ensureContext(ctx)

	event, err := s.Get(ctx, eventID)
	if err != nil {
		return err
	}

	isGuest := containsUser(event.Guests, userID)
	isAttendee := containsUser(event.Attendees, userID)
	if !isGuest && !isAttendee {
		return apperrors.ErrForbidden.WithMessage("you are not invited to this event")
	}

	user := models.User{ID: userID}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if isGuest {
			if err := tx.Model(event).Association("Guests").Delete(&user); err != nil {
				return fmt.Errorf("event service: remove guest: %w", err)
			}
		}
		if accept && !isAttendee {
			if err := tx.Model(event).Association("Attendees").Append(&user); err != nil {
				return fmt.Errorf("event service: add attendee: %w", err)
			}
		}
		if !accept && isAttendee {
			if err := tx.Model(event).Association("Attendees").Delete(&user); err != nil {
				return fmt.Errorf("event service: remove attendee: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	eventType := EventEventAccepted
	if !accept {
		eventType = EventEventDeclined
	}
	s.notifier.Emit(ctx, []string{event.OrganizerID}, eventType,
		"Event response",
		fmt.Sprintf("a guest responded to %q", event.Title),
		map[string]any{"event_id": event.ID, "user_id": userID, "accepted": accept})

	return nil
}

// Get loads an event with organizer, guests and attendees.
func (s *EventService) Get(ctx context.Context, eventID string) (*models.Event, error) {
	ctx = ensureContext(ctx)

	var event models.Event
	if err := s.db.WithContext(ctx).
		Preload("Organizer").Preload("Guests").Preload("Attendees").
		First(&event, "id = ?", eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("event service: load event: %w", err)
	}
	return &event, nil
}

// ListForUser returns the events the user organizes, attends or is invited
// to, ordered by start time.
func (s *EventService) ListForUser(ctx context.Context, userID string) ([]models.Event, error) {
	ctx = ensureContext(ctx)

	var events []models.Event
	if err := s.db.WithContext(ctx).
		Preload("Guests").Preload("Attendees").
		Where("organizer_id = ?", userID).
		Or("id IN (?)", s.db.Table("event_guests").Select("event_id").Where("user_id = ?", userID)).
		Or("id IN (?)", s.db.Table("event_attendees").Select("event_id").Where("user_id = ?", userID)).
		Order("beginning ASC").
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("event service: list events: %w", err)
	}
	return events, nil
}

func (s *EventService) loadOwnedEvent(ctx context.Context, eventID, actorID string) (*models.Event, error) {
	event, err := s.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.OrganizerID != actorID {
		return nil, apperrors.ErrForbidden.WithMessage("only the organizer can modify this event")
	}
	return event, nil
}

func (s *EventService) loadGuests(ctx context.Context, organizerID string, guestIDs []string) ([]models.User, error) {
	if len(guestIDs) == 0 {
		return nil, nil
	}

	for _, id := range guestIDs {
		if id == organizerID {
			return nil, apperrors.NewBadRequest("the organizer cannot be invited as a guest")
		}
	}

	var guests []models.User
	if err := s.db.WithContext(ctx).
		Where("id IN ? AND is_deleted = ?", guestIDs, false).
		Find(&guests).Error; err != nil {
		return nil, fmt.Errorf("event service: load guests: %w", err)
	}
	if len(guests) != len(guestIDs) {
		return nil, apperrors.ErrNotFound.WithMessage("one or more invited users do not exist")
	}
	return guests, nil
}

func (s *EventService) participantIDs(event *models.Event) []string {
	ids := make([]string, 0, len(event.Guests)+len(event.Attendees))
	for _, u := range event.Guests {
		ids = append(ids, u.ID)
	}
	for _, u := range event.Attendees {
		ids = append(ids, u.ID)
	}
	return ids
}

func containsUser(users []models.User, userID string) bool {
	for _, u := range users {
		if u.ID == userID {
			return true
		}
	}
	return false
}
