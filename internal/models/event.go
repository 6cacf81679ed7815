package models

import (
	"time"

	"github.com/google/uuid"
)

// Event is a catalogue entry: fests, workshops, tournaments. Read-mostly
// content with no attendance logic of its own.
type Event struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Location    string     `json:"location"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
	Prize       string     `json:"prize"`
	ImageURL    *string    `json:"image_url"`
	OrganizerID uuid.UUID  `json:"organizer_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type EventRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Location    string     `json:"location"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
	Prize       string     `json:"prize"`
	ImageURL    *string    `json:"image_url"`
}
