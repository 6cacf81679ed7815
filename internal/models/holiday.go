package models

import "time"

const (
	HolidayNational  = "national"
	HolidayReligious = "religious"
	HolidayCultural  = "cultural"
	HolidayRegional  = "regional"
)

// Holiday is a festival-calendar entry. Seeded by migration, read-only.
type Holiday struct {
	ID          int       `json:"id"`
	Date        time.Time `json:"date"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Description *string   `json:"description,omitempty"`
}
