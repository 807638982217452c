package models

import (
	"fmt"
	"time"
)

// User represents an account owning parking tickets
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Surname      string    `json:"surname"`
	PushToken    *string   `json:"push_token,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Ticket represents a parking ticket uploaded by a user.
// ExpiryDate and ExpiryTime are naive values with UTC semantics.
type Ticket struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	VehicleNumber string    `json:"vehicle_number"`
	Location      string    `json:"location"`
	ExpiryDate    time.Time `json:"-"`
	ExpiryTime    TimeOfDay `json:"-"`
	ImageKey      *string   `json:"-"`
	UploadedAt    time.Time `json:"uploaded_at"`
	Notified      bool      `json:"notified"`
}

// HasImage reports whether the ticket carries an image
func (t *Ticket) HasImage() bool {
	return t.ImageKey != nil && *t.ImageKey != ""
}

// DateString formats the expiry date as YYYY-MM-DD
func (t *Ticket) DateString() string {
	return t.ExpiryDate.Format(DateLayout)
}

// DateLayout is the wire format of ticket dates
const DateLayout = "2006-01-02"

// TimeOfDay is a naive time of day, stored as the offset from midnight
// with microsecond precision (the resolution of a PostgreSQL TIME column).
type TimeOfDay time.Duration

const day = TimeOfDay(24 * time.Hour)

// NewTimeOfDay builds a TimeOfDay from clock components
func NewTimeOfDay(hour, minute, second int) TimeOfDay {
	return TimeOfDay(time.Duration(hour)*time.Hour +
		time.Duration(minute)*time.Minute +
		time.Duration(second)*time.Second)
}

// TimeOfDayOf returns the wall clock of t in t's location, truncated to microseconds
func TimeOfDayOf(t time.Time) TimeOfDay {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return TimeOfDay(t.Sub(midnight).Truncate(time.Microsecond))
}

// ParseTimeOfDay accepts HH:MM and HH:MM:SS
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			return TimeOfDayOf(parsed), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", s)
}

// Valid reports whether the value lies within a single day
func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < day
}

// Hour returns the hour component
func (t TimeOfDay) Hour() int {
	return int(time.Duration(t) / time.Hour)
}

// Microseconds returns the offset from midnight in microseconds
func (t TimeOfDay) Microseconds() int64 {
	return time.Duration(t).Microseconds()
}

// String formats the value as HH:MM:SS
func (t TimeOfDay) String() string {
	d := time.Duration(t)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// On combines the time of day with a calendar date in loc
func (t TimeOfDay) On(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc).Add(time.Duration(t))
}
