// Package expiry decides when a parking ticket has run out and converts
// stored expiry values into the zone shown to users.
//
// Stored dates and times are naive values with UTC semantics. The
// predicate compares them against now in UTC only; the display zone is
// used for rendering and nothing else.
package expiry

import (
	"fmt"
	"time"

	"parking-ticket-backend/internal/models"
)

// DefaultDisplayZone is the zone human-facing timestamps are rendered in
const DefaultDisplayZone = "Europe/Warsaw"

// Cutoff splits now into the UTC calendar date and time of day that a
// ticket's stored expiry is compared against.
func Cutoff(now time.Time) (time.Time, models.TimeOfDay) {
	now = now.UTC()
	date := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return date, models.TimeOfDayOf(now)
}

// Expired reports whether a ticket expiring at (date, tod) has expired at now.
// The boundary is inclusive: a ticket expiring exactly now is expired.
func Expired(date time.Time, tod models.TimeOfDay, now time.Time) bool {
	today, clock := Cutoff(now)
	switch c := compareDates(date, today); {
	case c < 0:
		return true
	case c == 0:
		return tod <= clock
	default:
		return false
	}
}

// TicketExpired applies Expired to a ticket's stored expiry
func TicketExpired(t *models.Ticket, now time.Time) bool {
	return Expired(t.ExpiryDate, t.ExpiryTime, now)
}

func compareDates(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	switch {
	case ay != by:
		return cmp(ay, by)
	case am != bm:
		return cmp(int(am), int(bm))
	default:
		return cmp(ad, bd)
	}
}

func cmp(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// ToDisplayZone converts a stored UTC (date, time of day) into loc
func ToDisplayZone(date time.Time, tod models.TimeOfDay, loc *time.Location) time.Time {
	return tod.On(date, time.UTC).In(loc)
}

// LoadZone resolves a zone name, defaulting to DefaultDisplayZone
func LoadZone(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultDisplayZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load display zone %q: %w", name, err)
	}
	return loc, nil
}
