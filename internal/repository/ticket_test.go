package repository

import (
	"strings"
	"testing"
	"time"

	"parking-ticket-backend/internal/models"

	"github.com/jackc/pgx/v5/pgtype"
)

func TestSearchQueryNoFilter(t *testing.T) {
	query, args := searchQuery("u1", TicketFilter{})
	if !strings.Contains(query, "WHERE user_id = $1 ORDER BY") {
		t.Fatalf("unexpected query %s", query)
	}
	if len(args) != 1 || args[0] != "u1" {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestSearchQueryAllFilters(t *testing.T) {
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	tod := models.NewTimeOfDay(11, 30, 0)
	hour := 11
	query, args := searchQuery("u1", TicketFilter{
		Date:          &date,
		Location:      "50%_off",
		VehicleNumber: "wa",
		Time:          &tod,
		Hour:          &hour,
	})

	for _, cond := range []string{
		"expiry_date = $2",
		"location ILIKE $3",
		"vehicle_number ILIKE $4",
		"expiry_time = $5",
		"EXTRACT(HOUR FROM expiry_time) = $6",
	} {
		if !strings.Contains(query, cond) {
			t.Fatalf("expected %q in %s", cond, query)
		}
	}
	if len(args) != 6 {
		t.Fatalf("expected 6 args, got %d", len(args))
	}
	if args[2] != `%50\%\_off%` {
		t.Fatalf("expected escaped pattern, got %v", args[2])
	}
	if p, ok := args[4].(pgtype.Time); !ok || p.Microseconds != tod.Microseconds() || !p.Valid {
		t.Fatalf("unexpected time arg %v", args[4])
	}
}

func TestEscapeLike(t *testing.T) {
	cases := map[string]string{
		"plain":   "plain",
		"a%b":     `a\%b`,
		"a_b":     `a\_b`,
		`back\sl`: `back\\sl`,
	}
	for in, want := range cases {
		if got := escapeLike(in); got != want {
			t.Fatalf("escapeLike(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExpiredQuery(t *testing.T) {
	now := time.Date(2026, 3, 10, 14, 5, 30, 123456789, time.FixedZone("CET", 3600))
	query, args := expiredQuery(now)

	for _, cond := range []string{
		"notified = false",
		"expiry_date < $1",
		"expiry_date = $1 AND expiry_time <= $2",
	} {
		if !strings.Contains(query, cond) {
			t.Fatalf("expected %q in %s", cond, query)
		}
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(args))
	}

	date, ok := args[0].(time.Time)
	if !ok || !date.Equal(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)) || date.Location() != time.UTC {
		t.Fatalf("expected UTC midnight of the UTC day, got %v", args[0])
	}
	tod, ok := args[1].(pgtype.Time)
	want := models.NewTimeOfDay(13, 5, 30).Microseconds() + 123456
	if !ok || !tod.Valid || tod.Microseconds != want {
		t.Fatalf("expected UTC time of day %d µs, got %v", want, args[1])
	}
}

func TestExpiredQueryAcrossUTCMidnight(t *testing.T) {
	// 00:30 in Warsaw winter time is still the previous day in UTC
	warsaw, err := time.LoadLocation("Europe/Warsaw")
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}
	_, args := expiredQuery(time.Date(2026, 1, 2, 0, 30, 0, 0, warsaw))

	if date := args[0].(time.Time); !date.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected 2026-01-01, got %v", date)
	}
	if tod := args[1].(pgtype.Time); tod.Microseconds != models.NewTimeOfDay(23, 30, 0).Microseconds() {
		t.Fatalf("expected 23:30 UTC, got %d µs", tod.Microseconds)
	}
}

func TestMarkNotifiedQuery(t *testing.T) {
	for _, part := range []string{
		"SET notified = true",
		"id = ANY($1::text[]::uuid[])",
		"AND notified = false",
		"RETURNING id",
	} {
		if !strings.Contains(markNotifiedQuery, part) {
			t.Fatalf("expected %q in %s", part, markNotifiedQuery)
		}
	}
}
