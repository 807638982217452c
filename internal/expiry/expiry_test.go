package expiry

import (
	"testing"
	"time"

	"parking-ticket-backend/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestExpired(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 30, 0, 0, time.UTC)

	cases := []struct {
		name string
		date time.Time
		tod  models.TimeOfDay
		want bool
	}{
		{"yesterday late", date(2026, 3, 9), models.NewTimeOfDay(23, 59, 59), true},
		{"last year", date(2025, 12, 31), models.NewTimeOfDay(0, 0, 0), true},
		{"today earlier", date(2026, 3, 10), models.NewTimeOfDay(8, 0, 0), true},
		{"today exactly now", date(2026, 3, 10), models.NewTimeOfDay(12, 30, 0), true},
		{"today one second later", date(2026, 3, 10), models.NewTimeOfDay(12, 30, 1), false},
		{"tomorrow early", date(2026, 3, 11), models.NewTimeOfDay(0, 0, 0), false},
		{"next month", date(2026, 4, 1), models.NewTimeOfDay(0, 0, 0), false},
	}
	for _, tc := range cases {
		if got := Expired(tc.date, tc.tod, now); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestExpiredUsesUTCNotLocalNow(t *testing.T) {
	warsaw, err := LoadZone("")
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}
	// 00:30 in Warsaw on March 11 is still March 10 23:30 UTC.
	now := time.Date(2026, 3, 11, 0, 30, 0, 0, warsaw)

	if Expired(date(2026, 3, 11), models.NewTimeOfDay(0, 0, 0), now) {
		t.Fatalf("expected ticket stored for March 11 UTC to be live")
	}
	if !Expired(date(2026, 3, 10), models.NewTimeOfDay(23, 30, 0), now) {
		t.Fatalf("expected ticket at the UTC boundary to be expired")
	}
}

func TestCutoff(t *testing.T) {
	now := time.Date(2026, 7, 1, 5, 6, 7, 891234567, time.UTC)
	d, tod := Cutoff(now)
	if !d.Equal(date(2026, 7, 1)) {
		t.Fatalf("unexpected date %v", d)
	}
	want := models.TimeOfDay(5*time.Hour + 6*time.Minute + 7*time.Second + 891234*time.Microsecond)
	if tod != want {
		t.Fatalf("expected %v, got %v", time.Duration(want), time.Duration(tod))
	}
}

func TestToDisplayZone(t *testing.T) {
	warsaw, err := LoadZone(DefaultDisplayZone)
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}

	winter := ToDisplayZone(date(2026, 1, 15), models.NewTimeOfDay(23, 30, 0), warsaw)
	if got := winter.Format("2006-01-02 15:04"); got != "2026-01-16 00:30" {
		t.Fatalf("winter conversion: got %s", got)
	}
	summer := ToDisplayZone(date(2026, 7, 15), models.NewTimeOfDay(10, 0, 0), warsaw)
	if got := summer.Format("2006-01-02 15:04"); got != "2026-07-15 12:00" {
		t.Fatalf("summer conversion: got %s", got)
	}
}

func TestLoadZoneRejectsUnknown(t *testing.T) {
	if _, err := LoadZone("Mars/Olympus_Mons"); err == nil {
		t.Fatalf("expected unknown zone to error")
	}
}
