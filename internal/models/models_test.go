package models

import (
	"testing"
	"time"
)

func TestParseTimeOfDay(t *testing.T) {
	cases := map[string]string{
		"00:00":    "00:00:00",
		"09:05":    "09:05:00",
		"23:59":    "23:59:00",
		"13:14:15": "13:14:15",
	}
	for input, expect := range cases {
		tod, err := ParseTimeOfDay(input)
		if err != nil {
			t.Fatalf("expected %s to parse: %v", input, err)
		}
		if tod.String() != expect {
			t.Fatalf("expected %s, got %s", expect, tod)
		}
	}
	for _, bad := range []string{"", "24:00", "7", "12:60", "noon"} {
		if _, err := ParseTimeOfDay(bad); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestTimeOfDayComponents(t *testing.T) {
	tod := NewTimeOfDay(17, 45, 30)
	if tod.Hour() != 17 {
		t.Fatalf("expected hour 17, got %d", tod.Hour())
	}
	if !tod.Valid() {
		t.Fatalf("expected valid time of day")
	}
	if TimeOfDay(25 * time.Hour).Valid() {
		t.Fatalf("expected 25h to be invalid")
	}
	on := tod.On(time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC), time.UTC)
	if on != time.Date(2026, 5, 4, 17, 45, 30, 0, time.UTC) {
		t.Fatalf("unexpected combined time %v", on)
	}
	if got := TimeOfDayOf(on); got != tod {
		t.Fatalf("expected round trip, got %s", got)
	}
}
