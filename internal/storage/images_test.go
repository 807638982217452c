package storage

import "testing"

func TestTicketImageKey(t *testing.T) {
	if got := TicketImageKey("abc"); got != "tickets/abc.jpg" {
		t.Fatalf("unexpected key %q", got)
	}
}
