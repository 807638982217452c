package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"parking-ticket-backend/internal/expiry"
	"parking-ticket-backend/internal/models"
)

func testTicket() (*models.User, *models.Ticket) {
	user := &models.User{ID: "u1", Email: "test@example.com", Name: "Test", Surname: "User"}
	ticket := &models.Ticket{
		ID:            "t1",
		UserID:        "u1",
		VehicleNumber: "ABC123",
		Location:      "Test St.",
		ExpiryDate:    time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		ExpiryTime:    models.NewTimeOfDay(23, 30, 15),
		UploadedAt:    time.Date(2026, 1, 14, 8, 0, 0, 0, time.UTC),
	}
	return user, ticket
}

func warsaw(t *testing.T) *time.Location {
	t.Helper()
	loc, err := expiry.LoadZone(expiry.DefaultDisplayZone)
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}
	return loc
}

func TestTicketEmail(t *testing.T) {
	user, ticket := testTicket()
	email := TicketEmail(user, ticket, warsaw(t))

	if email.To != "test@example.com" {
		t.Fatalf("unexpected recipient %s", email.To)
	}
	if email.Subject != "Przeterminowany bilet parkingowy" {
		t.Fatalf("unexpected subject %s", email.Subject)
	}
	for _, want := range []string{
		"Cześć Test!",
		"Bilet dodany dnia 2026-01-14",
		"stracił ważność dnia 2026-01-16 o godzinie 00:30:15",
		"Lokalizacja: Test St.",
		"Numer pojazdu: ABC123",
	} {
		if !strings.Contains(email.Body, want) {
			t.Fatalf("expected body to contain %q, got:\n%s", want, email.Body)
		}
	}
	if len(email.Attachments) != 0 {
		t.Fatalf("expected no attachments before AttachImage")
	}

	email.AttachImage([]byte{0xff, 0xd8})
	if len(email.Attachments) != 1 {
		t.Fatalf("expected one attachment")
	}
	a := email.Attachments[0]
	if a.Name != "bilet.jpg" || a.ContentType != "image/jpeg" {
		t.Fatalf("unexpected attachment %s %s", a.Name, a.ContentType)
	}
}

func TestTicketPushUsesDisplayZone(t *testing.T) {
	_, ticket := testTicket()
	push := TicketPush("device-token", ticket, warsaw(t))

	if push.DeviceToken != "device-token" {
		t.Fatalf("unexpected token %s", push.DeviceToken)
	}
	want := "Bilet dla pojazdu ABC123 z lokalizacji Test St. stracił ważność dnia 2026-01-16 o 00:30."
	if push.Body != want {
		t.Fatalf("expected %q, got %q", want, push.Body)
	}
	if push.Title != "Przeterminowany bilet parkingowy" {
		t.Fatalf("unexpected title %s", push.Title)
	}
}

func TestSMTPMailerMissingSender(t *testing.T) {
	user, ticket := testTicket()
	mailer := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: 587})

	err := mailer.Send(context.Background(), TicketEmail(user, ticket, time.UTC))
	if !IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if IsTransient(err) {
		t.Fatalf("configuration error must not be transient")
	}
}

func TestDisabledPusher(t *testing.T) {
	err := DisabledPusher{}.Send(context.Background(), Push{DeviceToken: "x"})
	if !IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestTransientUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := transient(ChannelPush, "push: %w", cause)
	if !IsTransient(err) {
		t.Fatalf("expected transient error")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to unwrap")
	}
}

func TestAPNsConfigEnabled(t *testing.T) {
	if (APNsConfig{}).Enabled() {
		t.Fatalf("expected empty config to be disabled")
	}
	if !(APNsConfig{KeyPath: "key.p8"}).Enabled() {
		t.Fatalf("expected key path to enable push")
	}
	if _, err := NewAPNsPusher(APNsConfig{}); !IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
