package notify

import (
	"fmt"
	"time"

	"parking-ticket-backend/internal/expiry"
	"parking-ticket-backend/internal/models"
)

// Attachment file name and type of a ticket image
const (
	ImageAttachmentName = "bilet.jpg"
	ImageContentType    = "image/jpeg"
)

const expiredTitle = "Przeterminowany bilet parkingowy"

// Email is a single-recipient plain-text message
type Email struct {
	To          string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Attachment is a file attached to an Email
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Push is a notification addressed to one device token
type Push struct {
	DeviceToken string
	Title       string
	Body        string
}

// TicketEmail renders the expiry email for a ticket. The image, if any,
// is attached by the caller with AttachImage.
func TicketEmail(user *models.User, ticket *models.Ticket, zone *time.Location) Email {
	local := expiry.ToDisplayZone(ticket.ExpiryDate, ticket.ExpiryTime, zone)
	body := fmt.Sprintf(`
Cześć %s!

Bilet dodany dnia %s stracił ważność dnia %s o godzinie %s.

Lokalizacja: %s

Numer pojazdu: %s

Jeśli masz pytania, skontaktuj się z nami.

Pozdrawiamy,
Zespół Parking App
`,
		user.Name,
		ticket.UploadedAt.UTC().Format(models.DateLayout),
		local.Format(models.DateLayout),
		local.Format("15:04:05"),
		ticket.Location,
		ticket.VehicleNumber,
	)

	return Email{
		To:      user.Email,
		Subject: expiredTitle,
		Body:    body,
	}
}

// AttachImage adds the ticket image as bilet.jpg
func (e *Email) AttachImage(data []byte) {
	e.Attachments = append(e.Attachments, Attachment{
		Name:        ImageAttachmentName,
		ContentType: ImageContentType,
		Data:        data,
	})
}

// TicketPush renders the expiry push notification for a ticket
func TicketPush(deviceToken string, ticket *models.Ticket, zone *time.Location) Push {
	local := expiry.ToDisplayZone(ticket.ExpiryDate, ticket.ExpiryTime, zone)
	return Push{
		DeviceToken: deviceToken,
		Title:       expiredTitle,
		Body: fmt.Sprintf("Bilet dla pojazdu %s z lokalizacji %s stracił ważność dnia %s o %s.",
			ticket.VehicleNumber, ticket.Location, local.Format(models.DateLayout), local.Format("15:04")),
	}
}
