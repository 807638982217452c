// Package events defines ticket lifecycle messages published to the broker.
package events

import "time"

// TicketExpiredEvent is published once a ticket's expiry notification
// has been committed. Consumers get enough to audit or fan out further
// without querying the ticket store.
type TicketExpiredEvent struct {
	TicketID      string    `json:"ticket_id"`
	UserID        string    `json:"user_id"`
	VehicleNumber string    `json:"vehicle_number"`
	Location      string    `json:"location"`
	ExpiredAt     time.Time `json:"expired_at"`
	NotifiedAt    time.Time `json:"notified_at"`
}
