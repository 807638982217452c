package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocket message types
const (
	WSTypeTicketExpired = "ticket_expired"
	WSTypeTicketDeleted = "ticket_deleted"
	WSTypeError         = "error"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type      string      `json:"type"`
	Timestamp int64       `json:"timestamp,omitempty"`
	TicketID  string      `json:"ticket_id,omitempty"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// defaultWriteWait bounds a single frame write to a client
const defaultWriteWait = 10 * time.Second

// wsClient serializes writes to one connection
type wsClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsClient) write(data []byte, wait time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(wait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// WSHub manages WebSocket connections, one per user.
// h.mu guards the map only; writes never hold it.
type WSHub struct {
	mu          sync.RWMutex
	connections map[string]*wsClient
	writeWait   time.Duration
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{
		connections: make(map[string]*wsClient),
		writeWait:   defaultWriteWait,
	}
}

// Register registers a new WebSocket connection for a user
func (h *WSHub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Close existing connection if any
	if existing, exists := h.connections[userID]; exists {
		existing.conn.Close()
	}

	h.connections[userID] = &wsClient{conn: conn}

	log.Info().Str("user_id", userID).Msg("WebSocket connection registered")
}

// Unregister removes the WebSocket connection of a user if it is still conn
func (h *WSHub) Unregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, exists := h.connections[userID]; exists && current.conn == conn {
		current.conn.Close()
		delete(h.connections, userID)
		log.Info().Str("user_id", userID).Msg("WebSocket connection unregistered")
	}
}

// SendToUser sends a message to a specific user. A write that does not
// finish within the write wait drops the connection.
func (h *WSHub) SendToUser(userID string, message WSMessage) error {
	h.mu.RLock()
	client, exists := h.connections[userID]
	h.mu.RUnlock()

	if !exists {
		return fmt.Errorf("user %s is not connected", userID)
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := client.write(data, h.writeWait); err != nil {
		h.Unregister(userID, client.conn)
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

// IsOnline checks if a user is online
func (h *WSHub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, exists := h.connections[userID]
	return exists
}

// TicketExpired tells an online owner that a ticket expired and was notified.
// Offline users are skipped silently; email and push already reached them.
func (h *WSHub) TicketExpired(userID, ticketID string, notifiedAt time.Time) {
	if !h.IsOnline(userID) {
		return
	}
	message := WSMessage{
		Type:      WSTypeTicketExpired,
		TicketID:  ticketID,
		Timestamp: notifiedAt.UnixMilli(),
	}
	if err := h.SendToUser(userID, message); err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("ticket_id", ticketID).
			Msg("Failed to send ticket_expired")
	}
}

// TicketDeleted tells an online owner that a ticket was removed
func (h *WSHub) TicketDeleted(userID, ticketID string) {
	if !h.IsOnline(userID) {
		return
	}
	if err := h.SendToUser(userID, WSMessage{Type: WSTypeTicketDeleted, TicketID: ticketID}); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to send ticket_deleted")
	}
}
