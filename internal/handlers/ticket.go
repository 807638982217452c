package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"parking-ticket-backend/internal/middleware"
	"parking-ticket-backend/internal/models"
	"parking-ticket-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// maxUploadBody bounds a ticket upload including its base64 image
const maxUploadBody = 16 << 20

// TicketHandler handles ticket HTTP requests
type TicketHandler struct {
	ticketService *services.TicketService
}

// NewTicketHandler creates a new ticket handler
func NewTicketHandler(ticketService *services.TicketService) *TicketHandler {
	return &TicketHandler{
		ticketService: ticketService,
	}
}

// TicketResponse is the client view of a ticket. Date and time are UTC.
type TicketResponse struct {
	ID            string    `json:"id"`
	VehicleNumber string    `json:"vehicle_number"`
	Location      string    `json:"location"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	UploadedAt    time.Time `json:"uploaded_at"`
	Notified      bool      `json:"notified"`
	HasImage      bool      `json:"has_image"`
}

func newTicketResponse(t *models.Ticket) TicketResponse {
	return TicketResponse{
		ID:            t.ID,
		VehicleNumber: t.VehicleNumber,
		Location:      t.Location,
		Date:          t.DateString(),
		Time:          t.ExpiryTime.String()[:5],
		UploadedAt:    t.UploadedAt,
		Notified:      t.Notified,
		HasImage:      t.HasImage(),
	}
}

// Upload handles POST /api/v1/tickets
func (h *TicketHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req services.UploadRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBody)).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ticket, err := h.ticketService.Upload(ctx, userID, req)
	if err != nil {
		h.fail(w, err, userID, "", "Failed to upload ticket")
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("ticket_id", ticket.ID).
		Bool("has_image", ticket.HasImage()).
		Msg("Ticket uploaded")

	respondJSON(w, http.StatusCreated, newTicketResponse(ticket))
}

// Search handles GET /api/v1/tickets
func (h *TicketHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	filter, err := services.ParseFilter(r.URL.Query())
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	tickets, err := h.ticketService.Search(ctx, userID, filter)
	if err != nil {
		h.fail(w, err, userID, "", "Failed to search tickets")
		return
	}

	response := make([]TicketResponse, 0, len(tickets))
	for _, t := range tickets {
		response = append(response, newTicketResponse(t))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tickets": response,
		"total":   len(response),
	})
}

// Get handles GET /api/v1/tickets/{id}
func (h *TicketHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	ticketID := chi.URLParam(r, "id")

	ticket, err := h.ticketService.Get(ctx, userID, ticketID)
	if err != nil {
		h.fail(w, err, userID, ticketID, "Failed to get ticket")
		return
	}
	respondJSON(w, http.StatusOK, newTicketResponse(ticket))
}

// Image handles GET /api/v1/tickets/{id}/image
func (h *TicketHandler) Image(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	ticketID := chi.URLParam(r, "id")

	url, err := h.ticketService.ImageURL(ctx, userID, ticketID)
	if err != nil {
		h.fail(w, err, userID, ticketID, "Failed to presign ticket image")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"url": url})
}

// Delete handles DELETE /api/v1/tickets/{id}
func (h *TicketHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	ticketID := chi.URLParam(r, "id")

	if err := h.ticketService.Delete(ctx, userID, ticketID); err != nil {
		h.fail(w, err, userID, ticketID, "Failed to delete ticket")
		return
	}

	log.Info().Str("user_id", userID).Str("ticket_id", ticketID).Msg("Ticket deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (h *TicketHandler) fail(w http.ResponseWriter, err error, userID, ticketID, msg string) {
	status, message := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("ticket_id", ticketID).
			Msg(msg)
	}
	respondError(w, message, status)
}
