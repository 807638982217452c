package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"parking-ticket-backend/internal/models"
	"parking-ticket-backend/internal/repository"
	"parking-ticket-backend/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const imageURLTTL = 5 * time.Minute

// Errors returned by TicketService
var (
	ErrInvalidDateTime      = errors.New("invalid date or time format")
	ErrInvalidImage         = errors.New("image_base64 is not valid base64")
	ErrImageStorageDisabled = errors.New("image storage is not configured")
	ErrImageNotFound        = errors.New("image not found")
)

var (
	exactTimeFilter = regexp.MustCompile(`^\d{2}:\d{2}$`)
	hourTimeFilter  = regexp.MustCompile(`^(\d{2})(:|:--)?$`)
)

// TicketStore is the persistence TicketService needs
type TicketStore interface {
	Create(ctx context.Context, ticket *models.Ticket) error
	GetByIDForUser(ctx context.Context, id, userID string) (*models.Ticket, error)
	Search(ctx context.Context, userID string, filter repository.TicketFilter) ([]*models.Ticket, error)
	DeleteForUser(ctx context.Context, id, userID string) (*models.Ticket, error)
}

// ImageStore keeps ticket images
type ImageStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// TicketService handles ticket upload, search and deletion
type TicketService struct {
	ticketRepo TicketStore
	images     ImageStore
	hub        *WSHub
}

// NewTicketService creates a new ticket service. images and hub may be nil.
func NewTicketService(ticketRepo TicketStore, images ImageStore, hub *WSHub) *TicketService {
	return &TicketService{
		ticketRepo: ticketRepo,
		images:     images,
		hub:        hub,
	}
}

// UploadRequest represents a ticket upload
type UploadRequest struct {
	VehicleNumber string `json:"vehicle_number"`
	Location      string `json:"location"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	ImageBase64   string `json:"image_base64,omitempty"`
}

// MissingFields lists the required fields left empty
func (r UploadRequest) MissingFields() []string {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"vehicle_number", r.VehicleNumber},
		{"location", r.Location},
		{"date", r.Date},
		{"time", r.Time},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// Upload stores a new ticket for userID. Date and time are UTC.
func (s *TicketService) Upload(ctx context.Context, userID string, req UploadRequest) (*models.Ticket, error) {
	if missing := req.MissingFields(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidInput, strings.Join(missing, ", "))
	}
	date, err := time.Parse(models.DateLayout, req.Date)
	if err != nil {
		return nil, ErrInvalidDateTime
	}
	tod, err := time.Parse("15:04", req.Time)
	if err != nil {
		return nil, ErrInvalidDateTime
	}

	ticket := &models.Ticket{
		ID:            uuid.New().String(),
		UserID:        userID,
		VehicleNumber: req.VehicleNumber,
		Location:      req.Location,
		ExpiryDate:    date.UTC(),
		ExpiryTime:    models.TimeOfDayOf(tod),
		UploadedAt:    time.Now().UTC(),
	}

	if req.ImageBase64 != "" {
		if s.images == nil {
			return nil, ErrImageStorageDisabled
		}
		data, err := base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			return nil, ErrInvalidImage
		}
		key := storage.TicketImageKey(ticket.ID)
		if err := s.images.Put(ctx, key, data, "image/jpeg"); err != nil {
			return nil, fmt.Errorf("failed to store ticket image: %w", err)
		}
		ticket.ImageKey = &key
	}

	if err := s.ticketRepo.Create(ctx, ticket); err != nil {
		if ticket.HasImage() {
			if delErr := s.images.Delete(ctx, *ticket.ImageKey); delErr != nil {
				log.Warn().Err(delErr).Str("ticket_id", ticket.ID).Msg("Failed to clean up image of rejected ticket")
			}
		}
		return nil, err
	}
	return ticket, nil
}

// ParseFilter builds a search filter from query parameters.
// time accepts HH:MM (exact), or HH, HH: and HH:-- (whole hour).
func ParseFilter(values url.Values) (repository.TicketFilter, error) {
	var filter repository.TicketFilter

	if v := values.Get("date"); v != "" {
		date, err := time.Parse(models.DateLayout, v)
		if err != nil {
			return filter, ErrInvalidDateTime
		}
		filter.Date = &date
	}
	filter.Location = values.Get("location")
	filter.VehicleNumber = values.Get("vehicle_number")

	if v := values.Get("time"); v != "" {
		switch {
		case exactTimeFilter.MatchString(v):
			tod, err := models.ParseTimeOfDay(v)
			if err != nil {
				return filter, ErrInvalidDateTime
			}
			filter.Time = &tod
		case hourTimeFilter.MatchString(v):
			hour, err := strconv.Atoi(hourTimeFilter.FindStringSubmatch(v)[1])
			if err != nil || hour > 23 {
				return filter, ErrInvalidDateTime
			}
			filter.Hour = &hour
		}
	}
	return filter, nil
}

// Search lists the user's tickets matching filter
func (s *TicketService) Search(ctx context.Context, userID string, filter repository.TicketFilter) ([]*models.Ticket, error) {
	return s.ticketRepo.Search(ctx, userID, filter)
}

// Get returns one of the user's tickets
func (s *TicketService) Get(ctx context.Context, userID, ticketID string) (*models.Ticket, error) {
	return s.ticketRepo.GetByIDForUser(ctx, ticketID, userID)
}

// ImageURL returns a short-lived download URL for the ticket image
func (s *TicketService) ImageURL(ctx context.Context, userID, ticketID string) (string, error) {
	ticket, err := s.ticketRepo.GetByIDForUser(ctx, ticketID, userID)
	if err != nil {
		return "", err
	}
	if !ticket.HasImage() || s.images == nil {
		return "", ErrImageNotFound
	}
	return s.images.PresignGet(ctx, *ticket.ImageKey, imageURLTTL)
}

// Delete removes one of the user's tickets and its image.
// A sweep that already loaded the ticket finishes normally.
func (s *TicketService) Delete(ctx context.Context, userID, ticketID string) error {
	ticket, err := s.ticketRepo.DeleteForUser(ctx, ticketID, userID)
	if err != nil {
		return err
	}
	if ticket.HasImage() && s.images != nil {
		if err := s.images.Delete(ctx, *ticket.ImageKey); err != nil {
			log.Warn().Err(err).Str("ticket_id", ticket.ID).Msg("Failed to delete ticket image")
		}
	}
	if s.hub != nil {
		s.hub.TicketDeleted(userID, ticketID)
	}
	return nil
}
