package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"parking-ticket-backend/internal/events"
	"parking-ticket-backend/internal/expiry"
	"parking-ticket-backend/internal/models"
	"parking-ticket-backend/internal/notify"
	"parking-ticket-backend/internal/repository"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ExpiredTicketStore is the part of the ticket store the sweep uses
type ExpiredTicketStore interface {
	ListExpiredUnnotified(ctx context.Context, now time.Time) ([]*models.Ticket, error)
	MarkNotified(ctx context.Context, ids []string) ([]string, error)
}

// UserLookup resolves ticket owners. A missing user is repository.ErrNotFound.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// EmailSender delivers expiry emails
type EmailSender interface {
	Send(ctx context.Context, email notify.Email) error
}

// PushSender delivers expiry push notifications
type PushSender interface {
	Send(ctx context.Context, push notify.Push) error
}

// ImageFetcher loads ticket images for email attachments
type ImageFetcher interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// ExpiryListener is told about tickets after their notified flag is committed
type ExpiryListener interface {
	TicketExpired(userID, ticketID string, notifiedAt time.Time)
}

// SweepDeps wires the sweep to its store and channels.
// Images, Publisher and Listener are optional.
type SweepDeps struct {
	Tickets   ExpiredTicketStore
	Users     UserLookup
	Email     EmailSender
	Push      PushSender
	Images    ImageFetcher
	Publisher events.Publisher
	Listener  ExpiryListener
}

// SweepOptions tunes a sweep
type SweepOptions struct {
	DisplayZone    *time.Location
	ChannelTimeout time.Duration
	Now            func() time.Time
}

// SweepResult summarizes one sweep
type SweepResult struct {
	StartedAt     time.Time
	Matched       int
	Notified      int
	EmailsSent    int
	EmailFailures int
	PushesSent    int
	PushFailures  int
	PushSkipped   int
	SkippedUsers  int
	Deferred      int
}

// SweepService finds expired tickets, notifies their owners by email and
// push, and marks them notified in a single commit.
//
// Channel failures are logged and never stop a ticket from being marked.
// Callers must not run two sweeps at once; see scheduler.Scheduler.
type SweepService struct {
	deps SweepDeps
	opts SweepOptions
}

// NewSweepService creates a sweep service
func NewSweepService(deps SweepDeps, opts SweepOptions) *SweepService {
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}
	if opts.DisplayZone == nil {
		opts.DisplayZone = time.UTC
	}
	if opts.ChannelTimeout <= 0 {
		opts.ChannelTimeout = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &SweepService{deps: deps, opts: opts}
}

// Run performs one sweep. Only loading the batch or committing the flags
// can fail it; a failed commit persists nothing and the next sweep retries
// the same tickets.
func (s *SweepService) Run(ctx context.Context) (*SweepResult, error) {
	now := s.opts.Now().UTC()
	result := &SweepResult{StartedAt: now}

	tickets, err := s.deps.Tickets.ListExpiredUnnotified(ctx, now)
	if err != nil {
		return result, fmt.Errorf("failed to load expired tickets: %w", err)
	}
	result.Matched = len(tickets)

	if len(tickets) == 0 {
		log.Debug().Time("now", now).Msg("No expired tickets found")
		return result, nil
	}
	log.Info().Int("count", len(tickets)).Time("now", now).Msg("Found expired tickets")

	marked := make([]*models.Ticket, 0, len(tickets))
	for _, ticket := range tickets {
		if ticket.Notified || !expiry.TicketExpired(ticket, now) {
			continue
		}
		if s.notifyTicket(ctx, ticket, result) {
			ticket.Notified = true
			marked = append(marked, ticket)
		}
	}

	ids := make([]string, len(marked))
	for i, ticket := range marked {
		ids[i] = ticket.ID
	}
	updated, err := s.deps.Tickets.MarkNotified(ctx, ids)
	if err != nil {
		for _, ticket := range marked {
			ticket.Notified = false
		}
		return result, fmt.Errorf("failed to mark %d tickets notified: %w", len(ids), err)
	}
	result.Notified = len(updated)

	committed := make(map[string]bool, len(updated))
	for _, id := range updated {
		committed[id] = true
	}
	announced := make([]*models.Ticket, 0, len(updated))
	for _, ticket := range marked {
		if committed[ticket.ID] {
			announced = append(announced, ticket)
		} else {
			log.Info().Str("ticket_id", ticket.ID).Msg("Ticket changed before commit, not announced")
		}
	}

	log.Info().
		Int("matched", result.Matched).
		Int("notified", result.Notified).
		Int("emails_sent", result.EmailsSent).
		Int("email_failures", result.EmailFailures).
		Int("pushes_sent", result.PushesSent).
		Int("push_failures", result.PushFailures).
		Int("deferred", result.Deferred).
		Msg("Expiry sweep committed")

	s.announce(ctx, announced, now)
	return result, nil
}

// notifyTicket attempts both channels and reports whether the ticket may be marked
func (s *SweepService) notifyTicket(ctx context.Context, ticket *models.Ticket, result *SweepResult) bool {
	logger := log.With().Str("ticket_id", ticket.ID).Str("user_id", ticket.UserID).Logger()

	user, err := s.deps.Users.GetByID(ctx, ticket.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		logger.Info().Msg("Ticket owner no longer exists, marking without notification")
		result.SkippedUsers++
		return true
	}
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load ticket owner, deferring to next sweep")
		result.Deferred++
		return false
	}

	if err := s.sendEmail(ctx, user, ticket); err != nil {
		logDeliveryError(logger, notify.ChannelEmail, err)
		result.EmailFailures++
	} else {
		logger.Info().Str("recipient", user.Email).Msg("Expiry email sent")
		result.EmailsSent++
	}

	if user.PushToken == nil || *user.PushToken == "" {
		logger.Debug().Msg("User has no push token stored")
		result.PushSkipped++
		return true
	}
	push := notify.TicketPush(*user.PushToken, ticket, s.opts.DisplayZone)
	err = s.attempt(ctx, func(ctx context.Context) error { return s.deps.Push.Send(ctx, push) })
	if err != nil {
		logDeliveryError(logger, notify.ChannelPush, err)
		result.PushFailures++
	} else {
		logger.Info().Msg("Expiry push sent")
		result.PushesSent++
	}
	return true
}

func (s *SweepService) sendEmail(ctx context.Context, user *models.User, ticket *models.Ticket) error {
	email := notify.TicketEmail(user, ticket, s.opts.DisplayZone)

	if ticket.HasImage() {
		if s.deps.Images == nil {
			log.Warn().Str("ticket_id", ticket.ID).Msg("Image storage not configured, sending without attachment")
		} else {
			var data []byte
			err := s.attempt(ctx, func(ctx context.Context) error {
				var err error
				data, err = s.deps.Images.Get(ctx, *ticket.ImageKey)
				return err
			})
			if err != nil {
				log.Warn().Err(err).Str("ticket_id", ticket.ID).Msg("Failed to load ticket image, sending without attachment")
			} else {
				email.AttachImage(data)
			}
		}
	}

	return s.attempt(ctx, func(ctx context.Context) error { return s.deps.Email.Send(ctx, email) })
}

// attempt runs one channel call under the channel timeout and turns a panic into an error
func (s *SweepService) attempt(ctx context.Context, fn func(context.Context) error) (err error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ChannelTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("channel panic: %v", r)
		}
	}()
	return fn(ctx)
}

// announce publishes events and feeds the live listener for committed tickets.
// After the first failed publish the rest of the batch is not published.
func (s *SweepService) announce(ctx context.Context, tickets []*models.Ticket, now time.Time) {
	publishing := true
	for i, ticket := range tickets {
		if publishing {
			event := events.TicketExpiredEvent{
				TicketID:      ticket.ID,
				UserID:        ticket.UserID,
				VehicleNumber: ticket.VehicleNumber,
				Location:      ticket.Location,
				ExpiredAt:     ticket.ExpiryTime.On(ticket.ExpiryDate, time.UTC),
				NotifiedAt:    now,
			}
			err := s.attempt(ctx, func(ctx context.Context) error {
				return s.deps.Publisher.PublishTicketExpired(ctx, event)
			})
			if err != nil {
				log.Warn().
					Err(err).
					Str("ticket_id", ticket.ID).
					Int("skipped", len(tickets)-i-1).
					Msg("Failed to publish ticket expired event, skipping rest of batch")
				publishing = false
			}
		}
		if s.deps.Listener != nil {
			s.deps.Listener.TicketExpired(ticket.UserID, ticket.ID, now)
		}
	}
}

func logDeliveryError(logger zerolog.Logger, channel string, err error) {
	if notify.IsConfiguration(err) {
		logger.Error().Err(err).Str("channel", channel).Str("kind", "configuration").Msg("Notification channel misconfigured")
		return
	}
	logger.Warn().Err(err).Str("channel", channel).Str("kind", "transient").Msg("Notification delivery failed")
}
