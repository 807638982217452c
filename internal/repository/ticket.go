package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"parking-ticket-backend/internal/expiry"
	"parking-ticket-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ticketColumns = `id, user_id, vehicle_number, location, expiry_date, expiry_time, image_key, uploaded_at, notified`

// TicketFilter narrows a ticket search. Zero values are ignored.
type TicketFilter struct {
	Date          *time.Time
	Location      string
	VehicleNumber string
	Time          *models.TimeOfDay
	Hour          *int
}

// TicketRepository handles database operations for tickets
type TicketRepository struct {
	db *pgxpool.Pool
}

// NewTicketRepository creates a new ticket repository
func NewTicketRepository(db *pgxpool.Pool) *TicketRepository {
	return &TicketRepository{db: db}
}

// Create creates a new ticket
func (r *TicketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	query := `
		INSERT INTO tickets (` + ticketColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		ticket.ID, ticket.UserID, ticket.VehicleNumber, ticket.Location,
		ticket.ExpiryDate, timeParam(ticket.ExpiryTime), ticket.ImageKey,
		ticket.UploadedAt, ticket.Notified,
	)
	if err != nil {
		return fmt.Errorf("failed to create ticket: %w", err)
	}
	return nil
}

// GetByIDForUser retrieves a ticket owned by userID
func (r *TicketRepository) GetByIDForUser(ctx context.Context, id, userID string) (*models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1 AND user_id = $2`
	ticket, err := scanTicket(r.db.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return ticket, nil
}

// Search lists the tickets of userID matching filter
func (r *TicketRepository) Search(ctx context.Context, userID string, filter TicketFilter) ([]*models.Ticket, error) {
	query, args := searchQuery(userID, filter)
	return r.queryTickets(ctx, query, args...)
}

func searchQuery(userID string, filter TicketFilter) (string, []any) {
	conds := []string{"user_id = $1"}
	args := []any{userID}
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Date != nil {
		add("expiry_date = $%d", *filter.Date)
	}
	if filter.Location != "" {
		add("location ILIKE $%d", "%"+escapeLike(filter.Location)+"%")
	}
	if filter.VehicleNumber != "" {
		add("vehicle_number ILIKE $%d", "%"+escapeLike(filter.VehicleNumber)+"%")
	}
	if filter.Time != nil {
		add("expiry_time = $%d", timeParam(*filter.Time))
	}
	if filter.Hour != nil {
		add("EXTRACT(HOUR FROM expiry_time) = $%d", *filter.Hour)
	}

	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY expiry_date DESC, expiry_time DESC`
	return query, args
}

// DeleteForUser deletes a ticket owned by userID and returns it
func (r *TicketRepository) DeleteForUser(ctx context.Context, id, userID string) (*models.Ticket, error) {
	query := `DELETE FROM tickets WHERE id = $1 AND user_id = $2 RETURNING ` + ticketColumns
	ticket, err := scanTicket(r.db.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to delete ticket: %w", err)
	}
	return ticket, nil
}

// ListExpiredUnnotified returns every unnotified ticket expired at now.
// The comparison runs on the stored UTC date and time of day.
func (r *TicketRepository) ListExpiredUnnotified(ctx context.Context, now time.Time) ([]*models.Ticket, error) {
	query, args := expiredQuery(now)
	return r.queryTickets(ctx, query, args...)
}

// expiredQuery selects tickets whose expiry is at or before now (inclusive)
func expiredQuery(now time.Time) (string, []any) {
	date, tod := expiry.Cutoff(now)
	query := `SELECT ` + ticketColumns + ` FROM tickets` +
		` WHERE notified = false` +
		` AND (expiry_date < $1 OR (expiry_date = $1 AND expiry_time <= $2))` +
		` ORDER BY expiry_date, expiry_time`
	return query, []any{date, timeParam(tod)}
}

const markNotifiedQuery = `UPDATE tickets SET notified = true` +
	` WHERE id = ANY($1::text[]::uuid[]) AND notified = false` +
	` RETURNING id::text`

// MarkNotified flips notified for all ids in a single transaction and
// returns the ids actually updated. Ids deleted or already notified since
// they were read are left out.
func (r *TicketRepository) MarkNotified(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var updated []string
	err := withTx(ctx, r.db, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, markNotifiedQuery, ids)
		if err != nil {
			return fmt.Errorf("failed to mark tickets notified: %w", err)
		}
		updated, err = pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return fmt.Errorf("failed to mark tickets notified: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *TicketRepository) queryTickets(ctx context.Context, query string, args ...any) ([]*models.Ticket, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*models.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, ticket)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tickets: %w", err)
	}
	return tickets, nil
}

func scanTicket(row pgx.Row) (*models.Ticket, error) {
	var (
		ticket models.Ticket
		tod    pgtype.Time
	)
	err := row.Scan(
		&ticket.ID, &ticket.UserID, &ticket.VehicleNumber, &ticket.Location,
		&ticket.ExpiryDate, &tod, &ticket.ImageKey, &ticket.UploadedAt, &ticket.Notified,
	)
	if err != nil {
		return nil, err
	}
	ticket.ExpiryTime = models.TimeOfDay(time.Duration(tod.Microseconds) * time.Microsecond)
	ticket.ExpiryDate = ticket.ExpiryDate.UTC()
	return &ticket, nil
}

func timeParam(tod models.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: tod.Microseconds(), Valid: true}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
