package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/developer-yasir/support-panel/internal/domain"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// DB is the subset of *pgxpool.Pool the repositories use.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TicketFilter captures list parameters. CreatedBefore is exclusive.
type TicketFilter struct {
	Statuses      []domain.TicketStatus
	Priorities    []domain.TicketPriority
	SearchTerm    *string
	CreatedFrom   *time.Time
	CreatedBefore *time.Time
	Limit         int
	Offset        int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByExternalKey(ctx context.Context, key string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	CountStats(ctx context.Context, window domain.FilterWindow) (domain.TicketCounts, error)
}

type ticketRepository struct {
	db DB
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DB) TicketRepository {
	return &ticketRepository{db: db}
}

const ticketColumns = `id, external_key, title, description, status, priority, created_at, updated_at, closed_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (external_key, title, description, status, priority)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		ticket.ExternalKey,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, status=$3, priority=$4, closed_at=$5, updated_at=NOW()
        WHERE id=$6
        RETURNING updated_at`
	return r.db.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.ClosedAt,
		ticket.ID,
	).Scan(&ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=$1`, id)
}

func (r *ticketRepository) GetByExternalKey(ctx context.Context, key string) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE external_key=$1`, key)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := scanTicket(r.db.QueryRow(ctx, query, arg), &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	query, args := buildListQuery(filter)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

// CountStats returns the aggregate counters for tickets created inside
// window. High priority covers both high and urgent tickets.
func (r *ticketRepository) CountStats(ctx context.Context, window domain.FilterWindow) (domain.TicketCounts, error) {
	query, args := buildStatsQuery(window)
	var counts domain.TicketCounts
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&counts.TotalTickets,
		&counts.OpenTickets,
		&counts.InProgressTickets,
		&counts.HighPriorityTickets,
	)
	if err != nil {
		return domain.TicketCounts{}, fmt.Errorf("count ticket stats: %w", err)
	}
	return counts, nil
}

func buildListQuery(filter TicketFilter) (string, []any) {
	clauses, args := createdClauses(filter.CreatedFrom, filter.CreatedBefore)

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)
	return query, args
}

func buildStatsQuery(window domain.FilterWindow) (string, []any) {
	clauses, args := createdClauses(window.CreatedFrom(), window.CreatedBefore())
	query := fmt.Sprintf(`SELECT
            COUNT(*),
            COUNT(*) FILTER (WHERE status = 'open'),
            COUNT(*) FILTER (WHERE status = 'in_progress'),
            COUNT(*) FILTER (WHERE priority IN ('high', 'urgent'))
        FROM tickets WHERE %s`, strings.Join(clauses, " AND "))
	return query, args
}

func createdClauses(from, before *time.Time) ([]string, []any) {
	clauses := []string{"1=1"}
	args := []any{}
	if from != nil {
		args = append(args, *from)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if before != nil {
		args = append(args, *before)
		clauses = append(clauses, fmt.Sprintf("created_at < $%d", len(args)))
	}
	return clauses, args
}

func scanTicket(row pgx.Row, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.ExternalKey,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ClosedAt,
	)
}
