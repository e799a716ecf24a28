package repository

import (
	"context"

	"github.com/developer-yasir/support-panel/internal/domain"
)

const maxHistoryPage = 200

// TicketHistoryRepository stores audit entries.
type TicketHistoryRepository interface {
	Create(ctx context.Context, history *domain.TicketHistory) error
	ListByTicket(ctx context.Context, ticketID string, limit int) ([]domain.TicketHistory, error)
}

type ticketHistoryRepository struct {
	db DB
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(db DB) TicketHistoryRepository {
	return &ticketHistoryRepository{db: db}
}

func (r *ticketHistoryRepository) Create(ctx context.Context, history *domain.TicketHistory) error {
	const query = `
        INSERT INTO ticket_history (ticket_id, changed_by_type, changed_by_id, change_type, old_value, new_value)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		history.TicketID,
		history.ChangedByType,
		history.ChangedByID,
		history.ChangeType,
		history.OldValue,
		history.NewValue,
	).Scan(&history.ID, &history.CreatedAt)
}

// ListByTicket returns the newest entries first.
func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID string, limit int) ([]domain.TicketHistory, error) {
	if limit <= 0 || limit > maxHistoryPage {
		limit = maxHistoryPage
	}
	const query = `
        SELECT id, ticket_id, changed_by_type, changed_by_id, change_type, old_value, new_value, created_at
        FROM ticket_history WHERE ticket_id=$1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.db.Query(ctx, query, ticketID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketHistory
	for rows.Next() {
		var history domain.TicketHistory
		if err := rows.Scan(
			&history.ID,
			&history.TicketID,
			&history.ChangedByType,
			&history.ChangedByID,
			&history.ChangeType,
			&history.OldValue,
			&history.NewValue,
			&history.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, history)
	}
	return result, rows.Err()
}
