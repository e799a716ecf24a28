package dto

import (
	"time"

	"github.com/developer-yasir/support-panel/internal/domain"
	"github.com/developer-yasir/support-panel/internal/sla"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

// UpdateTicketRequest payload. Omitted fields are left unchanged.
type UpdateTicketRequest struct {
	Status   *string `json:"status"`
	Priority *string `json:"priority"`
}

// SLAResponse is the deadline position of an active ticket.
type SLAResponse struct {
	DueAt       time.Time `json:"dueAt"`
	RemainingMs int64     `json:"remainingMs"`
	Tier        sla.Tier  `json:"tier"`
}

// TicketResponse is the wire form of a ticket.
type TicketResponse struct {
	ID          string                `json:"id"`
	ExternalKey string                `json:"externalKey"`
	Title       string                `json:"title"`
	Description string                `json:"description,omitempty"`
	Status      domain.TicketStatus   `json:"status"`
	Priority    domain.TicketPriority `json:"priority"`
	CreatedAt   time.Time             `json:"createdAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
	ClosedAt    *time.Time            `json:"closedAt,omitempty"`
	SLA         *SLAResponse          `json:"sla,omitempty"`
}

// SLASummaryResponse is the tier breakdown of active tickets.
type SLASummaryResponse struct {
	GeneratedAt time.Time        `json:"generatedAt"`
	Summary     sla.Summary      `json:"summary"`
	Total       int              `json:"total"`
	MostUrgent  []TicketResponse `json:"mostUrgent"`
}

// NewTicketResponse converts t, attaching its SLA position at now when the
// ticket is still active.
func NewTicketResponse(t domain.Ticket, now time.Time) TicketResponse {
	resp := TicketResponse{
		ID:          t.ID,
		ExternalKey: t.ExternalKey,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		ClosedAt:    t.ClosedAt,
	}
	if a, ok := sla.AssessTicket(t, now); ok {
		resp.SLA = newSLAResponse(a)
	}
	return resp
}

// NewTicketResponses converts a page of tickets.
func NewTicketResponses(tickets []domain.Ticket, now time.Time) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, NewTicketResponse(t, now))
	}
	return out
}

// NewSLASummaryResponse converts an SLA overview.
func NewSLASummaryResponse(generatedAt time.Time, summary sla.Summary, urgent []sla.Assessed) SLASummaryResponse {
	resp := SLASummaryResponse{
		GeneratedAt: generatedAt,
		Summary:     summary,
		Total:       summary.Total(),
		MostUrgent:  make([]TicketResponse, 0, len(urgent)),
	}
	for _, item := range urgent {
		tr := NewTicketResponse(item.Ticket, generatedAt)
		tr.SLA = newSLAResponse(item.Assessment)
		resp.MostUrgent = append(resp.MostUrgent, tr)
	}
	return resp
}

// Ticket converts the wire form back to the domain type.
func (r TicketResponse) Ticket() domain.Ticket {
	return domain.Ticket{
		ID:          r.ID,
		ExternalKey: r.ExternalKey,
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		Priority:    r.Priority,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		ClosedAt:    r.ClosedAt,
	}
}

func newSLAResponse(a sla.Assessment) *SLAResponse {
	return &SLAResponse{DueAt: a.DueAt, RemainingMs: a.RemainingMillis(), Tier: a.Tier}
}

// TicketHistoryResponse is one audit entry.
type TicketHistoryResponse struct {
	ID            string                  `json:"id"`
	ChangeType    domain.TicketChangeType `json:"changeType"`
	ChangedByType domain.SubjectType      `json:"changedByType"`
	ChangedByID   string                  `json:"changedById"`
	OldValue      string                  `json:"oldValue,omitempty"`
	NewValue      string                  `json:"newValue"`
	CreatedAt     time.Time               `json:"createdAt"`
}

// NewTicketHistoryResponses converts audit entries.
func NewTicketHistoryResponses(entries []domain.TicketHistory) []TicketHistoryResponse {
	out := make([]TicketHistoryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, TicketHistoryResponse{
			ID:            e.ID,
			ChangeType:    e.ChangeType,
			ChangedByType: e.ChangedByType,
			ChangedByID:   e.ChangedByID,
			OldValue:      e.OldValue,
			NewValue:      e.NewValue,
			CreatedAt:     e.CreatedAt,
		})
	}
	return out
}
