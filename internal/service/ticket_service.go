package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/developer-yasir/support-panel/internal/clock"
	"github.com/developer-yasir/support-panel/internal/domain"
	"github.com/developer-yasir/support-panel/internal/events"
	"github.com/developer-yasir/support-panel/internal/repository"
	"github.com/developer-yasir/support-panel/internal/sla"
	apperrors "github.com/developer-yasir/support-panel/pkg/util"
)

const (
	maxTitleLength = 200
	// slaScanLimit bounds how many active tickets an SLA summary inspects.
	slaScanLimit = 200
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	history    repository.TicketHistoryRepository
	dispatcher events.Dispatcher
	clock      clock.Clock
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	HistoryRepo repository.TicketHistoryRepository
	Dispatcher  events.Dispatcher
	Clock       clock.Clock
	Logger      *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Priority    string
}

// TicketUpdateInput carries the fields to change. Nil fields stay as they are.
type TicketUpdateInput struct {
	Status   *string
	Priority *string
}

// TicketListFilter describes listing filters.
type TicketListFilter struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	SearchTerm *string
	Window     domain.FilterWindow
	Limit      int
	Offset     int
}

// SLAReport is the SLA overview of active tickets.
type SLAReport struct {
	GeneratedAt time.Time
	Summary     sla.Summary
	MostUrgent  []sla.Assessed
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		history:    deps.HistoryRepo,
		dispatcher: deps.Dispatcher,
		clock:      deps.Clock,
		logger:     deps.Logger,
	}
}

// CreateTicket opens a ticket and announces it as new_ticket.
func (s *TicketService) CreateTicket(ctx context.Context, actor events.Actor, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title is required", map[string]any{"field": "title"})
	}
	if len(title) > maxTitleLength {
		return nil, apperrors.NewValidationError("title too long", map[string]any{"field": "title", "max": maxTitleLength})
	}
	priority := domain.TicketPriorityMedium
	if strings.TrimSpace(input.Priority) != "" {
		p, ok := domain.ParseTicketPriority(input.Priority)
		if !ok {
			return nil, invalidPriority(input.Priority)
		}
		priority = p
	}

	ticket := &domain.Ticket{
		ExternalKey: generateTicketKey(),
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Status:      domain.TicketStatusOpen,
		Priority:    priority,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}
	s.recordHistory(ctx, actor, ticket.ID, domain.ChangeTypeCreated, "", string(ticket.Status))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventNewTicket,
		TicketID: ticket.ID,
		Actor:    actor,
		Payload: events.NewTicketPayload{
			ExternalKey: ticket.ExternalKey,
			Title:       ticket.Title,
			Priority:    ticket.Priority,
			Status:      ticket.Status,
		},
	})
	return ticket, nil
}

// GetTicket fetches one ticket.
func (s *TicketService) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
	}
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
		}
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return ticket, nil
}

// ListTickets returns tickets matching filter, newest first.
func (s *TicketService) ListTickets(ctx context.Context, filter TicketListFilter) ([]domain.Ticket, error) {
	if err := filter.Window.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error(), nil)
	}
	tickets, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		Statuses:      filter.Statuses,
		Priorities:    filter.Priorities,
		SearchTerm:    filter.SearchTerm,
		CreatedFrom:   filter.Window.CreatedFrom(),
		CreatedBefore: filter.Window.CreatedBefore(),
		Limit:         filter.Limit,
		Offset:        filter.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return tickets, nil
}

// UpdateTicket changes status and/or priority and announces the change as
// ticket_update. A request that changes nothing publishes nothing.
func (s *TicketService) UpdateTicket(ctx context.Context, actor events.Actor, id string, input TicketUpdateInput) (*domain.Ticket, error) {
	if input.Status == nil && input.Priority == nil {
		return nil, apperrors.NewValidationError("nothing to update", map[string]any{"fields": []string{"status", "priority"}})
	}
	var (
		newStatus   domain.TicketStatus
		newPriority domain.TicketPriority
		ok          bool
	)
	if input.Status != nil {
		if newStatus, ok = domain.ParseTicketStatus(*input.Status); !ok {
			return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": *input.Status})
		}
	}
	if input.Priority != nil {
		if newPriority, ok = domain.ParseTicketPriority(*input.Priority); !ok {
			return nil, invalidPriority(*input.Priority)
		}
	}

	ticket, err := s.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}

	var payload events.TicketUpdatePayload
	if input.Status != nil && newStatus != ticket.Status {
		if !isValidTransition(ticket.Status, newStatus) {
			return nil, apperrors.NewConflict("invalid status transition", map[string]any{
				"from": ticket.Status,
				"to":   newStatus,
			})
		}
		payload.OldStatus, payload.NewStatus = ticket.Status, newStatus
		ticket.Status = newStatus
		if newStatus.IsTerminal() {
			now := s.clock.Now()
			ticket.ClosedAt = &now
		} else {
			ticket.ClosedAt = nil
		}
	}
	if input.Priority != nil && newPriority != ticket.Priority {
		payload.OldPriority, payload.NewPriority = ticket.Priority, newPriority
		ticket.Priority = newPriority
	}
	if payload == (events.TicketUpdatePayload{}) {
		return ticket, nil
	}

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, fmt.Errorf("update ticket: %w", err)
	}
	if payload.NewStatus != "" {
		s.recordHistory(ctx, actor, ticket.ID, domain.ChangeTypeStatus, string(payload.OldStatus), string(payload.NewStatus))
	}
	if payload.NewPriority != "" {
		s.recordHistory(ctx, actor, ticket.ID, domain.ChangeTypePriority, string(payload.OldPriority), string(payload.NewPriority))
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketUpdate,
		TicketID: ticket.ID,
		Actor:    actor,
		Payload:  payload,
	})
	return ticket, nil
}

// History returns the audit trail of a ticket, newest first.
func (s *TicketService) History(ctx context.Context, id string, limit int) ([]domain.TicketHistory, error) {
	if _, err := s.GetTicket(ctx, id); err != nil {
		return nil, err
	}
	if s.history == nil {
		return []domain.TicketHistory{}, nil
	}
	entries, err := s.history.ListByTicket(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("list ticket history: %w", err)
	}
	if entries == nil {
		entries = []domain.TicketHistory{}
	}
	return entries, nil
}

// Stats returns the aggregate counts for tickets created inside window.
func (s *TicketService) Stats(ctx context.Context, window domain.FilterWindow) (domain.TicketCounts, error) {
	if err := window.Validate(); err != nil {
		return domain.TicketCounts{}, apperrors.NewValidationError(err.Error(), map[string]any{
			"startDate": window.StartParam(),
			"endDate":   window.EndParam(),
		})
	}
	return s.tickets.CountStats(ctx, window)
}

// SLASummary assesses every active ticket against its deadline.
func (s *TicketService) SLASummary(ctx context.Context, limit int) (SLAReport, error) {
	active, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		Statuses: []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusInProgress},
		Limit:    slaScanLimit,
	})
	if err != nil {
		return SLAReport{}, fmt.Errorf("list active tickets: %w", err)
	}
	now := s.clock.Now()
	return SLAReport{
		GeneratedAt: now,
		Summary:     sla.Summarize(active, now),
		MostUrgent:  sla.MostUrgent(active, now, limit),
	}, nil
}

var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen:       {domain.TicketStatusInProgress, domain.TicketStatusResolved, domain.TicketStatusClosed},
	domain.TicketStatusInProgress: {domain.TicketStatusOpen, domain.TicketStatusResolved, domain.TicketStatusClosed},
	domain.TicketStatusResolved:   {domain.TicketStatusClosed, domain.TicketStatusInProgress},
	domain.TicketStatusClosed:     {},
}

func isValidTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

func invalidPriority(raw string) error {
	return apperrors.NewValidationError("unknown priority", map[string]any{
		"priority": raw,
		"allowed":  []domain.TicketPriority{domain.TicketPriorityLow, domain.TicketPriorityMedium, domain.TicketPriorityHigh, domain.TicketPriorityUrgent},
	})
}

func generateTicketKey() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// recordHistory appends an audit entry. The ticket change is already stored,
// so a failed write is logged rather than returned.
func (s *TicketService) recordHistory(ctx context.Context, actor events.Actor, ticketID string, change domain.TicketChangeType, oldValue, newValue string) {
	if s.history == nil {
		return
	}
	entry := &domain.TicketHistory{
		TicketID:      ticketID,
		ChangedByType: actor.Type,
		ChangedByID:   actor.SubjectID,
		ChangeType:    change,
		OldValue:      oldValue,
		NewValue:      newValue,
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Warn("ticket history write failed",
			zap.String("ticket_id", ticketID),
			zap.String("change_type", string(change)),
			zap.Error(err))
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock.Now()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("ticket event delivery failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}
