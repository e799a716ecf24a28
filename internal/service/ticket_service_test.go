package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/developer-yasir/support-panel/internal/clock"
	"github.com/developer-yasir/support-panel/internal/domain"
	"github.com/developer-yasir/support-panel/internal/events"
	"github.com/developer-yasir/support-panel/internal/repository"
	"github.com/developer-yasir/support-panel/internal/sla"
	apperrors "github.com/developer-yasir/support-panel/pkg/util"
)

var testNow = time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)

var agent = events.Actor{Type: domain.SubjectTypeAgent, SubjectID: "agent-1"}

type memoryTickets struct {
	mu      sync.Mutex
	clk     clock.Clock
	byID    map[string]domain.Ticket
	filters []repository.TicketFilter

	CountStatsFn func(domain.FilterWindow) (domain.TicketCounts, error)
	UpdateErr    error
}

func newMemoryTickets(clk clock.Clock) *memoryTickets {
	return &memoryTickets{clk: clk, byID: map[string]domain.Ticket{}}
}

func (m *memoryTickets) Create(_ context.Context, t *domain.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = uuid.NewString()
	t.CreatedAt = m.clk.Now()
	t.UpdatedAt = t.CreatedAt
	m.byID[t.ID] = *t
	return nil
}

func (m *memoryTickets) Update(_ context.Context, t *domain.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	if _, ok := m.byID[t.ID]; !ok {
		return pgx.ErrNoRows
	}
	t.UpdatedAt = m.clk.Now()
	m.byID[t.ID] = *t
	return nil
}

func (m *memoryTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &t, nil
}

func (m *memoryTickets) GetByExternalKey(_ context.Context, key string) (*domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.byID {
		if t.ExternalKey == key {
			return &t, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memoryTickets) ListWithFilter(_ context.Context, f repository.TicketFilter) ([]domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filters = append(m.filters, f)
	var out []domain.Ticket
	for _, t := range m.byID {
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, t.Status) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryTickets) CountStats(_ context.Context, w domain.FilterWindow) (domain.TicketCounts, error) {
	if m.CountStatsFn != nil {
		return m.CountStatsFn(w)
	}
	return domain.TicketCounts{}, nil
}

func (m *memoryTickets) put(t domain.Ticket) domain.Ticket {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	m.byID[t.ID] = t
	return t
}

func containsStatus(list []domain.TicketStatus, s domain.TicketStatus) bool {
	for _, c := range list {
		if c == s {
			return true
		}
	}
	return false
}

type memoryHistory struct {
	mu        sync.Mutex
	clk       clock.Clock
	entries   []domain.TicketHistory
	CreateErr error
}

func (m *memoryHistory) Create(_ context.Context, h *domain.TicketHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	h.ID = uuid.NewString()
	h.CreatedAt = m.clk.Now()
	m.entries = append(m.entries, *h)
	return nil
}

func (m *memoryHistory) ListByTicket(_ context.Context, ticketID string, limit int) ([]domain.TicketHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.TicketHistory
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].TicketID == ticketID {
			out = append(out, m.entries[i])
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type serviceFixture struct {
	svc       *TicketService
	repo      *memoryTickets
	history   *memoryHistory
	clk       *clock.FakeClock
	published []events.Event
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{clk: clock.NewFake(testNow)}
	f.repo = newMemoryTickets(f.clk)
	f.history = &memoryHistory{clk: f.clk}
	dispatcher := events.NewInMemoryDispatcher()
	record := func(_ context.Context, ev events.Event) error {
		f.published = append(f.published, ev)
		return nil
	}
	dispatcher.Subscribe(events.EventNewTicket, record)
	dispatcher.Subscribe(events.EventTicketUpdate, record)
	f.svc = NewTicketService(TicketDependencies{
		TicketRepo:  f.repo,
		HistoryRepo: f.history,
		Dispatcher:  dispatcher,
		Clock:       f.clk,
		Logger:      zaptest.NewLogger(t),
	})
	return f
}

func ptr(s string) *string { return &s }

func TestCreateTicketPublishesNewTicket(t *testing.T) {
	f := newServiceFixture(t)

	ticket, err := f.svc.CreateTicket(context.Background(), agent, TicketCreateInput{
		Title:    "  VPN drops every hour ",
		Priority: "URGENT",
	})
	require.NoError(t, err)
	assert.Equal(t, "VPN drops every hour", ticket.Title)
	assert.Equal(t, domain.TicketPriorityUrgent, ticket.Priority)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Regexp(t, `^TCK-[0-9A-F]{8}$`, ticket.ExternalKey)

	require.Len(t, f.published, 1)
	ev := f.published[0]
	assert.Equal(t, events.EventNewTicket, ev.Type)
	assert.Equal(t, ticket.ID, ev.TicketID)
	assert.Equal(t, agent, ev.Actor)
	assert.Equal(t, testNow, ev.Timestamp)
	assert.NotEmpty(t, ev.ID)
	payload, ok := ev.Payload.(events.NewTicketPayload)
	require.True(t, ok)
	assert.Equal(t, ticket.ExternalKey, payload.ExternalKey)
}

func TestCreateTicketDefaultsAndValidation(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	ticket, err := f.svc.CreateTicket(ctx, agent, TicketCreateInput{Title: "Printer"})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityMedium, ticket.Priority)

	_, err = f.svc.CreateTicket(ctx, agent, TicketCreateInput{Title: "   "})
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)

	_, err = f.svc.CreateTicket(ctx, agent, TicketCreateInput{Title: "x", Priority: "critical"})
	de := apperrors.ToDomainError(err)
	assert.Equal(t, "VALIDATION_FAILED", de.Code)
	assert.Equal(t, "critical", de.Details["priority"])

	assert.Len(t, f.published, 1, "rejected tickets are not announced")
}

func TestUpdateTicketStatusAndPriority(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	created, err := f.svc.CreateTicket(ctx, agent, TicketCreateInput{Title: "Laptop", Priority: "low"})
	require.NoError(t, err)

	f.clk.Advance(time.Hour)
	updated, err := f.svc.UpdateTicket(ctx, agent, created.ID, TicketUpdateInput{
		Status:   ptr("in_progress"),
		Priority: ptr("high"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, updated.Status)
	assert.Equal(t, domain.TicketPriorityHigh, updated.Priority)
	assert.Nil(t, updated.ClosedAt)

	require.Len(t, f.published, 2)
	ev := f.published[1]
	assert.Equal(t, events.EventTicketUpdate, ev.Type)
	assert.Equal(t, events.TicketUpdatePayload{
		OldStatus:   domain.TicketStatusOpen,
		NewStatus:   domain.TicketStatusInProgress,
		OldPriority: domain.TicketPriorityLow,
		NewPriority: domain.TicketPriorityHigh,
	}, ev.Payload)

	resolved, err := f.svc.UpdateTicket(ctx, agent, created.ID, TicketUpdateInput{Status: ptr("resolved")})
	require.NoError(t, err)
	require.NotNil(t, resolved.ClosedAt)
	assert.Equal(t, testNow.Add(time.Hour), *resolved.ClosedAt)
}

func TestHistoryRecordsChanges(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	created, err := f.svc.CreateTicket(ctx, agent, TicketCreateInput{Title: "Printer", Priority: "low"})
	require.NoError(t, err)
	_, err = f.svc.UpdateTicket(ctx, agent, created.ID, TicketUpdateInput{Status: ptr("in_progress"), Priority: ptr("urgent")})
	require.NoError(t, err)
	_, err = f.svc.UpdateTicket(ctx, agent, created.ID, TicketUpdateInput{Priority: ptr("urgent")})
	require.NoError(t, err)

	entries, err := f.svc.History(ctx, created.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, domain.ChangeTypePriority, entries[0].ChangeType)
	assert.Equal(t, "low", entries[0].OldValue)
	assert.Equal(t, "urgent", entries[0].NewValue)
	assert.Equal(t, domain.ChangeTypeStatus, entries[1].ChangeType)
	assert.Equal(t, domain.ChangeTypeCreated, entries[2].ChangeType)
	assert.Equal(t, "open", entries[2].NewValue)
	assert.Equal(t, agent.SubjectID, entries[2].ChangedByID)
	assert.Equal(t, agent.Type, entries[2].ChangedByType)

	_, err = f.svc.History(ctx, uuid.NewString(), 10)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestHistoryWriteFailureDoesNotFailUpdate(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	created, err := f.svc.CreateTicket(ctx, agent, TicketCreateInput{Title: "Dock"})
	require.NoError(t, err)

	f.history.CreateErr = errors.New("disk full")
	updated, err := f.svc.UpdateTicket(ctx, agent, created.ID, TicketUpdateInput{Status: ptr("closed")})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, updated.Status)
	assert.Len(t, f.published, 2)
}

func TestUpdateTicketWithoutChangesPublishesNothing(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	created, err := f.svc.CreateTicket(ctx, agent, TicketCreateInput{Title: "Mouse"})
	require.NoError(t, err)

	_, err = f.svc.UpdateTicket(ctx, agent, created.ID, TicketUpdateInput{Status: ptr("open"), Priority: ptr("medium")})
	require.NoError(t, err)
	assert.Len(t, f.published, 1)
}

func TestUpdateTicketRejections(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	closed := f.repo.put(domain.Ticket{Title: "Old", Status: domain.TicketStatusClosed, Priority: domain.TicketPriorityLow})

	_, err := f.svc.UpdateTicket(ctx, agent, closed.ID, TicketUpdateInput{})
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)

	_, err = f.svc.UpdateTicket(ctx, agent, closed.ID, TicketUpdateInput{Status: ptr("reopened")})
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)

	_, err = f.svc.UpdateTicket(ctx, agent, closed.ID, TicketUpdateInput{Status: ptr("open")})
	assert.Equal(t, "CONFLICT", apperrors.ToDomainError(err).Code)

	_, err = f.svc.UpdateTicket(ctx, agent, uuid.NewString(), TicketUpdateInput{Status: ptr("open")})
	assert.True(t, apperrors.IsNotFound(err))

	_, err = f.svc.UpdateTicket(ctx, agent, "not-a-uuid", TicketUpdateInput{Status: ptr("open")})
	assert.True(t, apperrors.IsNotFound(err))

	assert.Empty(t, f.published)
}

func TestUpdateTicketStoreFailure(t *testing.T) {
	f := newServiceFixture(t)
	ticket := f.repo.put(domain.Ticket{Title: "Disk", Status: domain.TicketStatusOpen, Priority: domain.TicketPriorityLow})
	f.repo.UpdateErr = errors.New("connection reset")

	_, err := f.svc.UpdateTicket(context.Background(), agent, ticket.ID, TicketUpdateInput{Priority: ptr("urgent")})
	assert.Equal(t, "INTERNAL_ERROR", apperrors.ToDomainError(err).Code)
	assert.Empty(t, f.published)
}

func TestStatsValidatesWindow(t *testing.T) {
	f := newServiceFixture(t)
	var got domain.FilterWindow
	f.repo.CountStatsFn = func(w domain.FilterWindow) (domain.TicketCounts, error) {
		got = w
		return domain.TicketCounts{TotalTickets: 12, OpenTickets: 5, InProgressTickets: 4, HighPriorityTickets: 3}, nil
	}

	window, err := domain.NewFilterWindow("2026-06-01", "2026-06-30")
	require.NoError(t, err)
	counts, err := f.svc.Stats(context.Background(), window)
	require.NoError(t, err)
	assert.Equal(t, 12, counts.TotalTickets)
	assert.True(t, window.Equal(got))

	inverted := domain.FilterWindow{StartDate: testNow, EndDate: testNow.AddDate(0, 0, -2)}
	_, err = f.svc.Stats(context.Background(), inverted)
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
}

func TestListTicketsMapsWindow(t *testing.T) {
	f := newServiceFixture(t)
	window, _ := domain.NewFilterWindow("2026-06-01", "2026-06-30")

	tickets, err := f.svc.ListTickets(context.Background(), TicketListFilter{Window: window, Limit: 5})
	require.NoError(t, err)
	assert.NotNil(t, tickets)

	require.Len(t, f.repo.filters, 1)
	rf := f.repo.filters[0]
	assert.Equal(t, 5, rf.Limit)
	require.NotNil(t, rf.CreatedFrom)
	require.NotNil(t, rf.CreatedBefore)
	assert.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), *rf.CreatedBefore)
}

func TestSLASummary(t *testing.T) {
	f := newServiceFixture(t)
	f.repo.put(domain.Ticket{Title: "a", Status: domain.TicketStatusOpen, Priority: domain.TicketPriorityUrgent, CreatedAt: testNow.Add(-50 * time.Minute)})
	f.repo.put(domain.Ticket{Title: "b", Status: domain.TicketStatusInProgress, Priority: domain.TicketPriorityHigh, CreatedAt: testNow.Add(-5 * time.Hour)})
	f.repo.put(domain.Ticket{Title: "c", Status: domain.TicketStatusOpen, Priority: domain.TicketPriorityLow, CreatedAt: testNow.Add(-20 * time.Hour)})
	f.repo.put(domain.Ticket{Title: "d", Status: domain.TicketStatusResolved, Priority: domain.TicketPriorityUrgent, CreatedAt: testNow.Add(-9 * time.Hour)})

	report, err := f.svc.SLASummary(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, testNow, report.GeneratedAt)
	assert.Equal(t, sla.Summary{Good: 1, Critical: 1, Overdue: 1}, report.Summary)
	require.Len(t, report.MostUrgent, 2)
	assert.Equal(t, "b", report.MostUrgent[0].Ticket.Title)
	assert.Equal(t, sla.TierOverdue, report.MostUrgent[0].Assessment.Tier)
	assert.Equal(t, "a", report.MostUrgent[1].Ticket.Title)

	require.Len(t, f.repo.filters, 1)
	assert.ElementsMatch(t, []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusInProgress}, f.repo.filters[0].Statuses)
}
