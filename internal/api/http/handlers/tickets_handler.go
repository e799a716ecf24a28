package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/developer-yasir/support-panel/internal/api/dto"
	"github.com/developer-yasir/support-panel/internal/auth"
	"github.com/developer-yasir/support-panel/internal/clock"
	"github.com/developer-yasir/support-panel/internal/domain"
	"github.com/developer-yasir/support-panel/internal/events"
	"github.com/developer-yasir/support-panel/internal/service"
	apperrors "github.com/developer-yasir/support-panel/pkg/util"
)

const (
	defaultSLALimit = 10
	maxSLALimit     = 100
)

// TicketService is the subset of the ticket service the HTTP layer calls.
type TicketService interface {
	CreateTicket(ctx context.Context, actor events.Actor, input service.TicketCreateInput) (*domain.Ticket, error)
	GetTicket(ctx context.Context, id string) (*domain.Ticket, error)
	ListTickets(ctx context.Context, filter service.TicketListFilter) ([]domain.Ticket, error)
	UpdateTicket(ctx context.Context, actor events.Actor, id string, input service.TicketUpdateInput) (*domain.Ticket, error)
	History(ctx context.Context, id string, limit int) ([]domain.TicketHistory, error)
	Stats(ctx context.Context, window domain.FilterWindow) (domain.TicketCounts, error)
	SLASummary(ctx context.Context, limit int) (service.SLAReport, error)
}

// TicketsHandler serves ticket endpoints.
type TicketsHandler struct {
	tickets TicketService
	clock   clock.Clock
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets TicketService, clk clock.Clock) *TicketsHandler {
	if clk == nil {
		clk = clock.Real()
	}
	return &TicketsHandler{tickets: tickets, clock: clk}
}

// Stats returns the aggregate counters the dashboard renders.
func (h *TicketsHandler) Stats(c *fiber.Ctx) error {
	window, err := parseWindow(c)
	if err != nil {
		return err
	}
	counts, err := h.tickets.Stats(c.UserContext(), window)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": counts})
}

// SLASummary returns the tier breakdown and the most urgent active tickets.
func (h *TicketsHandler) SLASummary(c *fiber.Ctx) error {
	limit := parseInt(c.Query("limit"), defaultSLALimit)
	if limit <= 0 || limit > maxSLALimit {
		return apperrors.NewValidationError("limit out of range", map[string]any{"limit": c.Query("limit"), "max": maxSLALimit})
	}
	report, err := h.tickets.SLASummary(c.UserContext(), limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSLASummaryResponse(report.GeneratedAt, report.Summary, report.MostUrgent)})
}

// CreateTicket opens a new ticket.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	ticket, err := h.tickets.CreateTicket(c.UserContext(), actor, service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(*ticket, h.clock.Now())})
}

// ListTickets returns tickets matching the query filters.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter, err := parseListQuery(c)
	if err != nil {
		return err
	}
	tickets, err := h.tickets.ListTickets(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.NewTicketResponses(tickets, h.clock.Now()),
		"meta": fiber.Map{"limit": filter.Limit, "offset": filter.Offset, "count": len(tickets)},
	})
}

// GetTicket returns one ticket.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.tickets.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(*ticket, h.clock.Now())})
}

// UpdateTicket changes status and/or priority.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	ticket, err := h.tickets.UpdateTicket(c.UserContext(), actor, c.Params("id"), service.TicketUpdateInput{
		Status:   req.Status,
		Priority: req.Priority,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(*ticket, h.clock.Now())})
}

// History returns the audit trail of a ticket.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	limit := parseInt(c.Query("limit"), 50)
	if limit <= 0 {
		return apperrors.NewValidationError("invalid limit", map[string]any{"limit": c.Query("limit")})
	}
	entries, err := h.tickets.History(c.UserContext(), c.Params("id"), limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketHistoryResponses(entries)})
}

func actorFromContext(c *fiber.Ctx) (events.Actor, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return events.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return events.Actor{Type: principal.SubjectType, SubjectID: principal.SubjectID}, nil
}

func parseWindow(c *fiber.Ctx) (domain.FilterWindow, error) {
	window, err := domain.NewFilterWindow(c.Query("startDate"), c.Query("endDate"))
	if err != nil {
		return domain.FilterWindow{}, apperrors.NewValidationError(err.Error(), map[string]any{
			"startDate": c.Query("startDate"),
			"endDate":   c.Query("endDate"),
		})
	}
	return window, nil
}

func parseListQuery(c *fiber.Ctx) (service.TicketListFilter, error) {
	window, err := parseWindow(c)
	if err != nil {
		return service.TicketListFilter{}, err
	}
	filter := service.TicketListFilter{
		Window: window,
		Limit:  parseInt(c.Query("limit"), 20),
		Offset: parseInt(c.Query("offset"), 0),
	}
	if filter.Limit <= 0 || filter.Offset < 0 {
		return service.TicketListFilter{}, apperrors.NewValidationError("invalid pagination", map[string]any{
			"limit":  c.Query("limit"),
			"offset": c.Query("offset"),
		})
	}

	for _, raw := range splitList(c.Query("status")) {
		status, ok := domain.ParseTicketStatus(raw)
		if !ok {
			return service.TicketListFilter{}, apperrors.NewValidationError("unknown status", map[string]any{"status": raw})
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	for _, raw := range splitList(c.Query("priority")) {
		priority, ok := domain.ParseTicketPriority(raw)
		if !ok {
			return service.TicketListFilter{}, apperrors.NewValidationError("unknown priority", map[string]any{"priority": raw})
		}
		filter.Priorities = append(filter.Priorities, priority)
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		filter.SearchTerm = &search
	}
	return filter, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseInt(value string, def int) int {
	if value == "" {
		return def
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return -1
	}
	return v
}
