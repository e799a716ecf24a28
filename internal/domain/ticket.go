package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID          string
	ExternalKey string
	Title       string
	Description string
	Status      TicketStatus
	Priority    TicketPriority
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ClosedAt    *time.Time
}

// IsTerminal reports whether the ticket no longer runs against an SLA.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// ParseTicketStatus normalizes user input such as "In_Progress".
func ParseTicketStatus(raw string) (TicketStatus, bool) {
	s := TicketStatus(strings.ToLower(strings.TrimSpace(raw)))
	return s, s.Valid()
}

// ParseTicketPriority normalizes user input such as "URGENT".
func ParseTicketPriority(raw string) (TicketPriority, bool) {
	p := TicketPriority(strings.ToLower(strings.TrimSpace(raw)))
	return p, p.Valid()
}
