// Package sla computes service-level deadlines and severity tiers for
// tickets. Every function is pure: the caller supplies "now", nothing is
// cached, and identical inputs always produce identical results.
package sla

import (
	"fmt"
	"strings"
	"time"

	"github.com/developer-yasir/support-panel/internal/domain"
)

// Tier is an ordered severity classification of the remaining SLA time.
type Tier string

const (
	TierGood     Tier = "good"
	TierWarning  Tier = "warning"
	TierCritical Tier = "critical"
	TierOverdue  Tier = "overdue"
)

// Rank orders tiers from least (0) to most severe (3). Unknown tiers rank -1.
func (t Tier) Rank() int {
	switch t {
	case TierGood:
		return 0
	case TierWarning:
		return 1
	case TierCritical:
		return 2
	case TierOverdue:
		return 3
	}
	return -1
}

// ParseTier accepts a tier name in any case.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if t.Rank() < 0 {
		return "", fmt.Errorf("unknown sla tier %q", s)
	}
	return t, nil
}

// Policy windows from creation to due time.
const (
	UrgentWindow = 1 * time.Hour
	HighWindow   = 4 * time.Hour
	MediumWindow = 24 * time.Hour
	LowWindow    = 48 * time.Hour
)

// PolicyWindow returns the time allotted to a ticket of the given priority.
// Unknown priorities get the medium window.
func PolicyWindow(p domain.TicketPriority) time.Duration {
	switch p {
	case domain.TicketPriorityUrgent:
		return UrgentWindow
	case domain.TicketPriorityHigh:
		return HighWindow
	case domain.TicketPriorityLow:
		return LowWindow
	default:
		return MediumWindow
	}
}

// DueAt returns createdAt plus the policy window of p.
func DueAt(p domain.TicketPriority, createdAt time.Time) time.Time {
	return createdAt.Add(PolicyWindow(p))
}

// Assessment is the SLA position of a ticket at one instant.
type Assessment struct {
	DueAt     time.Time
	Remaining time.Duration
	Tier      Tier
}

// RemainingMillis is Remaining in signed milliseconds.
func (a Assessment) RemainingMillis() int64 {
	return a.Remaining.Milliseconds()
}

// Assess computes the deadline and tier for a ticket created at createdAt.
func Assess(p domain.TicketPriority, createdAt, now time.Time) Assessment {
	window := PolicyWindow(p)
	due := createdAt.Add(window)
	remaining := due.Sub(now)
	return Assessment{
		DueAt:     due,
		Remaining: remaining,
		Tier:      Classify(remaining, window),
	}
}

// Classify maps remaining time to a tier relative to the whole window:
// overdue below zero, critical under 25%, warning under 50%, good otherwise.
func Classify(remaining, window time.Duration) Tier {
	switch {
	case remaining < 0:
		return TierOverdue
	case belowShare(remaining, window, 4):
		return TierCritical
	case belowShare(remaining, window, 2):
		return TierWarning
	default:
		return TierGood
	}
}

// belowShare reports remaining*n < window for non-negative remaining without
// overflowing on far-future deadlines.
func belowShare(remaining, window, n time.Duration) bool {
	if window <= 0 {
		return false
	}
	q, r := window/n, window%n
	return remaining < q || (remaining == q && r != 0)
}

// AssessTicket assesses t at now. Resolved and closed tickets have no SLA
// and yield ok == false.
func AssessTicket(t domain.Ticket, now time.Time) (Assessment, bool) {
	if t.Status.IsTerminal() {
		return Assessment{}, false
	}
	return Assess(t.Priority, t.CreatedAt, now), true
}
