package sla

import (
	"sort"
	"time"

	"github.com/developer-yasir/support-panel/internal/domain"
)

// Summary counts active tickets per tier.
type Summary struct {
	Good     int `json:"good"`
	Warning  int `json:"warning"`
	Critical int `json:"critical"`
	Overdue  int `json:"overdue"`
}

// Total returns the number of assessed tickets.
func (s Summary) Total() int {
	return s.Good + s.Warning + s.Critical + s.Overdue
}

// Summarize assesses every active ticket at now and counts the tiers.
func Summarize(tickets []domain.Ticket, now time.Time) Summary {
	var s Summary
	for i := range tickets {
		a, ok := AssessTicket(tickets[i], now)
		if !ok {
			continue
		}
		switch a.Tier {
		case TierGood:
			s.Good++
		case TierWarning:
			s.Warning++
		case TierCritical:
			s.Critical++
		case TierOverdue:
			s.Overdue++
		}
	}
	return s
}

// Assessed pairs a ticket with its assessment.
type Assessed struct {
	Ticket     domain.Ticket
	Assessment Assessment
}

// MostUrgent returns the active tickets ordered by remaining time, the
// nearest deadline first, truncated to limit when limit > 0.
func MostUrgent(tickets []domain.Ticket, now time.Time, limit int) []Assessed {
	out := make([]Assessed, 0, len(tickets))
	for i := range tickets {
		a, ok := AssessTicket(tickets[i], now)
		if !ok {
			continue
		}
		out = append(out, Assessed{Ticket: tickets[i], Assessment: a})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Assessment.Remaining < out[j].Assessment.Remaining
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
