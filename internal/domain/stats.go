package domain

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the calendar-day format used by filter windows on the wire.
const DateLayout = "2006-01-02"

// ErrInvalidWindow is returned when a filter window starts after it ends.
var ErrInvalidWindow = errors.New("start date is after end date")

// TicketCounts is the aggregate "ticket stats" view.
type TicketCounts struct {
	TotalTickets        int `json:"totalTickets"`
	OpenTickets         int `json:"openTickets"`
	InProgressTickets   int `json:"inProgressTickets"`
	HighPriorityTickets int `json:"highPriorityTickets"`
}

// Validate rejects negative counters.
func (c TicketCounts) Validate() error {
	if c.TotalTickets < 0 || c.OpenTickets < 0 || c.InProgressTickets < 0 || c.HighPriorityTickets < 0 {
		return fmt.Errorf("negative ticket count in %+v", c)
	}
	return nil
}

// FilterWindow restricts aggregates to tickets created between two calendar
// days, both inclusive. A zero StartDate or EndDate means unbounded.
type FilterWindow struct {
	StartDate time.Time
	EndDate   time.Time
}

// NewFilterWindow parses two optional YYYY-MM-DD values.
func NewFilterWindow(start, end string) (FilterWindow, error) {
	var w FilterWindow
	if start != "" {
		t, err := time.Parse(DateLayout, start)
		if err != nil {
			return FilterWindow{}, fmt.Errorf("parse start date: %w", err)
		}
		w.StartDate = t
	}
	if end != "" {
		t, err := time.Parse(DateLayout, end)
		if err != nil {
			return FilterWindow{}, fmt.Errorf("parse end date: %w", err)
		}
		w.EndDate = t
	}
	if err := w.Validate(); err != nil {
		return FilterWindow{}, err
	}
	return w, nil
}

// HasStart reports whether the window has a lower bound.
func (w FilterWindow) HasStart() bool { return !w.StartDate.IsZero() }

// HasEnd reports whether the window has an upper bound.
func (w FilterWindow) HasEnd() bool { return !w.EndDate.IsZero() }

// Validate enforces StartDate <= EndDate when both are set.
func (w FilterWindow) Validate() error {
	if w.HasStart() && w.HasEnd() && day(w.StartDate).After(day(w.EndDate)) {
		return ErrInvalidWindow
	}
	return nil
}

// Equal compares windows by calendar day.
func (w FilterWindow) Equal(other FilterWindow) bool {
	return w.HasStart() == other.HasStart() &&
		w.HasEnd() == other.HasEnd() &&
		day(w.StartDate).Equal(day(other.StartDate)) &&
		day(w.EndDate).Equal(day(other.EndDate))
}

// StartParam returns the start date formatted for query strings, or "".
func (w FilterWindow) StartParam() string {
	if !w.HasStart() {
		return ""
	}
	return w.StartDate.Format(DateLayout)
}

// EndParam returns the end date formatted for query strings, or "".
func (w FilterWindow) EndParam() string {
	if !w.HasEnd() {
		return ""
	}
	return w.EndDate.Format(DateLayout)
}

// CreatedFrom returns the inclusive lower instant of the window.
func (w FilterWindow) CreatedFrom() *time.Time {
	if !w.HasStart() {
		return nil
	}
	t := day(w.StartDate)
	return &t
}

// CreatedBefore returns the exclusive upper instant: the day after EndDate.
func (w FilterWindow) CreatedBefore() *time.Time {
	if !w.HasEnd() {
		return nil
	}
	t := day(w.EndDate).AddDate(0, 0, 1)
	return &t
}

func (w FilterWindow) String() string {
	start, end := w.StartParam(), w.EndParam()
	if start == "" {
		start = "*"
	}
	if end == "" {
		end = "*"
	}
	return start + ".." + end
}

func day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Push message types that announce a change to the ticket aggregates.
const (
	MessageTypeNewTicket    = "new_ticket"
	MessageTypeTicketUpdate = "ticket_update"
)
