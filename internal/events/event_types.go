package events

import (
	"encoding/json"
	"time"

	"github.com/developer-yasir/support-panel/internal/domain"
)

// EventType enumerates supported event identifiers. The values double as
// the push message types dashboards react to.
type EventType string

const (
	EventNewTicket    EventType = domain.MessageTypeNewTicket
	EventTicketUpdate EventType = domain.MessageTypeTicketUpdate
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type      domain.SubjectType `json:"type"`
	SubjectID string             `json:"subjectId"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticketId"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// NewTicketPayload payload.
type NewTicketPayload struct {
	ExternalKey string                `json:"externalKey"`
	Title       string                `json:"title"`
	Priority    domain.TicketPriority `json:"priority"`
	Status      domain.TicketStatus   `json:"status"`
}

// TicketUpdatePayload lists the fields that changed. Unchanged fields are
// omitted.
type TicketUpdatePayload struct {
	OldStatus   domain.TicketStatus   `json:"oldStatus,omitempty"`
	NewStatus   domain.TicketStatus   `json:"newStatus,omitempty"`
	OldPriority domain.TicketPriority `json:"oldPriority,omitempty"`
	NewPriority domain.TicketPriority `json:"newPriority,omitempty"`
}

// Frame is the JSON text frame sent to dashboards over the push channel.
type Frame struct {
	Type      EventType `json:"type"`
	ID        string    `json:"id"`
	TicketID  string    `json:"ticketId"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// Frame encodes e as a push frame.
func (e Event) Frame() ([]byte, error) {
	return json.Marshal(Frame{
		Type:      e.Type,
		ID:        e.ID,
		TicketID:  e.TicketID,
		Timestamp: e.Timestamp.UTC(),
		Data:      e.Payload,
	})
}
