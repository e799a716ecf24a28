package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/developer-yasir/support-panel/internal/domain"
)

func TestPublishRunsHandlersInOrder(t *testing.T) {
	d := NewInMemoryDispatcher()
	var order []string
	d.Subscribe(EventNewTicket, func(context.Context, Event) error {
		order = append(order, "first")
		return nil
	})
	d.Subscribe(EventNewTicket, func(context.Context, Event) error {
		order = append(order, "second")
		return nil
	})
	d.Subscribe(EventTicketUpdate, func(context.Context, Event) error {
		order = append(order, "update")
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventNewTicket}))
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestPublishContinuesPastFailingHandler(t *testing.T) {
	d := NewInMemoryDispatcher()
	boom := errors.New("relay down")
	called := false
	d.Subscribe(EventTicketUpdate, func(context.Context, Event) error { return boom })
	d.Subscribe(EventTicketUpdate, func(context.Context, Event) error {
		called = true
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventTicketUpdate})
	assert.ErrorIs(t, err, boom)
	assert.True(t, called)
}

func TestPublishWithoutHandlers(t *testing.T) {
	assert.NoError(t, NewInMemoryDispatcher().Publish(context.Background(), Event{Type: EventNewTicket}))
}

func TestEventFrame(t *testing.T) {
	ev := Event{
		ID:        "evt-1",
		Type:      EventTicketUpdate,
		TicketID:  "t-9",
		Actor:     Actor{Type: domain.SubjectTypeAgent, SubjectID: "agent-7"},
		Timestamp: time.Date(2026, 3, 2, 9, 30, 0, 0, time.FixedZone("CET", 3600)),
		Payload:   TicketUpdatePayload{OldStatus: domain.TicketStatusOpen, NewStatus: domain.TicketStatusInProgress},
	}

	data, err := ev.Frame()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "ticket_update",
		"id": "evt-1",
		"ticketId": "t-9",
		"timestamp": "2026-03-02T08:30:00Z",
		"data": {"oldStatus": "open", "newStatus": "in_progress"}
	}`, string(data))
}
