package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/developer-yasir/support-panel/internal/events"
	"github.com/developer-yasir/support-panel/internal/observability"
	"github.com/developer-yasir/support-panel/internal/persistence"
)

type recordingHub struct {
	mu     sync.Mutex
	frames []string
}

func (h *recordingHub) Broadcast(frame []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames = append(h.frames, string(frame))
	return 1, nil
}

func (h *recordingHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.frames)
}

// memoryBus loops published frames back to subscribers, like a pub/sub
// channel every instance listens on.
type memoryBus struct {
	PublishFn func([]byte) error
	frames    chan []byte
}

func newMemoryBus() *memoryBus { return &memoryBus{frames: make(chan []byte, 8)} }

func (b *memoryBus) Publish(_ context.Context, frame []byte) error {
	if b.PublishFn != nil {
		if err := b.PublishFn(frame); err != nil {
			return err
		}
	}
	b.frames <- frame
	return nil
}

func (b *memoryBus) Messages(context.Context) (<-chan []byte, error) {
	return b.frames, nil
}

func newTicketEvent(typ events.EventType) events.Event {
	return events.Event{
		ID:        "evt-1",
		Type:      typ,
		TicketID:  "t-1",
		Timestamp: time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC),
	}
}

func TestLocalRelayBroadcastsImmediately(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	hub := &recordingHub{}
	relay := NewPushRelay(PushRelayDeps{Dispatcher: dispatcher, Hub: hub, Logger: zaptest.NewLogger(t)})
	relay.RegisterHandlers()

	require.NoError(t, dispatcher.Publish(context.Background(), newTicketEvent(events.EventNewTicket)))
	require.NoError(t, dispatcher.Publish(context.Background(), newTicketEvent(events.EventTicketUpdate)))

	require.Equal(t, 2, hub.count())
	assert.JSONEq(t, `{"type":"new_ticket","id":"evt-1","ticketId":"t-1","timestamp":"2026-01-05T10:00:00Z"}`, hub.frames[0])
}

func TestBusRelayDeliversThroughSubscription(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	hub := &recordingHub{}
	bus := newMemoryBus()
	metrics := observability.NewMetrics()
	relay := NewPushRelay(PushRelayDeps{Dispatcher: dispatcher, Hub: hub, Bus: bus, Logger: zaptest.NewLogger(t), Metrics: metrics})
	relay.RegisterHandlers()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	require.NoError(t, dispatcher.Publish(ctx, newTicketEvent(events.EventNewTicket)))
	require.Eventually(t, func() bool { return hub.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), metrics.Counter(observability.CounterRelayPublished))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
	assert.Equal(t, 1, hub.count(), "frame is not delivered twice")
}

func TestBusPublishFailureFallsBackToLocal(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	hub := &recordingHub{}
	bus := newMemoryBus()
	boom := errors.New("redis unreachable")
	bus.PublishFn = func([]byte) error { return boom }
	metrics := observability.NewMetrics()
	relay := NewPushRelay(PushRelayDeps{Dispatcher: dispatcher, Hub: hub, Bus: bus, Logger: zaptest.NewLogger(t), Metrics: metrics})
	relay.RegisterHandlers()

	err := dispatcher.Publish(context.Background(), newTicketEvent(events.EventTicketUpdate))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, hub.count())
	assert.Equal(t, int64(1), metrics.Counter(observability.CounterRelayPublishFail))
}

func TestRunReportsClosedSubscription(t *testing.T) {
	bus := newMemoryBus()
	close(bus.frames)
	relay := NewPushRelay(PushRelayDeps{Hub: &recordingHub{}, Bus: bus})
	assert.Error(t, relay.Run(context.Background()))
}

func TestRunWithoutBusWaitsForCancel(t *testing.T) {
	relay := NewPushRelay(PushRelayDeps{Hub: &recordingHub{}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, relay.Run(ctx))
}

func TestNewRedisBusDisabled(t *testing.T) {
	assert.Nil(t, NewRedisBus(&persistence.Redis{}, "c"))
}
