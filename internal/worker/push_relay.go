package worker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/developer-yasir/support-panel/internal/events"
	"github.com/developer-yasir/support-panel/internal/observability"
)

// Broadcaster delivers a frame to locally connected dashboards.
type Broadcaster interface {
	Broadcast(frame []byte) (int, error)
}

// Bus carries frames between API instances.
type Bus interface {
	Publish(ctx context.Context, frame []byte) error
	// Messages streams every frame published on the bus, including this
	// instance's own, until ctx is done.
	Messages(ctx context.Context) (<-chan []byte, error)
}

// PushRelayDeps bundles relay collaborators. A nil Bus keeps delivery local.
type PushRelayDeps struct {
	Dispatcher events.Dispatcher
	Hub        Broadcaster
	Bus        Bus
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// PushRelay turns ticket events into push frames for every API instance.
type PushRelay struct {
	dispatcher events.Dispatcher
	hub        Broadcaster
	bus        Bus
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewPushRelay creates the relay.
func NewPushRelay(deps PushRelayDeps) *PushRelay {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &PushRelay{
		dispatcher: deps.Dispatcher,
		hub:        deps.Hub,
		bus:        deps.Bus,
		logger:     deps.Logger.Named("relay"),
		metrics:    deps.Metrics,
	}
}

// RegisterHandlers subscribes to ticket events.
func (r *PushRelay) RegisterHandlers() {
	if r.dispatcher == nil {
		return
	}
	r.dispatcher.Subscribe(events.EventNewTicket, r.handleEvent)
	r.dispatcher.Subscribe(events.EventTicketUpdate, r.handleEvent)
}

// Run forwards bus frames to the hub until ctx is done. Without a bus it
// just waits.
func (r *PushRelay) Run(ctx context.Context) error {
	if r.bus == nil {
		<-ctx.Done()
		return nil
	}
	frames, err := r.bus.Messages(ctx)
	if err != nil {
		return fmt.Errorf("subscribe ticket events: %w", err)
	}
	r.logger.Info("relaying ticket events from bus")
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-frames:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("ticket event subscription closed")
			}
			r.broadcast(frame)
		}
	}
}

func (r *PushRelay) handleEvent(ctx context.Context, event events.Event) error {
	frame, err := event.Frame()
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", event.Type, err)
	}
	if r.bus == nil {
		r.broadcast(frame)
		return nil
	}
	if err := r.bus.Publish(ctx, frame); err != nil {
		r.metrics.Inc(observability.CounterRelayPublishFail)
		r.logger.Warn("bus publish failed; delivering locally only",
			zap.String("event_id", event.ID), zap.Error(err))
		r.broadcast(frame)
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	r.metrics.Inc(observability.CounterRelayPublished)
	return nil
}

func (r *PushRelay) broadcast(frame []byte) {
	n, err := r.hub.Broadcast(frame)
	if err != nil {
		r.logger.Debug("push broadcast skipped", zap.Error(err))
		return
	}
	r.logger.Debug("push frame broadcast", zap.Int("clients", n))
}
