// Package stats keeps the aggregate ticket view current. A Coordinator
// refreshes it on start, on a fixed poll interval, on push notifications and
// on filter changes, coalescing bursts through a single trailing debounce.
package stats

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/developer-yasir/support-panel/internal/clock"
	"github.com/developer-yasir/support-panel/internal/domain"
	"github.com/developer-yasir/support-panel/internal/realtime"
)

const (
	DefaultPollInterval  = 30 * time.Second
	DefaultDebounce      = time.Second
	DefaultNewTicketsTTL = 5 * time.Second
)

var (
	// ErrAlreadyStarted is returned by Start on a running Coordinator.
	ErrAlreadyStarted = errors.New("coordinator already started")
	// ErrNotStarted is returned by SetFilter before Start.
	ErrNotStarted = errors.New("coordinator not started")
)

// Snapshot is one captured aggregate. It is a value: holders get copies.
type Snapshot struct {
	domain.TicketCounts
	CapturedAt time.Time
}

// Fetcher loads aggregate counts for a filter window.
type Fetcher interface {
	FetchStats(ctx context.Context, window domain.FilterWindow) (domain.TicketCounts, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, window domain.FilterWindow) (domain.TicketCounts, error)

// FetchStats calls f.
func (f FetcherFunc) FetchStats(ctx context.Context, window domain.FilterWindow) (domain.TicketCounts, error) {
	return f(ctx, window)
}

// MessageSource delivers push events. *realtime.Manager implements it.
type MessageSource interface {
	AddListener(kind realtime.EventKind, fn realtime.Listener) realtime.Subscription
	RemoveListener(sub realtime.Subscription) bool
}

// Options configures a Coordinator. Zero durations use the defaults.
type Options struct {
	Clock         clock.Clock
	Logger        *zap.Logger
	PollInterval  time.Duration
	Debounce      time.Duration
	NewTicketsTTL time.Duration
	// RefreshTypes lists the push message types that request a refresh.
	// Defaults to new_ticket and ticket_update.
	RefreshTypes []string

	// OnSnapshot is called when a fetch changes the aggregates.
	OnSnapshot func(Snapshot)
	// OnNewTickets is called with the latest positive delta, and with 0
	// when the transient count expires.
	OnNewTickets func(int)
	// OnError is called once per failed fetch.
	OnError func(error)
}

// Coordinator owns the current Snapshot. Callbacks run outside its lock and
// may call back into it.
type Coordinator struct {
	fetcher      Fetcher
	source       MessageSource
	clock        clock.Clock
	logger       *zap.Logger
	poll         time.Duration
	debounce     time.Duration
	ttl          time.Duration
	refreshTypes map[string]struct{}
	onSnapshot   func(Snapshot)
	onNewTickets func(int)
	onError      func(error)

	mu          sync.Mutex
	ctx         context.Context
	running     bool
	epoch       uint64
	window      domain.FilterWindow
	current     *Snapshot
	baseline    *int
	newTickets  int
	inflight    bool
	pending     bool
	pollTimer   *clock.Timer
	debounceT   *clock.Timer
	clearTimer  *clock.Timer
	clearSeq    uint64
	subscribed  bool
	sub         realtime.Subscription
}

// NewCoordinator builds a stopped Coordinator. source may be nil when no
// push channel is available; polling still keeps the view fresh.
func NewCoordinator(fetcher Fetcher, source MessageSource, opts Options) *Coordinator {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.NewTicketsTTL <= 0 {
		opts.NewTicketsTTL = DefaultNewTicketsTTL
	}
	if len(opts.RefreshTypes) == 0 {
		opts.RefreshTypes = []string{domain.MessageTypeNewTicket, domain.MessageTypeTicketUpdate}
	}
	types := make(map[string]struct{}, len(opts.RefreshTypes))
	for _, t := range opts.RefreshTypes {
		types[t] = struct{}{}
	}
	return &Coordinator{
		fetcher:      fetcher,
		source:       source,
		clock:        opts.Clock,
		logger:       opts.Logger.Named("stats"),
		poll:         opts.PollInterval,
		debounce:     opts.Debounce,
		ttl:          opts.NewTicketsTTL,
		refreshTypes: types,
		onSnapshot:   opts.OnSnapshot,
		onNewTickets: opts.OnNewTickets,
		onError:      opts.OnError,
	}
}

// Start begins observing window: it fetches immediately, arms the poll
// timer and listens for push messages. ctx bounds every fetch. Callers must
// pair Start with Stop.
func (c *Coordinator) Start(ctx context.Context, window domain.FilterWindow) error {
	if err := window.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.running = true
	c.ctx = ctx
	c.epoch++
	c.window = window
	c.baseline = nil
	c.pollTimer = c.clock.AfterFunc(c.poll, c.onPoll)
	if c.source != nil {
		c.sub = c.source.AddListener(realtime.EventMessage, c.onMessage)
		c.subscribed = true
	}
	c.mu.Unlock()

	c.logger.Info("stats observation started", zap.Stringer("window", window))
	go c.flush()
	return nil
}

// Stop cancels every timer and unregisters from the push source. A fetch in
// flight completes but its result is discarded. An unexpired new-ticket count
// is reset and reported as 0. Stop is idempotent.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.epoch++
	c.pending = false
	c.pollTimer.Stop()
	c.pollTimer = nil
	c.stopDebounceLocked()
	c.stopClearLocked()
	cleared := c.newTickets != 0
	c.newTickets = 0
	sub, subscribed := c.sub, c.subscribed
	c.subscribed = false
	c.mu.Unlock()

	if subscribed {
		c.source.RemoveListener(sub)
	}
	if cleared && c.onNewTickets != nil {
		c.onNewTickets(0)
	}
	c.logger.Info("stats observation stopped")
}

// Request asks for a refresh. Requests are coalesced: each one restarts the
// debounce timer and the fetch runs once the timer expires.
func (c *Coordinator) Request() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.stopDebounceLocked()
	epoch := c.epoch
	c.debounceT = c.clock.AfterFunc(c.debounce, func() { c.onDebounce(epoch) })
}

// SetFilter switches to a new window. The delta baseline is invalidated so
// the next total is not reported as new tickets, and a fetch starts at once.
func (c *Coordinator) SetFilter(window domain.FilterWindow) error {
	if err := window.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return ErrNotStarted
	}
	if c.window.Equal(window) {
		c.mu.Unlock()
		return nil
	}
	c.window = window
	c.epoch++
	c.baseline = nil
	c.stopDebounceLocked()
	c.mu.Unlock()

	c.logger.Info("stats filter changed", zap.Stringer("window", window))
	go c.flush()
	return nil
}

// Snapshot returns a copy of the current aggregate.
func (c *Coordinator) Snapshot() (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return Snapshot{}, false
	}
	return *c.current, true
}

// NewTickets returns the unexpired new-ticket count, or 0.
func (c *Coordinator) NewTickets() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.newTickets
}

// Window returns the window under observation.
func (c *Coordinator) Window() domain.FilterWindow {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.window
}

func (c *Coordinator) onMessage(ev realtime.Event) {
	if ev.Message == nil {
		return
	}
	if _, ok := c.refreshTypes[ev.Message.Type]; !ok {
		return
	}
	c.logger.Debug("push refresh requested", zap.String("type", ev.Message.Type))
	c.Request()
}

func (c *Coordinator) onPoll() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.pollTimer = c.clock.AfterFunc(c.poll, c.onPoll)
	c.mu.Unlock()

	c.Request()
}

func (c *Coordinator) onDebounce(epoch uint64) {
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	c.debounceT = nil
	c.mu.Unlock()

	c.flush()
}

// flush runs fetches until no request is pending. Only one flush fetches
// at a time; a request arriving meanwhile is marked pending and served by
// the running flush after its fetch completes.
func (c *Coordinator) flush() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	if c.inflight {
		c.pending = true
		c.mu.Unlock()
		return
	}
	c.inflight = true

	for {
		epoch, window, ctx := c.epoch, c.window, c.ctx
		c.mu.Unlock()

		counts, err := c.fetch(ctx, window)

		c.mu.Lock()
		var notify []func()
		if c.running && epoch == c.epoch {
			notify = c.applyLocked(counts, err)
		} else {
			c.logger.Debug("discarding stale stats result", zap.Stringer("window", window))
		}
		again := c.running && c.pending
		c.pending = false
		if !again {
			c.inflight = false
		}
		c.mu.Unlock()

		for _, fn := range notify {
			fn()
		}
		if !again {
			return
		}
		c.mu.Lock()
	}
}

func (c *Coordinator) fetch(ctx context.Context, window domain.FilterWindow) (counts domain.TicketCounts, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stats fetch panicked: %v", r)
		}
	}()
	if ctx == nil {
		ctx = context.Background()
	}
	counts, err = c.fetcher.FetchStats(ctx, window)
	if err == nil {
		err = counts.Validate()
	}
	return counts, err
}

// applyLocked folds a fetch result into the state and returns the
// notifications to deliver once the lock is released.
func (c *Coordinator) applyLocked(counts domain.TicketCounts, err error) []func() {
	if err != nil {
		c.logger.Warn("stats fetch failed", zap.Error(err))
		if c.onError == nil {
			return nil
		}
		return []func(){func() { c.onError(err) }}
	}

	var notify []func()
	if c.baseline != nil && counts.TotalTickets > *c.baseline {
		delta := counts.TotalTickets - *c.baseline
		c.newTickets = delta
		c.stopClearLocked()
		seq := c.clearSeq
		c.clearTimer = c.clock.AfterFunc(c.ttl, func() { c.clearNewTickets(seq) })
		c.logger.Info("new tickets detected", zap.Int("count", delta))
		if c.onNewTickets != nil {
			notify = append(notify, func() { c.onNewTickets(delta) })
		}
	}
	total := counts.TotalTickets
	c.baseline = &total

	if c.current != nil && c.current.TicketCounts == counts {
		return notify
	}
	snap := Snapshot{TicketCounts: counts, CapturedAt: c.clock.Now()}
	c.current = &snap
	if c.onSnapshot != nil {
		notify = append(notify, func() { c.onSnapshot(snap) })
	}
	return notify
}

// clearNewTickets expires the delta armed with seq. A timer that fired while
// a newer delta replaced it finds a different seq and does nothing.
func (c *Coordinator) clearNewTickets(seq uint64) {
	c.mu.Lock()
	if !c.running || seq != c.clearSeq || c.newTickets == 0 {
		c.mu.Unlock()
		return
	}
	c.newTickets = 0
	c.clearTimer = nil
	c.mu.Unlock()

	if c.onNewTickets != nil {
		c.onNewTickets(0)
	}
}

func (c *Coordinator) stopDebounceLocked() {
	if c.debounceT != nil {
		c.debounceT.Stop()
		c.debounceT = nil
	}
}

// stopClearLocked cancels the pending expiry and invalidates its callback in
// case it already fired and waits for the lock.
func (c *Coordinator) stopClearLocked() {
	c.clearSeq++
	if c.clearTimer != nil {
		c.clearTimer.Stop()
		c.clearTimer = nil
	}
}
