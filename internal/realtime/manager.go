// Package realtime maintains the dashboard's push channel: a single logical
// connection that reconnects on a fixed schedule and fans inbound messages
// out to registered listeners.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/developer-yasir/support-panel/internal/clock"
)

const (
	DefaultReconnectDelay       = 5 * time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultDialTimeout          = 10 * time.Second
)

// ErrRetriesExhausted is delivered to error listeners when the reconnect
// ceiling is reached and the manager enters StateFailed.
var ErrRetriesExhausted = errors.New("push channel reconnect attempts exhausted")

// Conn is an established transport.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens transports. Dial returns once the handshake has completed.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Conn, error)
}

// Options configures a Manager. Zero values fall back to the defaults.
type Options struct {
	Dialer               Dialer
	Clock                clock.Clock
	Logger               *zap.Logger
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	DialTimeout          time.Duration
}

// Manager owns the connection state, the transport and the listener
// registry. Only Connect, Disconnect and SendMessage drive it from outside.
type Manager struct {
	dialer   Dialer
	clock    clock.Clock
	logger   *zap.Logger
	delay    time.Duration
	maxTries int
	timeout  time.Duration
	registry *Registry

	mu         sync.Mutex
	state      State
	endpoint   string
	attempts   int
	generation uint64
	conn       Conn
	retryTimer *clock.Timer
	cancelDial context.CancelFunc
	dialDone   chan struct{}
}

// NewManager creates a disconnected Manager.
func NewManager(opts Options) *Manager {
	if opts.Dialer == nil {
		opts.Dialer = NewWebsocketDialer(nil)
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.MaxReconnectAttempts <= 0 {
		opts.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultDialTimeout
	}
	return &Manager{
		dialer:   opts.Dialer,
		clock:    opts.Clock,
		logger:   opts.Logger.Named("realtime"),
		delay:    opts.ReconnectDelay,
		maxTries: opts.MaxReconnectAttempts,
		timeout:  opts.DialTimeout,
		registry: NewRegistry(),
		state:    StateDisconnected,
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts returns the number of reconnect attempts since the last open.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// AddListener registers fn for events of kind.
func (m *Manager) AddListener(kind EventKind, fn Listener) Subscription {
	return m.registry.Subscribe(kind, fn)
}

// RemoveListener drops a registration returned by AddListener.
func (m *Manager) RemoveListener(sub Subscription) bool {
	return m.registry.Unsubscribe(sub)
}

// Connect starts a fresh session against endpoint, abandoning any current
// one. It never fails: dial errors are reported to error listeners and
// handled by the reconnect schedule.
func (m *Manager) Connect(endpoint string) {
	m.mu.Lock()
	m.teardownLocked()
	m.state = StateDisconnected
	m.endpoint = endpoint
	m.attempts = 0
	m.moveLocked(SignalConnect)
	m.startDialLocked(m.generation, endpoint)
	m.mu.Unlock()

	m.logger.Info("connecting push channel", zap.String("endpoint", endpoint))
}

// Disconnect closes the transport and cancels any pending reconnect. No
// callback from the abandoned session fires afterwards. Owners must call it
// on teardown.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateDisconnected && m.conn == nil && m.retryTimer == nil {
		return
	}
	m.teardownLocked()
	m.moveLocked(SignalDisconnect)
	m.attempts = 0
	m.logger.Info("push channel disconnected")
}

// SendMessage JSON-encodes payload and writes it while the channel is open.
// In any other state it logs a warning and returns false.
func (m *Manager) SendMessage(payload any) bool {
	m.mu.Lock()
	state, conn := m.state, m.conn
	m.mu.Unlock()

	if state != StateOpen || conn == nil {
		m.logger.Warn("push channel not open; message dropped", zap.Stringer("state", state))
		return false
	}
	data, err := json.Marshal(payload)
	if err != nil {
		m.logger.Warn("encode outbound message", zap.Error(err))
		return false
	}
	if err := conn.WriteMessage(data); err != nil {
		m.logger.Warn("write outbound message", zap.Error(err))
		return false
	}
	return true
}

// startDialLocked runs a handshake in the background. It starts only after
// the previous handshake returned, so at most one is in flight.
func (m *Manager) startDialLocked(gen uint64, endpoint string) {
	ctx := m.dialContextLocked()
	prev := m.dialDone
	done := make(chan struct{})
	m.dialDone = done
	go func() {
		if prev != nil {
			<-prev
		}
		m.dial(ctx, gen, endpoint, done)
	}()
}

func (m *Manager) dial(ctx context.Context, gen uint64, endpoint string, done chan struct{}) {
	if !m.isCurrent(gen) {
		close(done)
		return
	}
	conn, err := m.safeDial(ctx, endpoint)
	close(done)

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	if err != nil {
		m.moveLocked(SignalHandshakeFailed)
		m.mu.Unlock()

		m.logger.Warn("push channel handshake failed", zap.String("endpoint", endpoint), zap.Error(err))
		m.registry.Dispatch(Event{Kind: EventError, Err: err})
		m.afterFailure(gen)
		return
	}
	m.conn = conn
	m.attempts = 0
	m.moveLocked(SignalHandshakeOK)
	m.mu.Unlock()

	m.logger.Info("push channel open", zap.String("endpoint", endpoint))
	m.registry.Dispatch(Event{Kind: EventOpen})
	m.readLoop(gen, conn)
}

func (m *Manager) safeDial(ctx context.Context, endpoint string) (conn Conn, err error) {
	defer func() {
		if r := recover(); r != nil {
			conn, err = nil, fmt.Errorf("dial panicked: %v", r)
		}
	}()
	return m.dialer.Dial(ctx, endpoint)
}

func (m *Manager) readLoop(gen uint64, conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			m.handleClosed(gen, conn, err)
			return
		}
		msg, err := DecodeMessage(data)
		if err != nil {
			m.logger.Warn("dropping malformed push message", zap.Error(err), zap.Int("bytes", len(data)))
			continue
		}
		if !m.isCurrent(gen) {
			return
		}
		m.registry.Dispatch(Event{Kind: EventMessage, Message: &msg})
	}
}

func (m *Manager) handleClosed(gen uint64, conn Conn, cause error) {
	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return
	}
	_ = conn.Close()
	m.conn = nil
	m.moveLocked(SignalClosed)
	m.mu.Unlock()

	m.logger.Warn("push channel closed unexpectedly", zap.Error(cause))
	m.registry.Dispatch(Event{Kind: EventClose, Err: cause})
	m.afterFailure(gen)
}

// afterFailure schedules the next attempt or gives up once the ceiling is
// reached. The failed transport is already closed when it runs.
func (m *Manager) afterFailure(gen uint64) {
	m.mu.Lock()
	if gen != m.generation || m.state != StateReconnecting {
		m.mu.Unlock()
		return
	}
	if m.attempts >= m.maxTries {
		m.moveLocked(SignalGiveUp)
		attempts := m.attempts
		m.mu.Unlock()

		m.logger.Warn("push channel reconnect ceiling reached", zap.Int("attempts", attempts))
		m.registry.Dispatch(Event{Kind: EventError, Err: ErrRetriesExhausted})
		return
	}
	m.attempts++
	attempt := m.attempts
	m.retryTimer = m.clock.AfterFunc(m.delay, func() { m.retry(gen) })
	m.mu.Unlock()

	m.logger.Info("push channel reconnect scheduled",
		zap.Int("attempt", attempt),
		zap.Int("max_attempts", m.maxTries),
		zap.Duration("delay", m.delay))
}

func (m *Manager) retry(gen uint64) {
	m.mu.Lock()
	if gen != m.generation || m.state != StateReconnecting {
		m.mu.Unlock()
		return
	}
	m.retryTimer = nil
	m.moveLocked(SignalRetry)
	m.startDialLocked(gen, m.endpoint)
	m.mu.Unlock()
}

func (m *Manager) isCurrent(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.generation
}

// teardownLocked invalidates the current session: callbacks holding the old
// generation become no-ops.
func (m *Manager) teardownLocked() {
	m.generation++
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
}

func (m *Manager) dialContextLocked() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	m.cancelDial = cancel
	return ctx
}

func (m *Manager) moveLocked(sig Signal) {
	next, err := Transition(m.state, sig)
	if err != nil {
		m.logger.Error("rejected state transition", zap.Error(err))
		return
	}
	if next != m.state {
		m.logger.Debug("push channel state",
			zap.Stringer("from", m.state),
			zap.Stringer("to", next),
			zap.Stringer("signal", sig))
	}
	m.state = next
}
