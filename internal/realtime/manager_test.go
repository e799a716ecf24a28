package realtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/developer-yasir/support-panel/internal/clock"
)

var (
	epoch         = time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)
	errRefused    = errors.New("connection refused")
	errConnClosed = errors.New("use of closed connection")
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type fakeConn struct {
	inbound   chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	written [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.inbound:
		return data, nil
	case <-c.closed:
		return nil, errConnClosed
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.written...)
}

type fakeDialer struct {
	DialFn func(n int) (Conn, error)

	calls atomic.Int32
}

func (d *fakeDialer) Dial(_ context.Context, _ string) (Conn, error) {
	n := int(d.calls.Add(1))
	return d.DialFn(n)
}

func (d *fakeDialer) Calls() int { return int(d.calls.Load()) }

func newTestManager(t *testing.T, d Dialer) (*Manager, *clock.FakeClock) {
	t.Helper()
	clk := clock.NewFake(epoch)
	m := NewManager(Options{Dialer: d, Clock: clk, Logger: zaptest.NewLogger(t)})
	t.Cleanup(m.Disconnect)
	return m, clk
}

func waitState(t *testing.T, m *Manager, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return m.State() == want }, waitFor, tick, "want state %s, have %s", want, m.State())
}

func TestReconnectCeiling(t *testing.T) {
	d := &fakeDialer{DialFn: func(int) (Conn, error) { return nil, errRefused }}
	m, clk := newTestManager(t, d)

	var mu sync.Mutex
	var errs []error
	m.AddListener(EventError, func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		errs = append(errs, ev.Err)
	})

	m.Connect("ws://support.invalid/ws")

	for attempt := 1; attempt <= DefaultMaxReconnectAttempts; attempt++ {
		clk.WaitForTimers(1)
		assert.Equal(t, StateReconnecting, m.State())
		assert.Equal(t, attempt, m.Attempts())
		assert.Equal(t, attempt, d.Calls(), "dials before retry %d", attempt)

		clk.Advance(DefaultReconnectDelay - time.Millisecond)
		assert.Equal(t, attempt, d.Calls(), "retry %d fired early", attempt)
		clk.Advance(time.Millisecond)
	}

	waitState(t, m, StateFailed)
	assert.Equal(t, 1+DefaultMaxReconnectAttempts, d.Calls())
	assert.Equal(t, 0, clk.PendingCount())

	clk.Advance(time.Hour)
	assert.Equal(t, StateFailed, m.State())
	assert.Equal(t, 1+DefaultMaxReconnectAttempts, d.Calls())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(errs) == 1+DefaultMaxReconnectAttempts+1
	}, waitFor, tick)
	mu.Lock()
	assert.ErrorIs(t, errs[0], errRefused)
	assert.ErrorIs(t, errs[len(errs)-1], ErrRetriesExhausted)
	mu.Unlock()
}

func TestConnectLeavesFailedState(t *testing.T) {
	var conn *fakeConn
	d := &fakeDialer{DialFn: func(n int) (Conn, error) {
		if n <= 1+DefaultMaxReconnectAttempts {
			return nil, errRefused
		}
		conn = newFakeConn()
		return conn, nil
	}}
	m, clk := newTestManager(t, d)

	m.Connect("ws://support.invalid/ws")
	for i := 0; i < DefaultMaxReconnectAttempts; i++ {
		clk.WaitForTimers(1)
		clk.Advance(DefaultReconnectDelay)
	}
	waitState(t, m, StateFailed)

	m.Connect("ws://support.invalid/ws")
	waitState(t, m, StateOpen)
	assert.Equal(t, 0, m.Attempts())
}

func TestOpenMessageAndUnexpectedClose(t *testing.T) {
	conn := newFakeConn()
	d := &fakeDialer{DialFn: func(n int) (Conn, error) {
		if n == 1 {
			return conn, nil
		}
		return nil, errRefused
	}}
	m, clk := newTestManager(t, d)

	opened := make(chan struct{}, 1)
	messages := make(chan Message, 4)
	type closeObservation struct {
		state   State
		pending int
		err     error
	}
	closed := make(chan closeObservation, 1)

	m.AddListener(EventOpen, func(Event) { opened <- struct{}{} })
	m.AddListener(EventMessage, func(ev Event) { messages <- *ev.Message })
	m.AddListener(EventClose, func(ev Event) {
		closed <- closeObservation{state: m.State(), pending: clk.PendingCount(), err: ev.Err}
	})

	m.Connect("ws://support.invalid/ws")
	select {
	case <-opened:
	case <-time.After(waitFor):
		t.Fatal("open listener not called")
	}
	assert.Equal(t, StateOpen, m.State())

	conn.inbound <- []byte(`{"type":"new_ticket","ticketId":"t-1"}`)
	conn.inbound <- []byte(`{{{ not json`)
	conn.inbound <- []byte(`{"type":"agent_typing"}`)

	first := <-messages
	assert.Equal(t, "new_ticket", first.Type)
	assert.Equal(t, "t-1", first.TicketID)
	second := <-messages
	assert.Equal(t, "agent_typing", second.Type, "unknown types are delivered, malformed frames dropped")
	assert.Equal(t, StateOpen, m.State())

	_ = conn.Close()
	obs := <-closed
	assert.Equal(t, StateReconnecting, obs.state)
	assert.Equal(t, 0, obs.pending, "close listeners run before the retry is scheduled")
	assert.ErrorIs(t, obs.err, errConnClosed)

	clk.WaitForTimers(1)
	assert.Equal(t, 1, m.Attempts())
}

func TestDisconnectCancelsPendingReconnect(t *testing.T) {
	d := &fakeDialer{DialFn: func(int) (Conn, error) { return nil, errRefused }}
	m, clk := newTestManager(t, d)

	m.Connect("ws://support.invalid/ws")
	clk.WaitForTimers(1)

	m.Disconnect()
	assert.Equal(t, StateDisconnected, m.State())
	assert.Equal(t, 0, clk.PendingCount())

	clk.Advance(time.Minute)
	assert.Equal(t, 1, d.Calls())
	assert.Equal(t, StateDisconnected, m.State())
}

func TestDisconnectClosesOpenTransportWithoutCloseEvent(t *testing.T) {
	conn := newFakeConn()
	d := &fakeDialer{DialFn: func(int) (Conn, error) { return conn, nil }}
	m, clk := newTestManager(t, d)

	var closes atomic.Int32
	m.AddListener(EventClose, func(Event) { closes.Add(1) })

	m.Connect("ws://support.invalid/ws")
	waitState(t, m, StateOpen)

	m.Disconnect()
	assert.True(t, conn.isClosed())
	assert.Equal(t, StateDisconnected, m.State())
	assert.Never(t, func() bool { return closes.Load() > 0 || clk.PendingCount() > 0 }, 100*time.Millisecond, tick)
}

func TestSendMessage(t *testing.T) {
	conn := newFakeConn()
	d := &fakeDialer{DialFn: func(int) (Conn, error) { return conn, nil }}
	m, _ := newTestManager(t, d)

	assert.False(t, m.SendMessage(map[string]string{"type": "ping"}), "not open yet")

	m.Connect("ws://support.invalid/ws")
	waitState(t, m, StateOpen)

	assert.True(t, m.SendMessage(map[string]string{"type": "ping"}))
	assert.False(t, m.SendMessage(func() {}), "unencodable payload")

	writes := conn.writes()
	require.Len(t, writes, 1)
	assert.JSONEq(t, `{"type":"ping"}`, string(writes[0]))

	m.Disconnect()
	assert.False(t, m.SendMessage(map[string]string{"type": "ping"}))
}

func TestDialPanicIsReportedAsError(t *testing.T) {
	d := &fakeDialer{DialFn: func(int) (Conn, error) { panic("boom") }}
	m, clk := newTestManager(t, d)

	errs := make(chan error, 1)
	m.AddListener(EventError, func(ev Event) {
		select {
		case errs <- ev.Err:
		default:
		}
	})

	assert.NotPanics(t, func() { m.Connect("ws://support.invalid/ws") })
	select {
	case err := <-errs:
		assert.Contains(t, err.Error(), "boom")
	case <-time.After(waitFor):
		t.Fatal("error listener not called")
	}
	clk.WaitForTimers(1)
	assert.Equal(t, StateReconnecting, m.State())
}

func TestReconnectAfterDropResetsAttempts(t *testing.T) {
	conns := make(chan *fakeConn, 4)
	d := &fakeDialer{DialFn: func(n int) (Conn, error) {
		if n == 2 {
			return nil, errRefused
		}
		c := newFakeConn()
		conns <- c
		return c, nil
	}}
	m, clk := newTestManager(t, d)

	m.Connect("ws://support.invalid/ws")
	first := <-conns
	waitState(t, m, StateOpen)

	_ = first.Close()
	clk.WaitForTimers(1)
	assert.Equal(t, 1, m.Attempts())
	clk.Advance(DefaultReconnectDelay)

	clk.WaitForTimers(1)
	assert.Equal(t, 2, m.Attempts())
	clk.Advance(DefaultReconnectDelay)

	<-conns
	waitState(t, m, StateOpen)
	assert.Equal(t, 0, m.Attempts())
	assert.Equal(t, 3, d.Calls())
}

// slowCancelDialer blocks its first handshake until the context is cancelled
// and then takes a while to unwind, like a TCP dial tearing down.
type slowCancelDialer struct {
	started  chan struct{}
	conn     *fakeConn
	calls    atomic.Int32
	inflight atomic.Int32
	peak     atomic.Int32
}

func (d *slowCancelDialer) Dial(ctx context.Context, _ string) (Conn, error) {
	n := d.calls.Add(1)
	cur := d.inflight.Add(1)
	defer d.inflight.Add(-1)
	for {
		peak := d.peak.Load()
		if cur <= peak || d.peak.CompareAndSwap(peak, cur) {
			break
		}
	}
	if n > 1 {
		return d.conn, nil
	}
	close(d.started)
	<-ctx.Done()
	time.Sleep(30 * time.Millisecond)
	return nil, ctx.Err()
}

func TestConnectWaitsForAbandonedHandshake(t *testing.T) {
	d := &slowCancelDialer{started: make(chan struct{}), conn: newFakeConn()}
	m, _ := newTestManager(t, d)

	var errCount atomic.Int32
	m.AddListener(EventError, func(Event) { errCount.Add(1) })

	m.Connect("ws://first.invalid/ws")
	select {
	case <-d.started:
	case <-time.After(waitFor):
		t.Fatal("first handshake never started")
	}

	m.Connect("ws://second.invalid/ws")
	waitState(t, m, StateOpen)
	assert.Equal(t, int32(2), d.calls.Load())
	assert.Equal(t, int32(1), d.peak.Load(), "handshakes overlapped")
	assert.Equal(t, int32(0), errCount.Load(), "abandoned handshake is silent")
	assert.False(t, d.conn.isClosed())
}
