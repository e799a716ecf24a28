package observability

import (
	"strconv"
	"sync"
	"time"
)

// Counter names recorded outside the HTTP layer.
const (
	CounterPushBroadcasts   = "push_broadcasts"
	CounterPushDelivered    = "push_frames_delivered"
	CounterPushSlowDropped  = "push_slow_clients_dropped"
	CounterPushConnections  = "push_connections_accepted"
	CounterRelayPublished   = "relay_events_published"
	CounterRelayPublishFail = "relay_publish_failures"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu              sync.Mutex
	requestCount    map[string]int64
	requestDuration map[string]time.Duration
	errorCount      map[string]int64
	counters        map[string]int64
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Requests         map[string]int64 `json:"requests"`
	RequestAvgMillis map[string]int64 `json:"requestAvgMillis"`
	Errors           map[string]int64 `json:"errors"`
	Counters         map[string]int64 `json:"counters"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:    make(map[string]int64),
		requestDuration: make(map[string]time.Duration),
		errorCount:      make(map[string]int64),
		counters:        make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.requestDuration[key] += duration
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// Add increments a named counter by n.
func (m *Metrics) Add(name string, n int64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += n
}

// Inc increments a named counter by one.
func (m *Metrics) Inc(name string) {
	m.Add(name, 1)
}

// Counter returns the value of a named counter.
func (m *Metrics) Counter(name string) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

// Snapshot copies every counter.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Requests:         map[string]int64{},
		RequestAvgMillis: map[string]int64{},
		Errors:           map[string]int64{},
		Counters:         map[string]int64{},
	}
	if m == nil {
		return snap
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.requestCount {
		snap.Requests[k] = v
		snap.RequestAvgMillis[k] = (m.requestDuration[k] / time.Duration(v)).Milliseconds()
	}
	for k, v := range m.errorCount {
		snap.Errors[k] = v
	}
	for k, v := range m.counters {
		snap.Counters[k] = v
	}
	return snap
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
