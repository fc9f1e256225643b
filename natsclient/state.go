// Package natsclient implements the NATS-backed bus transport client:
// connection lifecycle, JetStream-backed durable subjects, request/reply
// correlation, and raw/envelope publish and subscribe paths.
package natsclient

import (
	"sync"
	"time"
)

// ConnectionState is the bus client's connection lifecycle state.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
	StateDraining     ConnectionState = "draining"
)

// ConnectionEvent is a state transition or notable incident emitted on the
// client's broadcast events channel.
type ConnectionEvent struct {
	State     ConnectionState
	Timestamp time.Time
	Message   string
}

// ConnectionMetrics accumulates counters and latency samples across the
// client's lifetime. Safe for concurrent reads via the snapshot returned by
// Client.ConnectionMetrics.
type ConnectionMetrics struct {
	ConnectAttempts  uint64
	ConnectSuccesses uint64
	Errors           uint64
	BytesSent        uint64
	BytesReceived    uint64
	RoundTrips       uint64
	TotalRoundTrip   time.Duration
}

// AverageRoundTrip returns the mean observed request/reply latency, or 0
// if no round trips have completed yet.
func (m ConnectionMetrics) AverageRoundTrip() time.Duration {
	if m.RoundTrips == 0 {
		return 0
	}
	return m.TotalRoundTrip / time.Duration(m.RoundTrips)
}

type metricsRecorder struct {
	mu sync.Mutex
	m  ConnectionMetrics
}

func (r *metricsRecorder) snapshot() ConnectionMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m
}

func (r *metricsRecorder) recordConnectAttempt() {
	r.mu.Lock()
	r.m.ConnectAttempts++
	r.mu.Unlock()
}

func (r *metricsRecorder) recordConnectSuccess() {
	r.mu.Lock()
	r.m.ConnectSuccesses++
	r.mu.Unlock()
}

func (r *metricsRecorder) recordError() {
	r.mu.Lock()
	r.m.Errors++
	r.mu.Unlock()
}

func (r *metricsRecorder) recordBytesSent(n int) {
	r.mu.Lock()
	r.m.BytesSent += uint64(n)
	r.mu.Unlock()
}

func (r *metricsRecorder) recordBytesReceived(n int) {
	r.mu.Lock()
	r.m.BytesReceived += uint64(n)
	r.mu.Unlock()
}

func (r *metricsRecorder) recordRoundTrip(d time.Duration) {
	r.mu.Lock()
	r.m.RoundTrips++
	r.m.TotalRoundTrip += d
	r.mu.Unlock()
}

// eventBroadcaster fans a single ConnectionEvent out to every channel
// registered via subscribe. Each call to Client.ConnectionEvents gets its
// own buffered channel so a slow consumer cannot block publication to
// others.
type eventBroadcaster struct {
	mu   sync.Mutex
	subs []chan ConnectionEvent
}

func (b *eventBroadcaster) subscribe() <-chan ConnectionEvent {
	ch := make(chan ConnectionEvent, 16)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

func (b *eventBroadcaster) publish(ev ConnectionEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// Slow consumer: drop rather than block the connection's
			// event-producing goroutine.
		}
	}
}

type stateMachine struct {
	mu    sync.RWMutex
	state ConnectionState
}

func (s *stateMachine) get() ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *stateMachine) set(state ConnectionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}
