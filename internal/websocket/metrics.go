package websocket

import (
	"sync"
	"time"
)

// connTimeWindow bounds the rolling window used for the average
// connection lifetime.
const connTimeWindow = 100

// Metrics tracks WebSocket traffic for the hub that owns it. Each hub
// carries its own instance, so parallel tests never share counters.
type Metrics struct {
	mu sync.RWMutex

	// Connection counters
	TotalConnections  int64
	ActiveConnections int64
	MaxConcurrent     int64
	AvgConnectionTime time.Duration

	// Message counters
	MessagesSent     int64
	MessagesReceived int64
	BytesSent        int64
	BytesReceived    int64
	MessageErrors    int64
	DroppedMessages  int64
	AvgMessageSize   int64

	// Broadcast queue depth
	AvgQueueDepth int64
	MaxQueueDepth int64

	// Failure counts keyed by kind
	ErrorsByType map[string]int64

	LastReset     time.Time
	connDurations []time.Duration
}

var _ TrafficRecorder = (*Metrics)(nil)

// NewMetrics returns a zeroed collector ready for use.
func NewMetrics() *Metrics {
	return &Metrics{
		ErrorsByType:  make(map[string]int64),
		LastReset:     time.Now(),
		connDurations: make([]time.Duration, 0, connTimeWindow),
	}
}

// RecordConnection counts a newly registered client.
func (mx *Metrics) RecordConnection() {
	mx.mu.Lock()
	defer mx.mu.Unlock()

	mx.TotalConnections++
	mx.ActiveConnections++
	mx.MaxConcurrent = max(mx.MaxConcurrent, mx.ActiveConnections)
}

// RecordDisconnection counts a departed client and folds its lifetime
// into the rolling average.
func (mx *Metrics) RecordDisconnection(connectedFor time.Duration) {
	mx.mu.Lock()
	defer mx.mu.Unlock()

	mx.ActiveConnections--

	mx.connDurations = append(mx.connDurations, connectedFor)
	if n := len(mx.connDurations); n > connTimeWindow {
		mx.connDurations = mx.connDurations[n-connTimeWindow:]
	}

	var sum time.Duration
	for _, dur := range mx.connDurations {
		sum += dur
	}
	mx.AvgConnectionTime = sum / time.Duration(len(mx.connDurations))
}

// RecordMessage counts one message; direction is "sent" or "received".
func (mx *Metrics) RecordMessage(direction string, bytes int64, success bool) {
	mx.mu.Lock()
	defer mx.mu.Unlock()

	switch direction {
	case "sent":
		mx.MessagesSent++
		mx.BytesSent += bytes
	case "received":
		mx.MessagesReceived++
		mx.BytesReceived += bytes
	}

	if !success {
		mx.MessageErrors++
	}

	if n := mx.MessagesSent + mx.MessagesReceived; n > 0 {
		mx.AvgMessageSize = (mx.BytesSent + mx.BytesReceived) / n
	}
}

// RecordError bumps the counter for one failure kind.
func (mx *Metrics) RecordError(kind string) {
	mx.mu.Lock()
	defer mx.mu.Unlock()

	mx.ErrorsByType[kind]++
}

// RecordQueueDepth samples the broadcast queue depth, keeping the peak
// and an exponentially weighted average.
func (mx *Metrics) RecordQueueDepth(n int64) {
	mx.mu.Lock()
	defer mx.mu.Unlock()

	mx.MaxQueueDepth = max(mx.MaxQueueDepth, n)

	if mx.AvgQueueDepth == 0 {
		mx.AvgQueueDepth = n
	} else {
		mx.AvgQueueDepth = (9*mx.AvgQueueDepth + n) / 10
	}
}

// RecordDroppedMessage counts a message discarded on a full client buffer.
func (mx *Metrics) RecordDroppedMessage() {
	mx.mu.Lock()
	defer mx.mu.Unlock()

	mx.DroppedMessages++
}

// GetSnapshot returns a point-in-time copy of every counter, grouped
// for the stats endpoint.
func (mx *Metrics) GetSnapshot() map[string]any {
	mx.mu.RLock()
	defer mx.mu.RUnlock()

	errs := make(map[string]int64, len(mx.ErrorsByType))
	for kind, count := range mx.ErrorsByType {
		errs[kind] = count
	}

	conns := map[string]any{
		"total":           mx.TotalConnections,
		"active":          mx.ActiveConnections,
		"max_concurrent":  mx.MaxConcurrent,
		"avg_duration_ms": mx.AvgConnectionTime.Milliseconds(),
	}
	msgs := map[string]any{
		"sent":           mx.MessagesSent,
		"received":       mx.MessagesReceived,
		"bytes_sent":     mx.BytesSent,
		"bytes_received": mx.BytesReceived,
		"errors":         mx.MessageErrors,
		"avg_size":       mx.AvgMessageSize,
		"dropped":        mx.DroppedMessages,
	}
	perf := map[string]any{
		"avg_queue_depth": mx.AvgQueueDepth,
		"max_queue_depth": mx.MaxQueueDepth,
	}

	return map[string]any{
		"connections":    conns,
		"messages":       msgs,
		"performance":    perf,
		"errors":         errs,
		"uptime_seconds": time.Since(mx.LastReset).Seconds(),
	}
}

// Reset zeroes every counter and restarts the uptime clock.
func (mx *Metrics) Reset() {
	mx.mu.Lock()
	defer mx.mu.Unlock()

	mx.TotalConnections = 0
	mx.ActiveConnections = 0
	mx.MaxConcurrent = 0
	mx.AvgConnectionTime = 0
	mx.MessagesSent = 0
	mx.MessagesReceived = 0
	mx.BytesSent = 0
	mx.BytesReceived = 0
	mx.MessageErrors = 0
	mx.DroppedMessages = 0
	mx.AvgMessageSize = 0
	mx.AvgQueueDepth = 0
	mx.MaxQueueDepth = 0
	clear(mx.ErrorsByType)
	mx.LastReset = time.Now()
	mx.connDurations = mx.connDurations[:0]
}
