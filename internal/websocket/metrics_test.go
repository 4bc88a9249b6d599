package websocket

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewMetricsZeroed(t *testing.T) {
	mx := NewMetrics()

	assert.NotNil(t, mx)
	assert.NotNil(t, mx.ErrorsByType)
	assert.Zero(t, mx.TotalConnections)
	assert.Zero(t, mx.ActiveConnections)
	assert.Zero(t, mx.MessagesSent)
	assert.Zero(t, mx.MessagesReceived)
	assert.False(t, mx.LastReset.IsZero())
}

func TestMetricsRecordConnection(t *testing.T) {
	mx := NewMetrics()

	mx.RecordConnection()
	mx.RecordConnection()
	mx.RecordConnection()

	assert.Equal(t, int64(3), mx.TotalConnections)
	assert.Equal(t, int64(3), mx.ActiveConnections)
	assert.Equal(t, int64(3), mx.MaxConcurrent)

	// Max concurrent stays at the high-water mark
	mx.RecordDisconnection(time.Minute)
	assert.Equal(t, int64(2), mx.ActiveConnections)
	assert.Equal(t, int64(3), mx.MaxConcurrent)
}

func TestMetricsRecordDisconnection(t *testing.T) {
	mx := NewMetrics()

	mx.RecordConnection()
	mx.RecordConnection()

	mx.RecordDisconnection(100 * time.Millisecond)
	mx.RecordDisconnection(200 * time.Millisecond)

	assert.Zero(t, mx.ActiveConnections)
	assert.Equal(t, 150*time.Millisecond, mx.AvgConnectionTime)
}

func TestMetricsRecordMessage(t *testing.T) {
	mx := NewMetrics()

	mx.RecordMessage("sent", 100, true)
	assert.Equal(t, int64(1), mx.MessagesSent)
	assert.Equal(t, int64(100), mx.BytesSent)

	mx.RecordMessage("received", 50, true)
	assert.Equal(t, int64(1), mx.MessagesReceived)
	assert.Equal(t, int64(50), mx.BytesReceived)
	assert.Equal(t, int64(75), mx.AvgMessageSize)

	mx.RecordMessage("sent", 64, false)
	assert.Equal(t, int64(1), mx.MessageErrors)
}

func TestMetricsRecordError(t *testing.T) {
	mx := NewMetrics()

	mx.RecordError("write_failed")
	mx.RecordError("send_buffer_full")
	mx.RecordError("write_failed")

	mx.mu.RLock()
	writeErrors := mx.ErrorsByType["write_failed"]
	bufferErrors := mx.ErrorsByType["send_buffer_full"]
	mx.mu.RUnlock()

	assert.Equal(t, int64(2), writeErrors)
	assert.Equal(t, int64(1), bufferErrors)
}

func TestMetricsRecordQueueDepth(t *testing.T) {
	mx := NewMetrics()

	mx.RecordQueueDepth(5)
	assert.Equal(t, int64(5), mx.AvgQueueDepth)
	assert.Equal(t, int64(5), mx.MaxQueueDepth)

	mx.RecordQueueDepth(15)
	assert.Equal(t, int64(15), mx.MaxQueueDepth)
	// Moving average: (5*9 + 15) / 10
	assert.Equal(t, int64(6), mx.AvgQueueDepth)
}

func TestMetricsRecordDroppedMessage(t *testing.T) {
	mx := NewMetrics()

	mx.RecordDroppedMessage()
	mx.RecordDroppedMessage()

	assert.Equal(t, int64(2), mx.DroppedMessages)
}

func TestMetricsGetSnapshot(t *testing.T) {
	mx := NewMetrics()

	mx.RecordConnection()
	mx.RecordConnection()
	mx.RecordMessage("sent", 100, true)
	mx.RecordMessage("received", 60, true)
	mx.RecordMessage("received", 40, true)
	mx.RecordError("write_failed")
	mx.RecordQueueDepth(3)
	mx.RecordDroppedMessage()
	mx.RecordDroppedMessage()

	snap := mx.GetSnapshot()

	connections := snap["connections"].(map[string]any)
	assert.Equal(t, int64(2), connections["total"])
	assert.Equal(t, int64(2), connections["active"])
	assert.Equal(t, int64(2), connections["max_concurrent"])

	messages := snap["messages"].(map[string]any)
	assert.Equal(t, int64(1), messages["sent"])
	assert.Equal(t, int64(2), messages["received"])
	assert.Equal(t, int64(100), messages["bytes_sent"])
	assert.Equal(t, int64(100), messages["bytes_received"])
	assert.Equal(t, int64(2), messages["dropped"])

	performance := snap["performance"].(map[string]any)
	assert.Equal(t, int64(3), performance["max_queue_depth"])

	errorCounts := snap["errors"].(map[string]int64)
	assert.Equal(t, int64(1), errorCounts["write_failed"])

	assert.GreaterOrEqual(t, snap["uptime_seconds"].(float64), 0.0)
}

func TestMetricsReset(t *testing.T) {
	mx := NewMetrics()

	mx.RecordConnection()
	mx.RecordMessage("sent", 100, true)
	mx.RecordError("write_failed")
	mx.RecordQueueDepth(10)
	mx.RecordDroppedMessage()

	mx.Reset()

	assert.Zero(t, mx.TotalConnections)
	assert.Zero(t, mx.ActiveConnections)
	assert.Zero(t, mx.MessagesSent)
	assert.Zero(t, mx.BytesSent)
	assert.Zero(t, mx.MaxQueueDepth)
	assert.Zero(t, mx.DroppedMessages)
	assert.Empty(t, mx.ErrorsByType)
}

func TestMetricsConcurrentAccess(t *testing.T) {
	mx := NewMetrics()

	var wg sync.WaitGroup
	const nWorkers, nIters = 10, 100

	wg.Add(nWorkers)
	for i := 0; i < nWorkers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < nIters; j++ {
				mx.RecordConnection()
				mx.RecordMessage("sent", 10, true)
				mx.RecordMessage("received", 10, true)
				mx.RecordError("concurrent")
				mx.RecordQueueDepth(int64(j))
				mx.RecordDisconnection(time.Millisecond)
				_ = mx.GetSnapshot()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(nWorkers*nIters), mx.TotalConnections)
	assert.Zero(t, mx.ActiveConnections)
	assert.Equal(t, int64(nWorkers*nIters), mx.MessagesSent)
	assert.Equal(t, int64(nWorkers*nIters), mx.MessagesReceived)
}
