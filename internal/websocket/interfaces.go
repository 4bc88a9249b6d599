package websocket

import "time"

// Connection is the subset of a gorilla websocket connection that the
// client pumps touch. It exists so tests can substitute a mock.
type Connection interface {
	WriteMessage(mt int, data []byte) error
	ReadMessage() (mt int, p []byte, err error)
	Close() error
	SetReadDeadline(deadline time.Time) error
	SetWriteDeadline(deadline time.Time) error
	SetReadLimit(n int64)
	SetPongHandler(fn func(string) error)
	RemoteAddr() string
}

// TrafficRecorder is the recording surface the hub and client pumps
// report traffic into.
type TrafficRecorder interface {
	RecordConnection()
	RecordDisconnection(connectedFor time.Duration)

	// RecordMessage tracks one message; direction is "sent" or
	// "received".
	RecordMessage(direction string, bytes int64, success bool)

	// RecordError tracks one error bucketed by kind.
	RecordError(kind string)

	// RecordQueueDepth samples the broadcast queue depth.
	RecordQueueDepth(n int64)

	// RecordDroppedMessage counts a message dropped on a full client
	// buffer.
	RecordDroppedMessage()

	GetSnapshot() map[string]any
	Reset()
}
