// Package events contains event contract definitions for WebSocket
// communication in the Water Quality Visualizer.
package events

import "time"

// MessageType names the kind of frame on the wire.
type MessageType string

// Message types broadcast by the hub. The dataset pair is the primary
// traffic; connect, disconnect and error frame the connection
// lifecycle.
const (
	MessageTypeDatasetLoaded   MessageType = "dataset:loaded"
	MessageTypeDatasetRejected MessageType = "dataset:rejected"
	MessageTypeSystemStatus    MessageType = "system:status"
	MessageTypeConnect         MessageType = "connect"
	MessageTypeDisconnect      MessageType = "disconnect"
	MessageTypeError           MessageType = "error"
)

// BaseMessage carries the envelope fields common to every frame.
type BaseMessage struct {
	ID        string      `json:"id,omitempty"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// WebSocketMessage is a full frame, envelope plus payload.
type WebSocketMessage struct {
	BaseMessage
	Data any `json:"data,omitempty"`
}

// DatasetSnapshot is the payload broadcast whenever the current dataset
// changes, so connected frontends refresh without polling.
type DatasetSnapshot struct {
	Name         string    `json:"name"`
	Fingerprint  string    `json:"fingerprint"`
	Rows         int       `json:"rows"`
	Columns      int       `json:"columns"`
	Numeric      []string  `json:"numeric"`
	SkippedLines int       `json:"skipped_lines"`
	BlankLines   int       `json:"blank_lines"`
	LoadedAt     time.Time `json:"loaded_at"`
}

// DatasetRejection is the payload broadcast when an upload fails to
// parse. The previous dataset, if any, stays current.
type DatasetRejection struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// ErrorData is the payload of an error frame.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	Retry   bool   `json:"retry"`
	Fatal   bool   `json:"fatal"`
}

// ErrorMessage reports a failure to the client.
type ErrorMessage struct {
	BaseMessage
	Data ErrorData `json:"data"`
}

// SystemStatusData is the payload of a system:status frame.
type SystemStatusData struct {
	Status  string `json:"status"` // healthy|degraded|unhealthy
	Uptime  string `json:"uptime"`
	Version string `json:"version"`
}

// SystemStatusEvent reports service health over the socket.
type SystemStatusEvent struct {
	BaseMessage
	Data SystemStatusData `json:"data"`
}
