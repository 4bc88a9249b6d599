package websocket

import (
	"errors"
	"sync"
	"time"
)

// errMockClosed mirrors the error a real socket returns once closed.
var errMockClosed = errors.New("use of closed mock connection")

// mockConn is an in-memory Connection for exercising the client pumps
// without a network peer. Writes are captured, reads are served from a
// queue primed with AddReadMessage.
type mockConn struct {
	mu sync.Mutex

	// WriteMessageFunc, when non-nil, intercepts WriteMessage calls
	// so tests can inject write failures.
	WriteMessageFunc func(mt int, data []byte) error

	written       []mockMessage
	pending       []mockMessage
	readIdx       int
	closed        bool
	readDeadline  time.Time
	writeDeadline time.Time
	pongHandler   func(string) error
	remoteAddr    string
	readLimit     int64
}

var _ Connection = (*mockConn)(nil)

// mockMessage is a single frame captured or queued by mockConn.
type mockMessage struct {
	Type int
	Data []byte
	Err  error
}

// newMockConn returns a mock with a fixed loopback address.
func newMockConn() *mockConn {
	return &mockConn{remoteAddr: "127.0.0.1:8080"}
}

func (mc *mockConn) WriteMessage(mt int, data []byte) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.closed {
		return errMockClosed
	}
	if mc.WriteMessageFunc != nil {
		return mc.WriteMessageFunc(mt, data)
	}

	mc.written = append(mc.written, mockMessage{Type: mt, Data: data})
	return nil
}

func (mc *mockConn) ReadMessage() (messageType int, p []byte, err error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.closed {
		return 0, nil, errMockClosed
	}
	if mc.readIdx >= len(mc.pending) {
		return 0, nil, errors.New("no more messages")
	}

	msg := mc.pending[mc.readIdx]
	mc.readIdx++
	return msg.Type, msg.Data, msg.Err
}

func (mc *mockConn) Close() error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.closed = true
	return nil
}

func (mc *mockConn) SetReadDeadline(t time.Time) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.readDeadline = t
	return nil
}

func (mc *mockConn) SetWriteDeadline(t time.Time) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.writeDeadline = t
	return nil
}

func (mc *mockConn) SetReadLimit(limit int64) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.readLimit = limit
}

func (mc *mockConn) SetPongHandler(h func(string) error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.pongHandler = h
}

func (mc *mockConn) RemoteAddr() string {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	return mc.remoteAddr
}

// AddReadMessage queues a frame for a later ReadMessage call.
func (mc *mockConn) AddReadMessage(mt int, data []byte, err error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.pending = append(mc.pending, mockMessage{Type: mt, Data: data, Err: err})
}

// GetWrittenMessages returns a copy of every frame written so far.
func (mc *mockConn) GetWrittenMessages() []mockMessage {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	out := make([]mockMessage, len(mc.written))
	copy(out, mc.written)
	return out
}

// GetReadDeadline returns the most recent read deadline.
func (mc *mockConn) GetReadDeadline() time.Time {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	return mc.readDeadline
}

// GetReadLimit returns the most recent read limit.
func (mc *mockConn) GetReadLimit() int64 {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	return mc.readLimit
}

// IsClosed reports whether Close has been called.
func (mc *mockConn) IsClosed() bool {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	return mc.closed
}
