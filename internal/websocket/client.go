package websocket

import (
	"bytes"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/k-laffite/water-quality-visualizer/internal/infrastructure"
)

const (
	// writeWait bounds each outbound frame write
	writeWait = 10 * time.Second

	// maxMessageSize caps inbound frames. Browsers only send small
	// heartbeat frames, so this stays tight.
	maxMessageSize = 512

	// sendQueueSize is the outbound buffer per client
	sendQueueSize = 256
)

// heartbeatFrame is the application-level keepalive browsers send when
// they cannot emit protocol pings.
const heartbeatFrame = `{"type":"heartbeat"}`

var (
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// Client sits between one websocket connection and the hub, running a
// read pump and a write pump on dedicated goroutines.
type Client struct {
	hub  *Hub
	conn Connection
	send chan []byte

	// Client metadata
	id          string
	traceID     string
	remoteAddr  string
	connectedAt time.Time

	logger *slog.Logger

	// Per-connection counters
	messagesSent     int64
	messagesReceived int64
	bytesSent        int64
	bytesReceived    int64
}

// NewClient wraps an upgraded gorilla connection in a Client.
func NewClient(hub *Hub, conn *websocket.Conn, log *slog.Logger) *Client {
	return NewClientWithConnection(hub, wrapConn(conn), log)
}

// NewClientWithConnection builds a Client on any Connection
// implementation, which tests use to substitute a mock.
func NewClientWithConnection(hub *Hub, conn Connection, log *slog.Logger) *Client {
	if log == nil {
		log = infrastructure.GetLogger()
	}

	id := uuid.New().String()
	addr := conn.RemoteAddr()
	log = log.With(slog.String("component", "websocket.client"), slog.String("client_id", id))

	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendQueueSize),
		id:          id,
		remoteAddr:  addr,
		connectedAt: time.Now(),
		logger:      log,
	}
}

// NewClientWithTrace is NewClient carrying the trace ID of the upgrade
// request.
func NewClientWithTrace(hub *Hub, conn *websocket.Conn, traceID string, log *slog.Logger) *Client {
	cl := NewClient(hub, conn, log)
	if traceID != "" {
		cl.traceID = traceID
		cl.logger = cl.logger.With(slog.String("trace_id", traceID))
	}
	return cl
}

// ReadPump pulls frames off the connection until it errors or closes.
// It enforces the read deadline refreshed by pongs and by frontend
// heartbeat frames.
func (cl *Client) ReadPump() {
	ctx := traceCtx(cl.traceID)
	defer func() {
		cl.logger.InfoContext(ctx, "Read pump stopped",
			slog.Int64("messages_received", cl.messagesReceived),
			slog.Int64("bytes_received", cl.bytesReceived),
			slog.Duration("connection_duration", time.Since(cl.connectedAt)))
		cl.hub.notifyUnregister(cl)
		cl.conn.Close()
	}()

	cl.conn.SetReadLimit(maxMessageSize)
	cl.conn.SetReadDeadline(time.Now().Add(cl.hub.pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(cl.hub.pongWait))
	})

	for {
		_, message, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				cl.logger.ErrorContext(ctx, "Unexpected close from peer", slog.String("error", err.Error()))
				cl.hub.metrics.RecordError("unexpected_close")
			}
			return
		}
		message = bytes.TrimSpace(bytes.ReplaceAll(message, newline, space))

		cl.messagesReceived++
		cl.bytesReceived += int64(len(message))
		cl.hub.metrics.RecordMessage("received", int64(len(message)), true)

		// Browsers without ping support send an application-level
		// heartbeat instead; treat it like a pong
		if string(message) == heartbeatFrame {
			cl.conn.SetReadDeadline(time.Now().Add(cl.hub.pongWait))
			cl.logger.Debug("Heartbeat received")
			continue
		}

		// Clients are read-only consumers of dataset events; other
		// inbound frames are ignored
	}
}

// WritePump feeds hub messages to the connection and keeps it alive
// with periodic pings.
func (cl *Client) WritePump() {
	ctx := traceCtx(cl.traceID)
	ticker := time.NewTicker(cl.hub.pingPeriod)
	defer func() {
		ticker.Stop()
		cl.conn.Close()

		cl.logger.InfoContext(ctx, "Write pump stopped",
			slog.Int64("bytes_sent", cl.bytesSent),
			slog.Int64("messages_sent", cl.messagesSent))
	}()

	for {
		select {
		case message, ok := <-cl.send:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel; tell the peer we are done
				cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := cl.writeText(message); err != nil {
				cl.logger.ErrorContext(ctx, "WebSocket write failed", slog.String("error", err.Error()))
				cl.hub.metrics.RecordError("write_failed")
				return
			}

			// Flush anything already queued as separate frames
		drain:
			for range len(cl.send) {
				select {
				case msg := <-cl.send:
					cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := cl.writeText(msg); err != nil {
						cl.logger.ErrorContext(ctx, "Queued frame write failed", slog.String("error", err.Error()))
						cl.hub.metrics.RecordError("write_failed")
						return
					}
				default:
					break drain
				}
			}

		case <-ticker.C:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				cl.logger.DebugContext(ctx, "Ping failed", slog.String("error", err.Error()))
				return
			}
		}
	}
}

// writeText sends one text frame and updates counters on success.
func (cl *Client) writeText(message []byte) error {
	if err := cl.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		return err
	}
	cl.messagesSent++
	cl.bytesSent += int64(len(message))
	cl.hub.metrics.RecordMessage("sent", int64(len(message)), true)
	return nil
}

// ServeWS attaches a freshly upgraded connection to the hub and starts
// its pumps.
func ServeWS(h *Hub, conn *websocket.Conn) {
	ServeWSWithTrace(h, conn, "")
}

// ServeWSWithTrace is ServeWS with the upgrade request's trace ID
// propagated into the client's logs and events.
func ServeWSWithTrace(h *Hub, conn *websocket.Conn, traceID string) {
	cl := NewClientWithTrace(h, conn, traceID, nil)
	h.Register(cl)

	// Run the pumps on their own goroutines so the upgrade handler
	// returns immediately
	go cl.WritePump()
	go cl.ReadPump()
}
