package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/k-laffite/water-quality-visualizer/internal/config"
	"github.com/k-laffite/water-quality-visualizer/internal/infrastructure"
	"github.com/k-laffite/water-quality-visualizer/pkg/contracts/events"
)

// reportInterval is how often the hub logs its traffic totals.
const reportInterval = 30 * time.Second

// errorRecoveryHints maps broadcast error codes to the recovery
// suggestion the frontend shows next to the error toast.
var errorRecoveryHints = map[string]string{
	"DATASET_UNPARSABLE": "Check that the file has a header row and comma-separated values",
	"COLUMN_NOT_FOUND":   "Reload the page to refresh the column list",
	"default":            "Please try again",
}

// Hub maintains the set of active clients and fans dataset events out
// to them. One hub serves the whole process; handlers hand freshly
// upgraded connections to it via Register.
type Hub struct {
	clients map[*Client]struct{}

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu     sync.RWMutex
	logger *slog.Logger

	// Pump timings, normalized from config
	pongWait   time.Duration
	pingPeriod time.Duration

	// Traffic accounting
	metrics          *Metrics
	totalConnections int64
	messagesSent     int64

	// Control
	quit       chan struct{}
	done       chan struct{}
	running    bool
	reportQuit chan struct{}
}

// NewHub creates a new Hub instance. Zero or inconsistent timing values
// in cfg fall back to the packaged defaults.
func NewHub(cfg config.WebSocketConfig, log *slog.Logger) *Hub {
	if log == nil {
		log = infrastructure.GetLogger()
	}
	log = log.With(slog.String("component", "websocket.hub"))

	pongWait := cfg.PongWait
	if pongWait <= 0 {
		pongWait = config.WebSocketPongWait
	}
	pingPeriod := cfg.PingPeriod
	if pingPeriod <= 0 || pingPeriod >= pongWait {
		// Pings must go out before the peer's pong deadline lapses
		pingPeriod = pongWait * 9 / 10
	}

	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     log,
		pongWait:   pongWait,
		pingPeriod: pingPeriod,
		metrics:    NewMetrics(),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		reportQuit: make(chan struct{}),
	}
}

// Metrics returns the hub's traffic metrics.
func (hub *Hub) Metrics() *Metrics {
	return hub.metrics
}

// Start launches the hub loop and the metrics reporter. Calling it on a
// running hub is a no-op.
func (hub *Hub) Start() {
	hub.mu.Lock()
	if hub.running {
		hub.mu.Unlock()
		return
	}
	hub.running = true
	hub.mu.Unlock()

	go hub.run()
	go hub.reportLoop()
}

// run is the hub's main loop. It owns all transitions of the clients
// map; everything else reaches it through the channels.
func (hub *Hub) run() {
	defer close(hub.done)
	for {
		select {
		case <-hub.quit:
			hub.logger.Info("Hub stopping")
			return
		case client := <-hub.register:
			hub.addClient(client)
		case client := <-hub.unregister:
			hub.removeClient(client)
		case message := <-hub.broadcast:
			hub.fanOut(message)
		}
	}
}

// traceCtx returns a background context carrying traceID when present,
// so hub logs correlate with the request that triggered them.
func traceCtx(traceID string) context.Context {
	if traceID == "" {
		return context.Background()
	}
	return infrastructure.WithTraceID(context.Background(), traceID)
}

// rfc3339Now stamps outbound envelopes.
func rfc3339Now() string {
	return time.Now().Format(time.RFC3339)
}

func (hub *Hub) addClient(client *Client) {
	hub.mu.Lock()
	hub.clients[client] = struct{}{}
	n := len(hub.clients)
	hub.totalConnections++
	hub.mu.Unlock()

	ctx := traceCtx(client.traceID)
	hub.logger.InfoContext(ctx, "Client registered",
		slog.String("client_id", client.id),
		slog.String("remote_addr", client.remoteAddr),
		slog.Int("total_clients", n))

	hub.metrics.RecordConnection()

	// Greet the new client so the frontend can surface its connection
	// state immediately
	greeting := map[string]any{
		"type": string(events.MessageTypeConnect),
		"data": map[string]any{
			"status":    "connected",
			"message":   "Connected to water quality stream",
			"client_id": client.id,
		},
		"timestamp": rfc3339Now(),
	}
	if client.traceID != "" {
		greeting["trace_id"] = client.traceID
	}

	payload, err := json.Marshal(greeting)
	if err != nil {
		return
	}
	select {
	case client.send <- payload:
		hub.logger.DebugContext(ctx, "Greeting queued",
			slog.String("client_id", client.id))
	default:
		hub.logger.WarnContext(ctx, "Greeting dropped, client buffer full",
			slog.String("client_id", client.id))
	}
}

func (hub *Hub) removeClient(client *Client) {
	hub.mu.Lock()
	if _, ok := hub.clients[client]; !ok {
		hub.mu.Unlock()
		return
	}
	delete(hub.clients, client)
	close(client.send)
	n := len(hub.clients)
	hub.mu.Unlock()

	lifetime := time.Since(client.connectedAt)
	hub.logger.InfoContext(traceCtx(client.traceID), "Client unregistered",
		slog.String("client_id", client.id),
		slog.Duration("connection_duration", lifetime),
		slog.Int("total_clients", n))

	hub.metrics.RecordDisconnection(lifetime)
}

func (hub *Hub) fanOut(message []byte) {
	hub.mu.RLock()
	targets := make([]*Client, 0, len(hub.clients))
	for client := range hub.clients {
		targets = append(targets, client)
	}
	hub.mu.RUnlock()

	hub.logger.Debug("Broadcasting to clients",
		slog.Int("client_count", len(targets)),
		slog.Int("message_size", len(message)))

	var sent, dropped int
	for _, client := range targets {
		select {
		case client.send <- message:
			sent++
			continue
		default:
		}
		dropped++

		// Slow consumer; drop it rather than stall the fan-out
		hub.mu.Lock()
		if _, ok := hub.clients[client]; ok {
			close(client.send)
			delete(hub.clients, client)
		}
		hub.mu.Unlock()

		hub.metrics.RecordDroppedMessage()
		hub.metrics.RecordError("send_buffer_full")
		hub.logger.WarnContext(traceCtx(client.traceID), "Client send buffer full, disconnecting",
			slog.String("client_id", client.id))
	}

	hub.mu.Lock()
	hub.messagesSent += int64(sent)
	hub.mu.Unlock()

	if dropped > 0 {
		hub.logger.Warn("Broadcast dropped slow clients",
			slog.Int("success_count", sent),
			slog.Int("fail_count", dropped))
	}
}

// BroadcastDatasetLoaded announces a newly activated dataset so
// connected frontends refresh without polling.
func (hub *Hub) BroadcastDatasetLoaded(snapshot events.DatasetSnapshot) {
	hub.BroadcastDatasetLoadedWithTrace(snapshot, "")
}

// BroadcastDatasetLoadedWithTrace is BroadcastDatasetLoaded carrying the
// trace ID of the request that loaded the dataset.
func (hub *Hub) BroadcastDatasetLoadedWithTrace(snapshot events.DatasetSnapshot, traceID string) {
	hub.broadcastEnvelope(string(events.MessageTypeDatasetLoaded), snapshot, traceID)
}

// BroadcastDatasetRejected announces an upload that failed to parse.
// The previously loaded dataset, if any, stays current.
func (hub *Hub) BroadcastDatasetRejected(rejection events.DatasetRejection) {
	hub.BroadcastDatasetRejectedWithTrace(rejection, "")
}

// BroadcastDatasetRejectedWithTrace is BroadcastDatasetRejected carrying
// the trace ID of the rejected request.
func (hub *Hub) BroadcastDatasetRejectedWithTrace(rejection events.DatasetRejection, traceID string) {
	hub.broadcastEnvelope(string(events.MessageTypeDatasetRejected), rejection, traceID)
}

// BroadcastStatus announces a system state change to every client.
func (hub *Hub) BroadcastStatus(status, message string) {
	hub.BroadcastStatusWithTrace(status, message, "")
}

// BroadcastStatusWithTrace is BroadcastStatus with trace correlation.
func (hub *Hub) BroadcastStatusWithTrace(status, message, traceID string) {
	hub.broadcastEnvelope(string(events.MessageTypeSystemStatus), map[string]any{
		"status":  status,
		"message": message,
	}, traceID)
}

// BroadcastError sends a structured error with a recovery hint the
// frontend can show verbatim.
func (hub *Hub) BroadcastError(code, message string, recoverable bool) {
	hint, ok := errorRecoveryHints[code]
	if !ok {
		hint = errorRecoveryHints["default"]
	}

	hub.broadcastEnvelope(string(events.MessageTypeError), map[string]any{
		"code":        code,
		"message":     message,
		"recoverable": recoverable,
		"hint":        hint,
	}, "")
}

// Broadcast sends an arbitrary typed payload to all connected clients.
// It satisfies the notifier interfaces the service layer depends on.
func (hub *Hub) Broadcast(messageType string, data any) {
	hub.broadcastEnvelope(messageType, data, "")
}

// broadcastEnvelope wraps data in the standard {type, data, timestamp}
// envelope and queues it for fan-out.
func (hub *Hub) broadcastEnvelope(messageType string, data any, traceID string) {
	env := map[string]any{"type": messageType, "data": data, "timestamp": rfc3339Now()}
	if traceID != "" {
		env["trace_id"] = traceID
	}

	payload, err := json.Marshal(env)
	if err != nil {
		hub.logger.ErrorContext(traceCtx(traceID), "Marshal of event envelope failed",
			slog.String("message_type", messageType), slog.String("error", err.Error()))
		return
	}
	hub.send(payload)
}

// send queues raw bytes for fan-out, giving up if the hub shuts down
// before the loop picks the message up.
func (hub *Hub) send(message []byte) {
	select {
	case hub.broadcast <- message:
	case <-hub.quit:
	}
}

// notifyUnregister hands a client back to the loop, or drops the
// request if the hub already stopped.
func (hub *Hub) notifyUnregister(client *Client) {
	select {
	case hub.unregister <- client:
	case <-hub.quit:
	}
}

// ClientCount reports how many clients are currently connected.
func (hub *Hub) ClientCount() int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.clients)
}

// Register queues a freshly upgraded client for the hub loop.
func (hub *Hub) Register(client *Client) {
	hub.register <- client
}

// Stop shuts the hub down and closes every client channel. Calling it
// on a stopped hub is a no-op.
func (hub *Hub) Stop() {
	hub.mu.Lock()
	if !hub.running {
		hub.mu.Unlock()
		return
	}
	hub.running = false
	hub.mu.Unlock()

	close(hub.quit)
	close(hub.reportQuit)

	// Wait for the main loop so nothing is mid-send on a client channel
	<-hub.done

	hub.mu.Lock()
	defer hub.mu.Unlock()
	for client := range hub.clients {
		close(client.send)
	}
	clear(hub.clients)
}

// reportLoop logs hub traffic totals every reportInterval.
func (hub *Hub) reportLoop() {
	ticker := time.NewTicker(reportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-hub.reportQuit:
			hub.logger.Info("Metrics reporter stopping")
			return
		case <-ticker.C:
			hub.mu.RLock()
			active := len(hub.clients)
			total := hub.totalConnections
			sent := hub.messagesSent
			hub.mu.RUnlock()

			hub.metrics.RecordQueueDepth(int64(len(hub.broadcast)))

			hub.logger.Info("WebSocket hub metrics",
				slog.Int("active_clients", active), slog.Int64("total_connections", total),
				slog.Int64("messages_sent", sent), slog.Int("broadcast_queue", len(hub.broadcast)))
		}
	}
}

// GetHubMetrics returns current hub counters for the health endpoint.
func (hub *Hub) GetHubMetrics() map[string]any {
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	return map[string]any{
		"active_clients":    len(hub.clients),
		"total_connections": hub.totalConnections,
		"messages_sent":     hub.messagesSent,
	}
}
