package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/kosonkh7/SOPO-Dashboard/internal/infrastructure"
)

// Message types pushed to clients
const (
	TypeConnection  = "connection"
	TypeJobStatus   = "ranking:status"
	TypeJobProgress = "ranking:progress"
	TypeDataUpdate  = "data_update"
)

// broadcastQueueSize bounds messages waiting for the hub loop; further
// broadcasts are dropped rather than blocking the sender.
const broadcastQueueSize = 256

// Message is the envelope of every message sent to clients
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

type outbound struct {
	messageType string
	payload     []byte
}

// Hub maintains the set of active clients and broadcasts messages to the clients
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	running bool
	quit    chan struct{}
	done    chan struct{}

	logger  *slog.Logger
	metrics *hubMetrics
}

// NewHub creates a new Hub instance with dependency injection
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger = logger.With(slog.String("component", "websocket.hub"))

	metrics, err := newHubMetrics()
	if err != nil {
		logger.Warn("websocket metrics disabled", slog.String("error", err.Error()))
	}

	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan outbound, broadcastQueueSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger,
		metrics:    metrics,
	}
}

// Start runs the hub loop in a new goroutine. Calling it twice is a no-op.
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	h.running = true
	go h.run()
}

// Stop ends the hub loop and closes every client's send channel.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.quit)
	<-h.done
}

func (h *Hub) run() {
	defer close(h.done)
	ctx := context.Background()

	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.logger.Info("Hub shutting down")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()
			h.metrics.connectionChanged(ctx, 1)

			cctx := client.context()
			h.logger.InfoContext(cctx, "Client registered",
				slog.Int("total_clients", count),
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr))

			if payload, err := encode(cctx, TypeConnection, map[string]interface{}{
				"status":    "connected",
				"client_id": client.id,
			}); err == nil {
				select {
				case client.send <- payload:
				default:
					h.logger.WarnContext(cctx, "Failed to send connection message - client buffer full",
						slog.String("client_id", client.id))
				}
			}

		case client := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[client]
			if ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()

			if ok {
				h.metrics.connectionChanged(ctx, -1)
				h.logger.InfoContext(client.context(), "Client unregistered",
					slog.Int("total_clients", count),
					slog.String("client_id", client.id),
					slog.Duration("connection_duration", time.Since(client.connectedAt)))
			}

		case msg := <-h.broadcast:
			h.deliver(ctx, msg)
		}
	}
}

// deliver fans msg out; a client whose buffer is full is disconnected.
func (h *Hub) deliver(ctx context.Context, msg outbound) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sent := 0
	for client := range h.clients {
		select {
		case client.send <- msg.payload:
			sent++
		default:
			close(client.send)
			delete(h.clients, client)
			h.metrics.connectionChanged(ctx, -1)
			h.metrics.dropped(ctx, "client_buffer_full")
			h.logger.WarnContext(client.context(), "Client send buffer full, disconnecting",
				slog.String("client_id", client.id))
		}
	}
	h.metrics.delivered(ctx, msg.messageType, sent)

	h.logger.Debug("Broadcast delivered",
		slog.String("type", msg.messageType),
		slog.Int("client_count", sent),
		slog.Int("message_size", len(msg.payload)))
}

// Broadcast queues a message for every client. The trace id of ctx, if any,
// travels with the message. Broadcast never blocks: when the queue is full
// or the hub is stopped the message is dropped.
func (h *Hub) Broadcast(ctx context.Context, messageType string, data interface{}) {
	payload, err := encode(ctx, messageType, data)
	if err != nil {
		h.logger.ErrorContext(ctx, "Error marshaling message",
			slog.String("error", err.Error()),
			slog.String("message_type", messageType))
		return
	}

	select {
	case <-h.quit:
		return
	default:
	}

	select {
	case h.broadcast <- outbound{messageType: messageType, payload: payload}:
	default:
		h.metrics.dropped(ctx, "hub_queue_full")
		h.logger.WarnContext(ctx, "Broadcast queue full, message dropped",
			slog.String("message_type", messageType))
	}
}

// Register adds a client to the hub. It returns false when the hub is stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.quit:
		return false
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func encode(ctx context.Context, messageType string, data interface{}) ([]byte, error) {
	return json.Marshal(Message{
		Type:      messageType,
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339),
		TraceID:   infrastructure.GetTraceID(ctx),
	})
}
