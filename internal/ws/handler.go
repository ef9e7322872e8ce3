package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/radiorevive/console/pkg/plugin"
	"go.uber.org/zap"
)

// CollectionSource describes one live collection served over the stream.
// Load must return the full collection contents; it is invoked once per
// change event, never per client.
type CollectionSource struct {
	Name  string                                   // "devices", "groups", "users"
	Topic string                                   // bus topic that signals a change
	Load  func(ctx context.Context) (any, error)
}

// Handler provides the WebSocket endpoint for live dashboard updates.
type Handler struct {
	hub     *Hub
	bus     plugin.EventBus
	sources []CollectionSource
	logger  *zap.Logger
}

// Compile-time check that Handler implements the server interface.
var _ interface {
	RegisterRoutes(mux *http.ServeMux)
} = (*Handler)(nil)

// NewHandler creates a WebSocket handler and subscribes to the change
// topics of the given collection sources.
func NewHandler(bus plugin.EventBus, logger *zap.Logger, sources ...CollectionSource) *Handler {
	h := &Handler{
		hub:     NewHub(logger),
		bus:     bus,
		sources: sources,
		logger:  logger,
	}
	h.subscribeToEvents()
	return h
}

// RegisterRoutes registers WebSocket routes on the server mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/ws/live", h.handleLiveStream)
}

// Hub exposes the underlying hub, mainly for health reporting.
func (h *Handler) Hub() *Hub {
	return h.hub
}

// handleLiveStream upgrades the connection to WebSocket, sends an initial
// snapshot of every collection, then streams snapshots as collections change.
func (h *Handler) handleLiveStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Error("websocket accept failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:   conn,
		remote: r.RemoteAddr,
		send:   make(chan Message, 256),
		logger: h.logger,
	}

	h.hub.Register(client)

	// Initial snapshots so the dashboard renders without waiting for a change.
	ctx := r.Context()
	h.sendInitial(ctx, client)

	done := make(chan struct{})
	go func() {
		client.writePump(ctx)
		close(done)
	}()

	// readPump blocks until client disconnects.
	client.readPump(ctx)

	h.hub.Unregister(client)
	conn.Close(websocket.StatusNormalClosure, "")
	<-done
}

// subscribeToEvents subscribes to each collection's change topic. On every
// event the full collection is re-read and broadcast to all clients.
func (h *Handler) subscribeToEvents() {
	if h.bus == nil {
		return
	}

	for _, src := range h.sources {
		src := src
		h.bus.Subscribe(src.Topic, func(ctx context.Context, _ plugin.Event) {
			msg, err := h.snapshot(ctx, src)
			if err != nil {
				// A collection-wide failure concerns every client.
				h.hub.Broadcast(errorMessage(src.Name, err))
				return
			}
			h.hub.Broadcast(msg)
		})
	}

	h.logger.Info("subscribed to collection change events for WebSocket broadcasting",
		zap.Int("collections", len(h.sources)))
}

// sendInitial queues a snapshot of every collection for one client. A load
// failure here is reported to that client alone; clients already connected
// hold a valid snapshot and must not see the error.
func (h *Handler) sendInitial(ctx context.Context, client *Client) {
	for _, src := range h.sources {
		msg, err := h.snapshot(ctx, src)
		if err != nil {
			msg = errorMessage(src.Name, err)
		}
		select {
		case client.send <- msg:
		default:
		}
	}
}

// snapshot loads a collection and wraps it in a snapshot message.
func (h *Handler) snapshot(ctx context.Context, src CollectionSource) (Message, error) {
	data, err := src.Load(ctx)
	if err != nil {
		h.logger.Error("collection snapshot failed",
			zap.String("collection", src.Name),
			zap.Error(err),
		)
		return Message{}, err
	}
	return Message{
		Type:      SnapshotType(src.Name),
		Timestamp: time.Now(),
		Data:      data,
	}, nil
}

func errorMessage(collection string, err error) Message {
	return Message{
		Type:      MessageError,
		Timestamp: time.Now(),
		Data:      ErrorData{Collection: collection, Error: err.Error()},
	}
}
