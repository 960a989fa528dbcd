// Package hub streams crawl progress to HTTP clients as server-sent events.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"identigraph/internal/service"
)

const keepAliveInterval = 30 * time.Second

type client struct {
	id      string
	crawlID string
	frames  chan []byte
}

// Hub fans crawl events out to connected SSE clients
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	events  chan service.Event
	logger  *zap.Logger
}

// New creates a hub. Call Run to start forwarding events from bus.
func New(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		events:  make(chan service.Event, 256),
		logger:  logger,
	}
}

// Run forwards events from bus until ctx is done, then disconnects clients
func (h *Hub) Run(ctx context.Context, bus *service.EventBus) {
	bus.Subscribe(h.events)
	defer bus.Unsubscribe(h.events)

	for {
		select {
		case event := <-h.events:
			h.broadcast(event)
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.frames)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) broadcast(event service.Event) {
	frame, err := encodeFrame(event)
	if err != nil {
		h.logger.Warn("failed to encode crawl event", zap.String("type", string(event.Type)), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.crawlID != "" && c.crawlID != event.CrawlID {
			continue
		}
		select {
		case c.frames <- frame:
		default:
			h.logger.Debug("sse client is slow, dropping event", zap.String("client", c.id))
		}
	}
}

// encodeFrame renders one SSE frame named after the event type
func encodeFrame(event service.Event) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, data)), nil
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("sse client connected", zap.String("client", c.id), zap.Int("total", n))
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.frames)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("sse client disconnected", zap.String("client", c.id), zap.Int("total", n))
}

// ServeHTTP streams events. The optional crawl_id query parameter limits
// the stream to a single crawl.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	c := &client{
		id:      uuid.NewString(),
		crawlID: r.URL.Query().Get("crawl_id"),
		frames:  make(chan []byte, 64),
	}
	h.add(c)
	defer h.remove(c)

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-c.frames:
			if !ok {
				return
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
