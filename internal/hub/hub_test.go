package hub

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"identigraph/internal/service"
)

func startHub(t *testing.T) (*Hub, *service.EventBus, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	bus := service.NewEventBus()
	h := New(nil)
	go h.Run(ctx, bus)

	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return h, bus, srv
}

// connect opens a stream and waits until the hub has registered it
func connect(t *testing.T, h *Hub, url string, want int) *bufio.Reader {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return h.ClientCount() == want }, time.Second, 5*time.Millisecond)
	return bufio.NewReader(resp.Body)
}

// nextEvent returns the event name and data of the next frame
func nextEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var name, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && name != "":
			return name, data
		}
	}
}

func TestHubStreamsEvents(t *testing.T) {
	h, bus, srv := startHub(t)
	r := connect(t, h, srv.URL, 1)

	bus.Publish(service.Event{Type: service.EventCrawlStarted, CrawlID: "c1", Payload: map[string]any{"seed": "twitter:alice"}})

	name, data := nextEvent(t, r)
	assert.Equal(t, "crawl_started", name)
	assert.Contains(t, data, `"crawl_id":"c1"`)
	assert.Contains(t, data, "twitter:alice")
}

func TestHubFiltersByCrawlID(t *testing.T) {
	h, bus, srv := startHub(t)
	r := connect(t, h, srv.URL+"?crawl_id=wanted", 1)

	bus.Publish(service.Event{Type: service.EventRoundStarted, CrawlID: "other"})
	bus.Publish(service.Event{Type: service.EventCrawlFinished, CrawlID: "wanted"})

	name, data := nextEvent(t, r)
	assert.Equal(t, "crawl_finished", name)
	assert.Contains(t, data, "wanted")
}

func TestHubDisconnectsOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	bus := service.NewEventBus()
	h := New(nil)
	done := make(chan struct{})
	go func() {
		h.Run(ctx, bus)
		close(done)
	}()
	srv := httptest.NewServer(h)
	defer srv.Close()

	connect(t, h, srv.URL, 1)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	assert.Equal(t, 0, h.ClientCount())
}
