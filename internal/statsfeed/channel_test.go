package statsfeed

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamwatch/player/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// statsServer upgrades every request and writes each queued frame as a
// text message.
func statsServer(t *testing.T, frames ...string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		for _, frame := range frames {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
		}

		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsUrl(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestSubscribeDeliversUpdates(t *testing.T) {
	server := statsServer(t,
		`{"current_viewers":10,"total_views":100}`,
		`{"current_viewers":12,"total_views":101}`,
	)
	defer server.Close()

	updates := make(chan domain.ViewerStats, 4)
	unsubscribe := NewChannel(wsUrl(server), slog.Default()).Subscribe("vid-1", func(stats domain.ViewerStats) {
		updates <- stats
	})
	defer unsubscribe()

	first := <-updates
	assert.Equal(t, 10, first.CurrentViewers)
	second := <-updates
	assert.Equal(t, 12, second.CurrentViewers)
	assert.Equal(t, 101, second.TotalViews)
}

func TestSubscribeDropsMalformedMessages(t *testing.T) {
	server := statsServer(t,
		`not json at all`,
		`{"current_viewers":7}`,
	)
	defer server.Close()

	updates := make(chan domain.ViewerStats, 4)
	unsubscribe := NewChannel(wsUrl(server), slog.Default()).Subscribe("vid-1", func(stats domain.ViewerStats) {
		updates <- stats
	})
	defer unsubscribe()

	// The malformed frame is skipped, the valid one still arrives.
	stats := <-updates
	assert.Equal(t, 7, stats.CurrentViewers)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	server := statsServer(t,
		`{"current_viewers":1}`,
		`{"current_viewers":2}`,
		`{"current_viewers":3}`,
	)
	defer server.Close()

	var mu sync.Mutex
	var delivered []int
	first := make(chan struct{})
	var once sync.Once

	unsubscribe := NewChannel(wsUrl(server), slog.Default()).Subscribe("vid-1", func(stats domain.ViewerStats) {
		mu.Lock()
		delivered = append(delivered, stats.CurrentViewers)
		mu.Unlock()
		once.Do(func() { close(first) })
	})

	<-first
	unsubscribe()

	mu.Lock()
	count := len(delivered)
	mu.Unlock()

	// Nothing may arrive after unsubscribe has returned.
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, count, len(delivered))
	mu.Unlock()
}

func TestUnsubscribeIdempotent(t *testing.T) {
	server := statsServer(t)
	defer server.Close()

	unsubscribe := NewChannel(wsUrl(server), slog.Default()).Subscribe("vid-1", func(domain.ViewerStats) {})
	unsubscribe()
	unsubscribe()
}

func TestUnsubscribeBeforeConnect(t *testing.T) {
	// No server listening; unsubscribe must still return cleanly.
	unsubscribe := NewChannel("ws://127.0.0.1:1", slog.Default()).Subscribe("vid-1", func(domain.ViewerStats) {})
	unsubscribe()
}
