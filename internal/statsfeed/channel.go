// Package statsfeed delivers live viewer-count updates over a push
// connection. One connection per subscription, no automatic reconnect: a
// subscriber that wants to keep receiving after a connection-level failure
// resubscribes itself.
package statsfeed

import (
	"encoding/json"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/streamwatch/player/internal/domain"
)

type Channel struct {
	wsBaseUrl   string
	dialTimeout time.Duration
	logger      *slog.Logger
}

func NewChannel(wsBaseUrl string, logger *slog.Logger) *Channel {
	return &Channel{
		wsBaseUrl:   wsBaseUrl,
		dialTimeout: 10 * time.Second,
		logger:      logger,
	}
}

type subscription struct {
	logger *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// Subscribe opens a push connection for the given content id and invokes
// onUpdate for every well-formed stats message. Malformed messages are
// dropped and logged, never terminate the connection. The returned
// unsubscribe func is idempotent and safe to call before the connection
// has opened; no update is delivered after it returns.
func (c Channel) Subscribe(contentId string, onUpdate func(domain.ViewerStats)) func() {
	sub := &subscription{logger: c.logger}

	go c.run(sub, contentId, onUpdate)

	return sub.unsubscribe
}

func (c Channel) run(sub *subscription, contentId string, onUpdate func(domain.ViewerStats)) {
	endpoint := c.wsBaseUrl + "/ws/watch/stats/" + url.PathEscape(contentId)

	dialer := websocket.Dialer{HandshakeTimeout: c.dialTimeout}
	conn, _, err := dialer.Dial(endpoint, nil)
	if err != nil {
		c.logger.Warn("failed to connect stats feed", "content_id", contentId, "error", err)
		return
	}

	sub.mu.Lock()
	if sub.closed {
		sub.mu.Unlock()
		conn.Close()
		return
	}
	sub.conn = conn
	sub.mu.Unlock()

	c.logger.Debug("stats feed connected", "content_id", contentId)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			sub.mu.Lock()
			closed := sub.closed
			sub.mu.Unlock()
			if !closed {
				c.logger.Warn("stats feed read failed", "content_id", contentId, "error", err)
			}
			return
		}

		var stats domain.ViewerStats
		if err := json.Unmarshal(message, &stats); err != nil {
			c.logger.Warn("dropping malformed stats message", "content_id", contentId, "error", err)
			continue
		}

		// Callback runs under the lock so no update can be delivered
		// after unsubscribe has returned.
		sub.mu.Lock()
		if sub.closed {
			sub.mu.Unlock()
			return
		}
		onUpdate(stats)
		sub.mu.Unlock()
	}
}

func (s *subscription) unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	if s.conn != nil {
		s.conn.Close()
	}
}
