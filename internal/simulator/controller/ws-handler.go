package controller

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// statsSocket upgrades the connection and pushes viewer stats for the
// content id on a fixed interval until the client goes away. The channel
// is push-only; inbound frames are only read to detect the close.
func (c controller) statsSocket(w http.ResponseWriter, r *http.Request) {
	contentId := chi.URLParam(r, "content-id")
	if contentId == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade stats socket", "error", err)
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(c.statsPushInterval)
	defer ticker.Stop()

	// first snapshot goes out immediately
	for {
		stats, err := c.watchService.GetViewerStats(r.Context(), contentId)
		if err != nil {
			c.logger.WarnContext(r.Context(), "failed to get viewer stats", "error", err)
		} else if err := conn.WriteJSON(stats); err != nil {
			return
		}

		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
