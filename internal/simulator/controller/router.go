package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func (c controller) GetMux() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(c.requestIdMw)
	r.Use(c.requestLoggingMw)
	r.Use(cors.AllowAll().Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", c.metrics.Handler())

	r.Route("/watch", func(r chi.Router) {
		r.Get("/stream/{content-id}", c.getStream)
		r.Get("/recommendations", c.getRecommendations)
		r.Get("/stats/{content-id}", c.getStats)
		r.Post("/session/start", c.startSession)
		r.Post("/session/heartbeat", c.heartbeat)
		r.Post("/session/end", c.endSession)
		r.Post("/interaction", c.interaction)
	})

	r.Get("/ws/watch/stats/{content-id}", c.statsSocket)

	return r
}
