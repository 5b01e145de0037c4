package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/streamwatch/player/internal/domain"
	"github.com/streamwatch/player/internal/simulator/service"
	"github.com/streamwatch/player/pkg/rest"
)

type ackResponse struct {
	Success bool `json:"success"`
}

func (c controller) getStream(w http.ResponseWriter, r *http.Request) {
	contentId := chi.URLParam(r, "content-id")
	if contentId == "" {
		rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": "stream not found"})
		return
	}

	info, err := c.watchService.GetStreamInfo(r.Context(), contentId)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to get stream info", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": err.Error()})
		return
	}

	rest.WriteJSON(w, http.StatusOK, info)
}

func (c controller) getRecommendations(w http.ResponseWriter, r *http.Request) {
	userId := r.URL.Query().Get("user_id")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	recs, err := c.watchService.GetRecommendations(r.Context(), userId, limit)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to get recommendations", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": err.Error()})
		return
	}

	rest.WriteJSON(w, http.StatusOK, recs)
}

func (c controller) getStats(w http.ResponseWriter, r *http.Request) {
	contentId := chi.URLParam(r, "content-id")
	if contentId == "" {
		rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": "stream not found"})
		return
	}

	stats, err := c.watchService.GetViewerStats(r.Context(), contentId)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to get viewer stats", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": err.Error()})
		return
	}

	rest.WriteJSON(w, http.StatusOK, stats)
}

type startSessionInput struct {
	ContentId string                  `json:"content_id" validate:"required"`
	SessionId string                  `json:"session_id" validate:"required"`
	Metadata  *domain.SessionMetadata `json:"metadata"`
	Timestamp int64                   `json:"timestamp"`
}

func (c controller) startSession(w http.ResponseWriter, r *http.Request) {
	var input startSessionInput
	if err := rest.ReadJSON(r, &input); err != nil {
		rest.WriteJSON(w, http.StatusUnprocessableEntity, ackResponse{Success: false})
		return
	}

	if validationErrors, ok := c.validate.Validate(input); !ok {
		c.logger.InfoContext(r.Context(), "invalid session start", "errors", validationErrors)
		rest.WriteJSON(w, http.StatusBadRequest, ackResponse{Success: false})
		return
	}

	var metadata domain.SessionMetadata
	if input.Metadata != nil {
		metadata = *input.Metadata
	}

	if err := c.watchService.StartSession(r.Context(), &service.StartSessionParams{
		ContentId: input.ContentId,
		SessionId: input.SessionId,
		Metadata:  metadata,
		Timestamp: input.Timestamp,
	}); err != nil {
		if errors.Is(err, service.ErrSessionAlreadyExists) {
			rest.WriteJSON(w, http.StatusConflict, ackResponse{Success: false})
			return
		}

		c.logger.WarnContext(r.Context(), "failed to start session", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, ackResponse{Success: false})
		return
	}

	c.metrics.IncSessionsStarted()
	rest.WriteJSON(w, http.StatusOK, ackResponse{Success: true})
}

type heartbeatInput struct {
	SessionId   string  `json:"session_id" validate:"required"`
	CurrentTime float64 `json:"current_time"`
	Timestamp   int64   `json:"timestamp"`
}

func (c controller) heartbeat(w http.ResponseWriter, r *http.Request) {
	var input heartbeatInput
	if err := rest.ReadJSON(r, &input); err != nil {
		rest.WriteJSON(w, http.StatusUnprocessableEntity, ackResponse{Success: false})
		return
	}

	if validationErrors, ok := c.validate.Validate(input); !ok {
		c.logger.InfoContext(r.Context(), "invalid heartbeat", "errors", validationErrors)
		rest.WriteJSON(w, http.StatusBadRequest, ackResponse{Success: false})
		return
	}

	if err := c.watchService.Heartbeat(r.Context(), &service.HeartbeatParams{
		SessionId:   input.SessionId,
		CurrentTime: input.CurrentTime,
		Timestamp:   input.Timestamp,
	}); err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			rest.WriteJSON(w, http.StatusNotFound, ackResponse{Success: false})
			return
		}

		c.logger.WarnContext(r.Context(), "failed to record heartbeat", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, ackResponse{Success: false})
		return
	}

	c.metrics.IncHeartbeats()
	rest.WriteJSON(w, http.StatusOK, ackResponse{Success: true})
}

type endSessionInput struct {
	SessionId string  `json:"session_id" validate:"required"`
	WatchTime float64 `json:"watch_time"`
	Timestamp int64   `json:"timestamp"`
}

func (c controller) endSession(w http.ResponseWriter, r *http.Request) {
	var input endSessionInput
	if err := rest.ReadJSON(r, &input); err != nil {
		rest.WriteJSON(w, http.StatusUnprocessableEntity, ackResponse{Success: false})
		return
	}

	if validationErrors, ok := c.validate.Validate(input); !ok {
		c.logger.InfoContext(r.Context(), "invalid session end", "errors", validationErrors)
		rest.WriteJSON(w, http.StatusBadRequest, ackResponse{Success: false})
		return
	}

	if err := c.watchService.EndSession(r.Context(), &service.EndSessionParams{
		SessionId: input.SessionId,
		WatchTime: input.WatchTime,
		Timestamp: input.Timestamp,
	}); err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			rest.WriteJSON(w, http.StatusNotFound, ackResponse{Success: false})
			return
		}

		c.logger.WarnContext(r.Context(), "failed to end session", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, ackResponse{Success: false})
		return
	}

	c.metrics.IncSessionsEnded()
	rest.WriteJSON(w, http.StatusOK, ackResponse{Success: true})
}

type interactionInput struct {
	SessionId string                   `json:"session_id" validate:"required"`
	Action    domain.InteractionAction `json:"action" validate:"required"`
	Timestamp int64                    `json:"timestamp"`
}

func (c controller) interaction(w http.ResponseWriter, r *http.Request) {
	var input interactionInput
	if err := rest.ReadJSON(r, &input); err != nil {
		rest.WriteJSON(w, http.StatusUnprocessableEntity, ackResponse{Success: false})
		return
	}

	if validationErrors, ok := c.validate.Validate(input); !ok {
		c.logger.InfoContext(r.Context(), "invalid interaction", "errors", validationErrors)
		rest.WriteJSON(w, http.StatusBadRequest, ackResponse{Success: false})
		return
	}

	if err := c.watchService.RecordInteraction(r.Context(), &service.RecordInteractionParams{
		SessionId: input.SessionId,
		Action:    input.Action,
	}); err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			rest.WriteJSON(w, http.StatusNotFound, ackResponse{Success: false})
		case errors.Is(err, service.ErrInvalidAction):
			rest.WriteJSON(w, http.StatusBadRequest, ackResponse{Success: false})
		default:
			c.logger.WarnContext(r.Context(), "failed to record interaction", "error", err)
			rest.WriteJSON(w, http.StatusInternalServerError, ackResponse{Success: false})
		}
		return
	}

	c.metrics.IncInteractions()
	rest.WriteJSON(w, http.StatusOK, ackResponse{Success: true})
}
