package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/streamwatch/player/internal/domain"
)

type iTransport interface {
	Get(ctx context.Context, path string, out any) bool
	Post(ctx context.Context, path string, body any, out any) bool
}

// client wraps the transport with the typed operations of the analytics
// service. Reads never fail: when the transport reports unavailability they
// degrade to synthesized values, so telemetry can never break playback.
// Writes surface a boolean the caller may log or ignore.
type client struct {
	transport iTransport
	logger    *slog.Logger
	now       func() time.Time
}

func NewClient(transport iTransport, logger *slog.Logger) *client {
	return &client{
		transport: transport,
		logger:    logger,
		now:       time.Now,
	}
}

func (c client) GetStreamInfo(ctx context.Context, contentId string) domain.StreamInfo {
	var info domain.StreamInfo
	if !c.transport.Get(ctx, "/watch/stream/"+url.PathEscape(contentId), &info) {
		c.logger.DebugContext(ctx, "stream info unavailable, using fallback", "content_id", contentId)
		return fallbackStreamInfo(contentId)
	}

	return info
}

func (c client) GetRecommendations(ctx context.Context, userId string, limit int) []domain.Recommendation {
	if limit <= 0 {
		limit = 10
	}

	query := url.Values{}
	if userId != "" {
		query.Set("user_id", userId)
	}
	query.Set("limit", fmt.Sprintf("%d", limit))

	var recs []domain.Recommendation
	if !c.transport.Get(ctx, "/watch/recommendations?"+query.Encode(), &recs) {
		c.logger.DebugContext(ctx, "recommendations unavailable, using fallback", "user_id", userId)
		return fallbackRecommendations(limit)
	}

	return recs
}

func (c client) GetViewerStats(ctx context.Context, contentId string) domain.ViewerStats {
	var stats domain.ViewerStats
	if !c.transport.Get(ctx, "/watch/stats/"+url.PathEscape(contentId), &stats) {
		c.logger.DebugContext(ctx, "viewer stats unavailable, using fallback", "content_id", contentId)
		return fallbackViewerStats(contentId)
	}

	return stats
}

type startSessionRequest struct {
	ContentId string                  `json:"content_id"`
	SessionId string                  `json:"session_id"`
	Metadata  *domain.SessionMetadata `json:"metadata,omitempty"`
	Timestamp int64                   `json:"timestamp"`
}

type ackResponse struct {
	Success bool `json:"success"`
}

// StartSession registers the session with the backend. If the backend is
// unreachable it synthesizes a locally valid session record, so session
// tracking proceeds client-side either way.
func (c client) StartSession(ctx context.Context, contentId string, sessionId string, metadata *domain.SessionMetadata) domain.Session {
	startedAt := c.now().UnixMilli()

	var ack ackResponse
	ok := c.transport.Post(ctx, "/watch/session/start", &startSessionRequest{
		ContentId: contentId,
		SessionId: sessionId,
		Metadata:  metadata,
		Timestamp: startedAt,
	}, &ack)
	if !ok || !ack.Success {
		c.logger.InfoContext(ctx, "session start not acknowledged, tracking locally", "session_id", sessionId)
	}

	return domain.Session{
		Id:        sessionId,
		ContentId: contentId,
		StartedAt: startedAt,
	}
}

type heartbeatRequest struct {
	SessionId   string  `json:"session_id"`
	CurrentTime float64 `json:"current_time"`
	Timestamp   int64   `json:"timestamp"`
}

func (c client) SendHeartbeat(ctx context.Context, sessionId string, currentTime float64) bool {
	var ack ackResponse
	ok := c.transport.Post(ctx, "/watch/session/heartbeat", &heartbeatRequest{
		SessionId:   sessionId,
		CurrentTime: currentTime,
		Timestamp:   c.now().UnixMilli(),
	}, &ack)

	return ok && ack.Success
}

type endSessionRequest struct {
	SessionId string  `json:"session_id"`
	WatchTime float64 `json:"watch_time"`
	Timestamp int64   `json:"timestamp"`
}

func (c client) EndSession(ctx context.Context, sessionId string, watchTime float64) bool {
	var ack ackResponse
	ok := c.transport.Post(ctx, "/watch/session/end", &endSessionRequest{
		SessionId: sessionId,
		WatchTime: watchTime,
		Timestamp: c.now().UnixMilli(),
	}, &ack)

	return ok && ack.Success
}

type interactionRequest struct {
	SessionId string                   `json:"session_id"`
	Action    domain.InteractionAction `json:"action"`
	Timestamp int64                    `json:"timestamp"`
}

func (c client) RecordInteraction(ctx context.Context, sessionId string, action domain.InteractionAction) bool {
	var ack ackResponse
	ok := c.transport.Post(ctx, "/watch/interaction", &interactionRequest{
		SessionId: sessionId,
		Action:    action,
		Timestamp: c.now().UnixMilli(),
	}, &ack)

	return ok && ack.Success
}
