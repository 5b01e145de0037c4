// Package service implements the accounting behind the analytics wire
// contract: session registration, heartbeats, finalization, interaction
// counters, and the viewer stats derived from them.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/streamwatch/player/internal/domain"
	"github.com/streamwatch/player/internal/simulator/repository"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrInvalidAction        = errors.New("invalid interaction action")
)

type iSessionRepo interface {
	SetSession(context.Context, *repository.SetSessionParams) error
	GetSession(context.Context, string) (repository.Session, error)
	UpdateSessionHeartbeat(context.Context, *repository.UpdateSessionHeartbeatParams) error
	EndSession(context.Context, *repository.EndSessionParams) error
	IncrementInteractions(ctx context.Context, contentId string) error
	GetContentStats(ctx context.Context, contentId string) (repository.ContentStats, error)
}

type service struct {
	sessionRepo iSessionRepo
	logger      *slog.Logger
	now         func() time.Time
}

func NewService(sessionRepo iSessionRepo, logger *slog.Logger) *service {
	return &service{
		sessionRepo: sessionRepo,
		logger:      logger,
		now:         time.Now,
	}
}

type StartSessionParams struct {
	ContentId string
	SessionId string
	Metadata  domain.SessionMetadata
	Timestamp int64
}

func (s service) StartSession(ctx context.Context, params *StartSessionParams) error {
	startedAt := params.Timestamp
	if startedAt == 0 {
		startedAt = s.now().UnixMilli()
	}

	if err := s.sessionRepo.SetSession(ctx, &repository.SetSessionParams{
		SessionId:        params.SessionId,
		ContentId:        params.ContentId,
		StartedAt:        startedAt,
		DeviceType:       params.Metadata.DeviceType,
		Platform:         params.Metadata.Platform,
		UserAgent:        params.Metadata.UserAgent,
		ScreenResolution: params.Metadata.ScreenResolution,
	}); err != nil {
		if errors.Is(err, repository.ErrSessionAlreadyExists) {
			return ErrSessionAlreadyExists
		}

		return fmt.Errorf("failed to set session: %w", err)
	}

	s.logger.InfoContext(ctx, "session registered", "session_id", params.SessionId, "content_id", params.ContentId)

	return nil
}

type HeartbeatParams struct {
	SessionId   string
	CurrentTime float64
	Timestamp   int64
}

func (s service) Heartbeat(ctx context.Context, params *HeartbeatParams) error {
	lastHeartbeatAt := params.Timestamp
	if lastHeartbeatAt == 0 {
		lastHeartbeatAt = s.now().UnixMilli()
	}

	if err := s.sessionRepo.UpdateSessionHeartbeat(ctx, &repository.UpdateSessionHeartbeatParams{
		SessionId:       params.SessionId,
		CurrentTime:     params.CurrentTime,
		LastHeartbeatAt: lastHeartbeatAt,
	}); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return ErrSessionNotFound
		}

		return fmt.Errorf("failed to update session heartbeat: %w", err)
	}

	return nil
}

type EndSessionParams struct {
	SessionId string
	WatchTime float64
	Timestamp int64
}

func (s service) EndSession(ctx context.Context, params *EndSessionParams) error {
	if err := s.sessionRepo.EndSession(ctx, &repository.EndSessionParams{
		SessionId: params.SessionId,
		WatchTime: params.WatchTime,
	}); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return ErrSessionNotFound
		}

		return fmt.Errorf("failed to end session: %w", err)
	}

	s.logger.InfoContext(ctx, "session finalized", "session_id", params.SessionId, "watch_time", params.WatchTime)

	return nil
}

type RecordInteractionParams struct {
	SessionId string
	Action    domain.InteractionAction
}

func (s service) RecordInteraction(ctx context.Context, params *RecordInteractionParams) error {
	if !params.Action.Valid() {
		return ErrInvalidAction
	}

	session, err := s.sessionRepo.GetSession(ctx, params.SessionId)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return ErrSessionNotFound
		}

		return fmt.Errorf("failed to get session: %w", err)
	}

	if err := s.sessionRepo.IncrementInteractions(ctx, session.ContentId); err != nil {
		return fmt.Errorf("failed to increment interactions: %w", err)
	}

	return nil
}

func (s service) GetViewerStats(ctx context.Context, contentId string) (domain.ViewerStats, error) {
	stats, err := s.sessionRepo.GetContentStats(ctx, contentId)
	if err != nil {
		return domain.ViewerStats{}, fmt.Errorf("failed to get content stats: %w", err)
	}

	var avgWatchTime float64
	if stats.EndedSessions > 0 {
		avgWatchTime = stats.TotalWatchTime / float64(stats.EndedSessions) / 60
	}

	var engagementRate float64
	if stats.TotalViews > 0 {
		engagementRate = float64(stats.Interactions) / float64(stats.TotalViews)
		if engagementRate > 1 {
			engagementRate = 1
		}
	}

	return domain.ViewerStats{
		CurrentViewers: stats.ActiveSessions,
		TotalViews:     stats.TotalViews,
		AvgWatchTime:   avgWatchTime,
		EngagementRate: engagementRate,
	}, nil
}

func (s service) GetStreamInfo(ctx context.Context, contentId string) (domain.StreamInfo, error) {
	stats, err := s.sessionRepo.GetContentStats(ctx, contentId)
	if err != nil {
		return domain.StreamInfo{}, fmt.Errorf("failed to get content stats: %w", err)
	}

	return domain.StreamInfo{
		Id:      contentId,
		Title:   fmt.Sprintf("Stream %s", contentId),
		IsLive:  true,
		Viewers: stats.ActiveSessions,
	}, nil
}

// GetRecommendations lists streams for the user. Ranking is not
// personalized; the user id is carried for request tracing.
func (s service) GetRecommendations(ctx context.Context, userId string, limit int) ([]domain.Recommendation, error) {
	if limit <= 0 {
		limit = 10
	}

	s.logger.DebugContext(ctx, "listing recommendations", "user_id", userId, "limit", limit)

	recs := make([]domain.Recommendation, 0, limit)
	for i := 0; i < limit; i++ {
		contentId := fmt.Sprintf("%d", i+1)

		stats, err := s.sessionRepo.GetContentStats(ctx, contentId)
		if err != nil {
			return nil, fmt.Errorf("failed to get content stats: %w", err)
		}

		recs = append(recs, domain.Recommendation{
			Id:      contentId,
			Title:   fmt.Sprintf("Stream %s", contentId),
			Viewers: stats.ActiveSessions,
		})
	}

	return recs, nil
}
