package inmemory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/streamwatch/player/internal/simulator/repository"
)

type contentStats struct {
	active         map[string]struct{}
	totalViews     int
	endedSessions  int
	totalWatchTime float64
	interactions   int
}

type repo struct {
	mu       sync.RWMutex
	sessions map[string]repository.Session
	contents map[string]*contentStats
}

func NewRepo() *repo {
	return &repo{
		sessions: make(map[string]repository.Session),
		contents: make(map[string]*contentStats),
	}
}

func (r *repo) contentLocked(contentId string) *contentStats {
	stats, ok := r.contents[contentId]
	if !ok {
		stats = &contentStats{active: make(map[string]struct{})}
		r.contents[contentId] = stats
	}

	return stats
}

func (r *repo) SetSession(_ context.Context, params *repository.SetSessionParams) error {
	funcName := "simulator.inmemory.SetSession"
	r.mu.Lock()
	defer r.mu.Unlock()

	slog.Debug(funcName, "sessionId", params.SessionId)
	if _, ok := r.sessions[params.SessionId]; ok {
		slog.Info(funcName, "error", repository.ErrSessionAlreadyExists)
		return repository.ErrSessionAlreadyExists
	}

	r.sessions[params.SessionId] = repository.Session{
		SessionId:        params.SessionId,
		ContentId:        params.ContentId,
		StartedAt:        params.StartedAt,
		DeviceType:       params.DeviceType,
		Platform:         params.Platform,
		UserAgent:        params.UserAgent,
		ScreenResolution: params.ScreenResolution,
	}

	stats := r.contentLocked(params.ContentId)
	stats.active[params.SessionId] = struct{}{}
	stats.totalViews++

	return nil
}

func (r *repo) GetSession(_ context.Context, sessionId string) (repository.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[sessionId]
	if !ok {
		return repository.Session{}, repository.ErrSessionNotFound
	}

	return session, nil
}

func (r *repo) UpdateSessionHeartbeat(_ context.Context, params *repository.UpdateSessionHeartbeatParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[params.SessionId]
	if !ok {
		return repository.ErrSessionNotFound
	}

	session.CurrentTime = params.CurrentTime
	session.LastHeartbeatAt = params.LastHeartbeatAt
	r.sessions[params.SessionId] = session

	return nil
}

func (r *repo) EndSession(_ context.Context, params *repository.EndSessionParams) error {
	funcName := "simulator.inmemory.EndSession"
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[params.SessionId]
	if !ok {
		slog.Info(funcName, "error", repository.ErrSessionNotFound)
		return repository.ErrSessionNotFound
	}

	if !session.Ended {
		stats := r.contentLocked(session.ContentId)
		delete(stats.active, params.SessionId)
		stats.endedSessions++
		stats.totalWatchTime += params.WatchTime
	}

	session.Ended = true
	session.WatchTime = params.WatchTime
	r.sessions[params.SessionId] = session

	return nil
}

func (r *repo) IncrementInteractions(_ context.Context, contentId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.contentLocked(contentId).interactions++

	return nil
}

func (r *repo) GetContentStats(_ context.Context, contentId string) (repository.ContentStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats, ok := r.contents[contentId]
	if !ok {
		return repository.ContentStats{}, nil
	}

	return repository.ContentStats{
		ActiveSessions: len(stats.active),
		TotalViews:     stats.totalViews,
		EndedSessions:  stats.endedSessions,
		TotalWatchTime: stats.totalWatchTime,
		Interactions:   stats.interactions,
	}, nil
}
