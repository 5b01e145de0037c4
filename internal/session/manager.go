// Package session tracks one viewing session per mounted player and
// reports it to the analytics service: one start, periodic heartbeats
// while playing, one end. Delivery is best-effort and at-most-once; a
// failed call is logged and never retried, so telemetry can never stall
// playback.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/streamwatch/player/internal/domain"
	"github.com/streamwatch/player/pkg/randstr"
)

const DefaultHeartbeatInterval = 30 * time.Second

type State int

const (
	StateIdle State = iota
	StateActive
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateEnded:
		return "ended"
	}

	return "unknown"
}

type iAnalyticsClient interface {
	StartSession(ctx context.Context, contentId string, sessionId string, metadata *domain.SessionMetadata) domain.Session
	SendHeartbeat(ctx context.Context, sessionId string, currentTime float64) bool
	EndSession(ctx context.Context, sessionId string, watchTime float64) bool
}

type Config struct {
	ContentId         string
	Metadata          domain.SessionMetadata
	HeartbeatInterval time.Duration
	// OnComplete runs once the end-of-session telemetry call has been
	// issued. It does not wait for the call's result.
	OnComplete func()
}

// Manager is the Idle -> Active -> Ended state machine of one playback
// mount. It consumes playback observations; it never reaches into the
// player's state.
type Manager struct {
	client            iAnalyticsClient
	logger            *slog.Logger
	contentId         string
	metadata          domain.SessionMetadata
	heartbeatInterval time.Duration
	onComplete        func()

	now       func() time.Time
	newSuffix func() string

	mu          sync.Mutex
	state       State
	session     domain.Session
	currentTime float64
	timer       *time.Timer
	// timerGen invalidates stale timers: every re-arm or cancel bumps it,
	// and a firing timer with an old generation is a no-op. Combined with
	// re-arming only after a heartbeat returns, this keeps at most one
	// heartbeat in flight per session.
	timerGen uint64
}

func NewManager(client iAnalyticsClient, logger *slog.Logger, cfg *Config) *Manager {
	heartbeatInterval := cfg.HeartbeatInterval
	if heartbeatInterval <= 0 {
		heartbeatInterval = DefaultHeartbeatInterval
	}

	letterBytes := []byte("abcdefghijklmnopqrstuvwxyz0123456789")
	generator := randstr.New(letterBytes)

	return &Manager{
		client:            client,
		logger:            logger,
		contentId:         cfg.ContentId,
		metadata:          cfg.Metadata,
		heartbeatInterval: heartbeatInterval,
		onComplete:        cfg.OnComplete,
		now:               time.Now,
		newSuffix:         func() string { return generator.GenerateRandomString(7) },
	}
}

// OnPlaying starts the session on its first call for this mount; later
// calls (resume after pause) only re-arm the heartbeat timer.
func (m *Manager) OnPlaying(currentTime float64) {
	m.mu.Lock()

	switch m.state {
	case StateEnded:
		m.mu.Unlock()
		return
	case StateActive:
		m.currentTime = currentTime
		m.armHeartbeatLocked()
		m.mu.Unlock()
		return
	}

	now := m.now()
	m.state = StateActive
	m.session = domain.Session{
		Id:        domain.NewSessionId(now, m.newSuffix()),
		ContentId: m.contentId,
		StartedAt: now.UnixMilli(),
	}
	m.currentTime = currentTime
	sessionId := m.session.Id
	metadata := m.metadata
	m.armHeartbeatLocked()
	m.mu.Unlock()

	// The client synthesizes a local session when the backend is
	// unreachable, so heartbeats and end proceed either way.
	m.client.StartSession(context.Background(), m.contentId, sessionId, &metadata)
	m.logger.Info("session started", "session_id", sessionId, "content_id", m.contentId)
}

func (m *Manager) OnPaused(currentTime float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive {
		return
	}

	m.currentTime = currentTime
	m.cancelHeartbeatLocked()
}

func (m *Manager) OnTimeUpdate(currentTime float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive {
		return
	}

	m.currentTime = currentTime
}

func (m *Manager) OnDuration(duration float64) {}

// OnEnded finalizes the session: watch time is wall-clock seconds since
// the session started, computed exactly once.
func (m *Manager) OnEnded() {
	m.mu.Lock()

	if m.state != StateActive {
		m.mu.Unlock()
		return
	}

	m.state = StateEnded
	m.cancelHeartbeatLocked()
	sessionId := m.session.Id
	startedAt := m.session.StartedAt
	m.mu.Unlock()

	watchTime := float64((m.now().UnixMilli() - startedAt) / 1000)

	// The end call is fire-and-forget: issue it and move on, so completion
	// never waits on the analytics round-trip.
	go func() {
		if !m.client.EndSession(context.Background(), sessionId, watchTime) {
			m.logger.Info("failed to report session end", "session_id", sessionId)
		}
		m.logger.Info("session ended", "session_id", sessionId, "watch_time", watchTime)
	}()

	if m.onComplete != nil {
		m.onComplete()
	}
}

// Close cancels any pending heartbeat. It does not report an end: an
// unmounted player is not a finished session.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancelHeartbeatLocked()
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

func (m *Manager) Session() domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.session
}

func (m *Manager) armHeartbeatLocked() {
	m.cancelHeartbeatLocked()

	gen := m.timerGen
	m.timer = time.AfterFunc(m.heartbeatInterval, func() {
		m.heartbeatTick(gen)
	})
}

func (m *Manager) cancelHeartbeatLocked() {
	m.timerGen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) heartbeatTick(gen uint64) {
	m.mu.Lock()
	if m.state != StateActive || gen != m.timerGen {
		m.mu.Unlock()
		return
	}

	sessionId := m.session.Id
	currentTime := m.currentTime
	m.session.LastHeartbeatAt = m.now().UnixMilli()
	m.mu.Unlock()

	if !m.client.SendHeartbeat(context.Background(), sessionId, currentTime) {
		m.logger.Debug("heartbeat not delivered", "session_id", sessionId)
	}

	// Only re-arm once the send has returned, and only if no state change
	// re-armed or cancelled the timer in the meantime.
	m.mu.Lock()
	if m.state == StateActive && gen == m.timerGen {
		m.armHeartbeatLocked()
	}
	m.mu.Unlock()
}
