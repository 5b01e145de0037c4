package session

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamwatch/player/internal/domain"
)

type recordingClient struct {
	mu         sync.Mutex
	starts     []domain.Session
	heartbeats []float64
	ends       []float64
	endedId    string
}

func (c *recordingClient) StartSession(ctx context.Context, contentId string, sessionId string, metadata *domain.SessionMetadata) domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	session := domain.Session{Id: sessionId, ContentId: contentId}
	c.starts = append(c.starts, session)
	return session
}

func (c *recordingClient) SendHeartbeat(ctx context.Context, sessionId string, currentTime float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.heartbeats = append(c.heartbeats, currentTime)
	return true
}

func (c *recordingClient) EndSession(ctx context.Context, sessionId string, watchTime float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.endedId = sessionId
	c.ends = append(c.ends, watchTime)
	return true
}

func (c *recordingClient) snapshot() (int, int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.starts), len(c.heartbeats), len(c.ends)
}

func newTestManager(client *recordingClient, interval time.Duration) *Manager {
	manager := NewManager(client, slog.Default(), &Config{
		ContentId:         "vid-1",
		Metadata:          domain.SessionMetadata{DeviceType: "desktop"},
		HeartbeatInterval: interval,
	})
	manager.newSuffix = func() string { return "testtest" }
	return manager
}

func TestStartsExactlyOnce(t *testing.T) {
	client := &recordingClient{}
	manager := newTestManager(client, time.Minute)
	defer manager.Close()

	manager.OnPlaying(0)
	manager.OnPaused(5)
	manager.OnPlaying(5)
	manager.OnPaused(9)
	manager.OnPlaying(9)

	starts, _, _ := client.snapshot()
	assert.Equal(t, 1, starts)
	assert.Equal(t, StateActive, manager.State())
	assert.Equal(t, "vid-1", manager.Session().ContentId)
	assert.Contains(t, manager.Session().Id, "session_")
}

func TestHeartbeatCarriesLatestTime(t *testing.T) {
	client := &recordingClient{}
	manager := newTestManager(client, 20*time.Millisecond)
	defer manager.Close()

	manager.OnPlaying(0)
	manager.OnTimeUpdate(12.5)

	require.Eventually(t, func() bool {
		_, heartbeats, _ := client.snapshot()
		return heartbeats >= 1
	}, time.Second, 5*time.Millisecond)

	client.mu.Lock()
	first := client.heartbeats[0]
	client.mu.Unlock()
	assert.Equal(t, 12.5, first)
}

func TestPauseStopsHeartbeats(t *testing.T) {
	client := &recordingClient{}
	manager := newTestManager(client, 20*time.Millisecond)
	defer manager.Close()

	manager.OnPlaying(0)
	manager.OnPaused(3)

	time.Sleep(80 * time.Millisecond)
	_, heartbeats, _ := client.snapshot()
	assert.Equal(t, 0, heartbeats)

	// Resume re-arms the timer.
	manager.OnPlaying(3)
	require.Eventually(t, func() bool {
		_, heartbeats, _ := client.snapshot()
		return heartbeats >= 1
	}, time.Second, 5*time.Millisecond)
}

func TestEndedReportsWholeSecondWatchTime(t *testing.T) {
	client := &recordingClient{}
	manager := newTestManager(client, time.Minute)

	base := time.UnixMilli(1700000000000)
	current := base
	manager.now = func() time.Time { return current }

	manager.OnPlaying(0)
	current = base.Add(45*time.Second + 700*time.Millisecond)
	manager.OnTimeUpdate(45)
	manager.OnEnded()

	require.Eventually(t, func() bool {
		_, _, ends := client.snapshot()
		return ends == 1
	}, time.Second, 5*time.Millisecond)

	client.mu.Lock()
	defer client.mu.Unlock()
	assert.Equal(t, float64(45), client.ends[0])
	assert.Equal(t, manager.Session().Id, client.endedId)
	assert.Equal(t, StateEnded, manager.State())
}

func TestEndedOnlyOnce(t *testing.T) {
	client := &recordingClient{}
	manager := newTestManager(client, time.Minute)

	manager.OnPlaying(0)
	manager.OnEnded()
	manager.OnEnded()
	manager.OnPlaying(0)

	require.Eventually(t, func() bool {
		_, _, ends := client.snapshot()
		return ends == 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	starts, _, ends := client.snapshot()
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, ends)
	assert.Equal(t, StateEnded, manager.State())
}

func TestOnCompleteRunsAfterEnd(t *testing.T) {
	client := &recordingClient{}
	done := make(chan struct{})
	manager := NewManager(client, slog.Default(), &Config{
		ContentId:  "vid-1",
		OnComplete: func() { close(done) },
	})

	manager.OnPlaying(0)
	manager.OnEnded()

	select {
	case <-done:
	default:
		t.Fatal("OnComplete did not run")
	}
}

type slowEndClient struct {
	recordingClient
	delay time.Duration
}

func (c *slowEndClient) EndSession(ctx context.Context, sessionId string, watchTime float64) bool {
	time.Sleep(c.delay)
	return c.recordingClient.EndSession(ctx, sessionId, watchTime)
}

func TestOnCompleteDoesNotWaitForEndCall(t *testing.T) {
	client := &slowEndClient{delay: 300 * time.Millisecond}
	done := make(chan struct{})
	manager := NewManager(client, slog.Default(), &Config{
		ContentId:  "vid-1",
		OnComplete: func() { close(done) },
	})

	manager.OnPlaying(0)
	manager.OnEnded()

	// Completion fires as soon as the end call is issued, not when the
	// slow round-trip returns.
	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("OnComplete waited on the EndSession round-trip")
	}

	require.Eventually(t, func() bool {
		_, _, ends := client.snapshot()
		return ends == 1
	}, time.Second, 5*time.Millisecond)
}

func TestCloseCancelsPendingHeartbeat(t *testing.T) {
	client := &recordingClient{}
	manager := newTestManager(client, 20*time.Millisecond)

	manager.OnPlaying(0)
	manager.Close()

	time.Sleep(80 * time.Millisecond)
	_, heartbeats, ends := client.snapshot()
	assert.Equal(t, 0, heartbeats)
	assert.Equal(t, 0, ends)
}

func TestIgnoredBeforeStart(t *testing.T) {
	client := &recordingClient{}
	manager := newTestManager(client, time.Minute)

	manager.OnPaused(1)
	manager.OnTimeUpdate(2)
	manager.OnEnded()

	starts, heartbeats, ends := client.snapshot()
	assert.Zero(t, starts)
	assert.Zero(t, heartbeats)
	assert.Zero(t, ends)
	assert.Equal(t, StateIdle, manager.State())
}
