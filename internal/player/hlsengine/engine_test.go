package hlsengine

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bluenviron/gohlslib/v2/pkg/playlist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamwatch/player/internal/domain"
	"github.com/streamwatch/player/internal/player"
)

const mediaPlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:2
#EXT-X-MEDIA-SEQUENCE:0
#EXTINF:1.5,
seg0.ts
#EXTINF:2.0,
seg1.ts
#EXT-X-ENDLIST
`

const masterPlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-STREAM-INF:BANDWIDTH=6000000,RESOLUTION=1920x1080
high/stream.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=1200000,RESOLUTION=854x480
low/stream.m3u8
`

type eventSink struct {
	mu     sync.Mutex
	events []player.Event
}

func (s *eventSink) collect(event player.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *eventSink) first(eventType player.EventType) (player.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, event := range s.events {
		if event.Type == eventType {
			return event, true
		}
	}
	return player.Event{}, false
}

func newTestEngine(tickInterval time.Duration) (*engine, *eventSink) {
	e := newEngine(player.DefaultEngineConfig(), Options{
		Logger:       slog.Default(),
		TickInterval: tickInterval,
	})
	sink := &eventSink{}
	e.OnEvent(sink.collect)
	return e, sink
}

type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

func TestLoadMediaPlaylist(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(mediaPlaylist))
	}))
	defer server.Close()

	e, events := newTestEngine(0)
	defer e.Destroy()

	require.NoError(t, e.Load(domain.StreamSource{Id: "vid-1", PlaybackUrl: server.URL + "/stream.m3u8"}))

	require.Eventually(t, func() bool {
		_, ok := events.first(player.EventManifestParsed)
		return ok
	}, time.Second, 5*time.Millisecond)

	parsed, _ := events.first(player.EventManifestParsed)
	assert.InDelta(t, 3.5, parsed.Duration, 0.001)
}

func TestLoadMultivariantFollowsVariant(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()

		if r.URL.Path == "/master.m3u8" {
			w.Write([]byte(masterPlaylist))
			return
		}
		w.Write([]byte(mediaPlaylist))
	}))
	defer server.Close()

	e, events := newTestEngine(0)
	defer e.Destroy()

	require.NoError(t, e.Load(domain.StreamSource{Id: "vid-1", PlaybackUrl: server.URL + "/master.m3u8"}))

	require.Eventually(t, func() bool {
		_, ok := events.first(player.EventManifestParsed)
		return ok
	}, time.Second, 5*time.Millisecond)

	// Auto quality follows the highest-bandwidth variant.
	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, paths, "/high/stream.m3u8")
	assert.NotContains(t, paths, "/low/stream.m3u8")
}

func TestSelectVariant(t *testing.T) {
	mv := &playlist.Multivariant{
		Variants: []*playlist.MultivariantVariant{
			{Bandwidth: 1_200_000, URI: "low.m3u8"},
			{Bandwidth: 6_000_000, URI: "high.m3u8"},
			{Bandwidth: 2_800_000, URI: "mid.m3u8"},
		},
	}

	uri, err := selectVariant(mv, domain.QualityAuto)
	require.NoError(t, err)
	assert.Equal(t, "high.m3u8", uri)

	uri, err = selectVariant(mv, domain.Quality720p)
	require.NoError(t, err)
	assert.Equal(t, "mid.m3u8", uri)

	uri, err = selectVariant(mv, domain.Quality480p)
	require.NoError(t, err)
	assert.Equal(t, "low.m3u8", uri)

	// Everything above the ceiling falls back to the lowest variant.
	uri, err = selectVariant(&playlist.Multivariant{
		Variants: []*playlist.MultivariantVariant{
			{Bandwidth: 9_000_000, URI: "huge.m3u8"},
			{Bandwidth: 7_000_000, URI: "big.m3u8"},
		},
	}, domain.Quality480p)
	require.NoError(t, err)
	assert.Equal(t, "big.m3u8", uri)

	_, err = selectVariant(&playlist.Multivariant{}, domain.QualityAuto)
	assert.Error(t, err)
}

func TestPlaysThroughToEnded(t *testing.T) {
	tinyPlaylist := "#EXTM3U\n" +
		"#EXT-X-VERSION:3\n" +
		"#EXT-X-TARGETDURATION:1\n" +
		"#EXT-X-MEDIA-SEQUENCE:0\n" +
		"#EXTINF:0.05,\nseg0.ts\n" +
		"#EXTINF:0.05,\nseg1.ts\n" +
		"#EXT-X-ENDLIST\n"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/stream.m3u8" {
			w.Write([]byte(tinyPlaylist))
			return
		}
		w.Write([]byte("segment-data"))
	}))
	defer server.Close()

	e, events := newTestEngine(10 * time.Millisecond)
	defer e.Destroy()

	buf := &safeBuffer{}
	require.NoError(t, e.Attach(buf))
	require.NoError(t, e.Load(domain.StreamSource{Id: "vid-1", PlaybackUrl: server.URL + "/stream.m3u8"}))

	require.Eventually(t, func() bool {
		_, ok := events.first(player.EventManifestParsed)
		return ok
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, e.Play())
	_, playing := events.first(player.EventPlaying)
	assert.True(t, playing)

	require.Eventually(t, func() bool {
		_, ok := events.first(player.EventEnded)
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	ended, _ := events.first(player.EventEnded)
	assert.InDelta(t, 0.1, ended.CurrentTime, 0.001)
	assert.Positive(t, buf.Len())
}

func TestSegmentFetchFailureIsFatalNetwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/stream.m3u8" {
			w.Write([]byte(mediaPlaylist))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	e, events := newTestEngine(10 * time.Millisecond)
	defer e.Destroy()

	require.NoError(t, e.Load(domain.StreamSource{Id: "vid-1", PlaybackUrl: server.URL + "/stream.m3u8"}))
	require.Eventually(t, func() bool {
		_, ok := events.first(player.EventManifestParsed)
		return ok
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, e.Play())

	require.Eventually(t, func() bool {
		event, ok := events.first(player.EventError)
		return ok && event.Fatal && event.Class == player.ErrorClassNetwork
	}, time.Second, 5*time.Millisecond)
}

func TestLoadFailureClassifiedNetwork(t *testing.T) {
	e, events := newTestEngine(0)
	defer e.Destroy()

	require.NoError(t, e.Load(domain.StreamSource{Id: "vid-1", PlaybackUrl: "http://127.0.0.1:1/stream.m3u8"}))

	require.Eventually(t, func() bool {
		event, ok := events.first(player.EventError)
		return ok && event.Fatal && event.Class == player.ErrorClassNetwork
	}, 2*time.Second, 5*time.Millisecond)
}

func TestMalformedPlaylistClassifiedMedia(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("definitely not a playlist"))
	}))
	defer server.Close()

	e, events := newTestEngine(0)
	defer e.Destroy()

	require.NoError(t, e.Load(domain.StreamSource{Id: "vid-1", PlaybackUrl: server.URL + "/stream.m3u8"}))

	require.Eventually(t, func() bool {
		event, ok := events.first(player.EventError)
		return ok && event.Fatal && event.Class == player.ErrorClassMedia
	}, time.Second, 5*time.Millisecond)
}

type nopListener struct{}

func (nopListener) OnPlaying(float64)    {}
func (nopListener) OnPaused(float64)     {}
func (nopListener) OnTimeUpdate(float64) {}
func (nopListener) OnDuration(float64)   {}
func (nopListener) OnEnded()             {}

func TestPermanentSegmentFailureStopsAfterRetryBudget(t *testing.T) {
	var mu sync.Mutex
	segmentAttempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/stream.m3u8" {
			w.Write([]byte(mediaPlaylist))
			return
		}
		mu.Lock()
		segmentAttempts++
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	factory := NewFactory(Options{
		Logger:         slog.Default(),
		TickInterval:   10 * time.Millisecond,
		NetworkRetries: 2,
		RetryDelay:     time.Millisecond,
	})
	controller := player.NewController(factory, nopListener{}, slog.Default(), &player.Config{Autoplay: true})
	defer controller.Close()

	require.NoError(t, controller.SetSource(domain.StreamSource{
		Id:          "vid-1",
		PlaybackUrl: server.URL + "/stream.m3u8",
	}))

	// The resume cycle runs out of budget and the pipeline halts.
	require.Eventually(t, func() bool {
		return controller.Stopped()
	}, 5*time.Second, 5*time.Millisecond)

	mu.Lock()
	attempts := segmentAttempts
	mu.Unlock()
	assert.Equal(t, 3, attempts)

	// Once stopped, nothing keeps hammering the origin.
	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, attempts, segmentAttempts)
}

func TestNetworkFailureCountResetsOnSuccess(t *testing.T) {
	e, _ := newTestEngine(0)
	defer e.Destroy()

	e.segments = []segment{{url: "seg0.ts", duration: 1}}
	e.netFailures = 2
	e.cacheSegment(0, []byte("segment-data"))

	e.mu.Lock()
	defer e.mu.Unlock()
	assert.Zero(t, e.netFailures)
}

func TestRetryBackoffGrowsAndCaps(t *testing.T) {
	e := newEngine(player.DefaultEngineConfig(), Options{RetryDelay: 10 * time.Millisecond})
	defer e.Destroy()

	e.netFailures = 1
	assert.Equal(t, 10*time.Millisecond, e.retryBackoff())

	e.netFailures = 3
	assert.Equal(t, 40*time.Millisecond, e.retryBackoff())

	e.netFailures = 20
	assert.Equal(t, 80*time.Millisecond, e.retryBackoff())
}

func TestLowLatencyShortensTick(t *testing.T) {
	cfg := player.DefaultEngineConfig()
	cfg.LowLatency = true
	assert.Equal(t, 250*time.Millisecond, newEngine(cfg, Options{}).tickInterval)

	cfg.LowLatency = false
	assert.Equal(t, 500*time.Millisecond, newEngine(cfg, Options{}).tickInterval)

	// An explicit tick interval always wins.
	cfg.LowLatency = true
	assert.Equal(t, time.Millisecond, newEngine(cfg, Options{TickInterval: time.Millisecond}).tickInterval)
}

func TestDestroyIdempotentAndSilencesEvents(t *testing.T) {
	e, events := newTestEngine(0)

	e.Destroy()
	e.Destroy()

	assert.ErrorIs(t, e.Load(domain.StreamSource{Id: "vid-1"}), errDestroyed)
	assert.ErrorIs(t, e.Play(), errDestroyed)

	e.emit(player.Event{Type: player.EventTimeUpdate})
	events.mu.Lock()
	defer events.mu.Unlock()
	assert.Empty(t, events.events)
}
