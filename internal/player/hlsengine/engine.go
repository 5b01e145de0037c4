// Package hlsengine is a headless adaptive-streaming engine: it loads an
// HLS playlist, picks a variant for the desired quality, and plays the
// stream against a wall clock while fetching segments into the attached
// sink. It implements the player.Engine capability interface.
package hlsengine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bluenviron/gohlslib/v2/pkg/playlist"

	"github.com/streamwatch/player/internal/domain"
	"github.com/streamwatch/player/internal/player"
)

const (
	maxPlaylistBytes       = 256 * 1024
	defaultPlaylistTimeout = 5 * time.Second
	defaultSegmentTimeout  = 10 * time.Second
	defaultTickInterval    = 500 * time.Millisecond
	defaultNetworkRetries  = 5
	defaultRetryDelay      = 500 * time.Millisecond
	maxBackoffMultiple     = 8
)

var errDestroyed = errors.New("engine destroyed")

// qualityBandwidth maps a desired quality to the variant bandwidth ceiling
// used during selection. Auto takes the highest available variant.
var qualityBandwidth = map[domain.Quality]int{
	domain.Quality1080p: 6_000_000,
	domain.Quality720p:  3_000_000,
	domain.Quality480p:  1_500_000,
}

type Options struct {
	HTTPClient *http.Client
	Logger     *slog.Logger
	// TickInterval is how often the progress loop advances and emits
	// time updates.
	TickInterval time.Duration
	// NetworkRetries bounds consecutive failed playlist or segment
	// fetches before the fault is reported as unrecoverable.
	NetworkRetries int
	// RetryDelay is the base of the exponential backoff applied when the
	// load is resumed after a network fault.
	RetryDelay time.Duration
}

// NewFactory returns an EngineFactory the controller can rebuild pipelines
// from on every source change.
func NewFactory(opts Options) player.EngineFactory {
	return func(cfg player.EngineConfig) player.Engine {
		return newEngine(cfg, opts)
	}
}

type segment struct {
	url      string
	start    float64
	duration float64
}

type engine struct {
	cfg          player.EngineConfig
	client       *http.Client
	logger       *slog.Logger
	tickInterval time.Duration
	maxRetries   int
	retryDelay   time.Duration

	mu        sync.Mutex
	source    domain.StreamSource
	sink      player.MediaSink
	handler   func(player.Event)
	quality   domain.Quality
	volume    float64
	muted     bool
	segments  []segment
	duration  float64
	position  float64
	cursor    int
	playing   bool
	loaded    bool
	destroyed bool
	// netFailures counts consecutive failed fetches; any successful fetch
	// resets it. Past maxRetries the fault escalates to an unrecoverable
	// class instead of inviting another resume.
	netFailures int
	// cache holds recently fetched segment payloads within the back-buffer
	// window, so a seek backwards replays from memory instead of the
	// network.
	cache map[int][]byte

	stopCh  chan struct{}
	fetchWg sync.WaitGroup
}

func newEngine(cfg player.EngineConfig, opts Options) *engine {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tickInterval := opts.TickInterval
	if tickInterval <= 0 {
		tickInterval = defaultTickInterval
		if cfg.LowLatency {
			tickInterval = defaultTickInterval / 2
		}
	}

	maxRetries := opts.NetworkRetries
	if maxRetries <= 0 {
		maxRetries = defaultNetworkRetries
	}

	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}

	return &engine{
		cfg:          cfg,
		client:       client,
		logger:       logger,
		tickInterval: tickInterval,
		maxRetries:   maxRetries,
		retryDelay:   retryDelay,
		quality:      domain.QualityAuto,
		volume:       1,
		cache:        make(map[int][]byte),
		stopCh:       make(chan struct{}),
	}
}

func (e *engine) OnEvent(fn func(player.Event)) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.handler = fn
}

func (e *engine) Attach(sink player.MediaSink) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.destroyed {
		return errDestroyed
	}

	e.sink = sink
	return nil
}

// Load begins the manifest load. Fetch and parse failures surface as
// classified error events, not as a return value, matching the
// event-driven pipeline contract.
func (e *engine) Load(source domain.StreamSource) error {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return errDestroyed
	}
	e.source = source
	e.mu.Unlock()

	go e.load()

	return nil
}

func (e *engine) load() {
	e.mu.Lock()
	playlistUrl := e.source.PlaybackUrl
	quality := e.quality
	e.mu.Unlock()

	segments, duration, err := e.loadPlaylist(playlistUrl, quality)
	if err != nil {
		if classifyLoadError(err) == player.ErrorClassNetwork {
			e.failNetwork(err)
			return
		}

		e.emit(player.Event{
			Type:  player.EventError,
			Fatal: true,
			Class: player.ErrorClassMedia,
			Err:   err,
		})
		return
	}

	e.mu.Lock()
	e.segments = segments
	e.duration = duration
	e.loaded = true
	e.netFailures = 0
	e.mu.Unlock()

	e.emit(player.Event{Type: player.EventManifestParsed, Duration: duration})
}

func (e *engine) loadPlaylist(playlistUrl string, quality domain.Quality) ([]segment, float64, error) {
	body, err := e.fetch(playlistUrl, defaultPlaylistTimeout)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch playlist: %w", err)
	}

	pl, err := playlist.Unmarshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse playlist: %w", err)
	}

	var media *playlist.Media
	switch p := pl.(type) {
	case *playlist.Media:
		media = p

	case *playlist.Multivariant:
		variantUrl, err := selectVariant(p, quality)
		if err != nil {
			return nil, 0, err
		}
		variantUrl = absolutizeUrl(playlistUrl, variantUrl)

		variantBody, err := e.fetch(variantUrl, defaultPlaylistTimeout)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to fetch variant playlist: %w", err)
		}

		variantPl, err := playlist.Unmarshal(variantBody)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to parse variant playlist: %w", err)
		}

		m, ok := variantPl.(*playlist.Media)
		if !ok {
			return nil, 0, errors.New("variant is not a media playlist")
		}
		media = m
		playlistUrl = variantUrl
	}

	segments := make([]segment, 0, len(media.Segments))
	var total float64
	for _, seg := range media.Segments {
		if seg == nil {
			continue
		}
		segments = append(segments, segment{
			url:      absolutizeUrl(playlistUrl, seg.URI),
			start:    total,
			duration: seg.Duration.Seconds(),
		})
		total += seg.Duration.Seconds()
	}

	if len(segments) == 0 {
		return nil, 0, errors.New("playlist has no segments")
	}

	return segments, total, nil
}

// selectVariant picks the highest-bandwidth variant within the quality's
// bandwidth ceiling; auto takes the highest available.
func selectVariant(mv *playlist.Multivariant, quality domain.Quality) (string, error) {
	if len(mv.Variants) == 0 {
		return "", errors.New("multivariant playlist has no variants")
	}

	variants := make([]*playlist.MultivariantVariant, len(mv.Variants))
	copy(variants, mv.Variants)
	sort.Slice(variants, func(i, j int) bool {
		return variants[i].Bandwidth > variants[j].Bandwidth
	})

	ceiling, capped := qualityBandwidth[quality]
	if !capped {
		return variants[0].URI, nil
	}

	for _, variant := range variants {
		if variant.Bandwidth <= ceiling {
			return variant.URI, nil
		}
	}

	// everything is above the ceiling, take the lowest
	return variants[len(variants)-1].URI, nil
}

func (e *engine) Play() error {
	e.mu.Lock()

	if e.destroyed {
		e.mu.Unlock()
		return errDestroyed
	}
	if !e.loaded {
		e.mu.Unlock()
		return errors.New("manifest not loaded")
	}
	if e.playing {
		e.mu.Unlock()
		return nil
	}

	e.playing = true
	e.mu.Unlock()

	e.emit(player.Event{Type: player.EventPlaying})
	go e.progressLoop()
	e.startFetching()

	return nil
}

func (e *engine) Pause() error {
	e.mu.Lock()

	if e.destroyed {
		e.mu.Unlock()
		return errDestroyed
	}
	if !e.playing {
		e.mu.Unlock()
		return nil
	}

	e.playing = false
	e.mu.Unlock()

	e.emit(player.Event{Type: player.EventPaused})

	return nil
}

func (e *engine) Seek(seconds float64) error {
	e.mu.Lock()

	if e.destroyed {
		e.mu.Unlock()
		return errDestroyed
	}

	if seconds < 0 {
		seconds = 0
	}
	if e.duration > 0 && seconds > e.duration {
		seconds = e.duration
	}
	e.position = seconds

	// re-align the segment cursor; cached segments within the back-buffer
	// window replay without a refetch
	e.cursor = 0
	for i, seg := range e.segments {
		if seg.start <= seconds {
			e.cursor = i
		}
	}
	sink := e.sink
	var replay []byte
	if data, ok := e.cache[e.cursor]; ok {
		replay = data
	}
	e.mu.Unlock()

	if sink != nil && replay != nil {
		sink.Write(replay)
	}

	e.emit(player.Event{Type: player.EventTimeUpdate, CurrentTime: seconds})

	return nil
}

func (e *engine) SetVolume(volume float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.volume = volume
	return nil
}

func (e *engine) SetMuted(muted bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.muted = muted
	return nil
}

// SetQuality records the desired quality and, if a multivariant manifest
// is loaded, reloads to switch variants in the background.
func (e *engine) SetQuality(quality domain.Quality) error {
	e.mu.Lock()

	if e.destroyed {
		e.mu.Unlock()
		return errDestroyed
	}

	e.quality = quality
	loaded := e.loaded
	e.mu.Unlock()

	if loaded {
		go e.load()
	}

	return nil
}

// failNetwork reports a fatal network fault, escalating past the retry
// budget so a persistently failing origin stops the pipeline instead of
// inviting resume after resume.
func (e *engine) failNetwork(err error) {
	e.mu.Lock()
	e.netFailures++
	failures := e.netFailures
	e.mu.Unlock()

	if failures > e.maxRetries {
		// Delivered off the worker goroutine: the handler's teardown
		// waits for the workers to exit.
		go e.emit(player.Event{
			Type:  player.EventError,
			Fatal: true,
			Class: player.ErrorClassOther,
			Err:   fmt.Errorf("network retry budget exhausted after %d attempts: %w", failures, err),
		})
		return
	}

	e.emit(player.Event{
		Type:  player.EventError,
		Fatal: true,
		Class: player.ErrorClassNetwork,
		Err:   err,
	})
}

func (e *engine) retryBackoff() time.Duration {
	e.mu.Lock()
	failures := e.netFailures
	e.mu.Unlock()

	delay := e.retryDelay
	for i := 1; i < failures && delay < time.Duration(maxBackoffMultiple)*e.retryDelay; i++ {
		delay *= 2
	}

	return delay
}

// ResumeLoad retries the network side after a fatal network fault: the
// playlist is refetched if it never loaded, otherwise segment fetching
// restarts from the current cursor. The retry waits out an exponential
// backoff first; the pipeline itself is kept.
func (e *engine) ResumeLoad() error {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return errDestroyed
	}
	e.mu.Unlock()

	delay := e.retryBackoff()

	e.fetchWg.Add(1)
	go func() {
		defer e.fetchWg.Done()

		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-e.stopCh:
			return
		case <-timer.C:
		}

		e.mu.Lock()
		if e.destroyed {
			e.mu.Unlock()
			return
		}
		loaded := e.loaded
		playing := e.playing
		e.mu.Unlock()

		if !loaded {
			e.load()
			return
		}

		if playing {
			e.startFetching()
		}
	}()

	return nil
}

// RecoverMedia repairs the media path in place: the cached window is
// discarded and the cursor re-aligned to the current position.
func (e *engine) RecoverMedia() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.destroyed {
		return errDestroyed
	}

	e.cache = make(map[int][]byte)
	for i, seg := range e.segments {
		if seg.start <= e.position {
			e.cursor = i
		}
	}

	return nil
}

// Destroy stops the clock and the fetchers. Idempotent, and safe to call
// before loading ever completed.
func (e *engine) Destroy() {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	e.destroyed = true
	e.playing = false
	close(e.stopCh)
	e.mu.Unlock()

	e.fetchWg.Wait()
}

// progressLoop advances the position against the wall clock while playing
// and emits time updates, then ended at the duration.
func (e *engine) progressLoop() {
	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-e.stopCh:
			return
		case now := <-ticker.C:
			elapsed := now.Sub(last).Seconds()
			last = now

			e.mu.Lock()
			if !e.playing {
				e.mu.Unlock()
				return
			}

			e.position += elapsed
			ended := e.duration > 0 && e.position >= e.duration
			if ended {
				e.position = e.duration
				e.playing = false
			}
			position := e.position
			e.mu.Unlock()

			e.emit(player.Event{Type: player.EventTimeUpdate, CurrentTime: position})
			if ended {
				e.emit(player.Event{Type: player.EventEnded, CurrentTime: position})
				return
			}
		}
	}
}

// startFetching launches the segment pipeline: a fetcher goroutine pulls
// segments ahead of the clock into a bounded channel, a writer drains it
// into the sink. The channel depth is the configured worker budget, so
// fetch/parse work stays off the render path with bounded readahead.
func (e *engine) startFetching() {
	depth := e.cfg.FetchWorkers
	if depth < 1 {
		depth = 1
	}
	// Low-latency playback keeps the readahead shallow so a quality or
	// position change is not stuck behind prefetched segments.
	if e.cfg.LowLatency {
		depth = 1
	}

	fetched := make(chan fetchedSegment, depth)

	e.fetchWg.Add(2)
	go e.fetchLoop(fetched)
	go e.writeLoop(fetched)
}

type fetchedSegment struct {
	index int
	data  []byte
}

func (e *engine) fetchLoop(fetched chan<- fetchedSegment) {
	defer e.fetchWg.Done()
	defer close(fetched)

	for {
		select {
		case <-e.stopCh:
			return
		default:
		}

		e.mu.Lock()
		if !e.playing || e.cursor >= len(e.segments) {
			e.mu.Unlock()
			return
		}
		index := e.cursor
		seg := e.segments[index]
		e.cursor++
		if data, ok := e.cache[index]; ok {
			e.mu.Unlock()
			select {
			case fetched <- fetchedSegment{index: index, data: data}:
			case <-e.stopCh:
				return
			}
			continue
		}
		e.mu.Unlock()

		data, err := e.fetch(seg.url, defaultSegmentTimeout)
		if err != nil {
			e.logger.Warn("segment fetch failed", "url", seg.url, "error", err)
			e.mu.Lock()
			e.cursor = index
			e.mu.Unlock()
			e.failNetwork(fmt.Errorf("failed to fetch segment: %w", err))
			return
		}

		e.cacheSegment(index, data)

		select {
		case fetched <- fetchedSegment{index: index, data: data}:
		case <-e.stopCh:
			return
		}
	}
}

func (e *engine) writeLoop(fetched <-chan fetchedSegment) {
	defer e.fetchWg.Done()

	for {
		select {
		case <-e.stopCh:
			return
		case seg, ok := <-fetched:
			if !ok {
				return
			}

			e.mu.Lock()
			sink := e.sink
			e.mu.Unlock()
			if sink == nil {
				continue
			}

			if _, err := sink.Write(seg.data); err != nil {
				e.emit(player.Event{
					Type:  player.EventError,
					Fatal: true,
					Class: player.ErrorClassMedia,
					Err:   fmt.Errorf("failed to write segment to sink: %w", err),
				})
				return
			}
		}
	}
}

// cacheSegment retains the payload and trims the window to the configured
// back-buffer duration behind the cursor.
func (e *engine) cacheSegment(index int, data []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cache[index] = data
	e.netFailures = 0

	if e.cfg.BackBufferSeconds <= 0 {
		return
	}

	var retained float64
	for i := index; i >= 0; i-- {
		if _, ok := e.cache[i]; !ok {
			continue
		}
		retained += e.segments[i].duration
		if retained > e.cfg.BackBufferSeconds {
			delete(e.cache, i)
		}
	}
}

func (e *engine) emit(event player.Event) {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	handler := e.handler
	e.mu.Unlock()

	if handler != nil {
		handler(event)
	}
}

func (e *engine) fetch(rawUrl string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawUrl, nil)
	if err != nil {
		return nil, err
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxPlaylistBytes*16))
}

func classifyLoadError(err error) player.ErrorClass {
	if strings.Contains(err.Error(), "parse") {
		return player.ErrorClassMedia
	}

	return player.ErrorClassNetwork
}

func absolutizeUrl(playlistUrl, segmentUrl string) string {
	if strings.HasPrefix(segmentUrl, "http://") || strings.HasPrefix(segmentUrl, "https://") {
		return segmentUrl
	}

	base, err := url.Parse(playlistUrl)
	if err != nil {
		return segmentUrl
	}

	ref, err := url.Parse(segmentUrl)
	if err != nil {
		return segmentUrl
	}

	return base.ResolveReference(ref).String()
}
