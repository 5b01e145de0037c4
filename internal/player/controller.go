// Package player owns the adaptive-streaming pipeline of one mounted
// player: it binds a stream source to an engine, applies a tiered fault
// recovery policy, and exposes transport controls. Playback state changes
// are reported to a listener as plain observations; the session telemetry
// layer consumes them without the controller knowing it exists.
package player

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/streamwatch/player/internal/domain"
)

var ErrNoSource = errors.New("no source attached")

// StateListener receives playback observations. All callbacks are invoked
// outside the controller's lock.
type StateListener interface {
	OnPlaying(currentTime float64)
	OnPaused(currentTime float64)
	OnTimeUpdate(currentTime float64)
	OnDuration(duration float64)
	OnEnded()
}

type Config struct {
	Autoplay bool
	Engine   EngineConfig
	Sink     MediaSink
}

type Controller struct {
	newEngine EngineFactory
	listener  StateListener
	logger    *slog.Logger
	autoplay  bool
	engineCfg EngineConfig
	sink      MediaSink

	mu      sync.Mutex
	engine  Engine
	source  domain.StreamSource
	state   domain.PlaybackState
	stopped bool
}

func NewController(newEngine EngineFactory, listener StateListener, logger *slog.Logger, cfg *Config) *Controller {
	engineCfg := cfg.Engine
	if engineCfg == (EngineConfig{}) {
		engineCfg = DefaultEngineConfig()
	}

	return &Controller{
		newEngine: newEngine,
		listener:  listener,
		logger:    logger,
		autoplay:  cfg.Autoplay,
		engineCfg: engineCfg,
		sink:      cfg.Sink,
		state:     domain.NewPlaybackState(),
	}
}

// SetSource tears down any existing pipeline and builds a fresh one for
// the given source. The source is immutable for the lifetime of that
// pipeline.
func (c *Controller) SetSource(source domain.StreamSource) error {
	c.mu.Lock()
	old := c.engine
	c.engine = nil
	c.mu.Unlock()

	// Destroy outside the lock: teardown waits for in-flight event
	// deliveries, and those block on the lock in handleEvent.
	if old != nil {
		old.Destroy()
	}

	engine := c.newEngine(c.engineCfg)

	c.mu.Lock()
	c.engine = engine
	c.source = source
	c.state = domain.NewPlaybackState().
		WithVolume(c.state.Volume).
		WithMuted(c.state.IsMuted).
		WithQuality(c.state.Quality)
	c.stopped = false
	c.mu.Unlock()

	engine.OnEvent(func(event Event) {
		c.handleEvent(engine, event)
	})

	if c.sink != nil {
		if err := engine.Attach(c.sink); err != nil {
			return err
		}
	}

	if err := engine.Load(source); err != nil {
		return err
	}

	return nil
}

func (c *Controller) handleEvent(engine Engine, event Event) {
	c.mu.Lock()
	if c.engine != engine {
		// event from a torn-down pipeline
		c.mu.Unlock()
		return
	}

	switch event.Type {
	case EventManifestParsed:
		c.state = c.state.WithDuration(event.Duration)
		autoplay := c.autoplay
		c.mu.Unlock()

		c.listener.OnDuration(event.Duration)
		if autoplay {
			if err := engine.Play(); err != nil {
				c.logger.Warn("autoplay failed", "error", err)
			}
		}

	case EventPlaying:
		c.state = c.state.WithPlaying(true)
		currentTime := c.state.CurrentTime
		c.mu.Unlock()

		c.listener.OnPlaying(currentTime)

	case EventPaused:
		c.state = c.state.WithPlaying(false)
		currentTime := c.state.CurrentTime
		c.mu.Unlock()

		c.listener.OnPaused(currentTime)

	case EventTimeUpdate:
		c.state = c.state.WithTime(event.CurrentTime)
		c.mu.Unlock()

		c.listener.OnTimeUpdate(event.CurrentTime)

	case EventEnded:
		c.state = c.state.WithPlaying(false)
		c.mu.Unlock()

		c.listener.OnEnded()

	case EventError:
		c.mu.Unlock()
		c.recover(engine, event)

	default:
		c.mu.Unlock()
	}
}

// recover applies the tiered fault policy: network faults retry the load,
// decode faults repair in place, anything else fatal tears the pipeline
// down and leaves the player stopped until the caller reloads.
func (c *Controller) recover(engine Engine, event Event) {
	if !event.Fatal {
		c.logger.Debug("ignoring non-fatal pipeline error", "class", event.Class, "error", event.Err)
		return
	}

	switch event.Class {
	case ErrorClassNetwork:
		c.logger.Warn("fatal network error, resuming load", "error", event.Err)
		if err := engine.ResumeLoad(); err != nil {
			c.logger.Warn("resume load failed", "error", err)
		}

	case ErrorClassMedia:
		c.logger.Warn("fatal media error, attempting recovery", "error", event.Err)
		if err := engine.RecoverMedia(); err != nil {
			c.logger.Warn("media recovery failed", "error", err)
		}

	default:
		c.logger.Error("unrecoverable pipeline error, destroying pipeline", "class", event.Class, "error", event.Err)

		c.mu.Lock()
		if c.engine == engine {
			c.engine = nil
			c.stopped = true
			c.state = c.state.WithPlaying(false)
		}
		c.mu.Unlock()

		engine.Destroy()
	}
}

// TogglePlay inspects the current state rather than tracking a separate
// intention flag.
func (c *Controller) TogglePlay() error {
	c.mu.Lock()
	isPlaying := c.state.IsPlaying
	c.mu.Unlock()

	if isPlaying {
		return c.Pause()
	}

	return c.Play()
}

func (c *Controller) Play() error {
	engine, err := c.currentEngine()
	if err != nil {
		return err
	}

	return engine.Play()
}

func (c *Controller) Pause() error {
	engine, err := c.currentEngine()
	if err != nil {
		return err
	}

	return engine.Pause()
}

func (c *Controller) Seek(seconds float64) error {
	engine, err := c.currentEngine()
	if err != nil {
		return err
	}

	if seconds < 0 {
		seconds = 0
	}

	if err := engine.Seek(seconds); err != nil {
		return err
	}

	c.mu.Lock()
	c.state = c.state.WithTime(seconds)
	c.mu.Unlock()

	return nil
}

func (c *Controller) SetVolume(volume float64) error {
	engine, err := c.currentEngine()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.state = c.state.WithVolume(volume)
	volume = c.state.Volume
	muted := c.state.IsMuted
	c.mu.Unlock()

	if err := engine.SetVolume(volume); err != nil {
		return err
	}

	return engine.SetMuted(muted)
}

func (c *Controller) ToggleMute() error {
	engine, err := c.currentEngine()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.state = c.state.WithMuted(!c.state.IsMuted)
	muted := c.state.IsMuted
	c.mu.Unlock()

	return engine.SetMuted(muted)
}

func (c *Controller) SetQuality(quality domain.Quality) error {
	engine, err := c.currentEngine()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.state = c.state.WithQuality(quality)
	quality = c.state.Quality
	c.mu.Unlock()

	return engine.SetQuality(quality)
}

func (c *Controller) ToggleFullscreen() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = c.state.WithFullscreen(!c.state.IsFullscreen)
}

// State returns a snapshot of the playback state.
func (c *Controller) State() domain.PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Stopped reports whether an unrecoverable fault halted playback; only a
// caller-initiated SetSource restarts it.
func (c *Controller) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stopped
}

func (c *Controller) Source() domain.StreamSource {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.source
}

// Close destroys the pipeline. Safe to call if no source was ever set.
func (c *Controller) Close() {
	c.mu.Lock()
	engine := c.engine
	c.engine = nil
	c.state = c.state.WithPlaying(false)
	c.mu.Unlock()

	if engine != nil {
		engine.Destroy()
	}
}

func (c *Controller) currentEngine() (Engine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.engine == nil {
		return nil, ErrNoSource
	}

	return c.engine, nil
}
