package player

import (
	"io"

	"github.com/streamwatch/player/internal/domain"
)

// MediaSink is the output surface an engine renders into. Headless engines
// write raw segment bytes; a real playback surface would decode them.
type MediaSink interface {
	io.Writer
}

type EventType string

const (
	EventManifestParsed EventType = "manifest-parsed"
	EventPlaying        EventType = "playing"
	EventPaused         EventType = "paused"
	EventTimeUpdate     EventType = "time-update"
	EventEnded          EventType = "ended"
	EventError          EventType = "error"
)

// ErrorClass is the engine's own classification of a pipeline fault. The
// controller's recovery policy keys off it.
type ErrorClass string

const (
	ErrorClassNetwork ErrorClass = "network"
	ErrorClassMedia   ErrorClass = "media"
	ErrorClassOther   ErrorClass = "other"
)

type Event struct {
	Type        EventType
	CurrentTime float64
	Duration    float64
	Fatal       bool
	Class       ErrorClass
	Err         error
}

// Engine is the capability interface over an adaptive-streaming pipeline.
// The controller treats any implementation as a black box: it issues
// commands and reacts to the events the engine emits.
type Engine interface {
	Load(source domain.StreamSource) error
	Attach(sink MediaSink) error
	Play() error
	Pause() error
	Seek(seconds float64) error
	SetVolume(volume float64) error
	SetMuted(muted bool) error
	SetQuality(quality domain.Quality) error
	// ResumeLoad retries the network side of the pipeline after a fatal
	// network fault, without rebuilding the pipeline.
	ResumeLoad() error
	// RecoverMedia attempts in-place repair after a fatal decode fault.
	RecoverMedia() error
	OnEvent(fn func(Event))
	Destroy()
}

// EngineConfig carries the pipeline tuning the controller applies when it
// builds a fresh engine for a source.
type EngineConfig struct {
	// BackBufferSeconds bounds how much already-played media is retained.
	BackBufferSeconds float64
	// FetchWorkers is the number of workers offloading segment fetch and
	// parsing.
	FetchWorkers int
	LowLatency   bool
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		BackBufferSeconds: 90,
		FetchWorkers:      2,
		LowLatency:        true,
	}
}

// EngineFactory builds a fresh pipeline. The controller calls it on every
// source change, after destroying the previous engine.
type EngineFactory func(cfg EngineConfig) Engine
