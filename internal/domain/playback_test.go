package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewPlaybackState(t *testing.T) {
	state := NewPlaybackState()
	assert.False(t, state.IsPlaying)
	assert.Equal(t, float64(1), state.Volume)
	assert.Equal(t, QualityAuto, state.Quality)
}

func TestWithVolume(t *testing.T) {
	state := NewPlaybackState()

	state = state.WithVolume(1.5)
	assert.Equal(t, float64(1), state.Volume)

	state = state.WithVolume(-0.5)
	assert.Equal(t, float64(0), state.Volume)
	assert.True(t, state.IsMuted)

	// Raising the volume leaves mute as it is.
	state = state.WithVolume(0.4)
	assert.Equal(t, 0.4, state.Volume)
	assert.True(t, state.IsMuted)
}

func TestWithTimeAndDurationClamp(t *testing.T) {
	state := NewPlaybackState().WithTime(-3).WithDuration(-7)
	assert.Equal(t, float64(0), state.CurrentTime)
	assert.Equal(t, float64(0), state.Duration)
}

func TestWithQualityRejectsUnknown(t *testing.T) {
	state := NewPlaybackState().WithQuality(Quality720p)
	assert.Equal(t, Quality720p, state.Quality)

	state = state.WithQuality("8k")
	assert.Equal(t, Quality720p, state.Quality)
}

func TestNewSessionId(t *testing.T) {
	id := NewSessionId(time.UnixMilli(1700000000000), "abc1234")
	assert.Equal(t, "session_1700000000000_abc1234", id)
}
