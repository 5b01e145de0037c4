package domain

type Quality string

const (
	QualityAuto  Quality = "auto"
	Quality1080p Quality = "1080p"
	Quality720p  Quality = "720p"
	Quality480p  Quality = "480p"
)

func (q Quality) Valid() bool {
	switch q {
	case QualityAuto, Quality1080p, Quality720p, Quality480p:
		return true
	}

	return false
}

// PlaybackState is a value type. It is only changed through the With*
// transitions below, each returning the next state, so every mutation of
// the player goes through a named transition.
type PlaybackState struct {
	IsPlaying    bool    `json:"is_playing"`
	CurrentTime  float64 `json:"current_time"`
	Duration     float64 `json:"duration"`
	Volume       float64 `json:"volume"`
	IsMuted      bool    `json:"is_muted"`
	IsFullscreen bool    `json:"is_fullscreen"`
	Quality      Quality `json:"quality"`
}

func NewPlaybackState() PlaybackState {
	return PlaybackState{
		Volume:  1,
		Quality: QualityAuto,
	}
}

func (s PlaybackState) WithPlaying(isPlaying bool) PlaybackState {
	s.IsPlaying = isPlaying
	return s
}

func (s PlaybackState) WithTime(currentTime float64) PlaybackState {
	if currentTime < 0 {
		currentTime = 0
	}

	s.CurrentTime = currentTime
	return s
}

func (s PlaybackState) WithDuration(duration float64) PlaybackState {
	if duration < 0 {
		duration = 0
	}

	s.Duration = duration
	return s
}

// WithVolume clamps to [0,1]. Volume 0 also mutes, so the volume slider and
// the mute toggle can never disagree.
func (s PlaybackState) WithVolume(volume float64) PlaybackState {
	if volume < 0 {
		volume = 0
	}
	if volume > 1 {
		volume = 1
	}

	s.Volume = volume
	if volume == 0 {
		s.IsMuted = true
	}

	return s
}

func (s PlaybackState) WithMuted(isMuted bool) PlaybackState {
	s.IsMuted = isMuted
	return s
}

func (s PlaybackState) WithFullscreen(isFullscreen bool) PlaybackState {
	s.IsFullscreen = isFullscreen
	return s
}

func (s PlaybackState) WithQuality(quality Quality) PlaybackState {
	if !quality.Valid() {
		return s
	}

	s.Quality = quality
	return s
}
