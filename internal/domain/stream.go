package domain

// StreamSource identifies one playable stream. It is immutable once a
// playback attempt begins; changing sources requires rebuilding the
// playback pipeline.
type StreamSource struct {
	Id          string `json:"id"`
	PlaybackUrl string `json:"playback_url"`
	Title       string `json:"title"`
	Poster      string `json:"poster"`
}

type StreamInfo struct {
	Id          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	PlaybackUrl string `json:"playback_url"`
	Poster      string `json:"poster"`
	IsLive      bool   `json:"is_live"`
	Viewers     int    `json:"viewers"`
}

type Recommendation struct {
	Id        string `json:"id"`
	Title     string `json:"title"`
	Thumbnail string `json:"thumbnail"`
	Viewers   int    `json:"viewers"`
}

type ViewerStats struct {
	CurrentViewers int     `json:"current_viewers"`
	TotalViews     int     `json:"total_views"`
	AvgWatchTime   float64 `json:"avg_watch_time"`
	EngagementRate float64 `json:"engagement_rate"`
}
