package repository

import "errors"

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
)

type Session struct {
	SessionId        string  `redis:"session_id"`
	ContentId        string  `redis:"content_id"`
	StartedAt        int64   `redis:"started_at"`
	LastHeartbeatAt  int64   `redis:"last_heartbeat_at"`
	CurrentTime      float64 `redis:"current_time"`
	WatchTime        float64 `redis:"watch_time"`
	Ended            bool    `redis:"ended"`
	DeviceType       string  `redis:"device_type"`
	Platform         string  `redis:"platform"`
	UserAgent        string  `redis:"user_agent"`
	ScreenResolution string  `redis:"screen_resolution"`
}

// ContentStats is the raw accounting a content id accumulates; the service
// derives viewer stats from it.
type ContentStats struct {
	ActiveSessions int
	TotalViews     int
	EndedSessions  int
	TotalWatchTime float64
	Interactions   int
}
