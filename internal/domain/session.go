package domain

import (
	"fmt"
	"time"
)

// Session is the bounded interval of one viewing attempt. The id is
// client-generated and never renegotiated with the server.
type Session struct {
	Id              string `json:"session_id"`
	ContentId       string `json:"content_id"`
	StartedAt       int64  `json:"started_at"`
	LastHeartbeatAt int64  `json:"last_heartbeat_at"`
}

// SessionMetadata is snapshotted once when a session starts and never
// re-sampled afterwards.
type SessionMetadata struct {
	DeviceType       string `json:"device_type"`
	Platform         string `json:"platform"`
	UserAgent        string `json:"user_agent"`
	ScreenResolution string `json:"screen_resolution"`
}

type InteractionAction string

const (
	InteractionLike    InteractionAction = "like"
	InteractionShare   InteractionAction = "share"
	InteractionComment InteractionAction = "comment"
)

func (a InteractionAction) Valid() bool {
	switch a {
	case InteractionLike, InteractionShare, InteractionComment:
		return true
	}

	return false
}

// NewSessionId builds a session id from a millisecond timestamp and a
// random suffix. Unique per playback mount, not cryptographically secure.
func NewSessionId(now time.Time, suffix string) string {
	return fmt.Sprintf("session_%d_%s", now.UnixMilli(), suffix)
}
