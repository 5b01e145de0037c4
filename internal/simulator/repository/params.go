package repository

type SetSessionParams struct {
	SessionId        string
	ContentId        string
	StartedAt        int64
	DeviceType       string
	Platform         string
	UserAgent        string
	ScreenResolution string
}

type UpdateSessionHeartbeatParams struct {
	SessionId       string
	CurrentTime     float64
	LastHeartbeatAt int64
}

type EndSessionParams struct {
	SessionId string
	WatchTime float64
}
