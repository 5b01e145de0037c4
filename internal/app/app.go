package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/streamwatch/player/internal/analytics"
	"github.com/streamwatch/player/internal/domain"
	"github.com/streamwatch/player/internal/player"
	"github.com/streamwatch/player/internal/player/hlsengine"
	"github.com/streamwatch/player/internal/session"
	"github.com/streamwatch/player/internal/statsfeed"
	"github.com/streamwatch/player/pkg/ctxlogger"
)

type AppConfig struct {
	ApiUrl               string `json:"api_url"`
	WsUrl                string `json:"ws_url"`
	ContentId            string `json:"content_id"`
	StreamUrl            string `json:"stream_url"`
	Autoplay             bool   `json:"autoplay"`
	HeartbeatIntervalSec int    `json:"heartbeat_interval_sec"`
	LogLevel             string `json:"log_level"`
	DeviceType           string `json:"device_type"`
	Platform             string `json:"platform"`
	ScreenResolution     string `json:"screen_resolution"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.ApiUrl == "" {
		return fmt.Errorf("api url must be set")
	}
	if cfg.ContentId == "" {
		return fmt.Errorf("content id must be set")
	}
	if cfg.HeartbeatIntervalSec < 1 {
		return fmt.Errorf("heartbeat interval must be greater than 0")
	}
	return nil
}

// Run wires the playback controller, session manager, and stats feed for
// one stream and plays it until completion or a shutdown signal.
func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		return fmt.Errorf("failed to parse log level %q: %w", cfg.LogLevel, err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		}),
	}
	logger := slog.New(&h)

	transport := analytics.NewTransport(cfg.ApiUrl, 10*time.Second, logger)
	client := analytics.NewClient(transport, logger)

	platform := cfg.Platform
	if platform == "" {
		platform = runtime.GOOS
	}
	deviceType := cfg.DeviceType
	if deviceType == "" {
		deviceType = "headless"
	}

	done := make(chan struct{})
	manager := session.NewManager(client, logger, &session.Config{
		ContentId: cfg.ContentId,
		Metadata: domain.SessionMetadata{
			DeviceType:       deviceType,
			Platform:         platform,
			UserAgent:        fmt.Sprintf("streamwatch-player/%s", runtime.Version()),
			ScreenResolution: cfg.ScreenResolution,
		},
		HeartbeatInterval: time.Duration(cfg.HeartbeatIntervalSec) * time.Second,
		OnComplete: func() {
			recs := client.GetRecommendations(ctx, "", 3)
			for _, rec := range recs {
				logger.Info("up next", "id", rec.Id, "title", rec.Title, "viewers", rec.Viewers)
			}
			close(done)
		},
	})
	defer manager.Close()

	controller := player.NewController(
		hlsengine.NewFactory(hlsengine.Options{Logger: logger}),
		manager,
		logger,
		&player.Config{Autoplay: cfg.Autoplay},
	)
	defer controller.Close()

	streamUrl := cfg.StreamUrl
	if streamUrl == "" {
		info := client.GetStreamInfo(ctx, cfg.ContentId)
		streamUrl = info.PlaybackUrl
	}
	if streamUrl == "" {
		return fmt.Errorf("no stream url for content %s", cfg.ContentId)
	}

	if err := controller.SetSource(domain.StreamSource{
		Id:          cfg.ContentId,
		PlaybackUrl: streamUrl,
	}); err != nil {
		return fmt.Errorf("failed to set source: %w", err)
	}

	if cfg.WsUrl != "" {
		feed := statsfeed.NewChannel(cfg.WsUrl, logger)
		unsubscribe := feed.Subscribe(cfg.ContentId, func(stats domain.ViewerStats) {
			logger.Info("viewer stats",
				"current_viewers", stats.CurrentViewers,
				"total_views", stats.TotalViews,
				"engagement_rate", stats.EngagementRate,
			)
		})
		defer unsubscribe()
	}

	logger.Info("playback started", "content_id", cfg.ContentId, "stream_url", streamUrl)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	select {
	case <-sig:
		logger.Info("shutting down")
	case <-done:
		logger.Info("playback finished")
	case <-ctx.Done():
	}

	return nil
}
