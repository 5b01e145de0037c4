// Package controller exposes the analytics wire contract over HTTP and a
// websocket push channel for live viewer stats.
package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/streamwatch/player/internal/domain"
	"github.com/streamwatch/player/internal/simulator/metrics"
	"github.com/streamwatch/player/internal/simulator/service"
	"github.com/streamwatch/player/pkg/validator"
)

const defaultStatsPushInterval = 5 * time.Second

type iWatchService interface {
	StartSession(context.Context, *service.StartSessionParams) error
	Heartbeat(context.Context, *service.HeartbeatParams) error
	EndSession(context.Context, *service.EndSessionParams) error
	RecordInteraction(context.Context, *service.RecordInteractionParams) error
	GetViewerStats(ctx context.Context, contentId string) (domain.ViewerStats, error)
	GetStreamInfo(ctx context.Context, contentId string) (domain.StreamInfo, error)
	GetRecommendations(ctx context.Context, userId string, limit int) ([]domain.Recommendation, error)
}

type controller struct {
	watchService      iWatchService
	upgrader          websocket.Upgrader
	validate          *validator.Validator
	metrics           *metrics.Metrics
	logger            *slog.Logger
	statsPushInterval time.Duration
}

func NewController(watchService iWatchService, m *metrics.Metrics, logger *slog.Logger, statsPushInterval time.Duration) *controller {
	if statsPushInterval <= 0 {
		statsPushInterval = defaultStatsPushInterval
	}

	return &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		watchService:      watchService,
		validate:          validator.NewValidator(),
		metrics:           m,
		logger:            logger,
		statsPushInterval: statsPushInterval,
	}
}
