// Package simulator runs a development analytics backend implementing the
// watch-telemetry wire contract, so the player can be exercised end to end
// without the production service.
package simulator

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/streamwatch/player/internal/simulator/controller"
	"github.com/streamwatch/player/internal/simulator/metrics"
	"github.com/streamwatch/player/internal/simulator/repository"
	"github.com/streamwatch/player/internal/simulator/repository/inmemory"
	redisRepo "github.com/streamwatch/player/internal/simulator/repository/redis"
	"github.com/streamwatch/player/internal/simulator/service"
	"github.com/streamwatch/player/pkg/ctxlogger"
	"github.com/streamwatch/player/pkg/redisclient"
)

type AppConfig struct {
	Host                 string `json:"host"`
	Port                 int    `json:"port"`
	LogLevel             string `json:"log_level"`
	Store                string `json:"store"`
	StatsPushIntervalSec int    `json:"stats_push_interval_sec"`
	RedisHost            string `json:"redis_host"`
	RedisPort            int    `json:"redis_port"`
	RedisPassword        string `json:"-"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.Store != "inmemory" && cfg.Store != "redis" {
		return fmt.Errorf("store must be inmemory or redis")
	}
	if cfg.StatsPushIntervalSec < 1 {
		return fmt.Errorf("stats push interval must be greater than 0")
	}
	return nil
}

type iSessionRepo interface {
	SetSession(context.Context, *repository.SetSessionParams) error
	GetSession(context.Context, string) (repository.Session, error)
	UpdateSessionHeartbeat(context.Context, *repository.UpdateSessionHeartbeatParams) error
	EndSession(context.Context, *repository.EndSessionParams) error
	IncrementInteractions(ctx context.Context, contentId string) error
	GetContentStats(ctx context.Context, contentId string) (repository.ContentStats, error)
}

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

	var sessionRepo iSessionRepo
	switch cfg.Store {
	case "redis":
		rc, err := redisclient.NewRedisClient(&redisclient.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return fmt.Errorf("failed to create redis client: %w", err)
		}
		defer rc.Close()
		sessionRepo = redisRepo.NewRepo(rc, 24*time.Hour)
	default:
		sessionRepo = inmemory.NewRepo()
	}

	watchService := service.NewService(sessionRepo, logger)
	m := metrics.New()
	ctrl := controller.NewController(watchService, m, logger, time.Duration(cfg.StatsPushIntervalSec)*time.Second)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: ctrl.GetMux(),
	}

	serverCtx, serverStopCtx := context.WithCancel(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting simulator", "address", server.Addr, "store", cfg.Store)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}
