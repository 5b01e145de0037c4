package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/streamwatch/player/internal/simulator/repository"
)

func (r repo) SetSession(ctx context.Context, params *repository.SetSessionParams) error {
	sessionKey := r.getSessionKey(params.SessionId)

	exists, err := r.rc.Exists(ctx, sessionKey).Result()
	if err != nil {
		return fmt.Errorf("failed to check if session exists: %w", err)
	}
	if exists > 0 {
		return repository.ErrSessionAlreadyExists
	}

	pipe := r.rc.TxPipeline()
	pipe.HSet(ctx, sessionKey, map[string]any{
		"session_id":        params.SessionId,
		"content_id":        params.ContentId,
		"started_at":        params.StartedAt,
		"last_heartbeat_at": 0,
		"current_time":      0,
		"watch_time":        0,
		"ended":             0,
		"device_type":       params.DeviceType,
		"platform":          params.Platform,
		"user_agent":        params.UserAgent,
		"screen_resolution": params.ScreenResolution,
	})
	pipe.Expire(ctx, sessionKey, r.expireDuration)
	pipe.SAdd(ctx, r.getActiveSessionsKey(params.ContentId), params.SessionId)
	pipe.HIncrBy(ctx, r.getContentStatsKey(params.ContentId), "total_views", 1)
	pipe.Expire(ctx, r.getActiveSessionsKey(params.ContentId), r.expireDuration)
	pipe.Expire(ctx, r.getContentStatsKey(params.ContentId), r.expireDuration)

	if err := r.executePipe(pipe.Exec(ctx)); err != nil {
		return fmt.Errorf("failed to set session: %w", err)
	}

	return nil
}

func (r repo) GetSession(ctx context.Context, sessionId string) (repository.Session, error) {
	sessionKey := r.getSessionKey(sessionId)

	fields, err := r.rc.HGetAll(ctx, sessionKey).Result()
	if err != nil {
		return repository.Session{}, fmt.Errorf("failed to get session: %w", err)
	}
	if len(fields) == 0 {
		return repository.Session{}, repository.ErrSessionNotFound
	}

	r.rc.Expire(ctx, sessionKey, r.expireDuration)

	return repository.Session{
		SessionId:        fields["session_id"],
		ContentId:        fields["content_id"],
		StartedAt:        int64(r.fieldToInt(fields["started_at"])),
		LastHeartbeatAt:  int64(r.fieldToInt(fields["last_heartbeat_at"])),
		CurrentTime:      r.fieldToFloat64(fields["current_time"]),
		WatchTime:        r.fieldToFloat64(fields["watch_time"]),
		Ended:            r.fieldToBool(fields["ended"]),
		DeviceType:       fields["device_type"],
		Platform:         fields["platform"],
		UserAgent:        fields["user_agent"],
		ScreenResolution: fields["screen_resolution"],
	}, nil
}

func (r repo) UpdateSessionHeartbeat(ctx context.Context, params *repository.UpdateSessionHeartbeatParams) error {
	sessionKey := r.getSessionKey(params.SessionId)

	exists, err := r.rc.Exists(ctx, sessionKey).Result()
	if err != nil {
		return fmt.Errorf("failed to check if session exists: %w", err)
	}
	if exists == 0 {
		return repository.ErrSessionNotFound
	}

	pipe := r.rc.TxPipeline()
	pipe.HSet(ctx, sessionKey, map[string]any{
		"current_time":      params.CurrentTime,
		"last_heartbeat_at": params.LastHeartbeatAt,
	})
	pipe.Expire(ctx, sessionKey, r.expireDuration)

	if err := r.executePipe(pipe.Exec(ctx)); err != nil {
		return fmt.Errorf("failed to update session heartbeat: %w", err)
	}

	return nil
}

func (r repo) EndSession(ctx context.Context, params *repository.EndSessionParams) error {
	session, err := r.GetSession(ctx, params.SessionId)
	if err != nil {
		return err
	}

	pipe := r.rc.TxPipeline()
	pipe.HSet(ctx, r.getSessionKey(params.SessionId), map[string]any{
		"ended":      1,
		"watch_time": params.WatchTime,
	})

	if !session.Ended {
		statsKey := r.getContentStatsKey(session.ContentId)
		pipe.SRem(ctx, r.getActiveSessionsKey(session.ContentId), params.SessionId)
		pipe.HIncrBy(ctx, statsKey, "ended_sessions", 1)
		pipe.HIncrByFloat(ctx, statsKey, "total_watch_time", params.WatchTime)
		pipe.Expire(ctx, statsKey, r.expireDuration)
	}

	if err := r.executePipe(pipe.Exec(ctx)); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}

	return nil
}

func (r repo) IncrementInteractions(ctx context.Context, contentId string) error {
	statsKey := r.getContentStatsKey(contentId)

	pipe := r.rc.TxPipeline()
	pipe.HIncrBy(ctx, statsKey, "interactions", 1)
	pipe.Expire(ctx, statsKey, r.expireDuration)

	if err := r.executePipe(pipe.Exec(ctx)); err != nil {
		return fmt.Errorf("failed to increment interactions: %w", err)
	}

	return nil
}

func (r repo) GetContentStats(ctx context.Context, contentId string) (repository.ContentStats, error) {
	pipe := r.rc.TxPipeline()
	activeCmd := pipe.SCard(ctx, r.getActiveSessionsKey(contentId))
	statsCmd := pipe.HGetAll(ctx, r.getContentStatsKey(contentId))

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return repository.ContentStats{}, fmt.Errorf("failed to get content stats: %w", err)
	}

	fields := statsCmd.Val()

	return repository.ContentStats{
		ActiveSessions: int(activeCmd.Val()),
		TotalViews:     r.fieldToInt(fields["total_views"]),
		EndedSessions:  r.fieldToInt(fields["ended_sessions"]),
		TotalWatchTime: r.fieldToFloat64(fields["total_watch_time"]),
		Interactions:   r.fieldToInt(fields["interactions"]),
	}, nil
}
