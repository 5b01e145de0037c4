package redis

import (
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type repo struct {
	rc             *redis.Client
	expireDuration time.Duration
}

func NewRepo(rc *redis.Client, expireDuration time.Duration) *repo {
	return &repo{
		rc:             rc,
		expireDuration: expireDuration,
	}
}

func (r repo) getSessionKey(sessionId string) string {
	return "watch:session:" + sessionId
}

func (r repo) getActiveSessionsKey(contentId string) string {
	return "watch:content:" + contentId + ":active"
}

func (r repo) getContentStatsKey(contentId string) string {
	return "watch:content:" + contentId + ":stats"
}

func (r repo) executePipe(cmds []redis.Cmder, err error) error {
	if err != nil {
		for _, cmd := range cmds {
			if err := cmd.Err(); err != nil && err != redis.Nil {
				return err
			}
		}

		return err
	}

	return nil
}

func (r repo) fieldToBool(field string) bool {
	return field == "1"
}

func (r repo) fieldToInt(field string) int {
	i, _ := strconv.Atoi(field)
	return i
}

func (r repo) fieldToFloat64(field string) float64 {
	f, _ := strconv.ParseFloat(field, 64)
	return f
}
