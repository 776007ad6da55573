package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/synaptica-ai/mlprofile/pkg/common/config"
	"github.com/synaptica-ai/mlprofile/pkg/common/logger"
)

const redisTimeout = 2 * time.Second

var (
	redisClient *redis.Client
	redisOnce   sync.Once
)

// GetRedis returns the shared profile-cache client. The cache is optional to
// the pipeline, so a failed first ping is logged and the client still returned.
func GetRedis(cfg *config.Config) *redis.Client {
	redisOnce.Do(func() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:         fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  redisTimeout,
			ReadTimeout:  redisTimeout,
			WriteTimeout: redisTimeout,
		})

		if err := PingRedis(); err != nil {
			logger.Log.WithError(err).WithField("addr", redisClient.Options().Addr).
				Error("Failed to connect to Redis, profile cache degraded")
			return
		}
		logger.Log.Info("Connected to Redis")
	})

	return redisClient
}

// PingRedis is the readiness check for the profile cache.
func PingRedis() error {
	if redisClient == nil {
		return errors.New("redis not initialized")
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	return redisClient.Ping(ctx).Err()
}

func CloseRedis() error {
	if redisClient != nil {
		return redisClient.Close()
	}
	return nil
}
