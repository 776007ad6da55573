package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/synaptica-ai/mlprofile/pkg/common/logger"
	"github.com/synaptica-ai/mlprofile/pkg/common/models"
)

const profileKeyPrefix = "profile:"

// KeyValue is the subset of *redis.Client the cache needs.
type KeyValue interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// ProfileCache is the online store for released profiles, keyed by
// anonymous id. Only prediction-ready profiles are cached.
type ProfileCache struct {
	client KeyValue
	ttl    time.Duration
}

func NewProfileCache(client KeyValue, ttl time.Duration) *ProfileCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ProfileCache{client: client, ttl: ttl}
}

// TTL is how long a cached profile outlives its release.
func (c *ProfileCache) TTL() time.Duration { return c.ttl }

func profileKey(anonymousID string) string {
	return profileKeyPrefix + anonymousID
}

// Put caches every prediction-ready profile and returns how many were written.
func (c *ProfileCache) Put(ctx context.Context, profiles ...*models.AnonymizedProfile) (int, error) {
	written := 0
	for _, p := range profiles {
		if !p.Frozen() {
			continue
		}
		data, err := json.Marshal(p)
		if err != nil {
			return written, fmt.Errorf("encode profile: %w", err)
		}
		if err := c.client.Set(ctx, profileKey(p.AnonymousID), data, c.ttl).Err(); err != nil {
			return written, fmt.Errorf("cache profile: %w", err)
		}
		written++
	}
	logger.Log.WithField("profiles", written).Debug("profiles cached")
	return written, nil
}

// Get returns the cached profile, or ok=false on a miss.
func (c *ProfileCache) Get(ctx context.Context, anonymousID string) (*models.AnonymizedProfile, bool, error) {
	data, err := c.client.Get(ctx, profileKey(anonymousID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var p models.AnonymizedProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, false, fmt.Errorf("decode cached profile: %w", err)
	}
	return &p, true, nil
}

// Invalidate drops cached profiles, e.g. after a pseudonym rotation.
func (c *ProfileCache) Invalidate(ctx context.Context, anonymousIDs ...string) error {
	if len(anonymousIDs) == 0 {
		return nil
	}
	keys := make([]string, len(anonymousIDs))
	for i, id := range anonymousIDs {
		keys[i] = profileKey(id)
	}
	return c.client.Del(ctx, keys...).Err()
}
