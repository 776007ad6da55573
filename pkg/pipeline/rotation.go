package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/synaptica-ai/mlprofile/pkg/common/logger"
	"github.com/synaptica-ai/mlprofile/pkg/pseudonym"
)

type PseudonymRotator interface {
	Rotate(ctx context.Context) pseudonym.RotationInfo
}

type ReleasedIDs interface {
	ReadyIDsSince(ctx context.Context, since time.Time) ([]string, error)
}

type CacheInvalidator interface {
	Invalidate(ctx context.Context, anonymousIDs ...string) error
	TTL() time.Duration
}

// Rotation advances the pseudonym period and evicts cached profiles that were
// released under the previous one. Profiles stored longer ago than the cache
// TTL have already expired, so only the TTL window is looked up.
type Rotation struct {
	Engine PseudonymRotator
	Store  ReleasedIDs
	Cache  CacheInvalidator
	Clock  func() time.Time
}

// Rotate returns the new schedule and how many cached profiles were evicted.
// Ids are read before rotating so a failed lookup leaves the period unchanged.
func (r *Rotation) Rotate(ctx context.Context) (pseudonym.RotationInfo, int, error) {
	clock := r.Clock
	if clock == nil {
		clock = time.Now
	}

	var ids []string
	if r.Store != nil && r.Cache != nil {
		var err error
		ids, err = r.Store.ReadyIDsSince(ctx, clock().Add(-r.Cache.TTL()))
		if err != nil {
			return pseudonym.RotationInfo{}, 0, fmt.Errorf("list cached profiles: %w", err)
		}
	}

	info := r.Engine.Rotate(ctx)
	log := logger.Log.WithFields(logrus.Fields{
		"period_index": info.PeriodIndex,
		"evicting":     len(ids),
	})
	if len(ids) > 0 {
		if err := r.Cache.Invalidate(ctx, ids...); err != nil {
			log.WithError(err).Error("pseudonyms rotated but cache eviction failed")
			return info, 0, fmt.Errorf("evict cached profiles: %w", err)
		}
	}
	log.Info("pseudonyms rotated")
	return info, len(ids), nil
}
