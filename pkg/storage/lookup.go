package storage

import (
	"context"

	"github.com/synaptica-ai/mlprofile/pkg/common/logger"
	"github.com/synaptica-ai/mlprofile/pkg/common/models"
)

type profileGetter interface {
	Get(ctx context.Context, anonymousID string) (*models.AnonymizedProfile, error)
}

type cachedProfiles interface {
	Get(ctx context.Context, anonymousID string) (*models.AnonymizedProfile, bool, error)
	Put(ctx context.Context, profiles ...*models.AnonymizedProfile) (int, error)
}

// Lookup reads released profiles from the cache, falling back to Postgres
// and refilling the cache on a miss.
type Lookup struct {
	cache    cachedProfiles
	profiles profileGetter
}

func NewLookup(cache cachedProfiles, profiles profileGetter) *Lookup {
	return &Lookup{cache: cache, profiles: profiles}
}

func (l *Lookup) Get(ctx context.Context, anonymousID string) (*models.AnonymizedProfile, error) {
	p, ok, err := l.cache.Get(ctx, anonymousID)
	if err != nil {
		logger.Log.WithError(err).Warn("profile cache read failed, falling back to postgres")
	}
	if ok {
		return p, nil
	}

	p, err = l.profiles.Get(ctx, anonymousID)
	if err != nil {
		return nil, err
	}
	if _, err := l.cache.Put(ctx, p); err != nil {
		logger.Log.WithError(err).Warn("profile cache refill failed")
	}
	return p, nil
}
