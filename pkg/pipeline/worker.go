// Package pipeline runs the batch release flow behind the Kafka worker:
// build, k-anonymize, add noise, persist, publish.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/synaptica-ai/mlprofile/pkg/anonymize"
	"github.com/synaptica-ai/mlprofile/pkg/common/kafka"
	"github.com/synaptica-ai/mlprofile/pkg/common/logger"
	"github.com/synaptica-ai/mlprofile/pkg/common/models"
	"github.com/synaptica-ai/mlprofile/pkg/storage"
)

// Event types consumed and produced by the worker.
const (
	EventRawBatch       = "raw-record-batch"
	EventProfileRelease = "anonymized-profile-batch"
)

// Engine is the subset of anonymize.Engine the worker drives.
type Engine interface {
	BatchBuildProfiles(ctx context.Context, records []models.RawSubjectRecord, texts []*string) (anonymize.BatchResult, error)
	ApplyKAnonymity(ctx context.Context, profiles []*models.AnonymizedProfile, k int) (anonymize.KAnonymityResult, error)
	ApplyDifferentialPrivacy(ctx context.Context, profiles []*models.AnonymizedProfile, epsilon float64) ([]*models.AnonymizedProfile, error)
}

type Publisher interface {
	PublishPayload(ctx context.Context, eventType string, source string, payload interface{}) error
}

type ProfileStore interface {
	Save(ctx context.Context, batchID string, profiles []*models.AnonymizedProfile) error
}

type ProfileCache interface {
	Put(ctx context.Context, profiles ...*models.AnonymizedProfile) (int, error)
}

type ReleaseLog interface {
	Append(ctx context.Context, r *storage.Release) error
}

type Config struct {
	Source string
	// K and Epsilon apply when a request leaves them unset. Epsilon <= 0
	// disables the noise stage for such requests.
	K       int
	Epsilon float64
}

// Worker turns raw-record batches into released profile batches. Store,
// Cache and Releases are optional.
type Worker struct {
	Engine    Engine
	Publisher Publisher
	Store     ProfileStore
	Cache     ProfileCache
	Releases  ReleaseLog
	Config    Config
}

// Handle processes one event. Malformed requests and caller input errors
// are wrapped in kafka.ErrPoison so they are committed rather than retried.
func (w *Worker) Handle(ctx context.Context, event models.Event) error {
	if event.Type != EventRawBatch {
		logger.Log.WithField("event_type", event.Type).Debug("ignoring event")
		return nil
	}
	var req models.BatchProfileRequest
	if err := kafka.DecodeData(event.Data, &req); err != nil {
		return fmt.Errorf("%w: %v", kafka.ErrPoison, err)
	}
	resp, release, err := w.Process(ctx, req)
	if err != nil {
		return err
	}

	log := logger.Log.WithFields(logrus.Fields{
		"event_id": event.ID,
		"batch_id": resp.BatchID,
	})
	if w.Store != nil {
		if err := w.Store.Save(ctx, resp.BatchID, resp.Profiles); err != nil {
			return fmt.Errorf("store profiles: %w", err)
		}
	}
	if w.Cache != nil {
		if _, err := w.Cache.Put(ctx, resp.Profiles...); err != nil {
			log.WithError(err).Warn("failed to cache released profiles")
		}
	}
	if err := w.Publisher.PublishPayload(ctx, EventProfileRelease, w.Config.Source, resp); err != nil {
		return fmt.Errorf("publish profiles: %w", err)
	}
	if w.Releases != nil {
		if err := w.Releases.Append(ctx, release); err != nil {
			log.WithError(err).Warn("failed to record cohort release")
		}
	}
	log.WithFields(logrus.Fields{
		"profiles":   len(resp.Profiles),
		"failed":     resp.Failed,
		"suppressed": resp.Suppressed,
	}).Info("cohort released")
	return nil
}

// Process runs the engine stages for req and returns the release payload.
func (w *Worker) Process(ctx context.Context, req models.BatchProfileRequest) (models.BatchProfileResponse, *storage.Release, error) {
	k := req.K
	if k == 0 {
		k = w.Config.K
	}
	epsilon := req.Epsilon
	if epsilon == 0 {
		epsilon = w.Config.Epsilon
	}

	built, err := w.Engine.BatchBuildProfiles(ctx, req.Records, req.Texts)
	if err != nil {
		return models.BatchProfileResponse{}, nil, classify(err)
	}
	batchID := req.BatchID
	if batchID == "" {
		batchID = built.BatchID
	}

	anon, err := w.Engine.ApplyKAnonymity(ctx, built.Profiles, k)
	if err != nil {
		return models.BatchProfileResponse{}, nil, classify(err)
	}
	profiles := anon.Profiles
	if epsilon > 0 {
		profiles, err = w.Engine.ApplyDifferentialPrivacy(ctx, profiles, epsilon)
		if err != nil {
			return models.BatchProfileResponse{}, nil, classify(err)
		}
	}

	ready := 0
	for _, p := range profiles {
		if p.PredictionReady {
			ready++
		}
	}
	resp := models.BatchProfileResponse{
		BatchID:    batchID,
		Profiles:   profiles,
		Failed:     built.Failed,
		Suppressed: anon.Suppressed,
	}
	release := &storage.Release{
		BatchID:    batchID,
		Records:    len(req.Records),
		Profiles:   len(profiles),
		Failed:     built.Failed,
		Suppressed: anon.Suppressed,
		K:          k,
		Epsilon:    epsilon,
		Depth:      anon.Depth,
		ReadyCount: ready,
	}
	return resp, release, nil
}

func classify(err error) error {
	if anonymize.IsCallerInputError(err) {
		return fmt.Errorf("%w: %v", kafka.ErrPoison, err)
	}
	return err
}

// IsPoison reports whether err marks an event that must not be retried.
func IsPoison(err error) bool {
	return errors.Is(err, kafka.ErrPoison)
}
