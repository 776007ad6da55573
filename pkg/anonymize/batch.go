package anonymize

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/synaptica-ai/mlprofile/pkg/audit"
	"github.com/synaptica-ai/mlprofile/pkg/common/logger"
	"github.com/synaptica-ai/mlprofile/pkg/common/models"
	"github.com/synaptica-ai/mlprofile/pkg/observability/metrics"
	"golang.org/x/sync/errgroup"
)

type BatchResult struct {
	BatchID  string
	Profiles []*models.AnonymizedProfile
	Failed   int
}

// BatchBuildProfiles builds every record in parallel. Records that fail for
// any reason, including a panic, are dropped and counted; surviving profiles
// keep input order. texts may be nil, otherwise it must match records.
func (e *Engine) BatchBuildProfiles(ctx context.Context, records []models.RawSubjectRecord, texts []*string) (BatchResult, error) {
	if texts != nil && len(texts) != len(records) {
		return BatchResult{}, callerError(ErrBatchLengthMismatch)
	}
	batchID := uuid.New().String()
	log := e.log.WithField("batch_id", batchID)

	slots := make([]*models.AnonymizedProfile, len(records))
	var failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i := range records {
		i := i
		g.Go(func() error {
			var text *string
			if texts != nil {
				text = texts[i]
			}
			p, err := e.buildRecovered(gctx, records[i], text)
			if err != nil {
				failed.Add(1)
				log.WithError(err).WithField("subject_hash", logger.HashSubject(records[i].SubjectID)).
					Warn("dropping record from batch")
				audit.Emit(gctx, e.sink, audit.NewRecord(e.clock(), audit.OpProfileFailed, records[i].SubjectID, models.OutcomeFailure, map[string]interface{}{
					"batch_id": batchID,
					"error":    err.Error(),
				}))
				return nil
			}
			slots[i] = p
			return nil
		})
	}
	// Workers never return an error; failures are counted instead.
	_ = g.Wait()

	result := BatchResult{BatchID: batchID, Profiles: make([]*models.AnonymizedProfile, 0, len(records))}
	for _, p := range slots {
		if p != nil {
			result.Profiles = append(result.Profiles, p)
		}
	}
	result.Failed = int(failed.Load())
	metrics.ObserveBatchFailures(result.Failed)

	outcome := models.OutcomeSuccess
	if result.Failed > 0 {
		outcome = models.OutcomeDegraded
	}
	audit.Emit(ctx, e.sink, audit.NewRecord(e.clock(), audit.OpProfileBatch, "", outcome, map[string]interface{}{
		"batch_id": batchID,
		"records":  len(records),
		"profiles": len(result.Profiles),
		"failed":   result.Failed,
	}))
	log.WithFields(logrus.Fields{
		"records": len(records),
		"failed":  result.Failed,
	}).Info("batch built")
	return result, nil
}

func (e *Engine) buildRecovered(ctx context.Context, rec models.RawSubjectRecord, text *string) (p *models.AnonymizedProfile, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, fmt.Errorf("panic while building profile: %v", r)
		}
	}()
	return e.BuildProfile(ctx, rec, text)
}
