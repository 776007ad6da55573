package anonymize

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/synaptica-ai/mlprofile/pkg/audit"
	"github.com/synaptica-ai/mlprofile/pkg/common/logger"
	"github.com/synaptica-ai/mlprofile/pkg/common/models"
	"github.com/synaptica-ai/mlprofile/pkg/embedding"
	"github.com/synaptica-ai/mlprofile/pkg/observability/metrics"
	"github.com/synaptica-ai/mlprofile/pkg/pseudonym"
	"golang.org/x/sync/errgroup"
)

// BuildProfile assembles and gates the profile for one subject. A nil text
// means no embedding is expected. The only error is a missing subject id.
func (e *Engine) BuildProfile(ctx context.Context, rec models.RawSubjectRecord, text *string) (*models.AnonymizedProfile, error) {
	if strings.TrimSpace(rec.SubjectID) == "" {
		return nil, callerError(pseudonym.ErrMissingSubjectID)
	}
	log := e.log.WithField("subject_hash", logger.HashSubject(rec.SubjectID))

	var anonymousID string
	var g errgroup.Group
	g.Go(func() error {
		id, err := e.pseudonyms.Generate(ctx, rec.SubjectID, e.cfg.Scope)
		anonymousID = id
		return err
	})

	fs := e.extractor.Extract(rec)
	var vec []float64
	var embedErr error
	if text != nil {
		vec, embedErr = e.embed(ctx, *text, fs)
		if embedErr != nil {
			log.WithError(embedErr).Warn("embedding unavailable, profile will not be prediction ready")
		}
	}

	if err := g.Wait(); err != nil {
		return nil, callerError(err)
	}

	vectorFeatures := e.preparator.Encode(fs)
	quality := e.preparator.ValidateQuality(vectorFeatures)
	if !quality.Valid {
		log.WithField("issues", quality.Issues).Warn("vector quality issues")
	}

	profile := &models.AnonymizedProfile{
		AnonymousID:       anonymousID,
		Features:          fs,
		Embedding:         vec,
		VectorFeatures:    vectorFeatures,
		SimilarityWeights: fs.Clone().SimilarityWeights,
		EmbeddingExpected: text != nil,
		QualityScore:      quality.Score,
		CreatedAt:         e.clock().UTC(),
		AlgorithmVersion:  AlgorithmVersion,
	}
	e.gate(profile, text == nil || embedErr == nil)

	metrics.ObserveProfile(profile.ComplianceValidated, profile.PredictionReady, embedErr != nil)

	outcome := models.OutcomeSuccess
	if !profile.PredictionReady {
		outcome = models.OutcomeDegraded
	}
	audit.Emit(ctx, e.sink, audit.NewRecord(e.clock(), audit.OpProfileBuild, rec.SubjectID, outcome, map[string]interface{}{
		"overall_score":        profile.Verdict.OverallScore,
		"quality_score":        profile.QualityScore,
		"compliance_validated": profile.ComplianceValidated,
		"prediction_ready":     profile.PredictionReady,
		"embedding_failed":     embedErr != nil,
	}))

	log.WithFields(logrus.Fields{
		"overall_score":    profile.Verdict.OverallScore,
		"prediction_ready": profile.PredictionReady,
	}).Debug("profile built")
	return profile, nil
}

// gate attaches a fresh verdict and recomputes both release flags.
func (e *Engine) gate(p *models.AnonymizedProfile, embeddingOK bool) {
	verdict := e.validator.Check(p)
	p.Verdict = &verdict
	p.ComplianceValidated = verdict.OverallScore >= e.cfg.ComplianceMinScore
	p.PredictionReady = p.ComplianceValidated && p.QualityScore >= e.cfg.QualityMinScore && embeddingOK
}

func (e *Engine) embed(ctx context.Context, text string, fs models.CategoricalFeatureSet) ([]float64, error) {
	if e.embedder == nil {
		return nil, ErrNoEmbedder
	}
	prepared := e.preparator.PrepareText(text, fs)

	ctx, cancel := context.WithTimeout(ctx, e.cfg.EmbeddingTimeout)
	defer cancel()

	type result struct {
		vec []float64
		err error
	}
	// Buffered so an embedder that ignores ctx cannot leak the goroutine forever.
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("embedder panic: %v", r)}
			}
		}()
		vec, err := e.embedder.Embed(ctx, prepared)
		done <- result{vec: vec, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		return nil, fmt.Errorf("embed: %w", ctx.Err())
	}
	if res.err != nil {
		return nil, fmt.Errorf("embed: %w", res.err)
	}
	if err := embedding.Check(res.vec, e.cfg.EmbeddingDim); err != nil {
		return nil, err
	}
	return res.vec, nil
}
