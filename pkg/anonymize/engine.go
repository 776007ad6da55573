// Package anonymize assembles ML-ready anonymized profiles and applies the
// cohort-level privacy operators (k-anonymity, differential privacy).
//
// Only caller input errors are returned. Dependency failures such as a slow
// or malformed embedding degrade the affected profile, which is still
// returned with its gates closed.
package anonymize

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/synaptica-ai/mlprofile/pkg/audit"
	"github.com/synaptica-ai/mlprofile/pkg/common/logger"
	"github.com/synaptica-ai/mlprofile/pkg/common/models"
	"github.com/synaptica-ai/mlprofile/pkg/compliance"
	"github.com/synaptica-ai/mlprofile/pkg/embedding"
	"github.com/synaptica-ai/mlprofile/pkg/features"
	"github.com/synaptica-ai/mlprofile/pkg/generalize"
	"github.com/synaptica-ai/mlprofile/pkg/pseudonym"
	"github.com/synaptica-ai/mlprofile/pkg/vector"
)

// AlgorithmVersion is stamped on every profile.
const AlgorithmVersion = "mlprofile-1.0/" + vector.FieldOrderVersion

type Config struct {
	Workers                int
	EmbeddingDim           int
	EmbeddingTimeout       time.Duration
	ComplianceMinScore     float64
	QualityMinScore        float64
	MaxGeneralizationDepth int
	// Scope is mixed into every pseudonym the engine mints.
	Scope pseudonym.Scope
}

func DefaultConfig() Config {
	return Config{
		Workers:                8,
		EmbeddingDim:           embedding.DefaultDimension,
		EmbeddingTimeout:       5 * time.Second,
		ComplianceMinScore:     0.9,
		QualityMinScore:        0.8,
		MaxGeneralizationDepth: generalize.DefaultLadder.MaxDepth(),
		Scope:                  pseudonym.Scope{"purpose": "ml"},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.EmbeddingDim <= 0 {
		c.EmbeddingDim = d.EmbeddingDim
	}
	if c.EmbeddingTimeout <= 0 {
		c.EmbeddingTimeout = d.EmbeddingTimeout
	}
	if c.ComplianceMinScore <= 0 {
		c.ComplianceMinScore = d.ComplianceMinScore
	}
	if c.QualityMinScore <= 0 {
		c.QualityMinScore = d.QualityMinScore
	}
	if c.MaxGeneralizationDepth <= 0 || c.MaxGeneralizationDepth > d.MaxGeneralizationDepth {
		c.MaxGeneralizationDepth = d.MaxGeneralizationDepth
	}
	if c.Scope == nil {
		c.Scope = d.Scope
	}
	return c
}

// Deps are the engine's collaborators. Pseudonyms and Extractor are
// required; the rest fall back to defaults, and a nil Embedder means every
// supplied text degrades its profile.
type Deps struct {
	Pseudonyms *pseudonym.Generator
	Extractor  *features.Extractor
	Preparator *vector.Preparator
	Validator  *compliance.Validator
	Embedder   embedding.Embedder
	Sink       audit.Sink
}

type Option func(*Engine)

func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

func WithNoiseSource(n NoiseSource) Option {
	return func(e *Engine) {
		if n != nil {
			e.noise = n
		}
	}
}

func WithLadder(l generalize.Ladder) Option {
	return func(e *Engine) {
		if len(l) > 0 {
			e.ladder = l
		}
	}
}

func WithLogger(entry *logrus.Entry) Option {
	return func(e *Engine) {
		if entry != nil {
			e.log = entry
		}
	}
}

type Engine struct {
	cfg        Config
	pseudonyms *pseudonym.Generator
	extractor  *features.Extractor
	preparator *vector.Preparator
	validator  *compliance.Validator
	embedder   embedding.Embedder
	sink       audit.Sink
	ladder     generalize.Ladder
	noise      NoiseSource
	clock      func() time.Time
	log        *logrus.Entry
}

func NewEngine(deps Deps, cfg Config, opts ...Option) (*Engine, error) {
	if deps.Pseudonyms == nil {
		return nil, errors.New("pseudonym generator is required")
	}
	if deps.Extractor == nil {
		return nil, errors.New("feature extractor is required")
	}
	e := &Engine{
		cfg:        cfg.withDefaults(),
		pseudonyms: deps.Pseudonyms,
		extractor:  deps.Extractor,
		preparator: deps.Preparator,
		validator:  deps.Validator,
		embedder:   deps.Embedder,
		sink:       deps.Sink,
		ladder:     generalize.DefaultLadder,
		noise:      CryptoLaplace{},
		clock:      time.Now,
		log:        logger.Log.WithField("component", "anonymization-engine"),
	}
	if e.preparator == nil {
		e.preparator = vector.NewPreparator(nil)
	}
	if e.validator == nil {
		e.validator = compliance.NewValidator(nil, compliance.DefaultThresholds())
	}
	if e.sink == nil {
		e.sink = audit.Nop()
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cfg.MaxGeneralizationDepth > e.ladder.MaxDepth() {
		e.cfg.MaxGeneralizationDepth = e.ladder.MaxDepth()
	}
	return e, nil
}

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) ExtractFeatures(rec models.RawSubjectRecord) models.CategoricalFeatureSet {
	return e.extractor.Extract(rec)
}

// GeneratePseudonym mints an identifier under scope; a nil scope uses the
// engine's configured scope.
func (e *Engine) GeneratePseudonym(ctx context.Context, subjectID string, scope pseudonym.Scope) (string, error) {
	if scope == nil {
		scope = e.cfg.Scope
	}
	id, err := e.pseudonyms.Generate(ctx, subjectID, scope)
	if err != nil {
		return "", callerError(err)
	}
	return id, nil
}

func (e *Engine) ValidatePseudonym(ctx context.Context, subjectID, candidate string, scope pseudonym.Scope) bool {
	if scope == nil {
		scope = e.cfg.Scope
	}
	return e.pseudonyms.Validate(ctx, subjectID, candidate, scope)
}

func (e *Engine) RotationSchedule() pseudonym.RotationInfo {
	return e.pseudonyms.Schedule()
}

func (e *Engine) Rotate(ctx context.Context) pseudonym.RotationInfo {
	return e.pseudonyms.Rotate(ctx)
}

func (e *Engine) CheckCompliance(ctx context.Context, p *models.AnonymizedProfile) models.ComplianceVerdict {
	verdict := e.validator.Check(p)
	e.auditVerdict(ctx, p, verdict)
	return verdict
}

func (e *Engine) BatchCheckCompliance(ctx context.Context, profiles []*models.AnonymizedProfile) []models.ComplianceVerdict {
	verdicts := e.validator.BatchCheck(profiles)
	for i, v := range verdicts {
		e.auditVerdict(ctx, profiles[i], v)
	}
	return verdicts
}

func (e *Engine) auditVerdict(ctx context.Context, p *models.AnonymizedProfile, v models.ComplianceVerdict) {
	outcome := models.OutcomeSuccess
	if v.OverallScore < e.cfg.ComplianceMinScore {
		outcome = models.OutcomeFailure
	}
	anonymousID := ""
	if p != nil {
		anonymousID = p.AnonymousID
	}
	audit.Emit(ctx, e.sink, audit.NewRecord(e.clock(), audit.OpComplianceCheck, anonymousID, outcome, map[string]interface{}{
		"overall_score": v.OverallScore,
		"violations":    len(v.Violations),
	}))
}
