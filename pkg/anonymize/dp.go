package anonymize

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/synaptica-ai/mlprofile/pkg/audit"
	"github.com/synaptica-ai/mlprofile/pkg/common/models"
	"github.com/synaptica-ai/mlprofile/pkg/features"
	"github.com/synaptica-ai/mlprofile/pkg/observability/metrics"
)

// Per-field L1 sensitivities.
const (
	riskCountSensitivity   = 1.0
	comorbiditySensitivity = 1.0
	weightSensitivity      = 0.1
)

// NoiseSource draws one Laplace(0, scale) sample.
type NoiseSource interface {
	Laplace(scale float64) float64
}

// NoiseFunc adapts a function to NoiseSource.
type NoiseFunc func(scale float64) float64

func (f NoiseFunc) Laplace(scale float64) float64 { return f(scale) }

// CryptoLaplace samples by inverse CDF from crypto/rand uniforms.
type CryptoLaplace struct{}

func (CryptoLaplace) Laplace(scale float64) float64 {
	u := uniform() - 0.5
	tail := 1 - 2*math.Abs(u)
	if tail <= 0 {
		tail = math.SmallestNonzeroFloat64
	}
	if u < 0 {
		return scale * math.Log(tail)
	}
	return -scale * math.Log(tail)
}

// uniform returns a value in [0, 1) with 53 bits of precision.
func uniform() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic("anonymize: crypto/rand unavailable: " + err.Error())
	}
	return float64(binary.BigEndian.Uint64(buf[:])>>11) / (1 << 53)
}

// ApplyDifferentialPrivacy returns noised copies of profiles. The risk-factor
// count is rounded and clamped into [0, features.MaxRiskFactors], the
// comorbidity score clamped at zero and similarity weights clamped into
// [0, 1]. The risk-factor tag list is withheld from the copies since its
// length is the exact count. Nil entries are skipped.
func (e *Engine) ApplyDifferentialPrivacy(ctx context.Context, profiles []*models.AnonymizedProfile, epsilon float64) ([]*models.AnonymizedProfile, error) {
	if !(epsilon > 0) || math.IsInf(epsilon, 0) {
		return nil, callerError(ErrInvalidEpsilon)
	}

	out := make([]*models.AnonymizedProfile, 0, len(profiles))
	for _, p := range profiles {
		if p == nil {
			continue
		}
		c := p.Clone()
		e.perturb(c, epsilon)
		out = append(out, c)
	}

	metrics.ObserveDifferentialPrivacy()
	audit.Emit(ctx, e.sink, audit.NewRecord(e.clock(), audit.OpDifferentialPriv, "", models.OutcomeSuccess, map[string]interface{}{
		"epsilon":  epsilon,
		"profiles": len(out),
	}))
	e.log.WithFields(logrus.Fields{
		"epsilon":  epsilon,
		"profiles": len(out),
	}).Info("differential privacy applied")
	return out, nil
}

func (e *Engine) perturb(p *models.AnonymizedProfile, epsilon float64) {
	fs := &p.Features

	count := float64(fs.RiskFactorCount) + e.noise.Laplace(riskCountSensitivity/epsilon)
	fs.RiskFactorCount = int(math.Min(features.MaxRiskFactors, math.Max(0, math.Round(count))))
	fs.RiskFactors = nil

	fs.ComorbidityScore = roundNoised(math.Max(0, fs.ComorbidityScore+e.noise.Laplace(comorbiditySensitivity/epsilon)))

	weights := p.SimilarityWeights
	if weights == nil {
		weights = fs.SimilarityWeights
	}
	if weights != nil {
		// Sorted so a seeded noise source gives reproducible output.
		keys := make([]string, 0, len(weights))
		for k := range weights {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		noised := make(map[string]float64, len(weights))
		for _, k := range keys {
			noised[k] = roundNoised(clamp01(weights[k] + e.noise.Laplace(weightSensitivity/epsilon)))
		}
		p.SimilarityWeights = noised
		fs.SimilarityWeights = cloneWeights(noised)
	}

	p.VectorFeatures = e.preparator.Encode(*fs)
}

// roundNoised keeps four decimal places.
func roundNoised(x float64) float64 {
	return math.Round(x*1e4) / 1e4
}

func clamp01(x float64) float64 {
	return math.Min(1, math.Max(0, x))
}

func cloneWeights(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
