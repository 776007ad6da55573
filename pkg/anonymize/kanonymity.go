package anonymize

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/synaptica-ai/mlprofile/pkg/audit"
	"github.com/synaptica-ai/mlprofile/pkg/common/models"
	"github.com/synaptica-ai/mlprofile/pkg/observability/metrics"
)

type KAnonymityResult struct {
	Profiles   []*models.AnonymizedProfile
	Suppressed int
	// Depth is the deepest generalization applied to any released profile.
	Depth int
}

// ApplyKAnonymity returns copies of profiles in which every quasi-identifier
// tuple is shared by at least k profiles. Each round moves only the members
// of undersized groups one rung up the ladder, starting from their original
// tuple; members that are still undersized at the maximum depth are
// suppressed. Nil entries are ignored and the input is never modified.
func (e *Engine) ApplyKAnonymity(ctx context.Context, profiles []*models.AnonymizedProfile, k int) (KAnonymityResult, error) {
	if k < 2 {
		return KAnonymityResult{}, callerError(ErrInvalidK)
	}

	type member struct {
		profile *models.AnonymizedProfile
		orig    models.QuasiIdentifier
		qi      models.QuasiIdentifier
		depth   int
	}
	members := make([]*member, 0, len(profiles))
	for _, p := range profiles {
		if p == nil {
			continue
		}
		c := p.Clone()
		q := c.Features.QuasiIdentifier()
		members = append(members, &member{profile: c, orig: q, qi: q})
	}

	maxDepth := e.cfg.MaxGeneralizationDepth
	suppressed := make(map[*member]bool)
	for {
		groups := make(map[models.QuasiIdentifier]int, len(members))
		for _, m := range members {
			groups[m.qi]++
		}

		var undersized []*member
		for _, m := range members {
			if groups[m.qi] < k {
				undersized = append(undersized, m)
			}
		}
		if len(undersized) == 0 {
			break
		}

		progressed := false
		for _, m := range undersized {
			if m.depth < maxDepth {
				m.depth++
				m.qi = e.ladder.Generalize(m.orig, m.depth)
				progressed = true
			}
		}
		if !progressed {
			for _, m := range undersized {
				suppressed[m] = true
			}
			break
		}
	}

	result := KAnonymityResult{Profiles: make([]*models.AnonymizedProfile, 0, len(members))}
	for _, m := range members {
		if suppressed[m] {
			result.Suppressed++
			continue
		}
		if m.depth > 0 {
			m.profile.Features.SetQuasiIdentifier(m.qi)
			m.profile.VectorFeatures = e.preparator.Encode(m.profile.Features)
		}
		if m.depth > result.Depth {
			result.Depth = m.depth
		}
		result.Profiles = append(result.Profiles, m.profile)
	}

	metrics.ObserveKAnonymity(result.Suppressed, result.Depth)
	audit.Emit(ctx, e.sink, audit.NewRecord(e.clock(), audit.OpKAnonymity, "", models.OutcomeSuccess, map[string]interface{}{
		"k":          k,
		"profiles":   len(members),
		"suppressed": result.Suppressed,
		"depth":      result.Depth,
		"step":       e.ladder.StepName(result.Depth),
	}))
	e.log.WithFields(logrus.Fields{
		"k":          k,
		"suppressed": result.Suppressed,
		"depth":      result.Depth,
	}).Info("k-anonymity applied")
	return result, nil
}
