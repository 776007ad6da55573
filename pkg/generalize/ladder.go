// Package generalize coarsens quasi-identifiers along fixed hierarchies. It
// knows nothing about profiles or gating; callers decide when to climb.
package generalize

import "github.com/synaptica-ai/mlprofile/pkg/common/models"

// Step coarsens one or more quasi-identifier fields. Steps are idempotent.
type Step struct {
	Name  string
	Apply func(models.QuasiIdentifier) models.QuasiIdentifier
}

// Ladder is an ordered list of steps. Depth d means steps 1..d applied.
type Ladder []Step

// DefaultLadder drops location density, widens age bands, hides season and
// trimester, then blanks age and location entirely.
var DefaultLadder = Ladder{
	{Name: "location_region", Apply: func(q models.QuasiIdentifier) models.QuasiIdentifier {
		q.Location = RegionOnly(q.Location)
		return q
	}},
	{Name: "age_broad_band", Apply: func(q models.QuasiIdentifier) models.QuasiIdentifier {
		q.AgeGroup = BroadAgeBand(q.AgeGroup)
		return q
	}},
	{Name: "season_trimester", Apply: func(q models.QuasiIdentifier) models.QuasiIdentifier {
		q.Season = models.SeasonAny
		q.Pregnancy = HideTrimester(q.Pregnancy)
		return q
	}},
	{Name: "age_location_suppressed", Apply: func(q models.QuasiIdentifier) models.QuasiIdentifier {
		q.AgeGroup = models.AgeAny
		q.Location = models.LocationUnknown
		return q
	}},
}

func (l Ladder) MaxDepth() int { return len(l) }

// Generalize applies the first depth steps to q. Depth is clamped to the ladder.
func (l Ladder) Generalize(q models.QuasiIdentifier, depth int) models.QuasiIdentifier {
	if depth > len(l) {
		depth = len(l)
	}
	for i := 0; i < depth; i++ {
		q = l[i].Apply(q)
	}
	return q
}

// StepName names the step reached at depth, or "" for depth 0.
func (l Ladder) StepName(depth int) string {
	if depth <= 0 || depth > len(l) {
		return ""
	}
	return l[depth-1].Name
}

func RegionOnly(l models.LocationCategory) models.LocationCategory {
	switch r := l.Region(); {
	case l >= models.LocationRegionNortheast:
		return l
	case r == 0:
		return models.LocationUnknown
	default:
		return models.LocationRegionNortheast + models.LocationCategory(r-models.RegionNortheast)
	}
}

func BroadAgeBand(a models.AgeGroup) models.AgeGroup {
	switch a {
	case models.AgeYoungAdult, models.AgeReproductive, models.AgeMiddleAge:
		return models.AgeAdult18To49
	case models.AgeOlderAdult, models.AgeElderly:
		return models.AgeAdult50Plus
	default:
		return a
	}
}

func HideTrimester(p models.PregnancyStatus) models.PregnancyStatus {
	if p.IsPregnant() {
		return models.PregnancyPregnant
	}
	return p
}
