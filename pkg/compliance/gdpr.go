package compliance

import (
	"fmt"
	"math"

	"github.com/synaptica-ai/mlprofile/pkg/common/models"
)

const (
	gdprSizeWeight     = 0.05
	gdprEntropyWeight  = 0.5
	gdprLongListWeight = 0.02
	gdprSizeScale      = 4096.0
)

// PseudonymAdequate implements the Art. 26 pseudonym test: long enough,
// varied enough and no single character dominating.
func PseudonymAdequate(pseudonym string, t Thresholds) bool {
	t = t.withDefaults()
	runes := []rune(pseudonym)
	if len(runes) < t.MinPseudonymLength {
		return false
	}
	counts := make(map[rune]int)
	for _, r := range runes {
		counts[r]++
	}
	if len(counts) < t.MinDistinctChars {
		return false
	}
	limit := t.MaxCharRepeatRatio * float64(len(runes))
	for _, n := range counts {
		if float64(n) > limit {
			return false
		}
	}
	return true
}

func (v *Validator) checkGDPR(p *models.AnonymizedProfile, s signals) ([]models.Violation, float64) {
	var out []models.Violation

	adequate := PseudonymAdequate(s.pseudonym, v.thresholds)
	if !adequate {
		out = append(out, models.Violation{
			Standard: models.StandardGDPR,
			Severity: models.SeverityMedium,
			Rule:     RulePseudonymInadequate,
			Message:  "pseudonym fails length, distinct-character or repetition limits",
		})
	}

	safeguards := 0
	for _, present := range []bool{
		adequate,
		s.fieldCount <= v.thresholds.MaxCategoricalFields,
		p.ComplianceValidated,
		!p.CreatedAt.IsZero(),
	} {
		if present {
			safeguards++
		}
	}
	if safeguards < v.thresholds.MinSafeguards {
		out = append(out, models.Violation{
			Standard: models.StandardGDPR,
			Severity: models.SeverityHigh,
			Rule:     RuleInsufficientSafeguards,
			Message:  fmt.Sprintf("%d safeguards present, at least %d required", safeguards, v.thresholds.MinSafeguards),
		})
	}

	longLists := 0
	for _, list := range s.multiValued {
		if len(list) > v.thresholds.LongListSize {
			longLists++
		}
	}
	risk := gdprSizeWeight*math.Min(1, float64(len(s.serialized))/gdprSizeScale) +
		gdprEntropyWeight*entropyRisk(s.pseudonym, v.thresholds.MinEntropyBits) +
		gdprLongListWeight*float64(longLists)
	if risk > v.thresholds.MaxGDPRRisk {
		out = append(out, models.Violation{
			Standard: models.StandardGDPR,
			Severity: models.SeverityHigh,
			Rule:     RuleGDPRRisk,
			Message:  fmt.Sprintf("identification risk %.4f exceeds %.4f", risk, v.thresholds.MaxGDPRRisk),
		})
	}
	return out, risk
}
