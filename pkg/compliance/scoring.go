package compliance

import (
	"math"
	"strings"

	"github.com/synaptica-ai/mlprofile/pkg/common/models"
)

// Violation rule identifiers.
const (
	RuleSafeHarborPrefix       = "safe_harbor."
	RuleInsufficientFields     = "insufficient_categorical_fields"
	RuleSpecificityMarker      = "specificity_marker"
	RuleHIPAARisk              = "hipaa_reidentification_risk"
	RulePseudonymInadequate    = "pseudonym_inadequate"
	RuleInsufficientSafeguards = "insufficient_safeguards"
	RuleGDPRRisk               = "gdpr_identification_risk"
	RuleSOC2Prefix             = "soc2."
)

const missingEmbeddingDiscount = 0.8

// entropyRisk maps per-character Shannon entropy onto [0,1]: zero at or above
// minBits, one for an empty or constant pseudonym.
func entropyRisk(pseudonym string, minBits float64) float64 {
	runes := []rune(pseudonym)
	if len(runes) == 0 {
		return 1
	}
	counts := make(map[rune]int)
	for _, r := range runes {
		counts[r]++
	}
	var h float64
	n := float64(len(runes))
	for _, c := range counts {
		p := float64(c) / n
		h -= p * math.Log2(p)
	}
	if h >= minBits {
		return 0
	}
	return (minBits - h) / minBits
}

// utility is the share of clinical-signal fields that carry a value.
func utility(p *models.AnonymizedProfile) float64 {
	fs := p.Features
	present := []bool{
		len(fs.MedicalHistory) > 0,
		len(fs.MedicationClasses) > 0,
		len(fs.AllergyClasses) > 0,
		len(fs.RiskFactors) > 0 || fs.RiskFactorCount > 0,
		fs.ComorbidityScore > 0,
		fs.Utilization.Valid() && fs.Utilization != models.UtilizationNone,
		len(p.VectorFeatures) > 0,
		len(p.SimilarityWeights) > 0 || len(fs.SimilarityWeights) > 0,
	}
	n := 0
	for _, ok := range present {
		if ok {
			n++
		}
	}
	score := float64(n) / float64(len(present))
	if p.EmbeddingExpected && len(p.Embedding) == 0 {
		score *= missingEmbeddingDiscount
	}
	return score
}

var ruleAdvice = []struct {
	prefix string
	advice string
}{
	{RuleSafeHarborPrefix, "Remove or redact Safe Harbor identifiers before release"},
	{RuleInsufficientFields, "Populate more categorical fields before release"},
	{RuleSpecificityMarker, "Strip specific, unique or individual markers from categorical values"},
	{RuleHIPAARisk, "Generalize categorical values or apply k-anonymity to reduce re-identification risk"},
	{RulePseudonymInadequate, "Regenerate the pseudonym with the keyed generator"},
	{RuleInsufficientSafeguards, "Add GDPR Art. 26 safeguards: pseudonymisation, data minimisation, timestamps"},
	{RuleGDPRRisk, "Reduce multi-valued fields or payload size"},
	{RuleSOC2Prefix, "Restore the missing SOC2 control evidence on the profile"},
}

func recommendations(violations []models.Violation) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range violations {
		for _, a := range ruleAdvice {
			if strings.HasPrefix(v.Rule, a.prefix) && !seen[a.advice] {
				seen[a.advice] = true
				out = append(out, a.advice)
			}
		}
	}
	return out
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
