package compliance

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/synaptica-ai/mlprofile/pkg/common/models"
)

var specificityMarker = regexp.MustCompile(`(?i)\b(?:specific|unique|individual)\b`)

const (
	hipaaEntropyWeight     = 0.7
	hipaaSingleTokenWeight = 0.06
)

// checkHIPAA applies Safe Harbor: any identifier class in the serialized
// categorical data is critical, as is an insufficient or overly specific
// feature set.
func (v *Validator) checkHIPAA(s signals) ([]models.Violation, float64) {
	var out []models.Violation

	result := v.detector.Detect(s.document)
	for _, class := range result.Classes {
		out = append(out, models.Violation{
			Standard: models.StandardHIPAA,
			Severity: models.SeverityCritical,
			Rule:     RuleSafeHarborPrefix + class,
			Message:  fmt.Sprintf("Safe Harbor identifier class %s present in categorical data", class),
		})
	}

	if s.fieldCount < v.thresholds.MinCategoricalFields {
		out = append(out, models.Violation{
			Standard: models.StandardHIPAA,
			Severity: models.SeverityCritical,
			Rule:     RuleInsufficientFields,
			Message:  fmt.Sprintf("%d categorical fields, at least %d required", s.fieldCount, v.thresholds.MinCategoricalFields),
		})
	}

	if specificityMarker.Match(s.serialized) {
		out = append(out, models.Violation{
			Standard: models.StandardHIPAA,
			Severity: models.SeverityCritical,
			Rule:     RuleSpecificityMarker,
			Message:  "categorical data carries specific, unique or individual markers",
		})
	}

	risk := hipaaEntropyWeight*entropyRisk(s.pseudonym, v.thresholds.MinEntropyBits) +
		hipaaSingleTokenWeight*singleTokenFraction(s.values, v.thresholds.MaxCategoricalFields)
	if risk > v.thresholds.MaxHIPAARisk {
		out = append(out, models.Violation{
			Standard: models.StandardHIPAA,
			Severity: models.SeverityHigh,
			Rule:     RuleHIPAARisk,
			Message:  fmt.Sprintf("re-identification risk %.4f exceeds %.4f", risk, v.thresholds.MaxHIPAARisk),
		})
	}
	return out, risk
}

// singleTokenFraction is the share of the categorical slots that do not hold
// a compound vocabulary value ("URBAN_NORTHEAST"). An empty slot counts the
// same as a bare token, so dropping any value never lowers the result.
func singleTokenFraction(values []string, slots int) float64 {
	if slots <= 0 {
		return 1
	}
	compound := 0
	for _, v := range values {
		if strings.ContainsAny(strings.TrimSpace(v), "_ -") {
			compound++
		}
	}
	if compound > slots {
		compound = slots
	}
	return float64(slots-compound) / float64(slots)
}
