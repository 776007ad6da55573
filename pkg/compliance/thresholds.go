package compliance

// Thresholds are heuristic proxies, not validated disclosure-risk models.
// Every value is tunable from configuration.
type Thresholds struct {
	MaxHIPAARisk         float64 `json:"max_hipaa_risk"`
	MaxGDPRRisk          float64 `json:"max_gdpr_risk"`
	MinCategoricalFields int     `json:"min_categorical_fields"`
	MaxCategoricalFields int     `json:"max_categorical_fields"`
	MinSafeguards        int     `json:"min_safeguards"`
	MinPseudonymLength   int     `json:"min_pseudonym_length"`
	MinDistinctChars     int     `json:"min_distinct_chars"`
	MaxCharRepeatRatio   float64 `json:"max_char_repeat_ratio"`
	// MinEntropyBits is the per-character Shannon entropy below which a
	// pseudonym starts to contribute re-identification risk.
	MinEntropyBits float64 `json:"min_entropy_bits"`
	// LongListSize marks a multi-valued field as long for the GDPR estimate.
	LongListSize int `json:"long_list_size"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxHIPAARisk:         0.05,
		MaxGDPRRisk:          0.1,
		MinCategoricalFields: 5,
		MaxCategoricalFields: 15,
		MinSafeguards:        2,
		MinPseudonymLength:   16,
		MinDistinctChars:     8,
		MaxCharRepeatRatio:   0.3,
		MinEntropyBits:       3.5,
		LongListSize:         5,
	}
}

// withDefaults fills zero fields so a partially configured struct stays usable.
func (t Thresholds) withDefaults() Thresholds {
	d := DefaultThresholds()
	if t.MaxHIPAARisk <= 0 {
		t.MaxHIPAARisk = d.MaxHIPAARisk
	}
	if t.MaxGDPRRisk <= 0 {
		t.MaxGDPRRisk = d.MaxGDPRRisk
	}
	if t.MinCategoricalFields <= 0 {
		t.MinCategoricalFields = d.MinCategoricalFields
	}
	if t.MaxCategoricalFields <= 0 {
		t.MaxCategoricalFields = d.MaxCategoricalFields
	}
	if t.MinSafeguards <= 0 {
		t.MinSafeguards = d.MinSafeguards
	}
	if t.MinPseudonymLength <= 0 {
		t.MinPseudonymLength = d.MinPseudonymLength
	}
	if t.MinDistinctChars <= 0 {
		t.MinDistinctChars = d.MinDistinctChars
	}
	if t.MaxCharRepeatRatio <= 0 {
		t.MaxCharRepeatRatio = d.MaxCharRepeatRatio
	}
	if t.MinEntropyBits <= 0 {
		t.MinEntropyBits = d.MinEntropyBits
	}
	if t.LongListSize <= 0 {
		t.LongListSize = d.LongListSize
	}
	return t
}
