package models

import "time"

const (
	StandardHIPAA = "HIPAA"
	StandardGDPR  = "GDPR"
	StandardSOC2  = "SOC2"
	StandardFHIR  = "FHIR"
)

type Severity uint8

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = []string{"", "LOW", "MEDIUM", "HIGH", "CRITICAL"}

func (s Severity) String() string                { return enumString(severityNames, s) }
func (s Severity) Valid() bool                   { return enumValid(severityNames, s) }
func (s Severity) MarshalText() ([]byte, error)  { return []byte(s.String()), nil }
func (s *Severity) UnmarshalText(b []byte) error { return unmarshalInto(s, severityNames, "severity", b) }

type Violation struct {
	Standard string   `json:"standard"`
	Severity Severity `json:"severity"`
	Rule     string   `json:"rule"`
	Message  string   `json:"message"`
}

type ComplianceVerdict struct {
	HIPAACompliant       bool        `json:"hipaa_compliant"`
	GDPRCompliant        bool        `json:"gdpr_compliant"`
	SOC2Compliant        bool        `json:"soc2_compliant"`
	FHIRCompliant        bool        `json:"fhir_compliant"`
	ReidentificationRisk float64     `json:"reidentification_risk"`
	UtilityPreservation  float64     `json:"utility_preservation"`
	Violations           []Violation `json:"violations"`
	Recommendations      []string    `json:"recommendations"`
	OverallScore         float64     `json:"overall_score"`
	CheckedAt            time.Time   `json:"checked_at"`
}

func (v ComplianceVerdict) Clone() ComplianceVerdict {
	out := v
	out.Violations = append([]Violation(nil), v.Violations...)
	out.Recommendations = append([]string(nil), v.Recommendations...)
	return out
}

// HasViolation reports whether any violation of the given standard reaches min severity.
func (v ComplianceVerdict) HasViolation(standard string, min Severity) bool {
	for _, violation := range v.Violations {
		if violation.Standard == standard && violation.Severity >= min {
			return true
		}
	}
	return false
}
