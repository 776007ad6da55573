// Package compliance scores an anonymized profile against HIPAA Safe Harbor,
// GDPR Art. 26 and SOC2 rule sets. Checks are side-effect free: a failing
// profile yields a verdict carrying violations, never an error.
package compliance

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/synaptica-ai/mlprofile/pkg/common/logger"
	"github.com/synaptica-ai/mlprofile/pkg/common/models"
	"github.com/synaptica-ai/mlprofile/pkg/dlp"
)

type Option func(*Validator)

func WithClock(clock func() time.Time) Option {
	return func(v *Validator) {
		if clock != nil {
			v.clock = clock
		}
	}
}

func WithLogger(entry *logrus.Entry) Option {
	return func(v *Validator) {
		if entry != nil {
			v.log = entry
		}
	}
}

// Validator is safe for concurrent use; it holds only immutable state.
type Validator struct {
	detector   *dlp.Detector
	thresholds Thresholds
	clock      func() time.Time
	log        *logrus.Entry
}

// NewValidator uses the default Safe Harbor rules when detector is nil.
func NewValidator(detector *dlp.Detector, thresholds Thresholds, opts ...Option) *Validator {
	if detector == nil {
		detector = dlp.MustDefault()
	}
	v := &Validator{
		detector:   detector,
		thresholds: thresholds.withDefaults(),
		clock:      time.Now,
		log:        logger.Log.WithField("component", "compliance-validator"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Validator) Thresholds() Thresholds { return v.thresholds }

// Check evaluates the three rule sets independently. The profile is read only.
func (v *Validator) Check(p *models.AnonymizedProfile) models.ComplianceVerdict {
	if p == nil {
		p = &models.AnonymizedProfile{}
	}
	s := v.collect(p)

	var violations []models.Violation
	hipaaViolations, hipaaRisk := v.checkHIPAA(s)
	violations = append(violations, hipaaViolations...)
	gdprViolations, gdprRisk := v.checkGDPR(p, s)
	violations = append(violations, gdprViolations...)
	violations = append(violations, v.checkSOC2(p)...)

	verdict := models.ComplianceVerdict{
		FHIRCompliant:        true,
		ReidentificationRisk: round4(maxFloat(hipaaRisk, gdprRisk)),
		UtilityPreservation:  round4(utility(p)),
		Violations:           violations,
		CheckedAt:            v.clock().UTC(),
	}
	verdict.HIPAACompliant = !verdict.HasViolation(models.StandardHIPAA, models.SeverityHigh)
	verdict.GDPRCompliant = !verdict.HasViolation(models.StandardGDPR, models.SeverityHigh)
	verdict.SOC2Compliant = !hasAny(violations, models.StandardSOC2)
	verdict.OverallScore = round4((boolScore(verdict.HIPAACompliant) + boolScore(verdict.GDPRCompliant) + boolScore(verdict.SOC2Compliant)) / 3)
	verdict.Recommendations = recommendations(violations)

	v.log.WithFields(logrus.Fields{
		"hipaa":      verdict.HIPAACompliant,
		"gdpr":       verdict.GDPRCompliant,
		"soc2":       verdict.SOC2Compliant,
		"violations": len(violations),
		"risk":       verdict.ReidentificationRisk,
	}).Debug("compliance checked")
	return verdict
}

// BatchCheck returns one verdict per profile, in input order.
func (v *Validator) BatchCheck(profiles []*models.AnonymizedProfile) []models.ComplianceVerdict {
	out := make([]models.ComplianceVerdict, len(profiles))
	for i, p := range profiles {
		out[i] = v.Check(p)
	}
	return out
}

type enumValue interface {
	Valid() bool
	String() string
}

// signals are derived once per check from a copy of the categorical data.
type signals struct {
	serialized  []byte
	document    map[string]interface{}
	values      []string
	fieldCount  int
	multiValued [][]string
	pseudonym   string
}

func (v *Validator) collect(p *models.AnonymizedProfile) signals {
	features := p.Features.Clone()
	s := signals{pseudonym: p.AnonymousID}

	raw, err := json.Marshal(features)
	if err != nil {
		v.log.WithError(err).Warn("serialize categorical features")
	}
	s.serialized = raw
	if err := json.Unmarshal(raw, &s.document); err != nil {
		s.document = map[string]interface{}{}
	}

	for _, e := range []enumValue{
		features.AgeGroup, features.Gender, features.PregnancyStatus, features.LocationCategory,
		features.SeasonCategory, features.Utilization, features.Complexity,
	} {
		if e.Valid() {
			s.fieldCount++
			s.values = append(s.values, e.String())
		}
	}

	lists := [][]string{
		enumStrings(features.MedicalHistory),
		enumStrings(features.MedicationClasses),
		enumStrings(features.AllergyClasses),
		features.RiskFactors,
	}
	for _, list := range lists {
		s.fieldCount += len(list)
		s.values = append(s.values, list...)
	}
	s.multiValued = lists
	sort.Strings(s.values)
	return s
}

func enumStrings[T interface{ String() string }](in []T) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = v.String()
	}
	return out
}

func hasAny(violations []models.Violation, standard string) bool {
	for _, v := range violations {
		if v.Standard == standard {
			return true
		}
	}
	return false
}

func boolScore(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
