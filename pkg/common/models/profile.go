package models

import (
	"time"
)

// Feature classes used as similarity-weight keys.
const (
	WeightMedical     = "medical"
	WeightDemographic = "demographic"
	WeightTemporal    = "temporal"
	WeightGeographic  = "geographic"
	WeightMedication  = "medication"
	WeightRisk        = "risk"
)

// CategoricalFeatureSet is derived purely from a RawSubjectRecord.
type CategoricalFeatureSet struct {
	AgeGroup          AgeGroup           `json:"age_group"`
	Gender            Gender             `json:"gender"`
	PregnancyStatus   PregnancyStatus    `json:"pregnancy_status"`
	LocationCategory  LocationCategory   `json:"location_category"`
	SeasonCategory    SeasonCategory     `json:"season_category"`
	MedicalHistory    []ClinicalCategory `json:"medical_history_categories"`
	MedicationClasses []MedicationClass  `json:"medication_categories"`
	AllergyClasses    []AllergyClass     `json:"allergy_categories"`
	RiskFactors       []string           `json:"risk_factors"`
	RiskFactorCount   int                `json:"risk_factor_count"`
	ComorbidityScore  float64            `json:"comorbidity_score"`
	Utilization       UtilizationLevel   `json:"utilization_pattern"`
	Complexity        ComplexityLevel    `json:"clinical_complexity"`
	SimilarityWeights map[string]float64 `json:"similarity_weights"`
}

// Clone returns a deep copy.
func (f CategoricalFeatureSet) Clone() CategoricalFeatureSet {
	out := f
	out.MedicalHistory = append([]ClinicalCategory(nil), f.MedicalHistory...)
	out.MedicationClasses = append([]MedicationClass(nil), f.MedicationClasses...)
	out.AllergyClasses = append([]AllergyClass(nil), f.AllergyClasses...)
	out.RiskFactors = append([]string(nil), f.RiskFactors...)
	out.SimilarityWeights = cloneWeights(f.SimilarityWeights)
	return out
}

// QuasiIdentifier is the fixed tuple k-anonymity groups on.
type QuasiIdentifier struct {
	AgeGroup  AgeGroup
	Gender    Gender
	Pregnancy PregnancyStatus
	Location  LocationCategory
	Season    SeasonCategory
}

func (f CategoricalFeatureSet) QuasiIdentifier() QuasiIdentifier {
	return QuasiIdentifier{
		AgeGroup:  f.AgeGroup,
		Gender:    f.Gender,
		Pregnancy: f.PregnancyStatus,
		Location:  f.LocationCategory,
		Season:    f.SeasonCategory,
	}
}

func (f *CategoricalFeatureSet) SetQuasiIdentifier(q QuasiIdentifier) {
	f.AgeGroup = q.AgeGroup
	f.Gender = q.Gender
	f.PregnancyStatus = q.Pregnancy
	f.LocationCategory = q.Location
	f.SeasonCategory = q.Season
}

type AnonymizedProfile struct {
	AnonymousID         string                `json:"anonymous_id"`
	Features            CategoricalFeatureSet `json:"categorical_features"`
	Embedding           []float64             `json:"embedding,omitempty"`
	VectorFeatures      []float64             `json:"vector_features"`
	SimilarityWeights   map[string]float64    `json:"similarity_weights"`
	EmbeddingExpected   bool                  `json:"embedding_expected"`
	QualityScore        float64               `json:"quality_score"`
	ComplianceValidated bool                  `json:"compliance_validated"`
	PredictionReady     bool                  `json:"prediction_ready"`
	Verdict             *ComplianceVerdict    `json:"compliance_verdict,omitempty"`
	CreatedAt           time.Time             `json:"created_at"`
	AlgorithmVersion    string                `json:"algorithm_version"`
}

// Frozen profiles are released for prediction and must not be edited in place.
func (p *AnonymizedProfile) Frozen() bool {
	return p != nil && p.PredictionReady
}

// Clone returns a deep copy that cohort operators may modify.
func (p *AnonymizedProfile) Clone() *AnonymizedProfile {
	if p == nil {
		return nil
	}
	out := *p
	out.Features = p.Features.Clone()
	out.Embedding = append([]float64(nil), p.Embedding...)
	out.VectorFeatures = append([]float64(nil), p.VectorFeatures...)
	out.SimilarityWeights = cloneWeights(p.SimilarityWeights)
	if p.Verdict != nil {
		v := p.Verdict.Clone()
		out.Verdict = &v
	}
	return &out
}

func cloneWeights(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
