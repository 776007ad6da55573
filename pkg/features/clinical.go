package features

import (
	"math"

	"github.com/synaptica-ai/mlprofile/pkg/common/models"
)

// Risk factor tags, emitted in this order.
const (
	RiskPediatric         = "pediatric"
	RiskElderly           = "elderly"
	RiskPregnancy         = "pregnancy"
	RiskHighRiskPregnancy = "high_risk_pregnancy"
	RiskWinterSeason      = "winter_season"
	RiskRuralAccess       = "rural_access"
	RiskUrbanDensity      = "urban_density"
	RiskChronicResp       = "chronic_respiratory"
	RiskCardiacHistory    = "cardiac_history"
	RiskImmunosuppressed  = "immunosuppressed"
	RiskPolypharmacy      = "polypharmacy"
	RiskMultipleAllergies = "multiple_allergies"
)

// MaxRiskFactors is the size of the risk-factor vocabulary.
const MaxRiskFactors = 12

const (
	polypharmacyThreshold = 5
	allergyClassThreshold = 3
	highWeightThreshold   = 3.0
)

// BaseSimilarityWeights are the per-feature-class weights before adjustment.
var BaseSimilarityWeights = map[string]float64{
	models.WeightMedical:     0.8,
	models.WeightDemographic: 0.3,
	models.WeightTemporal:    0.5,
	models.WeightGeographic:  0.4,
	models.WeightMedication:  0.6,
	models.WeightRisk:        0.7,
}

func matchCategories[T ~uint8](rules []keywordRule[T], entries []string) []T {
	var out []T
	for _, entry := range entries {
		text := newScanText(entry)
		if text.empty() {
			continue
		}
		for _, rule := range rules {
			if text.any(rule.keywords...) {
				out = models.AddSorted(out, rule.value)
			}
		}
	}
	return out
}

func isAgeExtreme(age models.AgeGroup) bool {
	return age == models.AgePediatric || age == models.AgeElderly
}

func riskFactors(fs models.CategoricalFeatureSet, medicationCount int) []string {
	var out []string
	add := func(cond bool, tag string) {
		if cond {
			out = append(out, tag)
		}
	}
	add(fs.AgeGroup == models.AgePediatric, RiskPediatric)
	add(fs.AgeGroup == models.AgeElderly, RiskElderly)
	add(fs.PregnancyStatus.IsPregnant(), RiskPregnancy)
	add(fs.PregnancyStatus == models.PregnancyTrimester3, RiskHighRiskPregnancy)
	add(fs.SeasonCategory == models.SeasonWinter, RiskWinterSeason)
	add(fs.LocationCategory.IsRural(), RiskRuralAccess)
	add(fs.LocationCategory.IsUrban(), RiskUrbanDensity)
	add(models.Contains(fs.MedicalHistory, models.ClinicalRespiratory), RiskChronicResp)
	add(models.Contains(fs.MedicalHistory, models.ClinicalCardiovascular), RiskCardiacHistory)
	add(models.Contains(fs.MedicationClasses, models.MedicationImmunosuppressant), RiskImmunosuppressed)
	add(medicationCount >= polypharmacyThreshold, RiskPolypharmacy)
	add(len(fs.AllergyClasses) >= allergyClassThreshold, RiskMultipleAllergies)
	return out
}

// comorbidityScore = sum of category weights + category count + count of
// categories weighted at least 3.
func (e *Extractor) comorbidityScore(categories []models.ClinicalCategory) float64 {
	var sum float64
	heavy := 0
	for _, c := range categories {
		w := e.vocab.weights[c]
		sum += w
		if w >= highWeightThreshold {
			heavy++
		}
	}
	return sum + float64(len(categories)) + float64(heavy)
}

func utilization(visits int) models.UtilizationLevel {
	switch {
	case visits <= 0:
		return models.UtilizationNone
	case visits <= 2:
		return models.UtilizationLow
	case visits <= 6:
		return models.UtilizationModerate
	default:
		return models.UtilizationHigh
	}
}

func complexity(fs models.CategoricalFeatureSet) models.ComplexityLevel {
	score := float64(len(fs.MedicalHistory)) +
		0.5*float64(len(fs.MedicationClasses)) +
		0.3*float64(len(fs.AllergyClasses))
	if isAgeExtreme(fs.AgeGroup) {
		score += 2
	}
	if fs.PregnancyStatus.IsPregnant() {
		score++
	}
	switch {
	case score < 2:
		return models.ComplexityLow
	case score < 4:
		return models.ComplexityModerate
	case score < 6:
		return models.ComplexityHigh
	default:
		return models.ComplexityVeryHigh
	}
}

func similarityWeights(fs models.CategoricalFeatureSet) map[string]float64 {
	w := make(map[string]float64, len(BaseSimilarityWeights))
	for k, v := range BaseSimilarityWeights {
		w[k] = v
	}
	if len(fs.MedicalHistory) > 3 {
		w[models.WeightMedical] += 0.1
	}
	if isAgeExtreme(fs.AgeGroup) {
		w[models.WeightDemographic] += 0.2
	}
	if fs.PregnancyStatus.IsPregnant() {
		w[models.WeightMedical] += 0.1
		w[models.WeightRisk] += 0.1
	}
	for k, v := range w {
		w[k] = math.Min(1, math.Round(v*1000)/1000)
	}
	return w
}
