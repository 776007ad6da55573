package vector

import (
	"math"

	"github.com/synaptica-ai/mlprofile/pkg/common/models"
)

// FieldOrderVersion identifies the slot layout below. Bump it whenever the
// order or the weight tables change.
const FieldOrderVersion = "v1"

// DefaultWeight is used for any categorical value missing from a weight table.
const DefaultWeight = 0.5

// VectorLength = 5 scalars + one flag per clinical category + risk count.
const VectorLength = 5 + 10 + 1

const riskCountScale = 10.0

var ageWeights = map[models.AgeGroup]float64{
	models.AgePediatric:    0.1,
	models.AgeYoungAdult:   0.25,
	models.AgeReproductive: 0.4,
	models.AgeMiddleAge:    0.55,
	models.AgeOlderAdult:   0.75,
	models.AgeElderly:      0.95,
	models.AgeAdult18To49:  0.4,
	models.AgeAdult50Plus:  0.85,
}

var genderWeights = map[models.Gender]float64{
	models.GenderFemale: 0.2,
	models.GenderMale:   0.8,
}

var pregnancyWeights = map[models.PregnancyStatus]float64{
	models.PregnancyNotApplicable: 0,
	models.PregnancyNotPregnant:   0.1,
	models.PregnancyTrimester1:    0.4,
	models.PregnancyTrimester2:    0.6,
	models.PregnancyTrimester3:    0.9,
	models.PregnancyPregnant:      0.7,
}

var seasonWeights = map[models.SeasonCategory]float64{
	models.SeasonWinter: 0.9,
	models.SeasonSpring: 0.4,
	models.SeasonSummer: 0.2,
	models.SeasonFall:   0.6,
}

var locationWeights = map[models.LocationCategory]float64{
	models.LocationUrbanNortheast: 0.85,
	models.LocationUrbanSoutheast: 0.8,
	models.LocationUrbanMidwest:   0.75,
	models.LocationUrbanWest:      0.7,
	models.LocationRuralNortheast: 0.3,
	models.LocationRuralSoutheast: 0.25,
	models.LocationRuralMidwest:   0.2,
	models.LocationRuralWest:      0.15,
}

func weightOf[K comparable](table map[K]float64, key K) float64 {
	if w, ok := table[key]; ok {
		return w
	}
	return DefaultWeight
}

// Encode maps a feature set onto a fixed-length vector in [0,1]. Identical
// inputs always produce bit-identical output.
func Encode(fs models.CategoricalFeatureSet) []float64 {
	v := make([]float64, 0, VectorLength)
	v = append(v,
		weightOf(ageWeights, fs.AgeGroup),
		weightOf(genderWeights, fs.Gender),
		weightOf(pregnancyWeights, fs.PregnancyStatus),
		weightOf(seasonWeights, fs.SeasonCategory),
		weightOf(locationWeights, fs.LocationCategory),
	)
	for _, c := range models.AllClinicalCategories() {
		if models.Contains(fs.MedicalHistory, c) {
			v = append(v, 1)
		} else {
			v = append(v, 0)
		}
	}
	v = append(v, math.Min(1, float64(fs.RiskFactorCount)/riskCountScale))
	return v
}
