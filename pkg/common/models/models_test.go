package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnumTextRoundTrip(t *testing.T) {
	fs := CategoricalFeatureSet{
		AgeGroup:         AgeReproductive,
		Gender:           GenderFemale,
		PregnancyStatus:  PregnancyTrimester3,
		LocationCategory: LocationUrbanNortheast,
		SeasonCategory:   SeasonWinter,
		MedicalHistory:   []ClinicalCategory{ClinicalRespiratory},
		Utilization:      UtilizationLow,
		Complexity:       ComplexityModerate,
	}
	data, err := json.Marshal(fs)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"pregnancy_status":"PREGNANT_TRIMESTER_3"`)

	var back CategoricalFeatureSet
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, fs.QuasiIdentifier(), back.QuasiIdentifier())
}

func TestEnumRejectsUnknownNames(t *testing.T) {
	var g Gender
	assert.Error(t, json.Unmarshal([]byte(`"NONBINARY_X"`), &g))
	assert.Error(t, json.Unmarshal([]byte(`"INVALID"`), &g))
	assert.Error(t, json.Unmarshal([]byte(`""`), &g))

	a, err := ParseAgeGroup(" young_adult ")
	require.NoError(t, err)
	assert.Equal(t, AgeYoungAdult, a)

	var zero AgeGroup
	assert.False(t, zero.Valid())
	assert.Equal(t, "INVALID", zero.String())
}

func TestLocationComposition(t *testing.T) {
	assert.Equal(t, LocationRuralWest, NewLocation(false, RegionWest))
	assert.Equal(t, LocationUnknown, NewLocation(true, 0))
	assert.Equal(t, RegionMidwest, LocationRegionMidwest.Region())
	assert.True(t, LocationUrbanSoutheast.IsUrban())
	assert.False(t, LocationRegionSoutheast.IsRural())
	assert.Zero(t, LocationUnknown.Region())
}

func TestSortedSets(t *testing.T) {
	var set []ClinicalCategory
	set = AddSorted(set, ClinicalRespiratory)
	set = AddSorted(set, ClinicalCardiovascular)
	set = AddSorted(set, ClinicalRespiratory)
	assert.Len(t, set, 2)
	assert.True(t, Contains(set, ClinicalCardiovascular))
	assert.Equal(t, ClinicalCardiovascular, set[0])
}

func TestFlexIntDecoding(t *testing.T) {
	cases := []struct {
		in   string
		want FlexInt
	}{
		{`{"age": 29}`, IntValue(29)},
		{`{"age": "41"}`, IntValue(41)},
		{`{"age": " 33.0 "}`, IntValue(33)},
		{`{"age": "unknown"}`, FlexInt{}},
		{`{"age": null}`, FlexInt{}},
		{`{"age": [1]}`, FlexInt{}},
		{`{}`, FlexInt{}},
	}
	for _, tc := range cases {
		var rec RawSubjectRecord
		require.NoError(t, json.Unmarshal([]byte(tc.in), &rec), tc.in)
		assert.Equal(t, tc.want, rec.Age, tc.in)
	}

	out, err := json.Marshal(RawSubjectRecord{SubjectID: "p1"})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"age":null`)
}

func TestProfileCloneIsDeep(t *testing.T) {
	p := &AnonymizedProfile{
		AnonymousID:       "anon_1",
		Features:          CategoricalFeatureSet{RiskFactors: []string{"pregnancy"}},
		VectorFeatures:    []float64{0.5},
		SimilarityWeights: map[string]float64{"medical": 0.9},
		Verdict:           &ComplianceVerdict{OverallScore: 1},
		PredictionReady:   true,
	}
	c := p.Clone()
	c.Features.RiskFactors[0] = "changed"
	c.VectorFeatures[0] = 0
	c.SimilarityWeights["medical"] = 0
	c.Verdict.OverallScore = 0

	assert.Equal(t, "pregnancy", p.Features.RiskFactors[0])
	assert.Equal(t, 0.5, p.VectorFeatures[0])
	assert.Equal(t, 0.9, p.SimilarityWeights["medical"])
	assert.Equal(t, 1.0, p.Verdict.OverallScore)
	assert.True(t, p.Frozen())
	assert.Nil(t, (*AnonymizedProfile)(nil).Clone())
}
