package models

import (
	"fmt"
	"sort"
	"strings"
)

// Closed vocabularies. The zero value of every enum is invalid so an unset
// field can never be mistaken for a real category, and UnmarshalText rejects
// names outside the vocabulary.

func enumString[T ~uint8](names []string, v T) string {
	if int(v) < len(names) && names[v] != "" {
		return names[v]
	}
	return "INVALID"
}

func parseEnum[T ~uint8](names []string, kind, s string) (T, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, name := range names {
		if name != "" && name == s {
			return T(i), nil
		}
	}
	return 0, fmt.Errorf("unknown %s %q", kind, s)
}

func enumValid[T ~uint8](names []string, v T) bool {
	return v > 0 && int(v) < len(names)
}

type AgeGroup uint8

const (
	AgePediatric    AgeGroup = iota + 1 // <18
	AgeYoungAdult                       // 18-24
	AgeReproductive                     // 25-34
	AgeMiddleAge                        // 35-49
	AgeOlderAdult                       // 50-64
	AgeElderly                          // 65+

	// generalized bands produced by k-anonymity
	AgeAdult18To49
	AgeAdult50Plus
	AgeAny
)

var ageGroupNames = []string{"", "PEDIATRIC", "YOUNG_ADULT", "REPRODUCTIVE_AGE", "MIDDLE_AGE", "OLDER_ADULT", "ELDERLY", "ADULT_18_49", "ADULT_50_PLUS", "ANY_AGE"}

func (a AgeGroup) String() string                { return enumString(ageGroupNames, a) }
func (a AgeGroup) Valid() bool                   { return enumValid(ageGroupNames, a) }
func (a AgeGroup) MarshalText() ([]byte, error)  { return []byte(a.String()), nil }
func (a *AgeGroup) UnmarshalText(b []byte) error { return unmarshalInto(a, ageGroupNames, "age group", b) }

func ParseAgeGroup(s string) (AgeGroup, error) { return parseEnum[AgeGroup](ageGroupNames, "age group", s) }

type Gender uint8

const (
	GenderFemale Gender = iota + 1
	GenderMale
	GenderOther
)

var genderNames = []string{"", "FEMALE", "MALE", "OTHER"}

func (g Gender) String() string                { return enumString(genderNames, g) }
func (g Gender) Valid() bool                   { return enumValid(genderNames, g) }
func (g Gender) MarshalText() ([]byte, error)  { return []byte(g.String()), nil }
func (g *Gender) UnmarshalText(b []byte) error { return unmarshalInto(g, genderNames, "gender", b) }

type PregnancyStatus uint8

const (
	PregnancyNotApplicable PregnancyStatus = iota + 1
	PregnancyNotPregnant
	PregnancyTrimester1
	PregnancyTrimester2
	PregnancyTrimester3
	PregnancyUnknown

	// generalized: trimester suppressed
	PregnancyPregnant
)

var pregnancyNames = []string{"", "NOT_APPLICABLE", "NOT_PREGNANT", "PREGNANT_TRIMESTER_1", "PREGNANT_TRIMESTER_2", "PREGNANT_TRIMESTER_3", "PREGNANCY_UNKNOWN", "PREGNANT"}

func (p PregnancyStatus) String() string               { return enumString(pregnancyNames, p) }
func (p PregnancyStatus) Valid() bool                  { return enumValid(pregnancyNames, p) }
func (p PregnancyStatus) MarshalText() ([]byte, error) { return []byte(p.String()), nil }
func (p *PregnancyStatus) UnmarshalText(b []byte) error {
	return unmarshalInto(p, pregnancyNames, "pregnancy status", b)
}

// IsPregnant reports whether the status denotes an ongoing pregnancy.
func (p PregnancyStatus) IsPregnant() bool {
	switch p {
	case PregnancyTrimester1, PregnancyTrimester2, PregnancyTrimester3, PregnancyPregnant:
		return true
	}
	return false
}

type Region uint8

const (
	RegionNortheast Region = iota + 1
	RegionSoutheast
	RegionMidwest
	RegionWest
)

var regionNames = []string{"", "NORTHEAST", "SOUTHEAST", "MIDWEST", "WEST"}

func (r Region) String() string { return enumString(regionNames, r) }

type LocationCategory uint8

const (
	LocationUrbanNortheast LocationCategory = iota + 1
	LocationUrbanSoutheast
	LocationUrbanMidwest
	LocationUrbanWest
	LocationRuralNortheast
	LocationRuralSoutheast
	LocationRuralMidwest
	LocationRuralWest
	LocationUnknown

	// generalized: density dropped
	LocationRegionNortheast
	LocationRegionSoutheast
	LocationRegionMidwest
	LocationRegionWest
)

var locationNames = []string{"", "URBAN_NORTHEAST", "URBAN_SOUTHEAST", "URBAN_MIDWEST", "URBAN_WEST",
	"RURAL_NORTHEAST", "RURAL_SOUTHEAST", "RURAL_MIDWEST", "RURAL_WEST", "LOCATION_UNKNOWN",
	"REGION_NORTHEAST", "REGION_SOUTHEAST", "REGION_MIDWEST", "REGION_WEST"}

func (l LocationCategory) String() string               { return enumString(locationNames, l) }
func (l LocationCategory) Valid() bool                  { return enumValid(locationNames, l) }
func (l LocationCategory) MarshalText() ([]byte, error) { return []byte(l.String()), nil }
func (l *LocationCategory) UnmarshalText(b []byte) error {
	return unmarshalInto(l, locationNames, "location category", b)
}

// NewLocation combines density and region. A zero region always yields LocationUnknown.
func NewLocation(urban bool, region Region) LocationCategory {
	if region < RegionNortheast || region > RegionWest {
		return LocationUnknown
	}
	if urban {
		return LocationUrbanNortheast + LocationCategory(region-1)
	}
	return LocationRuralNortheast + LocationCategory(region-1)
}

// Region returns the region component, or zero when unknown.
func (l LocationCategory) Region() Region {
	switch {
	case l >= LocationUrbanNortheast && l <= LocationUrbanWest:
		return Region(l-LocationUrbanNortheast) + 1
	case l >= LocationRuralNortheast && l <= LocationRuralWest:
		return Region(l-LocationRuralNortheast) + 1
	case l >= LocationRegionNortheast && l <= LocationRegionWest:
		return Region(l-LocationRegionNortheast) + 1
	}
	return 0
}

func (l LocationCategory) IsUrban() bool { return l >= LocationUrbanNortheast && l <= LocationUrbanWest }
func (l LocationCategory) IsRural() bool { return l >= LocationRuralNortheast && l <= LocationRuralWest }

type SeasonCategory uint8

const (
	SeasonWinter SeasonCategory = iota + 1
	SeasonSpring
	SeasonSummer
	SeasonFall
	SeasonAny
)

var seasonNames = []string{"", "WINTER", "SPRING", "SUMMER", "FALL", "ANY_SEASON"}

func (s SeasonCategory) String() string               { return enumString(seasonNames, s) }
func (s SeasonCategory) Valid() bool                  { return enumValid(seasonNames, s) }
func (s SeasonCategory) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
func (s *SeasonCategory) UnmarshalText(b []byte) error {
	return unmarshalInto(s, seasonNames, "season", b)
}

type ClinicalCategory uint8

const (
	ClinicalCardiovascular ClinicalCategory = iota + 1
	ClinicalRespiratory
	ClinicalEndocrine
	ClinicalNeurological
	ClinicalOncology
	ClinicalRenal
	ClinicalGastrointestinal
	ClinicalMusculoskeletal
	ClinicalMentalHealth
	ClinicalInfectious
)

var clinicalNames = []string{"", "CARDIOVASCULAR_HISTORY", "RESPIRATORY_HISTORY", "ENDOCRINE_HISTORY",
	"NEUROLOGICAL_HISTORY", "ONCOLOGY_HISTORY", "RENAL_HISTORY", "GASTROINTESTINAL_HISTORY",
	"MUSCULOSKELETAL_HISTORY", "MENTAL_HEALTH_HISTORY", "INFECTIOUS_DISEASE_HISTORY"}

// AllClinicalCategories lists the vocabulary in its canonical order.
func AllClinicalCategories() []ClinicalCategory {
	out := make([]ClinicalCategory, 0, len(clinicalNames)-1)
	for i := 1; i < len(clinicalNames); i++ {
		out = append(out, ClinicalCategory(i))
	}
	return out
}

func (c ClinicalCategory) String() string               { return enumString(clinicalNames, c) }
func (c ClinicalCategory) Valid() bool                  { return enumValid(clinicalNames, c) }
func (c ClinicalCategory) MarshalText() ([]byte, error) { return []byte(c.String()), nil }
func (c *ClinicalCategory) UnmarshalText(b []byte) error {
	return unmarshalInto(c, clinicalNames, "clinical category", b)
}

func ParseClinicalCategory(s string) (ClinicalCategory, error) {
	return parseEnum[ClinicalCategory](clinicalNames, "clinical category", s)
}

type MedicationClass uint8

const (
	MedicationCardiovascular MedicationClass = iota + 1
	MedicationRespiratory
	MedicationDiabetes
	MedicationAnalgesic
	MedicationAntibiotic
	MedicationPsychiatric
	MedicationImmunosuppressant
	MedicationAnticoagulant
	MedicationHormonal
	MedicationGastrointestinal
)

var medicationNames = []string{"", "CARDIOVASCULAR_MEDS", "RESPIRATORY_MEDS", "DIABETES_MEDS", "ANALGESICS",
	"ANTIBIOTICS", "PSYCHIATRIC_MEDS", "IMMUNOSUPPRESSANTS", "ANTICOAGULANTS", "HORMONAL_MEDS", "GASTROINTESTINAL_MEDS"}

func (m MedicationClass) String() string               { return enumString(medicationNames, m) }
func (m MedicationClass) Valid() bool                  { return enumValid(medicationNames, m) }
func (m MedicationClass) MarshalText() ([]byte, error) { return []byte(m.String()), nil }
func (m *MedicationClass) UnmarshalText(b []byte) error {
	return unmarshalInto(m, medicationNames, "medication class", b)
}

func ParseMedicationClass(s string) (MedicationClass, error) {
	return parseEnum[MedicationClass](medicationNames, "medication class", s)
}

type AllergyClass uint8

const (
	AllergyDrug AllergyClass = iota + 1
	AllergyFood
	AllergyEnvironmental
	AllergyLatex
	AllergyInsect
)

var allergyNames = []string{"", "DRUG_ALLERGY", "FOOD_ALLERGY", "ENVIRONMENTAL_ALLERGY", "LATEX_ALLERGY", "INSECT_ALLERGY"}

func (a AllergyClass) String() string               { return enumString(allergyNames, a) }
func (a AllergyClass) Valid() bool                  { return enumValid(allergyNames, a) }
func (a AllergyClass) MarshalText() ([]byte, error) { return []byte(a.String()), nil }
func (a *AllergyClass) UnmarshalText(b []byte) error {
	return unmarshalInto(a, allergyNames, "allergy class", b)
}

func ParseAllergyClass(s string) (AllergyClass, error) {
	return parseEnum[AllergyClass](allergyNames, "allergy class", s)
}

type UtilizationLevel uint8

const (
	UtilizationNone UtilizationLevel = iota + 1
	UtilizationLow
	UtilizationModerate
	UtilizationHigh
)

var utilizationNames = []string{"", "NO_UTILIZATION", "LOW_UTILIZATION", "MODERATE_UTILIZATION", "HIGH_UTILIZATION"}

func (u UtilizationLevel) String() string               { return enumString(utilizationNames, u) }
func (u UtilizationLevel) Valid() bool                  { return enumValid(utilizationNames, u) }
func (u UtilizationLevel) MarshalText() ([]byte, error) { return []byte(u.String()), nil }
func (u *UtilizationLevel) UnmarshalText(b []byte) error {
	return unmarshalInto(u, utilizationNames, "utilization level", b)
}

type ComplexityLevel uint8

const (
	ComplexityLow ComplexityLevel = iota + 1
	ComplexityModerate
	ComplexityHigh
	ComplexityVeryHigh
)

var complexityNames = []string{"", "LOW_COMPLEXITY", "MODERATE_COMPLEXITY", "HIGH_COMPLEXITY", "VERY_HIGH_COMPLEXITY"}

func (c ComplexityLevel) String() string               { return enumString(complexityNames, c) }
func (c ComplexityLevel) Valid() bool                  { return enumValid(complexityNames, c) }
func (c ComplexityLevel) MarshalText() ([]byte, error) { return []byte(c.String()), nil }
func (c *ComplexityLevel) UnmarshalText(b []byte) error {
	return unmarshalInto(c, complexityNames, "complexity level", b)
}

func unmarshalInto[T ~uint8](dst *T, names []string, kind string, b []byte) error {
	v, err := parseEnum[T](names, kind, string(b))
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// AddSorted inserts v into a sorted set, keeping it sorted and unique.
func AddSorted[T ~uint8](set []T, v T) []T {
	i := sort.Search(len(set), func(i int) bool { return set[i] >= v })
	if i < len(set) && set[i] == v {
		return set
	}
	set = append(set, 0)
	copy(set[i+1:], set[i:])
	set[i] = v
	return set
}

// Contains reports whether a sorted set holds v.
func Contains[T ~uint8](set []T, v T) bool {
	i := sort.Search(len(set), func(i int) bool { return set[i] >= v })
	return i < len(set) && set[i] == v
}
