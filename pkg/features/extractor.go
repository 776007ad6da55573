// Package features maps raw patient records onto closed categorical
// vocabularies. Extraction never fails: missing or unparsable inputs resolve
// to conservative defaults documented on Policy and on each rule.
package features

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/synaptica-ai/mlprofile/pkg/common/logger"
	"github.com/synaptica-ai/mlprofile/pkg/common/models"
)

// Policy carries the defaulting choices that need product sign-off.
type Policy struct {
	// DefaultAgeGroup applies when age is missing or implausible.
	DefaultAgeGroup models.AgeGroup
	// DefaultTrimester applies to a pregnancy with no resolvable trimester.
	DefaultTrimester int
}

func DefaultPolicy() Policy {
	return Policy{DefaultAgeGroup: models.AgeYoungAdult, DefaultTrimester: 1}
}

// DateFormats are tried in order when parsing a visit date.
var DateFormats = []string{
	"2006-01-02",
	"01/02/2006",
	"2006/01/02",
	"02-01-2006",
	time.RFC3339,
	"Jan 2, 2006",
	"January 2, 2006",
	"2006-01-02 15:04:05",
}

const maxPlausibleAge = 130

type Option func(*Extractor)

// WithClock sets the clock used when a record carries no visit date. A nil
// clock makes undated records resolve to winter.
func WithClock(clock func() time.Time) Option {
	return func(e *Extractor) { e.clock = clock }
}

func WithLogger(entry *logrus.Entry) Option {
	return func(e *Extractor) {
		if entry != nil {
			e.log = entry
		}
	}
}

type Extractor struct {
	vocab  compiledVocabulary
	policy Policy
	clock  func() time.Time
	log    *logrus.Entry
}

func NewExtractor(vocab Vocabulary, policy Policy, opts ...Option) (*Extractor, error) {
	compiled, err := compile(vocab)
	if err != nil {
		return nil, err
	}
	if !policy.DefaultAgeGroup.Valid() {
		policy.DefaultAgeGroup = DefaultPolicy().DefaultAgeGroup
	}
	if policy.DefaultTrimester < 1 || policy.DefaultTrimester > 3 {
		policy.DefaultTrimester = DefaultPolicy().DefaultTrimester
	}
	e := &Extractor{
		vocab:  compiled,
		policy: policy,
		clock:  time.Now,
		log:    logger.Log.WithField("component", "feature-extractor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Extract derives the categorical feature set. It is deterministic for a
// given record and clock.
func (e *Extractor) Extract(rec models.RawSubjectRecord) models.CategoricalFeatureSet {
	fs := models.CategoricalFeatureSet{
		AgeGroup: e.ageGroup(rec.Age),
		Gender:   canonicalGender(rec.Gender),
	}
	fs.PregnancyStatus = e.pregnancyStatus(fs.Gender, rec.Pregnancy)
	fs.LocationCategory = e.location(rec.Location, rec.Address)
	fs.SeasonCategory = e.season(rec.VisitDate)

	fs.MedicalHistory = matchCategories(e.vocab.clinical, rec.MedicalHistory)
	fs.MedicationClasses = matchCategories(e.vocab.medications, rec.Medications)
	fs.AllergyClasses = matchCategories(e.vocab.allergies, rec.Allergies)

	fs.RiskFactors = riskFactors(fs, len(rec.Medications))
	fs.RiskFactorCount = len(fs.RiskFactors)
	fs.ComorbidityScore = e.comorbidityScore(fs.MedicalHistory)
	fs.Utilization = utilization(len(rec.VisitHistory))
	fs.Complexity = complexity(fs)
	fs.SimilarityWeights = similarityWeights(fs)

	e.log.WithFields(logrus.Fields{
		"subject_hash":        logger.HashSubject(rec.SubjectID),
		"clinical_categories": len(fs.MedicalHistory),
		"risk_factors":        fs.RiskFactorCount,
	}).Debug("extracted categorical features")
	return fs
}

func (e *Extractor) ageGroup(age models.FlexInt) models.AgeGroup {
	if !age.Set || age.Value < 0 || age.Value > maxPlausibleAge {
		return e.policy.DefaultAgeGroup
	}
	return AgeGroupFor(age.Value)
}

// AgeGroupFor buckets an age in years into the six clinical bands.
func AgeGroupFor(years int) models.AgeGroup {
	switch {
	case years < 18:
		return models.AgePediatric
	case years < 25:
		return models.AgeYoungAdult
	case years < 35:
		return models.AgeReproductive
	case years < 50:
		return models.AgeMiddleAge
	case years < 65:
		return models.AgeOlderAdult
	default:
		return models.AgeElderly
	}
}

var (
	femaleKeywords = []string{"female", "f", "woman", "women", "girl", "w"}
	maleKeywords   = []string{"male", "m", "man", "men", "boy"}
)

func canonicalGender(raw string) models.Gender {
	text := newScanText(raw)
	switch {
	case text.any(femaleKeywords...):
		return models.GenderFemale
	case text.any(maleKeywords...):
		return models.GenderMale
	default:
		return models.GenderOther
	}
}

var (
	pregnancyKeywords = []string{"pregnant", "pregnancy", "expecting", "gravid", "gestation"}
	negationKeywords  = []string{"not pregnant", "no pregnancy", "non pregnant", "negative"}
	trimesterKeywords = map[int][]string{
		1: {"first trimester", "1st trimester", "trimester 1", "t1"},
		2: {"second trimester", "2nd trimester", "trimester 2", "t2"},
		3: {"third trimester", "3rd trimester", "trimester 3", "t3"},
	}
)

// pregnancyStatus is only evaluated for female subjects. An explicit flag
// outranks whatever the notes say.
func (e *Extractor) pregnancyStatus(gender models.Gender, info *models.PregnancyInfo) models.PregnancyStatus {
	if gender != models.GenderFemale {
		return models.PregnancyNotApplicable
	}
	if info == nil {
		return models.PregnancyNotPregnant
	}
	notes := newScanText(info.Notes)

	pregnant := false
	switch {
	case info.IsPregnant != nil:
		pregnant = *info.IsPregnant
	case notes.any(negationKeywords...):
		pregnant = false
	case notes.any(pregnancyKeywords...):
		pregnant = true
	case info.Trimester != nil:
		pregnant = true
	default:
		return models.PregnancyUnknown
	}
	if !pregnant {
		return models.PregnancyNotPregnant
	}

	trimester := 0
	if info.Trimester != nil && *info.Trimester >= 1 && *info.Trimester <= 3 {
		trimester = *info.Trimester
	} else {
		for t := 1; t <= 3; t++ {
			if notes.any(trimesterKeywords[t]...) {
				trimester = t
				break
			}
		}
	}
	if trimester == 0 {
		trimester = e.policy.DefaultTrimester
	}
	return models.PregnancyTrimester1 + models.PregnancyStatus(trimester-1)
}

// location scores density keywords and region keywords. Ties between regions
// are unresolved and collapse to unknown, whatever the density.
func (e *Extractor) location(parts ...string) models.LocationCategory {
	raw := strings.Join(parts, " ")
	text := newScanText(raw)
	if text.empty() {
		return models.LocationUnknown
	}

	scores := make(map[models.Region]int)
	for _, rule := range e.vocab.regions {
		scores[rule.value] += text.count(rule.keywords)
	}
	for _, code := range upperCodes(raw) {
		if r, ok := e.vocab.stateCodes[code]; ok {
			scores[r]++
		}
	}

	var best models.Region
	bestScore, tied := 0, false
	for r := models.RegionNortheast; r <= models.RegionWest; r++ {
		switch {
		case scores[r] > bestScore:
			best, bestScore, tied = r, scores[r], false
		case scores[r] == bestScore && bestScore > 0:
			tied = true
		}
	}
	if bestScore == 0 || tied {
		return models.LocationUnknown
	}

	urban := text.count(e.vocab.urban) >= text.count(e.vocab.rural)
	return models.NewLocation(urban, best)
}

// season uses the visit month. A missing date falls back to the current month;
// a date that is present but unparsable resolves to winter, the highest-risk season.
func (e *Extractor) season(visitDate string) models.SeasonCategory {
	visitDate = strings.TrimSpace(visitDate)
	if visitDate != "" {
		for _, layout := range DateFormats {
			if t, err := time.Parse(layout, visitDate); err == nil {
				return SeasonFor(t.Month())
			}
		}
		return models.SeasonWinter
	}
	if e.clock == nil {
		return models.SeasonWinter
	}
	return SeasonFor(e.clock().Month())
}

func SeasonFor(m time.Month) models.SeasonCategory {
	switch m {
	case time.March, time.April, time.May:
		return models.SeasonSpring
	case time.June, time.July, time.August:
		return models.SeasonSummer
	case time.September, time.October, time.November:
		return models.SeasonFall
	default:
		return models.SeasonWinter
	}
}
