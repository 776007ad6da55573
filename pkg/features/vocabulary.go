package features

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/synaptica-ai/mlprofile/pkg/common/models"
	"gopkg.in/yaml.v3"
)

// Vocabulary holds the keyword tables used to map free text onto the closed
// categories. Keys are category names as rendered by the model enums.
type Vocabulary struct {
	Clinical           map[string][]string `yaml:"clinical" json:"clinical"`
	Medications        map[string][]string `yaml:"medications" json:"medications"`
	Allergies          map[string][]string `yaml:"allergies" json:"allergies"`
	ComorbidityWeights map[string]float64  `yaml:"comorbidity_weights" json:"comorbidity_weights"`
	UrbanKeywords      []string            `yaml:"urban_keywords" json:"urban_keywords"`
	RuralKeywords      []string            `yaml:"rural_keywords" json:"rural_keywords"`
	Regions            map[string][]string `yaml:"regions" json:"regions"`
	RegionStateCodes   map[string][]string `yaml:"region_state_codes" json:"region_state_codes"`
}

func LoadVocabulary(path string) (Vocabulary, error) {
	if path == "" {
		return DefaultVocabulary(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultVocabulary(), err
	}
	var vocab Vocabulary
	if err := yaml.Unmarshal(content, &vocab); err != nil {
		return Vocabulary{}, err
	}
	if len(vocab.Clinical) == 0 {
		return Vocabulary{}, fmt.Errorf("vocabulary has no clinical categories")
	}
	return vocab, nil
}

func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Clinical: map[string][]string{
			"CARDIOVASCULAR_HISTORY":     {"hypertension", "heart disease", "heart failure", "coronary", "myocardial infarction", "heart attack", "arrhythmia", "atrial fibrillation", "stroke", "cardiomyopathy", "high blood pressure"},
			"RESPIRATORY_HISTORY":        {"asthma", "copd", "emphysema", "bronchitis", "pneumonia", "cystic fibrosis", "sleep apnea", "respiratory"},
			"ENDOCRINE_HISTORY":          {"diabetes", "diabetic", "thyroid", "hypothyroidism", "hyperthyroidism", "obesity", "gestational diabetes", "pcos"},
			"NEUROLOGICAL_HISTORY":       {"epilepsy", "seizure", "migraine", "parkinson", "multiple sclerosis", "dementia", "alzheimer", "neuropathy"},
			"ONCOLOGY_HISTORY":           {"cancer", "tumor", "tumour", "leukemia", "lymphoma", "carcinoma", "melanoma", "chemotherapy", "malignancy"},
			"RENAL_HISTORY":              {"kidney disease", "renal", "ckd", "dialysis", "nephropathy", "kidney stones"},
			"GASTROINTESTINAL_HISTORY":   {"crohn", "colitis", "ibs", "gerd", "reflux", "ulcer", "celiac", "hepatitis", "cirrhosis"},
			"MUSCULOSKELETAL_HISTORY":    {"arthritis", "osteoporosis", "fracture", "back pain", "lupus", "fibromyalgia", "gout"},
			"MENTAL_HEALTH_HISTORY":      {"depression", "anxiety", "bipolar", "schizophrenia", "ptsd", "adhd", "eating disorder", "postpartum depression"},
			"INFECTIOUS_DISEASE_HISTORY": {"hiv", "tuberculosis", "covid", "influenza", "hepatitis c", "sepsis", "infection", "lyme"},
		},
		Medications: map[string][]string{
			"CARDIOVASCULAR_MEDS":   {"lisinopril", "metoprolol", "amlodipine", "atorvastatin", "simvastatin", "losartan", "carvedilol", "hydrochlorothiazide", "furosemide"},
			"RESPIRATORY_MEDS":      {"albuterol", "inhaler", "fluticasone", "montelukast", "budesonide", "tiotropium", "salmeterol"},
			"DIABETES_MEDS":         {"metformin", "insulin", "glipizide", "sitagliptin", "empagliflozin", "liraglutide", "semaglutide"},
			"ANALGESICS":            {"ibuprofen", "acetaminophen", "paracetamol", "naproxen", "aspirin", "oxycodone", "hydrocodone", "tramadol", "morphine"},
			"ANTIBIOTICS":           {"amoxicillin", "azithromycin", "ciprofloxacin", "doxycycline", "cephalexin", "penicillin", "clindamycin"},
			"PSYCHIATRIC_MEDS":      {"sertraline", "fluoxetine", "citalopram", "escitalopram", "bupropion", "lithium", "quetiapine", "aripiprazole"},
			"IMMUNOSUPPRESSANTS":    {"prednisone", "methotrexate", "tacrolimus", "cyclosporine", "azathioprine", "mycophenolate", "adalimumab"},
			"ANTICOAGULANTS":        {"warfarin", "heparin", "apixaban", "rivaroxaban", "dabigatran", "enoxaparin", "clopidogrel"},
			"HORMONAL_MEDS":         {"levothyroxine", "estradiol", "progesterone", "contraceptive", "testosterone", "prenatal vitamins"},
			"GASTROINTESTINAL_MEDS": {"omeprazole", "pantoprazole", "ranitidine", "famotidine", "ondansetron", "loperamide"},
		},
		Allergies: map[string][]string{
			"DRUG_ALLERGY":          {"penicillin", "sulfa", "aspirin", "codeine", "nsaid", "amoxicillin", "contrast", "morphine"},
			"FOOD_ALLERGY":          {"peanut", "peanuts", "tree nut", "shellfish", "egg", "eggs", "milk", "dairy", "soy", "wheat", "gluten", "fish"},
			"ENVIRONMENTAL_ALLERGY": {"pollen", "dust", "mold", "pet dander", "cat", "dog", "grass", "ragweed"},
			"LATEX_ALLERGY":         {"latex", "rubber"},
			"INSECT_ALLERGY":        {"bee", "wasp", "insect", "sting", "hornet", "fire ant"},
		},
		ComorbidityWeights: map[string]float64{
			"CARDIOVASCULAR_HISTORY":     3,
			"RESPIRATORY_HISTORY":        2,
			"ENDOCRINE_HISTORY":          2,
			"NEUROLOGICAL_HISTORY":       3,
			"ONCOLOGY_HISTORY":           4,
			"RENAL_HISTORY":              3,
			"GASTROINTESTINAL_HISTORY":   1,
			"MUSCULOSKELETAL_HISTORY":    1,
			"MENTAL_HEALTH_HISTORY":      2,
			"INFECTIOUS_DISEASE_HISTORY": 2,
		},
		UrbanKeywords: []string{"city", "downtown", "metro", "metropolitan", "urban", "borough", "boston", "new york", "brooklyn", "manhattan",
			"philadelphia", "pittsburgh", "chicago", "detroit", "minneapolis", "cleveland", "columbus", "milwaukee", "st louis",
			"atlanta", "miami", "charlotte", "nashville", "new orleans", "baltimore", "washington", "orlando", "tampa",
			"los angeles", "san francisco", "seattle", "portland", "denver", "phoenix", "houston", "dallas", "austin", "san diego", "las vegas"},
		RuralKeywords: []string{"rural", "county", "farm", "village", "township", "ranch", "countryside", "route", "rr", "hamlet", "unincorporated"},
		Regions: map[string][]string{
			"NORTHEAST": {"maine", "new hampshire", "vermont", "massachusetts", "rhode island", "connecticut", "new york", "new jersey", "pennsylvania",
				"boston", "brooklyn", "manhattan", "philadelphia", "pittsburgh", "hartford", "providence", "newark"},
			"SOUTHEAST": {"delaware", "maryland", "virginia", "west virginia", "kentucky", "tennessee", "north carolina", "south carolina", "georgia",
				"florida", "alabama", "mississippi", "arkansas", "louisiana", "atlanta", "miami", "charlotte", "nashville", "new orleans",
				"baltimore", "orlando", "tampa", "washington dc"},
			"MIDWEST": {"ohio", "indiana", "illinois", "michigan", "wisconsin", "minnesota", "iowa", "missouri", "north dakota", "south dakota",
				"nebraska", "kansas", "chicago", "detroit", "minneapolis", "cleveland", "columbus", "milwaukee", "st louis", "indianapolis"},
			"WEST": {"texas", "oklahoma", "new mexico", "arizona", "colorado", "wyoming", "montana", "idaho", "utah", "nevada", "california",
				"oregon", "washington state", "alaska", "hawaii", "los angeles", "san francisco", "seattle", "portland", "denver", "phoenix",
				"houston", "dallas", "austin", "san diego", "las vegas"},
		},
		RegionStateCodes: map[string][]string{
			"NORTHEAST": {"ME", "NH", "VT", "MA", "RI", "CT", "NY", "NJ", "PA"},
			"SOUTHEAST": {"DE", "MD", "VA", "WV", "KY", "TN", "NC", "SC", "GA", "FL", "AL", "MS", "AR", "LA", "DC"},
			"MIDWEST":   {"OH", "IN", "IL", "MI", "WI", "MN", "IA", "MO", "ND", "SD", "NE", "KS"},
			"WEST":      {"TX", "OK", "NM", "AZ", "CO", "WY", "MT", "ID", "UT", "NV", "CA", "OR", "WA", "AK", "HI"},
		},
	}
}

type keywordRule[T ~uint8] struct {
	value    T
	keywords []string
}

// compiledVocabulary is the typed form of a Vocabulary, ordered by enum value
// so scanning is deterministic.
type compiledVocabulary struct {
	clinical    []keywordRule[models.ClinicalCategory]
	medications []keywordRule[models.MedicationClass]
	allergies   []keywordRule[models.AllergyClass]
	weights     map[models.ClinicalCategory]float64
	urban       []string
	rural       []string
	regions     []keywordRule[models.Region]
	stateCodes  map[string]models.Region
}

var regionByName = map[string]models.Region{
	"NORTHEAST": models.RegionNortheast,
	"SOUTHEAST": models.RegionSoutheast,
	"MIDWEST":   models.RegionMidwest,
	"WEST":      models.RegionWest,
}

func compile(v Vocabulary) (compiledVocabulary, error) {
	var c compiledVocabulary
	var err error
	if c.clinical, err = compileRules(v.Clinical, models.ParseClinicalCategory); err != nil {
		return c, err
	}
	if c.medications, err = compileRules(v.Medications, models.ParseMedicationClass); err != nil {
		return c, err
	}
	if c.allergies, err = compileRules(v.Allergies, models.ParseAllergyClass); err != nil {
		return c, err
	}

	c.weights = make(map[models.ClinicalCategory]float64, len(v.ComorbidityWeights))
	for name, w := range v.ComorbidityWeights {
		cat, err := models.ParseClinicalCategory(name)
		if err != nil {
			return c, err
		}
		c.weights[cat] = w
	}

	c.urban = normalizeKeywords(v.UrbanKeywords)
	c.rural = normalizeKeywords(v.RuralKeywords)

	c.regions, err = compileRules(v.Regions, func(name string) (models.Region, error) {
		r, ok := regionByName[strings.ToUpper(strings.TrimSpace(name))]
		if !ok {
			return 0, fmt.Errorf("unknown region %q", name)
		}
		return r, nil
	})
	if err != nil {
		return c, err
	}

	c.stateCodes = make(map[string]models.Region)
	for name, codes := range v.RegionStateCodes {
		r, ok := regionByName[strings.ToUpper(strings.TrimSpace(name))]
		if !ok {
			return c, fmt.Errorf("unknown region %q", name)
		}
		for _, code := range codes {
			c.stateCodes[strings.ToUpper(strings.TrimSpace(code))] = r
		}
	}
	return c, nil
}

func compileRules[T ~uint8](table map[string][]string, parse func(string) (T, error)) ([]keywordRule[T], error) {
	rules := make([]keywordRule[T], 0, len(table))
	for name, keywords := range table {
		value, err := parse(name)
		if err != nil {
			return nil, err
		}
		rules = append(rules, keywordRule[T]{value: value, keywords: normalizeKeywords(keywords)})
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].value < rules[j].value })
	return rules, nil
}
