// Package dlp detects and redacts identifier-shaped substrings. The rule set
// covers the 18 HIPAA Safe Harbor identifier classes and is loadable from YAML.
package dlp

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/synaptica-ai/mlprofile/pkg/common/models"
)

type compiledRule struct {
	rule Rule
	re   *regexp.Regexp
}

// Finding locates one match. The matched value itself is never retained.
type Finding struct {
	Class    string          `json:"class"`
	Rule     string          `json:"rule"`
	Severity models.Severity `json:"severity"`
	Field    string          `json:"field,omitempty"`
	Start    int             `json:"start"`
	End      int             `json:"end"`
}

type Result struct {
	Detected   bool      `json:"detected"`
	Confidence float64   `json:"confidence"`
	Classes    []string  `json:"classes"`
	Findings   []Finding `json:"findings"`
}

// Detector is immutable after construction and safe for concurrent use.
type Detector struct {
	rules []compiledRule
}

func NewDetector(cfg RulesConfig) (*Detector, error) {
	var compiled []compiledRule
	for _, rule := range cfg.Rules {
		if !rule.Enabled {
			continue
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("dlp rule %q: %w", rule.Name, err)
		}
		if !rule.Severity.Valid() {
			rule.Severity = models.SeverityCritical
		}
		compiled = append(compiled, compiledRule{rule: rule, re: re})
	}
	return &Detector{rules: compiled}, nil
}

// MustDefault builds a detector from DefaultRules, which always compile.
func MustDefault() *Detector {
	d, err := NewDetector(DefaultRules())
	if err != nil {
		panic(err)
	}
	return d
}

// Scan reports every rule match in text.
func (d *Detector) Scan(text string) []Finding {
	if d == nil || text == "" {
		return nil
	}
	var findings []Finding
	for _, cr := range d.rules {
		for _, match := range cr.re.FindAllStringIndex(text, -1) {
			findings = append(findings, Finding{
				Class:    cr.rule.Type,
				Rule:     cr.rule.Name,
				Severity: cr.rule.Severity,
				Start:    match[0],
				End:      match[1],
			})
		}
	}
	return findings
}

// Detect walks a decoded JSON document and scans every string. Numbers and
// booleans are measurements, not identifiers, and are skipped.
func (d *Detector) Detect(data map[string]interface{}) Result {
	if d == nil {
		return Result{}
	}

	var findings []Finding
	var recurse func(field string, value interface{})
	recurse = func(field string, value interface{}) {
		switch v := value.(type) {
		case nil:
		case string:
			findings = appendField(findings, field, d.Scan(v))
		case map[string]interface{}:
			for nestedKey, nestedVal := range v {
				recurse(joinField(field, nestedKey), nestedVal)
			}
		case []interface{}:
			for _, nestedVal := range v {
				recurse(field, nestedVal)
			}
		case fmt.Stringer:
			findings = appendField(findings, field, d.Scan(v.String()))
		}
	}

	for key, value := range data {
		recurse(key, value)
	}

	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Field != findings[j].Field {
			return findings[i].Field < findings[j].Field
		}
		return findings[i].Start < findings[j].Start
	})

	classSet := make(map[string]struct{})
	for _, f := range findings {
		classSet[f.Class] = struct{}{}
	}
	classes := make([]string, 0, len(classSet))
	for c := range classSet {
		classes = append(classes, c)
	}
	sort.Strings(classes)

	return Result{
		Detected:   len(findings) > 0,
		Confidence: confidenceScore(len(findings)),
		Classes:    classes,
		Findings:   findings,
	}
}

// Redact replaces every match with its rule mask, applying rules in order.
func (d *Detector) Redact(text string) string {
	if d == nil {
		return text
	}
	for _, cr := range d.rules {
		text = cr.re.ReplaceAllLiteralString(text, cr.rule.Mask)
	}
	return text
}

func appendField(dst []Finding, field string, found []Finding) []Finding {
	for _, f := range found {
		f.Field = field
		dst = append(dst, f)
	}
	return dst
}

func joinField(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

func confidenceScore(count int) float64 {
	switch {
	case count == 0:
		return 0
	case count == 1:
		return 0.7
	case count == 2:
		return 0.85
	default:
		return 0.95
	}
}
