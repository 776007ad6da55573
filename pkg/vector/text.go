// Package vector turns categorical features into fixed-layout numeric vectors
// and prepares free text for an external embedding model.
package vector

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/synaptica-ai/mlprofile/pkg/common/models"
	"github.com/synaptica-ai/mlprofile/pkg/dlp"
	"golang.org/x/text/unicode/norm"
)

// MaxTextLength bounds prepared text in runes, context sentence included.
const MaxTextLength = 2048

const nameMask = "[NAME]"

// Runs of two or more capitalized words, e.g. "Jane Doe".
var nameBigram = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)+\b`)

type Preparator struct {
	detector *dlp.Detector
}

// NewPreparator uses the default Safe Harbor rules when detector is nil.
func NewPreparator(detector *dlp.Detector) *Preparator {
	if detector == nil {
		detector = dlp.MustDefault()
	}
	return &Preparator{detector: detector}
}

func (p *Preparator) Encode(fs models.CategoricalFeatureSet) []float64 {
	return Encode(fs)
}

// PrepareText redacts identifier-shaped substrings and appends a clinical
// context sentence. Truncation only ever cuts the free text, never the context.
func (p *Preparator) PrepareText(text string, fs models.CategoricalFeatureSet) string {
	body := norm.NFKC.String(text)
	body = p.detector.Redact(body)
	body = nameBigram.ReplaceAllLiteralString(body, nameMask)
	body = strings.Join(strings.Fields(body), " ")

	context := ContextSentence(fs)
	budget := MaxTextLength - utf8.RuneCountInString(context) - 1
	if budget <= 0 {
		return truncateRunes(context, MaxTextLength)
	}
	body = truncateRunes(body, budget)
	if body == "" {
		return context
	}
	return body + " " + context
}

// ContextSentence renders the categorical features as one deterministic sentence.
func ContextSentence(fs models.CategoricalFeatureSet) string {
	var b strings.Builder
	b.WriteString("Clinical context: age group ")
	b.WriteString(fs.AgeGroup.String())
	b.WriteString(", gender ")
	b.WriteString(fs.Gender.String())
	b.WriteString(", pregnancy ")
	b.WriteString(fs.PregnancyStatus.String())
	b.WriteString(", season ")
	b.WriteString(fs.SeasonCategory.String())
	b.WriteString(", location ")
	b.WriteString(fs.LocationCategory.String())
	b.WriteString(", history ")
	if len(fs.MedicalHistory) == 0 {
		b.WriteString("none")
	}
	for i, c := range fs.MedicalHistory {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(c.String())
	}
	b.WriteString(", complexity ")
	b.WriteString(fs.Complexity.String())
	b.WriteString(".")
	return b.String()
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max]))
}
