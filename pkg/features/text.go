package features

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// normalizeText folds width/compatibility forms and case so "ＡＳＴＨＭＡ" and
// "Asthma" scan identically.
func normalizeText(s string) string {
	return cases.Fold().String(norm.NFKC.String(s))
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalizeKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if n := strings.Join(tokenize(normalizeText(k)), " "); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// scanText is a normalized text prepared for whole-word keyword lookups.
type scanText struct {
	padded string
}

func newScanText(parts ...string) scanText {
	tokens := tokenize(normalizeText(strings.Join(parts, " ")))
	return scanText{padded: " " + strings.Join(tokens, " ") + " "}
}

func (s scanText) empty() bool {
	return strings.TrimSpace(s.padded) == ""
}

// has reports whether keyword occurs as a whole word or phrase.
func (s scanText) has(keyword string) bool {
	return keyword != "" && strings.Contains(s.padded, " "+keyword+" ")
}

func (s scanText) count(keywords []string) int {
	n := 0
	for _, k := range keywords {
		if s.has(k) {
			n++
		}
	}
	return n
}

func (s scanText) any(keywords ...string) bool {
	for _, k := range keywords {
		if s.has(k) {
			return true
		}
	}
	return false
}

// upperCodes returns two-letter all-caps tokens from the raw text, e.g. "MA".
func upperCodes(raw string) []string {
	var out []string
	for _, tok := range tokenize(raw) {
		if len(tok) == 2 && strings.ToUpper(tok) == tok && unicode.IsLetter(rune(tok[0])) && unicode.IsLetter(rune(tok[1])) {
			out = append(out, tok)
		}
	}
	return out
}
