// Package normalizer maps raw collector output into the canonical ledger schema.
package normalizer

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"glossync/pkg/models"
)

// DefaultMaxLength is the number of definition characters kept before the
// ellipsis marker is appended.
const DefaultMaxLength = 300

// Ellipsis marks a truncated definition.
const Ellipsis = "..."

// Rule is one textual substitution applied to a definition.
type Rule interface {
	Apply(s string) string
}

// Replace substitutes every occurrence of Old with New.
type Replace struct {
	Old, New string
}

func (r Replace) Apply(s string) string { return strings.ReplaceAll(s, r.Old, r.New) }

// Pattern substitutes regex matches with New.
type Pattern struct {
	Re  *regexp.Regexp
	New string
}

func (p Pattern) Apply(s string) string { return p.Re.ReplaceAllString(s, p.New) }

// DefaultRules rewrite common sentence endings into an equivalent phrasing.
// Order matters: the plain replacements run before the anchored patterns.
func DefaultRules() []Rule {
	return []Rule{
		Replace{Old: "。です。", New: "。"},
		Replace{Old: "のことです。", New: "を意味します。"},
		Pattern{Re: regexp.MustCompile(`といいます$`), New: "と呼ばれます。"},
		Pattern{Re: regexp.MustCompile(`である$`), New: "を指します。"},
	}
}

// Normalizer turns RawTerms into CanonicalTerms.
type Normalizer struct {
	Rules     []Rule
	MaxLength int
}

// New creates a Normalizer with the default rules.
func New(maxLength int) *Normalizer {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	return &Normalizer{
		Rules:     DefaultRules(),
		MaxLength: maxLength,
	}
}

// Normalize never drops a record; an empty definition stays empty.
func (n *Normalizer) Normalize(raw models.RawTerm) models.CanonicalTerm {
	return models.CanonicalTerm{
		Initial:    Initial(raw.Reading),
		Term:       raw.Term,
		Reading:    raw.Reading,
		Definition: n.Rephrase(raw.Definition),
	}
}

// Rephrase applies the rules in order, then truncates.
func (n *Normalizer) Rephrase(definition string) string {
	if definition == "" {
		return ""
	}
	out := definition
	for _, r := range n.Rules {
		out = r.Apply(out)
	}
	return Truncate(out, n.MaxLength)
}

// Initial returns the first character of reading, or "" for an empty reading.
func Initial(reading string) string {
	if reading == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(reading)
	if r == utf8.RuneError && size <= 1 {
		return reading[:size]
	}
	return string(r)
}

// Truncate keeps the first max characters of s and appends Ellipsis when s
// is longer than max. Lengths are counted in characters, not bytes.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + Ellipsis
}
