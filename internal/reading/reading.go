// Package reading infers hiragana readings for Japanese headwords.
package reading

import (
	"strings"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
)

// Inferer derives readings with the kagome morphological analyzer.
type Inferer struct {
	t *tokenizer.Tokenizer
}

// NewInferer loads the IPA dictionary; this takes a moment and a fair bit
// of memory, so create one per process.
func NewInferer() (*Inferer, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, err
	}
	return &Inferer{t: t}, nil
}

// Reading returns the hiragana reading of term, or "" when any token has no
// known pronunciation. A partial reading would put the term under the
// wrong initial, so it is never returned.
func (in *Inferer) Reading(term string) string {
	var b strings.Builder
	for _, tok := range in.t.Tokenize(term) {
		if strings.TrimSpace(tok.Surface) == "" {
			continue
		}

		// IPA features: 7 is the katakana reading
		features := tok.Features()
		reading := ""
		if len(features) > 7 && features[7] != "*" {
			reading = features[7]
		} else if isKana(tok.Surface) {
			reading = tok.Surface
		}
		if reading == "" {
			return ""
		}
		b.WriteString(reading)
	}
	return ToHiragana(b.String())
}

// ToHiragana maps katakana to hiragana and leaves everything else alone.
func ToHiragana(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'ァ' && r <= 'ヶ' {
			return r - ('ァ' - 'ぁ')
		}
		return r
	}, s)
}

func isKana(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'ぁ' && r <= 'ゖ':
		case r >= 'ァ' && r <= 'ヺ':
		case r == 'ー':
		default:
			return false
		}
	}
	return s != ""
}
