package collector

import (
	"context"
	"log"
	"regexp"
	"strings"

	"github.com/go-shiori/dom"
	"golang.org/x/text/encoding/japanese"

	"glossync/pkg/models"
)

const smbcBase = "https://www.smbcnikko.co.jp/terms/japan/"

// smbcIndexes are the per-kana index pages, named as in the site's URLs.
var smbcIndexes = []string{
	"a", "i", "u", "e", "o",
	"ka", "ki", "ku", "ke", "ko",
	"sa", "si", "su", "se", "so",
	"ta", "ti", "tu", "te", "to",
	"na", "ni", "nu", "ne", "no",
	"ha", "hi", "hu", "he", "ho",
	"ma", "mi", "mu", "me", "mo",
	"ya", "yu", "yo",
	"ra", "ri", "ru", "re", "ro",
	"wa",
}

var (
	// "株価（かぶか）"
	smbcHeadword = regexp.MustCompile(`(.+?)（(.+?)）`)
	smbcLeader   = regexp.MustCompile(`^[〉＞\s]+`)
)

// SMBC collects the SMBC Nikko glossary. Index pages carry the term, its
// reading and a short definition, so no detail pages are fetched.
type SMBC struct {
	BaseURL string
	Indexes []string
	Fetcher *Fetcher
}

// NewSMBC creates the SMBC Nikko collector. An empty baseURL selects the live site.
func NewSMBC(baseURL string, f *Fetcher) *SMBC {
	if baseURL == "" {
		baseURL = smbcBase
	}
	return &SMBC{
		BaseURL: withTrailingSlash(baseURL),
		Indexes: smbcIndexes,
		Fetcher: f,
	}
}

func (s *SMBC) Name() models.SourceID { return models.SourceSMBC }

func (s *SMBC) Collect(ctx context.Context) ([]models.RawTerm, error) {
	log.Printf("[collector] %s: scraping %d index pages", s.Name(), len(s.Indexes))

	var out []models.RawTerm
	for _, idx := range s.Indexes {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		pageURL := s.BaseURL + idx + "/index.html"
		doc, err := s.Fetcher.Document(ctx, pageURL, japanese.ShiftJIS)
		if err != nil {
			log.Printf("[collector] %s: %v", s.Name(), err)
			continue
		}

		for _, li := range dom.QuerySelectorAll(doc, "li") {
			link := dom.QuerySelector(li, "a.link-list__type")
			if link == nil {
				continue
			}
			if t, ok := parseSMBCItem(strippedText(link), strippedText(li)); ok {
				out = append(out, t)
			}
		}
	}

	log.Printf("[collector] %s: %d terms", s.Name(), len(out))
	return out, nil
}

// parseSMBCItem splits a list item into headword, reading and definition.
// linkText is "term（reading）" (the reading part is optional) and itemText
// is the whole item, whose remainder after the link is the definition.
func parseSMBCItem(linkText, itemText string) (models.RawTerm, bool) {
	term, reading := linkText, ""
	if m := smbcHeadword.FindStringSubmatch(linkText); m != nil {
		term = strings.TrimSpace(m[1])
		reading = strings.TrimSpace(m[2])
	}
	term = strings.TrimSpace(term)

	definition := strings.TrimSpace(strings.ReplaceAll(itemText, linkText, ""))
	definition = smbcLeader.ReplaceAllString(definition, "")

	if term == "" || definition == "" {
		return models.RawTerm{}, false
	}
	return models.RawTerm{
		Term:       term,
		Reading:    reading,
		Definition: definition,
		Source:     models.SourceSMBC,
	}, true
}
