package collector

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/go-shiori/dom"
	"golang.org/x/net/html"

	"glossync/pkg/models"
)

const okasanIndex = "https://www.okasan-online.co.jp/support/beginner/glossary/index.html"

// Okasan collects the Okasan Online glossary: one index page linking to a
// detail page per term. The site publishes no readings.
type Okasan struct {
	IndexURL   string
	MaxDetails int // 0 means no cap
	Fetcher    *Fetcher
}

// NewOkasan creates the Okasan Online collector. An empty indexURL selects the live site.
func NewOkasan(indexURL string, maxDetails int, f *Fetcher) *Okasan {
	if indexURL == "" {
		indexURL = okasanIndex
	}
	return &Okasan{IndexURL: indexURL, MaxDetails: maxDetails, Fetcher: f}
}

func (o *Okasan) Name() models.SourceID { return models.SourceOkasan }

func (o *Okasan) Collect(ctx context.Context) ([]models.RawTerm, error) {
	log.Printf("[collector] %s: scraping index %s", o.Name(), o.IndexURL)

	index, err := o.Fetcher.Document(ctx, o.IndexURL, nil)
	if err != nil {
		// the only index page is gone: nothing else to try
		log.Printf("[collector] %s: %v", o.Name(), err)
		return nil, nil
	}

	// detail pages live under ".../datail/..." (sic)
	links := detailLinks(index, o.IndexURL, func(href string) bool {
		return strings.Contains(href, "datail")
	})
	if o.MaxDetails > 0 && len(links) > o.MaxDetails {
		links = links[:o.MaxDetails]
	}

	var out []models.RawTerm
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		doc, err := o.Fetcher.Document(ctx, link, nil)
		if err != nil {
			log.Printf("[collector] %s: %v", o.Name(), err)
			continue
		}
		t, err := parseOkasanDetail(doc)
		if err != nil {
			log.Printf("[collector] %s: %s: %v", o.Name(), link, err)
			continue
		}
		out = append(out, t)
	}

	log.Printf("[collector] %s: %d terms from %d detail pages", o.Name(), len(out), len(links))
	return out, nil
}

// parseOkasanDetail reads the headword from the first <h2> and the
// definition from the paragraphs of #main_content.
func parseOkasanDetail(doc *html.Node) (models.RawTerm, error) {
	term := strippedText(dom.QuerySelector(doc, "h2"))
	if term == "" {
		return models.RawTerm{}, fmt.Errorf("%w: no h2 headword", ErrParse)
	}

	var parts []string
	for _, p := range dom.QuerySelectorAll(doc, "#main_content p") {
		if text := strippedText(p); text != "" {
			parts = append(parts, text)
		}
	}

	return models.RawTerm{
		Term:       term,
		Definition: strings.Join(parts, " "),
		Source:     models.SourceOkasan,
	}, nil
}
