package collector

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/go-shiori/dom"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"glossync/pkg/models"
)

const rakutenBase = "https://www.rakuten-sec.co.jp/web/market/dictionary/j/"

// one index page per kana row
var rakutenIndexes = []string{"a", "ka", "sa", "ta", "na", "ha", "ma", "ya", "ra", "wa"}

// Paragraphs this short are navigation or captions, not definition text.
const rakutenMinParagraph = 20

// Rakuten collects the Rakuten Securities glossary: per-row index pages
// linking to detail pages that carry the term, its reading and definition.
type Rakuten struct {
	BaseURL            string
	Indexes            []string
	MaxDetailsPerIndex int // 0 means no cap
	Fetcher            *Fetcher
}

// NewRakuten creates the Rakuten Securities collector. An empty baseURL selects the live site.
func NewRakuten(baseURL string, maxDetailsPerIndex int, f *Fetcher) *Rakuten {
	if baseURL == "" {
		baseURL = rakutenBase
	}
	return &Rakuten{
		BaseURL:            withTrailingSlash(baseURL),
		Indexes:            rakutenIndexes,
		MaxDetailsPerIndex: maxDetailsPerIndex,
		Fetcher:            f,
	}
}

func (r *Rakuten) Name() models.SourceID { return models.SourceRakuten }

func (r *Rakuten) Collect(ctx context.Context) ([]models.RawTerm, error) {
	log.Printf("[collector] %s: scraping %d index pages", r.Name(), len(r.Indexes))

	var out []models.RawTerm
	for _, idx := range r.Indexes {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		indexURL := r.BaseURL + idx + "/"
		index, err := r.Fetcher.Document(ctx, indexURL, nil)
		if err != nil {
			log.Printf("[collector] %s: %v", r.Name(), err)
			continue
		}

		links := detailLinks(index, indexURL, func(href string) bool {
			return strings.Contains(href, ".html") && strings.Contains(href, "/dictionary/j/")
		})
		if r.MaxDetailsPerIndex > 0 && len(links) > r.MaxDetailsPerIndex {
			links = links[:r.MaxDetailsPerIndex]
		}

		for _, link := range links {
			if err := ctx.Err(); err != nil {
				return out, err
			}
			doc, err := r.Fetcher.Document(ctx, link, nil)
			if err != nil {
				log.Printf("[collector] %s: %v", r.Name(), err)
				continue
			}
			t, err := parseRakutenDetail(doc, link)
			if err != nil {
				log.Printf("[collector] %s: %s: %v", r.Name(), link, err)
				continue
			}
			out = append(out, t)
		}
	}

	log.Printf("[collector] %s: %d terms", r.Name(), len(out))
	return out, nil
}

func parseRakutenDetail(doc *html.Node, pageURL string) (models.RawTerm, error) {
	term := strippedText(dom.QuerySelector(doc, "h1.c-title-page"))
	if term == "" {
		return models.RawTerm{}, fmt.Errorf("%w: no h1.c-title-page headword", ErrParse)
	}

	// the first cell of the info table holds the reading
	reading := ""
	if table := dom.QuerySelector(doc, "table.c-table"); table != nil {
		reading = strippedText(dom.QuerySelector(table, "td"))
	}

	longEnough := func(text string) bool { return utf8.RuneCountInString(text) > rakutenMinParagraph }

	var definition string
	content := dom.QuerySelector(doc, "div.pos-r")
	if content == nil {
		content = dom.QuerySelector(doc, "div#contents")
	}
	if content != nil {
		definition = joinParagraphs(content, longEnough)
	} else {
		definition = readableText(doc, pageURL, longEnough)
	}

	if definition == "" {
		return models.RawTerm{}, fmt.Errorf("%w: no definition text for %q", ErrParse, term)
	}
	return models.RawTerm{
		Term:       term,
		Reading:    reading,
		Definition: definition,
		Source:     models.SourceRakuten,
	}, nil
}

// readableText is the fallback for detail pages whose layout lost the
// usual content container: readability picks the main article and its
// paragraphs go through the same filter as the container path.
func readableText(doc *html.Node, pageURL string, keep func(string) bool) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return ""
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(&buf, u)
	if err != nil {
		return ""
	}
	return joinParagraphs(article.Node, keep)
}
