// Package collector fetches glossary pages from brokerage sites and turns
// them into raw term records.
package collector

import (
	"context"
	"net/url"
	"strings"

	"github.com/go-shiori/dom"
	"golang.org/x/net/html"

	"glossync/pkg/models"
)

// Collector is implemented by each glossary site. Collect fetches the
// site's fixed set of index pages and maps whatever it can extract into
// RawTerms. Page-level failures are dropped inside Collect; a returned
// error means the whole source failed.
type Collector interface {
	Name() models.SourceID
	Collect(ctx context.Context) ([]models.RawTerm, error)
}

// Func adapts a function into a Collector.
type Func struct {
	ID models.SourceID
	Fn func(ctx context.Context) ([]models.RawTerm, error)
}

func (f Func) Name() models.SourceID { return f.ID }

func (f Func) Collect(ctx context.Context) ([]models.RawTerm, error) { return f.Fn(ctx) }

// detailLinks returns the absolute URLs of anchors under doc whose href
// satisfies keep, in document order and without repeats.
func detailLinks(doc *html.Node, base string, keep func(href string) bool) []string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var out []string
	for _, a := range dom.QuerySelectorAll(doc, "a[href]") {
		href := strings.TrimSpace(dom.GetAttribute(a, "href"))
		if href == "" || !keep(href) {
			continue
		}
		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		abs := baseURL.ResolveReference(ref)
		abs.Fragment = ""
		s := abs.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// joinParagraphs joins the stripped text of each <p> under root with a
// space, skipping paragraphs whose text does not pass keep.
func joinParagraphs(root *html.Node, keep func(text string) bool) string {
	if root == nil {
		return ""
	}
	var parts []string
	for _, p := range dom.QuerySelectorAll(root, "p") {
		text := strippedText(p)
		if text == "" || !keep(text) {
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, " ")
}

func withTrailingSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}
