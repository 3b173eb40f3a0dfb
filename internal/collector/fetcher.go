package collector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
)

// Page-level failures. A collector drops the page or candidate that
// produced one of these and keeps going.
var (
	ErrFetch = errors.New("fetch failed")
	ErrParse = errors.New("parse failed")
)

const (
	DefaultTimeout   = 15 * time.Second
	DefaultDelay     = 1 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	maxBodySize = 5 * 1024 * 1024
)

// Fetcher performs polite, single-attempt page fetches. It is safe for
// concurrent use; each collector normally owns its own.
type Fetcher struct {
	Client    *http.Client
	Delay     time.Duration
	UserAgent string
}

// NewFetcher creates a Fetcher with the given timeout and politeness delay.
func NewFetcher(timeout, delay time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if delay < 0 {
		delay = 0
	}
	return &Fetcher{
		Client:    &http.Client{Timeout: timeout},
		Delay:     delay,
		UserAgent: DefaultUserAgent,
	}
}

// Document fetches pageURL and parses it as HTML. When enc is nil the
// charset is taken from the Content-Type header or sniffed from the body.
// There is no retry: a failure is returned wrapped in ErrFetch or ErrParse.
func (f *Fetcher) Document(ctx context.Context, pageURL string, enc encoding.Encoding) (*html.Node, error) {
	if err := f.wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, pageURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: build request %s: %v", ErrFetch, pageURL, err)
	}
	req.Header.Set("User-Agent", f.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ja,en-US;q=0.8,en;q=0.6")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: status %d", ErrFetch, pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrFetch, pageURL, err)
	}

	var r io.Reader = bytes.NewReader(body)
	if enc != nil {
		r = enc.NewDecoder().Reader(r)
	} else {
		r, err = charset.NewReader(r, resp.Header.Get("Content-Type"))
		if err != nil {
			return nil, fmt.Errorf("%w: charset %s: %v", ErrParse, pageURL, err)
		}
	}

	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, pageURL, err)
	}
	return doc, nil
}

func (f *Fetcher) wait(ctx context.Context) error {
	if f.Delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(f.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// strippedText mirrors how the glossary sites are read by hand: every text
// node is trimmed and the pieces are joined without a separator.
func strippedText(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(strings.TrimSpace(n.Data))
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
