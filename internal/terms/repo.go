// Package terms serves the read side of the ledger over HTTP.
package terms

import (
	"context"
	"sort"
	"strings"

	"glossync/internal/ledger"
	"glossync/pkg/models"
)

// LatinInitial is the pseudo-initial grouping readings that start with a
// Latin letter (ETF, NISA, ...).
const LatinInitial = "A-Z"

// Repo answers glossary queries from a snapshot of the ledger. Every
// call reads the ledger afresh, so any backend works and new rows show up
// immediately.
type Repo struct {
	Ledger ledger.Ledger
}

type ListQuery struct {
	Q       string // substring of term, reading or definition, case-insensitive
	Initial string // exact initial, or LatinInitial
	Limit   int
	Offset  int
}

// InitialCount is the number of terms filed under one initial.
type InitialCount struct {
	Initial string `json:"initial"`
	Count   int    `json:"count"`
}

func NewRepo(l ledger.Ledger) *Repo {
	return &Repo{Ledger: l}
}

// List returns the page of matching entries and the total match count.
func (r *Repo) List(ctx context.Context, q ListQuery) ([]models.LedgerEntry, int, error) {
	all, err := r.Ledger.ReadAll(ctx)
	if err != nil {
		return nil, 0, err
	}

	matched := make([]models.LedgerEntry, 0, len(all))
	for _, e := range all {
		if q.matches(e) {
			matched = append(matched, e)
		}
	}

	total := len(matched)
	if q.Offset >= total {
		return []models.LedgerEntry{}, total, nil
	}
	end := total
	if q.Limit > 0 && q.Offset+q.Limit < end {
		end = q.Offset + q.Limit
	}
	return matched[q.Offset:end], total, nil
}

// GetByTerm returns the first ledger row for term, or nil.
func (r *Repo) GetByTerm(ctx context.Context, term string) (*models.LedgerEntry, error) {
	all, err := r.Ledger.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range all {
		if e.Term == term {
			return &e, nil
		}
	}
	return nil, nil
}

// Initials counts entries per initial, in reading order with LatinInitial
// and the empty initial last.
func (r *Repo) Initials(ctx context.Context) ([]InitialCount, error) {
	all, err := r.Ledger.ReadAll(ctx)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, e := range all {
		key := e.Initial
		if isLatin(key) {
			key = LatinInitial
		}
		counts[key]++
	}

	out := make([]InitialCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, InitialCount{Initial: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := initialRank(out[i].Initial), initialRank(out[j].Initial)
		if ri != rj {
			return ri < rj
		}
		return out[i].Initial < out[j].Initial
	})
	return out, nil
}

func initialRank(initial string) int {
	switch initial {
	case LatinInitial:
		return 1
	case "":
		return 2
	}
	return 0
}

func (q ListQuery) matches(e models.LedgerEntry) bool {
	switch {
	case q.Initial == "":
	case q.Initial == LatinInitial:
		if !isLatin(e.Initial) {
			return false
		}
	case e.Initial != q.Initial:
		return false
	}

	kw := strings.ToLower(strings.TrimSpace(q.Q))
	if kw == "" {
		return true
	}
	return strings.Contains(strings.ToLower(e.Term), kw) ||
		strings.Contains(e.Reading, kw) ||
		strings.Contains(strings.ToLower(e.Definition), kw)
}

func isLatin(initial string) bool {
	if len(initial) != 1 {
		return false
	}
	c := initial[0] | 0x20
	return c >= 'a' && c <= 'z'
}
