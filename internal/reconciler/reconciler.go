// Package reconciler appends novel terms to the ledger and skips the ones
// it already holds.
package reconciler

import (
	"context"
	"log"

	"glossync/internal/ledger"
	"glossync/internal/normalizer"
	"glossync/pkg/models"
)

// Plan is the accumulator threaded through a reconciliation: the headwords
// known so far and the rows staged for append, in batch order.
type Plan struct {
	Known  map[string]struct{}
	Staged []models.LedgerEntry
}

// NewPlan starts a fold from the terms already in the ledger.
func NewPlan(known map[string]struct{}) Plan {
	if known == nil {
		known = make(map[string]struct{})
	}
	return Plan{Known: known}
}

// Step folds one canonical row into the plan. A term that is already
// known is skipped; otherwise it is staged and becomes known, so a later
// row with the same term in the same batch is skipped too.
func (p Plan) Step(e models.LedgerEntry) Plan {
	if _, ok := p.Known[e.Term]; ok {
		return p
	}
	p.Known[e.Term] = struct{}{}
	p.Staged = append(p.Staged, e)
	return p
}

// Fold runs Step over the batch, normalizing only the terms that will be
// staged.
func Fold(p Plan, batch []models.RawTerm, n *normalizer.Normalizer) Plan {
	for _, raw := range batch {
		if _, ok := p.Known[raw.Term]; ok {
			continue
		}
		p = p.Step(models.LedgerEntry(n.Normalize(raw)))
	}
	return p
}

// Reconciler merges collector batches into a ledger.
type Reconciler struct {
	Ledger     ledger.Ledger
	Normalizer *normalizer.Normalizer
}

// New creates a Reconciler. A nil normalizer selects the defaults.
func New(l ledger.Ledger, n *normalizer.Normalizer) *Reconciler {
	if n == nil {
		n = normalizer.New(normalizer.DefaultMaxLength)
	}
	return &Reconciler{Ledger: l, Normalizer: n}
}

// Preview reads the ledger and returns the rows a Reconcile of batch would
// append, without writing anything.
func (r *Reconciler) Preview(ctx context.Context, batch []models.RawTerm) ([]models.LedgerEntry, error) {
	known, err := ledger.Terms(ctx, r.Ledger)
	if err != nil {
		return nil, err
	}
	return Fold(NewPlan(known), batch, r.Normalizer).Staged, nil
}

// Reconcile appends the novel terms of batch to the ledger in a single
// write and returns how many rows were appended. If nothing is novel the
// ledger is not written at all. Running it twice on the same batch
// appends nothing the second time.
func (r *Reconciler) Reconcile(ctx context.Context, batch []models.RawTerm) (int, error) {
	rows, err := r.Apply(ctx, batch)
	return len(rows), err
}

// Apply is Reconcile returning the appended rows themselves.
func (r *Reconciler) Apply(ctx context.Context, batch []models.RawTerm) ([]models.LedgerEntry, error) {
	staged, err := r.Preview(ctx, batch)
	if err != nil {
		return nil, err
	}
	if err := r.commit(ctx, len(batch), staged); err != nil {
		return nil, err
	}
	return staged, nil
}

// ReconcileEntries is Reconcile for rows that are already canonical, such
// as a CSV export being loaded back. They are appended as given.
func (r *Reconciler) ReconcileEntries(ctx context.Context, entries []models.LedgerEntry) (int, error) {
	known, err := ledger.Terms(ctx, r.Ledger)
	if err != nil {
		return 0, err
	}
	p := NewPlan(known)
	for _, e := range entries {
		if e.Term == "" {
			continue
		}
		p = p.Step(e)
	}
	if err := r.commit(ctx, len(entries), p.Staged); err != nil {
		return 0, err
	}
	return len(p.Staged), nil
}

func (r *Reconciler) commit(ctx context.Context, candidates int, staged []models.LedgerEntry) error {
	if len(staged) == 0 {
		log.Printf("[reconciler] %d candidates, nothing new", candidates)
		return nil
	}
	if err := r.Ledger.Append(ctx, staged); err != nil {
		return err
	}
	log.Printf("[reconciler] %d candidates, appended %d", candidates, len(staged))
	return nil
}
