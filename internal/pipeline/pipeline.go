// Package pipeline runs one glossary sync: collect, normalize, reconcile.
package pipeline

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"glossync/internal/collector"
	"glossync/internal/config"
	"glossync/internal/credentials"
	"glossync/internal/ledger"
	"glossync/internal/normalizer"
	"glossync/internal/reading"
	"glossync/internal/reconciler"
	events "glossync/internal/sync"
	"glossync/pkg/models"
)

// Reasons a run stopped before touching the ledger.
const (
	SkipNoTerms       = "no terms collected"
	SkipNoCredentials = "no ledger credentials"
)

// Notifier receives run events. *sync.Hub satisfies it.
type Notifier interface {
	BroadcastJSON(v any)
}

// OpenFunc opens the ledger for one run and returns its release func.
type OpenFunc func(ctx context.Context) (ledger.Ledger, func() error, error)

// Pipeline wires the stages of a sync together.
type Pipeline struct {
	Aggregator *collector.Aggregator
	Open       OpenFunc
	Normalizer *normalizer.Normalizer
	Notifier   Notifier // optional
}

// SourceResult is one collector's share of a run.
type SourceResult struct {
	Source     models.SourceID `json:"source"`
	Terms      int             `json:"terms"`
	Error      string          `json:"error,omitempty"`
	DurationMs int64           `json:"duration_ms"`
}

// Result describes a finished run.
type Result struct {
	RunID      string               `json:"run_id"`
	DryRun     bool                 `json:"dry_run,omitempty"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
	Collected  int                  `json:"collected"`
	Appended   int                  `json:"appended"`
	Terms      []string             `json:"terms,omitempty"`
	Staged     []models.LedgerEntry `json:"staged,omitempty"`
	Skipped    string               `json:"skipped,omitempty"`
	Error      string               `json:"error,omitempty"`
	Sources    []SourceResult       `json:"sources"`
}

// New builds a Pipeline from configuration.
func New(cfg *config.Config, n Notifier) (*Pipeline, error) {
	var readings collector.ReadingSource
	if cfg.Collect.InferReadings {
		in, err := reading.NewInferer()
		if err != nil {
			return nil, err
		}
		readings = in
	}

	agg := collector.NewAggregator(Collectors(cfg, readings)...)
	agg.Concurrency = cfg.Collect.Concurrency

	return &Pipeline{
		Aggregator: agg,
		Open: func(ctx context.Context) (ledger.Ledger, func() error, error) {
			return ledger.Open(ctx, cfg)
		},
		Normalizer: normalizer.New(cfg.Normalize.MaxLength),
		Notifier:   n,
	}, nil
}

// Collectors returns the enabled collectors in their fixed order. Each gets
// its own Fetcher so that politeness delays are per site. When readings is
// non-nil it fills in readings for sites that publish none.
func Collectors(cfg *config.Config, readings collector.ReadingSource) []collector.Collector {
	fetcher := func() *collector.Fetcher {
		f := collector.NewFetcher(cfg.Collect.Timeout(), cfg.Collect.Delay())
		if cfg.Collect.UserAgent != "" {
			f.UserAgent = cfg.Collect.UserAgent
		}
		return f
	}

	var out []collector.Collector
	if s := cfg.Sources.SMBC; s.IsEnabled() {
		out = append(out, collector.NewSMBC(s.BaseURL, fetcher()))
	}
	if s := cfg.Sources.Okasan; s.IsEnabled() {
		var c collector.Collector = collector.NewOkasan(s.BaseURL, s.MaxDetails, fetcher())
		if readings != nil {
			c = collector.WithReadings(c, readings)
		}
		out = append(out, c)
	}
	if s := cfg.Sources.Rakuten; s.IsEnabled() {
		out = append(out, collector.NewRakuten(s.BaseURL, s.MaxDetails, fetcher()))
	}
	return out
}

// Run performs a full sync and appends novel terms to the ledger.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	return p.run(ctx, uuid.NewString(), false)
}

// DryRun collects and computes the rows a Run would append, writing nothing.
func (p *Pipeline) DryRun(ctx context.Context) (*Result, error) {
	return p.run(ctx, uuid.NewString(), true)
}

func (p *Pipeline) run(ctx context.Context, runID string, dry bool) (res *Result, err error) {
	res = &Result{RunID: runID, DryRun: dry, StartedAt: time.Now()}
	log.Printf("[pipeline] run %s started (dry=%v)", runID, dry)

	defer func() {
		res.FinishedAt = time.Now()
		if err != nil {
			res.Error = err.Error()
			log.Printf("[pipeline] run %s failed: %v", runID, err)
		} else {
			log.Printf("[pipeline] run %s done: collected=%d appended=%d skipped=%q",
				runID, res.Collected, res.Appended, res.Skipped)
		}
		if !dry {
			p.notify(res)
		}
	}()

	batch, outcomes := p.Aggregator.Run(ctx)
	res.Collected = len(batch)
	for _, o := range outcomes {
		sr := SourceResult{Source: o.Source, Terms: o.Terms, DurationMs: o.Duration.Milliseconds()}
		if o.Err != nil {
			sr.Error = o.Err.Error()
		}
		res.Sources = append(res.Sources, sr)
	}

	if len(batch) == 0 {
		res.Skipped = SkipNoTerms
		return res, nil
	}

	l, closeLedger, err := p.Open(ctx)
	if errors.Is(err, credentials.ErrCredentialMissing) {
		log.Printf("[pipeline] run %s: %v; skipping ledger sync", runID, err)
		res.Skipped = SkipNoCredentials
		return res, nil
	}
	if err != nil {
		return res, err
	}
	defer func() {
		if cerr := closeLedger(); cerr != nil {
			log.Printf("[pipeline] close ledger: %v", cerr)
		}
	}()

	r := reconciler.New(l, p.Normalizer)
	if dry {
		res.Staged, err = r.Preview(ctx, batch)
		return res, err
	}

	appended, err := r.Apply(ctx, batch)
	if err != nil {
		return res, err
	}
	res.Appended = len(appended)
	for _, e := range appended {
		res.Terms = append(res.Terms, e.Term)
	}
	return res, nil
}

func (p *Pipeline) notify(res *Result) {
	if p.Notifier == nil {
		return
	}
	if res.Appended > 0 {
		p.Notifier.BroadcastJSON(events.TermsEvent{
			Type:  events.TypeTermsAppended,
			RunID: res.RunID,
			Count: res.Appended,
			Terms: res.Terms,
			At:    res.FinishedAt,
		})
	}
	p.Notifier.BroadcastJSON(events.SyncEvent{
		Type:      events.TypeSyncFinished,
		RunID:     res.RunID,
		Collected: res.Collected,
		Appended:  res.Appended,
		Skipped:   res.Skipped,
		Error:     res.Error,
		At:        res.FinishedAt,
	})
}
