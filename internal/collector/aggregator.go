package collector

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"glossync/pkg/models"
)

// Aggregator runs a fixed list of collectors and concatenates their output.
type Aggregator struct {
	Collectors []Collector

	// Concurrency is the number of collectors allowed to run at once.
	// Values below 2 run them one after another.
	Concurrency int
}

// NewAggregator creates an Aggregator over the given collectors.
func NewAggregator(collectors ...Collector) *Aggregator {
	return &Aggregator{Collectors: collectors, Concurrency: 1}
}

// Outcome records what one collector contributed to a run.
type Outcome struct {
	Source   models.SourceID
	Terms    int
	Err      error
	Duration time.Duration
}

// RunAll runs every collector and returns their terms in collector order.
// A collector that errors or panics contributes nothing; the rest are
// unaffected.
func (a *Aggregator) RunAll(ctx context.Context) []models.RawTerm {
	batch, _ := a.Run(ctx)
	return batch
}

// Run is RunAll with a per-collector report.
func (a *Aggregator) Run(ctx context.Context) ([]models.RawTerm, []Outcome) {
	results := make([][]models.RawTerm, len(a.Collectors))
	outcomes := make([]Outcome, len(a.Collectors))

	if a.Concurrency < 2 {
		for i, c := range a.Collectors {
			results[i], outcomes[i] = runOne(ctx, c)
		}
	} else {
		// the group's context is not used: one collector's failure must
		// not cancel its siblings
		var g errgroup.Group
		g.SetLimit(a.Concurrency)
		for i, c := range a.Collectors {
			g.Go(func() error {
				results[i], outcomes[i] = runOne(ctx, c)
				return nil
			})
		}
		_ = g.Wait()
	}

	var batch []models.RawTerm
	for i, terms := range results {
		if outcomes[i].Err != nil {
			continue
		}
		batch = append(batch, terms...)
	}
	return batch, outcomes
}

func runOne(ctx context.Context, c Collector) (terms []models.RawTerm, out Outcome) {
	out.Source = c.Name()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			terms = nil
			out.Err = fmt.Errorf("collector %s panicked: %v", out.Source, r)
		}
		out.Duration = time.Since(start)
		if out.Err != nil {
			log.Printf("[aggregator] source %s error: %v", out.Source, out.Err)
			return
		}
		out.Terms = len(terms)
		log.Printf("[aggregator] source %s: %d terms in %s", out.Source, out.Terms, out.Duration.Round(time.Millisecond))
	}()

	log.Printf("[aggregator] collecting from %s", out.Source)
	terms, err := c.Collect(ctx)
	if err != nil {
		// keep going: one broken source should not stop the others
		out.Err = err
		return nil, out
	}
	return dropEmptyTerms(terms), out
}

// dropEmptyTerms enforces that every emitted record has a headword.
func dropEmptyTerms(terms []models.RawTerm) []models.RawTerm {
	out := terms[:0]
	for _, t := range terms {
		if t.Term != "" {
			out = append(out, t)
		}
	}
	return out
}
