package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"glossync/internal/collector"
	"glossync/internal/config"
	"glossync/internal/credentials"
	"glossync/internal/ledger"
	"glossync/internal/normalizer"
	events "glossync/internal/sync"
	"glossync/pkg/models"
)

type recorder struct {
	mu     sync.Mutex
	events []any
}

func (r *recorder) BroadcastJSON(v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, v)
}

func static(id models.SourceID, terms ...models.RawTerm) collector.Collector {
	return collector.Func{ID: id, Fn: func(ctx context.Context) ([]models.RawTerm, error) {
		return terms, nil
	}}
}

func newPipeline(l ledger.Ledger, n Notifier, cs ...collector.Collector) *Pipeline {
	return &Pipeline{
		Aggregator: collector.NewAggregator(cs...),
		Open: func(ctx context.Context) (ledger.Ledger, func() error, error) {
			return l, func() error { return nil }, nil
		},
		Normalizer: normalizer.New(normalizer.DefaultMaxLength),
		Notifier:   n,
	}
}

var (
	kabuka = models.RawTerm{Term: "株価", Reading: "かぶか", Definition: "企業の発行する株式の市場価格である", Source: models.SourceSMBC}
	kinri  = models.RawTerm{Term: "金利", Reading: "きんり", Definition: "お金を借りる際にかかる対価のことです。", Source: models.SourceSMBC}
)

func TestRunAppendsAndNotifies(t *testing.T) {
	l := ledger.NewMemory(models.LedgerEntry{Term: "株価", Definition: "企業の発行する株式の市場価格を指します。"})
	rec := &recorder{}
	broken := collector.Func{ID: models.SourceOkasan, Fn: func(ctx context.Context) ([]models.RawTerm, error) {
		return nil, errors.New("down")
	}}
	p := newPipeline(l, rec, static(models.SourceSMBC, kabuka, kinri), broken)

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Collected != 2 || res.Appended != 1 || len(res.Terms) != 1 || res.Terms[0] != "金利" {
		t.Errorf("result = %+v", res)
	}
	if res.RunID == "" || res.FinishedAt.Before(res.StartedAt) {
		t.Errorf("run metadata = %q %v %v", res.RunID, res.StartedAt, res.FinishedAt)
	}
	if len(res.Sources) != 2 || res.Sources[1].Error == "" {
		t.Errorf("sources = %+v", res.Sources)
	}
	if l.Len() != 2 {
		t.Errorf("ledger has %d rows, want 2", l.Len())
	}

	if len(rec.events) != 2 {
		t.Fatalf("got %d events, want 2", len(rec.events))
	}
	te, ok := rec.events[0].(events.TermsEvent)
	if !ok || te.Count != 1 || te.RunID != res.RunID {
		t.Errorf("first event = %+v", rec.events[0])
	}
	if se, ok := rec.events[1].(events.SyncEvent); !ok || se.Appended != 1 {
		t.Errorf("second event = %+v", rec.events[1])
	}
}

func TestRunSkipsEmptyBatch(t *testing.T) {
	opened := false
	p := newPipeline(nil, nil, static(models.SourceSMBC))
	p.Open = func(ctx context.Context) (ledger.Ledger, func() error, error) {
		opened = true
		return nil, nil, errors.New("should not open")
	}

	res, err := p.Run(context.Background())
	if err != nil || res.Skipped != SkipNoTerms {
		t.Errorf("Run() = %+v, %v", res, err)
	}
	if opened {
		t.Error("ledger opened for an empty batch")
	}
}

func TestRunSkipsWithoutCredentials(t *testing.T) {
	p := newPipeline(nil, nil, static(models.SourceSMBC, kinri))
	p.Open = func(ctx context.Context) (ledger.Ledger, func() error, error) {
		return nil, nil, fmt.Errorf("%w: tried 2 sources", credentials.ErrCredentialMissing)
	}

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Skipped != SkipNoCredentials || res.Appended != 0 {
		t.Errorf("result = %+v", res)
	}
}

type failingLedger struct{ *ledger.Memory }

func (failingLedger) Append(ctx context.Context, rows []models.LedgerEntry) error {
	return fmt.Errorf("%w: quota exceeded", ledger.ErrStoreWrite)
}

func TestRunSurfacesStoreWriteFailure(t *testing.T) {
	rec := &recorder{}
	p := newPipeline(failingLedger{ledger.NewMemory()}, rec, static(models.SourceSMBC, kinri))

	res, err := p.Run(context.Background())
	if !errors.Is(err, ledger.ErrStoreWrite) {
		t.Fatalf("Run() error = %v, want ErrStoreWrite", err)
	}
	if res.Error == "" {
		t.Error("result should carry the error text")
	}
	if se, ok := rec.events[len(rec.events)-1].(events.SyncEvent); !ok || se.Error == "" {
		t.Errorf("last event = %+v", rec.events[len(rec.events)-1])
	}
}

func TestDryRunWritesNothing(t *testing.T) {
	l := ledger.NewMemory()
	rec := &recorder{}
	p := newPipeline(l, rec, static(models.SourceSMBC, kabuka, kinri))

	res, err := p.DryRun(context.Background())
	if err != nil {
		t.Fatalf("DryRun: %v", err)
	}
	if len(res.Staged) != 2 || res.Staged[0].Definition != "企業の発行する株式の市場価格を指します。" {
		t.Errorf("staged = %+v", res.Staged)
	}
	if l.Len() != 0 || len(rec.events) != 0 {
		t.Error("dry run wrote to the ledger or emitted events")
	}
}

func TestRunnerSingleFlight(t *testing.T) {
	release := make(chan struct{})
	blocking := collector.Func{ID: models.SourceSMBC, Fn: func(ctx context.Context) ([]models.RawTerm, error) {
		<-release
		return []models.RawTerm{kinri}, nil
	}}
	r := NewRunner(newPipeline(ledger.NewMemory(), nil, blocking))

	id, err := r.Start(context.Background())
	if err != nil || id == "" {
		t.Fatalf("Start() = %q, %v", id, err)
	}
	if s := r.Status(); !s.Running || s.RunID != id {
		t.Errorf("Status() = %+v, want running %s", s, id)
	}
	if _, err := r.Start(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("second Start() error = %v, want ErrRunInProgress", err)
	}
	if _, err := r.RunNow(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("RunNow() error = %v, want ErrRunInProgress", err)
	}

	close(release)
	r.Wait()

	s := r.Status()
	if s.Running || s.Last == nil || s.Last.RunID != id || s.Last.Appended != 1 {
		t.Errorf("Status() after run = %+v", s)
	}

	res, err := r.RunNow(context.Background())
	if err != nil || res.Appended != 0 {
		t.Errorf("RunNow() = %+v, %v; want nothing new", res, err)
	}
}

func TestRunnerEvery(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	counting := collector.Func{ID: models.SourceSMBC, Fn: func(ctx context.Context) ([]models.RawTerm, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil, nil
	}}
	r := NewRunner(newPipeline(ledger.NewMemory(), nil, counting))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	r.Every(ctx, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls < 2 {
		t.Errorf("collector ran %d times, want at least 2", calls)
	}
}

func TestCollectorsFromConfig(t *testing.T) {
	off := false
	cfg := config.Default()
	cfg.Sources.Rakuten.Enabled = &off

	got := Collectors(cfg, nil)
	if len(got) != 2 || got[0].Name() != models.SourceSMBC || got[1].Name() != models.SourceOkasan {
		t.Fatalf("Collectors() = %v", got)
	}
	if _, ok := got[1].(*collector.Okasan); !ok {
		t.Errorf("okasan collector = %T, want *collector.Okasan", got[1])
	}

	withReadings := Collectors(cfg, readingsFunc(func(string) string { return "" }))
	if _, ok := withReadings[1].(*collector.Okasan); ok {
		t.Error("okasan collector should be wrapped when readings are inferred")
	}
	if _, ok := withReadings[0].(*collector.SMBC); !ok {
		t.Errorf("smbc collector = %T, want unwrapped", withReadings[0])
	}
}

type readingsFunc func(string) string

func (f readingsFunc) Reading(term string) string { return f(term) }
