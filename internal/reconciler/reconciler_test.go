package reconciler

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"testing"

	"glossync/internal/ledger"
	"glossync/internal/normalizer"
	"glossync/pkg/models"
)

// countingLedger records how often each method is called.
type countingLedger struct {
	*ledger.Memory
	appends  int
	failRead bool
	failPut  bool
}

func (c *countingLedger) ReadAll(ctx context.Context) ([]models.LedgerEntry, error) {
	if c.failRead {
		return nil, ledger.ErrStoreRead
	}
	return c.Memory.ReadAll(ctx)
}

func (c *countingLedger) Append(ctx context.Context, rows []models.LedgerEntry) error {
	c.appends++
	if c.failPut {
		return ledger.ErrStoreWrite
	}
	return c.Memory.Append(ctx, rows)
}

func newLedger(rows ...models.LedgerEntry) *countingLedger {
	return &countingLedger{Memory: ledger.NewMemory(rows...)}
}

func TestReconcileScenario(t *testing.T) {
	ctx := context.Background()
	l := newLedger(models.LedgerEntry{Term: "株価", Definition: "企業の発行する株式の市場価格を指します。"})
	batch := []models.RawTerm{
		{Term: "株価", Reading: "かぶか", Definition: "企業の発行する株式の市場価格である", Source: models.SourceSMBC},
		{Term: "金利", Reading: "きんり", Definition: "お金を借りる際にかかる対価のことです。", Source: models.SourceSMBC},
	}

	n, err := New(l, nil).Reconcile(ctx, batch)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if n != 1 {
		t.Fatalf("appended = %d, want 1", n)
	}

	rows, _ := l.ReadAll(ctx)
	want := models.LedgerEntry{Initial: "き", Term: "金利", Reading: "きんり", Definition: "お金を借りる際にかかる対価を意味します。"}
	if len(rows) != 2 || rows[1] != want {
		t.Errorf("ledger = %+v, want second row %+v", rows, want)
	}
}

func TestReconcileIdempotent(t *testing.T) {
	ctx := context.Background()
	l := newLedger()
	r := New(l, nil)
	batch := []models.RawTerm{
		{Term: "配当", Reading: "はいとう", Definition: "利益の分配のことです。"},
		{Term: "ETF", Definition: "上場投資信託"},
	}

	if n, err := r.Reconcile(ctx, batch); err != nil || n != 2 {
		t.Fatalf("first Reconcile = %d, %v; want 2", n, err)
	}
	if n, err := r.Reconcile(ctx, batch); err != nil || n != 0 {
		t.Fatalf("second Reconcile = %d, %v; want 0", n, err)
	}
	if l.appends != 1 {
		t.Errorf("Append called %d times, want 1", l.appends)
	}
	if l.Len() != 2 {
		t.Errorf("ledger has %d rows, want 2", l.Len())
	}
}

func TestReconcileFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	l := newLedger()
	batch := []models.RawTerm{
		{Term: "株価", Reading: "かぶか", Definition: "first", Source: models.SourceSMBC},
		{Term: "株価", Reading: "", Definition: "second", Source: models.SourceOkasan},
		{Term: "金利", Reading: "きんり", Definition: "third", Source: models.SourceRakuten},
	}

	if _, err := New(l, nil).Reconcile(ctx, batch); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	rows, _ := l.ReadAll(ctx)
	var got []string
	for _, r := range rows {
		got = append(got, r.Term+":"+r.Definition)
	}
	want := []string{"株価:first", "金利:third"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ledger = %v, want %v", got, want)
	}
}

func TestReconcileNothingNewSkipsWrite(t *testing.T) {
	l := newLedger(models.LedgerEntry{Term: "株価"})
	n, err := New(l, nil).Reconcile(context.Background(), []models.RawTerm{{Term: "株価"}})
	if err != nil || n != 0 {
		t.Fatalf("Reconcile = %d, %v; want 0, nil", n, err)
	}
	if l.appends != 0 {
		t.Errorf("Append called %d times, want 0", l.appends)
	}

	if n, err := New(l, nil).Reconcile(context.Background(), nil); err != nil || n != 0 || l.appends != 0 {
		t.Errorf("empty batch: Reconcile = %d, %v with %d appends", n, err, l.appends)
	}
}

func TestReconcileStoreFailures(t *testing.T) {
	batch := []models.RawTerm{{Term: "金利", Definition: "x"}}

	l := newLedger()
	l.failPut = true
	if _, err := New(l, nil).Reconcile(context.Background(), batch); !errors.Is(err, ledger.ErrStoreWrite) {
		t.Errorf("write failure: error = %v, want ErrStoreWrite", err)
	}

	l = newLedger()
	l.failRead = true
	if _, err := New(l, nil).Reconcile(context.Background(), batch); !errors.Is(err, ledger.ErrStoreRead) {
		t.Errorf("read failure: error = %v, want ErrStoreRead", err)
	}
	if l.appends != 0 {
		t.Error("Append must not be attempted when the ledger could not be read")
	}
}

func TestPreviewWritesNothing(t *testing.T) {
	l := newLedger()
	staged, err := New(l, normalizer.New(10)).Preview(context.Background(), []models.RawTerm{
		{Term: "信用取引", Definition: "証券会社からお金を借りて売買する取引"},
	})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if len(staged) != 1 || staged[0].Definition != "証券会社からお金を借..." {
		t.Errorf("Preview() = %+v", staged)
	}
	if l.appends != 0 || l.Len() != 0 {
		t.Error("Preview must not write")
	}
}

func TestReconcileEntries(t *testing.T) {
	ctx := context.Background()
	l := newLedger(models.LedgerEntry{Term: "株価"})
	entries := []models.LedgerEntry{
		{Initial: "か", Term: "株価", Reading: "かぶか", Definition: "dup"},
		{Initial: "", Term: "", Definition: "no term"},
		{Initial: "は", Term: "配当", Reading: "はいとう", Definition: "利益の分配のことです。"},
	}

	n, err := New(l, nil).ReconcileEntries(ctx, entries)
	if err != nil || n != 1 {
		t.Fatalf("ReconcileEntries = %d, %v; want 1", n, err)
	}
	rows, _ := l.ReadAll(ctx)
	// canonical rows are stored verbatim, not rephrased again
	if rows[1] != entries[2] {
		t.Errorf("appended %+v, want %+v", rows[1], entries[2])
	}
}

func TestReconcileEntriesCSVReimport(t *testing.T) {
	ctx := context.Background()
	l := newLedger(
		models.LedgerEntry{Initial: "か", Term: "株価 ", Reading: "かぶか", Definition: "市場価格"},
		models.LedgerEntry{Initial: "き", Term: "金利", Reading: "きんり", Definition: "利息の割合"},
	)
	stored, _ := l.ReadAll(ctx)

	var buf bytes.Buffer
	if err := ledger.WriteCSV(&buf, stored); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	entries, err := ledger.ReadCSV(&buf)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}

	n, err := New(l, nil).ReconcileEntries(ctx, entries)
	if err != nil || n != 0 {
		t.Fatalf("ReconcileEntries = %d, %v; want 0", n, err)
	}
	if l.appends != 0 || l.Len() != 2 {
		t.Errorf("appends = %d, rows = %d; want 0 and 2", l.appends, l.Len())
	}
}

func TestPlanStep(t *testing.T) {
	p := NewPlan(nil)
	p = p.Step(models.LedgerEntry{Term: "a"})
	p = p.Step(models.LedgerEntry{Term: "a"})
	p = p.Step(models.LedgerEntry{Term: "b"})
	if len(p.Staged) != 2 || len(p.Known) != 2 {
		t.Errorf("plan = %+v", p)
	}
}
