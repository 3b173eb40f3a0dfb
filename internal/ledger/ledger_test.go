package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"glossync/internal/config"
	"glossync/internal/credentials"
	"glossync/pkg/database"
	"glossync/pkg/models"
)

var sample = []models.LedgerEntry{
	{Initial: "か", Term: "株価", Reading: "かぶか", Definition: "企業の株式の市場価格を指します。"},
	{Initial: "", Term: "ETF", Reading: "", Definition: "上場投資信託を意味します。"},
}

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	db, err := database.Open(database.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewSQLite(db)
}

// fakeSheets serves the two Values endpoints the ledger uses.
type fakeSheets struct {
	mu       sync.Mutex
	rows     [][]interface{}
	appends  int
	ranges   []string
	failPost bool
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !strings.HasPrefix(r.URL.Path, "/v4/spreadsheets/sheet-id/values/") {
		http.NotFound(w, r)
		return
	}
	f.ranges = append(f.ranges, strings.TrimPrefix(r.URL.Path, "/v4/spreadsheets/sheet-id/values/"))

	switch r.Method {
	case http.MethodGet:
		json.NewEncoder(w).Encode(map[string]any{"values": f.rows})
	case http.MethodPost:
		if f.failPost {
			http.Error(w, `{"error":{"code":500,"message":"backend error"}}`, http.StatusInternalServerError)
			return
		}
		if r.URL.Query().Get("valueInputOption") != "RAW" || r.URL.Query().Get("insertDataOption") != "INSERT_ROWS" {
			http.Error(w, "bad options", http.StatusBadRequest)
			return
		}
		var body struct {
			Values [][]interface{} `json:"values"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.appends++
		f.rows = append(f.rows, body.Values...)
		w.Write([]byte(`{}`))
	}
}

func newTestSheets(t *testing.T, f *fakeSheets) *Sheets {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	svc, err := sheets.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("sheets client: %v", err)
	}
	return NewSheets(svc, "sheet-id", "シート1")
}

func TestBackendsRoundTrip(t *testing.T) {
	backends := map[string]func(t *testing.T) Ledger{
		"memory": func(t *testing.T) Ledger { return NewMemory() },
		"sqlite": func(t *testing.T) Ledger { return newTestSQLite(t) },
		"sheets": func(t *testing.T) Ledger { return newTestSheets(t, &fakeSheets{}) },
	}

	for name, mk := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l := mk(t)

			if err := l.Append(ctx, sample[:1]); err != nil {
				t.Fatalf("Append: %v", err)
			}
			if err := l.Append(ctx, sample[1:]); err != nil {
				t.Fatalf("Append: %v", err)
			}
			if err := l.Append(ctx, nil); err != nil {
				t.Fatalf("Append(nil): %v", err)
			}

			got, err := l.ReadAll(ctx)
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			if !reflect.DeepEqual(got, sample) {
				t.Errorf("ReadAll() = %+v, want %+v", got, sample)
			}

			terms, err := Terms(ctx, l)
			if err != nil {
				t.Fatalf("Terms: %v", err)
			}
			if _, ok := terms["株価"]; !ok || len(terms) != 2 {
				t.Errorf("Terms() = %v", terms)
			}
		})
	}
}

func TestSheetsRangeAndShortRows(t *testing.T) {
	f := &fakeSheets{rows: [][]interface{}{
		{"か", "株価"},
		{"only one cell"},
		{},
	}}
	s := newTestSheets(t, f)

	got, err := s.ReadAll(context.Background())
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	want := []models.LedgerEntry{{Initial: "か", Term: "株価"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ReadAll() = %+v, want %+v", got, want)
	}
	if f.ranges[0] != "'シート1'!A:D" {
		t.Errorf("range = %q, want 'シート1'!A:D", f.ranges[0])
	}
}

func TestSheetsAppendIsOneRequest(t *testing.T) {
	f := &fakeSheets{}
	s := newTestSheets(t, f)

	if err := s.Append(context.Background(), sample); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if f.appends != 1 || len(f.rows) != 2 {
		t.Errorf("appends = %d rows = %d, want 1 and 2", f.appends, len(f.rows))
	}
}

func TestSheetsAppendFailure(t *testing.T) {
	s := newTestSheets(t, &fakeSheets{failPost: true})
	if err := s.Append(context.Background(), sample); !errors.Is(err, ErrStoreWrite) {
		t.Errorf("Append() error = %v, want ErrStoreWrite", err)
	}
}

func TestSQLiteAppendClosedDB(t *testing.T) {
	l := newTestSQLite(t)
	l.db.Close()
	if err := l.Append(context.Background(), sample); !errors.Is(err, ErrStoreWrite) {
		t.Errorf("Append() error = %v, want ErrStoreWrite", err)
	}
	if _, err := l.ReadAll(context.Background()); !errors.Is(err, ErrStoreRead) {
		t.Errorf("ReadAll() error = %v, want ErrStoreRead", err)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	cfg := config.Default()
	cfg.Ledger.Backend = config.BackendMemory
	l, closeFn, err := Open(ctx, cfg)
	if err != nil {
		t.Fatalf("Open(memory): %v", err)
	}
	closeFn()
	if _, ok := l.(*Memory); !ok {
		t.Errorf("Open(memory) = %T", l)
	}

	cfg = config.Default()
	cfg.Ledger.SQLitePath = ":memory:"
	l, closeFn, err = Open(ctx, cfg)
	if err != nil {
		t.Fatalf("Open(sqlite): %v", err)
	}
	defer closeFn()
	if err := l.Append(ctx, sample); err != nil {
		t.Fatalf("Append: %v", err)
	}

	t.Setenv("GLOSSYNC_TEST_NO_KEY", "")
	cfg = config.Default()
	cfg.Ledger.Backend = config.BackendSheets
	cfg.Ledger.SpreadsheetID = "sheet-id"
	cfg.Credentials = config.CredentialsConfig{Env: "GLOSSYNC_TEST_NO_KEY"}
	if _, _, err := Open(ctx, cfg); !errors.Is(err, credentials.ErrCredentialMissing) {
		t.Errorf("Open(sheets) without key error = %v, want ErrCredentialMissing", err)
	}
}
