package terms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"

	"glossync/internal/ledger"
	"glossync/pkg/models"
)

var fixture = []models.LedgerEntry{
	{Initial: "か", Term: "株価", Reading: "かぶか", Definition: "企業の株式の市場価格を指します。"},
	{Initial: "き", Term: "金利", Reading: "きんり", Definition: "お金を借りる際にかかる対価を意味します。"},
	{Initial: "E", Term: "ETF", Reading: "ETF", Definition: "上場投資信託を意味します。"},
	{Initial: "", Term: "信用取引", Reading: "", Definition: "証券会社からお金を借りて売買する取引"},
	{Initial: "か", Term: "株式", Reading: "かぶしき", Definition: "会社の持ち分"},
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(NewRepo(ledger.NewMemory(fixture...)))
	r := gin.New()
	h.RegisterRoutes(r.Group("/terms"))
	r.GET("/initials", h.Initials)
	return r
}

func get(t *testing.T, r http.Handler, path string, v any) int {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	if v != nil && w.Code == http.StatusOK {
		if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return w.Code
}

type listResponse struct {
	Total  int                  `json:"total"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
	Items  []models.LedgerEntry `json:"items"`
}

func TestList(t *testing.T) {
	r := newRouter()

	tests := []struct {
		name      string
		query     url.Values
		wantTotal int
		wantTerms []string
	}{
		{"all", nil, 5, []string{"株価", "金利", "ETF", "信用取引", "株式"}},
		{"keyword in definition", url.Values{"q": {"お金"}}, 2, []string{"金利", "信用取引"}},
		{"keyword case-insensitive", url.Values{"q": {"etf"}}, 1, []string{"ETF"}},
		{"keyword in reading", url.Values{"q": {"かぶ"}}, 2, []string{"株価", "株式"}},
		{"initial", url.Values{"initial": {"か"}}, 2, []string{"株価", "株式"}},
		{"latin initial", url.Values{"initial": {LatinInitial}}, 1, []string{"ETF"}},
		{"paged", url.Values{"limit": {"2"}, "offset": {"1"}}, 5, []string{"金利", "ETF"}},
		{"offset past end", url.Values{"offset": {"10"}}, 5, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp listResponse
			if code := get(t, r, "/terms?"+tt.query.Encode(), &resp); code != http.StatusOK {
				t.Fatalf("status = %d", code)
			}
			if resp.Total != tt.wantTotal {
				t.Errorf("total = %d, want %d", resp.Total, tt.wantTotal)
			}
			if len(resp.Items) != len(tt.wantTerms) {
				t.Fatalf("items = %+v, want %v", resp.Items, tt.wantTerms)
			}
			for i, term := range tt.wantTerms {
				if resp.Items[i].Term != term {
					t.Errorf("item %d = %s, want %s", i, resp.Items[i].Term, term)
				}
			}
		})
	}
}

func TestListClampsLimit(t *testing.T) {
	var resp listResponse
	get(t, newRouter(), "/terms?limit=100000&offset=-3", &resp)
	if resp.Limit != defaultLimit || resp.Offset != 0 {
		t.Errorf("limit/offset = %d/%d, want %d/0", resp.Limit, resp.Offset, defaultLimit)
	}
}

func TestGetByTerm(t *testing.T) {
	r := newRouter()

	var e models.LedgerEntry
	if code := get(t, r, "/terms/"+url.PathEscape("金利"), &e); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if e != fixture[1] {
		t.Errorf("got %+v, want %+v", e, fixture[1])
	}

	if code := get(t, r, "/terms/"+url.PathEscape("存在しない"), nil); code != http.StatusNotFound {
		t.Errorf("missing term status = %d, want 404", code)
	}
}

func TestInitials(t *testing.T) {
	var resp struct {
		Items []InitialCount `json:"items"`
	}
	get(t, newRouter(), "/initials", &resp)

	want := []InitialCount{{"か", 2}, {"き", 1}, {LatinInitial, 1}, {"", 1}}
	if len(resp.Items) != len(want) {
		t.Fatalf("items = %+v, want %+v", resp.Items, want)
	}
	for i := range want {
		if resp.Items[i] != want[i] {
			t.Errorf("item %d = %+v, want %+v", i, resp.Items[i], want[i])
		}
	}
}

type brokenLedger struct{}

func (brokenLedger) ReadAll(ctx context.Context) ([]models.LedgerEntry, error) {
	return nil, ledger.ErrStoreRead
}

func (brokenLedger) Append(ctx context.Context, rows []models.LedgerEntry) error { return nil }

func TestLedgerFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(NewRepo(brokenLedger{}))
	r := gin.New()
	h.RegisterRoutes(r.Group("/terms"))
	r.GET("/initials", h.Initials)

	for _, path := range []string{"/terms", "/terms/x", "/initials"} {
		if code := get(t, r, path, nil); code != http.StatusInternalServerError {
			t.Errorf("%s status = %d, want 500", path, code)
		}
	}
}
