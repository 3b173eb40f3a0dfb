package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/mattn/go-runewidth"

	"glossync/internal/auth"
	"glossync/internal/terms"
	"glossync/pkg/models"
	"glossync/pkg/utils"
)

const defaultBaseURL = "http://localhost:8080"

type tokenData struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type termListResponse struct {
	Total  int                  `json:"total"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
	Items  []models.LedgerEntry `json:"items"`
}

func main() {
	_ = godotenv.Load()

	global := flag.NewFlagSet("glossync", flag.ExitOnError)
	baseURL := global.String("api", defaultBaseURL, "API base URL")
	tokenPath := global.String("token", defaultTokenPath(), "token file path")
	if err := global.Parse(os.Args[1:]); err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	args := global.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()
	cmd := args[0]
	sub := ""
	rest := []string{}
	if len(args) > 1 {
		sub = args[1]
		rest = args[2:]
	}

	client := &http.Client{Timeout: 15 * time.Second}

	switch cmd {
	case "token":
		handleToken(*tokenPath, sub, rest)
	case "terms":
		handleTerms(ctx, client, *baseURL, sub, rest)
	case "sync":
		handleSync(ctx, client, *baseURL, *tokenPath, sub, rest)
	default:
		printUsage()
		os.Exit(1)
	}
}

func handleToken(tokenPath, sub string, args []string) {
	switch sub {
	case "issue":
		fs := flag.NewFlagSet("token issue", flag.ExitOnError)
		subject := fs.String("subject", "", "who the token is for")
		role := fs.String("role", auth.RoleAdmin, "token role (admin|reader)")
		_ = fs.Parse(args)
		if *subject == "" {
			log.Fatal("subject is required")
		}

		// signs with the server's secret, so GLOSSYNC_JWT_SECRET must match
		tokens := auth.NewTokenService(utils.LoadAuthConfig())
		tok, exp, err := tokens.Sign(*subject, *role)
		if err != nil {
			log.Fatalf("issue token: %v", err)
		}
		if err := saveToken(tokenPath, tokenData{Token: tok, ExpiresAt: exp}); err != nil {
			log.Fatalf("save token: %v", err)
		}
		fmt.Printf("token for %s (%s) saved to %s, expires %s\n", *subject, *role, tokenPath, exp.Format(time.RFC3339))
	case "clear":
		if err := clearToken(tokenPath); err != nil {
			log.Fatalf("clear token: %v", err)
		}
		fmt.Println("token removed")
	default:
		log.Fatal("usage: glossync token <issue|clear>")
	}
}

func handleTerms(ctx context.Context, client *http.Client, baseURL, sub string, args []string) {
	switch sub {
	case "search":
		fs := flag.NewFlagSet("terms search", flag.ExitOnError)
		query := fs.String("q", "", "keyword in term, reading or definition")
		initial := fs.String("initial", "", "initial kana, or "+terms.LatinInitial)
		limit := fs.Int("limit", 20, "page size")
		offset := fs.Int("offset", 0, "offset")
		asJSON := fs.Bool("json", false, "print raw JSON")
		_ = fs.Parse(args)

		u, err := url.Parse(baseURL + "/terms")
		if err != nil {
			log.Fatalf("invalid base url: %v", err)
		}
		qv := u.Query()
		if *query != "" {
			qv.Set("q", *query)
		}
		if *initial != "" {
			qv.Set("initial", *initial)
		}
		qv.Set("limit", strconv.Itoa(*limit))
		qv.Set("offset", strconv.Itoa(*offset))
		u.RawQuery = qv.Encode()

		var resp termListResponse
		if err := doJSON(ctx, client, http.MethodGet, u.String(), "", nil, &resp); err != nil {
			log.Fatalf("search failed: %v", err)
		}
		if *asJSON {
			printJSON(resp)
			return
		}
		printTermTable(os.Stdout, resp.Items)
		fmt.Printf("%d-%d of %d\n", min(resp.Offset+1, resp.Total), resp.Offset+len(resp.Items), resp.Total)
	case "show":
		fs := flag.NewFlagSet("terms show", flag.ExitOnError)
		term := fs.String("term", "", "headword")
		_ = fs.Parse(args)
		if *term == "" && fs.NArg() > 0 {
			*term = fs.Arg(0)
		}
		if *term == "" {
			log.Fatal("term is required")
		}

		var e models.LedgerEntry
		if err := doJSON(ctx, client, http.MethodGet, baseURL+"/terms/"+url.PathEscape(*term), "", nil, &e); err != nil {
			log.Fatalf("show failed: %v", err)
		}
		fmt.Printf("%s（%s）  [%s]\n\n%s\n", e.Term, e.Reading, e.Initial, e.Definition)
	case "initials":
		var resp struct {
			Items []terms.InitialCount `json:"items"`
		}
		if err := doJSON(ctx, client, http.MethodGet, baseURL+"/initials", "", nil, &resp); err != nil {
			log.Fatalf("initials failed: %v", err)
		}
		for _, ic := range resp.Items {
			label := ic.Initial
			if label == "" {
				label = "-"
			}
			fmt.Printf("%s %5d\n", runewidth.FillRight(label, 4), ic.Count)
		}
	default:
		log.Fatal("usage: glossync terms <search|show|initials>")
	}
}

func handleSync(ctx context.Context, client *http.Client, baseURL, tokenPath, sub string, args []string) {
	switch sub {
	case "trigger":
		token := mustToken(tokenPath)
		var resp struct {
			RunID string `json:"run_id"`
		}
		if err := doJSON(ctx, client, http.MethodPost, baseURL+"/sync", token, nil, &resp); err != nil {
			log.Fatalf("trigger failed: %v", err)
		}
		fmt.Printf("sync %s started\n", resp.RunID)
	case "status":
		var st map[string]any
		if err := doJSON(ctx, client, http.MethodGet, baseURL+"/sync/status", "", nil, &st); err != nil {
			log.Fatalf("status failed: %v", err)
		}
		printJSON(st)
	case "watch":
		fs := flag.NewFlagSet("sync watch", flag.ExitOnError)
		raw := fs.Bool("raw", false, "print events as received")
		_ = fs.Parse(args)
		watch(baseURL, *raw)
	default:
		log.Fatal("usage: glossync sync <trigger|status|watch>")
	}
}

// watch prints hub events from the websocket endpoint until interrupted.
func watch(baseURL string, raw bool) {
	wsURL, err := websocketURL(baseURL, "/ws")
	if err != nil {
		log.Fatalf("invalid base url: %v", err)
	}
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		log.Fatalf("connect %s: %v", wsURL, err)
	}
	defer ws.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = ws.Close()
	}()

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if raw {
			fmt.Print(string(msg))
			continue
		}

		var ev struct {
			Type      string    `json:"type"`
			RunID     string    `json:"run_id"`
			Count     int       `json:"count"`
			Terms     []string  `json:"terms"`
			Collected int       `json:"collected"`
			Appended  int       `json:"appended"`
			Skipped   string    `json:"skipped"`
			Error     string    `json:"error"`
			At        time.Time `json:"at"`
		}
		if err := json.Unmarshal(msg, &ev); err != nil {
			fmt.Print(string(msg))
			continue
		}
		switch ev.Type {
		case "terms.appended":
			fmt.Printf("[%s] +%d: %s\n", ev.At.Format(time.TimeOnly), ev.Count, strings.Join(ev.Terms, "、"))
		case "sync.finished":
			line := fmt.Sprintf("[%s] sync %s: collected %d, appended %d", ev.At.Format(time.TimeOnly), ev.RunID, ev.Collected, ev.Appended)
			if ev.Skipped != "" {
				line += " (skipped: " + ev.Skipped + ")"
			}
			if ev.Error != "" {
				line += " error: " + ev.Error
			}
			fmt.Println(line)
		default:
			fmt.Printf("%s\n", strings.TrimSpace(string(msg)))
		}
	}
}

const (
	termWidth       = 20
	readingWidth    = 16
	definitionWidth = 60
)

// printTermTable aligns columns by display width, since kana and kanji
// take two cells each.
func printTermTable(w io.Writer, entries []models.LedgerEntry) {
	cell := func(s string, width int) string {
		return runewidth.FillRight(runewidth.Truncate(s, width, "…"), width)
	}
	fmt.Fprintf(w, "%s  %s  %s\n", cell("TERM", termWidth), cell("READING", readingWidth), "DEFINITION")
	for _, e := range entries {
		fmt.Fprintf(w, "%s  %s  %s\n",
			cell(e.Term, termWidth),
			cell(e.Reading, readingWidth),
			runewidth.Truncate(e.Definition, definitionWidth, "…"),
		)
	}
}

func doJSON(ctx context.Context, client *http.Client, method, endpoint, token string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = strings.NewReader(string(b))
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %d %s", method, endpoint, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("json: %v", err)
	}
	fmt.Println(string(b))
}

func defaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./.glossync-token.json"
	}
	return filepath.Join(home, ".glossync", "token.json")
}

func saveToken(path string, td tokenData) error {
	if td.Token == "" {
		return errors.New("empty token")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(td, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func mustToken(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("token not found, run `glossync token issue` first: %v", err)
	}
	var td tokenData
	if err := json.Unmarshal(data, &td); err != nil {
		log.Fatalf("read token: %v", err)
	}
	if strings.TrimSpace(td.Token) == "" {
		log.Fatal("token empty, run `glossync token issue` first")
	}
	if !td.ExpiresAt.IsZero() && time.Now().After(td.ExpiresAt) {
		log.Fatal("token expired, run `glossync token issue` again")
	}
	return strings.TrimSpace(td.Token)
}

func clearToken(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func websocketURL(baseURL, path string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	return (&url.URL{
		Scheme: scheme,
		Host:   u.Host,
		Path:   path,
	}).String(), nil
}

func printUsage() {
	fmt.Println("glossync [-api URL] [-token PATH] <command> [subcommand] [flags]")
	fmt.Println("commands:")
	fmt.Println("  token issue|clear")
	fmt.Println("  terms search|show|initials")
	fmt.Println("  sync trigger|status|watch")
}
