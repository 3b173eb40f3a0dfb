package ledger

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"glossync/pkg/models"
)

// Sheets keeps the ledger in one worksheet of a Google spreadsheet,
// columns A to D.
type Sheets struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetName     string
}

// ConnectSheets authenticates with a service-account key and returns the
// ledger for the named worksheet. Extra options are passed to the client.
func ConnectSheets(ctx context.Context, creds []byte, spreadsheetID, sheetName string, opts ...option.ClientOption) (*Sheets, error) {
	opts = append([]option.ClientOption{
		option.WithCredentialsJSON(creds),
		option.WithScopes(sheets.SpreadsheetsScope),
	}, opts...)

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: sheets client: %v", ErrStoreRead, err)
	}
	return NewSheets(svc, spreadsheetID, sheetName), nil
}

// NewSheets wraps an existing client.
func NewSheets(svc *sheets.Service, spreadsheetID, sheetName string) *Sheets {
	return &Sheets{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}
}

// columns returns the A1 range covering the ledger columns, e.g. 'シート1'!A:D.
func (s *Sheets) columns() string {
	return "'" + strings.ReplaceAll(s.sheetName, "'", "''") + "'!A:D"
}

func (s *Sheets) ReadAll(ctx context.Context) ([]models.LedgerEntry, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.columns()).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", ErrStoreRead, s.columns(), err)
	}

	out := make([]models.LedgerEntry, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, len(raw))
		for i, cell := range raw {
			row[i] = fmt.Sprint(cell)
		}
		if e, ok := models.EntryFromRow(row); ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// Append adds all rows below the last used row in one request.
func (s *Sheets) Append(ctx context.Context, entries []models.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}

	values := make([][]interface{}, 0, len(entries))
	for _, e := range entries {
		values = append(values, []interface{}{e.Initial, e.Term, e.Reading, e.Definition})
	}

	_, err := s.svc.Spreadsheets.Values.
		Append(s.spreadsheetID, s.columns(), &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("%w: append %d rows: %v", ErrStoreWrite, len(entries), err)
	}
	return nil
}
