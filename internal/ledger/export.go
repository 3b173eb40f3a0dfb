package ledger

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"glossync/pkg/models"
)

// CSVHeader is the column order of CSV exports.
var CSVHeader = []string{"initial", "term", "reading", "definition"}

// WriteCSV writes entries with a header row.
func WriteCSV(w io.Writer, entries []models.LedgerEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, e := range entries {
		if err := cw.Write(e.Row()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV reads entries written by WriteCSV. Columns are matched by header
// name, so reordered or extra columns are fine. A file without a "term"
// column is rejected; rows with an empty term are skipped.
func ReadCSV(r io.Reader) ([]models.LedgerEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(head))
	for i, name := range head {
		col[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	if _, ok := col["term"]; !ok {
		return nil, errors.New(`csv has no "term" column`)
	}

	// the term is the dedup key and stays byte-for-byte as exported
	rawAt := func(row []string, key string) string {
		idx, ok := col[key]
		if !ok || idx >= len(row) {
			return ""
		}
		return row[idx]
	}
	valueAt := func(row []string, key string) string {
		return strings.TrimSpace(rawAt(row, key))
	}

	var out []models.LedgerEntry
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		e := models.LedgerEntry{
			Initial:    valueAt(row, "initial"),
			Term:       rawAt(row, "term"),
			Reading:    valueAt(row, "reading"),
			Definition: valueAt(row, "definition"),
		}
		if strings.TrimSpace(e.Term) == "" {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// WriteGlossaryJSON writes the array the glossary site loads as
// glossary.json.
func WriteGlossaryJSON(w io.Writer, entries []models.LedgerEntry) error {
	if entries == nil {
		entries = []models.LedgerEntry{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}
