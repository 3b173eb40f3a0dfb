package models

// SourceID tags which collector produced a raw term.
type SourceID string

const (
	SourceSMBC    SourceID = "smbc"
	SourceOkasan  SourceID = "okasan"
	SourceRakuten SourceID = "rakuten"
)

// RawTerm is a glossary entry as a collector extracted it from one site.
// Term is never empty; Reading and Definition may be.
type RawTerm struct {
	Term       string   `json:"term"`
	Reading    string   `json:"reading"`
	Definition string   `json:"definition"`
	Source     SourceID `json:"source"`
}

// CanonicalTerm is the normalized form that gets written to the ledger.
type CanonicalTerm struct {
	Initial    string `json:"initial"`    // first character of Reading, or ""
	Term       string `json:"term"`       // carried over from RawTerm
	Reading    string `json:"reading"`    // carried over from RawTerm
	Definition string `json:"definition"` // rephrased and truncated
}

// LedgerEntry is one row of the persistent ledger:
// (initial, term, reading, rephrased_definition).
type LedgerEntry CanonicalTerm

// Row returns the entry in ledger column order.
func (e LedgerEntry) Row() []string {
	return []string{e.Initial, e.Term, e.Reading, e.Definition}
}

// EntryFromRow maps a ledger row back into an entry. Rows with fewer than
// two cells carry no term and are reported as !ok.
func EntryFromRow(row []string) (LedgerEntry, bool) {
	if len(row) < 2 {
		return LedgerEntry{}, false
	}
	cell := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}
	return LedgerEntry{
		Initial:    cell(0),
		Term:       cell(1),
		Reading:    cell(2),
		Definition: cell(3),
	}, true
}
