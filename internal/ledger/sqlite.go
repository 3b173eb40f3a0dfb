package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"glossync/pkg/models"
)

// SQLite keeps the ledger in the local terms table.
type SQLite struct {
	db *sql.DB
}

// NewSQLite wraps an open, migrated database.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

func (s *SQLite) ReadAll(ctx context.Context) ([]models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT initial, term, reading, definition
		FROM terms
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: query terms: %v", ErrStoreRead, err)
	}
	defer rows.Close()

	var out []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.Initial, &e.Term, &e.Reading, &e.Definition); err != nil {
			return nil, fmt.Errorf("%w: scan term: %v", ErrStoreRead, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreRead, err)
	}
	return out, nil
}

// Append inserts all rows in a single transaction.
func (s *SQLite) Append(ctx context.Context, entries []models.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", ErrStoreWrite, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO terms (initial, term, reading, definition)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("%w: prepare stmt: %v", ErrStoreWrite, err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.Initial, e.Term, e.Reading, e.Definition); err != nil {
			return fmt.Errorf("%w: insert %s: %v", ErrStoreWrite, e.Term, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx: %v", ErrStoreWrite, err)
	}
	return nil
}
