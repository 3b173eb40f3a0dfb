// Package ledger stores canonical glossary rows. Rows are only ever
// appended; nothing in glossync updates or deletes them.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"glossync/internal/config"
	"glossync/internal/credentials"
	"glossync/pkg/database"
	"glossync/pkg/models"
)

var (
	ErrStoreRead  = errors.New("ledger read failed")
	ErrStoreWrite = errors.New("ledger write failed")
)

// Ledger is the persistent table of (initial, term, reading, definition)
// rows.
type Ledger interface {
	// ReadAll returns every row in insertion order.
	ReadAll(ctx context.Context) ([]models.LedgerEntry, error)
	// Append adds rows as one operation. Either all rows land or the
	// error wraps ErrStoreWrite.
	Append(ctx context.Context, rows []models.LedgerEntry) error
}

// Terms returns the set of headwords already present in the ledger.
func Terms(ctx context.Context, l Ledger) (map[string]struct{}, error) {
	rows, err := l.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		set[r.Term] = struct{}{}
	}
	return set, nil
}

// Open builds the ledger selected by cfg. The returned close func releases
// whatever the backend holds. For the sheets backend a missing credential
// is reported as credentials.ErrCredentialMissing.
func Open(ctx context.Context, cfg *config.Config) (Ledger, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Ledger.Backend {
	case config.BackendMemory:
		return NewMemory(), noop, nil

	case config.BackendSheets:
		creds, err := credentials.Resolve(credentials.FromConfig(cfg.Credentials)...)
		if err != nil {
			return nil, nil, err
		}
		s, err := ConnectSheets(ctx, creds, cfg.Ledger.SpreadsheetID, cfg.Ledger.SheetName)
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil

	case config.BackendSQLite, "":
		dbCfg := database.DefaultConfig()
		if cfg.Ledger.SQLitePath != "" {
			dbCfg.Path = cfg.Ledger.SQLitePath
		}
		db, err := database.Open(dbCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrStoreRead, err)
		}
		if err := database.Migrate(db); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("%w: %v", ErrStoreRead, err)
		}
		return NewSQLite(db), db.Close, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.Ledger.Backend)
	}
}
