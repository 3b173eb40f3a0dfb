package ledger

import (
	"context"
	"sync"

	"glossync/pkg/models"
)

// Memory is a process-local ledger, used for dry runs and tests.
type Memory struct {
	mu      sync.RWMutex
	entries []models.LedgerEntry
}

// NewMemory returns a ledger pre-filled with entries.
func NewMemory(entries ...models.LedgerEntry) *Memory {
	return &Memory{entries: append([]models.LedgerEntry(nil), entries...)}
}

func (m *Memory) ReadAll(ctx context.Context) ([]models.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.LedgerEntry(nil), m.entries...), nil
}

func (m *Memory) Append(ctx context.Context, entries []models.LedgerEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entries...)
	return nil
}

// Len reports the number of stored rows.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
