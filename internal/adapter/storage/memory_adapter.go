package storage

import (
	"context"
	"slices"
	"sync"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

// MemoryAdapter keeps both tables in process memory. It backs tests and the
// "memory" storage driver.
type MemoryAdapter struct {
	mu        sync.Mutex
	inventory []domain.StockEntry
	logs      []domain.LedgerEntry
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{}
}

func (m *MemoryAdapter) LoadInventory(ctx context.Context) ([]domain.StockEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.inventory), nil
}

func (m *MemoryAdapter) SaveInventory(ctx context.Context, entries []domain.StockEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inventory = slices.Clone(entries)
	return nil
}

func (m *MemoryAdapter) LoadLogs(ctx context.Context) ([]domain.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.logs), nil
}

func (m *MemoryAdapter) AppendLog(ctx context.Context, entry domain.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, entry)
	return nil
}
