package port

import (
	"context"
	"time"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

type CacheRepository interface {
	// GetInventory returns the cached table, ok is false on a miss
	GetInventory(ctx context.Context) (entries []domain.StockEntry, ok bool, err error)

	// SetInventory caches the table for ttl
	SetInventory(ctx context.Context, entries []domain.StockEntry, ttl time.Duration) error

	// GetLogs returns the cached ledger, ok is false on a miss
	GetLogs(ctx context.Context) (entries []domain.LedgerEntry, ok bool, err error)

	// SetLogs caches the ledger for ttl
	SetLogs(ctx context.Context, entries []domain.LedgerEntry, ttl time.Duration) error

	// DeleteLogs drops the cached ledger only
	DeleteLogs(ctx context.Context) error

	// Clear drops every cached snapshot
	Clear(ctx context.Context) error
}
