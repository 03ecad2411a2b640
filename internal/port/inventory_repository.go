package port

import (
	"context"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

type InventoryRepository interface {
	// LoadInventory returns every stock row in a stable order
	LoadInventory(ctx context.Context) ([]domain.StockEntry, error)

	// SaveInventory replaces the whole table; either all rows are written or none
	SaveInventory(ctx context.Context, entries []domain.StockEntry) error
}
