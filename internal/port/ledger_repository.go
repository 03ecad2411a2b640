package port

import (
	"context"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

type LedgerRepository interface {
	// LoadLogs returns the ledger in append order
	LoadLogs(ctx context.Context) ([]domain.LedgerEntry, error)

	// AppendLog adds a single entry at the end of the ledger
	AppendLog(ctx context.Context, entry domain.LedgerEntry) error
}
