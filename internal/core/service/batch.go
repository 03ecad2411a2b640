package service

import (
	"context"
	"errors"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

// ItemQuantity is one line of a batch. Category is only used by adds.
type ItemQuantity struct {
	Item     string
	Category string
	Quantity int
}

type ItemResult struct {
	Item  string
	Entry *domain.LedgerEntry
	Err   error
}

// OK reports whether the line was committed and persisted.
func (r ItemResult) OK() bool {
	return r.Err == nil
}

type BatchResult []ItemResult

func (b BatchResult) Succeeded() []ItemResult {
	var out []ItemResult
	for _, r := range b {
		if r.OK() {
			out = append(out, r)
		}
	}
	return out
}

func (b BatchResult) Failed() []ItemResult {
	var out []ItemResult
	for _, r := range b {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// AddBatch adds every line at location. Lines are independent: a duplicate
// or invalid line does not stop the others.
func (s *InventoryService) AddBatch(ctx context.Context, location string, lines []ItemQuantity) BatchResult {
	return runBatch(ctx, lines, func(line ItemQuantity) (domain.LedgerEntry, error) {
		return s.addItem(ctx, location, line)
	})
}

func (s *InventoryService) PurchaseBatch(ctx context.Context, location string, lines []ItemQuantity) BatchResult {
	return runBatch(ctx, lines, func(line ItemQuantity) (domain.LedgerEntry, error) {
		return s.Purchase(ctx, line.Item, location, line.Quantity)
	})
}

func (s *InventoryService) MoveBatch(ctx context.Context, from, to string, lines []ItemQuantity) BatchResult {
	return runBatch(ctx, lines, func(line ItemQuantity) (domain.LedgerEntry, error) {
		return s.Move(ctx, line.Item, from, to, line.Quantity)
	})
}

// runBatch keeps going past business errors but stops at the first failure of
// the backend or the context; the remaining lines get domain.ErrBatchAborted.
func runBatch(ctx context.Context, lines []ItemQuantity, apply func(ItemQuantity) (domain.LedgerEntry, error)) BatchResult {
	results := make(BatchResult, 0, len(lines))
	aborted := false
	for _, line := range lines {
		if aborted {
			results = append(results, ItemResult{Item: line.Item, Err: domain.ErrBatchAborted})
			continue
		}

		entry, err := apply(line)
		result := ItemResult{Item: line.Item, Err: err}
		if entry.ID != "" {
			result.Entry = &entry
		}
		results = append(results, result)

		if isInfrastructureError(err) || ctx.Err() != nil {
			aborted = true
		}
	}
	return results
}

// isInfrastructureError is true for anything that is not a rejection of the
// line itself: backend writes, loads, lock acquisition, cancellation.
func isInfrastructureError(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, domain.ErrValidation) &&
		!errors.Is(err, domain.ErrDuplicateItem) &&
		!errors.Is(err, domain.ErrInsufficientStock) &&
		!errors.Is(err, domain.ErrNotFound)
}
