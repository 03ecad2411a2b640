package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

// Ledger is the append-only history of stock mutations. Entries are only
// written by InventoryService operations and by RecordNote.
type Ledger struct {
	repo     port.LedgerRepository
	location *time.Location
	now      func() time.Time

	mu      sync.RWMutex
	entries []domain.LedgerEntry
	// pending holds entries committed in memory whose AppendLog has not succeeded yet.
	pending []domain.LedgerEntry
}

func NewLedger(repo port.LedgerRepository, location *time.Location, now func() time.Time) *Ledger {
	if location == nil {
		location = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Ledger{repo: repo, location: location, now: now}
}

// Load replaces the in-memory history with the repository's.
func (l *Ledger) Load(ctx context.Context) error {
	if l.repo == nil {
		return nil
	}
	entries, err := l.repo.LoadLogs(ctx)
	if err != nil {
		return fmt.Errorf("%w: logs: %v", domain.ErrLoad, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = slices.Clone(entries)
	l.pending = nil
	return nil
}

// newEntry stamps id and timestamp; it does not append.
func (l *Ledger) newEntry(entry domain.LedgerEntry) domain.LedgerEntry {
	entry.ID = uuid.New().String()
	entry.Timestamp = l.now()
	return entry
}

// append commits the entry in memory and writes it, together with anything
// still pending, to the repository.
func (l *Ledger) append(ctx context.Context, entry domain.LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, entry)
	l.pending = append(l.pending, entry)
	return l.flushLocked(ctx)
}

func (l *Ledger) flushLocked(ctx context.Context) error {
	if l.repo == nil {
		l.pending = nil
		return nil
	}
	for len(l.pending) > 0 {
		if err := l.repo.AppendLog(ctx, l.pending[0]); err != nil {
			return fmt.Errorf("%w: log %s: %v", domain.ErrPersistenceWrite, l.pending[0].ID, err)
		}
		l.pending = l.pending[1:]
	}
	l.pending = nil
	return nil
}

// Flush writes entries left over from earlier failed appends.
func (l *Ledger) Flush(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flushLocked(ctx)
}

// Pending reports how many committed entries are not yet durable.
func (l *Ledger) Pending() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.pending)
}

// RecordNote appends a log-only DELETE entry carrying free text, for
// corrections made outside the store (e.g. a row removed in the spreadsheet).
func (l *Ledger) RecordNote(ctx context.Context, item, detail string) (domain.LedgerEntry, error) {
	item = strings.TrimSpace(item)
	detail = strings.TrimSpace(detail)
	if item == "" {
		return domain.LedgerEntry{}, fmt.Errorf("%w: item name is required", domain.ErrValidation)
	}
	if detail == "" {
		return domain.LedgerEntry{}, fmt.Errorf("%w: note detail is required", domain.ErrValidation)
	}

	entry := l.newEntry(domain.LedgerEntry{
		Action: domain.ActionDelete,
		Item:   item,
		Detail: detail,
	})
	return entry, l.append(ctx, entry)
}

// Entries returns a copy of the history in append order.
func (l *Ledger) Entries() []domain.LedgerEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.entries)
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// QueryByDate returns every entry whose local calendar date equals date.
func (l *Ledger) QueryByDate(date domain.Date) []domain.LedgerEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.LedgerEntry, 0)
	for _, e := range l.entries {
		if domain.DateOf(e.Timestamp.In(l.location)) == date {
			out = append(out, e)
		}
	}
	return out
}

// AggregateDaily groups movement entries by calendar day in ascending order.
// Days without movement are absent.
func (l *Ledger) AggregateDaily(metric domain.Metric) []domain.DailyTotal {
	totals := make(map[domain.Date]int)
	l.eachMovement(func(e domain.LedgerEntry) {
		totals[domain.DateOf(e.Timestamp.In(l.location))] += metric.Value(e)
	})

	out := make([]domain.DailyTotal, 0, len(totals))
	for d, total := range totals {
		out = append(out, domain.DailyTotal{Date: d, Total: total})
	}
	slices.SortFunc(out, func(a, b domain.DailyTotal) int {
		switch {
		case a.Date.Before(b.Date):
			return -1
		case b.Date.Before(a.Date):
			return 1
		}
		return 0
	})
	return out
}

// AggregateMonthly groups movement entries by year and month in ascending order.
func (l *Ledger) AggregateMonthly(metric domain.Metric) []domain.MonthlyTotal {
	totals := make(map[domain.YearMonth]int)
	l.eachMovement(func(e domain.LedgerEntry) {
		totals[domain.YearMonthOf(e.Timestamp.In(l.location))] += metric.Value(e)
	})

	out := make([]domain.MonthlyTotal, 0, len(totals))
	for m, total := range totals {
		out = append(out, domain.MonthlyTotal{Month: m, Total: total})
	}
	slices.SortFunc(out, func(a, b domain.MonthlyTotal) int {
		switch {
		case a.Month.Before(b.Month):
			return -1
		case b.Month.Before(a.Month):
			return 1
		}
		return 0
	})
	return out
}

// AggregateByItem groups movement entries by item across all time, sorted by item name.
func (l *Ledger) AggregateByItem(metric domain.Metric) []domain.ItemTotal {
	totals := make(map[string]int)
	l.eachMovement(func(e domain.LedgerEntry) {
		totals[e.Item] += metric.Value(e)
	})

	out := make([]domain.ItemTotal, 0, len(totals))
	for item, total := range totals {
		out = append(out, domain.ItemTotal{Item: item, Total: total})
	}
	slices.SortFunc(out, func(a, b domain.ItemTotal) int {
		return strings.Compare(a.Item, b.Item)
	})
	return out
}

func (l *Ledger) eachMovement(fn func(domain.LedgerEntry)) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.entries {
		if e.Action.IsMovement() {
			fn(e)
		}
	}
}
