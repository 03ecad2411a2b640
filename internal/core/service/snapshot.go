package service

import (
	"iter"
	"strings"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

// Filter narrows a query. Search matches item name or category as a
// case-insensitive substring; Location, when set, must match exactly (ignoring case).
type Filter struct {
	Search   string
	Location string
}

func (f Filter) match(e domain.StockEntry) bool {
	if f.Location != "" && !strings.EqualFold(f.Location, e.Location) {
		return false
	}
	return e.Matches(strings.TrimSpace(f.Search))
}

// Snapshot is a copy of the table taken at query time. It can be iterated any
// number of times and never observes later mutations.
type Snapshot struct {
	rows   []domain.StockEntry
	filter Filter
}

func (s Snapshot) All() iter.Seq[domain.StockEntry] {
	return func(yield func(domain.StockEntry) bool) {
		for _, row := range s.rows {
			if !s.filter.match(row) {
				continue
			}
			if !yield(row) {
				return
			}
		}
	}
}

// Rows materializes the filtered view. The result is never nil.
func (s Snapshot) Rows() []domain.StockEntry {
	out := make([]domain.StockEntry, 0, len(s.rows))
	for row := range s.All() {
		out = append(out, row)
	}
	return out
}

func (s Snapshot) Len() int {
	n := 0
	for range s.All() {
		n++
	}
	return n
}

// TotalStock sums the current stock of item over every location in the view.
func (s Snapshot) TotalStock(item string) int {
	total := 0
	for row := range s.All() {
		if row.Item == item {
			total += row.CurrentStock
		}
	}
	return total
}
