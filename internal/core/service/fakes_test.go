package service

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

var errBackendDown = errors.New("backend down")

// fakeRepo is an in-memory backend whose reads and writes can be made to fail.
type fakeRepo struct {
	mu         sync.Mutex
	inventory  []domain.StockEntry
	logs       []domain.LedgerEntry
	saves      int
	failLoad   bool
	failLogs   bool
	failSave   bool
	failAppend bool
}

func (f *fakeRepo) LoadInventory(ctx context.Context) ([]domain.StockEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failLoad {
		return nil, errBackendDown
	}
	return slices.Clone(f.inventory), nil
}

func (f *fakeRepo) SaveInventory(ctx context.Context, entries []domain.StockEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return errBackendDown
	}
	f.saves++
	f.inventory = slices.Clone(entries)
	return nil
}

func (f *fakeRepo) LoadLogs(ctx context.Context) ([]domain.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failLoad || f.failLogs {
		return nil, errBackendDown
	}
	return slices.Clone(f.logs), nil
}

func (f *fakeRepo) AppendLog(ctx context.Context, entry domain.LedgerEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAppend {
		return errBackendDown
	}
	f.logs = append(f.logs, entry)
	return nil
}

func (f *fakeRepo) set(fn func(*fakeRepo)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

// clock hands out a fixed time that tests move forward explicitly.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(t time.Time) *clock {
	return &clock{t: t}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type countingMetrics struct {
	mu         sync.Mutex
	operations map[string]int
	units      map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{operations: map[string]int{}, units: map[string]int{}}
}

func (m *countingMetrics) RecordOperation(action, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operations[action+"/"+outcome]++
}

func (m *countingMetrics) RecordQuantity(action string, quantity int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.units[action] += quantity
}

// failingLocker refuses every lock.
type failingLocker struct{}

func (failingLocker) Lock(ctx context.Context, key string) (func(), error) {
	return nil, errors.New("lock unavailable")
}
