package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

const inventoryLockKey = "stockledger:inventory"

// InventoryService owns the (item, location) balances. Every mutation runs
// read-validate-write-append inside one locker section.
type InventoryService struct {
	repo      port.InventoryRepository
	ledger    *Ledger
	locker    port.Locker
	metrics   port.MetricsRecorder
	logger    logrus.FieldLogger
	locations []string
	// reloadOnLock re-reads the table inside the lock when other processes write the same backend.
	reloadOnLock bool

	mu    sync.RWMutex
	rows  []domain.StockEntry
	index map[domain.StockKey]int
	// dirty is set while the backend holds an older table than rows.
	dirty bool
	// loadErr keeps the last failed Load; writes are refused until a Load succeeds.
	loadErr error
}

type Option func(*InventoryService)

func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *InventoryService) { s.logger = logger }
}

func WithMetrics(metrics port.MetricsRecorder) Option {
	return func(s *InventoryService) { s.metrics = metrics }
}

// WithLocations restricts which locations may hold stock. An empty list allows any.
func WithLocations(locations ...string) Option {
	return func(s *InventoryService) { s.locations = slices.Clone(locations) }
}

func WithLocker(locker port.Locker) Option {
	return func(s *InventoryService) { s.locker = locker }
}

// WithSharedBackend is for several processes writing one backend: the locker
// must be shared between them and the table is reloaded on every mutation.
func WithSharedBackend(locker port.Locker) Option {
	return func(s *InventoryService) {
		s.locker = locker
		s.reloadOnLock = true
	}
}

func NewInventoryService(repo port.InventoryRepository, ledger *Ledger, opts ...Option) *InventoryService {
	s := &InventoryService{
		repo:    repo,
		ledger:  ledger,
		locker:  NewLocalLocker(),
		metrics: nopMetrics{},
		logger:  logrus.StandardLogger(),
		index:   make(map[domain.StockKey]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ledger == nil {
		s.ledger = NewLedger(nil, nil, nil)
	}
	return s
}

func (s *InventoryService) Ledger() *Ledger {
	return s.ledger
}

// Load reads the table and the ledger from the repositories and replaces the
// in-memory state only when both reads succeed. After a failed Load the service
// is read-only: every write retries Load first and fails with domain.ErrLoad,
// so a store that could not be read is never overwritten.
func (s *InventoryService) Load(ctx context.Context) error {
	err := s.load(ctx)
	s.mu.Lock()
	s.loadErr = err
	s.mu.Unlock()
	return err
}

func (s *InventoryService) load(ctx context.Context) error {
	if s.repo == nil {
		return s.ledger.Load(ctx)
	}
	rows, index, err := s.fetchInventory(ctx)
	if err != nil {
		return err
	}
	if err := s.ledger.Load(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.rows, s.index, s.dirty = rows, index, false
	s.mu.Unlock()
	return nil
}

func (s *InventoryService) fetchInventory(ctx context.Context) ([]domain.StockEntry, map[domain.StockKey]int, error) {
	entries, err := s.repo.LoadInventory(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: inventory: %v", domain.ErrLoad, err)
	}
	rows, index, err := buildTable(entries)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: inventory: %v", domain.ErrLoad, err)
	}
	return rows, index, nil
}

func buildTable(entries []domain.StockEntry) ([]domain.StockEntry, map[domain.StockKey]int, error) {
	rows := make([]domain.StockEntry, 0, len(entries))
	index := make(map[domain.StockKey]int, len(entries))
	for i, e := range entries {
		switch {
		case strings.TrimSpace(e.Item) == "" || strings.TrimSpace(e.Location) == "":
			return nil, nil, fmt.Errorf("row %d: item and location are required", i+1)
		case e.CurrentStock < 0 || e.InitialStock < 0:
			return nil, nil, fmt.Errorf("row %d: negative stock for %s at %s", i+1, e.Item, e.Location)
		}
		if _, dup := index[e.Key()]; dup {
			return nil, nil, fmt.Errorf("row %d: duplicate entry for %s at %s", i+1, e.Item, e.Location)
		}
		index[e.Key()] = len(rows)
		rows = append(rows, e)
	}
	return rows, index, nil
}

// SeedIfEmpty writes entries as the starting table when nothing is stocked yet.
// Seeding is not a movement and produces no ledger entries.
func (s *InventoryService) SeedIfEmpty(ctx context.Context, entries []domain.StockEntry) (bool, error) {
	unlock, err := s.locker.Lock(ctx, inventoryLockKey)
	if err != nil {
		return false, err
	}
	defer unlock()

	if err := s.prepare(ctx); err != nil {
		return false, err
	}

	s.mu.Lock()
	if len(s.rows) > 0 {
		s.mu.Unlock()
		return false, nil
	}
	rows, index, err := buildTable(entries)
	if err != nil {
		s.mu.Unlock()
		return false, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	s.rows, s.index = rows, index
	snapshot := slices.Clone(s.rows)
	s.mu.Unlock()

	err = s.save(ctx, snapshot)
	s.setDirty(err != nil)
	return true, err
}

// AddItem creates a new (item, location) with qty as both initial and current stock.
func (s *InventoryService) AddItem(ctx context.Context, item, location string, qty int) (domain.LedgerEntry, error) {
	return s.addItem(ctx, location, ItemQuantity{Item: item, Quantity: qty})
}

func (s *InventoryService) addItem(ctx context.Context, location string, line ItemQuantity) (domain.LedgerEntry, error) {
	return s.mutate(ctx, domain.ActionAdd, func() (domain.LedgerEntry, error) {
		item, err := normalizeItem(line.Item)
		if err != nil {
			return domain.LedgerEntry{}, err
		}
		loc, err := s.normalizeLocation(location)
		if err != nil {
			return domain.LedgerEntry{}, err
		}
		if err := checkQuantity(line.Quantity); err != nil {
			return domain.LedgerEntry{}, err
		}
		key := domain.StockKey{Item: item, Location: loc}
		if _, exists := s.index[key]; exists {
			return domain.LedgerEntry{}, fmt.Errorf("%w: %s at %s, purchase or move instead", domain.ErrDuplicateItem, item, loc)
		}

		s.insertLocked(domain.StockEntry{
			Item:         item,
			Location:     loc,
			Category:     strings.TrimSpace(line.Category),
			InitialStock: line.Quantity,
			CurrentStock: line.Quantity,
		})
		return domain.LedgerEntry{
			Action:        domain.ActionAdd,
			Item:          item,
			Quantity:      line.Quantity,
			ToLocation:    loc,
			PreviousCount: 0,
			FinalCount:    line.Quantity,
		}, nil
	})
}

// Purchase receives qty units at location. A missing (item, location) is
// created with zero initial stock.
func (s *InventoryService) Purchase(ctx context.Context, item, location string, qty int) (domain.LedgerEntry, error) {
	return s.mutate(ctx, domain.ActionPurchase, func() (domain.LedgerEntry, error) {
		item, err := normalizeItem(item)
		if err != nil {
			return domain.LedgerEntry{}, err
		}
		loc, err := s.normalizeLocation(location)
		if err != nil {
			return domain.LedgerEntry{}, err
		}
		if err := checkQuantity(qty); err != nil {
			return domain.LedgerEntry{}, err
		}

		key := domain.StockKey{Item: item, Location: loc}
		i, exists := s.index[key]
		if !exists {
			i = s.insertLocked(domain.StockEntry{Item: item, Location: loc})
		}
		previous := s.rows[i].CurrentStock
		if qty > math.MaxInt-previous {
			if !exists {
				s.removeLocked(key)
			}
			return domain.LedgerEntry{}, fmt.Errorf("%w: quantity overflows balance of %s at %s", domain.ErrValidation, item, loc)
		}
		s.rows[i].CurrentStock += qty

		return domain.LedgerEntry{
			Action:        domain.ActionPurchase,
			Item:          item,
			Quantity:      qty,
			ToLocation:    loc,
			PreviousCount: previous,
			FinalCount:    s.rows[i].CurrentStock,
		}, nil
	})
}

// Move transfers qty units of item between locations. The destination row is
// created when missing. Nothing changes when the source holds less than qty.
func (s *InventoryService) Move(ctx context.Context, item, from, to string, qty int) (domain.LedgerEntry, error) {
	return s.mutate(ctx, domain.ActionMove, func() (domain.LedgerEntry, error) {
		item, err := normalizeItem(item)
		if err != nil {
			return domain.LedgerEntry{}, err
		}
		src, err := s.normalizeLocation(from)
		if err != nil {
			return domain.LedgerEntry{}, err
		}
		dst, err := s.normalizeLocation(to)
		if err != nil {
			return domain.LedgerEntry{}, err
		}
		if err := checkQuantity(qty); err != nil {
			return domain.LedgerEntry{}, err
		}
		if src == dst {
			return domain.LedgerEntry{}, domain.ErrInvalidMove
		}

		srcKey := domain.StockKey{Item: item, Location: src}
		dstKey := domain.StockKey{Item: item, Location: dst}
		si, ok := s.index[srcKey]
		if !ok || s.rows[si].CurrentStock < qty {
			available := 0
			if ok {
				available = s.rows[si].CurrentStock
			}
			return domain.LedgerEntry{}, fmt.Errorf("%w: %s at %s has %d, need %d", domain.ErrInsufficientStock, item, src, available, qty)
		}
		if di, ok := s.index[dstKey]; ok && s.rows[di].CurrentStock > math.MaxInt-qty {
			return domain.LedgerEntry{}, fmt.Errorf("%w: quantity overflows balance of %s at %s", domain.ErrValidation, item, dst)
		}

		previous := s.rows[si].CurrentStock
		s.rows[si].CurrentStock -= qty
		final := s.rows[si].CurrentStock

		if di, ok := s.index[dstKey]; ok {
			s.rows[di].CurrentStock += qty
		} else {
			s.insertLocked(domain.StockEntry{
				Item:         item,
				Location:     dst,
				Category:     s.rows[si].Category,
				CurrentStock: qty,
			})
		}

		return domain.LedgerEntry{
			Action:        domain.ActionMove,
			Item:          item,
			Quantity:      qty,
			FromLocation:  src,
			ToLocation:    dst,
			PreviousCount: previous,
			FinalCount:    final,
		}, nil
	})
}

// Delete removes the (item, location) row and records the balance it held.
func (s *InventoryService) Delete(ctx context.Context, item, location string) (domain.LedgerEntry, error) {
	return s.mutate(ctx, domain.ActionDelete, func() (domain.LedgerEntry, error) {
		item, err := normalizeItem(item)
		if err != nil {
			return domain.LedgerEntry{}, err
		}
		loc := strings.TrimSpace(location)
		if loc == "" {
			return domain.LedgerEntry{}, fmt.Errorf("%w: location is required", domain.ErrValidation)
		}

		key := domain.StockKey{Item: item, Location: loc}
		i, ok := s.index[key]
		if !ok {
			return domain.LedgerEntry{}, fmt.Errorf("%w: %s at %s", domain.ErrNotFound, item, loc)
		}
		previous := s.rows[i].CurrentStock
		s.removeLocked(key)

		return domain.LedgerEntry{
			Action:        domain.ActionDelete,
			Item:          item,
			Quantity:      previous,
			PreviousCount: previous,
			FinalCount:    0,
			Detail:        "removed from " + loc,
		}, nil
	})
}

// mutate is the single critical section shared by every write. apply runs
// under the table lock, validates, changes the rows and describes the change.
func (s *InventoryService) mutate(ctx context.Context, action domain.Action, apply func() (domain.LedgerEntry, error)) (domain.LedgerEntry, error) {
	unlock, err := s.locker.Lock(ctx, inventoryLockKey)
	if err != nil {
		s.metrics.RecordOperation(string(action), "lock_error")
		return domain.LedgerEntry{}, fmt.Errorf("acquire inventory lock: %w", err)
	}
	defer unlock()

	if err := s.prepare(ctx); err != nil {
		outcome := "load_error"
		if errors.Is(err, domain.ErrPersistenceWrite) {
			outcome = "persist_error"
		}
		s.metrics.RecordOperation(string(action), outcome)
		return domain.LedgerEntry{}, err
	}

	s.mu.Lock()
	entry, err := apply()
	if err != nil {
		s.mu.Unlock()
		s.metrics.RecordOperation(string(action), "rejected")
		s.logger.WithFields(logrus.Fields{
			"action": action,
			"error":  err.Error(),
		}).Warn("inventory operation rejected")
		return domain.LedgerEntry{}, err
	}
	entry = s.ledger.newEntry(entry)
	snapshot := slices.Clone(s.rows)
	s.mu.Unlock()

	saveErr := s.save(ctx, snapshot)
	s.setDirty(saveErr != nil)
	appendErr := s.ledger.append(ctx, entry)

	fields := logrus.Fields{
		"action":   action,
		"item":     entry.Item,
		"quantity": entry.Quantity,
		"from":     entry.FromLocation,
		"to":       entry.ToLocation,
		"previous": entry.PreviousCount,
		"final":    entry.FinalCount,
	}
	if err := errors.Join(saveErr, appendErr); err != nil {
		s.metrics.RecordOperation(string(action), "persist_error")
		s.logger.WithFields(fields).WithError(err).Error("inventory change applied in memory but not persisted")
		return entry, err
	}

	s.metrics.RecordOperation(string(action), "ok")
	if action.IsMovement() {
		s.metrics.RecordQuantity(string(action), entry.Quantity)
	}
	s.logger.WithFields(fields).Info("inventory updated")
	return entry, nil
}

// prepare runs inside the locker section before a write. It retries a failed
// Load and, with a shared backend, brings the table up to date: a table that
// failed to save is written back, otherwise the backend's table is read.
func (s *InventoryService) prepare(ctx context.Context) error {
	s.mu.RLock()
	loadErr, dirty := s.loadErr, s.dirty
	snapshot := slices.Clone(s.rows)
	s.mu.RUnlock()

	switch {
	case loadErr != nil:
		if err := s.Load(ctx); err != nil {
			return fmt.Errorf("inventory is read-only until the backend loads: %w", err)
		}
		return nil
	case !s.reloadOnLock:
		return nil
	case dirty:
		if err := s.save(ctx, snapshot); err != nil {
			return err
		}
		s.setDirty(false)
		return nil
	}

	rows, index, err := s.fetchInventory(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.rows, s.index = rows, index
	s.mu.Unlock()
	if s.ledger.Pending() == 0 {
		return s.ledger.Load(ctx)
	}
	return nil
}

func (s *InventoryService) setDirty(dirty bool) {
	s.mu.Lock()
	s.dirty = dirty
	s.mu.Unlock()
}

func (s *InventoryService) save(ctx context.Context, rows []domain.StockEntry) error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.SaveInventory(ctx, rows); err != nil {
		return fmt.Errorf("%w: inventory: %v", domain.ErrPersistenceWrite, err)
	}
	return nil
}

// Sync rewrites the table and flushes pending ledger entries, e.g. after a
// backend outage made earlier operations return domain.ErrPersistenceWrite.
func (s *InventoryService) Sync(ctx context.Context) error {
	unlock, err := s.locker.Lock(ctx, inventoryLockKey)
	if err != nil {
		return fmt.Errorf("acquire inventory lock: %w", err)
	}
	defer unlock()

	s.mu.RLock()
	loadErr := s.loadErr
	snapshot := slices.Clone(s.rows)
	s.mu.RUnlock()
	if loadErr != nil {
		if err := s.Load(ctx); err != nil {
			return fmt.Errorf("inventory is read-only until the backend loads: %w", err)
		}
		return s.ledger.Flush(ctx)
	}

	err = s.save(ctx, snapshot)
	s.setDirty(err != nil)
	if err != nil {
		return err
	}
	return s.ledger.Flush(ctx)
}

// Query returns a point-in-time view of the table filtered lazily on iteration.
func (s *InventoryService) Query(filter Filter) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{rows: slices.Clone(s.rows), filter: filter}
}

// Get returns the balance row for one (item, location).
func (s *InventoryService) Get(item, location string) (domain.StockEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[domain.StockKey{Item: item, Location: location}]
	if !ok {
		return domain.StockEntry{}, false
	}
	return s.rows[i], true
}

// Locations lists the configured locations, or nil when any location is accepted.
func (s *InventoryService) Locations() []string {
	return slices.Clone(s.locations)
}

func (s *InventoryService) insertLocked(e domain.StockEntry) int {
	s.index[e.Key()] = len(s.rows)
	s.rows = append(s.rows, e)
	return len(s.rows) - 1
}

func (s *InventoryService) removeLocked(key domain.StockKey) {
	i, ok := s.index[key]
	if !ok {
		return
	}
	s.rows = slices.Delete(s.rows, i, i+1)
	delete(s.index, key)
	for j := i; j < len(s.rows); j++ {
		s.index[s.rows[j].Key()] = j
	}
}

func (s *InventoryService) normalizeLocation(location string) (string, error) {
	loc := strings.TrimSpace(location)
	if loc == "" {
		return "", fmt.Errorf("%w: location is required", domain.ErrValidation)
	}
	if len(s.locations) > 0 && !slices.Contains(s.locations, loc) {
		return "", fmt.Errorf("%w: unknown location %q", domain.ErrValidation, loc)
	}
	return loc, nil
}

func normalizeItem(item string) (string, error) {
	item = strings.TrimSpace(item)
	if item == "" {
		return "", fmt.Errorf("%w: item name is required", domain.ErrValidation)
	}
	return item, nil
}

func checkQuantity(qty int) error {
	if qty < 1 {
		return fmt.Errorf("%w: quantity must be at least 1, got %d", domain.ErrValidation, qty)
	}
	return nil
}

type nopMetrics struct{}

func (nopMetrics) RecordOperation(string, string) {}
func (nopMetrics) RecordQuantity(string, int)     {}
