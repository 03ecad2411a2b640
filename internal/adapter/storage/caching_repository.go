package storage

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

// Backend is a store that persists both the table and the ledger.
type Backend interface {
	port.InventoryRepository
	port.LedgerRepository
}

// CachingRepository reads through a snapshot cache with a fixed TTL and
// writes straight to the backend. Cache failures are logged and bypassed.
type CachingRepository struct {
	backend Backend
	cache   port.CacheRepository
	ttl     time.Duration
	logger  logrus.FieldLogger
}

func NewCachingRepository(backend Backend, cache port.CacheRepository, ttl time.Duration, logger logrus.FieldLogger) *CachingRepository {
	return &CachingRepository{backend: backend, cache: cache, ttl: ttl, logger: logger}
}

func (c *CachingRepository) LoadInventory(ctx context.Context) ([]domain.StockEntry, error) {
	entries, ok, err := c.cache.GetInventory(ctx)
	if err != nil {
		c.warn("read inventory cache", err)
	} else if ok {
		return entries, nil
	}

	entries, err = c.backend.LoadInventory(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.cache.SetInventory(ctx, entries, c.ttl); err != nil {
		c.warn("fill inventory cache", err)
	}
	return entries, nil
}

func (c *CachingRepository) SaveInventory(ctx context.Context, entries []domain.StockEntry) error {
	if err := c.backend.SaveInventory(ctx, entries); err != nil {
		return err
	}
	if err := c.cache.SetInventory(ctx, entries, c.ttl); err != nil {
		c.warn("refresh inventory cache", err)
		c.clear(ctx)
	}
	return nil
}

func (c *CachingRepository) LoadLogs(ctx context.Context) ([]domain.LedgerEntry, error) {
	entries, ok, err := c.cache.GetLogs(ctx)
	if err != nil {
		c.warn("read ledger cache", err)
	} else if ok {
		return entries, nil
	}

	entries, err = c.backend.LoadLogs(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.cache.SetLogs(ctx, entries, c.ttl); err != nil {
		c.warn("fill ledger cache", err)
	}
	return entries, nil
}

func (c *CachingRepository) AppendLog(ctx context.Context, entry domain.LedgerEntry) error {
	if err := c.backend.AppendLog(ctx, entry); err != nil {
		return err
	}
	if err := c.cache.DeleteLogs(ctx); err != nil {
		c.warn("invalidate ledger cache", err)
	}
	return nil
}

// ClearCache forces the next loads to hit the backend.
func (c *CachingRepository) ClearCache(ctx context.Context) error {
	return c.cache.Clear(ctx)
}

func (c *CachingRepository) clear(ctx context.Context) {
	if err := c.cache.Clear(ctx); err != nil {
		c.warn("clear cache", err)
	}
}

func (c *CachingRepository) warn(op string, err error) {
	c.logger.WithError(err).WithField("op", op).Warn("snapshot cache unavailable, using backend")
}
