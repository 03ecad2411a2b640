package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

const (
	inventoryKey = "stockledger:inventory"
	ledgerKey    = "stockledger:ledger"
)

// RedisAdapter caches JSON snapshots of the inventory table and the ledger.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) GetInventory(ctx context.Context) ([]domain.StockEntry, bool, error) {
	var entries []domain.StockEntry
	ok, err := r.get(ctx, inventoryKey, &entries)
	return entries, ok, err
}

func (r *RedisAdapter) SetInventory(ctx context.Context, entries []domain.StockEntry, ttl time.Duration) error {
	return r.set(ctx, inventoryKey, entries, ttl)
}

func (r *RedisAdapter) GetLogs(ctx context.Context) ([]domain.LedgerEntry, bool, error) {
	var entries []domain.LedgerEntry
	ok, err := r.get(ctx, ledgerKey, &entries)
	return entries, ok, err
}

func (r *RedisAdapter) SetLogs(ctx context.Context, entries []domain.LedgerEntry, ttl time.Duration) error {
	return r.set(ctx, ledgerKey, entries, ttl)
}

func (r *RedisAdapter) DeleteLogs(ctx context.Context) error {
	return r.client.Del(ctx, ledgerKey).Err()
}

func (r *RedisAdapter) Clear(ctx context.Context) error {
	return r.client.Del(ctx, inventoryKey, ledgerKey).Err()
}

func (r *RedisAdapter) get(ctx context.Context, key string, dest any) (bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (r *RedisAdapter) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}
