package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/stock-ledger/internal/adapter/storage"
	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/core/service"
)

const (
	itemID        = "Plastic Bucket"
	initialStock  = 20
	totalRequests = 50
	basement      = "Basement"
	shop          = "Shop"
)

// Fires concurrent moves and purchases at one item and checks that every
// unit is accounted for. Set REDIS_ADDR to serialize through a redis lock.
func main() {
	ctx := context.Background()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	opts := []service.Option{service.WithLogger(logger)}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		defer rdb.Close()
		opts = append(opts, service.WithLocker(storage.NewRedisLocker(rdb, 5*time.Second, logger)))
	}

	repo := storage.NewMemoryAdapter()
	ledger := service.NewLedger(repo, time.UTC, nil)
	inventory := service.NewInventoryService(repo, ledger, opts...)

	if _, err := inventory.AddItem(ctx, itemID, basement, initialStock); err != nil {
		log.Fatalf("failed to add item: %v", err)
	}

	var (
		moved     atomic.Int32
		purchased atomic.Int32
		rejected  atomic.Int32
		failed    atomic.Int32
	)

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			var err error
			if n%10 == 0 {
				_, err = inventory.Purchase(ctx, itemID, basement, 1)
				if err == nil {
					purchased.Add(1)
				}
			} else {
				_, err = inventory.Move(ctx, itemID, basement, shop, 1)
				if err == nil {
					moved.Add(1)
				}
			}
			switch {
			case err == nil:
			case errors.Is(err, domain.ErrInsufficientStock):
				rejected.Add(1)
			default:
				failed.Add(1)
			}
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	total := inventory.Query(service.Filter{}).TotalStock(itemID)
	want := initialStock + int(purchased.Load())
	shopRow, _ := inventory.Get(itemID, shop)

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Moved:            %d\n", moved.Load())
	fmt.Printf("Purchased:        %d\n", purchased.Load())
	fmt.Printf("Rejected:         %d\n", rejected.Load())
	fmt.Printf("Errors:           %d\n", failed.Load())
	fmt.Printf("Ledger Entries:   %d\n", ledger.Len())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if total == want {
		fmt.Printf("PASS: %d units across locations\n", total)
	} else {
		fmt.Printf("FAIL: Expected %d units, got %d\n", want, total)
	}
	if shopRow.CurrentStock == int(moved.Load()) {
		fmt.Printf("PASS: Shop holds the %d moved units\n", shopRow.CurrentStock)
	} else {
		fmt.Printf("FAIL: Expected %d at Shop, got %d\n", moved.Load(), shopRow.CurrentStock)
	}
	// one ADD plus one entry per committed operation
	if entries := ledger.Len(); entries == 1+int(moved.Load()+purchased.Load()) {
		fmt.Println("PASS: Ledger matches committed operations")
	} else {
		fmt.Printf("FAIL: Ledger has %d entries\n", entries)
	}
}
