package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/rl1809/stock-ledger/internal/adapter/handler"
	"github.com/rl1809/stock-ledger/internal/adapter/metrics"
	"github.com/rl1809/stock-ledger/internal/adapter/storage"
	"github.com/rl1809/stock-ledger/internal/config"
	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/core/service"
)

const lockTTL = 10 * time.Second

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	logger := config.NewLogger(cfg.LogLevel, os.Stdout)
	gin.SetMode(gin.ReleaseMode)

	backend, closeBackend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to open storage")
	}
	defer closeBackend()

	var (
		repo   storage.Backend = backend
		cache  handler.CacheClearer
		opts   []service.Option
		record = metrics.NewRecorder("stockledger")
	)
	opts = append(opts,
		service.WithLogger(logger.WithField("module", "inventory")),
		service.WithMetrics(record),
		service.WithLocations(cfg.Locations...),
	)

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, PoolSize: 20})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Fatal("failed to connect redis")
		}
		defer rdb.Close()
		logger.WithField("addr", cfg.RedisAddr).Info("connected to redis")

		caching := storage.NewCachingRepository(backend, storage.NewRedisAdapter(rdb), cfg.CacheTTL, logger.WithField("module", "cache"))
		repo, cache = caching, caching
		if cfg.SharedLock {
			opts = append(opts, service.WithSharedBackend(storage.NewRedisLocker(rdb, lockTTL, logger)))
		}
	}

	ledger := service.NewLedger(repo, cfg.TimeZone, nil)
	inventory := service.NewInventoryService(repo, ledger, opts...)

	loadErr := inventory.Load(ctx)
	if loadErr != nil {
		// writes are refused until a later load succeeds, so the store is not overwritten
		config.LogError(logger, "main", "main", "load inventory, serving read-only", cfg.StorageDriver, loadErr)
	}
	if cfg.SeedDefaults && loadErr == nil {
		seeded, err := inventory.SeedIfEmpty(ctx, domain.DefaultInventory())
		if err != nil {
			config.LogError(logger, "main", "main", "seed default inventory", nil, err)
		} else if seeded {
			logger.Info("seeded default inventory")
		}
	}
	logger.WithFields(logrus.Fields{
		"rows":   inventory.Query(service.Filter{}).Len(),
		"ledger": ledger.Len(),
	}).Info("inventory loaded")

	// gRPC health
	grpcServer := grpc.NewServer()
	grpcHandler := handler.NewGRPCHandler()
	grpcHandler.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.WithError(err).Fatal("failed to listen")
	}
	go func() {
		logger.WithField("addr", cfg.GRPCAddr).Info("gRPC server listening")
		if err := grpcServer.Serve(lis); err != nil {
			logger.WithError(err).Error("gRPC server error")
		}
	}()
	grpcHandler.SetReady(loadErr == nil)

	// HTTP
	httpHandler := handler.NewHTTPHandler(inventory, cache, record.Handler(), logger.WithField("module", "http"))
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpHandler.Router(),
	}
	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("HTTP server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")
	grpcHandler.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP shutdown")
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	// write anything left over from a backend outage
	if err := inventory.Sync(shutdownCtx); err != nil {
		config.LogError(logger, "main", "main", "final sync", nil, err)
	}
	logger.Info("connections closed")
}

func openBackend(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Backend, func(), error) {
	switch cfg.StorageDriver {
	case config.DriverMySQL:
		db, err := storage.OpenMySQL(cfg.MySQLDSN)
		if err != nil {
			return nil, nil, err
		}
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		adapter := storage.NewMySQLAdapter(db)
		if err := adapter.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info("connected to mysql")
		return adapter, func() { db.Close() }, nil
	case config.DriverExcel:
		logger.WithField("path", cfg.ExcelPath).Info("using excel workbook")
		return storage.NewExcelAdapter(cfg.ExcelPath), func() {}, nil
	default:
		logger.Warn("using in-memory storage, nothing survives a restart")
		return storage.NewMemoryAdapter(), func() {}, nil
	}
}
