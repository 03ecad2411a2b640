package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

const (
	DriverMemory = "memory"
	DriverMySQL  = "mysql"
	DriverExcel  = "excel"
)

type Config struct {
	HTTPAddr      string
	GRPCAddr      string
	StorageDriver string
	MySQLDSN      string
	ExcelPath     string
	RedisAddr     string
	CacheTTL      time.Duration
	SharedLock    bool
	Locations     []string
	SeedDefaults  bool
	LogLevel      string
	TimeZone      *time.Location
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds the configuration from a lookup function so tests need not touch the environment.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		HTTPAddr:      getOr(getenv, "HTTP_ADDR", ":8080"),
		GRPCAddr:      getOr(getenv, "GRPC_ADDR", ":50051"),
		StorageDriver: strings.ToLower(getOr(getenv, "STORAGE_DRIVER", DriverMemory)),
		MySQLDSN:      getOr(getenv, "MYSQL_DSN", "root:root@tcp(localhost:3306)/stockledger?parseTime=true"),
		ExcelPath:     getOr(getenv, "EXCEL_PATH", "inventory.xlsx"),
		RedisAddr:     getenv("REDIS_ADDR"),
		LogLevel:      getOr(getenv, "LOG_LEVEL", "info"),
		Locations:     domain.DefaultLocations,
	}

	switch cfg.StorageDriver {
	case DriverMemory, DriverMySQL, DriverExcel:
	default:
		return Config{}, fmt.Errorf("STORAGE_DRIVER %q: want memory, mysql or excel", cfg.StorageDriver)
	}

	var err error
	if cfg.CacheTTL, err = time.ParseDuration(getOr(getenv, "CACHE_TTL", "60s")); err != nil {
		return Config{}, fmt.Errorf("CACHE_TTL: %w", err)
	}
	if cfg.SharedLock, err = parseBool(getenv, "SHARED_LOCK"); err != nil {
		return Config{}, err
	}
	if cfg.SeedDefaults, err = parseBool(getenv, "SEED_DEFAULTS"); err != nil {
		return Config{}, err
	}
	if cfg.SharedLock && cfg.RedisAddr == "" {
		return Config{}, fmt.Errorf("SHARED_LOCK requires REDIS_ADDR")
	}

	// "*" accepts any location
	if raw := strings.TrimSpace(getenv("LOCATIONS")); raw == "*" {
		cfg.Locations = nil
	} else if raw != "" {
		cfg.Locations = nil
		for _, loc := range strings.Split(raw, ",") {
			if loc = strings.TrimSpace(loc); loc != "" {
				cfg.Locations = append(cfg.Locations, loc)
			}
		}
	}

	tz := getOr(getenv, "TIMEZONE", "Local")
	if cfg.TimeZone, err = time.LoadLocation(tz); err != nil {
		return Config{}, fmt.Errorf("TIMEZONE: %w", err)
	}
	return cfg, nil
}

func getOr(getenv func(string) string, key, fallback string) string {
	if v := strings.TrimSpace(getenv(key)); v != "" {
		return v
	}
	return fallback
}

func parseBool(getenv func(string) string, key string) (bool, error) {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
