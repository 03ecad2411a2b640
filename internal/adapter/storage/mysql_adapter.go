package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS inventory (
		item          VARCHAR(191) NOT NULL,
		location      VARCHAR(64)  NOT NULL,
		category      VARCHAR(191) NOT NULL DEFAULT '',
		initial_stock INT          NOT NULL DEFAULT 0,
		current_stock INT          NOT NULL DEFAULT 0,
		position      INT          NOT NULL,
		PRIMARY KEY (item, location),
		CHECK (initial_stock >= 0 AND current_stock >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS ledger (
		seq            BIGINT       NOT NULL AUTO_INCREMENT PRIMARY KEY,
		id             CHAR(36)     NOT NULL UNIQUE,
		ts             DATETIME(6)  NOT NULL,
		action         VARCHAR(16)  NOT NULL,
		item           VARCHAR(191) NOT NULL,
		quantity       INT          NOT NULL,
		from_location  VARCHAR(64)  NOT NULL DEFAULT '',
		to_location    VARCHAR(64)  NOT NULL DEFAULT '',
		previous_count INT          NOT NULL,
		final_count    INT          NOT NULL,
		detail         TEXT         NOT NULL,
		INDEX idx_ledger_ts (ts)
	)`,
}

// OpenMySQL opens dsn with ParseTime forced on, since ledger timestamps are
// scanned into time.Time.
func OpenMySQL(dsn string) (*sql.DB, error) {
	cfg, err := mysqlConfig(dsn)
	if err != nil {
		return nil, err
	}
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}
	return sql.OpenDB(connector), nil
}

func mysqlConfig(dsn string) (*mysql.Config, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg, nil
}

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) LoadInventory(ctx context.Context) ([]domain.StockEntry, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT item, location, category, initial_stock, current_stock
		FROM inventory ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.StockEntry, 0)
	for rows.Next() {
		var e domain.StockEntry
		if err := rows.Scan(&e.Item, &e.Location, &e.Category, &e.InitialStock, &e.CurrentStock); err != nil {
			return nil, fmt.Errorf("scan inventory: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read inventory: %w", err)
	}
	return entries, nil
}

// SaveInventory replaces the table inside one transaction.
func (m *MySQLAdapter) SaveInventory(ctx context.Context, entries []domain.StockEntry) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM inventory`); err != nil {
		return fmt.Errorf("clear inventory: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO inventory (item, location, category, initial_stock, current_stock, position)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.Item, e.Location, e.Category, e.InitialStock, e.CurrentStock, i); err != nil {
			return fmt.Errorf("insert %s at %s: %w", e.Item, e.Location, err)
		}
	}

	return tx.Commit()
}

func (m *MySQLAdapter) LoadLogs(ctx context.Context) ([]domain.LedgerEntry, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, ts, action, item, quantity, from_location, to_location, previous_count, final_count, detail
		FROM ledger ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.LedgerEntry, 0)
	for rows.Next() {
		var (
			e      domain.LedgerEntry
			action string
			ts     time.Time
		)
		if err := rows.Scan(&e.ID, &ts, &action, &e.Item, &e.Quantity, &e.FromLocation, &e.ToLocation,
			&e.PreviousCount, &e.FinalCount, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan ledger: %w", err)
		}
		if e.Action, err = domain.ParseAction(action); err != nil {
			return nil, fmt.Errorf("ledger %s: %w", e.ID, err)
		}
		e.Timestamp = ts.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	return entries, nil
}

// AppendLog is idempotent on the entry id so a flush after an ambiguous
// failure never writes the same entry twice.
func (m *MySQLAdapter) AppendLog(ctx context.Context, entry domain.LedgerEntry) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO ledger (id, ts, action, item, quantity, from_location, to_location, previous_count, final_count, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE id = id`,
		entry.ID, entry.Timestamp.UTC(), string(entry.Action), entry.Item, entry.Quantity,
		entry.FromLocation, entry.ToLocation, entry.PreviousCount, entry.FinalCount, entry.Detail,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}
