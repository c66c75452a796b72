package database

import (
	"context"
	"fmt"
	"strings"

	"clinic_inventory_backend/internal/config"

	"github.com/jmoiron/sqlx"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id {{ID}},
		username VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		full_name VARCHAR(255),
		role VARCHAR(32) NOT NULL DEFAULT 'staff',
		status VARCHAR(32) NOT NULL DEFAULT 'active',
		last_login {{TS}} NULL,
		created_at {{TS}} NOT NULL,
		updated_at {{TS}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS items (
		id {{ID}},
		name VARCHAR(255) NOT NULL UNIQUE,
		unit VARCHAR(64) NOT NULL,
		category VARCHAR(32) NOT NULL,
		expiry_date VARCHAR(10),
		current_stock INTEGER NOT NULL DEFAULT 0,
		created_at {{TS}} NOT NULL,
		updated_at {{TS}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id {{ID}},
		item_id BIGINT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		beginning_stock INTEGER NOT NULL DEFAULT 0,
		replenished_stock INTEGER NOT NULL DEFAULT 0,
		total_issued INTEGER NOT NULL DEFAULT 0,
		balance INTEGER NOT NULL DEFAULT 0,
		CONSTRAINT ledger_entries_item_month_key UNIQUE (item_id, year, month),
		FOREIGN KEY (item_id) REFERENCES items(id)
	)`,
	`CREATE TABLE IF NOT EXISTS stock_replenishments (
		id {{ID}},
		item_id BIGINT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		quantity INTEGER NOT NULL,
		user_id BIGINT NULL,
		remarks {{TEXT}},
		received_at {{TS}} NOT NULL,
		FOREIGN KEY (item_id) REFERENCES items(id)
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id {{ID}},
		date VARCHAR(10) NOT NULL,
		patient_name VARCHAR(255) NOT NULL,
		course_year_section VARCHAR(255),
		complaints {{TEXT}},
		time_started VARCHAR(8) NOT NULL,
		time_finished VARCHAR(8),
		medication VARCHAR(255),
		quantity INTEGER NOT NULL DEFAULT 0,
		remarks {{TEXT}},
		status VARCHAR(16) NOT NULL DEFAULT 'ongoing',
		created_at {{TS}} NOT NULL,
		updated_at {{TS}} NOT NULL
	)`,
}

type index struct {
	name, table, columns string
}

var indexes = []index{
	{"idx_ledger_entries_period", "ledger_entries", "year, month"},
	{"idx_stock_replenishments_item", "stock_replenishments", "item_id, year, month"},
	{"idx_transactions_date", "transactions", "date"},
	{"idx_transactions_medication", "transactions", "medication"},
	{"idx_transactions_status", "transactions", "status"},
}

func dialectTokens(driver string) *strings.Replacer {
	switch driver {
	case config.DriverMySQL:
		return strings.NewReplacer("{{ID}}", "BIGINT AUTO_INCREMENT PRIMARY KEY", "{{TS}}", "DATETIME(6)", "{{TEXT}}", "TEXT")
	case config.DriverSQLite:
		return strings.NewReplacer("{{ID}}", "INTEGER PRIMARY KEY AUTOINCREMENT", "{{TS}}", "TIMESTAMP", "{{TEXT}}", "TEXT")
	default:
		return strings.NewReplacer("{{ID}}", "BIGSERIAL PRIMARY KEY", "{{TS}}", "TIMESTAMPTZ", "{{TEXT}}", "TEXT")
	}
}

// Migrate creates the schema. It is safe to run repeatedly.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	tokens := dialectTokens(db.DriverName())
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, tokens.Replace(stmt)); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	for _, idx := range indexes {
		if err := createIndex(ctx, db, idx); err != nil {
			return fmt.Errorf("creating index %s: %w", idx.name, err)
		}
	}
	return nil
}

func createIndex(ctx context.Context, db *sqlx.DB, idx index) error {
	if db.DriverName() != config.DriverMySQL {
		_, err := db.ExecContext(ctx, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", idx.name, idx.table, idx.columns))
		return err
	}
	// MySQL has no CREATE INDEX IF NOT EXISTS
	var n int
	err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM information_schema.statistics
		WHERE table_schema = DATABASE() AND table_name = ? AND index_name = ?`, idx.table, idx.name)
	if err != nil || n > 0 {
		return err
	}
	_, err = db.ExecContext(ctx, fmt.Sprintf("CREATE INDEX %s ON %s (%s)", idx.name, idx.table, idx.columns))
	return err
}
