// Package database opens the SQL store and owns its schema.
package database

import (
	"context"
	"fmt"
	"time"

	"clinic_inventory_backend/internal/config"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver
)

// Connect opens and pings the configured database.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := cfg.DSN()
	if cfg.Driver == config.DriverMySQL {
		mc, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("parsing mysql dsn: %w", err)
		}
		mc.Loc = time.UTC
		dsn = mc.FormatDSN()
	}

	db, err := sqlx.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", cfg.Driver, err)
	}

	if cfg.Driver == config.DriverSQLite {
		// one connection: in-memory databases are per connection and
		// sqlite serializes writers anyway
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s database: %w", cfg.Driver, err)
	}
	return db, nil
}

// OpenMemory returns a migrated in-memory SQLite database.
func OpenMemory(ctx context.Context) (*sqlx.DB, error) {
	db, err := Connect(ctx, config.DatabaseConfig{Driver: config.DriverSQLite, SQLitePath: ":memory:"})
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
