// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"clinic_inventory_backend/internal/ledger"
	"clinic_inventory_backend/pkg/utils"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// Config is the complete application configuration.
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Ledger   LedgerConfig
	Backup   BackupConfig
	Redis    RedisConfig
	Log      utils.LogConfig
}

type DatabaseConfig struct {
	Driver     string
	Host       string
	Port       string
	User       string
	Password   string
	Name       string
	SSLMode    string
	SQLitePath string
}

type ServerConfig struct {
	Port           string
	AllowedOrigins []string
	GinMode        string
}

type AuthConfig struct {
	JWTSecret     string
	JWTExpiration time.Duration
}

// LedgerConfig bounds the monthly ledger. No entries exist before Origin;
// new items are materialized through Horizon.
type LedgerConfig struct {
	Origin             ledger.Period
	Horizon            ledger.Period
	LowStockThreshold  int
	ExpiryWindowMonths int
}

type BackupConfig struct {
	Dir             string
	Keep            int
	ScheduleEnabled bool
}

// RedisConfig enables distributed ledger locks when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

// Load reads the environment and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Driver:     strings.ToLower(utils.Getenv("DB_DRIVER", DriverPostgres)),
			Host:       utils.Getenv("DB_HOST", "localhost"),
			Port:       utils.Getenv("DB_PORT", "5432"),
			User:       utils.Getenv("DB_USER", "clinic_user"),
			Password:   utils.Getenv("DB_PASSWORD", "clinic_password"),
			Name:       utils.Getenv("DB_NAME", "clinic_inventory"),
			SSLMode:    utils.Getenv("DB_SSLMODE", "disable"),
			SQLitePath: utils.Getenv("SQLITE_PATH", "clinic_inventory.db"),
		},
		Server: ServerConfig{
			Port:           utils.Getenv("PORT", "8080"),
			AllowedOrigins: utils.GetenvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:3001"}),
			GinMode:        utils.Getenv("GIN_MODE", "release"),
		},
		Auth: AuthConfig{
			JWTSecret:     utils.Getenv("JWT_SECRET", ""),
			JWTExpiration: utils.GetenvDuration("JWT_EXPIRATION", 12*time.Hour),
		},
		Ledger: LedgerConfig{
			LowStockThreshold:  utils.GetenvInt("LOW_STOCK_THRESHOLD", 10),
			ExpiryWindowMonths: utils.GetenvInt("EXPIRY_WINDOW_MONTHS", 3),
		},
		Backup: BackupConfig{
			Dir:             utils.Getenv("BACKUP_DIR", "backups"),
			Keep:            utils.GetenvInt("BACKUP_KEEP", 5),
			ScheduleEnabled: utils.GetenvBool("BACKUP_SCHEDULE_ENABLED", true),
		},
		Redis: RedisConfig{
			Addr:     utils.Getenv("REDIS_ADDR", ""),
			Password: utils.Getenv("REDIS_PASSWORD", ""),
			DB:       utils.GetenvInt("REDIS_DB", 0),
			LockTTL:  utils.GetenvDuration("LOCK_TTL", 30*time.Second),
		},
		Log: utils.LogConfig{
			Level:      utils.Getenv("LOG_LEVEL", "info"),
			Format:     utils.Getenv("LOG_FORMAT", "console"),
			TimeFormat: time.RFC3339,
			Output:     utils.Getenv("LOG_OUTPUT", "stdout"),
		},
	}

	var err error
	if cfg.Ledger.Origin, err = ledger.ParsePeriod(utils.Getenv("LEDGER_ORIGIN", "2024-09")); err != nil {
		return nil, fmt.Errorf("LEDGER_ORIGIN: %w", err)
	}
	if cfg.Ledger.Horizon, err = ledger.ParsePeriod(utils.Getenv("LEDGER_HORIZON", "2034-12")); err != nil {
		return nil, fmt.Errorf("LEDGER_HORIZON: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverMySQL, DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Database.Driver == DriverSQLite && c.Database.SQLitePath == "" {
		return errors.New("SQLITE_PATH is required for the sqlite driver")
	}
	if c.Ledger.Horizon.Before(c.Ledger.Origin) {
		return fmt.Errorf("ledger horizon %s is before origin %s", c.Ledger.Horizon, c.Ledger.Origin)
	}
	if c.Ledger.LowStockThreshold < 0 {
		return errors.New("LOW_STOCK_THRESHOLD must not be negative")
	}
	if c.Backup.Keep < 1 {
		return errors.New("BACKUP_KEEP must be at least 1")
	}
	return nil
}

// RequireJWTSecret is checked by commands that serve HTTP.
func (c *Config) RequireJWTSecret() error {
	if len(c.Auth.JWTSecret) < 16 {
		return errors.New("JWT_SECRET must be set to at least 16 characters")
	}
	return nil
}

// DSN builds the driver specific connection string.
func (c DatabaseConfig) DSN() string {
	switch c.Driver {
	case DriverMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&multiStatements=false",
			c.User, c.Password, c.Host, c.Port, c.Name)
	case DriverSQLite:
		if c.SQLitePath == ":memory:" {
			return c.SQLitePath
		}
		return "file:" + c.SQLitePath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	default:
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(c.User, c.Password),
			Host:     c.Host + ":" + c.Port,
			Path:     "/" + c.Name,
			RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
		}
		return u.String()
	}
}
