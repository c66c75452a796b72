package main

import (
	"context"
	"fmt"
	"os"

	"clinic_inventory_backend/internal/config"
	"clinic_inventory_backend/internal/database"
	"clinic_inventory_backend/internal/locking"
	"clinic_inventory_backend/internal/router"
	"clinic_inventory_backend/pkg/utils"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var version = "1.0.0"

// cfg is loaded once by the root command before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "clinic-inventory",
	Short: "Clinic medicine inventory server and maintenance tools",
	Long: `Clinic inventory keeps a month-by-month stock ledger for every medicine and
supply, records patient visits that dispense stock, and produces the monthly
inventory report.

Configuration is read from the environment (and a .env file when present):
  DB_DRIVER          postgres, mysql or sqlite (default: postgres)
  SQLITE_PATH        database file for the sqlite driver
  JWT_SECRET         token signing secret (required by serve)
  LEDGER_ORIGIN      first ledger month, YYYY-MM
  LEDGER_HORIZON     last ledger month, YYYY-MM
  REDIS_ADDR         enables distributed item locks when set`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		if err := utils.InitLogger(loaded.Log); err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		cfg = loaded
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	log := utils.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app is an opened database with every service wired onto it.
type app struct {
	deps     router.Dependencies
	services *router.Services
	redis    *redis.Client
}

// openApp connects to the database, applies migrations and builds the services.
func openApp(ctx context.Context) (*app, error) {
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	a := &app{}
	locker := locking.NewLocalLocker()
	rdb, err := locking.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		db.Close()
		return nil, err
	}
	if rdb != nil {
		a.redis = rdb
		locker = locking.NewRedisLocker(rdb, cfg.Redis.LockTTL)
	}

	a.deps = router.Dependencies{DB: db, Config: cfg, Locker: locker}
	a.services = router.NewServices(a.deps)
	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	a.deps.DB.Close()
}
