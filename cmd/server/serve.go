package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clinic_inventory_backend/internal/config"
	"clinic_inventory_backend/internal/middleware"
	"clinic_inventory_backend/internal/router"
	"clinic_inventory_backend/internal/services"
	"clinic_inventory_backend/pkg/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API under /api/v1. On sqlite deployments the monthly
backup scheduler runs alongside the server unless BACKUP_SCHEDULE_ENABLED=false.`,
	Example: `  # Start on the configured PORT
  clinic-inventory serve

  # Override the port
  clinic-inventory serve --port 9090`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("port", "", "Listen port (default: PORT from the environment)")
	serveCmd.Flags().Duration("shutdown-timeout", 10*time.Second, "Time allowed for in-flight requests on shutdown")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := utils.WithComponent("serve")

	port, _ := cmd.Flags().GetString("port")
	shutdownTimeout, _ := cmd.Flags().GetDuration("shutdown-timeout")
	if port == "" {
		port = cfg.Server.Port
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set to serve the API")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	gin.SetMode(cfg.Server.GinMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), middleware.RequestID(), utils.GinLogger())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{"Content-Disposition", middleware.RequestIDHeader}
	corsConfig.AllowCredentials = true
	engine.Use(cors.New(corsConfig))

	router.Setup(engine, a.deps, a.services)

	if cfg.Backup.ScheduleEnabled && cfg.Database.Driver == config.DriverSQLite {
		go services.NewScheduler(a.services.Backups, cfg.Backup.Keep).Run(ctx)
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", port).Str("driver", cfg.Database.Driver).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
