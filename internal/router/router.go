package router

import (
	"net/http"

	"clinic_inventory_backend/internal/config"
	"clinic_inventory_backend/internal/handlers"
	"clinic_inventory_backend/internal/locking"
	"clinic_inventory_backend/internal/middleware"
	"clinic_inventory_backend/internal/repositories"
	"clinic_inventory_backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

// Dependencies are the shared resources the routes are built from.
type Dependencies struct {
	DB     *sqlx.DB
	Config *config.Config
	Locker locking.Locker
}

// Services bundles the services built by NewServices so the CLI and the
// router share one wiring.
type Services struct {
	Ledger       services.LedgerService
	Items        services.ItemService
	Transactions services.TransactionService
	Reports      services.ReportService
	Auth         services.AuthService
	Backups      services.BackupService
}

// NewServices initializes repositories and services.
func NewServices(deps Dependencies) *Services {
	db, cfg := deps.DB, deps.Config

	authRepo := repositories.NewAuthRepository(db)
	itemRepo := repositories.NewItemRepository(db)
	ledgerRepo := repositories.NewLedgerRepository(db)
	txRepo := repositories.NewTransactionRepository(db)
	replRepo := repositories.NewReplenishmentRepository(db)

	ledgerService := services.NewLedgerService(db, itemRepo, ledgerRepo, deps.Locker, cfg.Ledger)
	return &Services{
		Ledger:       ledgerService,
		Items:        services.NewItemService(db, ledgerService, itemRepo, ledgerRepo, replRepo, txRepo, deps.Locker, cfg.Ledger),
		Transactions: services.NewTransactionService(db, txRepo, itemRepo, ledgerRepo, deps.Locker, cfg.Ledger),
		Reports:      services.NewReportService(db, itemRepo, ledgerRepo, txRepo, deps.Locker, cfg.Ledger),
		Auth:         services.NewAuthService(authRepo, db, cfg.Auth.JWTSecret, cfg.Auth.JWTExpiration),
		Backups:      services.NewBackupService(db, cfg.Database, cfg.Backup),
	}
}

// Setup initializes the routing for the application.
func Setup(engine *gin.Engine, deps Dependencies, svc *Services) {
	secret := []byte(deps.Config.Auth.JWTSecret)

	authHandler := handlers.NewAuthHandler(svc.Auth)
	userHandler := handlers.NewUserHandler(svc.Auth)
	itemHandler := handlers.NewItemHandler(svc.Items, svc.Ledger)
	transactionHandler := handlers.NewTransactionHandler(svc.Transactions)
	reportHandler := handlers.NewReportHandler(svc.Reports)
	backupHandler := handlers.NewBackupHandler(svc.Backups, deps.Config.Backup.Keep)

	engine.GET("/health", func(c *gin.Context) {
		if err := deps.DB.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiV1 := engine.Group("/api/v1")
	SetupAuthRoutes(apiV1.Group("/auth"), authHandler, secret)

	authenticated := apiV1.Group("")
	authenticated.Use(middleware.AuthMiddleware(secret))
	{
		SetupAuthenticatedAuthRoutes(authenticated.Group("/auth"), authHandler)
		SetupItemRoutes(authenticated, itemHandler)
		SetupInventoryRoutes(authenticated, itemHandler)
		SetupTransactionRoutes(authenticated, transactionHandler)
		SetupReportRoutes(authenticated, reportHandler)

		admin := authenticated.Group("")
		admin.Use(middleware.RoleAuthMiddleware("admin"))
		SetupUserRoutes(admin, userHandler)
		SetupLedgerAdminRoutes(admin, itemHandler)
		SetupBackupRoutes(admin, backupHandler)
	}
}
