package router

import (
	"clinic_inventory_backend/internal/handlers"
	"clinic_inventory_backend/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupAuthRoutes registers the routes reachable without a token. Register
// reads an optional token so admins can add accounts after the first one.
func SetupAuthRoutes(authGroup *gin.RouterGroup, authHandler *handlers.AuthHandler, secret []byte) {
	authGroup.POST("/register", middleware.OptionalAuthMiddleware(secret), authHandler.RegisterUser)
	authGroup.POST("/login", authHandler.LoginUser)
}

func SetupAuthenticatedAuthRoutes(authGroup *gin.RouterGroup, authHandler *handlers.AuthHandler) {
	authGroup.GET("/me", authHandler.GetCurrentUser)
	authGroup.POST("/logout", authHandler.LogoutUser)
}

func SetupUserRoutes(adminGroup *gin.RouterGroup, userHandler *handlers.UserHandler) {
	userRoutes := adminGroup.Group("/users")
	{
		userRoutes.GET("", userHandler.GetUsers)
		userRoutes.GET("/:id", userHandler.GetUserByID)
		userRoutes.PUT("/:id", userHandler.UpdateUser)
		userRoutes.DELETE("/:id", userHandler.DeleteUser)
	}
}

func SetupItemRoutes(authenticatedGroup *gin.RouterGroup, itemHandler *handlers.ItemHandler) {
	itemRoutes := authenticatedGroup.Group("/items")
	{
		itemRoutes.POST("", itemHandler.CreateItem)
		itemRoutes.GET("", itemHandler.GetItems)
		itemRoutes.GET("/:id", itemHandler.GetItemByID)
		itemRoutes.PUT("/:id/month", itemHandler.EditItemMonth)
		itemRoutes.POST("/:id/replenish", itemHandler.Replenish)
		itemRoutes.GET("/:id/ledger", itemHandler.GetItemLedger)
	}
}

func SetupInventoryRoutes(authenticatedGroup *gin.RouterGroup, itemHandler *handlers.ItemHandler) {
	inventoryRoutes := authenticatedGroup.Group("/inventory")
	{
		inventoryRoutes.GET("", itemHandler.GetMonthView)
		inventoryRoutes.GET("/replenishments", itemHandler.GetReplenishments)
		inventoryRoutes.GET("/low-stock", itemHandler.GetLowStock)
		inventoryRoutes.GET("/expiring", itemHandler.GetExpiring)
	}
}

// SetupLedgerAdminRoutes registers the destructive ledger maintenance routes.
func SetupLedgerAdminRoutes(adminGroup *gin.RouterGroup, itemHandler *handlers.ItemHandler) {
	adminGroup.DELETE("/items/:id/ledger", itemHandler.DeleteItemLedger)
	adminGroup.POST("/items/:id/ledger/rebuild", itemHandler.RebuildItemLedger)
	adminGroup.GET("/ledger/verify", itemHandler.VerifyLedger)
}

func SetupTransactionRoutes(authenticatedGroup *gin.RouterGroup, transactionHandler *handlers.TransactionHandler) {
	transactionRoutes := authenticatedGroup.Group("/transactions")
	{
		transactionRoutes.POST("", transactionHandler.CreateTransaction)
		transactionRoutes.GET("", transactionHandler.GetTransactions)
		transactionRoutes.GET("/recent", transactionHandler.GetRecentTransactions)
		transactionRoutes.GET("/stats", transactionHandler.GetStatistics)
		transactionRoutes.GET("/:id", transactionHandler.GetTransactionByID)
		transactionRoutes.PUT("/:id", transactionHandler.UpdateTransaction)
		transactionRoutes.POST("/:id/finish", transactionHandler.FinishTransaction)
		transactionRoutes.POST("/:id/cancel", transactionHandler.CancelTransaction)
		transactionRoutes.DELETE("/:id", transactionHandler.DeleteTransaction)
	}
}

func SetupReportRoutes(authenticatedGroup *gin.RouterGroup, reportHandler *handlers.ReportHandler) {
	reportRoutes := authenticatedGroup.Group("/reports")
	{
		reportRoutes.GET("/monthly", reportHandler.GetMonthlyReport)
		reportRoutes.GET("/monthly/export", reportHandler.ExportMonthlyReport)
		reportRoutes.GET("/daily", reportHandler.GetDailyInventory)
	}
}

func SetupBackupRoutes(adminGroup *gin.RouterGroup, backupHandler *handlers.BackupHandler) {
	backupRoutes := adminGroup.Group("/backups")
	{
		backupRoutes.POST("", backupHandler.CreateBackup)
		backupRoutes.GET("", backupHandler.GetBackups)
		backupRoutes.GET("/:name", backupHandler.DownloadBackup)
		backupRoutes.POST("/clean", backupHandler.CleanBackups)
	}
}
