package handlers

import (
	"net/http"
	"strconv"

	"clinic_inventory_backend/internal/services"
	"clinic_inventory_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// BackupHandler exposes database snapshots to admins.
type BackupHandler struct {
	backupService services.BackupService
	keep          int
}

// NewBackupHandler creates a new BackupHandler. keep is the default retention for CleanBackups.
func NewBackupHandler(bs services.BackupService, keep int) *BackupHandler {
	return &BackupHandler{backupService: bs, keep: keep}
}

// CreateBackup takes a manual snapshot.
func (h *BackupHandler) CreateBackup(c *gin.Context) {
	file, err := h.backupService.Create(c.Request.Context(), services.BackupKindManual)
	if err != nil {
		respondServiceError(c, err, "Failed to create backup.")
		return
	}
	c.JSON(http.StatusCreated, file)
}

func (h *BackupHandler) GetBackups(c *gin.Context) {
	files, err := h.backupService.List(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "Failed to list backups.")
		return
	}
	c.JSON(http.StatusOK, files)
}

// DownloadBackup sends the named snapshot file.
func (h *BackupHandler) DownloadBackup(c *gin.Context) {
	name := c.Param("name")
	path, err := h.backupService.Path(name)
	if err != nil {
		respondServiceError(c, err, "Failed to locate backup.")
		return
	}
	c.FileAttachment(path, name)
}

// CleanBackups removes automatic snapshots beyond ?keep= (default from config).
func (h *BackupHandler) CleanBackups(c *gin.Context) {
	keep := h.keep
	if raw := c.Query("keep"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid keep.", raw))
			return
		}
		keep = v
	}
	removed, err := h.backupService.CleanOld(c.Request.Context(), keep)
	if err != nil {
		respondServiceError(c, err, "Failed to clean backups.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
