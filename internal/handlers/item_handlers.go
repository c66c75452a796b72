package handlers

import (
	"net/http"
	"strconv"

	"clinic_inventory_backend/internal/models"
	"clinic_inventory_backend/internal/services"
	"clinic_inventory_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// ItemHandler serves the item catalogue and its ledger.
type ItemHandler struct {
	itemService   services.ItemService
	ledgerService services.LedgerService
}

// NewItemHandler creates a new ItemHandler.
func NewItemHandler(is services.ItemService, ls services.LedgerService) *ItemHandler {
	return &ItemHandler{itemService: is, ledgerService: ls}
}

// CreateItem registers an item and materializes its ledger.
func (h *ItemHandler) CreateItem(c *gin.Context) {
	var req services.RegisterItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError(err, "CreateItem: Failed to bind JSON")
		utils.RespondValidationFailed(c, err)
		return
	}
	item, err := h.itemService.CreateItem(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err, "Failed to create item.")
		return
	}
	c.JSON(http.StatusCreated, item)
}

// GetItems lists the catalogue, optionally filtered by ?category= and ?search=.
func (h *ItemHandler) GetItems(c *gin.Context) {
	filters := models.ItemFilters{Search: c.Query("search")}
	if raw := c.Query("category"); raw != "" {
		category, ok := models.ParseCategory(raw)
		if !ok {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Unknown category.", raw))
			return
		}
		filters.Category = &category
	}
	items, err := h.itemService.ListItems(c.Request.Context(), filters)
	if err != nil {
		respondServiceError(c, err, "Failed to fetch items.")
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *ItemHandler) GetItemByID(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	item, err := h.itemService.GetItem(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "Failed to fetch item.")
		return
	}
	c.JSON(http.StatusOK, item)
}

// GetMonthView returns the grouped inventory for ?year=&month=.
func (h *ItemHandler) GetMonthView(c *gin.Context) {
	year, month, ok := parseYearMonth(c)
	if !ok {
		return
	}
	view, err := h.itemService.MonthView(c.Request.Context(), year, month)
	if err != nil {
		respondServiceError(c, err, "Failed to build month view.")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *ItemHandler) EditItemMonth(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req services.EditItemMonthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError(err, "EditItemMonth: Failed to bind JSON")
		utils.RespondValidationFailed(c, err)
		return
	}
	row, err := h.itemService.EditItemMonth(c.Request.Context(), id, req)
	if err != nil {
		respondServiceError(c, err, "Failed to update item month.")
		return
	}
	c.JSON(http.StatusOK, row)
}

// Replenish adds stock to an item's month and records who received it.
func (h *ItemHandler) Replenish(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req services.ReplenishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError(err, "Replenish: Failed to bind JSON")
		utils.RespondValidationFailed(c, err)
		return
	}
	var userID *int64
	if uid, _, ok := currentUser(c); ok {
		userID = &uid
	}
	entry, err := h.itemService.Replenish(c.Request.Context(), id, req, userID)
	if err != nil {
		respondServiceError(c, err, "Failed to replenish item.")
		return
	}
	c.JSON(http.StatusOK, entry)
}

// GetReplenishments lists restocks, optionally for one ?item_id=.
func (h *ItemHandler) GetReplenishments(c *gin.Context) {
	var itemID *int64
	if raw := c.Query("item_id"); raw != "" {
		id, err := utils.StrToInt64(raw)
		if err != nil {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeBadRequest, "Invalid item_id format.", raw))
			return
		}
		itemID = &id
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	rows, total, err := h.itemService.ListReplenishments(c.Request.Context(), itemID, page, pageSize)
	if err != nil {
		respondServiceError(c, err, "Failed to fetch replenishments.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows, "total": total, "page": page, "page_size": pageSize})
}

// GetLowStock lists items at or under ?threshold= in the current month.
func (h *ItemHandler) GetLowStock(c *gin.Context) {
	var threshold *int
	if raw := c.Query("threshold"); raw != "" {
		v, err := utils.StrToInt(raw)
		if err != nil || v < 0 {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid threshold.", raw))
			return
		}
		threshold = &v
	}
	rows, err := h.itemService.LowStock(c.Request.Context(), threshold)
	if err != nil {
		respondServiceError(c, err, "Failed to fetch low stock items.")
		return
	}
	c.JSON(http.StatusOK, rows)
}

// GetExpiring lists items expiring within ?months= months.
func (h *ItemHandler) GetExpiring(c *gin.Context) {
	months, err := strconv.Atoi(c.DefaultQuery("months", "3"))
	if err != nil || months < 0 {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid months.", c.Query("months")))
		return
	}
	rows, err := h.itemService.ExpiringItems(c.Request.Context(), months)
	if err != nil {
		respondServiceError(c, err, "Failed to fetch expiring items.")
		return
	}
	c.JSON(http.StatusOK, rows)
}

// GetItemLedger returns every month stored for the item.
func (h *ItemHandler) GetItemLedger(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	entries, err := h.ledgerService.ItemLedger(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "Failed to fetch item ledger.")
		return
	}
	c.JSON(http.StatusOK, entries)
}

// DeleteItemLedger removes the item's months from ?year=&month= onward.
func (h *ItemHandler) DeleteItemLedger(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	year, month, ok := parseYearMonth(c)
	if !ok {
		return
	}
	removed, err := h.ledgerService.DeleteItemFrom(c.Request.Context(), id, year, month)
	if err != nil {
		respondServiceError(c, err, "Failed to delete item ledger.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": removed})
}

// RebuildItemLedger recomputes stored months; ?sync_stock=true also resets current_stock.
func (h *ItemHandler) RebuildItemLedger(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	syncStock, _ := strconv.ParseBool(c.DefaultQuery("sync_stock", "false"))
	updated, err := h.ledgerService.Rebuild(c.Request.Context(), id, syncStock)
	if err != nil {
		respondServiceError(c, err, "Failed to rebuild item ledger.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// VerifyLedger checks every item's chain and reports the broken ones.
func (h *ItemHandler) VerifyLedger(c *gin.Context) {
	results, err := h.ledgerService.Verify(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "Failed to verify ledger.")
		return
	}
	broken := make([]services.ItemVerification, 0)
	for _, r := range results {
		if len(r.Violations) > 0 {
			broken = append(broken, r)
		}
	}
	c.JSON(http.StatusOK, gin.H{"checked": len(results), "broken": broken})
}
