package handlers

import (
	"net/http"
	"strconv"

	"clinic_inventory_backend/internal/models"
	"clinic_inventory_backend/internal/services"
	"clinic_inventory_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// TransactionHandler serves clinic visits.
type TransactionHandler struct {
	transactionService services.TransactionService
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(ts services.TransactionService) *TransactionHandler {
	return &TransactionHandler{transactionService: ts}
}

func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	var req services.TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError(err, "CreateTransaction: Failed to bind JSON")
		utils.RespondValidationFailed(c, err)
		return
	}
	txn, err := h.transactionService.Create(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err, "Failed to create transaction.")
		return
	}
	c.JSON(http.StatusCreated, txn)
}

// GetTransactions lists visits filtered by status, date range and patient search.
func (h *TransactionHandler) GetTransactions(c *gin.Context) {
	filters := models.TransactionFilters{
		DateFrom: c.Query("date_from"),
		DateTo:   c.Query("date_to"),
		Search:   c.Query("search"),
	}
	if raw := c.Query("status"); raw != "" {
		status := models.TransactionStatus(raw)
		switch status {
		case models.TransactionOngoing, models.TransactionFinished, models.TransactionCancelled:
			filters.Status = &status
		default:
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Unknown status.", raw))
			return
		}
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid limit.", raw))
			return
		}
		filters.Limit = limit
	}

	txns, err := h.transactionService.List(c.Request.Context(), filters)
	if err != nil {
		respondServiceError(c, err, "Failed to fetch transactions.")
		return
	}
	c.JSON(http.StatusOK, txns)
}

func (h *TransactionHandler) GetRecentTransactions(c *gin.Context) {
	txns, err := h.transactionService.Recent(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "Failed to fetch recent transactions.")
		return
	}
	c.JSON(http.StatusOK, txns)
}

func (h *TransactionHandler) GetTransactionByID(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	txn, err := h.transactionService.Get(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "Failed to fetch transaction.")
		return
	}
	c.JSON(http.StatusOK, txn)
}

func (h *TransactionHandler) UpdateTransaction(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req services.TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError(err, "UpdateTransaction: Failed to bind JSON")
		utils.RespondValidationFailed(c, err)
		return
	}
	txn, err := h.transactionService.Update(c.Request.Context(), id, req)
	if err != nil {
		respondServiceError(c, err, "Failed to update transaction.")
		return
	}
	c.JSON(http.StatusOK, txn)
}

func (h *TransactionHandler) FinishTransaction(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req services.FinishTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError(err, "FinishTransaction: Failed to bind JSON")
		utils.RespondValidationFailed(c, err)
		return
	}
	txn, err := h.transactionService.Finish(c.Request.Context(), id, req)
	if err != nil {
		respondServiceError(c, err, "Failed to finish transaction.")
		return
	}
	c.JSON(http.StatusOK, txn)
}

func (h *TransactionHandler) CancelTransaction(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	txn, err := h.transactionService.Cancel(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "Failed to cancel transaction.")
		return
	}
	c.JSON(http.StatusOK, txn)
}

func (h *TransactionHandler) DeleteTransaction(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.transactionService.Delete(c.Request.Context(), id); err != nil {
		respondServiceError(c, err, "Failed to delete transaction.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Transaction deleted successfully"})
}

func (h *TransactionHandler) GetStatistics(c *gin.Context) {
	stats, err := h.transactionService.Statistics(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "Failed to compute statistics.")
		return
	}
	c.JSON(http.StatusOK, stats)
}
