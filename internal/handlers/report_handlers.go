package handlers

import (
	"bytes"
	"net/http"

	"clinic_inventory_backend/internal/services"
	"clinic_inventory_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// ReportHandler serves the monthly report and daily inventory.
type ReportHandler struct {
	reportService services.ReportService
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(rs services.ReportService) *ReportHandler {
	return &ReportHandler{reportService: rs}
}

// GetMonthlyReport returns the report for ?year=&month= as JSON.
func (h *ReportHandler) GetMonthlyReport(c *gin.Context) {
	year, month, ok := parseYearMonth(c)
	if !ok {
		return
	}
	report, err := h.reportService.MonthlyReport(c.Request.Context(), year, month)
	if err != nil {
		respondServiceError(c, err, "Failed to build monthly report.")
		return
	}
	c.JSON(http.StatusOK, report)
}

// ExportMonthlyReport streams the report as an XLSX attachment.
func (h *ReportHandler) ExportMonthlyReport(c *gin.Context) {
	year, month, ok := parseYearMonth(c)
	if !ok {
		return
	}
	report, err := h.reportService.MonthlyReport(c.Request.Context(), year, month)
	if err != nil {
		respondServiceError(c, err, "Failed to build monthly report.")
		return
	}

	var buf bytes.Buffer
	if err := services.ExportMonthlyReport(report, &buf); err != nil {
		utils.LogError(err, "ExportMonthlyReport: Failed to render workbook")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to export report.", "Internal error"))
		return
	}
	utils.LogDebug("Monthly report exported", map[string]interface{}{"year": year, "month": month, "bytes": buf.Len()})
	c.Header("Content-Disposition", `attachment; filename="`+services.ReportFilename(year, month)+`"`)
	c.Data(http.StatusOK, services.XLSXContentType, buf.Bytes())
}

// GetDailyInventory returns per-item figures for ?date= (default today).
func (h *ReportHandler) GetDailyInventory(c *gin.Context) {
	rows, err := h.reportService.DailyInventory(c.Request.Context(), c.Query("date"))
	if err != nil {
		respondServiceError(c, err, "Failed to build daily inventory.")
		return
	}
	c.JSON(http.StatusOK, rows)
}
