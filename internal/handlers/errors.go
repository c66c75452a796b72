package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"clinic_inventory_backend/internal/services"
	"clinic_inventory_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// respondServiceError maps service errors onto API errors. Anything unknown is
// a 500 whose detail stays in the log.
func respondServiceError(c *gin.Context, err error, action string) {
	utils.LogError(err, action)
	switch {
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrRoleNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, err.Error(), ""))
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrUserInactive):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, err.Error(), ""))
	case errors.Is(err, services.ErrForbidden):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusForbidden, utils.ErrCodeForbidden, err.Error(), ""))
	case errors.Is(err, services.ErrItemNotFound), errors.Is(err, services.ErrTransactionNotFound),
		errors.Is(err, services.ErrUserNotFound), errors.Is(err, services.ErrBackupNotFound),
		errors.Is(err, services.ErrMonthNotAvailable):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, err.Error(), ""))
	case errors.Is(err, services.ErrInsufficientStock):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeInsufficientStock, err.Error(), ""))
	case errors.Is(err, services.ErrConflict), errors.Is(err, services.ErrUsernameExists),
		errors.Is(err, services.ErrTransactionClosed), errors.Is(err, services.ErrBackupExists),
		errors.Is(err, services.ErrItemBusy):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, err.Error(), ""))
	case errors.Is(err, services.ErrBackupUnsupported):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotImplemented, utils.ErrCodeNotImplemented, err.Error(), ""))
	default:
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, action, "Internal error"))
	}
}

func parseIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeBadRequest, "Invalid "+name+" format.", c.Param(name)))
		return 0, false
	}
	return id, true
}

// parseYearMonth reads the year and month query parameters.
func parseYearMonth(c *gin.Context) (int, int, bool) {
	year, errY := strconv.Atoi(c.Query("year"))
	month, errM := strconv.Atoi(c.Query("month"))
	if errY != nil || errM != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed,
			"year and month query parameters are required.", "expected integers"))
		return 0, 0, false
	}
	return year, month, true
}

// currentUser returns the claims AuthMiddleware stored on the context.
func currentUser(c *gin.Context) (int64, string, bool) {
	userID, ok := c.Get("userID")
	if !ok {
		return 0, "", false
	}
	id, ok := userID.(int64)
	if !ok {
		return 0, "", false
	}
	return id, c.GetString("userRole"), true
}
