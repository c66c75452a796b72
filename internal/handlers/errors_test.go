package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"clinic_inventory_backend/internal/ledger"
	"clinic_inventory_backend/internal/services"

	"github.com/gin-gonic/gin"
)

func TestRespondServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name string
		err  error
		want int
		code string
	}{
		{"validation", fmt.Errorf("%w: bad month", services.ErrValidation), http.StatusBadRequest, "VALIDATION_FAILED"},
		{"credentials", services.ErrInvalidCredentials, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"forbidden", services.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{"item missing", fmt.Errorf("%w: 9", services.ErrItemNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"month missing", services.ErrMonthNotAvailable, http.StatusNotFound, "NOT_FOUND"},
		{"insufficient", &services.LedgerError{Op: "apply", ItemID: 1, Period: ledger.Period{Year: 2025, Month: 1}, Err: services.ErrInsufficientStock}, http.StatusConflict, "INSUFFICIENT_STOCK"},
		{"duplicate", services.ErrConflict, http.StatusConflict, "CONFLICT"},
		{"closed", services.ErrTransactionClosed, http.StatusConflict, "CONFLICT"},
		{"unsupported", services.ErrBackupUnsupported, http.StatusNotImplemented, "NOT_IMPLEMENTED"},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			respondServiceError(c, tt.err, "Failed.")
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if !strings.Contains(w.Body.String(), `"code":"`+tt.code+`"`) {
				t.Errorf("body = %s, want code %s", w.Body.String(), tt.code)
			}
		})
	}
}

func TestInternalErrorHidesCause(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	respondServiceError(c, errors.New("pq: password authentication failed"), "Failed to fetch items.")
	if strings.Contains(w.Body.String(), "pq:") {
		t.Errorf("body leaks cause: %s", w.Body.String())
	}
}

func TestParseIDParam(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for raw, ok := range map[string]bool{"12": true, "0": false, "-3": false, "abc": false} {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Params = gin.Params{{Key: "id", Value: raw}}
		if _, got := parseIDParam(c, "id"); got != ok {
			t.Errorf("parseIDParam(%q) ok = %v, want %v", raw, got, ok)
		}
	}
}
