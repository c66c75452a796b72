package services

import (
	"errors"
	"fmt"

	"clinic_inventory_backend/internal/ledger"
)

// --- Service Errors ---
var (
	ErrValidation          = errors.New("validation failed")
	ErrItemNotFound        = errors.New("item not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrConflict            = errors.New("conflicting record already exists")
	ErrMonthNotAvailable   = errors.New("month not available")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrTransactionClosed   = errors.New("transaction is already closed")
	ErrItemBusy            = errors.New("item ledger is being updated, retry")
)

// LedgerError carries the ledger operation and month that failed.
type LedgerError struct {
	Op     string
	ItemID int64
	Period ledger.Period
	Err    error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger %s item %d %s: %v", e.Op, e.ItemID, e.Period, e.Err)
}

func (e *LedgerError) Unwrap() error { return e.Err }

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
