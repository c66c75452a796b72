package models

import "time"

// ReportRow is one item's line on the monthly report.
// TotalIssued is recomputed from Daily; StoredIssued is the ledger aggregate.
type ReportRow struct {
	ItemID         int64       `json:"item_id"`
	Name           string      `json:"name"`
	Unit           string      `json:"unit"`
	Category       Category    `json:"category"`
	ExpiryDate     *string     `json:"expiry_date,omitempty"`
	BeginningStock int         `json:"beginning_stock"`
	Replenished    int         `json:"replenished_stock"`
	TotalIssued    int         `json:"total_issued"`
	StoredIssued   int         `json:"stored_total_issued"`
	Balance        int         `json:"balance"`
	Reconciled     bool        `json:"reconciled"`
	Daily          map[int]int `json:"daily_usage"`
}

// ReportGroup is a category section of the monthly report.
type ReportGroup struct {
	Category Category    `json:"category"`
	Label    string      `json:"label"`
	Rows     []ReportRow `json:"rows"`
}

// MonthlyReport is the month-end inventory with daily issuance.
type MonthlyReport struct {
	Year         int           `json:"year"`
	Month        int           `json:"month"`
	DaysInMonth  int           `json:"days_in_month"`
	Available    bool          `json:"available"`
	Groups       []ReportGroup `json:"groups"`
	Unreconciled int           `json:"unreconciled"`
	GeneratedAt  time.Time     `json:"generated_at"`
}

// DailyIssue is the raw per-day issuance read from transactions.
type DailyIssue struct {
	Medication string `db:"medication"`
	Date       string `db:"date"`
	Quantity   int    `db:"quantity"`
}

// DailyInventoryRow is one item's usage on a specific date.
type DailyInventoryRow struct {
	ItemID       int64    `json:"item_id" db:"item_id"`
	Name         string   `json:"name" db:"name"`
	Unit         string   `json:"unit" db:"unit"`
	Category     Category `json:"category" db:"category"`
	QuantityUsed int      `json:"quantity_used" db:"quantity_used"`
	CurrentStock int      `json:"current_stock" db:"current_stock"`
}

// LowStockItem is an item whose current month balance is at or below the threshold.
type LowStockItem struct {
	ItemID       int64    `json:"item_id" db:"item_id"`
	Name         string   `json:"name" db:"name"`
	Unit         string   `json:"unit" db:"unit"`
	Category     Category `json:"category" db:"category"`
	Balance      int      `json:"balance" db:"balance"`
	CurrentStock int      `json:"current_stock" db:"current_stock"`
}

// ExpiringItem is an item approaching its expiry date.
type ExpiringItem struct {
	Item
	DaysUntilExpiry int  `json:"days_until_expiry"`
	Expired         bool `json:"expired"`
}

// BackupFile describes a database snapshot on disk.
type BackupFile struct {
	Name      string    `json:"name"`
	Kind      string    `json:"kind"` // auto or manual
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}
