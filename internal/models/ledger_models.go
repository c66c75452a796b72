package models

// LedgerEntry is one month's stock bookkeeping row for one item.
type LedgerEntry struct {
	ID               int64 `json:"id" db:"id"`
	ItemID           int64 `json:"item_id" db:"item_id"`
	Year             int   `json:"year" db:"year"`
	Month            int   `json:"month" db:"month"`
	BeginningStock   int   `json:"beginning_stock" db:"beginning_stock"`
	ReplenishedStock int   `json:"replenished_stock" db:"replenished_stock"`
	TotalIssued      int   `json:"total_issued" db:"total_issued"`
	Balance          int   `json:"balance" db:"balance"`
}

// MonthItem is an item together with its ledger row for a month,
// as shown on the inventory screen.
type MonthItem struct {
	Item            Item        `json:"item"`
	Entry           LedgerEntry `json:"ledger"`
	PreviousBalance *int        `json:"previous_balance,omitempty"`
}

// CategoryGroup is a category heading with its rows.
type CategoryGroup struct {
	Category Category    `json:"category"`
	Label    string      `json:"label"`
	Items    []MonthItem `json:"items"`
}

// MonthView is the grouped inventory for a month.
// Available is false for months before the ledger origin.
type MonthView struct {
	Year      int             `json:"year"`
	Month     int             `json:"month"`
	Available bool            `json:"available"`
	Groups    []CategoryGroup `json:"groups"`
}
