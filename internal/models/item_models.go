package models

import (
	"strings"
	"time"
)

// Category classifies an inventory item. The set is closed.
type Category string

const (
	CategoryMedicine      Category = "MEDICINE"
	CategoryMedicalSupply Category = "MEDICAL_SUPPLY"
	CategoryDentalSupply  Category = "DENTAL_SUPPLY"
	CategoryOtherSupply   Category = "OTHER_SUPPLY"
)

// Categories lists every category in report precedence order.
var Categories = []Category{CategoryMedicine, CategoryMedicalSupply, CategoryDentalSupply, CategoryOtherSupply}

// legacy spellings found in older catalogues and exports
var categoryAliases = map[string]Category{
	"MEDICINE":         CategoryMedicine,
	"MEDICINES":        CategoryMedicine,
	"MEDICAL_SUPPLY":   CategoryMedicalSupply,
	"MEDICAL SUPPLY":   CategoryMedicalSupply,
	"MEDICAL SUPPLIES": CategoryMedicalSupply,
	"MEDICAL_SUPPLIES": CategoryMedicalSupply,
	"DENTAL_SUPPLY":    CategoryDentalSupply,
	"DENTAL SUPPLY":    CategoryDentalSupply,
	"DENTAL SUPPLIES":  CategoryDentalSupply,
	"DENTAL_SUPPLIES":  CategoryDentalSupply,
	"OTHER_SUPPLY":     CategoryOtherSupply,
	"OTHER SUPPLY":     CategoryOtherSupply,
	"OTHER SUPPLIES":   CategoryOtherSupply,
	"OTHER_SUPPLIES":   CategoryOtherSupply,
}

// ParseCategory maps canonical and legacy spellings onto a Category.
func ParseCategory(s string) (Category, bool) {
	key := strings.ToUpper(strings.Join(strings.Fields(s), " "))
	c, ok := categoryAliases[key]
	return c, ok
}

// Precedence is the position of the category in grouped listings.
func (c Category) Precedence() int {
	for i, cat := range Categories {
		if cat == c {
			return i
		}
	}
	return len(Categories)
}

// Label is the heading printed on reports.
func (c Category) Label() string {
	switch c {
	case CategoryMedicine:
		return "Medicines"
	case CategoryMedicalSupply:
		return "Medical Supplies"
	case CategoryDentalSupply:
		return "Dental Supplies"
	case CategoryOtherSupply:
		return "Other Supplies"
	}
	return string(c)
}

// Item is a medicine or supply tracked in inventory.
// CurrentStock caches the latest known quantity on hand.
type Item struct {
	ID           int64     `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Unit         string    `json:"unit" db:"unit"`
	Category     Category  `json:"category" db:"category"`
	ExpiryDate   *string   `json:"expiry_date,omitempty" db:"expiry_date"` // YYYY-MM-DD
	CurrentStock int       `json:"current_stock" db:"current_stock"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// ItemFilters narrows ListItems.
type ItemFilters struct {
	Category *Category
	Search   string
}

// StockReplenishment records a restock delivered into a ledger month.
type StockReplenishment struct {
	ID         int64     `json:"id" db:"id"`
	ItemID     int64     `json:"item_id" db:"item_id"`
	Year       int       `json:"year" db:"year"`
	Month      int       `json:"month" db:"month"`
	Quantity   int       `json:"quantity" db:"quantity"`
	UserID     *int64    `json:"user_id,omitempty" db:"user_id"`
	Remarks    *string   `json:"remarks,omitempty" db:"remarks"`
	ReceivedAt time.Time `json:"received_at" db:"received_at"`
	ItemName   string    `json:"item_name,omitempty" db:"item_name"`
}
