package ledger

import (
	"fmt"
	"sort"

	"clinic_inventory_backend/internal/models"
)

// EntryPeriod is the month an entry belongs to.
func EntryPeriod(e *models.LedgerEntry) Period {
	return Period{Year: e.Year, Month: e.Month}
}

// Opening builds a fresh entry whose balance equals its beginning stock.
func Opening(itemID int64, p Period, beginning int) models.LedgerEntry {
	return models.LedgerEntry{
		ItemID:         itemID,
		Year:           p.Year,
		Month:          p.Month,
		BeginningStock: beginning,
		Balance:        beginning,
	}
}

// ExpectedBalance is beginning + replenished - issued.
func ExpectedBalance(e *models.LedgerEntry) int {
	return e.BeginningStock + e.ReplenishedStock - e.TotalIssued
}

// Recompute restores the balance identity and reports whether the balance moved.
func Recompute(e *models.LedgerEntry) bool {
	want := ExpectedBalance(e)
	if e.Balance == want {
		return false
	}
	e.Balance = want
	return true
}

// Apply adds signed issued/replenished deltas to an entry and recomputes it.
// Counters may not go negative.
func Apply(e *models.LedgerEntry, issuedDelta, replenishedDelta int) error {
	issued := e.TotalIssued + issuedDelta
	replenished := e.ReplenishedStock + replenishedDelta
	if issued < 0 {
		return fmt.Errorf("total issued for %s would become %d", EntryPeriod(e), issued)
	}
	if replenished < 0 {
		return fmt.Errorf("replenished stock for %s would become %d", EntryPeriod(e), replenished)
	}
	e.TotalIssued = issued
	e.ReplenishedStock = replenished
	Recompute(e)
	return nil
}

// SortEntries orders entries chronologically.
func SortEntries(entries []models.LedgerEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return EntryPeriod(&entries[i]).Before(EntryPeriod(&entries[j]))
	})
}

// RollForward carries prevBalance through later, which must be sorted and
// strictly after the month that produced prevBalance. Each entry's beginning
// stock becomes the previous balance and its balance is recomputed; replenished
// and issued figures are left alone. The entries that changed are returned.
func RollForward(prevBalance int, later []models.LedgerEntry) []models.LedgerEntry {
	var changed []models.LedgerEntry
	for i := range later {
		e := &later[i]
		moved := e.BeginningStock != prevBalance
		e.BeginningStock = prevBalance
		if Recompute(e) {
			moved = true
		}
		if moved {
			changed = append(changed, *e)
		}
		prevBalance = e.Balance
	}
	return changed
}

// ViolationKind names a broken ledger rule.
type ViolationKind string

const (
	BalanceMismatch    ViolationKind = "balance_identity"
	ContinuityMismatch ViolationKind = "continuity"
	BeforeOrigin       ViolationKind = "before_origin"
)

// Violation is one broken rule on one entry.
type Violation struct {
	ItemID   int64         `json:"item_id"`
	Period   Period        `json:"period"`
	Kind     ViolationKind `json:"kind"`
	Expected int           `json:"expected"`
	Actual   int           `json:"actual"`
}

func (v Violation) String() string {
	return fmt.Sprintf("item %d %s: %s expected %d got %d", v.ItemID, v.Period, v.Kind, v.Expected, v.Actual)
}

// Verify checks one item's entries for the balance identity, continuity between
// consecutive months and rows before the origin. Entries need not be sorted.
func Verify(entries []models.LedgerEntry, origin Period) []Violation {
	sorted := make([]models.LedgerEntry, len(entries))
	copy(sorted, entries)
	SortEntries(sorted)

	var out []Violation
	for i := range sorted {
		e := &sorted[i]
		p := EntryPeriod(e)
		if p.Before(origin) {
			out = append(out, Violation{ItemID: e.ItemID, Period: p, Kind: BeforeOrigin})
		}
		if want := ExpectedBalance(e); want != e.Balance {
			out = append(out, Violation{ItemID: e.ItemID, Period: p, Kind: BalanceMismatch, Expected: want, Actual: e.Balance})
		}
		if i == 0 {
			continue
		}
		prev := &sorted[i-1]
		if EntryPeriod(prev).Next() == p && e.BeginningStock != prev.Balance {
			out = append(out, Violation{ItemID: e.ItemID, Period: p, Kind: ContinuityMismatch, Expected: prev.Balance, Actual: e.BeginningStock})
		}
	}
	return out
}
