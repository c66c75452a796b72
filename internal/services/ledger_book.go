package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"clinic_inventory_backend/internal/ledger"
	"clinic_inventory_backend/internal/locking"
	"clinic_inventory_backend/internal/models"
	"clinic_inventory_backend/internal/repositories"
)

// Delta is a signed change to one ledger month. Current stock moves by
// Replenished minus Issued: a restock is stock on hand. Month edits that only
// correct the books go through EditItemMonth and never build a Delta.
type Delta struct {
	Issued      int
	Replenished int
}

// ledgerBook holds the ledger primitives. Every method runs on the caller's
// executor so that services compose them inside one transaction.
type ledgerBook struct {
	items   repositories.ItemRepository
	entries repositories.LedgerRepository
	locker  locking.Locker
	origin  ledger.Period
	horizon ledger.Period
}

func (b *ledgerBook) checkPeriod(p ledger.Period) error {
	if !p.Valid() {
		return validationError("invalid year/month %d-%d", p.Year, p.Month)
	}
	return nil
}

// lockItems takes the per item locks in id order.
func (b *ledgerBook) lockItems(ctx context.Context, ids ...int64) (func(), error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var releases []func()
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	var last int64 = -1
	for _, id := range sorted {
		if id == last {
			continue
		}
		last = id
		release, err := b.locker.Obtain(ctx, locking.ItemKey(id))
		if err != nil {
			releaseAll()
			if errors.Is(err, locking.ErrNotObtained) {
				return nil, fmt.Errorf("%w: %v", ErrItemBusy, err)
			}
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}

func (b *ledgerBook) getItem(ctx context.Context, exec repositories.SQLExecutor, itemID int64) (*models.Item, error) {
	item, err := b.items.GetByID(ctx, exec, itemID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrItemNotFound, itemID)
		}
		return nil, err
	}
	return item, nil
}

// ensureMonth returns the entry for (item, p), creating it from the most recent
// earlier balance when missing. ok is false, with no row written, for months
// before the origin and for months before the item's first entry.
func (b *ledgerBook) ensureMonth(ctx context.Context, exec repositories.SQLExecutor, itemID int64, p ledger.Period) (*models.LedgerEntry, bool, error) {
	if err := b.checkPeriod(p); err != nil {
		return nil, false, err
	}
	if p.Before(b.origin) {
		return nil, false, nil
	}

	entry, err := b.entries.Get(ctx, exec, itemID, p)
	if err == nil {
		return entry, true, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, false, err
	}

	var beginning int
	prev, err := b.entries.LatestBefore(ctx, exec, itemID, p)
	switch {
	case err == nil:
		beginning = prev.Balance
	case errors.Is(err, repositories.ErrNotFound):
		later, err := b.entries.ExistsAfter(ctx, exec, itemID, p)
		if err != nil {
			return nil, false, err
		}
		if later {
			return nil, false, nil
		}
		item, err := b.getItem(ctx, exec, itemID)
		if err != nil {
			return nil, false, err
		}
		beginning = item.CurrentStock
	default:
		return nil, false, err
	}

	fresh := ledger.Opening(itemID, p, beginning)
	// a concurrent writer may have created the month first; either way the
	// stored row is the answer
	if _, err := b.entries.InsertIgnore(ctx, exec, &fresh); err != nil {
		return nil, false, err
	}
	entry, err = b.entries.Get(ctx, exec, itemID, p)
	if err != nil {
		return nil, false, err
	}
	return entry, true, nil
}

// applyDelta changes one month, keeps current stock in step and cascades.
func (b *ledgerBook) applyDelta(ctx context.Context, exec repositories.SQLExecutor, itemID int64, p ledger.Period, d Delta) (*models.LedgerEntry, error) {
	entry, ok, err := b.ensureMonth(ctx, exec, itemID, p)
	if err != nil {
		return nil, &LedgerError{Op: "apply", ItemID: itemID, Period: p, Err: err}
	}
	if !ok {
		return nil, &LedgerError{Op: "apply", ItemID: itemID, Period: p, Err: ErrMonthNotAvailable}
	}

	if d.Issued > 0 {
		item, err := b.getItem(ctx, exec, itemID)
		if err != nil {
			return nil, err
		}
		if item.CurrentStock < d.Issued {
			return nil, &LedgerError{Op: "apply", ItemID: itemID, Period: p,
				Err: fmt.Errorf("%w: %s has %d, requested %d", ErrInsufficientStock, item.Name, item.CurrentStock, d.Issued)}
		}
	}

	if err := ledger.Apply(entry, d.Issued, d.Replenished); err != nil {
		return nil, &LedgerError{Op: "apply", ItemID: itemID, Period: p, Err: fmt.Errorf("%w: %v", ErrValidation, err)}
	}
	if err := b.entries.Update(ctx, exec, entry); err != nil {
		return nil, err
	}

	if stockDelta := d.Replenished - d.Issued; stockDelta != 0 {
		if _, err := b.items.AdjustStock(ctx, exec, itemID, stockDelta); err != nil {
			return nil, err
		}
	}

	if _, err := b.cascadeFrom(ctx, exec, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// cascadeFrom rolls from's balance through every later entry of the item.
func (b *ledgerBook) cascadeFrom(ctx context.Context, exec repositories.SQLExecutor, from *models.LedgerEntry) (int, error) {
	later, err := b.entries.ListAfter(ctx, exec, from.ItemID, ledger.EntryPeriod(from))
	if err != nil {
		return 0, err
	}
	changed := ledger.RollForward(from.Balance, later)
	for i := range changed {
		if err := b.entries.Update(ctx, exec, &changed[i]); err != nil {
			return 0, err
		}
	}
	return len(changed), nil
}

// registerItem creates the item and its timeline from start through the horizon.
// Existing names or months are a hard conflict.
func (b *ledgerBook) registerItem(ctx context.Context, exec repositories.SQLExecutor, item *models.Item, start ledger.Period, opening int) error {
	if err := b.checkPeriod(start); err != nil {
		return err
	}
	if start.Before(b.origin) {
		return validationError("start month %s is before the ledger origin %s", start, b.origin)
	}
	if start.After(b.horizon) {
		return validationError("start month %s is after the ledger horizon %s", start, b.horizon)
	}
	if opening < 0 {
		return validationError("opening stock must not be negative")
	}

	item.CurrentStock = opening
	if _, err := b.items.Create(ctx, exec, item); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return fmt.Errorf("%w: item %q", ErrConflict, item.Name)
		}
		return err
	}

	for _, p := range ledger.Timeline(start, b.horizon) {
		entry := ledger.Opening(item.ID, p, opening)
		if _, err := b.entries.Insert(ctx, exec, &entry); err != nil {
			if errors.Is(err, repositories.ErrDuplicateKey) {
				return &LedgerError{Op: "register", ItemID: item.ID, Period: p, Err: ErrConflict}
			}
			return err
		}
	}
	return nil
}

// rebuild re-establishes the balance identity and continuity across all of an
// item's entries, starting from the first one's beginning stock.
func (b *ledgerBook) rebuild(ctx context.Context, exec repositories.SQLExecutor, itemID int64) (int, error) {
	entries, err := b.entries.ListForItem(ctx, exec, itemID)
	if err != nil || len(entries) == 0 {
		return 0, err
	}
	changed := 0
	first := &entries[0]
	if ledger.Recompute(first) {
		if err := b.entries.Update(ctx, exec, first); err != nil {
			return 0, err
		}
		changed++
	}
	rolled := ledger.RollForward(first.Balance, entries[1:])
	for i := range rolled {
		if err := b.entries.Update(ctx, exec, &rolled[i]); err != nil {
			return 0, err
		}
	}
	return changed + len(rolled), nil
}
