package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"clinic_inventory_backend/internal/locking"
)

func TestRegisterItemMaterializesTimeline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item := env.register(t, "paracetamol 500mg", "medicine", 100)

	if item.Name != "PARACETAMOL 500MG" || item.CurrentStock != 100 {
		t.Fatalf("item = %+v", item)
	}
	entries, err := env.ledger.ItemLedger(ctx, item.ID)
	if err != nil {
		t.Fatalf("ItemLedger: %v", err)
	}
	if len(entries) != 10 {
		t.Fatalf("entries = %d, want 10 (2024-09..2025-06)", len(entries))
	}
	for _, e := range entries {
		if e.BeginningStock != 100 || e.Balance != 100 || e.ReplenishedStock != 0 || e.TotalIssued != 0 {
			t.Errorf("%d-%02d = %+v", e.Year, e.Month, e)
		}
	}
	last := entries[len(entries)-1]
	if last.Year != 2025 || last.Month != 6 {
		t.Errorf("last entry %d-%02d, want 2025-06", last.Year, last.Month)
	}
}

func TestRegisterItemDuplicateIsConflict(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "Amoxicillin", "MEDICINE", 10)

	_, err := env.ledger.RegisterItem(context.Background(), RegisterItemRequest{
		Name: " amoxicillin ", Unit: "capsule", Category: "MEDICINE",
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestRegisterItemValidation(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name string
		req  RegisterItemRequest
	}{
		{"unknown category", RegisterItemRequest{Name: "X", Unit: "pc", Category: "FOOD"}},
		{"negative opening", RegisterItemRequest{Name: "X", Unit: "pc", Category: "MEDICINE", OpeningStock: -1}},
		{"before origin", RegisterItemRequest{Name: "X", Unit: "pc", Category: "MEDICINE", Year: 2024, Month: 8}},
		{"after horizon", RegisterItemRequest{Name: "X", Unit: "pc", Category: "MEDICINE", Year: 2025, Month: 7}},
		{"bad expiry", RegisterItemRequest{Name: "X", Unit: "pc", Category: "MEDICINE", ExpiryDate: strPtr("12/2025")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.ledger.RegisterItem(context.Background(), tt.req); !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestLedgerScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item := env.register(t, "Paracetamol", "MEDICINE", 100)

	// issue 30 in the origin month
	tx, err := env.txs.Create(ctx, visit("2024-09-10", "paracetamol", 30))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got := env.entry(t, item.ID, 2024, 9); got.TotalIssued != 30 || got.Balance != 70 {
		t.Fatalf("2024-09 after issue = %+v", got)
	}
	if got := env.entry(t, item.ID, 2024, 10); got.BeginningStock != 70 || got.Balance != 70 {
		t.Fatalf("2024-10 after issue = %+v", got)
	}
	if got := env.stock(t, item.ID); got != 70 {
		t.Fatalf("current stock = %d, want 70", got)
	}

	// replenish the same month afterwards
	if _, err := env.items.Replenish(ctx, item.ID, ReplenishRequest{Year: 2024, Month: 9, Quantity: 50}, nil); err != nil {
		t.Fatalf("Replenish: %v", err)
	}
	if got := env.entry(t, item.ID, 2024, 9); got.Balance != 120 {
		t.Fatalf("2024-09 after replenish = %+v", got)
	}
	for _, m := range []int{10, 11, 12} {
		if got := env.entry(t, item.ID, 2024, m); got.BeginningStock != 120 || got.Balance != 120 {
			t.Fatalf("2024-%02d after replenish = %+v", m, got)
		}
	}
	if got := env.entry(t, item.ID, 2025, 6); got.Balance != 120 {
		t.Fatalf("2025-06 after replenish = %+v", got)
	}
	env.assertConsistent(t)

	// cancel the issue
	if _, err := env.txs.Cancel(ctx, tx.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got := env.entry(t, item.ID, 2024, 9); got.TotalIssued != 0 || got.Balance != 150 {
		t.Fatalf("2024-09 after cancel = %+v", got)
	}
	if got := env.entry(t, item.ID, 2025, 3); got.BeginningStock != 150 || got.Balance != 150 {
		t.Fatalf("2025-03 after cancel = %+v", got)
	}
	if got := env.stock(t, item.ID); got != 150 {
		t.Fatalf("current stock = %d, want 150", got)
	}
	env.assertConsistent(t)

	// delete from 2024-11 onward
	removed, err := env.ledger.DeleteItemFrom(ctx, item.ID, 2024, 11)
	if err != nil {
		t.Fatalf("DeleteItemFrom: %v", err)
	}
	if removed != 8 {
		t.Fatalf("removed = %d, want 8", removed)
	}
	entries, err := env.ledger.ItemLedger(ctx, item.ID)
	if err != nil {
		t.Fatalf("ItemLedger: %v", err)
	}
	if len(entries) != 2 || entries[0].Balance != 150 || entries[1].Month != 10 || entries[1].Balance != 150 {
		t.Fatalf("remaining entries = %+v", entries)
	}
}

func TestEnsureMonthBeforeOriginIsNotAvailable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item := env.register(t, "Ibuprofen", "MEDICINE", 40)

	entry, ok, err := env.ledger.EnsureMonth(ctx, item.ID, 2024, 8)
	if err != nil || ok || entry != nil {
		t.Fatalf("EnsureMonth(2024-08) = %v, %v, %v; want nil, false, nil", entry, ok, err)
	}
	entries, _ := env.ledger.ItemLedger(ctx, item.ID)
	if len(entries) != 10 {
		t.Fatalf("entries = %d, a row was created", len(entries))
	}
}

func TestEnsureMonthSeedsFromLatestBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item := env.register(t, "Cetirizine", "MEDICINE", 25)

	if _, err := env.ledger.ApplyDelta(ctx, item.ID, 2024, 10, 5, 0); err != nil {
		t.Fatalf("ApplyDelta: %v", err)
	}
	if _, err := env.ledger.DeleteItemFrom(ctx, item.ID, 2024, 11); err != nil {
		t.Fatalf("DeleteItemFrom: %v", err)
	}

	// 2025-02 after a gap: seeded from 2024-10's balance
	entry, ok, err := env.ledger.EnsureMonth(ctx, item.ID, 2025, 2)
	if err != nil || !ok {
		t.Fatalf("EnsureMonth = %v, %v", ok, err)
	}
	if entry.BeginningStock != 20 || entry.Balance != 20 {
		t.Fatalf("seeded entry = %+v, want 20", entry)
	}

	again, ok, err := env.ledger.EnsureMonth(ctx, item.ID, 2025, 2)
	if err != nil || !ok || again.ID != entry.ID {
		t.Fatalf("second EnsureMonth = %+v, %v, %v", again, ok, err)
	}
}

func TestEnsureMonthBeforeFirstEntryIsNotAvailable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item, err := env.ledger.RegisterItem(ctx, RegisterItemRequest{
		Name: "Gauze", Unit: "roll", Category: "MEDICAL_SUPPLY", OpeningStock: 12, Year: 2024, Month: 12,
	})
	if err != nil {
		t.Fatalf("RegisterItem: %v", err)
	}
	_, ok, err := env.ledger.EnsureMonth(ctx, item.ID, 2024, 10)
	if err != nil || ok {
		t.Fatalf("EnsureMonth(2024-10) ok=%v err=%v, want not available", ok, err)
	}
}

func TestEnsureMonthWithoutEntriesSeedsFromCurrentStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item := env.register(t, "Cotton", "OTHER_SUPPLY", 33)
	if _, err := env.ledger.DeleteItemFrom(ctx, item.ID, 2024, 9); err != nil {
		t.Fatalf("DeleteItemFrom: %v", err)
	}
	entry, ok, err := env.ledger.EnsureMonth(ctx, item.ID, 2024, 12)
	if err != nil || !ok {
		t.Fatalf("EnsureMonth = %v, %v", ok, err)
	}
	if entry.BeginningStock != 33 {
		t.Fatalf("beginning = %d, want current stock 33", entry.BeginningStock)
	}
}

func TestApplyDeltaInsufficientStockRollsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item := env.register(t, "Mefenamic Acid", "MEDICINE", 10)

	_, err := env.ledger.ApplyDelta(ctx, item.ID, 2024, 9, 11, 0)
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}
	var lerr *LedgerError
	if !errors.As(err, &lerr) || lerr.ItemID != item.ID {
		t.Fatalf("err = %#v, want *LedgerError for item %d", err, item.ID)
	}
	if got := env.entry(t, item.ID, 2024, 9); got.TotalIssued != 0 || got.Balance != 10 {
		t.Fatalf("entry changed: %+v", got)
	}
	if env.stock(t, item.ID) != 10 {
		t.Fatal("stock changed")
	}
}

func TestApplyDeltaRejectsNegativeCounters(t *testing.T) {
	env := newTestEnv(t)
	item := env.register(t, "Loperamide", "MEDICINE", 10)

	_, err := env.ledger.ApplyDelta(context.Background(), item.ID, 2024, 9, -1, 0)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestApplyDeltaUnknownItem(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.ledger.ApplyDelta(context.Background(), 999, 2024, 9, 1, 0)
	if !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("err = %v, want ErrItemNotFound", err)
	}
}

func TestApplyDeltaBeforeOrigin(t *testing.T) {
	env := newTestEnv(t)
	item := env.register(t, "Salbutamol", "MEDICINE", 10)
	_, err := env.ledger.ApplyDelta(context.Background(), item.ID, 2024, 8, 1, 0)
	if !errors.Is(err, ErrMonthNotAvailable) {
		t.Fatalf("err = %v, want ErrMonthNotAvailable", err)
	}
}

func TestCascadeForwardIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item := env.register(t, "Betadine", "MEDICAL_SUPPLY", 50)

	// corrupt an interior month directly, as a legacy import would
	if _, err := env.db.Exec(`UPDATE ledger_entries SET beginning_stock = 7, balance = 9, replenished_stock = 2
		WHERE item_id = ? AND year = 2024 AND month = 12`, item.ID); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	n, err := env.ledger.CascadeForward(ctx, item.ID, 2024, 9)
	if err != nil {
		t.Fatalf("CascadeForward: %v", err)
	}
	if n == 0 {
		t.Fatal("first cascade changed nothing")
	}
	dec := env.entry(t, item.ID, 2024, 12)
	if dec.BeginningStock != 50 || dec.ReplenishedStock != 2 || dec.Balance != 52 {
		t.Fatalf("2024-12 = %+v, want interior replenishment kept", dec)
	}
	if got := env.entry(t, item.ID, 2025, 1); got.BeginningStock != 52 {
		t.Fatalf("2025-01 = %+v", got)
	}

	n, err = env.ledger.CascadeForward(ctx, item.ID, 2024, 9)
	if err != nil || n != 0 {
		t.Fatalf("second cascade = %d, %v; want 0", n, err)
	}
	env.assertConsistent(t)
}

func TestCascadeForwardMissingMonth(t *testing.T) {
	env := newTestEnv(t)
	item := env.register(t, "Bandage", "MEDICAL_SUPPLY", 5)
	_, err := env.ledger.CascadeForward(context.Background(), item.ID, 2024, 8)
	if !errors.Is(err, ErrMonthNotAvailable) {
		t.Fatalf("err = %v, want ErrMonthNotAvailable", err)
	}
}

func TestEnsureMonthForAll(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.register(t, "A", "MEDICINE", 1)
	b := env.register(t, "B", "MEDICINE", 2)
	for _, id := range []int64{a.ID, b.ID} {
		if _, err := env.ledger.DeleteItemFrom(ctx, id, 2025, 3); err != nil {
			t.Fatalf("DeleteItemFrom: %v", err)
		}
	}
	n, err := env.ledger.EnsureMonthForAll(ctx, 2025, 3)
	if err != nil || n != 2 {
		t.Fatalf("EnsureMonthForAll = %d, %v; want 2", n, err)
	}
	n, err = env.ledger.EnsureMonthForAll(ctx, 2025, 3)
	if err != nil || n != 0 {
		t.Fatalf("repeat = %d, %v; want 0", n, err)
	}
	n, err = env.ledger.EnsureMonthForAll(ctx, 2023, 1)
	if err != nil || n != 0 {
		t.Fatalf("pre-origin = %d, %v; want 0", n, err)
	}
}

func TestRebuildSyncsStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item := env.register(t, "Omeprazole", "MEDICINE", 20)
	if _, err := env.db.Exec(`UPDATE ledger_entries SET total_issued = 5 WHERE item_id = ? AND year = 2024 AND month = 11`, item.ID); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	if _, err := env.db.Exec(`UPDATE items SET current_stock = 99 WHERE id = ?`, item.ID); err != nil {
		t.Fatalf("corrupt: %v", err)
	}

	if _, err := env.ledger.Rebuild(ctx, item.ID, true); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if got := env.entry(t, item.ID, 2025, 1); got.Balance != 15 {
		t.Fatalf("2025-01 = %+v, want 15", got)
	}
	if got := env.stock(t, item.ID); got != 15 {
		t.Fatalf("stock = %d, want 15", got)
	}
	env.assertConsistent(t)
}

func TestVerifyReportsViolations(t *testing.T) {
	env := newTestEnv(t)
	item := env.register(t, "Antacid", "MEDICINE", 8)
	if _, err := env.db.Exec(`UPDATE ledger_entries SET balance = 1 WHERE item_id = ? AND year = 2025 AND month = 2`, item.ID); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	results, err := env.ledger.Verify(context.Background())
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(results) != 1 || len(results[0].Violations) != 2 {
		t.Fatalf("results = %+v, want balance and continuity violations", results)
	}
}

func strPtr(s string) *string { return &s }

func TestApplyDeltaReplenishmentMovesCurrentStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item := env.register(t, "Amoxicillin", "MEDICINE", 100)

	if _, err := env.ledger.ApplyDelta(ctx, item.ID, 2024, 9, 30, 0); err != nil {
		t.Fatalf("issue: %v", err)
	}
	entry, err := env.ledger.ApplyDelta(ctx, item.ID, 2024, 9, 0, 50)
	if err != nil {
		t.Fatalf("replenish: %v", err)
	}
	if entry.Balance != 120 {
		t.Fatalf("balance(2024-09) = %d, want 120", entry.Balance)
	}
	if got := env.stock(t, item.ID); got != 120 {
		t.Fatalf("current stock = %d, want 120", got)
	}

	// a month edit only corrects the books
	replenished := 70
	if _, err := env.items.EditItemMonth(ctx, item.ID, EditItemMonthRequest{Year: 2024, Month: 9, ReplenishedStock: &replenished}); err != nil {
		t.Fatalf("EditItemMonth: %v", err)
	}
	if got := env.entry(t, item.ID, 2024, 9).Balance; got != 140 {
		t.Fatalf("edited balance = %d, want 140", got)
	}
	if got := env.stock(t, item.ID); got != 120 {
		t.Fatalf("current stock after edit = %d, want 120", got)
	}
	env.assertConsistent(t)
}

func holdItemLock(t *testing.T, itemID int64) func() {
	t.Helper()
	release, err := processLocker.Obtain(context.Background(), locking.ItemKey(itemID))
	if err != nil {
		t.Fatalf("Obtain: %v", err)
	}
	return release
}

func TestLazyMonthCreationWaitsForItemLock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item := env.register(t, "Loperamide", "MEDICINE", 15)
	if _, err := env.ledger.DeleteItemFrom(ctx, item.ID, 2025, 2); err != nil {
		t.Fatalf("DeleteItemFrom: %v", err)
	}

	release := holdItemLock(t, item.ID)
	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	_, _, err := env.ledger.EnsureMonth(short, item.ID, 2025, 3)
	cancel()
	if !errors.Is(err, ErrItemBusy) {
		t.Fatalf("EnsureMonth under lock err = %v, want ErrItemBusy", err)
	}
	short, cancel = context.WithTimeout(ctx, 50*time.Millisecond)
	_, err = env.ledger.EnsureMonthForAll(short, 2025, 3)
	cancel()
	if !errors.Is(err, ErrItemBusy) {
		t.Fatalf("EnsureMonthForAll under lock err = %v, want ErrItemBusy", err)
	}
	if entries, _ := env.ledger.ItemLedger(ctx, item.ID); len(entries) != 5 {
		t.Fatalf("entries = %d, a month was created while locked", len(entries))
	}
	release()

	created, err := env.ledger.EnsureMonthForAll(ctx, 2025, 3)
	if err != nil || created != 1 {
		t.Fatalf("EnsureMonthForAll = %d, %v; want 1", created, err)
	}
	if got := env.entry(t, item.ID, 2025, 3).BeginningStock; got != 15 {
		t.Fatalf("beginning(2025-03) = %d, want 15", got)
	}
}
