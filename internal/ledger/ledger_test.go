package ledger

import (
	"testing"

	"clinic_inventory_backend/internal/models"
)

var origin = Period{Year: 2024, Month: 9}

func timeline(n, opening int) []models.LedgerEntry {
	var out []models.LedgerEntry
	p := origin
	for i := 0; i < n; i++ {
		out = append(out, Opening(1, p, opening))
		p = p.Next()
	}
	return out
}

func TestApplyAndRollForwardScenario(t *testing.T) {
	entries := timeline(6, 100)

	// issue 30 in the origin month
	if err := Apply(&entries[0], 30, 0); err != nil {
		t.Fatalf("Apply issue: %v", err)
	}
	if entries[0].Balance != 70 {
		t.Fatalf("balance after issue = %d, want 70", entries[0].Balance)
	}
	changed := RollForward(entries[0].Balance, entries[1:])
	if len(changed) != 5 {
		t.Fatalf("changed = %d, want 5", len(changed))
	}
	if entries[1].BeginningStock != 70 || entries[5].Balance != 70 {
		t.Fatalf("cascade did not carry 70: %+v", entries[1])
	}

	// replenish the same month afterwards
	if err := Apply(&entries[0], 0, 50); err != nil {
		t.Fatalf("Apply replenish: %v", err)
	}
	if entries[0].Balance != 120 {
		t.Fatalf("balance after replenish = %d, want 120", entries[0].Balance)
	}
	RollForward(entries[0].Balance, entries[1:])
	for _, e := range entries[1:] {
		if e.BeginningStock != 120 || e.Balance != 120 {
			t.Fatalf("%d-%02d not shifted to 120: %+v", e.Year, e.Month, e)
		}
	}

	// reverse the issue
	if err := Apply(&entries[0], -30, 0); err != nil {
		t.Fatalf("Apply reversal: %v", err)
	}
	RollForward(entries[0].Balance, entries[1:])
	if entries[0].TotalIssued != 0 || entries[3].BeginningStock != 150 {
		t.Fatalf("reversal not propagated: %+v %+v", entries[0], entries[3])
	}
	if v := Verify(entries, origin); len(v) != 0 {
		t.Fatalf("violations after scenario: %v", v)
	}
}

func TestRollForwardKeepsInteriorFigures(t *testing.T) {
	entries := timeline(4, 10)
	entries[2].ReplenishedStock = 5
	entries[2].TotalIssued = 3
	Recompute(&entries[2])

	RollForward(40, entries[1:])
	if entries[2].ReplenishedStock != 5 || entries[2].TotalIssued != 3 {
		t.Fatalf("interior figures overwritten: %+v", entries[2])
	}
	if entries[2].BeginningStock != 40 || entries[2].Balance != 42 {
		t.Fatalf("interior month = %+v, want beginning 40 balance 42", entries[2])
	}
	if entries[3].BeginningStock != 42 {
		t.Fatalf("next month beginning = %d, want 42", entries[3].BeginningStock)
	}
}

func TestRollForwardIdempotent(t *testing.T) {
	entries := timeline(5, 20)
	entries[1].TotalIssued = 4
	RollForward(entries[0].Balance, entries[1:])
	if again := RollForward(entries[0].Balance, entries[1:]); len(again) != 0 {
		t.Fatalf("second cascade changed %d entries", len(again))
	}
}

func TestRollForwardAcrossYearEnd(t *testing.T) {
	entries := timeline(6, 0) // 2024-09 .. 2025-02
	entries[3].ReplenishedStock = 12 // 2024-12
	Recompute(&entries[3])
	RollForward(entries[3].Balance, entries[4:])
	if entries[4].Year != 2025 || entries[4].Month != 1 || entries[4].BeginningStock != 12 {
		t.Fatalf("January did not inherit December balance: %+v", entries[4])
	}
}

func TestApplyRejectsNegativeCounters(t *testing.T) {
	e := Opening(1, origin, 10)
	if err := Apply(&e, -1, 0); err == nil {
		t.Fatalf("expected error for negative issued total")
	}
	if err := Apply(&e, 0, -1); err == nil {
		t.Fatalf("expected error for negative replenished total")
	}
	if e.Balance != 10 {
		t.Fatalf("failed Apply mutated entry: %+v", e)
	}
}

func TestVerifyDetectsViolations(t *testing.T) {
	entries := timeline(3, 10)
	entries[1].BeginningStock = 9
	entries[1].Balance = 9
	entries[2].BeginningStock = 9
	entries[2].Balance = 11
	entries = append(entries, Opening(1, origin.Prev(), 0))

	kinds := map[ViolationKind]int{}
	for _, v := range Verify(entries, origin) {
		kinds[v.Kind]++
	}
	if kinds[ContinuityMismatch] != 2 {
		t.Errorf("continuity violations = %d, want 2", kinds[ContinuityMismatch])
	}
	if kinds[BalanceMismatch] != 1 {
		t.Errorf("balance violations = %d, want 1", kinds[BalanceMismatch])
	}
	if kinds[BeforeOrigin] != 1 {
		t.Errorf("before-origin violations = %d, want 1", kinds[BeforeOrigin])
	}
}
