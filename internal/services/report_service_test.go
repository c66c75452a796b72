package services

import (
	"bytes"
	"context"
	"testing"

	"clinic_inventory_backend/internal/models"

	"github.com/xuri/excelize/v2"
)

func seedReportMonth(t *testing.T, env *testEnv) (*models.Item, *models.Item) {
	t.Helper()
	ctx := context.Background()
	a := env.register(t, "Biogesic", "MEDICINE", 50)
	b := env.register(t, "Gauze", "MEDICAL_SUPPLY", 10)
	for _, v := range []TransactionRequest{
		visit("2025-01-03", "Biogesic", 2),
		visit("2025-01-03", "biogesic", 1),
		visit("2025-01-20", "Biogesic", 4),
	} {
		if _, err := env.txs.Create(ctx, v); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	cancelled, err := env.txs.Create(ctx, visit("2025-01-05", "Biogesic", 5))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := env.txs.Cancel(ctx, cancelled.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	return a, b
}

func TestMonthlyReportReconcilesDailyIssues(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, b := seedReportMonth(t, env)

	// a stored aggregate that no transaction explains
	if _, err := env.db.Exec(`UPDATE ledger_entries SET total_issued = 2, balance = 8
		WHERE item_id = ? AND year = 2025 AND month = 1`, b.ID); err != nil {
		t.Fatalf("corrupt: %v", err)
	}

	report, err := env.reports.MonthlyReport(ctx, 2025, 1)
	if err != nil {
		t.Fatalf("MonthlyReport: %v", err)
	}
	if !report.Available || report.DaysInMonth != 31 || len(report.Groups) != 4 {
		t.Fatalf("report = %+v", report)
	}

	meds := report.Groups[0].Rows
	if len(meds) != 1 || meds[0].ItemID != a.ID {
		t.Fatalf("medicine rows = %+v", meds)
	}
	row := meds[0]
	if row.Daily[3] != 3 || row.Daily[20] != 4 || len(row.Daily) != 2 {
		t.Fatalf("daily = %v", row.Daily)
	}
	if row.TotalIssued != 7 || row.StoredIssued != 7 || !row.Reconciled || row.Balance != 43 {
		t.Fatalf("row = %+v", row)
	}

	supplies := report.Groups[1].Rows
	if len(supplies) != 1 || supplies[0].Reconciled || supplies[0].TotalIssued != 0 || supplies[0].StoredIssued != 2 {
		t.Fatalf("supply rows = %+v", supplies)
	}
	if report.Unreconciled != 1 {
		t.Fatalf("unreconciled = %d, want 1", report.Unreconciled)
	}
}

func TestMonthlyReportEmptyMonths(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "Biogesic", "MEDICINE", 50)

	report, err := env.reports.MonthlyReport(ctx, 2025, 2)
	if err != nil {
		t.Fatalf("MonthlyReport: %v", err)
	}
	row := report.Groups[0].Rows[0]
	if report.DaysInMonth != 28 || len(row.Daily) != 0 || !row.Reconciled {
		t.Fatalf("quiet month = %+v %+v", report, row)
	}

	early, err := env.reports.MonthlyReport(ctx, 2023, 12)
	if err != nil {
		t.Fatalf("MonthlyReport pre-origin: %v", err)
	}
	if early.Available {
		t.Fatal("pre-origin report available")
	}
	for _, g := range early.Groups {
		if len(g.Rows) != 0 {
			t.Fatalf("pre-origin group %s has rows", g.Category)
		}
	}
}

func TestDailyInventory(t *testing.T) {
	env := newTestEnv(t)
	a, b := seedReportMonth(t, env)

	rows, err := env.reports.DailyInventory(context.Background(), "2025-01-03")
	if err != nil {
		t.Fatalf("DailyInventory: %v", err)
	}
	used := map[int64]int{}
	for _, r := range rows {
		used[r.ItemID] = r.QuantityUsed
	}
	if len(rows) != 2 || used[a.ID] != 3 || used[b.ID] != 0 {
		t.Fatalf("rows = %+v", rows)
	}
	if _, err := env.reports.DailyInventory(context.Background(), "Jan 3"); err == nil {
		t.Fatal("bad date accepted")
	}
}

func TestExportMonthlyReport(t *testing.T) {
	env := newTestEnv(t)
	seedReportMonth(t, env)
	report, err := env.reports.MonthlyReport(context.Background(), 2025, 1)
	if err != nil {
		t.Fatalf("MonthlyReport: %v", err)
	}

	var buf bytes.Buffer
	if err := ExportMonthlyReport(report, &buf); err != nil {
		t.Fatalf("ExportMonthlyReport: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	if sheets := f.GetSheetList(); len(sheets) != 4 || sheets[0] != "Medicines" {
		t.Fatalf("sheets = %v", sheets)
	}
	cells := map[string]string{
		"A3": "Item",
		"F3": "1",
		"A4": "BIOGESIC",
		"D4": "50",
		"H4": "3",
		"G4": "",
	}
	totalCell, _ := excelize.CoordinatesToCellName(5+31+1, 4)
	cells[totalCell] = "7"
	for cell, want := range cells {
		got, err := f.GetCellValue("Medicines", cell)
		if err != nil {
			t.Fatalf("GetCellValue %s: %v", cell, err)
		}
		if got != want {
			t.Errorf("%s = %q, want %q", cell, got, want)
		}
	}
	if name := ReportFilename(2025, 1); name != "inventory_report_2025_01.xlsx" {
		t.Errorf("filename = %s", name)
	}
}

func TestMonthlyReportDailyIssuesStayInsideMonth(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "Biogesic", "MEDICINE", 50)
	for _, v := range []TransactionRequest{
		visit("2024-12-31", "Biogesic", 1),
		visit("2025-01-01", "Biogesic", 2),
		visit("2025-01-31", "Biogesic", 3),
		visit("2025-02-01", "Biogesic", 4),
	} {
		if _, err := env.txs.Create(ctx, v); err != nil {
			t.Fatalf("Create(%s): %v", v.Date, err)
		}
	}

	report, err := env.reports.MonthlyReport(ctx, 2025, 1)
	if err != nil {
		t.Fatalf("MonthlyReport: %v", err)
	}
	row := report.Groups[0].Rows[0]
	if len(row.Daily) != 2 || row.Daily[1] != 2 || row.Daily[31] != 3 {
		t.Fatalf("daily = %v, want first and last day only", row.Daily)
	}
	if row.TotalIssued != 5 || !row.Reconciled {
		t.Fatalf("row = %+v", row)
	}
}
