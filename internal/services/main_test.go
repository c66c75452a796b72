package services

import (
	"context"
	"testing"
	"time"

	"clinic_inventory_backend/internal/config"
	"clinic_inventory_backend/internal/database"
	"clinic_inventory_backend/internal/ledger"
	"clinic_inventory_backend/internal/models"
	"clinic_inventory_backend/internal/repositories"

	"github.com/jmoiron/sqlx"
)

var testLedgerConfig = config.LedgerConfig{
	Origin:             ledger.Period{Year: 2024, Month: 9},
	Horizon:            ledger.Period{Year: 2025, Month: 6},
	LowStockThreshold:  10,
	ExpiryWindowMonths: 3,
}

type testEnv struct {
	db         *sqlx.DB
	ledgerRepo repositories.LedgerRepository
	itemRepo   repositories.ItemRepository
	txRepo     repositories.TransactionRepository
	ledger     LedgerService
	items      ItemService
	txs        TransactionService
	reports    ReportService
}

// newTestEnv wires every service onto a fresh in-memory database with the
// clock fixed at 2025-01-15.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.OpenMemory(context.Background())
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	setClock(t, time.Date(2025, time.January, 15, 10, 0, 0, 0, time.UTC))

	env := &testEnv{
		db:         db,
		ledgerRepo: repositories.NewLedgerRepository(db),
		itemRepo:   repositories.NewItemRepository(db),
		txRepo:     repositories.NewTransactionRepository(db),
	}
	replRepo := repositories.NewReplenishmentRepository(db)
	env.ledger = NewLedgerService(db, env.itemRepo, env.ledgerRepo, nil, testLedgerConfig)
	env.items = NewItemService(db, env.ledger, env.itemRepo, env.ledgerRepo, replRepo, env.txRepo, nil, testLedgerConfig)
	env.txs = NewTransactionService(db, env.txRepo, env.itemRepo, env.ledgerRepo, nil, testLedgerConfig)
	env.reports = NewReportService(db, env.itemRepo, env.ledgerRepo, env.txRepo, nil, testLedgerConfig)
	return env
}

func setClock(t *testing.T, at time.Time) {
	t.Helper()
	prev := nowFunc
	nowFunc = func() time.Time { return at }
	t.Cleanup(func() { nowFunc = prev })
}

func (e *testEnv) register(t *testing.T, name, category string, opening int) *models.Item {
	t.Helper()
	item, err := e.ledger.RegisterItem(context.Background(), RegisterItemRequest{
		Name: name, Unit: "tablet", Category: category, OpeningStock: opening,
	})
	if err != nil {
		t.Fatalf("RegisterItem(%s): %v", name, err)
	}
	return item
}

func (e *testEnv) entry(t *testing.T, itemID int64, year, month int) *models.LedgerEntry {
	t.Helper()
	entry, err := e.ledgerRepo.Get(context.Background(), e.db, itemID, ledger.Period{Year: year, Month: month})
	if err != nil {
		t.Fatalf("Get %d-%02d: %v", year, month, err)
	}
	return entry
}

func (e *testEnv) stock(t *testing.T, itemID int64) int {
	t.Helper()
	item, err := e.itemRepo.GetByID(context.Background(), e.db, itemID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	return item.CurrentStock
}

// assertConsistent fails on any balance identity or continuity violation.
func (e *testEnv) assertConsistent(t *testing.T) {
	t.Helper()
	results, err := e.ledger.Verify(context.Background())
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	for _, r := range results {
		for _, v := range r.Violations {
			t.Errorf("item %d: %+v", r.ItemID, v)
		}
	}
}

func visit(date, medication string, qty int) TransactionRequest {
	req := TransactionRequest{Date: date, PatientName: "Juan Dela Cruz", TimeStarted: "09:30", Quantity: qty}
	if medication != "" {
		req.Medication = &medication
	}
	return req
}
