package services

import (
	"context"
	"strings"
	"testing"

	"clinic_inventory_backend/internal/models"
)

func TestImportCatalogue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "Biogesic", "MEDICINE", 5)

	csv := `name,unit,category,expiry_date,opening_stock
Paracetamol,tablet,MEDICINES,2026-03-01,120
Biogesic,tablet,MEDICINE,,10
Gauze Pad,pack,Medical Supplies,,abc
Cotton Balls,pack,OTHER SUPPLIES,,15
Mystery,box,FOOD,,1
,,,,
`
	result, err := ImportCatalogue(ctx, env.ledger, strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ImportCatalogue: %v", err)
	}
	if result.Created != 2 || result.Skipped != 1 || len(result.Errors) != 2 {
		t.Fatalf("result = %+v", result)
	}

	items, err := env.items.ListItems(ctx, models.ItemFilters{})
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3", len(items))
	}
	for _, it := range items {
		if it.Name == "PARACETAMOL" && (it.CurrentStock != 120 || it.ExpiryDate == nil) {
			t.Fatalf("paracetamol = %+v", it)
		}
	}
}

func TestImportCatalogueRequiresColumns(t *testing.T) {
	env := newTestEnv(t)
	_, err := ImportCatalogue(context.Background(), env.ledger, strings.NewReader("name,unit\nA,pc\n"))
	if err == nil {
		t.Fatal("missing category column accepted")
	}
}
