package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"clinic_inventory_backend/pkg/utils"
)

// CatalogueImport summarises a seed run.
type CatalogueImport struct {
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

var catalogueColumns = []string{"name", "unit", "category", "expiry_date", "opening_stock"}

// ImportCatalogue registers every CSV row as an item at the ledger origin.
// The header names the columns; name, unit and category are required.
// Items that already exist are skipped, malformed rows are reported.
func ImportCatalogue(ctx context.Context, ledgerSvc LedgerService, r io.Reader) (*CatalogueImport, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading catalogue header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range catalogueColumns[:3] {
		if _, ok := index[col]; !ok {
			return nil, validationError("catalogue is missing the %q column", col)
		}
	}
	field := func(record []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	result := &CatalogueImport{}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		if field(record, "name") == "" {
			continue
		}

		req := RegisterItemRequest{
			Name:     field(record, "name"),
			Unit:     field(record, "unit"),
			Category: field(record, "category"),
		}
		if exp := field(record, "expiry_date"); exp != "" {
			req.ExpiryDate = &exp
		}
		if stock := field(record, "opening_stock"); stock != "" {
			n, err := utils.StrToInt(stock)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("line %d: opening stock %q is not a number", line, stock))
				continue
			}
			req.OpeningStock = n
		}

		if _, err := ledgerSvc.RegisterItem(ctx, req); err != nil {
			switch {
			case errors.Is(err, ErrConflict):
				result.Skipped++
			case errors.Is(err, ErrValidation):
				result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
			default:
				return result, err
			}
			continue
		}
		result.Created++
	}
	return result, nil
}
