package services

import (
	"errors"
	"strings"
	"time"

	"clinic_inventory_backend/internal/models"
	"clinic_inventory_backend/internal/repositories"
	"clinic_inventory_backend/pkg/utils"
)

// nowFunc is the service clock; tests replace it.
var nowFunc = time.Now

func isNotFound(err error) bool {
	return errors.Is(err, repositories.ErrNotFound)
}

// itemFromRequest normalizes catalogue fields the way they are stored.
func itemFromRequest(name, unit, category string, expiry *string) (*models.Item, error) {
	name = utils.NormalizeLabel(name)
	unit = utils.NormalizeLabel(unit)
	if name == "" {
		return nil, validationError("name is required")
	}
	if unit == "" {
		return nil, validationError("unit is required")
	}
	cat, ok := models.ParseCategory(category)
	if !ok {
		return nil, validationError("unknown category %q", category)
	}
	exp, err := normalizeDate(expiry)
	if err != nil {
		return nil, err
	}
	return &models.Item{Name: name, Unit: unit, Category: cat, ExpiryDate: exp}, nil
}

// normalizeDate accepts nil, empty or YYYY-MM-DD.
func normalizeDate(s *string) (*string, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	v := strings.TrimSpace(*s)
	if _, err := time.Parse(time.DateOnly, v); err != nil {
		return nil, validationError("date %q must be YYYY-MM-DD", v)
	}
	return &v, nil
}
