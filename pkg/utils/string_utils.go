package utils

import "strings"

// NewNullString is a helper for string pointers, returning nil if string is empty.
func NewNullString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// NormalizeLabel trims and upper-cases names and units the way the item catalogue stores them.
func NormalizeLabel(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

// DerefString returns the pointed-to value or the fallback for nil.
func DerefString(p *string, fallback string) string {
	if p == nil {
		return fallback
	}
	return *p
}
