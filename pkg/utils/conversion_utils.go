package utils

import (
	"strconv"
	"strings"
)

// StrToInt64 converts a string to an int64.
func StrToInt64(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

// StrToInt converts a string to an int, treating empty input as an error.
func StrToInt(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}
