package main

import "testing"

func TestParseItemID(t *testing.T) {
	if id, err := parseItemID("42"); err != nil || id != 42 {
		t.Errorf("parseItemID(42) = %d, %v", id, err)
	}
	for _, raw := range []string{"", "0", "-1", "abc"} {
		if _, err := parseItemID(raw); err == nil {
			t.Errorf("parseItemID(%q) accepted", raw)
		}
	}
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"serve"}, {"migrate"}, {"seed", "a.csv"}, {"restore", "x.db"},
		{"ledger", "verify"}, {"ledger", "cascade", "1"}, {"ledger", "rebuild", "1"},
		{"backup", "create"}, {"backup", "list"}, {"backup", "clean"},
		{"report", "export"},
	} {
		cmd, _, err := rootCmd.Find(path)
		if err != nil || cmd == rootCmd {
			t.Errorf("command %v not registered: %v", path, err)
		}
	}
}
