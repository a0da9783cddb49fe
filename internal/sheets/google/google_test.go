package google

import (
	"testing"

	"spendi/internal/core"
	ports "spendi/internal/sheets"
)

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		year     int
		expected string
	}{
		{"plain base", "Expenses", 2026, "2026 Expenses"},
		{"already prefixed", "2025 Expenses", 2026, "2025 Expenses"},
		{"empty base", "", 2026, ""},
		{"short base", "Exp", 2026, "2026 Exp"},
		{"numeric but not a year", "12 rows", 2026, "2026 12 rows"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := yearPrefixedName(tt.base, tt.year)
			if got != tt.expected {
				t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.expected)
			}
		})
	}
}

func TestExportRowValues(t *testing.T) {
	row := ports.ExportRow{
		Date:        core.NewDate(2026, 8, 15),
		Description: "Coffee shop",
		Amount:      core.Money{Cents: 525},
		Category:    "Food",
		Confidence:  0.92,
	}

	got := exportRowValues("mario@example.com", row)
	want := []any{"mario@example.com", "2026-08-15", "Coffee shop", 5.25, "Food", 0.92}

	if len(got) != len(want) {
		t.Fatalf("expected %d columns, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("column %d = %v, want %v", i, got[i], want[i])
		}
	}
}
