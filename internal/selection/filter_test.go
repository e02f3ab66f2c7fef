package selection_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/autoperf/taudash/internal/selection"
)

func TestFilterOptions(t *testing.T) {
	names := []string{"TIME", "PAPI_FP_OPS", "PAPI_TOT_CYC", "Mean (No Null)"}
	tests := []struct {
		name    string
		pattern string
		want    []int
	}{
		{"empty matches all", "", []int{0, 1, 2, 3}},
		{"case insensitive", "papi", []int{1, 2}},
		{"regexp", "^papi_(fp|tot)_", []int{1, 2}},
		{"anchored", "^time$", []int{0}},
		{"invalid regexp falls back to substring", "(no", []int{3}},
		{"no match", "xyz", []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := selection.FilterOptions(names, tt.pattern)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("FilterOptions(%q) mismatch (-want +got):\n%s", tt.pattern, diff)
			}
		})
	}
}
