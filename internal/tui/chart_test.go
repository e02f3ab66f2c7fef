package tui

import (
	"strings"
	"testing"

	"github.com/autoperf/taudash/internal/profile"
)

func shareRows() []profile.ProfileRow {
	return []profile.ProfileRow{
		{ShortName: "solve", ExclusivePercent: 50, InclusivePercent: 90},
		{ShortName: "MPI_Allreduce", ExclusivePercent: 30, InclusivePercent: 30},
		{ShortName: "read_input", ExclusivePercent: 10, InclusivePercent: 10},
	}
}

func TestRenderShareChartExclusive(t *testing.T) {
	lines := renderShareChart(shareRows(), profile.Exclusive, 60, 2)
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 2 bars and other:\n%s", len(lines), strings.Join(lines, "\n"))
	}
	// label 20 + bar 31 + percent 7 + two separators
	for i, line := range lines {
		if w := len([]rune(line)); w != 60 {
			t.Errorf("line %d width = %d, want 60: %q", i, w, line)
		}
	}
	if !strings.HasPrefix(lines[0], "solve ") || !strings.HasSuffix(lines[0], "50.0%") {
		t.Errorf("first line = %q", lines[0])
	}
	if got := strings.Count(lines[0], chartBar); got != 15 {
		t.Errorf("50%% bar has %d full cells, want 15", got)
	}
	if !strings.Contains(lines[0], chartPartial) {
		t.Errorf("50%% of 31 cells should end in a half cell: %q", lines[0])
	}
	// read_input (10) plus the unaccounted 10 percent.
	if !strings.HasPrefix(lines[2], "other ") || !strings.HasSuffix(lines[2], "20.0%") {
		t.Errorf("other line = %q", lines[2])
	}
}

func TestRenderShareChartInclusiveHasNoOther(t *testing.T) {
	lines := renderShareChart(shareRows(), profile.Inclusive, 60, 2)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), strings.Join(lines, "\n"))
	}
	if !strings.HasSuffix(lines[0], "90.0%") {
		t.Errorf("first line = %q", lines[0])
	}
}

func TestRenderShareChartEmpty(t *testing.T) {
	if lines := renderShareChart(nil, profile.Exclusive, 60, 5); lines != nil {
		t.Errorf("lines = %q, want nil", lines)
	}
	if lines := renderShareChart(shareRows(), profile.Exclusive, 0, 5); lines != nil {
		t.Errorf("zero width lines = %q, want nil", lines)
	}
}

func TestBar(t *testing.T) {
	tests := []struct {
		pct   float64
		width int
		want  string
	}{
		{0, 10, ""},
		{100, 10, strings.Repeat(chartBar, 10)},
		{50, 10, strings.Repeat(chartBar, 5)},
		{25, 10, strings.Repeat(chartBar, 2) + chartPartial},
		{100, 1, chartBar},
	}
	for _, tt := range tests {
		if got := bar(tt.pct, tt.width); got != tt.want {
			t.Errorf("bar(%v, %d) = %q, want %q", tt.pct, tt.width, got, tt.want)
		}
	}
}

func TestClampPercent(t *testing.T) {
	for in, want := range map[float64]float64{-3: 0, 42.5: 42.5, 130: 100} {
		if got := clampPercent(in); got != want {
			t.Errorf("clampPercent(%v) = %v, want %v", in, got, want)
		}
	}
}
