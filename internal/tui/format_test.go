package tui

import "testing"

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{12.5, "12.50"},
		{2500, "2.50K"},
		{1520000, "1.52M"},
		{3e9, "3.00G"},
		{-4200, "-4.20K"},
	}
	for _, tt := range tests {
		if got := formatValue(tt.in); got != tt.want {
			t.Errorf("formatValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatPercent(t *testing.T) {
	if got := formatPercent(12.345); got != "12.3%" {
		t.Errorf("formatPercent = %q", got)
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		width int
		want  string
	}{
		{"fits", "solve", 10, "solve"},
		{"ellipsis", "abcdefghij", 6, "abc..."},
		{"narrow", "abcdefghij", 2, "ab"},
		{"newlines flattened", "a\nb\tc", 10, "a b c"},
		{"full width", "日本語のテキスト", 7, "日本..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncateRunes(tt.in, tt.width); got != tt.want {
				t.Errorf("truncateRunes(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
			}
		})
	}
}

func TestTruncateLeftKeepsInnermostFrame(t *testing.T) {
	if got := truncateLeft("main => solve", 8); got != "...solve" {
		t.Errorf("truncateLeft = %q, want ...solve", got)
	}
	if got := truncateLeft("main", 8); got != "main" {
		t.Errorf("truncateLeft short = %q", got)
	}
}

func TestPadding(t *testing.T) {
	if got := padRight("ab", 4); got != "ab  " {
		t.Errorf("padRight = %q", got)
	}
	if got := padLeft("ab", 4); got != "  ab" {
		t.Errorf("padLeft = %q", got)
	}
	if got := padRight("日本", 6); got != "日本  " {
		t.Errorf("padRight full width = %q", got)
	}
	if got := padRight("abcdef", 3); got != "abc" {
		t.Errorf("padRight overflow = %q", got)
	}
}

func TestTruncateToWidthKeepsEscapes(t *testing.T) {
	styled := "\x1b[1mbold text\x1b[0m"
	got := truncateToWidth(styled, 4)
	if stripANSI(got) != "bold" {
		t.Errorf("visible text = %q, want bold", stripANSI(got))
	}
}
