package tui

import (
	"strings"

	"github.com/autoperf/taudash/internal/profile"
)

const (
	chartBar     = "█"
	chartPartial = "▌"
)

// renderShareChart draws each row's share of the selected percent column
// as a horizontal bar, in row order, in at most width cells per line. Only
// the first maxBars rows get a bar. Exclusive percentages partition the
// total, so for them the rest is summed into a trailing "other" line.
func renderShareChart(rows []profile.ProfileRow, vt profile.ValueType, width, maxBars int) []string {
	if len(rows) == 0 || width <= 0 {
		return nil
	}
	if maxBars <= 0 {
		maxBars = len(rows)
	}

	labelWidth := min(24, max(width/3, 4))
	pctWidth := 7
	barWidth := width - labelWidth - pctWidth - 2
	if barWidth < 1 {
		barWidth = 1
	}

	type share struct {
		label string
		pct   float64
	}
	shares := make([]share, 0, maxBars+1)
	var shown, rest float64
	for i, r := range rows {
		p := clampPercent(r.Percent(vt))
		if i < maxBars {
			shares = append(shares, share{label: r.ShortName, pct: p})
			shown += p
		} else {
			rest += p
		}
	}
	if vt == profile.Exclusive {
		if remainder := 100 - shown - rest; remainder > 0 {
			rest += remainder
		}
		if rest >= 0.05 {
			shares = append(shares, share{label: "other", pct: clampPercent(rest)})
		}
	}

	lines := make([]string, 0, len(shares))
	for _, s := range shares {
		var sb strings.Builder
		sb.WriteString(padRight(truncateRunes(s.label, labelWidth), labelWidth))
		sb.WriteString(" ")
		sb.WriteString(padRight(bar(s.pct, barWidth), barWidth))
		sb.WriteString(" ")
		sb.WriteString(padLeft(formatPercent(s.pct), pctWidth))
		lines = append(lines, sb.String())
	}
	return lines
}

// bar renders pct of width cells using half-cell resolution.
func bar(pct float64, width int) string {
	halves := int(pct/100*float64(width)*2 + 0.5)
	full := halves / 2
	s := strings.Repeat(chartBar, full)
	if halves%2 == 1 && full < width {
		s += chartPartial
	}
	return s
}

func clampPercent(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
