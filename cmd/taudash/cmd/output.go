package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/mattn/go-isatty"
)

// stdoutIsTerminal is swapped in tests.
var stdoutIsTerminal = func() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// table writes rows either as an aligned table with a header underline
// (terminals) or as plain tab-separated lines without a header (pipes).
type table struct {
	w       io.Writer
	tw      *tabwriter.Writer
	pretty  bool
	columns int
}

func newTable(w io.Writer, headers ...string) *table {
	t := &table{w: w, pretty: stdoutIsTerminal(), columns: len(headers)}
	if !t.pretty {
		return t
	}
	t.tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(t.tw, strings.Join(headers, "\t"))
	rules := make([]string, len(headers))
	for i, h := range headers {
		rules[i] = strings.Repeat("─", len([]rune(h)))
	}
	fmt.Fprintln(t.tw, strings.Join(rules, "\t"))
	return t
}

func (t *table) row(cells ...any) {
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = fmt.Sprint(c)
	}
	line := strings.Join(parts, "\t")
	if t.pretty {
		fmt.Fprintln(t.tw, line)
		return
	}
	fmt.Fprintln(t.w, line)
}

// done flushes the table and, on terminals, prints a count footer.
func (t *table) done(n int, noun string) error {
	if !t.pretty {
		return nil
	}
	if err := t.tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(t.w, "\n%d %s(s)\n", n, noun)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
