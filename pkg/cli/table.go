package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// Table wraps text/tabwriter with column-aligned output. Headers and a dash
// divider are written lazily on the first Row, so an empty table prints
// only its empty message, if any.
type Table struct {
	out     io.Writer
	w       *tabwriter.Writer
	headers []string
	prefix  string
	empty   string
	rows    int
}

// NewTable creates a table on stdout with the given column headers.
func NewTable(headers ...string) *Table {
	return NewTableTo(os.Stdout, headers...)
}

// NewTableTo creates a table writing to out.
func NewTableTo(out io.Writer, headers ...string) *Table {
	return &Table{
		out:     out,
		w:       tabwriter.NewWriter(out, 0, 0, 2, ' ', 0),
		headers: headers,
	}
}

// WithPrefix sets a string prepended to each line (headers, divider, rows).
func (t *Table) WithPrefix(prefix string) *Table {
	t.prefix = prefix
	return t
}

// WithEmpty sets the line Flush prints when no rows were written.
func (t *Table) WithEmpty(msg string) *Table {
	t.empty = msg
	return t
}

// Len returns the number of rows written.
func (t *Table) Len() int { return t.rows }

// Row writes a tab-separated row. On the first call, headers and divider
// are emitted before the row.
func (t *Table) Row(values ...string) {
	if t.rows == 0 {
		t.writeHeaders()
	}
	t.rows++
	fmt.Fprintln(t.w, t.prefix+strings.Join(values, "\t"))
}

// Flush writes the buffered rows, or the empty message when there are none.
func (t *Table) Flush() {
	if t.rows == 0 {
		if t.empty != "" {
			fmt.Fprintln(t.out, t.prefix+t.empty)
		}
		return
	}
	t.w.Flush()
}

func (t *Table) writeHeaders() {
	fmt.Fprintln(t.w, t.prefix+strings.Join(t.headers, "\t"))
	dividers := make([]string, len(t.headers))
	for i, h := range t.headers {
		dividers[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(t.w, t.prefix+strings.Join(dividers, "\t"))
}
