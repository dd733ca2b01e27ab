package tableview

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/imgajeed76/callboard/internal/table"
	"github.com/imgajeed76/callboard/internal/util"
	"github.com/mattn/go-runewidth"
)

// PrintJSON writes the records behind the view's rows as a JSON array.
// The records are encoded with their own field tags, so timestamps and
// missing values keep their types.
func PrintJSON[R table.Record](w io.Writer, view table.View[R]) error {
	out := make([]R, len(view.Rows))
	for i, row := range view.Rows {
		out[i] = row.Record
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// PrintRaw writes one tab-separated line per row, for piping. Tabs and
// newlines inside cells become spaces.
func PrintRaw[R table.Record](w io.Writer, view table.View[R]) {
	for _, row := range view.Rows {
		fmt.Fprintln(w, strings.Join(cleanCells(row.Cells), "\t"))
	}
}

// cleanCells returns a copy of cells with each value folded onto one line.
func cleanCells(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = util.CleanCell(c)
	}
	return out
}

// PrintPlain prints an aligned table for non-TTY output. Cells are shown
// in full; only the footer reflects pagination and selection.
func PrintPlain[R table.Record](w io.Writer, view table.View[R]) {
	if view.Loading {
		fmt.Fprintln(w, "Loading...")
		return
	}
	if view.Empty || len(view.Headers) == 0 {
		fmt.Fprintln(w, view.EmptyMessage)
		printFooter(w, view)
		return
	}

	rows := make([][]string, len(view.Rows))
	for i, row := range view.Rows {
		rows[i] = cleanCells(row.Cells)
	}

	widths := make([]int, len(view.Headers))
	for i, h := range view.Headers {
		widths[i] = lipgloss.Width(headerLabel(h))
	}
	for _, cells := range rows {
		for i, val := range cells {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(val))
			}
		}
	}

	var sb strings.Builder
	for i, h := range view.Headers {
		if i > 0 {
			sb.WriteString("  ")
		}
		sb.WriteString(pad(headerLabel(h), widths[i]))
	}
	fmt.Fprintln(w, strings.TrimRight(sb.String(), " "))

	sb.Reset()
	for i, width := range widths {
		if i > 0 {
			sb.WriteString("  ")
		}
		sb.WriteString(strings.Repeat("─", width))
	}
	fmt.Fprintln(w, sb.String())

	for _, cells := range rows {
		sb.Reset()
		for i, val := range cells {
			if i >= len(widths) {
				break
			}
			if i > 0 {
				sb.WriteString("  ")
			}
			sb.WriteString(pad(val, widths[i]))
		}
		fmt.Fprintln(w, strings.TrimRight(sb.String(), " "))
	}

	fmt.Fprintln(w)
	printFooter(w, view)
}

func printFooter[R table.Record](w io.Writer, view table.View[R]) {
	var parts []string
	if view.Page != nil {
		parts = append(parts, PageSummary(*view.Page))
	} else {
		parts = append(parts, fmt.Sprintf("%d rows", len(view.Rows)))
	}
	if view.Selection != nil && view.Selection.Count > 0 {
		parts = append(parts, SelectionSummary(*view.Selection))
	}
	fmt.Fprintf(w, "(%s)\n", strings.Join(parts, ", "))
}

// PageSummary describes a page for footers: "page 2 of 7, 26-50 of 163".
func PageSummary(p table.PageInfo) string {
	if p.Total == 0 {
		return "page 1 of 1, no records"
	}
	return fmt.Sprintf("page %d of %d, %d-%d of %d", p.Page, max(p.PageCount, 1), p.From, p.To, p.Total)
}

// SelectionSummary describes a selection: "3 of 25 selected".
func SelectionSummary(s table.SelectionSummary) string {
	return fmt.Sprintf("%d of %d selected", s.Count, s.Total)
}

func headerLabel(h table.Header) string {
	if h.Sorted {
		if h.Dir == table.Descending {
			return h.Label + " v"
		}
		return h.Label + " ^"
	}
	return h.Label
}

// pad adds spaces to reach the desired display width (no truncation).
func pad(s string, width int) string {
	w := lipgloss.Width(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

// Truncate shortens a string to fit width display columns, ending in "…"
// when something was cut.
func Truncate(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	if width > 1 {
		return runewidth.Truncate(s, width, "…")
	}
	return runewidth.Truncate(s, width, "")
}

// PadOrTruncate pads or truncates to exact width (for the TUI table).
func PadOrTruncate(s string, width int) string {
	return runewidth.FillRight(Truncate(s, width), width)
}
