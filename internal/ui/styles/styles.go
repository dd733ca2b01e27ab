package styles

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/lipgloss"
	"github.com/imgajeed76/callboard/internal/table"
)

// Symbols - Unicode with ASCII fallbacks
const (
	SymbolSuccess = "✓"
	SymbolError   = "✗"
	SymbolWarning = "⚠"
	SymbolArrow   = "→"
	SymbolSortAsc = "▲"
	SymbolSortDsc = "▼"
)

var accessible atomic.Bool

// SetAccessible turns accessibility mode on from configuration.
func SetAccessible(on bool) {
	accessible.Store(on)
}

// NoColor checks if colors should be disabled
func NoColor() bool {
	return os.Getenv("NO_COLOR") != "" || os.Getenv("CALLBOARD_NO_COLOR") != "" || accessible.Load()
}

// IsAccessible checks if accessibility mode is enabled
// When enabled: no animations, no spinner, no interactive table
func IsAccessible() bool {
	v := os.Getenv("CALLBOARD_ACCESSIBLE")
	return v == "1" || v == "true" || accessible.Load()
}

// Base text styles
var (
	Bold      = lipgloss.NewStyle().Bold(true)
	Dim       = lipgloss.NewStyle().Foreground(Muted)
	Underline = lipgloss.NewStyle().Underline(true)
)

// Semantic styles - use these instead of raw colors
var (
	// Message types
	SuccessStyle = lipgloss.NewStyle().Foreground(Success)
	ErrorStyle   = lipgloss.NewStyle().Foreground(Error)
	WarningStyle = lipgloss.NewStyle().Foreground(Warning)
	InfoStyle    = lipgloss.NewStyle().Foreground(Info)
	MutedStyle   = lipgloss.NewStyle().Foreground(Muted)

	// Record display
	IDStyle   = lipgloss.NewStyle().Foreground(Info)
	DateStyle = lipgloss.NewStyle().Foreground(Muted)

	// Interactive TUI
	CursorStyle = lipgloss.NewStyle().
			Background(BgHighlight).
			Foreground(TextPrimary)
	SelectedStyle = lipgloss.NewStyle().
			Background(BgSelected).
			Foreground(TextPrimary)
	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(Accent)

	// Help bar
	HelpKey   = lipgloss.NewStyle().Foreground(Accent)
	HelpValue = lipgloss.NewStyle().Foreground(Muted)
)

// ═══════════════════════════════════════════════════════════════════════════
// Render functions - centralized formatting with NoColor support
// ═══════════════════════════════════════════════════════════════════════════

// render applies a style if colors are enabled
func render(s lipgloss.Style, text string) string {
	if NoColor() {
		return text
	}
	return s.Render(text)
}

// ID formats a record ID
func ID(id string) string {
	return render(IDStyle, id)
}

// Date formats a date/timestamp
func Date(date string) string {
	return render(DateStyle, date)
}

// statusColors maps campaign and call statuses to colors.
var statusColors = map[string]lipgloss.Color{
	"pending":   ColorPending,
	"initiated": ColorPending,
	"active":    ColorActive,
	"ringing":   ColorActive,
	"answered":  ColorActive,
	"paused":    ColorPaused,
	"no_answer": ColorPaused,
	"completed": ColorCompleted,
	"failed":    ColorFailed,
}

// StatusStyle returns the style for a campaign or call status.
func StatusStyle(status string) (lipgloss.Style, bool) {
	c, ok := statusColors[status]
	if !ok || NoColor() {
		return lipgloss.NewStyle(), false
	}
	return lipgloss.NewStyle().Foreground(c), true
}

// Status colors a campaign or call status. Unknown statuses are returned
// unchanged.
func Status(status string) string {
	if s, ok := StatusStyle(status); ok {
		return s.Render(status)
	}
	return status
}

// Checkbox renders a row's selection mark.
func Checkbox(selected bool) string {
	if selected {
		return "[x]"
	}
	return "[ ]"
}

// SelectAllBox renders the header checkbox for the selection aggregate:
// empty for none, a dash for some, a cross for all.
func SelectAllBox(s table.SelectionState) string {
	switch s {
	case table.SelectAll:
		return "[x]"
	case table.SelectPartial:
		return "[-]"
	}
	return "[ ]"
}

// SortMark is the header suffix for a sorted column.
func SortMark(dir table.Direction) string {
	if NoColor() {
		if dir == table.Descending {
			return " v"
		}
		return " ^"
	}
	if dir == table.Descending {
		return " " + SymbolSortDsc
	}
	return " " + SymbolSortAsc
}

// ═══════════════════════════════════════════════════════════════════════════
// Message formatters - structured output
// ═══════════════════════════════════════════════════════════════════════════

// SuccessMsg formats a success message with checkmark
func SuccessMsg(msg string) string {
	symbol := SymbolSuccess
	if NoColor() {
		symbol = "+"
	}
	return fmt.Sprintf("%s %s", render(SuccessStyle, symbol), msg)
}

// ErrorMsg formats an error message
func ErrorMsg(title string) string {
	return render(ErrorStyle, "Error: "+title)
}

// WarningMsg formats a warning message
func WarningMsg(msg string) string {
	symbol := SymbolWarning
	if NoColor() {
		symbol = "!"
	}
	return fmt.Sprintf("%s %s", render(WarningStyle, symbol), msg)
}

// MutedMsg formats muted/secondary text
func MutedMsg(msg string) string {
	return render(MutedStyle, msg)
}

// SectionHeader formats a section header
func SectionHeader(title string) string {
	return render(Bold, title)
}

// HelpLine formats a help line (key description)
func HelpLine(key, description string) string {
	return fmt.Sprintf("  %s %s", render(HelpKey, key), render(MutedStyle, description))
}

// Indent returns text indented by n spaces
func Indent(text string, n int) string {
	prefix := strings.Repeat(" ", n)
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}

func Green(s string) string  { return render(SuccessStyle, s) }
func Red(s string) string    { return render(ErrorStyle, s) }
func Yellow(s string) string { return render(WarningStyle, s) }
func Cyan(s string) string   { return render(InfoStyle, s) }
func Mute(s string) string   { return render(MutedStyle, s) }

func Boldf(format string, a ...any) string { return render(Bold, fmt.Sprintf(format, a...)) }
func Mutef(format string, a ...any) string { return Mute(fmt.Sprintf(format, a...)) }
