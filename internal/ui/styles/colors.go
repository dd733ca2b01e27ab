package styles

import "github.com/charmbracelet/lipgloss"

// Color palette, dark mode optimized, semantic colors
var (
	// Primary semantic colors
	Accent  = lipgloss.Color("#7C3AED") // violet-500 - highlights, interactive
	Success = lipgloss.Color("#10B981") // emerald-500 - success, completed
	Warning = lipgloss.Color("#F59E0B") // amber-500 - warnings, paused
	Error   = lipgloss.Color("#EF4444") // red-500 - errors, failed
	Info    = lipgloss.Color("#3B82F6") // blue-500 - info, in progress
	Muted   = lipgloss.Color("#6B7280") // gray-500 - secondary text

	// Text colors
	TextPrimary   = lipgloss.Color("#F9FAFB") // gray-50 - main text
	TextSecondary = lipgloss.Color("#9CA3AF") // gray-400 - descriptions

	// Background colors
	BgHighlight = lipgloss.Color("#1F2937") // gray-800 - cursor row
	BgSelected  = lipgloss.Color("#2E1065") // violet-950 - selected rows
	BgBorder    = lipgloss.Color("#374151") // gray-700 - borders
)

// Record status colors
var (
	ColorPending   = Muted
	ColorActive    = Info
	ColorPaused    = Warning
	ColorCompleted = Success
	ColorFailed    = Error
)
