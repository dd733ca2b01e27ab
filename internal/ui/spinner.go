package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/imgajeed76/callboard/internal/ui/styles"
	"golang.org/x/term"
)

// Spinner provides a simple animated spinner while a page loads. It draws
// on stderr so piped stdout stays clean.
type Spinner struct {
	message string
	out     io.Writer
	done    chan struct{}
	wg      sync.WaitGroup
	started bool
}

// NewSpinner creates a new spinner with the given message
func NewSpinner(message string) *Spinner {
	return &Spinner{
		message: message,
		out:     os.Stderr,
		done:    make(chan struct{}),
	}
}

// Start begins the spinner animation in the background. Accessible mode
// and non-TTY stderr draw nothing.
func (s *Spinner) Start() {
	if styles.IsAccessible() || !term.IsTerminal(int(os.Stderr.Fd())) {
		return
	}
	s.started = true
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
		style := lipgloss.NewStyle().Foreground(styles.Accent)
		i := 0
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-s.done:
				fmt.Fprint(s.out, "\r\033[K")
				return
			case <-ticker.C:
				frame := style.Render(frames[i%len(frames)])
				fmt.Fprintf(s.out, "\r%s %s", frame, s.message)
				i++
			}
		}
	}()
}

// Stop stops the spinner and waits for the line to be cleared.
func (s *Spinner) Stop() {
	select {
	case <-s.done:
		return
	default:
		close(s.done)
	}
	if s.started {
		s.wg.Wait()
	}
}

// ══════════════════════════════════════════════════════════════════════════
// Progress bar for operations with known progress
// ══════════════════════════════════════════════════════════════════════════

// Progress represents a progress bar, used for bulk row actions.
type Progress struct {
	total   int
	current int
	label   string
	width   int
	out     io.Writer
}

// NewProgress creates a new progress bar
func NewProgress(label string, total int) *Progress {
	return &Progress{
		label: label,
		total: total,
		width: 30,
		out:   os.Stderr,
	}
}

// Increment increments progress by 1
func (p *Progress) Increment() {
	p.current++
	p.render()
}

func (p *Progress) render() {
	if p.total <= 0 {
		return
	}
	if styles.IsAccessible() || !term.IsTerminal(int(os.Stderr.Fd())) {
		if p.current == p.total {
			fmt.Fprintf(p.out, "%s: %d of %d\n", p.label, p.current, p.total)
		}
		return
	}

	pct := float64(p.current) / float64(p.total)
	filled := int(pct * float64(p.width))

	bar := lipgloss.NewStyle().Foreground(styles.Success).Render(strings.Repeat("█", filled)) +
		lipgloss.NewStyle().Foreground(styles.Muted).Render(strings.Repeat("░", p.width-filled))

	fmt.Fprintf(p.out, "\r%s %s %3d%% [%d/%d]", p.label, bar, int(pct*100), p.current, p.total)
	if p.current == p.total {
		fmt.Fprintln(p.out)
	}
}
