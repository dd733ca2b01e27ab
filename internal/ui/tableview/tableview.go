// Package tableview presents table engine views: an interactive TUI with
// search, sort, selection, paging and row actions, plus plain text, JSON
// and raw tab-separated output for pipes and scripts.
package tableview

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/imgajeed76/callboard/internal/table"
	"github.com/imgajeed76/callboard/internal/ui/styles"
	"golang.org/x/term"
)

// DisplayOptions controls how results are rendered.
type DisplayOptions struct {
	// JSON outputs the displayed records as a JSON array.
	JSON bool
	// Raw outputs rows as tab-separated values (for piping).
	Raw bool
	// NoPager forces plain table output even on a TTY.
	NoPager bool
}

// ErrPastEnd is returned by a Loader when the requested page lies beyond
// the end of a collection whose size is unknown.
var ErrPastEnd = errors.New("page is past the end")

// Loaded is one fetched page. Page can be lower than the page requested
// when that one lay past the end and the loader fell back to the last.
type Loaded[R table.Record] struct {
	Records []R
	Page    int
	Total   int
}

// Request asks a Loader for one 1-based page, narrowed by a filter value
// when Filter is not empty.
type Request struct {
	Page   int
	Filter string
}

// Loader fetches one page and reports the size of the whole collection.
type Loader[R table.Record] func(ctx context.Context, req Request) (Loaded[R], error)

// Filter is a backend-side filter the browser cycles through when the
// table is filterable, e.g. a status column.
type Filter struct {
	Label  string   // shown in the footer and summary
	Values []string // cycled in order, then back to no filter
	Value  string   // active value, "" for none
}

// Config is one browsable collection.
type Config[R table.Record] struct {
	Title   string
	Options table.Options[R]
	State   table.State
	Records []R // the page already loaded

	// Load re-fetches pages. Without it paging keys are disabled.
	Load Loader[R]

	// Filter is cycled with the filter key when Options.Filterable is set.
	Filter Filter
}

// Display picks the output mode from options and environment, then
// renders cfg. The interactive table is only used on a terminal.
func Display[R table.Record](ctx context.Context, cfg Config[R], opts DisplayOptions) error {
	return display(ctx, os.Stdout, cfg, opts, term.IsTerminal(int(os.Stdout.Fd())))
}

func display[R table.Record](ctx context.Context, w io.Writer, cfg Config[R], opts DisplayOptions, isTTY bool) error {
	if !opts.JSON && !opts.Raw && isTTY && !opts.NoPager && !styles.IsAccessible() && len(cfg.Records) > 0 {
		return Browse(ctx, cfg)
	}

	view, err := table.New(cfg.Options).Render(cfg.Records, cfg.State)
	if err != nil {
		return err
	}
	return printView(w, view, opts)
}

func printView[R table.Record](w io.Writer, view table.View[R], opts DisplayOptions) error {
	switch {
	case opts.Raw:
		PrintRaw(w, view)
	case opts.JSON:
		return PrintJSON(w, view)
	default:
		PrintPlain(w, view)
	}
	return nil
}
