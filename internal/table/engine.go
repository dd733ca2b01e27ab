// Package table is the tabular data engine behind every entity list in
// callboard. It turns one loaded page of records into the rows to display:
// search, then sort, with multi-selection, pagination chrome and per-row
// actions derived alongside.
//
// The engine is a pure derivation. Search text, sort, selection and page
// are owned by the caller, which passes them in on every render and adopts
// whatever new state the Tracker or Pagination hand back.
package table

import (
	"errors"
	"fmt"
	"strings"
)

// Record is anything with a unique, stable identifier.
type Record interface {
	ID() string
}

// Contract violations. Render returns these wrapped with the offending
// record or column; they are never retried or degraded.
var (
	ErrMissingID     = errors.New("record has no identifier")
	ErrDuplicateID   = errors.New("duplicate record identifier")
	ErrNoColumns     = errors.New("no columns configured")
	ErrUnknownColumn = errors.New("sort column is not declared")
	ErrNotSortable   = errors.New("sort column is not sortable")
)

// DefaultEmptyMessage is shown when nothing survives the pipeline.
const DefaultEmptyMessage = "No data available"

// Column describes how one field is labeled, sorted and displayed.
type Column[R Record] struct {
	Key      string
	Label    string
	Sortable bool
	Width    int // display hint, 0 = renderer default

	// Render overrides the displayed value. It receives the raw field
	// value (nil for synthetic keys) and the record.
	Render func(value any, rec R) string
}

// Action is a per-row command.
type Action[R Record] struct {
	Label   string
	Icon    string
	Handler func(rec R) error
}

// ActionKind says how a row's actions should be presented.
type ActionKind int

const (
	ActionNone   ActionKind = iota
	ActionSingle            // one action: a direct trigger
	ActionMenu              // several actions: a named menu
)

// Options configure an Engine. Columns is required; everything else is
// optional.
type Options[R Record] struct {
	Columns           []Column[R]
	Loading           bool
	Searchable        bool
	Filterable        bool
	Selectable        bool
	OnSelectionChange func(selected []R)
	Actions           []Action[R]
	EmptyMessage      string
	Pagination        *Pagination
}

// State is the caller-owned interaction state for one render.
type State struct {
	Search    string
	Sort      Sort
	Selection Selection
}

// Header is one rendered column heading.
type Header struct {
	Key      string
	Label    string
	Width    int
	Sortable bool
	Sorted   bool
	Dir      Direction
}

// Row is one displayed record.
type Row[R Record] struct {
	Record   R
	ID       string
	Cells    []string
	Selected bool
	Actions  []Action[R]
}

// ActionKind reports how the row's actions should be presented.
func (r Row[R]) ActionKind() ActionKind {
	switch len(r.Actions) {
	case 0:
		return ActionNone
	case 1:
		return ActionSingle
	}
	return ActionMenu
}

// Invoke runs the i-th action against the row's record.
func (r Row[R]) Invoke(i int) error {
	if i < 0 || i >= len(r.Actions) {
		return fmt.Errorf("action %d out of range (row has %d)", i, len(r.Actions))
	}
	if r.Actions[i].Handler == nil {
		return nil
	}
	return r.Actions[i].Handler(r.Record)
}

// SelectionSummary is the aggregate selection reported with a view.
type SelectionSummary struct {
	State SelectionState
	Count int // selected records among the loaded ones
	Total int // loaded records
}

// View is everything the presentation layer needs for one frame.
type View[R Record] struct {
	Loading      bool
	Filterable   bool
	Headers      []Header
	Rows         []Row[R]
	Empty        bool
	EmptyMessage string
	Selection    *SelectionSummary // nil unless selectable
	Page         *PageInfo         // nil without pagination
}

// Engine derives views from records. It keeps no state between renders.
type Engine[R Record] struct {
	opts Options[R]
}

// New creates an engine for the given options.
func New[R Record](opts Options[R]) *Engine[R] {
	if opts.EmptyMessage == "" {
		opts.EmptyMessage = DefaultEmptyMessage
	}
	return &Engine[R]{opts: opts}
}

// Options returns the engine configuration.
func (e *Engine[R]) Options() Options[R] {
	return e.opts
}

// Tracker returns a selection tracker wired to OnSelectionChange.
func (e *Engine[R]) Tracker() Tracker[R] {
	return Tracker[R]{OnChange: e.opts.OnSelectionChange}
}

// Visible runs search and sort and returns the records to display.
func (e *Engine[R]) Visible(records []R, st State) ([]R, error) {
	if err := e.validateSort(st.Sort); err != nil {
		return nil, err
	}
	term := st.Search
	if !e.opts.Searchable {
		term = ""
	}
	return SortRecords(Filter(records, term), st.Sort.Column, st.Sort.Direction), nil
}

// Render derives the view for records under st. The selection aggregate is
// measured against records, the whole loaded page, not against the rows
// that survive the search.
func (e *Engine[R]) Render(records []R, st State) (View[R], error) {
	view := View[R]{
		Loading:      e.opts.Loading,
		Filterable:   e.opts.Filterable,
		EmptyMessage: e.opts.EmptyMessage,
	}
	if e.opts.Pagination != nil {
		info := e.opts.Pagination.Info()
		view.Page = &info
	}
	if e.opts.Loading {
		return view, nil
	}

	if len(e.opts.Columns) == 0 {
		return View[R]{}, ErrNoColumns
	}
	if err := checkIDs(records); err != nil {
		return View[R]{}, err
	}

	visible, err := e.Visible(records, st)
	if err != nil {
		return View[R]{}, err
	}

	view.Headers = make([]Header, len(e.opts.Columns))
	for i, col := range e.opts.Columns {
		view.Headers[i] = Header{
			Key:      col.Key,
			Label:    col.Label,
			Width:    col.Width,
			Sortable: col.Sortable,
			Sorted:   st.Sort.Column != "" && strings.EqualFold(col.Key, st.Sort.Column),
			Dir:      st.Sort.Direction,
		}
	}

	view.Rows = make([]Row[R], len(visible))
	for i, rec := range visible {
		view.Rows[i] = Row[R]{
			Record:   rec,
			ID:       rec.ID(),
			Cells:    e.cells(rec),
			Selected: e.opts.Selectable && st.Selection.Has(rec.ID()),
			Actions:  e.opts.Actions,
		}
	}
	view.Empty = len(visible) == 0

	if e.opts.Selectable {
		view.Selection = &SelectionSummary{
			State: Aggregate(records, st.Selection),
			Count: len(Materialize(records, st.Selection)),
			Total: len(records),
		}
	}
	return view, nil
}

func (e *Engine[R]) cells(rec R) []string {
	out := make([]string, len(e.opts.Columns))
	for i, col := range e.opts.Columns {
		v, _ := Lookup(rec, col.Key)
		if col.Render != nil {
			out[i] = col.Render(v, rec)
		} else {
			out[i] = Stringify(v)
		}
		if out[i] == "" {
			out[i] = EmptyCell
		}
	}
	return out
}

func (e *Engine[R]) validateSort(s Sort) error {
	if s.Column == "" {
		return nil
	}
	for _, col := range e.opts.Columns {
		if strings.EqualFold(col.Key, s.Column) {
			if !col.Sortable {
				return fmt.Errorf("%w: %q", ErrNotSortable, s.Column)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownColumn, s.Column)
}

func checkIDs[R Record](records []R) error {
	seen := make(map[string]int, len(records))
	for i, rec := range records {
		id := rec.ID()
		if id == "" {
			return fmt.Errorf("%w: record at position %d", ErrMissingID, i)
		}
		if j, dup := seen[id]; dup {
			return fmt.Errorf("%w: %q at positions %d and %d", ErrDuplicateID, id, j, i)
		}
		seen[id] = i
	}
	return nil
}
