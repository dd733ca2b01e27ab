package tableview

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/imgajeed76/callboard/internal/table"
	"github.com/imgajeed76/callboard/internal/ui/styles"
	"github.com/mattn/go-runewidth"
)

// ═══════════════════════════════════════════════════════════════════════════
// Constants
// ═══════════════════════════════════════════════════════════════════════════

const (
	defaultColWidth = 20
	minColWidth     = 3
	hiddenColWidth  = 3
	checkboxWidth   = 4 // "[x] "
)

// Column display state
type colState int

const (
	colStateDefault  colState = iota // truncated to the column hint or defaultColWidth
	colStateExpanded                 // full width
	colStateHidden                   // minimal width (just "...")
)

type browseMode int

const (
	modeNormal browseMode = iota
	modeSearch
	modeMenu
)

// Exit mode: what to print after quitting the TUI
type exitMode int

const (
	exitNormal exitMode = iota
	exitJSON
	exitRaw
	exitPlain
)

// ═══════════════════════════════════════════════════════════════════════════
// Messages
// ═══════════════════════════════════════════════════════════════════════════

// pageMsg carries a fetched page. seq identifies the request; only the
// latest request is applied.
type pageMsg[R table.Record] struct {
	seq     int
	page    int
	records []R
	total   int
	err     error
}

type actionMsg struct {
	label  string
	done   int
	failed int
	err    error
}

// ═══════════════════════════════════════════════════════════════════════════
// Model
// ═══════════════════════════════════════════════════════════════════════════

type browser[R table.Record] struct {
	ctx   context.Context
	title string
	opts  table.Options[R]
	load  Loader[R]

	engine    *table.Engine[R]
	records   []R
	state     table.State
	view      table.View[R]
	renderErr error

	loading bool
	seq     int // last page request
	want    int // page of the last request
	spin    spinner.Model
	filter  Filter

	fullColWidths []int
	colStates     []colState
	cursor        int // row in the view
	colCursor     int
	scrollX       int
	scrollY       int
	width         int
	height        int
	ready         bool
	mode          browseMode
	searchInput   textinput.Model
	menuCursor    int
	exitMode      exitMode

	// Animation state for smooth scrolling
	animating   bool
	animTargetX int
	animTargetY int

	// Flash notification in the footer
	statusMsg   string
	statusErr   bool
	statusUntil time.Time
}

// ═══════════════════════════════════════════════════════════════════════════
// Key Bindings
// ═══════════════════════════════════════════════════════════════════════════

type browseKeyMap struct {
	Up          key.Binding
	Down        key.Binding
	Left        key.Binding
	Right       key.Binding
	ShiftUp     key.Binding
	ShiftDown   key.Binding
	ShiftLeft   key.Binding
	ShiftRight  key.Binding
	PageUp      key.Binding
	PageDown    key.Binding
	Home        key.Binding
	End         key.Binding
	Expand      key.Binding
	Hide        key.Binding
	Search      key.Binding
	Sort        key.Binding
	FlipSort    key.Binding
	Toggle      key.Binding
	SelectAll   key.Binding
	Filter      key.Binding
	NextPage    key.Binding
	PrevPage    key.Binding
	Reload      key.Binding
	Action      key.Binding
	Cancel      key.Binding
	Quit        key.Binding
	YankCell    key.Binding
	YankRow     key.Binding
	ExportJSON  key.Binding
	ExportRaw   key.Binding
	ExportPlain key.Binding
}

var browseKeys = browseKeyMap{
	Up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Left:        key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "prev column")),
	Right:       key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "next column")),
	ShiftUp:     key.NewBinding(key.WithKeys("shift+up"), key.WithHelp("⇧↑", "half page up")),
	ShiftDown:   key.NewBinding(key.WithKeys("shift+down"), key.WithHelp("⇧↓", "half page down")),
	ShiftLeft:   key.NewBinding(key.WithKeys("shift+left"), key.WithHelp("⇧←", "scroll half left")),
	ShiftRight:  key.NewBinding(key.WithKeys("shift+right"), key.WithHelp("⇧→", "scroll half right")),
	PageUp:      key.NewBinding(key.WithKeys("pgup", "ctrl+u"), key.WithHelp("pgup", "screen up")),
	PageDown:    key.NewBinding(key.WithKeys("pgdown", "ctrl+d"), key.WithHelp("pgdn", "screen down")),
	Home:        key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("g", "first row")),
	End:         key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "last row")),
	Expand:      key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "expand/default")),
	Hide:        key.NewBinding(key.WithKeys("H"), key.WithHelp("H", "hide/default")),
	Search:      key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
	Sort:        key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort by column")),
	FlipSort:    key.NewBinding(key.WithKeys("S"), key.WithHelp("S", "flip sort")),
	Toggle:      key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "select")),
	SelectAll:   key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "select all")),
	Filter:      key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "cycle filter")),
	NextPage:    key.NewBinding(key.WithKeys("n", "]"), key.WithHelp("n", "next page")),
	PrevPage:    key.NewBinding(key.WithKeys("p", "["), key.WithHelp("p", "prev page")),
	Reload:      key.NewBinding(key.WithKeys("r", "ctrl+r"), key.WithHelp("r", "reload")),
	Action:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "actions")),
	Cancel:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
	YankCell:    key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy cell")),
	YankRow:     key.NewBinding(key.WithKeys("Y"), key.WithHelp("Y", "copy row")),
	ExportJSON:  key.NewBinding(key.WithKeys("J"), key.WithHelp("J", "print as JSON")),
	ExportRaw:   key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "print raw")),
	ExportPlain: key.NewBinding(key.WithKeys("P"), key.WithHelp("P", "print table")),
}

// ═══════════════════════════════════════════════════════════════════════════
// Entry Point
// ═══════════════════════════════════════════════════════════════════════════

// Browse launches the interactive table. It blocks until the user quits.
// If the user requests an export (J/R/P), the rows on screen at exit are
// printed to stdout after the TUI closes.
func Browse[R table.Record](ctx context.Context, cfg Config[R]) error {
	m := newBrowser(ctx, cfg)

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	fm, ok := finalModel.(browser[R])
	if !ok {
		return nil
	}
	if fm.renderErr != nil {
		return fm.renderErr
	}
	switch fm.exitMode {
	case exitJSON:
		return PrintJSON(os.Stdout, fm.view)
	case exitRaw:
		PrintRaw(os.Stdout, fm.view)
	case exitPlain:
		PrintPlain(os.Stdout, fm.view)
	}
	return nil
}

func newBrowser[R table.Record](ctx context.Context, cfg Config[R]) browser[R] {
	ti := textinput.New()
	ti.Placeholder = "search..."
	ti.CharLimit = 100
	ti.Width = 30
	ti.SetValue(cfg.State.Search)

	sp := spinner.New(spinner.WithSpinner(spinner.MiniDot))
	sp.Style = lipgloss.NewStyle().Foreground(styles.Accent)

	m := browser[R]{
		ctx:         ctx,
		title:       cfg.Title,
		opts:        cfg.Options,
		load:        cfg.Load,
		filter:      cfg.Filter,
		records:     cfg.Records,
		state:       cfg.State,
		spin:        sp,
		searchInput: ti,
	}
	if p := m.opts.Pagination; p != nil {
		m.want = p.Current()
	}
	m.refresh()
	return m
}

// refresh re-derives the view from records and state.
func (m *browser[R]) refresh() {
	opts := m.opts
	opts.Loading = m.loading
	m.engine = table.New(opts)

	view, err := m.engine.Render(m.records, m.state)
	m.renderErr = err
	if err != nil {
		return
	}
	for i := range view.Rows {
		view.Rows[i].Cells = cleanCells(view.Rows[i].Cells)
	}
	m.view = view
	if view.Loading {
		return
	}

	if len(m.colStates) != len(view.Headers) {
		m.colStates = make([]colState, len(view.Headers))
	}
	m.fullColWidths = make([]int, len(view.Headers))
	for i, h := range view.Headers {
		m.fullColWidths[i] = lipgloss.Width(h.Label) + 2 // room for the sort mark
	}
	for _, row := range view.Rows {
		for i, val := range row.Cells {
			if i < len(m.fullColWidths) {
				m.fullColWidths[i] = max(m.fullColWidths[i], lipgloss.Width(val))
			}
		}
	}

	if m.cursor >= len(view.Rows) {
		m.cursor = max(len(view.Rows)-1, 0)
	}
	if m.colCursor >= len(view.Headers) {
		m.colCursor = max(len(view.Headers)-1, 0)
	}
	if m.scrollY > m.getMaxScrollY() {
		m.scrollY = m.getMaxScrollY()
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Bubble Tea Interface
// ═══════════════════════════════════════════════════════════════════════════

func (m browser[R]) Init() tea.Cmd {
	return nil
}

func (m browser[R]) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case pageMsg[R]:
		return m.receivePage(msg)

	case actionMsg:
		var cmd tea.Cmd
		if msg.err != nil {
			cmd = m.setError(fmt.Sprintf("%s failed for %d of %d: %s", msg.label, msg.failed, msg.done+msg.failed, msg.err))
		} else {
			cmd = m.setStatus(fmt.Sprintf("%s: %d done", msg.label, msg.done))
		}
		if msg.done > 0 && m.state.Selection.Len() > 0 {
			m.state.Selection = m.engine.Tracker().DeselectAll(m.records, m.state.Selection)
			m.refresh()
		}
		return m, tea.Batch(cmd, m.fetch(m.want))

	case animTickMsg:
		cmd := m.updateAnimation()
		return m, cmd

	case statusClearMsg:
		if !m.statusUntil.IsZero() && time.Now().After(m.statusUntil) {
			m.statusMsg = ""
			m.statusErr = false
			m.statusUntil = time.Time{}
		}
		return m, nil

	case tea.KeyMsg:
		m.cancelAnimation()

		switch m.mode {
		case modeSearch:
			return m.updateSearch(msg)
		case modeMenu:
			return m.updateMenu(msg)
		}

		switch {
		case key.Matches(msg, browseKeys.Quit):
			return m, tea.Quit

		case key.Matches(msg, browseKeys.Search):
			if !m.opts.Searchable {
				return m, m.setStatus("Search is not available here")
			}
			m.mode = modeSearch
			m.searchInput.Focus()
			return m, textinput.Blink

		case key.Matches(msg, browseKeys.Sort):
			return m, m.sortByColumn()

		case key.Matches(msg, browseKeys.FlipSort):
			if m.state.Sort.Column == "" {
				return m, m.setStatus("Press s on a column to sort first")
			}
			m.state.Sort.Direction = m.state.Sort.Direction.Toggle()
			m.refresh()

		case key.Matches(msg, browseKeys.Toggle):
			m.toggleRow()

		case key.Matches(msg, browseKeys.SelectAll):
			m.toggleAll()

		case key.Matches(msg, browseKeys.Filter):
			return m, m.cycleFilter()

		case key.Matches(msg, browseKeys.NextPage):
			return m, m.turnPage(1)

		case key.Matches(msg, browseKeys.PrevPage):
			return m, m.turnPage(-1)

		case key.Matches(msg, browseKeys.Reload):
			if m.load == nil {
				return m, nil
			}
			return m, m.fetch(m.want)

		case key.Matches(msg, browseKeys.Action):
			return m, m.openActions()

		case key.Matches(msg, browseKeys.Up):
			if m.cursor > 0 {
				m.cursor--
				m.ensureRowVisible()
			}

		case key.Matches(msg, browseKeys.Down):
			if m.cursor < m.displayRowCount()-1 {
				m.cursor++
				m.ensureRowVisible()
			}

		case key.Matches(msg, browseKeys.Left):
			colStartX := m.getColStartX(m.colCursor)
			if colStartX < m.scrollX {
				m.scrollX = max(m.scrollX-3, colStartX, 0)
			} else if m.colCursor > 0 {
				m.colCursor--
				m.ensureColVisibleFromRight()
			}

		case key.Matches(msg, browseKeys.Right):
			colEndX := m.getColEndX(m.colCursor)
			if colEndX > m.scrollX+m.viewportWidth() {
				m.scrollX = min(m.scrollX+3, m.getMaxScrollX())
			} else if m.colCursor < len(m.view.Headers)-1 {
				m.colCursor++
				m.ensureColVisibleFromLeft()
			}

		case key.Matches(msg, browseKeys.ShiftLeft):
			return m, m.startAnimation(m.scrollX-max(m.width/2, 1), m.scrollY)

		case key.Matches(msg, browseKeys.ShiftRight):
			return m, m.startAnimation(m.scrollX+max(m.width/2, 1), m.scrollY)

		case key.Matches(msg, browseKeys.ShiftUp):
			halfPage := max(m.visibleRowCount()/2, 1)
			m.cursor = max(m.cursor-halfPage, 0)
			return m, m.startAnimation(m.scrollX, m.scrollY-halfPage)

		case key.Matches(msg, browseKeys.ShiftDown):
			halfPage := max(m.visibleRowCount()/2, 1)
			m.cursor = max(min(m.cursor+halfPage, m.displayRowCount()-1), 0)
			return m, m.startAnimation(m.scrollX, m.scrollY+halfPage)

		case key.Matches(msg, browseKeys.PageUp):
			m.cursor = max(m.cursor-m.visibleRowCount(), 0)
			m.ensureRowVisible()

		case key.Matches(msg, browseKeys.PageDown):
			m.cursor = max(min(m.cursor+m.visibleRowCount(), m.displayRowCount()-1), 0)
			m.ensureRowVisible()

		case key.Matches(msg, browseKeys.Home):
			m.cursor = 0
			m.scrollY = 0
			m.scrollX = 0

		case key.Matches(msg, browseKeys.End):
			if n := m.displayRowCount(); n > 0 {
				m.cursor = n - 1
				m.ensureRowVisible()
			}

		case key.Matches(msg, browseKeys.Expand):
			if m.colCursor < len(m.colStates) {
				if m.colStates[m.colCursor] == colStateExpanded {
					m.colStates[m.colCursor] = colStateDefault
				} else {
					m.colStates[m.colCursor] = colStateExpanded
				}
				m.ensureColVisible()
			}

		case key.Matches(msg, browseKeys.Hide):
			if m.colCursor < len(m.colStates) {
				if m.colStates[m.colCursor] == colStateHidden {
					m.colStates[m.colCursor] = colStateDefault
				} else {
					m.colStates[m.colCursor] = colStateHidden
				}
				m.ensureColVisible()
			}

		case key.Matches(msg, browseKeys.YankCell):
			return m, m.yankCell()

		case key.Matches(msg, browseKeys.YankRow):
			return m, m.yankRow()

		case key.Matches(msg, browseKeys.ExportJSON):
			m.exitMode = exitJSON
			return m, tea.Quit

		case key.Matches(msg, browseKeys.ExportRaw):
			m.exitMode = exitRaw
			return m, tea.Quit

		case key.Matches(msg, browseKeys.ExportPlain):
			m.exitMode = exitPlain
			return m, tea.Quit
		}
	}

	return m, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Search
// ═══════════════════════════════════════════════════════════════════════════

func (m browser[R]) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeNormal
		m.searchInput.Blur()
		m.searchInput.SetValue("")
		m.state.Search = ""
		m.cursor = 0
		m.scrollY = 0
		m.refresh()
		return m, nil
	case tea.KeyEnter:
		m.mode = modeNormal
		m.searchInput.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)

	// Live filter as the user types
	m.state.Search = m.searchInput.Value()
	m.refresh()
	if m.cursor >= m.displayRowCount() {
		m.cursor = 0
		m.scrollY = 0
	}
	return m, cmd
}

// ═══════════════════════════════════════════════════════════════════════════
// Sort and Selection
// ═══════════════════════════════════════════════════════════════════════════

// sortByColumn sorts ascending by the column under the cursor, or clears
// the sort when that column is already the sort column.
func (m *browser[R]) sortByColumn() tea.Cmd {
	if m.colCursor >= len(m.view.Headers) {
		return nil
	}
	h := m.view.Headers[m.colCursor]
	if !h.Sortable {
		return m.setStatus(fmt.Sprintf("%s is not sortable", h.Label))
	}
	if h.Sorted {
		m.state.Sort = table.Sort{}
	} else {
		m.state.Sort = table.Sort{Column: h.Key, Direction: table.Ascending}
	}
	m.cursor = 0
	m.scrollY = 0
	m.refresh()
	return nil
}

func (m *browser[R]) toggleRow() {
	if !m.opts.Selectable || m.cursor >= len(m.view.Rows) {
		return
	}
	row := m.view.Rows[m.cursor]
	m.state.Selection = m.engine.Tracker().Toggle(m.records, m.state.Selection, row.ID, !row.Selected)
	m.refresh()
}

// toggleAll selects every row on screen, or clears the selection when all
// of them are already selected.
func (m *browser[R]) toggleAll() {
	if !m.opts.Selectable {
		return
	}
	visible := make([]R, len(m.view.Rows))
	for i, row := range m.view.Rows {
		visible[i] = row.Record
	}
	tracker := m.engine.Tracker()
	if len(visible) > 0 && table.Aggregate(visible, m.state.Selection) == table.SelectAll {
		m.state.Selection = tracker.DeselectAll(m.records, m.state.Selection)
	} else {
		m.state.Selection = tracker.SelectAll(visible, m.state.Selection)
	}
	m.refresh()
}

// ═══════════════════════════════════════════════════════════════════════════
// Paging
// ═══════════════════════════════════════════════════════════════════════════

func (m *browser[R]) turnPage(delta int) tea.Cmd {
	p := m.opts.Pagination
	if p == nil || m.load == nil {
		return nil
	}
	base := p.Current()
	if m.loading && m.want > 0 {
		base = m.want
	}
	if p.Clamp(base+delta) == base {
		if delta > 0 {
			return m.setStatus("Already on the last page")
		}
		return m.setStatus("Already on the first page")
	}
	return m.fetch(p.GoTo(base + delta))
}

// fetch requests a page. Responses to earlier requests are dropped when
// they arrive, so the last request wins.
func (m *browser[R]) fetch(page int) tea.Cmd {
	if m.load == nil {
		return nil
	}
	m.seq++
	m.want = max(page, 1)
	m.loading = true
	m.refresh()

	seq, load, ctx := m.seq, m.load, m.ctx
	req := Request{Page: m.want, Filter: m.filter.Value}
	return tea.Batch(m.spin.Tick, func() tea.Msg {
		return loadPage(ctx, load, seq, req)
	})
}

// loadPage runs one page request. The message carries the page the loader
// actually returned, which is lower than requested after a fallback.
func loadPage[R table.Record](ctx context.Context, load Loader[R], seq int, req Request) pageMsg[R] {
	res, err := load(ctx, req)
	if err != nil {
		return pageMsg[R]{seq: seq, page: req.Page, err: err}
	}
	return pageMsg[R]{seq: seq, page: max(res.Page, 1), records: res.Records, total: res.Total}
}

// cycleFilter moves to the next filter value, or back to no filter after
// the last one, and reloads from the first page.
func (m *browser[R]) cycleFilter() tea.Cmd {
	if !m.view.Filterable || len(m.filter.Values) == 0 || m.load == nil {
		return m.setStatus("Filtering is not available here")
	}
	next := ""
	if i := slices.Index(m.filter.Values, m.filter.Value); i+1 < len(m.filter.Values) {
		next = m.filter.Values[i+1]
	}
	m.filter.Value = next

	label := "all"
	if next != "" {
		label = next
	}
	return tea.Batch(m.setStatus(fmt.Sprintf("%s: %s", m.filter.Label, label)), m.fetch(1))
}

func (m browser[R]) receivePage(msg pageMsg[R]) (tea.Model, tea.Cmd) {
	if msg.seq != m.seq {
		return m, nil
	}
	m.loading = false
	if msg.err != nil {
		p := m.opts.Pagination
		if p != nil {
			m.want = p.Current()
		}
		if errors.Is(msg.err, ErrPastEnd) && p != nil {
			// Nothing lies at or after the requested page, so the
			// collection ends before it.
			p.Total = min(p.Total, (msg.page-1)*max(p.Limit, 1))
			m.refresh()
			return m, m.setStatus("No more records")
		}
		m.refresh()
		return m, m.setError(fmt.Sprintf("load failed: %s", msg.err))
	}

	moved := true
	if p := m.opts.Pagination; p != nil {
		moved = p.Page != msg.page
		p.Page = msg.page
		p.Total = msg.total
	}
	m.records = msg.records

	pruned := table.Prune(m.records, m.state.Selection)
	if !pruned.Equal(m.state.Selection) && m.opts.OnSelectionChange != nil {
		m.opts.OnSelectionChange(table.Materialize(m.records, pruned))
	}
	m.state.Selection = pruned

	if moved {
		m.cursor = 0
		m.scrollY = 0
	}
	m.refresh()
	return m, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Row Actions
// ═══════════════════════════════════════════════════════════════════════════

// targets are the selected rows, or the row under the cursor when nothing
// is selected.
func (m browser[R]) targets() []table.Row[R] {
	if m.state.Selection.Len() > 0 {
		selected := table.Materialize(m.records, m.state.Selection)
		rows := make([]table.Row[R], len(selected))
		for i, rec := range selected {
			rows[i] = table.Row[R]{Record: rec, ID: rec.ID(), Selected: true, Actions: m.opts.Actions}
		}
		return rows
	}
	if m.cursor < len(m.view.Rows) {
		return []table.Row[R]{m.view.Rows[m.cursor]}
	}
	return nil
}

func (m *browser[R]) openActions() tea.Cmd {
	targets := m.targets()
	if len(targets) == 0 {
		return nil
	}
	switch targets[0].ActionKind() {
	case table.ActionNone:
		return m.setStatus("No actions for these rows")
	case table.ActionSingle:
		return m.runAction(0)
	}
	m.mode = modeMenu
	m.menuCursor = 0
	return nil
}

func (m browser[R]) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, browseKeys.Cancel), msg.String() == "q":
		m.mode = modeNormal
	case key.Matches(msg, browseKeys.Left), key.Matches(msg, browseKeys.Up):
		if m.menuCursor > 0 {
			m.menuCursor--
		}
	case key.Matches(msg, browseKeys.Right), key.Matches(msg, browseKeys.Down):
		if m.menuCursor < len(m.opts.Actions)-1 {
			m.menuCursor++
		}
	case key.Matches(msg, browseKeys.Action):
		m.mode = modeNormal
		return m, m.runAction(m.menuCursor)
	}
	return m, nil
}

// runAction invokes action i on every target row in the background.
func (m *browser[R]) runAction(i int) tea.Cmd {
	targets := m.targets()
	if i < 0 || i >= len(m.opts.Actions) || len(targets) == 0 {
		return nil
	}
	label := m.opts.Actions[i].Label
	status := m.setStatus(fmt.Sprintf("%s: %d row(s)...", label, len(targets)))

	return tea.Batch(status, func() tea.Msg {
		res := actionMsg{label: label}
		var errs []error
		for _, row := range targets {
			if err := row.Invoke(i); err != nil {
				res.failed++
				errs = append(errs, fmt.Errorf("%s: %w", row.ID, err))
				continue
			}
			res.done++
		}
		res.err = errors.Join(errs...)
		return res
	})
}

// ═══════════════════════════════════════════════════════════════════════════
// Row / Column Helpers
// ═══════════════════════════════════════════════════════════════════════════

func (m browser[R]) displayRowCount() int {
	return len(m.view.Rows)
}

func (m browser[R]) prefixWidth() int {
	if m.opts.Selectable {
		return checkboxWidth
	}
	return 0
}

func (m browser[R]) viewportWidth() int {
	return max(m.width-2-m.prefixWidth(), 1)
}

func (m browser[R]) getColDisplayWidth(colIdx int) int {
	if colIdx >= len(m.colStates) || colIdx >= len(m.fullColWidths) {
		return defaultColWidth
	}

	switch m.colStates[colIdx] {
	case colStateExpanded:
		return max(m.fullColWidths[colIdx], minColWidth)
	case colStateHidden:
		return hiddenColWidth
	default:
		limit := defaultColWidth
		if colIdx < len(m.view.Headers) && m.view.Headers[colIdx].Width > 0 {
			limit = m.view.Headers[colIdx].Width
		}
		return max(min(m.fullColWidths[colIdx], limit), minColWidth)
	}
}

func (m browser[R]) getColStartX(colIdx int) int {
	x := 0
	for i := 0; i < colIdx && i < len(m.view.Headers); i++ {
		x += m.getColDisplayWidth(i) + 2 // +2 for column separator spacing
	}
	return x
}

func (m browser[R]) getColEndX(colIdx int) int {
	return m.getColStartX(colIdx) + m.getColDisplayWidth(colIdx)
}

func (m browser[R]) getTotalWidth() int {
	return m.getColStartX(len(m.view.Headers))
}

func (m browser[R]) getMaxScrollX() int {
	return max(m.getTotalWidth()-m.viewportWidth(), 0)
}

func (m browser[R]) getMaxScrollY() int {
	return max(m.displayRowCount()-m.visibleRowCount(), 0)
}

// ═══════════════════════════════════════════════════════════════════════════
// Animation
// ═══════════════════════════════════════════════════════════════════════════

type animTickMsg time.Time

const animationFrameInterval = 16 * time.Millisecond
const animationFraction = 0.25
const animationSnapThreshold = 1

func animTick() tea.Cmd {
	return tea.Tick(animationFrameInterval, func(t time.Time) tea.Msg {
		return animTickMsg(t)
	})
}

func (m *browser[R]) startAnimation(targetX, targetY int) tea.Cmd {
	targetX = min(max(targetX, 0), m.getMaxScrollX())
	targetY = min(max(targetY, 0), m.getMaxScrollY())

	if styles.IsAccessible() {
		m.scrollX, m.scrollY = targetX, targetY
		return nil
	}

	m.animTargetX = targetX
	m.animTargetY = targetY

	if targetX == m.scrollX && targetY == m.scrollY {
		m.animating = false
		return nil
	}
	if !m.animating {
		m.animating = true
		return animTick()
	}
	return nil
}

func (m *browser[R]) updateAnimation() tea.Cmd {
	if !m.animating {
		return nil
	}

	remainingX := m.animTargetX - m.scrollX
	remainingY := m.animTargetY - m.scrollY

	if abs(remainingX) <= animationSnapThreshold && abs(remainingY) <= animationSnapThreshold {
		m.scrollX = m.animTargetX
		m.scrollY = m.animTargetY
		m.animating = false
		return nil
	}

	m.scrollX += animStep(remainingX)
	m.scrollY += animStep(remainingY)
	return animTick()
}

func animStep(remaining int) int {
	if remaining == 0 {
		return 0
	}
	d := int(float64(remaining) * animationFraction)
	if d == 0 {
		if remaining > 0 {
			return 1
		}
		return -1
	}
	return d
}

func (m *browser[R]) cancelAnimation() {
	m.animating = false
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// ═══════════════════════════════════════════════════════════════════════════
// Status Message (flash notification)
// ═══════════════════════════════════════════════════════════════════════════

type statusClearMsg struct{}

const statusDuration = 3 * time.Second

// setStatus sets a temporary status message that auto-clears.
func (m *browser[R]) setStatus(msg string) tea.Cmd {
	m.statusMsg = msg
	m.statusErr = false
	m.statusUntil = time.Now().Add(statusDuration)
	return tea.Tick(statusDuration, func(time.Time) tea.Msg {
		return statusClearMsg{}
	})
}

func (m *browser[R]) setError(msg string) tea.Cmd {
	cmd := m.setStatus(msg)
	m.statusErr = true
	return cmd
}

// ═══════════════════════════════════════════════════════════════════════════
// Clipboard (yank)
// ═══════════════════════════════════════════════════════════════════════════

// yankCell copies the cell under the cursor to the system clipboard.
func (m *browser[R]) yankCell() tea.Cmd {
	if m.cursor >= len(m.view.Rows) {
		return nil
	}
	row := m.view.Rows[m.cursor]
	var val string
	if m.colCursor < len(row.Cells) {
		val = row.Cells[m.colCursor]
	}
	if err := clipboard.WriteAll(val); err != nil {
		return m.setError(fmt.Sprintf("clipboard error: %s", err))
	}
	return m.setStatus(fmt.Sprintf("Copied: %s", Truncate(val, 40)))
}

// yankRow copies the row under the cursor (tab-separated) to the clipboard.
func (m *browser[R]) yankRow() tea.Cmd {
	if m.cursor >= len(m.view.Rows) {
		return nil
	}
	row := m.view.Rows[m.cursor]
	if err := clipboard.WriteAll(strings.Join(row.Cells, "\t")); err != nil {
		return m.setError(fmt.Sprintf("clipboard error: %s", err))
	}
	return m.setStatus(fmt.Sprintf("Copied row %s (%d columns)", row.ID, len(row.Cells)))
}

// ═══════════════════════════════════════════════════════════════════════════
// ANSI-aware Viewport Slicing
// ═══════════════════════════════════════════════════════════════════════════

// applyViewport extracts a horizontal slice of a string, handling ANSI escape
// codes properly. It returns the portion of the string from display column
// startX with the given width; wide runes split by either edge become
// spaces.
func applyViewport(s string, startX, width int) string {
	if width <= 0 {
		return ""
	}
	startX = max(startX, 0)

	var result strings.Builder
	result.Grow(width + 64)

	visualPos := 0
	outputChars := 0
	stylesApplied := false
	inEscape := false
	var escapeSeq strings.Builder
	var activeStyles []string

	for _, r := range s {
		if outputChars >= width {
			break
		}
		if r == '\x1b' {
			inEscape = true
			escapeSeq.Reset()
			escapeSeq.WriteRune(r)
			continue
		}

		if inEscape {
			escapeSeq.WriteRune(r)
			if r != '[' && ((r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')) {
				inEscape = false
				seq := escapeSeq.String()
				if r == 'm' {
					if seq == "\x1b[0m" || seq == "\x1b[m" {
						activeStyles = nil
					} else {
						activeStyles = append(activeStyles, seq)
					}
				}
				if visualPos >= startX {
					result.WriteString(seq)
				}
			}
			continue
		}

		rw := runewidth.RuneWidth(r)
		if visualPos+rw > startX {
			if !stylesApplied && len(activeStyles) > 0 {
				for _, style := range activeStyles {
					result.WriteString(style)
				}
				stylesApplied = true
			}
			switch {
			case visualPos < startX:
				// wide rune cut by the left edge
				n := min(visualPos+rw-startX, width-outputChars)
				result.WriteString(strings.Repeat(" ", n))
				outputChars += n
			case outputChars+rw > width:
				// wide rune cut by the right edge
				n := width - outputChars
				result.WriteString(strings.Repeat(" ", n))
				outputChars += n
			default:
				result.WriteRune(r)
				outputChars += rw
			}
		}
		visualPos += rw
	}

	if len(activeStyles) > 0 && outputChars > 0 {
		result.WriteString("\x1b[0m")
	}
	if outputChars < width {
		result.WriteString(strings.Repeat(" ", width-outputChars))
	}
	return result.String()
}

// ═══════════════════════════════════════════════════════════════════════════
// Scroll Helpers
// ═══════════════════════════════════════════════════════════════════════════

func (m *browser[R]) ensureRowVisible() {
	visibleRows := m.visibleRowCount()
	if m.cursor < m.scrollY {
		m.scrollY = m.cursor
	} else if m.cursor >= m.scrollY+visibleRows {
		m.scrollY = m.cursor - visibleRows + 1
	}
}

func (m *browser[R]) clampScrollX() {
	m.scrollX = min(max(m.scrollX, 0), m.getMaxScrollX())
}

func (m *browser[R]) ensureColVisible() {
	colStartX := m.getColStartX(m.colCursor)
	colEndX := m.getColEndX(m.colCursor)
	viewportWidth := m.viewportWidth()

	if colStartX < m.scrollX {
		m.scrollX = colStartX
	} else if colEndX > m.scrollX+viewportWidth {
		if colEndX-colStartX <= viewportWidth {
			m.scrollX = colEndX - viewportWidth
		} else {
			m.scrollX = colStartX
		}
	}
	m.clampScrollX()
}

func (m *browser[R]) ensureColVisibleFromLeft() {
	m.scrollX = m.getColStartX(m.colCursor)
	m.clampScrollX()
}

func (m *browser[R]) ensureColVisibleFromRight() {
	colStartX := m.getColStartX(m.colCursor)
	colEndX := m.getColEndX(m.colCursor)
	viewportWidth := m.viewportWidth()

	m.scrollX = colEndX - viewportWidth
	if colEndX-colStartX <= viewportWidth && m.scrollX < colStartX {
		m.scrollX = colStartX
	}
	m.clampScrollX()
}

func (m browser[R]) visibleRowCount() int {
	return max(m.height-6, 1) // title, search, table header (2), footer (2)
}

// ═══════════════════════════════════════════════════════════════════════════
// View
// ═══════════════════════════════════════════════════════════════════════════

func (m browser[R]) View() string {
	if !m.ready {
		return "Loading..."
	}

	var sb strings.Builder

	// Title with row counts
	title := fmt.Sprintf("%s: %d rows", m.title, len(m.view.Rows))
	if m.state.Search != "" && !m.view.Loading {
		title = fmt.Sprintf("%s: %d/%d rows", m.title, len(m.view.Rows), len(m.records))
	}
	sb.WriteString(styles.HeaderStyle.Render(title))
	if m.loading {
		sb.WriteString("  " + m.spin.View())
	}

	// Show state indicators for modified columns
	var stateInfo []string
	for i, state := range m.colStates {
		if i >= len(m.view.Headers) {
			break
		}
		switch state {
		case colStateExpanded:
			stateInfo = append(stateInfo, m.view.Headers[i].Label+"+")
		case colStateHidden:
			stateInfo = append(stateInfo, m.view.Headers[i].Label+"-")
		}
	}
	if len(stateInfo) > 0 {
		sb.WriteString(styles.MutedMsg(fmt.Sprintf("  [%s]", strings.Join(stateInfo, ", "))))
	}
	sb.WriteString("\n")

	// Search bar
	switch {
	case m.mode == modeSearch:
		sb.WriteString(fmt.Sprintf("/%s\n", m.searchInput.View()))
	case m.state.Search != "":
		sb.WriteString(styles.MutedMsg(fmt.Sprintf("filter: %s", m.state.Search)) + "\n")
	default:
		sb.WriteString("\n")
	}

	switch {
	case m.renderErr != nil:
		sb.WriteString(styles.ErrorMsg(m.renderErr.Error()))
	case m.view.Loading:
		sb.WriteString(m.spin.View() + " Loading...")
	case m.view.Empty:
		sb.WriteString(styles.MutedMsg(m.view.EmptyMessage))
	default:
		sb.WriteString(m.renderTable())
	}

	sb.WriteString("\n")
	sb.WriteString(m.renderSummary())
	sb.WriteString("\n")
	sb.WriteString(m.renderFooter())
	return sb.String()
}

func (m browser[R]) renderSummary() string {
	var parts []string
	if m.view.Page != nil {
		parts = append(parts, PageSummary(*m.view.Page))
	}
	if s := m.view.Selection; s != nil && s.Count > 0 {
		parts = append(parts, SelectionSummary(*s))
	}
	if m.state.Sort.Column != "" {
		parts = append(parts, fmt.Sprintf("sorted by %s %s", m.state.Sort.Column, m.state.Sort.Direction))
	}
	if m.view.Filterable && m.filter.Value != "" {
		parts = append(parts, fmt.Sprintf("%s: %s", m.filter.Label, m.filter.Value))
	}
	return styles.MutedMsg(strings.Join(parts, "  ·  "))
}

func (m browser[R]) renderFooter() string {
	switch {
	case m.mode == modeMenu:
		return m.renderMenu()
	case m.statusMsg != "" && time.Now().Before(m.statusUntil):
		if m.statusErr {
			return styles.ErrorMsg(m.statusMsg)
		}
		return styles.SuccessMsg(m.statusMsg)
	case m.mode == modeSearch:
		return styles.MutedMsg("enter confirm  esc cancel")
	}

	help := "↑↓←→ nav  / search  s sort  S flip"
	if m.opts.Selectable {
		help += "  space select  a all"
	}
	if m.load != nil && m.opts.Pagination != nil {
		help += "  n/p page  r reload"
	}
	if m.view.Filterable && m.load != nil && len(m.filter.Values) > 0 {
		help += "  f " + m.filter.Label
	}
	if len(m.opts.Actions) > 0 {
		help += "  enter actions"
	}
	help += "  e expand  H hide  y copy  J json  R raw  P table  q quit"
	return styles.MutedMsg(help)
}

func (m browser[R]) renderMenu() string {
	var sb strings.Builder
	n := len(m.targets())
	sb.WriteString(fmt.Sprintf("%d row(s): ", n))
	for i, a := range m.opts.Actions {
		label := a.Label
		if a.Icon != "" {
			label = a.Icon + " " + label
		}
		if i == m.menuCursor {
			sb.WriteString(styles.CursorStyle.Bold(true).Render(" " + label + " "))
		} else {
			sb.WriteString(" " + label + " ")
		}
		sb.WriteString(" ")
	}
	sb.WriteString(styles.MutedMsg(" ←→ choose  enter run  esc cancel"))
	return sb.String()
}

// ═══════════════════════════════════════════════════════════════════════════
// Render Table
// ═══════════════════════════════════════════════════════════════════════════

func (m browser[R]) renderTable() string {
	var sb strings.Builder

	viewportWidth := m.viewportWidth()

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(styles.Info)
	selectedHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(styles.Accent)
	separatorStyle := lipgloss.NewStyle().Foreground(styles.Muted)
	selectedSepStyle := lipgloss.NewStyle().Foreground(styles.Accent)
	selectedCellStyle := lipgloss.NewStyle().Background(styles.Accent).Foreground(lipgloss.Color("#000000"))
	highlightStyle := lipgloss.NewStyle().Foreground(styles.Warning)

	prefix := ""
	blank := ""
	if m.opts.Selectable {
		state := table.SelectNone
		if m.view.Selection != nil {
			state = m.view.Selection.State
		}
		prefix = styles.SelectAllBox(state) + " "
		blank = strings.Repeat(" ", checkboxWidth)
	}

	sb.WriteString(prefix)
	sb.WriteString(applyViewport(m.buildFullHeaderLine(headerStyle, selectedHeaderStyle), m.scrollX, viewportWidth))
	sb.WriteString("\n")
	sb.WriteString(blank)
	sb.WriteString(applyViewport(m.buildFullSeparatorLine(separatorStyle, selectedSepStyle), m.scrollX, viewportWidth))
	sb.WriteString("\n")

	visibleRows := m.visibleRowCount()
	displayCount := m.displayRowCount()
	endRow := min(m.scrollY+visibleRows, displayCount)

	for idx := m.scrollY; idx < endRow; idx++ {
		row := m.view.Rows[idx]
		if m.opts.Selectable {
			sb.WriteString(styles.Checkbox(row.Selected) + " ")
		}
		line := m.buildFullRowLine(row, idx == m.cursor, selectedCellStyle, highlightStyle)
		sb.WriteString(applyViewport(line, m.scrollX, viewportWidth))
		sb.WriteString("\n")
	}

	// Scroll indicators
	var indicators []string
	if m.scrollX > 0 {
		indicators = append(indicators, "◀")
	}
	if m.scrollX+viewportWidth < m.getTotalWidth() {
		indicators = append(indicators, "▶")
	}
	if m.scrollY > 0 {
		indicators = append(indicators, "▲")
	}
	if m.scrollY+visibleRows < displayCount {
		indicators = append(indicators, "▼")
	}
	sb.WriteString(styles.MutedMsg(strings.Join(indicators, " ")))

	return sb.String()
}

func (m browser[R]) buildFullHeaderLine(normalStyle, selectedStyle lipgloss.Style) string {
	var sb strings.Builder

	for i, h := range m.view.Headers {
		colWidth := m.getColDisplayWidth(i)

		label := h.Label
		if h.Sorted {
			label += styles.SortMark(h.Dir)
		}
		if m.colStates[i] == colStateHidden {
			label = "..."
		}
		label = PadOrTruncate(label, colWidth)

		if i == m.colCursor {
			sb.WriteString(selectedStyle.Render(label))
		} else {
			sb.WriteString(normalStyle.Render(label))
		}
		sb.WriteString("  ")
	}

	return sb.String()
}

func (m browser[R]) buildFullSeparatorLine(normalStyle, selectedStyle lipgloss.Style) string {
	var sb strings.Builder

	for i := range m.view.Headers {
		sep := strings.Repeat("─", m.getColDisplayWidth(i))
		if i == m.colCursor {
			sb.WriteString(selectedStyle.Render(sep))
		} else {
			sb.WriteString(normalStyle.Render(sep))
		}
		sb.WriteString("  ")
	}

	return sb.String()
}

func (m browser[R]) buildFullRowLine(row table.Row[R], isCursorRow bool, selectedCellStyle, highlightStyle lipgloss.Style) string {
	var sb strings.Builder

	rowStyle := lipgloss.NewStyle()
	switch {
	case isCursorRow:
		rowStyle = styles.CursorStyle
	case row.Selected:
		rowStyle = styles.SelectedStyle
	}
	needle := strings.ToLower(strings.TrimSpace(m.state.Search))

	for i, h := range m.view.Headers {
		colWidth := m.getColDisplayWidth(i)

		var val string
		if i < len(row.Cells) {
			val = row.Cells[i]
		}

		display := PadOrTruncate(val, colWidth)
		if m.colStates[i] == colStateHidden {
			display = PadOrTruncate("...", colWidth)
		}

		style := rowStyle
		if status, ok := styles.StatusStyle(val); ok && isStatusColumn(h.Key) && !isCursorRow {
			style = status.Inherit(rowStyle)
		}
		switch {
		case isCursorRow && i == m.colCursor:
			style = selectedCellStyle
		case !isCursorRow && needle != "" && strings.Contains(strings.ToLower(val), needle):
			style = highlightStyle.Inherit(rowStyle)
		}

		sb.WriteString(style.Render(display))
		sb.WriteString("  ")
	}

	return sb.String()
}

func isStatusColumn(key string) bool {
	return key == "status" || key == "call_status"
}
