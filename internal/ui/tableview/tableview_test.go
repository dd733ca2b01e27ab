package tableview

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/imgajeed76/callboard/internal/table"
	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type agent struct {
	Key    string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
	Calls  int    `json:"calls"`
}

func (a agent) ID() string { return a.Key }

var crew = []agent{
	{Key: "1", Name: "Bob", Status: "active", Calls: 3},
	{Key: "2", Name: "Ann", Status: "paused", Calls: 9},
	{Key: "3", Name: "Cid", Status: "active", Calls: 1},
}

func columns() []table.Column[agent] {
	return []table.Column[agent]{
		{Key: "name", Label: "Name", Sortable: true},
		{Key: "status", Label: "Status"},
		{Key: "calls", Label: "Calls", Sortable: true},
	}
}

func press(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func step[R table.Record](t *testing.T, m browser[R], msg tea.Msg) (browser[R], tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	b, ok := next.(browser[R])
	require.True(t, ok)
	return b, cmd
}

func ready(t *testing.T, cfg Config[agent]) browser[agent] {
	t.Helper()
	m := newBrowser(context.Background(), cfg)
	m, _ = step(t, m, tea.WindowSizeMsg{Width: 120, Height: 30})
	return m
}

func noLoad(context.Context, Request) (Loaded[agent], error) { return Loaded[agent]{}, nil }

func rowIDs[R table.Record](v table.View[R]) []string {
	out := make([]string, len(v.Rows))
	for i, r := range v.Rows {
		out[i] = r.ID
	}
	return out
}

// awaitAction runs every command in cmd concurrently and returns the
// first actionMsg produced. Status ticks are left sleeping.
func awaitAction(t *testing.T, cmd tea.Cmd) actionMsg {
	t.Helper()
	require.NotNil(t, cmd)
	found := make(chan actionMsg, 8)
	var run func(tea.Cmd)
	run = func(c tea.Cmd) {
		if c == nil {
			return
		}
		go func() {
			switch msg := c().(type) {
			case tea.BatchMsg:
				for _, sub := range msg {
					run(sub)
				}
			case actionMsg:
				found <- msg
			}
		}()
	}
	run(cmd)
	select {
	case msg := <-found:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no action result")
		return actionMsg{}
	}
}

func TestBrowserSortByColumn(t *testing.T) {
	m := ready(t, Config[agent]{Title: "Agents", Options: table.Options[agent]{Columns: columns()}, Records: crew})
	assert.Equal(t, []string{"1", "2", "3"}, rowIDs(m.view))

	m, _ = step(t, m, press("s"))
	assert.Equal(t, table.Sort{Column: "name"}, m.state.Sort)
	assert.Equal(t, []string{"2", "1", "3"}, rowIDs(m.view))

	m, _ = step(t, m, press("S"))
	assert.Equal(t, table.Descending, m.state.Sort.Direction)
	assert.Equal(t, []string{"3", "1", "2"}, rowIDs(m.view))

	m, _ = step(t, m, press("s"))
	assert.Empty(t, m.state.Sort.Column)
	assert.Equal(t, []string{"1", "2", "3"}, rowIDs(m.view))
}

func TestBrowserRejectsUnsortableColumn(t *testing.T) {
	m := ready(t, Config[agent]{Options: table.Options[agent]{Columns: columns()}, Records: crew})

	m, _ = step(t, m, press("right"))
	require.Equal(t, 1, m.colCursor)
	m, _ = step(t, m, press("s"))

	assert.Empty(t, m.state.Sort.Column)
	assert.Contains(t, m.statusMsg, "Status is not sortable")
}

func TestBrowserSelection(t *testing.T) {
	var reported [][]agent
	m := ready(t, Config[agent]{
		Options: table.Options[agent]{
			Columns:           columns(),
			Selectable:        true,
			OnSelectionChange: func(sel []agent) { reported = append(reported, sel) },
		},
		Records: crew,
	})

	m, _ = step(t, m, press(" "))
	assert.True(t, m.state.Selection.Has("1"))
	assert.Equal(t, table.SelectPartial, m.view.Selection.State)
	require.Len(t, reported, 1)
	assert.Len(t, reported[0], 1)

	m, _ = step(t, m, press("a"))
	assert.Equal(t, table.SelectAll, m.view.Selection.State)
	assert.Equal(t, 3, m.view.Selection.Count)

	m, _ = step(t, m, press("a"))
	assert.Equal(t, table.SelectNone, m.view.Selection.State)
	assert.Len(t, reported, 3)
}

func TestBrowserSearch(t *testing.T) {
	m := ready(t, Config[agent]{Options: table.Options[agent]{Columns: columns(), Searchable: true}, Records: crew})

	m, _ = step(t, m, press("/"))
	require.Equal(t, modeSearch, m.mode)
	m, _ = step(t, m, press("paused"))
	assert.Equal(t, "paused", m.state.Search)
	assert.Equal(t, []string{"2"}, rowIDs(m.view))
	assert.Contains(t, m.View(), "1/3 rows")

	m, _ = step(t, m, press("esc"))
	assert.Equal(t, modeNormal, m.mode)
	assert.Empty(t, m.state.Search)
	assert.Len(t, m.view.Rows, 3)
}

func TestBrowserSearchDisabled(t *testing.T) {
	m := ready(t, Config[agent]{Options: table.Options[agent]{Columns: columns()}, Records: crew})
	m, _ = step(t, m, press("/"))
	assert.Equal(t, modeNormal, m.mode)
}

func TestBrowserLastPageRequestWins(t *testing.T) {
	var changes []int
	pager := &table.Pagination{Page: 1, Limit: 3, Total: 9, OnPageChange: func(p int) { changes = append(changes, p) }}
	m := ready(t, Config[agent]{
		Options: table.Options[agent]{Columns: columns(), Pagination: pager},
		Records: crew,
		Load:    noLoad,
	})

	m, cmd := step(t, m, press("n"))
	require.NotNil(t, cmd)
	assert.True(t, m.loading)
	assert.True(t, m.view.Loading)

	m, _ = step(t, m, press("n"))
	assert.Equal(t, []int{2, 3}, changes)
	assert.Equal(t, 3, m.want)

	page2 := []agent{{Key: "4", Name: "Dee"}}
	m, _ = step(t, m, pageMsg[agent]{seq: 1, page: 2, records: page2, total: 9})
	assert.True(t, m.loading, "superseded response must be dropped")
	assert.Equal(t, 1, pager.Page)

	page3 := []agent{{Key: "7", Name: "Gil"}, {Key: "8", Name: "Hal"}}
	m, _ = step(t, m, pageMsg[agent]{seq: 2, page: 3, records: page3, total: 8})
	assert.False(t, m.loading)
	assert.Equal(t, 3, pager.Page)
	assert.Equal(t, 8, pager.Total)
	assert.Equal(t, []string{"7", "8"}, rowIDs(m.view))
	assert.Equal(t, 7, m.view.Page.From)
}

func TestBrowserPagingBounds(t *testing.T) {
	pager := &table.Pagination{Page: 1, Limit: 3, Total: 3}
	m := ready(t, Config[agent]{
		Options: table.Options[agent]{Columns: columns(), Pagination: pager},
		Records: crew,
		Load:    noLoad,
	})

	m, _ = step(t, m, press("n"))
	assert.False(t, m.loading)
	assert.Contains(t, m.statusMsg, "last page")

	m, _ = step(t, m, press("p"))
	assert.Contains(t, m.statusMsg, "first page")
}

func TestBrowserLoadErrorKeepsRecords(t *testing.T) {
	pager := &table.Pagination{Page: 1, Limit: 3, Total: 9}
	m := ready(t, Config[agent]{
		Options: table.Options[agent]{Columns: columns(), Pagination: pager},
		Records: crew,
		Load:    noLoad,
	})

	m, _ = step(t, m, press("n"))
	m, _ = step(t, m, pageMsg[agent]{seq: m.seq, page: 2, err: errors.New("boom")})

	assert.False(t, m.loading)
	assert.True(t, m.statusErr)
	assert.Contains(t, m.statusMsg, "boom")
	assert.Len(t, m.view.Rows, 3)
	assert.Equal(t, 1, m.want)
}

func TestBrowserPastEndEndsCollection(t *testing.T) {
	// three full rows imply a fourth, the next page turns out empty
	pager := &table.Pagination{Page: 1, Limit: 3, Total: 4}
	m := ready(t, Config[agent]{
		Options: table.Options[agent]{Columns: columns(), Pagination: pager},
		Records: crew,
		Load:    noLoad,
	})

	m, _ = step(t, m, press("n"))
	m, _ = step(t, m, pageMsg[agent]{seq: m.seq, page: 2, err: ErrPastEnd})

	assert.False(t, m.loading)
	assert.False(t, m.statusErr)
	assert.Equal(t, 3, pager.Total)
	assert.Equal(t, 1, pager.Current())
	assert.False(t, m.view.Page.CanNext)
	assert.Equal(t, 3, m.view.Page.To)
	assert.Len(t, m.view.Rows, 3)

	m, _ = step(t, m, press("n"))
	assert.Contains(t, m.statusMsg, "last page")
}

func TestBrowserFallbackPage(t *testing.T) {
	pager := &table.Pagination{Page: 1, Limit: 3, Total: 9}
	load := func(context.Context, Request) (Loaded[agent], error) {
		return Loaded[agent]{Records: []agent{{Key: "4"}}, Page: 2, Total: 4}, nil
	}
	m := ready(t, Config[agent]{
		Options: table.Options[agent]{Columns: columns(), Pagination: pager},
		Records: crew,
		Load:    load,
	})

	m, cmd := step(t, m, press("n"))
	require.NotNil(t, cmd)
	m, _ = step(t, m, loadPage(context.Background(), load, m.seq, Request{Page: m.want}))
	assert.Equal(t, 2, pager.Page)
	assert.Equal(t, 4, pager.Total)
	assert.Equal(t, []string{"4"}, rowIDs(m.view))
}

func TestBrowserFilterCycle(t *testing.T) {
	var requests []Request
	load := func(_ context.Context, req Request) (Loaded[agent], error) {
		requests = append(requests, req)
		return Loaded[agent]{Records: crew[:1], Page: req.Page, Total: 1}, nil
	}
	pager := &table.Pagination{Page: 2, Limit: 3, Total: 9}
	m := ready(t, Config[agent]{
		Options: table.Options[agent]{Columns: columns(), Filterable: true, Pagination: pager},
		Records: crew,
		Load:    load,
		Filter:  Filter{Label: "status", Values: []string{"active", "paused"}},
	})
	assert.Contains(t, m.renderFooter(), "f status")

	for _, want := range []string{"active", "paused", ""} {
		var cmd tea.Cmd
		m, cmd = step(t, m, press("f"))
		require.NotNil(t, cmd)
		assert.Equal(t, want, m.filter.Value)
		m, _ = step(t, m, loadPage(context.Background(), load, m.seq, Request{Page: m.want, Filter: m.filter.Value}))
		assert.Equal(t, 1, pager.Page, "a new filter starts on the first page")
	}
	assert.Equal(t, []Request{{1, "active"}, {1, "paused"}, {1, ""}}, requests)

	m.filter.Value = "paused"
	assert.Contains(t, m.renderSummary(), "status: paused")
}

func TestBrowserFilterHiddenWhenNotFilterable(t *testing.T) {
	called := false
	load := func(context.Context, Request) (Loaded[agent], error) {
		called = true
		return Loaded[agent]{}, nil
	}
	m := ready(t, Config[agent]{
		Options: table.Options[agent]{Columns: columns(), Pagination: &table.Pagination{Page: 1, Limit: 3, Total: 3}},
		Records: crew,
		Load:    load,
		Filter:  Filter{Label: "status", Values: []string{"active"}},
	})
	assert.NotContains(t, m.renderFooter(), "f status")

	m, _ = step(t, m, press("f"))
	assert.Empty(t, m.filter.Value)
	assert.False(t, m.loading)
	assert.False(t, called)
	assert.Contains(t, m.statusMsg, "not available")
}

func TestBrowserPrunesSelectionOnNewPage(t *testing.T) {
	pager := &table.Pagination{Page: 1, Limit: 3, Total: 6}
	var reported []agent
	m := ready(t, Config[agent]{
		Options: table.Options[agent]{
			Columns:           columns(),
			Selectable:        true,
			Pagination:        pager,
			OnSelectionChange: func(sel []agent) { reported = sel },
		},
		State:   table.State{Selection: table.NewSelection("1", "2")},
		Records: crew,
		Load:    noLoad,
	})

	m, _ = step(t, m, press("n"))
	m, _ = step(t, m, pageMsg[agent]{seq: m.seq, page: 2, records: []agent{{Key: "2", Name: "Ann"}, {Key: "5"}}, total: 6})

	assert.Equal(t, []string{"2"}, m.state.Selection.IDs())
	require.Len(t, reported, 1)
	assert.Equal(t, "2", reported[0].Key)
}

func TestBrowserSingleAction(t *testing.T) {
	var started []string
	m := ready(t, Config[agent]{
		Options: table.Options[agent]{
			Columns: columns(),
			Actions: []table.Action[agent]{{Label: "Start", Handler: func(a agent) error {
				started = append(started, a.Key)
				return nil
			}}},
		},
		Records: crew,
	})

	m, _ = step(t, m, press("j"))
	m, cmd := step(t, m, press("enter"))
	assert.Equal(t, modeNormal, m.mode)

	res := awaitAction(t, cmd)
	assert.Equal(t, actionMsg{label: "Start", done: 1}, res)
	assert.Equal(t, []string{"2"}, started)

	m, _ = step(t, m, res)
	assert.Equal(t, "Start: 1 done", m.statusMsg)
}

func TestBrowserActionMenuOnSelection(t *testing.T) {
	var paused []string
	m := ready(t, Config[agent]{
		Options: table.Options[agent]{
			Columns:    columns(),
			Selectable: true,
			Actions: []table.Action[agent]{
				{Label: "Start", Handler: func(agent) error { return nil }},
				{Label: "Pause", Handler: func(a agent) error {
					if a.Key == "3" {
						return errors.New("already paused")
					}
					paused = append(paused, a.Key)
					return nil
				}},
			},
		},
		State:   table.State{Selection: table.NewSelection("1", "3")},
		Records: crew,
	})

	m, _ = step(t, m, press("enter"))
	require.Equal(t, modeMenu, m.mode)
	assert.Contains(t, m.View(), "2 row(s)")

	m, _ = step(t, m, press("right"))
	assert.Equal(t, 1, m.menuCursor)
	m, cmd := step(t, m, press("enter"))
	assert.Equal(t, modeNormal, m.mode)

	res := awaitAction(t, cmd)
	assert.Equal(t, 1, res.done)
	assert.Equal(t, 1, res.failed)
	assert.ErrorContains(t, res.err, "already paused")
	assert.Equal(t, []string{"1"}, paused)

	m, _ = step(t, m, res)
	assert.True(t, m.statusErr)
	assert.Equal(t, 0, m.state.Selection.Len())
}

func TestBrowserMenuCancel(t *testing.T) {
	noop := func(agent) error { return nil }
	m := ready(t, Config[agent]{
		Options: table.Options[agent]{
			Columns: columns(),
			Actions: []table.Action[agent]{{Label: "A", Handler: noop}, {Label: "B", Handler: noop}},
		},
		Records: crew,
	})
	m, _ = step(t, m, press("enter"))
	require.Equal(t, modeMenu, m.mode)
	m, cmd := step(t, m, press("esc"))
	assert.Equal(t, modeNormal, m.mode)
	assert.Nil(t, cmd)
}

func TestBrowserExportKeysQuit(t *testing.T) {
	for k, want := range map[string]exitMode{"J": exitJSON, "R": exitRaw, "P": exitPlain} {
		m := ready(t, Config[agent]{Options: table.Options[agent]{Columns: columns()}, Records: crew})
		m, cmd := step(t, m, press(k))
		assert.Equal(t, want, m.exitMode, k)
		require.NotNil(t, cmd)
		assert.Equal(t, tea.QuitMsg{}, cmd())
	}
}

func TestBrowserViewStates(t *testing.T) {
	m := newBrowser(context.Background(), Config[agent]{Options: table.Options[agent]{Columns: columns()}})
	assert.Equal(t, "Loading...", m.View())

	m, _ = step(t, m, tea.WindowSizeMsg{Width: 80, Height: 20})
	assert.Contains(t, m.View(), table.DefaultEmptyMessage)

	bad := ready(t, Config[agent]{Options: table.Options[agent]{Columns: columns()}, Records: []agent{{Key: "1"}, {Key: "1"}}})
	assert.ErrorIs(t, bad.renderErr, table.ErrDuplicateID)
	assert.Contains(t, bad.View(), "duplicate record identifier")
}

func testConfig() Config[agent] {
	return Config[agent]{
		Options: table.Options[agent]{
			Columns:    columns(),
			Selectable: true,
			Pagination: &table.Pagination{Page: 1, Limit: 3, Total: 7},
		},
		State:   table.State{Sort: table.Sort{Column: "calls", Direction: table.Descending}, Selection: table.NewSelection("3")},
		Records: crew,
	}
}

func TestDisplayPlain(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, display(context.Background(), &buf, testConfig(), DisplayOptions{}, false))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "Name  Status  Calls v", lines[0])
	assert.Equal(t, "────  ──────  ───────", lines[1])
	assert.Equal(t, "Ann   paused  9", lines[2])
	assert.Equal(t, "Cid   active  1", lines[4])
	assert.Equal(t, "(page 1 of 3, 1-3 of 7, 1 of 3 selected)", lines[6])
}

func TestDisplayJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, display(context.Background(), &buf, testConfig(), DisplayOptions{JSON: true}, true))

	var got []agent
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 3)
	assert.Equal(t, "Ann", got[0].Name)
	assert.Equal(t, 9, got[0].Calls)
}

func TestDisplayRaw(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, display(context.Background(), &buf, testConfig(), DisplayOptions{Raw: true}, false))
	assert.Equal(t, "Ann\tpaused\t9\nBob\tactive\t3\nCid\tactive\t1\n", buf.String())
}

func TestDisplayFoldsMultilineCells(t *testing.T) {
	cfg := Config[agent]{
		Options: table.Options[agent]{Columns: columns()},
		Records: []agent{{Key: "9", Name: "Bob\nSmith", Status: "a\tb", Calls: 2}},
	}

	var raw bytes.Buffer
	require.NoError(t, display(context.Background(), &raw, cfg, DisplayOptions{Raw: true}, false))
	assert.Equal(t, "Bob Smith\ta b\t2\n", raw.String())

	var plain bytes.Buffer
	require.NoError(t, display(context.Background(), &plain, cfg, DisplayOptions{}, false))
	lines := strings.Split(strings.TrimSpace(plain.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Bob Smith  a b     2", lines[2])

	m := ready(t, cfg)
	assert.Equal(t, []string{"Bob Smith", "a b", "2"}, m.view.Rows[0].Cells)
	assert.NotContains(t, m.buildFullRowLine(m.view.Rows[0], false, lipgloss.NewStyle(), lipgloss.NewStyle()), "\n")
}

func TestDisplayEmptyAndErrors(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config[agent]{Options: table.Options[agent]{Columns: columns(), EmptyMessage: "No agents yet"}}
	require.NoError(t, display(context.Background(), &buf, cfg, DisplayOptions{}, true))
	assert.Equal(t, "No agents yet\n(0 rows)\n", buf.String())

	cfg = Config[agent]{
		Options: table.Options[agent]{Columns: columns()},
		State:   table.State{Sort: table.Sort{Column: "status"}},
		Records: crew,
	}
	err := display(context.Background(), &buf, cfg, DisplayOptions{}, false)
	assert.ErrorIs(t, err, table.ErrNotSortable)
}

func TestPadOrTruncate(t *testing.T) {
	assert.Equal(t, "ab  ", PadOrTruncate("ab", 4))
	assert.Equal(t, "abcd…", PadOrTruncate("abcdefgh", 5))
	assert.Equal(t, "abcde", PadOrTruncate("abcde", 5))
	assert.Equal(t, "a", Truncate("abc", 1))
}

func TestApplyViewport(t *testing.T) {
	assert.Equal(t, "ab  ", applyViewport("ab", 0, 4))
	assert.Equal(t, "cd", applyViewport("abcdef", 2, 2))
	assert.Equal(t, "\x1b[31mllo\x1b[0m w", applyViewport("\x1b[31mhello\x1b[0m world", 2, 5))
	assert.Equal(t, "", applyViewport("abc", 0, 0))
}

func TestApplyViewportWideRunes(t *testing.T) {
	// 山田 is four columns wide
	assert.Equal(t, "山田  ", applyViewport("山田", 0, 6))
	assert.Equal(t, "田x", applyViewport("山田x", 2, 3))
	assert.Equal(t, " 田", applyViewport("山田", 1, 3), "left half of 山 is cut")
	assert.Equal(t, "山 ", applyViewport("山田", 0, 3), "田 does not fit")
	for _, start := range []int{0, 1, 2, 3} {
		got := applyViewport("a山田b😀c", start, 4)
		assert.Equal(t, 4, runewidth.StringWidth(got), "start %d", start)
	}
}

func TestSummaries(t *testing.T) {
	assert.Equal(t, "page 1 of 1, no records", PageSummary(table.PageInfo{}))
	assert.Equal(t, "page 2 of 3, 4-6 of 7", PageSummary(table.Pagination{Page: 2, Limit: 3, Total: 7}.Info()))
	assert.Equal(t, "2 of 5 selected", SelectionSummary(table.SelectionSummary{Count: 2, Total: 5}))
}
