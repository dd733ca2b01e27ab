package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/imgajeed76/callboard/internal/api"
	"github.com/imgajeed76/callboard/internal/config"
	"github.com/imgajeed76/callboard/internal/db"
	"github.com/imgajeed76/callboard/internal/model"
	"github.com/imgajeed76/callboard/internal/source"
	"github.com/imgajeed76/callboard/internal/table"
	"github.com/imgajeed76/callboard/internal/ui/tableview"
	"github.com/imgajeed76/callboard/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// fakeSource records Apply calls and fails for ids listed in fail.
type fakeSource struct {
	mu      sync.Mutex
	applied []string
	fail    map[string]error
	calls   []model.Call

	// reportTotal makes Calls report the collection size.
	reportTotal bool
	lastQuery   source.Query
}

func (f *fakeSource) Projects(context.Context, source.Query) (source.Page[model.Project], error) {
	return source.Page[model.Project]{}, nil
}
func (f *fakeSource) Agents(context.Context, source.Query) (source.Page[model.Agent], error) {
	return source.Page[model.Agent]{}, nil
}
func (f *fakeSource) Contacts(context.Context, source.Query) (source.Page[model.Contact], error) {
	return source.Page[model.Contact]{}, nil
}
func (f *fakeSource) Campaigns(context.Context, source.Query) (source.Page[model.Campaign], error) {
	return source.Page[model.Campaign]{}, nil
}
func (f *fakeSource) Calls(_ context.Context, q source.Query) (source.Page[model.Call], error) {
	f.lastQuery = q
	total := -1
	if f.reportTotal {
		total = len(f.calls)
	}
	end := min(q.Skip+q.Limit, len(f.calls))
	if q.Skip >= end {
		return source.Page[model.Call]{Total: total}, nil
	}
	return source.Page[model.Call]{Items: f.calls[q.Skip:end], Total: total}, nil
}
func (f *fakeSource) ProjectStats(context.Context, string) (model.ProjectStats, error) {
	return model.ProjectStats{}, nil
}
func (f *fakeSource) CampaignStats(context.Context, string) (model.CampaignStats, error) {
	return model.CampaignStats{}, nil
}
func (f *fakeSource) ProjectSummary(_ context.Context, id string, days int) (model.ProjectSummary, error) {
	return model.ProjectSummary{ProjectID: id, PeriodDays: days}, nil
}
func (f *fakeSource) Apply(_ context.Context, kind model.Kind, id string, op model.Op) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, fmt.Sprintf("%s/%s/%s", kind, id, op))
	return f.fail[id]
}
func (f *fakeSource) Ping(context.Context) error { return nil }
func (f *fakeSource) Close()                     {}

func TestListFlagsState(t *testing.T) {
	assert.Equal(t, table.State{Search: "ana"}, listFlags{search: "ana"}.state())

	st := listFlags{sort: "name", desc: true}.state()
	assert.Equal(t, table.Sort{Column: "name", Direction: table.Descending}, st.Sort)

	// --desc alone does not sort
	assert.Equal(t, table.Sort{}, listFlags{desc: true}.state().Sort)
}

func TestListFlagsQuery(t *testing.T) {
	cfg := config.Default()
	cfg.Project.Default = "proj-default"

	q, err := listFlags{status: "active"}.query(model.KindCampaign, cfg)
	require.NoError(t, err)
	assert.Equal(t, source.Query{ProjectID: "proj-default", Status: "active"}, q)

	q, err = listFlags{project: "proj-flag"}.query(model.KindCall, cfg)
	require.NoError(t, err)
	assert.Equal(t, "proj-flag", q.ProjectID)

	filters := listFlags{contact: "x1", campaign: "c1", callType: model.CallInbound}
	q, err = filters.query(model.KindCall, cfg)
	require.NoError(t, err)
	assert.Equal(t, source.Query{ProjectID: "proj-default", ContactID: "x1", CampaignID: "c1", CallType: "inbound"}, q)

	q, err = filters.query(model.KindCampaign, cfg)
	require.NoError(t, err)
	assert.Equal(t, source.Query{ProjectID: "proj-default"}, q, "call filters apply to calls only")

	cfg.Project.Default = ""
	_, err = listFlags{}.query(model.KindAgent, cfg)
	var cbErr *util.Error
	require.ErrorAs(t, err, &cbErr)
	assert.ErrorIs(t, err, util.ErrNoProject)

	// projects need the owner on the api backend only
	_, err = listFlags{}.query(model.KindProject, cfg)
	assert.Error(t, err)

	cfg.User.ID = "u1"
	q, err = listFlags{}.query(model.KindProject, cfg)
	require.NoError(t, err)
	assert.Equal(t, source.Query{CreatedBy: "u1"}, q)

	cfg.User.ID = ""
	cfg.Backend.Kind = config.BackendPostgres
	_, err = listFlags{}.query(model.KindProject, cfg)
	assert.NoError(t, err)
}

func TestPageLimit(t *testing.T) {
	cfg := config.Default()
	cfg.Display.PageSize = 25

	assert.Equal(t, 25, listFlags{}.pageLimit(cfg))
	assert.Equal(t, 10, listFlags{limit: 10}.pageLimit(cfg))
	assert.Equal(t, api.MaxLimit, listFlags{limit: 5000}.pageLimit(cfg))
}

func TestPageLoader(t *testing.T) {
	src := &fakeSource{}
	for i := range 7 {
		src.calls = append(src.calls, model.Call{Key: fmt.Sprintf("c%d", i)})
	}
	load := pageLoader(src.Calls, source.Query{ProjectID: "p"}, 3, time.Second)

	res, err := load(context.Background(), tableview.Request{Page: 1})
	require.NoError(t, err)
	assert.Len(t, res.Records, 3)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, 4, res.Total, "full page implies one more")

	res, err = load(context.Background(), tableview.Request{Page: 3})
	require.NoError(t, err)
	assert.Equal(t, "c6", res.Records[0].ID())
	assert.Equal(t, 7, res.Total, "short page ends the collection")

	// page 0 is treated as page 1
	res, err = load(context.Background(), tableview.Request{Page: 0})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, "c0", res.Records[0].ID())
}

func TestPageLoaderFilterReplacesStatus(t *testing.T) {
	src := &fakeSource{}
	load := pageLoader(src.Calls, source.Query{ProjectID: "p", Status: "ringing"}, 5, time.Second)

	_, err := load(context.Background(), tableview.Request{Page: 1, Filter: "failed"})
	require.NoError(t, err)
	assert.Equal(t, source.Query{ProjectID: "p", Status: "failed", Limit: 5}, src.lastQuery)

	_, err = load(context.Background(), tableview.Request{Page: 1})
	require.NoError(t, err)
	assert.Empty(t, src.lastQuery.Status, "cycling back to all drops the filter")
}

func TestPageLoaderPastEndWithoutTotal(t *testing.T) {
	src := &fakeSource{}
	for i := range 25 {
		src.calls = append(src.calls, model.Call{Key: fmt.Sprintf("c%d", i)})
	}
	load := pageLoader(src.Calls, source.Query{ProjectID: "p"}, 10, time.Second)

	_, err := load(context.Background(), tableview.Request{Page: 9})
	assert.ErrorIs(t, err, tableview.ErrPastEnd)

	// a full last page followed by an empty one
	src.calls = src.calls[:20]
	res, err := load(context.Background(), tableview.Request{Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 21, res.Total)
	_, err = load(context.Background(), tableview.Request{Page: 3})
	assert.ErrorIs(t, err, tableview.ErrPastEnd)
}

func TestPageLoaderPastEndFallsBackToLastPage(t *testing.T) {
	src := &fakeSource{reportTotal: true}
	for i := range 25 {
		src.calls = append(src.calls, model.Call{Key: fmt.Sprintf("c%d", i)})
	}
	load := pageLoader(src.Calls, source.Query{ProjectID: "p"}, 10, time.Second)

	res, err := load(context.Background(), tableview.Request{Page: 9})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Page)
	assert.Equal(t, 25, res.Total)
	assert.Equal(t, []string{"c20", "c21", "c22", "c23", "c24"}, callIDs(res.Records))

	view, err := table.New(table.Options[model.Call]{
		Columns:    model.CallColumns(),
		Pagination: &table.Pagination{Page: res.Page, Limit: 10, Total: res.Total},
	}).Render(res.Records, table.State{})
	require.NoError(t, err)
	assert.Equal(t, 21, view.Page.From)
	assert.Equal(t, 25, view.Page.To)
	assert.Len(t, view.Rows, 5)
}

func callIDs(calls []model.Call) []string {
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.ID()
	}
	return out
}

func TestDescribeFailure(t *testing.T) {
	cfg := config.Default()
	assert.NoError(t, describeFailure(cfg, nil))

	passthrough := []error{
		util.NewError("x"),
		&api.StatusError{Code: 500},
		fmt.Errorf("apply: %w", model.ErrNotFound),
		context.Canceled,
	}
	for _, err := range passthrough {
		assert.Same(t, err, describeFailure(cfg, err))
	}

	raw := errors.New("connection refused")
	var cbErr *util.Error
	require.ErrorAs(t, describeFailure(cfg, raw), &cbErr)
	assert.ErrorIs(t, cbErr, raw)

	cfg.Backend.Kind = config.BackendPostgres
	require.ErrorAs(t, describeFailure(cfg, raw), &cbErr)
	assert.Contains(t, cbErr.Title, "atabase")
}

func TestApplyAll(t *testing.T) {
	src := &fakeSource{fail: map[string]error{"b": model.ErrInvalidTransition}}

	res := applyAll(context.Background(), src, model.KindCampaign, model.OpStart, []string{"a", "b", "c"}, time.Second)

	assert.Equal(t, 2, res.done)
	require.Len(t, res.failed, 1)
	assert.Equal(t, "b", res.failed[0].id)
	assert.Equal(t, []string{"campaigns/a/start", "campaigns/b/start", "campaigns/c/start"}, src.applied)
}

func TestApplyAllCanceled(t *testing.T) {
	src := &fakeSource{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := applyAll(ctx, src, model.KindCall, model.OpEnd, []string{"a", "b"}, time.Second)
	assert.Zero(t, res.done)
	assert.Len(t, res.failed, 2)
	assert.Empty(t, src.applied)
}

func TestRowActions(t *testing.T) {
	src := &fakeSource{}
	actions := rowActions[model.Campaign](context.Background(), src, model.KindCampaign, time.Second)

	labels := make([]string, len(actions))
	for i, a := range actions {
		labels[i] = a.Label
	}
	assert.Equal(t, []string{"Start", "Pause", "Complete", "Delete"}, labels)

	require.NoError(t, actions[1].Handler(model.Campaign{Key: "camp-1"}))
	assert.Equal(t, []string{"campaigns/camp-1/pause"}, src.applied)
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		got, err := confirm(strings.NewReader(tt.input), &out, "Delete 2 calls?")
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
		assert.Equal(t, "Delete 2 calls? [y/N] ", out.String())
	}
}

func TestListTitle(t *testing.T) {
	assert.Equal(t, "Projects", listTitle(model.KindProject, source.Query{}))
	assert.Equal(t, "Campaigns · project abcdef1",
		listTitle(model.KindCampaign, source.Query{ProjectID: "proj-abcdef1", Status: "active"}))
	assert.Equal(t, "Calls · project abcdef1 · contact 1234567",
		listTitle(model.KindCall, source.Query{ProjectID: "proj-abcdef1", ContactID: "contact-1234567"}))
}

func TestCallFilterFlags(t *testing.T) {
	calls := newCallsCmd()
	for _, name := range []string{"contact", "campaign", "type", "status"} {
		assert.NotNil(t, calls.Flags().Lookup(name), name)
	}
	assert.Nil(t, newCampaignsCmd().Flags().Lookup("contact"))

	require.NoError(t, calls.ParseFlags([]string{"--contact", "x1", "--campaign", "c1", "--type", "outbound"}))
	f := parseListFlags(calls)
	assert.Equal(t, "x1", f.contact)
	assert.Equal(t, "c1", f.campaign)
	assert.Equal(t, "outbound", f.callType)
}

func TestListRejectsUnknownValues(t *testing.T) {
	run := func(cmd *cobra.Command, args ...string) error {
		cmd.SetArgs(args)
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		return cmd.Execute()
	}

	err := run(newCallsCmd(), "--type", "sideways")
	assert.ErrorIs(t, err, util.ErrUnsupportedValue)
	assert.Contains(t, err.Error(), "sideways")

	err = run(newCallsCmd(), "--status", "paused")
	assert.ErrorIs(t, err, util.ErrUnsupportedValue)

	err = run(newProjectSummaryCmd(), "--days", "0")
	assert.ErrorIs(t, err, util.ErrUnsupportedValue)
	err = run(newProjectSummaryCmd(), "--days", "366")
	assert.ErrorIs(t, err, util.ErrUnsupportedValue)
}

func TestContactHistoryArgs(t *testing.T) {
	cmd := newContactHistoryCmd()
	assert.Equal(t, "history", cmd.Name())
	assert.Error(t, cmd.Args(cmd, nil))
	assert.Error(t, cmd.Args(cmd, []string{"a", "b"}))
	assert.NoError(t, cmd.Args(cmd, []string{"a"}))
	assert.NotNil(t, cmd.Flags().Lookup("status"))
	assert.Nil(t, cmd.Flags().Lookup("contact"), "the contact comes from the argument")
}

func TestPrintProjectSummary(t *testing.T) {
	var out bytes.Buffer
	printProjectSummary(&out, model.ProjectSummary{
		ProjectID:  "p1",
		PeriodDays: 7,
		Calls:      model.NewCallMetrics(1200, 960, 120, 1080),
		Durations:  model.NewDurationMetrics(7200, 960),
		Quality:    model.QualityMetrics{AverageSentiment: 0.42},
	})

	got := out.String()
	assert.Contains(t, got, "last 7 days")
	assert.Contains(t, got, "1,200")
	assert.Contains(t, got, "90.0%")
	assert.Contains(t, got, "80.0%")
	assert.Contains(t, got, model.FormatDuration(7200))
	assert.Contains(t, got, "0.42")
}

func TestFormatRate(t *testing.T) {
	assert.Equal(t, "66.7%", formatRate(200.0/3))
	assert.Equal(t, "0.0%", formatRate(0))
}

func TestActionLogColumns(t *testing.T) {
	from, to := "pending", "active"
	entries := []db.ActionEntry{
		{Key: "01J0", Kind: "campaigns", RecordID: "c0ffee00-0000-0000-0000-000000000000", Op: "start",
			FromState: &from, ToState: &to, Actor: "ana", CreatedAt: time.Now()},
		{Key: "01J1", Kind: "contacts", RecordID: "x", Op: "delete", Actor: "ben", CreatedAt: time.Now()},
	}

	view, err := table.New(table.Options[db.ActionEntry]{Columns: actionLogColumns()}).
		Render(entries, table.State{Sort: table.Sort{Column: "actor", Direction: table.Descending}})
	require.NoError(t, err)
	require.Len(t, view.Rows, 2)

	assert.Equal(t, "01J1", view.Rows[0].ID)
	assert.Equal(t, []string{"contacts", "x", "delete", table.EmptyCell, "ben"}, view.Rows[0].Cells[1:])
	assert.Equal(t, "c0ffee00", view.Rows[1].Cells[2])
	assert.Equal(t, "pending → active", view.Rows[1].Cells[4])
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"projects"}, {"calls"},
		{"campaign", "start"}, {"campaign", "stats"},
		{"call", "start"}, {"call", "answer"}, {"call", "fail"},
		{"project", "stats"}, {"project", "summary"}, {"contact", "history"},
		{"delete"}, {"config"}, {"doctor"},
		{"db", "init"}, {"db", "seed"}, {"db", "log"}, {"db", "local", "start"},
	} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}

	// delete has its own confirmation, not a status subcommand
	campaign, _, err := rootCmd.Find([]string{"campaign"})
	require.NoError(t, err)
	for _, sub := range campaign.Commands() {
		assert.NotEqual(t, "delete", sub.Name())
	}
}

func TestConfigCommand(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("config path follows XDG_CONFIG_HOME on linux only")
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("CALLBOARD_NO_COLOR", "1")

	run := func(args ...string) (string, error) {
		cmd := newConfigCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs(args)
		err := cmd.Execute()
		return out.String(), err
	}

	out, err := run("display.page_size")
	require.NoError(t, err)
	assert.Equal(t, "25\n", out)

	_, err = run("display.page_size", "40")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "callboard", "config.toml"))
	require.NoError(t, err)

	out, err = run("display.page_size")
	require.NoError(t, err)
	assert.Equal(t, "40\n", out)

	out, err = run("--list")
	require.NoError(t, err)
	assert.Contains(t, out, "display.page_size=40\n")
	assert.Contains(t, out, "backend.kind=api\n")

	_, err = run("display.page_size", "1000")
	assert.Error(t, err)

	_, err = run("no.such.key")
	assert.ErrorIs(t, err, util.ErrUnsupportedValue)
}
