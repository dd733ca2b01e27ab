package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/imgajeed76/callboard/internal/api"
	"github.com/imgajeed76/callboard/internal/config"
	"github.com/imgajeed76/callboard/internal/model"
	"github.com/imgajeed76/callboard/internal/source"
	"github.com/imgajeed76/callboard/internal/table"
	"github.com/imgajeed76/callboard/internal/ui"
	"github.com/imgajeed76/callboard/internal/ui/tableview"
	"github.com/imgajeed76/callboard/internal/util"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ═══════════════════════════════════════════════════════════════════════════
// Shared Flags
// ═══════════════════════════════════════════════════════════════════════════

// listFlags holds the flags common to every list command.
type listFlags struct {
	search  string
	sort    string
	desc    bool
	page    int
	limit   int
	project string
	status  string
	json    bool
	raw     bool
	noPager bool

	// calls only
	contact  string
	campaign string
	callType string
}

// addListFlags adds the shared flags to a cobra.Command.
func addListFlags(cmd *cobra.Command, kind model.Kind, statuses []string) {
	cmd.Flags().StringP("search", "s", "", "Only show rows containing this text (case-insensitive)")
	cmd.Flags().String("sort", "", "Sort by column key (e.g. name, created_at)")
	cmd.Flags().Bool("desc", false, "Sort descending")
	cmd.Flags().Int("page", 1, "Page to load")
	cmd.Flags().IntP("limit", "n", 0, fmt.Sprintf("Rows per page, at most %d (default display.page_size)", api.MaxLimit))
	if kind.ProjectScoped() {
		cmd.Flags().StringP("project", "p", "", "Project ID (default project.default)")
	}
	if len(statuses) > 0 {
		cmd.Flags().String("status", "", "Only show records with this status: "+strings.Join(statuses, ", "))
	}
	cmd.Flags().Bool("json", false, "Output as JSON")
	cmd.Flags().Bool("raw", false, "Output as tab-separated values (for piping)")
	cmd.Flags().Bool("no-pager", false, "Plain table output, no interactive viewer")
}

var callTypes = []string{model.CallInbound, model.CallOutbound}

// addCallFlags adds the filters only calls support.
func addCallFlags(cmd *cobra.Command) {
	cmd.Flags().String("contact", "", "Only show calls with this contact ID")
	cmd.Flags().String("campaign", "", "Only show calls placed by this campaign ID")
	cmd.Flags().String("type", "", "Only show calls of this type: "+strings.Join(callTypes, ", "))
}

// parseListFlags reads the shared flags from a cobra.Command.
func parseListFlags(cmd *cobra.Command) listFlags {
	var f listFlags
	f.search, _ = cmd.Flags().GetString("search")
	f.sort, _ = cmd.Flags().GetString("sort")
	f.desc, _ = cmd.Flags().GetBool("desc")
	f.page, _ = cmd.Flags().GetInt("page")
	f.limit, _ = cmd.Flags().GetInt("limit")
	f.project, _ = cmd.Flags().GetString("project")
	f.status, _ = cmd.Flags().GetString("status")
	f.json, _ = cmd.Flags().GetBool("json")
	f.raw, _ = cmd.Flags().GetBool("raw")
	f.noPager, _ = cmd.Flags().GetBool("no-pager")
	f.contact, _ = cmd.Flags().GetString("contact")
	f.campaign, _ = cmd.Flags().GetString("campaign")
	f.callType, _ = cmd.Flags().GetString("type")
	return f
}

// displayOpts converts listFlags to tableview.DisplayOptions.
func (f listFlags) displayOpts() tableview.DisplayOptions {
	return tableview.DisplayOptions{
		JSON:    f.json,
		Raw:     f.raw,
		NoPager: f.noPager,
	}
}

// state is the initial table state requested on the command line.
func (f listFlags) state() table.State {
	st := table.State{Search: f.search}
	if f.sort != "" {
		st.Sort = table.Sort{Column: f.sort, Direction: table.Ascending}
		if f.desc {
			st.Sort.Direction = table.Descending
		}
	}
	return st
}

// query builds the backend query for kind from flags and config.
func (f listFlags) query(kind model.Kind, cfg *config.Config) (source.Query, error) {
	q := source.Query{Status: f.status}
	if kind == model.KindCall {
		q.ContactID, q.CampaignID, q.CallType = f.contact, f.campaign, f.callType
	}
	if kind.ProjectScoped() {
		q.ProjectID = f.project
		if q.ProjectID == "" {
			q.ProjectID = cfg.Project.Default
		}
		if q.ProjectID == "" {
			return q, util.NoProjectError(string(kind))
		}
		return q, nil
	}

	q.CreatedBy = cfg.User.ID
	if q.CreatedBy == "" && cfg.Backend.Kind == config.BackendAPI {
		return q, util.NewError("Listing projects needs your user ID").
			WithSuggestions(
				"callboard config user.id <id>",
				"CALLBOARD_USER=<id> callboard projects",
			)
	}
	return q, nil
}

// pageLimit resolves the page size: the flag, else display.page_size,
// capped at what the backend serves.
func (f listFlags) pageLimit(cfg *config.Config) int {
	limit := f.limit
	if limit <= 0 {
		limit = cfg.Display.PageSize
	}
	return min(max(limit, 1), api.MaxLimit)
}

// ═══════════════════════════════════════════════════════════════════════════
// List Commands
// ═══════════════════════════════════════════════════════════════════════════

// listDef describes one entity list command.
type listDef[R table.Record] struct {
	kind model.Kind

	// use and args default to the kind name and no arguments.
	use      string
	args     cobra.PositionalArgs
	aliases  []string
	short    string
	long     string
	columns  func() []table.Column[R]
	fetch    func(src source.Source) source.Fetcher[R]
	statuses []string

	// narrow applies the positional arguments to the query.
	narrow func(args []string, q *source.Query)
}

func newListCmd[R table.Record](def listDef[R]) *cobra.Command {
	cmd := &cobra.Command{
		Use:     string(def.kind),
		Aliases: def.aliases,
		Short:   def.short,
		Long:    def.long,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, def, args)
		},
	}
	if def.use != "" {
		cmd.Use = def.use
	}
	if def.args != nil {
		cmd.Args = def.args
	}
	addListFlags(cmd, def.kind, def.statuses)
	return cmd
}

func newProjectsCmd() *cobra.Command {
	return newListCmd(listDef[model.Project]{
		kind:    model.KindProject,
		short:   "List your projects",
		long:    "List the active projects created by user.id.",
		columns: model.ProjectColumns,
		fetch:   func(src source.Source) source.Fetcher[model.Project] { return src.Projects },
	})
}

func newAgentsCmd() *cobra.Command {
	return newListCmd(listDef[model.Agent]{
		kind:    model.KindAgent,
		short:   "List the AI agents of a project",
		columns: model.AgentColumns,
		fetch:   func(src source.Source) source.Fetcher[model.Agent] { return src.Agents },
	})
}

func newContactsCmd() *cobra.Command {
	return newListCmd(listDef[model.Contact]{
		kind:    model.KindContact,
		short:   "List the contacts of a project",
		columns: model.ContactColumns,
		fetch:   func(src source.Source) source.Fetcher[model.Contact] { return src.Contacts },
	})
}

func newCampaignsCmd() *cobra.Command {
	return newListCmd(listDef[model.Campaign]{
		kind:  model.KindCampaign,
		short: "List the campaigns of a project",
		long: `List the campaigns of a project.

In the interactive table, press enter on a campaign (or on a selection)
to start, pause, complete or delete it.`,
		columns: model.CampaignColumns,
		fetch:   func(src source.Source) source.Fetcher[model.Campaign] { return src.Campaigns },
		statuses: []string{
			model.CampaignPending, model.CampaignActive, model.CampaignPaused, model.CampaignCompleted,
		},
	})
}

var callStatuses = []string{
	model.CallInitiated, model.CallRinging, model.CallAnswered,
	model.CallCompleted, model.CallFailed, model.CallNoAnswer,
}

func newCallsCmd() *cobra.Command {
	cmd := newListCmd(listDef[model.Call]{
		kind:  model.KindCall,
		short: "List the calls of a project",
		long: `List the calls of a project, newest first.

In the interactive table, press enter on a call (or on a selection)
to start, answer, end, fail or delete it.`,
		columns:  model.CallColumns,
		fetch:    func(src source.Source) source.Fetcher[model.Call] { return src.Calls },
		statuses: callStatuses,
	})
	addCallFlags(cmd)
	return cmd
}

func newContactCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contact",
		Short: "Inspect a contact",
	}
	cmd.AddCommand(newContactHistoryCmd())
	return cmd
}

func newContactHistoryCmd() *cobra.Command {
	return newListCmd(listDef[model.Call]{
		kind: model.KindCall,
		use:  "history <contact-id>",
		args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return util.MissingArgumentError("contact-id", "callboard contact history <contact-id>")
			}
			if len(args) > 1 {
				return util.TooManyArgumentsError(1, len(args))
			}
			return nil
		},
		short:    "List the calls of one contact, newest first",
		columns:  model.CallColumns,
		fetch:    func(src source.Source) source.Fetcher[model.Call] { return src.Calls },
		statuses: callStatuses,
		narrow:   func(args []string, q *source.Query) { q.ContactID = args[0] },
	})
}

func runList[R table.Record](cmd *cobra.Command, def listDef[R], args []string) error {
	flags := parseListFlags(cmd)
	if flags.page < 1 {
		return util.NewError("--page must be 1 or more")
	}
	if flags.status != "" && !slices.Contains(def.statuses, flags.status) {
		return util.NewError(fmt.Sprintf("Unknown status %q", flags.status)).
			WithMessage("Valid values: " + strings.Join(def.statuses, ", ")).
			Wrap(util.ErrUnsupportedValue)
	}
	if flags.callType != "" && !slices.Contains(callTypes, flags.callType) {
		return util.NewError(fmt.Sprintf("Unknown call type %q", flags.callType)).
			WithMessage("Valid values: " + strings.Join(callTypes, ", ")).
			Wrap(util.ErrUnsupportedValue)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	q, err := flags.query(def.kind, cfg)
	if err != nil {
		return err
	}
	if def.narrow != nil {
		def.narrow(args, &q)
	}
	limit := flags.pageLimit(cfg)

	ctx, stop := interruptContext(cmd.Context())
	defer stop()

	src, err := openSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	load := pageLoader(def.fetch(src), q, limit, requestTimeout(cfg))

	spinner := ui.NewSpinner(fmt.Sprintf("Loading %s", def.kind))
	spinner.Start()
	loaded, err := load(ctx, tableview.Request{Page: flags.page, Filter: q.Status})
	spinner.Stop()
	if errors.Is(err, tableview.ErrPastEnd) {
		return util.NewError(fmt.Sprintf("Page %d is past the end", flags.page)).
			WithMessage(fmt.Sprintf("No %s from row %d on", def.kind, (flags.page-1)*limit+1)).
			WithSuggestions(cmd.CommandPath() + " --page 1").
			Wrap(err)
	}
	if err != nil {
		return describeFailure(cfg, err)
	}

	opts := table.Options[R]{
		Columns:      def.columns(),
		Searchable:   true,
		Filterable:   len(def.statuses) > 0,
		Selectable:   true,
		Actions:      rowActions[R](ctx, src, def.kind, requestTimeout(cfg)),
		EmptyMessage: model.EmptyMessage(def.kind),
		Pagination: &table.Pagination{
			Page:  loaded.Page,
			Limit: limit,
			Total: loaded.Total,
			OnPageChange: func(page int) {
				logger.Debug("page requested", zap.String("kind", string(def.kind)), zap.Int("page", page))
			},
		},
		OnSelectionChange: func(selected []R) {
			logger.Debug("selection changed", zap.String("kind", string(def.kind)), zap.Int("selected", len(selected)))
		},
	}

	return tableview.Display(ctx, tableview.Config[R]{
		Title:   listTitle(def.kind, q),
		Options: opts,
		State:   flags.state(),
		Records: loaded.Records,
		Load:    load,
		Filter:  tableview.Filter{Label: "status", Values: def.statuses, Value: q.Status},
	}, flags.displayOpts())
}

// pageLoader adapts a Fetcher to the table viewer. Each call gets its own
// timeout; the total falls back to what the page implies. The request's
// filter replaces q.Status. A page past the end falls back to the last page
// when the total is known and fails with tableview.ErrPastEnd when it is
// not.
func pageLoader[R table.Record](fetch source.Fetcher[R], q source.Query, limit int, timeout time.Duration) tableview.Loader[R] {
	get := func(ctx context.Context, page int, status string) (source.Page[R], source.Query, error) {
		pq := q
		pq.Status = status
		pq.Skip = (page - 1) * limit
		pq.Limit = limit

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		p, err := fetch(ctx, pq)
		return p, pq, err
	}

	return func(ctx context.Context, req tableview.Request) (tableview.Loaded[R], error) {
		page := max(req.Page, 1)
		p, pq, err := get(ctx, page, req.Filter)
		if err != nil {
			return tableview.Loaded[R]{}, err
		}

		total := p.TotalOrInferred(pq)
		if len(p.Items) == 0 && page > 1 {
			if total < 0 {
				return tableview.Loaded[R]{}, fmt.Errorf("page %d: %w", page, tableview.ErrPastEnd)
			}
			last := max((total+limit-1)/limit, 1)
			if last < page {
				page = last
				if p, pq, err = get(ctx, page, req.Filter); err != nil {
					return tableview.Loaded[R]{}, err
				}
				total = p.TotalOrInferred(pq)
			}
		}
		return tableview.Loaded[R]{Records: p.Items, Page: page, Total: total}, nil
	}
}

// rowActions offers every operation the kind supports as a row action.
func rowActions[R table.Record](ctx context.Context, src source.Source, kind model.Kind, timeout time.Duration) []table.Action[R] {
	ops := model.OpsFor(kind)
	actions := make([]table.Action[R], 0, len(ops))
	for _, op := range ops {
		actions = append(actions, table.Action[R]{
			Label: opLabel(op),
			Icon:  opIcons[op],
			Handler: func(rec R) error {
				ctx, cancel := context.WithTimeout(ctx, timeout)
				defer cancel()
				return src.Apply(ctx, kind, rec.ID(), op)
			},
		})
	}
	return actions
}

// listTitle names the collection. The status filter is shown by the
// viewer since it can change while browsing.
func listTitle(kind model.Kind, q source.Query) string {
	title := titleCaser.String(string(kind))
	if q.ProjectID != "" {
		title += " · project " + util.ShortID(q.ProjectID)
	}
	if q.ContactID != "" {
		title += " · contact " + util.ShortID(q.ContactID)
	}
	return title
}
