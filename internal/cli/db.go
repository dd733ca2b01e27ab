package cli

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/imgajeed76/callboard/internal/db"
	"github.com/imgajeed76/callboard/internal/table"
	"github.com/imgajeed76/callboard/internal/ui"
	"github.com/imgajeed76/callboard/internal/ui/styles"
	"github.com/imgajeed76/callboard/internal/ui/tableview"
	"github.com/imgajeed76/callboard/internal/util"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the PostgreSQL backend",
		Long: `Manage the callboard schema when backend.kind is postgres.

  callboard db local start --use    Run a local PostgreSQL in a container
  callboard db init                 Create tables and indexes
  callboard db seed --owner <id>    Insert a demo project
  callboard db log                  Show recent row actions`,
	}
	cmd.AddCommand(newLocalCmd(), newDBInitCmd(), newDBSeedCmd(), newDBLogCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the callboard schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := interruptContext(cmd.Context())
			defer stop()

			d, err := connectDB(ctx, cfg)
			if err != nil {
				return err
			}
			defer d.Close()

			before, err := d.InstalledSchemaVersion(ctx)
			if err != nil {
				// Fresh database: no metadata table yet.
				before = 0
			}
			if err := d.InitSchema(ctx); err != nil {
				return util.NewError("Failed to create schema").
					WithContext(util.RedactURL(cfg.Backend.URL)).
					Wrap(err)
			}

			out := cmd.OutOrStdout()
			if before == db.SchemaVersion {
				fmt.Fprintln(out, styles.MutedMsg(fmt.Sprintf("Schema already at version %d", db.SchemaVersion)))
				return nil
			}
			fmt.Fprintln(out, styles.SuccessMsg(fmt.Sprintf("Created callboard schema (version %d)", db.SchemaVersion)))
			return nil
		},
	}
}

func newDBSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert a demo project",
		Long: `Insert one demo project with two AI agents and random contacts,
campaigns and calls. The project is owned by --owner (default user.id).`,
		Args: cobra.NoArgs,
		RunE: runDBSeed,
	}
	cmd.Flags().String("owner", "", "created_by of the demo project (default user.id)")
	cmd.Flags().Int("contacts", 50, "Number of contacts")
	cmd.Flags().Int("campaigns", 4, "Number of campaigns")
	cmd.Flags().Int("calls", 500, "Number of calls")
	cmd.Flags().Uint64("seed", 1, "Random seed")
	return cmd
}

func runDBSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	opts := db.SeedOptions{}
	opts.Owner, _ = cmd.Flags().GetString("owner")
	opts.Contacts, _ = cmd.Flags().GetInt("contacts")
	opts.Campaigns, _ = cmd.Flags().GetInt("campaigns")
	opts.Calls, _ = cmd.Flags().GetInt("calls")
	opts.Seed, _ = cmd.Flags().GetUint64("seed")
	if opts.Owner == "" {
		opts.Owner = cfg.User.ID
	}
	if opts.Owner == "" {
		return util.MissingArgumentError("--owner", "callboard db seed --owner <user-id>")
	}
	if opts.Contacts < 1 || opts.Campaigns < 1 || opts.Calls < 0 {
		return util.NewError("Seed sizes must be positive").
			WithMessage("--contacts and --campaigns need at least 1")
	}

	ctx, stop := interruptContext(cmd.Context())
	defer stop()

	d, err := connectDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := requireSchema(ctx, d); err != nil {
		return err
	}

	spinner := ui.NewSpinner("Seeding demo data")
	spinner.Start()
	res, err := d.Seed(ctx, opts)
	spinner.Stop()
	if err != nil {
		return util.NewError("Seeding failed").
			WithContext(util.RedactURL(cfg.Backend.URL)).
			Wrap(err)
	}
	logger.Debug("seeded", zap.String("project", res.ProjectID), zap.Int("calls", res.Calls))

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, styles.SuccessMsg("Seeded project "+styles.ID(res.ProjectID)))
	statLine(out, "Agents", humanize.Comma(int64(res.Agents)))
	statLine(out, "Contacts", humanize.Comma(int64(res.Contacts)))
	statLine(out, "Campaigns", humanize.Comma(int64(res.Campaigns)))
	statLine(out, "Calls", humanize.Comma(int64(res.Calls)))
	fmt.Fprintln(out)
	fmt.Fprintln(out, styles.Mutef("  callboard config project.default %s", res.ProjectID))
	return nil
}

func newDBLogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show recent row actions",
		Long: `Show the newest entries of the action log: every status change and
deletion made through callboard on the postgres backend.`,
		Args: cobra.NoArgs,
		RunE: runDBLog,
	}
	cmd.Flags().IntP("limit", "n", 50, fmt.Sprintf("Entries to show, at most %d", db.MaxLimit))
	cmd.Flags().Bool("json", false, "Output as JSON")
	cmd.Flags().Bool("raw", false, "Output as tab-separated values (for piping)")
	cmd.Flags().Bool("no-pager", false, "Plain table output, no interactive viewer")
	return cmd
}

func runDBLog(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	var display tableview.DisplayOptions
	display.JSON, _ = cmd.Flags().GetBool("json")
	display.Raw, _ = cmd.Flags().GetBool("raw")
	display.NoPager, _ = cmd.Flags().GetBool("no-pager")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := interruptContext(cmd.Context())
	defer stop()

	d, err := connectDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := requireSchema(ctx, d); err != nil {
		return err
	}

	qctx, cancel := context.WithTimeout(ctx, requestTimeout(cfg))
	entries, err := d.RecentActions(qctx, limit)
	cancel()
	if err != nil {
		return describeFailure(cfg, err)
	}

	return tableview.Display(ctx, tableview.Config[db.ActionEntry]{
		Title: "Action log",
		Options: table.Options[db.ActionEntry]{
			Columns:      actionLogColumns(),
			Searchable:   true,
			EmptyMessage: "No actions recorded yet",
		},
		Records: entries,
	}, display)
}

func actionLogColumns() []table.Column[db.ActionEntry] {
	return []table.Column[db.ActionEntry]{
		{Key: "created_at", Label: "When", Sortable: true, Render: func(_ any, e db.ActionEntry) string {
			return util.RelativeTimeShort(e.CreatedAt)
		}},
		{Key: "kind", Label: "Kind", Sortable: true},
		{Key: "record_id", Label: "Record", Render: func(_ any, e db.ActionEntry) string {
			return util.ShortID(e.RecordID)
		}},
		{Key: "op", Label: "Action", Sortable: true},
		{Key: "change", Label: "Change", Render: func(_ any, e db.ActionEntry) string {
			if e.FromState == nil || e.ToState == nil {
				return ""
			}
			return *e.FromState + " " + styles.SymbolArrow + " " + *e.ToState
		}},
		{Key: "actor", Label: "Actor", Sortable: true},
	}
}
