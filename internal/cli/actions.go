package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/imgajeed76/callboard/internal/model"
	"github.com/imgajeed76/callboard/internal/source"
	"github.com/imgajeed76/callboard/internal/ui"
	"github.com/imgajeed76/callboard/internal/ui/styles"
	"github.com/imgajeed76/callboard/internal/util"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// ═══════════════════════════════════════════════════════════════════════════
// Command Groups
// ═══════════════════════════════════════════════════════════════════════════

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Inspect a project",
	}
	cmd.AddCommand(newProjectStatsCmd(), newProjectSummaryCmd())
	return cmd
}

func newCampaignCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "campaign",
		Short: "Start, pause, complete or inspect campaigns",
		Long: `Change the status of one or more campaigns.

  pending -> active     callboard campaign start <id>
  active  -> paused     callboard campaign pause <id>
  paused  -> active     callboard campaign start <id>
  any     -> completed  callboard campaign complete <id>`,
	}
	addOpCmds(cmd, model.KindCampaign)
	cmd.AddCommand(newCampaignStatsCmd())
	return cmd
}

func newCallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call",
		Short: "Move calls through their lifecycle",
		Long: `Change the status of one or more calls.

  initiated -> ringing    callboard call start <id>
  any       -> answered   callboard call answer <id>
  any       -> completed  callboard call end <id>
  any       -> failed     callboard call fail <id>

Completed and failed calls are final.`,
	}
	addOpCmds(cmd, model.KindCall)
	return cmd
}

// addOpCmds adds one subcommand per status operation of kind. Deletion
// goes through the delete command.
func addOpCmds(parent *cobra.Command, kind model.Kind) {
	for _, op := range model.OpsFor(kind) {
		if op == model.OpDelete {
			continue
		}
		parent.AddCommand(&cobra.Command{
			Use:   string(op) + " <id>...",
			Short: fmt.Sprintf("%s %s", opLabel(op), kind),
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runOp(cmd, kind, op, args)
			},
		})
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// delete
// ═══════════════════════════════════════════════════════════════════════════

func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <kind> <id>...",
		Short: "Delete records",
		Long: `Delete one or more records of a kind.

Projects and agents are deactivated and disappear from listings; contacts,
campaigns and calls are removed.

Kinds: projects, agents, contacts, campaigns, calls (singular works too).`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 2 {
				return util.MissingArgumentError("id", "callboard delete campaign <id>")
			}
			return nil
		},
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			kinds := make([]string, len(model.Kinds))
			for i, k := range model.Kinds {
				kinds[i] = k.Singular()
			}
			return kinds, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := model.ParseKind(args[0])
			if err != nil {
				return util.NewError(fmt.Sprintf("Unknown kind '%s'", args[0])).
					WithSuggestions("callboard delete campaign <id>").
					Wrap(err)
			}
			force, _ := cmd.Flags().GetBool("force")
			if !force {
				ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(),
					fmt.Sprintf("Delete %d %s?", len(args)-1, kind))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}
			return runOp(cmd, kind, model.OpDelete, args[1:])
		},
	}
	cmd.Flags().BoolP("force", "f", false, "Do not ask for confirmation")
	return cmd
}

// confirm asks a yes/no question on a terminal. Without a terminal the
// caller has to pass --force.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	if f, ok := in.(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
		return false, util.NewError("Refusing to delete without confirmation").
			WithMessage("stdin is not a terminal").
			WithSuggestions("callboard delete --force <kind> <id>...").
			Wrap(util.ErrNotInteractive)
	}
	fmt.Fprintf(out, "%s [y/N] ", question)
	response, _ := bufio.NewReader(in).ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes", nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Running Operations
// ═══════════════════════════════════════════════════════════════════════════

// runOp applies op to every id and reports each failure. It fails when
// any id failed.
func runOp(cmd *cobra.Command, kind model.Kind, op model.Op, ids []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := interruptContext(cmd.Context())
	defer stop()

	src, err := openSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	out := cmd.OutOrStdout()
	res := applyAll(ctx, src, kind, op, ids, requestTimeout(cfg))
	for _, f := range res.failed {
		fmt.Fprintf(out, "%s %s: %s\n", styles.Red(styles.SymbolError), styles.ID(f.id), describeOpError(f.err))
	}
	if res.done > 0 {
		fmt.Fprintln(out, styles.SuccessMsg(fmt.Sprintf("%s %s %s", humanize.Comma(int64(res.done)), plural(res.done, kind), opPast[op])))
	}
	if len(res.failed) > 0 {
		errs := make([]error, len(res.failed))
		for i, f := range res.failed {
			errs[i] = f.err
		}
		return describeFailure(cfg, fmt.Errorf("%d of %d failed: %w", len(res.failed), len(ids), errors.Join(errs...)))
	}
	return nil
}

type opFailure struct {
	id  string
	err error
}

type opResult struct {
	done   int
	failed []opFailure
}

// applyAll runs op on each id in order, with a progress bar for batches.
func applyAll(ctx context.Context, src source.Source, kind model.Kind, op model.Op, ids []string, timeout time.Duration) opResult {
	var res opResult
	var progress *ui.Progress
	if len(ids) > 1 {
		progress = ui.NewProgress(opLabel(op), len(ids))
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			res.failed = append(res.failed, opFailure{id, ctx.Err()})
			continue
		}
		actx, cancel := context.WithTimeout(ctx, timeout)
		err := src.Apply(actx, kind, id, op)
		cancel()
		if err != nil {
			res.failed = append(res.failed, opFailure{id, err})
		} else {
			res.done++
		}
		if progress != nil {
			progress.Increment()
		}
	}
	return res
}

func describeOpError(err error) string {
	if errors.Is(err, model.ErrNotFound) {
		return "not found"
	}
	return err.Error()
}

func plural(n int, kind model.Kind) string {
	if n == 1 {
		return kind.Singular()
	}
	return string(kind)
}

// ═══════════════════════════════════════════════════════════════════════════
// Stats
// ═══════════════════════════════════════════════════════════════════════════

func newProjectStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats [project-id]",
		Short: "Show record counts and call success rate of a project",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 1 {
				return util.TooManyArgumentsError(1, len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, args, true)
		},
	}
	cmd.Flags().Bool("json", false, "Output as JSON")
	return cmd
}

func newCampaignStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats <campaign-id>",
		Short: "Show call outcomes of a campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, args, false)
		},
	}
	cmd.Flags().Bool("json", false, "Output as JSON")
	return cmd
}

func runStats(cmd *cobra.Command, args []string, project bool) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var id string
	if len(args) > 0 {
		id = args[0]
	} else {
		id = cfg.Project.Default
	}
	if id == "" {
		return util.NoProjectError("stats")
	}

	ctx, stop := interruptContext(cmd.Context())
	defer stop()

	src, err := openSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	ctx, cancel := context.WithTimeout(ctx, requestTimeout(cfg))
	defer cancel()

	var stats any
	if project {
		stats, err = src.ProjectStats(ctx, id)
	} else {
		stats, err = src.CampaignStats(ctx, id)
	}
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			kind := model.KindCampaign
			if project {
				kind = model.KindProject
			}
			return util.NotFoundError(kind.Singular(), id, err)
		}
		return describeFailure(cfg, err)
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	switch s := stats.(type) {
	case model.ProjectStats:
		printProjectStats(out, s)
	case model.CampaignStats:
		printCampaignStats(out, s)
	}
	return nil
}

func printProjectStats(out io.Writer, s model.ProjectStats) {
	fmt.Fprintln(out, styles.SectionHeader("Project "+styles.ID(s.ProjectID)))
	fmt.Fprintln(out)
	statLine(out, "Agents", humanize.Comma(int64(s.TotalAgents)))
	statLine(out, "Contacts", humanize.Comma(int64(s.TotalContacts)))
	statLine(out, "Campaigns", humanize.Comma(int64(s.TotalCampaigns)))
	statLine(out, "Calls", humanize.Comma(int64(s.TotalCalls)))
	statLine(out, "Completed calls", humanize.Comma(int64(s.SuccessfulCalls)))
	statLine(out, "Success rate", formatRate(s.SuccessRate))
}

func printCampaignStats(out io.Writer, s model.CampaignStats) {
	fmt.Fprintln(out, styles.SectionHeader("Campaign "+styles.ID(s.CampaignID)))
	fmt.Fprintln(out)
	statLine(out, "Status", styles.Status(s.Status))
	statLine(out, "Calls", humanize.Comma(int64(s.TotalCalls)))
	statLine(out, "Completed", humanize.Comma(int64(s.CompletedCalls)))
	statLine(out, "Failed", humanize.Comma(int64(s.FailedCalls)))
	statLine(out, "Success rate", formatRate(s.SuccessRate))
}

func newProjectSummaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary [project-id]",
		Short: "Summarize the calls of a project over recent days",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 1 {
				return util.TooManyArgumentsError(1, len(args))
			}
			return nil
		},
		RunE: runSummary,
	}
	cmd.Flags().Int("days", model.DefaultSummaryDays, fmt.Sprintf("Days to look back, 1 to %d", model.MaxSummaryDays))
	cmd.Flags().Bool("json", false, "Output as JSON")
	return cmd
}

func runSummary(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	days, _ := cmd.Flags().GetInt("days")
	if days < 1 || days > model.MaxSummaryDays {
		return util.NewError(fmt.Sprintf("--days must be between 1 and %d", model.MaxSummaryDays)).
			Wrap(util.ErrUnsupportedValue)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	id := cfg.Project.Default
	if len(args) > 0 {
		id = args[0]
	}
	if id == "" {
		return util.NoProjectError("summary")
	}

	ctx, stop := interruptContext(cmd.Context())
	defer stop()

	src, err := openSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	ctx, cancel := context.WithTimeout(ctx, requestTimeout(cfg))
	defer cancel()

	sum, err := src.ProjectSummary(ctx, id, days)
	if errors.Is(err, model.ErrNotFound) {
		return util.NotFoundError(model.KindProject.Singular(), id, err)
	}
	if err != nil {
		return describeFailure(cfg, err)
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	}
	printProjectSummary(out, sum)
	return nil
}

func printProjectSummary(out io.Writer, s model.ProjectSummary) {
	fmt.Fprintln(out, styles.SectionHeader(fmt.Sprintf("Project %s · last %d days", styles.ID(s.ProjectID), s.PeriodDays)))
	fmt.Fprintln(out)
	statLine(out, "Calls", humanize.Comma(int64(s.Calls.TotalCalls)))
	statLine(out, "Answered", humanize.Comma(int64(s.Calls.AnsweredCalls)))
	statLine(out, "Completed", humanize.Comma(int64(s.Calls.CompletedCalls)))
	statLine(out, "Failed", humanize.Comma(int64(s.Calls.FailedCalls)))
	statLine(out, "Answer rate", formatRate(s.Calls.AnswerRate*100))
	statLine(out, "Completion rate", formatRate(s.Calls.CompletionRate*100))
	statLine(out, "Talk time", model.FormatDuration(s.Durations.TotalSeconds))
	statLine(out, "Average call", model.FormatDuration(s.Durations.AverageSeconds))
	statLine(out, "Sentiment", humanize.FormatFloat("#.##", s.Quality.AverageSentiment))
}

func statLine(out io.Writer, label, value string) {
	fmt.Fprintf(out, "  %-16s %s\n", styles.Mute(label), value)
}

func formatRate(pct float64) string {
	return humanize.FormatFloat("#.#", pct) + "%"
}
