package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/imgajeed76/callboard/internal/api"
	"github.com/imgajeed76/callboard/internal/config"
	"github.com/imgajeed76/callboard/internal/container"
	"github.com/imgajeed76/callboard/internal/db"
	"github.com/imgajeed76/callboard/internal/model"
	"github.com/imgajeed76/callboard/internal/ui/styles"
	"github.com/imgajeed76/callboard/internal/util"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and backend connectivity",
		Long: `Run diagnostics to check if callboard is properly configured.

This command checks:
  - Config file
  - Backend reachability
  - Database schema (postgres backend)
  - Container runtime for 'db local'
  - User and default project`,
		Args: cobra.NoArgs,
		RunE: runDoctor,
	}
}

func runDoctor(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, styles.Boldf("callboard doctor"))
	fmt.Fprintln(out)

	allOK := true

	fmt.Fprint(out, "Checking config file... ")
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(out, styles.Red("INVALID"))
		return err
	}
	if _, err := os.Stat(config.Path()); err != nil {
		fmt.Fprintln(out, styles.Mute("DEFAULTS")+fmt.Sprintf(" (%s not found)", config.Path()))
	} else {
		fmt.Fprintln(out, styles.Green("OK")+fmt.Sprintf(" (%s)", config.Path()))
	}

	ctx, stop := interruptContext(cmd.Context())
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, requestTimeout(cfg))
	defer cancel()

	fmt.Fprintf(out, "Checking backend (%s)... ", cfg.Backend.Kind)
	switch cfg.Backend.Kind {
	case config.BackendAPI:
		allOK = checkAPI(ctx, out, cfg) && allOK
	case config.BackendPostgres:
		allOK = checkPostgres(ctx, out, cfg) && allOK
	default:
		fmt.Fprintln(out, styles.Red("UNKNOWN"))
		fmt.Fprintln(out, "  Run 'callboard config backend.kind api' or 'postgres'")
		allOK = false
	}

	fmt.Fprint(out, "Checking container runtime... ")
	if rt := container.Detect(ctx); rt == container.RuntimeNone {
		fmt.Fprintln(out, styles.Mute("NOT FOUND"))
		fmt.Fprintln(out, "  Only needed for 'callboard db local'")
	} else {
		pg := container.New(rt)
		version, _ := pg.Version(ctx)
		fmt.Fprintln(out, styles.Green("OK")+fmt.Sprintf(" (%s %s)", rt, version))
		if pg.Running(ctx) {
			fmt.Fprintln(out, "  Local database container is running")
		}
	}

	fmt.Fprint(out, "Checking user identity... ")
	if cfg.User.ID == "" {
		fmt.Fprintln(out, styles.Yellow("NOT SET"))
		fmt.Fprintln(out, "  'callboard projects' needs user.id on the api backend")
	} else {
		fmt.Fprintln(out, styles.Green("OK")+fmt.Sprintf(" (%s)", cfg.User.ID))
	}

	fmt.Fprint(out, "Checking default project... ")
	if cfg.Project.Default == "" {
		fmt.Fprintln(out, styles.Mute("NONE"))
		fmt.Fprintln(out, "  Pass --project to list agents, contacts, campaigns and calls")
	} else {
		fmt.Fprintln(out, styles.Green("SET")+fmt.Sprintf(" (%s)", cfg.Project.Default))
	}

	fmt.Fprintln(out)
	if allOK {
		fmt.Fprintln(out, styles.SuccessMsg("All checks passed!"))
	} else {
		fmt.Fprintln(out, styles.WarningMsg("Some issues were found. See above for details."))
	}
	return nil
}

func checkAPI(ctx context.Context, out io.Writer, cfg *config.Config) bool {
	c, err := api.New(cfg.Backend.URL, requestTimeout(cfg), logger)
	if err != nil {
		fmt.Fprintln(out, styles.Red("INVALID URL"))
		fmt.Fprintf(out, "  %v\n", err)
		return false
	}
	defer c.Close()

	if err := c.Ping(ctx); err != nil {
		fmt.Fprintln(out, styles.Red("UNREACHABLE"))
		fmt.Fprintf(out, "  %v\n", err)
		return false
	}
	fmt.Fprintln(out, styles.Green("OK")+fmt.Sprintf(" (%s)", cfg.Backend.URL))

	if cfg.Project.Default != "" {
		fmt.Fprint(out, "Checking project stats... ")
		if _, err := c.ProjectStats(ctx, cfg.Project.Default); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				fmt.Fprintln(out, styles.Yellow("NOT FOUND"))
			} else {
				fmt.Fprintln(out, styles.Red("FAILED"))
			}
			fmt.Fprintf(out, "  %v\n", err)
			return false
		}
		fmt.Fprintln(out, styles.Green("OK"))
	}
	return true
}

func checkPostgres(ctx context.Context, out io.Writer, cfg *config.Config) bool {
	d, err := db.ConnectLite(ctx, cfg.Backend.URL, db.WithLogger(logger))
	if err != nil {
		fmt.Fprintln(out, styles.Red("FAILED"))
		fmt.Fprintf(out, "  %v\n", err)
		return false
	}
	defer d.Close()
	fmt.Fprintln(out, styles.Green("OK")+fmt.Sprintf(" (%s)", util.RedactURL(cfg.Backend.URL)))

	fmt.Fprint(out, "Checking schema... ")
	ok, err := d.SchemaExists(ctx)
	switch {
	case err != nil:
		fmt.Fprintln(out, styles.Red("FAILED"))
		fmt.Fprintf(out, "  %v\n", err)
		return false
	case !ok:
		fmt.Fprintln(out, styles.Yellow("MISSING"))
		fmt.Fprintln(out, "  Run 'callboard db init' to create it")
		return false
	}

	version, err := d.InstalledSchemaVersion(ctx)
	if err != nil || version != db.SchemaVersion {
		fmt.Fprintln(out, styles.Yellow("OUTDATED")+fmt.Sprintf(" (version %d, want %d)", version, db.SchemaVersion))
		fmt.Fprintln(out, "  Run 'callboard db init' to upgrade it")
		return false
	}
	fmt.Fprintln(out, styles.Green("OK")+fmt.Sprintf(" (version %d)", version))
	return true
}
