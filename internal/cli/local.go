package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/imgajeed76/callboard/internal/config"
	"github.com/imgajeed76/callboard/internal/container"
	"github.com/imgajeed76/callboard/internal/db"
	"github.com/imgajeed76/callboard/internal/ui/styles"
	"github.com/imgajeed76/callboard/internal/util"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newLocalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "local",
		Short: "Run a local PostgreSQL in Docker or Podman",
		Long: `Manage a local PostgreSQL container for the postgres backend.

  callboard db local start --use    Start it, create the schema and point
                                    backend.url at it
  callboard db seed                 Fill it with demo data

The data lives in the ` + container.VolumeName + ` volume and survives
'destroy' unless --purge is given.`,
	}

	cmd.AddCommand(
		newLocalStatusCmd(),
		newLocalStartCmd(),
		newLocalStopCmd(),
		newLocalLogsCmd(),
		newLocalDestroyCmd(),
	)

	return cmd
}

// detectRuntime returns the local container, or an error when neither
// Docker nor Podman is installed.
func detectRuntime(ctx context.Context) (*container.Postgres, error) {
	rt := container.Detect(ctx)
	if rt == container.RuntimeNone {
		return nil, util.NewError("No container runtime found").
			WithMessage("callboard db local needs Docker or Podman").
			WithSuggestions(
				"Install Docker: https://docs.docker.com/get-docker/",
				"Or point backend.url at an existing PostgreSQL",
			).
			Wrap(container.ErrNoRuntime)
	}
	logger.Debug("container runtime", zap.String("runtime", string(rt)))
	return container.New(rt), nil
}

func newLocalStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show container status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pg, err := detectRuntime(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			version, _ := pg.Version(ctx)
			fmt.Fprintf(out, "Container runtime: %s %s\n", styles.Cyan(string(pg.Runtime)), styles.Mute(version))
			fmt.Fprintf(out, "Container name: %s\n", pg.Name)

			switch {
			case !pg.Exists(ctx):
				fmt.Fprintf(out, "Status: %s\n", styles.Mute("not created"))
			case pg.Running(ctx):
				port, _ := pg.Port(ctx)
				fmt.Fprintf(out, "Status: %s\n", styles.Green("running"))
				fmt.Fprintf(out, "URL: %s\n", util.RedactURL(container.URL(port)))
			default:
				fmt.Fprintf(out, "Status: %s\n", styles.Yellow("stopped"))
			}

			fmt.Fprintf(out, "Data volume: %s ", pg.Volume)
			if pg.VolumeExists(ctx) {
				fmt.Fprintln(out, styles.Green("(exists)"))
			} else {
				fmt.Fprintln(out, styles.Mute("(not created)"))
			}
			return nil
		},
	}
}

func newLocalStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the container and create the schema",
		Args:  cobra.NoArgs,
		RunE:  runLocalStart,
	}
	cmd.Flags().IntP("port", "p", container.DefaultPort, "Host port for PostgreSQL")
	cmd.Flags().Bool("use", false, "Set backend.kind and backend.url to this database")
	return cmd
}

func runLocalStart(cmd *cobra.Command, args []string) error {
	ctx, stop := interruptContext(cmd.Context())
	defer stop()

	pg, err := detectRuntime(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	port, _ := cmd.Flags().GetInt("port")
	use, _ := cmd.Flags().GetBool("use")

	if pg.Running(ctx) {
		if port, err = pg.Port(ctx); err != nil {
			return err
		}
		fmt.Fprintf(out, "Container already running on port %d\n", port)
	} else {
		if !pg.Exists(ctx) && !container.PortAvailable(port) {
			return util.NewError(fmt.Sprintf("Port %d is in use", port)).
				WithSuggestions(fmt.Sprintf("callboard db local start --port %d", container.FindAvailablePort(port)))
		}

		fmt.Fprintf(out, "Starting %s on port %d...\n", pg.Name, port)
		if err := pg.Start(ctx, port); err != nil {
			return util.NewError("Failed to start container").Wrap(err)
		}
		if pg.Exists(ctx) {
			// A restarted container keeps the port it was created with.
			if p, err := pg.Port(ctx); err == nil {
				port = p
			}
		}

		fmt.Fprint(out, "Waiting for PostgreSQL to be ready...")
		if err := pg.WaitReady(ctx, 30*time.Second); err != nil {
			fmt.Fprintln(out, styles.Red(" FAILED"))
			return util.NewError("PostgreSQL did not start").
				WithSuggestions("callboard db local logs").
				Wrap(err)
		}
		fmt.Fprintln(out, styles.Green(" OK"))
	}

	url := container.URL(port)
	if err := initLocalSchema(ctx, url); err != nil {
		return err
	}

	if use {
		cfg, err := config.LoadFile(config.Path())
		if err != nil {
			return util.NewError("Invalid configuration").WithContext(config.Path()).Wrap(err)
		}
		cfg.Backend.Kind = config.BackendPostgres
		cfg.Backend.URL = url
		if err := cfg.Save(); err != nil {
			return util.NewError("Failed to save config").WithContext(config.Path()).Wrap(err)
		}
		fmt.Fprintln(out, styles.SuccessMsg("Backend set to the local database"))
		return nil
	}

	fmt.Fprintln(out, styles.SuccessMsg("Local database ready"))
	fmt.Fprintln(out, styles.Mutef("  callboard config backend.kind %s", config.BackendPostgres))
	fmt.Fprintln(out, styles.Mutef("  callboard config backend.url %s", url))
	return nil
}

func initLocalSchema(ctx context.Context, url string) error {
	cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	d, err := db.Connect(cctx, url, db.WithLogger(logger))
	if err != nil {
		return util.DatabaseConnectionError(url, err)
	}
	defer d.Close()

	if err := d.InitSchema(cctx); err != nil {
		return util.NewError("Failed to create schema").Wrap(err)
	}
	return nil
}

func newLocalStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the container",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pg, err := detectRuntime(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if !pg.Running(ctx) {
				fmt.Fprintln(out, "Container is not running")
				return nil
			}
			fmt.Fprint(out, "Stopping container...")
			if err := pg.Stop(ctx); err != nil {
				fmt.Fprintln(out, styles.Red(" FAILED"))
				return err
			}
			fmt.Fprintln(out, styles.Green(" OK"))
			return nil
		},
	}
}

func newLocalLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show container logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pg, err := detectRuntime(ctx)
			if err != nil {
				return err
			}
			if !pg.Exists(ctx) {
				return util.NewError("Container does not exist").
					WithSuggestions("callboard db local start")
			}
			tail, _ := cmd.Flags().GetInt("tail")
			logs, err := pg.Logs(ctx, tail)
			fmt.Fprint(cmd.OutOrStdout(), logs)
			return err
		},
	}
	cmd.Flags().IntP("tail", "n", 50, "Number of lines to show")
	return cmd
}

func newLocalDestroyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Remove the container and optionally its data",
		Long: `Remove the local PostgreSQL container.

The data volume is kept unless --purge is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pg, err := detectRuntime(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			purge, _ := cmd.Flags().GetBool("purge")

			fmt.Fprint(out, "Removing container...")
			if err := pg.Remove(ctx, purge); err != nil {
				fmt.Fprintln(out, styles.Red(" FAILED"))
				return err
			}
			fmt.Fprintln(out, styles.Green(" OK"))

			if purge {
				fmt.Fprintln(out, styles.WarningMsg("All local callboard data has been deleted"))
			} else if pg.VolumeExists(ctx) {
				fmt.Fprintln(out, styles.MutedMsg("Data volume preserved. Use --purge to delete all data."))
			}
			return nil
		},
	}
	cmd.Flags().Bool("purge", false, "Also delete the data volume (DESTROYS ALL DATA)")
	return cmd
}
