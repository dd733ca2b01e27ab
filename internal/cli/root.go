package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/imgajeed76/callboard/internal/config"
	"github.com/imgajeed76/callboard/internal/ui/styles"
	"github.com/imgajeed76/callboard/internal/util"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

// logger is replaced in PersistentPreRunE; commands may log before that
// only in tests.
var logger = zap.NewNop()

var rootCmd = &cobra.Command{
	Use:   "callboard",
	Short: "Browse and manage call center projects, agents, campaigns and calls",
	Long: `callboard is a terminal dashboard for an AI call center backend.

It lists projects, AI agents, contacts, campaigns and calls in an
interactive table with search, sorting, multi-selection and paging, and
runs row actions such as starting a campaign or ending a call.

Records come either from the callboard REST API or straight from its
PostgreSQL database (backend.kind in the config file).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       Version,
}

func Execute() error {
	defer func() { _ = logger.Sync() }()

	if err := rootCmd.Execute(); err != nil {
		var cbErr *util.Error
		if errors.As(err, &cbErr) {
			fmt.Fprintln(os.Stderr, cbErr.Format())
		} else {
			fmt.Fprintln(os.Stderr, styles.ErrorMsg(err.Error()))
		}
		return err
	}
	return nil
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log backend requests to stderr")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")

	rootCmd.SetVersionTemplate(fmt.Sprintf("callboard version %s\n  commit: %s\n  built:  %s\n", Version, CommitSHA, BuildDate))

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		noColor, _ := cmd.Flags().GetBool("no-color")
		if noColor {
			os.Setenv("CALLBOARD_NO_COLOR", "1")
		}

		verbose, _ := cmd.Flags().GetBool("verbose")
		l, err := newLogger(verbose)
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		logger = l
		return nil
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newConfigCmd(),
		newDoctorCmd(),
		newDBCmd(),
		newProjectsCmd(),
		newAgentsCmd(),
		newContactsCmd(),
		newCampaignsCmd(),
		newCallsCmd(),
		newProjectCmd(),
		newCampaignCmd(),
		newCallCmd(),
		newContactCmd(),
		newDeleteCmd(),
		newCompletionCmd(),
	)
}

// newLogger builds the process logger. Without --verbose nothing is logged.
func newLogger(verbose bool) (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.Sampling = nil
	return cfg.Build()
}

// loadConfig reads the user config and applies display preferences.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, util.NewError("Invalid configuration").
			WithContext(config.Path()).
			WithSuggestions("callboard config --list").
			Wrap(err)
	}
	styles.SetAccessible(cfg.Display.Accessible)
	return cfg, nil
}

func newCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for callboard.

To load completions:

Bash:
  $ source <(callboard completion bash)

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ callboard completion zsh > "${fpath[1]}/_callboard"

Fish:
  $ callboard completion fish | source

  # To load completions for each session, execute once:
  $ callboard completion fish > ~/.config/fish/completions/callboard.fish

PowerShell:
  PS> callboard completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return rootCmd.GenBashCompletion(out)
			case "zsh":
				return rootCmd.GenZshCompletion(out)
			case "fish":
				return rootCmd.GenFishCompletion(out, true)
			case "powershell":
				return rootCmd.GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "callboard version %s\n", Version)
			fmt.Fprintf(out, "  commit: %s\n", CommitSHA)
			fmt.Fprintf(out, "  built:  %s\n", BuildDate)
		},
	}
}
