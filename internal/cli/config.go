package cli

import (
	"fmt"

	"github.com/imgajeed76/callboard/internal/config"
	"github.com/imgajeed76/callboard/internal/ui/styles"
	"github.com/imgajeed76/callboard/internal/util"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config <key> [value]",
		Short: "Get and set options",
		Long: `Get and set callboard configuration options.

The config file lives at ~/.config/callboard/config.toml.
CALLBOARD_BACKEND_URL and CALLBOARD_USER override it for one run.

Examples:
  callboard config backend.url                    # Get value
  callboard config backend.url http://api:8000    # Set value
  callboard config project.default <project-id>   # Set default project
  callboard config --list                         # List all config

Options:
` + config.HelpText(),
		Args: cobra.MaximumNArgs(2),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return config.ListKeys(), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: runConfig,
	}

	cmd.Flags().BoolP("list", "l", false, "List all configuration")

	return cmd
}

func runConfig(cmd *cobra.Command, args []string) error {
	listAll, _ := cmd.Flags().GetBool("list")
	out := cmd.OutOrStdout()

	// Environment overrides must not end up in the file.
	cfg, err := config.LoadFile(config.Path())
	if err != nil {
		return util.NewError("Invalid configuration").
			WithContext(config.Path()).
			Wrap(err)
	}

	if listAll {
		for _, key := range config.ListKeys() {
			value, _ := cfg.GetValue(key)
			fmt.Fprintf(out, "%s=%s\n", key, value)
		}
		return nil
	}

	if len(args) == 0 {
		return util.MissingArgumentError("key", "callboard config backend.url")
	}

	key := args[0]
	if len(args) == 1 {
		value, ok := cfg.GetValue(key)
		if !ok {
			return unknownKeyError(key)
		}
		fmt.Fprintln(out, value)
		return nil
	}

	if err := cfg.SetValue(key, args[1]); err != nil {
		if _, ok := cfg.GetValue(key); !ok {
			return unknownKeyError(key)
		}
		return util.NewError(fmt.Sprintf("Invalid value for %s", key)).
			WithMessage(err.Error()).
			WithSuggestions("callboard config --help").
			Wrap(err)
	}

	if err := cfg.Save(); err != nil {
		return util.NewError("Failed to save config").
			WithContext(config.Path()).
			Wrap(err)
	}
	logger.Debug("config saved")
	fmt.Fprintln(out, styles.Mutef("%s = %s", key, args[1]))
	return nil
}

func unknownKeyError(key string) error {
	return util.NewError(fmt.Sprintf("Unknown config key '%s'", key)).
		WithSuggestions("callboard config --list").
		Wrap(util.ErrUnsupportedValue)
}
