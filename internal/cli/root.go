package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"livemenu/internal/app"
)

const defaultConfigPath = "configs/config.yaml"

type globalFlags struct {
	Config  string
	Format  string
	Verbose bool
}

// NewRootCommand builds the complete command tree.
func NewRootCommand(deps Dependencies) *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "menuctl",
		Short:         "Edit, archive and export the bar menu.",
		Version:       deps.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			_, err := parseOutputFormat(flags.Format)
			return err
		},
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&flags.Config, "config", "c", configPath, "Path to the service config file.")
	pf.StringVar(&flags.Format, "format", "table", "Output format: table, json, or yaml.")
	pf.BoolVar(&flags.Verbose, "verbose", false, "Log to stderr at debug level.")

	root.AddCommand(newMenuCommand(deps, flags))
	root.AddCommand(newPlanCommand(deps, flags))
	root.AddCommand(newPricesCommand(deps, flags))
	root.AddCommand(newArchiveCommand(deps, flags))
	root.AddCommand(newExportCommand(deps, flags))
	root.AddCommand(newPriceListCommand(deps, flags))
	root.AddCommand(newResetCommand(deps, flags))
	root.AddCommand(newSeedCommand(deps, flags))
	root.AddCommand(newRemoteCommand(deps, flags))

	return root
}

// withApp opens the local application for the duration of fn.
func withApp(cmd *cobra.Command, deps Dependencies, flags *globalFlags, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := deps.Open(ctx, flags.Config, newLogger(flags.Verbose, cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer (func() { _ = a.Close() })()
	return fn(ctx, a)
}

func format(flags *globalFlags) outputFormat {
	f, _ := parseOutputFormat(flags.Format)
	return f
}
