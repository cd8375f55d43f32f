package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"funcreg/internal/config"
)

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	jsonOutput bool
	format     string
	owner      string
	logLevel   string
}

// structured reports whether output should be a machine-readable document.
func (o *globalOptions) structured() bool {
	return o != nil && (o.jsonOutput || o.format != "")
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "funcreg",
		Short:         "Funcreg is a versioned registry for function code",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			warning, err := configureLoggerForCLI(opts.logLevel, cfg.LogLevel)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(os.Stderr, warning)
			}
			return configureOutput(opts)
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "output JSON")
	cmd.PersistentFlags().StringVar(&opts.format, "format", "", "structured output format (json, yaml)")
	cmd.PersistentFlags().StringVar(&opts.owner, "owner", "", "owner to act as (default: config default_owner)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newSrvCmd(cfg),
		newUploadCmd(cfg, opts),
		newDownloadCmd(cfg, opts),
		newCreateCmd(cfg, opts),
		newUpdateCmd(cfg, opts),
		newGetCmd(cfg, opts),
		newVersionsCmd(cfg, opts),
		newDeleteCmd(cfg, opts),
		newListCmd(cfg, opts),
		newAdminCmd(cfg, opts),
		newInfoCmd(cfg, opts),
		newMigrateCmd(cfg, opts),
		newConfigCmd(cfg),
	)

	return cmd
}
