package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"funcreg/internal/api"
	"funcreg/internal/config"
)

func newAdminCmd(cfg *config.Config, opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative commands",
	}

	cmd.AddCommand(newAdminGCCmd(cfg, opts))
	return cmd
}

func newAdminGCCmd(cfg *config.Config, opts *globalOptions) *cobra.Command {
	var (
		dryRun    bool
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Remove staged code that was never claimed by a function",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if batchSize < 0 {
				return fmt.Errorf("--batch-size must be >= 0")
			}

			return withClient(cfg, opts, func(client *api.Client) error {
				resp, err := client.CollectStagedCode(cmd.Context(), api.CodeGCRequest{DryRun: dryRun, BatchSize: batchSize})
				if err != nil {
					return err
				}
				return writeResult(opts, resp, func() error { return writeGCResult(resp) })
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report expired staged code without deleting it")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "blobs per sweep page (default: server gc batch size)")
	return cmd
}
