package main

import (
	"github.com/spf13/cobra"

	"funcreg/internal/api"
	"funcreg/internal/config"
)

func newInfoCmd(cfg *config.Config, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show registry storage and staging info",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, opts, func(client *api.Client) error {
				resp, err := client.GetInfo(cmd.Context())
				if err != nil {
					return err
				}

				return writeResult(opts, resp, func() error {
					_ = writePlain("db_path: %s\n", resp.DBPath)
					_ = writePlain("blob_root: %s\n", resp.BlobRoot)
					_ = writePlain("schema_version: %d\n", resp.SchemaVersion)
					_ = writePlain("staged_blobs: %d\n", resp.StagedBlobs)
					_ = writePlain("claimed_blobs: %d\n", resp.ClaimedBlobs)
					_ = writePlain("staging_ttl: %s\n", resp.StagingTTL)
					return writePlain("gc_interval: %s\n", resp.GCInterval)
				})
			})
		},
	}
}
