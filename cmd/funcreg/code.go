package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"funcreg/internal/api"
	"funcreg/internal/config"
	"funcreg/internal/models"
)

type downloadResult struct {
	Path      string `json:"path"`
	Filename  string `json:"filename"`
	MediaType string `json:"media_type"`
	SizeBytes int64  `json:"size_bytes"`
}

type uploadResult struct {
	Path string `json:"path"`
	ID   string `json:"id"`
}

func newUploadCmd(cfg *config.Config, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <path>...",
		Short: "Stage function code files and print their code ids",
		Args:  requireAtLeastArgs(1, "at least one file path is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, opts, func(client *api.Client) error {
				results := make([]uploadResult, 0, len(args))
				for _, path := range args {
					staged, err := uploadFile(cmd, client, path)
					if err != nil {
						return err
					}
					results = append(results, uploadResult{Path: path, ID: staged.ID})
				}

				return writeResult(opts, results, func() error {
					for _, result := range results {
						if err := writePlain("%s\t%s\n", result.ID, result.Path); err != nil {
							return err
						}
					}
					return nil
				})
			})
		},
	}
}

func uploadFile(cmd *cobra.Command, client *api.Client, path string) (models.StagedCode, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.StagedCode{}, err
	}
	if info.IsDir() {
		return models.StagedCode{}, fmt.Errorf("%s is a directory", path)
	}
	return uploadPath(cmd.Context(), client, path)
}

func newDownloadCmd(cfg *config.Config, opts *globalOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download <code-id>",
		Short: "Download function code by code id",
		Args:  requireExactlyArgs(1, "code id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			codeID := strings.TrimSpace(args[0])
			return withClient(cfg, opts, func(client *api.Client) error {
				if output == "-" {
					_, err := client.DownloadCode(cmd.Context(), codeID, stdout)
					return err
				}
				return downloadToFile(cmd, client, opts, codeID, output)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "destination path, '-' for stdout (default: stored filename)")
	return cmd
}

// downloadToFile streams into a temp file next to the destination and
// renames it once the stored filename is known.
func downloadToFile(cmd *cobra.Command, client *api.Client, opts *globalOptions, codeID, output string) error {
	dir := "."
	if output != "" {
		dir = filepath.Dir(output)
	}

	tmp, err := os.CreateTemp(dir, ".funcreg-download-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	meta, err := client.DownloadCode(cmd.Context(), codeID, tmp)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}

	dest := output
	if dest == "" {
		dest = downloadName(meta, codeID)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return err
	}

	result := downloadResult{Path: dest, Filename: meta.Filename, MediaType: meta.MediaType, SizeBytes: meta.SizeBytes}
	return writeResult(opts, result, func() error {
		return writePlain("wrote %s (%d bytes, %s)\n", dest, meta.SizeBytes, meta.MediaType)
	})
}

func downloadName(meta api.CodeDownload, codeID string) string {
	name := filepath.Base(strings.TrimSpace(meta.Filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return codeID
	}
	return name
}
