package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"funcreg/internal/api"
	"funcreg/internal/format"
	"funcreg/internal/models"
)

var (
	stdout          io.Writer        = os.Stdout
	outputFormatter format.Formatter = format.JSONFormatter{}
)

func configureOutput(opts *globalOptions) error {
	name := opts.format
	if name == "" && opts.jsonOutput {
		name = "json"
	}
	formatter, err := format.ForName(name)
	if err != nil {
		return err
	}
	outputFormatter = formatter
	return nil
}

func writeJSON(payload any) error {
	return outputFormatter.Write(stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(stdout, format, args...)
	return err
}

// writeResult writes payload as a document when structured output was
// requested and falls back to plain otherwise.
func writeResult(opts *globalOptions, payload any, plain func() error) error {
	if opts.structured() {
		return writeJSON(payload)
	}
	return plain()
}

func writeFunctionDetail(fn models.Function) error {
	lines := []string{
		fmt.Sprintf("id: %s", fn.ID),
		fmt.Sprintf("version: %s", fn.Version),
		fmt.Sprintf("created_at: %s", formatTime(fn.CreatedAt)),
		fmt.Sprintf("updated_at: %s", formatTime(fn.UpdatedAt)),
	}
	if len(fn.Outputs) > 0 {
		lines = append(lines, fmt.Sprintf("outputs: %s", strings.Join(fn.Outputs, ", ")))
	}
	if len(fn.Types) > 0 {
		lines = append(lines, "function_types:")
		for _, ft := range fn.Types {
			lines = append(lines, fmt.Sprintf("  - %s: %s", ft.Type, ft.BlobID))
		}
	}
	return writePlain("%s\n", strings.Join(lines, "\n"))
}

func writeFunctionList(list models.FunctionList) error {
	for _, fn := range list.Items {
		if err := writePlain("%s\n", formatFunctionLine(fn)); err != nil {
			return err
		}
	}
	shown := len(list.Items)
	if shown == 0 {
		return writePlain("no functions (total %d)\n", list.Total)
	}
	return writePlain("showing %d-%d of %d\n", list.Offset+1, list.Offset+shown, list.Total)
}

func formatFunctionLine(fn models.Function) string {
	names := make([]string, 0, len(fn.Types))
	for _, ft := range fn.Types {
		names = append(names, ft.Type)
	}
	return fmt.Sprintf("%s@%s [%s] - %s", fn.ID, fn.Version, strings.Join(names, ","), formatTime(fn.UpdatedAt))
}

func writeGCResult(resp api.CodeGCResponse) error {
	verb := "deleted"
	if resp.DryRun {
		verb = "would delete"
	}
	return writePlain("%s %d of %d staged code blobs (%d bytes) older than %s; skipped %d, failed %d\n",
		verb, resp.DeletedCount, resp.CandidateCount, resp.ReclaimedBytes, resp.Cutoff, resp.SkippedCount, resp.FailedCount)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
