package main

import (
	"context"
	"errors"
	"net"
	"strings"

	"funcreg/internal/api"
)

// requestTooLargeErrorCode is the numeric error_code for oversized uploads.
const requestTooLargeErrorCode = 1002

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		lines = append(lines, apiErrorHints(apiErr)...)
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check server health or increase FUNCREG_HTTP_TIMEOUT.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure a funcreg server is running at FUNCREG_API_URL.",
			"hint: start local server manually with: funcreg srv",
		)
		return uniqueLines(lines)
	}

	return uniqueLines(lines)
}

func apiErrorHints(apiErr *api.APIError) []string {
	var hints []string
	switch apiErr.Code {
	case "not_acceptable":
		if strings.Contains(apiErr.Message, "staged function code") {
			hints = append(hints,
				"hint: each uploaded code id can back only one function type; upload the file again for a new id.",
				"hint: staged code is removed after code.staging_ttl if no function claims it.",
			)
		}
	case "conflict":
		hints = append(hints, "hint: use funcreg update to change an existing version, or pick a new --version.")
	case "not_found":
		hints = append(hints, "hint: functions are scoped to an owner; check --owner or FUNCREG_OWNER.")
	case "invalid_argument":
		if apiErr.ErrorCode == requestTooLargeErrorCode {
			hints = append(hints, "hint: raise code.max_upload_bytes on the server to accept larger files.")
		}
	case "":
		hints = append(hints, "hint: verify FUNCREG_API_URL points to a funcreg server.")
	}
	if apiErr.Status >= 500 {
		hints = append(hints, "hint: server returned an internal error; check server logs for details.")
	}
	return hints
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
