package main

import (
	"context"
	"fmt"
	"net"
	"testing"

	"funcreg/internal/api"
)

func TestFormatCLIError_NetworkGuidance(t *testing.T) {
	err := &net.DNSError{Err: "dial tcp: connection refused", Name: "127.0.0.1", IsTemporary: true}
	lines := formatCLIError(err)
	if !containsLine(lines, "hint: ensure a funcreg server is running at FUNCREG_API_URL.") {
		t.Fatalf("expected connectivity guidance, got %v", lines)
	}
	if !containsLine(lines, "hint: start local server manually with: funcreg srv") {
		t.Fatalf("expected manual-start guidance, got %v", lines)
	}
}

func TestFormatCLIError_APIUnknownServiceGuidance(t *testing.T) {
	err := &api.APIError{Status: 404, Message: "api error: 404 Not Found"}
	lines := formatCLIError(err)
	if !containsLine(lines, "hint: verify FUNCREG_API_URL points to a funcreg server.") {
		t.Fatalf("expected api-url guidance, got %v", lines)
	}
}

func TestFormatCLIError_ClaimedCodeGuidance(t *testing.T) {
	err := &api.APIError{Status: 406, Code: "not_acceptable", ErrorCode: 2103, Message: "there is no staged function code with the id abc"}
	lines := formatCLIError(err)
	if lines[0] != err.Error() {
		t.Fatalf("expected error first, got %v", lines)
	}
	if !containsLine(lines, "hint: each uploaded code id can back only one function type; upload the file again for a new id.") {
		t.Fatalf("expected claim guidance, got %v", lines)
	}
}

func TestFormatCLIError_ConflictAndNotFoundGuidance(t *testing.T) {
	conflict := formatCLIError(&api.APIError{Status: 409, Code: "conflict", Message: "exists"})
	if !containsLine(conflict, "hint: use funcreg update to change an existing version, or pick a new --version.") {
		t.Fatalf("expected conflict guidance, got %v", conflict)
	}

	missing := formatCLIError(fmt.Errorf("get: %w", &api.APIError{Status: 404, Code: "not_found", Message: "missing"}))
	if !containsLine(missing, "hint: functions are scoped to an owner; check --owner or FUNCREG_OWNER.") {
		t.Fatalf("expected owner guidance for wrapped error, got %v", missing)
	}
}

func TestFormatCLIError_TooLargeGuidance(t *testing.T) {
	lines := formatCLIError(&api.APIError{Status: 400, Code: "invalid_argument", ErrorCode: requestTooLargeErrorCode, Message: "request body too large"})
	if !containsLine(lines, "hint: raise code.max_upload_bytes on the server to accept larger files.") {
		t.Fatalf("expected upload size guidance, got %v", lines)
	}
}

func TestFormatCLIError_APIInternalGuidance(t *testing.T) {
	err := &api.APIError{Status: 500, Code: "internal", Message: "internal error"}
	lines := formatCLIError(err)
	if !containsLine(lines, "hint: server returned an internal error; check server logs for details.") {
		t.Fatalf("expected internal-error guidance, got %v", lines)
	}
}

func TestFormatCLIError_Timeout(t *testing.T) {
	lines := formatCLIError(fmt.Errorf("ping: %w", context.DeadlineExceeded))
	if len(lines) != 2 || !containsLine(lines, "hint: request timed out; check server health or increase FUNCREG_HTTP_TIMEOUT.") {
		t.Fatalf("expected single timeout hint, got %v", lines)
	}
}

func TestFormatCLIError_Nil(t *testing.T) {
	if lines := formatCLIError(nil); lines != nil {
		t.Fatalf("expected nil, got %v", lines)
	}
}

func containsLine(lines []string, expected string) bool {
	for _, line := range lines {
		if line == expected {
			return true
		}
	}
	return false
}
