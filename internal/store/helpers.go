package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type rowScanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func placeholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimRight(strings.Repeat("?,", count), ",")
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func outputsToJSON(outputs []string) (string, error) {
	if outputs == nil {
		outputs = []string{}
	}
	data, err := json.Marshal(outputs)
	if err != nil {
		return "", fmt.Errorf("marshal outputs_json: %w", err)
	}
	return string(data), nil
}

func outputsFromJSON(raw string) ([]string, error) {
	outputs := []string{}
	if raw == "" {
		return outputs, nil
	}
	if err := json.Unmarshal([]byte(raw), &outputs); err != nil {
		return nil, fmt.Errorf("parse outputs_json: %w", err)
	}
	return outputs, nil
}
