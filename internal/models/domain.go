package models

import (
	"fmt"
	"strings"
)

const (
	DefaultListLimit = 10
	MaxListLimit     = 500

	MaxFunctionIDLength = 200
	MaxVersionLength    = 100
	MaxTypeLength       = 100
)

// NormalizeFunctionID trims and validates a function identifier.
func NormalizeFunctionID(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", fmt.Errorf("function id is required")
	}
	if len(value) > MaxFunctionIDLength {
		return "", fmt.Errorf("function id must be <= %d characters", MaxFunctionIDLength)
	}
	return value, nil
}

// NormalizeVersion trims and validates a version string.
func NormalizeVersion(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", fmt.Errorf("version is required")
	}
	if len(value) > MaxVersionLength {
		return "", fmt.Errorf("version must be <= %d characters", MaxVersionLength)
	}
	return value, nil
}

// NormalizeFunctionTypes validates the requested type list.
//
// Every entry needs a type name and a blob id, and type names must be unique.
func NormalizeFunctionTypes(types []FunctionType) ([]FunctionType, error) {
	if len(types) == 0 {
		return nil, fmt.Errorf("function_types must not be empty")
	}
	out := make([]FunctionType, 0, len(types))
	seen := make(map[string]struct{}, len(types))
	for i, ft := range types {
		name := strings.TrimSpace(ft.Type)
		blobID := strings.TrimSpace(ft.BlobID)
		if name == "" {
			return nil, fmt.Errorf("function_types[%d].type is required", i)
		}
		if len(name) > MaxTypeLength {
			return nil, fmt.Errorf("function_types[%d].type must be <= %d characters", i, MaxTypeLength)
		}
		if blobID == "" {
			return nil, fmt.Errorf("function_types[%d].code_file_id is required", i)
		}
		if _, ok := seen[name]; ok {
			return nil, fmt.Errorf("duplicate function type: %s", name)
		}
		seen[name] = struct{}{}
		out = append(out, FunctionType{Type: name, BlobID: blobID})
	}
	return out, nil
}

// NormalizeOutputs validates the declared output names.
func NormalizeOutputs(outputs []string) ([]string, error) {
	if len(outputs) == 0 {
		return nil, fmt.Errorf("outputs must not be empty")
	}
	out := make([]string, 0, len(outputs))
	for i, output := range outputs {
		value := strings.TrimSpace(output)
		if value == "" {
			return nil, fmt.Errorf("outputs[%d] must not be empty", i)
		}
		out = append(out, value)
	}
	return out, nil
}

// ClampListLimit applies the default and maximum page size.
func ClampListLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
