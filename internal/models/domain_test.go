package models

import (
	"testing"
	"time"
)

func TestNormalizeFunctionID(t *testing.T) {
	got, err := NormalizeFunctionID("  resize-image ")
	if err != nil {
		t.Fatalf("normalize id: %v", err)
	}
	if got != "resize-image" {
		t.Fatalf("expected trimmed id, got %q", got)
	}

	if _, err := NormalizeFunctionID("   "); err == nil {
		t.Fatal("expected empty id error")
	}
}

func TestNormalizeFunctionTypes(t *testing.T) {
	tests := []struct {
		name    string
		input   []FunctionType
		wantErr bool
	}{
		{name: "empty", input: nil, wantErr: true},
		{name: "missing type", input: []FunctionType{{BlobID: "b1"}}, wantErr: true},
		{name: "missing blob", input: []FunctionType{{Type: "python"}}, wantErr: true},
		{name: "duplicate type", input: []FunctionType{{Type: "python", BlobID: "b1"}, {Type: " python ", BlobID: "b2"}}, wantErr: true},
		{name: "valid", input: []FunctionType{{Type: " python ", BlobID: " b1 "}, {Type: "js", BlobID: "b2"}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeFunctionTypes(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("normalize types: %v", err)
			}
			if got[0].Type != "python" || got[0].BlobID != "b1" {
				t.Fatalf("expected trimmed first entry, got %+v", got[0])
			}
		})
	}
}

func TestNormalizeOutputs(t *testing.T) {
	if _, err := NormalizeOutputs(nil); err == nil {
		t.Fatal("expected empty outputs error")
	}
	if _, err := NormalizeOutputs([]string{"ok", " "}); err == nil {
		t.Fatal("expected blank output error")
	}
	got, err := NormalizeOutputs([]string{" result "})
	if err != nil {
		t.Fatalf("normalize outputs: %v", err)
	}
	if len(got) != 1 || got[0] != "result" {
		t.Fatalf("unexpected outputs %v", got)
	}
}

func TestClampListLimit(t *testing.T) {
	if got := ClampListLimit(0); got != DefaultListLimit {
		t.Fatalf("expected default %d, got %d", DefaultListLimit, got)
	}
	if got := ClampListLimit(MaxListLimit + 1); got != MaxListLimit {
		t.Fatalf("expected max %d, got %d", MaxListLimit, got)
	}
	if got := ClampListLimit(25); got != 25 {
		t.Fatalf("expected 25, got %d", got)
	}
}

func TestFunctionFromRowsUsesLatestRow(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []FunctionRow{
		{RecordID: 1, FunctionID: "f", Version: "1", Type: "python", BlobID: "b1", Outputs: []string{"a"}, CreatedAt: base, UpdatedAt: base},
		{RecordID: 2, FunctionID: "f", Version: "1", Type: "js", BlobID: "b2", Outputs: []string{"b"}, CreatedAt: base.Add(time.Second), UpdatedAt: base.Add(time.Second)},
	}

	got := FunctionFromRows(rows)
	if len(got.Types) != 2 {
		t.Fatalf("expected 2 types, got %d", len(got.Types))
	}
	if !got.CreatedAt.Equal(base.Add(time.Second)) {
		t.Fatalf("expected timestamps from latest row, got %v", got.CreatedAt)
	}
	if len(got.Outputs) != 1 || got.Outputs[0] != "b" {
		t.Fatalf("expected outputs from latest row, got %v", got.Outputs)
	}
}
