package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"funcreg/internal/api"
	"funcreg/internal/models"
)

// functionSpecFile is the on-disk description of a function version. JSON
// documents parse as well since they are valid YAML.
type functionSpecFile struct {
	ID      string         `yaml:"id"`
	Version string         `yaml:"version"`
	Outputs []string       `yaml:"outputs"`
	Types   []specFileType `yaml:"function_types"`
}

// specFileType references code either by staged code id or by a local path
// that is uploaded first.
type specFileType struct {
	Type       string `yaml:"type"`
	CodeFileID string `yaml:"code_file_id"`
	Path       string `yaml:"path"`
}

func readSpecFile(path string, stdin io.Reader) (functionSpecFile, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return functionSpecFile{}, err
	}

	spec, err := parseSpecFile(raw)
	if err != nil {
		return functionSpecFile{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if path != "-" {
		spec.resolvePaths(filepath.Dir(path))
	}
	return spec, nil
}

func parseSpecFile(raw []byte) (functionSpecFile, error) {
	var spec functionSpecFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		if errors.Is(err, io.EOF) {
			return functionSpecFile{}, errors.New("empty function spec")
		}
		return functionSpecFile{}, err
	}
	return spec, nil
}

// resolvePaths makes relative code paths relative to the definition file's directory.
func (s *functionSpecFile) resolvePaths(dir string) {
	for i := range s.Types {
		path := s.Types[i].Path
		if path == "" || filepath.IsAbs(path) {
			continue
		}
		s.Types[i].Path = filepath.Join(dir, path)
	}
}

// parseTypeFlag parses "type=code-id" or "type=path/to/file".
func parseTypeFlag(value string) (specFileType, error) {
	name, ref, ok := strings.Cut(value, "=")
	name = strings.TrimSpace(name)
	ref = strings.TrimSpace(ref)
	if !ok || name == "" || ref == "" {
		return specFileType{}, fmt.Errorf("invalid --type %q (expected type=code-id or type=path)", value)
	}
	if _, err := uuid.Parse(ref); err == nil {
		return specFileType{Type: name, CodeFileID: ref}, nil
	}
	return specFileType{Type: name, Path: ref}, nil
}

func parseTypeFlags(values []string) ([]specFileType, error) {
	out := make([]specFileType, 0, len(values))
	for _, value := range values {
		ft, err := parseTypeFlag(value)
		if err != nil {
			return nil, err
		}
		out = append(out, ft)
	}
	return out, nil
}

// stageSpecTypes uploads every path-backed entry and returns the resulting
// function types in their original order.
func stageSpecTypes(ctx context.Context, client *api.Client, entries []specFileType) ([]models.FunctionType, error) {
	out := make([]models.FunctionType, 0, len(entries))
	for _, entry := range entries {
		switch {
		case entry.CodeFileID != "" && entry.Path != "":
			return nil, fmt.Errorf("function type %q sets both code_file_id and path", entry.Type)
		case entry.CodeFileID != "":
			out = append(out, models.FunctionType{Type: entry.Type, BlobID: entry.CodeFileID})
		case entry.Path != "":
			staged, err := uploadPath(ctx, client, entry.Path)
			if err != nil {
				return nil, err
			}
			out = append(out, models.FunctionType{Type: entry.Type, BlobID: staged.ID})
		default:
			return nil, fmt.Errorf("function type %q needs code_file_id or path", entry.Type)
		}
	}
	return out, nil
}

func uploadPath(ctx context.Context, client *api.Client, path string) (models.StagedCode, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.StagedCode{}, err
	}
	defer f.Close()

	staged, err := client.UploadCode(ctx, filepath.Base(path), f)
	if err != nil {
		return models.StagedCode{}, fmt.Errorf("upload %s: %w", path, err)
	}
	return staged, nil
}
