package api

import "funcreg/internal/models"

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// FunctionCreateRequest defines the payload for registering a function version.
type FunctionCreateRequest struct {
	ID      string                `json:"id" yaml:"id"`
	Version string                `json:"version" yaml:"version"`
	Outputs []string              `json:"outputs" yaml:"outputs"`
	Types   []models.FunctionType `json:"function_types" yaml:"function_types"`
}

// FunctionUpdateRequest defines the payload for reconciling an existing version.
type FunctionUpdateRequest struct {
	Outputs []string              `json:"outputs" yaml:"outputs"`
	Types   []models.FunctionType `json:"function_types" yaml:"function_types"`
}

// FunctionListQuery selects one listing page.
type FunctionListQuery struct {
	Offset        int
	Limit         int
	PartialSearch string
}

// CodeGCRequest asks the server for one staged code sweep.
type CodeGCRequest struct {
	DryRun    bool `json:"dry_run"`
	BatchSize int  `json:"batch_size,omitempty"`
}

// CodeGCResponse reports one staged code sweep.
type CodeGCResponse struct {
	Cutoff         string `json:"cutoff"`
	CandidateCount int    `json:"candidate_count"`
	DeletedCount   int    `json:"deleted_count"`
	SkippedCount   int    `json:"skipped_count"`
	FailedCount    int    `json:"failed_count"`
	ReclaimedBytes int64  `json:"reclaimed_bytes"`
	DryRun         bool   `json:"dry_run"`
}

// InfoResponse describes the running registry.
type InfoResponse struct {
	DBPath        string `json:"db_path"`
	BlobRoot      string `json:"blob_root"`
	SchemaVersion int    `json:"schema_version"`
	StagedBlobs   int    `json:"staged_blobs"`
	ClaimedBlobs  int    `json:"claimed_blobs"`
	StagingTTL    string `json:"staging_ttl"`
	GCInterval    string `json:"gc_interval"`
}

// CodeDownload carries a streamed code payload and its metadata.
type CodeDownload struct {
	Filename  string
	MediaType string
	SizeBytes int64
}
