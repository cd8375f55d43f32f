package models

import "time"

// CodeBlob is an uploaded function code payload.
//
// A blob is staged from the moment it is written until a function row claims it.
// Staged blobs older than the retention window are swept by the collector.
type CodeBlob struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename,omitempty"`
	MediaType  string    `json:"media_type,omitempty"`
	SHA256     string    `json:"sha256"`
	SizeBytes  int64     `json:"size_bytes"`
	Staged     bool      `json:"staged"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// StagedCode is returned to the caller of a successful upload.
type StagedCode struct {
	ID string `json:"id"`
}
