package models

import "time"

// FunctionRow is one persisted (function, version, type, owner) record.
//
// RecordID is assigned by the store and grows with insertion order.
type FunctionRow struct {
	RecordID   int64
	FunctionID string
	Version    string
	Type       string
	Owner      string
	BlobID     string
	Outputs    []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// FunctionType pairs an implementation type with the code blob backing it.
type FunctionType struct {
	Type   string `json:"type"`
	BlobID string `json:"code_file_id"`
}

// Function is the logical view of one function version.
type Function struct {
	ID        string         `json:"id"`
	Version   string         `json:"version"`
	Types     []FunctionType `json:"function_types"`
	Outputs   []string       `json:"outputs"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// FunctionList is one page of the function listing.
type FunctionList struct {
	Items  []Function `json:"items"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// DeleteResult reports how many function rows were removed.
type DeleteResult struct {
	DeletedCount int `json:"deletedCount"`
}

// FunctionVersions lists the distinct versions stored for one function.
type FunctionVersions struct {
	ID       string   `json:"id"`
	Versions []string `json:"versions"`
}

// FunctionSpec is the caller-supplied definition of a function version.
type FunctionSpec struct {
	ID      string         `json:"id"`
	Version string         `json:"version"`
	Types   []FunctionType `json:"function_types"`
	Outputs []string       `json:"outputs"`
}

// FunctionFromRows builds the logical view of rows sharing one version.
// Timestamps come from the most recently inserted row.
func FunctionFromRows(rows []FunctionRow) Function {
	if len(rows) == 0 {
		return Function{}
	}
	latest := rows[0]
	for _, row := range rows[1:] {
		if row.RecordID > latest.RecordID {
			latest = row
		}
	}

	types := make([]FunctionType, 0, len(rows))
	for _, row := range rows {
		types = append(types, FunctionType{Type: row.Type, BlobID: row.BlobID})
	}

	outputs := latest.Outputs
	if outputs == nil {
		outputs = []string{}
	}
	return Function{
		ID:        latest.FunctionID,
		Version:   latest.Version,
		Types:     types,
		Outputs:   outputs,
		CreatedAt: latest.CreatedAt,
		UpdatedAt: latest.UpdatedAt,
	}
}
