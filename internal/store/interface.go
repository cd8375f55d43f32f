package store

import (
	"context"
	"time"

	"funcreg/internal/models"
)

// CodeBlobStore is the metadata surface for staged and claimed code blobs.
type CodeBlobStore interface {
	InsertStagedBlob(ctx context.Context, blob *models.CodeBlob) error
	GetBlob(ctx context.Context, id string) (*models.CodeBlob, error)
	ClaimBlob(ctx context.Context, id string) (bool, error)
	DeleteBlob(ctx context.Context, id string) (bool, error)
	ListExpiredStagedBlobs(ctx context.Context, cutoff time.Time, after string, limit int) ([]models.CodeBlob, error)
	DeleteStagedBlobBefore(ctx context.Context, id string, cutoff time.Time) (bool, error)
	CodeBlobStats(ctx context.Context) (staged int, claimed int, err error)
}

// FunctionStore is the persistence surface for function version rows.
type FunctionStore interface {
	FunctionVersionExists(ctx context.Context, functionID, version, owner string) (bool, error)
	InsertFunctionRow(ctx context.Context, row *models.FunctionRow) error
	GetFunctionRow(ctx context.Context, functionID, version, typ, owner string) (*models.FunctionRow, error)
	ListFunctionRows(ctx context.Context, functionID, version, owner string) ([]models.FunctionRow, error)
	ListAllFunctionRows(ctx context.Context, functionID, owner string) ([]models.FunctionRow, error)
	UpdateFunctionRowBlob(ctx context.Context, recordID int64, blobID string, outputs []string, updatedAt time.Time) error
	UpdateFunctionRowOutputs(ctx context.Context, recordID int64, outputs []string, updatedAt time.Time) error
	DeleteFunctionRow(ctx context.Context, recordID int64) (bool, error)
	LatestFunctionVersion(ctx context.Context, functionID, owner string) (string, bool, error)
	ListFunctionVersions(ctx context.Context, functionID, owner string) ([]string, error)
	ListFunctionIDs(ctx context.Context, filter FunctionListFilter) ([]string, error)
	CountFunctionIDs(ctx context.Context, idPartial string) (int, error)
	ListLatestFunctionRows(ctx context.Context, functionIDs []string) (map[string][]models.FunctionRow, error)
}

var (
	_ CodeBlobStore = (*Store)(nil)
	_ FunctionStore = (*Store)(nil)
)
