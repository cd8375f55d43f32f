package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"funcreg/internal/blobstore"
	"funcreg/internal/store"
)

const (
	DefaultStagingTTL      = 24 * time.Hour
	DefaultGCInterval      = 2 * time.Hour
	defaultCodeGCBatchSize = 500
)

// StagedCodeCollector deletes staged code that was never claimed.
type StagedCodeCollector struct {
	blobs     store.CodeBlobStore
	content   blobstore.ContentStore
	ttl       time.Duration
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	now       func() time.Time
}

// CodeGCResult reports one sweep.
type CodeGCResult struct {
	Cutoff         time.Time `json:"cutoff"`
	CandidateCount int       `json:"candidate_count"`
	DeletedCount   int       `json:"deleted_count"`
	SkippedCount   int       `json:"skipped_count"`
	FailedCount    int       `json:"failed_count"`
	ReclaimedBytes int64     `json:"reclaimed_bytes"`
	DryRun         bool      `json:"dry_run"`
}

// NewStagedCodeCollector constructs a collector. Non-positive settings fall back to defaults.
func NewStagedCodeCollector(blobs store.CodeBlobStore, content blobstore.ContentStore, ttl, interval time.Duration, batchSize int, logger *slog.Logger) *StagedCodeCollector {
	if ttl <= 0 {
		ttl = DefaultStagingTTL
	}
	if interval <= 0 {
		interval = DefaultGCInterval
	}
	if batchSize <= 0 {
		batchSize = defaultCodeGCBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StagedCodeCollector{
		blobs:     blobs,
		content:   content,
		ttl:       ttl,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger.With("component", "staged_code_gc"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// TTL returns the retention window for staged code.
func (c *StagedCodeCollector) TTL() time.Duration { return c.ttl }

// Interval returns the time between sweeps.
func (c *StagedCodeCollector) Interval() time.Duration { return c.interval }

// Sweep deletes every staged blob uploaded before now minus the TTL.
//
// Each deletion re-checks the staged flag, so a blob claimed after it was
// listed is skipped. Bytes are removed only after the metadata row is gone.
func (c *StagedCodeCollector) Sweep(ctx context.Context, batchSize int, dryRun bool) (CodeGCResult, error) {
	if c == nil || c.blobs == nil || c.content == nil {
		return CodeGCResult{DryRun: dryRun}, internalError(fmt.Errorf("collector is not configured"))
	}
	cutoff := c.now().Add(-c.ttl)
	result := CodeGCResult{Cutoff: cutoff, DryRun: dryRun}
	if batchSize <= 0 {
		batchSize = c.batchSize
	}

	after := ""
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		candidates, err := c.blobs.ListExpiredStagedBlobs(ctx, cutoff, after, batchSize)
		if err != nil {
			return result, storeFailure(fmt.Errorf("list expired staged code: %w", err))
		}
		if len(candidates) == 0 {
			break
		}
		after = candidates[len(candidates)-1].ID
		result.CandidateCount += len(candidates)

		for _, blob := range candidates {
			if dryRun {
				result.ReclaimedBytes += blob.SizeBytes
				continue
			}
			deleted, err := c.blobs.DeleteStagedBlobBefore(ctx, blob.ID, cutoff)
			if err != nil {
				c.logger.Error("delete staged code", "code_id", blob.ID, "error", err)
				result.FailedCount++
				continue
			}
			if !deleted {
				result.SkippedCount++
				continue
			}
			if err := c.content.Delete(ctx, blob.ID); err != nil {
				c.logger.Error("delete staged code bytes", "code_id", blob.ID, "error", err)
				result.FailedCount++
				continue
			}
			result.DeletedCount++
			result.ReclaimedBytes += blob.SizeBytes
		}
	}

	c.logger.Info("staged code sweep complete",
		"cutoff", cutoff,
		"candidates", result.CandidateCount,
		"deleted", result.DeletedCount,
		"skipped", result.SkippedCount,
		"failed", result.FailedCount,
		"dry_run", dryRun,
	)
	return result, nil
}

// Run sweeps on every interval tick until ctx is done.
func (c *StagedCodeCollector) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.logger.Info("staged code collector started", "interval", c.interval, "ttl", c.ttl)
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("staged code collector stopped")
			return nil
		case <-ticker.C:
			if _, err := c.Sweep(ctx, 0, false); err != nil && ctx.Err() == nil {
				c.logger.Error("staged code sweep failed", "error", err)
			}
		}
	}
}
