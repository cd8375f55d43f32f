package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"funcreg/internal/models"
)

const codeBlobColumns = "id, filename, media_type, sha256, size_bytes, staged, uploaded_at"

// InsertStagedBlob records a freshly uploaded payload in the staged state.
func (s *Store) InsertStagedBlob(ctx context.Context, blob *models.CodeBlob) error {
	if blob == nil {
		return fmt.Errorf("blob is required")
	}
	blob.ID = strings.TrimSpace(blob.ID)
	if blob.ID == "" {
		return fmt.Errorf("blob id is required")
	}
	if blob.SizeBytes < 0 {
		return fmt.Errorf("size_bytes must be >= 0")
	}
	if blob.UploadedAt.IsZero() {
		blob.UploadedAt = time.Now().UTC()
	}
	blob.Staged = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO code_blobs (id, filename, media_type, sha256, size_bytes, staged, uploaded_at)
		VALUES (?, ?, ?, ?, ?, 1, ?)
	`,
		blob.ID,
		nullIfEmpty(strings.TrimSpace(blob.Filename)),
		nullIfEmpty(strings.TrimSpace(blob.MediaType)),
		blob.SHA256,
		blob.SizeBytes,
		formatTime(blob.UploadedAt),
	)
	return err
}

// GetBlob returns one code blob by id, or nil when absent.
func (s *Store) GetBlob(ctx context.Context, id string) (*models.CodeBlob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+codeBlobColumns+` FROM code_blobs WHERE id = ?`, id)
	return scanCodeBlob(row)
}

// ClaimBlob flips a blob from staged to claimed.
//
// The check and the flip are one statement, so among concurrent callers for
// the same id exactly one observes true. A missing blob and an already
// claimed blob both report false.
func (s *Store) ClaimBlob(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE code_blobs SET staged = 0 WHERE id = ? AND staged = 1", id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// DeleteBlob removes one blob row regardless of state.
// It reports false when there was nothing to delete.
func (s *Store) DeleteBlob(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM code_blobs WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListExpiredStagedBlobs returns staged blobs uploaded before cutoff with id
// greater than after, ordered by id.
func (s *Store) ListExpiredStagedBlobs(ctx context.Context, cutoff time.Time, after string, limit int) ([]models.CodeBlob, error) {
	query := `SELECT ` + codeBlobColumns + ` FROM code_blobs
		WHERE staged = 1 AND uploaded_at < ? AND id > ?
		ORDER BY id ASC`
	args := []any{formatTime(cutoff), after}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	blobs := []models.CodeBlob{}
	for rows.Next() {
		blob, err := scanCodeBlob(rows)
		if err != nil {
			return nil, err
		}
		if blob != nil {
			blobs = append(blobs, *blob)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return blobs, nil
}

// DeleteStagedBlobBefore deletes a blob only if it is still staged and was
// uploaded before cutoff. The state is re-checked by the delete itself, so a
// claim that lands between listing and deleting wins.
func (s *Store) DeleteStagedBlobBefore(ctx context.Context, id string, cutoff time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM code_blobs WHERE id = ? AND staged = 1 AND uploaded_at < ?",
		id, formatTime(cutoff),
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// CodeBlobStats counts blobs by state.
func (s *Store) CodeBlobStats(ctx context.Context) (staged int, claimed int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN staged = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN staged = 0 THEN 1 ELSE 0 END), 0)
		FROM code_blobs`).Scan(&staged, &claimed)
	return staged, claimed, err
}

func scanCodeBlob(scanner rowScanner) (*models.CodeBlob, error) {
	blob := models.CodeBlob{}
	var filename, mediaType sql.NullString
	var staged int
	var uploadedAt string

	err := scanner.Scan(&blob.ID, &filename, &mediaType, &blob.SHA256, &blob.SizeBytes, &staged, &uploadedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	blob.Filename = filename.String
	blob.MediaType = mediaType.String
	blob.Staged = staged == 1

	parsed, err := parseTime(uploadedAt)
	if err != nil {
		return nil, err
	}
	blob.UploadedAt = parsed

	return &blob, nil
}
