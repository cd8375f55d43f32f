package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"funcreg/internal/models"
)

// ErrDuplicateFunctionRow is returned when a (function, version, type, owner)
// row already exists or the blob is already bound to another row.
var ErrDuplicateFunctionRow = errors.New("function row already exists")

const functionRowColumns = "record_id, function_id, version, type, owner, blob_id, outputs_json, created_at, updated_at"

// FunctionListFilter selects one page of distinct function ids.
type FunctionListFilter struct {
	IDPartial string
	Limit     int
	Offset    int
}

// FunctionVersionExists reports whether any row exists for the version.
func (s *Store) FunctionVersionExists(ctx context.Context, functionID, version, owner string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM function_rows WHERE function_id = ? AND version = ? AND owner = ? LIMIT 1",
		functionID, version, owner,
	).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// InsertFunctionRow inserts one row and fills in its RecordID.
func (s *Store) InsertFunctionRow(ctx context.Context, row *models.FunctionRow) error {
	if row == nil {
		return fmt.Errorf("function row is required")
	}
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	outputs, err := outputsToJSON(row.Outputs)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO function_rows (function_id, version, type, owner, blob_id, outputs_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		row.FunctionID,
		row.Version,
		row.Type,
		row.Owner,
		row.BlobID,
		outputs,
		formatTime(row.CreatedAt),
		formatTime(row.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s/%s/%s", ErrDuplicateFunctionRow, row.FunctionID, row.Version, row.Type)
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	row.RecordID = id
	return nil
}

// GetFunctionRow returns one row, or nil when absent.
func (s *Store) GetFunctionRow(ctx context.Context, functionID, version, typ, owner string) (*models.FunctionRow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+functionRowColumns+` FROM function_rows
		WHERE function_id = ? AND version = ? AND type = ? AND owner = ?`,
		functionID, version, typ, owner,
	)
	return scanFunctionRow(row)
}

// ListFunctionRows lists every type row of one version in insertion order.
func (s *Store) ListFunctionRows(ctx context.Context, functionID, version, owner string) ([]models.FunctionRow, error) {
	return s.queryFunctionRows(ctx,
		`SELECT `+functionRowColumns+` FROM function_rows
		WHERE function_id = ? AND version = ? AND owner = ?
		ORDER BY record_id ASC`,
		functionID, version, owner,
	)
}

// ListAllFunctionRows lists the rows of every version of one function.
func (s *Store) ListAllFunctionRows(ctx context.Context, functionID, owner string) ([]models.FunctionRow, error) {
	return s.queryFunctionRows(ctx,
		`SELECT `+functionRowColumns+` FROM function_rows
		WHERE function_id = ? AND owner = ?
		ORDER BY record_id ASC`,
		functionID, owner,
	)
}

// UpdateFunctionRowBlob rebinds a row to a different blob.
func (s *Store) UpdateFunctionRowBlob(ctx context.Context, recordID int64, blobID string, outputs []string, updatedAt time.Time) error {
	encoded, err := outputsToJSON(outputs)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE function_rows SET blob_id = ?, outputs_json = ?, updated_at = ? WHERE record_id = ?",
		blobID, encoded, formatTime(updatedAt), recordID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: blob %s", ErrDuplicateFunctionRow, blobID)
		}
		return err
	}
	return requireOneRow(res, recordID)
}

// UpdateFunctionRowOutputs refreshes the outputs of a row.
func (s *Store) UpdateFunctionRowOutputs(ctx context.Context, recordID int64, outputs []string, updatedAt time.Time) error {
	encoded, err := outputsToJSON(outputs)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE function_rows SET outputs_json = ?, updated_at = ? WHERE record_id = ?",
		encoded, formatTime(updatedAt), recordID,
	)
	if err != nil {
		return err
	}
	return requireOneRow(res, recordID)
}

// DeleteFunctionRow removes one row. It reports false when the row was already gone.
func (s *Store) DeleteFunctionRow(ctx context.Context, recordID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM function_rows WHERE record_id = ?", recordID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// LatestFunctionVersion returns the greatest version string stored for a function.
// Versions compare as byte strings, so "10.0" sorts before "9.0".
func (s *Store) LatestFunctionVersion(ctx context.Context, functionID, owner string) (string, bool, error) {
	var version string
	err := s.db.QueryRowContext(ctx,
		"SELECT version FROM function_rows WHERE function_id = ? AND owner = ? ORDER BY version DESC, record_id DESC LIMIT 1",
		functionID, owner,
	).Scan(&version)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return version, true, nil
}

// ListFunctionVersions returns the distinct versions of a function, newest first.
func (s *Store) ListFunctionVersions(ctx context.Context, functionID, owner string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT version FROM function_rows WHERE function_id = ? AND owner = ? ORDER BY version DESC",
		functionID, owner,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	versions := []string{}
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		versions = append(versions, version)
	}
	return versions, rows.Err()
}

// ListFunctionIDs returns one page of distinct function ids in ascending id
// order, so later writes never shift functions between pages.
func (s *Store) ListFunctionIDs(ctx context.Context, filter FunctionListFilter) ([]string, error) {
	where, args := functionIDFilter(filter.IDPartial)
	query := `SELECT function_id FROM function_rows` + where + `
		GROUP BY function_id
		ORDER BY function_id ASC`
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	} else if filter.Offset > 0 {
		query += " LIMIT -1 OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountFunctionIDs counts distinct function ids matching the optional filter.
func (s *Store) CountFunctionIDs(ctx context.Context, idPartial string) (int, error) {
	where, args := functionIDFilter(idPartial)
	var total int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT function_id) FROM function_rows`+where, args...).Scan(&total)
	return total, err
}

// ListLatestFunctionRows returns one representative row per (function, type)
// within the latest version of each requested function. When several rows
// share a key, the most recently inserted one wins.
func (s *Store) ListLatestFunctionRows(ctx context.Context, functionIDs []string) (map[string][]models.FunctionRow, error) {
	out := make(map[string][]models.FunctionRow, len(functionIDs))
	if len(functionIDs) == 0 {
		return out, nil
	}

	args := make([]any, 0, len(functionIDs))
	for _, id := range functionIDs {
		args = append(args, id)
	}
	// The latest version is chosen per function id across every owner, the
	// same id-only grouping the listing pages by.
	rows, err := s.queryFunctionRows(ctx,
		`SELECT `+functionRowColumns+` FROM function_rows r
		WHERE r.function_id IN (`+placeholders(len(functionIDs))+`)
		  AND r.version = (SELECT MAX(v.version) FROM function_rows v WHERE v.function_id = r.function_id)
		ORDER BY r.record_id DESC`,
		args...,
	)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		key := row.FunctionID + "\x00" + row.Type
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out[row.FunctionID] = append(out[row.FunctionID], row)
	}
	// Rows were collected newest first; present types in insertion order.
	for id, group := range out {
		for i, j := 0, len(group)-1; i < j; i, j = i+1, j-1 {
			group[i], group[j] = group[j], group[i]
		}
		out[id] = group
	}
	return out, nil
}

func functionIDFilter(idPartial string) (string, []any) {
	idPartial = strings.TrimSpace(idPartial)
	if idPartial == "" {
		return "", nil
	}
	return " WHERE instr(lower(function_id), lower(?)) > 0", []any{idPartial}
}

func (s *Store) queryFunctionRows(ctx context.Context, query string, args ...any) ([]models.FunctionRow, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.FunctionRow{}
	for rows.Next() {
		row, err := scanFunctionRow(rows)
		if err != nil {
			return nil, err
		}
		if row != nil {
			out = append(out, *row)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func requireOneRow(res sql.Result, recordID int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected != 1 {
		return fmt.Errorf("function row %d not found", recordID)
	}
	return nil
}

func scanFunctionRow(scanner rowScanner) (*models.FunctionRow, error) {
	row := models.FunctionRow{}
	var outputsJSON, createdAt, updatedAt string

	err := scanner.Scan(
		&row.RecordID,
		&row.FunctionID,
		&row.Version,
		&row.Type,
		&row.Owner,
		&row.BlobID,
		&outputsJSON,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	outputs, err := outputsFromJSON(outputsJSON)
	if err != nil {
		return nil, err
	}
	row.Outputs = outputs

	parsedCreated, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	parsedUpdated, err := parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	row.CreatedAt = parsedCreated
	row.UpdatedAt = parsedUpdated

	return &row, nil
}
