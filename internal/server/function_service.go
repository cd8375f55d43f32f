package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"funcreg/internal/cache"
	"funcreg/internal/models"
	"funcreg/internal/store"
	"funcreg/internal/tracing"
)

// FunctionReader resolves function versions for read-only callers.
type FunctionReader interface {
	Get(ctx context.Context, functionID, owner, version, typ string) (models.Function, error)
	Versions(ctx context.Context, functionID, owner string) (models.FunctionVersions, error)
	Find(ctx context.Context, filter FindFunctionsInput) (models.FunctionList, error)
}

// FindFunctionsInput selects one listing page.
type FindFunctionsInput struct {
	IDPartial string
	Limit     int
	Offset    int
}

// FunctionService registers, reconciles and resolves function versions.
//
// Operations that touch several rows are not transactional. A failure part
// way through leaves the rows already written in place and reports the error.
type FunctionService struct {
	store  store.FunctionStore
	code   *CodeService
	cache  *cache.FunctionCache
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

var _ FunctionReader = (*FunctionService)(nil)

// NewFunctionService constructs a FunctionService. fnCache may be nil.
func NewFunctionService(fnStore store.FunctionStore, code *CodeService, fnCache *cache.FunctionCache, logger *slog.Logger, tracer trace.Tracer) *FunctionService {
	if logger == nil {
		logger = slog.Default()
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	return &FunctionService{
		store:  fnStore,
		code:   code,
		cache:  fnCache,
		logger: logger.With("component", "function_service"),
		tracer: tracer,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create registers a new function version and claims every referenced blob.
func (s *FunctionService) Create(ctx context.Context, spec models.FunctionSpec, owner string) (_ models.Function, err error) {
	var zero models.Function
	owner, err = requireOwner(owner)
	if err != nil {
		return zero, err
	}
	spec, err = normalizeSpec(spec)
	if err != nil {
		return zero, err
	}

	ctx, span := s.tracer.Start(ctx, "FunctionService.Create", trace.WithAttributes(
		attribute.String("function.id", spec.ID),
		attribute.String("function.version", spec.Version),
		attribute.String("function.owner", owner),
	))
	defer func() { tracing.EndSpan(span, err) }()
	defer s.cache.InvalidateFunction(owner, spec.ID)

	exists, err := s.store.FunctionVersionExists(ctx, spec.ID, spec.Version, owner)
	if err != nil {
		return zero, s.storeErr("create", err)
	}
	if exists {
		return zero, functionExists(spec.ID, spec.Version, owner)
	}

	rows := make([]models.FunctionRow, 0, len(spec.Types))
	for _, ft := range spec.Types {
		row, err := s.addType(ctx, spec.ID, spec.Version, owner, ft, spec.Outputs)
		if err != nil {
			return zero, err
		}
		rows = append(rows, *row)
	}

	fn := functionView(rows)
	fn.Outputs = spec.Outputs
	s.logger.Info("function created", "function_id", spec.ID, "version", spec.Version, "owner", owner, "types", len(rows))
	return fn, nil
}

// Update reconciles the stored types of one version with the requested set.
//
// Requested types are applied in order before stored types missing from the
// request are removed, so a rejected claim leaves the old types in place.
func (s *FunctionService) Update(ctx context.Context, functionID, version string, types []models.FunctionType, outputs []string, owner string) (_ models.Function, err error) {
	var zero models.Function
	owner, err = requireOwner(owner)
	if err != nil {
		return zero, err
	}
	spec, err := normalizeSpec(models.FunctionSpec{ID: functionID, Version: version, Types: types, Outputs: outputs})
	if err != nil {
		return zero, err
	}

	ctx, span := s.tracer.Start(ctx, "FunctionService.Update", trace.WithAttributes(
		attribute.String("function.id", spec.ID),
		attribute.String("function.version", spec.Version),
		attribute.String("function.owner", owner),
	))
	defer func() { tracing.EndSpan(span, err) }()
	defer s.cache.InvalidateFunction(owner, spec.ID)

	stored, err := s.store.ListFunctionRows(ctx, spec.ID, spec.Version, owner)
	if err != nil {
		return zero, s.storeErr("update", err)
	}
	if len(stored) == 0 {
		return zero, versionNotFound(spec.ID, spec.Version)
	}

	byType := make(map[string]models.FunctionRow, len(stored))
	for _, row := range stored {
		byType[row.Type] = row
	}

	requested := make(map[string]struct{}, len(spec.Types))
	for _, ft := range spec.Types {
		requested[ft.Type] = struct{}{}
		current, ok := byType[ft.Type]
		switch {
		case !ok:
			if _, err := s.addType(ctx, spec.ID, spec.Version, owner, ft, spec.Outputs); err != nil {
				return zero, err
			}
		case current.BlobID == ft.BlobID:
			if err := s.store.UpdateFunctionRowOutputs(ctx, current.RecordID, spec.Outputs, s.now()); err != nil {
				return zero, s.storeErr("update", err)
			}
		default:
			if err := s.replaceBlob(ctx, current, ft.BlobID, spec.Outputs); err != nil {
				return zero, err
			}
		}
	}

	for _, row := range stored {
		if _, keep := requested[row.Type]; keep {
			continue
		}
		if _, err := s.removeRow(ctx, row); err != nil {
			return zero, err
		}
	}

	rows, err := s.store.ListFunctionRows(ctx, spec.ID, spec.Version, owner)
	if err != nil {
		return zero, s.storeErr("update", err)
	}
	fn := functionView(rows)
	fn.Outputs = spec.Outputs
	s.logger.Info("function updated", "function_id", spec.ID, "version", spec.Version, "owner", owner, "types", len(rows))
	return fn, nil
}

// Delete removes one type of one version, every type of one version, or
// every version, depending on which selectors are set. Each removed row
// releases its blob first.
func (s *FunctionService) Delete(ctx context.Context, functionID, owner, version, typ string) (_ models.DeleteResult, err error) {
	var result models.DeleteResult
	owner, err = requireOwner(owner)
	if err != nil {
		return result, err
	}
	if typ != "" && version == "" {
		return result, notAcceptableCode(fmt.Errorf("version is required when type is given"), ErrCodeMissingRequired)
	}

	ctx, span := s.tracer.Start(ctx, "FunctionService.Delete", trace.WithAttributes(
		attribute.String("function.id", functionID),
		attribute.String("function.version", version),
		attribute.String("function.type", typ),
		attribute.String("function.owner", owner),
	))
	defer func() {
		span.SetAttributes(attribute.Int("function.deleted_count", result.DeletedCount))
		tracing.EndSpan(span, err)
	}()
	defer s.cache.InvalidateFunction(owner, functionID)

	var rows []models.FunctionRow
	switch {
	case typ != "":
		row, err := s.store.GetFunctionRow(ctx, functionID, version, typ, owner)
		if err != nil {
			return result, s.storeErr("delete", err)
		}
		if row == nil {
			return result, typeNotFound(functionID, version, typ)
		}
		rows = []models.FunctionRow{*row}
	case version != "":
		rows, err = s.store.ListFunctionRows(ctx, functionID, version, owner)
		if err != nil {
			return result, s.storeErr("delete", err)
		}
		if len(rows) == 0 {
			return result, versionNotFound(functionID, version)
		}
	default:
		rows, err = s.store.ListAllFunctionRows(ctx, functionID, owner)
		if err != nil {
			return result, s.storeErr("delete", err)
		}
		if len(rows) == 0 {
			return result, functionNotFound(functionID)
		}
	}

	for _, row := range rows {
		deleted, err := s.removeRow(ctx, row)
		if err != nil {
			return result, err
		}
		if deleted {
			result.DeletedCount++
		}
	}

	s.logger.Info("function deleted", "function_id", functionID, "version", version, "type", typ, "owner", owner, "deleted", result.DeletedCount)
	return result, nil
}

// Get resolves one version, the latest when version is empty, optionally
// narrowed to a single type.
func (s *FunctionService) Get(ctx context.Context, functionID, owner, version, typ string) (_ models.Function, err error) {
	var zero models.Function
	owner, err = requireOwner(owner)
	if err != nil {
		return zero, err
	}
	if fn, ok := s.cache.Get(owner, functionID, version, typ); ok {
		return fn, nil
	}
	generation := s.cache.Generation(owner, functionID)

	ctx, span := s.tracer.Start(ctx, "FunctionService.Get", trace.WithAttributes(
		attribute.String("function.id", functionID),
		attribute.String("function.version", version),
		attribute.String("function.type", typ),
	))
	defer func() { tracing.EndSpan(span, err) }()

	resolved := version
	if resolved == "" {
		latest, ok, err := s.store.LatestFunctionVersion(ctx, functionID, owner)
		if err != nil {
			return zero, s.storeErr("get", err)
		}
		if !ok {
			return zero, functionNotFound(functionID)
		}
		resolved = latest
	}

	var rows []models.FunctionRow
	if typ != "" {
		row, err := s.store.GetFunctionRow(ctx, functionID, resolved, typ, owner)
		if err != nil {
			return zero, s.storeErr("get", err)
		}
		if row == nil {
			return zero, typeNotFound(functionID, resolved, typ)
		}
		rows = []models.FunctionRow{*row}
	} else {
		rows, err = s.store.ListFunctionRows(ctx, functionID, resolved, owner)
		if err != nil {
			return zero, s.storeErr("get", err)
		}
		if len(rows) == 0 {
			return zero, versionNotFound(functionID, resolved)
		}
	}

	fn := models.FunctionFromRows(rows)
	s.cache.SetIfCurrent(owner, functionID, version, typ, generation, fn)
	return fn, nil
}

// Versions lists the distinct versions of one function, newest first.
func (s *FunctionService) Versions(ctx context.Context, functionID, owner string) (models.FunctionVersions, error) {
	owner, err := requireOwner(owner)
	if err != nil {
		return models.FunctionVersions{}, err
	}
	versions, err := s.store.ListFunctionVersions(ctx, functionID, owner)
	if err != nil {
		return models.FunctionVersions{}, s.storeErr("versions", err)
	}
	if len(versions) == 0 {
		return models.FunctionVersions{}, functionNotFound(functionID)
	}
	return models.FunctionVersions{ID: functionID, Versions: versions}, nil
}

// Find pages over distinct function ids. Each item shows the latest version
// of its function; a function never spans two pages.
func (s *FunctionService) Find(ctx context.Context, filter FindFunctionsInput) (_ models.FunctionList, err error) {
	limit := models.ClampListLimit(filter.Limit)
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	list := models.FunctionList{Items: []models.Function{}, Limit: limit, Offset: offset}
	partial := strings.TrimSpace(filter.IDPartial)

	ctx, span := s.tracer.Start(ctx, "FunctionService.Find", trace.WithAttributes(
		attribute.String("function.id_partial", partial),
		attribute.Int("page.limit", limit),
		attribute.Int("page.offset", offset),
	))
	defer func() { tracing.EndSpan(span, err) }()

	total, err := s.store.CountFunctionIDs(ctx, partial)
	if err != nil {
		return list, s.storeErr("find", err)
	}
	list.Total = total

	ids, err := s.store.ListFunctionIDs(ctx, store.FunctionListFilter{IDPartial: partial, Limit: limit, Offset: offset})
	if err != nil {
		return list, s.storeErr("find", err)
	}
	if len(ids) == 0 {
		return list, nil
	}

	grouped, err := s.store.ListLatestFunctionRows(ctx, ids)
	if err != nil {
		return list, s.storeErr("find", err)
	}
	for _, id := range ids {
		rows := grouped[id]
		if len(rows) == 0 {
			continue
		}
		list.Items = append(list.Items, models.FunctionFromRows(rows))
	}
	return list, nil
}

func (s *FunctionService) addType(ctx context.Context, functionID, version, owner string, ft models.FunctionType, outputs []string) (*models.FunctionRow, error) {
	if err := s.claim(ctx, ft.BlobID); err != nil {
		return nil, err
	}

	now := s.now()
	row := &models.FunctionRow{
		FunctionID: functionID,
		Version:    version,
		Type:       ft.Type,
		Owner:      owner,
		BlobID:     ft.BlobID,
		Outputs:    outputs,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.InsertFunctionRow(ctx, row); err != nil {
		s.releaseOrphan(ctx, ft.BlobID)
		if errors.Is(err, store.ErrDuplicateFunctionRow) {
			return nil, conflictCode(fmt.Errorf("function %s version %s already has a %s type", functionID, version, ft.Type), ErrCodeConflict)
		}
		return nil, s.storeErr("insert", err)
	}
	return row, nil
}

func (s *FunctionService) replaceBlob(ctx context.Context, current models.FunctionRow, blobID string, outputs []string) error {
	if err := s.claim(ctx, blobID); err != nil {
		return err
	}
	if err := s.store.UpdateFunctionRowBlob(ctx, current.RecordID, blobID, outputs, s.now()); err != nil {
		s.releaseOrphan(ctx, blobID)
		return s.storeErr("update", err)
	}
	if err := s.code.Release(ctx, current.BlobID); err != nil {
		s.logger.Error("release replaced code", "code_id", current.BlobID, "function_id", current.FunctionID, "error", err)
		return err
	}
	return nil
}

func (s *FunctionService) removeRow(ctx context.Context, row models.FunctionRow) (bool, error) {
	if err := s.code.Release(ctx, row.BlobID); err != nil {
		s.logger.Error("release function code", "code_id", row.BlobID, "function_id", row.FunctionID, "error", err)
		return false, err
	}
	deleted, err := s.store.DeleteFunctionRow(ctx, row.RecordID)
	if err != nil {
		return false, s.storeErr("delete", err)
	}
	return deleted, nil
}

func (s *FunctionService) claim(ctx context.Context, blobID string) error {
	ok, err := s.code.Claim(ctx, blobID)
	if err != nil {
		return err
	}
	if !ok {
		return notAcceptableCode(fmt.Errorf("there is no staged function code with the id %s", blobID), ErrCodeCodeNotStaged)
	}
	return nil
}

// releaseOrphan drops a blob that was claimed but never attached to a row.
func (s *FunctionService) releaseOrphan(ctx context.Context, blobID string) {
	if err := s.code.Release(ctx, blobID); err != nil {
		s.logger.Error("release orphaned code", "code_id", blobID, "error", err)
	}
}

func (s *FunctionService) storeErr(op string, err error) error {
	s.logger.Error("function store failure", "op", op, "error", err)
	return storeFailure(err)
}

// functionView builds the response view where timestamps come from the most
// recently written row.
func functionView(rows []models.FunctionRow) models.Function {
	fn := models.FunctionFromRows(rows)
	for _, row := range rows {
		if row.UpdatedAt.After(fn.UpdatedAt) {
			fn.CreatedAt = row.CreatedAt
			fn.UpdatedAt = row.UpdatedAt
		}
	}
	return fn
}

func requireOwner(owner string) (string, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return "", notAcceptableCode(fmt.Errorf("owner is required"), ErrCodeMissingRequired)
	}
	return owner, nil
}

func functionExists(functionID, version, owner string) error {
	return conflictCode(fmt.Errorf("a function with the id: %s, version: %s and owner: %s already exists", functionID, version, owner), ErrCodeFunctionExists)
}

func functionNotFound(functionID string) error {
	return notFoundCode(fmt.Errorf("function %s not found", functionID), ErrCodeFunctionNotFound)
}

func versionNotFound(functionID, version string) error {
	return notFoundCode(fmt.Errorf("function %s version %s not found", functionID, version), ErrCodeFunctionVersionNotFound)
}

func typeNotFound(functionID, version, typ string) error {
	return notFoundCode(fmt.Errorf("function %s version %s has no %s type", functionID, version, typ), ErrCodeFunctionTypeNotFound)
}
