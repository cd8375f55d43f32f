package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"funcreg/internal/blobstore"
	"funcreg/internal/models"
	"funcreg/internal/store"
	"funcreg/internal/tracing"
)

const fallbackCodeMediaType = "application/octet-stream"

// CodeService stages uploaded code and serves it back.
type CodeService struct {
	blobs   store.CodeBlobStore
	content blobstore.ContentStore
	logger  *slog.Logger
	tracer  trace.Tracer
	now     func() time.Time

	allowedMediaTypes map[string]struct{}
}

// CodeContent is an open code payload.
type CodeContent struct {
	Reader    io.ReadCloser
	Filename  string
	MediaType string
	SizeBytes int64
}

// StageCodeInput describes one upload.
type StageCodeInput struct {
	Filename  string
	MediaType string
}

// NewCodeService constructs a CodeService.
func NewCodeService(blobs store.CodeBlobStore, content blobstore.ContentStore, logger *slog.Logger, tracer trace.Tracer) *CodeService {
	if logger == nil {
		logger = slog.Default()
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	return &CodeService{
		blobs:   blobs,
		content: content,
		logger:  logger.With("component", "code_service"),
		tracer:  tracer,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetAllowedMediaTypes restricts uploads to the given media types. An empty
// list allows everything.
func (s *CodeService) SetAllowedMediaTypes(mediaTypes []string) {
	normalized := map[string]struct{}{}
	for _, raw := range mediaTypes {
		mediaType, err := normalizeMediaType(raw)
		if err != nil || mediaType == "" {
			continue
		}
		normalized[mediaType] = struct{}{}
	}
	if len(normalized) == 0 {
		s.allowedMediaTypes = nil
		return
	}
	s.allowedMediaTypes = normalized
}

// StageCode writes r under a fresh id and records it as staged.
func (s *CodeService) StageCode(ctx context.Context, in StageCodeInput, r io.Reader) (_ models.StagedCode, err error) {
	var zero models.StagedCode
	if s == nil || s.blobs == nil || s.content == nil {
		return zero, internalError(fmt.Errorf("code service is not configured"))
	}
	if r == nil {
		return zero, notAcceptableCode(fmt.Errorf("file not provided"), ErrCodeMissingRequired)
	}

	mediaType, err := normalizeMediaType(in.MediaType)
	if err != nil {
		return zero, err
	}
	if mediaType == "" {
		mediaType = fallbackCodeMediaType
	}
	if err := s.validateAllowedMediaType(mediaType); err != nil {
		return zero, err
	}

	id := uuid.NewString()
	ctx, span := s.tracer.Start(ctx, "CodeService.StageCode", trace.WithAttributes(attribute.String("code.id", id)))
	defer func() { tracing.EndSpan(span, err) }()

	put, err := s.content.Put(ctx, id, r)
	if err != nil {
		return zero, blobFailure(fmt.Errorf("write code %s: %w", id, err))
	}

	blob := &models.CodeBlob{
		ID:         id,
		Filename:   strings.TrimSpace(in.Filename),
		MediaType:  mediaType,
		SHA256:     put.SHA256,
		SizeBytes:  put.SizeBytes,
		UploadedAt: s.now(),
	}
	if err := s.blobs.InsertStagedBlob(ctx, blob); err != nil {
		if delErr := s.content.Delete(ctx, id); delErr != nil {
			s.logger.Error("remove orphaned code bytes", "code_id", id, "error", delErr)
		}
		return zero, storeFailure(fmt.Errorf("record staged code %s: %w", id, err))
	}

	s.logger.Debug("code staged", "code_id", id, "size_bytes", put.SizeBytes, "media_type", mediaType)
	return models.StagedCode{ID: id}, nil
}

// OpenCode returns a reader for a staged or claimed payload.
func (s *CodeService) OpenCode(ctx context.Context, id string) (_ *CodeContent, err error) {
	if s == nil || s.blobs == nil || s.content == nil {
		return nil, internalError(fmt.Errorf("code service is not configured"))
	}
	ctx, span := s.tracer.Start(ctx, "CodeService.OpenCode", trace.WithAttributes(attribute.String("code.id", id)))
	defer func() { tracing.EndSpan(span, err) }()

	blob, err := s.blobs.GetBlob(ctx, id)
	if err != nil {
		return nil, storeFailure(err)
	}
	if blob == nil {
		return nil, codeNotFound(id)
	}

	rc, err := s.content.Open(ctx, id)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, codeNotFound(id)
		}
		return nil, blobFailure(err)
	}

	return &CodeContent{
		Reader:    rc,
		Filename:  blob.Filename,
		MediaType: blob.MediaType,
		SizeBytes: blob.SizeBytes,
	}, nil
}

// Claim binds a staged blob. It reports false when the blob does not exist
// or is already claimed, without saying which.
func (s *CodeService) Claim(ctx context.Context, id string) (bool, error) {
	ok, err := s.blobs.ClaimBlob(ctx, id)
	if err != nil {
		return false, storeFailure(fmt.Errorf("claim code %s: %w", id, err))
	}
	return ok, nil
}

// Release removes a blob's metadata and bytes. Releasing a missing blob is a no-op.
func (s *CodeService) Release(ctx context.Context, id string) error {
	if _, err := s.blobs.DeleteBlob(ctx, id); err != nil {
		return storeFailure(fmt.Errorf("delete code %s: %w", id, err))
	}
	if err := s.content.Delete(ctx, id); err != nil {
		return blobFailure(fmt.Errorf("delete code bytes %s: %w", id, err))
	}
	return nil
}

func (s *CodeService) validateAllowedMediaType(mediaType string) error {
	if len(s.allowedMediaTypes) == 0 {
		return nil
	}
	if _, ok := s.allowedMediaTypes[mediaType]; ok {
		return nil
	}
	return notAcceptableCode(fmt.Errorf("media type %s is not allowed", mediaType), ErrCodeInvalidMediaType)
}

func codeNotFound(id string) error {
	return notFoundCode(fmt.Errorf("there isn't a function code with the code_file_id %s", id), ErrCodeCodeNotFound)
}
