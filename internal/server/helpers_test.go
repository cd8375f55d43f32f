package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"funcreg/internal/blobstore"
	"funcreg/internal/cache"
	"funcreg/internal/models"
	"funcreg/internal/store"
)

type testEnv struct {
	store     *store.Store
	content   *blobstore.LocalFS
	server    *Server
	code      *CodeService
	functions *FunctionService
	collector *StagedCodeCollector
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithCache(t, nil)
}

func newTestEnvWithCache(t *testing.T, fnCache *cache.FunctionCache) *testEnv {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "funcreg.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	content, err := blobstore.NewLocalFS(filepath.Join(dir, "blobs"))
	if err != nil {
		t.Fatalf("open blob root: %v", err)
	}

	srv := New(Config{
		Addr:     "127.0.0.1:0",
		Store:    st,
		Content:  content,
		Cache:    fnCache,
		Logger:   discardLogger(),
		DBPath:   filepath.Join(dir, "funcreg.db"),
		BlobRoot: content.Root(),
		Code: CodeOptions{
			StagingTTL: time.Hour,
			GCInterval: time.Hour,
		},
	})
	return &testEnv{
		store:     st,
		content:   content,
		server:    srv,
		code:      srv.code,
		functions: srv.functions,
		collector: srv.collector,
	}
}

func (e *testEnv) stage(t *testing.T, body string) string {
	t.Helper()
	staged, err := e.code.StageCode(context.Background(), StageCodeInput{
		Filename:  "main.py",
		MediaType: "text/x-python",
	}, strings.NewReader(body))
	if err != nil {
		t.Fatalf("stage code: %v", err)
	}
	return staged.ID
}

// stageAt stages code as if it had been uploaded at uploadedAt.
func (e *testEnv) stageAt(t *testing.T, body string, uploadedAt time.Time) string {
	t.Helper()
	prev := e.code.now
	e.code.now = func() time.Time { return uploadedAt }
	defer func() { e.code.now = prev }()
	return e.stage(t, body)
}

func (e *testEnv) create(t *testing.T, id, version, owner string, types ...string) models.Function {
	t.Helper()
	spec := models.FunctionSpec{ID: id, Version: version, Outputs: []string{"result"}}
	for _, typ := range types {
		spec.Types = append(spec.Types, models.FunctionType{Type: typ, BlobID: e.stage(t, id+"/"+version+"/"+typ)})
	}
	fn, err := e.functions.Create(context.Background(), spec, owner)
	if err != nil {
		t.Fatalf("create %s@%s: %v", id, version, err)
	}
	return fn
}

func (e *testEnv) blobState(t *testing.T, id string) (exists bool, staged bool) {
	t.Helper()
	blob, err := e.store.GetBlob(context.Background(), id)
	if err != nil {
		t.Fatalf("get blob %s: %v", id, err)
	}
	if blob == nil {
		return false, false
	}
	return true, blob.Staged
}

func (e *testEnv) bytesExist(t *testing.T, id string) bool {
	t.Helper()
	rc, err := e.content.Open(context.Background(), id)
	if errors.Is(err, blobstore.ErrNotFound) {
		return false
	}
	if err != nil {
		t.Fatalf("open bytes %s: %v", id, err)
	}
	rc.Close()
	return true
}

func requireStatus(t *testing.T, err error, status, code int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected status %d, got nil error", status)
	}
	if got := httpStatusFromError(err); got != status {
		t.Fatalf("expected status %d, got %d (%v)", status, got, err)
	}
	if code != 0 {
		if got := errorNumericCode(status, err); got != code {
			t.Fatalf("expected error_code %d, got %d (%v)", code, got, err)
		}
	}
}

func typeNames(fn models.Function) []string {
	names := make([]string, 0, len(fn.Types))
	for _, ft := range fn.Types {
		names = append(names, ft.Type)
	}
	return names
}

// hookedFunctionStore injects behaviour around selected FunctionStore calls.
type hookedFunctionStore struct {
	store.FunctionStore

	afterListRows func()
	deleteRow     func(call int) error
	deleteCalls   int
}

func (h *hookedFunctionStore) ListFunctionRows(ctx context.Context, functionID, version, owner string) ([]models.FunctionRow, error) {
	rows, err := h.FunctionStore.ListFunctionRows(ctx, functionID, version, owner)
	if hook := h.afterListRows; hook != nil {
		h.afterListRows = nil
		hook()
	}
	return rows, err
}

func (h *hookedFunctionStore) DeleteFunctionRow(ctx context.Context, recordID int64) (bool, error) {
	h.deleteCalls++
	if h.deleteRow != nil {
		if err := h.deleteRow(h.deleteCalls); err != nil {
			return false, err
		}
	}
	return h.FunctionStore.DeleteFunctionRow(ctx, recordID)
}
