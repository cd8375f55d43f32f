package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
)

func TestLocalFSPutOpenDelete(t *testing.T) {
	fs, err := NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("new local fs: %v", err)
	}
	ctx := context.Background()

	first, err := fs.Put(ctx, "0b2c4d", bytes.NewBufferString("hello"))
	if err != nil {
		t.Fatalf("put first: %v", err)
	}
	if first.SHA256 == "" || first.SizeBytes != 5 {
		t.Fatalf("unexpected put result: %#v", first)
	}

	second, err := fs.Put(ctx, "9f8e7d", bytes.NewBufferString("hello"))
	if err != nil {
		t.Fatalf("put second: %v", err)
	}
	if first.SHA256 != second.SHA256 {
		t.Fatalf("expected equal digests for equal content: first=%#v second=%#v", first, second)
	}

	if err := fs.Delete(ctx, "0b2c4d"); err != nil {
		t.Fatalf("delete first: %v", err)
	}

	rc, err := fs.Open(ctx, "9f8e7d")
	if err != nil {
		t.Fatalf("open second after deleting first: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("expected hello, got %q", string(data))
	}

	if _, err := fs.Open(ctx, "0b2c4d"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := fs.Delete(ctx, "0b2c4d"); err != nil {
		t.Fatalf("delete missing should be noop: %v", err)
	}
}

func TestLocalFSRejectsInvalidKeys(t *testing.T) {
	fs, err := NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("new local fs: %v", err)
	}

	for _, key := range []string{"", "../escape", "a/b", "with space"} {
		if _, err := fs.Put(context.Background(), key, bytes.NewBufferString("x")); err == nil {
			t.Fatalf("expected error for key %q", key)
		}
	}
}
