package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"funcreg/internal/models"
)

func TestHTTPTimeoutFromEnv(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "")
		if got := httpTimeoutFromEnv(); got != defaultHTTPTimeout {
			t.Fatalf("expected default timeout %v, got %v", defaultHTTPTimeout, got)
		}
	})

	t.Run("duration format", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "45s")
		if got := httpTimeoutFromEnv(); got != 45*time.Second {
			t.Fatalf("expected 45s timeout, got %v", got)
		}
	})

	t.Run("integer seconds", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "25")
		if got := httpTimeoutFromEnv(); got != 25*time.Second {
			t.Fatalf("expected 25s timeout, got %v", got)
		}
	})

	t.Run("invalid falls back", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "invalid")
		if got := httpTimeoutFromEnv(); got != defaultHTTPTimeout {
			t.Fatalf("expected default timeout %v, got %v", defaultHTTPTimeout, got)
		}
	})
}

func TestClientDecodesStructuredErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "function not found", Code: "not_found", ErrorCode: 2001})
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL).GetFunction(context.Background(), "f1", "", "")
	if !IsNotFound(err) {
		t.Fatalf("expected not found api error, got %v", err)
	}
	apiErr := err.(*APIError)
	if apiErr.ErrorCode != 2001 || apiErr.Code != "not_found" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestClientSendsOwnerAndQuery(t *testing.T) {
	var gotOwner, gotVersion, gotType string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOwner = r.Header.Get(OwnerHeader)
		gotVersion = r.URL.Query().Get("version")
		gotType = r.URL.Query().Get("type")
		_ = json.NewEncoder(w).Encode(models.DeleteResult{DeletedCount: 1})
	}))
	defer ts.Close()

	resp, err := NewClient(ts.URL).WithOwner("team-a").DeleteFunction(context.Background(), "f1", "1.0", "python")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if resp.DeletedCount != 1 {
		t.Fatalf("expected deletedCount 1, got %d", resp.DeletedCount)
	}
	if gotOwner != "team-a" || gotVersion != "1.0" || gotType != "python" {
		t.Fatalf("unexpected request: owner=%q version=%q type=%q", gotOwner, gotVersion, gotType)
	}
}

func TestClientUploadAndDownloadCode(t *testing.T) {
	var uploaded []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			file, header, err := r.FormFile(CodeFormField)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			defer file.Close()
			if header.Filename != "handler.py" {
				http.Error(w, "bad filename", http.StatusBadRequest)
				return
			}
			uploaded, _ = io.ReadAll(file)
			_ = json.NewEncoder(w).Encode(models.StagedCode{ID: "code-1"})
		case http.MethodGet:
			w.Header().Set("Content-Type", "text/x-python")
			w.Header().Set("Content-Disposition", `attachment; filename="handler.py"`)
			_, _ = w.Write(uploaded)
		}
	}))
	defer ts.Close()

	client := NewClient(ts.URL)
	staged, err := client.UploadCode(context.Background(), "handler.py", bytes.NewBufferString("print('hi')"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if staged.ID != "code-1" {
		t.Fatalf("expected id code-1, got %q", staged.ID)
	}

	var out bytes.Buffer
	meta, err := client.DownloadCode(context.Background(), staged.ID, &out)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if out.String() != "print('hi')" {
		t.Fatalf("unexpected content %q", out.String())
	}
	if meta.Filename != "handler.py" || meta.MediaType != "text/x-python" {
		t.Fatalf("unexpected download metadata: %+v", meta)
	}
}
