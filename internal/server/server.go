package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"funcreg/internal/blobstore"
	"funcreg/internal/cache"
	"funcreg/internal/store"
)

const (
	allowRemoteEnvKey = "FUNCREG_ALLOW_REMOTE"
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 5 * time.Minute
	writeTimeout      = 5 * time.Minute
	idleTimeout       = 60 * time.Second
	shutdownTimeout   = 10 * time.Second

	DefaultOwner              = "admin"
	DefaultMaxUploadBytes     = int64(100 << 20)
	DefaultMultipartMaxMemory = int64(8 << 20)
)

// RegistryStore is everything the server needs from persistence.
type RegistryStore interface {
	store.CodeBlobStore
	store.FunctionStore
	Ping(ctx context.Context) error
	SchemaVersion(ctx context.Context) (int, error)
}

// CodeOptions tunes uploads and staged code collection.
type CodeOptions struct {
	MaxUploadBytes     int64
	MultipartMaxMemory int64
	AllowedMediaTypes  []string
	StagingTTL         time.Duration
	GCInterval         time.Duration
	GCBatchSize        int
}

// Config wires a Server.
type Config struct {
	Addr         string
	Store        RegistryStore
	Content      blobstore.ContentStore
	Cache        *cache.FunctionCache
	Logger       *slog.Logger
	Tracer       trace.Tracer
	DefaultOwner string
	DBPath       string
	BlobRoot     string
	Code         CodeOptions
}

// Server wraps HTTP handlers for the funcreg API.
type Server struct {
	addr         string
	store        RegistryStore
	functions    *FunctionService
	code         *CodeService
	collector    *StagedCodeCollector
	logger       *slog.Logger
	defaultOwner string
	dbPath       string
	blobRoot     string

	maxUploadBytes     int64
	multipartMaxMemory int64
}

// New creates a new server instance.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	owner := strings.TrimSpace(cfg.DefaultOwner)
	if owner == "" {
		owner = DefaultOwner
	}
	maxUpload := cfg.Code.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	maxMemory := cfg.Code.MultipartMaxMemory
	if maxMemory <= 0 {
		maxMemory = DefaultMultipartMaxMemory
	}

	code := NewCodeService(cfg.Store, cfg.Content, logger, cfg.Tracer)
	code.SetAllowedMediaTypes(cfg.Code.AllowedMediaTypes)

	return &Server{
		addr:               cfg.Addr,
		store:              cfg.Store,
		functions:          NewFunctionService(cfg.Store, code, cfg.Cache, logger, cfg.Tracer),
		code:               code,
		collector:          NewStagedCodeCollector(cfg.Store, cfg.Content, cfg.Code.StagingTTL, cfg.Code.GCInterval, cfg.Code.GCBatchSize, logger),
		logger:             logger,
		defaultOwner:       owner,
		dbPath:             cfg.DBPath,
		blobRoot:           cfg.BlobRoot,
		maxUploadBytes:     maxUpload,
		multipartMaxMemory: maxMemory,
	}
}

// Functions exposes the registry service to in-process consumers.
func (s *Server) Functions() FunctionReader { return s.functions }

// Collector returns the staged code collector.
func (s *Server) Collector() *StagedCodeCollector { return s.collector }

// Handler returns the routed handler with request logging.
func (s *Server) Handler() http.Handler {
	return s.withRequestLogging(s.routes())
}

// ListenAndServe serves HTTP until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.log().Info("starting server", "addr", s.addr)
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.log().Info("shutting down server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// ListenAddr converts a base API URL into a listen address.
func ListenAddr(apiURL string) (string, error) {
	if apiURL == "" {
		return "", fmt.Errorf("api url is required")
	}
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		host := u.Hostname()
		if !isAllowedListenHost(host) {
			return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
		}
		return u.Host, nil
	}

	host, _, err := net.SplitHostPort(apiURL)
	if err == nil && !isAllowedListenHost(host) {
		return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
	}

	return apiURL, nil
}

func isAllowedListenHost(host string) bool {
	if host == "" {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(allowRemoteEnvKey)), "true") {
		return true
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
