package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"funcreg/internal/blobstore"
	"funcreg/internal/cache"
	"funcreg/internal/config"
	"funcreg/internal/server"
	"funcreg/internal/store"
	"funcreg/internal/tracing"
)

const tracingShutdownTimeout = 5 * time.Second

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the funcreg API server and staged code collector",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}
			if cfg.DBPath == "" {
				return fmt.Errorf("db path is required")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg, slog.Default().With("component", "server"))
		},
	}
}

func runServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	addr, err := server.ListenAddr(cfg.APIURL)
	if err != nil {
		return err
	}

	logger.Info("opening database", "path", cfg.DBPath)
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	logger.Info("opening blob root", "path", cfg.BlobRoot)
	content, err := blobstore.NewLocalFS(cfg.BlobRoot)
	if err != nil {
		return err
	}

	provider, err := tracing.NewProvider(tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		Exporter:     cfg.Tracing.Exporter,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SampleRate:   cfg.Tracing.SampleRate,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), tracingShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown tracing", "error", err)
		}
	}()

	srv := server.New(server.Config{
		Addr:         addr,
		Store:        st,
		Content:      content,
		Cache:        cache.NewFunctionCache(cfg.Cache.TTL, logger),
		Logger:       logger,
		Tracer:       provider.Tracer(),
		DefaultOwner: cfg.DefaultOwner,
		DBPath:       cfg.DBPath,
		BlobRoot:     content.Root(),
		Code: server.CodeOptions{
			MaxUploadBytes:     cfg.Code.MaxUploadBytes,
			MultipartMaxMemory: cfg.Code.MultipartMaxMemory,
			AllowedMediaTypes:  cfg.Code.AllowedMediaTypes,
			StagingTTL:         cfg.Code.StagingTTL,
			GCInterval:         cfg.Code.GCInterval,
			GCBatchSize:        cfg.Code.GCBatchSize,
		},
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.ListenAndServe(gctx) })
	g.Go(func() error { return srv.Collector().Run(gctx) })
	return g.Wait()
}
