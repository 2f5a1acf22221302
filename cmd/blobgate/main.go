package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"blobgate/internal/auth"
	"blobgate/internal/cache"
	"blobgate/internal/config"
	"blobgate/internal/gateway"
	"blobgate/internal/storage"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

type objectStore interface {
	storage.ObjectStore
	io.Closer
}

func openStore(ctx context.Context, cfg config.Config) (objectStore, error) {
	switch cfg.StorageBackend {
	case config.StorageS3:
		store, err := storage.NewMinioStorage(ctx, storage.MinioOptions{
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			UseSSL:          cfg.S3UseSSL,
		})
		if err != nil {
			return nil, err
		}
		return nopCloser{store}, nil
	default:
		// Ensure data directory is absolute for easier debugging.
		absDataDir, err := filepath.Abs(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve data directory: %w", err)
		}

		if err := os.MkdirAll(absDataDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}

		return storage.NewLocalFileStorage(ctx, absDataDir)
	}
}

type nopCloser struct{ storage.ObjectStore }

func (nopCloser) Close() error { return nil }

// openCache returns nil when caching is disabled.
func openCache(ctx context.Context, cfg config.Config) (cache.ResponseCache, func(), error) {
	switch cfg.CacheBackend {
	case config.CacheRedis:
		rc, err := cache.NewRedisCache(cfg.RedisURL, "")
		if err != nil {
			return nil, nil, err
		}
		if err := rc.Ping(ctx); err != nil {
			_ = rc.Close()
			return nil, nil, fmt.Errorf("redis unreachable: %w", err)
		}
		return rc, func() { _ = rc.Close() }, nil
	case config.CacheMemory:
		return cache.NewMemoryCache(cfg.CacheSize, cfg.CacheTTL), func() {}, nil
	default:
		return nil, func() {}, nil
	}
}

func Run(ctx context.Context, args []string) error {

	cfg, err := config.Load(args)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	handler := log.NewWithOptions(os.Stdout, log.Options{
		Level:           cfg.LogLevel,
		TimeFormat:      time.RFC3339,
		ReportTimestamp: true,
		TimeFunction:    log.NowUTC,
		ReportCaller:    true,
	})

	slog.SetDefault(slog.New(handler))

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s storage: %w", cfg.StorageBackend, err)
	}
	defer store.Close()

	responseCache, closeCache, err := openCache(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s cache: %w", cfg.CacheBackend, err)
	}
	defer closeCache()

	opts := []gateway.ConfigOption{
		gateway.WithObjectStore(store),
		gateway.WithAuthEngine(auth.NewBasicAuthEngine(cfg.Username, cfg.Password)),
		gateway.WithPublicURL(cfg.PublicURL),
		gateway.WithTrustProxyHeaders(cfg.TrustProxyHeaders),
		gateway.WithMaxUploadSize(cfg.MaxUploadSize),
		gateway.WithTitle(cfg.Title),
	}
	if responseCache != nil {
		opts = append(opts, gateway.WithResponseCache(responseCache, cfg.CacheTTL))
	}

	server, err := gateway.NewServer(gateway.NewConfig(opts...))
	if err != nil {
		return fmt.Errorf("failed to create gateway server: %w", err)
	}

	router := server.Handler()

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           router,
		ReadHeaderTimeout: 20 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
	}

	httpsServer := &http.Server{
		TLSConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		Addr:              cfg.ListenHTTPS,
		Handler:           router,
		ReadHeaderTimeout: 20 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return errors.Join(httpServer.Shutdown(shutdownCtx), httpsServer.Shutdown(shutdownCtx))
	})

	eg.Go(func() error {
		if !cfg.HTTPSEnabled() {
			slog.Debug("Skipping HTTPS service because no certificate was provided")
			return nil
		}

		slog.Info("Starting blobgate HTTPS server", "addr", cfg.ListenHTTPS)
		err := httpsServer.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	eg.Go(func() error {
		slog.Info("Starting blobgate HTTP server", "addr", cfg.Listen)
		err := httpServer.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	slog.Info("blobgate started", "storage", cfg.StorageBackend, "cache", cfg.CacheBackend)
	return eg.Wait()

}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx, os.Args[1:]); err != nil {
		slog.Error("blobgate exited with error", "error", err)
		os.Exit(1)
	}
}
