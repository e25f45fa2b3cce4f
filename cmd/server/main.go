package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"canteen/backend/internal/blob"
	"canteen/backend/internal/cache"
	"canteen/backend/internal/config"
	"canteen/backend/internal/httpapi"
	"canteen/backend/internal/logger"
	"canteen/backend/internal/metrics"
	"canteen/backend/internal/profit"
	"canteen/backend/internal/service"
	"canteen/backend/internal/store"
	"canteen/backend/internal/store/memory"
	"canteen/backend/internal/store/sqlstore"
	"canteen/backend/internal/tracing"
)

const (
	serviceName    = "canteen-backend"
	serviceVersion = "1.0.0"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
	}

	cfg := config.Load()
	logger.Init(serviceName, cfg.IsDevelopment(), cfg.LogLevel)
	log := logger.Logger

	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid security configuration")
	}
	policy, err := profit.ParseAggregatePolicy(cfg.MonthlyAggregateExpenditure)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid MONTHLY_AGGREGATE_EXPENDITURE")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 3)

	tp, err := tracing.InitTracer(ctx, serviceName, serviceVersion, cfg.JaegerEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise tracing")
	}

	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("database unavailable and DATABASE_URL is set; refusing to start with in-memory fallback")
	}
	if closeRepo != nil {
		closers = append(closers, closeRepo)
	}

	blobs, blobHandler, err := openBlobStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.BlobBackend).Msg("blob store unavailable")
	}

	urlCache := cache.URLCache(cache.NoopURLCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisURLCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, report links will not be cached")
		} else {
			urlCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Info().Str("addr", cfg.RedisAddr).Msg("cache: redis")
		}
	} else {
		log.Info().Msg("cache: noop")
	}

	m := metrics.New()
	engine := profit.NewEngine(repo, policy)
	svc := service.New(repo, engine, blobs, urlCache, service.Options{
		PresignTTL: cfg.PresignTTL(),
		HTTPClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		Metrics: m,
	})
	auth := httpapi.NewAuthManager(ctx, cfg.AuthSecret, cfg.AccessTokenTTL(), repo)
	api := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		Metrics:        m,
		BlobHandler:    blobHandler,
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           otelhttp.NewHandler(api.Handler(), "canteen-http"),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Address()).Str("policy", string(engine.Policy())).Msg("canteen backend listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Error().Err(err).Msg("close error")
		}
	}
	if err := tracing.Shutdown(shutdownCtx, tp); err != nil {
		log.Error().Err(err).Msg("tracer shutdown error")
	}

	log.Info().Msg("server stopped")
}

// openRepository picks the SQL store when DATABASE_URL is set and the seeded
// in-memory store otherwise.
func openRepository(ctx context.Context, cfg config.Config) (store.Repository, func() error, error) {
	if cfg.DatabaseURL == "" {
		logger.Logger.Info().Msg("repository: in-memory")
		return memory.NewSeeded(), nil, nil
	}

	db, err := sqlstore.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	logger.Logger.Info().Msg("repository: sql")
	return db, db.Close, nil
}

// openBlobStore returns the report store and, for the disk backend, the
// handler that serves its signed links.
func openBlobStore(ctx context.Context, cfg config.Config) (blob.Store, http.Handler, error) {
	switch cfg.BlobBackend {
	case config.BlobBackendS3:
		s3Store, err := blob.NewS3Store(ctx, blob.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			UsePathStyle:    cfg.S3UsePathStyle,
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Logger.Info().Str("bucket", cfg.S3Bucket).Msg("blob store: s3")
		return s3Store, nil, nil
	case config.BlobBackendDisk:
		disk, err := blob.NewDiskStore(cfg.BlobDiskRoot, cfg.PublicBaseURL, cfg.BlobSigningSecret)
		if err != nil {
			return nil, nil, err
		}
		logger.Logger.Info().Str("root", cfg.BlobDiskRoot).Msg("blob store: disk")
		return disk, disk.Handler(), nil
	default:
		return nil, nil, fmt.Errorf("unknown BLOB_BACKEND %q", cfg.BlobBackend)
	}
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	switch cfg.BlobBackend {
	case config.BlobBackendDisk:
		if len(cfg.BlobSigningSecret) < 32 {
			return fmt.Errorf("BLOB_SIGNING_SECRET must be set and at least 32 characters for the disk blob backend")
		}
		if cfg.BlobSigningSecret == cfg.AuthSecret {
			return fmt.Errorf("BLOB_SIGNING_SECRET must differ from AUTH_SECRET")
		}
	case config.BlobBackendS3:
		if cfg.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET must be set for the s3 blob backend")
		}
	default:
		return fmt.Errorf("BLOB_BACKEND must be %q or %q", config.BlobBackendDisk, config.BlobBackendS3)
	}
	return nil
}
