package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bookvault/internal/book"
	"bookvault/internal/config"
	"bookvault/internal/httpx"
	"bookvault/internal/metrics"
	"bookvault/internal/platform/objectstore"
	"bookvault/internal/upload"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	config.LoadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool := mustOpenDB(ctx, cfg.DBDSN)
	defer dbPool.Close()

	s3Client, err := objectstore.NewClient(ctx, objectstore.ClientConfig{
		Region:    cfg.AssetRegion,
		Endpoint:  cfg.AssetEndpoint,
		AccessKey: cfg.AssetAccessKey,
		SecretKey: cfg.AssetSecretKey,
		Timeout:   cfg.AssetTimeout,
	})
	if err != nil {
		log.Fatalf("cannot create asset store client: %v", err)
	}

	var registry *prometheus.Registry
	var assetMetrics metrics.AssetStore
	if cfg.MetricsEnabled {
		registry = prometheus.NewRegistry()
		assetMetrics = metrics.NewAssetStore(registry)
	}

	assets := objectstore.New(s3Client, objectstore.Config{
		Bucket:        cfg.AssetBucket,
		PublicBaseURL: cfg.AssetPublicBaseURL,
	}, assetMetrics)

	bookService := book.NewService(book.NewPostgresRepo(dbPool, cfg.DBTimeout), assets)
	bookHandler := book.NewHTTPHandler(bookService, upload.NewStager(cfg.UploadTempDir, cfg.UploadMaxSize))

	rateLimiter := httpx.NewRateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go rateLimiter.Run(ctx)

	handler := newRouter(routerDeps{
		books:       bookHandler,
		db:          dbPool,
		jwtSecret:   cfg.JWTSecret,
		registry:    registry,
		rateLimiter: rateLimiter,
		corsOrigins: cfg.CORSAllowedOrigins,
		maxBodySize: requestBodyLimit(cfg.UploadMaxSize),
	})

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// requestBodyLimit allows both files at the per-file limit plus form fields.
func requestBodyLimit(perFile int64) int64 {
	return 2*perFile + 1<<20
}

func mustOpenDB(ctx context.Context, dsn string) *pgxpool.Pool {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatalf("cannot create db pool: %v", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		log.Fatalf("cannot ping database (%s): %v", redactDSN(dsn), err)
	}
	log.Println("database connection OK")
	return pool
}

func redactDSN(dsn string) string {
	const marker = "://"
	start := strings.Index(dsn, marker)
	if start < 0 {
		return dsn
	}
	start += len(marker)
	end := strings.Index(dsn[start:], "@")
	if end < 0 {
		return dsn
	}
	return dsn[:start] + "***" + dsn[start+end:]
}
