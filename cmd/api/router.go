package main

import (
	"context"
	"net/http"
	"time"

	"bookvault/internal/book"
	"bookvault/internal/httpx"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type routerDeps struct {
	books       *book.HTTPHandler
	db          pinger
	jwtSecret   string
	registry    *prometheus.Registry
	rateLimiter *httpx.RateLimitMiddleware
	corsOrigins []string
	maxBodySize int64
}

func newRouter(d routerDeps) http.Handler {
	router := http.NewServeMux()

	router.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := d.db.Ping(ctx); err != nil {
			httpx.JSONError(w, http.StatusServiceUnavailable, "db not ready")
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	if d.registry != nil {
		router.Handle("GET /metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))
	}

	d.books.Register(router, httpx.AuthMiddleware(d.jwtSecret))

	middleware := []func(http.Handler) http.Handler{
		httpx.RequestIDMiddleware,
		httpx.AccessLogMiddleware,
		httpx.RecoveryMiddleware,
		httpx.SecurityHeadersMiddleware(false),
		httpx.CORSMiddleware(d.corsOrigins),
	}
	if d.rateLimiter != nil {
		middleware = append(middleware, d.rateLimiter.Middleware)
	}
	middleware = append(middleware, httpx.RequestSizeLimitMiddleware(d.maxBodySize))

	return httpx.Chain(router, middleware...)
}
