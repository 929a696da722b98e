package http

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/riandyrn/otelchi"

	"github.com/neomorfeo/boxsync/internal/logging"
)

const syncPath = "/api/v1/sync"

// RouterConfig controls the HTTP surface around the API.
type RouterConfig struct {
	ServiceName string
	Version     string

	// SyncRateLimit caps manual sync triggers per client IP within
	// SyncRateWindow. Zero disables the limit.
	SyncRateLimit  int
	SyncRateWindow time.Duration

	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

// NewRouter builds the chi router with tracing, request logging, the huma
// API and the metrics endpoint.
func NewRouter(s Services, cfg RouterConfig) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(otelchi.Middleware(cfg.ServiceName, otelchi.WithChiRoutes(router)))
	router.Use(accessLog)
	router.Use(limitSyncTrigger(cfg.SyncRateLimit, cfg.SyncRateWindow))

	if cfg.Metrics != nil {
		router.Handle("/metrics", cfg.Metrics)
	}

	api := humachi.New(router, huma.DefaultConfig(cfg.ServiceName, cfg.Version))
	RegisterTenants(api, s)
	RegisterSync(api, s)

	return router
}

// limitSyncTrigger rate limits POST /api/v1/sync and passes every other
// request through.
func limitSyncTrigger(limit int, window time.Duration) func(http.Handler) http.Handler {
	if limit <= 0 || window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	limiter := httprate.Limit(limit, window, httprate.WithKeyFuncs(httprate.KeyByIP))

	return func(next http.Handler) http.Handler {
		limited := limiter(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost && r.URL.Path == syncPath {
				limited.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		log := logging.Ctx(r.Context())
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}
