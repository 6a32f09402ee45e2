// Package server exposes property eligibility and the deforestation catalog
// over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/laurakrama/DAG2024/internal/eligibility"
	"github.com/laurakrama/DAG2024/internal/loader"
	"github.com/laurakrama/DAG2024/internal/style"
)

const (
	contentTypeJSON    = "application/json"
	contentTypeGeoJSON = "application/geo+json"
)

// Cache route names.
const (
	routeEligibility = "eligibility"
	routeGeoJSON     = "eligibility.geojson"
)

// WorkspaceSource yields the loaded layers and event catalog.
// *loader.Lazy satisfies it.
type WorkspaceSource interface {
	Get(ctx context.Context) (*loader.Workspace, error)
}

// Options configures limits and CORS.
type Options struct {
	RateLimit      float64
	Burst          int
	ComputeTimeout time.Duration
	AllowedOrigins []string
	Cache          *ResponseCache
}

// Server holds the HTTP handlers.
type Server struct {
	workspace WorkspaceSource
	service   *eligibility.Service
	styles    *style.Config
	opts      Options
	limiter   *rate.Limiter
}

// New returns a server. A nil style config uses the defaults.
func New(workspace WorkspaceSource, service *eligibility.Service, styles *style.Config, opts Options) *Server {
	if styles == nil {
		styles = style.Default()
	}
	if opts.ComputeTimeout <= 0 {
		opts.ComputeTimeout = 30 * time.Second
	}
	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return &Server{
		workspace: workspace,
		service:   service,
		styles:    styles,
		opts:      opts,
		limiter:   limiter,
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Group(func(api chi.Router) {
		if s.limiter != nil {
			api.Use(rateLimit(s.limiter))
		}

		api.Get("/styles", s.handleStyles)
		api.Get("/properties", s.handleProperties)
		api.Route("/properties/{key}", func(pr chi.Router) {
			pr.Get("/eligibility", s.handleEligibility)
			pr.Get("/eligibility.geojson", s.handleEligibilityGeoJSON)
		})
		api.Get("/events", s.handleEvents)
		api.Get("/events/summary", s.handleEventsSummary)
		api.Get("/municipality", s.handleMunicipality)
		api.Get("/cache/stats", s.handleCacheStats)
	})

	return r
}

func (s *Server) allowedOrigins() []string {
	if len(s.opts.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return s.opts.AllowedOrigins
}

// rateLimit rejects requests once the shared token bucket is empty.
func rateLimit(l *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				w.Header().Set("Retry-After", "1")
				writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("server: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
