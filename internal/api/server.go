// Package api serves the read-only HTTP API over products, spec snapshots,
// runs and reports.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/laser-ci/internal/model"
	"github.com/sells-group/laser-ci/internal/monitoring"
	"github.com/sells-group/laser-ci/internal/store"
)

// Store is the read side of the store the API needs.
type Store interface {
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	ListProducts(ctx context.Context) ([]model.Product, error)
	FindProducts(ctx context.Context, filter store.ProductFilter) ([]model.Product, error)
	ListSpecRecords(ctx context.Context, productID string) ([]model.CanonicalSpecRecord, error)
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.PipelineRun, error)
	Ping(ctx context.Context) error
}

// Options configures the router.
type Options struct {
	BaselineVendor string
	ReportDays     int
	AllowedOrigins []string
	RequestTimeout time.Duration
	// Metrics may be nil.
	Metrics *monitoring.Metrics
	// Collector backs /api/monitoring/snapshot when set.
	Collector *monitoring.Collector
	// LookbackHours is the snapshot window.
	LookbackHours int
}

// Server holds handler dependencies.
type Server struct {
	store Store
	opts  Options
	now   func() time.Time
}

// NewServer creates a Server.
func NewServer(st Store, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.LookbackHours <= 0 {
		opts.LookbackHours = 24
	}
	return &Server{store: st, opts: opts, now: func() time.Time { return time.Now().UTC() }}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(s.observe)
	r.Use(chimiddleware.Timeout(s.opts.RequestTimeout))

	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", s.opts.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", s.listProducts)
		r.Route("/products/{id}", func(r chi.Router) {
			r.Get("/", s.getProduct)
			r.Get("/records", s.listRecords)
		})
		r.Get("/runs", s.listRuns)
		r.Get("/monitoring/snapshot", s.snapshot)
		r.Route("/reports", func(r chi.Router) {
			r.Get("/monthly", s.monthlyReport)
			r.Get("/benchmark", s.benchmarkReport)
		})
	})

	return r
}

// observe logs each request and counts it by route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.opts.Metrics.ObserveRequest(route, status)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", chimiddleware.GetReqID(r.Context())),
		)
	})
}
