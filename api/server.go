/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind proxies
  3. Logger:     Access log as structured zap entries
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /health                 Liveness
  /metrics                Prometheus scrape (when enabled)
  /api/materials/*        Material catalog, stock, price preview, xlsx
  /api/products/*         Product catalog, assembly, sale, restore
  /api/records/*          Audit log search, export, deletion
  /api/statistics/*       Trend, top movers, summary
  /api/users/*            Accounts, xlsx import and export
  /api/login              Credential check
  /api/export             Every dataset in one workbook
  /api/scenarios/*        Demo catalogs

SEE ALSO:
  - handlers.go: Shared handler helpers
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Options configures the router around the handlers.
type Options struct {
	CORSOrigins []string
	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts Options) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(h.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", ActorHeader},
		ExposedHeaders: []string{"Content-Disposition"},
	}))

	r.Get("/health", h.Health)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/materials", func(r chi.Router) {
			r.Get("/", h.ListMaterials)
			r.Post("/", h.CreateMaterial)
			r.Post("/batch-delete", h.BatchDeleteMaterials)
			r.Post("/import", h.ImportMaterials)
			r.Get("/import-template", h.ImportTemplate)
			r.Get("/export", h.ExportMaterials)
			r.Get("/{id}", h.GetMaterial)
			r.Put("/{id}", h.UpdateMaterial)
			r.Delete("/{id}", h.DeleteMaterial)
			r.Get("/{id}/stock", h.MaterialStock)
			r.Post("/{id}/inbound", h.MaterialInbound)
			r.Post("/{id}/outbound", h.MaterialOutbound)
			r.Post("/{id}/price-impact", h.PriceImpact)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Post("/", h.CreateProduct)
			r.Post("/batch-delete", h.BatchDeleteProducts)
			r.Get("/export", h.ExportProducts)
			r.Get("/{id}", h.GetProduct)
			r.Put("/{id}", h.UpdateProduct)
			r.Delete("/{id}", h.DeleteProduct)
			r.Get("/{id}/stock", h.ProductStock)
			r.Post("/{id}/inbound", h.ProductInbound)
			r.Post("/{id}/outbound", h.ProductOutbound)
			r.Post("/{id}/restore", h.ProductRestore)
		})

		r.Route("/records", func(r chi.Router) {
			r.Get("/", h.ListRecords)
			r.Delete("/", h.ClearRecords)
			r.Post("/delete", h.DeleteRecords)
			r.Get("/export", h.ExportRecords)
		})

		r.Route("/statistics", func(r chi.Router) {
			r.Get("/trend", h.Trend)
			r.Get("/top", h.TopMovers)
			r.Get("/summary", h.Summary)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.ListUsers)
			r.Post("/", h.CreateUser)
			r.Post("/import", h.ImportUsers)
			r.Get("/export", h.ExportUsers)
			r.Put("/{id}", h.UpdateUser)
			r.Delete("/{id}", h.DeleteUser)
		})
		r.Post("/login", h.Login)
		r.Get("/export", h.ExportAll)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}

// accessLog writes one zap entry per request.
func accessLog(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)))
		})
	}
}
