/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, the middleware stack and the route table that
  connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:      Unique ID per request, echoed in the request log
  2. RequestLogger:  One zap line per request
  3. Recoverer:      Panic recovery (500 instead of crash)
  4. CORS:           Origins from config (server.allowed_origins)

ROUTE GROUPS:
  /api/houses/*         Houses, apartments, tenants of a house
  /api/tenants/*        Tenant (lease) records
  /api/settlements/*    Settlements, invoices, water readings, results, export
  /api/meters           Water meter registry
  /api/scenarios/*      Demo scenarios
  /api/reset            Database reset (dev only)
  /metrics              Prometheus
  /healthz              Liveness and database ping

SECURITY NOTE:
  No authentication middleware. The server is meant to run next to the web
  app, which owns user sessions.

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Request logging
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new router with all routes configured. An empty
// allowedOrigins list permits any origin.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/houses", func(r chi.Router) {
			r.Get("/", h.ListHouses)
			r.Post("/", h.CreateHouse)
			r.Get("/{id}", h.GetHouse)
			r.Get("/{id}/apartments", h.ListApartments)
			r.Post("/{id}/apartments", h.CreateApartment)
			r.Get("/{id}/tenants", h.ListHouseTenants)
		})

		r.Route("/tenants", func(r chi.Router) {
			r.Post("/", h.CreateTenant)
			r.Get("/{id}", h.GetTenant)
		})

		r.Route("/settlements", func(r chi.Router) {
			r.Get("/", h.ListSettlements)
			r.Post("/", h.CreateSettlement)
			r.Get("/{id}", h.GetSettlement)
			r.Get("/{id}/invoices", h.ListInvoices)
			r.Post("/{id}/invoices", h.CreateInvoice)
			r.Get("/{id}/water-readings", h.ListWaterReadings)
			r.Post("/{id}/water-readings", h.SaveWaterReading)
			r.Post("/{id}/water-readings/import", h.ImportWaterReadings)
			r.Get("/{id}/results", h.GetResults)
			r.Get("/{id}/export", h.ExportDocument)
		})

		r.Route("/meters", func(r chi.Router) {
			r.Get("/", h.ListMeters)
			r.Post("/", h.CreateMeter)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})

		r.Post("/reset", h.ResetDatabase)
	})

	return r
}
