package api

import (
    "net/http"

    "github.com/go-chi/chi/v5"
    "github.com/go-chi/chi/v5/middleware"
    "github.com/prometheus/client_golang/prometheus/promhttp"

    "fieldcrm/internal/metrics"
)

// Routes builds the service router.
func (s *Server) Routes() http.Handler {
    r := chi.NewRouter()
    r.Use(withRequestID, s.observe, middleware.Recoverer, s.cors)

    // Operational
    r.Get("/", s.IndexHandler)
    r.Get("/healthz", s.HealthHandler)
    r.Get("/readyz", s.ReadyHandler)
    r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
    r.Get("/debug/info", s.DebugJSON)
    r.Get("/openapi.json", s.OpenAPIHandler)

    r.Route("/api", func(r chi.Router) {
        r.Use(s.authenticate, s.rateLimit)

        // Route planning and analytics
        r.Post("/route-planning", s.RoutePlanningHandler)
        r.Post("/route-planning/export", s.RouteExportHandler)
        r.Get("/dashboard", s.DashboardHandler)
        r.Get("/customer-analytics", s.CustomerAnalyticsHandler)
        r.Post("/distance", s.DistanceHandler)

        // Customers
        r.Get("/customers", s.ListCustomersHandler)
        r.Post("/customers", s.CreateCustomerHandler)
        r.Get("/customers/{id}", s.GetCustomerHandler)
        r.Put("/customers/{id}", s.UpdateCustomerHandler)
        r.Delete("/customers/{id}", s.DeleteCustomerHandler)

        // Interactions
        r.Get("/interactions", s.ListInteractionsHandler)
        r.Post("/interactions", s.CreateInteractionHandler)

        // Locations
        r.Get("/locations", s.ListLocationsHandler)
        r.Post("/locations", s.UpdateLocationHandler)
        r.Get("/locations/ws", s.LocationsWSHandler)
    })

    r.NotFound(func(w http.ResponseWriter, r *http.Request) {
        writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
    })
    r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
        writeProblem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "", r.URL.Path)
    })
    return r
}
