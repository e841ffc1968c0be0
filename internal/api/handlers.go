package api

import (
    "context"
    "errors"
    "fmt"
    "math"
    "net/http"
    "time"

    "fieldcrm/internal/geo"
    "fieldcrm/internal/metrics"
    "fieldcrm/internal/model"
    "fieldcrm/internal/routing"
)

// planRoute runs the planner and records the outcome.
func (s *Server) planRoute(w http.ResponseWriter, r *http.Request) (model.RoutePlan, error) {
    var req model.RoutePlanRequest
    if err := decodeJSON(w, r, &req); err != nil { return model.RoutePlan{}, err }
    plan, err := s.Planner.Plan(r.Context(), callerFrom(r.Context()), req.CustomerIDs)
    switch {
    case err == nil:
        metrics.RoutePlans.WithLabelValues("ok").Inc()
        metrics.RouteLegs.Observe(float64(len(plan.Route)))
    case errors.Is(err, routing.ErrNoLocationAvailable):
        metrics.RoutePlans.WithLabelValues("no_location").Inc()
    case errors.Is(err, routing.ErrNoCustomersSelected):
        metrics.RoutePlans.WithLabelValues("no_customers").Inc()
    default:
        metrics.RoutePlans.WithLabelValues("error").Inc()
    }
    return plan, err
}

// RoutePlanningHandler handles POST /api/route-planning
func (s *Server) RoutePlanningHandler(w http.ResponseWriter, r *http.Request) {
    plan, err := s.planRoute(w, r)
    if err != nil { s.writeError(w, r, err); return }
    writeJSON(w, http.StatusOK, plan)
}

// DashboardHandler handles GET /api/dashboard
func (s *Server) DashboardHandler(w http.ResponseWriter, r *http.Request) {
    st, err := s.Analytics.Dashboard(r.Context(), callerFrom(r.Context()))
    if err != nil { s.writeError(w, r, err); return }
    writeJSON(w, http.StatusOK, st)
}

// CustomerAnalyticsHandler handles GET /api/customer-analytics
func (s *Server) CustomerAnalyticsHandler(w http.ResponseWriter, r *http.Request) {
    st, err := s.Analytics.Analytics(r.Context(), callerFrom(r.Context()))
    if err != nil { s.writeError(w, r, err); return }
    writeJSON(w, http.StatusOK, st)
}

// DistanceHandler handles POST /api/distance. All four coordinates are required.
func (s *Server) DistanceHandler(w http.ResponseWriter, r *http.Request) {
    var req model.DistanceRequest
    if err := decodeJSON(w, r, &req); err != nil { s.writeError(w, r, err); return }
    if req.Lat1 == nil || req.Lng1 == nil || req.Lat2 == nil || req.Lng2 == nil {
        s.writeError(w, r, fmt.Errorf("%w: lat1, lng1, lat2 and lng2 are required", geo.ErrInvalidCoordinate))
        return
    }
    a := geo.Point{Lat: *req.Lat1, Lng: *req.Lng1}
    b := geo.Point{Lat: *req.Lat2, Lng: *req.Lng2}
    km, mi, err := s.Estimator.Measure(a, b)
    if err != nil { s.writeError(w, r, err); return }
    minutes := int(math.Round(s.Estimator.TravelMinutes(km)))
    writeJSON(w, http.StatusOK, model.DistanceResult{
        DistanceKm:           geo.Round(km, 2),
        DistanceMi:           geo.Round(mi, 2),
        EstimatedTimeMinutes: minutes,
        EstimatedTimeText:    geo.FormatMinutes(minutes),
    })
}

// IndexHandler handles GET /
func (s *Server) IndexHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, http.StatusOK, map[string]string{"message": "CRM Backend is running. Use API endpoints under /api."})
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyHandler checks backing services (Postgres, Redis) when configured.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
    ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
    defer cancel()
    for _, check := range s.checks {
        if err := check(ctx); err != nil {
            writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
            return
        }
    }
    writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
