package metrics

import (
    "sync"
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
)

var (
    // Registry is the dedicated Prometheus registry for the API
    Registry = prometheus.NewRegistry()
    // HTTPRequests counts requests by method, route pattern, and status
    HTTPRequests = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
        []string{"method", "path", "status"},
    )
    // HTTPDuration records request durations in seconds
    HTTPDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
        []string{"method", "path", "status"},
    )

    // RoutePlans counts route planning attempts by outcome (ok, no_location, no_customers, error)
    RoutePlans = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "route_plans_total", Help: "Route plans by outcome."},
        []string{"outcome"},
    )
    // RouteLegs tracks how many legs successful plans contain
    RouteLegs = prometheus.NewHistogram(
        prometheus.HistogramOpts{Name: "route_plan_legs", Help: "Legs per successful route plan.", Buckets: []float64{0, 1, 2, 5, 10, 20, 50}},
    )
    // LocationPings counts accepted location reports
    LocationPings = prometheus.NewCounter(
        prometheus.CounterOpts{Name: "location_pings_total", Help: "Accepted location pings."},
    )
)

// RegisterDefault registers collectors to the API registry.
func RegisterDefault() {
    regOnce.Do(func(){
        Registry.MustRegister(HTTPRequests)
        Registry.MustRegister(HTTPDuration)
        Registry.MustRegister(RoutePlans)
        Registry.MustRegister(RouteLegs)
        Registry.MustRegister(LocationPings)
        // Go/process collectors on our registry
        Registry.MustRegister(collectors.NewGoCollector())
        Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
    })
}

var regOnce sync.Once
