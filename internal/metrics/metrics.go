package metrics

import (
    "sync"
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
)

var (
    // Registry is the dedicated Prometheus registry for the API
    Registry = prometheus.NewRegistry()
    // HTTPRequests counts requests by method, path, and status
    HTTPRequests = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
        []string{"method", "path", "status"},
    )
    // HTTPDuration records request durations in seconds
    HTTPDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
        []string{"method", "path", "status"},
    )

    // PermitsIssued counts issued permits by priority tier
    PermitsIssued = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "permits_issued_total", Help: "Permits issued by priority."},
        []string{"priority"},
    )
    // PermitsHalted counts permits halted by congestion events
    PermitsHalted = prometheus.NewCounter(
        prometheus.CounterOpts{Name: "permits_halted_total", Help: "Permits halted by congestion responses."},
    )
    // PermitsProtected counts permits spared during congestion events
    PermitsProtected = prometheus.NewCounter(
        prometheus.CounterOpts{Name: "permits_protected_total", Help: "Protected-tier permits left active during congestion responses."},
    )
    // CongestionEvents counts CONGESTED camera reports
    CongestionEvents = prometheus.NewCounter(
        prometheus.CounterOpts{Name: "congestion_events_total", Help: "Traffic updates that reported CONGESTED."},
    )
    // NotificationsSent counts drained notification records
    NotificationsSent = prometheus.NewCounter(
        prometheus.CounterOpts{Name: "notifications_sent_total", Help: "Driver notifications marked sent."},
    )
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
    regOnce.Do(func(){
        Registry.MustRegister(HTTPRequests)
        Registry.MustRegister(HTTPDuration)
        Registry.MustRegister(PermitsIssued)
        Registry.MustRegister(PermitsHalted)
        Registry.MustRegister(PermitsProtected)
        Registry.MustRegister(CongestionEvents)
        Registry.MustRegister(NotificationsSent)
        // Go/process collectors on our registry
        Registry.MustRegister(collectors.NewGoCollector())
        Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
    })
}

var regOnce sync.Once
