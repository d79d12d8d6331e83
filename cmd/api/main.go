package main

import (
    "log"
    "net/http"
    "strconv"
    "time"

    "github.com/prometheus/client_golang/prometheus/promhttp"
    "golang.org/x/time/rate"

    "portgate/internal/api"
    "portgate/internal/config"
    "portgate/internal/metrics"
)

func main() {
    cfg := config.Load()

    srvDeps, err := api.NewServer()
    if err != nil {
        log.Fatalf("failed to init server: %v", err)
    }

    metrics.RegisterDefault()

    mux := http.NewServeMux()

    // Traffic telemetry + congestion responder
    mux.HandleFunc("/v1/traffic", srvDeps.TrafficHandler)
    mux.HandleFunc("/v1/traffic/stream", srvDeps.TrafficStreamHandler)
    mux.HandleFunc("/v1/events/ws", srvDeps.EventsWSHandler)

    // Jobs
    mux.HandleFunc("/v1/jobs", srvDeps.JobsHandler)
    mux.HandleFunc("/v1/jobs/", srvDeps.JobByIDHandler) // includes /assign, /auto-assign, /start, bulk-auto-assign

    // Permits + direct booking
    mux.HandleFunc("/v1/book", srvDeps.BookHandler)
    mux.HandleFunc("/v1/permits", srvDeps.PermitsHandler)
    mux.HandleFunc("/v1/permits/", srvDeps.PermitByIDHandler)

    // Slots
    mux.HandleFunc("/v1/slots", srvDeps.SlotsHandler)
    mux.HandleFunc("/v1/slots/", srvDeps.SlotByIDHandler)

    // Drivers + organizations
    mux.HandleFunc("/v1/drivers", srvDeps.DriversHandler)
    mux.HandleFunc("/v1/drivers/", srvDeps.DriverByIDHandler)
    mux.HandleFunc("/v1/organizations", srvDeps.OrgsHandler)
    mux.HandleFunc("/v1/organizations/", srvDeps.OrgByIDHandler)

    // Vessel schedules
    mux.HandleFunc("/v1/vessels", srvDeps.VesselsHandler)
    mux.HandleFunc("/v1/vessels/", srvDeps.VesselByIDHandler)
    mux.HandleFunc("/v1/admin/vessels/import", srvDeps.VesselImportHandler)

    // Notifications
    mux.HandleFunc("/v1/notifications", srvDeps.NotificationsHandler)

    // Health + observability
    mux.HandleFunc("/healthz", srvDeps.HealthHandler)
    mux.HandleFunc("/readyz", srvDeps.ReadyHandler)
    mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

    // Docs
    mux.HandleFunc("/openapi.yaml", srvDeps.OpenAPIHandler)
    mux.HandleFunc("/openapi.json", srvDeps.OpenAPIHandler)
    mux.HandleFunc("/docs", srvDeps.DocsHandler)
    mux.HandleFunc("/console", srvDeps.SwaggerHandler)
    mux.HandleFunc("/static/", srvDeps.StaticHandler)

    // Admin
    mux.HandleFunc("/v1/admin/debug", srvDeps.DebugJSON)

    addr := ":" + cfg.Port

    handler := logMiddleware(metricsMiddleware(rateLimitMiddleware(cfg, mux)))
    srv := &http.Server{
        Addr:              addr,
        Handler:           handler,
        ReadHeaderTimeout: 5 * time.Second,
    }

    log.Printf("API listening on %s", addr)
    // Start notification worker
    worker := srvDeps.NewNotifyWorker()
    worker.Start()
    if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
        log.Fatalf("server error: %v", err)
    }
}

func logMiddleware(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        next.ServeHTTP(w, r)
        dur := time.Since(start)
        log.Printf("%s %s %s %v", r.RemoteAddr, r.Method, r.URL.Path, dur)
    })
}

type statusRecorder struct {
    http.ResponseWriter
    status int
}

func (rec *statusRecorder) WriteHeader(code int) {
    rec.status = code
    rec.ResponseWriter.WriteHeader(code)
}

func metricsMiddleware(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        // Streaming endpoints have open-ended durations; skip the histogram.
        if r.URL.Path == "/v1/traffic/stream" || r.URL.Path == "/v1/events/ws" {
            next.ServeHTTP(w, r)
            return
        }
        rec := &statusRecorder{ResponseWriter: w, status: 200}
        start := time.Now()
        next.ServeHTTP(rec, r)
        code := strconv.Itoa(rec.status)
        metrics.HTTPRequests.WithLabelValues(r.Method, r.URL.Path, code).Inc()
        metrics.HTTPDuration.WithLabelValues(r.Method, r.URL.Path, code).Observe(time.Since(start).Seconds())
    })
}

func rateLimitMiddleware(cfg config.Config, next http.Handler) http.Handler {
    if cfg.RateRPS <= 0 {
        return next
    }
    limiter := rate.NewLimiter(rate.Limit(cfg.RateRPS), cfg.RateBurst)
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if !limiter.Allow() {
            http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
            return
        }
        next.ServeHTTP(w, r)
    })
}
