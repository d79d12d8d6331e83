package api

import (
    "context"
    "log"
    "os"
    "strings"

    "portgate/internal/auth"
    "portgate/internal/integrations"
    "portgate/internal/integrations/vesselcsv"
    "portgate/internal/notify"
    "portgate/internal/store"
)

type Server struct {
    Store   store.Store
    Notify  *notify.Notifier
    Auth    *auth.Verifier
    Broker  EventBroker
    Traffic *TrafficCache
}

// NewServer creates a Server. If DATABASE_URL is unset, uses in-memory store.
func NewServer() (*Server, error) {
    dsn := os.Getenv("DATABASE_URL")
    var s store.Store
    if strings.TrimSpace(dsn) == "" {
        s = store.NewMemory()
    } else {
        sp, err := store.NewPostgres(dsn)
        if err != nil {
            return nil, err
        }
        // Run migrations (dev helper)
        if os.Getenv("DB_MIGRATE") != "false" {
            _ = sp.MigrateDir("db/migrations")
        }
        s = sp
    }
    // Broker selection
    var broker EventBroker
    if os.Getenv("REDIS_URL") != "" {
        if rb, err := NewRedisBroker(); err == nil { broker = rb } else { broker = NewBroker() }
    } else {
        broker = NewBroker()
    }
    srv := &Server{
        Store:   s,
        Notify:  notify.NewNotifier(s),
        Auth:    auth.NewVerifierFromEnv(),
        Broker:  broker,
        Traffic: NewTrafficCache(),
    }
    if path := os.Getenv("VESSEL_SCHEDULE_FILE"); path != "" {
        srv.loadVesselSchedules(&vesselcsv.FileSource{Path: path})
    }
    return srv, nil
}

// loadVesselSchedules imports vessel arrivals from an external source at startup.
func (s *Server) loadVesselSchedules(src integrations.ScheduleSource) {
    rows, err := src.FetchSchedules(os.Getenv("VESSEL_SCHEDULE_SINCE"))
    if err != nil {
        log.Printf("vessel import %s: %v", src.Name(), err)
        return
    }
    n := 0
    for _, in := range rows {
        if _, err := s.Store.CreateVessel(context.Background(), in); err != nil { continue }
        n++
    }
    if n > 0 { log.Printf("vessel import %s: loaded %d schedules", src.Name(), n) }
}

// NewNotifyWorker creates the background worker that drains pending
// driver notifications.
func (s *Server) NewNotifyWorker() *notify.Worker {
    return notify.NewWorker(s.Store)
}
