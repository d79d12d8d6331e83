package notify

import (
    "context"
    "log"
    "os"
    "strconv"
    "time"

    "portgate/internal/metrics"
    "portgate/internal/store"
)

// Worker drains pending notifications on a ticker. There is no SMS gateway
// wired in this deployment, so a send is a structured log line plus the
// SENT mark; the record keeps the audit trail either way.
type Worker struct {
    Store store.Store
    Stop  chan struct{}
    Batch int
}

func NewWorker(s store.Store) *Worker {
    batch := 50
    if v := os.Getenv("NOTIFY_BATCH"); v != "" { if n, err := strconv.Atoi(v); err == nil && n > 0 { batch = n } }
    return &Worker{Store: s, Stop: make(chan struct{}), Batch: batch}
}

func (w *Worker) Start() {
    go func() {
        ticker := time.NewTicker(1 * time.Second)
        defer ticker.Stop()
        for {
            select {
            case <-w.Stop:
                return
            case <-ticker.C:
                w.processOnce()
            }
        }
    }()
}

func (w *Worker) processOnce() {
    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    items, err := w.Store.FetchPendingNotifications(ctx, w.Batch)
    if err != nil || len(items) == 0 { return }
    for _, n := range items {
        log.Printf("notify driver=%s permit=%s msg=%q", n.DriverID, n.PermitID, n.Message)
        if err := w.Store.MarkNotificationSent(ctx, n.ID); err == nil {
            metrics.NotificationsSent.Inc()
        }
    }
}
