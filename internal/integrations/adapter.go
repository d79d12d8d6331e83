package integrations

import "portgate/internal/model"

// ScheduleSource defines the minimal interface for vessel schedule feeds
// (port authority exports, shipping line manifests).
type ScheduleSource interface {
    Name() string
    FetchSchedules(since string) ([]model.VesselIn, error)
}
