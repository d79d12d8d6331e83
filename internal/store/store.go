package store

import (
    "context"
    "errors"

    "portgate/internal/model"
)

// Store is the persistence interface used by the API server. Implementations
// must make the slot capacity check-and-increment and the driver claim
// atomic: two concurrent issuances may never both succeed past capacity, and
// two concurrent assignments may never both claim one driver.
type Store interface {
    // Organizations
    CreateOrganization(ctx context.Context, in model.OrganizationIn) (model.Organization, error)
    GetOrganization(ctx context.Context, id string) (model.Organization, error)
    ListOrganizations(ctx context.Context, cursor string, limit int) ([]model.Organization, string, error)

    // Drivers
    CreateDriver(ctx context.Context, in model.DriverIn) (model.Driver, error)
    GetDriver(ctx context.Context, id string) (model.Driver, error)
    ListDrivers(ctx context.Context, orgID string, availableOnly bool, cursor string, limit int) ([]model.Driver, string, error)
    PatchDriver(ctx context.Context, id string, patch model.DriverPatch) (model.Driver, error)

    // Jobs
    CreateJob(ctx context.Context, in model.JobIn) (model.Job, error)
    GetJob(ctx context.Context, id string) (model.Job, error)
    ListJobs(ctx context.Context, orgID, status, cursor string, limit int) ([]model.Job, string, error)
    StartJob(ctx context.Context, id string) (model.Job, error)
    CompleteJob(ctx context.Context, id string) (model.Job, error)
    CancelJob(ctx context.Context, id string) (model.Job, error)

    // Time slots
    CreateSlot(ctx context.Context, in model.SlotIn) (model.TimeSlot, error)
    GetSlot(ctx context.Context, id string) (model.TimeSlot, error)
    ListSlotsByDate(ctx context.Context, date string) ([]model.TimeSlot, error)
    CloseSlot(ctx context.Context, id string) (model.TimeSlot, error)

    // Allocation + issuance. AssignJob with an empty driverID picks the
    // first available active driver of the job's organization.
    AssignJob(ctx context.Context, jobID, driverID string) (model.AssignResult, error)
    BulkAssign(ctx context.Context) (model.BulkAssignResult, error)
    BookPermit(ctx context.Context, req model.BookRequest, tier model.Tier) (model.AssignResult, error)

    // Permits
    GetPermit(ctx context.Context, id string) (model.Permit, error)
    ListPermits(ctx context.Context, status, cursor string, limit int) ([]model.Permit, string, error)
    ReinstatePermit(ctx context.Context, id string) (model.Permit, error)
    ReschedulePermit(ctx context.Context, id, slotID string) (model.Permit, error)
    CancelPermit(ctx context.Context, id string) (model.Permit, error)
    CompletePermit(ctx context.Context, id string) (model.Permit, error)

    // Traffic telemetry (append-only) and the congestion responder.
    InsertTrafficUpdate(ctx context.Context, upd model.TrafficUpdate) error
    LatestTraffic(ctx context.Context, cameraID string) (model.TrafficUpdate, error)
    HaltByPriority(ctx context.Context) (halted []model.Permit, protected int, err error)

    // Vessel schedules
    CreateVessel(ctx context.Context, in model.VesselIn) (model.VesselSchedule, error)
    ListVessels(ctx context.Context, date string) ([]model.VesselSchedule, error)
    SetVesselStatus(ctx context.Context, id, status string) (model.VesselSchedule, error)

    // Notifications (write-once records; delivery is logged by the notifier)
    CreateNotification(ctx context.Context, driverID, permitID, message string) (model.Notification, error)
    ListNotifications(ctx context.Context, cursor string, limit int) ([]model.Notification, string, error)
    FetchPendingNotifications(ctx context.Context, limit int) ([]model.Notification, error)
    MarkNotificationSent(ctx context.Context, id string) error
}

var (
    ErrNotFound          = errors.New("not found")
    ErrDriverNotFound    = errors.New("driver not found")
    ErrDriverUnavailable = errors.New("driver unavailable")
    ErrNoDriverAvailable = errors.New("no available drivers")
    ErrNoSlotAvailable   = errors.New("no slot available")
    ErrSlotFull          = errors.New("slot full")
    ErrJobNotPending     = errors.New("job not pending")
    ErrNotAuthorized     = errors.New("organization not authorized for priority")
    ErrConflict          = errors.New("conflict")
    ErrDuplicatePhone    = errors.New("phone already registered")
)
