package notify

import (
    "context"
    "fmt"

    "portgate/internal/model"
    "portgate/internal/store"
)

// Notifier records driver-facing messages. Delivery happens asynchronously
// in the Worker; Emit never blocks a request on an SMS gateway.
type Notifier struct {
    Store store.Store
}

func NewNotifier(s store.Store) *Notifier {
    return &Notifier{Store: s}
}

func (n *Notifier) Emit(ctx context.Context, driverID, permitID, message string) {
    if driverID == "" { return }
    _, _ = n.Store.CreateNotification(ctx, driverID, permitID, message)
}

// PermitHalted queues the standard halt notice for every permit the
// congestion responder touched.
func (n *Notifier) PermitHalted(ctx context.Context, permits []model.Permit) {
    for _, p := range permits {
        n.Emit(ctx, p.DriverID, p.ID, fmt.Sprintf("Permit %s halted due to port congestion. Await reinstatement or reschedule.", p.PermitCode))
    }
}

func (n *Notifier) PermitIssued(ctx context.Context, res model.AssignResult) {
    n.Emit(ctx, res.Driver.ID, res.PermitID, fmt.Sprintf("Permit %s approved for %s %s-%s.", res.PermitCode, res.Slot.Date, res.Slot.StartTime, res.Slot.EndTime))
}

func (n *Notifier) PermitReinstated(ctx context.Context, p model.Permit) {
    n.Emit(ctx, p.DriverID, p.ID, fmt.Sprintf("Permit %s reinstated.", p.PermitCode))
}
