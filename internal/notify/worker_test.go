package notify

import (
	"context"
	"sync"
	"testing"

	"portgate/internal/model"
	"portgate/internal/store"
)

type recordStore struct {
	*store.Memory
	mu   sync.Mutex
	sent []string
}

func (r *recordStore) MarkNotificationSent(ctx context.Context, id string) error {
	r.mu.Lock()
	r.sent = append(r.sent, id)
	r.mu.Unlock()
	return r.Memory.MarkNotificationSent(ctx, id)
}

func TestWorkerProcessOnce(t *testing.T) {
	rs := &recordStore{Memory: store.NewMemory()}
	org, _ := rs.CreateOrganization(context.Background(), model.OrganizationIn{Name: "T"})
	d, _ := rs.CreateDriver(context.Background(), model.DriverIn{OrgID: org.ID, Name: "D", Phone: "555-0100"})

	n := NewNotifier(rs)
	n.Emit(context.Background(), d.ID, "", "gate advisory")
	n.Emit(context.Background(), d.ID, "", "second advisory")

	w := &Worker{Store: rs, Stop: make(chan struct{}), Batch: 10}
	w.processOnce()

	if len(rs.sent) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(rs.sent))
	}
	pend, _ := rs.FetchPendingNotifications(context.Background(), 10)
	if len(pend) != 0 {
		t.Fatalf("queue should drain, %d left", len(pend))
	}
	// second pass is a no-op
	w.processOnce()
	if len(rs.sent) != 2 {
		t.Fatalf("resent already-sent notifications")
	}
}

func TestEmitIgnoresEmptyDriver(t *testing.T) {
	rs := &recordStore{Memory: store.NewMemory()}
	n := NewNotifier(rs)
	n.Emit(context.Background(), "", "", "orphan")
	pend, _ := rs.FetchPendingNotifications(context.Background(), 10)
	if len(pend) != 0 {
		t.Fatalf("unexpected pending: %d", len(pend))
	}
}
