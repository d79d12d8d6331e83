package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"portgate/internal/model"
)

func seedOrg(t *testing.T, m *Memory, priorities ...string) model.Organization {
	t.Helper()
	o, err := m.CreateOrganization(context.Background(), model.OrganizationIn{Name: "Harbor Freight Co", AuthorizedPriorities: priorities})
	if err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}
	return o
}

func seedDriver(t *testing.T, m *Memory, orgID, phone string) model.Driver {
	t.Helper()
	d, err := m.CreateDriver(context.Background(), model.DriverIn{OrgID: orgID, Name: "D", Phone: phone, VehiclePlate: "TRK-1"})
	if err != nil {
		t.Fatalf("CreateDriver: %v", err)
	}
	return d
}

func seedSlot(t *testing.T, m *Memory, date, start string, capacity int) model.TimeSlot {
	t.Helper()
	s, err := m.CreateSlot(context.Background(), model.SlotIn{Date: date, StartTime: start, EndTime: start, Capacity: capacity})
	if err != nil {
		t.Fatalf("CreateSlot: %v", err)
	}
	return s
}

func seedJob(t *testing.T, m *Memory, orgID, cargo, date, at string) model.Job {
	t.Helper()
	j, err := m.CreateJob(context.Background(), model.JobIn{OrgID: orgID, CargoType: cargo, PreferredDate: date, PreferredTime: at})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	return j
}

func TestCreateJobClassifiesAndAuthorizes(t *testing.T) {
	m := NewMemory()
	org := seedOrg(t, m)
	j := seedJob(t, m, org.ID, "MEDICAL", "2026-09-01", "08:00")
	if j.Priority != model.TierEmergency {
		t.Fatalf("MEDICAL should classify EMERGENCY, got %s", j.Priority)
	}
	if j.Status != model.JobPending {
		t.Fatalf("new job should be PENDING, got %s", j.Status)
	}

	restricted := seedOrg(t, m, "NORMAL", "LOW")
	if _, err := m.CreateJob(context.Background(), model.JobIn{OrgID: restricted.ID, CargoType: "HAZARDOUS", PreferredDate: "2026-09-01", PreferredTime: "08:00"}); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("want ErrNotAuthorized, got %v", err)
	}
}

func TestAssignJobIssuesPermit(t *testing.T) {
	m := NewMemory()
	org := seedOrg(t, m)
	d := seedDriver(t, m, org.ID, "555-0001")
	s := seedSlot(t, m, "2026-09-01", "08:00", 2)
	j := seedJob(t, m, org.ID, "STANDARD", "2026-09-01", "08:00")

	res, err := m.AssignJob(context.Background(), j.ID, "")
	if err != nil {
		t.Fatalf("AssignJob: %v", err)
	}
	if res.Driver.ID != d.ID || res.Slot.ID != s.ID {
		t.Fatalf("unexpected assignment: %+v", res)
	}
	if res.PermitCode == "" {
		t.Fatalf("permit code missing")
	}

	got, _ := m.GetJob(context.Background(), j.ID)
	if got.Status != model.JobAssigned || got.AssignedDriverID != d.ID || got.PermitID != res.PermitID {
		t.Fatalf("job not bound: %+v", got)
	}
	gd, _ := m.GetDriver(context.Background(), d.ID)
	if gd.IsAvailable {
		t.Fatalf("driver should be claimed")
	}
	gs, _ := m.GetSlot(context.Background(), s.ID)
	if gs.Booked != 1 {
		t.Fatalf("slot booked=%d, want 1", gs.Booked)
	}

	// second assign of the same job
	if _, err := m.AssignJob(context.Background(), j.ID, ""); !errors.Is(err, ErrJobNotPending) {
		t.Fatalf("want ErrJobNotPending, got %v", err)
	}
}

func TestAssignJobNoDrivers(t *testing.T) {
	m := NewMemory()
	org := seedOrg(t, m)
	seedSlot(t, m, "2026-09-01", "08:00", 2)
	j := seedJob(t, m, org.ID, "STANDARD", "2026-09-01", "08:00")
	if _, err := m.AssignJob(context.Background(), j.ID, ""); !errors.Is(err, ErrNoDriverAvailable) {
		t.Fatalf("want ErrNoDriverAvailable, got %v", err)
	}
	// job untouched
	got, _ := m.GetJob(context.Background(), j.ID)
	if got.Status != model.JobPending {
		t.Fatalf("failed assignment must leave job PENDING, got %s", got.Status)
	}
}

func TestSlotCapacityNeverExceeded(t *testing.T) {
	m := NewMemory()
	org := seedOrg(t, m)
	s := seedSlot(t, m, "2026-09-01", "08:00", 3)
	for i := 0; i < 10; i++ {
		seedDriver(t, m, org.ID, "555-1"+string(rune('0'+i)))
	}

	var wg sync.WaitGroup
	issued := make(chan struct{}, 10)
	for i := 0; i < 10; i++ {
		j := seedJob(t, m, org.ID, "STANDARD", "2026-09-01", "08:00")
		wg.Add(1)
		go func(jobID string) {
			defer wg.Done()
			if _, err := m.AssignJob(context.Background(), jobID, ""); err == nil {
				issued <- struct{}{}
			}
		}(j.ID)
	}
	wg.Wait()
	close(issued)
	n := 0
	for range issued {
		n++
	}
	if n != 3 {
		t.Fatalf("issued %d permits for capacity 3", n)
	}
	gs, _ := m.GetSlot(context.Background(), s.ID)
	if gs.Booked != 3 || gs.Status != model.SlotFull {
		t.Fatalf("slot booked=%d status=%s", gs.Booked, gs.Status)
	}
}

func TestHaltByPriorityIdempotent(t *testing.T) {
	m := NewMemory()
	org := seedOrg(t, m)
	seedSlot(t, m, "2026-09-01", "08:00", 10)
	cargos := []string{"MEDICAL", "MEDICAL", "TIME_SENSITIVE", "STANDARD", "STANDARD"}
	for i, c := range cargos {
		seedDriver(t, m, org.ID, "555-2"+string(rune('0'+i)))
		j := seedJob(t, m, org.ID, c, "2026-09-01", "08:00")
		if _, err := m.AssignJob(context.Background(), j.ID, ""); err != nil {
			t.Fatalf("assign %d: %v", i, err)
		}
	}

	halted, protected, err := m.HaltByPriority(context.Background())
	if err != nil {
		t.Fatalf("HaltByPriority: %v", err)
	}
	if len(halted) != 2 || protected != 3 {
		t.Fatalf("halted=%d protected=%d, want 2/3", len(halted), protected)
	}
	for _, p := range halted {
		if p.Status != model.PermitHalted || p.HaltedAt == "" {
			t.Fatalf("halted permit not marked: %+v", p)
		}
	}

	// second congestion report changes nothing
	halted2, protected2, err := m.HaltByPriority(context.Background())
	if err != nil {
		t.Fatalf("HaltByPriority again: %v", err)
	}
	if len(halted2) != 0 || protected2 != 3 {
		t.Fatalf("second run halted=%d protected=%d, want 0/3", len(halted2), protected2)
	}
}

func TestReinstateAndReschedule(t *testing.T) {
	m := NewMemory()
	org := seedOrg(t, m)
	seedDriver(t, m, org.ID, "555-0003")
	s1 := seedSlot(t, m, "2026-09-01", "08:00", 1)
	j := seedJob(t, m, org.ID, "STANDARD", "2026-09-01", "08:00")
	res, err := m.AssignJob(context.Background(), j.ID, "")
	if err != nil {
		t.Fatalf("AssignJob: %v", err)
	}

	if _, err := m.ReinstatePermit(context.Background(), res.PermitID); !errors.Is(err, ErrConflict) {
		t.Fatalf("reinstating an APPROVED permit must conflict, got %v", err)
	}
	if _, _, err := m.HaltByPriority(context.Background()); err != nil {
		t.Fatalf("halt: %v", err)
	}
	p, err := m.ReinstatePermit(context.Background(), res.PermitID)
	if err != nil {
		t.Fatalf("ReinstatePermit: %v", err)
	}
	if p.Status != model.PermitApproved || p.HaltedAt != "" {
		t.Fatalf("reinstate did not restore: %+v", p)
	}

	if _, _, err := m.HaltByPriority(context.Background()); err != nil {
		t.Fatalf("halt: %v", err)
	}
	s2 := seedSlot(t, m, "2026-09-02", "08:00", 1)
	p, err = m.ReschedulePermit(context.Background(), res.PermitID, s2.ID)
	if err != nil {
		t.Fatalf("ReschedulePermit: %v", err)
	}
	if p.SlotID != s2.ID || p.Status != model.PermitApproved {
		t.Fatalf("reschedule wrong: %+v", p)
	}
	old, _ := m.GetSlot(context.Background(), s1.ID)
	if old.Booked != 0 || old.Status != model.SlotAvailable {
		t.Fatalf("old slot not released: %+v", old)
	}
}

func TestCancelPermitReleasesEverything(t *testing.T) {
	m := NewMemory()
	org := seedOrg(t, m)
	d := seedDriver(t, m, org.ID, "555-0004")
	s := seedSlot(t, m, "2026-09-01", "08:00", 1)
	j := seedJob(t, m, org.ID, "STANDARD", "2026-09-01", "08:00")
	res, err := m.AssignJob(context.Background(), j.ID, "")
	if err != nil {
		t.Fatalf("AssignJob: %v", err)
	}

	if _, err := m.CancelPermit(context.Background(), res.PermitID); err != nil {
		t.Fatalf("CancelPermit: %v", err)
	}
	gs, _ := m.GetSlot(context.Background(), s.ID)
	if gs.Booked != 0 || gs.Status != model.SlotAvailable {
		t.Fatalf("slot not released: %+v", gs)
	}
	gd, _ := m.GetDriver(context.Background(), d.ID)
	if !gd.IsAvailable {
		t.Fatalf("driver not released")
	}
	gj, _ := m.GetJob(context.Background(), j.ID)
	if gj.Status != model.JobPending || gj.PermitID != "" || gj.AssignedDriverID != "" {
		t.Fatalf("job not returned to queue: %+v", gj)
	}

	if _, err := m.CancelPermit(context.Background(), res.PermitID); !errors.Is(err, ErrConflict) {
		t.Fatalf("double cancel must conflict, got %v", err)
	}
}

func TestBulkAssignFaultIsolation(t *testing.T) {
	m := NewMemory()
	org := seedOrg(t, m)
	seedDriver(t, m, org.ID, "555-0005")
	seedSlot(t, m, "2026-09-01", "08:00", 5)

	low := seedJob(t, m, org.ID, "BULK", "2026-09-01", "08:00")
	urgent := seedJob(t, m, org.ID, "MEDICAL", "2026-09-01", "08:00")

	res, err := m.BulkAssign(context.Background())
	if err != nil {
		t.Fatalf("BulkAssign: %v", err)
	}
	if res.Total != 2 || res.Assigned != 1 || res.Failed != 1 {
		t.Fatalf("unexpected totals: %+v", res)
	}
	// the single driver goes to the EMERGENCY job, the LOW one records why
	gu, _ := m.GetJob(context.Background(), urgent.ID)
	if gu.Status != model.JobAssigned {
		t.Fatalf("emergency job should win the driver, got %s", gu.Status)
	}
	gl, _ := m.GetJob(context.Background(), low.ID)
	if gl.Status != model.JobPending {
		t.Fatalf("low job should stay PENDING, got %s", gl.Status)
	}
	for _, det := range res.Details {
		if det.JobID == low.ID && det.Error != "no available drivers" {
			t.Fatalf("want 'no available drivers', got %q", det.Error)
		}
	}
}

func TestBookPermitDirect(t *testing.T) {
	m := NewMemory()
	org := seedOrg(t, m)
	d := seedDriver(t, m, org.ID, "555-0006")
	s := seedSlot(t, m, "2026-09-01", "08:00", 1)

	res, err := m.BookPermit(context.Background(), model.BookRequest{DriverID: d.ID, SlotID: s.ID, CargoType: "STANDARD"}, model.TierNormal)
	if err != nil {
		t.Fatalf("BookPermit: %v", err)
	}
	if res.JobID != "" {
		t.Fatalf("direct booking has no job, got %q", res.JobID)
	}

	d2 := seedDriver(t, m, org.ID, "555-0007")
	if _, err := m.BookPermit(context.Background(), model.BookRequest{DriverID: d2.ID, SlotID: s.ID, CargoType: "STANDARD"}, model.TierNormal); !errors.Is(err, ErrSlotFull) {
		t.Fatalf("want ErrSlotFull, got %v", err)
	}
}

func TestDuplicatePhoneRejected(t *testing.T) {
	m := NewMemory()
	org := seedOrg(t, m)
	seedDriver(t, m, org.ID, "555-0008")
	if _, err := m.CreateDriver(context.Background(), model.DriverIn{OrgID: org.ID, Name: "X", Phone: "555-0008"}); !errors.Is(err, ErrDuplicatePhone) {
		t.Fatalf("want ErrDuplicatePhone, got %v", err)
	}
}

func TestNotificationsLifecycle(t *testing.T) {
	m := NewMemory()
	org := seedOrg(t, m)
	d := seedDriver(t, m, org.ID, "555-0009")
	n, err := m.CreateNotification(context.Background(), d.ID, "", "gate closed")
	if err != nil {
		t.Fatalf("CreateNotification: %v", err)
	}
	pend, err := m.FetchPendingNotifications(context.Background(), 10)
	if err != nil || len(pend) != 1 {
		t.Fatalf("pending: %v %d", err, len(pend))
	}
	if err := m.MarkNotificationSent(context.Background(), n.ID); err != nil {
		t.Fatalf("MarkNotificationSent: %v", err)
	}
	pend, _ = m.FetchPendingNotifications(context.Background(), 10)
	if len(pend) != 0 {
		t.Fatalf("sent notification still pending")
	}
}
