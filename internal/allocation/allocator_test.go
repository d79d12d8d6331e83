package allocation

import (
	"strings"
	"testing"

	"portgate/internal/model"
)

func TestClassifyTable(t *testing.T) {
	cases := map[string]model.Tier{
		"MEDICAL":        model.TierEmergency,
		"PERISHABLE":     model.TierEmergency,
		"HAZARDOUS":      model.TierEmergency,
		"TIME_SENSITIVE": model.TierEssential,
		"STANDARD":       model.TierNormal,
		"OTHER":          model.TierNormal,
		"BULK":           model.TierLow,
		"medical":        model.TierEmergency, // case-insensitive
		"GLITTER":        model.TierNormal,    // unknown -> safe default
		"":               model.TierNormal,
	}
	for in, want := range cases {
		if got := Classify(in); got != want {
			t.Fatalf("Classify(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestClassifyDeterministic(t *testing.T) {
	for i := 0; i < 100; i++ {
		if Classify("BULK") != model.TierLow || Classify("unknown-thing") != model.TierNormal {
			t.Fatal("classification must be a pure function")
		}
	}
}

func TestAuthorized(t *testing.T) {
	if !Authorized(nil, model.TierEmergency) {
		t.Fatal("empty list should allow any tier")
	}
	if Authorized([]string{"NORMAL", "LOW"}, model.TierEmergency) {
		t.Fatal("EMERGENCY should be rejected")
	}
	if !Authorized([]string{"normal"}, model.TierNormal) {
		t.Fatal("authorization should be case-insensitive")
	}
}

func slot(id, start string, capacity, booked int, traffic string) model.TimeSlot {
	return model.TimeSlot{ID: id, Date: "2025-01-10", StartTime: start, EndTime: start, Capacity: capacity, Booked: booked, Status: model.SlotAvailable, PredictedTraffic: traffic}
}

func TestSelectSlotExactMatch(t *testing.T) {
	slots := []model.TimeSlot{
		slot("s1", "08:00", 10, 0, ""),
		slot("s2", "10:00", 10, 9, ""),
		slot("s3", "12:00", 10, 0, ""),
	}
	got, ok := SelectSlot(slots, "10:00", model.TierNormal)
	if !ok || got.ID != "s2" {
		t.Fatalf("want exact match s2, got %+v ok=%v", got, ok)
	}
}

func TestSelectSlotNearestFallback(t *testing.T) {
	slots := []model.TimeSlot{
		slot("s1", "08:00", 5, 5, ""), // full
		slot("s2", "09:00", 5, 0, ""),
		slot("s3", "14:00", 5, 0, ""),
	}
	got, ok := SelectSlot(slots, "08:00", model.TierNormal)
	if !ok || got.ID != "s2" {
		t.Fatalf("want nearest s2, got %+v ok=%v", got, ok)
	}
}

func TestSelectSlotAvoidsCongestionForHaltableTiers(t *testing.T) {
	slots := []model.TimeSlot{
		slot("s1", "10:00", 5, 0, model.TrafficCongested),
		slot("s2", "13:00", 5, 0, model.TrafficNormal),
	}
	got, _ := SelectSlot(slots, "10:00", model.TierNormal)
	if got.ID != "s2" {
		t.Fatalf("NORMAL cargo should avoid the congested slot, got %s", got.ID)
	}
	// Protected tiers may take the congested exact match: they cannot be halted.
	got, _ = SelectSlot(slots, "10:00", model.TierEmergency)
	if got.ID != "s1" {
		t.Fatalf("EMERGENCY cargo should take the exact slot, got %s", got.ID)
	}
}

func TestSelectSlotNoCapacity(t *testing.T) {
	slots := []model.TimeSlot{
		slot("s1", "10:00", 2, 2, ""),
		{ID: "s2", Date: "2025-01-10", StartTime: "11:00", Capacity: 5, Booked: 0, Status: model.SlotClosed},
	}
	if _, ok := SelectSlot(slots, "10:00", model.TierNormal); ok {
		t.Fatal("expected no slot")
	}
}

func TestSelectSlotTieBreakDeterministic(t *testing.T) {
	slots := []model.TimeSlot{
		slot("s9", "11:00", 10, 5, ""),
		slot("s2", "09:00", 10, 5, ""),
	}
	for i := 0; i < 10; i++ {
		got, _ := SelectSlot(slots, "10:00", model.TierLow)
		if got.ID != "s2" {
			t.Fatalf("tie should break on slot ID, got %s", got.ID)
		}
	}
}

func TestOrderJobsPriorityDescending(t *testing.T) {
	jobs := []model.Job{
		{ID: "j1", Priority: model.TierLow},
		{ID: "j2", Priority: model.TierEmergency},
		{ID: "j3", Priority: model.TierNormal},
		{ID: "j4", Priority: model.TierEmergency},
	}
	got := OrderJobs(jobs)
	want := []string{"j2", "j4", "j3", "j1"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: got %s want %s", i, got[i].ID, id)
		}
	}
	// input untouched
	if jobs[0].ID != "j1" {
		t.Fatal("OrderJobs must not mutate its input")
	}
}

func TestNewPermitCodeShapeAndUniqueness(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		c := NewPermitCode()
		if !strings.HasPrefix(c, "PG-") || len(c) != 13 {
			t.Fatalf("bad code shape: %q", c)
		}
		if seen[c] {
			t.Fatalf("duplicate code after %d draws: %s", i, c)
		}
		seen[c] = true
	}
}

func TestSurge(t *testing.T) {
	slots := []model.TimeSlot{slot("s1", "08:00", 10, 8, "")}
	vessels := []model.VesselSchedule{
		{ID: "v1", ArrivalDate: "2025-01-10", EstimatedTrucks: 40, Status: model.VesselScheduled},
		{ID: "v2", ArrivalDate: "2025-01-11", EstimatedTrucks: 100, Status: model.VesselScheduled},
	}
	adv := Surge("2025-01-10", vessels, slots)
	if adv == nil {
		t.Fatal("expected surge advisory")
	}
	if adv.EstimatedTrucks != 40 || adv.SpareCapacity != 2 || adv.Vessels != 1 {
		t.Fatalf("bad advisory: %+v", adv)
	}
	if Surge("2025-01-12", vessels, slots) != nil {
		t.Fatal("no vessels on date -> no advisory")
	}
}
