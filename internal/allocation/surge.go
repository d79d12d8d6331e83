package allocation

import (
	"fmt"

	"portgate/internal/model"
)

// Surge computes the vessel surge advisory for a date: when the trucks
// expected from arriving vessels exceed the spare gate capacity, job
// creation responses carry a warning. Advisory only; it never gates
// allocation.
func Surge(date string, vessels []model.VesselSchedule, slots []model.TimeSlot) *model.SurgeAdvisory {
	trucks := 0
	n := 0
	for _, v := range vessels {
		if v.ArrivalDate != date || v.Status == model.VesselDeparted {
			continue
		}
		trucks += v.EstimatedTrucks
		n++
	}
	if n == 0 || trucks == 0 {
		return nil
	}
	spare := 0
	for _, s := range slots {
		if s.Status == model.SlotAvailable {
			spare += s.Remaining()
		}
	}
	if trucks <= spare {
		return nil
	}
	return &model.SurgeAdvisory{
		Date:            date,
		EstimatedTrucks: trucks,
		SpareCapacity:   spare,
		Vessels:         n,
		Message:         fmt.Sprintf("vessel surge expected on %s: %d trucks forecast against %d spare slot places", date, trucks, spare),
	}
}
