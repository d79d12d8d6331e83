package allocation

import (
	"sort"
	"strconv"
	"strings"

	"portgate/internal/model"
)

// SelectSlot picks the best slot for a preferred start time and priority
// tier from the candidate set. Candidates are expected to share one date.
//
// Ranking: a slot whose start time equals the preferred time wins outright;
// otherwise slots are ordered by absolute start-time distance from the
// preferred time. Slots forecast CONGESTED rank behind every other candidate
// unless the tier is protected (protected permits cannot be halted, so
// congestion is no reason to steer them away). Remaining ties break on lower
// occupancy ratio, then slot ID, so the choice is deterministic.
//
// Returns false when no candidate has spare capacity.
func SelectSlot(candidates []model.TimeSlot, preferredTime string, tier model.Tier) (model.TimeSlot, bool) {
	pref := minutesOfDay(preferredTime)
	eligible := make([]model.TimeSlot, 0, len(candidates))
	for _, s := range candidates {
		if s.Status != model.SlotAvailable || s.Booked >= s.Capacity {
			continue
		}
		eligible = append(eligible, s)
	}
	if len(eligible) == 0 {
		return model.TimeSlot{}, false
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if !tier.Protected() {
			ac := a.PredictedTraffic == model.TrafficCongested
			bc := b.PredictedTraffic == model.TrafficCongested
			if ac != bc {
				return bc
			}
		}
		da := timeDistance(a.StartTime, pref)
		db := timeDistance(b.StartTime, pref)
		if da != db {
			return da < db
		}
		ra := occupancy(a)
		rb := occupancy(b)
		if ra != rb {
			return ra < rb
		}
		return a.ID < b.ID
	})
	return eligible[0], true
}

func occupancy(s model.TimeSlot) float64 {
	if s.Capacity <= 0 {
		return 1
	}
	return float64(s.Booked) / float64(s.Capacity)
}

func timeDistance(start string, prefMin int) int {
	m := minutesOfDay(start)
	d := m - prefMin
	if d < 0 {
		d = -d
	}
	return d
}

// minutesOfDay parses "HH:MM" (seconds tolerated and ignored). Malformed
// input maps to 0 so a bad preferred time degrades to earliest-first rather
// than failing allocation.
func minutesOfDay(hhmm string) int {
	parts := strings.SplitN(strings.TrimSpace(hhmm), ":", 3)
	if len(parts) < 2 {
		return 0
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0
	}
	return h*60 + m
}

// OrderJobs returns job indices sorted for bulk assignment: priority tier
// descending, then creation order, so scarce capacity goes to the most
// critical cargo first.
func OrderJobs(jobs []model.Job) []model.Job {
	out := append([]model.Job(nil), jobs...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority.Rank() > out[j].Priority.Rank()
	})
	return out
}
