package api

import (
	"fmt"
	"regexp"

	"portgate/internal/model"
)

var (
	dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timeRe = regexp.MustCompile(`^\d{2}:\d{2}$`)
)

func validateTrafficUpdate(u *model.TrafficUpdate) error {
	if u.CameraID == "" {
		return fmt.Errorf("camera_id required")
	}
	switch u.Status {
	case model.TrafficNormal, model.TrafficModerate, model.TrafficCongested:
	default:
		return fmt.Errorf("invalid status: %s (allowed: NORMAL, MODERATE, CONGESTED)", u.Status)
	}
	if u.VehicleCount < 0 || u.TruckCount < 0 {
		return fmt.Errorf("counts must be >= 0")
	}
	return nil
}

func validateJobIn(in *model.JobIn) error {
	if in.CargoType == "" {
		return fmt.Errorf("cargo_type required")
	}
	if !dateRe.MatchString(in.PreferredDate) {
		return fmt.Errorf("preferred_date must be YYYY-MM-DD")
	}
	if !timeRe.MatchString(in.PreferredTime) {
		return fmt.Errorf("preferred_time must be HH:MM")
	}
	return nil
}

func validateSlotIn(in *model.SlotIn) error {
	if !dateRe.MatchString(in.Date) {
		return fmt.Errorf("date must be YYYY-MM-DD")
	}
	if !timeRe.MatchString(in.StartTime) || !timeRe.MatchString(in.EndTime) {
		return fmt.Errorf("start_time and end_time must be HH:MM")
	}
	if in.Capacity <= 0 {
		return fmt.Errorf("capacity must be > 0")
	}
	return nil
}

func validateBookRequest(req *model.BookRequest) error {
	if req.DriverID == "" {
		return fmt.Errorf("driver_id required")
	}
	if req.SlotID == "" {
		return fmt.Errorf("slot_id required")
	}
	if req.CargoType == "" {
		return fmt.Errorf("cargo_type required")
	}
	return nil
}

func validateDriverIn(in *model.DriverIn) error {
	if in.Name == "" {
		return fmt.Errorf("name required")
	}
	if in.Phone == "" {
		return fmt.Errorf("phone required")
	}
	return nil
}

func validateVesselIn(in *model.VesselIn) error {
	if in.Name == "" {
		return fmt.Errorf("name required")
	}
	if !dateRe.MatchString(in.ArrivalDate) {
		return fmt.Errorf("arrival_date must be YYYY-MM-DD")
	}
	if in.EstimatedTrucks < 0 {
		return fmt.Errorf("estimated_trucks must be >= 0")
	}
	return nil
}
