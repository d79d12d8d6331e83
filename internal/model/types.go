package model

// Core domain types for port gate coordination.

// Tier is a cargo priority tier. EMERGENCY and ESSENTIAL are protected from
// congestion halts.
type Tier string

const (
    TierEmergency Tier = "EMERGENCY"
    TierEssential Tier = "ESSENTIAL"
    TierNormal    Tier = "NORMAL"
    TierLow       Tier = "LOW"
)

// Rank orders tiers for scheduling: higher means more critical.
func (t Tier) Rank() int {
    switch t {
    case TierEmergency:
        return 3
    case TierEssential:
        return 2
    case TierNormal:
        return 1
    case TierLow:
        return 0
    }
    return 1
}

// Protected reports whether permits of this tier survive congestion halts.
func (t Tier) Protected() bool { return t == TierEmergency || t == TierEssential }

// Job statuses
const (
    JobPending    = "PENDING"
    JobAssigned   = "ASSIGNED"
    JobInProgress = "IN_PROGRESS"
    JobCompleted  = "COMPLETED"
    JobCancelled  = "CANCELLED"
)

// Slot statuses
const (
    SlotAvailable = "AVAILABLE"
    SlotFull      = "FULL"
    SlotClosed    = "CLOSED"
)

// Permit statuses
const (
    PermitPending   = "PENDING"
    PermitApproved  = "APPROVED"
    PermitHalted    = "HALTED"
    PermitCancelled = "CANCELLED"
    PermitExpired   = "EXPIRED"
    PermitCompleted = "COMPLETED"
)

// Traffic statuses
const (
    TrafficNormal    = "NORMAL"
    TrafficModerate  = "MODERATE"
    TrafficCongested = "CONGESTED"
)

// Vessel statuses
const (
    VesselScheduled = "SCHEDULED"
    VesselArrived   = "ARRIVED"
    VesselDeparted  = "DEPARTED"
    VesselDelayed   = "DELAYED"
)

type Organization struct {
    ID                   string   `json:"id"`
    Name                 string   `json:"name"`
    ContactEmail         string   `json:"contact_email,omitempty"`
    ContactPhone         string   `json:"contact_phone,omitempty"`
    AuthorizedPriorities []string `json:"authorized_priorities,omitempty"`
    CreatedAt            string   `json:"created_at,omitempty"`
}

type OrganizationIn struct {
    Name                 string   `json:"name"`
    ContactEmail         string   `json:"contact_email,omitempty"`
    ContactPhone         string   `json:"contact_phone,omitempty"`
    AuthorizedPriorities []string `json:"authorized_priorities,omitempty"`
}

type Driver struct {
    ID           string `json:"id"`
    OrgID        string `json:"org_id,omitempty"`
    Name         string `json:"name"`
    Phone        string `json:"phone"`
    VehiclePlate string `json:"vehicle_plate,omitempty"`
    VehicleType  string `json:"vehicle_type,omitempty"`
    IsAvailable  bool   `json:"is_available"`
    IsActive     bool   `json:"is_active"`
}

type DriverIn struct {
    OrgID        string `json:"org_id,omitempty"`
    Name         string `json:"name"`
    Phone        string `json:"phone"`
    VehiclePlate string `json:"vehicle_plate,omitempty"`
    VehicleType  string `json:"vehicle_type,omitempty"`
}

// DriverPatch updates mutable driver fields. Nil pointers leave the field
// unchanged.
type DriverPatch struct {
    VehiclePlate *string `json:"vehicle_plate,omitempty"`
    VehicleType  *string `json:"vehicle_type,omitempty"`
    IsActive     *bool   `json:"is_active,omitempty"`
}

type Job struct {
    ID               string `json:"id"`
    OrgID            string `json:"org_id"`
    CargoType        string `json:"cargo_type"`
    Priority         Tier   `json:"priority"`
    PreferredDate    string `json:"preferred_date"` // YYYY-MM-DD
    PreferredTime    string `json:"preferred_time"` // HH:MM
    Status           string `json:"status"`
    AssignedDriverID string `json:"assigned_driver_id,omitempty"`
    PermitID         string `json:"permit_id,omitempty"`
    CreatedAt        string `json:"created_at,omitempty"`
}

type JobIn struct {
    OrgID         string `json:"org_id,omitempty"`
    CargoType     string `json:"cargo_type"`
    PreferredDate string `json:"preferred_date"`
    PreferredTime string `json:"preferred_time"`
}

type TimeSlot struct {
    ID               string `json:"id"`
    Date             string `json:"date"`       // YYYY-MM-DD
    StartTime        string `json:"start_time"` // HH:MM
    EndTime          string `json:"end_time"`   // HH:MM
    Capacity         int    `json:"capacity"`
    Booked           int    `json:"booked"`
    Status           string `json:"status"`
    PredictedTraffic string `json:"predicted_traffic,omitempty"`
}

// Remaining is the spare capacity of the slot.
func (s TimeSlot) Remaining() int { return s.Capacity - s.Booked }

type SlotIn struct {
    Date             string `json:"date"`
    StartTime        string `json:"start_time"`
    EndTime          string `json:"end_time"`
    Capacity         int    `json:"capacity"`
    PredictedTraffic string `json:"predicted_traffic,omitempty"`
}

type Permit struct {
    ID          string `json:"id"`
    DriverID    string `json:"driver_id"`
    SlotID      string `json:"slot_id"`
    JobID       string `json:"job_id,omitempty"`
    OrgID       string `json:"org_id,omitempty"`
    Priority    Tier   `json:"priority"`
    Status      string `json:"status"`
    PermitCode  string `json:"permit_code"`
    ApprovedAt  string `json:"approved_at,omitempty"`
    HaltedAt    string `json:"halted_at,omitempty"`
    CompletedAt string `json:"completed_at,omitempty"`
}

type VesselSchedule struct {
    ID                string `json:"id"`
    Name              string `json:"name"`
    ArrivalDate       string `json:"arrival_date"` // YYYY-MM-DD
    ArrivalTime       string `json:"arrival_time,omitempty"`
    EstimatedTrucks   int    `json:"estimated_trucks"`
    CargoPriorityHint string `json:"cargo_priority_hint,omitempty"`
    Status            string `json:"status"`
}

type VesselIn struct {
    Name              string `json:"name"`
    ArrivalDate       string `json:"arrival_date"`
    ArrivalTime       string `json:"arrival_time,omitempty"`
    EstimatedTrucks   int    `json:"estimated_trucks"`
    CargoPriorityHint string `json:"cargo_priority_hint,omitempty"`
}

type TrafficUpdate struct {
    CameraID     string `json:"camera_id"`
    Timestamp    string `json:"timestamp"`
    Status       string `json:"status"`
    VehicleCount int    `json:"vehicle_count"`
    TruckCount   int    `json:"truck_count"`
}

type Notification struct {
    ID        string `json:"id"`
    DriverID  string `json:"driver_id"`
    PermitID  string `json:"permit_id,omitempty"`
    Message   string `json:"message"`
    Status    string `json:"status"` // PENDING, SENT
    CreatedAt string `json:"created_at,omitempty"`
    SentAt    string `json:"sent_at,omitempty"`
}

// Request/response shapes for the assignment endpoints.

type AssignRequest struct {
    DriverID string `json:"driver_id"`
}

type AssignResult struct {
    JobID      string   `json:"job_id,omitempty"`
    PermitID   string   `json:"permit_id"`
    PermitCode string   `json:"permit_code"`
    Driver     Driver   `json:"driver"`
    Slot       TimeSlot `json:"slot"`
    Priority   Tier     `json:"priority"`
}

type BulkAssignDetail struct {
    JobID      string `json:"job_id"`
    OK         bool   `json:"ok"`
    PermitCode string `json:"permit_code,omitempty"`
    Error      string `json:"error,omitempty"`
}

type BulkAssignResult struct {
    Assigned int                `json:"assigned"`
    Failed   int                `json:"failed"`
    Total    int                `json:"total"`
    Details  []BulkAssignDetail `json:"details"`
}

type BookRequest struct {
    OrgID     string `json:"org_id,omitempty"`
    DriverID  string `json:"driver_id"`
    SlotID    string `json:"slot_id"`
    CargoType string `json:"cargo_type"`
}

type TrafficResult struct {
    Success          bool `json:"success"`
    PermitsAffected  int  `json:"permits_affected"`
    PermitsProtected int  `json:"permits_protected"`
}

type RescheduleRequest struct {
    SlotID string `json:"slot_id"`
}

// SurgeAdvisory is an advisory warning attached to job creation responses
// when vessel arrivals are expected to outstrip gate capacity on a date.
type SurgeAdvisory struct {
    Date            string `json:"date"`
    EstimatedTrucks int    `json:"estimated_trucks"`
    SpareCapacity   int    `json:"spare_capacity"`
    Vessels         int    `json:"vessels"`
    Message         string `json:"message"`
}
