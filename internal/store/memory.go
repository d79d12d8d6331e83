package store

import (
    "context"
    "sort"
    "sync"
    "time"

    "github.com/google/uuid"
    "portgate/internal/allocation"
    "portgate/internal/model"
)

// Memory is the in-memory store used when no DATABASE_URL is set. One mutex
// guards all state, so the slot check-and-increment and the driver claim are
// trivially atomic here.
type Memory struct {
    mu        sync.Mutex
    orgs      map[string]model.Organization
    orgIDs    []string
    drivers   map[string]model.Driver
    driverIDs []string
    jobs      map[string]model.Job
    jobIDs    []string
    slots     map[string]model.TimeSlot
    slotIDs   []string
    permits   map[string]model.Permit
    permitIDs []string
    vessels   map[string]model.VesselSchedule
    vesselIDs []string
    traffic   []model.TrafficUpdate
    notes     map[string]model.Notification
    noteIDs   []string
    codes     map[string]bool
}

func NewMemory() *Memory {
    return &Memory{
        orgs:    map[string]model.Organization{},
        drivers: map[string]model.Driver{},
        jobs:    map[string]model.Job{},
        slots:   map[string]model.TimeSlot{},
        permits: map[string]model.Permit{},
        vessels: map[string]model.VesselSchedule{},
        notes:   map[string]model.Notification{},
        codes:   map[string]bool{},
    }
}

func nowRFC3339() string { return time.Now().UTC().Format(time.RFC3339) }

// Organizations

func (m *Memory) CreateOrganization(ctx context.Context, in model.OrganizationIn) (model.Organization, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    o := model.Organization{
        ID: uuid.New().String(), Name: in.Name,
        ContactEmail: in.ContactEmail, ContactPhone: in.ContactPhone,
        AuthorizedPriorities: in.AuthorizedPriorities, CreatedAt: nowRFC3339(),
    }
    m.orgs[o.ID] = o
    m.orgIDs = append(m.orgIDs, o.ID)
    return o, nil
}

func (m *Memory) GetOrganization(ctx context.Context, id string) (model.Organization, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    o, ok := m.orgs[id]
    if !ok { return model.Organization{}, ErrNotFound }
    return o, nil
}

func (m *Memory) ListOrganizations(ctx context.Context, cursor string, limit int) ([]model.Organization, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    ids, next := pageIDs(m.orgIDs, cursor, limit)
    out := make([]model.Organization, 0, len(ids))
    for _, id := range ids { out = append(out, m.orgs[id]) }
    return out, next, nil
}

// Drivers

func (m *Memory) CreateDriver(ctx context.Context, in model.DriverIn) (model.Driver, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    for _, id := range m.driverIDs {
        if m.drivers[id].Phone == in.Phone { return model.Driver{}, ErrDuplicatePhone }
    }
    d := model.Driver{
        ID: uuid.New().String(), OrgID: in.OrgID, Name: in.Name, Phone: in.Phone,
        VehiclePlate: in.VehiclePlate, VehicleType: in.VehicleType,
        IsAvailable: true, IsActive: true,
    }
    m.drivers[d.ID] = d
    m.driverIDs = append(m.driverIDs, d.ID)
    return d, nil
}

func (m *Memory) GetDriver(ctx context.Context, id string) (model.Driver, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    d, ok := m.drivers[id]
    if !ok { return model.Driver{}, ErrDriverNotFound }
    return d, nil
}

func (m *Memory) ListDrivers(ctx context.Context, orgID string, availableOnly bool, cursor string, limit int) ([]model.Driver, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if limit <= 0 { limit = 100 }
    start := cursorIndex(m.driverIDs, cursor)
    out := []model.Driver{}
    var next string
    for i := start; i < len(m.driverIDs) && len(out) < limit; i++ {
        d := m.drivers[m.driverIDs[i]]
        if orgID != "" && d.OrgID != orgID { continue }
        if availableOnly && !(d.IsAvailable && d.IsActive) { continue }
        out = append(out, d)
        next = d.ID
    }
    if len(out) < limit { next = "" }
    return out, next, nil
}

func (m *Memory) PatchDriver(ctx context.Context, id string, patch model.DriverPatch) (model.Driver, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    d, ok := m.drivers[id]
    if !ok { return model.Driver{}, ErrDriverNotFound }
    if patch.VehiclePlate != nil { d.VehiclePlate = *patch.VehiclePlate }
    if patch.VehicleType != nil { d.VehicleType = *patch.VehicleType }
    if patch.IsActive != nil { d.IsActive = *patch.IsActive }
    m.drivers[id] = d
    return d, nil
}

// Jobs

func (m *Memory) CreateJob(ctx context.Context, in model.JobIn) (model.Job, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    org, ok := m.orgs[in.OrgID]
    if !ok { return model.Job{}, ErrNotFound }
    tier := allocation.Classify(in.CargoType)
    if !allocation.Authorized(org.AuthorizedPriorities, tier) { return model.Job{}, ErrNotAuthorized }
    j := model.Job{
        ID: uuid.New().String(), OrgID: in.OrgID, CargoType: in.CargoType, Priority: tier,
        PreferredDate: in.PreferredDate, PreferredTime: in.PreferredTime,
        Status: model.JobPending, CreatedAt: nowRFC3339(),
    }
    m.jobs[j.ID] = j
    m.jobIDs = append(m.jobIDs, j.ID)
    return j, nil
}

func (m *Memory) GetJob(ctx context.Context, id string) (model.Job, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    j, ok := m.jobs[id]
    if !ok { return model.Job{}, ErrNotFound }
    return j, nil
}

func (m *Memory) ListJobs(ctx context.Context, orgID, status, cursor string, limit int) ([]model.Job, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if limit <= 0 { limit = 100 }
    start := cursorIndex(m.jobIDs, cursor)
    out := []model.Job{}
    var next string
    for i := start; i < len(m.jobIDs) && len(out) < limit; i++ {
        j := m.jobs[m.jobIDs[i]]
        if orgID != "" && j.OrgID != orgID { continue }
        if status != "" && j.Status != status { continue }
        out = append(out, j)
        next = j.ID
    }
    if len(out) < limit { next = "" }
    return out, next, nil
}

func (m *Memory) StartJob(ctx context.Context, id string) (model.Job, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    j, ok := m.jobs[id]
    if !ok { return model.Job{}, ErrNotFound }
    if j.Status != model.JobAssigned { return model.Job{}, ErrConflict }
    if p, ok := m.permits[j.PermitID]; ok && p.Status == model.PermitHalted { return model.Job{}, ErrConflict }
    j.Status = model.JobInProgress
    m.jobs[id] = j
    return j, nil
}

func (m *Memory) CompleteJob(ctx context.Context, id string) (model.Job, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    j, ok := m.jobs[id]
    if !ok { return model.Job{}, ErrNotFound }
    if j.Status != model.JobAssigned && j.Status != model.JobInProgress { return model.Job{}, ErrConflict }
    j.Status = model.JobCompleted
    m.jobs[id] = j
    if p, ok := m.permits[j.PermitID]; ok && (p.Status == model.PermitApproved || p.Status == model.PermitHalted) {
        p.Status = model.PermitCompleted
        p.CompletedAt = nowRFC3339()
        m.permits[p.ID] = p
    }
    m.releaseDriverLocked(j.AssignedDriverID)
    return j, nil
}

func (m *Memory) CancelJob(ctx context.Context, id string) (model.Job, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    j, ok := m.jobs[id]
    if !ok { return model.Job{}, ErrNotFound }
    switch j.Status {
    case model.JobPending:
    case model.JobAssigned, model.JobInProgress:
        if p, ok := m.permits[j.PermitID]; ok && p.Status != model.PermitCancelled && p.Status != model.PermitCompleted {
            p.Status = model.PermitCancelled
            m.permits[p.ID] = p
            m.releaseSlotLocked(p.SlotID)
        }
        m.releaseDriverLocked(j.AssignedDriverID)
    default:
        return model.Job{}, ErrConflict
    }
    j.Status = model.JobCancelled
    m.jobs[id] = j
    return j, nil
}

// Time slots

func (m *Memory) CreateSlot(ctx context.Context, in model.SlotIn) (model.TimeSlot, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    s := model.TimeSlot{
        ID: uuid.New().String(), Date: in.Date, StartTime: in.StartTime, EndTime: in.EndTime,
        Capacity: in.Capacity, Status: model.SlotAvailable, PredictedTraffic: in.PredictedTraffic,
    }
    m.slots[s.ID] = s
    m.slotIDs = append(m.slotIDs, s.ID)
    return s, nil
}

func (m *Memory) GetSlot(ctx context.Context, id string) (model.TimeSlot, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    s, ok := m.slots[id]
    if !ok { return model.TimeSlot{}, ErrNotFound }
    return s, nil
}

func (m *Memory) ListSlotsByDate(ctx context.Context, date string) ([]model.TimeSlot, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    return m.slotsOnDateLocked(date), nil
}

func (m *Memory) CloseSlot(ctx context.Context, id string) (model.TimeSlot, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    s, ok := m.slots[id]
    if !ok { return model.TimeSlot{}, ErrNotFound }
    s.Status = model.SlotClosed
    m.slots[id] = s
    return s, nil
}

func (m *Memory) slotsOnDateLocked(date string) []model.TimeSlot {
    out := []model.TimeSlot{}
    for _, id := range m.slotIDs {
        if s := m.slots[id]; s.Date == date { out = append(out, s) }
    }
    sort.Slice(out, func(i, j int) bool {
        if out[i].StartTime != out[j].StartTime { return out[i].StartTime < out[j].StartTime }
        return out[i].ID < out[j].ID
    })
    return out
}

// Allocation + issuance

func (m *Memory) AssignJob(ctx context.Context, jobID, driverID string) (model.AssignResult, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    return m.assignJobLocked(jobID, driverID)
}

func (m *Memory) assignJobLocked(jobID, driverID string) (model.AssignResult, error) {
    j, ok := m.jobs[jobID]
    if !ok { return model.AssignResult{}, ErrNotFound }
    if j.Status != model.JobPending { return model.AssignResult{}, ErrJobNotPending }

    var d model.Driver
    if driverID != "" {
        d, ok = m.drivers[driverID]
        if !ok { return model.AssignResult{}, ErrDriverNotFound }
        if d.OrgID != "" && d.OrgID != j.OrgID { return model.AssignResult{}, ErrConflict }
        if !d.IsActive || !d.IsAvailable { return model.AssignResult{}, ErrDriverUnavailable }
    } else {
        found := false
        for _, id := range m.driverIDs {
            c := m.drivers[id]
            if c.OrgID == j.OrgID && c.IsActive && c.IsAvailable { d = c; found = true; break }
        }
        if !found { return model.AssignResult{}, ErrNoDriverAvailable }
    }

    slot, ok := allocation.SelectSlot(m.slotsOnDateLocked(j.PreferredDate), j.PreferredTime, j.Priority)
    if !ok { return model.AssignResult{}, ErrNoSlotAvailable }
    return m.issueLocked(&j, d, slot, j.Priority, j.OrgID)
}

// issueLocked performs the permit issuance effects as one critical section:
// permit insert, slot increment, job binding, driver claim.
func (m *Memory) issueLocked(j *model.Job, d model.Driver, s model.TimeSlot, tier model.Tier, orgID string) (model.AssignResult, error) {
    code := allocation.NewPermitCode()
    for m.codes[code] { code = allocation.NewPermitCode() }
    m.codes[code] = true

    p := model.Permit{
        ID: uuid.New().String(), DriverID: d.ID, SlotID: s.ID, OrgID: orgID,
        Priority: tier, Status: model.PermitApproved, PermitCode: code, ApprovedAt: nowRFC3339(),
    }
    s.Booked++
    if s.Booked >= s.Capacity { s.Status = model.SlotFull }
    m.slots[s.ID] = s

    d.IsAvailable = false
    m.drivers[d.ID] = d

    res := model.AssignResult{PermitID: p.ID, PermitCode: code, Driver: d, Slot: s, Priority: tier}
    if j != nil {
        p.JobID = j.ID
        j.Status = model.JobAssigned
        j.AssignedDriverID = d.ID
        j.PermitID = p.ID
        m.jobs[j.ID] = *j
        res.JobID = j.ID
    }
    m.permits[p.ID] = p
    m.permitIDs = append(m.permitIDs, p.ID)
    return res, nil
}

func (m *Memory) BulkAssign(ctx context.Context) (model.BulkAssignResult, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    pending := []model.Job{}
    for _, id := range m.jobIDs {
        if j := m.jobs[id]; j.Status == model.JobPending { pending = append(pending, j) }
    }
    res := model.BulkAssignResult{Total: len(pending), Details: []model.BulkAssignDetail{}}
    for _, j := range allocation.OrderJobs(pending) {
        r, err := m.assignJobLocked(j.ID, "")
        if err != nil {
            res.Failed++
            res.Details = append(res.Details, model.BulkAssignDetail{JobID: j.ID, OK: false, Error: err.Error()})
            continue
        }
        res.Assigned++
        res.Details = append(res.Details, model.BulkAssignDetail{JobID: j.ID, OK: true, PermitCode: r.PermitCode})
    }
    return res, nil
}

func (m *Memory) BookPermit(ctx context.Context, req model.BookRequest, tier model.Tier) (model.AssignResult, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    d, ok := m.drivers[req.DriverID]
    if !ok { return model.AssignResult{}, ErrDriverNotFound }
    if !d.IsActive || !d.IsAvailable { return model.AssignResult{}, ErrDriverUnavailable }
    s, ok := m.slots[req.SlotID]
    if !ok { return model.AssignResult{}, ErrNotFound }
    if s.Status != model.SlotAvailable || s.Booked >= s.Capacity { return model.AssignResult{}, ErrSlotFull }
    orgID := req.OrgID
    if orgID == "" { orgID = d.OrgID }
    return m.issueLocked(nil, d, s, tier, orgID)
}

// Permits

func (m *Memory) GetPermit(ctx context.Context, id string) (model.Permit, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    p, ok := m.permits[id]
    if !ok { return model.Permit{}, ErrNotFound }
    return p, nil
}

func (m *Memory) ListPermits(ctx context.Context, status, cursor string, limit int) ([]model.Permit, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if limit <= 0 { limit = 100 }
    start := cursorIndex(m.permitIDs, cursor)
    out := []model.Permit{}
    var next string
    for i := start; i < len(m.permitIDs) && len(out) < limit; i++ {
        p := m.permits[m.permitIDs[i]]
        if status != "" && p.Status != status { continue }
        out = append(out, p)
        next = p.ID
    }
    if len(out) < limit { next = "" }
    return out, next, nil
}

func (m *Memory) ReinstatePermit(ctx context.Context, id string) (model.Permit, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    p, ok := m.permits[id]
    if !ok { return model.Permit{}, ErrNotFound }
    if p.Status != model.PermitHalted { return model.Permit{}, ErrConflict }
    p.Status = model.PermitApproved
    p.HaltedAt = ""
    m.permits[id] = p
    return p, nil
}

func (m *Memory) ReschedulePermit(ctx context.Context, id, slotID string) (model.Permit, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    p, ok := m.permits[id]
    if !ok { return model.Permit{}, ErrNotFound }
    if p.Status != model.PermitHalted { return model.Permit{}, ErrConflict }
    s, ok := m.slots[slotID]
    if !ok { return model.Permit{}, ErrNotFound }
    if s.Status != model.SlotAvailable || s.Booked >= s.Capacity { return model.Permit{}, ErrSlotFull }
    m.releaseSlotLocked(p.SlotID)
    s.Booked++
    if s.Booked >= s.Capacity { s.Status = model.SlotFull }
    m.slots[s.ID] = s
    p.SlotID = s.ID
    p.Status = model.PermitApproved
    p.HaltedAt = ""
    m.permits[id] = p
    return p, nil
}

func (m *Memory) CancelPermit(ctx context.Context, id string) (model.Permit, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    p, ok := m.permits[id]
    if !ok { return model.Permit{}, ErrNotFound }
    if p.Status == model.PermitCancelled || p.Status == model.PermitCompleted { return model.Permit{}, ErrConflict }
    p.Status = model.PermitCancelled
    m.permits[id] = p
    m.releaseSlotLocked(p.SlotID)
    m.releaseDriverLocked(p.DriverID)
    if j, ok := m.jobs[p.JobID]; ok && j.Status == model.JobAssigned {
        j.Status = model.JobPending
        j.AssignedDriverID = ""
        j.PermitID = ""
        m.jobs[j.ID] = j
    }
    return p, nil
}

func (m *Memory) CompletePermit(ctx context.Context, id string) (model.Permit, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    p, ok := m.permits[id]
    if !ok { return model.Permit{}, ErrNotFound }
    if p.Status != model.PermitApproved { return model.Permit{}, ErrConflict }
    p.Status = model.PermitCompleted
    p.CompletedAt = nowRFC3339()
    m.permits[id] = p
    m.releaseDriverLocked(p.DriverID)
    if j, ok := m.jobs[p.JobID]; ok && (j.Status == model.JobAssigned || j.Status == model.JobInProgress) {
        j.Status = model.JobCompleted
        m.jobs[j.ID] = j
    }
    return p, nil
}

// Traffic + congestion responder

func (m *Memory) InsertTrafficUpdate(ctx context.Context, upd model.TrafficUpdate) error {
    m.mu.Lock(); defer m.mu.Unlock()
    if upd.Timestamp == "" { upd.Timestamp = nowRFC3339() }
    m.traffic = append(m.traffic, upd)
    return nil
}

func (m *Memory) LatestTraffic(ctx context.Context, cameraID string) (model.TrafficUpdate, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    for i := len(m.traffic) - 1; i >= 0; i-- {
        if cameraID == "" || m.traffic[i].CameraID == cameraID { return m.traffic[i], nil }
    }
    return model.TrafficUpdate{}, ErrNotFound
}

// HaltByPriority halts every APPROVED permit whose tier is not protected.
// Already-HALTED permits are untouched, which makes the responder idempotent.
func (m *Memory) HaltByPriority(ctx context.Context) ([]model.Permit, int, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    halted := []model.Permit{}
    protected := 0
    ts := nowRFC3339()
    for _, id := range m.permitIDs {
        p := m.permits[id]
        if p.Status != model.PermitApproved { continue }
        if p.Priority.Protected() { protected++; continue }
        p.Status = model.PermitHalted
        p.HaltedAt = ts
        m.permits[id] = p
        halted = append(halted, p)
    }
    return halted, protected, nil
}

// Vessels

func (m *Memory) CreateVessel(ctx context.Context, in model.VesselIn) (model.VesselSchedule, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    v := model.VesselSchedule{
        ID: uuid.New().String(), Name: in.Name, ArrivalDate: in.ArrivalDate, ArrivalTime: in.ArrivalTime,
        EstimatedTrucks: in.EstimatedTrucks, CargoPriorityHint: in.CargoPriorityHint, Status: model.VesselScheduled,
    }
    m.vessels[v.ID] = v
    m.vesselIDs = append(m.vesselIDs, v.ID)
    return v, nil
}

func (m *Memory) ListVessels(ctx context.Context, date string) ([]model.VesselSchedule, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := []model.VesselSchedule{}
    for _, id := range m.vesselIDs {
        if v := m.vessels[id]; date == "" || v.ArrivalDate == date { out = append(out, v) }
    }
    return out, nil
}

func (m *Memory) SetVesselStatus(ctx context.Context, id, status string) (model.VesselSchedule, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    v, ok := m.vessels[id]
    if !ok { return model.VesselSchedule{}, ErrNotFound }
    v.Status = status
    m.vessels[id] = v
    return v, nil
}

// Notifications

func (m *Memory) CreateNotification(ctx context.Context, driverID, permitID, message string) (model.Notification, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    n := model.Notification{
        ID: uuid.New().String(), DriverID: driverID, PermitID: permitID,
        Message: message, Status: "PENDING", CreatedAt: nowRFC3339(),
    }
    m.notes[n.ID] = n
    m.noteIDs = append(m.noteIDs, n.ID)
    return n, nil
}

func (m *Memory) ListNotifications(ctx context.Context, cursor string, limit int) ([]model.Notification, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    ids, next := pageIDs(m.noteIDs, cursor, limit)
    out := make([]model.Notification, 0, len(ids))
    for _, id := range ids { out = append(out, m.notes[id]) }
    return out, next, nil
}

func (m *Memory) FetchPendingNotifications(ctx context.Context, limit int) ([]model.Notification, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := []model.Notification{}
    for _, id := range m.noteIDs {
        n := m.notes[id]
        if n.Status != "PENDING" { continue }
        out = append(out, n)
        if limit > 0 && len(out) >= limit { break }
    }
    return out, nil
}

func (m *Memory) MarkNotificationSent(ctx context.Context, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    n, ok := m.notes[id]
    if !ok { return ErrNotFound }
    n.Status = "SENT"
    n.SentAt = nowRFC3339()
    m.notes[id] = n
    return nil
}

// helpers

func (m *Memory) releaseSlotLocked(slotID string) {
    s, ok := m.slots[slotID]
    if !ok { return }
    if s.Booked > 0 { s.Booked-- }
    if s.Status == model.SlotFull && s.Booked < s.Capacity { s.Status = model.SlotAvailable }
    m.slots[slotID] = s
}

func (m *Memory) releaseDriverLocked(driverID string) {
    d, ok := m.drivers[driverID]
    if !ok { return }
    d.IsAvailable = true
    m.drivers[driverID] = d
}

func cursorIndex(ids []string, cursor string) int {
    if cursor == "" { return 0 }
    for i, id := range ids {
        if id == cursor { return i + 1 }
    }
    return 0
}

func pageIDs(ids []string, cursor string, limit int) ([]string, string) {
    if limit <= 0 { limit = 100 }
    start := cursorIndex(ids, cursor)
    end := start + limit
    if end > len(ids) { end = len(ids) }
    page := append([]string(nil), ids[start:end]...)
    next := ""
    if end < len(ids) && end > start { next = ids[end-1] }
    return page, next
}
