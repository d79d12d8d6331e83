package api

import (
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "strings"
    "time"

    "portgate/internal/allocation"
    "portgate/internal/metrics"
    "portgate/internal/model"
    "portgate/internal/store"
)

// storeProblem maps store sentinel errors onto problem responses.
func storeProblem(w http.ResponseWriter, r *http.Request, err error, title string) {
    switch {
    case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrDriverNotFound):
        writeProblem(w, http.StatusNotFound, title, err.Error(), r.URL.Path)
    case errors.Is(err, store.ErrNotAuthorized):
        writeProblem(w, http.StatusForbidden, title, err.Error(), r.URL.Path)
    case errors.Is(err, store.ErrSlotFull):
        writeProblem(w, http.StatusConflict, title, err.Error(), r.URL.Path)
    case errors.Is(err, store.ErrJobNotPending), errors.Is(err, store.ErrNoSlotAvailable),
        errors.Is(err, store.ErrNoDriverAvailable), errors.Is(err, store.ErrDriverUnavailable),
        errors.Is(err, store.ErrConflict), errors.Is(err, store.ErrDuplicatePhone):
        writeProblem(w, http.StatusBadRequest, title, err.Error(), r.URL.Path)
    default:
        writeProblem(w, http.StatusInternalServerError, title, err.Error(), r.URL.Path)
    }
}

func queryLimit(r *http.Request) int {
    limit := 100
    if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
    return limit
}

// publishIssued fans out a fresh permit and queues the driver notice.
func (s *Server) publishIssued(r *http.Request, res model.AssignResult) {
    metrics.PermitsIssued.WithLabelValues(string(res.Priority)).Inc()
    data := map[string]any{
        "permit_id": res.PermitID, "permit_code": res.PermitCode,
        "driver_id": res.Driver.ID, "slot_id": res.Slot.ID, "priority": string(res.Priority),
    }
    s.Broker.Publish(TopicGate, SSEEvent{Type: "permit.issued", Data: data})
    s.Broker.Publish("driver:"+res.Driver.ID, SSEEvent{Type: "permit.issued", Data: data})
    s.Notify.PermitIssued(r.Context(), res)
}

// TrafficHandler handles POST/GET /v1/traffic
func (s *Server) TrafficHandler(w http.ResponseWriter, r *http.Request) {
    switch r.Method {
    case http.MethodPost:
        p := s.getPrincipal(r)
        if !p.IsOps() { writeProblem(w, 403, "Forbidden", "operator or admin required", r.URL.Path); return }
        var upd model.TrafficUpdate
        if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if err := validateTrafficUpdate(&upd); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid traffic update", err.Error(), r.URL.Path)
            return
        }
        if upd.Timestamp == "" { upd.Timestamp = time.Now().UTC().Format(time.RFC3339) }
        if err := s.Store.InsertTrafficUpdate(r.Context(), upd); err != nil {
            writeProblem(w, http.StatusInternalServerError, "Traffic ingest failed", err.Error(), r.URL.Path)
            return
        }
        s.Traffic.Upsert(upd)
        out := model.TrafficResult{Success: true}
        if upd.Status == model.TrafficCongested {
            metrics.CongestionEvents.Inc()
            halted, protected, err := s.Store.HaltByPriority(r.Context())
            if err != nil {
                writeProblem(w, http.StatusInternalServerError, "Congestion response failed", err.Error(), r.URL.Path)
                return
            }
            out.PermitsAffected = len(halted)
            out.PermitsProtected = protected
            metrics.PermitsHalted.Add(float64(len(halted)))
            metrics.PermitsProtected.Add(float64(protected))
            for _, pm := range halted {
                data := map[string]any{"permit_id": pm.ID, "permit_code": pm.PermitCode, "driver_id": pm.DriverID}
                s.Broker.Publish(TopicGate, SSEEvent{Type: "permit.halted", Data: data})
                s.Broker.Publish("driver:"+pm.DriverID, SSEEvent{Type: "permit.halted", Data: data})
            }
            s.Notify.PermitHalted(r.Context(), halted)
        }
        writeJSON(w, http.StatusOK, out)
    case http.MethodGet:
        upd, err := s.Store.LatestTraffic(r.Context(), r.URL.Query().Get("camera_id"))
        if err != nil {
            storeProblem(w, r, err, "No traffic data")
            return
        }
        writeJSON(w, http.StatusOK, upd)
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// TrafficStreamHandler streams gate events over SSE (GET /v1/traffic/stream).
func (s *Server) TrafficStreamHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    topic := TopicGate
    pr := s.getPrincipal(r)
    if !pr.IsOps() {
        if pr.Role != "driver" || pr.DriverID == "" {
            writeProblem(w, 403, "Forbidden", "gate stream is for operators; drivers get their own topic", r.URL.Path)
            return
        }
        topic = "driver:" + pr.DriverID
    }
    flusher, ok := w.(http.Flusher)
    if !ok { writeProblem(w, 500, "Streaming unsupported", "", r.URL.Path); return }
    w.Header().Set("Content-Type", "text/event-stream")
    w.Header().Set("Cache-Control", "no-cache")
    w.Header().Set("Connection", "keep-alive")
    ch := s.Broker.Subscribe(topic)
    defer s.Broker.Unsubscribe(topic, ch)
    fmt.Fprintf(w, "event: heartbeat\n")
    fmt.Fprintf(w, "data: {\"ts\":\"%s\"}\n\n", time.Now().Format(time.RFC3339))
    flusher.Flush()
    notify := r.Context().Done()
    for {
        select {
        case <-notify:
            return
        case evt := <-ch:
            b, _ := json.Marshal(evt.Data)
            fmt.Fprintf(w, "event: %s\n", evt.Type)
            fmt.Fprintf(w, "data: %s\n\n", string(b))
            flusher.Flush()
        case <-time.After(15 * time.Second):
            fmt.Fprintf(w, "event: heartbeat\n")
            fmt.Fprintf(w, "data: {\"ts\":\"%s\"}\n\n", time.Now().Format(time.RFC3339))
            flusher.Flush()
        }
    }
}

// JobsHandler handles POST/GET /v1/jobs
func (s *Server) JobsHandler(w http.ResponseWriter, r *http.Request) {
    switch r.Method {
    case http.MethodPost:
        var in model.JobIn
        if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if in.OrgID == "" { in.OrgID = s.getPrincipal(r).Org }
        if in.OrgID == "" {
            writeProblem(w, http.StatusBadRequest, "Invalid job", "org_id required", r.URL.Path)
            return
        }
        if err := validateJobIn(&in); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid job", err.Error(), r.URL.Path)
            return
        }
        j, err := s.Store.CreateJob(r.Context(), in)
        if err != nil {
            storeProblem(w, r, err, "Create job failed")
            return
        }
        out := map[string]any{"job": j}
        if adv := s.surgeForDate(r, j.PreferredDate); adv != nil { out["surge_advisory"] = adv }
        writeJSON(w, http.StatusCreated, out)
    case http.MethodGet:
        p := s.getPrincipal(r)
        orgID := r.URL.Query().Get("org_id")
        if orgID == "" && !p.IsOps() { orgID = p.Org }
        items, next, err := s.Store.ListJobs(r.Context(), orgID, r.URL.Query().Get("status"), r.URL.Query().Get("cursor"), queryLimit(r))
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "List jobs failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, map[string]any{"items": items, "next_cursor": next})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

func (s *Server) surgeForDate(r *http.Request, date string) *model.SurgeAdvisory {
    vessels, err := s.Store.ListVessels(r.Context(), date)
    if err != nil || len(vessels) == 0 { return nil }
    slots, err := s.Store.ListSlotsByDate(r.Context(), date)
    if err != nil { return nil }
    return allocation.Surge(date, vessels, slots)
}

// JobByIDHandler handles /v1/jobs/{id} and its action posts:
// assign, auto-assign, start, complete, cancel; plus /v1/jobs/bulk-auto-assign.
func (s *Server) JobByIDHandler(w http.ResponseWriter, r *http.Request) {
    rest := strings.TrimPrefix(r.URL.Path, "/v1/jobs/")
    if rest == r.URL.Path || rest == "" {
        writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
        return
    }
    parts := strings.Split(rest, "/")
    id := parts[0]

    if id == "bulk-auto-assign" && len(parts) == 1 {
        if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
        p := s.getPrincipal(r)
        if !p.IsOps() { writeProblem(w, 403, "Forbidden", "operator or admin required", r.URL.Path); return }
        res, err := s.Store.BulkAssign(r.Context())
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Bulk assignment failed", err.Error(), r.URL.Path)
            return
        }
        for _, det := range res.Details {
            if !det.OK { continue }
            j, err := s.Store.GetJob(r.Context(), det.JobID)
            if err != nil { continue }
            pm, err := s.Store.GetPermit(r.Context(), j.PermitID)
            if err != nil { continue }
            d, _ := s.Store.GetDriver(r.Context(), pm.DriverID)
            slot, _ := s.Store.GetSlot(r.Context(), pm.SlotID)
            s.publishIssued(r, model.AssignResult{
                JobID: j.ID, PermitID: pm.ID, PermitCode: pm.PermitCode,
                Driver: d, Slot: slot, Priority: pm.Priority,
            })
        }
        writeJSON(w, http.StatusOK, res)
        return
    }

    if len(parts) == 1 {
        if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
        j, err := s.Store.GetJob(r.Context(), id)
        if err != nil {
            storeProblem(w, r, err, "Job not found")
            return
        }
        writeJSON(w, http.StatusOK, j)
        return
    }

    if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
    switch parts[1] {
    case "assign":
        var req model.AssignRequest
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if req.DriverID == "" {
            writeProblem(w, http.StatusBadRequest, "Invalid assignment", "driver_id required; use auto-assign to pick one", r.URL.Path)
            return
        }
        res, err := s.Store.AssignJob(r.Context(), id, req.DriverID)
        if err != nil {
            storeProblem(w, r, err, "Assignment failed")
            return
        }
        s.publishIssued(r, res)
        writeJSON(w, http.StatusOK, res)
    case "auto-assign":
        res, err := s.Store.AssignJob(r.Context(), id, "")
        if err != nil {
            storeProblem(w, r, err, "Assignment failed")
            return
        }
        s.publishIssued(r, res)
        writeJSON(w, http.StatusOK, res)
    case "start":
        j, err := s.Store.StartJob(r.Context(), id)
        if err != nil {
            storeProblem(w, r, err, "Start failed")
            return
        }
        writeJSON(w, http.StatusOK, j)
    case "complete":
        j, err := s.Store.CompleteJob(r.Context(), id)
        if err != nil {
            storeProblem(w, r, err, "Complete failed")
            return
        }
        writeJSON(w, http.StatusOK, j)
    case "cancel":
        j, err := s.Store.CancelJob(r.Context(), id)
        if err != nil {
            storeProblem(w, r, err, "Cancel failed")
            return
        }
        writeJSON(w, http.StatusOK, j)
    default:
        writeProblem(w, http.StatusNotFound, "Not Found", "unknown action", r.URL.Path)
    }
}

// BookHandler handles POST /v1/book: direct permit booking without a job.
func (s *Server) BookHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
    var req model.BookRequest
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if err := validateBookRequest(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid booking", err.Error(), r.URL.Path)
        return
    }
    tier := allocation.Classify(req.CargoType)
    if req.OrgID == "" { req.OrgID = s.getPrincipal(r).Org }
    if req.OrgID != "" {
        org, err := s.Store.GetOrganization(r.Context(), req.OrgID)
        if err != nil {
            storeProblem(w, r, err, "Organization not found")
            return
        }
        if !allocation.Authorized(org.AuthorizedPriorities, tier) {
            writeProblem(w, http.StatusForbidden, "Priority not authorized", string(tier)+" requires authorization", r.URL.Path)
            return
        }
    }
    res, err := s.Store.BookPermit(r.Context(), req, tier)
    if err != nil {
        storeProblem(w, r, err, "Booking failed")
        return
    }
    s.publishIssued(r, res)
    writeJSON(w, http.StatusCreated, res)
}

// SlotsHandler handles GET/POST /v1/slots
func (s *Server) SlotsHandler(w http.ResponseWriter, r *http.Request) {
    switch r.Method {
    case http.MethodGet:
        date := r.URL.Query().Get("date")
        if !dateRe.MatchString(date) {
            writeProblem(w, http.StatusBadRequest, "Invalid date", "date=YYYY-MM-DD required", r.URL.Path)
            return
        }
        slots, err := s.Store.ListSlotsByDate(r.Context(), date)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "List slots failed", err.Error(), r.URL.Path)
            return
        }
        out := map[string]any{"date": date, "slots": slots, "traffic": s.Traffic.Worst()}
        if vessels, err := s.Store.ListVessels(r.Context(), date); err == nil && len(vessels) > 0 {
            out["vessels"] = vessels
            if adv := allocation.Surge(date, vessels, slots); adv != nil { out["surge_advisory"] = adv }
        }
        writeJSON(w, http.StatusOK, out)
    case http.MethodPost:
        p := s.getPrincipal(r)
        if !p.IsOps() { writeProblem(w, 403, "Forbidden", "operator or admin required", r.URL.Path); return }
        var in model.SlotIn
        if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if err := validateSlotIn(&in); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid slot", err.Error(), r.URL.Path)
            return
        }
        slot, err := s.Store.CreateSlot(r.Context(), in)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Create slot failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusCreated, slot)
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// SlotByIDHandler handles GET /v1/slots/{id} and POST /v1/slots/{id}/close
func (s *Server) SlotByIDHandler(w http.ResponseWriter, r *http.Request) {
    rest := strings.TrimPrefix(r.URL.Path, "/v1/slots/")
    if rest == r.URL.Path || rest == "" {
        writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
        return
    }
    parts := strings.Split(rest, "/")
    id := parts[0]
    if len(parts) > 1 && parts[1] == "close" {
        if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
        p := s.getPrincipal(r)
        if !p.IsOps() { writeProblem(w, 403, "Forbidden", "operator or admin required", r.URL.Path); return }
        slot, err := s.Store.CloseSlot(r.Context(), id)
        if err != nil {
            storeProblem(w, r, err, "Close failed")
            return
        }
        writeJSON(w, http.StatusOK, slot)
        return
    }
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    slot, err := s.Store.GetSlot(r.Context(), id)
    if err != nil {
        storeProblem(w, r, err, "Slot not found")
        return
    }
    writeJSON(w, http.StatusOK, slot)
}

// PermitsHandler handles GET /v1/permits and POST /v1/permits (direct booking).
func (s *Server) PermitsHandler(w http.ResponseWriter, r *http.Request) {
    switch r.Method {
    case http.MethodGet:
        items, next, err := s.Store.ListPermits(r.Context(), r.URL.Query().Get("status"), r.URL.Query().Get("cursor"), queryLimit(r))
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "List permits failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, map[string]any{"items": items, "next_cursor": next})
    case http.MethodPost:
        s.BookHandler(w, r)
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// PermitByIDHandler handles GET /v1/permits/{id} and the action posts:
// reinstate, reschedule, cancel, complete, qr.
func (s *Server) PermitByIDHandler(w http.ResponseWriter, r *http.Request) {
    rest := strings.TrimPrefix(r.URL.Path, "/v1/permits/")
    if rest == r.URL.Path || rest == "" {
        writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
        return
    }
    parts := strings.Split(rest, "/")
    id := parts[0]
    if len(parts) == 1 {
        if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
        pm, err := s.Store.GetPermit(r.Context(), id)
        if err != nil {
            storeProblem(w, r, err, "Permit not found")
            return
        }
        writeJSON(w, http.StatusOK, pm)
        return
    }
    if parts[1] == "qr" {
        if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
        pm, err := s.Store.GetPermit(r.Context(), id)
        if err != nil {
            storeProblem(w, r, err, "Permit not found")
            return
        }
        writeJSON(w, http.StatusOK, map[string]any{"permit_id": pm.ID, "payload": allocation.QRPayload(pm.ID, pm.PermitCode)})
        return
    }
    if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
    p := s.getPrincipal(r)
    if !p.IsOps() { writeProblem(w, 403, "Forbidden", "operator or admin required", r.URL.Path); return }
    switch parts[1] {
    case "reinstate":
        pm, err := s.Store.ReinstatePermit(r.Context(), id)
        if err != nil {
            storeProblem(w, r, err, "Reinstate failed")
            return
        }
        data := map[string]any{"permit_id": pm.ID, "permit_code": pm.PermitCode, "driver_id": pm.DriverID}
        s.Broker.Publish(TopicGate, SSEEvent{Type: "permit.reinstated", Data: data})
        s.Broker.Publish("driver:"+pm.DriverID, SSEEvent{Type: "permit.reinstated", Data: data})
        s.Notify.PermitReinstated(r.Context(), pm)
        writeJSON(w, http.StatusOK, pm)
    case "reschedule":
        var req model.RescheduleRequest
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if req.SlotID == "" {
            writeProblem(w, http.StatusBadRequest, "Invalid reschedule", "slot_id required", r.URL.Path)
            return
        }
        pm, err := s.Store.ReschedulePermit(r.Context(), id, req.SlotID)
        if err != nil {
            storeProblem(w, r, err, "Reschedule failed")
            return
        }
        data := map[string]any{"permit_id": pm.ID, "permit_code": pm.PermitCode, "driver_id": pm.DriverID, "slot_id": pm.SlotID}
        s.Broker.Publish(TopicGate, SSEEvent{Type: "permit.rescheduled", Data: data})
        s.Broker.Publish("driver:"+pm.DriverID, SSEEvent{Type: "permit.rescheduled", Data: data})
        s.Notify.PermitReinstated(r.Context(), pm)
        writeJSON(w, http.StatusOK, pm)
    case "cancel":
        pm, err := s.Store.CancelPermit(r.Context(), id)
        if err != nil {
            storeProblem(w, r, err, "Cancel failed")
            return
        }
        writeJSON(w, http.StatusOK, pm)
    case "complete":
        pm, err := s.Store.CompletePermit(r.Context(), id)
        if err != nil {
            storeProblem(w, r, err, "Complete failed")
            return
        }
        writeJSON(w, http.StatusOK, pm)
    default:
        writeProblem(w, http.StatusNotFound, "Not Found", "unknown action", r.URL.Path)
    }
}

// DriversHandler handles POST/GET /v1/drivers
func (s *Server) DriversHandler(w http.ResponseWriter, r *http.Request) {
    switch r.Method {
    case http.MethodPost:
        var in model.DriverIn
        if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if in.OrgID == "" { in.OrgID = s.getPrincipal(r).Org }
        if err := validateDriverIn(&in); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid driver", err.Error(), r.URL.Path)
            return
        }
        d, err := s.Store.CreateDriver(r.Context(), in)
        if err != nil {
            storeProblem(w, r, err, "Create driver failed")
            return
        }
        writeJSON(w, http.StatusCreated, d)
    case http.MethodGet:
        q := r.URL.Query()
        items, next, err := s.Store.ListDrivers(r.Context(), q.Get("org_id"), q.Get("available") == "true", q.Get("cursor"), queryLimit(r))
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "List drivers failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, map[string]any{"items": items, "next_cursor": next})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// DriverByIDHandler handles GET/PATCH /v1/drivers/{id}
func (s *Server) DriverByIDHandler(w http.ResponseWriter, r *http.Request) {
    id := strings.TrimPrefix(r.URL.Path, "/v1/drivers/")
    if id == r.URL.Path || id == "" || strings.Contains(id, "/") {
        writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
        return
    }
    switch r.Method {
    case http.MethodGet:
        d, err := s.Store.GetDriver(r.Context(), id)
        if err != nil {
            storeProblem(w, r, err, "Driver not found")
            return
        }
        writeJSON(w, http.StatusOK, d)
    case http.MethodPatch:
        var patch model.DriverPatch
        if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        d, err := s.Store.PatchDriver(r.Context(), id, patch)
        if err != nil {
            storeProblem(w, r, err, "Patch driver failed")
            return
        }
        writeJSON(w, http.StatusOK, d)
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// OrgsHandler handles POST/GET /v1/organizations
func (s *Server) OrgsHandler(w http.ResponseWriter, r *http.Request) {
    switch r.Method {
    case http.MethodPost:
        p := s.getPrincipal(r)
        if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
        var in model.OrganizationIn
        if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if in.Name == "" {
            writeProblem(w, http.StatusBadRequest, "Invalid organization", "name required", r.URL.Path)
            return
        }
        o, err := s.Store.CreateOrganization(r.Context(), in)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Create organization failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusCreated, o)
    case http.MethodGet:
        items, next, err := s.Store.ListOrganizations(r.Context(), r.URL.Query().Get("cursor"), queryLimit(r))
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "List organizations failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, map[string]any{"items": items, "next_cursor": next})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// OrgByIDHandler handles GET /v1/organizations/{id}
func (s *Server) OrgByIDHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    id := strings.TrimPrefix(r.URL.Path, "/v1/organizations/")
    if id == r.URL.Path || id == "" {
        writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
        return
    }
    o, err := s.Store.GetOrganization(r.Context(), id)
    if err != nil {
        storeProblem(w, r, err, "Organization not found")
        return
    }
    writeJSON(w, http.StatusOK, o)
}

// VesselsHandler handles POST/GET /v1/vessels
func (s *Server) VesselsHandler(w http.ResponseWriter, r *http.Request) {
    switch r.Method {
    case http.MethodPost:
        p := s.getPrincipal(r)
        if !p.IsOps() { writeProblem(w, 403, "Forbidden", "operator or admin required", r.URL.Path); return }
        var in model.VesselIn
        if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if err := validateVesselIn(&in); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid vessel", err.Error(), r.URL.Path)
            return
        }
        v, err := s.Store.CreateVessel(r.Context(), in)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Create vessel failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusCreated, v)
    case http.MethodGet:
        items, err := s.Store.ListVessels(r.Context(), r.URL.Query().Get("date"))
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "List vessels failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, map[string]any{"items": items})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// VesselByIDHandler handles POST /v1/vessels/{id}/status
func (s *Server) VesselByIDHandler(w http.ResponseWriter, r *http.Request) {
    rest := strings.TrimPrefix(r.URL.Path, "/v1/vessels/")
    parts := strings.Split(rest, "/")
    if len(parts) != 2 || parts[1] != "status" || r.Method != http.MethodPost {
        writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
        return
    }
    p := s.getPrincipal(r)
    if !p.IsOps() { writeProblem(w, 403, "Forbidden", "operator or admin required", r.URL.Path); return }
    var body struct {
        Status string `json:"status"`
    }
    if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    switch body.Status {
    case model.VesselScheduled, model.VesselArrived, model.VesselDeparted, model.VesselDelayed:
    default:
        writeProblem(w, http.StatusBadRequest, "Invalid status", body.Status, r.URL.Path)
        return
    }
    v, err := s.Store.SetVesselStatus(r.Context(), parts[0], body.Status)
    if err != nil {
        storeProblem(w, r, err, "Set status failed")
        return
    }
    writeJSON(w, http.StatusOK, v)
}

// NotificationsHandler handles GET /v1/notifications
func (s *Server) NotificationsHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    p := s.getPrincipal(r)
    if !p.IsOps() { writeProblem(w, 403, "Forbidden", "operator or admin required", r.URL.Path); return }
    items, next, err := s.Store.ListNotifications(r.Context(), r.URL.Query().Get("cursor"), queryLimit(r))
    if err != nil {
        writeProblem(w, http.StatusInternalServerError, "List notifications failed", err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, map[string]any{"items": items, "next_cursor": next})
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
