package store

import (
    "context"
    "database/sql"
    "errors"
    "os"
    "path/filepath"
    "sort"
    "strconv"
    "strings"

    "github.com/google/uuid"
    _ "github.com/jackc/pgx/v5/stdlib"

    "portgate/internal/allocation"
    "portgate/internal/model"
)

type Postgres struct {
    db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
    db, err := sql.Open("pgx", dsn)
    if err != nil {
        return nil, err
    }
    if err := db.Ping(); err != nil {
        return nil, err
    }
    return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// MigrateDir applies every .sql file in dir in lexical order. Files are
// expected to be idempotent (CREATE TABLE IF NOT EXISTS et al).
func (p *Postgres) MigrateDir(dir string) error {
    entries, err := os.ReadDir(dir)
    if err != nil { return err }
    names := []string{}
    for _, e := range entries {
        if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") { names = append(names, e.Name()) }
    }
    sort.Strings(names)
    for _, n := range names {
        b, err := os.ReadFile(filepath.Join(dir, n))
        if err != nil { return err }
        if _, err := p.db.Exec(string(b)); err != nil { return err }
    }
    return nil
}

// Organizations

func (p *Postgres) CreateOrganization(ctx context.Context, in model.OrganizationIn) (model.Organization, error) {
    id := uuid.New().String()
    _, err := p.db.ExecContext(ctx, `INSERT INTO organizations (id, name, contact_email, contact_phone, authorized_priorities, created_at) VALUES ($1,$2,$3,$4,$5,now())`,
        id, in.Name, nullIfEmpty(in.ContactEmail), nullIfEmpty(in.ContactPhone), pqStringArray(in.AuthorizedPriorities))
    if err != nil { return model.Organization{}, err }
    return p.GetOrganization(ctx, id)
}

func (p *Postgres) GetOrganization(ctx context.Context, id string) (model.Organization, error) {
    var o model.Organization
    var email, phone sql.NullString
    var auth []byte
    err := p.db.QueryRowContext(ctx, `SELECT id::text, name, contact_email, contact_phone, array_to_json(authorized_priorities)::text, created_at::text FROM organizations WHERE id=$1`, id).
        Scan(&o.ID, &o.Name, &email, &phone, &auth, &o.CreatedAt)
    if errors.Is(err, sql.ErrNoRows) { return model.Organization{}, ErrNotFound }
    if err != nil { return model.Organization{}, err }
    o.ContactEmail = email.String
    o.ContactPhone = phone.String
    o.AuthorizedPriorities = fromJSONArray(auth)
    return o, nil
}

func (p *Postgres) ListOrganizations(ctx context.Context, cursor string, limit int) ([]model.Organization, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, name, contact_email, contact_phone, array_to_json(authorized_priorities)::text, created_at::text FROM organizations WHERE id::text > $1 ORDER BY id LIMIT $2`, cursor, limit)
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []model.Organization{}
    var last string
    for rows.Next() {
        var o model.Organization
        var email, phone sql.NullString
        var auth []byte
        if err := rows.Scan(&o.ID, &o.Name, &email, &phone, &auth, &o.CreatedAt); err != nil { return nil, "", err }
        o.ContactEmail = email.String
        o.ContactPhone = phone.String
        o.AuthorizedPriorities = fromJSONArray(auth)
        out = append(out, o)
        last = o.ID
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, rows.Err()
}

// Drivers

const driverCols = `id::text, COALESCE(org_id::text,''), name, phone, COALESCE(vehicle_plate,''), COALESCE(vehicle_type,''), is_available, is_active`

func (p *Postgres) CreateDriver(ctx context.Context, in model.DriverIn) (model.Driver, error) {
    id := uuid.New().String()
    _, err := p.db.ExecContext(ctx, `INSERT INTO drivers (id, org_id, name, phone, vehicle_plate, vehicle_type, is_available, is_active) VALUES ($1,$2,$3,$4,$5,$6,true,true)`,
        id, nullIfEmpty(in.OrgID), in.Name, in.Phone, nullIfEmpty(in.VehiclePlate), nullIfEmpty(in.VehicleType))
    if err != nil {
        if strings.Contains(err.Error(), "duplicate key") { return model.Driver{}, ErrDuplicatePhone }
        return model.Driver{}, err
    }
    return p.GetDriver(ctx, id)
}

func (p *Postgres) GetDriver(ctx context.Context, id string) (model.Driver, error) {
    var d model.Driver
    err := p.db.QueryRowContext(ctx, `SELECT `+driverCols+` FROM drivers WHERE id=$1`, id).
        Scan(&d.ID, &d.OrgID, &d.Name, &d.Phone, &d.VehiclePlate, &d.VehicleType, &d.IsAvailable, &d.IsActive)
    if errors.Is(err, sql.ErrNoRows) { return model.Driver{}, ErrDriverNotFound }
    if err != nil { return model.Driver{}, err }
    return d, nil
}

func (p *Postgres) ListDrivers(ctx context.Context, orgID string, availableOnly bool, cursor string, limit int) ([]model.Driver, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    q := `SELECT ` + driverCols + ` FROM drivers WHERE id::text > $1`
    args := []any{cursor}
    if orgID != "" {
        args = append(args, orgID)
        q += ` AND org_id=$2`
    }
    if availableOnly { q += ` AND is_available AND is_active` }
    q += ` ORDER BY id LIMIT ` + itoa(limit)
    rows, err := p.db.QueryContext(ctx, q, args...)
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []model.Driver{}
    var last string
    for rows.Next() {
        var d model.Driver
        if err := rows.Scan(&d.ID, &d.OrgID, &d.Name, &d.Phone, &d.VehiclePlate, &d.VehicleType, &d.IsAvailable, &d.IsActive); err != nil { return nil, "", err }
        out = append(out, d)
        last = d.ID
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, rows.Err()
}

func (p *Postgres) PatchDriver(ctx context.Context, id string, patch model.DriverPatch) (model.Driver, error) {
    if patch.VehiclePlate != nil {
        if _, err := p.db.ExecContext(ctx, `UPDATE drivers SET vehicle_plate=$2 WHERE id=$1`, id, nullIfEmpty(*patch.VehiclePlate)); err != nil { return model.Driver{}, err }
    }
    if patch.VehicleType != nil {
        if _, err := p.db.ExecContext(ctx, `UPDATE drivers SET vehicle_type=$2 WHERE id=$1`, id, nullIfEmpty(*patch.VehicleType)); err != nil { return model.Driver{}, err }
    }
    if patch.IsActive != nil {
        if _, err := p.db.ExecContext(ctx, `UPDATE drivers SET is_active=$2 WHERE id=$1`, id, *patch.IsActive); err != nil { return model.Driver{}, err }
    }
    return p.GetDriver(ctx, id)
}

// Jobs

const jobCols = `id::text, org_id::text, cargo_type, priority, preferred_date, preferred_time, status, COALESCE(assigned_driver_id::text,''), COALESCE(permit_id::text,''), created_at::text`

func (p *Postgres) CreateJob(ctx context.Context, in model.JobIn) (model.Job, error) {
    org, err := p.GetOrganization(ctx, in.OrgID)
    if err != nil { return model.Job{}, err }
    tier := allocation.Classify(in.CargoType)
    if !allocation.Authorized(org.AuthorizedPriorities, tier) { return model.Job{}, ErrNotAuthorized }
    id := uuid.New().String()
    _, err = p.db.ExecContext(ctx, `INSERT INTO jobs (id, org_id, cargo_type, priority, preferred_date, preferred_time, status, created_at) VALUES ($1,$2,$3,$4,$5,$6,'PENDING',now())`,
        id, in.OrgID, in.CargoType, string(tier), in.PreferredDate, in.PreferredTime)
    if err != nil { return model.Job{}, err }
    return p.GetJob(ctx, id)
}

func (p *Postgres) GetJob(ctx context.Context, id string) (model.Job, error) {
    var j model.Job
    err := p.db.QueryRowContext(ctx, `SELECT `+jobCols+` FROM jobs WHERE id=$1`, id).
        Scan(&j.ID, &j.OrgID, &j.CargoType, &j.Priority, &j.PreferredDate, &j.PreferredTime, &j.Status, &j.AssignedDriverID, &j.PermitID, &j.CreatedAt)
    if errors.Is(err, sql.ErrNoRows) { return model.Job{}, ErrNotFound }
    if err != nil { return model.Job{}, err }
    return j, nil
}

func (p *Postgres) ListJobs(ctx context.Context, orgID, status, cursor string, limit int) ([]model.Job, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    q := `SELECT ` + jobCols + ` FROM jobs WHERE id::text > $1`
    args := []any{cursor}
    if orgID != "" {
        args = append(args, orgID)
        q += ` AND org_id=$` + itoa(len(args))
    }
    if status != "" {
        args = append(args, status)
        q += ` AND status=$` + itoa(len(args))
    }
    q += ` ORDER BY id LIMIT ` + itoa(limit)
    rows, err := p.db.QueryContext(ctx, q, args...)
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []model.Job{}
    var last string
    for rows.Next() {
        var j model.Job
        if err := rows.Scan(&j.ID, &j.OrgID, &j.CargoType, &j.Priority, &j.PreferredDate, &j.PreferredTime, &j.Status, &j.AssignedDriverID, &j.PermitID, &j.CreatedAt); err != nil { return nil, "", err }
        out = append(out, j)
        last = j.ID
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, rows.Err()
}

func (p *Postgres) StartJob(ctx context.Context, id string) (model.Job, error) {
    res, err := p.db.ExecContext(ctx, `UPDATE jobs SET status='IN_PROGRESS' WHERE id=$1 AND status='ASSIGNED'
        AND NOT EXISTS (SELECT 1 FROM permits WHERE permits.id=jobs.permit_id AND permits.status='HALTED')`, id)
    if err != nil { return model.Job{}, err }
    if n, _ := res.RowsAffected(); n == 0 {
        if _, err := p.GetJob(ctx, id); err != nil { return model.Job{}, err }
        return model.Job{}, ErrConflict
    }
    return p.GetJob(ctx, id)
}

func (p *Postgres) CompleteJob(ctx context.Context, id string) (model.Job, error) {
    tx, err := p.db.BeginTx(ctx, nil)
    if err != nil { return model.Job{}, err }
    defer func() { _ = tx.Rollback() }()
    var driverID, permitID string
    err = tx.QueryRowContext(ctx, `UPDATE jobs SET status='COMPLETED' WHERE id=$1 AND status IN ('ASSIGNED','IN_PROGRESS')
        RETURNING COALESCE(assigned_driver_id::text,''), COALESCE(permit_id::text,'')`, id).Scan(&driverID, &permitID)
    if errors.Is(err, sql.ErrNoRows) {
        if _, gerr := p.GetJob(ctx, id); gerr != nil { return model.Job{}, gerr }
        return model.Job{}, ErrConflict
    }
    if err != nil { return model.Job{}, err }
    if permitID != "" {
        if _, err := tx.ExecContext(ctx, `UPDATE permits SET status='COMPLETED', completed_at=now() WHERE id=$1 AND status IN ('APPROVED','HALTED')`, permitID); err != nil { return model.Job{}, err }
    }
    if driverID != "" {
        if _, err := tx.ExecContext(ctx, `UPDATE drivers SET is_available=true WHERE id=$1`, driverID); err != nil { return model.Job{}, err }
    }
    if err := tx.Commit(); err != nil { return model.Job{}, err }
    return p.GetJob(ctx, id)
}

func (p *Postgres) CancelJob(ctx context.Context, id string) (model.Job, error) {
    tx, err := p.db.BeginTx(ctx, nil)
    if err != nil { return model.Job{}, err }
    defer func() { _ = tx.Rollback() }()
    var status, driverID, permitID string
    err = tx.QueryRowContext(ctx, `SELECT status, COALESCE(assigned_driver_id::text,''), COALESCE(permit_id::text,'') FROM jobs WHERE id=$1 FOR UPDATE`, id).Scan(&status, &driverID, &permitID)
    if errors.Is(err, sql.ErrNoRows) { return model.Job{}, ErrNotFound }
    if err != nil { return model.Job{}, err }
    switch status {
    case model.JobPending:
    case model.JobAssigned, model.JobInProgress:
        if permitID != "" {
            var slotID string
            err = tx.QueryRowContext(ctx, `UPDATE permits SET status='CANCELLED' WHERE id=$1 AND status NOT IN ('CANCELLED','COMPLETED') RETURNING slot_id::text`, permitID).Scan(&slotID)
            if err != nil && !errors.Is(err, sql.ErrNoRows) { return model.Job{}, err }
            if err == nil {
                if err := releaseSlot(ctx, tx, slotID); err != nil { return model.Job{}, err }
            }
        }
        if driverID != "" {
            if _, err := tx.ExecContext(ctx, `UPDATE drivers SET is_available=true WHERE id=$1`, driverID); err != nil { return model.Job{}, err }
        }
    default:
        return model.Job{}, ErrConflict
    }
    if _, err := tx.ExecContext(ctx, `UPDATE jobs SET status='CANCELLED' WHERE id=$1`, id); err != nil { return model.Job{}, err }
    if err := tx.Commit(); err != nil { return model.Job{}, err }
    return p.GetJob(ctx, id)
}

// Time slots

const slotCols = `id::text, date, start_time, end_time, capacity, booked, status, COALESCE(predicted_traffic,'')`

func (p *Postgres) CreateSlot(ctx context.Context, in model.SlotIn) (model.TimeSlot, error) {
    id := uuid.New().String()
    _, err := p.db.ExecContext(ctx, `INSERT INTO time_slots (id, date, start_time, end_time, capacity, booked, status, predicted_traffic) VALUES ($1,$2,$3,$4,$5,0,'AVAILABLE',$6)`,
        id, in.Date, in.StartTime, in.EndTime, in.Capacity, nullIfEmpty(in.PredictedTraffic))
    if err != nil { return model.TimeSlot{}, err }
    return p.GetSlot(ctx, id)
}

func (p *Postgres) GetSlot(ctx context.Context, id string) (model.TimeSlot, error) {
    var s model.TimeSlot
    err := p.db.QueryRowContext(ctx, `SELECT `+slotCols+` FROM time_slots WHERE id=$1`, id).
        Scan(&s.ID, &s.Date, &s.StartTime, &s.EndTime, &s.Capacity, &s.Booked, &s.Status, &s.PredictedTraffic)
    if errors.Is(err, sql.ErrNoRows) { return model.TimeSlot{}, ErrNotFound }
    if err != nil { return model.TimeSlot{}, err }
    return s, nil
}

func (p *Postgres) ListSlotsByDate(ctx context.Context, date string) ([]model.TimeSlot, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT `+slotCols+` FROM time_slots WHERE date=$1 ORDER BY start_time, id`, date)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.TimeSlot{}
    for rows.Next() {
        var s model.TimeSlot
        if err := rows.Scan(&s.ID, &s.Date, &s.StartTime, &s.EndTime, &s.Capacity, &s.Booked, &s.Status, &s.PredictedTraffic); err != nil { return nil, err }
        out = append(out, s)
    }
    return out, rows.Err()
}

func (p *Postgres) CloseSlot(ctx context.Context, id string) (model.TimeSlot, error) {
    res, err := p.db.ExecContext(ctx, `UPDATE time_slots SET status='CLOSED' WHERE id=$1`, id)
    if err != nil { return model.TimeSlot{}, err }
    if n, _ := res.RowsAffected(); n == 0 { return model.TimeSlot{}, ErrNotFound }
    return p.GetSlot(ctx, id)
}

// Allocation + issuance

func (p *Postgres) AssignJob(ctx context.Context, jobID, driverID string) (model.AssignResult, error) {
    tx, err := p.db.BeginTx(ctx, nil)
    if err != nil { return model.AssignResult{}, err }
    defer func() { _ = tx.Rollback() }()
    res, err := p.assignJobTx(ctx, tx, jobID, driverID)
    if err != nil { return model.AssignResult{}, err }
    if err := tx.Commit(); err != nil { return model.AssignResult{}, err }
    return res, nil
}

func (p *Postgres) assignJobTx(ctx context.Context, tx *sql.Tx, jobID, driverID string) (model.AssignResult, error) {
    var j model.Job
    err := tx.QueryRowContext(ctx, `SELECT id::text, org_id::text, priority, preferred_date, preferred_time, status FROM jobs WHERE id=$1 FOR UPDATE`, jobID).
        Scan(&j.ID, &j.OrgID, &j.Priority, &j.PreferredDate, &j.PreferredTime, &j.Status)
    if errors.Is(err, sql.ErrNoRows) { return model.AssignResult{}, ErrNotFound }
    if err != nil { return model.AssignResult{}, err }
    if j.Status != model.JobPending { return model.AssignResult{}, ErrJobNotPending }

    var d model.Driver
    if driverID != "" {
        err = tx.QueryRowContext(ctx, `SELECT `+driverCols+` FROM drivers WHERE id=$1 FOR UPDATE`, driverID).
            Scan(&d.ID, &d.OrgID, &d.Name, &d.Phone, &d.VehiclePlate, &d.VehicleType, &d.IsAvailable, &d.IsActive)
        if errors.Is(err, sql.ErrNoRows) { return model.AssignResult{}, ErrDriverNotFound }
        if err != nil { return model.AssignResult{}, err }
        if d.OrgID != "" && d.OrgID != j.OrgID { return model.AssignResult{}, ErrConflict }
        if !d.IsActive || !d.IsAvailable { return model.AssignResult{}, ErrDriverUnavailable }
    } else {
        err = tx.QueryRowContext(ctx, `SELECT `+driverCols+` FROM drivers WHERE org_id=$1 AND is_active AND is_available ORDER BY id LIMIT 1 FOR UPDATE SKIP LOCKED`, j.OrgID).
            Scan(&d.ID, &d.OrgID, &d.Name, &d.Phone, &d.VehiclePlate, &d.VehicleType, &d.IsAvailable, &d.IsActive)
        if errors.Is(err, sql.ErrNoRows) { return model.AssignResult{}, ErrNoDriverAvailable }
        if err != nil { return model.AssignResult{}, err }
    }

    candidates, err := slotsByDateTx(ctx, tx, j.PreferredDate)
    if err != nil { return model.AssignResult{}, err }
    // The conditional increment can lose a race against a concurrent
    // booking, so fall through the ranked candidates until one sticks.
    for len(candidates) > 0 {
        slot, ok := allocation.SelectSlot(candidates, j.PreferredTime, j.Priority)
        if !ok { return model.AssignResult{}, ErrNoSlotAvailable }
        booked, err := bookSlot(ctx, tx, slot.ID)
        if err != nil { return model.AssignResult{}, err }
        if booked {
            return p.issueTx(ctx, tx, &j, d, slot.ID, j.Priority, j.OrgID)
        }
        candidates = dropSlot(candidates, slot.ID)
    }
    return model.AssignResult{}, ErrNoSlotAvailable
}

// bookSlot is the capacity gate. The WHERE clause makes the
// check-and-increment a single atomic statement.
func bookSlot(ctx context.Context, tx *sql.Tx, slotID string) (bool, error) {
    res, err := tx.ExecContext(ctx, `UPDATE time_slots
        SET booked=booked+1, status=CASE WHEN booked+1>=capacity THEN 'FULL' ELSE status END
        WHERE id=$1 AND status='AVAILABLE' AND booked<capacity`, slotID)
    if err != nil { return false, err }
    n, _ := res.RowsAffected()
    return n > 0, nil
}

func releaseSlot(ctx context.Context, tx *sql.Tx, slotID string) error {
    _, err := tx.ExecContext(ctx, `UPDATE time_slots
        SET booked=GREATEST(booked-1,0), status=CASE WHEN status='FULL' THEN 'AVAILABLE' ELSE status END
        WHERE id=$1`, slotID)
    return err
}

// issueTx writes the permit and its side effects. The slot increment has
// already happened via bookSlot in the same transaction.
func (p *Postgres) issueTx(ctx context.Context, tx *sql.Tx, j *model.Job, d model.Driver, slotID string, tier model.Tier, orgID string) (model.AssignResult, error) {
    res, err := tx.ExecContext(ctx, `UPDATE drivers SET is_available=false WHERE id=$1 AND is_available AND is_active`, d.ID)
    if err != nil { return model.AssignResult{}, err }
    if n, _ := res.RowsAffected(); n == 0 { return model.AssignResult{}, ErrDriverUnavailable }
    d.IsAvailable = false

    permitID := uuid.New().String()
    var code string
    for {
        code = allocation.NewPermitCode()
        var jobID any
        if j != nil { jobID = j.ID }
        // Savepoint per attempt: a unique violation aborts the transaction
        // otherwise and the retry would fail with 25P02.
        if _, err = tx.ExecContext(ctx, `SAVEPOINT permit_code`); err != nil { return model.AssignResult{}, err }
        _, err = tx.ExecContext(ctx, `INSERT INTO permits (id, driver_id, slot_id, job_id, org_id, priority, status, permit_code, approved_at) VALUES ($1,$2,$3,$4,$5,$6,'APPROVED',$7,now())`,
            permitID, d.ID, slotID, jobID, nullIfEmpty(orgID), string(tier), code)
        if err == nil { break }
        if !strings.Contains(err.Error(), "duplicate key") { return model.AssignResult{}, err }
        if _, err = tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT permit_code`); err != nil { return model.AssignResult{}, err }
    }

    out := model.AssignResult{PermitID: permitID, PermitCode: code, Driver: d, Priority: tier}
    if j != nil {
        res, err := tx.ExecContext(ctx, `UPDATE jobs SET status='ASSIGNED', assigned_driver_id=$2, permit_id=$3 WHERE id=$1 AND status='PENDING'`, j.ID, d.ID, permitID)
        if err != nil { return model.AssignResult{}, err }
        if n, _ := res.RowsAffected(); n == 0 { return model.AssignResult{}, ErrJobNotPending }
        out.JobID = j.ID
    }
    var s model.TimeSlot
    err = tx.QueryRowContext(ctx, `SELECT `+slotCols+` FROM time_slots WHERE id=$1`, slotID).
        Scan(&s.ID, &s.Date, &s.StartTime, &s.EndTime, &s.Capacity, &s.Booked, &s.Status, &s.PredictedTraffic)
    if err != nil { return model.AssignResult{}, err }
    out.Slot = s
    return out, nil
}

func (p *Postgres) BulkAssign(ctx context.Context) (model.BulkAssignResult, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT `+jobCols+` FROM jobs WHERE status='PENDING' ORDER BY created_at, id`)
    if err != nil { return model.BulkAssignResult{}, err }
    pending := []model.Job{}
    for rows.Next() {
        var j model.Job
        if err := rows.Scan(&j.ID, &j.OrgID, &j.CargoType, &j.Priority, &j.PreferredDate, &j.PreferredTime, &j.Status, &j.AssignedDriverID, &j.PermitID, &j.CreatedAt); err != nil {
            rows.Close()
            return model.BulkAssignResult{}, err
        }
        pending = append(pending, j)
    }
    rows.Close()
    if err := rows.Err(); err != nil { return model.BulkAssignResult{}, err }

    res := model.BulkAssignResult{Total: len(pending), Details: []model.BulkAssignDetail{}}
    // One transaction per job: a failed assignment rolls back alone and the
    // sweep moves on.
    for _, j := range allocation.OrderJobs(pending) {
        r, err := p.AssignJob(ctx, j.ID, "")
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

func (p *Postgres) BookPermit(ctx context.Context, req model.BookRequest, tier model.Tier) (model.AssignResult, error) {
    tx, err := p.db.BeginTx(ctx, nil)
    if err != nil { return model.AssignResult{}, err }
    defer func() { _ = tx.Rollback() }()

    var d model.Driver
    err = tx.QueryRowContext(ctx, `SELECT `+driverCols+` FROM drivers WHERE id=$1 FOR UPDATE`, req.DriverID).
        Scan(&d.ID, &d.OrgID, &d.Name, &d.Phone, &d.VehiclePlate, &d.VehicleType, &d.IsAvailable, &d.IsActive)
    if errors.Is(err, sql.ErrNoRows) { return model.AssignResult{}, ErrDriverNotFound }
    if err != nil { return model.AssignResult{}, err }
    if !d.IsActive || !d.IsAvailable { return model.AssignResult{}, ErrDriverUnavailable }

    var exists bool
    if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM time_slots WHERE id=$1)`, req.SlotID).Scan(&exists); err != nil { return model.AssignResult{}, err }
    if !exists { return model.AssignResult{}, ErrNotFound }
    booked, err := bookSlot(ctx, tx, req.SlotID)
    if err != nil { return model.AssignResult{}, err }
    if !booked { return model.AssignResult{}, ErrSlotFull }

    orgID := req.OrgID
    if orgID == "" { orgID = d.OrgID }
    res, err := p.issueTx(ctx, tx, nil, d, req.SlotID, tier, orgID)
    if err != nil { return model.AssignResult{}, err }
    if err := tx.Commit(); err != nil { return model.AssignResult{}, err }
    return res, nil
}

// Permits

const permitCols = `id::text, driver_id::text, slot_id::text, COALESCE(job_id::text,''), COALESCE(org_id::text,''), priority, status, permit_code, COALESCE(approved_at::text,''), COALESCE(halted_at::text,''), COALESCE(completed_at::text,'')`

func scanPermit(row interface{ Scan(...any) error }) (model.Permit, error) {
    var pm model.Permit
    err := row.Scan(&pm.ID, &pm.DriverID, &pm.SlotID, &pm.JobID, &pm.OrgID, &pm.Priority, &pm.Status, &pm.PermitCode, &pm.ApprovedAt, &pm.HaltedAt, &pm.CompletedAt)
    return pm, err
}

func (p *Postgres) GetPermit(ctx context.Context, id string) (model.Permit, error) {
    pm, err := scanPermit(p.db.QueryRowContext(ctx, `SELECT `+permitCols+` FROM permits WHERE id=$1`, id))
    if errors.Is(err, sql.ErrNoRows) { return model.Permit{}, ErrNotFound }
    if err != nil { return model.Permit{}, err }
    return pm, nil
}

func (p *Postgres) ListPermits(ctx context.Context, status, cursor string, limit int) ([]model.Permit, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    q := `SELECT ` + permitCols + ` FROM permits WHERE id::text > $1`
    args := []any{cursor}
    if status != "" {
        args = append(args, status)
        q += ` AND status=$2`
    }
    q += ` ORDER BY id LIMIT ` + itoa(limit)
    rows, err := p.db.QueryContext(ctx, q, args...)
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []model.Permit{}
    var last string
    for rows.Next() {
        pm, err := scanPermit(rows)
        if err != nil { return nil, "", err }
        out = append(out, pm)
        last = pm.ID
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, rows.Err()
}

func (p *Postgres) ReinstatePermit(ctx context.Context, id string) (model.Permit, error) {
    res, err := p.db.ExecContext(ctx, `UPDATE permits SET status='APPROVED', halted_at=NULL WHERE id=$1 AND status='HALTED'`, id)
    if err != nil { return model.Permit{}, err }
    if n, _ := res.RowsAffected(); n == 0 {
        if _, err := p.GetPermit(ctx, id); err != nil { return model.Permit{}, err }
        return model.Permit{}, ErrConflict
    }
    return p.GetPermit(ctx, id)
}

func (p *Postgres) ReschedulePermit(ctx context.Context, id, slotID string) (model.Permit, error) {
    tx, err := p.db.BeginTx(ctx, nil)
    if err != nil { return model.Permit{}, err }
    defer func() { _ = tx.Rollback() }()
    var oldSlot, status string
    err = tx.QueryRowContext(ctx, `SELECT slot_id::text, status FROM permits WHERE id=$1 FOR UPDATE`, id).Scan(&oldSlot, &status)
    if errors.Is(err, sql.ErrNoRows) { return model.Permit{}, ErrNotFound }
    if err != nil { return model.Permit{}, err }
    if status != model.PermitHalted { return model.Permit{}, ErrConflict }
    var exists bool
    if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM time_slots WHERE id=$1)`, slotID).Scan(&exists); err != nil { return model.Permit{}, err }
    if !exists { return model.Permit{}, ErrNotFound }
    booked, err := bookSlot(ctx, tx, slotID)
    if err != nil { return model.Permit{}, err }
    if !booked { return model.Permit{}, ErrSlotFull }
    if err := releaseSlot(ctx, tx, oldSlot); err != nil { return model.Permit{}, err }
    if _, err := tx.ExecContext(ctx, `UPDATE permits SET slot_id=$2, status='APPROVED', halted_at=NULL WHERE id=$1`, id, slotID); err != nil { return model.Permit{}, err }
    if err := tx.Commit(); err != nil { return model.Permit{}, err }
    return p.GetPermit(ctx, id)
}

func (p *Postgres) CancelPermit(ctx context.Context, id string) (model.Permit, error) {
    tx, err := p.db.BeginTx(ctx, nil)
    if err != nil { return model.Permit{}, err }
    defer func() { _ = tx.Rollback() }()
    var slotID, driverID, jobID string
    err = tx.QueryRowContext(ctx, `UPDATE permits SET status='CANCELLED' WHERE id=$1 AND status NOT IN ('CANCELLED','COMPLETED')
        RETURNING slot_id::text, driver_id::text, COALESCE(job_id::text,'')`, id).Scan(&slotID, &driverID, &jobID)
    if errors.Is(err, sql.ErrNoRows) {
        if _, gerr := p.GetPermit(ctx, id); gerr != nil { return model.Permit{}, gerr }
        return model.Permit{}, ErrConflict
    }
    if err != nil { return model.Permit{}, err }
    if err := releaseSlot(ctx, tx, slotID); err != nil { return model.Permit{}, err }
    if _, err := tx.ExecContext(ctx, `UPDATE drivers SET is_available=true WHERE id=$1`, driverID); err != nil { return model.Permit{}, err }
    if jobID != "" {
        if _, err := tx.ExecContext(ctx, `UPDATE jobs SET status='PENDING', assigned_driver_id=NULL, permit_id=NULL WHERE id=$1 AND status='ASSIGNED'`, jobID); err != nil { return model.Permit{}, err }
    }
    if err := tx.Commit(); err != nil { return model.Permit{}, err }
    return p.GetPermit(ctx, id)
}

func (p *Postgres) CompletePermit(ctx context.Context, id string) (model.Permit, error) {
    tx, err := p.db.BeginTx(ctx, nil)
    if err != nil { return model.Permit{}, err }
    defer func() { _ = tx.Rollback() }()
    var driverID, jobID string
    err = tx.QueryRowContext(ctx, `UPDATE permits SET status='COMPLETED', completed_at=now() WHERE id=$1 AND status='APPROVED'
        RETURNING driver_id::text, COALESCE(job_id::text,'')`, id).Scan(&driverID, &jobID)
    if errors.Is(err, sql.ErrNoRows) {
        if _, gerr := p.GetPermit(ctx, id); gerr != nil { return model.Permit{}, gerr }
        return model.Permit{}, ErrConflict
    }
    if err != nil { return model.Permit{}, err }
    if _, err := tx.ExecContext(ctx, `UPDATE drivers SET is_available=true WHERE id=$1`, driverID); err != nil { return model.Permit{}, err }
    if jobID != "" {
        if _, err := tx.ExecContext(ctx, `UPDATE jobs SET status='COMPLETED' WHERE id=$1 AND status IN ('ASSIGNED','IN_PROGRESS')`, jobID); err != nil { return model.Permit{}, err }
    }
    if err := tx.Commit(); err != nil { return model.Permit{}, err }
    return p.GetPermit(ctx, id)
}

// Traffic

func (p *Postgres) InsertTrafficUpdate(ctx context.Context, upd model.TrafficUpdate) error {
    _, err := p.db.ExecContext(ctx, `INSERT INTO traffic_updates (id, camera_id, ts, status, vehicle_count, truck_count) VALUES ($1,$2,COALESCE(NULLIF($3,'')::timestamptz, now()),$4,$5,$6)`,
        uuid.New().String(), upd.CameraID, upd.Timestamp, upd.Status, upd.VehicleCount, upd.TruckCount)
    return err
}

func (p *Postgres) LatestTraffic(ctx context.Context, cameraID string) (model.TrafficUpdate, error) {
    q := `SELECT camera_id, ts::text, status, vehicle_count, truck_count FROM traffic_updates`
    args := []any{}
    if cameraID != "" {
        q += ` WHERE camera_id=$1`
        args = append(args, cameraID)
    }
    q += ` ORDER BY ts DESC LIMIT 1`
    var u model.TrafficUpdate
    err := p.db.QueryRowContext(ctx, q, args...).Scan(&u.CameraID, &u.Timestamp, &u.Status, &u.VehicleCount, &u.TruckCount)
    if errors.Is(err, sql.ErrNoRows) { return model.TrafficUpdate{}, ErrNotFound }
    if err != nil { return model.TrafficUpdate{}, err }
    return u, nil
}

func (p *Postgres) HaltByPriority(ctx context.Context) ([]model.Permit, int, error) {
    tx, err := p.db.BeginTx(ctx, nil)
    if err != nil { return nil, 0, err }
    defer func() { _ = tx.Rollback() }()
    rows, err := tx.QueryContext(ctx, `UPDATE permits SET status='HALTED', halted_at=now()
        WHERE status='APPROVED' AND priority IN ('NORMAL','LOW')
        RETURNING `+permitCols)
    if err != nil { return nil, 0, err }
    halted := []model.Permit{}
    for rows.Next() {
        pm, err := scanPermit(rows)
        if err != nil {
            rows.Close()
            return nil, 0, err
        }
        halted = append(halted, pm)
    }
    rows.Close()
    if err := rows.Err(); err != nil { return nil, 0, err }
    var protected int
    if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM permits WHERE status='APPROVED' AND priority IN ('EMERGENCY','ESSENTIAL')`).Scan(&protected); err != nil { return nil, 0, err }
    if err := tx.Commit(); err != nil { return nil, 0, err }
    return halted, protected, nil
}

// Vessels

func (p *Postgres) CreateVessel(ctx context.Context, in model.VesselIn) (model.VesselSchedule, error) {
    id := uuid.New().String()
    _, err := p.db.ExecContext(ctx, `INSERT INTO vessel_schedules (id, name, arrival_date, arrival_time, estimated_trucks, cargo_priority_hint, status) VALUES ($1,$2,$3,$4,$5,$6,'SCHEDULED')`,
        id, in.Name, in.ArrivalDate, nullIfEmpty(in.ArrivalTime), in.EstimatedTrucks, nullIfEmpty(in.CargoPriorityHint))
    if err != nil { return model.VesselSchedule{}, err }
    return p.getVessel(ctx, id)
}

func (p *Postgres) getVessel(ctx context.Context, id string) (model.VesselSchedule, error) {
    var v model.VesselSchedule
    err := p.db.QueryRowContext(ctx, `SELECT id::text, name, arrival_date, COALESCE(arrival_time,''), estimated_trucks, COALESCE(cargo_priority_hint,''), status FROM vessel_schedules WHERE id=$1`, id).
        Scan(&v.ID, &v.Name, &v.ArrivalDate, &v.ArrivalTime, &v.EstimatedTrucks, &v.CargoPriorityHint, &v.Status)
    if errors.Is(err, sql.ErrNoRows) { return model.VesselSchedule{}, ErrNotFound }
    if err != nil { return model.VesselSchedule{}, err }
    return v, nil
}

func (p *Postgres) ListVessels(ctx context.Context, date string) ([]model.VesselSchedule, error) {
    q := `SELECT id::text, name, arrival_date, COALESCE(arrival_time,''), estimated_trucks, COALESCE(cargo_priority_hint,''), status FROM vessel_schedules`
    args := []any{}
    if date != "" {
        q += ` WHERE arrival_date=$1`
        args = append(args, date)
    }
    q += ` ORDER BY arrival_date, id`
    rows, err := p.db.QueryContext(ctx, q, args...)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.VesselSchedule{}
    for rows.Next() {
        var v model.VesselSchedule
        if err := rows.Scan(&v.ID, &v.Name, &v.ArrivalDate, &v.ArrivalTime, &v.EstimatedTrucks, &v.CargoPriorityHint, &v.Status); err != nil { return nil, err }
        out = append(out, v)
    }
    return out, rows.Err()
}

func (p *Postgres) SetVesselStatus(ctx context.Context, id, status string) (model.VesselSchedule, error) {
    res, err := p.db.ExecContext(ctx, `UPDATE vessel_schedules SET status=$2 WHERE id=$1`, id, status)
    if err != nil { return model.VesselSchedule{}, err }
    if n, _ := res.RowsAffected(); n == 0 { return model.VesselSchedule{}, ErrNotFound }
    return p.getVessel(ctx, id)
}

// Notifications

func (p *Postgres) CreateNotification(ctx context.Context, driverID, permitID, message string) (model.Notification, error) {
    id := uuid.New().String()
    _, err := p.db.ExecContext(ctx, `INSERT INTO notifications (id, driver_id, permit_id, message, status, created_at) VALUES ($1,$2,$3,$4,'PENDING',now())`,
        id, driverID, nullIfEmpty(permitID), message)
    if err != nil { return model.Notification{}, err }
    return model.Notification{ID: id, DriverID: driverID, PermitID: permitID, Message: message, Status: "PENDING"}, nil
}

func (p *Postgres) ListNotifications(ctx context.Context, cursor string, limit int) ([]model.Notification, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, driver_id::text, COALESCE(permit_id::text,''), message, status, created_at::text, COALESCE(sent_at::text,'') FROM notifications WHERE id::text > $1 ORDER BY id LIMIT $2`, cursor, limit)
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []model.Notification{}
    var last string
    for rows.Next() {
        var n model.Notification
        if err := rows.Scan(&n.ID, &n.DriverID, &n.PermitID, &n.Message, &n.Status, &n.CreatedAt, &n.SentAt); err != nil { return nil, "", err }
        out = append(out, n)
        last = n.ID
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, rows.Err()
}

func (p *Postgres) FetchPendingNotifications(ctx context.Context, limit int) ([]model.Notification, error) {
    if limit <= 0 { limit = 100 }
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, driver_id::text, COALESCE(permit_id::text,''), message, status, created_at::text, COALESCE(sent_at::text,'') FROM notifications WHERE status='PENDING' ORDER BY created_at LIMIT $1`, limit)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.Notification{}
    for rows.Next() {
        var n model.Notification
        if err := rows.Scan(&n.ID, &n.DriverID, &n.PermitID, &n.Message, &n.Status, &n.CreatedAt, &n.SentAt); err != nil { return nil, err }
        out = append(out, n)
    }
    return out, rows.Err()
}

func (p *Postgres) MarkNotificationSent(ctx context.Context, id string) error {
    res, err := p.db.ExecContext(ctx, `UPDATE notifications SET status='SENT', sent_at=now() WHERE id=$1`, id)
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

// helpers

func nullIfEmpty(s string) any { if s == "" { return nil }; return s }

func pqStringArray(v []string) any {
    if len(v) == 0 { return nil }
    parts := make([]string, len(v))
    for i, s := range v { parts[i] = `"` + strings.ReplaceAll(s, `"`, `\"`) + `"` }
    return "{" + strings.Join(parts, ",") + "}"
}

func fromJSONArray(b []byte) []string {
    if len(b) == 0 { return nil }
    s := strings.Trim(string(b), "[]")
    if s == "" { return nil }
    out := []string{}
    for _, part := range strings.Split(s, ",") {
        out = append(out, strings.Trim(strings.TrimSpace(part), `"`))
    }
    return out
}

func dropSlot(slots []model.TimeSlot, id string) []model.TimeSlot {
    out := slots[:0]
    for _, s := range slots {
        if s.ID != id { out = append(out, s) }
    }
    return out
}

func slotsByDateTx(ctx context.Context, tx *sql.Tx, date string) ([]model.TimeSlot, error) {
    rows, err := tx.QueryContext(ctx, `SELECT `+slotCols+` FROM time_slots WHERE date=$1 ORDER BY start_time, id`, date)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.TimeSlot{}
    for rows.Next() {
        var s model.TimeSlot
        if err := rows.Scan(&s.ID, &s.Date, &s.StartTime, &s.EndTime, &s.Capacity, &s.Booked, &s.Status, &s.PredictedTraffic); err != nil { return nil, err }
        out = append(out, s)
    }
    return out, rows.Err()
}

func itoa(n int) string { return strconv.Itoa(n) }
