//go:build postgres_integration

package store

import (
    "os"
    "testing"

    "portgate/internal/model"
)

func TestPostgresConnectivityAndMigrate(t *testing.T) {
    dsn := os.Getenv("DATABASE_URL")
    if dsn == "" { t.Skip("DATABASE_URL not set; skipping integration test") }
    p, err := NewPostgres(dsn)
    if err != nil { t.Fatalf("NewPostgres: %v", err) }
    if err := p.Ping(t.Context()); err != nil { t.Fatalf("Ping: %v", err) }
    if err := p.MigrateDir("../../db/migrations"); err != nil { t.Fatalf("MigrateDir: %v", err) }
    // Try simple call
    if _, _, err := p.ListPermits(t.Context(), "", "", 1); err != nil { t.Fatalf("ListPermits: %v", err) }
}

func TestPostgresBulkAssignCreationOrder(t *testing.T) {
    dsn := os.Getenv("DATABASE_URL")
    if dsn == "" { t.Skip("DATABASE_URL not set; skipping integration test") }
    p, err := NewPostgres(dsn)
    if err != nil { t.Fatalf("NewPostgres: %v", err) }
    if err := p.MigrateDir("../../db/migrations"); err != nil { t.Fatalf("MigrateDir: %v", err) }
    ctx := t.Context()

    org, err := p.CreateOrganization(ctx, model.OrganizationIn{Name: "Bulk Order Test"})
    if err != nil { t.Fatalf("org: %v", err) }
    if _, err := p.CreateDriver(ctx, model.DriverIn{OrgID: org.ID, Name: "Only Driver", Phone: "+1555" + org.ID[:8]}); err != nil {
        t.Fatalf("driver: %v", err)
    }
    if _, err := p.CreateSlot(ctx, model.SlotIn{Date: "2031-01-01", StartTime: "06:00", EndTime: "08:00", Capacity: 5}); err != nil {
        t.Fatalf("slot: %v", err)
    }
    first, err := p.CreateJob(ctx, model.JobIn{OrgID: org.ID, CargoType: "STANDARD", PreferredDate: "2031-01-01", PreferredTime: "06:00"})
    if err != nil { t.Fatalf("job: %v", err) }
    second, err := p.CreateJob(ctx, model.JobIn{OrgID: org.ID, CargoType: "STANDARD", PreferredDate: "2031-01-01", PreferredTime: "06:00"})
    if err != nil { t.Fatalf("job: %v", err) }

    if _, err := p.BulkAssign(ctx); err != nil { t.Fatalf("BulkAssign: %v", err) }
    // Same tier: the older job takes the only driver.
    f, _ := p.GetJob(ctx, first.ID)
    if f.Status != model.JobAssigned { t.Fatalf("first-created job = %s", f.Status) }
    s, _ := p.GetJob(ctx, second.ID)
    if s.Status != model.JobPending { t.Fatalf("second-created job = %s", s.Status) }
}
