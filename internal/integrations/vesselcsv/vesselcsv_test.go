package vesselcsv

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseWithHeader(t *testing.T) {
	in := "name,arrival_date,arrival_time,estimated_trucks,cargo_priority_hint\n" +
		"MSC AURORA,2026-09-01,06:00,120,normal\n" +
		"EVER GIFTED,2026-09-02,,80,HAZARDOUS\n"
	rows, errs := Parse(strings.NewReader(in))
	if len(errs) != 0 {
		t.Fatalf("errs: %v", errs)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d", len(rows))
	}
	if rows[0].Name != "MSC AURORA" || rows[0].EstimatedTrucks != 120 {
		t.Fatalf("row0 = %+v", rows[0])
	}
	if rows[1].CargoPriorityHint != "HAZARDOUS" {
		t.Fatalf("hint = %q", rows[1].CargoPriorityHint)
	}
}

func TestParseBadRowsReported(t *testing.T) {
	in := "name,arrival_date,arrival_time,estimated_trucks,cargo_priority_hint\n" +
		",2026-09-01,06:00,10,\n" +
		"OK SHIP,2026-09-01,06:00,notanumber,\n" +
		"GOOD SHIP,2026-09-03,07:00,5,\n"
	rows, errs := Parse(strings.NewReader(in))
	if len(rows) != 1 || rows[0].Name != "GOOD SHIP" {
		t.Fatalf("rows = %+v", rows)
	}
	if len(errs) != 2 {
		t.Fatalf("errs = %v", errs)
	}
}

func TestFileSourceSinceFilter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sched.csv")
	data := "name,arrival_date,arrival_time,estimated_trucks,cargo_priority_hint\n" +
		"OLD,2026-08-01,06:00,10,\n" +
		"NEW,2026-09-01,06:00,10,\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	src := &FileSource{Path: path}
	rows, err := src.FetchSchedules("2026-08-15")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Name != "NEW" {
		t.Fatalf("rows = %+v", rows)
	}
}
