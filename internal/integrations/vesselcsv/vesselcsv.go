// Package vesselcsv parses vessel schedule CSV exports.
// Expected header: name,arrival_date,arrival_time,estimated_trucks,cargo_priority_hint
package vesselcsv

import (
    "encoding/csv"
    "fmt"
    "io"
    "os"
    "strconv"
    "strings"

    "portgate/internal/model"
)

// FileSource reads schedules from a CSV file on disk.
type FileSource struct {
    Path string
}

func (f *FileSource) Name() string { return "csvfile:" + f.Path }

// FetchSchedules returns every row with arrival_date >= since.
// An empty since returns everything.
func (f *FileSource) FetchSchedules(since string) ([]model.VesselIn, error) {
    fh, err := os.Open(f.Path)
    if err != nil {
        return nil, err
    }
    defer fh.Close()
    rows, errs := Parse(fh)
    if len(rows) == 0 && len(errs) > 0 {
        return nil, errs[0]
    }
    if since == "" {
        return rows, nil
    }
    out := rows[:0]
    for _, v := range rows {
        if v.ArrivalDate >= since { out = append(out, v) }
    }
    return out, nil
}

// Parse reads a schedule CSV. Rows with a bad truck count or missing name
// are returned as row errors; good rows still import.
func Parse(r io.Reader) ([]model.VesselIn, []error) {
    cr := csv.NewReader(r)
    cr.TrimLeadingSpace = true
    rows, err := cr.ReadAll()
    if err != nil {
        return nil, []error{err}
    }
    if len(rows) == 0 {
        return nil, nil
    }
    idx := headerIndex(rows[0])
    start := 0
    if idx != nil { start = 1 } else {
        // headerless export: assume canonical column order
        idx = map[string]int{"name": 0, "arrival_date": 1, "arrival_time": 2, "estimated_trucks": 3, "cargo_priority_hint": 4}
    }
    out := []model.VesselIn{}
    errs := []error{}
    for i := start; i < len(rows); i++ {
        row := rows[i]
        v, err := parseRow(row, idx)
        if err != nil {
            errs = append(errs, fmt.Errorf("row %d: %w", i+1, err))
            continue
        }
        out = append(out, v)
    }
    return out, errs
}

func headerIndex(row []string) map[string]int {
    idx := map[string]int{}
    for i, col := range row {
        idx[strings.ToLower(strings.TrimSpace(col))] = i
    }
    if _, ok := idx["name"]; !ok { return nil }
    if _, ok := idx["arrival_date"]; !ok { return nil }
    return idx
}

func field(row []string, idx map[string]int, name string) string {
    i, ok := idx[name]
    if !ok || i >= len(row) { return "" }
    return strings.TrimSpace(row[i])
}

func parseRow(row []string, idx map[string]int) (model.VesselIn, error) {
    v := model.VesselIn{
        Name:              field(row, idx, "name"),
        ArrivalDate:       field(row, idx, "arrival_date"),
        ArrivalTime:       field(row, idx, "arrival_time"),
        CargoPriorityHint: strings.ToUpper(field(row, idx, "cargo_priority_hint")),
    }
    if v.Name == "" {
        return model.VesselIn{}, fmt.Errorf("name required")
    }
    if v.ArrivalDate == "" {
        return model.VesselIn{}, fmt.Errorf("arrival_date required")
    }
    if s := field(row, idx, "estimated_trucks"); s != "" {
        n, err := strconv.Atoi(s)
        if err != nil || n < 0 {
            return model.VesselIn{}, fmt.Errorf("bad estimated_trucks %q", s)
        }
        v.EstimatedTrucks = n
    }
    return v, nil
}
