package api

import (
    "net/http"

    "portgate/internal/integrations/vesselcsv"
)

// VesselImportHandler ingests a vessel schedule CSV export.
// POST /v1/admin/vessels/import with a text/csv body.
func (s *Server) VesselImportHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        writeProblem(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST", r.URL.Path)
        return
    }
    p := s.getPrincipal(r)
    if !p.IsOps() {
        writeProblem(w, http.StatusForbidden, "forbidden", "operator or admin role required", r.URL.Path)
        return
    }
    rows, rowErrs := vesselcsv.Parse(r.Body)
    created := 0
    errs := []string{}
    for _, e := range rowErrs { errs = append(errs, e.Error()) }
    for _, in := range rows {
        if err := validateVesselIn(&in); err != nil {
            errs = append(errs, in.Name+": "+err.Error())
            continue
        }
        if _, err := s.Store.CreateVessel(r.Context(), in); err != nil {
            errs = append(errs, in.Name+": "+err.Error())
            continue
        }
        created++
    }
    writeJSON(w, http.StatusOK, map[string]any{
        "created": created,
        "skipped": len(errs),
        "errors":  errs,
    })
}
