package api

import (
    "net/http"
    "os"

    yaml "gopkg.in/yaml.v3"
)

// openAPILoad loads the OpenAPI bytes (path overridable for packaging).
func openAPILoad() ([]byte, error) {
    p := os.Getenv("OPENAPI_PATH")
    if p == "" { p = "openapi/openapi.yaml" }
    return os.ReadFile(p)
}

// OpenAPIHandler serves the OpenAPI spec as YAML or JSON by path suffix.
func (s *Server) OpenAPIHandler(w http.ResponseWriter, r *http.Request) {
    b, err := openAPILoad()
    if err != nil { writeProblem(w, 500, "OpenAPI not available", err.Error(), r.URL.Path); return }
    if r.URL.Path == "/openapi.json" {
        var obj map[string]any
        if err := yaml.Unmarshal(b, &obj); err != nil { writeProblem(w, 500, "OpenAPI parse failed", err.Error(), r.URL.Path); return }
        writeJSON(w, 200, obj)
        return
    }
    w.Header().Set("Content-Type", "application/yaml")
    w.WriteHeader(200)
    _, _ = w.Write(b)
}

// DocsHandler serves a minimal ReDoc page referencing /openapi.yaml
func (s *Server) DocsHandler(w http.ResponseWriter, r *http.Request) {
    w.Header().Set("Content-Type", "text/html; charset=utf-8")
    w.WriteHeader(200)
    _, _ = w.Write([]byte(`<!DOCTYPE html><html><head><title>API Docs</title>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <script src="https://cdn.jsdelivr.net/npm/redoc@next/bundles/redoc.standalone.js"></script>
    </head><body>
    <redoc spec-url="/openapi.yaml"></redoc>
    </body></html>`))
}
