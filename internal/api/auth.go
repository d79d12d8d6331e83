// Package api implements HTTP handlers and helpers for the PortGate service.
package api

import (
    "net/http"
    "strings"
)

type Principal struct {
	Org      string
	Role     string // admin, operator, org, driver
	DriverID string
}

// getPrincipal extracts org and role from JWT or headers.
// - If Authorization: Bearer is present, uses configured verifier (dev/hmac/jwks).
// - Else falls back to headers for dev.
func (s *Server) getPrincipal(r *http.Request) Principal {
    authz := r.Header.Get("Authorization")
    if strings.HasPrefix(strings.ToLower(authz), "bearer ") && s.Auth != nil {
        tok := strings.TrimSpace(authz[len("Bearer "):])
        if pr, err := s.Auth.Verify(tok); err == nil {
            return Principal{Org: pr.Org, Role: pr.Role, DriverID: pr.DriverID}
        }
    }
    org := r.Header.Get("X-Org-Id")
    role := r.Header.Get("X-Role")
    driverID := r.Header.Get("X-Driver-Id")
    if role == "" {
        role = "admin"
    }
    return Principal{Org: org, Role: role, DriverID: driverID}
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == "admin" }

// IsOps reports whether the principal may run gate operations.
func (p Principal) IsOps() bool { return p.Role == "admin" || p.Role == "operator" }
