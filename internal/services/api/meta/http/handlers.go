// Package http provides meta endpoints
package http

import (
	stdctx "context"
	"net/http"
	"time"

	"tubesense/internal/core/version"
	"tubesense/internal/modkit/httpkit"
)

// Check is a named readiness check
type Check struct {
	Name string
	// Ping nil reports the dependency as skipped
	Ping func(stdctx.Context) error
}

// Deps are the handler dependencies
type Deps struct {
	ServiceName string
	StartedAt   time.Time
	Checks      []Check
	// ReadyTimeout bounds all checks of one /readyz call; 0 means 2s
	ReadyTimeout time.Duration
}

type handlers struct {
	deps Deps
}

// Register mounts the meta routes
func Register(r httpkit.Router, d Deps) {
	if d.ReadyTimeout <= 0 {
		d.ReadyTimeout = 2 * time.Second
	}
	h := &handlers{deps: d}

	httpkit.Get(r, "/healthz", h.health)
	r.Get("/readyz", httpkit.Handle(h.ready))
	httpkit.Get(r, "/version", h.version)
}

// HealthResponse is the health payload
type HealthResponse struct {
	OK      bool   `json:"ok" example:"true"`
	Service string `json:"service" example:"tubesense-api"`
	Started string `json:"started" example:"2024-03-01T12:00:00Z"`
	Uptime  int64  `json:"uptime" example:"300"`
	Now     string `json:"now" example:"2024-03-01T12:05:00Z"`
}

// ReadyCheck describes a single dependency check
type ReadyCheck struct {
	Name   string `json:"name" example:"pg"`
	Status string `json:"status" example:"ok"` // ok fail skipped
	Error  string `json:"error,omitempty" example:"dial tcp 127.0.0.1:5432: connect: connection refused"`
}

// ReadyResponse summarizes readiness
type ReadyResponse struct {
	Status string       `json:"status" example:"ok"` // ok degraded fail
	Checks []ReadyCheck `json:"checks"`
	Now    string       `json:"now" example:"2024-03-01T12:05:00Z"`
}

func (h *handlers) health(_ *http.Request) (any, error) {
	now := time.Now().UTC()
	return HealthResponse{
		OK:      true,
		Service: h.deps.ServiceName,
		Started: h.deps.StartedAt.UTC().Format(time.RFC3339),
		Uptime:  int64(now.Sub(h.deps.StartedAt) / time.Second),
		Now:     now.Format(time.RFC3339),
	}, nil
}

// ready answers 503 when any check fails so orchestrators stop routing
func (h *handlers) ready(r *http.Request) httpkit.Response {
	ctx, cancel := stdctx.WithTimeout(r.Context(), h.deps.ReadyTimeout)
	defer cancel()

	out := ReadyResponse{Status: "ok", Checks: make([]ReadyCheck, 0, len(h.deps.Checks))}
	for _, c := range h.deps.Checks {
		rc := ReadyCheck{Name: c.Name, Status: "ok"}
		switch {
		case c.Ping == nil:
			rc.Status = "skipped"
			if out.Status == "ok" {
				out.Status = "degraded"
			}
		default:
			if err := c.Ping(ctx); err != nil {
				rc.Status, rc.Error = "fail", err.Error()
				out.Status = "fail"
			}
		}
		out.Checks = append(out.Checks, rc)
	}
	out.Now = time.Now().UTC().Format(time.RFC3339)

	status := http.StatusOK
	if out.Status == "fail" {
		status = http.StatusServiceUnavailable
	}
	return httpkit.Response{Status: status, Body: out}
}

func (h *handlers) version(_ *http.Request) (any, error) {
	return version.Info(h.deps.ServiceName), nil
}
