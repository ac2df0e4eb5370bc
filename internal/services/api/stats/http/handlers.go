// Package http provides http transport for warehouse reads
package http

import (
	stdhttp "net/http"
	"strconv"

	"tubesense/internal/modkit/httpkit"
	perr "tubesense/internal/platform/errors"
	"tubesense/internal/services/api/stats/domain"
	svc "tubesense/internal/services/api/stats/service"
)

// Register mounts stats endpoints on the given router
func Register(r httpkit.Router, s svc.Service) {
	h := &handlers{svc: s}

	// newest loaded batches
	httpkit.Get(r, "/batches", h.batches)

	// region/day sentiment aggregates
	httpkit.PostJSON[domain.DailyInput](r, "/aggregates/daily", h.daily)
}

type handlers struct{ svc svc.Service }

// GET /batches?limit=N
func (h *handlers) batches(r *stdhttp.Request) (any, error) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, perr.WithField(perr.InvalidArgf("limit must be an integer"), "limit")
		}
		limit = n
	}
	return h.svc.Batches(r.Context(), limit)
}

func (h *handlers) daily(r *stdhttp.Request, in domain.DailyInput) (any, error) {
	return h.svc.Daily(r.Context(), in)
}
