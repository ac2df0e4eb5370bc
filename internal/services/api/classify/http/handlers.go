// Package http provides http transport for dry run classification
package http

import (
	stdhttp "net/http"

	"tubesense/internal/modkit/httpkit"
	"tubesense/internal/services/api/classify/domain"
	svc "tubesense/internal/services/api/classify/service"
)

// Register mounts the classify endpoint on the given router
func Register(r httpkit.Router, s svc.Service) {
	h := &handlers{svc: s}
	httpkit.PostJSON[domain.Input](r, "/classify", h.classify)
}

type handlers struct{ svc svc.Service }

func (h *handlers) classify(r *stdhttp.Request, in domain.Input) (any, error) {
	return h.svc.Classify(r.Context(), in)
}
