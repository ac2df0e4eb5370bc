package httpkit

import (
	"net/http"

	phttp "tubesense/internal/platform/net/http"
)

// PostJSON mounts a bound and validated JSON body handler under POST
func PostJSON[T any](r Router, path string, h func(*http.Request, T) (any, error)) {
	phttp.PostJSON(r, path, h)
}

// Get registers a no-body handler and uses the envelope adapter
func Get(r Router, path string, h func(*http.Request) (any, error)) {
	r.Get(path, Call(h))
}

// Post registers a no-body handler and uses the envelope adapter
func Post(r Router, path string, h func(*http.Request) (any, error)) {
	r.Post(path, Call(h))
}
