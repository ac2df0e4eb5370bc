// Package httpkit provides handler and routing helpers that alias the platform http package
// modules use these so they do not import internal/platform/net/http directly
package httpkit

import (
	"net/http"

	phttp "tubesense/internal/platform/net/http"
)

type (
	// Envelope is the transport envelope type
	Envelope = phttp.Envelope

	// Response is the HTTP response type
	Response = phttp.Response

	// Handler is the platform handler type
	Handler = phttp.Handler

	// Router is a re-export of the platform router seam
	Router = phttp.Router
)

// OK returns a 200 response
func OK(data any) Response { return phttp.OK(data) }

// Error returns a response that maps an error to status and envelope
func Error(err error) Response { return phttp.Error(err) }

// Handle adapts a Response returning func
func Handle(fn func(*http.Request) Response) Handler { return phttp.Handle(fn) }

// Call adapts a handler that takes no JSON body; a returned Response passes through untouched
func Call(fn func(*http.Request) (any, error)) Handler {
	return phttp.Handle(func(r *http.Request) phttp.Response {
		out, err := fn(r)
		if err != nil {
			return phttp.Error(err)
		}
		if resp, ok := out.(phttp.Response); ok {
			return resp
		}
		return phttp.OK(out)
	})
}
