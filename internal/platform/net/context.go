// Package net carries request scoped ids between transports and the logger
package net

import (
	"context"

	"tubesense/internal/platform/logger"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// WithRequest sets the chi request id and mirrors it onto the logger context
func WithRequest(ctx context.Context, reqID string) context.Context {
	if reqID == "" {
		return ctx
	}
	ctx = context.WithValue(ctx, chimw.RequestIDKey, reqID)
	return logger.WithRequest(ctx, reqID)
}

// RequestID returns the request id on the context if present
func RequestID(ctx context.Context) string { return chimw.GetReqID(ctx) }
