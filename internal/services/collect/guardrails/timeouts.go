// Package guardrails holds the collector's per request time budgets
package guardrails

import (
	"context"
	"time"
)

// DefaultPage is the fixed budget of one upstream request
const DefaultPage = 30 * time.Second

// ForPage returns a context for one upstream request. It is detached from
// parent cancellation so an in-flight page completes or times out on its own;
// cancellation is observed between pairs instead. Values (run id, stage) carry over
func ForPage(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultPage
	}
	return context.WithTimeout(context.WithoutCancel(parent), d)
}

// Remaining returns the time until the deadline on ctx or zero when none is set or already expired
func Remaining(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			return d
		}
	}
	return 0
}
