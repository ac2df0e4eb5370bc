package youtube

import (
	"context"
	"errors"
	"net"
	"net/http"

	"google.golang.org/api/googleapi"

	perr "tubesense/internal/platform/errors"
)

// quota reasons the Data API reports with a 403
var quotaReasons = map[string]bool{
	"quotaExceeded":      true,
	"dailyLimitExceeded": true,
}

// rate reasons are per second throttles and worth a retry
var rateReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
}

// classify maps a client error onto the collector's taxonomy
func classify(err error, op string) error {
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		reason := ""
		if len(gerr.Errors) > 0 {
			reason = gerr.Errors[0].Reason
		}
		var code perr.ErrorCode
		switch {
		case quotaReasons[reason]:
			code = perr.ErrorCodeQuotaRejected
		case gerr.Code == http.StatusTooManyRequests || rateReasons[reason]:
			code = perr.ErrorCodeTooManyRequests
		case gerr.Code >= 500:
			code = perr.ErrorCodeUnavailable
		case gerr.Code == http.StatusBadRequest || gerr.Code == http.StatusNotFound:
			code = perr.ErrorCodeInvalidArgument
		default:
			code = perr.ErrorCodeUnknown
		}
		return perr.WithOp(perr.Wrapf(err, code, "youtube %s: status %d %s", op, gerr.Code, reason), op)
	}

	if errors.Is(err, context.Canceled) {
		return err
	}
	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &nerr) {
		return perr.WithOp(perr.Wrapf(err, perr.ErrorCodeUnavailable, "youtube %s: transport", op), op)
	}
	return perr.WithOp(perr.Wrapf(err, perr.ErrorCodeUnavailable, "youtube %s", op), op)
}
