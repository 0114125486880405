// Package classify provides retry conditions over the failure taxonomy
package classify

import (
	"net/http"

	"github.com/jzx17/goresilience/pkg/types"
)

// Condition determines whether a failed operation should be retried.
// Conditions never see nil errors from the executor, but guard anyway so
// they compose safely.
type Condition func(error) bool

// Default is the kind-based retry condition. Transient network failures,
// timeouts, rate limits and server faults are retryable; client request
// errors, aborts and circuit rejections are not. Unclassified errors are
// treated as retryable, on the assumption that unrecognized failures from a
// remote service are more likely transient than permanent.
func Default(err error) bool {
	return kindRetryable(err, true)
}

// WithUnclassifiedRetryable returns a kind-based condition like Default
// with an explicit fallback for unclassified errors. Pass false when the
// wrapped operations are client-originated and an unknown failure should
// not burn attempts.
func WithUnclassifiedRetryable(retryable bool) Condition {
	return func(err error) bool {
		return kindRetryable(err, retryable)
	}
}

func kindRetryable(err error, unclassified bool) bool {
	if err == nil {
		return false
	}

	switch types.KindOf(err) {
	case types.KindTransientNetwork, types.KindTimeout, types.KindRateLimited, types.KindServerFault:
		return true
	case types.KindClientRequest, types.KindAborted, types.KindCircuitOpen:
		return false
	default:
		return unclassified
	}
}

// HTTPAware applies HTTP status rules before delegating to next. Failures
// carrying a status retry only on 408 (request timeout), 409 (conflict),
// 429 (rate limited) and any 5xx; every other status is refused. Failures
// without a status fall through to next.
func HTTPAware(next Condition) Condition {
	return func(err error) bool {
		if err == nil {
			return false
		}

		status, ok := types.StatusCode(err)
		if !ok {
			return next(err)
		}

		switch {
		case status == http.StatusRequestTimeout,
			status == http.StatusConflict,
			status == http.StatusTooManyRequests:
			return true
		case status >= 500:
			return true
		default:
			return false
		}
	}
}

// WhenOnline gates a condition on connectivity. While offline reports true,
// network and timeout failures are refused immediately instead of burning
// attempts against a known-dead link; other kinds still consult next.
func WhenOnline(next Condition, offline func() bool) Condition {
	return func(err error) bool {
		if offline != nil && offline() {
			switch types.KindOf(err) {
			case types.KindTransientNetwork, types.KindTimeout:
				return false
			}
		}
		return next(err)
	}
}
