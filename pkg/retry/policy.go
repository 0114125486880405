package retry

import (
	"time"

	"github.com/jzx17/goresilience/pkg/classify"
)

// Default policy values used when a Policy leaves the corresponding
// field unset
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 1 * time.Second
	DefaultMaxDelay    = 30 * time.Second
	DefaultMultiplier  = 2.0
)

// DefaultService is the service label applied by Execute and
// ExecuteAsync when the caller does not name one
const DefaultService = "default"

// defaultCondition layers the HTTP status rules over the kind-based
// default, so status-bearing errors honor 408/409/429/5xx out of the box
var defaultCondition = classify.HTTPAware(classify.Default)

// Policy describes how a single operation is retried. Fields left at
// their zero value fall back to the package defaults; the executor works
// on its own copy, so changing a Policy never affects an execution
// already in flight.
type Policy struct {
	// MaxAttempts bounds the total number of invocations, first try
	// included
	MaxAttempts int

	// BaseDelay is the wait before the second attempt; later waits grow
	// by Multiplier per attempt, clamped to MaxDelay
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64

	// Jitter scales every wait by a uniform draw from [0.5, 1.0) to
	// stagger concurrent retries. DefaultPolicy enables it.
	Jitter bool

	// Retryable decides whether a failed attempt is worth repeating.
	// Nil means classify.HTTPAware over classify.Default.
	Retryable classify.Condition

	// OnRetry runs after a failed attempt, before the backoff wait for
	// the next one. OnSuccess and OnFailure run once on the terminal
	// outcome. All hooks are called synchronously on the executing
	// goroutine.
	OnRetry   func(attempt int, err error, delay time.Duration)
	OnSuccess func(attempt int, duration time.Duration)
	OnFailure func(attempt int, err error)
}

// DefaultPolicy returns the documented default policy: 3 attempts,
// exponential backoff from 1s doubling up to 30s, jitter enabled, the
// HTTP-aware classifier as the retry condition.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
		Multiplier:  DefaultMultiplier,
		Jitter:      true,
		Retryable:   defaultCondition,
	}
}

// withDefaults returns a copy with unset fields filled in. Jitter is
// left as given: a zero Policy retries without jitter, DefaultPolicy
// retries with it.
func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = DefaultMultiplier
	}
	if p.Retryable == nil {
		p.Retryable = defaultCondition
	}
	return p
}

// ShouldRetry reports whether a failed attempt should be followed by
// another one. It refuses once attempt reaches MaxAttempts, and
// otherwise defers to the retry condition.
func (p Policy) ShouldRetry(err error, attempt int) bool {
	if attempt >= p.MaxAttempts {
		return false
	}

	condition := p.Retryable
	if condition == nil {
		condition = defaultCondition
	}
	return condition(err)
}
