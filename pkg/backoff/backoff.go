// Package backoff provides retry delay calculation strategies
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Strategy defines the backoff strategy interface
type Strategy interface {
	// NextDelay calculates the delay before the next retry
	NextDelay(attempt int) time.Duration

	// Reset resets the strategy state
	Reset()
}

// Exponential implements exponential backoff with bounded jitter
type Exponential struct {
	baseDelay  time.Duration
	multiplier float64
	maxDelay   time.Duration
	jitter     bool
	randFloat  func() float64
}

// NewExponential creates an exponential backoff strategy.
// Defaults: multiplier 2.0, max delay 30s, jitter enabled.
func NewExponential(baseDelay time.Duration, opts ...StrategyOption) *Exponential {
	b := &Exponential{
		baseDelay:  baseDelay,
		multiplier: 2.0,
		maxDelay:   30 * time.Second,
		jitter:     true,
		randFloat:  rand.Float64,
	}

	for _, opt := range opts {
		opt.applyToExponential(b)
	}

	return b
}

// NextDelay calculates the delay before the next retry.
// The raw delay is baseDelay * multiplier^(attempt-1), clamped to the
// maximum. With jitter enabled the clamped value is scaled by a uniform
// draw from [0.5, 1.0), so every delay keeps a floor of half the
// deterministic value while staggering concurrent retries.
func (b *Exponential) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	// clamp in float space to avoid overflow at high attempt counts
	raw := float64(b.baseDelay) * math.Pow(b.multiplier, float64(attempt-1))
	delay := b.maxDelay
	if raw < float64(b.maxDelay) {
		delay = time.Duration(raw)
	}

	if b.jitter {
		delay = time.Duration(float64(delay) * (0.5 + 0.5*b.randFloat()))
	}

	return delay
}

// Reset resets the strategy state
func (b *Exponential) Reset() {
	// exponential backoff is stateless, no reset needed
}

// Fixed implements a constant-delay strategy
type Fixed struct {
	delay     time.Duration
	jitter    bool
	randFloat func() float64
}

// NewFixed creates a fixed backoff strategy. Jitter is disabled by default.
func NewFixed(delay time.Duration, opts ...StrategyOption) *Fixed {
	b := &Fixed{
		delay:     delay,
		randFloat: rand.Float64,
	}

	for _, opt := range opts {
		opt.applyToFixed(b)
	}

	return b
}

// NextDelay calculates the delay before the next retry
func (b *Fixed) NextDelay(attempt int) time.Duration {
	delay := b.delay
	if b.jitter {
		delay = time.Duration(float64(delay) * (0.5 + 0.5*b.randFloat()))
	}
	return delay
}

// Reset resets the strategy state
func (b *Fixed) Reset() {
	// fixed backoff is stateless, no reset needed
}

// StrategyOption is a configuration option for backoff strategies
type StrategyOption interface {
	applyToExponential(*Exponential)
	applyToFixed(*Fixed)
}

type strategyOption struct {
	multiplier *float64
	maxDelay   *time.Duration
	jitter     *bool
	randFloat  func() float64
}

func (o *strategyOption) applyToExponential(b *Exponential) {
	if o.multiplier != nil {
		b.multiplier = *o.multiplier
	}
	if o.maxDelay != nil {
		b.maxDelay = *o.maxDelay
	}
	if o.jitter != nil {
		b.jitter = *o.jitter
	}
	if o.randFloat != nil {
		b.randFloat = o.randFloat
	}
}

func (o *strategyOption) applyToFixed(b *Fixed) {
	if o.jitter != nil {
		b.jitter = *o.jitter
	}
	if o.randFloat != nil {
		b.randFloat = o.randFloat
	}
}

// WithMultiplier sets the growth multiplier (exponential backoff only)
func WithMultiplier(multiplier float64) StrategyOption {
	return &strategyOption{multiplier: &multiplier}
}

// WithMaxDelay sets the maximum delay (exponential backoff only)
func WithMaxDelay(maxDelay time.Duration) StrategyOption {
	return &strategyOption{maxDelay: &maxDelay}
}

// WithJitter enables or disables jitter
func WithJitter(enabled bool) StrategyOption {
	return &strategyOption{jitter: &enabled}
}

// WithRandSource sets the random source used for jitter, making delay
// sequences reproducible in tests. The derived generator is not safe for
// concurrent use; share a strategy across goroutines only with the default
// source.
func WithRandSource(src rand.Source) StrategyOption {
	return &strategyOption{randFloat: rand.New(src).Float64}
}
