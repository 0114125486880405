package config

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jzx17/goresilience/internal/testutils"
	"github.com/jzx17/goresilience/pkg/classify"
	"github.com/jzx17/goresilience/pkg/engine"
	"github.com/jzx17/goresilience/pkg/events"
	"github.com/jzx17/goresilience/pkg/retry"
	"github.com/jzx17/goresilience/pkg/types"
)

const buildConfig = `
default_policy:
  max_attempts: 1
  base_delay: 1ms
  jitter: false

services:
  billing:
    policy:
      max_attempts: 3
    breaker:
      failure_threshold: 2
  search: {}
`

func TestConfig_Build(t *testing.T) {
	cfg, err := Parse([]byte(buildConfig))
	require.NoError(t, err)

	eng, err := cfg.Build()
	require.NoError(t, err)
	defer eng.Close()

	// Every listed service has a breaker, sorted by name.
	snapshots := eng.Stats().Breakers
	require.Len(t, snapshots, 2)
	assert.Equal(t, "billing", snapshots[0].Service)
	assert.Equal(t, "search", snapshots[1].Service)

	var attempts int32
	failingOp := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&attempts, 1)
		return "", testutils.Classified(types.KindTransientNetwork, "connection reset")
	}

	// billing carries its own 3-attempt policy, inheriting the 1ms base
	// delay from the default policy.
	_, err = engine.ExecuteGuarded(eng, context.Background(), "billing", failingOp)
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.SwapInt32(&attempts, 0))

	// search falls back to the single-attempt default policy.
	_, err = engine.ExecuteGuarded(eng, context.Background(), "search", failingOp)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestConfig_Build_BreakerSettingsApply(t *testing.T) {
	cfg, err := Parse([]byte(buildConfig))
	require.NoError(t, err)

	eng, err := cfg.Build()
	require.NoError(t, err)
	defer eng.Close()

	failingOp := func(ctx context.Context) (string, error) {
		return "", testutils.Classified(types.KindTransientNetwork, "connection reset")
	}

	// billing's breaker trips after 2 aggregate failures.
	for i := 0; i < 2; i++ {
		_, err = engine.ExecuteGuarded(eng, context.Background(), "billing", failingOp)
		require.Error(t, err)
	}

	_, err = engine.ExecuteGuarded(eng, context.Background(), "billing", failingOp)
	assert.ErrorIs(t, err, types.ErrCircuitOpen)
}

func TestConfig_Build_UnknownClassifier(t *testing.T) {
	cfg, err := Parse([]byte("default_policy:\n  classifier: bogus\n"))
	require.NoError(t, err)

	_, err = cfg.Build()
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "default_policy.classifier", verr.Field)
	assert.Contains(t, verr.Message, "default, http")
}

func TestConfig_Build_UnknownServiceClassifier(t *testing.T) {
	cfg, err := Parse([]byte("services:\n  billing:\n    policy:\n      classifier: bogus\n"))
	require.NoError(t, err)

	_, err = cfg.Build()
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "services.billing.policy.classifier", verr.Field)
}

func TestConfig_BuildWithClassifiers(t *testing.T) {
	classifiers := classify.NewRegistry()
	require.NoError(t, classifiers.Register("never", func(error) bool { return false }))

	cfg, err := Parse([]byte("default_policy:\n  max_attempts: 3\n  base_delay: 1ms\n  classifier: never\n"))
	require.NoError(t, err)

	eng, err := cfg.BuildWithClassifiers(classifiers)
	require.NoError(t, err)
	defer eng.Close()

	var attempts int32
	_, err = engine.Execute(eng, context.Background(), func(ctx context.Context) (int, error) {
		atomic.AddInt32(&attempts, 1)
		return 0, errors.New("some failure")
	})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts), "the custom classifier should refuse every retry")
}

func TestConfig_Build_ExtraOptionsWin(t *testing.T) {
	cfg := DefaultConfig()

	sink := &testutils.CaptureSink{}
	override := retry.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond}
	eng, err := cfg.Build(engine.WithSink(sink), engine.WithDefaultPolicy(override))
	require.NoError(t, err)
	defer eng.Close()

	_, err = engine.Execute(eng, context.Background(), func(ctx context.Context) (int, error) {
		return 0, testutils.Classified(types.KindTransientNetwork, "connection reset")
	})
	require.Error(t, err)

	// The explicit 1-attempt policy replaced the config's 3-attempt
	// default, so nothing was ever scheduled for retry.
	assert.Empty(t, sink.OfType(events.AttemptScheduled))
	assert.Len(t, sink.OfType(events.OperationFailed), 1)
}

func TestDefaultConfig_Builds(t *testing.T) {
	eng, err := DefaultConfig().Build()
	require.NoError(t, err)
	defer eng.Close()

	value, err := engine.Execute(eng, context.Background(), func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", value)
}

func TestConfig_Build_HandRolled(t *testing.T) {
	cfg := &Config{
		Services: map[string]ServiceConfig{
			"billing": {},
		},
	}

	eng, err := cfg.Build()
	require.NoError(t, err)
	defer eng.Close()

	require.Len(t, eng.Stats().Breakers, 1)
	assert.Equal(t, "billing", eng.Stats().Breakers[0].Service)
}
