package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jzx17/goresilience/pkg/classify"
	"github.com/jzx17/goresilience/pkg/engine"
	"github.com/jzx17/goresilience/pkg/retry"
)

// Build constructs an engine from the configuration: the default policy
// and history capacity are installed, every listed service gets a
// circuit breaker, and services with a policy block get a per-service
// default policy. Classifier names resolve against the built-in
// registry; use BuildWithClassifiers to add custom conditions. Extra
// options are applied after the configuration-derived ones, so they win
// on conflict.
func (c *Config) Build(opts ...engine.Option) (*engine.Engine, error) {
	return c.BuildWithClassifiers(classify.NewRegistry(), opts...)
}

// BuildWithClassifiers is Build with a caller-supplied classifier
// registry for resolving the policies' classifier names.
func (c *Config) BuildWithClassifiers(classifiers *classify.Registry, opts ...engine.Option) (*engine.Engine, error) {
	// Hand-rolled configs may not have gone through Load.
	c.applyDefaults()

	defaultPolicy, err := c.DefaultPolicy.toPolicy("default_policy", classifiers)
	if err != nil {
		return nil, err
	}

	engineOpts := []engine.Option{
		engine.WithDefaultPolicy(defaultPolicy),
		engine.WithHistoryCapacity(c.HistoryCapacity),
	}

	names := c.serviceNames()
	for _, name := range names {
		svc := c.Services[name]
		if svc.Policy == nil {
			continue
		}
		merged := svc.Policy.merged(c.DefaultPolicy)
		policy, err := merged.toPolicy(fmt.Sprintf("services.%s.policy", name), classifiers)
		if err != nil {
			return nil, err
		}
		engineOpts = append(engineOpts, engine.WithServicePolicy(name, policy))
	}
	engineOpts = append(engineOpts, opts...)

	eng := engine.New(engineOpts...)
	for _, name := range names {
		if err := eng.RegisterCircuitBreaker(name, c.Services[name].Breaker.toBreaker()); err != nil {
			return nil, err
		}
	}
	return eng, nil
}

// toPolicy converts to a retry.Policy, resolving the classifier name.
// field is the config path used in the error on an unknown name.
func (p PolicyConfig) toPolicy(field string, classifiers *classify.Registry) (retry.Policy, error) {
	condition, ok := classifiers.Get(p.Classifier)
	if !ok {
		return retry.Policy{}, &ValidationError{
			Field:   field + ".classifier",
			Message: fmt.Sprintf("unknown classifier %q, registered: %s", p.Classifier, strings.Join(classifiers.Names(), ", ")),
		}
	}
	return retry.Policy{
		MaxAttempts: p.MaxAttempts,
		BaseDelay:   p.BaseDelay.Std(),
		MaxDelay:    p.MaxDelay.Std(),
		Multiplier:  p.Multiplier,
		Jitter:      p.Jitter != nil && *p.Jitter,
		Retryable:   condition,
	}, nil
}

func (c *Config) serviceNames() []string {
	names := make([]string, 0, len(c.Services))
	for name := range c.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
