package config

import (
	"fmt"

	"github.com/jzx17/goresilience/pkg/breaker"
	"github.com/jzx17/goresilience/pkg/retry"
	"github.com/jzx17/goresilience/pkg/track"
)

// DefaultClassifier is the classifier name assumed when a policy does
// not name one.
const DefaultClassifier = "http"

// Config is the on-disk shape of an engine: a default retry policy, a
// history capacity and the guarded services with their per-service
// policies and circuit breakers.
type Config struct {
	HistoryCapacity int                      `yaml:"history_capacity"`
	DefaultPolicy   PolicyConfig             `yaml:"default_policy"`
	Services        map[string]ServiceConfig `yaml:"services"`
}

// ServiceConfig configures one guarded service. A nil Policy inherits
// the default policy; a nil Breaker uses the pkg/breaker defaults. Every
// listed service gets a circuit breaker registered by Build.
type ServiceConfig struct {
	Policy  *PolicyConfig  `yaml:"policy"`
	Breaker *BreakerConfig `yaml:"breaker"`
}

// PolicyConfig is a retry.Policy in configuration form. Zero fields
// inherit defaults; the classifier is a name resolved against a
// classify.Registry at build time.
type PolicyConfig struct {
	MaxAttempts int      `yaml:"max_attempts"`
	BaseDelay   Duration `yaml:"base_delay"`
	MaxDelay    Duration `yaml:"max_delay"`
	Multiplier  float64  `yaml:"multiplier"`
	Jitter      *bool    `yaml:"jitter"`
	Classifier  string   `yaml:"classifier"`
}

// BreakerConfig is a breaker.Config in configuration form. Zero fields
// inherit the pkg/breaker defaults.
type BreakerConfig struct {
	FailureThreshold int      `yaml:"failure_threshold"`
	SuccessThreshold int      `yaml:"success_threshold"`
	OpenTimeout      Duration `yaml:"open_timeout"`
	Window           Duration `yaml:"window"`
}

// ValidationError reports a single invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// DefaultConfig returns the documented defaults with no services.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.HistoryCapacity == 0 {
		c.HistoryCapacity = track.DefaultHistoryCapacity
	}
	c.DefaultPolicy.applyDefaults()
}

func (p *PolicyConfig) applyDefaults() {
	if p.MaxAttempts == 0 {
		p.MaxAttempts = retry.DefaultMaxAttempts
	}
	if p.BaseDelay == 0 {
		p.BaseDelay = Duration(retry.DefaultBaseDelay)
	}
	if p.MaxDelay == 0 {
		p.MaxDelay = Duration(retry.DefaultMaxDelay)
	}
	if p.Multiplier == 0 {
		p.Multiplier = retry.DefaultMultiplier
	}
	if p.Jitter == nil {
		jitter := true
		p.Jitter = &jitter
	}
	if p.Classifier == "" {
		p.Classifier = DefaultClassifier
	}
}

// merged overlays p on base: fields p leaves unset inherit base's
// values. Used to derive per-service policies from the default policy.
func (p PolicyConfig) merged(base PolicyConfig) PolicyConfig {
	out := base
	if p.MaxAttempts != 0 {
		out.MaxAttempts = p.MaxAttempts
	}
	if p.BaseDelay != 0 {
		out.BaseDelay = p.BaseDelay
	}
	if p.MaxDelay != 0 {
		out.MaxDelay = p.MaxDelay
	}
	if p.Multiplier != 0 {
		out.Multiplier = p.Multiplier
	}
	if p.Jitter != nil {
		out.Jitter = p.Jitter
	}
	if p.Classifier != "" {
		out.Classifier = p.Classifier
	}
	return out
}

// Validate checks field sanity and returns the first violation as a
// *ValidationError. Classifier names are resolved later, by Build,
// against the registry in use.
func (c *Config) Validate() error {
	if c.HistoryCapacity < 0 {
		return &ValidationError{Field: "history_capacity", Message: "must not be negative"}
	}
	if err := c.DefaultPolicy.validate("default_policy"); err != nil {
		return err
	}
	for name, svc := range c.Services {
		if name == "" {
			return &ValidationError{Field: "services", Message: "service name must not be empty"}
		}
		if svc.Policy != nil {
			if err := svc.Policy.validate(fmt.Sprintf("services.%s.policy", name)); err != nil {
				return err
			}
		}
		if svc.Breaker != nil {
			if err := svc.Breaker.validate(fmt.Sprintf("services.%s.breaker", name)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *PolicyConfig) validate(field string) error {
	if p.MaxAttempts < 0 {
		return &ValidationError{Field: field + ".max_attempts", Message: "must not be negative"}
	}
	if p.BaseDelay < 0 {
		return &ValidationError{Field: field + ".base_delay", Message: "must not be negative"}
	}
	if p.MaxDelay < 0 {
		return &ValidationError{Field: field + ".max_delay", Message: "must not be negative"}
	}
	if p.Multiplier != 0 && p.Multiplier < 1 {
		return &ValidationError{Field: field + ".multiplier", Message: "must be at least 1"}
	}
	return nil
}

func (b *BreakerConfig) validate(field string) error {
	if b.FailureThreshold < 0 {
		return &ValidationError{Field: field + ".failure_threshold", Message: "must not be negative"}
	}
	if b.SuccessThreshold < 0 {
		return &ValidationError{Field: field + ".success_threshold", Message: "must not be negative"}
	}
	if b.OpenTimeout < 0 {
		return &ValidationError{Field: field + ".open_timeout", Message: "must not be negative"}
	}
	if b.Window < 0 {
		return &ValidationError{Field: field + ".window", Message: "must not be negative"}
	}
	return nil
}

// toBreaker converts to a breaker.Config; zero fields are filled with
// defaults by pkg/breaker itself.
func (b *BreakerConfig) toBreaker() breaker.Config {
	if b == nil {
		return breaker.Config{}
	}
	return breaker.Config{
		FailureThreshold: b.FailureThreshold,
		SuccessThreshold: b.SuccessThreshold,
		OpenTimeout:      b.OpenTimeout.Std(),
		Window:           b.Window.Std(),
	}
}
