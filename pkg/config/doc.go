// Package config loads engine configuration from YAML files and builds
// ready-to-use engines from it.
//
// Key features:
//
// 1. YAML presets:
//   - A default retry policy plus per-service policy overrides
//   - Circuit breaker settings per guarded service
//   - Durations written as strings ("250ms", "30s")
//
// 2. Environment layering:
//   - .env files loaded before overrides (ENV_FILE, then .env.local,
//     then .env; missing files are ignored)
//   - RESILIENCE_* variables override the top-level and default-policy
//     fields
//
// 3. Safety:
//   - Defaults applied before validation, so a minimal file works
//   - First invalid field reported as a *ValidationError with its path
//
// A config file looks like:
//
//	history_capacity: 100
//
//	default_policy:
//	  max_attempts: 3
//	  base_delay: 1s
//	  max_delay: 30s
//	  multiplier: 2.0
//	  jitter: true
//	  classifier: http
//
//	services:
//	  billing:
//	    policy:
//	      max_attempts: 5
//	      base_delay: 100ms
//	    breaker:
//	      failure_threshold: 5
//	      success_threshold: 2
//	      open_timeout: 30s
//
// Basic usage example:
//
//	cfg, err := config.Load("resilience.yml")
//	if err != nil {
//		return err
//	}
//
//	eng, err := cfg.Build(engine.WithSink(sink))
//	if err != nil {
//		return err
//	}
//	defer eng.Close()
//
// Per-service policy blocks inherit unset fields from the default
// policy. Classifier names resolve against classify.NewRegistry's
// built-ins ("default", "http"); BuildWithClassifiers accepts a registry
// carrying custom conditions.
package config
