package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads a YAML config file and layers environment overrides on
// top. Before the overrides are read, .env files are loaded in priority
// order: the file named by ENV_FILE if set, otherwise .env.local then
// .env (missing files are ignored). Defaults are applied after the
// overrides and the result is validated.
func Load(path string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, fmt.Errorf("load environment files: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes, applies environment overrides and defaults,
// and validates. It does not touch .env files.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad is Load, panicking on error. For program start-up paths
// where a bad config file should stop the process.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return cfg
}

// loadEnvFiles loads .env files in priority order:
// 1. The file named by the ENV_FILE environment variable, if set.
// 2. .env.local, then .env.
// Missing files are not an error; already-set variables always win.
func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}

	if err := godotenv.Load(".env.local"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env.local: %w", err)
	}
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// applyEnvOverrides replaces top-level and default-policy fields from
// RESILIENCE_* environment variables. Per-service settings come from the
// file only.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("RESILIENCE_HISTORY_CAPACITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse RESILIENCE_HISTORY_CAPACITY: %w", err)
		}
		cfg.HistoryCapacity = n
	}
	if v := os.Getenv("RESILIENCE_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse RESILIENCE_MAX_ATTEMPTS: %w", err)
		}
		cfg.DefaultPolicy.MaxAttempts = n
	}
	if v := os.Getenv("RESILIENCE_BASE_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse RESILIENCE_BASE_DELAY: %w", err)
		}
		cfg.DefaultPolicy.BaseDelay = Duration(d)
	}
	if v := os.Getenv("RESILIENCE_MAX_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse RESILIENCE_MAX_DELAY: %w", err)
		}
		cfg.DefaultPolicy.MaxDelay = Duration(d)
	}
	if v := os.Getenv("RESILIENCE_MULTIPLIER"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse RESILIENCE_MULTIPLIER: %w", err)
		}
		cfg.DefaultPolicy.Multiplier = f
	}
	if v := os.Getenv("RESILIENCE_JITTER"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse RESILIENCE_JITTER: %w", err)
		}
		cfg.DefaultPolicy.Jitter = &b
	}
	if v := os.Getenv("RESILIENCE_CLASSIFIER"); v != "" {
		cfg.DefaultPolicy.Classifier = v
	}
	return nil
}
