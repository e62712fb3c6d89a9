// Package config loads the orchestration defaults every call site falls
// back to: retry schedule, wait budget, batch constraints, and transport
// settings. Sources are layered with the usual priority: environment
// variables over an optional YAML file over built-in defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	env "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/opsforge-io/conveyor/batch"
	"github.com/opsforge-io/conveyor/jobs"
	"github.com/opsforge-io/conveyor/retry"
	"github.com/opsforge-io/conveyor/transport"
)

// envPrefix namespaces the environment variables this package reads,
// e.g. CONVEYOR_RETRY_MAX_ATTEMPTS.
const envPrefix = "CONVEYOR_"

// Config is the loaded orchestration configuration.
type Config struct {
	Transport TransportConfig `koanf:"transport"`
	Retry     RetryConfig     `koanf:"retry"`
	Wait      WaitConfig      `koanf:"wait"`
	Batch     BatchConfig     `koanf:"batch"`
	Log       LogConfig       `koanf:"log"`
}

// TransportConfig configures the HTTP transport.
type TransportConfig struct {
	Timeout           time.Duration `koanf:"timeout" validate:"gt=0"`
	UserAgent         string        `koanf:"useragent"`
	RequestsPerSecond float64       `koanf:"requestspersecond" validate:"gte=0"`
	Burst             int           `koanf:"burst" validate:"gte=0"`
	LogPayloads       bool          `koanf:"logpayloads"`
}

// RetryConfig configures the default retry policy.
type RetryConfig struct {
	MaxAttempts   int           `koanf:"maxattempts" validate:"gte=1"`
	BackoffBase   time.Duration `koanf:"backoffbase" validate:"gte=0"`
	BackoffFactor float64       `koanf:"backofffactor" validate:"gte=0"`
	Jitter        float64       `koanf:"jitter" validate:"gte=0"`
}

// WaitConfig configures the job waiter.
type WaitConfig struct {
	Budget        time.Duration `koanf:"budget" validate:"gte=0"`
	Unbounded     bool          `koanf:"unbounded"`
	PollInterval  time.Duration `koanf:"pollinterval" validate:"gt=0"`
	NotFoundGrace time.Duration `koanf:"notfoundgrace" validate:"gt=0"`
}

// BatchConfig configures batch splitting and dispatch.
type BatchConfig struct {
	MaxCount int `koanf:"maxcount" validate:"gte=0"`
	MaxBytes int `koanf:"maxbytes" validate:"gte=0"`
	Workers  int `koanf:"workers" validate:"gte=1"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal"`
	Pretty bool   `koanf:"pretty"`
}

// Load reads configuration from defaults, then the YAML file at path when
// path is non-empty and the file exists, then CONVEYOR_* environment
// variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
			return strings.ReplaceAll(key, "_", "."), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func defaults() map[string]any {
	return map[string]any{
		"transport.timeout":           "30s",
		"transport.useragent":         "conveyor-go",
		"transport.requestspersecond": 0,
		"transport.burst":             0,
		"transport.logpayloads":       false,

		"retry.maxattempts":   3,
		"retry.backoffbase":   "500ms",
		"retry.backofffactor": 2.0,
		"retry.jitter":        0.25,

		"wait.budget":        "10m",
		"wait.unbounded":     false,
		"wait.pollinterval":  "250ms",
		"wait.notfoundgrace": "5s",

		"batch.maxcount": 25,
		"batch.maxbytes": 2 * 1024 * 1024,
		"batch.workers":  1,

		"log.level":  "info",
		"log.pretty": false,
	}
}

// RetryPolicy converts the loaded retry section into a policy value.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:   c.Retry.MaxAttempts,
		BackoffBase:   c.Retry.BackoffBase,
		BackoffFactor: c.Retry.BackoffFactor,
		Jitter:        c.Retry.Jitter,
	}
}

// WaitBudget converts the loaded wait section into a budget value.
func (c *Config) WaitBudget() jobs.Budget {
	if c.Wait.Unbounded {
		return jobs.Unbounded()
	}
	return jobs.Bounded(c.Wait.Budget)
}

// BatchConstraints converts the loaded batch section into constraints.
func (c *Config) BatchConstraints() batch.Constraints {
	return batch.Constraints{
		MaxCount: c.Batch.MaxCount,
		MaxBytes: c.Batch.MaxBytes,
	}
}

// BatchConcurrency converts the loaded batch section into a dispatch mode.
func (c *Config) BatchConcurrency() batch.Concurrency {
	return batch.Concurrency{Workers: c.Batch.Workers}
}

// TransportSettings converts the loaded transport section.
func (c *Config) TransportSettings() *transport.Config {
	return &transport.Config{
		Timeout:           c.Transport.Timeout,
		UserAgent:         c.Transport.UserAgent,
		RequestsPerSecond: c.Transport.RequestsPerSecond,
		Burst:             c.Transport.Burst,
		LogPayloads:       c.Transport.LogPayloads,
	}
}
