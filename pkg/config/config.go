package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultModel is used when no model is configured anywhere.
const DefaultModel = "gpt-3.5-turbo-instruct"

// Config holds all client configuration.
type Config struct {
	Model             string        `yaml:"model"`
	Token             string        `yaml:"token"`
	Endpoint          string        `yaml:"endpoint"`
	Temperature       float64       `yaml:"temperature"`
	MaxRetries        int           `yaml:"max_retries"`
	MaxCallsPerMinute int           `yaml:"max_calls_per_minute"`
	Caching           bool          `yaml:"caching"`
	ChatCompletion    bool          `yaml:"chat_completion"`
	RetryBackoff      time.Duration `yaml:"retry_backoff"`
	ThrottleDelay     time.Duration `yaml:"throttle_delay"`
	Timeout           time.Duration `yaml:"timeout"`
	Cache             CacheConfig   `yaml:"cache"`
	Tracker           TrackerConfig `yaml:"tracker"`
	Breaker           BreakerConfig `yaml:"breaker"`
	Logging           LoggingConfig `yaml:"logging"`
}

// CacheConfig selects and configures the response cache store.
// Backend is "sqlite" (default), "redis" or "memory".
type CacheConfig struct {
	Backend   string      `yaml:"backend"`
	Path      string      `yaml:"path"`
	Namespace string      `yaml:"namespace"`
	Redis     RedisConfig `yaml:"redis"`
}

// RedisConfig holds the Redis connection for the redis cache backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// TrackerConfig controls the usage ledger. An empty DBPath disables it.
type TrackerConfig struct {
	DBPath string `yaml:"db_path"`
}

// BreakerConfig controls the circuit breaker around the transport.
type BreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	MaxRequests      uint32        `yaml:"max_requests"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	ReadyToTripRatio float64       `yaml:"ready_to_trip_ratio"`
}

// LoggingConfig controls the CLI logger. Format is "text" or "json".
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		MaxRetries:        5,
		MaxCallsPerMinute: 60,
		Caching:           true,
		RetryBackoff:      3 * time.Second,
		ThrottleDelay:     time.Second,
		Timeout:           90 * time.Second,
		Cache: CacheConfig{
			Backend:   "sqlite",
			Namespace: "openai",
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "guidance",
			},
		},
		Breaker: BreakerConfig{
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          30 * time.Second,
			ReadyToTripRatio: 0.6,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}
