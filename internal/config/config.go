// Package config loads service configuration from a YAML file and the
// environment.
//
// Precedence, lowest to highest: Default(), the YAML file, environment
// variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/caesarsage/mini-pm/internal/schedule"
)

const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendBadger = "badger"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Storage   StorageConfig   `yaml:"storage"`
	Auth      AuthConfig      `yaml:"auth"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type StorageConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

type AuthConfig struct {
	SessionTTL    time.Duration `yaml:"session_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type SchedulerConfig struct {
	GhostPolicy string `yaml:"ghost_policy"`
}

// RateLimitConfig bounds the schedule endpoint with a token bucket.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type TelemetryConfig struct {
	ServiceName   string `yaml:"service_name"`
	TraceExporter string `yaml:"trace_exporter"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Log:       LogConfig{Level: "info", Format: "json"},
		Storage:   StorageConfig{Backend: BackendMemory, Path: "./data"},
		Auth:      AuthConfig{SessionTTL: 24 * time.Hour, SweepInterval: time.Minute},
		Scheduler: SchedulerConfig{GhostPolicy: string(schedule.GhostTaskCount)},
		RateLimit: RateLimitConfig{RequestsPerSecond: 10, Burst: 20},
		Telemetry: TelemetryConfig{ServiceName: "minipm", TraceExporter: "none"},
	}
}

// Load reads path (if non-empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Addr, "MINIPM_ADDR")
	setString(&c.Log.Level, "MINIPM_LOG_LEVEL")
	setString(&c.Log.Format, "MINIPM_LOG_FORMAT")
	setString(&c.Storage.Backend, "MINIPM_STORAGE_BACKEND")
	setString(&c.Storage.Path, "MINIPM_DATA_DIR")
	setString(&c.Scheduler.GhostPolicy, "MINIPM_GHOST_POLICY")
	setString(&c.Telemetry.TraceExporter, "OTEL_TRACES_EXPORTER")

	if err := setDuration(&c.Auth.SessionTTL, "MINIPM_SESSION_TTL"); err != nil {
		return err
	}
	if err := setDuration(&c.Auth.SweepInterval, "MINIPM_SWEEP_INTERVAL"); err != nil {
		return err
	}
	if v := os.Getenv("MINIPM_RATE_LIMIT_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: MINIPM_RATE_LIMIT_RPS: %w", err)
		}
		c.RateLimit.RequestsPerSecond = rps
	}
	if v := os.Getenv("MINIPM_RATE_LIMIT_BURST"); v != "" {
		burst, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: MINIPM_RATE_LIMIT_BURST: %w", err)
		}
		c.RateLimit.Burst = burst
	}
	return nil
}

func setDuration(dst *time.Duration, env string) error {
	v := os.Getenv(env)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", env, err)
	}
	*dst = d
	return nil
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of json, text", c.Log.Format))
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendFile, BackendBadger:
		if c.Storage.Path == "" {
			errs = append(errs, fmt.Errorf("storage.path is required for the %s backend", c.Storage.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q is not one of memory, file, badger", c.Storage.Backend))
	}
	if c.Auth.SessionTTL <= 0 {
		errs = append(errs, errors.New("auth.session_ttl must be positive"))
	}
	if c.Auth.SweepInterval <= 0 {
		errs = append(errs, errors.New("auth.sweep_interval must be positive"))
	}
	if _, err := schedule.ParseGhostPolicy(c.Scheduler.GhostPolicy); err != nil {
		errs = append(errs, fmt.Errorf("scheduler.ghost_policy: %w", err))
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("rate_limit.requests_per_second and rate_limit.burst must be positive"))
	}
	switch c.Telemetry.TraceExporter {
	case "none", "stdout":
	default:
		errs = append(errs, fmt.Errorf("telemetry.trace_exporter %q is not one of none, stdout", c.Telemetry.TraceExporter))
	}

	return errors.Join(errs...)
}

// GhostPolicy returns the parsed scheduler policy. Call after Validate.
func (c Config) GhostPolicy() schedule.GhostPolicy {
	p, _ := schedule.ParseGhostPolicy(c.Scheduler.GhostPolicy)
	return p
}
