// Package config holds the single validated configuration of the service.
//
// Values come from, in increasing priority: built-in defaults, an optional
// YAML file, a .env file in the working directory, and the process
// environment. Everything is validated once at startup; nothing reads the
// environment per request.
package config

import (
	"time"

	"github.com/krisalay/forecast-cache/types"
)

// Config is the full configuration surface.
type Config struct {
	// QueryWaitSeconds is how long a waiter blocks on an in-flight computation.
	QueryWaitSeconds int `yaml:"query_wait_seconds"`

	// CacheTimeSeconds is the freshness window.
	CacheTimeSeconds int `yaml:"cache_time_seconds"`

	// DeleteCacheTimeSeconds is the hard expiry window. Must be >= CacheTimeSeconds.
	DeleteCacheTimeSeconds int `yaml:"delete_cache_time_seconds"`

	// ComputeTimeoutSeconds bounds a single computation. Zero means unbounded.
	ComputeTimeoutSeconds int `yaml:"compute_timeout_seconds"`

	// SweepIntervalSeconds is how often dead entries and finished windows are removed.
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds"`

	// CallsPerHour is the standard tier quota.
	CallsPerHour int `yaml:"n_calls_per_hour"`

	// SlowCallsPerMinute is the slow tier quota.
	SlowCallsPerMinute int `yaml:"n_slow_calls_per_minute"`

	Shards        int    `yaml:"cache_shards"`
	LogLevel      string `yaml:"log_level"`
	Addr          string `yaml:"addr"`
	DatabaseURL   string `yaml:"database_url"`
	CallLogBuffer int    `yaml:"call_log_buffer"`

	// TrustProxy makes the gateway key clients on the first X-Forwarded-For hop.
	TrustProxy bool `yaml:"trust_proxy"`

	Routes []Route `yaml:"routes"`
}

/*
Route maps one HTTP endpoint to the SQL that answers it.

Params are bound positionally ($1, $2, ...) and name where each value comes
from: "path:<name>" for a path wildcard, "query:<name>" for a query
parameter. Missing values are bound as NULL.
*/
type Route struct {
	Pattern string     `yaml:"pattern"`
	Tier    types.Tier `yaml:"tier"`
	SQL     string     `yaml:"sql"`
	Params  []string   `yaml:"params"`
}

// Default returns the configuration the service runs with when nothing is set.
func Default() *Config {
	return &Config{
		QueryWaitSeconds:       10,
		CacheTimeSeconds:       120,
		DeleteCacheTimeSeconds: 240,
		ComputeTimeoutSeconds:  300,
		SweepIntervalSeconds:   30,
		CallsPerHour:           3600,
		SlowCallsPerMinute:     1,
		Shards:                 16,
		LogLevel:               "INFO",
		Addr:                   ":8080",
		CallLogBuffer:          1024,
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func (c *Config) QueryWait() time.Duration       { return seconds(c.QueryWaitSeconds) }
func (c *Config) CacheTime() time.Duration       { return seconds(c.CacheTimeSeconds) }
func (c *Config) DeleteCacheTime() time.Duration { return seconds(c.DeleteCacheTimeSeconds) }
func (c *Config) ComputeTimeout() time.Duration  { return seconds(c.ComputeTimeoutSeconds) }
func (c *Config) SweepInterval() time.Duration   { return seconds(c.SweepIntervalSeconds) }
