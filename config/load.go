package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/krisalay/forecast-cache/types"
)

// Load builds the configuration from defaults, the YAML file at path (if
// non-empty), .env and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", types.ErrConfigInvalid, path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parsing %s: %v", types.ErrConfigInvalid, path, err)
		}
	}

	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from the environment. PORT is honored when ADDR is unset.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	ints := []struct {
		name string
		dst  *int
	}{
		{"QUERY_WAIT_SECONDS", &c.QueryWaitSeconds},
		{"CACHE_TIME_SECONDS", &c.CacheTimeSeconds},
		{"DELETE_CACHE_TIME_SECONDS", &c.DeleteCacheTimeSeconds},
		{"COMPUTE_TIMEOUT_SECONDS", &c.ComputeTimeoutSeconds},
		{"SWEEP_INTERVAL_SECONDS", &c.SweepIntervalSeconds},
		{"N_CALLS_PER_HOUR", &c.CallsPerHour},
		{"N_SLOW_CALLS_PER_MINUTE", &c.SlowCallsPerMinute},
		{"CACHE_SHARDS", &c.Shards},
		{"CALL_LOG_BUFFER", &c.CallLogBuffer},
	}
	for _, v := range ints {
		raw, ok := lookup(v.name)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", types.ErrConfigInvalid, v.name, raw)
		}
		*v.dst = n
	}

	if v, ok := lookup("LOGLEVEL"); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup("DATABASE_URL"); ok && v != "" {
		c.DatabaseURL = v
	}
	if v, ok := lookup("ADDR"); ok && v != "" {
		c.Addr = v
	} else if p, ok := lookup("PORT"); ok && p != "" {
		c.Addr = ":" + p
	}
	if v, ok := lookup("TRUST_PROXY"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: TRUST_PROXY=%q is not a boolean", types.ErrConfigInvalid, v)
		}
		c.TrustProxy = b
	}
	return nil
}
