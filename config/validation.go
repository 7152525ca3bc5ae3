package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/krisalay/forecast-cache/expiration"
	"github.com/krisalay/forecast-cache/types"
)

var logLevels = map[string]bool{
	"DEBUG": true, "INFO": true, "WARN": true, "WARNING": true, "ERROR": true,
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{types.ErrConfigInvalid}, args...)...)
}

// Validate reports every problem at once. Each one wraps types.ErrConfigInvalid.
func (c *Config) Validate() error {
	var errs []error

	nonNegative := []struct {
		name string
		v    int
	}{
		{"QUERY_WAIT_SECONDS", c.QueryWaitSeconds},
		{"COMPUTE_TIMEOUT_SECONDS", c.ComputeTimeoutSeconds},
		{"CALL_LOG_BUFFER", c.CallLogBuffer},
	}
	for _, f := range nonNegative {
		if f.v < 0 {
			errs = append(errs, invalid("%s=%d is negative", f.name, f.v))
		}
	}

	quotas := []struct {
		name string
		v    int
	}{
		{"N_CALLS_PER_HOUR", c.CallsPerHour},
		{"N_SLOW_CALLS_PER_MINUTE", c.SlowCallsPerMinute},
	}
	for _, f := range quotas {
		if f.v < types.Unlimited {
			errs = append(errs, invalid("%s=%d must be %d (unlimited) or at least 0", f.name, f.v, types.Unlimited))
		}
	}

	exp := &expiration.Fixed{FreshFor: c.CacheTime(), DeleteAfter: c.DeleteCacheTime()}
	if err := exp.Validate(); err != nil {
		errs = append(errs, err)
	}

	if c.SweepIntervalSeconds <= 0 {
		errs = append(errs, invalid("SWEEP_INTERVAL_SECONDS=%d must be positive", c.SweepIntervalSeconds))
	} else if c.DeleteCacheTimeSeconds > 0 && 2*c.SweepIntervalSeconds > c.DeleteCacheTimeSeconds {
		// A dead entry is never served, so with DELETE_CACHE_TIME_SECONDS=0 the
		// interval only bounds how long dead entries hold memory.
		errs = append(errs, invalid("SWEEP_INTERVAL_SECONDS=%d is more than half of DELETE_CACHE_TIME_SECONDS=%d",
			c.SweepIntervalSeconds, c.DeleteCacheTimeSeconds))
	}

	if c.Shards < 1 {
		errs = append(errs, invalid("CACHE_SHARDS=%d must be at least 1", c.Shards))
	}
	if !logLevels[strings.ToUpper(c.LogLevel)] {
		errs = append(errs, invalid("LOGLEVEL=%q is not one of DEBUG, INFO, WARN, ERROR", c.LogLevel))
	}
	if c.Addr == "" {
		errs = append(errs, invalid("listen address is empty"))
	}

	seen := make(map[string]bool, len(c.Routes))
	for i, r := range c.Routes {
		if err := r.validate(); err != nil {
			errs = append(errs, fmt.Errorf("route %d: %w", i, err))
		}
		if seen[r.Pattern] {
			errs = append(errs, invalid("route %d: duplicate pattern %q", i, r.Pattern))
		}
		seen[r.Pattern] = true
	}

	return errors.Join(errs...)
}

func (r Route) validate() error {
	if strings.TrimSpace(r.Pattern) == "" {
		return invalid("pattern is empty")
	}
	if !r.Tier.Valid() {
		return invalid("%s: unknown tier %q", r.Pattern, r.Tier)
	}
	if strings.TrimSpace(r.SQL) == "" {
		return invalid("%s: sql is empty", r.Pattern)
	}
	for _, p := range r.Params {
		if _, _, err := ParseParam(p); err != nil {
			return fmt.Errorf("%s: %w", r.Pattern, err)
		}
	}
	return nil
}

// ParseParam splits "path:gsp_id" / "query:start_datetime_utc" into source and name.
func ParseParam(p string) (source, name string, err error) {
	source, name, ok := strings.Cut(p, ":")
	if !ok || name == "" || (source != "path" && source != "query") {
		return "", "", invalid("param %q must be path:<name> or query:<name>", p)
	}
	return source, name, nil
}
