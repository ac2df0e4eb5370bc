// Package config reads pipeline configuration from environment variables
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"tubesense/internal/platform/logger"
)

// Conf is a namespaced view over environment variables (e.g. "CORE_COLLECT_", "SERVICE_PGSQL_")
// New() is the root view; Prefix narrows it for a module
type Conf struct{ prefix string }

// New creates a root Conf (no prefix)
func New() Conf { return Conf{} }

// Prefix creates a child Conf with an additional prefix
func (c Conf) Prefix(p string) Conf { return Conf{prefix: c.prefix + p} }

// Key returns the fully qualified env var name for k
func (c Conf) Key(k string) string { return c.prefix + k }

// lookup returns the trimmed value for key and whether it was non-empty
func (c Conf) lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(c.Key(key)))
	return v, v != ""
}

// MustString panics if the given key is missing or empty
func (c Conf) MustString(key string) string {
	v, ok := c.lookup(key)
	if !ok {
		logger.Get().Panic().Str("key", c.Key(key)).Msg("missing required env")
	}
	return v
}

// MustInt panics if the given key is missing, empty, or not an int
func (c Conf) MustInt(key string) int {
	s := c.MustString(key)
	v, err := strconv.Atoi(s)
	if err != nil {
		logger.Get().Panic().Str("key", c.Key(key)).Str("value", s).Msg("invalid int value")
	}
	return v
}

// MustPort returns a net/http addr like ":4000" after validating 1..65535
func (c Conf) MustPort(key string) string {
	s := c.MustString(key)
	p, err := strconv.Atoi(s)
	if err != nil || p < 1 || p > 65535 {
		logger.Get().Panic().Str("key", c.Key(key)).Str("value", s).Msg("invalid TCP port; expected 1..65535")
	}
	return ":" + s
}

// Require ensures that all given keys are present (non-empty). Panics otherwise
func (c Conf) Require(keys ...string) {
	for _, k := range keys {
		if _, ok := c.lookup(k); !ok {
			logger.Get().Panic().Str("key", c.Key(k)).Msg("missing required env")
		}
	}
}

// MayString returns the value or def if missing/empty
func (c Conf) MayString(key, def string) string {
	if v, ok := c.lookup(key); ok {
		return v
	}
	return def
}

// MayInt returns the value or def if missing/empty; logs and returns def if invalid
func (c Conf) MayInt(key string, def int) int {
	s, ok := c.lookup(key)
	if !ok {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	logger.Get().Warn().Str("key", c.Key(key)).Str("value", s).Int("default", def).Msg("invalid int; using default")
	return def
}

// MayInt64 is MayInt for 64 bit budgets and counters
func (c Conf) MayInt64(key string, def int64) int64 {
	s, ok := c.lookup(key)
	if !ok {
		return def
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	logger.Get().Warn().Str("key", c.Key(key)).Str("value", s).Int64("default", def).Msg("invalid int64; using default")
	return def
}

// MayFloat64 returns the value or def if missing/empty; logs and returns def if invalid
func (c Conf) MayFloat64(key string, def float64) float64 {
	s, ok := c.lookup(key)
	if !ok {
		return def
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	logger.Get().Warn().Str("key", c.Key(key)).Str("value", s).Float64("default", def).
		Msg("invalid float64; using default")
	return def
}

// MayBool returns the value or def if missing/empty; logs and returns def if invalid
func (c Conf) MayBool(key string, def bool) bool {
	s, ok := c.lookup(key)
	if !ok {
		return def
	}
	if v, err := strconv.ParseBool(s); err == nil {
		return v
	}
	logger.Get().Warn().Str("key", c.Key(key)).Str("value", s).Bool("default", def).Msg("invalid bool; using default")
	return def
}

// MayDuration returns the value or def if missing/empty; logs and returns def if invalid
func (c Conf) MayDuration(key string, def time.Duration) time.Duration {
	s, ok := c.lookup(key)
	if !ok {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	logger.Get().Warn().Str("key", c.Key(key)).Str("value", s).Dur("default", def).Msg("invalid duration; using default")
	return def
}

// MayCSV returns the comma separated values in order; def if missing or all blank
func (c Conf) MayCSV(key string, def []string) []string {
	s, ok := c.lookup(key)
	if !ok {
		return def
	}
	out := SplitCSV(s)
	if len(out) == 0 {
		return def
	}
	return out
}

// MayCodes is MayCSV for short identifiers like region codes: upper cased, first occurrence kept
func (c Conf) MayCodes(key string, def []string) []string {
	xs := c.MayCSV(key, def)
	seen := make(map[string]struct{}, len(xs))
	out := make([]string, 0, len(xs))
	for _, x := range xs {
		u := strings.ToUpper(x)
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// MayEnum ensures value is one of allowed; returns def if empty; panics if invalid
func (c Conf) MayEnum(key, def string, allowed ...string) string {
	v := c.MayString(key, def)
	if v == "" {
		return v
	}
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return strings.ToLower(v)
		}
	}
	logger.Get().Panic().Str("key", c.Key(key)).Str("value", v).Strs("allowed", allowed).Msg("invalid enum value")
	return ""
}

// SplitCSV splits s on commas, trimming and dropping blanks
func SplitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
