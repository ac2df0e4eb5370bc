// Package raw reads env during bootstrap, before the logger exists.
// It must not import the logger package
package raw

import (
	"os"
	"strconv"
	"strings"
)

// Conf is a namespaced view over environment variables (e.g. "LOG_")
type Conf struct{ prefix string }

// New returns a root Conf (no prefix)
func New() Conf { return Conf{} }

// Prefix returns a child Conf with an additional prefix
func (c Conf) Prefix(p string) Conf { return Conf{prefix: c.prefix + p} }

func (c Conf) val(key string) string {
	return strings.TrimSpace(os.Getenv(c.prefix + key))
}

// Get returns the trimmed env var or def if empty
func (c Conf) Get(key, def string) string {
	if v := c.val(key); v != "" {
		return v
	}
	return def
}

// GetBool accepts 1|true|yes (any case); anything else set is false
func (c Conf) GetBool(key string, def bool) bool {
	v := strings.ToLower(c.val(key))
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "yes"
}

// GetInt parses a non-negative integer; def when empty or not numeric
func (c Conf) GetInt(key string, def int) int {
	v := c.val(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
