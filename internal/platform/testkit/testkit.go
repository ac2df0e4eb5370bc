// Package testkit provides testing helpers
package testkit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// MustPanic asserts that fn panics
func MustPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic, got none")
		}
	}()
	fn()
}

// MustContain asserts that haystack contains needle. On failure the haystack is
// written to a temp file for inspection
func MustContain(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		tmpfile := filepath.Join(t.TempDir(), "output.txt")
		_ = os.WriteFile(tmpfile, []byte(haystack), 0o600)
		t.Fatalf("expected output to contain %q\n\nfull output written to %s", needle, tmpfile)
	}
}

// At parses an RFC3339 timestamp or fails the test
func At(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("bad timestamp %q: %v", s, err)
	}
	return ts.UTC()
}

// Clock is a settable time source for code that takes a func() time.Time
type Clock struct{ now time.Time }

// NewClock starts a clock at t
func NewClock(t time.Time) *Clock { return &Clock{now: t} }

// Now returns the current fake time
func (c *Clock) Now() time.Time { return c.now }

// Advance moves the clock forward by d
func (c *Clock) Advance(d time.Duration) { c.now = c.now.Add(d) }
