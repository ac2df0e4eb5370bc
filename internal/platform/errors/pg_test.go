package errors

import (
	"context"
	stderrs "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func pg(code string) *pgconn.PgError { return &pgconn.PgError{Code: code} }

func TestDBErrorCodeMappings(t *testing.T) {
	cases := []struct {
		code string
		want ErrorCode
	}{
		{"23505", ErrorCodeDuplicateKey},
		{"23503", ErrorCodeInvalidArgument},
		{"23502", ErrorCodeValidation},
		{"23514", ErrorCodeValidation},
		{"22001", ErrorCodeInvalidArgument},
		{"22P02", ErrorCodeInvalidArgument},
		{"40001", ErrorCodeDB},
		{"25006", ErrorCodeUnavailable},
		{"57P03", ErrorCodeUnavailable},
		{"57P01", ErrorCodeUnavailable},
		{"XXXXX", ErrorCodeDB},
	}
	for _, c := range cases {
		got, ok := DBErrorCode(pg(c.code))
		if !ok || got != c.want {
			t.Fatalf("DBErrorCode(%s) = %v,%v want %v", c.code, got, ok, c.want)
		}
	}
	if _, ok := DBErrorCode(stderrs.New("nope")); ok {
		t.Fatalf("non-pg error should report ok=false")
	}
}

func TestFromPostgres(t *testing.T) {
	if FromPostgres(nil, "x") != nil || FromPostgresf(nil, "x %d", 1) != nil {
		t.Fatalf("nil should pass through")
	}
	if err := FromPostgres(pg("23505"), "insert fact"); CodeOf(err) != ErrorCodeDuplicateKey {
		t.Fatalf("code = %v", CodeOf(err))
	}
	if err := FromPostgresf(pg("57P03"), "begin %s", "tx"); CodeOf(err) != ErrorCodeUnavailable {
		t.Fatalf("code = %v", CodeOf(err))
	}
	if !IsDuplicateKey(FromPostgres(pg("23505"), "wrapped")) {
		t.Fatalf("IsDuplicateKey should see through Wrap")
	}
}

func TestIsRetryable(t *testing.T) {
	for _, code := range []string{"40001", "40P01", "55P03", "57P03"} {
		if !IsRetryable(pg(code)) {
			t.Fatalf("%s should be retryable", code)
		}
	}
	if IsRetryable(pg("23505")) {
		t.Fatalf("unique violation should not be retryable")
	}
	if !IsRetryable(stderrs.New("commit unexpectedly resulted in rollback")) {
		t.Fatalf("commit rollback text should be retryable")
	}
	if IsRetryable(fmt.Errorf("tx: %w", context.Canceled)) {
		t.Fatalf("cancellation must not be retryable")
	}
	if IsRetryable(nil) {
		t.Fatalf("nil is not retryable")
	}
}
