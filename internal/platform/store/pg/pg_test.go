package pg

import (
	"context"
	"errors"
	"testing"

	"tubesense/internal/platform/testkit"

	"github.com/jackc/pgx/v5/pgxpool"
)

func TestOpen_ParseError(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), Config{URL: "://bad"}, nil, nil); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestOpen_NewPoolError(t *testing.T) {
	testkit.Serial(t)
	testkit.Swap(t, &newPool, func(context.Context, *pgxpool.Config) (*pgxpool.Pool, error) {
		return nil, errors.New("boom")
	})

	if _, err := Open(context.Background(), Config{URL: "postgres://u:p@h:5432/db"}, nil, nil); err == nil {
		t.Fatalf("expected newPool error")
	}
}

func TestOpen_AppliesConfig(t *testing.T) {
	testkit.Serial(t)

	var seen *pgxpool.Config
	testkit.Swap(t, &newPool, func(_ context.Context, pc *pgxpool.Config) (*pgxpool.Pool, error) {
		seen = pc
		return &pgxpool.Pool{}, nil
	})

	mutCalled := false
	p, err := Open(context.Background(), Config{URL: "postgres://u:p@h:5432/db", MaxConns: 7, SlowMs: 250}, nil,
		func(*pgxpool.Config) { mutCalled = true })
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !mutCalled {
		t.Fatalf("mutator not called")
	}
	if seen.MaxConns != 7 || seen.ConnConfig.RuntimeParams["application_name"] != "tubesense" {
		t.Fatalf("config not applied: max=%d params=%v", seen.MaxConns, seen.ConnConfig.RuntimeParams)
	}
	if p.SlowMs != 250 {
		t.Fatalf("SlowMs = %d", p.SlowMs)
	}
}

func TestOpen_KeepsExplicitAppName(t *testing.T) {
	testkit.Serial(t)

	var seen *pgxpool.Config
	testkit.Swap(t, &newPool, func(_ context.Context, pc *pgxpool.Config) (*pgxpool.Pool, error) {
		seen = pc
		return &pgxpool.Pool{}, nil
	})
	if _, err := Open(context.Background(), Config{URL: "postgres://u:p@h:5432/db?application_name=ops"}, nil, nil); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := seen.ConnConfig.RuntimeParams["application_name"]; got != "ops" {
		t.Fatalf("application_name = %q", got)
	}
}

func TestClose_NilSafe(t *testing.T) {
	t.Parallel()

	var p *PG
	p.Close()
	(&PG{}).Close()
}
