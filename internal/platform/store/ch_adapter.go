package store

import (
	"context"
	"errors"

	"tubesense/internal/platform/store/ch"
)

// chClient is the subset of *ch.CH the adapter needs
type chClient interface {
	Exec(ctx context.Context, sql string, args ...any) error
	Insert(ctx context.Context, table string, rows [][]any) error
	Query(ctx context.Context, sql string, args ...any) (ch.Rows, error)
	ScalarUInt64(ctx context.Context, sql string, args ...any) (uint64, error)
	Ping(ctx context.Context) error
	Close() error
}

func newCHAdapter(c chClient) Clickhouse { return &clickhouseAdapter{inner: c} }

// clickhouseAdapter adapts the ch client to the store.Clickhouse seam
type clickhouseAdapter struct {
	inner chClient
}

var _ Clickhouse = (*clickhouseAdapter)(nil)

func (a *clickhouseAdapter) Exec(ctx context.Context, sql string, args ...any) error {
	return a.inner.Exec(ctx, sql, args...)
}

func (a *clickhouseAdapter) Insert(ctx context.Context, table string, rows [][]any) error {
	return a.inner.Insert(ctx, table, rows)
}

func (a *clickhouseAdapter) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	r, err := a.inner.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return &chRows{r: r}, nil
}

func (a *clickhouseAdapter) ScalarUInt64(ctx context.Context, sql string, args ...any) (uint64, error) {
	return a.inner.ScalarUInt64(ctx, sql, args...)
}

// Ping verifies connectivity with ClickHouse
func (a *clickhouseAdapter) Ping(ctx context.Context) error {
	if a == nil || a.inner == nil {
		return errors.New("store: nil clickhouse adapter")
	}
	return a.inner.Ping(ctx)
}

func (a *clickhouseAdapter) Close() error { return a.inner.Close() }

// chRows wraps ch.Rows as store.Rows
type chRows struct{ r ch.Rows }

func (r *chRows) Next() bool             { return r.r.Next() }
func (r *chRows) Scan(dest ...any) error { return r.r.Scan(dest...) }
func (r *chRows) Err() error             { return r.r.Err() }
func (r *chRows) Close()                 { _ = r.r.Close() }
func (r *chRows) Columns() []string      { return r.r.Columns() }
