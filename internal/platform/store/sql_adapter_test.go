package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"tubesense/internal/platform/store/pg"
	"tubesense/internal/platform/testkit"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgxFakeRows implements pgx.Rows over an in-memory table
type pgxFakeRows struct {
	pgx.Rows
	cols   []string
	data   [][]any
	idx    int
	err    error
	closed bool
}

func newPgxFakeRows(cols []string, data [][]any) *pgxFakeRows {
	return &pgxFakeRows{cols: cols, data: data, idx: -1}
}

func (r *pgxFakeRows) Close()     { r.closed = true }
func (r *pgxFakeRows) Err() error { return r.err }
func (r *pgxFakeRows) Next() bool {
	if r.err != nil {
		return false
	}
	r.idx++
	return r.idx < len(r.data)
}
func (r *pgxFakeRows) FieldDescriptions() []pgconn.FieldDescription {
	out := make([]pgconn.FieldDescription, len(r.cols))
	for i, c := range r.cols {
		out[i] = pgconn.FieldDescription{Name: c}
	}
	return out
}
func (r *pgxFakeRows) Scan(dest ...any) error {
	row := r.data[r.idx]
	if len(row) != len(dest) {
		return errors.New("dest len mismatch")
	}
	for i := range dest {
		if err := assignAny(dest[i], row[i]); err != nil {
			return err
		}
	}
	return nil
}

func assignAny(dst, v any) error {
	switch p := dst.(type) {
	case *int:
		*p = v.(int)
	case *int64:
		*p = v.(int64)
	case *string:
		*p = v.(string)
	case *any:
		*p = v
	default:
		return fmt.Errorf("unsupported dest %T", dst)
	}
	return nil
}

type pgxFakeRow struct{ scan func(dest ...any) error }

func (r pgxFakeRow) Scan(dest ...any) error { return r.scan(dest...) }

type fakePgx struct {
	execs []string
	rows  *pgxFakeRows
	row   pgx.Row
	err   error
}

func (f *fakePgx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	return pgconn.NewCommandTag("UPDATE 1"), f.err
}
func (f *fakePgx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}
func (f *fakePgx) QueryRow(context.Context, string, ...any) pgx.Row { return f.row }

type recTracer struct{ events []pg.QueryEvent }

func (r *recTracer) OnQuery(_ context.Context, ev pg.QueryEvent) { r.events = append(r.events, ev) }

type fakeTxCtl struct{ committed, rolledBack bool }

func (f *fakeTxCtl) Commit(context.Context) error   { f.committed = true; return nil }
func (f *fakeTxCtl) Rollback(context.Context) error { f.rolledBack = true; return nil }

func TestTraced_ExecQueryEmit(t *testing.T) {
	t.Parallel()

	tr := &recTracer{}
	fp := &fakePgx{rows: newPgxFakeRows([]string{"id", "region"}, [][]any{{1, "US"}, {2, "CA"}})}
	q := traced{q: fp, tracer: tr, slowUS: 0}

	ct, err := q.Exec(context.Background(), "UPDATE fact_videos SET views = $1", 10)
	if err != nil || ct.RowsAffected() != 1 {
		t.Fatalf("Exec = %v %v", ct, err)
	}

	rs, err := q.Query(context.Background(), "SELECT id, region FROM t")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if cols := rs.Columns(); !slices.Equal(cols, []string{"id", "region"}) {
		t.Fatalf("columns = %v", cols)
	}
	var regions []string
	for rs.Next() {
		var id int
		var region string
		if err := rs.Scan(&id, &region); err != nil {
			t.Fatalf("Scan: %v", err)
		}
		regions = append(regions, region)
	}
	rs.Close()
	if !fp.rows.closed {
		t.Fatal("rows not closed")
	}
	if !slices.Equal(regions, []string{"US", "CA"}) {
		t.Fatalf("regions = %v", regions)
	}

	if len(tr.events) != 2 {
		t.Fatalf("events = %d", len(tr.events))
	}
	// slowUS=0 marks every statement slow
	if !tr.events[0].Slow {
		t.Fatal("exec not marked slow")
	}
}

func TestTraced_QueryRowMapsNoRows(t *testing.T) {
	t.Parallel()

	tr := &recTracer{}
	fp := &fakePgx{row: pgxFakeRow{scan: func(...any) error { return pgx.ErrNoRows }}}
	q := traced{q: fp, tracer: tr}

	var n int
	err := q.QueryRow(context.Background(), "SELECT 1").Scan(&n)
	if !errors.Is(err, ErrNoRows) {
		t.Fatalf("err = %v, want ErrNoRows", err)
	}
	if len(tr.events) != 1 {
		t.Fatalf("events = %d", len(tr.events))
	}
	// no rows is not an error worth tracing
	if tr.events[0].Err != nil {
		t.Fatalf("traced err = %v", tr.events[0].Err)
	}
}

func TestTraced_PropagatesErrors(t *testing.T) {
	t.Parallel()

	fp := &fakePgx{err: errors.New("down")}
	q := traced{q: fp}

	if _, err := q.Exec(context.Background(), "x"); err == nil {
		t.Fatal("Exec: expected error")
	}
	if _, err := q.Query(context.Background(), "x"); err == nil {
		t.Fatal("Query: expected error")
	}
}

func TestRunTx_CommitRollbackPanic(t *testing.T) {
	t.Parallel()

	ctl := &fakeTxCtl{}
	err := runTx(context.Background(), ctl, traced{q: &fakePgx{}}, func(q RowQuerier) error {
		_, err := q.Exec(context.Background(), "INSERT 1")
		return err
	})
	if err != nil || !ctl.committed || ctl.rolledBack {
		t.Fatalf("commit path: err=%v ctl=%+v", err, ctl)
	}

	ctl = &fakeTxCtl{}
	err = runTx(context.Background(), ctl, traced{q: &fakePgx{}}, func(RowQuerier) error { return errors.New("conflict") })
	if err == nil || err.Error() != "conflict" || !ctl.rolledBack || ctl.committed {
		t.Fatalf("rollback path: err=%v ctl=%+v", err, ctl)
	}

	ctl = &fakeTxCtl{}
	testkit.MustPanic(t, func() {
		_ = runTx(context.Background(), ctl, traced{q: &fakePgx{}}, func(RowQuerier) error { panic("boom") })
	})
	if !ctl.rolledBack {
		t.Fatal("panic did not roll back")
	}
}

func TestTag_String(t *testing.T) {
	t.Parallel()
	tg := tag{t: pgconn.NewCommandTag("INSERT 0 3")}
	if tg.String() != "INSERT 0 3" || tg.RowsAffected() != 3 {
		t.Fatalf("tag = %q %d", tg.String(), tg.RowsAffected())
	}
}
