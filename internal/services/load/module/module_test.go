package module

import (
	"context"
	"strings"
	"testing"
	"time"

	"tubesense/internal/modkit"
	"tubesense/internal/modkit/module"
	"tubesense/internal/platform/config"
	"tubesense/internal/platform/store"
	"tubesense/internal/services/load/domain"
)

type fakeCH struct {
	execs []string
}

func (f *fakeCH) Exec(_ context.Context, sql string, _ ...any) error {
	f.execs = append(f.execs, sql)
	return nil
}
func (f *fakeCH) Insert(context.Context, string, [][]any) error                { return nil }
func (f *fakeCH) Query(context.Context, string, ...any) (store.Rows, error)    { return nil, nil }
func (f *fakeCH) ScalarUInt64(context.Context, string, ...any) (uint64, error) { return 0, nil }
func (f *fakeCH) Close() error                                                 { return nil }

func TestFromConfig_ReadsLoadEnv(t *testing.T) {
	t.Setenv("CORE_LOAD_RETRIES", "5")
	t.Setenv("CORE_LOAD_LOCK_TIMEOUT", "750ms")
	t.Setenv("CORE_LOAD_CH_MIRROR", "true")
	t.Setenv("CORE_LOAD_MIGRATE", "false")

	o := FromConfig(config.New())
	if o.MaxTries != 5 || o.LockTimeout != 750*time.Millisecond || !o.Mirror || o.Migrate {
		t.Fatalf("options = %+v", o)
	}
	if o.PendingPrefix != "staged/" {
		t.Fatalf("prefix = %q", o.PendingPrefix)
	}
}

func TestNew_WithoutPostgresUsesMemory(t *testing.T) {
	m, err := New(context.Background(), modkit.Deps{Cfg: config.New()}, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m.Name() != "load" || m.Memory == nil {
		t.Fatalf("module = %+v", m)
	}
	if l, ok := module.PortsOf[domain.LoaderPort](m); !ok || l == nil {
		t.Fatal("loader port not exposed")
	}
	if r, ok := module.PortsOf[domain.ReaderPort](m); !ok || r == nil {
		t.Fatal("reader port not exposed")
	}
}

func TestNew_MirrorNeedsClickhouse(t *testing.T) {
	t.Setenv("CORE_LOAD_CH_MIRROR", "true")
	if _, err := New(context.Background(), modkit.Deps{Cfg: config.New()}, nil, nil); err == nil {
		t.Fatal("expected error without clickhouse")
	}

	ch := &fakeCH{}
	if _, err := New(context.Background(), modkit.Deps{Cfg: config.New(), CH: ch}, nil, nil); err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(ch.execs) != 2 || !strings.Contains(ch.execs[1], "ReplacingMergeTree") {
		t.Fatalf("ensure statements = %q", ch.execs)
	}
}
