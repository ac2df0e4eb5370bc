package module

import (
	"testing"

	phttp "tubesense/internal/platform/net/http"
	"tubesense/internal/platform/testkit"
)

type loaderPort interface{ Pending() int }

type loaderImpl struct{ n int }

func (l loaderImpl) Pending() int { return l.n }

type fakeModule struct {
	name  string
	ports any
}

func (m fakeModule) Name() string             { return m.name }
func (m fakeModule) Ports() any               { return m.ports }
func (m fakeModule) MountRoutes(phttp.Router) {}

func TestPortsOf(t *testing.T) {
	t.Parallel()

	type Bundle struct {
		Count  int
		Loader loaderPort
	}
	type hidden struct{ loader loaderPort }

	cases := []struct {
		name  string
		ports any
		want  int
		ok    bool
	}{
		{"nil ports", nil, 0, false},
		{"direct", loaderPort(loaderImpl{n: 3}), 3, true},
		{"exported field", Bundle{Count: 1, Loader: loaderImpl{n: 7}}, 7, true},
		{"pointer bundle", &Bundle{Loader: loaderImpl{n: 9}}, 9, true},
		{"nil pointer bundle", (*Bundle)(nil), 0, false},
		{"unexported field", hidden{loader: loaderImpl{n: 1}}, 0, false},
		{"scalar", 42, 0, false},
	}
	for _, c := range cases {
		got, ok := PortsOf[loaderPort](fakeModule{name: c.name, ports: c.ports})
		if ok != c.ok {
			t.Fatalf("%s: ok = %v, want %v", c.name, ok, c.ok)
		}
		if ok && got.Pending() != c.want {
			t.Fatalf("%s: Pending = %d, want %d", c.name, got.Pending(), c.want)
		}
	}
}

func TestMustPortsOf(t *testing.T) {
	t.Parallel()

	m := fakeModule{name: "load", ports: loaderPort(loaderImpl{n: 2})}
	if got := MustPortsOf[loaderPort](m); got.Pending() != 2 {
		t.Fatalf("Pending = %d", got.Pending())
	}

	defer func() {
		r := recover()
		msg, _ := r.(string)
		testkit.MustContain(t, msg, "module load")
	}()
	_ = MustPortsOf[loaderPort](fakeModule{name: "load"})
}
