package modkit

import (
	"testing"

	phttp "tubesense/internal/platform/net/http"
)

type stub struct {
	mounted bool
	ports   any
}

func (s *stub) MountRoutes(_ phttp.Router) { s.mounted = true }
func (s *stub) Ports() any                 { return s.ports }
func (s *stub) Name() string               { return "stub" }

var _ Module = (*stub)(nil)

func TestBuilder_ConstructsModule(t *testing.T) {
	t.Parallel()

	var b Builder = func(d Deps, opts ...Option) Module {
		built := Build(opts...)
		return &stub{ports: built.Ports}
	}

	m := b(Deps{}, WithPorts("ok"))
	if p := m.Ports(); p != "ok" {
		t.Fatalf("Ports = %v, want ok", p)
	}
	m.MountRoutes(newRec())
	if !m.(*stub).mounted {
		t.Fatal("MountRoutes not called")
	}
}
