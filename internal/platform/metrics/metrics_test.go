package metrics

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"tubesense/internal/platform/testkit"
)

func TestNilPipelineIsNoop(t *testing.T) {
	var p *Pipeline
	p.Item("US")
	p.Drop("duplicate")
	p.Quota("US", 100)
	p.Retry("search")
	p.Truncated(true)
	p.Staged(10)
	p.Loaded("loaded", map[string]int{"inserted": 1})
	p.Observe("collect", time.Now())
	p.Finished(time.Now())
	if err := p.WriteTextfile("/nonexistent/x.prom"); err != nil {
		t.Fatalf("nil textfile: %v", err)
	}

	h := p.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(204) }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != 204 {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCounters(t *testing.T) {
	p := New()
	p.Item("US")
	p.Item("US")
	p.Item("CA")
	p.Quota("US", 101)
	p.Truncated(true)
	p.Staged(2048)
	p.Loaded("loaded", map[string]int{"inserted": 3, "conflict": 1})

	cases := []struct {
		name string
		got  float64
		want float64
	}{
		{"items US", testutil.ToFloat64(p.CollectItems.WithLabelValues("US")), 2},
		{"quota US", testutil.ToFloat64(p.QuotaUnits.WithLabelValues("US")), 101},
		{"truncated", testutil.ToFloat64(p.QuotaTruncated), 1},
		{"stage bytes", testutil.ToFloat64(p.StageBytes), 2048},
		{"rows inserted", testutil.ToFloat64(p.LoadRows.WithLabelValues("inserted")), 3},
		{"batches loaded", testutil.ToFloat64(p.LoadBatches.WithLabelValues("loaded")), 1},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Fatalf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestHandlerAndTextfile(t *testing.T) {
	p := New()
	p.Drop("missing_statistics")

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	testkit.MustContain(t, rec.Body.String(), `tubesense_collect_dropped_total{reason="missing_statistics"} 1`)

	path := filepath.Join(t.TempDir(), "tubesense.prom")
	if err := p.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	testkit.MustContain(t, string(b), "tubesense_collect_dropped_total")
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	p := New()
	r := chi.NewRouter()
	r.Use(p.Middleware)
	r.Get("/api/v1/batches/{checksum}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNotFound) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/batches/abc", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if n := testutil.CollectAndCount(p.HTTPDuration, "tubesense_api_request_duration_seconds"); n != 1 {
		t.Fatalf("duration series = %d", n)
	}
	if v := testutil.ToFloat64(p.HTTPInFlight); v != 0 {
		t.Fatalf("in flight = %v", v)
	}
}
