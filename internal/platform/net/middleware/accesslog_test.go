package middleware_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tubesense/internal/platform/net/middleware"
)

func TestAccessLog_PassesThrough(t *testing.T) {
	mw := middleware.AccessLog(middleware.AccessLogOptions{Slow: time.Nanosecond})
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, "ok")
	})

	rr := httptest.NewRecorder()
	mw(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rr.Code != http.StatusCreated || rr.Body.String() != "ok" {
		t.Fatalf("got %d %q", rr.Code, rr.Body.String())
	}
}

func TestRequestID_EchoesHeader(t *testing.T) {
	var seen string
	h := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("X-Request-ID")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if seen != "abc-1" {
		t.Fatalf("handler saw %q", seen)
	}
	if got := rr.Header().Get("X-Request-ID"); got != "abc-1" {
		t.Fatalf("response header = %q", got)
	}
}

func TestRecoverJSON_WritesEnvelope(t *testing.T) {
	h := middleware.RequestID(middleware.RecoverJSON(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "rid-9")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	var body struct {
		StatusCode int    `json:"status_code"`
		Error      string `json:"error"`
		RequestID  string `json:"request_id"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.StatusCode != 500 || body.Error != "internal error" || body.RequestID != "rid-9" {
		t.Fatalf("body = %+v", body)
	}
}

func TestCORS_Preflight(t *testing.T) {
	h := middleware.CORS(middleware.CORSOptions{})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/batches", nil)
	req.Header.Set("Origin", "https://ops.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow origin = %q", got)
	}
}

func TestDefaults_NotEmpty(t *testing.T) {
	if n := len(middleware.Defaults(time.Second)); n != 7 {
		t.Fatalf("defaults = %d, want 7", n)
	}
}
