package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	kit "tubesense/internal/platform/testkit"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"trace", "trace"},
		{"debug", "debug"},
		{"info", "info"},
		{"warning", "warn"},
		{"error", "error"},
		{"fatal", "fatal"},
		{"panic", "panic"},
		{"", "info"},
		{"  nonsense ", "info"},
	}
	for _, c := range cases {
		if got := strings.ToLower(parseLevel(c.in).String()); got != c.want {
			t.Fatalf("parseLevel(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestInit_Named_C_WithRun(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{
		Level:        "debug",
		Format:       "console",
		Service:      "tubesense-test",
		Writer:       &buf,
		SampleEvery:  2,
		StaticFields: map[string]string{"build": "test"},
	})

	rv := Get().Sample(&zerolog.BasicSampler{N: 1})
	rv.Info().Msg("root-msg")

	nv := Named("collect").Sample(&zerolog.BasicSampler{N: 1})
	nv.Info().Msg("named-msg")

	ctx := WithRun(WithRequest(context.Background(), "req-9"), "run-42", "load")
	cv := C(ctx).Sample(&zerolog.BasicSampler{N: 1})
	cv.Info().Msg("ctx-msg")

	out := buf.String()
	for _, want := range []string{"root-msg", "named-msg", "ctx-msg", "collect", "req-9", "run-42", "stage=", "load", "tubesense-test", "build="} {
		kit.MustContain(t, out, want)
	}
	if got := RunID(ctx); got != "run-42" {
		t.Fatalf("RunID = %q", got)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "WARN")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_CALLER", "true")
	t.Setenv("LOG_SAMPLE_EVERY", "5")

	opt := FromEnv()
	if opt.Level != "warn" || opt.Format != "json" {
		t.Fatalf("FromEnv level/format mismatch: %+v", opt)
	}
	if opt.Service != "tubesense" {
		t.Fatalf("FromEnv default service = %q", opt.Service)
	}
	if !opt.WithCaller || opt.SampleEvery != 5 {
		t.Fatalf("FromEnv caller/sample mismatch: %+v", opt)
	}
}

func TestWithRun_EmptyValuesLeaveContext(t *testing.T) {
	ctx := context.Background()
	if WithRun(ctx, "", "") != ctx {
		t.Fatalf("expected unchanged ctx for empty run and stage")
	}
	if WithRequest(ctx, "") != ctx {
		t.Fatalf("expected unchanged ctx for empty request id")
	}
}
