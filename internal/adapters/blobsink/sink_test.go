package blobsink

import (
	"bytes"
	"context"
	"path/filepath"
	"slices"
	"testing"

	perr "tubesense/internal/platform/errors"
)

// exerciseSink runs the behaviour every backend must share
func exerciseSink(t *testing.T, s Sink) {
	t.Helper()
	ctx := context.Background()

	keys := []string{
		"staged/dt=2024-03-02/regions=US/bbb.ndjson.gz",
		"staged/dt=2024-03-01/regions=IN-US/aaa.ndjson.gz",
		"manifests/dt=2024-03-01/run-1.json",
	}
	for i, k := range keys {
		if err := s.Put(ctx, k, []byte{byte(i), 0xff, 0x00}, "application/gzip"); err != nil {
			t.Fatalf("Put %s: %v", k, err)
		}
	}

	got, err := s.List(ctx, "staged/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if want := []string{keys[1], keys[0]}; !slices.Equal(got, want) {
		t.Fatalf("staged = %v, want %v", got, want)
	}

	all, err := s.List(ctx, "")
	if err != nil || len(all) != 3 {
		t.Fatalf("all = %v %v", all, err)
	}

	none, err := s.List(ctx, "staged/dt=2025")
	if err != nil || len(none) != 0 {
		t.Fatalf("none = %v %v", none, err)
	}

	body, err := s.Get(ctx, keys[1])
	if err != nil || !bytes.Equal(body, []byte{1, 0xff, 0x00}) {
		t.Fatalf("Get = %v %v", body, err)
	}

	// overwrite is idempotent for the index
	if err := s.Put(ctx, keys[1], []byte("v2"), "application/gzip"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	body, err = s.Get(ctx, keys[1])
	if err != nil || string(body) != "v2" {
		t.Fatalf("Get after overwrite = %q %v", body, err)
	}
	again, err := s.List(ctx, "staged/")
	if err != nil || len(again) != 2 {
		t.Fatalf("staged after overwrite = %v %v", again, err)
	}

	if _, err := s.Get(ctx, "staged/missing.ndjson.gz"); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("missing: err = %v", err)
	}
	if err := s.Put(ctx, "../escape", []byte("x"), ""); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("escape: err = %v", err)
	}
}

func TestFileSink(t *testing.T) {
	s, err := Open(context.Background(), "file://"+t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	if _, ok := s.(*FileSink); !ok {
		t.Fatalf("sink = %T", s)
	}
	exerciseSink(t, s)
}

func TestSQLiteSink(t *testing.T) {
	s, err := Open(context.Background(), "sqlite://"+filepath.Join(t.TempDir(), "blobs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	if _, ok := s.(*SQLiteSink); !ok {
		t.Fatalf("sink = %T", s)
	}
	exerciseSink(t, s)
}

func TestOpen_BarePathAndBadScheme(t *testing.T) {
	s, err := Open(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := s.(*FileSink); !ok {
		t.Fatalf("sink = %T", s)
	}

	if _, err := Open(context.Background(), "s3://bucket/prefix"); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("s3: err = %v", err)
	}
	if _, err := Open(context.Background(), "  "); err == nil {
		t.Fatal("blank: expected error")
	}
}

func TestValidKey(t *testing.T) {
	for _, k := range []string{"a", "a/b.gz", "staged/dt=2024-01-01/x"} {
		if err := ValidKey(k); err != nil {
			t.Fatalf("%q: %v", k, err)
		}
	}
	for _, k := range []string{"", "/a", "a/", "a//b", "a/../b", "./a"} {
		if ValidKey(k) == nil {
			t.Fatalf("%q accepted", k)
		}
	}
}
