package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"tubesense/internal/core/rulepack"
	"tubesense/internal/core/sentiment"
	"tubesense/internal/services/api/classify/domain"
)

func TestClassify_NDJSON(t *testing.T) {
	pack := rulepack.MustLoad()
	in := strings.Join([]string{
		`{"category_id":27,"title":"Learn Go"}`,
		``,
		`not json`,
		`{"category_id":-1}`,
		`{"category_id":10,"title":"Exposed: the worst drama"}`,
	}, "\n")

	var out bytes.Buffer
	ok, bad, err := classify(context.Background(), pack, strings.NewReader(in), &out)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if ok != 2 || bad != 2 {
		t.Fatalf("ok=%d bad=%d, want 2/2", ok, bad)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	var first, second domain.Verdict
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("line 0: %v", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("line 1: %v", err)
	}
	if first.Sentiment != sentiment.Positive || first.Method != sentiment.ByCategory {
		t.Fatalf("first = %+v", first)
	}
	if second.Method != sentiment.ByKeyword || second.Rules != pack.Ref() {
		t.Fatalf("second = %+v", second)
	}
}

func TestLoadPack_MissingFile(t *testing.T) {
	if _, err := loadPack(t.TempDir() + "/nope.json"); err == nil {
		t.Fatal("expected error for missing pack")
	}
}
