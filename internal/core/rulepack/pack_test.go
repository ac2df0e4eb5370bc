package rulepack

import (
	"strings"
	"testing"
)

func TestLoad_EmbeddedPack(t *testing.T) {
	p, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Version != SupportedVersion || len(p.Checksum) != 64 {
		t.Fatalf("version=%d checksum=%q", p.Version, p.Checksum)
	}
	if len(p.Positive()) != 15 || len(p.Negative()) != 15 {
		t.Fatalf("lexicon = %d/%d, want 15/15", len(p.Positive()), len(p.Negative()))
	}

	want := map[Class][]int{
		Positive: {19, 26, 27, 28, 29},
		Negative: {20, 23, 24, 25},
		Mixed:    {1, 2, 10, 15, 17, 22},
		Unknown:  {0, 3, 30, 44, -1},
	}
	for class, ids := range want {
		for _, id := range ids {
			if got := p.ClassifyCategory(id); got != class {
				t.Fatalf("category %d = %v, want %v", id, got, class)
			}
		}
	}
	if p.Label(27) != "Education" || p.Label(999) != "" {
		t.Fatalf("labels = %q %q", p.Label(27), p.Label(999))
	}

	cats := p.Categories()
	if len(cats) != 15 {
		t.Fatalf("categories = %d", len(cats))
	}
	for i := 1; i < len(cats); i++ {
		if cats[i-1].ID >= cats[i].ID {
			t.Fatalf("categories not sorted at %d: %d >= %d", i, cats[i-1].ID, cats[i].ID)
		}
	}
}

func TestScoreKeywords(t *testing.T) {
	p := MustLoad()

	cases := []struct {
		name     string
		fields   []string
		pos, neg int
	}{
		{"empty", nil, 0, 0},
		{"scandal title", []string{"Exposed: the worst scandal", "", ""}, 0, 3},
		{"case insensitive", []string{"TUTORIAL Tutorial tutorial"}, 3, 0},
		{"every occurrence counts", []string{"fail", "fail fail", "FAIL"}, 0, 4},
		{"substring not word", []string{"failure helpful learning"}, 2, 1},
		{"both sides", []string{"How-To guide", "drama warning", "tips"}, 3, 2},
		{"no span across fields", []string{"dra", "ma"}, 0, 0},
		{"inside other words", []string{"whatever"}, 0, 1},
	}
	for _, c := range cases {
		pos, neg := p.ScoreKeywords(c.fields...)
		if pos != c.pos || neg != c.neg {
			t.Fatalf("%s: got (%d,%d) want (%d,%d)", c.name, pos, neg, c.pos, c.neg)
		}
	}
}

func TestParse_Rejects(t *testing.T) {
	base := func(body string) []byte {
		return []byte(`{"version":1,"name":"t",` + body + `}`)
	}
	cases := []struct {
		name string
		doc  []byte
		msg  string
	}{
		{"bad json", []byte(`{`), "parse"},
		{"wrong version", []byte(`{"version":2}`), "unsupported"},
		{"class twice", base(`"categories":[{"id":1,"class":"POSITIVE"},{"id":1,"class":"NEGATIVE"}]`), "both"},
		{"bad class", base(`"categories":[{"id":1,"class":"MAYBE"}]`), "invalid class"},
		{"bad id", base(`"categories":[{"id":0,"class":"MIXED"}]`), "positive"},
		{"blank keyword", base(`"lexicon":{"positive":["  "]}`), "blank"},
		{"duplicate keyword", base(`"lexicon":{"positive":["Help"],"negative":["help"]}`), "listed in"},
	}
	for _, c := range cases {
		_, err := Parse(c.doc)
		if err == nil || !strings.Contains(err.Error(), c.msg) {
			t.Fatalf("%s: err = %v, want %q", c.name, err, c.msg)
		}
	}
}

func TestParse_ChecksumTracksContent(t *testing.T) {
	a, err := Parse([]byte(`{"version":1,"lexicon":{"positive":["a"]}}`))
	if err != nil {
		t.Fatalf("parse a: %v", err)
	}
	b, err := Parse([]byte(`{"version":1,"lexicon":{"positive":["b"]}}`))
	if err != nil {
		t.Fatalf("parse b: %v", err)
	}
	if a.Checksum == b.Checksum {
		t.Fatal("different packs share a checksum")
	}

	e := MustLoad()
	p, err := Parse(Embedded())
	if err != nil {
		t.Fatalf("parse embedded: %v", err)
	}
	if e.Checksum != p.Checksum {
		t.Fatalf("checksum %s != %s", e.Checksum, p.Checksum)
	}
}
