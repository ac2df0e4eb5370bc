package sentiment

import (
	"testing"

	"tubesense/internal/core/rulepack"
)

var pack = rulepack.MustLoad()

func TestClassify_CategoryVerdictIgnoresText(t *testing.T) {
	noisy := Input{Title: "worst drama scandal", Description: "terrible rant", Tags: []string{"hate"}}
	for _, id := range []int{19, 26, 27, 28, 29} {
		noisy.CategoryID = id
		if got := Classify(pack, noisy); got != (Result{Sentiment: Positive, Method: ByCategory}) {
			t.Fatalf("category %d: %+v", id, got)
		}
	}
	noisy.Title, noisy.Description, noisy.Tags = "learn tips", "tutorial guide", []string{"help"}
	for _, id := range []int{20, 23, 24, 25} {
		noisy.CategoryID = id
		if got := Classify(pack, noisy); got != (Result{Sentiment: Negative, Method: ByCategory}) {
			t.Fatalf("category %d: %+v", id, got)
		}
	}
}

func TestClassify_KeywordFallthrough(t *testing.T) {
	cases := []struct {
		name string
		in   Input
		want Result
	}{
		{"mixed no hits", Input{CategoryID: 10, Title: "lofi beats"}, Result{Mixed, ByKeyword, 0, 0}},
		{"unknown no hits", Input{CategoryID: 44, Title: "x"}, Result{Mixed, ByKeyword, 0, 0}},
		{"missing category", Input{Title: "tutorial"}, Result{Positive, ByKeyword, 1, 0}},
		{"tie", Input{CategoryID: 22, Title: "tips", Description: "drama"}, Result{Mixed, ByKeyword, 1, 1}},
		{"scandal", Input{CategoryID: 10, Title: "Exposed: the worst scandal"}, Result{Negative, ByKeyword, 0, 3}},
		{"tags count", Input{CategoryID: 17, Title: "match", Tags: []string{"Success", "growth"}}, Result{Positive, ByKeyword, 2, 0}},
		{"repetition is signal", Input{CategoryID: 1, Title: "fail", Description: "help help help"}, Result{Positive, ByKeyword, 3, 1}},
	}
	for _, c := range cases {
		got := Classify(pack, c.in)
		if got != c.want {
			t.Fatalf("%s: got %+v want %+v", c.name, got, c.want)
		}
		if !got.Valid() {
			t.Fatalf("%s: result not valid: %+v", c.name, got)
		}
	}
}

func TestClassify_Deterministic(t *testing.T) {
	in := Input{CategoryID: 22, Title: "Daily vlog: a disaster", Description: "tips to improve", Tags: []string{"rant", "advice"}}
	first := Classify(pack, in)
	for i := 0; i < 50; i++ {
		if got := Classify(pack, in); got != first {
			t.Fatalf("run %d: %+v != %+v", i, got, first)
		}
	}
}

func TestResult_Valid(t *testing.T) {
	bad := []Result{
		{},
		{Sentiment: Mixed, Method: ByCategory},
		{Sentiment: Positive, Method: ByCategory, PositiveHits: 1},
		{Sentiment: Negative, Method: ByKeyword, PositiveHits: 2, NegativeHits: 1},
		{Sentiment: "NEUTRAL", Method: ByKeyword},
	}
	for _, r := range bad {
		if r.Valid() {
			t.Fatalf("%+v should be invalid", r)
		}
	}
}
