// Package sentiment resolves a video's sentiment from its category, falling back to
// keyword scoring when the category carries no verdict. Classify is a pure function
package sentiment

import (
	"tubesense/internal/core/normalize"
	"tubesense/internal/core/rulepack"
)

// Sentiment is the final verdict stored on a fact row
type Sentiment string

// Method names the rule path that produced a verdict
type Method string

const (
	Positive Sentiment = "POSITIVE"
	Negative Sentiment = "NEGATIVE"
	Mixed    Sentiment = "MIXED"

	ByCategory Method = "CATEGORY"
	ByKeyword  Method = "KEYWORD"
)

// Rules is the lookup surface the classifier needs; *rulepack.Pack satisfies it
type Rules interface {
	ClassifyCategory(id int) rulepack.Class
	ScoreKeywords(fields ...string) (positive, negative int)
}

// Input is the part of a video the verdict depends on. CategoryID 0 means missing
type Input struct {
	CategoryID  int
	Title       string
	Description string
	Tags        []string
}

// Result is the classification attached to one video
type Result struct {
	Sentiment    Sentiment `json:"sentiment"`
	Method       Method    `json:"method"`
	PositiveHits int       `json:"positive_hits"`
	NegativeHits int       `json:"negative_hits"`
}

// Classify returns the verdict for in. Hit counts are zero unless Method is ByKeyword
func Classify(rules Rules, in Input) Result {
	switch rules.ClassifyCategory(in.CategoryID) {
	case rulepack.Positive:
		return Result{Sentiment: Positive, Method: ByCategory}
	case rulepack.Negative:
		return Result{Sentiment: Negative, Method: ByCategory}
	}

	// MIXED and UNKNOWN fall through to keywords
	pos, neg := rules.ScoreKeywords(in.Title, in.Description, normalize.JoinTags(in.Tags))
	return Result{Sentiment: verdict(pos, neg), Method: ByKeyword, PositiveHits: pos, NegativeHits: neg}
}

func verdict(pos, neg int) Sentiment {
	switch {
	case pos > neg:
		return Positive
	case neg > pos:
		return Negative
	default:
		return Mixed
	}
}

// Valid reports whether r carries a known sentiment and method pair
func (r Result) Valid() bool {
	switch r.Sentiment {
	case Positive, Negative, Mixed:
	default:
		return false
	}
	switch r.Method {
	case ByCategory:
		return r.PositiveHits == 0 && r.NegativeHits == 0 && r.Sentiment != Mixed
	case ByKeyword:
		return r.PositiveHits >= 0 && r.NegativeHits >= 0 && r.Sentiment == verdict(r.PositiveHits, r.NegativeHits)
	default:
		return false
	}
}
