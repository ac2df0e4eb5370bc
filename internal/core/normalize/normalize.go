// Package normalize folds free text so keyword matching is case-insensitive and stable
// across Unicode spellings. Order: drop invalid UTF-8, NFC compose, Unicode case fold
package normalize

import (
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// transformers carry state so each call takes one from the pool
var chainPool = sync.Pool{
	New: func() any {
		return transform.Chain(norm.NFC, cases.Fold())
	},
}

// Fold returns the folded form of s. Whitespace and punctuation are left as is
func Fold(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToValidUTF8(s, "")
	if isLowerASCII(s) {
		return s
	}

	tr := chainPool.Get().(transform.Transformer)
	out, _, err := transform.String(tr, s)
	tr.Reset()
	chainPool.Put(tr)
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

// JoinTags joins tags with a single space, the form the classifier scores
func JoinTags(tags []string) string { return strings.Join(tags, " ") }

func isLowerASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x80 || ('A' <= c && c <= 'Z') {
			return false
		}
	}
	return true
}
