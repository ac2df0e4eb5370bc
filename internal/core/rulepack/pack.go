// Package rulepack loads the category and keyword rules from the embedded rules.json.
// A Pack is immutable once loaded and safe for concurrent use
package rulepack

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"tubesense/internal/core/normalize"
)

//go:embed rules.json
var embedded []byte

// SupportedVersion is the rules.json schema version this package understands
const SupportedVersion = 1

// Class is the verdict a category carries on its own
type Class string

// Category classes; Unknown is returned for ids absent from the pack
const (
	Positive Class = "POSITIVE"
	Negative Class = "NEGATIVE"
	Mixed    Class = "MIXED"
	Unknown  Class = "UNKNOWN"
)

// Category is one entry of the category table
type Category struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
	Class Class  `json:"class"`
}

type rawPack struct {
	Version    int        `json:"version"`
	Name       string     `json:"name"`
	Categories []Category `json:"categories"`
	Lexicon    struct {
		Positive []string `json:"positive"`
		Negative []string `json:"negative"`
	} `json:"lexicon"`
}

// Pack is a compiled rule pack
type Pack struct {
	Version  int
	Name     string
	Checksum string // hex sha256 of the source document

	categories map[int]Category
	positive   []string
	negative   []string

	// keyword automaton; pattern ids < len(positive) are positive
	ac *acAutomaton
}

// Load returns the compiled pack from the embedded rules.json
func Load() (*Pack, error) { return Parse(embedded) }

// MustLoad is Load that panics; binaries call it once at startup
func MustLoad() *Pack {
	p, err := Load()
	if err != nil {
		panic(err)
	}
	return p
}

// Embedded returns a copy of the embedded rules.json bytes
func Embedded() []byte { return append([]byte(nil), embedded...) }

// Parse validates and compiles a rules document
func Parse(data []byte) (*Pack, error) {
	var rp rawPack
	if err := json.Unmarshal(data, &rp); err != nil {
		return nil, fmt.Errorf("rulepack: parse rules.json: %w", err)
	}
	if rp.Version != SupportedVersion {
		return nil, fmt.Errorf("rulepack: unsupported rules.json version %d (want %d)", rp.Version, SupportedVersion)
	}

	sum := sha256.Sum256(data)
	p := &Pack{
		Version:    rp.Version,
		Name:       strings.TrimSpace(rp.Name),
		Checksum:   hex.EncodeToString(sum[:]),
		categories: make(map[int]Category, len(rp.Categories)),
	}

	for _, c := range rp.Categories {
		if c.ID <= 0 {
			return nil, fmt.Errorf("rulepack: category id %d must be positive", c.ID)
		}
		switch c.Class {
		case Positive, Negative, Mixed:
		default:
			return nil, fmt.Errorf("rulepack: category %d has invalid class %q", c.ID, c.Class)
		}
		if prev, dup := p.categories[c.ID]; dup {
			return nil, fmt.Errorf("rulepack: category %d listed as both %s and %s", c.ID, prev.Class, c.Class)
		}
		c.Label = strings.TrimSpace(c.Label)
		p.categories[c.ID] = c
	}

	seen := make(map[string]string, len(rp.Lexicon.Positive)+len(rp.Lexicon.Negative))
	fold := func(list []string, side string) ([]string, error) {
		out := make([]string, 0, len(list))
		for _, kw := range list {
			k := normalize.Fold(strings.TrimSpace(kw))
			if k == "" {
				return nil, fmt.Errorf("rulepack: blank %s keyword", side)
			}
			if prev, dup := seen[k]; dup {
				return nil, fmt.Errorf("rulepack: keyword %q listed in %s and %s", k, prev, side)
			}
			seen[k] = side
			out = append(out, k)
		}
		return out, nil
	}
	var err error
	if p.positive, err = fold(rp.Lexicon.Positive, "positive"); err != nil {
		return nil, err
	}
	if p.negative, err = fold(rp.Lexicon.Negative, "negative"); err != nil {
		return nil, err
	}

	p.ac = newAutomaton()
	for i, kw := range p.positive {
		p.ac.AddPattern([]byte(kw), i)
	}
	for i, kw := range p.negative {
		p.ac.AddPattern([]byte(kw), len(p.positive)+i)
	}
	p.ac.Build()

	return p, nil
}

// ClassifyCategory returns the class for a category id, Unknown when absent
func (p *Pack) ClassifyCategory(id int) Class {
	if c, ok := p.categories[id]; ok {
		return c.Class
	}
	return Unknown
}

// Ref names the pack as name@version for manifests and API responses
func (p *Pack) Ref() string { return fmt.Sprintf("%s@%d", p.Name, p.Version) }

// Label returns the category label, empty when absent
func (p *Pack) Label(id int) string { return p.categories[id].Label }

// Categories returns the category table ordered by id
func (p *Pack) Categories() []Category {
	out := make([]Category, 0, len(p.categories))
	for _, c := range p.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Positive returns the folded positive lexicon in document order
func (p *Pack) Positive() []string { return append([]string(nil), p.positive...) }

// Negative returns the folded negative lexicon in document order
func (p *Pack) Negative() []string { return append([]string(nil), p.negative...) }

// ScoreKeywords counts every occurrence of every lexicon entry in each field.
// Matching is case-insensitive and never spans two fields
func (p *Pack) ScoreKeywords(fields ...string) (positive, negative int) {
	np := len(p.positive)
	for _, f := range fields {
		if f == "" {
			continue
		}
		p.ac.FindAll([]byte(normalize.Fold(f)), func(_ int, id int) bool {
			if id < np {
				positive++
			} else {
				negative++
			}
			return true
		})
	}
	return positive, negative
}
