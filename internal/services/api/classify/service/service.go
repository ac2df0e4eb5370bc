// Package service classifies payloads against the loaded rule pack
package service

import (
	"context"

	"tubesense/internal/core/rulepack"
	"tubesense/internal/core/sentiment"
	"tubesense/internal/services/api/classify/domain"
)

// Service defines the classify service contract
type Service interface {
	domain.ServicePort
}

// Svc implements the classify service
type Svc struct {
	pack *rulepack.Pack
}

// New constructs a classify service over pack
func New(pack *rulepack.Pack) *Svc {
	if pack == nil {
		panic("classify.Service requires a rule pack")
	}
	return &Svc{pack: pack}
}

// Classify runs the same two tier rules the collector applies
func (s *Svc) Classify(_ context.Context, in domain.Input) (domain.Verdict, error) {
	res := sentiment.Classify(s.pack, sentiment.Input{
		CategoryID:  in.CategoryID,
		Title:       in.Title,
		Description: in.Description,
		Tags:        in.Tags,
	})
	return domain.Verdict{
		Result:        res,
		CategoryClass: string(s.pack.ClassifyCategory(in.CategoryID)),
		CategoryLabel: s.pack.Label(in.CategoryID),
		Rules:         s.pack.Ref(),
	}, nil
}
