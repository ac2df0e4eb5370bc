// Package domain holds DTOs for dry run classification
package domain

import (
	"context"

	"tubesense/internal/core/sentiment"
)

// Input is the part of a video the classifier reads
type Input struct {
	CategoryID  int      `json:"category_id" validate:"min=0,max=999" example:"27"`
	Title       string   `json:"title" validate:"max=1000" example:"Learn Go in one hour"`
	Description string   `json:"description,omitempty" validate:"max=10000"`
	Tags        []string `json:"tags,omitempty" validate:"max=500,dive,max=200" example:"tutorial,golang"`
}

// Verdict is the classification plus the category row that decided it
type Verdict struct {
	sentiment.Result
	CategoryClass string `json:"category_class" example:"POSITIVE"`
	CategoryLabel string `json:"category_label,omitempty" example:"Education"`
	Rules         string `json:"rules" example:"tubesense-default@1"`
}

// ServicePort is consumed by handlers and other modules
type ServicePort interface {
	Classify(ctx context.Context, in Input) (Verdict, error)
}
