// Package domain holds the warehouse load model: upsert planning, results and aggregates
package domain

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"tubesense/internal/core/record"
	"tubesense/internal/core/sentiment"
	ptime "tubesense/internal/platform/time"
)

// Partition is one (region, day) slice of agg_daily_by_region
type Partition struct {
	Region string `json:"region"`
	Day    string `json:"day"`
}

func (p Partition) compare(o Partition) int {
	if c := strings.Compare(p.Day, o.Day); c != 0 {
		return c
	}
	return strings.Compare(p.Region, o.Region)
}

// SortPartitions sorts ps in place and drops duplicates
func SortPartitions(ps []Partition) []Partition {
	slices.SortFunc(ps, Partition.compare)
	return slices.Compact(ps)
}

// Fact is the slice of an existing fact row the upsert decision needs
type Fact struct {
	VideoID     string
	Region      string
	CategoryID  int
	PublishedAt time.Time
	CollectedAt time.Time
}

// Conflict is an incoming value that disagrees with an immutable stored one.
// The stored value is kept
type Conflict struct {
	VideoID  string
	Field    string
	Existing string
	Incoming string
}

// Action is what the loader does with one incoming row
type Action int

const (
	// Insert writes a new fact row
	Insert Action = iota + 1
	// Refresh overwrites the mutable statistics of an existing row
	Refresh
	// Keep leaves an existing row untouched because it is as new or newer
	Keep
)

func (a Action) String() string {
	switch a {
	case Insert:
		return "insert"
	case Refresh:
		return "refresh"
	case Keep:
		return "keep"
	}
	return "unknown"
}

// Plan is the decision for one incoming row
type Plan struct {
	Action Action

	// RefreshText is set on Refresh when text and classification may be
	// replaced too. A category conflict pins them to the stored row
	RefreshText bool

	Conflicts  []Conflict
	Partitions []Partition
}

// PlanRow decides how in is merged into the fact table. existing is nil when
// the video id is new. Region, published_at and category_id never change once
// stored; a newer collected_at wins for the statistics
func PlanRow(existing *Fact, in record.Video) Plan {
	if existing == nil {
		return Plan{Action: Insert, Partitions: []Partition{{Region: in.Region, Day: ptime.DayString(in.CollectedAt)}}}
	}

	var p Plan
	if !existing.PublishedAt.Equal(in.PublishedAt) {
		p.Conflicts = append(p.Conflicts, Conflict{
			VideoID:  existing.VideoID,
			Field:    "published_at",
			Existing: existing.PublishedAt.UTC().Format(time.RFC3339),
			Incoming: in.PublishedAt.UTC().Format(time.RFC3339),
		})
	}
	categoryConflict := existing.CategoryID != in.CategoryID
	if categoryConflict {
		p.Conflicts = append(p.Conflicts, Conflict{
			VideoID:  existing.VideoID,
			Field:    "category_id",
			Existing: strconv.Itoa(existing.CategoryID),
			Incoming: strconv.Itoa(in.CategoryID),
		})
	}

	if !in.CollectedAt.After(existing.CollectedAt) {
		p.Action = Keep
		return p
	}

	p.Action = Refresh
	p.RefreshText = !categoryConflict
	p.Partitions = SortPartitions([]Partition{
		{Region: existing.Region, Day: ptime.DayString(existing.CollectedAt)},
		{Region: existing.Region, Day: ptime.DayString(in.CollectedAt)},
	})
	return p
}

// Result reports one Load call
type Result struct {
	Key      string `json:"key"`
	Checksum string `json:"checksum"`
	Sequence int64  `json:"batch_sequence"`
	Rows     int    `json:"rows"`

	RowsInserted         int `json:"rows_inserted"`
	RowsUpdated          int `json:"rows_updated"`
	RowsUnchanged        int `json:"rows_unchanged"`
	RowsSkippedDuplicate int `json:"rows_skipped_duplicate"`
	Conflicts            int `json:"conflicts"`

	Partitions []Partition `json:"partitions,omitempty"`
	Aggregates []Aggregate `json:"aggregates,omitempty"`
}

// Duplicate reports whether the batch was already in the ledger
func (r Result) Duplicate() bool { return r.Rows > 0 && r.RowsSkippedDuplicate == r.Rows }

// Outcomes is the per-outcome row count used for metrics
func (r Result) Outcomes() map[string]int {
	return map[string]int{
		"inserted":  r.RowsInserted,
		"updated":   r.RowsUpdated,
		"unchanged": r.RowsUnchanged,
		"duplicate": r.RowsSkippedDuplicate,
		"conflict":  r.Conflicts,
	}
}

// LedgerEntry is one row of loaded_batches
type LedgerEntry struct {
	Checksum string    `json:"checksum"`
	Key      string    `json:"key"`
	Sequence int64     `json:"batch_sequence"`
	Rows     int       `json:"rows"`
	LoadedAt time.Time `json:"loaded_at"`
}

// Aggregate is one agg_daily_by_region row
type Aggregate struct {
	Region            string    `json:"region"`
	Day               string    `json:"day"`
	VideoCount        int64     `json:"video_count"`
	PositiveCount     int64     `json:"positive_count"`
	NegativeCount     int64     `json:"negative_count"`
	MixedCount        int64     `json:"mixed_count"`
	PositivePct       float64   `json:"positive_pct"`
	NegativePct       float64   `json:"negative_pct"`
	MixedPct          float64   `json:"mixed_pct"`
	TotalViews        int64     `json:"total_views"`
	TotalLikes        int64     `json:"total_likes"`
	TotalComments     int64     `json:"total_comments"`
	AvgEngagementRate float64   `json:"avg_engagement_rate"`
	RefreshedAt       time.Time `json:"refreshed_at"`
}

// FactStats is the part of a fact row the aggregation reads
type FactStats struct {
	Sentiment      sentiment.Sentiment
	Views          int64
	Likes          int64
	Comments       int64
	EngagementRate float64
}

// ComputeAggregate is the in-memory form of the warehouse recompute. Percentages
// and the engagement average are rounded to 2 and 4 places. ok is false for an
// empty partition, which has no row
func ComputeAggregate(p Partition, facts []FactStats) (Aggregate, bool) {
	if len(facts) == 0 {
		return Aggregate{}, false
	}
	a := Aggregate{Region: p.Region, Day: p.Day, VideoCount: int64(len(facts))}
	var eng float64
	for _, f := range facts {
		switch f.Sentiment {
		case sentiment.Positive:
			a.PositiveCount++
		case sentiment.Negative:
			a.NegativeCount++
		case sentiment.Mixed:
			a.MixedCount++
		}
		a.TotalViews += f.Views
		a.TotalLikes += f.Likes
		a.TotalComments += f.Comments
		eng += f.EngagementRate
	}
	n := float64(a.VideoCount)
	a.PositivePct = round(100*float64(a.PositiveCount)/n, 2)
	a.NegativePct = round(100*float64(a.NegativeCount)/n, 2)
	a.MixedPct = round(100*float64(a.MixedCount)/n, 2)
	a.AvgEngagementRate = round(eng/n, 4)
	return a, true
}

// AggregateQuery selects a window of aggregate rows. Empty Region means all
type AggregateQuery struct {
	Region string
	From   string
	To     string
	Limit  int
}

// RegionSplit is the sentiment split of one region on the summary day
type RegionSplit struct {
	Region   string `json:"region"`
	Positive int64  `json:"positive"`
	Negative int64  `json:"negative"`
	Mixed    int64  `json:"mixed"`
}

// Summary is the post load warehouse overview
type Summary struct {
	Day        string        `json:"day"`
	Channels   int64         `json:"channels"`
	Videos     int64         `json:"videos"`
	Aggregates int64         `json:"aggregates"`
	Batches    int64         `json:"batches"`
	Split      []RegionSplit `json:"split"`
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
