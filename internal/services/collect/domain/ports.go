package domain

import (
	"context"
	"iter"

	"tubesense/internal/core/record"
)

// Source is the search API. Implementations return perr coded errors:
// QuotaRejected when the API refuses on quota grounds, Unavailable for transient failures
type Source interface {
	// Search returns one page of video ids for a region and keyword
	Search(ctx context.Context, q SearchQuery) (SearchPage, error)

	// Videos returns metadata and statistics for up to MaxIDsPerLookup ids.
	// Region, SearchKeyword, CollectedAt and EngagementRate are left for the caller
	Videos(ctx context.Context, ids []string) ([]record.Video, error)

	// Channels returns up to MaxIDsPerLookup channels; CollectedAt is left for the caller
	Channels(ctx context.Context, ids []string) ([]record.Channel, error)
}

// Stream is the lazy result of a run. Ranging All again restarts the run from the beginning
type Stream interface {
	All() iter.Seq[record.Item]
	Summary() Summary
	Err() error
}

// CollectorPort is what other modules call
type CollectorPort interface {
	Collect(ctx context.Context, run RunConfig) Stream
}
