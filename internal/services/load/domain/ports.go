package domain

import (
	"context"

	"tubesense/internal/core/record"
	"tubesense/internal/core/rulepack"
	stagedom "tubesense/internal/services/stage/domain"
)

// LoaderPort is what the pipeline binaries call
type LoaderPort interface {
	// Load writes one batch in a single transaction; loading it again is a no-op
	Load(ctx context.Context, b stagedom.Batch) (Result, error)

	// LoadPending loads every staged batch under prefix that the ledger has not seen,
	// in batch_sequence order
	LoadPending(ctx context.Context, prefix string) ([]Result, error)

	// Summary reports warehouse totals and the sentiment split of day
	Summary(ctx context.Context, day string) (Summary, error)
}

// ReaderPort is the read side the ops API serves
type ReaderPort interface {
	Batches(ctx context.Context, limit int) ([]LedgerEntry, error)
	Aggregates(ctx context.Context, q AggregateQuery) ([]Aggregate, error)
}

// WarehouseRepo is the storage surface bound to a Queryer or a transaction
type WarehouseRepo interface {
	// LockBatch serializes loaders working on the same checksum until the tx ends
	LockBatch(ctx context.Context, checksum string) error

	// Loaded reports whether checksum is in the ledger
	Loaded(ctx context.Context, checksum string) (bool, error)

	// LoadedSet returns the subset of checksums already in the ledger
	LoadedSet(ctx context.Context, checksums []string) (map[string]bool, error)

	// SeedCategories upserts the category dimension
	SeedCategories(ctx context.Context, cats []rulepack.Category) error

	// UpsertChannels writes channel rows, never blanking a stored title or country
	UpsertChannels(ctx context.Context, chs []record.Channel) error

	// LockFacts returns the stored facts for ids, locked for update
	LockFacts(ctx context.Context, ids []string) (map[string]Fact, error)

	// InsertFact writes a new fact row
	InsertFact(ctx context.Context, it record.Item) error

	// RefreshFact overwrites statistics, and text plus classification when withText is set
	RefreshFact(ctx context.Context, it record.Item, withText bool) error

	// Recompute rebuilds one aggregate partition from the fact table.
	// ok is false when the partition is now empty
	Recompute(ctx context.Context, p Partition) (agg Aggregate, ok bool, err error)

	// RecordBatch adds the batch to the ledger
	RecordBatch(ctx context.Context, e LedgerEntry) error

	Batches(ctx context.Context, limit int) ([]LedgerEntry, error)
	Aggregates(ctx context.Context, q AggregateQuery) ([]Aggregate, error)
	Summary(ctx context.Context, day string) (Summary, error)
}

// Mirror replaces aggregate partitions in the analytics store
type Mirror interface {
	Replace(ctx context.Context, parts []Partition, aggs []Aggregate) error
}
