// Package service loads staged batches into the warehouse, one transaction per batch
package service

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"tubesense/internal/core/record"
	"tubesense/internal/core/rulepack"
	"tubesense/internal/modkit/repokit"
	perr "tubesense/internal/platform/errors"
	"tubesense/internal/platform/logger"
	"tubesense/internal/platform/metrics"
	"tubesense/internal/services/load/domain"
	"tubesense/internal/services/stage/codec"
	stagedom "tubesense/internal/services/stage/domain"
)

// Config holds the transaction retry knobs
type Config struct {
	// MaxTries bounds attempts of a batch transaction that failed on
	// contention (serialization, deadlock, lock timeout); 0 -> 3
	MaxTries  uint
	RetryBase time.Duration
	RetryMax  time.Duration
}

// Service implements domain.LoaderPort and domain.ReaderPort
type Service struct {
	DB     repokit.TxRunner
	Binder repokit.Binder[domain.WarehouseRepo]
	Sink   stagedom.Sink

	// Mirror receives recomputed partitions after commit; nil disables it
	Mirror domain.Mirror

	// Categories seeds dim_categories inside every load
	Categories []rulepack.Category

	Cfg     Config
	Metrics *metrics.Pipeline
	Now     func() time.Time
}

// New constructs the loader
func New(db repokit.TxRunner, binder repokit.Binder[domain.WarehouseRepo], sink stagedom.Sink, cats []rulepack.Category, cfg Config, m *metrics.Pipeline) *Service {
	if db == nil || binder == nil {
		panic("load.Service requires a TxRunner and a Binder")
	}
	if cfg.MaxTries == 0 {
		cfg.MaxTries = 3
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 200 * time.Millisecond
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 3 * time.Second
	}
	return &Service{DB: db, Binder: binder, Sink: sink, Categories: cats, Cfg: cfg, Metrics: m, Now: time.Now}
}

// Load writes b in one transaction: ledger check, dimensions, facts, aggregate
// recompute and ledger insert. A checksum already in the ledger returns
// RowsSkippedDuplicate = len(items) without touching facts
func (s *Service) Load(ctx context.Context, b stagedom.Batch) (domain.Result, error) {
	start := time.Now()
	log := logger.C(ctx).With().Str("key", b.Key).Str("checksum", b.Checksum).Int64("batch_sequence", b.Sequence).Logger()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.Cfg.RetryBase
	bo.MaxInterval = s.Cfg.RetryMax

	res, err := backoff.Retry(ctx, func() (domain.Result, error) {
		res, err := s.loadTx(ctx, b, &log)
		if err != nil && !perr.IsRetryable(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(s.Cfg.MaxTries),
		backoff.WithNotify(func(err error, wait time.Duration) {
			log.Warn().Err(err).Dur("wait", wait).Msg("load: transaction contended, retrying")
		}),
	)
	if err != nil {
		s.Metrics.Loaded("failed", nil)
		log.Error().Err(err).Msg("load: batch failed")
		return domain.Result{}, perr.FromPostgresf(err, "load batch %s", b.Key)
	}

	if s.Mirror != nil && len(res.Partitions) > 0 {
		if err := s.Mirror.Replace(ctx, res.Partitions, res.Aggregates); err != nil {
			log.Warn().Err(err).Int("partitions", len(res.Partitions)).Msg("load: aggregate mirror failed")
		}
	}

	status := "loaded"
	if res.Duplicate() {
		status = "duplicate"
	}
	s.Metrics.Loaded(status, res.Outcomes())
	s.Metrics.Observe("load", start)
	log.Info().
		Str("status", status).
		Int("rows", res.Rows).
		Int("inserted", res.RowsInserted).
		Int("updated", res.RowsUpdated).
		Int("unchanged", res.RowsUnchanged).
		Int("skipped_duplicate", res.RowsSkippedDuplicate).
		Int("conflicts", res.Conflicts).
		Int("partitions", len(res.Partitions)).
		Msg("load: batch done")
	return res, nil
}

func (s *Service) loadTx(ctx context.Context, b stagedom.Batch, log *logger.Logger) (domain.Result, error) {
	var res domain.Result
	err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
		res = domain.Result{Key: b.Key, Checksum: b.Checksum, Sequence: b.Sequence, Rows: len(b.Items)}
		w := repokit.MustBind(s.Binder, q)

		if err := w.LockBatch(ctx, b.Checksum); err != nil {
			return err
		}
		done, err := w.Loaded(ctx, b.Checksum)
		if err != nil {
			return err
		}
		if done {
			res.RowsSkippedDuplicate = len(b.Items)
			return nil
		}

		if err := w.SeedCategories(ctx, s.categories(b.Items)); err != nil {
			return err
		}
		if err := w.UpsertChannels(ctx, channels(b.Items)); err != nil {
			return err
		}

		ids := make([]string, 0, len(b.Items))
		for _, it := range b.Items {
			ids = append(ids, it.Video.VideoID)
		}
		existing, err := w.LockFacts(ctx, ids)
		if err != nil {
			return err
		}

		var parts []domain.Partition
		for _, it := range b.Items {
			var ex *domain.Fact
			if f, ok := existing[it.Video.VideoID]; ok {
				ex = &f
			}
			plan := domain.PlanRow(ex, it.Video)
			for _, c := range plan.Conflicts {
				res.Conflicts++
				log.Warn().
					Str("video_id", c.VideoID).
					Str("field", c.Field).
					Str("existing", c.Existing).
					Str("incoming", c.Incoming).
					Msg("load: immutable field conflict, keeping stored value")
			}
			switch plan.Action {
			case domain.Insert:
				if err := w.InsertFact(ctx, it); err != nil {
					return err
				}
				res.RowsInserted++
			case domain.Refresh:
				if err := w.RefreshFact(ctx, it, plan.RefreshText); err != nil {
					return err
				}
				res.RowsUpdated++
			default:
				res.RowsUnchanged++
			}
			parts = append(parts, plan.Partitions...)
		}

		res.Partitions = domain.SortPartitions(parts)
		for _, p := range res.Partitions {
			agg, ok, err := w.Recompute(ctx, p)
			if err != nil {
				return err
			}
			if ok {
				res.Aggregates = append(res.Aggregates, agg)
			}
		}

		return w.RecordBatch(ctx, domain.LedgerEntry{
			Checksum: b.Checksum,
			Key:      b.Key,
			Sequence: b.Sequence,
			Rows:     len(b.Items),
			LoadedAt: s.Now().UTC(),
		})
	})
	return res, err
}

// categories is the pack table plus UNKNOWN rows for ids in items the pack lacks
func (s *Service) categories(items []record.Item) []rulepack.Category {
	known := make(map[int]bool, len(s.Categories))
	for _, c := range s.Categories {
		known[c.ID] = true
	}
	out := slices.Clone(s.Categories)
	for _, it := range items {
		id := it.Video.CategoryID
		if id == 0 || known[id] {
			continue
		}
		known[id] = true
		out = append(out, rulepack.Category{ID: id, Class: rulepack.Unknown})
	}
	return out
}

// channels returns one row per channel id, preferring a fetched row over a stub
func channels(items []record.Item) []record.Channel {
	byID := map[string]record.Channel{}
	for _, it := range items {
		c := it.Channel
		if prev, ok := byID[c.ChannelID]; ok && (prev.Title != "" || c.Title == "") {
			continue
		}
		byID[c.ChannelID] = c
	}
	out := make([]record.Channel, 0, len(byID))
	for _, c := range byID {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b record.Channel) int { return strings.Compare(a.ChannelID, b.ChannelID) })
	return out
}

// LoadPending lists staged keys under prefix, drops those whose checksum is in
// the ledger, and loads the rest in batch_sequence order. Blobs that fail to
// decode are logged and skipped; a load failure stops the walk
func (s *Service) LoadPending(ctx context.Context, prefix string) ([]domain.Result, error) {
	if s.Sink == nil {
		return nil, perr.InvalidArgf("load: no blob sink configured")
	}
	if prefix == "" {
		prefix = stagedom.StagedPrefix
	}
	keys, err := s.Sink.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	log := logger.C(ctx)
	bySum := map[string]string{}
	var sums []string
	for _, k := range keys {
		info, err := stagedom.ParseBatchKey(k)
		if err != nil {
			log.Debug().Str("key", k).Msg("load: skipping non batch key")
			continue
		}
		if _, dup := bySum[info.Checksum]; dup {
			continue
		}
		bySum[info.Checksum] = k
		sums = append(sums, info.Checksum)
	}

	loaded, err := repokit.MustBind(s.Binder, s.DB).LoadedSet(ctx, sums)
	if err != nil {
		return nil, perr.FromPostgres(err, "read ledger")
	}

	var pending []stagedom.Batch
	for _, sum := range sums {
		if loaded[sum] {
			continue
		}
		key := bySum[sum]
		body, err := s.Sink.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		b, err := codec.DecodeKey(key, body)
		if err != nil {
			s.Metrics.Loaded("corrupt", nil)
			log.Error().Err(err).Str("key", key).Msg("load: staged blob does not decode, skipping")
			continue
		}
		pending = append(pending, b)
	}
	slices.SortFunc(pending, func(a, b stagedom.Batch) int {
		if a.Sequence != b.Sequence {
			if a.Sequence < b.Sequence {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Key, b.Key)
	})

	log.Info().Int("listed", len(keys)).Int("pending", len(pending)).Str("prefix", prefix).Msg("load: pending batches")
	out := make([]domain.Result, 0, len(pending))
	for _, b := range pending {
		res, err := s.Load(ctx, b)
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}

// Summary reports warehouse totals and the sentiment split of day
func (s *Service) Summary(ctx context.Context, day string) (domain.Summary, error) {
	sum, err := repokit.MustBind(s.Binder, s.DB).Summary(ctx, day)
	return sum, perr.FromPostgres(err, "warehouse summary")
}

// Batches lists the newest ledger entries
func (s *Service) Batches(ctx context.Context, limit int) ([]domain.LedgerEntry, error) {
	out, err := repokit.MustBind(s.Binder, s.DB).Batches(ctx, limit)
	return out, perr.FromPostgres(err, "list batches")
}

// Aggregates reads a window of agg_daily_by_region
func (s *Service) Aggregates(ctx context.Context, q domain.AggregateQuery) ([]domain.Aggregate, error) {
	out, err := repokit.MustBind(s.Binder, s.DB).Aggregates(ctx, q)
	return out, perr.FromPostgres(err, "read aggregates")
}
