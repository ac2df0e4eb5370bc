package repo

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"tubesense/internal/core/record"
	"tubesense/internal/core/rulepack"
	"tubesense/internal/modkit/repokit"
	ptime "tubesense/internal/platform/time"
	"tubesense/internal/services/load/domain"
)

var errNoSQL = errors.New("memory warehouse: raw sql is not supported")

// Memory is an in-process warehouse with the same load semantics as the
// postgres repo. It is both the TxRunner and the Binder; Tx holds one lock
// for its whole duration and rolls the maps back when fn fails.
// Dry runs without a database and tests use it
type Memory struct {
	mu    sync.Mutex
	state memState
}

type memState struct {
	categories map[int]rulepack.Category
	channels   map[string]record.Channel
	facts      map[string]record.Item
	aggs       map[domain.Partition]domain.Aggregate
	ledger     map[string]domain.LedgerEntry
}

// NewMemory returns an empty warehouse
func NewMemory() *Memory {
	return &Memory{state: memState{
		categories: map[int]rulepack.Category{},
		channels:   map[string]record.Channel{},
		facts:      map[string]record.Item{},
		aggs:       map[domain.Partition]domain.Aggregate{},
		ledger:     map[string]domain.LedgerEntry{},
	}}
}

func (s memState) clone() memState {
	return memState{
		categories: maps.Clone(s.categories),
		channels:   maps.Clone(s.channels),
		facts:      maps.Clone(s.facts),
		aggs:       maps.Clone(s.aggs),
		ledger:     maps.Clone(s.ledger),
	}
}

// Exec is not supported
func (m *Memory) Exec(context.Context, string, ...any) (repokit.CommandTag, error) {
	return nil, errNoSQL
}

// Query is not supported
func (m *Memory) Query(context.Context, string, ...any) (repokit.Rows, error) { return nil, errNoSQL }

// QueryRow is not supported
func (m *Memory) QueryRow(context.Context, string, ...any) repokit.Row { return errRow{} }

type errRow struct{}

func (errRow) Scan(...any) error { return errNoSQL }

// Tx runs fn with exclusive access, restoring the previous state on error
func (m *Memory) Tx(_ context.Context, fn func(q repokit.Queryer) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.state.clone()
	if err := fn(memTx{}); err != nil {
		m.state = snap
		return err
	}
	return nil
}

// memTx marks a Queryer handed out inside Tx, where the lock is already held
type memTx struct{}

func (memTx) Exec(context.Context, string, ...any) (repokit.CommandTag, error) { return nil, errNoSQL }
func (memTx) Query(context.Context, string, ...any) (repokit.Rows, error)      { return nil, errNoSQL }
func (memTx) QueryRow(context.Context, string, ...any) repokit.Row             { return errRow{} }

// Bind implements repokit.Binder. Outside Tx every call takes the lock itself
func (m *Memory) Bind(q repokit.Queryer) domain.WarehouseRepo {
	_, inTx := q.(memTx)
	return &memRepo{m: m, inTx: inTx}
}

type memRepo struct {
	m    *Memory
	inTx bool
}

func (r *memRepo) do(fn func(s *memState) error) error {
	if !r.inTx {
		r.m.mu.Lock()
		defer r.m.mu.Unlock()
	}
	return fn(&r.m.state)
}

func (r *memRepo) LockBatch(context.Context, string) error { return nil }

func (r *memRepo) Loaded(_ context.Context, checksum string) (bool, error) {
	var ok bool
	err := r.do(func(s *memState) error {
		_, ok = s.ledger[checksum]
		return nil
	})
	return ok, err
}

func (r *memRepo) LoadedSet(_ context.Context, checksums []string) (map[string]bool, error) {
	out := map[string]bool{}
	err := r.do(func(s *memState) error {
		for _, c := range checksums {
			if _, ok := s.ledger[c]; ok {
				out[c] = true
			}
		}
		return nil
	})
	return out, err
}

func (r *memRepo) SeedCategories(_ context.Context, cats []rulepack.Category) error {
	return r.do(func(s *memState) error {
		for _, c := range cats {
			if prev, ok := s.categories[c.ID]; ok && c.Class == rulepack.Unknown && prev.Class != rulepack.Unknown {
				continue
			}
			s.categories[c.ID] = c
		}
		return nil
	})
}

func (r *memRepo) UpsertChannels(_ context.Context, chs []record.Channel) error {
	return r.do(func(s *memState) error {
		for _, c := range chs {
			if c.Country == "" {
				c.Country = record.UnknownCountry
			}
			prev, ok := s.channels[c.ChannelID]
			if !ok {
				s.channels[c.ChannelID] = c
				continue
			}
			if !c.CollectedAt.After(prev.CollectedAt) {
				continue
			}
			next := prev
			next.CollectedAt = c.CollectedAt
			if c.Title != "" {
				next.Title = c.Title
				next.VideoCount = c.VideoCount
			}
			if c.Country != record.UnknownCountry {
				next.Country = c.Country
			}
			if c.SubscriberCount != nil {
				next.SubscriberCount = c.SubscriberCount
			}
			s.channels[c.ChannelID] = next
		}
		return nil
	})
}

func (r *memRepo) LockFacts(_ context.Context, ids []string) (map[string]domain.Fact, error) {
	out := map[string]domain.Fact{}
	err := r.do(func(s *memState) error {
		for _, id := range ids {
			if it, ok := s.facts[id]; ok {
				v := it.Video
				out[id] = domain.Fact{VideoID: id, Region: v.Region, CategoryID: v.CategoryID, PublishedAt: v.PublishedAt, CollectedAt: v.CollectedAt}
			}
		}
		return nil
	})
	return out, err
}

func (r *memRepo) InsertFact(_ context.Context, it record.Item) error {
	return r.do(func(s *memState) error {
		if _, ok := s.facts[it.Video.VideoID]; ok {
			return errors.New("memory warehouse: duplicate video_id " + it.Video.VideoID)
		}
		if _, ok := s.channels[it.Video.ChannelID]; !ok {
			return errors.New("memory warehouse: unknown channel " + it.Video.ChannelID)
		}
		s.facts[it.Video.VideoID] = it
		return nil
	})
}

func (r *memRepo) RefreshFact(_ context.Context, it record.Item, withText bool) error {
	return r.do(func(s *memState) error {
		cur, ok := s.facts[it.Video.VideoID]
		if !ok {
			return errors.New("memory warehouse: refresh of missing video_id " + it.Video.VideoID)
		}
		in := it.Video
		cur.Video.ViewCount, cur.Video.LikeCount, cur.Video.CommentCount = in.ViewCount, in.LikeCount, in.CommentCount
		cur.Video.EngagementRate = in.EngagementRate
		cur.Video.CollectedAt = in.CollectedAt
		if withText {
			cur.Video.ChannelID = in.ChannelID
			cur.Video.Title, cur.Video.Description, cur.Video.Tags = in.Title, in.Description, in.Tags
			cur.Video.SearchKeyword = in.SearchKeyword
			cur.Classification = it.Classification
		}
		s.facts[in.VideoID] = cur
		return nil
	})
}

func (r *memRepo) Recompute(_ context.Context, p domain.Partition) (domain.Aggregate, bool, error) {
	var agg domain.Aggregate
	var ok bool
	err := r.do(func(s *memState) error {
		var facts []domain.FactStats
		for _, it := range s.facts {
			v := it.Video
			if v.Region != p.Region || ptime.DayString(v.CollectedAt) != p.Day {
				continue
			}
			facts = append(facts, domain.FactStats{
				Sentiment:      it.Classification.Sentiment,
				Views:          v.ViewCount,
				Likes:          v.LikeCount,
				Comments:       v.CommentCount,
				EngagementRate: v.EngagementRate,
			})
		}
		agg, ok = domain.ComputeAggregate(p, facts)
		if ok {
			agg.RefreshedAt = time.Now().UTC()
			s.aggs[p] = agg
		} else {
			delete(s.aggs, p)
		}
		return nil
	})
	return agg, ok, err
}

func (r *memRepo) RecordBatch(_ context.Context, e domain.LedgerEntry) error {
	return r.do(func(s *memState) error {
		if _, ok := s.ledger[e.Checksum]; ok {
			return errors.New("memory warehouse: batch already recorded " + e.Checksum)
		}
		s.ledger[e.Checksum] = e
		return nil
	})
}

func (r *memRepo) Batches(_ context.Context, limit int) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	err := r.do(func(s *memState) error {
		out = slices.Collect(maps.Values(s.ledger))
		return nil
	})
	slices.SortFunc(out, func(a, b domain.LedgerEntry) int {
		if a.Sequence != b.Sequence {
			if a.Sequence > b.Sequence {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Checksum, b.Checksum)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (r *memRepo) Aggregates(_ context.Context, q domain.AggregateQuery) ([]domain.Aggregate, error) {
	var out []domain.Aggregate
	err := r.do(func(s *memState) error {
		for p, a := range s.aggs {
			if q.Region != "" && p.Region != q.Region {
				continue
			}
			if p.Day < q.From || p.Day > q.To {
				continue
			}
			out = append(out, a)
		}
		return nil
	})
	slices.SortFunc(out, func(a, b domain.Aggregate) int {
		if c := strings.Compare(a.Day, b.Day); c != 0 {
			return c
		}
		return strings.Compare(a.Region, b.Region)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, err
}

func (r *memRepo) Summary(_ context.Context, day string) (domain.Summary, error) {
	sum := domain.Summary{Day: day}
	err := r.do(func(s *memState) error {
		sum.Channels = int64(len(s.channels))
		sum.Videos = int64(len(s.facts))
		sum.Aggregates = int64(len(s.aggs))
		sum.Batches = int64(len(s.ledger))
		for p, a := range s.aggs {
			if p.Day == day {
				sum.Split = append(sum.Split, domain.RegionSplit{Region: p.Region, Positive: a.PositiveCount, Negative: a.NegativeCount, Mixed: a.MixedCount})
			}
		}
		return nil
	})
	slices.SortFunc(sum.Split, func(a, b domain.RegionSplit) int { return strings.Compare(a.Region, b.Region) })
	return sum, err
}

// Fact returns the stored item for id
func (m *Memory) Fact(id string) (record.Item, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.state.facts[id]
	return it, ok
}

// Channel returns the stored channel for id
func (m *Memory) Channel(id string) (record.Channel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.state.channels[id]
	return c, ok
}

// Category returns the stored category row for id
func (m *Memory) Category(id int) (rulepack.Category, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.state.categories[id]
	return c, ok
}

// FactCount is the number of fact rows
func (m *Memory) FactCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.facts)
}

// Aggregate returns the stored row of p
func (m *Memory) Aggregate(p domain.Partition) (domain.Aggregate, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.state.aggs[p]
	return a, ok
}

var (
	_ repokit.TxRunner                     = (*Memory)(nil)
	_ repokit.Binder[domain.WarehouseRepo] = (*Memory)(nil)
)
