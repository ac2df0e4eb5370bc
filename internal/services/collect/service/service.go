// Package service runs quota bounded collection over the region x keyword grid
package service

import (
	"context"
	"errors"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"tubesense/internal/core/record"
	"tubesense/internal/core/sentiment"
	perr "tubesense/internal/platform/errors"
	"tubesense/internal/platform/logger"
	"tubesense/internal/platform/metrics"
	"tubesense/internal/services/collect/domain"
	"tubesense/internal/services/collect/guardrails"
)

// Config holds the collector's pacing and retry knobs
type Config struct {
	// Workers runs pairs concurrently; <=1 is sequential
	Workers int

	// PageTimeout bounds each upstream request; <=0 -> guardrails.DefaultPage
	PageTimeout time.Duration

	// MaxTries is the attempt count per page; 0 -> 3
	MaxTries uint

	// RetryBase and RetryMax shape the exponential backoff between attempts
	RetryBase time.Duration
	RetryMax  time.Duration
}

// Service implements domain.CollectorPort
type Service struct {
	Source  domain.Source
	Rules   sentiment.Rules
	Cfg     Config
	Metrics *metrics.Pipeline

	Now   func() time.Time
	NewID func() string
}

// New constructs the collector. Metrics may be nil
func New(src domain.Source, rules sentiment.Rules, cfg Config, m *metrics.Pipeline) *Service {
	if src == nil {
		panic("collect.Service requires a non nil Source")
	}
	if rules == nil {
		panic("collect.Service requires non nil Rules")
	}
	if cfg.MaxTries == 0 {
		cfg.MaxTries = 3
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 5 * time.Second
	}
	return &Service{
		Source:  src,
		Rules:   rules,
		Cfg:     cfg,
		Metrics: m,
		Now:     time.Now,
		NewID:   uuid.NewString,
	}
}

// Collect implements domain.CollectorPort. Nothing is fetched until the stream is ranged
func (s *Service) Collect(ctx context.Context, run domain.RunConfig) domain.Stream {
	return &Stream{svc: s, ctx: ctx, cfg: run.Normalized()}
}

// Stream is a lazy collection run
type Stream struct {
	svc *Service
	ctx context.Context
	cfg domain.RunConfig

	mu  sync.Mutex
	sum domain.Summary
	err error
}

// All ranges the items of a fresh run. Each call restarts from the beginning
// with new quota and dedup state
func (st *Stream) All() iter.Seq[record.Item] {
	return func(yield func(record.Item) bool) {
		if err := st.cfg.Validate(); err != nil {
			st.mu.Lock()
			st.err = err
			st.mu.Unlock()
			return
		}
		r := st.svc.start(st.ctx, st.cfg)
		defer func() {
			sum, err := r.finish()
			st.mu.Lock()
			st.sum, st.err = sum, err
			st.mu.Unlock()
		}()
		if st.svc.Cfg.Workers > 1 {
			r.parallel(yield)
			return
		}
		r.sequential(yield)
	}
}

// Summary returns the summary of the last completed range
func (st *Stream) Summary() domain.Summary {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.sum
}

// Err returns the fatal error of the last completed range, if any
func (st *Stream) Err() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.err
}

// errBudget marks a request refused by the local quota ledger
var errBudget = errors.New("collect: quota budget exhausted")

type outcome int

const (
	fetched outcome = iota
	abandoned
	exhausted
)

// run is the state of one pass over the grid
type run struct {
	svc      *Service
	ctx      context.Context
	detached context.Context
	cfg      domain.RunConfig
	quota    *domain.Quota
	at       time.Time

	halt atomic.Bool

	mu       sync.Mutex
	seen     map[string]struct{}
	channels map[string]record.Channel
	sum      domain.Summary
	fatal    error
	emitted  int

	// committed counts dry run items collected or reserved by in-flight pairs
	committed int
}

func (s *Service) start(ctx context.Context, cfg domain.RunConfig) *run {
	id := s.NewID()
	ctx = logger.WithRun(ctx, id, "collect")
	now := s.Now().UTC()
	r := &run{
		svc:      s,
		ctx:      ctx,
		detached: context.WithoutCancel(ctx),
		cfg:      cfg,
		quota:    domain.NewQuota(cfg.QuotaBudget),
		at:       now,
		seen:     map[string]struct{}{},
		channels: map[string]record.Channel{},
	}
	r.sum = domain.Summary{RunID: id, StartedAt: now, DryRun: cfg.DryRun, Budget: cfg.QuotaBudget}
	logger.C(ctx).Info().
		Strs("regions", cfg.Regions).
		Strs("keywords", cfg.Keywords).
		Int("videos_per_keyword", cfg.VideosPerKeyword).
		Int("quota_budget", cfg.QuotaBudget).
		Bool("dry_run", cfg.DryRun).
		Msg("collect: run started")
	return r
}

func (r *run) finish() (domain.Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sum := r.sum
	sum.FinishedAt = r.svc.Now().UTC()
	sum.Truncated = r.quota.Exhausted()
	sum.Units = r.quota.Used()
	sum.Regions = r.quota.Regions()
	sum.Emitted = r.emitted

	err := r.fatal
	if err == nil && r.ctx.Err() != nil {
		sum.Cancelled = true
		err = r.ctx.Err()
	}

	r.svc.Metrics.Truncated(sum.Truncated)
	ev := logger.C(r.ctx).Info()
	if err != nil {
		ev = logger.C(r.ctx).Error().Err(err)
	}
	ev.Int("emitted", sum.Emitted).
		Int("pairs_done", sum.PairsDone).
		Int("units", sum.Units).
		Bool("truncated", sum.Truncated).
		Bool("cancelled", sum.Cancelled).
		Int("malformed", sum.Malformed).
		Int("duplicates", sum.DuplicatesSkipped).
		Int("pages_abandoned", sum.PagesAbandoned).
		Int("retries", sum.Retries).
		Dur("took", sum.FinishedAt.Sub(sum.StartedAt)).
		Msg("collect: run finished")
	return sum, err
}

func (r *run) sequential(yield func(record.Item) bool) {
	for _, p := range r.cfg.Pairs() {
		if r.ctx.Err() != nil || r.halt.Load() || r.capped() {
			return
		}
		items, err := r.collectPair(p, r.limit())
		if !r.emit(items, yield) {
			return
		}
		if err != nil {
			r.setFatal(err)
			return
		}
		r.pairDone()
	}
}

type pairResult struct {
	items []record.Item
	err   error
}

// parallel runs pairs on a bounded pool and emits their results in pair order
func (r *run) parallel(yield func(record.Item) bool) {
	pairs := r.cfg.Pairs()
	out := make([]chan pairResult, len(pairs))
	for i := range out {
		out[i] = make(chan pairResult, 1)
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, r.svc.Cfg.Workers)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i, p := range pairs {
			sem <- struct{}{}
			n := r.reserve()
			if n <= 0 && r.cfg.DryRun {
				// in-flight pairs may come back short; wait for them to settle
				for range cap(sem) - 1 {
					sem <- struct{}{}
				}
				for range cap(sem) - 1 {
					<-sem
				}
				n = r.reserve()
			}
			if r.ctx.Err() != nil || r.halt.Load() || n <= 0 {
				<-sem
				for _, ch := range out[i:] {
					close(ch)
				}
				return
			}
			wg.Add(1)
			go func() {
				defer func() { <-sem; wg.Done() }()
				items, err := r.collectPair(p, n)
				r.settle(n, len(items))
				out[i] <- pairResult{items: items, err: err}
			}()
		}
	}()
	defer wg.Wait()

	for i := range pairs {
		res, ok := <-out[i]
		if !ok {
			return
		}
		if !r.emit(res.items, yield) {
			r.halt.Store(true)
			return
		}
		if res.err != nil {
			r.setFatal(res.err)
			return
		}
		r.pairDone()
	}
}

// emit yields items until the consumer stops or the dry run cap is hit
func (r *run) emit(items []record.Item, yield func(record.Item) bool) bool {
	for _, it := range items {
		if r.capped() {
			return false
		}
		r.mu.Lock()
		r.emitted++
		r.mu.Unlock()
		r.svc.Metrics.Item(it.Video.Region)
		if !yield(it) {
			return false
		}
	}
	return true
}

func (r *run) capped() bool {
	if !r.cfg.DryRun {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.emitted >= r.cfg.DryRunCap
}

// limit is how many unique items the next pair may collect
func (r *run) limit() int {
	n := r.cfg.VideosPerKeyword
	if r.cfg.DryRun {
		r.mu.Lock()
		n = min(n, r.cfg.DryRunCap-r.emitted)
		r.mu.Unlock()
	}
	return n
}

// reserve claims the item allowance for a pair dispatched to a worker. In a
// dry run the allowance comes out of the cap so concurrent pairs never fetch
// past it
func (r *run) reserve() int {
	if !r.cfg.DryRun {
		return r.cfg.VideosPerKeyword
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := min(r.cfg.VideosPerKeyword, r.cfg.DryRunCap-r.committed)
	if n > 0 {
		r.committed += n
	}
	return n
}

// settle hands back the part of a reservation a pair did not use
func (r *run) settle(reserved, got int) {
	if !r.cfg.DryRun {
		return
	}
	r.mu.Lock()
	r.committed -= reserved - got
	r.mu.Unlock()
}

func (r *run) pairDone() {
	r.mu.Lock()
	r.sum.PairsDone++
	r.mu.Unlock()
}

func (r *run) setFatal(err error) {
	r.halt.Store(true)
	r.mu.Lock()
	if r.fatal == nil {
		r.fatal = err
	}
	r.mu.Unlock()
}

// collectPair pages through search results until limit unique items are
// hydrated or the results run out. The returned error is always fatal
func (r *run) collectPair(p domain.Pair, limit int) ([]record.Item, error) {
	var out []record.Item
	token := ""
	for len(out) < limit && !r.halt.Load() {
		q := domain.SearchQuery{
			Region:     p.Region,
			Keyword:    p.Keyword,
			PageToken:  token,
			MaxResults: min(limit-len(out), domain.MaxIDsPerLookup),
		}
		page, oc, err := attempt(r, p.Region, domain.MethodSearch, func(ctx context.Context) (domain.SearchPage, error) {
			return r.svc.Source.Search(ctx, q)
		})
		if err != nil {
			return out, err
		}
		if oc != fetched {
			break
		}

		if ids := r.claim(page.VideoIDs, limit-len(out)); len(ids) > 0 {
			items, err := r.hydrate(p, ids)
			out = append(out, items...)
			if err != nil {
				return out, err
			}
		}
		if page.NextPageToken == "" || len(page.VideoIDs) == 0 {
			break
		}
		token = page.NextPageToken
	}
	return out, nil
}

// claim reserves up to n unseen ids in rank order
func (r *run) claim(ids []string, n int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, id := range ids {
		if len(out) == n {
			break
		}
		if id == "" {
			continue
		}
		if _, dup := r.seen[id]; dup {
			r.sum.DuplicatesSkipped++
			r.svc.Metrics.Drop("duplicate")
			continue
		}
		r.seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// release returns claims for ids that never turned into a record
func (r *run) release(ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.seen, id)
	}
}

func (r *run) dropMalformed(v record.Video, err error) {
	r.mu.Lock()
	r.sum.Malformed++
	r.mu.Unlock()
	r.svc.Metrics.Drop("malformed")
	logger.C(r.ctx).Warn().Err(err).
		Str("video_id", v.VideoID).
		Str("region", v.Region).
		Str("keyword", v.SearchKeyword).
		Msg("collect: dropped malformed record")
}

// hydrate fetches details for claimed ids and returns valid items in rank order
func (r *run) hydrate(p domain.Pair, ids []string) ([]record.Item, error) {
	videos, oc, err := attempt(r, p.Region, domain.MethodVideos, func(ctx context.Context) ([]record.Video, error) {
		return r.svc.Source.Videos(ctx, ids)
	})
	if err != nil || oc != fetched {
		r.release(ids...)
		return nil, err
	}

	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	byID := make(map[string]record.Video, len(videos))
	for _, v := range videos {
		switch {
		case v.VideoID == "":
			v.Region, v.SearchKeyword = p.Region, p.Keyword
			r.dropMalformed(v, perr.WithField(perr.Malformedf("record has no video id"), "video_id"))
		case wanted[v.VideoID]:
			if _, dup := byID[v.VideoID]; !dup {
				byID[v.VideoID] = v
			}
		}
	}

	valid := make([]record.Video, 0, len(ids))
	for _, id := range ids {
		v, ok := byID[id]
		if !ok {
			r.release(id)
			continue
		}
		v.Region = p.Region
		v.SearchKeyword = p.Keyword
		v.CollectedAt = r.at
		v.EngagementRate = record.EngagementRate(v.ViewCount, v.LikeCount, v.CommentCount)
		if err := v.Validate(); err != nil {
			r.dropMalformed(v, err)
			continue
		}
		valid = append(valid, v)
	}

	chans, err := r.resolveChannels(p.Region, valid)

	items := make([]record.Item, 0, len(valid))
	for _, v := range valid {
		items = append(items, record.Item{
			Video:          v,
			Channel:        chans[v.ChannelID],
			Classification: sentiment.Classify(r.svc.Rules, v.Input()),
		})
	}
	return items, err
}

// resolveChannels looks up channels not seen earlier in the run, in groups of
// MaxIDsPerLookup. Channels that cannot be fetched get a stub with the id only
func (r *run) resolveChannels(region string, videos []record.Video) (map[string]record.Channel, error) {
	out := make(map[string]record.Channel, len(videos))
	var missing []string
	r.mu.Lock()
	for _, v := range videos {
		if _, done := out[v.ChannelID]; done {
			continue
		}
		if c, ok := r.channels[v.ChannelID]; ok {
			out[v.ChannelID] = c
			continue
		}
		out[v.ChannelID] = r.stub(v.ChannelID)
		missing = append(missing, v.ChannelID)
	}
	r.mu.Unlock()

	for start := 0; start < len(missing); start += domain.MaxIDsPerLookup {
		if r.halt.Load() {
			break
		}
		group := missing[start:min(start+domain.MaxIDsPerLookup, len(missing))]
		chans, oc, err := attempt(r, region, domain.MethodChannels, func(ctx context.Context) ([]record.Channel, error) {
			return r.svc.Source.Channels(ctx, group)
		})
		if err != nil {
			return out, err
		}
		if oc != fetched {
			continue
		}
		r.mu.Lock()
		for _, c := range chans {
			if _, asked := out[c.ChannelID]; !asked || c.ChannelID == "" {
				continue
			}
			c.CollectedAt = r.at
			if c.Country == "" {
				c.Country = record.UnknownCountry
			}
			r.channels[c.ChannelID] = c
			out[c.ChannelID] = c
			r.sum.ChannelsFetched++
		}
		r.mu.Unlock()
	}
	return out, nil
}

func (r *run) stub(id string) record.Channel {
	return record.Channel{ChannelID: id, Country: record.UnknownCountry, CollectedAt: r.at}
}

// attempt issues one upstream request with quota reservation and bounded retry.
// Every attempt reserves its own units. A nil error with a non fetched outcome
// means the request was given up without failing the run
func attempt[T any](r *run, region string, m domain.Method, call func(context.Context) (T, error)) (T, outcome, error) {
	op := func() (T, error) {
		var zero T
		if !r.quota.Reserve(region, m) {
			return zero, backoff.Permanent(errBudget)
		}
		r.svc.Metrics.Quota(region, m.Cost())

		ctx, cancel := guardrails.ForPage(r.detached, r.svc.Cfg.PageTimeout)
		defer cancel()
		v, err := call(ctx)
		if err == nil {
			return v, nil
		}
		if !perr.Retryable(err) {
			return zero, backoff.Permanent(err)
		}
		return zero, err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.svc.Cfg.RetryBase
	bo.MaxInterval = r.svc.Cfg.RetryMax

	v, err := backoff.Retry(r.detached, op,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(r.svc.Cfg.MaxTries),
		backoff.WithNotify(func(err error, wait time.Duration) {
			r.mu.Lock()
			r.sum.Retries++
			r.mu.Unlock()
			r.svc.Metrics.Retry(string(m))
			logger.C(r.ctx).Debug().Err(err).
				Str("method", string(m)).
				Str("region", region).
				Dur("wait", wait).
				Msg("collect: retrying request")
		}),
	)

	switch {
	case err == nil:
		return v, fetched, nil
	case errors.Is(err, errBudget):
		r.halt.Store(true)
		logger.C(r.ctx).Warn().
			Str("method", string(m)).
			Str("region", region).
			Int("units", r.quota.Used()).
			Int("budget", r.cfg.QuotaBudget).
			Msg("collect: quota budget exhausted, truncating run")
		return v, exhausted, nil
	case perr.HasCode(err, perr.ErrorCodeQuotaRejected):
		return v, exhausted, perr.WithOp(err, string(m))
	default:
		r.mu.Lock()
		r.sum.PagesAbandoned++
		r.mu.Unlock()
		r.svc.Metrics.Drop("abandoned_" + string(m))
		logger.C(r.ctx).Warn().Err(err).
			Str("method", string(m)).
			Str("region", region).
			Msg("collect: request abandoned after retries")
		return v, abandoned, nil
	}
}
