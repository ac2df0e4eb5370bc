// Package service stages collected items into the blob sink
package service

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"tubesense/internal/core/record"
	perr "tubesense/internal/platform/errors"
	"tubesense/internal/platform/logger"
	"tubesense/internal/platform/metrics"
	"tubesense/internal/services/stage/codec"
	"tubesense/internal/services/stage/domain"
)

// Config holds chunking and put retry knobs
type Config struct {
	// BatchSize caps items per batch; <=0 puts a run in one batch
	BatchSize int

	// MaxTries is the put attempt count; 0 -> 3
	MaxTries  uint
	RetryBase time.Duration
	RetryMax  time.Duration
}

// Service implements domain.StagerPort
type Service struct {
	Sink    domain.Sink
	Cfg     Config
	Metrics *metrics.Pipeline
}

// New constructs the stager
func New(sink domain.Sink, cfg Config, m *metrics.Pipeline) *Service {
	if sink == nil {
		panic("stage.Service requires a non nil Sink")
	}
	if cfg.MaxTries == 0 {
		cfg.MaxTries = 3
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 250 * time.Millisecond
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 5 * time.Second
	}
	return &Service{Sink: sink, Cfg: cfg, Metrics: m}
}

// StageAll sorts items by video id and cuts them into batches of BatchSize
// with consecutive chunk indexes. No items means no batches
func (s *Service) StageAll(items []record.Item, meta domain.Meta) ([]domain.Batch, error) {
	if len(items) == 0 {
		return nil, nil
	}
	sorted := slices.Clone(items)
	slices.SortFunc(sorted, func(a, b record.Item) int { return strings.Compare(a.Video.VideoID, b.Video.VideoID) })

	size := s.Cfg.BatchSize
	if size <= 0 {
		size = len(sorted)
	}
	var out []domain.Batch
	for chunk := range slices.Chunk(sorted, size) {
		m := meta
		m.Chunk = len(out)
		b, err := codec.Stage(chunk, m)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// Publish hands the batch body to the sink with bounded retries.
// Exhaustion is a StageWrite error
func (s *Service) Publish(ctx context.Context, b domain.Batch) error {
	start := time.Now()
	if err := s.put(ctx, b.Key, b.Body, domain.ContentType); err != nil {
		return err
	}
	s.Metrics.Staged(b.Bytes())
	s.Metrics.Observe("publish", start)
	logger.C(ctx).Info().
		Str("key", b.Key).
		Int64("batch_sequence", b.Sequence).
		Int("items", b.Count).
		Int("bytes", b.Bytes()).
		Msg("stage: batch published")
	return nil
}

// PublishManifest stores the run manifest as indented JSON and returns its key
func (s *Service) PublishManifest(ctx context.Context, m domain.Manifest) (string, error) {
	body, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeJSON, "encode manifest")
	}
	key := m.Key()
	if err := s.put(ctx, key, append(body, '\n'), "application/json"); err != nil {
		return "", err
	}
	logger.C(ctx).Info().Str("key", key).Int("batches", len(m.Batches)).Msg("stage: manifest published")
	return key, nil
}

func (s *Service) put(ctx context.Context, key string, body []byte, contentType string) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.Cfg.RetryBase
	bo.MaxInterval = s.Cfg.RetryMax

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := s.Sink.Put(ctx, key, body, contentType)
		if err != nil && perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(s.Cfg.MaxTries),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logger.C(ctx).Warn().Err(err).Str("key", key).Dur("wait", wait).Msg("stage: put failed, retrying")
		}),
	)
	if err != nil {
		return perr.WithField(perr.Wrapf(err, perr.ErrorCodeStageWrite, "stage write %s", key), "key")
	}
	return nil
}

// Run stages and publishes items, returning the published batches in sequence order
func (s *Service) Run(ctx context.Context, items []record.Item, meta domain.Meta) ([]domain.Batch, error) {
	defer s.Metrics.Observe("stage", time.Now())
	batches, err := s.StageAll(items, meta)
	if err != nil {
		return nil, err
	}
	for _, b := range batches {
		if err := s.Publish(ctx, b); err != nil {
			return nil, err
		}
	}
	return batches, nil
}
