// Package service contains the warehouse read workflows
package service

import (
	"context"
	"strings"
	"time"

	perr "tubesense/internal/platform/errors"
	ptime "tubesense/internal/platform/time"
	"tubesense/internal/services/api/stats/domain"
	loaddom "tubesense/internal/services/load/domain"
)

const (
	// DefaultBatches is the ledger page size when the caller sends none
	DefaultBatches = 50
	// MaxBatches caps the ledger page size
	MaxBatches = 500
	// MaxWindowDays bounds a daily aggregate query
	MaxWindowDays = 366
	// DefaultDaily is the aggregate row cap when the caller sends none
	DefaultDaily = 1000
)

// Service defines the stats service contract
type Service interface {
	domain.ServicePort
}

// Svc implements the stats service over the loader's read port
type Svc struct {
	reader loaddom.ReaderPort
}

// New constructs a stats service
func New(reader loaddom.ReaderPort) *Svc {
	if reader == nil {
		panic("stats.Service requires a non nil ReaderPort")
	}
	return &Svc{reader: reader}
}

// Daily returns aggregates in the window ordered by day then region; limit 0
// means DefaultDaily
func (s *Svc) Daily(ctx context.Context, in domain.DailyInput) ([]domain.DailyRow, error) {
	limit := in.Limit
	switch {
	case limit < 0:
		return nil, perr.WithField(perr.InvalidArgf("limit must be positive"), "limit")
	case limit == 0:
		limit = DefaultDaily
	}
	from, err := ptime.ParseDay(in.Range.Start)
	if err != nil {
		return nil, perr.WithField(perr.InvalidArgf("bad start day %q", in.Range.Start), "start")
	}
	to, err := ptime.ParseDay(in.Range.End)
	if err != nil {
		return nil, perr.WithField(perr.InvalidArgf("bad end day %q", in.Range.End), "end")
	}
	if to.Before(from) {
		return nil, perr.WithField(perr.InvalidArgf("end %s is before start %s", in.Range.End, in.Range.Start), "end")
	}
	if to.Sub(from) > MaxWindowDays*24*time.Hour {
		return nil, perr.WithField(perr.InvalidArgf("window exceeds %d days", MaxWindowDays), "range")
	}

	aggs, err := s.reader.Aggregates(ctx, loaddom.AggregateQuery{
		Region: strings.ToUpper(in.Region),
		From:   in.Range.Start,
		To:     in.Range.End,
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.DailyRow, 0, len(aggs))
	for _, a := range aggs {
		out = append(out, domain.DailyRow{
			Region:            a.Region,
			Day:               a.Day,
			VideoCount:        a.VideoCount,
			PositiveCount:     a.PositiveCount,
			NegativeCount:     a.NegativeCount,
			MixedCount:        a.MixedCount,
			PositivePct:       a.PositivePct,
			NegativePct:       a.NegativePct,
			MixedPct:          a.MixedPct,
			TotalViews:        a.TotalViews,
			TotalLikes:        a.TotalLikes,
			TotalComments:     a.TotalComments,
			AvgEngagementRate: a.AvgEngagementRate,
			RefreshedAt:       a.RefreshedAt.UTC().Format(time.RFC3339),
		})
	}
	return out, nil
}

// Batches returns the newest ledger entries; limit 0 means DefaultBatches
func (s *Svc) Batches(ctx context.Context, limit int) ([]domain.BatchRow, error) {
	switch {
	case limit < 0:
		return nil, perr.WithField(perr.InvalidArgf("limit must be positive"), "limit")
	case limit == 0:
		limit = DefaultBatches
	case limit > MaxBatches:
		limit = MaxBatches
	}
	entries, err := s.reader.Batches(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.BatchRow, 0, len(entries))
	for _, e := range entries {
		out = append(out, domain.BatchRow{
			Checksum: e.Checksum,
			Key:      e.Key,
			Sequence: e.Sequence,
			Rows:     e.Rows,
			LoadedAt: e.LoadedAt.UTC().Format(time.RFC3339),
		})
	}
	return out, nil
}
