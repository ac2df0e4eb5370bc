package repo

import (
	"context"
	"fmt"
	"time"

	"tubesense/internal/platform/store"
	ptime "tubesense/internal/platform/time"
	"tubesense/internal/services/load/domain"
)

// MirrorTable is the clickhouse copy of agg_daily_by_region
const MirrorTable = "tubesense.agg_daily_by_region"

// CHMirror replaces recomputed aggregate partitions in clickhouse
type CHMirror struct {
	ch store.Clickhouse
}

// NewCHMirror returns a mirror over ch
func NewCHMirror(ch store.Clickhouse) *CHMirror { return &CHMirror{ch: ch} }

// Ensure creates the mirror database and table when missing
func (m *CHMirror) Ensure(ctx context.Context) error {
	if err := m.ch.Exec(ctx, `CREATE DATABASE IF NOT EXISTS tubesense`); err != nil {
		return err
	}
	return m.ch.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+MirrorTable+` (
			region              LowCardinality(String),
			day                 Date,
			video_count         UInt64,
			positive_count      UInt64,
			negative_count      UInt64,
			mixed_count         UInt64,
			positive_pct        Float64,
			negative_pct        Float64,
			mixed_pct           Float64,
			total_views         UInt64,
			total_likes         UInt64,
			total_comments      UInt64,
			avg_engagement_rate Float64,
			refreshed_at        DateTime
		)
		ENGINE = ReplacingMergeTree(refreshed_at)
		ORDER BY (region, day)`)
}

// Replace clears each partition slice synchronously, then inserts aggs and
// checks every touched partition holds exactly the rows postgres has. A
// partition that became empty in postgres is only deleted
func (m *CHMirror) Replace(ctx context.Context, parts []domain.Partition, aggs []domain.Aggregate) error {
	for _, p := range parts {
		day, err := ptime.ParseDay(p.Day)
		if err != nil {
			return err
		}
		if err := m.ch.Exec(ctx, `
			ALTER TABLE `+MirrorTable+`
			DELETE WHERE region = ? AND day = ?
			SETTINGS mutations_sync = 1`,
			p.Region, day,
		); err != nil {
			return err
		}
	}

	rows := make([][]any, 0, len(aggs))
	for _, a := range aggs {
		day, err := ptime.ParseDay(a.Day)
		if err != nil {
			return err
		}
		refreshed := a.RefreshedAt
		if refreshed.IsZero() {
			refreshed = time.Now().UTC()
		}
		rows = append(rows, []any{
			a.Region, day,
			uint64(a.VideoCount), uint64(a.PositiveCount), uint64(a.NegativeCount), uint64(a.MixedCount),
			a.PositivePct, a.NegativePct, a.MixedPct,
			uint64(a.TotalViews), uint64(a.TotalLikes), uint64(a.TotalComments),
			a.AvgEngagementRate, refreshed,
		})
	}
	if err := m.ch.Insert(ctx, MirrorTable, rows); err != nil {
		return err
	}

	want := make(map[domain.Partition]uint64, len(aggs))
	for _, a := range aggs {
		want[domain.Partition{Region: a.Region, Day: a.Day}]++
	}
	for _, p := range parts {
		n, err := m.Rows(ctx, p)
		if err != nil {
			return err
		}
		if n != want[p] {
			return fmt.Errorf("mirror: partition %s/%s has %d rows, want %d", p.Region, p.Day, n, want[p])
		}
	}
	return nil
}

// Rows counts the mirrored rows of one partition after replacing merges
func (m *CHMirror) Rows(ctx context.Context, p domain.Partition) (uint64, error) {
	day, err := ptime.ParseDay(p.Day)
	if err != nil {
		return 0, err
	}
	return m.ch.ScalarUInt64(ctx, `
		SELECT count() FROM `+MirrorTable+` FINAL
		WHERE region = ? AND day = ?`,
		p.Region, day,
	)
}
