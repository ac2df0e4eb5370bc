//go:build integration_pg

package repo_test

import (
	"context"
	"io"
	"slices"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tubesense/internal/core/record"
	"tubesense/internal/core/rulepack"
	"tubesense/internal/core/sentiment"
	"tubesense/internal/modkit/repokit"
	"tubesense/internal/platform/store"
	"tubesense/internal/platform/testkit"
	"tubesense/internal/services/load/domain"
	"tubesense/internal/services/load/repo"
	"tubesense/internal/services/load/service"
	"tubesense/internal/services/stage/codec"
	stagedom "tubesense/internal/services/stage/domain"
)

func TestWarehouse_Integration(t *testing.T) {
	dsn := testkit.StartPostgres(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	s, err := store.Open(ctx, store.Config{PG: store.PGConfig{Enabled: true, URL: dsn, MaxConns: 4}},
		store.WithLogger(zerolog.New(io.Discard)))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	applied, err := repo.Migrate(ctx, s.PG)
	if err != nil || !slices.Equal(applied, []string{"0001_warehouse"}) {
		t.Fatalf("migrate = %v %v", applied, err)
	}
	again, err := repo.Migrate(ctx, s.PG)
	if err != nil || len(again) != 0 {
		t.Fatalf("second migrate = %v %v, want nothing applied", again, err)
	}

	pack := rulepack.MustLoad()
	db := repokit.WithBeginHooks(s.PG, repokit.SetLocal("lock_timeout", 2*time.Second))
	svc := service.New(db, repo.NewPG(), nil, pack.Categories(), service.Config{}, nil)

	run1 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	run2 := time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)
	mk := func(id string, cat int, title string, views int64, at time.Time) record.Item {
		v := record.Video{
			VideoID: id, ChannelID: "ch-1", Title: title, Tags: []string{"t"},
			CategoryID: cat, Region: "IN", PublishedAt: run1.Add(-48 * time.Hour),
			ViewCount: views, LikeCount: 10, CommentCount: 2, CollectedAt: at,
		}
		v.EngagementRate = record.EngagementRate(v.ViewCount, v.LikeCount, v.CommentCount)
		return record.Item{
			Video:          v,
			Channel:        record.Channel{ChannelID: "ch-1", Title: "One", Country: "IN", CollectedAt: at},
			Classification: sentiment.Classify(pack, v.Input()),
		}
	}
	stage := func(at time.Time, items ...record.Item) stagedom.Batch {
		b, err := codec.Stage(items, stagedom.Meta{RunID: "it", StartedAt: at})
		if err != nil {
			t.Fatalf("stage: %v", err)
		}
		return b
	}

	b1 := stage(run1, mk("v1", 27, "python tutorial", 1000, run1), mk("v2", 25, "breaking news", 500, run1), mk("v3", 99, "hello", 10, run1))
	res, err := svc.Load(ctx, b1)
	if err != nil || res.RowsInserted != 3 {
		t.Fatalf("load = %+v %v", res, err)
	}

	dup, err := svc.Load(ctx, b1)
	if err != nil || !dup.Duplicate() {
		t.Fatalf("reload = %+v %v, want duplicate", dup, err)
	}

	n, err := store.Scalar[int64](ctx, s.PG, `SELECT count(*) FROM fact_videos`)
	if err != nil || n != 3 {
		t.Fatalf("fact rows = %d %v", n, err)
	}

	// unseen categories are seeded as UNKNOWN
	class, err := store.Scalar[string](ctx, s.PG, `SELECT sentiment_class FROM dim_categories WHERE category_id = 99`)
	if err != nil || class != "UNKNOWN" {
		t.Fatalf("class = %q %v", class, err)
	}

	aggs, err := svc.Aggregates(ctx, domain.AggregateQuery{Region: "IN", From: "2024-03-01", To: "2024-03-31"})
	if err != nil || len(aggs) != 1 {
		t.Fatalf("aggregates = %+v %v", aggs, err)
	}
	a := aggs[0]
	if a.VideoCount != 3 || a.PositiveCount != 1 || a.NegativeCount != 1 || a.MixedCount != 1 || a.TotalViews != 1510 {
		t.Fatalf("aggregate = %+v", a)
	}

	// v1 moves to the next day; the first partition shrinks
	res, err = svc.Load(ctx, stage(run2, mk("v1", 27, "python tutorial", 2000, run2)))
	if err != nil || res.RowsUpdated != 1 {
		t.Fatalf("second load = %+v %v", res, err)
	}
	want := []domain.Partition{{Region: "IN", Day: "2024-03-01"}, {Region: "IN", Day: "2024-03-02"}}
	if !slices.Equal(res.Partitions, want) {
		t.Fatalf("partitions = %v", res.Partitions)
	}

	aggs, err = svc.Aggregates(ctx, domain.AggregateQuery{From: "2024-03-01", To: "2024-03-31"})
	if err != nil || len(aggs) != 2 {
		t.Fatalf("aggregates = %+v %v", aggs, err)
	}
	if aggs[0].VideoCount != 2 || aggs[0].PositiveCount != 0 {
		t.Fatalf("day one = %+v", aggs[0])
	}
	if aggs[1].VideoCount != 1 || aggs[1].TotalViews != 2000 {
		t.Fatalf("day two = %+v", aggs[1])
	}

	sum, err := svc.Summary(ctx, "2024-03-01")
	if err != nil || sum.Channels != 1 || sum.Videos != 3 || sum.Batches != 2 {
		t.Fatalf("summary = %+v %v", sum, err)
	}

	batches, err := svc.Batches(ctx, 10)
	if err != nil || len(batches) != 2 {
		t.Fatalf("batches = %+v %v", batches, err)
	}
	if batches[0].Sequence <= batches[1].Sequence {
		t.Fatalf("batches not newest first: %d, %d", batches[0].Sequence, batches[1].Sequence)
	}
}
