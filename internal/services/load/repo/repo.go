// Package repo provides postgres access for the warehouse loader
package repo

import (
	"context"
	"time"

	"tubesense/internal/core/record"
	"tubesense/internal/core/rulepack"
	"tubesense/internal/modkit/repokit"
	"tubesense/internal/platform/store"
	ptime "tubesense/internal/platform/time"
	"tubesense/internal/services/load/domain"
)

type (
	// PG is a Postgres binder for domain.WarehouseRepo
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a Postgres binder for domain.WarehouseRepo
func NewPG() repokit.Binder[domain.WarehouseRepo] { return PG{} }

// Bind implements repokit.Binder
func (PG) Bind(q repokit.Queryer) domain.WarehouseRepo { return &queries{q: q} }

func (r *queries) LockBatch(ctx context.Context, checksum string) error {
	_, err := r.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, checksum)
	return err
}

func (r *queries) Loaded(ctx context.Context, checksum string) (bool, error) {
	var ok bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM loaded_batches WHERE checksum = $1)`, checksum).Scan(&ok)
	return ok, err
}

func (r *queries) LoadedSet(ctx context.Context, checksums []string) (map[string]bool, error) {
	out := make(map[string]bool, len(checksums))
	if len(checksums) == 0 {
		return out, nil
	}
	rows, err := r.q.Query(ctx, `SELECT checksum FROM loaded_batches WHERE checksum = ANY($1)`, checksums)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var sum string
		if err := rows.Scan(&sum); err != nil {
			return nil, err
		}
		out[sum] = true
	}
	return out, rows.Err()
}

// SeedCategories keeps dim_categories in step with the rule pack. Ids the pack
// does not know are inserted as UNKNOWN and never overwrite a known class
func (r *queries) SeedCategories(ctx context.Context, cats []rulepack.Category) error {
	for _, c := range cats {
		if _, err := r.q.Exec(ctx, `
			INSERT INTO dim_categories (category_id, sentiment_class, label)
			VALUES ($1, $2, $3)
			ON CONFLICT (category_id) DO UPDATE
			SET sentiment_class = EXCLUDED.sentiment_class,
			    label           = EXCLUDED.label,
			    updated_at      = now()
			WHERE EXCLUDED.sentiment_class <> 'UNKNOWN'
			  AND (dim_categories.sentiment_class, dim_categories.label) IS DISTINCT FROM (EXCLUDED.sentiment_class, EXCLUDED.label)
		`, c.ID, string(c.Class), c.Label); err != nil {
			return err
		}
	}
	return nil
}

// UpsertChannels writes channels. A stub (no title) or an older observation
// never replaces what is stored
func (r *queries) UpsertChannels(ctx context.Context, chs []record.Channel) error {
	for _, c := range chs {
		country := c.Country
		if country == "" {
			country = record.UnknownCountry
		}
		if _, err := r.q.Exec(ctx, `
			INSERT INTO dim_channels (
				channel_id, channel_title, country, subscriber_count, video_count,
				first_seen_at, collected_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $6)
			ON CONFLICT (channel_id) DO UPDATE SET
				channel_title    = COALESCE(NULLIF(EXCLUDED.channel_title, ''), dim_channels.channel_title),
				country          = CASE WHEN EXCLUDED.country = 'UNKNOWN' THEN dim_channels.country ELSE EXCLUDED.country END,
				subscriber_count = COALESCE(EXCLUDED.subscriber_count, dim_channels.subscriber_count),
				video_count      = CASE WHEN EXCLUDED.channel_title = '' THEN dim_channels.video_count ELSE EXCLUDED.video_count END,
				first_seen_at    = LEAST(dim_channels.first_seen_at, EXCLUDED.first_seen_at),
				collected_at     = EXCLUDED.collected_at,
				updated_at       = now()
			WHERE EXCLUDED.collected_at > dim_channels.collected_at
		`, c.ChannelID, c.Title, country, c.SubscriberCount, c.VideoCount, c.CollectedAt.UTC()); err != nil {
			return err
		}
	}
	return nil
}

func (r *queries) LockFacts(ctx context.Context, ids []string) (map[string]domain.Fact, error) {
	out := make(map[string]domain.Fact, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.q.Query(ctx, `
		SELECT video_id, region, COALESCE(category_id, 0), published_at, collected_at
		FROM fact_videos
		WHERE video_id = ANY($1)
		ORDER BY video_id
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var f domain.Fact
		if err := rows.Scan(&f.VideoID, &f.Region, &f.CategoryID, &f.PublishedAt, &f.CollectedAt); err != nil {
			return nil, err
		}
		out[f.VideoID] = f
	}
	return out, rows.Err()
}

func (r *queries) InsertFact(ctx context.Context, it record.Item) error {
	v, c := it.Video, it.Classification
	_, err := r.q.Exec(ctx, `
		INSERT INTO fact_videos (
			video_id, channel_id, category_id, region,
			title, description, tags, search_keyword,
			published_at, collected_at, collected_on,
			view_count, like_count, comment_count, engagement_rate,
			final_sentiment, classification_method, positive_hits, negative_hits
		)
		VALUES ($1, $2, NULLIF($3, 0), $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`,
		v.VideoID, v.ChannelID, v.CategoryID, v.Region,
		v.Title, v.Description, tags(v.Tags), v.SearchKeyword,
		v.PublishedAt.UTC(), v.CollectedAt.UTC(), ptime.Day(v.CollectedAt),
		v.ViewCount, v.LikeCount, v.CommentCount, v.EngagementRate,
		string(c.Sentiment), string(c.Method), c.PositiveHits, c.NegativeHits,
	)
	return err
}

// RefreshFact never touches region, published_at or category_id
func (r *queries) RefreshFact(ctx context.Context, it record.Item, withText bool) error {
	v, c := it.Video, it.Classification
	if _, err := r.q.Exec(ctx, `
		UPDATE fact_videos SET
			view_count      = $2,
			like_count      = $3,
			comment_count   = $4,
			engagement_rate = $5,
			collected_at    = $6,
			collected_on    = $7,
			updated_at      = now()
		WHERE video_id = $1
	`, v.VideoID, v.ViewCount, v.LikeCount, v.CommentCount, v.EngagementRate, v.CollectedAt.UTC(), ptime.Day(v.CollectedAt)); err != nil {
		return err
	}
	if !withText {
		return nil
	}
	_, err := r.q.Exec(ctx, `
		UPDATE fact_videos SET
			channel_id            = $2,
			title                 = $3,
			description           = $4,
			tags                  = $5,
			search_keyword        = $6,
			final_sentiment       = $7,
			classification_method = $8,
			positive_hits         = $9,
			negative_hits         = $10
		WHERE video_id = $1
	`, v.VideoID, v.ChannelID, v.Title, v.Description, tags(v.Tags), v.SearchKeyword,
		string(c.Sentiment), string(c.Method), c.PositiveHits, c.NegativeHits)
	return err
}

const aggColumns = `
	region, to_char(day, 'YYYY-MM-DD'), video_count,
	positive_count, negative_count, mixed_count,
	positive_pct, negative_pct, mixed_pct,
	total_views, total_likes, total_comments, avg_engagement_rate, refreshed_at`

// Recompute deletes the partition row and rebuilds it from fact_videos
func (r *queries) Recompute(ctx context.Context, p domain.Partition) (domain.Aggregate, bool, error) {
	day, err := ptime.ParseDay(p.Day)
	if err != nil {
		return domain.Aggregate{}, false, err
	}
	if _, err := r.q.Exec(ctx, `DELETE FROM agg_daily_by_region WHERE region = $1 AND day = $2`, p.Region, day); err != nil {
		return domain.Aggregate{}, false, err
	}
	rows, err := r.q.Query(ctx, `
		INSERT INTO agg_daily_by_region (
			region, day, video_count, positive_count, negative_count, mixed_count,
			positive_pct, negative_pct, mixed_pct,
			total_views, total_likes, total_comments, avg_engagement_rate, refreshed_at
		)
		SELECT
			$1, $2, count(*),
			count(*) FILTER (WHERE final_sentiment = 'POSITIVE'),
			count(*) FILTER (WHERE final_sentiment = 'NEGATIVE'),
			count(*) FILTER (WHERE final_sentiment = 'MIXED'),
			round(100.0 * count(*) FILTER (WHERE final_sentiment = 'POSITIVE') / count(*), 2)::float8,
			round(100.0 * count(*) FILTER (WHERE final_sentiment = 'NEGATIVE') / count(*), 2)::float8,
			round(100.0 * count(*) FILTER (WHERE final_sentiment = 'MIXED') / count(*), 2)::float8,
			COALESCE(sum(view_count), 0)::bigint,
			COALESCE(sum(like_count), 0)::bigint,
			COALESCE(sum(comment_count), 0)::bigint,
			round(avg(engagement_rate)::numeric, 4)::float8,
			now()
		FROM fact_videos
		WHERE region = $1 AND collected_on = $2
		HAVING count(*) > 0
		RETURNING`+aggColumns, p.Region, day)
	if err != nil {
		return domain.Aggregate{}, false, err
	}
	defer rows.Close()
	if !rows.Next() {
		return domain.Aggregate{}, false, rows.Err()
	}
	a, err := scanAggregate(rows)
	if err != nil {
		return domain.Aggregate{}, false, err
	}
	return a, true, rows.Err()
}

func (r *queries) RecordBatch(ctx context.Context, e domain.LedgerEntry) error {
	return store.ExecOne(ctx, r.q, `
		INSERT INTO loaded_batches (checksum, blob_key, batch_sequence, row_count, loaded_at)
		VALUES ($1, $2, $3, $4, $5)
	`, e.Checksum, e.Key, e.Sequence, e.Rows, e.LoadedAt.UTC())
}

func (r *queries) Batches(ctx context.Context, limit int) ([]domain.LedgerEntry, error) {
	return store.Many(ctx, r.q, scanLedger, `
		SELECT checksum, blob_key, batch_sequence, row_count, loaded_at
		FROM loaded_batches
		ORDER BY batch_sequence DESC, checksum
		LIMIT $1
	`, limit)
}

func (r *queries) Aggregates(ctx context.Context, q domain.AggregateQuery) ([]domain.Aggregate, error) {
	from, err := ptime.ParseDay(q.From)
	if err != nil {
		return nil, err
	}
	to, err := ptime.ParseDay(q.To)
	if err != nil {
		return nil, err
	}
	return store.Many(ctx, r.q, scanAggregate, `
		SELECT`+aggColumns+`
		FROM agg_daily_by_region
		WHERE ($1::text = '' OR region = $1::text)
		  AND day BETWEEN $2 AND $3
		ORDER BY day, region
		LIMIT NULLIF($4::int, 0)
	`, q.Region, from, to, q.Limit)
}

func (r *queries) Summary(ctx context.Context, day string) (domain.Summary, error) {
	d, err := ptime.ParseDay(day)
	if err != nil {
		return domain.Summary{}, err
	}
	s := domain.Summary{Day: day}
	if err := r.q.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM dim_channels),
			(SELECT count(*) FROM fact_videos),
			(SELECT count(*) FROM agg_daily_by_region),
			(SELECT count(*) FROM loaded_batches)
	`).Scan(&s.Channels, &s.Videos, &s.Aggregates, &s.Batches); err != nil {
		return domain.Summary{}, err
	}
	s.Split, err = store.Many(ctx, r.q, func(row repokit.Row) (domain.RegionSplit, error) {
		var sp domain.RegionSplit
		err := row.Scan(&sp.Region, &sp.Positive, &sp.Negative, &sp.Mixed)
		return sp, err
	}, `
		SELECT region, positive_count, negative_count, mixed_count
		FROM agg_daily_by_region
		WHERE day = $1
		ORDER BY region
	`, d)
	if err != nil {
		return domain.Summary{}, err
	}
	return s, nil
}

func scanLedger(row repokit.Row) (domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	err := row.Scan(&e.Checksum, &e.Key, &e.Sequence, &e.Rows, &e.LoadedAt)
	e.LoadedAt = e.LoadedAt.UTC()
	return e, err
}

func scanAggregate(row repokit.Row) (domain.Aggregate, error) {
	var a domain.Aggregate
	var refreshed time.Time
	err := row.Scan(
		&a.Region, &a.Day, &a.VideoCount,
		&a.PositiveCount, &a.NegativeCount, &a.MixedCount,
		&a.PositivePct, &a.NegativePct, &a.MixedPct,
		&a.TotalViews, &a.TotalLikes, &a.TotalComments, &a.AvgEngagementRate, &refreshed,
	)
	a.RefreshedAt = refreshed.UTC()
	return a, err
}

// tags keeps the NOT NULL text[] column satisfied for videos without tags
func tags(t []string) []string {
	if t == nil {
		return []string{}
	}
	return t
}
