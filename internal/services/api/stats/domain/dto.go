// Package domain holds DTOs for the warehouse read endpoints
package domain

// Days are UTC calendar dates, YYYY-MM-DD

// TimeRange defines an inclusive day window
type TimeRange struct {
	Start string `json:"start" validate:"required,datetime=2006-01-02" example:"2024-03-01"`
	End   string `json:"end" validate:"required,datetime=2006-01-02" example:"2024-03-31"`
}

// DailyInput selects rows of agg_daily_by_region
type DailyInput struct {
	Range TimeRange `json:"range"`
	// optional filters
	Region string `json:"region,omitempty" validate:"omitempty,len=2,alpha" example:"US"`
	Limit  int    `json:"limit,omitempty" validate:"omitempty,min=1,max=1000" example:"100"`
}

// DailyRow is one region/day aggregate
type DailyRow struct {
	Region            string  `json:"region" example:"US"`
	Day               string  `json:"day" example:"2024-03-01"`
	VideoCount        int64   `json:"video_count" example:"10"`
	PositiveCount     int64   `json:"positive_count" example:"6"`
	NegativeCount     int64   `json:"negative_count" example:"3"`
	MixedCount        int64   `json:"mixed_count" example:"1"`
	PositivePct       float64 `json:"positive_pct" example:"60"`
	NegativePct       float64 `json:"negative_pct" example:"30"`
	MixedPct          float64 `json:"mixed_pct" example:"10"`
	TotalViews        int64   `json:"total_views" example:"120000"`
	TotalLikes        int64   `json:"total_likes" example:"4000"`
	TotalComments     int64   `json:"total_comments" example:"300"`
	AvgEngagementRate float64 `json:"avg_engagement_rate" example:"0.0358"`
	RefreshedAt       string  `json:"refreshed_at" example:"2024-03-01T12:00:05Z"`
}

// BatchRow is one entry of the loaded batch ledger
type BatchRow struct {
	Checksum string `json:"checksum" example:"9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"`
	Key      string `json:"blob_key" example:"staged/dt=2024-03-01/regions=US/9f86d081.ndjson.gz"`
	Sequence int64  `json:"batch_sequence" example:"1709294400000000"`
	Rows     int    `json:"row_count" example:"250"`
	LoadedAt string `json:"loaded_at" example:"2024-03-01T12:00:05Z"`
}
