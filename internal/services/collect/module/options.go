package module

import (
	"time"

	"tubesense/internal/platform/config"
	"tubesense/internal/services/collect/domain"
	"tubesense/internal/services/collect/guardrails"
)

// Options holds the collector's run defaults and pacing
type Options struct {
	Regions          []string
	Keywords         []string
	VideosPerKeyword int
	QuotaBudget      int
	DryRun           bool
	DryRunCap        int

	Workers     int
	PageTimeout time.Duration
	MaxTries    int
	RetryBase   time.Duration
	RetryMax    time.Duration
}

// FromConfig reads the collector options from config with CORE_COLLECT_ prefix
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("CORE_COLLECT_")
	return Options{
		Regions:          c.MayCSV("REGIONS", []string{"US"}),
		Keywords:         c.MayCSV("SEARCH_KEYWORDS", nil),
		VideosPerKeyword: c.MayInt("VIDEOS_PER_KEYWORD", 25),
		QuotaBudget:      c.MayInt("QUOTA_BUDGET", 10000),
		DryRun:           c.MayBool("DRY_RUN", false),
		DryRunCap:        c.MayInt("DRY_RUN_CAP", domain.DefaultDryRunCap),
		Workers:          c.MayInt("WORKERS", 1),
		PageTimeout:      c.MayDuration("PAGE_TIMEOUT", guardrails.DefaultPage),
		MaxTries:         c.MayInt("RETRIES", 3),
		RetryBase:        c.MayDuration("RETRY_BASE", 500*time.Millisecond),
		RetryMax:         c.MayDuration("RETRY_MAX", 5*time.Second),
	}
}

// Run returns the run description these options configure
func (o Options) Run() domain.RunConfig {
	return domain.RunConfig{
		Regions:          o.Regions,
		Keywords:         o.Keywords,
		VideosPerKeyword: o.VideosPerKeyword,
		QuotaBudget:      o.QuotaBudget,
		DryRun:           o.DryRun,
		DryRunCap:        o.DryRunCap,
	}.Normalized()
}
