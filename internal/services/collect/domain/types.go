// Package domain holds the collector's run configuration, ports and quota accounting
package domain

import (
	"slices"
	"strings"
	"time"

	perr "tubesense/internal/platform/errors"
)

// Unit costs of the search API, in quota units per request
const (
	CostSearch   = 100
	CostVideos   = 1
	CostChannels = 1
)

// DefaultDryRunCap bounds the records a dry run may emit
const DefaultDryRunCap = 4

// MaxIDsPerLookup is the id batch limit of videos.list and channels.list
const MaxIDsPerLookup = 50

// Method names a request type for quota and retry accounting
type Method string

const (
	MethodSearch   Method = "search"
	MethodVideos   Method = "videos"
	MethodChannels Method = "channels"
)

// Cost returns the documented unit cost of m
func (m Method) Cost() int {
	switch m {
	case MethodSearch:
		return CostSearch
	case MethodVideos:
		return CostVideos
	case MethodChannels:
		return CostChannels
	}
	return 0
}

// RunConfig is the immutable description of one collection run
type RunConfig struct {
	Regions          []string
	Keywords         []string
	VideosPerKeyword int
	QuotaBudget      int
	DryRun           bool
	DryRunCap        int // 0 means DefaultDryRunCap
}

// Normalized returns a copy with regions upper-cased, deduplicated and sorted,
// and keywords trimmed and deduplicated in their given order
func (c RunConfig) Normalized() RunConfig {
	out := c
	seen := map[string]bool{}
	out.Regions = nil
	for _, r := range c.Regions {
		r = strings.ToUpper(strings.TrimSpace(r))
		if r != "" && !seen[r] {
			seen[r] = true
			out.Regions = append(out.Regions, r)
		}
	}
	slices.Sort(out.Regions)

	clear(seen)
	out.Keywords = nil
	for _, k := range c.Keywords {
		k = strings.TrimSpace(k)
		if k != "" && !seen[k] {
			seen[k] = true
			out.Keywords = append(out.Keywords, k)
		}
	}
	if out.DryRunCap <= 0 {
		out.DryRunCap = DefaultDryRunCap
	}
	return out
}

// Validate checks a normalized config
func (c RunConfig) Validate() error {
	switch {
	case len(c.Regions) == 0:
		return perr.WithField(perr.InvalidArgf("at least one region is required"), "regions")
	case len(c.Keywords) == 0:
		return perr.WithField(perr.InvalidArgf("at least one search keyword is required"), "search_keywords")
	case c.VideosPerKeyword <= 0:
		return perr.WithField(perr.InvalidArgf("videos_per_keyword must be positive, got %d", c.VideosPerKeyword), "videos_per_keyword")
	case c.QuotaBudget < 0:
		return perr.WithField(perr.InvalidArgf("quota_budget must not be negative, got %d", c.QuotaBudget), "quota_budget")
	}
	for _, r := range c.Regions {
		if len(r) != 2 || r[0] < 'A' || r[0] > 'Z' || r[1] < 'A' || r[1] > 'Z' {
			return perr.WithField(perr.InvalidArgf("region %q is not a two letter code", r), "regions")
		}
	}
	return nil
}

// Pair is one (region, keyword) unit of work
type Pair struct {
	Index   int
	Region  string
	Keyword string
}

// Pairs returns the regions x keywords product, regions outer
func (c RunConfig) Pairs() []Pair {
	out := make([]Pair, 0, len(c.Regions)*len(c.Keywords))
	for _, r := range c.Regions {
		for _, k := range c.Keywords {
			out = append(out, Pair{Index: len(out), Region: r, Keyword: k})
		}
	}
	return out
}

// SearchQuery asks for one page of video ids
type SearchQuery struct {
	Region     string
	Keyword    string
	PageToken  string
	MaxResults int
}

// SearchPage is one page of search results in rank order
type SearchPage struct {
	VideoIDs      []string
	NextPageToken string
}

// RegionQuota is the per region share of the run's quota use
type RegionQuota struct {
	Region        string `json:"region"`
	UnitsConsumed int    `json:"units_consumed"`
	QueriesIssued int    `json:"queries_issued"`
}

// Summary is the terminal state of a run
type Summary struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	DryRun     bool          `json:"dry_run"`
	Truncated  bool          `json:"truncated"`
	Cancelled  bool          `json:"cancelled"`
	Budget     int           `json:"quota_budget"`
	Units      int           `json:"units_consumed"`
	Regions    []RegionQuota `json:"regions"`

	PairsDone         int `json:"pairs_done"`
	Emitted           int `json:"emitted"`
	Malformed         int `json:"malformed"`
	DuplicatesSkipped int `json:"duplicates_skipped"`
	PagesAbandoned    int `json:"pages_abandoned"`
	Retries           int `json:"retries"`
	ChannelsFetched   int `json:"channels_fetched"`
}
