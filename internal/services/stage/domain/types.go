// Package domain holds the staged batch model, blob key scheme and run manifest
package domain

import (
	"context"
	"slices"
	"strings"
	"time"

	"tubesense/internal/core/record"
	perr "tubesense/internal/platform/errors"
	ptime "tubesense/internal/platform/time"
	collectdom "tubesense/internal/services/collect/domain"
)

// Format tags the header line of every staged payload
const Format = "tubesense.batch/v1"

// Key prefixes inside the blob sink
const (
	StagedPrefix   = "staged/"
	ManifestPrefix = "manifests/"
	BatchSuffix    = ".ndjson.gz"
	ContentType    = "application/x-ndjson+gzip"
)

// Sink is the subset of the blob sink the stager and loader use
type Sink interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// Meta describes the run a batch comes from
type Meta struct {
	RunID     string
	StartedAt time.Time
	Regions   []string // used for the key when a batch has no items
	Chunk     int
}

// Sequence is the batch_sequence of chunk: run start millis * 1000 + chunk
func (m Meta) Sequence() int64 { return m.StartedAt.UnixMilli()*1000 + int64(m.Chunk) }

// Day is the UTC run date used in keys
func (m Meta) Day() string { return ptime.DayString(m.StartedAt) }

// Header is the first NDJSON line of a payload
type Header struct {
	Format   string   `json:"format"`
	RunID    string   `json:"run_id"`
	Sequence int64    `json:"batch_sequence"`
	Day      string   `json:"day"`
	Regions  []string `json:"regions"`
	Count    int      `json:"count"`
}

// Batch is an immutable, content addressed bundle of items
type Batch struct {
	Header
	Checksum string        // hex sha256 of Payload
	Key      string        // blob key
	Items    []record.Item // sorted by video id
	Payload  []byte        // uncompressed NDJSON
	Body     []byte        // gzip of Payload, the bytes that go to the sink
}

// Bytes is the compressed size
func (b Batch) Bytes() int { return len(b.Body) }

// BatchKey builds staged/dt=YYYY-MM-DD/regions=AU-CA-US/<checksum>.ndjson.gz
func BatchKey(day string, regions []string, checksum string) string {
	return StagedPrefix + "dt=" + day + "/regions=" + strings.Join(regions, "-") + "/" + checksum + BatchSuffix
}

// KeyInfo is what a batch key encodes
type KeyInfo struct {
	Day      string
	Regions  []string
	Checksum string
}

// ParseBatchKey reverses BatchKey
func ParseBatchKey(key string) (KeyInfo, error) {
	bad := perr.WithField(perr.Malformedf("not a staged batch key: %q", key), "key")
	rest, ok := strings.CutPrefix(key, StagedPrefix)
	if !ok {
		return KeyInfo{}, bad
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 {
		return KeyInfo{}, bad
	}
	day, ok1 := strings.CutPrefix(parts[0], "dt=")
	regions, ok2 := strings.CutPrefix(parts[1], "regions=")
	sum, ok3 := strings.CutSuffix(parts[2], BatchSuffix)
	if !ok1 || !ok2 || !ok3 || len(sum) != 64 {
		return KeyInfo{}, bad
	}
	if _, err := ptime.ParseDay(day); err != nil {
		return KeyInfo{}, bad
	}
	info := KeyInfo{Day: day, Checksum: sum}
	if regions != "" {
		info.Regions = strings.Split(regions, "-")
	}
	return info, nil
}

// DayPrefix lists the staged keys of one day
func DayPrefix(day string) string { return StagedPrefix + "dt=" + day + "/" }

// ManifestKey builds manifests/dt=YYYY-MM-DD/run-<id>.json
func ManifestKey(day, runID string) string {
	return ManifestPrefix + "dt=" + day + "/run-" + runID + ".json"
}

// RegionSet returns the sorted distinct regions of items, or fallback when items is empty
func RegionSet(items []record.Item, fallback []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, it := range items {
		if r := it.Video.Region; r != "" && !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		out = slices.Clone(fallback)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// BatchRef is a manifest entry
type BatchRef struct {
	Key      string `json:"key"`
	Checksum string `json:"checksum"`
	Sequence int64  `json:"batch_sequence"`
	Count    int    `json:"count"`
	Bytes    int    `json:"bytes"`
}

// Ref summarizes b for the manifest
func (b Batch) Ref() BatchRef {
	return BatchRef{Key: b.Key, Checksum: b.Checksum, Sequence: b.Sequence, Count: b.Count, Bytes: b.Bytes()}
}

// ManifestConfig is the run configuration recorded in a manifest
type ManifestConfig struct {
	Regions          []string `json:"regions"`
	Keywords         []string `json:"search_keywords"`
	VideosPerKeyword int      `json:"videos_per_keyword"`
	QuotaBudget      int      `json:"quota_budget"`
	DryRun           bool     `json:"dry_run"`
}

// Manifest records one run: its config, collector summary and the batches it staged
type Manifest struct {
	RunID   string             `json:"run_id"`
	Config  ManifestConfig     `json:"config"`
	Summary collectdom.Summary `json:"summary"`
	Batches []BatchRef         `json:"batches"`
	Rules   string             `json:"rules,omitempty"`
	// Error is the fatal error that ended the run early, if any
	Error string `json:"error,omitempty"`
}

// NewManifest builds the manifest of a run
func NewManifest(run collectdom.RunConfig, sum collectdom.Summary, batches []Batch, rules string) Manifest {
	m := Manifest{
		RunID: sum.RunID,
		Config: ManifestConfig{
			Regions:          run.Regions,
			Keywords:         run.Keywords,
			VideosPerKeyword: run.VideosPerKeyword,
			QuotaBudget:      run.QuotaBudget,
			DryRun:           run.DryRun,
		},
		Summary: sum,
		Rules:   rules,
		Batches: make([]BatchRef, 0, len(batches)),
	}
	for _, b := range batches {
		m.Batches = append(m.Batches, b.Ref())
	}
	return m
}

// Key is where the manifest is stored
func (m Manifest) Key() string { return ManifestKey(ptime.DayString(m.Summary.StartedAt), m.RunID) }

// StagerPort is what the pipeline and other modules call
type StagerPort interface {
	StageAll(items []record.Item, meta Meta) ([]Batch, error)
	Publish(ctx context.Context, b Batch) error
	PublishManifest(ctx context.Context, m Manifest) (string, error)
	Run(ctx context.Context, items []record.Item, meta Meta) ([]Batch, error)
}
