// Package pipeline runs collect, stage, publish and load as one process run
package pipeline

import (
	"context"
	"errors"
	"time"

	"tubesense/internal/core/record"
	perr "tubesense/internal/platform/errors"
	"tubesense/internal/platform/logger"
	"tubesense/internal/platform/metrics"
	collectdom "tubesense/internal/services/collect/domain"
	loaddom "tubesense/internal/services/load/domain"
	stagedom "tubesense/internal/services/stage/domain"
)

// Step names the pipeline stage an error came from
type Step string

// Pipeline steps
const (
	StepCollect Step = "collect"
	StepStage   Step = "stage"
	StepLoad    Step = "load"
)

// StepError tags err with the step that failed
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string { return string(e.Step) + ": " + e.Err.Error() }

// Unwrap returns the step's error
func (e *StepError) Unwrap() error { return e.Err }

// Report is what one run produced
type Report struct {
	Summary     collectdom.Summary  `json:"summary"`
	Batches     []stagedom.BatchRef `json:"batches"`
	ManifestKey string              `json:"manifest_key,omitempty"`
	Loaded      []loaddom.Result    `json:"loaded,omitempty"`
	Warehouse   *loaddom.Summary    `json:"warehouse,omitempty"`
}

// Runner wires the stage ports. A nil Loader stops after publish
type Runner struct {
	Collector collectdom.CollectorPort
	Stager    stagedom.StagerPort
	Loader    loaddom.LoaderPort

	// Rules identifies the rule pack in manifests
	Rules   string
	Metrics *metrics.Pipeline
	Now     func() time.Time
}

// Run executes one pass. Items collected before a source quota rejection are
// still staged with a manifest that carries the error; load is skipped then
func (r *Runner) Run(ctx context.Context, run collectdom.RunConfig) (Report, error) {
	now := r.Now
	if now == nil {
		now = time.Now
	}
	defer func() { r.Metrics.Finished(now()) }()

	stream := r.Collector.Collect(ctx, run)
	var items []record.Item
	for it := range stream.All() {
		items = append(items, it)
	}
	rep := Report{Summary: stream.Summary()}

	collectErr := stream.Err()
	if collectErr != nil && !perr.HasCode(collectErr, perr.ErrorCodeQuotaRejected) {
		return rep, &StepError{Step: StepCollect, Err: collectErr}
	}

	ctx = logger.WithRun(ctx, rep.Summary.RunID, string(StepStage))
	log := logger.C(ctx)
	log.Info().
		Int("items", len(items)).
		Bool("truncated", rep.Summary.Truncated).
		Int("units", rep.Summary.Units).
		Int("budget", rep.Summary.Budget).
		Msg("pipeline: collection finished")

	run = run.Normalized()
	batches, err := r.Stager.Run(ctx, items, stagedom.Meta{
		RunID:     rep.Summary.RunID,
		StartedAt: rep.Summary.StartedAt,
		Regions:   run.Regions,
	})
	if err != nil {
		return rep, &StepError{Step: StepStage, Err: err}
	}
	for _, b := range batches {
		rep.Batches = append(rep.Batches, b.Ref())
	}

	m := stagedom.NewManifest(run, rep.Summary, batches, r.Rules)
	if collectErr != nil {
		m.Error = collectErr.Error()
	}
	key, err := r.Stager.PublishManifest(ctx, m)
	if err != nil {
		return rep, &StepError{Step: StepStage, Err: err}
	}
	rep.ManifestKey = key

	if collectErr != nil {
		log.Error().Err(collectErr).Str("manifest", key).Msg("pipeline: source rejected quota, load skipped")
		return rep, &StepError{Step: StepCollect, Err: collectErr}
	}
	if r.Loader == nil {
		return rep, nil
	}

	ctx = logger.WithRun(ctx, rep.Summary.RunID, string(StepLoad))
	for _, b := range batches {
		res, err := r.Loader.Load(ctx, b)
		if err != nil {
			return rep, &StepError{Step: StepLoad, Err: err}
		}
		rep.Loaded = append(rep.Loaded, res)
	}

	sum, err := r.Loader.Summary(ctx, stagedom.Meta{StartedAt: rep.Summary.StartedAt}.Day())
	if err != nil {
		logger.C(ctx).Warn().Err(err).Msg("pipeline: warehouse summary failed")
		return rep, nil
	}
	rep.Warehouse = &sum
	return rep, nil
}

// Exit codes surfaced to the invoking process
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitTruncated  = 3
	ExitQuota      = 4
	ExitLoad       = 5
	ExitStageWrite = 6
)

// ExitCode maps a run outcome to the process exit code
func ExitCode(rep Report, err error) int {
	if err == nil {
		if rep.Summary.Truncated {
			return ExitTruncated
		}
		return ExitOK
	}
	switch {
	case perr.HasCode(err, perr.ErrorCodeQuotaRejected):
		return ExitQuota
	case perr.HasCode(err, perr.ErrorCodeStageWrite):
		return ExitStageWrite
	}
	var se *StepError
	if errors.As(err, &se) && se.Step == StepLoad {
		return ExitLoad
	}
	return ExitFailure
}
