// Package refresh sequences extraction, model build, and the atomic swap of
// the modeled store, then invalidates the query cache.
//
// State machine: Idle -> Extracting -> Building -> Swapping -> Idle, with
// Failed reachable from the three active states. A refresh either fully
// succeeds and swaps, or fully fails and changes nothing observable.
package refresh

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gridwatch/outages/internal/builder"
	"github.com/gridwatch/outages/internal/connector"
	apperrors "github.com/gridwatch/outages/internal/errors"
	"github.com/gridwatch/outages/internal/events"
	"github.com/gridwatch/outages/internal/logging"
	"github.com/gridwatch/outages/internal/model"
	"github.com/gridwatch/outages/internal/store"
)

// State is the orchestrator's position in the refresh cycle.
type State int

const (
	StateIdle State = iota
	StateExtracting
	StateBuilding
	StateSwapping
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExtracting:
		return "extracting"
	case StateBuilding:
		return "building"
	case StateSwapping:
		return "swapping"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Extractor runs one extraction into the raw store.
type Extractor interface {
	Extract(ctx context.Context) (connector.Result, error)
}

// Invalidator drops a cached view of the modeled store.
type Invalidator interface {
	Invalidate()
}

// Options control one refresh run.
type Options struct {
	// Preview returns a bounded sample of the rebuilt tables without
	// swapping; the live store and cache stay untouched.
	Preview bool

	// Head is the rows per table included when previewing (default 5).
	Head int
}

// Report summarizes one refresh run.
type Report struct {
	Extraction connector.Result
	Build      builder.Stats
	Swapped    bool
	Preview    *model.Tables
	Duration   time.Duration
}

// Orchestrator is the only writer of the modeled store and the cache.
type Orchestrator struct {
	extractor Extractor
	raw       *store.RawStore
	modeled   *store.ModeledStore
	cache     Invalidator
	publisher *events.Publisher

	mu       sync.Mutex
	inFlight bool
	state    State
}

// New creates an orchestrator. cache and publisher may be nil.
func New(extractor Extractor, raw *store.RawStore, modeled *store.ModeledStore, cache Invalidator, publisher *events.Publisher) *Orchestrator {
	return &Orchestrator{
		extractor: extractor,
		raw:       raw,
		modeled:   modeled,
		cache:     cache,
		publisher: publisher,
		state:     StateIdle,
	}
}

// State returns the current refresh state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// Run executes one refresh. A second call while one is in flight fails with
// ErrRefreshInFlight; refreshes never race on the staging directory or
// interleave swaps.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (Report, error) {
	o.mu.Lock()
	if o.inFlight {
		o.mu.Unlock()
		return Report{}, apperrors.ErrRefreshInFlight
	}
	o.inFlight = true
	o.state = StateExtracting
	o.mu.Unlock()

	log := logging.Component("refresh")
	started := time.Now()

	report, err := o.run(ctx, opts, started, log)
	report.Duration = time.Since(started)

	o.mu.Lock()
	o.inFlight = false
	if err != nil {
		o.state = StateFailed
	} else {
		o.state = StateIdle
	}
	o.mu.Unlock()

	if err != nil {
		log.Error("refresh failed", "error", err, "duration", report.Duration)
		return report, err
	}
	log.Info("refresh finished", "swapped", report.Swapped, "duration", report.Duration)
	return report, nil
}

func (o *Orchestrator) run(ctx context.Context, opts Options, started time.Time, log *slog.Logger) (Report, error) {
	var report Report

	extraction, err := o.extractor.Extract(ctx)
	report.Extraction = extraction
	if err != nil {
		return report, err
	}
	log.Info("extraction complete",
		"pages", extraction.Pages, "new_rows", extraction.New, "total_rows", extraction.Total)

	o.setState(StateBuilding)

	raw, err := o.raw.Load()
	if err != nil {
		return report, apperrors.Wrap(apperrors.ErrBuild, "load raw store: %v", err)
	}

	tables, stats, err := builder.Build(raw)
	report.Build = stats
	if err != nil {
		return report, apperrors.Wrap(apperrors.ErrBuild, "%v", err)
	}

	staging := o.modeled.NewStaging()
	if err := store.WriteTables(staging, tables); err != nil {
		os.RemoveAll(staging)
		return report, apperrors.Wrap(apperrors.ErrBuild, "write staging: %v", err)
	}

	if opts.Preview {
		head := opts.Head
		if head <= 0 {
			head = 5
		}
		sample, err := store.Head(staging, head)
		os.RemoveAll(staging)
		if err != nil {
			return report, apperrors.Wrap(apperrors.ErrBuild, "read preview: %v", err)
		}
		report.Preview = &sample
		log.Info("preview built, live store untouched", "head", head)
		return report, nil
	}

	o.setState(StateSwapping)

	if err := o.modeled.Swap(staging); err != nil {
		os.RemoveAll(staging)
		return report, err
	}
	report.Swapped = true

	if o.cache != nil {
		o.cache.Invalidate()
	}

	o.publisher.PublishRefresh(ctx, events.RefreshCompleted{
		CompletedAt:  time.Now().UTC(),
		RawRows:      extraction.Total,
		NewRows:      extraction.New,
		Plants:       stats.Plants,
		Dates:        stats.Dates,
		Events:       stats.Events,
		DurationMs:   time.Since(started).Milliseconds(),
		EarlyStopped: extraction.EarlyStopped,
		SkippedRows:  extraction.Skipped + stats.SkippedRows,
	})

	return report, nil
}
