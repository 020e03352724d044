// Package orchestrator drives sync runs: introspection, projection,
// generation, and atomic artifact replacement. It enforces the single-writer
// invariant (one run at a time, concurrent triggers coalesced into one
// pending re-run) and publishes the most recent successful catalog for the
// metadata server, the OpenAPI exporter, and the MCP surface.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ferrostack/ferro/internal/clientgen"
	"github.com/ferrostack/ferro/internal/descriptor"
	"github.com/ferrostack/ferro/internal/introspect"
	"github.com/ferrostack/ferro/internal/registry"
	"github.com/ferrostack/ferro/internal/typegen"
)

// State is the orchestrator's lifecycle state. Runs move
// Idle -> Running -> (Succeeded | Failed) -> Idle; the terminal outcome of
// the latest run is kept on its Run record.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Run records the outcome of one sync run.
type Run struct {
	ID          string            `json:"id"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  time.Time         `json:"finished_at"`
	State       State             `json:"state"`
	Fingerprint string            `json:"fingerprint,omitempty"`
	// Skipped marks a run whose catalog fingerprint matched the previous
	// successful run, so artifact regeneration was short-circuited.
	Skipped bool              `json:"skipped,omitempty"`
	Report  introspect.Report `json:"report"`
	Error   string            `json:"error,omitempty"`
}

// Config holds artifact output paths.
type Config struct {
	TypesPath     string
	ClientPath    string
	ClientOptions clientgen.Options
}

// Orchestrator owns the sync pipeline and the published catalog snapshot.
type Orchestrator struct {
	cfg    Config
	models registry.ModelRegistry
	routes registry.RouteRegistry
	cache  ArtifactCache
	logger *slog.Logger

	// runMu serializes runs: only one may be Running at a time.
	runMu sync.Mutex

	mu          sync.RWMutex
	state       State
	lastRun     *Run
	current     *descriptor.Catalog
	previous    *descriptor.Catalog
	fingerprint string

	// triggers has capacity one: any number of triggers arriving during a
	// run collapse into a single pending re-run.
	triggers chan struct{}
}

// New creates an orchestrator. A nil cache disables run persistence.
func New(cfg Config, models registry.ModelRegistry, routes registry.RouteRegistry, cache ArtifactCache, logger *slog.Logger) *Orchestrator {
	if cache == nil {
		cache = NoopCache{}
	}
	return &Orchestrator{
		cfg:      cfg,
		models:   models,
		routes:   routes,
		cache:    cache,
		logger:   logger,
		state:    StateIdle,
		triggers: make(chan struct{}, 1),
	}
}

// Restore loads the previous successful run's fingerprint from the cache so
// a watch-mode restart does not rewrite unchanged artifacts.
func (o *Orchestrator) Restore(ctx context.Context) {
	rec, ok, err := o.cache.LastRun(ctx)
	if err != nil {
		o.logger.Warn("restore from cache failed", "error", err)
		return
	}
	if ok && rec.Fingerprint != "" {
		o.mu.Lock()
		o.fingerprint = rec.Fingerprint
		o.mu.Unlock()
		o.logger.Info("restored previous run state", "fingerprint", rec.Fingerprint[:12])
	}
}

// Sync performs one full run. It blocks until the run reaches a terminal
// state and returns its record; the error is non-nil exactly when the run
// Failed. On failure prior artifacts and the published catalog are left
// untouched.
func (o *Orchestrator) Sync(ctx context.Context) (*Run, error) {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	run := &Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		State:     StateRunning,
	}
	o.setState(StateRunning, run)
	o.logger.Info("sync run started", "run_id", run.ID)

	catalog := descriptor.NewCatalog()

	if err := introspect.Models(ctx, o.models, catalog, &run.Report); err != nil {
		return o.fail(run, err)
	}
	if err := introspect.Endpoints(ctx, o.routes, catalog, &run.Report); err != nil {
		return o.fail(run, err)
	}

	run.Fingerprint = descriptor.Fingerprint(catalog)

	o.mu.RLock()
	unchanged := o.fingerprint != "" && o.fingerprint == run.Fingerprint
	o.mu.RUnlock()

	if unchanged {
		// An unchanged catalog only skips generation when the artifacts are
		// actually on disk; after a restart the cached fingerprint may match
		// while the output files were deleted in between.
		run.Skipped = o.ensureArtifacts(ctx, run.Fingerprint)
	}

	if !run.Skipped {
		types := typegen.Generate(catalog)
		client := clientgen.Generate(catalog, o.cfg.ClientOptions)

		if err := writeArtifacts([]artifactFile{
			{path: o.cfg.TypesPath, data: types},
			{path: o.cfg.ClientPath, data: client},
		}); err != nil {
			return o.fail(run, err)
		}

		if err := o.cache.StoreRun(ctx, CachedRun{
			RunID:       run.ID,
			Fingerprint: run.Fingerprint,
			FinishedAt:  time.Now().UTC(),
			Types:       types,
			Client:      client,
		}); err != nil {
			// Cache persistence is an optimization, never a run failure.
			o.logger.Warn("cache store failed", "error", err)
		}
	}

	run.FinishedAt = time.Now().UTC()
	run.State = StateSucceeded

	o.mu.Lock()
	if !run.Skipped {
		o.previous = o.current
		o.current = catalog
		o.fingerprint = run.Fingerprint
	} else if o.current == nil {
		// First run after a restart: the catalog is fingerprint-identical to
		// the last successful run, so publish it for the metadata surfaces.
		o.current = catalog
	}
	o.lastRun = run
	o.state = StateIdle
	o.mu.Unlock()

	run.Report.Log(o.logger)
	if !run.Skipped {
		o.logChanges()
	}
	o.logger.Info("sync run succeeded",
		"run_id", run.ID,
		"skipped", run.Skipped,
		"findings", run.Report.Count(),
		"duration_ms", float64(run.FinishedAt.Sub(run.StartedAt).Microseconds())/1000.0,
	)
	return run, nil
}

// ensureArtifacts reports whether both output files are present on disk,
// rewriting them from the cache when a run for fingerprint was persisted.
// False means the caller has to regenerate.
func (o *Orchestrator) ensureArtifacts(ctx context.Context, fingerprint string) bool {
	if !fileMissing(o.cfg.TypesPath) && !fileMissing(o.cfg.ClientPath) {
		return true
	}

	rec, ok, err := o.cache.Artifacts(ctx, fingerprint)
	if err != nil {
		o.logger.Warn("cache lookup failed", "error", err)
		return false
	}
	if !ok {
		return false
	}

	if err := writeArtifacts([]artifactFile{
		{path: o.cfg.TypesPath, data: rec.Types},
		{path: o.cfg.ClientPath, data: rec.Client},
	}); err != nil {
		o.logger.Warn("artifact restore from cache failed", "error", err)
		return false
	}
	o.logger.Info("restored missing artifacts from cache", "fingerprint", fingerprint[:12])
	return true
}

func fileMissing(path string) bool {
	_, err := os.Stat(path)
	return err != nil
}

func (o *Orchestrator) fail(run *Run, err error) (*Run, error) {
	run.FinishedAt = time.Now().UTC()
	run.State = StateFailed
	run.Error = err.Error()

	o.mu.Lock()
	o.lastRun = run
	o.state = StateIdle
	o.mu.Unlock()

	var dup *introspect.DuplicateEndpoint
	if errors.As(err, &dup) {
		o.logger.Error("sync run failed: ambiguous API surface", "run_id", run.ID, "error", err)
	} else {
		o.logger.Error("sync run failed", "run_id", run.ID, "error", err)
	}
	return run, err
}

func (o *Orchestrator) setState(s State, run *Run) {
	o.mu.Lock()
	o.state = s
	if run != nil {
		o.lastRun = run
	}
	o.mu.Unlock()
}

// Trigger requests a run. If one is already Running the request coalesces
// with any other pending trigger; the caller never blocks.
func (o *Orchestrator) Trigger() {
	select {
	case o.triggers <- struct{}{}:
	default:
	}
}

// Serve consumes triggers until ctx is canceled, running one sync per
// coalesced trigger batch. Failed runs are logged and the loop stays alive;
// the next trigger is the retry path.
func (o *Orchestrator) Serve(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.triggers:
			if _, err := o.Sync(ctx); err != nil {
				// Already logged by Sync; keep serving.
				continue
			}
		}
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// LastRun returns the record of the most recent terminal run, or nil before
// the first run completes.
func (o *Orchestrator) LastRun() *Run {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastRun
}

// Snapshot returns the catalog of the most recent successful run, or nil
// before one exists. The returned catalog is never mutated after publishing.
func (o *Orchestrator) Snapshot() *descriptor.Catalog {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.current
}

// Changes returns the diff between the two most recent successful catalogs.
func (o *Orchestrator) Changes() descriptor.ChangeReport {
	o.mu.RLock()
	prev, curr := o.previous, o.current
	o.mu.RUnlock()

	if prev == nil || curr == nil {
		return descriptor.ChangeReport{ComparedAt: time.Now().UTC(), Items: []descriptor.ChangeItem{}}
	}
	return descriptor.Diff(prev, curr)
}

func (o *Orchestrator) logChanges() {
	o.mu.RLock()
	prev, curr := o.previous, o.current
	o.mu.RUnlock()

	if prev == nil || curr == nil {
		return
	}
	report := descriptor.Diff(prev, curr)
	if !report.HasChanges {
		return
	}
	o.logger.Info("catalog changed",
		"additive", report.AdditiveCount,
		"breaking", report.BreakingCount,
	)
	for _, item := range report.Items {
		o.logger.Debug("catalog change", "category", item.Category, "description", item.Description)
	}
}
