// Package batch runs a cohort of independent entities in parallel.
//
// ARCHITECTURE:
//
// Per-entity streams:
// Entity i draws every random quantity from its own PCG stream seeded with
// (seed, i). Cohort-level quantities are drawn once per run from a
// separate stream. No stream is shared between goroutines, so a run's
// records depend only on the seed and the parameters, never on the worker
// count or scheduling order.
//
// Single writer:
// Workers simulate entities and hand finished records to the goroutine
// that called Run, which is the only one writing to the sink.
//
// Error accounting:
// An entity-local failure routes that entity to the error state and the
// run goes on. Run only fails on cancellation or a sink error. Errors are
// summarized by code at the end of the run and a warning is logged when
// their rate crosses the configured threshold.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/oralsim/internal/cohort"
	"github.com/roach88/oralsim/internal/config"
	"github.com/roach88/oralsim/internal/engine"
	"github.com/roach88/oralsim/internal/entity"
	"github.com/roach88/oralsim/internal/estimate"
	"github.com/roach88/oralsim/internal/nathist"
	"github.com/roach88/oralsim/internal/params"
	"github.com/roach88/oralsim/internal/policy"
	"github.com/roach88/oralsim/internal/simerr"
	"github.com/roach88/oralsim/internal/sink"
)

// CohortStream is the PCG stream selector of the cohort-level draws. It
// lies outside the range of entity indices.
const CohortStream = uint64(1) << 63

// Runner simulates cohorts from one parameter set.
type Runner struct {
	set     *params.Set
	cfg     config.Config
	engine  *engine.Engine
	sink    sink.Sink
	metrics *Metrics
	ids     RunIDGenerator
	source  string
	logger  *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithSink sets where records go. The default keeps them in memory.
func WithSink(s sink.Sink) Option {
	return func(r *Runner) {
		r.sink = s
	}
}

// WithMetrics records per-entity metrics into m.
func WithMetrics(m *Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithRunIDGenerator overrides the UUIDv7 run identifiers (for testing).
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(r *Runner) {
		r.ids = g
	}
}

// WithParamsSource records where the parameter set was loaded from.
func WithParamsSource(dir string) Option {
	return func(r *Runner) {
		r.source = dir
	}
}

// WithLogger sets the logger of the runner and every component it builds.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// New creates a runner. The parameter set must pass Check.
func New(set *params.Set, cfg config.Config, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("batch config: %w", err)
	}
	if errs := set.Check(); len(errs) > 0 {
		return nil, fmt.Errorf("parameters incomplete: %w", errs[0])
	}

	r := &Runner{
		set:    set,
		cfg:    cfg,
		ids:    UUIDv7Generator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.sink == nil {
		r.sink = sink.NewMemory()
	}
	r.engine = engine.New(
		engine.WithMaxSteps(cfg.MaxSteps),
		engine.WithLogger(r.logger),
		engine.WithSynchronizer(engine.NewSynchronizer(
			engine.WithLoopCeiling(cfg.LoopCeiling),
			engine.WithSyncLogger(r.logger),
		)),
	)
	return r, nil
}

// Result is the outcome of a batch run.
type Result struct {
	RunID    string
	Cohort   cohort.Params
	Summary  sink.Summary
	Digests  map[int]string
	Duration time.Duration
}

// CohortParams draws the cohort-level quantities of the run.
func (r *Runner) CohortParams() (cohort.Params, error) {
	stream := estimate.NewStream(r.set.Estimates, rand.New(rand.NewPCG(r.cfg.Seed, CohortStream)))
	return cohort.SampleParams(stream)
}

// Run simulates cfg.Entities entities and writes their records to the
// sink. The sink is begun but not closed.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	runID := r.ids.Generate()

	cp, err := r.CohortParams()
	if err != nil {
		return nil, fmt.Errorf("sample cohort parameters: %w", err)
	}

	run := sink.Run{
		ID:        runID,
		Seed:      r.cfg.Seed,
		Entities:  r.cfg.Entities,
		Workers:   r.cfg.Workers,
		StartedAt: start.UTC(),
		Params:    r.source,
	}
	if err := r.sink.Begin(ctx, run); err != nil {
		return nil, fmt.Errorf("begin run: %w", err)
	}
	r.logger.Info("batch starting",
		"run", runID,
		"entities", r.cfg.Entities,
		"workers", r.cfg.Workers,
		"seed", r.cfg.Seed,
		"horizon_days", cp.Horizon,
		"dentist_access", cp.Access)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	jobs := make(chan int)
	results := make(chan sink.Record, r.cfg.Workers)

	g.Go(func() error {
		defer close(jobs)
		for i := 0; i < r.cfg.Entities; i++ {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	var wg sync.WaitGroup
	for w := 0; w < r.cfg.Workers; w++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			for idx := range jobs {
				rec, err := r.simulate(gctx, runID, idx, cp)
				if err != nil {
					return err
				}
				select {
				case results <- rec:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	res := &Result{RunID: runID, Cohort: cp, Digests: make(map[int]string, r.cfg.Entities)}
	var writeErr error
	for rec := range results {
		if writeErr != nil {
			continue
		}
		if err := r.sink.Write(ctx, rec); err != nil {
			writeErr = fmt.Errorf("write entity %d: %w", rec.Index, err)
			cancel()
			continue
		}
		res.Summary.Add(rec)
		res.Digests[rec.Index] = rec.Digest
	}
	if err := g.Wait(); err != nil && writeErr == nil {
		return nil, err
	}
	if writeErr != nil {
		return nil, writeErr
	}

	res.Summary.Finish()
	res.Duration = time.Since(start)
	r.report(res)
	return res, nil
}

// simulate runs one entity to completion. It only fails when ctx is
// cancelled or the record cannot be built.
func (r *Runner) simulate(ctx context.Context, runID string, index int, cp cohort.Params) (sink.Record, error) {
	began := time.Now()
	if r.metrics != nil {
		r.metrics.busy.Inc()
		defer r.metrics.busy.Dec()
	}

	e, err := r.Entity(ctx, runID, index, cp)
	if err != nil {
		return sink.Record{}, err
	}
	rec, err := sink.NewRecord(runID, e)
	if err != nil {
		return sink.Record{}, err
	}
	if r.metrics != nil {
		r.metrics.observe(rec, time.Since(began).Seconds())
	}
	return rec, nil
}

// Entity simulates entity index of the cohort and returns it in a terminal
// state. The same index, seed and parameters always produce the same
// entity.
func (r *Runner) Entity(ctx context.Context, runID string, index int, cp cohort.Params) (e *entity.Entity, err error) {
	e = entity.New(fmt.Sprintf("%s-%d", runID, index), index)
	stream := estimate.NewStream(r.set.Estimates, rand.New(rand.NewPCG(r.cfg.Seed, uint64(index))))

	var popts []policy.Option
	popts = append(popts, policy.WithLogger(r.logger))
	if r.cfg.SurgeryShift != 0 {
		popts = append(popts, policy.WithSurgeryShift(r.cfg.SurgeryShift))
	}
	env := engine.Env{
		Estimates: stream,
		Init:      cohort.New(stream, cp, r.set.LifeTable, cohort.WithLogger(r.logger)),
		History: nathist.New(
			nathist.ModelDraws{Estimates: stream, Regressions: r.set.Regressions},
			nathist.WithLogger(r.logger),
		),
		Handlers: policy.New(stream, r.set.Regressions, popts...).Handlers(),
	}

	// A panicking handler fails its entity, not the batch.
	defer func() {
		if p := recover(); p != nil {
			e.Fail(simerr.InvalidState("panic in state %s: %v", e.State, p))
			r.logger.Error("entity panicked", "entity", e.ID, "index", index, "panic", p)
			err = nil
		}
	}()
	if err := r.engine.Run(ctx, e, env); err != nil {
		return nil, err
	}
	return e, nil
}

// report logs the run summary, with error-terminated entities up front.
func (r *Runner) report(res *Result) {
	s := res.Summary
	for _, code := range simerr.Codes {
		if n := s.ErrorsByCode[code]; n > 0 {
			r.logger.Warn("entities failed", "run", res.RunID, "code", string(code), "count", n)
		}
	}
	if rate := s.ErrorRate(); rate > r.cfg.ErrorRateWarn {
		r.logger.Warn("high entity error rate",
			"run", res.RunID,
			"errors", s.Errors,
			"entities", s.Entities,
			"rate", rate,
			"threshold", r.cfg.ErrorRateWarn)
	}
	r.logger.Info("batch finished",
		"run", res.RunID,
		"entities", s.Entities,
		"errors", s.Errors,
		"natural", s.Deaths[entity.DeathNatural],
		"disease", s.Deaths[entity.DeathDisease],
		"censored", s.Deaths[entity.DeathCensored],
		"cancers", s.Cancers,
		"duration", res.Duration)
}
