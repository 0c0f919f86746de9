package usecase

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"newsdesk/internal/ports"
)

// RunnerDeps wires a ticker driver with a pipeline run. Gate is optional:
// two runners sharing one gate (digest and stream against the same store)
// never execute concurrently.
type RunnerDeps struct {
	Driver ports.Scheduler
	Job    func(context.Context) error
	Logger *slog.Logger
	Gate   *atomic.Bool
}

// Runner re-invokes a pipeline periodically. The store assumes
// single-runner exclusivity, so an invocation that arrives while another
// run holds the gate is dropped, not queued.
type Runner struct {
	driver ports.Scheduler
	job    func(context.Context) error
	logger *slog.Logger
	gate   *atomic.Bool
}

// NewRunner returns a helper to start/stop recurring pipeline runs.
func NewRunner(deps RunnerDeps) *Runner {
	r := &Runner{
		driver: deps.Driver,
		job:    deps.Job,
		logger: deps.Logger,
		gate:   deps.Gate,
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.gate == nil {
		r.gate = new(atomic.Bool)
	}
	return r
}

// Start registers the job with the provided scheduler.
func (r *Runner) Start(ctx context.Context) error {
	if r.driver == nil || r.job == nil {
		return nil
	}

	run := func(trigger time.Time) {
		if !r.gate.CompareAndSwap(false, true) {
			r.logger.Warn("another run still in progress, skipping", "trigger", trigger)
			return
		}
		defer r.gate.Store(false)

		if err := r.job(ctx); err != nil {
			r.logger.Error("pipeline run failed", "error", err)
		}
	}

	return r.driver.Start(ctx, run)
}

// Stop gracefully tears down the underlying scheduler.
func (r *Runner) Stop(ctx context.Context) error {
	if r.driver == nil {
		return nil
	}

	return r.driver.Stop(ctx)
}
