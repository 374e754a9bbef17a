// Package pipeline sequences the dataset acquisition jobs: one-shot
// fail-fast runs for the fetch CLI and an interval refresh loop for the
// daemon.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/energy-data-etl/internal/observability"
)

// Job is a unit of dataset acquisition work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Pipeline runs a fixed sequence of dataset jobs.
type Pipeline struct {
	jobs    []Job
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool
}

// New creates a Pipeline over the given jobs.
func New(jobs []Job, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		jobs:    jobs,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once at least one full cycle has succeeded.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no refresh cycle has completed yet")
	}
	return nil
}

// RunOnce executes the jobs sequentially, aborting on the first failure.
// This preserves the abort-on-first-error contract of the original download
// script: a partial run leaves earlier datasets in place and later ones
// untouched.
func (p *Pipeline) RunOnce(ctx context.Context) error {
	for _, job := range p.jobs {
		if err := ctx.Err(); err != nil {
			return err
		}

		p.logger.Info("job starting", "job", job.Name())
		if err := job.Run(ctx); err != nil {
			p.metrics.JobRuns.WithLabelValues(job.Name(), "error").Inc()
			return fmt.Errorf("job %s: %w", job.Name(), err)
		}
		p.metrics.JobRuns.WithLabelValues(job.Name(), "success").Inc()
		p.logger.Info("job complete", "job", job.Name())
	}
	p.ready.Store(true)
	return nil
}

// Run executes refresh cycles until the context is cancelled. Failed cycles
// are retried with capped exponential backoff; successful cycles wait out
// the refresh interval.
func (p *Pipeline) Run(ctx context.Context, interval time.Duration) error {
	p.logger.Info("pipeline started", "jobs", len(p.jobs), "interval", interval)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Start at 200ms, double each retry, cap at 5s. Keeps retry storms short
	// while avoiding tight loops during upstream outages.
	backoff := 200 * time.Millisecond
	const maxBackoff = 5 * time.Second

	for {
		if err := p.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				p.logger.Info("pipeline stopping", "reason", ctx.Err())
				return nil
			}
			p.logger.Error("refresh cycle failed", "error", err)
			if !sleepWithContext(ctx, backoff) {
				return nil
			}
			backoff = nextBackoff(backoff, maxBackoff)
			continue
		}

		backoff = 200 * time.Millisecond
		if !sleepWithContext(ctx, interval) {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
