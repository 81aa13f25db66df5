// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package housekeeping runs periodic cleanup of expired verification tokens.
package housekeeping

import (
	"context"
	"log/slog"

	"codeberg.org/oliverandrich/aura/internal/metrics"
	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
)

const (
	DefaultSchedule = "@hourly"

	jobPurgeTokens = "purge_verification_tokens"
)

// TokenPurger deletes expired verification tokens.
type TokenPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

type job struct {
	name string
	run  func(ctx context.Context) (int64, error)
}

// Cleaner schedules cleanup jobs on a cron scheduler.
type Cleaner struct {
	cron     *cron.Cron
	schedule string
	jobs     []job
	started  bool
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithSchedule overrides the cron specification of all jobs.
func WithSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.schedule = spec
		}
	}
}

// NewCleaner creates a Cleaner. A nil purger leaves the Cleaner without jobs.
func NewCleaner(tokens TokenPurger, opts ...Option) *Cleaner {
	cleaner := &Cleaner{schedule: DefaultSchedule}
	for _, opt := range opts {
		opt(cleaner)
	}
	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	if tokens != nil {
		cleaner.jobs = append(cleaner.jobs, job{name: jobPurgeTokens, run: tokens.PurgeExpired})
	}
	return cleaner
}

// Start registers the jobs and launches the scheduler.
func (c *Cleaner) Start() error {
	if len(c.jobs) == 0 || c.started {
		return nil
	}

	for _, j := range c.jobs {
		if _, err := c.cron.AddFunc(c.schedule, func() {
			_ = c.runJob(context.Background(), j)
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	c.started = true
	slog.Info("housekeeping_started", "schedule", c.schedule, "jobs", len(c.jobs))
	return nil
}

// Stop halts the scheduler. The returned context is done once running jobs
// have finished.
func (c *Cleaner) Stop() context.Context {
	ctx := c.cron.Stop()
	if c.started {
		slog.Info("housekeeping_stopped")
		c.started = false
	}
	return ctx
}

// RunOnce executes every job sequentially and aggregates their errors.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	var errs error
	for _, j := range c.jobs {
		errs = multierr.Append(errs, c.runJob(ctx, j))
	}
	return errs
}

func (c *Cleaner) runJob(ctx context.Context, j job) error {
	n, err := j.run(ctx)
	metrics.RecordHousekeeping(j.name, err)
	if err != nil {
		slog.Warn("housekeeping_failed", "job", j.name, "error", err)
		return err
	}
	metrics.RecordToken("all", "purged", n)
	slog.Info("tokens_purged", "job", j.name, "count", n)
	return nil
}
