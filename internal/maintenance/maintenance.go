// Package maintenance runs the periodic housekeeping jobs: slot cache
// sweeps and stale session expiry.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Runner manages cron-based housekeeping jobs.
type Runner struct {
	mu     sync.Mutex
	cron   *cron.Cron
	jobs   map[string]cron.EntryID
	logger *slog.Logger
}

// New creates a runner with no jobs.
func New(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cron:   cron.New(),
		jobs:   make(map[string]cron.EntryID),
		logger: logger,
	}
}

// AddJob registers a named job. The schedule is a standard cron
// expression (5 fields) or a predefined one like @every 10m. Names are
// unique; re-adding replaces the previous schedule.
func (r *Runner) AddJob(name, schedule string, fn func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := r.cron.AddFunc(schedule, func() {
		r.logger.Debug("maintenance job fired", "job", name)
		fn()
	})
	if err != nil {
		return fmt.Errorf("maintenance: invalid schedule %q: %w", schedule, err)
	}

	if old, ok := r.jobs[name]; ok {
		r.cron.Remove(old)
	}
	r.jobs[name] = id
	r.logger.Info("maintenance job registered", "job", name, "schedule", schedule)
	return nil
}

// RemoveJob drops a job by name.
func (r *Runner) RemoveJob(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.jobs[name]; ok {
		r.cron.Remove(id)
		delete(r.jobs, name)
	}
}

// JobCount returns the number of registered jobs.
func (r *Runner) JobCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// Start begins the cron loop. Blocks until context is cancelled.
func (r *Runner) Start(ctx context.Context) error {
	r.cron.Start()
	r.logger.Info("maintenance runner started")

	<-ctx.Done()
	r.cron.Stop()
	r.logger.Info("maintenance runner stopped")
	return ctx.Err()
}
