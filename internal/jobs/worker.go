package jobs

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ecotrace/footprint-backend/internal/platform/logger"
	"github.com/ecotrace/footprint-backend/internal/repos"
	"github.com/ecotrace/footprint-backend/internal/services"
)

type WorkerConfig struct {
	ClaimInterval   time.Duration
	JanitorInterval time.Duration
	// StaleAfter bounds how long a running job may go without a heartbeat
	// before it is failed as timed out.
	StaleAfter time.Duration
	// Retention bounds how long terminal jobs keep their result snapshot.
	Retention time.Duration
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.ClaimInterval <= 0 {
		c.ClaimInterval = time.Second
	}
	if c.JanitorInterval <= 0 {
		c.JanitorInterval = time.Minute
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 2 * time.Minute
	}
	if c.Retention <= 0 {
		c.Retention = 7 * 24 * time.Hour
	}
	return c
}

// Worker claims pending calculation jobs and dispatches them to registered
// handlers. A janitor pass on its own ticker times out stuck jobs and purges
// terminal rows past retention; neither blocks new submissions.
type Worker struct {
	db       *gorm.DB
	log      *logger.Logger
	repo     repos.CalculationJobRepo
	registry *Registry
	notify   services.JobNotifier
	cfg      WorkerConfig
}

func NewWorker(db *gorm.DB, baseLog *logger.Logger, repo repos.CalculationJobRepo, registry *Registry, notify services.JobNotifier, cfg WorkerConfig) *Worker {
	return &Worker{
		db:       db,
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		registry: registry,
		notify:   notify,
		cfg:      cfg.withDefaults(),
	}
}

func (w *Worker) Start(ctx context.Context) {
	go w.claimLoop(ctx)
	go w.janitorLoop(ctx)
}

func (w *Worker) claimLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.ClaimInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, err := w.repo.ClaimNextRunnable(ctx, w.db)
			if err != nil {
				w.log.Warn("claim next runnable failed", "error", err)
				continue
			}
			if job == nil {
				continue
			}
			jc := NewContext(ctx, w.db, job, w.repo, w.notify)
			h, ok := w.registry.Get(job.JobType)
			if !ok {
				w.log.Warn("no handler registered for job type", "job_type", job.JobType, "job_id", job.ID)
				jc.Fail("dispatch", fmt.Errorf("no handler registered for job_type=%s", job.JobType))
				continue
			}
			w.runGuarded(jc, h)
		}
	}
}

// runGuarded executes a handler with panic recovery; a panicking handler
// marks the job failed instead of taking down the worker.
func (w *Worker) runGuarded(jc *Context, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("job handler panic", "job_id", jc.Job.ID, "job_type", jc.Job.JobType, "panic", r)
			jc.Fail("panic", fmt.Errorf("handler panic: %v", r))
		}
	}()
	h.Run(jc)
}

func (w *Worker) janitorLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.JanitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.janitorPass(ctx)
		}
	}
}

// janitorPass times out running jobs whose heartbeat stopped and purges
// terminal rows past retention.
func (w *Worker) janitorPass(ctx context.Context) {
	timedOut, err := w.repo.FailStaleRunning(ctx, w.db, w.cfg.StaleAfter, "job timed out: no heartbeat within bound")
	if err != nil {
		w.log.Warn("stale job sweep failed", "error", err)
	} else if timedOut > 0 {
		w.log.Warn("timed out stale running jobs", "count", timedOut)
	}
	purged, err := w.repo.PurgeTerminalBefore(ctx, w.db, time.Now().Add(-w.cfg.Retention))
	if err != nil {
		w.log.Warn("terminal job purge failed", "error", err)
	} else if purged > 0 {
		w.log.Debug("purged terminal jobs past retention", "count", purged)
	}
}
