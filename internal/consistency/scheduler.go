package consistency

import (
	"context"
	"time"

	"github.com/ecotrace/footprint-backend/internal/platform/logger"
)

// Scheduler runs the periodic full audit. It is owned by the application
// lifecycle: Start ties it to a context and cancellation stops the loop, so
// no audit timer outlives the process teardown.
type Scheduler struct {
	svc      *Service
	interval time.Duration
	log      *logger.Logger
}

func NewScheduler(svc *Service, interval time.Duration, baseLog *logger.Logger) *Scheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Scheduler{
		svc:      svc,
		interval: interval,
		log:      baseLog.With("component", "AuditScheduler"),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		s.log.Info("audit scheduler started", "interval", s.interval)
		for {
			select {
			case <-ctx.Done():
				s.log.Info("audit scheduler stopped")
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()
}

func (s *Scheduler) runOnce(ctx context.Context) {
	report, err := s.svc.AuditAll(ctx)
	if err != nil {
		s.log.Error("scheduled audit failed", "error", err)
		return
	}
	s.log.Info("scheduled audit finished",
		"audited_products", report.AuditedProducts,
		"discrepancies", len(report.Discrepancies),
		"duration", report.FinishedAt.Sub(report.StartedAt),
	)
}
