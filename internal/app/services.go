package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/ecotrace/footprint-backend/internal/catalog"
	redisclient "github.com/ecotrace/footprint-backend/internal/clients/redis"
	"github.com/ecotrace/footprint-backend/internal/consistency"
	"github.com/ecotrace/footprint-backend/internal/emissions"
	"github.com/ecotrace/footprint-backend/internal/footprint"
	"github.com/ecotrace/footprint-backend/internal/jobs"
	"github.com/ecotrace/footprint-backend/internal/platform/logger"
	"github.com/ecotrace/footprint-backend/internal/services"
	"github.com/ecotrace/footprint-backend/internal/types"
)

type Services struct {
	Catalog     *catalog.Catalog
	Calculator  *footprint.Calculator
	Aggregator  *emissions.Aggregator
	Consistency *consistency.Service
	Scheduler   *consistency.Scheduler
	Jobs        services.JobService
	Activity    services.ActivityService
	JobWorker   *jobs.Worker
	JobBus      *redisclient.JobBus
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos) (Services, error) {
	log.Info("wiring services")

	ds, err := catalog.Load(cfg.DatasetPath)
	if err != nil {
		return Services{}, fmt.Errorf("load impact factor dataset: %w", err)
	}
	if err := catalog.Seed(context.Background(), reposet.ImpactFactor, ds, log); err != nil {
		return Services{}, fmt.Errorf("seed impact factors: %w", err)
	}
	cat := catalog.New(ds, log)

	resolver := footprint.NewResolver(reposet.ImpactFactor, cat.Version(), log)
	calc := footprint.NewCalculator(resolver, cfg.ElectricityKgPerKWh, log)

	agg := emissions.NewAggregator(reposet.Product, reposet.ActivityEntry, cat, calc, cfg.CacheStaleAfter, log)

	consistencySvc := consistency.NewService(
		reposet.Product,
		reposet.CalculationJob,
		reposet.ConsistencyAlert,
		calc,
		consistency.Config{
			EpsilonPct:       cfg.EpsilonPct,
			AutoSyncEnabled:  cfg.AutoSyncEnabled,
			AuditParallelism: cfg.AuditParallelism,
		},
		log,
	)
	scheduler := consistency.NewScheduler(consistencySvc, cfg.AuditInterval, log)

	// Job progress fans out over redis when available; otherwise jobs still
	// run, just without live notifications.
	var notifier services.JobNotifier
	bus, err := redisclient.NewJobBus(log)
	if err != nil {
		log.Warn("redis job bus unavailable, progress events disabled", "error", err)
		notifier = services.NewNoopNotifier()
	} else {
		notifier = bus
	}

	registry := jobs.NewRegistry()
	registry.Register(types.JobTypeFootprintCalculate, jobs.NewFootprintHandler(reposet.Product, calc, consistencySvc, log))

	worker := jobs.NewWorker(db, log, reposet.CalculationJob, registry, notifier, jobs.WorkerConfig{
		ClaimInterval:   cfg.JobClaimInterval,
		JanitorInterval: cfg.JobJanitorInterval,
		StaleAfter:      cfg.JobStaleAfter,
		Retention:       cfg.JobRetention,
	})

	return Services{
		Catalog:     cat,
		Calculator:  calc,
		Aggregator:  agg,
		Consistency: consistencySvc,
		Scheduler:   scheduler,
		Jobs:        services.NewJobService(db, log, reposet.CalculationJob, reposet.Product, notifier),
		Activity:    services.NewActivityService(db, log, reposet.ActivityEntry, cat),
		JobWorker:   worker,
		JobBus:      bus,
	}, nil
}
