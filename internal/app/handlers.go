package app

import (
	"github.com/ecotrace/footprint-backend/internal/handlers"
	"github.com/ecotrace/footprint-backend/internal/platform/logger"
)

type Handlers struct {
	Products    *handlers.ProductsHandler
	Jobs        *handlers.JobsHandler
	Emissions   *handlers.EmissionsHandler
	Activity    *handlers.ActivityHandler
	Consistency *handlers.ConsistencyHandler
}

func wireHandlers(log *logger.Logger, reposet Repos, serviceset Services) Handlers {
	log.Info("wiring handlers")
	return Handlers{
		Products:    handlers.NewProductsHandler(reposet.Product, serviceset.Calculator),
		Jobs:        handlers.NewJobsHandler(serviceset.Jobs),
		Emissions:   handlers.NewEmissionsHandler(serviceset.Aggregator),
		Activity:    handlers.NewActivityHandler(serviceset.Activity),
		Consistency: handlers.NewConsistencyHandler(serviceset.Consistency, reposet.Product, serviceset.Calculator),
	}
}
