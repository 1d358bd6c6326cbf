package app

import (
	"gorm.io/gorm"

	"github.com/ecotrace/footprint-backend/internal/platform/logger"
	"github.com/ecotrace/footprint-backend/internal/repos"
)

type Repos struct {
	ImpactFactor     repos.ImpactFactorRepo
	Product          repos.ProductRepo
	ActivityEntry    repos.ActivityEntryRepo
	CalculationJob   repos.CalculationJobRepo
	ConsistencyAlert repos.ConsistencyAlertRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("wiring repos")
	return Repos{
		ImpactFactor:     repos.NewImpactFactorRepo(db, log),
		Product:          repos.NewProductRepo(db, log),
		ActivityEntry:    repos.NewActivityEntryRepo(db, log),
		CalculationJob:   repos.NewCalculationJobRepo(db, log),
		ConsistencyAlert: repos.NewConsistencyAlertRepo(db, log),
	}
}
