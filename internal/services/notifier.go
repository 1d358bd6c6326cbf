package services

import (
	"github.com/ecotrace/footprint-backend/internal/types"
)

// JobNotifier publishes calculation-job lifecycle events for interested
// clients (polling UIs, report exporters). Notification is fire-and-forget;
// job state in the database is the source of truth.
type JobNotifier interface {
	JobProgress(job *types.CalculationJob, stage string, pct int, msg string)
	JobCompleted(job *types.CalculationJob)
	JobFailed(job *types.CalculationJob, stage string, errMsg string)
}

type noopNotifier struct{}

func NewNoopNotifier() JobNotifier { return &noopNotifier{} }

func (noopNotifier) JobProgress(*types.CalculationJob, string, int, string) {}
func (noopNotifier) JobCompleted(*types.CalculationJob)                     {}
func (noopNotifier) JobFailed(*types.CalculationJob, string, string)        {}
