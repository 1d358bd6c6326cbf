package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ecotrace/footprint-backend/internal/platform/logger"
	"github.com/ecotrace/footprint-backend/internal/types"
)

type fakeJobRepo struct {
	jobs map[uuid.UUID]*types.CalculationJob
}

func newFakeJobRepo(jobs ...*types.CalculationJob) *fakeJobRepo {
	m := map[uuid.UUID]*types.CalculationJob{}
	for _, j := range jobs {
		m[j.ID] = j
	}
	return &fakeJobRepo{jobs: m}
}

func (f *fakeJobRepo) EnqueueExclusive(ctx context.Context, tx *gorm.DB, job *types.CalculationJob) (*types.CalculationJob, error) {
	f.jobs[job.ID] = job
	return job, nil
}

func (f *fakeJobRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.CalculationJob, error) {
	return f.jobs[id], nil
}

func (f *fakeJobRepo) ActiveForProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*types.CalculationJob, error) {
	for _, j := range f.jobs {
		if j.ProductID == productID && !types.JobStatusTerminal(j.Status) {
			return j, nil
		}
	}
	return nil, nil
}

func (f *fakeJobRepo) HistoryForProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID, limit int) ([]*types.CalculationJob, error) {
	var out []*types.CalculationJob
	for _, j := range f.jobs {
		if j.ProductID == productID {
			out = append(out, j)
		}
	}
	return out, nil
}

func (f *fakeJobRepo) MostRecentCompleted(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*types.CalculationJob, error) {
	for _, j := range f.jobs {
		if j.ProductID == productID && j.Status == types.JobStatusCompleted {
			return j, nil
		}
	}
	return nil, nil
}

func (f *fakeJobRepo) ClaimNextRunnable(ctx context.Context, tx *gorm.DB) (*types.CalculationJob, error) {
	now := time.Now()
	for _, j := range f.jobs {
		if j.Status == types.JobStatusPending {
			j.Status = types.JobStatusRunning
			j.Attempts++
			j.LockedAt = &now
			j.HeartbeatAt = &now
			j.StartedAt = &now
			return j, nil
		}
	}
	return nil, nil
}

func (f *fakeJobRepo) UpdateFieldsUnlessStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, blocked []string, updates map[string]interface{}) (bool, error) {
	j, ok := f.jobs[id]
	if !ok {
		return false, nil
	}
	for _, status := range blocked {
		if j.Status == status {
			return false, nil
		}
	}
	for column, value := range updates {
		switch column {
		case "status":
			j.Status = value.(string)
		case "stage":
			j.Stage = value.(string)
		case "progress":
			j.Progress = value.(int)
		case "error":
			j.Error = value.(string)
		case "result":
			if raw, ok := value.(datatypes.JSON); ok {
				j.Result = raw
			}
		case "locked_at":
			if value == nil {
				j.LockedAt = nil
			}
		case "heartbeat_at":
			if ts, ok := value.(time.Time); ok {
				j.HeartbeatAt = &ts
			}
		case "completed_at":
			if ts, ok := value.(time.Time); ok {
				j.CompletedAt = &ts
			}
		case "last_error_at":
			if ts, ok := value.(time.Time); ok {
				j.LastErrorAt = &ts
			}
		}
	}
	return true, nil
}

func (f *fakeJobRepo) Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return nil
}

func (f *fakeJobRepo) FailStaleRunning(ctx context.Context, tx *gorm.DB, staleAfter time.Duration, reason string) (int64, error) {
	return 0, nil
}

func (f *fakeJobRepo) PurgeTerminalBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	return 0, nil
}

type recordingNotifier struct {
	progress  int
	completed int
	failed    int
}

func (n *recordingNotifier) JobProgress(*types.CalculationJob, string, int, string) { n.progress++ }
func (n *recordingNotifier) JobCompleted(*types.CalculationJob)                     { n.completed++ }
func (n *recordingNotifier) JobFailed(*types.CalculationJob, string, string)        { n.failed++ }

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

func pendingJob(productID uuid.UUID) *types.CalculationJob {
	return &types.CalculationJob{
		ID:        uuid.New(),
		ProductID: productID,
		CompanyID: uuid.New(),
		JobType:   types.JobTypeFootprintCalculate,
		Status:    types.JobStatusRunning,
		Stage:     types.JobStageQueued,
	}
}

func TestCheckpointAdvancesStageAndNotifies(t *testing.T) {
	job := pendingJob(uuid.New())
	repo := newFakeJobRepo(job)
	notify := &recordingNotifier{}
	jc := NewContext(context.Background(), nil, job, repo, notify)

	if !jc.Checkpoint(types.JobStageResolveMaterials, 40, "resolving") {
		t.Fatalf("checkpoint on a running job must succeed")
	}
	if job.Stage != types.JobStageResolveMaterials || job.Progress != 40 {
		t.Fatalf("job not advanced: stage=%q progress=%d", job.Stage, job.Progress)
	}
	if notify.progress != 1 {
		t.Fatalf("progress notifications: want=1 got=%d", notify.progress)
	}
}

func TestCheckpointRejectedAfterCancellation(t *testing.T) {
	job := pendingJob(uuid.New())
	repo := newFakeJobRepo(job)
	notify := &recordingNotifier{}
	jc := NewContext(context.Background(), nil, job, repo, notify)

	repo.jobs[job.ID].Status = types.JobStatusCancelled

	if jc.Checkpoint(types.JobStageComputeStages, 70, "computing") {
		t.Fatalf("checkpoint must be rejected once the job is cancelled")
	}
	if notify.progress != 0 {
		t.Fatalf("no notification expected for a rejected checkpoint")
	}
}

func TestFailDoesNotOverwriteCancelled(t *testing.T) {
	job := pendingJob(uuid.New())
	repo := newFakeJobRepo(job)
	notify := &recordingNotifier{}
	jc := NewContext(context.Background(), nil, job, repo, notify)

	repo.jobs[job.ID].Status = types.JobStatusCancelled

	jc.Fail(types.JobStageComputeStages, errors.New("boom"))

	if repo.jobs[job.ID].Status != types.JobStatusCancelled {
		t.Fatalf("cancelled job must stay cancelled, got %q", repo.jobs[job.ID].Status)
	}
	if notify.failed != 0 {
		t.Fatalf("no failure notification expected")
	}
}

func TestSucceedStoresResultSnapshot(t *testing.T) {
	job := pendingJob(uuid.New())
	repo := newFakeJobRepo(job)
	notify := &recordingNotifier{}
	jc := NewContext(context.Background(), nil, job, repo, notify)

	jc.Succeed(map[string]any{"per_unit_carbon": 2.858})

	stored := repo.jobs[job.ID]
	if stored.Status != types.JobStatusCompleted {
		t.Fatalf("status: want=completed got=%q", stored.Status)
	}
	if stored.Stage != types.JobStageDone || stored.Progress != 100 {
		t.Fatalf("terminal stage wrong: stage=%q progress=%d", stored.Stage, stored.Progress)
	}
	if len(stored.Result) == 0 {
		t.Fatalf("result snapshot not stored")
	}
	if notify.completed != 1 {
		t.Fatalf("completion notifications: want=1 got=%d", notify.completed)
	}
}

func TestSucceedDoesNotOverwriteCancelled(t *testing.T) {
	job := pendingJob(uuid.New())
	repo := newFakeJobRepo(job)
	jc := NewContext(context.Background(), nil, job, repo, &recordingNotifier{})

	repo.jobs[job.ID].Status = types.JobStatusCancelled

	jc.Succeed(map[string]any{"per_unit_carbon": 1.0})

	if repo.jobs[job.ID].Status != types.JobStatusCancelled {
		t.Fatalf("cancelled job must stay cancelled, got %q", repo.jobs[job.ID].Status)
	}
	if len(repo.jobs[job.ID].Result) != 0 {
		t.Fatalf("result must be dropped for a cancelled job")
	}
}

func TestPayloadUUID(t *testing.T) {
	productID := uuid.New()
	job := pendingJob(productID)
	job.Payload = datatypes.JSON([]byte(`{"product_id":"` + productID.String() + `"}`))
	jc := NewContext(context.Background(), nil, job, newFakeJobRepo(job), nil)

	got, ok := jc.PayloadUUID("product_id")
	if !ok || got != productID {
		t.Fatalf("payload uuid: want=%s got=%s ok=%v", productID, got, ok)
	}
	if _, ok := jc.PayloadUUID("missing"); ok {
		t.Fatalf("missing key must not parse")
	}
}
