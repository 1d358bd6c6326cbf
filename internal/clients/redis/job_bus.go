package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ecotrace/footprint-backend/internal/platform/logger"
	"github.com/ecotrace/footprint-backend/internal/services"
	"github.com/ecotrace/footprint-backend/internal/types"
)

// JobBus publishes job lifecycle events to a Redis channel so the thin
// request-handling layer (or any other consumer) can forward them without
// polling the job table.
type JobBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

type jobEvent struct {
	Event     string    `json:"event"`
	JobID     string    `json:"job_id"`
	ProductID string    `json:"product_id"`
	Status    string    `json:"status"`
	Stage     string    `json:"stage,omitempty"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// NewJobBus connects using REDIS_ADDR / REDIS_CHANNEL. A missing address is
// an error; callers fall back to the no-op notifier.
func NewJobBus(log *logger.Logger) (*JobBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ch := strings.TrimSpace(os.Getenv("REDIS_CHANNEL"))
	if ch == "" {
		ch = "calculation-jobs"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &JobBus{
		log:     log.With("service", "RedisJobBus"),
		rdb:     rdb,
		channel: ch,
	}, nil
}

var _ services.JobNotifier = (*JobBus)(nil)

func (b *JobBus) publish(ev jobEvent) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := b.rdb.Publish(ctx, b.channel, raw).Err(); err != nil {
		b.log.Warn("job event publish failed", "event", ev.Event, "job_id", ev.JobID, "error", err)
	}
}

func (b *JobBus) JobProgress(job *types.CalculationJob, stage string, pct int, msg string) {
	if b == nil || job == nil {
		return
	}
	b.publish(jobEvent{
		Event:     "progress",
		JobID:     job.ID.String(),
		ProductID: job.ProductID.String(),
		Status:    job.Status,
		Stage:     stage,
		Progress:  pct,
		Message:   msg,
		At:        time.Now().UTC(),
	})
}

func (b *JobBus) JobCompleted(job *types.CalculationJob) {
	if b == nil || job == nil {
		return
	}
	b.publish(jobEvent{
		Event:     "completed",
		JobID:     job.ID.String(),
		ProductID: job.ProductID.String(),
		Status:    job.Status,
		Stage:     job.Stage,
		Progress:  100,
		At:        time.Now().UTC(),
	})
}

func (b *JobBus) JobFailed(job *types.CalculationJob, stage string, errMsg string) {
	if b == nil || job == nil {
		return
	}
	b.publish(jobEvent{
		Event:     "failed",
		JobID:     job.ID.String(),
		ProductID: job.ProductID.String(),
		Status:    job.Status,
		Stage:     stage,
		Error:     errMsg,
		At:        time.Now().UTC(),
	})
}

func (b *JobBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
