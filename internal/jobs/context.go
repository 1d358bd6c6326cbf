package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ecotrace/footprint-backend/internal/repos"
	"github.com/ecotrace/footprint-backend/internal/services"
	"github.com/ecotrace/footprint-backend/internal/types"
)

/*
Context is the execution handle for one claimed calculation job. It wraps the
job row, the repo that owns its persistence, and the notifier side channel,
and it is the only sanctioned way for a handler to report progress or
terminate execution. The row is single-writer: handlers go through Checkpoint,
Fail and Succeed, never through direct field mutation, so status polls always
observe a consistent snapshot.
*/
type Context struct {
	Ctx     context.Context
	DB      *gorm.DB
	Job     *types.CalculationJob
	Repo    repos.CalculationJobRepo
	Notify  services.JobNotifier
	payload map[string]any
}

func NewContext(ctx context.Context, db *gorm.DB, job *types.CalculationJob, repo repos.CalculationJobRepo, notify services.JobNotifier) *Context {
	c := &Context{
		Ctx:    ctx,
		DB:     db,
		Job:    job,
		Repo:   repo,
		Notify: notify,
	}
	_ = c.decodePayload()
	return c
}

func (c *Context) decodePayload() error {
	if c.Job == nil {
		return nil
	}
	if len(c.Job.Payload) == 0 {
		c.payload = map[string]any{}
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(c.Job.Payload, &m); err != nil {
		c.payload = map[string]any{}
		return err
	}
	c.payload = m
	return nil
}

func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

func (c *Context) PayloadUUID(key string) (uuid.UUID, bool) {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(fmt.Sprint(v))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

/*
Checkpoint publishes a non-terminal stage/progress update and is the only
point where cancellation is observed. The write is guarded against terminal
statuses; when it is rejected the job was cancelled (or timed out) and the
handler must stop without persisting anything further. Cancellation is
cooperative: nothing interrupts the work between two checkpoints.
*/
func (c *Context) Checkpoint(stage string, pct int, msg string) bool {
	if c == nil {
		return false
	}
	ctx := c.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	now := time.Now()

	if c.Repo != nil && c.Job != nil && c.Job.ID != uuid.Nil {
		ok, err := c.Repo.UpdateFieldsUnlessStatus(ctx, nil, c.Job.ID,
			[]string{types.JobStatusCancelled, types.JobStatusFailed, types.JobStatusCompleted},
			map[string]interface{}{
				"stage":        stage,
				"progress":     pct,
				"heartbeat_at": now,
				"updated_at":   now,
			})
		if err != nil || !ok {
			return false
		}
	}

	if c.Job != nil {
		c.Job.Stage = stage
		c.Job.Progress = pct
		c.Job.HeartbeatAt = &now
		c.Job.UpdatedAt = now
	}
	if c.Notify != nil && c.Job != nil {
		c.Notify.JobProgress(c.Job, stage, pct, msg)
	}
	return true
}

/*
Fail marks the job terminally failed with the captured error. Partial results
are discarded, never persisted. The write is guarded so a cancelled job is not
overwritten; in that case no notification is emitted either.
*/
func (c *Context) Fail(stage string, err error) {
	if c == nil {
		return
	}
	ctx := c.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	now := time.Now()
	msg := ""
	if err != nil {
		msg = err.Error()
	}

	if c.Repo != nil && c.Job != nil && c.Job.ID != uuid.Nil {
		ok, _ := c.Repo.UpdateFieldsUnlessStatus(ctx, nil, c.Job.ID,
			[]string{types.JobStatusCancelled, types.JobStatusCompleted},
			map[string]interface{}{
				"status":        types.JobStatusFailed,
				"stage":         stage,
				"error":         msg,
				"last_error_at": now,
				"locked_at":     nil,
				"completed_at":  now,
				"updated_at":    now,
			})
		if !ok {
			return
		}
	}

	if c.Job != nil {
		c.Job.Status = types.JobStatusFailed
		c.Job.Stage = stage
		c.Job.Error = msg
		c.Job.LastErrorAt = &now
		c.Job.LockedAt = nil
		c.Job.CompletedAt = &now
		c.Job.UpdatedAt = now
	}
	if c.Notify != nil && c.Job != nil {
		c.Notify.JobFailed(c.Job, stage, msg)
	}
}

/*
Succeed marks the job completed and stores the result snapshot. Guarded the
same way as Fail: a cancellation that won the race keeps the row cancelled and
the result is dropped.
*/
func (c *Context) Succeed(result any) {
	if c == nil {
		return
	}
	ctx := c.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	now := time.Now()
	var res datatypes.JSON
	if result != nil {
		b, _ := json.Marshal(result)
		res = datatypes.JSON(b)
	}

	if c.Repo != nil && c.Job != nil && c.Job.ID != uuid.Nil {
		ok, _ := c.Repo.UpdateFieldsUnlessStatus(ctx, nil, c.Job.ID,
			[]string{types.JobStatusCancelled, types.JobStatusFailed},
			map[string]interface{}{
				"status":       types.JobStatusCompleted,
				"stage":        types.JobStageDone,
				"progress":     100,
				"error":        "",
				"result":       res,
				"locked_at":    nil,
				"heartbeat_at": now,
				"completed_at": now,
				"updated_at":   now,
			})
		if !ok {
			return
		}
	}

	if c.Job != nil {
		c.Job.Status = types.JobStatusCompleted
		c.Job.Stage = types.JobStageDone
		c.Job.Progress = 100
		c.Job.Error = ""
		c.Job.Result = res
		c.Job.LockedAt = nil
		c.Job.HeartbeatAt = &now
		c.Job.CompletedAt = &now
		c.Job.UpdatedAt = now
	}
	if c.Notify != nil && c.Job != nil {
		c.Notify.JobCompleted(c.Job)
	}
}
