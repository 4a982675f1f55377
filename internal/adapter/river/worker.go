package river

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/workflowiq/internal/app"
	"github.com/neomorfeo/workflowiq/internal/domain"
)

// TransitionWorker processes transition event jobs from the River queue.
// For now it logs the transition; future versions will dispatch webhook
// and notification actions.
type TransitionWorker struct {
	river.WorkerDefaults[TransitionJobArgs]
}

// Work processes a single transition job.
func (w *TransitionWorker) Work(ctx context.Context, job *river.Job[TransitionJobArgs]) error {
	slog.InfoContext(ctx, "transition recorded",
		"tenant", job.Args.TenantCode,
		"instance", job.Args.InstanceID,
		"entity", job.Args.EntityType+"/"+job.Args.EntityID,
		"from", job.Args.FromState,
		"to", job.Args.ToState,
		"event", job.Args.Event,
		"operator", job.Args.Operator,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)
	return nil
}

// BackfillWorker runs tenant repair passes enqueued through the publisher.
type BackfillWorker struct {
	river.WorkerDefaults[BackfillJobArgs]

	svc *app.WorkflowService
}

// Work runs one backfill pass scoped to the job's tenant.
func (w *BackfillWorker) Work(ctx context.Context, job *river.Job[BackfillJobArgs]) error {
	ctx = domain.WithTenant(ctx, job.Args.TenantCode)

	report, err := w.svc.Backfill(ctx, job.Args.WorkflowCode)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "backfill completed",
		"tenant", job.Args.TenantCode,
		"workflow", job.Args.WorkflowCode,
		"scanned", report.Scanned,
		"repaired", report.Repaired,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"job_id", job.ID,
	)
	return nil
}
