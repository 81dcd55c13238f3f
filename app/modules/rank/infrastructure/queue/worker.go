package rankqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Black-And-White-Club/parkour-bot/app/shared/observability/attr"
	"github.com/riverqueue/river"
)

// Reconciler runs reconcile passes and settles pending map markers.
type Reconciler interface {
	ReconcileUserJob(ctx context.Context, userID string) error
	SweepPendingReconciles(ctx context.Context) (int, error)
}

var errNoReconciler = errors.New("reconcile worker has no reconciler bound")

// binding holds the reconciler shared by the queue's workers. It is set after
// the client is built because the rank service depends on the queue.
type binding struct {
	mu         sync.RWMutex
	reconciler Reconciler
}

func (b *binding) set(r Reconciler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reconciler = r
}

func (b *binding) get() (Reconciler, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.reconciler == nil {
		return nil, errNoReconciler
	}
	return b.reconciler, nil
}

// ReconcileWorker executes ReconcileRanksArgs jobs.
type ReconcileWorker struct {
	river.WorkerDefaults[ReconcileRanksArgs]

	binding *binding
	logger  *slog.Logger
	timeout time.Duration
}

// NewReconcileWorker creates a worker. The reconciler is bound later with Bind.
func NewReconcileWorker(logger *slog.Logger, timeout time.Duration) *ReconcileWorker {
	return &ReconcileWorker{binding: &binding{}, logger: logger, timeout: timeout}
}

// Bind sets the reconciler jobs are dispatched to.
func (w *ReconcileWorker) Bind(r Reconciler) { w.binding.set(r) }

// Timeout bounds a single reconcile including its Discord calls.
func (w *ReconcileWorker) Timeout(*river.Job[ReconcileRanksArgs]) time.Duration {
	return w.timeout
}

// Work runs the reconcile. A returned error makes River retry the job up to
// its max attempts.
func (w *ReconcileWorker) Work(ctx context.Context, job *river.Job[ReconcileRanksArgs]) error {
	r, err := w.binding.get()
	if err != nil {
		return err
	}

	w.logger.DebugContext(ctx, "Running rank reconcile job",
		attr.UserID(job.Args.UserID),
		attr.Int64("job_id", job.ID),
		attr.Int("attempt", job.Attempt),
	)
	if err := r.ReconcileUserJob(ctx, job.Args.UserID); err != nil {
		w.logger.WarnContext(ctx, "Rank reconcile job failed",
			attr.UserID(job.Args.UserID),
			attr.Int64("job_id", job.ID),
			attr.Int("attempt", job.Attempt),
			attr.Error(err),
		)
		return fmt.Errorf("reconcile %s: %w", job.Args.UserID, err)
	}
	return nil
}

// SweepWorker executes SweepPendingArgs jobs.
type SweepWorker struct {
	river.WorkerDefaults[SweepPendingArgs]

	binding *binding
	logger  *slog.Logger
}

// Work settles pending markers. Failures are logged and left for the next
// periodic run rather than retried.
func (w *SweepWorker) Work(ctx context.Context, job *river.Job[SweepPendingArgs]) error {
	r, err := w.binding.get()
	if err != nil {
		return err
	}
	if _, err := r.SweepPendingReconciles(ctx); err != nil {
		w.logger.WarnContext(ctx, "Pending reconcile sweep incomplete",
			attr.Int64("job_id", job.ID),
			attr.Error(err),
		)
	}
	return nil
}
