package rankqueue

// QueueName is the River queue reconcile jobs run on.
const QueueName = "rank_reconcile"

// ReconcileRanksArgs asks for one user's progression to be recomputed and
// their roles reconciled.
type ReconcileRanksArgs struct {
	UserID string `json:"user_id"`
}

// Kind returns the job type identifier for River
func (ReconcileRanksArgs) Kind() string { return "rank_reconcile" }

// SweepPendingArgs asks for every map with an unsettled reconcile marker to
// have its completers enqueued. Inserted periodically.
type SweepPendingArgs struct{}

// Kind returns the job type identifier for River
func (SweepPendingArgs) Kind() string { return "rank_reconcile_sweep" }
