package reconcile

import (
	"github.com/harrisonrobin/twsync/pkg/taskwarrior"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Result is the outcome of merging one remote task.
type Result string

const (
	Added     Result = "added"
	Updated   Result = "updated"
	Unchanged Result = "unchanged"
	KeptLocal Result = "kept_local"
	Failed    Result = "failed"
)

// TaskStore is the local state a remote batch is merged into.
type TaskStore interface {
	Get(uuid string) *taskwarrior.Task
	Put(t *taskwarrior.Task)
}

// Report lists task uuids per merge result.
type Report struct {
	Added     []string
	Updated   []string
	Unchanged []string
	KeptLocal []string
	Failed    []*taskwarrior.SyncError
}

func (r *Report) Changed() bool {
	return len(r.Added) > 0 || len(r.Updated) > 0
}

// Metrics counts merge results.
type Metrics struct {
	reconciled *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		reconciled: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "twsync_tasks_reconciled_total",
				Help: "Remote tasks merged into the local store, by result",
			},
			[]string{"result"},
		),
	}
}

func (m *Metrics) observe(res Result) {
	if m != nil {
		m.reconciled.WithLabelValues(string(res)).Inc()
	}
}

// Reconciler merges decoded remote tasks into a TaskStore.
type Reconciler struct {
	store   TaskStore
	log     zerolog.Logger
	metrics *Metrics
}

// New returns a Reconciler. metrics may be nil.
func New(store TaskStore, log zerolog.Logger, metrics *Metrics) *Reconciler {
	return &Reconciler{store: store, log: log, metrics: metrics}
}

// Apply merges every task of the batch. Documents that failed to decode are
// reported and skipped; they never stop the rest of the batch.
func (r *Reconciler) Apply(b *taskwarrior.Batch) *Report {
	rep := &Report{}
	for _, se := range b.Errors {
		r.log.Warn().Err(se.Err).Str("uuid", se.UUID).Int("index", se.Index).Msg("skipping task that failed to parse")
		r.metrics.observe(Failed)
		rep.Failed = append(rep.Failed, se)
	}
	for _, t := range b.Tasks {
		res := r.Merge(t)
		switch res {
		case Added:
			rep.Added = append(rep.Added, t.UUID)
		case Updated:
			rep.Updated = append(rep.Updated, t.UUID)
		case Unchanged:
			rep.Unchanged = append(rep.Unchanged, t.UUID)
		case KeptLocal:
			rep.KeptLocal = append(rep.KeptLocal, t.UUID)
		}
	}
	r.log.Info().
		Int("added", len(rep.Added)).
		Int("updated", len(rep.Updated)).
		Int("unchanged", len(rep.Unchanged)).
		Int("kept_local", len(rep.KeptLocal)).
		Int("failed", len(rep.Failed)).
		Msg("reconciled batch")
	return rep
}

// Merge applies one remote task. The remote copy replaces the local one
// unless the local copy was modified later.
func (r *Reconciler) Merge(remote *taskwarrior.Task) Result {
	res := r.merge(remote)
	r.metrics.observe(res)
	r.log.Debug().Str("uuid", remote.UUID).Str("result", string(res)).Msg("merged task")
	return res
}

func (r *Reconciler) merge(remote *taskwarrior.Task) Result {
	local := r.store.Get(remote.UUID)
	switch {
	case local == nil:
		r.store.Put(remote)
		return Added
	case local.Equal(remote):
		return Unchanged
	case remote.LastModified().Before(local.LastModified()):
		return KeptLocal
	default:
		r.store.Put(remote)
		return Updated
	}
}
