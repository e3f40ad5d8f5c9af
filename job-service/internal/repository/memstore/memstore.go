// Package memstore is an in-process ledger store. It backs local runs with
// STORE_DRIVER=memory and the service and handler tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"handyman-app/job-service/internal/models"
	"handyman-app/job-service/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type txKey struct{}

type snapshot struct {
	jobs    map[primitive.ObjectID]models.Job
	jobLogs []models.JobLog
	reports map[primitive.ObjectID]models.NoShowReport
	repLogs []models.ReputationLog
	txs     []models.Transaction
	workers map[string]models.Worker
}

// Store keeps every collection in memory. Transactions are serialized and
// roll back to a snapshot when fn fails; writes made outside a transaction
// while one is open are lost on rollback.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	data snapshot

	faults map[string]error
}

func New() *Store {
	return &Store{
		data: snapshot{
			jobs:    map[primitive.ObjectID]models.Job{},
			reports: map[primitive.ObjectID]models.NoShowReport{},
			workers: map[string]models.Worker{},
		},
		faults: map[string]error{},
	}
}

// Repositories exposes the store through the repository interfaces.
func (s *Store) Repositories() *repository.Store {
	return &repository.Store{
		Jobs:         &jobRepo{s},
		JobLogs:      &jobLogRepo{s},
		NoShows:      &noShowRepo{s},
		Reputation:   &reputationRepo{s},
		Transactions: &transactionRepo{s},
		Workers:      &workerRepo{s},
		Tx:           s,
	}
}

// FailOn makes every call to op return err until cleared with a nil err.
// op is "<collection>.<Method>", e.g. "workers.GetByID".
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

// PutWorker seeds or overwrites a worker profile.
func (s *Store) PutWorker(w models.Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	s.data.workers[w.ID] = w
}

func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	saved := s.data.clone()
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.data = saved
		s.mu.Unlock()
		return err
	}
	return nil
}

// lock acquires the data mutex and reports an injected fault for op.
func (s *Store) lock(op string) error {
	s.mu.Lock()
	if err, ok := s.faults[op]; ok {
		s.mu.Unlock()
		return err
	}
	return nil
}

func (d snapshot) clone() snapshot {
	out := snapshot{
		jobs:    make(map[primitive.ObjectID]models.Job, len(d.jobs)),
		jobLogs: append([]models.JobLog(nil), d.jobLogs...),
		reports: make(map[primitive.ObjectID]models.NoShowReport, len(d.reports)),
		repLogs: append([]models.ReputationLog(nil), d.repLogs...),
		txs:     append([]models.Transaction(nil), d.txs...),
		workers: make(map[string]models.Worker, len(d.workers)),
	}
	for k, v := range d.jobs {
		out.jobs[k] = cloneJob(v)
	}
	for k, v := range d.reports {
		out.reports[k] = v
	}
	for k, v := range d.workers {
		out.workers[k] = v
	}
	return out
}

func cloneJob(j models.Job) models.Job {
	if j.WorkerID != nil {
		w := *j.WorkerID
		j.WorkerID = &w
	}
	if j.StartProofGpsLat != nil {
		v := *j.StartProofGpsLat
		j.StartProofGpsLat = &v
	}
	if j.StartProofGpsLng != nil {
		v := *j.StartProofGpsLng
		j.StartProofGpsLng = &v
	}
	return j
}

func sortJobsNewestFirst(jobs []models.Job) {
	sort.SliceStable(jobs, func(i, k int) bool {
		return jobs[i].CreatedAt.After(jobs[k].CreatedAt)
	})
}
