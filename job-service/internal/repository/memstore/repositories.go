package memstore

import (
	"context"
	"sort"
	"time"

	"handyman-app/job-service/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type jobRepo struct{ s *Store }

func (r *jobRepo) Create(_ context.Context, job *models.Job) error {
	if err := r.s.lock("jobs.Create"); err != nil {
		return err
	}
	defer r.s.mu.Unlock()
	now := time.Now().UTC()
	job.ID = primitive.NewObjectID()
	job.CreatedAt = now
	job.UpdatedAt = now
	r.s.data.jobs[job.ID] = cloneJob(*job)
	return nil
}

func (r *jobRepo) GetByID(_ context.Context, id primitive.ObjectID) (*models.Job, error) {
	if err := r.s.lock("jobs.GetByID"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	job, ok := r.s.data.jobs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	out := cloneJob(job)
	return &out, nil
}

func (r *jobRepo) list(op string, keep func(models.Job) bool) ([]models.Job, error) {
	if err := r.s.lock(op); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	jobs := make([]models.Job, 0)
	for _, j := range r.s.data.jobs {
		if keep(j) {
			jobs = append(jobs, cloneJob(j))
		}
	}
	sortJobsNewestFirst(jobs)
	return jobs, nil
}

func (r *jobRepo) ListByCustomer(_ context.Context, customerID string) ([]models.Job, error) {
	return r.list("jobs.ListByCustomer", func(j models.Job) bool { return j.CustomerID == customerID })
}

func (r *jobRepo) ListByWorker(_ context.Context, workerID string) ([]models.Job, error) {
	return r.list("jobs.ListByWorker", func(j models.Job) bool { return j.AssignedWorker() == workerID })
}

func (r *jobRepo) ListByStatus(_ context.Context, status models.JobStatus) ([]models.Job, error) {
	return r.list("jobs.ListByStatus", func(j models.Job) bool { return status == "" || j.Status == status })
}

func (r *jobRepo) ApplyChange(_ context.Context, id primitive.ObjectID, change models.JobChange) error {
	if err := r.s.lock("jobs.ApplyChange"); err != nil {
		return err
	}
	defer r.s.mu.Unlock()
	cur, ok := r.s.data.jobs[id]
	if !ok || !change.Matches(&cur) {
		return models.ErrStaleWrite
	}
	change.Apply(&cur)
	r.s.data.jobs[id] = cur
	return nil
}

func (r *jobRepo) SetPaymentOrder(_ context.Context, id primitive.ObjectID, orderID string) (bool, error) {
	if err := r.s.lock("jobs.SetPaymentOrder"); err != nil {
		return false, err
	}
	defer r.s.mu.Unlock()
	cur, ok := r.s.data.jobs[id]
	if !ok || cur.Status != models.StatusInProgress || cur.RazorpayOrderID != "" {
		return false, nil
	}
	cur.RazorpayOrderID = orderID
	cur.PaymentStatus = models.PaymentPending
	cur.UpdatedAt = time.Now().UTC()
	r.s.data.jobs[id] = cur
	return true, nil
}

func (r *jobRepo) MarkReputationAssessed(_ context.Context, id primitive.ObjectID, assessment models.Assessment) (bool, error) {
	if err := r.s.lock("jobs.MarkReputationAssessed"); err != nil {
		return false, err
	}
	defer r.s.mu.Unlock()
	cur, ok := r.s.data.jobs[id]
	if !ok || cur.ReputationAssessed {
		return false, nil
	}
	cur.ReputationAssessed = true
	cur.ReputationAssessmentType = assessment
	cur.UpdatedAt = time.Now().UTC()
	r.s.data.jobs[id] = cur
	return true, nil
}

type jobLogRepo struct{ s *Store }

func (r *jobLogRepo) Append(_ context.Context, entry *models.JobLog) error {
	if err := r.s.lock("job_logs.Append"); err != nil {
		return err
	}
	defer r.s.mu.Unlock()
	entry.ID = primitive.NewObjectID()
	r.s.data.jobLogs = append(r.s.data.jobLogs, *entry)
	return nil
}

func (r *jobLogRepo) ListByJob(_ context.Context, jobID string) ([]models.JobLog, error) {
	if err := r.s.lock("job_logs.ListByJob"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	logs := make([]models.JobLog, 0)
	for _, l := range r.s.data.jobLogs {
		if l.JobID == jobID {
			logs = append(logs, l)
		}
	}
	sort.SliceStable(logs, func(i, k int) bool { return logs[i].CreatedAt.Before(logs[k].CreatedAt) })
	return logs, nil
}

type noShowRepo struct{ s *Store }

func (r *noShowRepo) Create(_ context.Context, report *models.NoShowReport) error {
	if err := r.s.lock("no_show_reports.Create"); err != nil {
		return err
	}
	defer r.s.mu.Unlock()
	for _, existing := range r.s.data.reports {
		if existing.JobID == report.JobID {
			return models.ErrAlreadyExists
		}
	}
	now := time.Now().UTC()
	report.ID = primitive.NewObjectID()
	report.CreatedAt = now
	report.UpdatedAt = now
	r.s.data.reports[report.ID] = *report
	return nil
}

func (r *noShowRepo) GetByID(_ context.Context, id primitive.ObjectID) (*models.NoShowReport, error) {
	if err := r.s.lock("no_show_reports.GetByID"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	report, ok := r.s.data.reports[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &report, nil
}

func (r *noShowRepo) GetByJobID(_ context.Context, jobID string) (*models.NoShowReport, error) {
	if err := r.s.lock("no_show_reports.GetByJobID"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	for _, report := range r.s.data.reports {
		if report.JobID == jobID {
			out := report
			return &out, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *noShowRepo) List(_ context.Context, filter models.NoShowFilter) ([]models.NoShowReport, error) {
	if err := r.s.lock("no_show_reports.List"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	reports := make([]models.NoShowReport, 0)
	for _, report := range r.s.data.reports {
		if filter.CustomerID != "" && report.CustomerID != filter.CustomerID {
			continue
		}
		if filter.WorkerID != "" && report.WorkerID != filter.WorkerID {
			continue
		}
		if filter.Status != "" && report.Status != filter.Status {
			continue
		}
		reports = append(reports, report)
	}
	sort.SliceStable(reports, func(i, k int) bool { return reports[i].CreatedAt.After(reports[k].CreatedAt) })
	return reports, nil
}

func (r *noShowRepo) UpdateIfStatus(_ context.Context, report *models.NoShowReport, expected []models.ReportStatus) error {
	if err := r.s.lock("no_show_reports.UpdateIfStatus"); err != nil {
		return err
	}
	defer r.s.mu.Unlock()
	cur, ok := r.s.data.reports[report.ID]
	if !ok || !models.StatusIn(cur.Status, expected) {
		return models.ErrStaleWrite
	}
	report.UpdatedAt = time.Now().UTC()
	r.s.data.reports[report.ID] = *report
	return nil
}

type reputationRepo struct{ s *Store }

func (r *reputationRepo) Append(_ context.Context, entry *models.ReputationLog) error {
	if err := r.s.lock("reputation_logs.Append"); err != nil {
		return err
	}
	defer r.s.mu.Unlock()
	if entry.JobID != "" && entry.CauseKey != "" {
		for _, l := range r.s.data.repLogs {
			if l.JobID == entry.JobID && l.CauseKey == entry.CauseKey {
				return models.ErrDuplicateReputationEvent
			}
		}
	}
	entry.ID = primitive.NewObjectID()
	r.s.data.repLogs = append(r.s.data.repLogs, *entry)
	return nil
}

func (r *reputationRepo) ExistsForCause(_ context.Context, jobID, causeKey string) (bool, error) {
	if err := r.s.lock("reputation_logs.ExistsForCause"); err != nil {
		return false, err
	}
	defer r.s.mu.Unlock()
	if jobID == "" || causeKey == "" {
		return false, nil
	}
	for _, l := range r.s.data.repLogs {
		if l.JobID == jobID && l.CauseKey == causeKey {
			return true, nil
		}
	}
	return false, nil
}

func (r *reputationRepo) ListByWorker(_ context.Context, workerID string, limit int) ([]models.ReputationLog, error) {
	if err := r.s.lock("reputation_logs.ListByWorker"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	logs := make([]models.ReputationLog, 0)
	for i := len(r.s.data.repLogs) - 1; i >= 0; i-- {
		if l := r.s.data.repLogs[i]; l.WorkerID == workerID {
			logs = append(logs, l)
		}
	}
	sort.SliceStable(logs, func(i, k int) bool { return logs[i].CreatedAt.After(logs[k].CreatedAt) })
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func (r *reputationRepo) Replay(_ context.Context, workerID string) ([]models.ReputationLog, error) {
	if err := r.s.lock("reputation_logs.Replay"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	logs := make([]models.ReputationLog, 0)
	for _, l := range r.s.data.repLogs {
		if l.WorkerID == workerID {
			logs = append(logs, l)
		}
	}
	sort.SliceStable(logs, func(i, k int) bool { return logs[i].CreatedAt.Before(logs[k].CreatedAt) })
	return logs, nil
}

type transactionRepo struct{ s *Store }

func (r *transactionRepo) Create(_ context.Context, tx *models.Transaction) error {
	if err := r.s.lock("transactions.Create"); err != nil {
		return err
	}
	defer r.s.mu.Unlock()
	for _, t := range r.s.data.txs {
		if t.JobID == tx.JobID && t.Type == tx.Type {
			return models.ErrAlreadyExists
		}
	}
	tx.ID = primitive.NewObjectID()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	r.s.data.txs = append(r.s.data.txs, *tx)
	return nil
}

func (r *transactionRepo) ListByJob(_ context.Context, jobID string) ([]models.Transaction, error) {
	if err := r.s.lock("transactions.ListByJob"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	txs := make([]models.Transaction, 0)
	for _, t := range r.s.data.txs {
		if t.JobID == jobID {
			txs = append(txs, t)
		}
	}
	return txs, nil
}

type workerRepo struct{ s *Store }

func (r *workerRepo) GetByID(_ context.Context, id string) (*models.Worker, error) {
	if err := r.s.lock("workers.GetByID"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	w, ok := r.s.data.workers[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &w, nil
}

// upsert returns the stored worker or a zero-score profile for id.
func (r *workerRepo) upsert(id string) models.Worker {
	w, ok := r.s.data.workers[id]
	if !ok {
		w = models.Worker{ID: id, CreatedAt: time.Now().UTC()}
	}
	return w
}

func (r *workerRepo) ApplyReputationDelta(_ context.Context, id string, change, lo, hi int) (int, int, error) {
	if err := r.s.lock("workers.ApplyReputationDelta"); err != nil {
		return 0, 0, err
	}
	defer r.s.mu.Unlock()
	w := r.upsert(id)
	before := w.Reputation
	after := before + change
	if after < lo {
		after = lo
	}
	if after > hi {
		after = hi
	}
	w.Reputation = after
	w.UpdatedAt = time.Now().UTC()
	r.s.data.workers[id] = w
	return before, after, nil
}

func (r *workerRepo) SetReputation(_ context.Context, id string, score int) error {
	if err := r.s.lock("workers.SetReputation"); err != nil {
		return err
	}
	defer r.s.mu.Unlock()
	w := r.upsert(id)
	w.Reputation = score
	w.UpdatedAt = time.Now().UTC()
	r.s.data.workers[id] = w
	return nil
}

func (r *workerRepo) IncrementCompletedJobs(_ context.Context, id string) error {
	if err := r.s.lock("workers.IncrementCompletedJobs"); err != nil {
		return err
	}
	defer r.s.mu.Unlock()
	w := r.upsert(id)
	w.CompletedJobs++
	w.UpdatedAt = time.Now().UTC()
	r.s.data.workers[id] = w
	return nil
}

func (r *workerRepo) Search(_ context.Context, filter models.WorkerFilter) ([]models.Worker, error) {
	if err := r.s.lock("workers.Search"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	out := make([]models.Worker, 0)
	for _, w := range r.s.data.workers {
		if filter.Matches(w) {
			out = append(out, w)
		}
	}
	sort.SliceStable(out, func(i, k int) bool {
		a, b := out[i], out[k]
		switch filter.Sort {
		case models.SortByCompletedJobs:
			if a.CompletedJobs != b.CompletedJobs {
				return a.CompletedJobs > b.CompletedJobs
			}
			if a.Reputation != b.Reputation {
				return a.Reputation > b.Reputation
			}
		case models.SortByNewest:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		default:
			if a.Reputation != b.Reputation {
				return a.Reputation > b.Reputation
			}
			if a.CompletedJobs != b.CompletedJobs {
				return a.CompletedJobs > b.CompletedJobs
			}
		}
		return a.ID < b.ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
