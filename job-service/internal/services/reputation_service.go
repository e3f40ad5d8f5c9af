package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"handyman-app/job-service/internal/models"
	"handyman-app/job-service/internal/repository"
	"handyman-app/job-service/internal/telemetry"
	"handyman-app/job-service/internal/utils"

	"github.com/sirupsen/logrus"
)

const maxAdminAdjustment = 150

type DeltaRequest struct {
	WorkerID    string
	Change      int
	Reason      models.ReputationReason
	JobID       string
	Description string
	CreatedBy   string
}

type BookingEligibility struct {
	Allowed    bool   `json:"allowed"`
	Reputation int    `json:"reputation"`
	Reason     string `json:"reason,omitempty"`
}

type ReputationSummary struct {
	WorkerID      string          `json:"workerId"`
	Reputation    int             `json:"reputation"`
	CompletedJobs int             `json:"completedJobs"`
	Category      models.Category `json:"category"`
	CanBeBooked   bool            `json:"canBeBooked"`
	Reason        string          `json:"reason,omitempty"`
}

type AssessmentResult struct {
	JobID      string            `json:"jobId"`
	WorkerID   string            `json:"workerId"`
	Assessment models.Assessment `json:"assessment"`
	Change     int               `json:"change"`
	Applied    bool              `json:"applied"`
	Reputation int               `json:"reputation"`
}

type ReconcileResult struct {
	WorkerID   string `json:"workerId"`
	Cached     int    `json:"cached"`
	Replayed   int    `json:"replayed"`
	LedgerSum  int    `json:"ledgerSum"`
	Entries    int    `json:"entries"`
	Consistent bool   `json:"consistent"`
	Repaired   bool   `json:"repaired"`
}

type ReputationService interface {
	GetReputation(ctx context.Context, workerID string) (int, error)
	// ApplyDelta clamps and records a delta as one unit. When called with a
	// ctx from an open store transaction it joins that transaction.
	ApplyDelta(ctx context.Context, req DeltaRequest) (*models.ReputationLog, error)
	CanBeBooked(ctx context.Context, workerID string) BookingEligibility
	AssessByCustomer(ctx context.Context, actor models.Actor, jobID string, assessment models.Assessment) (*AssessmentResult, error)
	// RecordCompletion credits a settled job to the worker once.
	RecordCompletion(ctx context.Context, workerID, jobID, actorID string) error
	Summary(ctx context.Context, workerID string) (*ReputationSummary, error)
	Logs(ctx context.Context, workerID string, limit int) ([]models.ReputationLog, error)
	Reconcile(ctx context.Context, workerID string, repair bool) (*ReconcileResult, error)
	AdminAdjust(ctx context.Context, actor models.Actor, workerID string, change int, reason string) (*models.ReputationLog, error)
}

type reputationService struct {
	store      *repository.Store
	dispatcher *Dispatcher
	logger     *logrus.Logger
}

func NewReputationService(store *repository.Store, dispatcher *Dispatcher, logger *logrus.Logger) ReputationService {
	return &reputationService{store: store, dispatcher: dispatcher, logger: logger}
}

func (s *reputationService) GetReputation(ctx context.Context, workerID string) (int, error) {
	w, err := s.store.Workers.GetByID(ctx, workerID)
	if errors.Is(err, models.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return w.Reputation, nil
}

func (s *reputationService) ApplyDelta(ctx context.Context, req DeltaRequest) (*models.ReputationLog, error) {
	if strings.TrimSpace(req.WorkerID) == "" {
		return nil, fmt.Errorf("%w: workerId is required", models.ErrValidation)
	}
	if req.Change == 0 {
		return nil, fmt.Errorf("%w: change must not be 0", models.ErrValidation)
	}

	var entry *models.ReputationLog
	err := s.store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		entry, err = s.applyDeltaTx(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	telemetry.ReputationDeltas.WithLabelValues(string(req.Reason)).Inc()
	return entry, nil
}

// applyDeltaTx must run inside a store transaction.
func (s *reputationService) applyDeltaTx(ctx context.Context, req DeltaRequest) (*models.ReputationLog, error) {
	causeKey := req.Reason.CauseKey()
	if req.JobID == "" {
		causeKey = ""
	}
	if causeKey != "" {
		exists, err := s.store.Reputation.ExistsForCause(ctx, req.JobID, causeKey)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("%w: job %s already produced %s", models.ErrDuplicateReputationEvent, req.JobID, causeKey)
		}
	}

	before, after, err := s.store.Workers.ApplyReputationDelta(ctx, req.WorkerID, req.Change, models.MinReputation, models.MaxReputation)
	if err != nil {
		return nil, fmt.Errorf("apply reputation delta: %w", err)
	}

	entry := &models.ReputationLog{
		WorkerID:    req.WorkerID,
		JobID:       req.JobID,
		Change:      req.Change,
		Reason:      req.Reason,
		CauseKey:    causeKey,
		Description: req.Description,
		CreatedBy:   req.CreatedBy,
		Metadata:    models.ReputationSnapshot{Before: before, After: after},
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.Reputation.Append(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *reputationService) CanBeBooked(ctx context.Context, workerID string) BookingEligibility {
	score, err := s.GetReputation(ctx, workerID)
	if err != nil {
		// a failed lookup never blocks a booking
		utils.LogWarn(s.logger, "services", "CanBeBooked", "reputation lookup failed, allowing booking", workerID, err)
		return BookingEligibility{Allowed: true}
	}
	if !models.IsBookable(score) {
		return BookingEligibility{
			Allowed:    false,
			Reputation: score,
			Reason:     fmt.Sprintf("worker reputation %d is below the booking threshold of %d", score, models.BookingThreshold),
		}
	}
	return BookingEligibility{Allowed: true, Reputation: score}
}

func (s *reputationService) AssessByCustomer(ctx context.Context, actor models.Actor, jobID string, assessment models.Assessment) (*AssessmentResult, error) {
	id, err := parseObjectID(jobID)
	if err != nil {
		return nil, err
	}
	job, err := s.store.Jobs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !job.IsCustomer(actor.UserID) {
		return nil, fmt.Errorf("%w: only the job's customer can assess the worker", models.ErrForbidden)
	}
	workerID := job.AssignedWorker()
	if workerID == "" {
		return nil, fmt.Errorf("%w: job has no assigned worker", models.ErrInvalidState)
	}
	switch job.Status {
	case models.StatusInProgress, models.StatusCompleted, models.StatusCancelled:
	default:
		return nil, fmt.Errorf("%w: cannot assess a job that is %s", models.ErrInvalidState, job.Status)
	}
	if job.ReputationAssessed {
		return nil, models.ErrAlreadyAssessed
	}

	result := &AssessmentResult{
		JobID:      jobID,
		WorkerID:   workerID,
		Assessment: assessment,
		Change:     assessment.Delta(),
	}
	err = s.store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		marked, err := s.store.Jobs.MarkReputationAssessed(ctx, id, assessment)
		if err != nil {
			return err
		}
		if !marked {
			return models.ErrAlreadyAssessed
		}
		if result.Change != 0 {
			entry, err := s.applyDeltaTx(ctx, DeltaRequest{
				WorkerID:    workerID,
				Change:      result.Change,
				Reason:      assessment.Reason(),
				JobID:       jobID,
				Description: "customer assessment: " + string(assessment),
				CreatedBy:   actor.UserID,
			})
			switch {
			case errors.Is(err, models.ErrDuplicateReputationEvent):
				// an approved no-show report already penalized this job
			case err != nil:
				return err
			default:
				result.Applied = true
				result.Reputation = entry.Metadata.After
			}
		}
		jobLog := models.NewJobLog(job, job.Status, models.ActionAssessed, actor.UserID, map[string]interface{}{
			"assessment": assessment,
			"change":     result.Change,
			"applied":    result.Applied,
		})
		return s.store.JobLogs.Append(ctx, jobLog)
	})
	if err != nil {
		return nil, err
	}
	if result.Applied {
		telemetry.ReputationDeltas.WithLabelValues(string(assessment.Reason())).Inc()
	} else if score, err := s.GetReputation(ctx, workerID); err == nil {
		result.Reputation = score
	}
	return result, nil
}

func (s *reputationService) RecordCompletion(ctx context.Context, workerID, jobID, actorID string) error {
	return s.store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.applyDeltaTx(ctx, DeltaRequest{
			WorkerID:    workerID,
			Change:      models.JobCompletedDelta,
			Reason:      models.ReasonJobCompleted,
			JobID:       jobID,
			Description: "job completed and paid",
			CreatedBy:   actorID,
		}); err != nil {
			return err
		}
		return s.store.Workers.IncrementCompletedJobs(ctx, workerID)
	})
}

func (s *reputationService) Summary(ctx context.Context, workerID string) (*ReputationSummary, error) {
	if strings.TrimSpace(workerID) == "" {
		return nil, fmt.Errorf("%w: workerId is required", models.ErrValidation)
	}
	summary := &ReputationSummary{WorkerID: workerID}
	w, err := s.store.Workers.GetByID(ctx, workerID)
	switch {
	case errors.Is(err, models.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		summary.Reputation = w.Reputation
		summary.CompletedJobs = w.CompletedJobs
	}
	summary.Category = models.Categorize(summary.Reputation, summary.CompletedJobs)
	summary.CanBeBooked = models.IsBookable(summary.Reputation)
	if !summary.CanBeBooked {
		summary.Reason = fmt.Sprintf("worker reputation %d is below the booking threshold of %d", summary.Reputation, models.BookingThreshold)
	}
	return summary, nil
}

func (s *reputationService) Logs(ctx context.Context, workerID string, limit int) ([]models.ReputationLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.Reputation.ListByWorker(ctx, workerID, limit)
}

func (s *reputationService) Reconcile(ctx context.Context, workerID string, repair bool) (*ReconcileResult, error) {
	logs, err := s.store.Reputation.Replay(ctx, workerID)
	if err != nil {
		return nil, err
	}
	cached, err := s.GetReputation(ctx, workerID)
	if err != nil {
		return nil, err
	}
	res := &ReconcileResult{
		WorkerID: workerID,
		Cached:   cached,
		Replayed: models.ReplayReputation(logs),
		Entries:  len(logs),
	}
	for _, l := range logs {
		res.LedgerSum += l.Change
	}
	res.Consistent = res.Cached == res.Replayed
	if !res.Consistent && repair {
		if err := s.store.Workers.SetReputation(ctx, workerID, res.Replayed); err != nil {
			return nil, err
		}
		res.Repaired = true
		s.logger.WithFields(logrus.Fields{
			"worker_id": workerID,
			"cached":    res.Cached,
			"replayed":  res.Replayed,
		}).Warn("reputation scalar rewritten from ledger")
	}
	return res, nil
}

func (s *reputationService) AdminAdjust(ctx context.Context, actor models.Actor, workerID string, change int, reason string) (*models.ReputationLog, error) {
	if actor.Role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: admin role required", models.ErrForbidden)
	}
	if change == 0 || change < -maxAdminAdjustment || change > maxAdminAdjustment {
		return nil, fmt.Errorf("%w: change must be non-zero and within [-%d, %d]", models.ErrValidation, maxAdminAdjustment, maxAdminAdjustment)
	}
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: reason is required", models.ErrValidation)
	}
	entry, err := s.ApplyDelta(ctx, DeltaRequest{
		WorkerID:    workerID,
		Change:      change,
		Reason:      models.ReasonAdminOverride,
		Description: reason,
		CreatedBy:   actor.UserID,
	})
	if err != nil {
		return nil, err
	}
	s.dispatcher.Send(ctx, models.Notification{
		UserID:  workerID,
		Role:    models.RoleWorker,
		Title:   "Reputation adjusted",
		Message: fmt.Sprintf("An administrator changed your reputation by %+d: %s", change, reason),
		Type:    models.EventReputationAdjusted,
		Metadata: map[string]string{
			"before": fmt.Sprint(entry.Metadata.Before),
			"after":  fmt.Sprint(entry.Metadata.After),
		},
	})
	return entry, nil
}
