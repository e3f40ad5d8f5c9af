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

	"github.com/sirupsen/logrus"
)

// ReportRef points at a report either by its own id or by its job's id.
type ReportRef struct {
	ID    string
	JobID string
}

type FileReportInput struct {
	JobID    string
	Reason   string
	Evidence string
}

type ResolveInput struct {
	ReportID    string
	Decision    models.ReportStatus
	Resolution  string
	FavorWorker bool
}

type ResolveResult struct {
	Report           *models.NoShowReport  `json:"report"`
	ReputationChange *models.ReputationLog `json:"reputationChange,omitempty"`
}

type NoShowService interface {
	File(ctx context.Context, actor models.Actor, in FileReportInput) (*models.NoShowReport, error)
	Dispute(ctx context.Context, actor models.Actor, ref ReportRef, reply, evidence string) (*models.NoShowReport, error)
	AcceptPenalty(ctx context.Context, actor models.Actor, ref ReportRef) (*ResolveResult, error)
	AdminResolve(ctx context.Context, actor models.Actor, in ResolveInput) (*ResolveResult, error)
	MarkUnderReview(ctx context.Context, actor models.Actor, reportID string) (*models.NoShowReport, error)
	List(ctx context.Context, actor models.Actor, status models.ReportStatus) ([]models.NoShowReport, error)
	Get(ctx context.Context, actor models.Actor, ref ReportRef) (*models.NoShowReport, error)
}

type noShowService struct {
	store      *repository.Store
	reputation ReputationService
	dispatcher *Dispatcher
	logger     *logrus.Logger
}

// NewNoShowService applies reputation deltas through reputation inside the
// report's store transaction, so both commit together.
func NewNoShowService(store *repository.Store, reputation ReputationService, dispatcher *Dispatcher, logger *logrus.Logger) NoShowService {
	return &noShowService{store: store, reputation: reputation, dispatcher: dispatcher, logger: logger}
}

func (s *noShowService) load(ctx context.Context, ref ReportRef) (*models.NoShowReport, error) {
	if ref.ID != "" {
		oid, err := parseObjectID(ref.ID)
		if err != nil {
			return nil, err
		}
		return s.store.NoShows.GetByID(ctx, oid)
	}
	if ref.JobID != "" {
		if _, err := parseObjectID(ref.JobID); err != nil {
			return nil, err
		}
		return s.store.NoShows.GetByJobID(ctx, ref.JobID)
	}
	return nil, fmt.Errorf("%w: report id or job id is required", models.ErrValidation)
}

func (s *noShowService) File(ctx context.Context, actor models.Actor, in FileReportInput) (*models.NoShowReport, error) {
	if strings.TrimSpace(in.Reason) == "" {
		return nil, fmt.Errorf("%w: reason is required", models.ErrValidation)
	}
	oid, err := parseObjectID(in.JobID)
	if err != nil {
		return nil, err
	}
	job, err := s.store.Jobs.GetByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	if !job.IsCustomer(actor.UserID) {
		return nil, fmt.Errorf("%w: only the job's customer can report a no-show", models.ErrForbidden)
	}
	if !models.CanFileNoShow(job.Status) {
		return nil, fmt.Errorf("%w: cannot report a no-show on a job that is %s", models.ErrInvalidState, job.Status)
	}
	workerID := job.AssignedWorker()
	if workerID == "" {
		return nil, fmt.Errorf("%w: job has no assigned worker", models.ErrInvalidState)
	}
	if existing, err := s.store.NoShows.GetByJobID(ctx, in.JobID); err == nil {
		return nil, fmt.Errorf("%w: report %s already filed for this job", models.ErrAlreadyExists, existing.ID.Hex())
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	report := &models.NoShowReport{
		JobID:      in.JobID,
		CustomerID: actor.UserID,
		WorkerID:   workerID,
		Status:     models.ReportPending,
		Reason:     strings.TrimSpace(in.Reason),
		Evidence:   strings.TrimSpace(in.Evidence),
	}
	err = s.store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.NoShows.Create(ctx, report); err != nil {
			return err
		}
		return s.store.JobLogs.Append(ctx, models.NewJobLog(job, job.Status, models.ActionNoShowReported, actor.UserID, map[string]interface{}{
			"reportId": report.ID.Hex(),
			"reason":   report.Reason,
		}))
	})
	if err != nil {
		return nil, err
	}
	telemetry.NoShowReports.WithLabelValues("filed").Inc()

	s.dispatcher.Send(ctx, models.Notification{
		UserID:  workerID,
		Role:    models.RoleWorker,
		Title:   "No-show reported",
		Message: "A customer reported that you did not show up. You can dispute or accept the report",
		Type:    models.EventNoShowReported,
		JobID:   in.JobID,
	})
	return report, nil
}

func (s *noShowService) Dispute(ctx context.Context, actor models.Actor, ref ReportRef, reply, evidence string) (*models.NoShowReport, error) {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return nil, fmt.Errorf("%w: workerReply is required", models.ErrValidation)
	}
	report, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if actor.UserID == "" || report.WorkerID != actor.UserID {
		return nil, fmt.Errorf("%w: only the reported worker can dispute", models.ErrForbidden)
	}
	if !models.StatusIn(report.Status, models.DisputableStatuses) {
		return nil, fmt.Errorf("%w: cannot dispute a report that is %s", models.ErrInvalidState, report.Status)
	}

	report.WorkerReply = reply
	if evidence = strings.TrimSpace(evidence); evidence != "" {
		if report.Evidence != "" {
			report.Evidence += "\n" + evidence
		} else {
			report.Evidence = evidence
		}
	}
	report.Status = models.ReportDisputed
	if err := s.updateReport(ctx, report, models.DisputableStatuses); err != nil {
		return nil, err
	}
	telemetry.NoShowReports.WithLabelValues("disputed").Inc()

	s.dispatcher.Send(ctx, models.Notification{
		UserID:  report.CustomerID,
		Role:    models.RoleCustomer,
		Title:   "No-show report disputed",
		Message: "The worker disputed your no-show report. An administrator will review it",
		Type:    models.EventNoShowDisputed,
		JobID:   report.JobID,
	})
	return report, nil
}

func (s *noShowService) AcceptPenalty(ctx context.Context, actor models.Actor, ref ReportRef) (*ResolveResult, error) {
	report, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if actor.UserID == "" || report.WorkerID != actor.UserID {
		return nil, fmt.Errorf("%w: only the reported worker can accept the penalty", models.ErrForbidden)
	}
	if !models.StatusIn(report.Status, models.SelfResolvableStatuses) {
		return nil, fmt.Errorf("%w: cannot accept a report that is %s", models.ErrInvalidState, report.Status)
	}

	now := time.Now().UTC()
	report.Status = models.ReportApproved
	report.Resolution = "Worker accepted the no-show penalty"
	report.ResolvedBy = actor.UserID
	report.ResolvedAt = &now

	result := &ResolveResult{Report: report}
	err = s.store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.NoShows.UpdateIfStatus(ctx, report, models.SelfResolvableStatuses); err != nil {
			return err
		}
		entry, err := s.penalize(ctx, report, models.ReasonCustomerRatedNoShow, actor.UserID, "worker accepted no-show report")
		result.ReputationChange = entry
		return err
	})
	if err != nil {
		return nil, staleAsConflict(err)
	}
	telemetry.NoShowReports.WithLabelValues("accepted").Inc()

	s.dispatcher.Send(ctx, models.Notification{
		UserID:  report.CustomerID,
		Role:    models.RoleCustomer,
		Title:   "No-show report accepted",
		Message: "The worker accepted your no-show report",
		Type:    models.EventNoShowAccepted,
		JobID:   report.JobID,
	})
	return result, nil
}

func (s *noShowService) AdminResolve(ctx context.Context, actor models.Actor, in ResolveInput) (*ResolveResult, error) {
	if actor.Role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: admin role required", models.ErrForbidden)
	}
	if in.Decision != models.ReportApproved && in.Decision != models.ReportRejected {
		return nil, fmt.Errorf("%w: resolution status must be APPROVED or REJECTED", models.ErrValidation)
	}
	if strings.TrimSpace(in.Resolution) == "" {
		return nil, fmt.Errorf("%w: resolution is required", models.ErrValidation)
	}
	report, err := s.load(ctx, ReportRef{ID: in.ReportID})
	if err != nil {
		return nil, err
	}
	if !models.StatusIn(report.Status, models.AdminResolvableStatuses) {
		return nil, fmt.Errorf("%w: cannot resolve a report that is %s", models.ErrInvalidState, report.Status)
	}
	expected := report.Status

	now := time.Now().UTC()
	report.Status = in.Decision
	report.Resolution = strings.TrimSpace(in.Resolution)
	report.ResolvedBy = actor.UserID
	report.ResolvedAt = &now
	report.FavorWorker = in.Decision == models.ReportRejected && in.FavorWorker

	result := &ResolveResult{Report: report}
	err = s.store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.NoShows.UpdateIfStatus(ctx, report, []models.ReportStatus{expected}); err != nil {
			return err
		}
		switch {
		case in.Decision == models.ReportApproved:
			entry, err := s.penalize(ctx, report, models.ReasonNoShow, actor.UserID, "no-show report approved: "+report.Resolution)
			result.ReputationChange = entry
			return err
		case report.FavorWorker:
			entry, err := s.reputation.ApplyDelta(ctx, DeltaRequest{
				WorkerID:    report.WorkerID,
				Change:      models.FavorWorkerRestoreDelta,
				Reason:      models.ReasonDisputeResolvedWorker,
				JobID:       report.JobID,
				Description: "no-show report rejected in worker's favor: " + report.Resolution,
				CreatedBy:   actor.UserID,
			})
			if err != nil {
				return err
			}
			result.ReputationChange = entry
		}
		return nil
	})
	if err != nil {
		return nil, staleAsConflict(err)
	}
	telemetry.NoShowReports.WithLabelValues(strings.ToLower(string(in.Decision))).Inc()

	customerMsg, workerMsg := "Your no-show report was approved", "A no-show report against you was approved and a penalty applied"
	if in.Decision == models.ReportRejected {
		customerMsg, workerMsg = "Your no-show report was rejected", "A no-show report against you was rejected"
		if report.FavorWorker {
			workerMsg += " and your reputation was restored"
		}
	}
	s.dispatcher.Send(ctx,
		models.Notification{
			UserID:   report.CustomerID,
			Role:     models.RoleCustomer,
			Title:    "No-show report resolved",
			Message:  customerMsg + ": " + report.Resolution,
			Type:     models.EventNoShowResolved,
			JobID:    report.JobID,
			Metadata: map[string]string{"status": string(report.Status)},
		},
		models.Notification{
			UserID:   report.WorkerID,
			Role:     models.RoleWorker,
			Title:    "No-show report resolved",
			Message:  workerMsg + ": " + report.Resolution,
			Type:     models.EventNoShowResolved,
			JobID:    report.JobID,
			Metadata: map[string]string{"status": string(report.Status)},
		},
	)
	return result, nil
}

// penalize applies the no-show penalty unless the job was already penalized
// through the customer's assessment.
func (s *noShowService) penalize(ctx context.Context, report *models.NoShowReport, reason models.ReputationReason, actorID, description string) (*models.ReputationLog, error) {
	entry, err := s.reputation.ApplyDelta(ctx, DeltaRequest{
		WorkerID:    report.WorkerID,
		Change:      models.NoShowPenalty,
		Reason:      reason,
		JobID:       report.JobID,
		Description: description,
		CreatedBy:   actorID,
	})
	if errors.Is(err, models.ErrDuplicateReputationEvent) {
		s.logger.WithFields(logrus.Fields{
			"job_id":    report.JobID,
			"worker_id": report.WorkerID,
		}).Info("no-show penalty already applied for job")
		return nil, nil
	}
	return entry, err
}

func (s *noShowService) MarkUnderReview(ctx context.Context, actor models.Actor, reportID string) (*models.NoShowReport, error) {
	if actor.Role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: admin role required", models.ErrForbidden)
	}
	report, err := s.load(ctx, ReportRef{ID: reportID})
	if err != nil {
		return nil, err
	}
	if !models.StatusIn(report.Status, models.ReviewableStatuses) {
		return nil, fmt.Errorf("%w: cannot review a report that is %s", models.ErrInvalidState, report.Status)
	}
	report.Status = models.ReportUnderReview
	if err := s.updateReport(ctx, report, models.ReviewableStatuses); err != nil {
		return nil, err
	}
	telemetry.NoShowReports.WithLabelValues("under_review").Inc()

	for _, n := range []models.Notification{
		{UserID: report.CustomerID, Role: models.RoleCustomer},
		{UserID: report.WorkerID, Role: models.RoleWorker},
	} {
		n.Title = "No-show report under review"
		n.Message = "An administrator is reviewing the no-show report"
		n.Type = models.EventNoShowUnderReview
		n.JobID = report.JobID
		s.dispatcher.Send(ctx, n)
	}
	return report, nil
}

func (s *noShowService) updateReport(ctx context.Context, report *models.NoShowReport, expected []models.ReportStatus) error {
	return staleAsConflict(s.store.NoShows.UpdateIfStatus(ctx, report, expected))
}

func staleAsConflict(err error) error {
	if errors.Is(err, models.ErrStaleWrite) {
		return fmt.Errorf("%w: report changed by another request", models.ErrConflict)
	}
	return err
}

func (s *noShowService) List(ctx context.Context, actor models.Actor, status models.ReportStatus) ([]models.NoShowReport, error) {
	if status != "" && !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown report status %q", models.ErrValidation, status)
	}
	filter := models.NoShowFilter{Status: status}
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleWorker:
		filter.WorkerID = actor.UserID
	case models.RoleCustomer:
		filter.CustomerID = actor.UserID
	default:
		return nil, models.ErrForbidden
	}
	return s.store.NoShows.List(ctx, filter)
}

func (s *noShowService) Get(ctx context.Context, actor models.Actor, ref ReportRef) (*models.NoShowReport, error) {
	report, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin && report.CustomerID != actor.UserID && report.WorkerID != actor.UserID {
		return nil, fmt.Errorf("%w: not a party to this report", models.ErrForbidden)
	}
	return report, nil
}
