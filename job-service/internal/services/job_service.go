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

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CreateJobInput struct {
	WorkerID    string
	Description string
	Details     string
	Date        time.Time
	Time        string
	Location    string
	Charge      float64
}

type ActionInput struct {
	Action          models.JobAction
	StartProofPhoto string
	GpsLat          *float64
	GpsLng          *float64
	Reason          string
}

type PaymentOrder struct {
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	KeyID    string `json:"keyId,omitempty"`
	Reused   bool   `json:"reused"`
}

type ActionResult struct {
	Job   *models.Job   `json:"job"`
	Order *PaymentOrder `json:"order,omitempty"`
}

type VerifyPaymentInput struct {
	PaymentID string
	Signature string
}

type JobService interface {
	Create(ctx context.Context, actor models.Actor, in CreateJobInput) (*models.Job, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.Job, error)
	List(ctx context.Context, actor models.Actor, status models.JobStatus) ([]models.Job, error)
	Logs(ctx context.Context, actor models.Actor, id string) ([]models.JobLog, error)
	Transactions(ctx context.Context, actor models.Actor, id string) ([]models.Transaction, error)
	PerformAction(ctx context.Context, actor models.Actor, id string, in ActionInput) (*ActionResult, error)
	VerifyPayment(ctx context.Context, actor models.Actor, id string, in VerifyPaymentInput) (*models.Job, error)
}

type PaymentSettings struct {
	Currency string
	KeyID    string
}

type jobService struct {
	store      *repository.Store
	reputation ReputationService
	gateway    PaymentGateway
	locker     JobLocker
	dispatcher *Dispatcher
	payment    PaymentSettings
	logger     *logrus.Logger
}

func NewJobService(store *repository.Store, reputation ReputationService, gateway PaymentGateway, locker JobLocker,
	dispatcher *Dispatcher, payment PaymentSettings, logger *logrus.Logger) JobService {
	if payment.Currency == "" {
		payment.Currency = "INR"
	}
	return &jobService{
		store:      store,
		reputation: reputation,
		gateway:    gateway,
		locker:     locker,
		dispatcher: dispatcher,
		payment:    payment,
		logger:     logger,
	}
}

func parseObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", models.ErrInvalidID, id)
	}
	return oid, nil
}

func (s *jobService) Create(ctx context.Context, actor models.Actor, in CreateJobInput) (*models.Job, error) {
	if actor.Role != models.RoleCustomer {
		return nil, fmt.Errorf("%w: only customers can book jobs", models.ErrForbidden)
	}
	job := &models.Job{
		CustomerID:  actor.UserID,
		Description: strings.TrimSpace(in.Description),
		Details:     in.Details,
		Date:        in.Date,
		Time:        in.Time,
		Location:    strings.TrimSpace(in.Location),
		Charge:      in.Charge,
		Status:      models.StatusPending,
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	if in.WorkerID != "" {
		if in.WorkerID == actor.UserID {
			return nil, fmt.Errorf("%w: cannot book yourself", models.ErrValidation)
		}
		eligibility := s.reputation.CanBeBooked(ctx, in.WorkerID)
		if !eligibility.Allowed {
			return nil, fmt.Errorf("%w: %s", models.ErrValidation, eligibility.Reason)
		}
		workerID := in.WorkerID
		job.WorkerID = &workerID
	}

	err := s.store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.Jobs.Create(ctx, job); err != nil {
			return err
		}
		return s.store.JobLogs.Append(ctx, models.NewJobLog(job, "", models.ActionCreate, actor.UserID, nil))
	})
	telemetry.JobActions.WithLabelValues(string(models.ActionCreate), telemetry.Result(err)).Inc()
	if err != nil {
		return nil, err
	}

	if workerID := job.AssignedWorker(); workerID != "" {
		s.dispatcher.Send(ctx, models.Notification{
			UserID:  workerID,
			Role:    models.RoleWorker,
			Title:   "New booking request",
			Message: fmt.Sprintf("You have a new job request at %s on %s", job.Location, job.Date.Format("2006-01-02")),
			Type:    models.EventJobCreated,
			JobID:   job.ID.Hex(),
		})
	}
	return job, nil
}

func (s *jobService) Get(ctx context.Context, actor models.Actor, id string) (*models.Job, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}
	job, err := s.store.Jobs.GetByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	if !job.IsParty(actor) {
		return nil, fmt.Errorf("%w: not a party to this job", models.ErrForbidden)
	}
	return job, nil
}

func (s *jobService) List(ctx context.Context, actor models.Actor, status models.JobStatus) ([]models.Job, error) {
	if status != "" && !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrValidation, status)
	}
	var (
		jobs []models.Job
		err  error
	)
	switch actor.Role {
	case models.RoleAdmin:
		return s.store.Jobs.ListByStatus(ctx, status)
	case models.RoleWorker:
		jobs, err = s.store.Jobs.ListByWorker(ctx, actor.UserID)
	default:
		jobs, err = s.store.Jobs.ListByCustomer(ctx, actor.UserID)
	}
	if err != nil || status == "" {
		return jobs, err
	}
	filtered := make([]models.Job, 0, len(jobs))
	for _, j := range jobs {
		if j.Status == status {
			filtered = append(filtered, j)
		}
	}
	return filtered, nil
}

func (s *jobService) Logs(ctx context.Context, actor models.Actor, id string) ([]models.JobLog, error) {
	job, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.store.JobLogs.ListByJob(ctx, job.ID.Hex())
}

// Transactions lists the payment and payout records of a job to its parties.
func (s *jobService) Transactions(ctx context.Context, actor models.Actor, id string) ([]models.Transaction, error) {
	job, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.store.Transactions.ListByJob(ctx, job.ID.Hex())
}

// authorize checks the caller against the action before any state check.
func (s *jobService) authorize(ctx context.Context, actor models.Actor, job *models.Job, action models.JobAction) error {
	switch action {
	case models.ActionAccept:
		if actor.Role != models.RoleWorker {
			return fmt.Errorf("%w: only workers can accept jobs", models.ErrForbidden)
		}
		if job.WorkerID != nil && !job.IsWorker(actor.UserID) {
			return fmt.Errorf("%w: job is assigned to another worker", models.ErrForbidden)
		}
		if job.WorkerID == nil {
			if job.IsCustomer(actor.UserID) {
				return fmt.Errorf("%w: cannot accept your own job", models.ErrForbidden)
			}
			if eligibility := s.reputation.CanBeBooked(ctx, actor.UserID); !eligibility.Allowed {
				return fmt.Errorf("%w: %s", models.ErrForbidden, eligibility.Reason)
			}
		}
	case models.ActionStart, models.ActionWorkerComplete:
		if !job.IsWorker(actor.UserID) {
			return fmt.Errorf("%w: only the assigned worker can %s this job", models.ErrForbidden, action)
		}
	case models.ActionComplete:
		if !job.IsCustomer(actor.UserID) {
			return fmt.Errorf("%w: only the job's customer can complete it", models.ErrForbidden)
		}
	case models.ActionCancel:
		if !job.IsCustomer(actor.UserID) && !job.IsWorker(actor.UserID) {
			return fmt.Errorf("%w: only the job's customer or worker can cancel it", models.ErrForbidden)
		}
	}
	return nil
}

func (s *jobService) PerformAction(ctx context.Context, actor models.Actor, id string, in ActionInput) (res *ActionResult, err error) {
	defer func() {
		telemetry.JobActions.WithLabelValues(string(in.Action), telemetry.Result(err)).Inc()
	}()

	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}
	unlock, err := s.locker.Lock(ctx, "job:"+id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	job, err := s.store.Jobs.GetByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, job, in.Action); err != nil {
		return nil, err
	}
	from := job.Status
	next, err := models.NextStatus(from, in.Action)
	if err != nil {
		return nil, err
	}

	if in.Action == models.ActionComplete {
		return s.initiatePayment(ctx, actor, job)
	}

	metadata := map[string]interface{}{}
	change := models.JobChange{From: from, At: time.Now().UTC()}
	if next != from {
		change.To = next
	}
	var notification models.Notification

	switch in.Action {
	case models.ActionAccept:
		if job.WorkerID == nil {
			metadata["claimed"] = true
		}
		change.AssignWorker = actor.UserID
		notification = models.Notification{
			UserID:  job.CustomerID,
			Role:    models.RoleCustomer,
			Title:   "Job accepted",
			Message: "Your job request has been accepted",
			Type:    models.EventJobAccepted,
		}
	case models.ActionStart:
		if strings.TrimSpace(in.StartProofPhoto) == "" {
			return nil, fmt.Errorf("%w: startProofPhoto is required", models.ErrValidation)
		}
		if err := models.ValidateGPS(in.GpsLat, in.GpsLng); err != nil {
			return nil, err
		}
		change.Start = &models.StartProof{Photo: in.StartProofPhoto, GpsLat: *in.GpsLat, GpsLng: *in.GpsLng}
		metadata["startProofPhoto"] = in.StartProofPhoto
		metadata["gpsLat"] = *in.GpsLat
		metadata["gpsLng"] = *in.GpsLng
		notification = models.Notification{
			UserID:  job.CustomerID,
			Role:    models.RoleCustomer,
			Title:   "Work started",
			Message: "The worker has arrived and started the job",
			Type:    models.EventJobStarted,
		}
	case models.ActionWorkerComplete:
		if job.WorkerMarkedComplete {
			return nil, models.ErrAlreadyMarked
		}
		change.MarkWorkerComplete = true
		notification = models.Notification{
			UserID:  job.CustomerID,
			Role:    models.RoleCustomer,
			Title:   "Payment due",
			Message: fmt.Sprintf("The worker marked the job as done. Please pay ₹%.2f to complete it", job.Charge),
			Type:    models.EventPaymentDue,
		}
	case models.ActionCancel:
		change.Cancel = &models.Cancellation{By: actor.UserID, Reason: strings.TrimSpace(in.Reason)}
		metadata["reason"] = change.Cancel.Reason
		other, role := job.AssignedWorker(), models.RoleWorker
		if job.IsWorker(actor.UserID) {
			other, role = job.CustomerID, models.RoleCustomer
		}
		notification = models.Notification{
			UserID:  other,
			Role:    role,
			Title:   "Job cancelled",
			Message: "The job has been cancelled",
			Type:    models.EventJobCancelled,
		}
	}
	change.Apply(job)

	err = s.store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.Jobs.ApplyChange(ctx, job.ID, change); err != nil {
			return err
		}
		return s.store.JobLogs.Append(ctx, models.NewJobLog(job, from, in.Action, actor.UserID, metadata))
	})
	if errors.Is(err, models.ErrStaleWrite) {
		return nil, s.staleActionError(ctx, job.ID, in.Action)
	}
	if err != nil {
		return nil, err
	}

	notification.JobID = job.ID.Hex()
	s.dispatcher.Send(ctx, notification)
	return &ActionResult{Job: job}, nil
}

// staleActionError explains a lost conditional write. A concurrent
// WORKER_COMPLETE that won the race surfaces as AlreadyMarked.
func (s *jobService) staleActionError(ctx context.Context, id primitive.ObjectID, action models.JobAction) error {
	if action == models.ActionWorkerComplete {
		if current, err := s.store.Jobs.GetByID(ctx, id); err == nil && current.WorkerMarkedComplete {
			return models.ErrAlreadyMarked
		}
	}
	return fmt.Errorf("%w: job changed while %s was in progress", models.ErrConflict, action)
}

// initiatePayment returns the job's existing order or creates exactly one.
func (s *jobService) initiatePayment(ctx context.Context, actor models.Actor, job *models.Job) (*ActionResult, error) {
	amount := models.ToMinorUnits(job.Charge)
	order := &PaymentOrder{Amount: amount, Currency: s.payment.Currency, KeyID: s.payment.KeyID}

	if job.RazorpayOrderID != "" {
		order.OrderID = job.RazorpayOrderID
		order.Reused = true
		if err := s.store.JobLogs.Append(ctx, models.NewJobLog(job, job.Status, models.ActionComplete, actor.UserID, map[string]interface{}{
			"orderId": order.OrderID,
			"reused":  true,
		})); err != nil {
			return nil, err
		}
		return &ActionResult{Job: job, Order: order}, nil
	}

	orderID, err := s.gateway.CreateOrder(ctx, amount, s.payment.Currency, uuid.NewString(), map[string]string{
		"job_id": job.ID.Hex(),
	})
	if err != nil {
		utils.LogError(s.logger, "services", "initiatePayment", "create gateway order", job.ID.Hex(), err)
		return nil, fmt.Errorf("create payment order: %w", err)
	}

	var set bool
	err = s.store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		set, err = s.store.Jobs.SetPaymentOrder(ctx, job.ID, orderID)
		if err != nil || !set {
			return err
		}
		return s.store.JobLogs.Append(ctx, models.NewJobLog(job, job.Status, models.ActionComplete, actor.UserID, map[string]interface{}{
			"orderId": orderID,
			"amount":  amount,
		}))
	})
	if err != nil {
		return nil, err
	}

	if !set {
		// a concurrent request stored its order first
		current, err := s.store.Jobs.GetByID(ctx, job.ID)
		if err != nil {
			return nil, err
		}
		if current.RazorpayOrderID == "" {
			return nil, fmt.Errorf("%w: job is %s", models.ErrInvalidState, current.Status)
		}
		order.OrderID = current.RazorpayOrderID
		order.Reused = true
		return &ActionResult{Job: current, Order: order}, nil
	}

	job.RazorpayOrderID = orderID
	job.PaymentStatus = models.PaymentPending
	order.OrderID = orderID
	return &ActionResult{Job: job, Order: order}, nil
}

func (s *jobService) VerifyPayment(ctx context.Context, actor models.Actor, id string, in VerifyPaymentInput) (job *models.Job, err error) {
	defer func() {
		result := "ok"
		switch {
		case errors.Is(err, models.ErrPaymentVerificationFailed):
			result = "signature_mismatch"
		case err != nil:
			result = "error"
		}
		telemetry.PaymentVerifications.WithLabelValues(result).Inc()
	}()

	if strings.TrimSpace(in.PaymentID) == "" || strings.TrimSpace(in.Signature) == "" {
		return nil, fmt.Errorf("%w: razorpayPaymentId and razorpaySignature are required", models.ErrValidation)
	}
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}
	unlock, err := s.locker.Lock(ctx, "job:"+id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	job, err = s.store.Jobs.GetByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	if !job.IsCustomer(actor.UserID) {
		return nil, fmt.Errorf("%w: only the job's customer can pay for it", models.ErrForbidden)
	}
	if job.Status == models.StatusCompleted && job.PaymentStatus == models.PaymentSuccess {
		if job.RazorpayPaymentID == in.PaymentID {
			return job, nil
		}
		return nil, fmt.Errorf("%w: job is already paid", models.ErrInvalidState)
	}
	if job.Status != models.StatusInProgress {
		return nil, fmt.Errorf("%w: cannot settle a job that is %s", models.ErrInvalidState, job.Status)
	}
	if job.RazorpayOrderID == "" {
		return nil, fmt.Errorf("%w: payment has not been initiated", models.ErrInvalidState)
	}
	workerID := job.AssignedWorker()

	if !s.gateway.VerifySignature(job.RazorpayOrderID, in.PaymentID, in.Signature) {
		entry := models.NewJobLog(job, job.Status, models.ActionPaymentFailed, actor.UserID, map[string]interface{}{
			"orderId":   job.RazorpayOrderID,
			"paymentId": in.PaymentID,
		})
		if err := s.store.JobLogs.Append(ctx, entry); err != nil {
			utils.LogError(s.logger, "services", "VerifyPayment", "append PAYMENT_FAILED log", job.ID.Hex(), err)
		}
		return nil, fmt.Errorf("%w: signature does not match order %s", models.ErrPaymentVerificationFailed, job.RazorpayOrderID)
	}

	settlement := models.ComputeSettlement(job.Charge)
	now := time.Now().UTC()
	change := models.JobChange{
		From: models.StatusInProgress,
		To:   models.StatusCompleted,
		Payment: &models.PaymentSettlement{
			OrderID:        job.RazorpayOrderID,
			PaymentID:      in.PaymentID,
			Signature:      in.Signature,
			PlatformFee:    settlement.PlatformFee,
			WorkerEarnings: settlement.WorkerEarnings,
		},
		At: now,
	}
	change.Apply(job)
	jobID := job.ID.Hex()

	err = s.store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.Jobs.ApplyChange(ctx, job.ID, change); err != nil {
			return err
		}
		if err := s.store.JobLogs.Append(ctx, models.NewJobLog(job, models.StatusInProgress, models.ActionPaymentVerified, actor.UserID, map[string]interface{}{
			"orderId":        job.RazorpayOrderID,
			"paymentId":      in.PaymentID,
			"amount":         settlement.AmountMinor,
			"platformFee":    settlement.PlatformFee,
			"workerEarnings": settlement.WorkerEarnings,
		})); err != nil {
			return err
		}
		if err := s.store.Transactions.Create(ctx, &models.Transaction{
			UserID:    job.CustomerID,
			JobID:     jobID,
			Amount:    job.Charge,
			Type:      models.TransactionPayment,
			PaymentID: in.PaymentID,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		return s.store.Transactions.Create(ctx, &models.Transaction{
			UserID:    workerID,
			JobID:     jobID,
			Amount:    settlement.WorkerEarnings,
			Type:      models.TransactionPayout,
			PaymentID: in.PaymentID,
			CreatedAt: now,
		})
	})
	if errors.Is(err, models.ErrStaleWrite) || errors.Is(err, models.ErrAlreadyExists) {
		return nil, fmt.Errorf("%w: job was settled by another request", models.ErrConflict)
	}
	if err != nil {
		return nil, err
	}

	if err := s.reputation.RecordCompletion(ctx, workerID, jobID, actor.UserID); err != nil {
		utils.LogWarn(s.logger, "services", "VerifyPayment", "record completion", map[string]string{
			"job_id":    jobID,
			"worker_id": workerID,
		}, err)
	} else {
		telemetry.ReputationDeltas.WithLabelValues(string(models.ReasonJobCompleted)).Inc()
	}

	s.dispatcher.Send(ctx,
		models.Notification{
			UserID:  workerID,
			Role:    models.RoleWorker,
			Title:   "Payment received",
			Message: fmt.Sprintf("The customer paid for the job. Your earnings: ₹%.2f", settlement.WorkerEarnings),
			Type:    models.EventPaymentReceived,
			JobID:   jobID,
		},
		models.Notification{
			UserID:  job.CustomerID,
			Role:    models.RoleCustomer,
			Title:   "Payment successful",
			Message: "Your payment was verified and the job is complete",
			Type:    models.EventPaymentReceived,
			JobID:   jobID,
		},
	)
	return job, nil
}
