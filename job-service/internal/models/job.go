package models

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type JobStatus string

const (
	StatusPending    JobStatus = "PENDING"
	StatusAccepted   JobStatus = "ACCEPTED"
	StatusInProgress JobStatus = "IN_PROGRESS"
	StatusCompleted  JobStatus = "COMPLETED"
	StatusCancelled  JobStatus = "CANCELLED"
)

func (s JobStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type JobAction string

const (
	ActionAccept         JobAction = "ACCEPT"
	ActionStart          JobAction = "START"
	ActionWorkerComplete JobAction = "WORKER_COMPLETE"
	ActionComplete       JobAction = "COMPLETE"
	ActionCancel         JobAction = "CANCEL"

	// audit-only tags, never accepted from clients
	ActionCreate          JobAction = "CREATE"
	ActionPaymentVerified JobAction = "PAYMENT_VERIFIED"
	ActionPaymentFailed   JobAction = "PAYMENT_FAILED"
	ActionAssessed        JobAction = "REPUTATION_ASSESSED"
	ActionNoShowReported  JobAction = "NO_SHOW_REPORTED"
)

// ClientActions are the actions accepted on PATCH /api/jobs/{id}.
var ClientActions = []JobAction{ActionAccept, ActionStart, ActionWorkerComplete, ActionComplete, ActionCancel}

func ParseJobAction(raw string) (JobAction, error) {
	a := JobAction(strings.ToUpper(strings.TrimSpace(raw)))
	for _, allowed := range ClientActions {
		if a == allowed {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: unknown action %q", ErrValidation, raw)
}

type PaymentStatus string

const (
	PaymentNone    PaymentStatus = ""
	PaymentPending PaymentStatus = "PENDING"
	PaymentSuccess PaymentStatus = "SUCCESS"
)

type transition struct {
	from []JobStatus
	to   JobStatus // empty means the status is left as is
}

var transitions = map[JobAction]transition{
	ActionAccept:         {from: []JobStatus{StatusPending}, to: StatusAccepted},
	ActionStart:          {from: []JobStatus{StatusAccepted}, to: StatusInProgress},
	ActionWorkerComplete: {from: []JobStatus{StatusInProgress}},
	ActionComplete:       {from: []JobStatus{StatusInProgress}},
	ActionCancel:         {from: []JobStatus{StatusPending, StatusAccepted}, to: StatusCancelled},
}

// NextStatus returns the status a job moves to when action is applied from the
// given status. IN_PROGRESS jobs can never be cancelled.
func NextStatus(from JobStatus, action JobAction) (JobStatus, error) {
	t, ok := transitions[action]
	if !ok {
		return "", fmt.Errorf("%w: unknown action %q", ErrValidation, action)
	}
	for _, s := range t.from {
		if s == from {
			if t.to == "" {
				return from, nil
			}
			return t.to, nil
		}
	}
	return "", fmt.Errorf("%w: cannot %s a job that is %s", ErrInvalidState, action, from)
}

type Job struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CustomerID  string             `bson:"customer_id" json:"customerId"`
	WorkerID    *string            `bson:"worker_id,omitempty" json:"workerId,omitempty"`
	Description string             `bson:"description" json:"description"`
	Details     string             `bson:"details,omitempty" json:"details,omitempty"`
	Date        time.Time          `bson:"date" json:"date"`
	Time        string             `bson:"time" json:"time"`
	Location    string             `bson:"location" json:"location"`
	Charge      float64            `bson:"charge" json:"charge"`

	Status               JobStatus  `bson:"status" json:"status"`
	WorkerMarkedComplete bool       `bson:"worker_marked_complete" json:"workerMarkedComplete"`
	StartedAt            *time.Time `bson:"started_at,omitempty" json:"startedAt,omitempty"`
	CompletedAt          *time.Time `bson:"completed_at,omitempty" json:"completedAt,omitempty"`
	CancelledAt          *time.Time `bson:"cancelled_at,omitempty" json:"cancelledAt,omitempty"`
	CancelledBy          string     `bson:"cancelled_by,omitempty" json:"cancelledBy,omitempty"`
	CancelReason         string     `bson:"cancel_reason,omitempty" json:"cancelReason,omitempty"`

	StartProofPhoto  string   `bson:"start_proof_photo,omitempty" json:"startProofPhoto,omitempty"`
	StartProofGpsLat *float64 `bson:"start_proof_gps_lat,omitempty" json:"startProofGpsLat,omitempty"`
	StartProofGpsLng *float64 `bson:"start_proof_gps_lng,omitempty" json:"startProofGpsLng,omitempty"`

	PaymentStatus     PaymentStatus `bson:"payment_status,omitempty" json:"paymentStatus,omitempty"`
	RazorpayOrderID   string        `bson:"razorpay_order_id,omitempty" json:"razorpayOrderId,omitempty"`
	RazorpayPaymentID string        `bson:"razorpay_payment_id,omitempty" json:"razorpayPaymentId,omitempty"`
	RazorpaySignature string        `bson:"razorpay_signature,omitempty" json:"razorpaySignature,omitempty"`
	PlatformFee       float64       `bson:"platform_fee,omitempty" json:"platformFee,omitempty"`
	WorkerEarnings    float64       `bson:"worker_earnings,omitempty" json:"workerEarnings,omitempty"`

	ReputationAssessed       bool       `bson:"reputation_assessed" json:"reputationAssessed"`
	ReputationAssessmentType Assessment `bson:"reputation_assessment_type,omitempty" json:"reputationAssessmentType,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

func (j *Job) Validate() error {
	if j.CustomerID == "" || strings.TrimSpace(j.Description) == "" || strings.TrimSpace(j.Location) == "" || j.Date.IsZero() {
		return fmt.Errorf("%w: missing required job fields", ErrValidation)
	}
	if j.Charge <= 0 {
		return fmt.Errorf("%w: charge must be greater than 0", ErrValidation)
	}
	return nil
}

func (j *Job) AssignedWorker() string {
	if j.WorkerID == nil {
		return ""
	}
	return *j.WorkerID
}

func (j *Job) IsWorker(userID string) bool {
	return userID != "" && j.WorkerID != nil && *j.WorkerID == userID
}

func (j *Job) IsCustomer(userID string) bool {
	return userID != "" && j.CustomerID == userID
}

// IsParty reports whether the actor may read the job.
func (j *Job) IsParty(actor Actor) bool {
	return actor.Role == RoleAdmin || j.IsCustomer(actor.UserID) || j.IsWorker(actor.UserID)
}

// ValidateGPS checks a coordinate pair; boundary values are accepted.
func ValidateGPS(lat, lng *float64) error {
	if lat == nil || lng == nil {
		return fmt.Errorf("%w: startProofGpsLat and startProofGpsLng are required", ErrValidation)
	}
	if *lat < -90 || *lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range [-90, 90]", ErrValidation, *lat)
	}
	if *lng < -180 || *lng > 180 {
		return fmt.Errorf("%w: longitude %v out of range [-180, 180]", ErrValidation, *lng)
	}
	return nil
}
