package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MinReputation = -50
	MaxReputation = 100

	// Workers strictly below this score cannot be booked.
	BookingThreshold = -5

	TopRatedThreshold = 20
	ReliableThreshold = 5

	JobCompletedDelta       = 1
	NoShowPenalty           = -1
	FavorWorkerRestoreDelta = 1
)

type ReputationReason string

const (
	ReasonJobCompleted          ReputationReason = "JOB_COMPLETED"
	ReasonNoShow                ReputationReason = "NO_SHOW"
	ReasonCustomerRatedOnTime   ReputationReason = "CUSTOMER_RATED_ON_TIME"
	ReasonCustomerRatedLate     ReputationReason = "CUSTOMER_RATED_LATE"
	ReasonCustomerRatedNoShow   ReputationReason = "CUSTOMER_RATED_NO_SHOW"
	ReasonAdminOverride         ReputationReason = "ADMIN_OVERRIDE"
	ReasonDisputeResolvedWorker ReputationReason = "DISPUTE_RESOLVED_FAVOR_WORKER"
)

// CauseKey groups reasons that describe the same real-world cause so a job
// can produce each kind of reputation event at most once.
func (r ReputationReason) CauseKey() string {
	switch r {
	case ReasonNoShow, ReasonCustomerRatedNoShow:
		return "NO_SHOW"
	case ReasonCustomerRatedOnTime, ReasonCustomerRatedLate:
		return "CUSTOMER_ASSESSMENT"
	case ReasonAdminOverride:
		return ""
	default:
		return string(r)
	}
}

type Assessment string

const (
	AssessmentOnTime Assessment = "ON_TIME"
	AssessmentLate   Assessment = "LATE"
	AssessmentNoShow Assessment = "NO_SHOW"
)

func ParseAssessment(raw string) (Assessment, error) {
	switch a := Assessment(raw); a {
	case AssessmentOnTime, AssessmentLate, AssessmentNoShow:
		return a, nil
	}
	return "", fmt.Errorf("%w: unknown assessment %q", ErrValidation, raw)
}

func (a Assessment) Delta() int {
	switch a {
	case AssessmentOnTime:
		return 1
	case AssessmentNoShow:
		return -1
	default:
		return 0
	}
}

func (a Assessment) Reason() ReputationReason {
	switch a {
	case AssessmentOnTime:
		return ReasonCustomerRatedOnTime
	case AssessmentNoShow:
		return ReasonCustomerRatedNoShow
	default:
		return ReasonCustomerRatedLate
	}
}

type Category string

const (
	CategoryTopRated         Category = "TOP_RATED"
	CategoryReliable         Category = "RELIABLE"
	CategoryNeedsImprovement Category = "NEEDS_IMPROVEMENT"
	CategoryNew              Category = "NEW"
)

// ParseCategoryFilter maps the lowercase query form (top_rated, reliable,
// needs_improvement, new) to a Category.
func ParseCategoryFilter(raw string) (Category, error) {
	switch raw {
	case "top_rated", string(CategoryTopRated):
		return CategoryTopRated, nil
	case "reliable", string(CategoryReliable):
		return CategoryReliable, nil
	case "needs_improvement", string(CategoryNeedsImprovement):
		return CategoryNeedsImprovement, nil
	case "new", string(CategoryNew):
		return CategoryNew, nil
	}
	return "", fmt.Errorf("%w: unknown reputation filter %q", ErrValidation, raw)
}

// Categorize is NEW until the worker has completed a job, whatever the score.
func Categorize(reputation, completedJobs int) Category {
	if completedJobs <= 0 {
		return CategoryNew
	}
	switch {
	case reputation >= TopRatedThreshold:
		return CategoryTopRated
	case reputation >= ReliableThreshold:
		return CategoryReliable
	default:
		return CategoryNeedsImprovement
	}
}

func ClampReputation(score int) int {
	if score < MinReputation {
		return MinReputation
	}
	if score > MaxReputation {
		return MaxReputation
	}
	return score
}

// IsBookable reports whether a worker with this score may take new bookings.
func IsBookable(reputation int) bool {
	return reputation >= BookingThreshold
}

type ReputationSnapshot struct {
	Before int `bson:"before" json:"before"`
	After  int `bson:"after" json:"after"`
}

type ReputationLog struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	WorkerID    string             `bson:"worker_id" json:"workerId"`
	JobID       string             `bson:"job_id,omitempty" json:"jobId,omitempty"`
	Change      int                `bson:"change" json:"change"`
	Reason      ReputationReason   `bson:"reason" json:"reason"`
	CauseKey    string             `bson:"cause_key,omitempty" json:"-"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	CreatedBy   string             `bson:"created_by" json:"createdBy"`
	Metadata    ReputationSnapshot `bson:"metadata" json:"metadata"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
}

// ReplayReputation recomputes a score from ledger entries given oldest first,
// clamping after every step exactly as the live update does.
func ReplayReputation(logs []ReputationLog) int {
	score := 0
	for _, l := range logs {
		score = ClampReputation(score + l.Change)
	}
	return score
}
