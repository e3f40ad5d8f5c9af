package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ReportStatus string

const (
	ReportPending     ReportStatus = "PENDING"
	ReportDisputed    ReportStatus = "DISPUTED"
	ReportUnderReview ReportStatus = "UNDER_REVIEW"
	ReportApproved    ReportStatus = "APPROVED"
	ReportRejected    ReportStatus = "REJECTED"
)

func (s ReportStatus) IsValid() bool {
	switch s {
	case ReportPending, ReportDisputed, ReportUnderReview, ReportApproved, ReportRejected:
		return true
	}
	return false
}

func (s ReportStatus) IsResolved() bool {
	return s == ReportApproved || s == ReportRejected
}

var (
	DisputableStatuses      = []ReportStatus{ReportPending, ReportUnderReview}
	SelfResolvableStatuses  = []ReportStatus{ReportPending}
	AdminResolvableStatuses = []ReportStatus{ReportPending, ReportDisputed, ReportUnderReview}
	ReviewableStatuses      = []ReportStatus{ReportPending, ReportDisputed}
)

func StatusIn(s ReportStatus, set []ReportStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// CanFileNoShow holds the single filing rule: the job must have left
// PENDING/ACCEPTED and must not have reached COMPLETED.
func CanFileNoShow(status JobStatus) bool {
	return status == StatusInProgress || status == StatusCancelled
}

type NoShowReport struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	JobID       string             `bson:"job_id" json:"jobId"`
	CustomerID  string             `bson:"customer_id" json:"customerId"`
	WorkerID    string             `bson:"worker_id" json:"workerId"`
	Status      ReportStatus       `bson:"status" json:"status"`
	Reason      string             `bson:"reason" json:"reason"`
	Evidence    string             `bson:"evidence,omitempty" json:"evidence,omitempty"`
	WorkerReply string             `bson:"worker_reply,omitempty" json:"workerReply,omitempty"`
	Resolution  string             `bson:"resolution,omitempty" json:"resolution,omitempty"`
	ResolvedBy  string             `bson:"resolved_by,omitempty" json:"resolvedBy,omitempty"`
	FavorWorker bool               `bson:"favor_worker,omitempty" json:"favorWorker,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updatedAt"`
	ResolvedAt  *time.Time         `bson:"resolved_at,omitempty" json:"resolvedAt,omitempty"`
}

type NoShowFilter struct {
	CustomerID string
	WorkerID   string
	Status     ReportStatus
}
