package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// JobLog is write-once; repositories expose no update or delete for it.
type JobLog struct {
	ID          primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	JobID       string                 `bson:"job_id" json:"jobId"`
	FromStatus  JobStatus              `bson:"from_status" json:"fromStatus"`
	ToStatus    JobStatus              `bson:"to_status" json:"toStatus"`
	Action      JobAction              `bson:"action" json:"action"`
	PerformedBy string                 `bson:"performed_by" json:"performedBy"`
	Metadata    map[string]interface{} `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt   time.Time              `bson:"created_at" json:"createdAt"`
}

func NewJobLog(job *Job, from JobStatus, action JobAction, actor string, metadata map[string]interface{}) *JobLog {
	return &JobLog{
		JobID:       job.ID.Hex(),
		FromStatus:  from,
		ToStatus:    job.Status,
		Action:      action,
		PerformedBy: actor,
		Metadata:    metadata,
		CreatedAt:   time.Now().UTC(),
	}
}
