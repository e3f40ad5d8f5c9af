package models

import "time"

type NotificationEvent string

const (
	EventJobCreated         NotificationEvent = "job_created"
	EventJobAccepted        NotificationEvent = "job_accepted"
	EventJobStarted         NotificationEvent = "job_started"
	EventPaymentDue         NotificationEvent = "payment_due"
	EventJobCancelled       NotificationEvent = "job_cancelled"
	EventPaymentReceived    NotificationEvent = "payment_received"
	EventNoShowReported     NotificationEvent = "no_show_reported"
	EventNoShowDisputed     NotificationEvent = "no_show_disputed"
	EventNoShowAccepted     NotificationEvent = "no_show_accepted"
	EventNoShowUnderReview  NotificationEvent = "no_show_under_review"
	EventNoShowResolved     NotificationEvent = "no_show_resolved"
	EventReputationAdjusted NotificationEvent = "reputation_adjusted"
)

// Notification is a user-facing message handed to the notification sink.
type Notification struct {
	UserID    string            `json:"user_id"`
	Role      Role              `json:"role"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Type      NotificationEvent `json:"type"`
	JobID     string            `json:"job_id,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
