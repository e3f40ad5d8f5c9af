package models

import "time"

// JobChange is a conditional partial write to a job. The store writes only
// the fields the change names and only while every precondition still holds
// on the stored document; anything else on the job is left untouched.
type JobChange struct {
	// From is the status the stored job must have.
	From JobStatus
	// To is the new status; empty keeps the current one.
	To JobStatus

	// AssignWorker requires the job to be unassigned or already assigned to
	// this worker, and assigns it.
	AssignWorker string
	// MarkWorkerComplete requires worker_marked_complete to be false.
	MarkWorkerComplete bool

	Start   *StartProof
	Cancel  *Cancellation
	Payment *PaymentSettlement

	At time.Time
}

type StartProof struct {
	Photo  string
	GpsLat float64
	GpsLng float64
}

type Cancellation struct {
	By     string
	Reason string
}

// PaymentSettlement requires the stored order id to equal OrderID and the
// payment not to be settled yet.
type PaymentSettlement struct {
	OrderID        string
	PaymentID      string
	Signature      string
	PlatformFee    float64
	WorkerEarnings float64
}

// Matches reports whether every precondition of c holds on j.
func (c JobChange) Matches(j *Job) bool {
	if j.Status != c.From {
		return false
	}
	if c.AssignWorker != "" && j.WorkerID != nil && *j.WorkerID != c.AssignWorker {
		return false
	}
	if c.MarkWorkerComplete && j.WorkerMarkedComplete {
		return false
	}
	if c.Payment != nil && (j.RazorpayOrderID != c.Payment.OrderID || j.PaymentStatus == PaymentSuccess) {
		return false
	}
	return true
}

// Apply writes the fields c names onto j.
func (c JobChange) Apply(j *Job) {
	if c.To != "" {
		j.Status = c.To
	}
	if c.AssignWorker != "" {
		w := c.AssignWorker
		j.WorkerID = &w
	}
	if c.MarkWorkerComplete {
		j.WorkerMarkedComplete = true
	}
	if c.Start != nil {
		at, lat, lng := c.At, c.Start.GpsLat, c.Start.GpsLng
		j.StartedAt = &at
		j.StartProofPhoto = c.Start.Photo
		j.StartProofGpsLat = &lat
		j.StartProofGpsLng = &lng
	}
	if c.Cancel != nil {
		at := c.At
		j.CancelledAt = &at
		j.CancelledBy = c.Cancel.By
		j.CancelReason = c.Cancel.Reason
	}
	if c.Payment != nil {
		at := c.At
		j.CompletedAt = &at
		j.PaymentStatus = PaymentSuccess
		j.RazorpayPaymentID = c.Payment.PaymentID
		j.RazorpaySignature = c.Payment.Signature
		j.PlatformFee = c.Payment.PlatformFee
		j.WorkerEarnings = c.Payment.WorkerEarnings
	}
	j.UpdatedAt = c.At
}
