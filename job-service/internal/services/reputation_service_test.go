package services

import (
	"context"
	"errors"
	"testing"

	"handyman-app/job-service/internal/models"
)

func TestApplyDeltaClampsAndRecordsSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mem.PutWorker(models.Worker{ID: "w1", Reputation: 99})

	entry, err := f.reputation.ApplyDelta(ctx, DeltaRequest{WorkerID: "w1", Change: 5, Reason: models.ReasonAdminOverride, CreatedBy: "a1"})
	if err != nil {
		t.Fatalf("ApplyDelta: %v", err)
	}
	if entry.Change != 5 || entry.Metadata.Before != 99 || entry.Metadata.After != 100 {
		t.Fatalf("entry = %+v", entry)
	}
	if got := f.reputationOf(t, "w1"); got != 100 {
		t.Fatalf("reputation = %d, want 100", got)
	}

	f.mem.PutWorker(models.Worker{ID: "w2", Reputation: -49})
	if _, err := f.reputation.ApplyDelta(ctx, DeltaRequest{WorkerID: "w2", Change: -10, Reason: models.ReasonAdminOverride}); err != nil {
		t.Fatalf("ApplyDelta: %v", err)
	}
	if got := f.reputationOf(t, "w2"); got != models.MinReputation {
		t.Fatalf("reputation = %d, want %d", got, models.MinReputation)
	}

	_, err = f.reputation.ApplyDelta(ctx, DeltaRequest{WorkerID: "w1", Change: 0, Reason: models.ReasonAdminOverride})
	wantErr(t, err, models.ErrValidation)
}

func TestApplyDeltaOncePerCause(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := DeltaRequest{WorkerID: "w1", Change: -1, Reason: models.ReasonNoShow, JobID: "job-1"}

	if _, err := f.reputation.ApplyDelta(ctx, req); err != nil {
		t.Fatalf("first delta: %v", err)
	}
	req.Reason = models.ReasonCustomerRatedNoShow
	_, err := f.reputation.ApplyDelta(ctx, req)
	wantErr(t, err, models.ErrDuplicateReputationEvent)
	if got := f.reputationOf(t, "w1"); got != -1 {
		t.Fatalf("reputation = %d, want -1", got)
	}
}

func TestCanBeBooked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if e := f.reputation.CanBeBooked(ctx, "unknown"); !e.Allowed || e.Reputation != 0 {
		t.Fatalf("unknown worker = %+v", e)
	}
	f.mem.PutWorker(models.Worker{ID: "w1", Reputation: -6})
	if e := f.reputation.CanBeBooked(ctx, "w1"); e.Allowed || e.Reason == "" {
		t.Fatalf("-6 = %+v, want blocked with reason", e)
	}
	f.mem.PutWorker(models.Worker{ID: "w1", Reputation: -5})
	if e := f.reputation.CanBeBooked(ctx, "w1"); !e.Allowed {
		t.Fatalf("-5 = %+v, want allowed", e)
	}

	f.mem.PutWorker(models.Worker{ID: "w1", Reputation: -30})
	f.mem.FailOn("workers.GetByID", errors.New("connection refused"))
	if e := f.reputation.CanBeBooked(ctx, "w1"); !e.Allowed {
		t.Fatalf("lookup failure = %+v, want allowed", e)
	}
}

func TestAssessByCustomerOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.inProgressJob(t, 500)

	_, err := f.reputation.AssessByCustomer(ctx, worker, job.ID.Hex(), models.AssessmentOnTime)
	wantErr(t, err, models.ErrForbidden)

	res, err := f.reputation.AssessByCustomer(ctx, customer, job.ID.Hex(), models.AssessmentOnTime)
	if err != nil {
		t.Fatalf("AssessByCustomer: %v", err)
	}
	if !res.Applied || res.Change != 1 || res.Reputation != 1 {
		t.Fatalf("result = %+v", res)
	}

	_, err = f.reputation.AssessByCustomer(ctx, customer, job.ID.Hex(), models.AssessmentLate)
	wantErr(t, err, models.ErrAlreadyAssessed)
	if got := f.reputationOf(t, worker.UserID); got != 1 {
		t.Fatalf("reputation = %d, want 1", got)
	}

	stored, _ := f.store.Jobs.GetByID(ctx, job.ID)
	if !stored.ReputationAssessed || stored.ReputationAssessmentType != models.AssessmentOnTime {
		t.Fatalf("job assessment flags = %v / %s", stored.ReputationAssessed, stored.ReputationAssessmentType)
	}
}

func TestAssessLateRecordsWithoutDelta(t *testing.T) {
	f := newFixture(t)
	job := f.inProgressJob(t, 500)

	res, err := f.reputation.AssessByCustomer(context.Background(), customer, job.ID.Hex(), models.AssessmentLate)
	if err != nil {
		t.Fatalf("AssessByCustomer: %v", err)
	}
	if res.Applied || res.Change != 0 || res.Reputation != 0 {
		t.Fatalf("result = %+v", res)
	}
	logs, _ := f.reputation.Logs(context.Background(), worker.UserID, 0)
	if len(logs) != 0 {
		t.Fatalf("LATE wrote %d ledger entries", len(logs))
	}
}

func TestAssessPendingJobRejected(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t, worker.UserID, 500)
	_, err := f.reputation.AssessByCustomer(context.Background(), customer, job.ID.Hex(), models.AssessmentOnTime)
	wantErr(t, err, models.ErrInvalidState)
}

func TestAdminAdjust(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.reputation.AdminAdjust(ctx, customer, "w1", 10, "goodwill")
	wantErr(t, err, models.ErrForbidden)
	_, err = f.reputation.AdminAdjust(ctx, admin, "w1", 151, "too much")
	wantErr(t, err, models.ErrValidation)
	_, err = f.reputation.AdminAdjust(ctx, admin, "w1", 0, "nothing")
	wantErr(t, err, models.ErrValidation)
	_, err = f.reputation.AdminAdjust(ctx, admin, "w1", 10, "  ")
	wantErr(t, err, models.ErrValidation)

	entry, err := f.reputation.AdminAdjust(ctx, admin, "w1", -150, "fraud")
	if err != nil {
		t.Fatalf("AdminAdjust: %v", err)
	}
	if entry.Reason != models.ReasonAdminOverride || entry.Metadata.After != models.MinReputation || entry.CreatedBy != admin.UserID {
		t.Fatalf("entry = %+v", entry)
	}
	if got := f.notifier.ofType(models.EventReputationAdjusted); len(got) != 1 || got[0].UserID != "w1" {
		t.Fatalf("notifications = %+v", got)
	}

	if _, err := f.reputation.AdminAdjust(ctx, admin, "w1", 5, "appeal"); err != nil {
		t.Fatalf("second override: %v", err)
	}
	logs, _ := f.reputation.Logs(ctx, "w1", 10)
	if len(logs) != 2 || logs[0].Change != 5 {
		t.Fatalf("logs = %+v", logs)
	}
}

func TestReconcile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, change := range []int{1, 1, -80, 5} {
		if _, err := f.reputation.ApplyDelta(ctx, DeltaRequest{WorkerID: "w1", Change: change, Reason: models.ReasonAdminOverride}); err != nil {
			t.Fatalf("ApplyDelta(%d): %v", change, err)
		}
	}
	res, err := f.reputation.Reconcile(ctx, "w1", false)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	// 1, 2, -50, -45
	if !res.Consistent || res.Replayed != -45 || res.LedgerSum != -73 || res.Entries != 4 {
		t.Fatalf("result = %+v", res)
	}

	if err := f.store.Workers.SetReputation(ctx, "w1", 42); err != nil {
		t.Fatalf("SetReputation: %v", err)
	}
	res, _ = f.reputation.Reconcile(ctx, "w1", false)
	if res.Consistent || res.Repaired || res.Cached != 42 {
		t.Fatalf("drift result = %+v", res)
	}
	if got := f.reputationOf(t, "w1"); got != 42 {
		t.Fatalf("detect-only reconcile changed the score to %d", got)
	}

	res, _ = f.reputation.Reconcile(ctx, "w1", true)
	if !res.Repaired {
		t.Fatalf("repair result = %+v", res)
	}
	if got := f.reputationOf(t, "w1"); got != -45 {
		t.Fatalf("repaired score = %d, want -45", got)
	}
}

func TestLedgerAuditorReportsDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mem.PutWorker(models.Worker{ID: "clean"})
	if _, err := f.reputation.ApplyDelta(ctx, DeltaRequest{WorkerID: "clean", Change: 3, Reason: models.ReasonAdminOverride}); err != nil {
		t.Fatalf("ApplyDelta: %v", err)
	}
	f.mem.PutWorker(models.Worker{ID: "drifted", Reputation: 12})

	auditor := NewLedgerAuditor(f.store.Workers, f.reputation, 0, f.log)
	drifted := auditor.RunOnce(ctx)
	if len(drifted) != 1 || drifted[0].WorkerID != "drifted" || drifted[0].Replayed != 0 {
		t.Fatalf("drifted = %+v", drifted)
	}
	if got := f.reputationOf(t, "drifted"); got != 12 {
		t.Fatalf("auditor rewrote the score to %d", got)
	}
}

func TestDispatcherSwallowsFailures(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("redis down")
	d := NewDispatcher(f.notifier, f.log)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Send(ctx,
		models.Notification{UserID: "", Type: models.EventJobCreated},
		models.Notification{UserID: "u1", Type: models.EventJobCreated},
	)
	sent := f.notifier.ofType(models.EventJobCreated)
	if len(sent) != 1 || sent[0].UserID != "u1" || sent[0].CreatedAt.IsZero() {
		t.Fatalf("sent = %+v", sent)
	}
}
