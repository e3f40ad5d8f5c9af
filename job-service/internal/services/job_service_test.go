package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"handyman-app/job-service/internal/models"
	"handyman-app/job-service/internal/utils"
)

func TestJobLifecycleThroughPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job := f.createJob(t, worker.UserID, 1000)
	if job.Status != models.StatusPending {
		t.Fatalf("new job status = %s", job.Status)
	}
	if got := f.notifier.ofType(models.EventJobCreated); len(got) != 1 || got[0].UserID != worker.UserID {
		t.Fatalf("job_created notifications = %+v", got)
	}

	res := f.act(t, worker, job, ActionInput{Action: models.ActionAccept})
	if res.Job.Status != models.StatusAccepted {
		t.Fatalf("after ACCEPT status = %s", res.Job.Status)
	}

	res = f.act(t, worker, job, startInput())
	if res.Job.Status != models.StatusInProgress || res.Job.StartedAt == nil || res.Job.StartProofPhoto == "" {
		t.Fatalf("after START job = %+v", res.Job)
	}

	res = f.act(t, worker, job, ActionInput{Action: models.ActionWorkerComplete})
	if res.Job.Status != models.StatusInProgress || !res.Job.WorkerMarkedComplete {
		t.Fatalf("after WORKER_COMPLETE job = %+v", res.Job)
	}
	_, err := f.jobs.PerformAction(ctx, worker, job.ID.Hex(), ActionInput{Action: models.ActionWorkerComplete})
	wantErr(t, err, models.ErrAlreadyMarked)

	_, err = f.jobs.PerformAction(ctx, worker, job.ID.Hex(), ActionInput{Action: models.ActionComplete})
	wantErr(t, err, models.ErrForbidden)

	first := f.act(t, customer, job, ActionInput{Action: models.ActionComplete})
	if first.Order == nil || first.Order.OrderID != "order_1" || first.Order.Amount != 100000 || first.Order.Reused {
		t.Fatalf("first order = %+v", first.Order)
	}
	if first.Job.Status != models.StatusInProgress || first.Job.PaymentStatus != models.PaymentPending {
		t.Fatalf("COMPLETE must not settle the job: %+v", first.Job)
	}
	second := f.act(t, customer, job, ActionInput{Action: models.ActionComplete})
	if second.Order.OrderID != first.Order.OrderID || !second.Order.Reused {
		t.Fatalf("retry order = %+v, want reuse of %s", second.Order, first.Order.OrderID)
	}
	if f.gateway.orders != 1 {
		t.Fatalf("gateway orders = %d, want 1", f.gateway.orders)
	}

	_, err = f.jobs.VerifyPayment(ctx, customer, job.ID.Hex(), VerifyPaymentInput{PaymentID: "pay_1", Signature: "deadbeef"})
	wantErr(t, err, models.ErrPaymentVerificationFailed)
	stored, _ := f.jobs.Get(ctx, customer, job.ID.Hex())
	if stored.Status != models.StatusInProgress || stored.PaymentStatus == models.PaymentSuccess {
		t.Fatalf("failed verification changed the job: %+v", stored)
	}

	sig := utils.SignPayment(gatewaySecret, "order_1", "pay_1")
	paid, err := f.jobs.VerifyPayment(ctx, customer, job.ID.Hex(), VerifyPaymentInput{PaymentID: "pay_1", Signature: sig})
	if err != nil {
		t.Fatalf("VerifyPayment: %v", err)
	}
	if paid.Status != models.StatusCompleted || paid.PaymentStatus != models.PaymentSuccess || paid.CompletedAt == nil {
		t.Fatalf("paid job = %+v", paid)
	}
	if paid.PlatformFee != 100 || paid.WorkerEarnings != 900 {
		t.Fatalf("fee = %v earnings = %v, want 100 / 900", paid.PlatformFee, paid.WorkerEarnings)
	}

	txs, err := f.jobs.Transactions(ctx, customer, job.ID.Hex())
	if err != nil {
		t.Fatalf("Transactions: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("transactions = %d, want 2", len(txs))
	}
	for _, tx := range txs {
		switch tx.Type {
		case models.TransactionPayment:
			if tx.UserID != customer.UserID || tx.Amount != 1000 {
				t.Errorf("payment tx = %+v", tx)
			}
		case models.TransactionPayout:
			if tx.UserID != worker.UserID || tx.Amount != 900 {
				t.Errorf("payout tx = %+v", tx)
			}
		default:
			t.Errorf("unexpected tx %+v", tx)
		}
	}

	summary, err := f.reputation.Summary(ctx, worker.UserID)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.Reputation != 1 || summary.CompletedJobs != 1 || summary.Category != models.CategoryNeedsImprovement {
		t.Fatalf("summary = %+v", summary)
	}

	again, err := f.jobs.VerifyPayment(ctx, customer, job.ID.Hex(), VerifyPaymentInput{PaymentID: "pay_1", Signature: sig})
	if err != nil || again.Status != models.StatusCompleted {
		t.Fatalf("repeat verification = %v, %v", again, err)
	}
	_, err = f.jobs.VerifyPayment(ctx, customer, job.ID.Hex(), VerifyPaymentInput{
		PaymentID: "pay_2",
		Signature: utils.SignPayment(gatewaySecret, "order_1", "pay_2"),
	})
	wantErr(t, err, models.ErrInvalidState)
	if got := f.reputationOf(t, worker.UserID); got != 1 {
		t.Fatalf("reputation after repeat verification = %d, want 1", got)
	}

	logs, err := f.jobs.Logs(ctx, worker, job.ID.Hex())
	if err != nil {
		t.Fatalf("Logs: %v", err)
	}
	var actions []models.JobAction
	for _, l := range logs {
		actions = append(actions, l.Action)
	}
	want := []models.JobAction{
		models.ActionCreate, models.ActionAccept, models.ActionStart, models.ActionWorkerComplete,
		models.ActionComplete, models.ActionComplete, models.ActionPaymentFailed, models.ActionPaymentVerified,
	}
	if len(actions) != len(want) {
		t.Fatalf("log actions = %v, want %v", actions, want)
	}
	for i := range want {
		if actions[i] != want[i] {
			t.Fatalf("log actions = %v, want %v", actions, want)
		}
	}

	if got := f.notifier.ofType(models.EventPaymentReceived); len(got) != 2 {
		t.Fatalf("payment_received notifications = %d, want 2", len(got))
	}
}

func TestWorkerCompleteRacingCompleteKeepsOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.inProgressJob(t, 500)

	var first *ActionResult
	f.interleave(func() {
		first = f.act(t, customer, job, ActionInput{Action: models.ActionComplete})
	})
	f.act(t, worker, job, ActionInput{Action: models.ActionWorkerComplete})

	stored, err := f.store.Jobs.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.RazorpayOrderID != first.Order.OrderID || stored.PaymentStatus != models.PaymentPending {
		t.Fatalf("stored order = %q status = %q, want %q PENDING", stored.RazorpayOrderID, stored.PaymentStatus, first.Order.OrderID)
	}
	if !stored.WorkerMarkedComplete {
		t.Fatal("worker mark lost")
	}

	retry := f.act(t, customer, job, ActionInput{Action: models.ActionComplete})
	if !retry.Order.Reused || retry.Order.OrderID != first.Order.OrderID {
		t.Fatalf("retry order = %+v, want reuse of %q", retry.Order, first.Order.OrderID)
	}
	if f.gateway.orders != 1 {
		t.Fatalf("gateway orders = %d, want 1", f.gateway.orders)
	}
}

func TestConcurrentWorkerCompleteMarksOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.inProgressJob(t, 500)
	before := len(f.notifier.ofType(models.EventPaymentDue))

	f.interleave(func() {
		f.act(t, worker, job, ActionInput{Action: models.ActionWorkerComplete})
	})
	_, err := f.jobs.PerformAction(ctx, worker, job.ID.Hex(), ActionInput{Action: models.ActionWorkerComplete})
	wantErr(t, err, models.ErrAlreadyMarked)

	logs, err := f.store.JobLogs.ListByJob(ctx, job.ID.Hex())
	if err != nil {
		t.Fatalf("ListByJob: %v", err)
	}
	marks := 0
	for _, l := range logs {
		if l.Action == models.ActionWorkerComplete {
			marks++
		}
	}
	if marks != 1 {
		t.Fatalf("WORKER_COMPLETE logs = %d, want 1", marks)
	}
	if got := len(f.notifier.ofType(models.EventPaymentDue)) - before; got != 1 {
		t.Fatalf("payment-due notifications = %d, want 1", got)
	}
}

func TestStaleActionDoesNotResetAssessment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.inProgressJob(t, 500)

	f.interleave(func() {
		if _, err := f.reputation.AssessByCustomer(ctx, customer, job.ID.Hex(), models.AssessmentOnTime); err != nil {
			t.Errorf("AssessByCustomer: %v", err)
		}
	})
	f.act(t, worker, job, ActionInput{Action: models.ActionWorkerComplete})

	stored, _ := f.store.Jobs.GetByID(ctx, job.ID)
	if !stored.ReputationAssessed || stored.ReputationAssessmentType != models.AssessmentOnTime {
		t.Fatalf("assessment lost: assessed=%v type=%q", stored.ReputationAssessed, stored.ReputationAssessmentType)
	}
}

func TestIllegalTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job := f.createJob(t, worker.UserID, 500)
	_, err := f.jobs.PerformAction(ctx, worker, job.ID.Hex(), startInput())
	wantErr(t, err, models.ErrInvalidState)

	_, err = f.jobs.PerformAction(ctx, customer, job.ID.Hex(), ActionInput{Action: models.ActionComplete})
	wantErr(t, err, models.ErrInvalidState)

	f.act(t, worker, job, ActionInput{Action: models.ActionAccept})
	f.act(t, worker, job, startInput())

	_, err = f.jobs.PerformAction(ctx, customer, job.ID.Hex(), ActionInput{Action: models.ActionCancel})
	wantErr(t, err, models.ErrInvalidState)

	_, err = f.jobs.PerformAction(ctx, worker, job.ID.Hex(), ActionInput{Action: models.ActionAccept})
	wantErr(t, err, models.ErrInvalidState)

	stored, _ := f.jobs.Get(ctx, customer, job.ID.Hex())
	if stored.Status != models.StatusInProgress {
		t.Fatalf("status = %s, want IN_PROGRESS", stored.Status)
	}
}

func TestStartRequiresProof(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.createJob(t, worker.UserID, 500)
	f.act(t, worker, job, ActionInput{Action: models.ActionAccept})

	noPhoto := startInput()
	noPhoto.StartProofPhoto = " "
	_, err := f.jobs.PerformAction(ctx, worker, job.ID.Hex(), noPhoto)
	wantErr(t, err, models.ErrValidation)

	badLat := startInput()
	badLat.GpsLat = floatPtr(91)
	_, err = f.jobs.PerformAction(ctx, worker, job.ID.Hex(), badLat)
	wantErr(t, err, models.ErrValidation)

	edge := startInput()
	edge.GpsLat, edge.GpsLng = floatPtr(-90), floatPtr(180)
	res := f.act(t, worker, job, edge)
	if *res.Job.StartProofGpsLat != -90 || *res.Job.StartProofGpsLng != 180 {
		t.Fatalf("stored coordinates = %v, %v", *res.Job.StartProofGpsLat, *res.Job.StartProofGpsLng)
	}
}

func TestActionAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.createJob(t, worker.UserID, 500)

	other := models.Actor{UserID: "w2", Role: models.RoleWorker}
	_, err := f.jobs.PerformAction(ctx, other, job.ID.Hex(), ActionInput{Action: models.ActionAccept})
	wantErr(t, err, models.ErrForbidden)

	_, err = f.jobs.PerformAction(ctx, customer, job.ID.Hex(), ActionInput{Action: models.ActionAccept})
	wantErr(t, err, models.ErrForbidden)

	_, err = f.jobs.Get(ctx, other, job.ID.Hex())
	wantErr(t, err, models.ErrForbidden)

	_, err = f.jobs.Get(ctx, customer, "not-an-id")
	wantErr(t, err, models.ErrInvalidID)
}

func TestOpenJobIsClaimedOnAccept(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t, "", 750)
	if job.WorkerID != nil {
		t.Fatalf("open job has worker %v", *job.WorkerID)
	}

	claimer := models.Actor{UserID: "w7", Role: models.RoleWorker}
	res := f.act(t, claimer, job, ActionInput{Action: models.ActionAccept})
	if res.Job.AssignedWorker() != "w7" || res.Job.Status != models.StatusAccepted {
		t.Fatalf("claimed job = %+v", res.Job)
	}

	f.mem.PutWorker(models.Worker{ID: "w8", Reputation: -6})
	open := f.createJob(t, "", 750)
	_, err := f.jobs.PerformAction(context.Background(), models.Actor{UserID: "w8", Role: models.RoleWorker}, open.ID.Hex(), ActionInput{Action: models.ActionAccept})
	wantErr(t, err, models.ErrForbidden)
}

func TestCreateChecksBookingThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := CreateJobInput{
		Description: "Paint bedroom",
		Location:    "Kothrud",
		Charge:      2000,
		Date:        time.Date(2026, 11, 5, 0, 0, 0, 0, time.UTC),
	}

	f.mem.PutWorker(models.Worker{ID: "low", Reputation: -6})
	in.WorkerID = "low"
	_, err := f.jobs.Create(ctx, customer, in)
	wantErr(t, err, models.ErrValidation)

	f.mem.PutWorker(models.Worker{ID: "edge", Reputation: -5})
	in.WorkerID = "edge"
	if _, err := f.jobs.Create(ctx, customer, in); err != nil {
		t.Fatalf("worker at -5 must be bookable: %v", err)
	}

	_, err = f.jobs.Create(ctx, worker, in)
	wantErr(t, err, models.ErrForbidden)

	in.WorkerID = ""
	in.Charge = 0
	_, err = f.jobs.Create(ctx, customer, in)
	wantErr(t, err, models.ErrValidation)
}

func TestCancelNotifiesOtherParty(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t, worker.UserID, 500)
	f.act(t, worker, job, ActionInput{Action: models.ActionAccept})

	res := f.act(t, worker, job, ActionInput{Action: models.ActionCancel, Reason: "sick"})
	if res.Job.Status != models.StatusCancelled || res.Job.CancelledBy != worker.UserID || res.Job.CancelReason != "sick" {
		t.Fatalf("cancelled job = %+v", res.Job)
	}
	got := f.notifier.ofType(models.EventJobCancelled)
	if len(got) != 1 || got[0].UserID != customer.UserID {
		t.Fatalf("job_cancelled notifications = %+v", got)
	}
}

func TestGatewayFailureLeavesJobUntouched(t *testing.T) {
	f := newFixture(t)
	job := f.inProgressJob(t, 500)
	f.gateway.err = errors.New("gateway timeout")

	_, err := f.jobs.PerformAction(context.Background(), customer, job.ID.Hex(), ActionInput{Action: models.ActionComplete})
	if err == nil {
		t.Fatal("expected gateway error")
	}
	stored, _ := f.jobs.Get(context.Background(), customer, job.ID.Hex())
	if stored.RazorpayOrderID != "" || stored.PaymentStatus != models.PaymentNone {
		t.Fatalf("job changed after gateway failure: %+v", stored)
	}

	f.gateway.err = nil
	res := f.act(t, customer, job, ActionInput{Action: models.ActionComplete})
	if res.Order.OrderID == "" || res.Order.Reused {
		t.Fatalf("retry order = %+v", res.Order)
	}
}

func TestListScopesByRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createJob(t, worker.UserID, 100)
	f.createJob(t, "w2", 100)

	mine, err := f.jobs.List(ctx, worker, "")
	if err != nil || len(mine) != 1 {
		t.Fatalf("worker list = %d, %v", len(mine), err)
	}
	all, err := f.jobs.List(ctx, admin, models.StatusPending)
	if err != nil || len(all) != 2 {
		t.Fatalf("admin list = %d, %v", len(all), err)
	}
	own, err := f.jobs.List(ctx, customer, models.StatusAccepted)
	if err != nil || len(own) != 0 {
		t.Fatalf("customer ACCEPTED list = %d, %v", len(own), err)
	}
	_, err = f.jobs.List(ctx, customer, "DONE")
	wantErr(t, err, models.ErrValidation)
}
