package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"handyman-app/job-service/internal/models"
	"handyman-app/job-service/internal/services"
	"handyman-app/job-service/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type JobHandler struct {
	jobs   services.JobService
	logger *logrus.Logger
}

func NewJobHandler(jobs services.JobService, logger *logrus.Logger) *JobHandler {
	return &JobHandler{jobs: jobs, logger: logger}
}

type createJobRequest struct {
	WorkerID    string  `json:"workerId"`
	Description string  `json:"description" validate:"required,max=2000"`
	Details     string  `json:"details" validate:"max=5000"`
	Date        string  `json:"date" validate:"required"`
	Time        string  `json:"time"`
	Location    string  `json:"location" validate:"required"`
	Charge      float64 `json:"charge" validate:"gt=0"`
}

type actionRequest struct {
	Action           string   `json:"action" validate:"required"`
	StartProofPhoto  string   `json:"startProofPhoto"`
	StartProofGpsLat *float64 `json:"startProofGpsLat"`
	StartProofGpsLng *float64 `json:"startProofGpsLng"`
	Reason           string   `json:"reason" validate:"max=1000"`
}

type verifyPaymentRequest struct {
	RazorpayPaymentID string `json:"razorpayPaymentId" validate:"required"`
	RazorpaySignature string `json:"razorpaySignature" validate:"required"`
}

func parseJobDate(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD or RFC 3339", models.ErrValidation)
}

func (h *JobHandler) CreateJob(c *gin.Context) {
	a, ok := actor(c, h.logger)
	if !ok {
		return
	}
	req, problems := utils.ParseBody[createJobRequest](c)
	if problems != nil {
		respondInvalid(c, problems)
		return
	}
	date, err := parseJobDate(req.Date)
	if err != nil {
		respondError(c, h.logger, "CreateJob", err)
		return
	}
	job, err := h.jobs.Create(c.Request.Context(), a, services.CreateJobInput{
		WorkerID:    strings.TrimSpace(req.WorkerID),
		Description: req.Description,
		Details:     req.Details,
		Date:        date,
		Time:        req.Time,
		Location:    req.Location,
		Charge:      req.Charge,
	})
	if err != nil {
		respondError(c, h.logger, "CreateJob", err)
		return
	}
	respondOK(c, http.StatusCreated, gin.H{"job": job})
}

func (h *JobHandler) ListJobs(c *gin.Context) {
	a, ok := actor(c, h.logger)
	if !ok {
		return
	}
	status := models.JobStatus(strings.ToUpper(c.Query("status")))
	jobs, err := h.jobs.List(c.Request.Context(), a, status)
	if err != nil {
		respondError(c, h.logger, "ListJobs", err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"jobs": jobs})
}

func (h *JobHandler) GetJob(c *gin.Context) {
	a, ok := actor(c, h.logger)
	if !ok {
		return
	}
	job, err := h.jobs.Get(c.Request.Context(), a, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "GetJob", err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"job": job})
}

func (h *JobHandler) GetJobLogs(c *gin.Context) {
	a, ok := actor(c, h.logger)
	if !ok {
		return
	}
	logs, err := h.jobs.Logs(c.Request.Context(), a, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "GetJobLogs", err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"logs": logs})
}

func (h *JobHandler) GetJobTransactions(c *gin.Context) {
	a, ok := actor(c, h.logger)
	if !ok {
		return
	}
	txs, err := h.jobs.Transactions(c.Request.Context(), a, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "GetJobTransactions", err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"transactions": txs})
}

// PerformAction drives the lifecycle: ACCEPT, START, WORKER_COMPLETE,
// COMPLETE and CANCEL.
func (h *JobHandler) PerformAction(c *gin.Context) {
	a, ok := actor(c, h.logger)
	if !ok {
		return
	}
	req, problems := utils.ParseBody[actionRequest](c)
	if problems != nil {
		respondInvalid(c, problems)
		return
	}
	action, err := models.ParseJobAction(req.Action)
	if err != nil {
		respondError(c, h.logger, "PerformAction", err)
		return
	}
	res, err := h.jobs.PerformAction(c.Request.Context(), a, c.Param("id"), services.ActionInput{
		Action:          action,
		StartProofPhoto: req.StartProofPhoto,
		GpsLat:          req.StartProofGpsLat,
		GpsLng:          req.StartProofGpsLng,
		Reason:          req.Reason,
	})
	if err != nil {
		respondError(c, h.logger, "PerformAction", err)
		return
	}
	body := gin.H{"job": res.Job}
	if res.Order != nil {
		body["order"] = res.Order
	}
	respondOK(c, http.StatusOK, body)
}

func (h *JobHandler) VerifyPayment(c *gin.Context) {
	a, ok := actor(c, h.logger)
	if !ok {
		return
	}
	req, problems := utils.ParseBody[verifyPaymentRequest](c)
	if problems != nil {
		respondInvalid(c, problems)
		return
	}
	job, err := h.jobs.VerifyPayment(c.Request.Context(), a, c.Param("id"), services.VerifyPaymentInput{
		PaymentID: req.RazorpayPaymentID,
		Signature: req.RazorpaySignature,
	})
	if err != nil {
		respondError(c, h.logger, "VerifyPayment", err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"job": job})
}
