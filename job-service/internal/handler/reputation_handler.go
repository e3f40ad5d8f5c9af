package handler

import (
	"net/http"
	"strconv"

	"handyman-app/job-service/internal/models"
	"handyman-app/job-service/internal/services"
	"handyman-app/job-service/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type ReputationHandler struct {
	reputation services.ReputationService
	logger     *logrus.Logger
}

func NewReputationHandler(reputation services.ReputationService, logger *logrus.Logger) *ReputationHandler {
	return &ReputationHandler{reputation: reputation, logger: logger}
}

type assessRequest struct {
	JobID      string `json:"jobId" validate:"required"`
	Assessment string `json:"assessment" validate:"required,oneof=ON_TIME LATE NO_SHOW"`
}

type adjustRequest struct {
	WorkerID string `json:"workerId" validate:"required"`
	Change   int    `json:"change" validate:"required,min=-150,max=150"`
	Reason   string `json:"reason" validate:"required,max=1000"`
}

func (h *ReputationHandler) GetWorkerReputation(c *gin.Context) {
	summary, err := h.reputation.Summary(c.Request.Context(), c.Param("workerId"))
	if err != nil {
		respondError(c, h.logger, "GetWorkerReputation", err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"workerId":      summary.WorkerID,
		"reputation":    summary.Reputation,
		"category":      summary.Category,
		"completedJobs": summary.CompletedJobs,
		"canBeBooked":   summary.CanBeBooked,
		"reason":        summary.Reason,
	})
}

func (h *ReputationHandler) GetWorkerLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	logs, err := h.reputation.Logs(c.Request.Context(), c.Param("workerId"), limit)
	if err != nil {
		respondError(c, h.logger, "GetWorkerLogs", err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"logs": logs})
}

func (h *ReputationHandler) Assess(c *gin.Context) {
	a, ok := actor(c, h.logger)
	if !ok {
		return
	}
	req, problems := utils.ParseBody[assessRequest](c)
	if problems != nil {
		respondInvalid(c, problems)
		return
	}
	assessment, err := models.ParseAssessment(req.Assessment)
	if err != nil {
		respondError(c, h.logger, "Assess", err)
		return
	}
	res, err := h.reputation.AssessByCustomer(c.Request.Context(), a, req.JobID, assessment)
	if err != nil {
		respondError(c, h.logger, "Assess", err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"assessment": res})
}

func (h *ReputationHandler) AdminAdjust(c *gin.Context) {
	a, ok := actor(c, h.logger)
	if !ok {
		return
	}
	req, problems := utils.ParseBody[adjustRequest](c)
	if problems != nil {
		respondInvalid(c, problems)
		return
	}
	entry, err := h.reputation.AdminAdjust(c.Request.Context(), a, req.WorkerID, req.Change, req.Reason)
	if err != nil {
		respondError(c, h.logger, "AdminAdjust", err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"log": entry, "reputation": entry.Metadata.After})
}

func (h *ReputationHandler) Reconcile(c *gin.Context) {
	repair, _ := strconv.ParseBool(c.Query("repair"))
	res, err := h.reputation.Reconcile(c.Request.Context(), c.Param("workerId"), repair)
	if err != nil {
		respondError(c, h.logger, "Reconcile", err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"reconciliation": res})
}
