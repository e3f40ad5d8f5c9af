package handler

import (
	"net/http"
	"strings"

	"handyman-app/job-service/internal/models"
	"handyman-app/job-service/internal/services"
	"handyman-app/job-service/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type NoShowHandler struct {
	noShows services.NoShowService
	logger  *logrus.Logger
}

func NewNoShowHandler(noShows services.NoShowService, logger *logrus.Logger) *NoShowHandler {
	return &NoShowHandler{noShows: noShows, logger: logger}
}

type fileReportRequest struct {
	JobID    string `json:"jobId"`
	Reason   string `json:"reason" validate:"required,max=2000"`
	Evidence string `json:"evidence" validate:"max=2000"`
}

type disputeRequest struct {
	WorkerReply string `json:"workerReply" validate:"required,max=2000"`
	Evidence    string `json:"evidence" validate:"max=2000"`
}

type workerResolveRequest struct {
	ReportID    string `json:"reportId" validate:"required"`
	Action      string `json:"action" validate:"required,oneof=DISPUTE ACCEPT_PENALTY"`
	WorkerReply string `json:"workerReply" validate:"max=2000"`
	Evidence    string `json:"evidence" validate:"max=2000"`
}

type adminResolveRequest struct {
	NoShowReportID string `json:"noShowReportId" validate:"required"`
	Decision       string `json:"decision" validate:"required,oneof=APPROVED REJECTED"`
	Resolution     string `json:"resolution" validate:"required,max=2000"`
	FavorWorker    bool   `json:"favorWorker"`
}

func (h *NoShowHandler) file(c *gin.Context, jobID string) {
	a, ok := actor(c, h.logger)
	if !ok {
		return
	}
	req, problems := utils.ParseBody[fileReportRequest](c)
	if problems != nil {
		respondInvalid(c, problems)
		return
	}
	if jobID == "" {
		jobID = strings.TrimSpace(req.JobID)
	}
	report, err := h.noShows.File(c.Request.Context(), a, services.FileReportInput{
		JobID:    jobID,
		Reason:   req.Reason,
		Evidence: req.Evidence,
	})
	if err != nil {
		respondError(c, h.logger, "FileReport", err)
		return
	}
	respondOK(c, http.StatusCreated, gin.H{"report": report})
}

// FileForJob handles POST /api/jobs/:id/report-no-show.
func (h *NoShowHandler) FileForJob(c *gin.Context) {
	h.file(c, c.Param("id"))
}

// File handles POST /api/reputation/no-show-reports with jobId in the body.
func (h *NoShowHandler) File(c *gin.Context) {
	h.file(c, "")
}

// DisputeForJob handles PATCH /api/jobs/:id/report-no-show.
func (h *NoShowHandler) DisputeForJob(c *gin.Context) {
	a, ok := actor(c, h.logger)
	if !ok {
		return
	}
	req, problems := utils.ParseBody[disputeRequest](c)
	if problems != nil {
		respondInvalid(c, problems)
		return
	}
	report, err := h.noShows.Dispute(c.Request.Context(), a, services.ReportRef{JobID: c.Param("id")}, req.WorkerReply, req.Evidence)
	if err != nil {
		respondError(c, h.logger, "DisputeForJob", err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"report": report})
}

// WorkerResolve lets the reported worker dispute or accept a report.
func (h *NoShowHandler) WorkerResolve(c *gin.Context) {
	a, ok := actor(c, h.logger)
	if !ok {
		return
	}
	req, problems := utils.ParseBody[workerResolveRequest](c)
	if problems != nil {
		respondInvalid(c, problems)
		return
	}
	ref := services.ReportRef{ID: req.ReportID}
	switch req.Action {
	case "DISPUTE":
		report, err := h.noShows.Dispute(c.Request.Context(), a, ref, req.WorkerReply, req.Evidence)
		if err != nil {
			respondError(c, h.logger, "WorkerResolve", err)
			return
		}
		respondOK(c, http.StatusOK, gin.H{"report": report})
	default:
		res, err := h.noShows.AcceptPenalty(c.Request.Context(), a, ref)
		if err != nil {
			respondError(c, h.logger, "WorkerResolve", err)
			return
		}
		respondOK(c, http.StatusOK, gin.H{"report": res.Report, "reputationChange": res.ReputationChange})
	}
}

func (h *NoShowHandler) List(c *gin.Context) {
	a, ok := actor(c, h.logger)
	if !ok {
		return
	}
	status := models.ReportStatus(strings.ToUpper(c.Query("status")))
	reports, err := h.noShows.List(c.Request.Context(), a, status)
	if err != nil {
		respondError(c, h.logger, "ListReports", err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"reports": reports})
}

func (h *NoShowHandler) GetForJob(c *gin.Context) {
	a, ok := actor(c, h.logger)
	if !ok {
		return
	}
	report, err := h.noShows.Get(c.Request.Context(), a, services.ReportRef{JobID: c.Param("id")})
	if err != nil {
		respondError(c, h.logger, "GetForJob", err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"report": report})
}

func (h *NoShowHandler) AdminResolve(c *gin.Context) {
	a, ok := actor(c, h.logger)
	if !ok {
		return
	}
	req, problems := utils.ParseBody[adminResolveRequest](c)
	if problems != nil {
		respondInvalid(c, problems)
		return
	}
	res, err := h.noShows.AdminResolve(c.Request.Context(), a, services.ResolveInput{
		ReportID:    req.NoShowReportID,
		Decision:    models.ReportStatus(req.Decision),
		Resolution:  req.Resolution,
		FavorWorker: req.FavorWorker,
	})
	if err != nil {
		respondError(c, h.logger, "AdminResolve", err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"report": res.Report, "reputationChange": res.ReputationChange})
}

func (h *NoShowHandler) MarkUnderReview(c *gin.Context) {
	a, ok := actor(c, h.logger)
	if !ok {
		return
	}
	report, err := h.noShows.MarkUnderReview(c.Request.Context(), a, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "MarkUnderReview", err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"report": report})
}
