package handler

import (
	"net/http"

	"handyman-app/job-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type WorkerHandler struct {
	workers services.WorkerService
	logger  *logrus.Logger
}

func NewWorkerHandler(workers services.WorkerService, logger *logrus.Logger) *WorkerHandler {
	return &WorkerHandler{workers: workers, logger: logger}
}

func (h *WorkerHandler) Search(c *gin.Context) {
	filter, err := services.ParseWorkerFilter(c.Request.URL.Query())
	if err != nil {
		respondError(c, h.logger, "SearchWorkers", err)
		return
	}
	workers, err := h.workers.Search(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, "SearchWorkers", err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"workers": workers, "count": len(workers)})
}
