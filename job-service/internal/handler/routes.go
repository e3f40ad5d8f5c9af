package handler

import (
	"net/http"

	"handyman-app/job-service/internal/models"
	"handyman-app/job-service/internal/utils"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Jobs       *JobHandler
	NoShows    *NoShowHandler
	Reputation *ReputationHandler
	Workers    *WorkerHandler
}

type AuthSettings struct {
	JWTSecret     string
	SessionCookie string
}

// RegisterRoutes mounts the API under /api behind the session middleware.
func RegisterRoutes(router *gin.Engine, h Handlers, auth AuthSettings) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.Use(utils.AuthMiddleware(auth.JWTSecret, auth.SessionCookie))

	jobs := api.Group("/jobs")
	{
		jobs.POST("", utils.RequireRoles(models.RoleCustomer), h.Jobs.CreateJob)
		jobs.GET("", h.Jobs.ListJobs)
		jobs.GET("/:id", h.Jobs.GetJob)
		jobs.PATCH("/:id", h.Jobs.PerformAction)
		jobs.POST("/:id", utils.RequireRoles(models.RoleCustomer), h.Jobs.VerifyPayment)
		jobs.GET("/:id/logs", h.Jobs.GetJobLogs)
		jobs.GET("/:id/transactions", h.Jobs.GetJobTransactions)
		jobs.GET("/:id/report-no-show", h.NoShows.GetForJob)
		jobs.POST("/:id/report-no-show", utils.RequireRoles(models.RoleCustomer), h.NoShows.FileForJob)
		jobs.PATCH("/:id/report-no-show", utils.RequireRoles(models.RoleWorker), h.NoShows.DisputeForJob)
	}

	reputation := api.Group("/reputation")
	{
		reputation.GET("/workers/:workerId", h.Reputation.GetWorkerReputation)
		reputation.GET("/workers/:workerId/logs", h.Reputation.GetWorkerLogs)
		reputation.POST("/assess", utils.RequireRoles(models.RoleCustomer), h.Reputation.Assess)

		reputation.GET("/no-show-reports", h.NoShows.List)
		reputation.POST("/no-show-reports", utils.RequireRoles(models.RoleCustomer), h.NoShows.File)
		reputation.PATCH("/no-show-reports", utils.RequireRoles(models.RoleWorker), h.NoShows.WorkerResolve)

		admin := reputation.Group("/admin")
		admin.Use(utils.RequireRoles(models.RoleAdmin))
		{
			admin.POST("/resolve", h.NoShows.AdminResolve)
			admin.PATCH("/no-show-reports/:id/review", h.NoShows.MarkUnderReview)
			admin.POST("/adjust", h.Reputation.AdminAdjust)
			admin.GET("/reconcile/:workerId", h.Reputation.Reconcile)
		}
	}

	api.GET("/workers", h.Workers.Search)
}
