package handler

import (
	"errors"
	"net/http"
	"strings"

	"handyman-app/job-service/internal/models"
	"handyman-app/job-service/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{models.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{models.ErrForbidden, http.StatusForbidden, "forbidden"},
	{models.ErrNotFound, http.StatusNotFound, "not_found"},
	{models.ErrInvalidID, http.StatusBadRequest, "invalid_id"},
	{models.ErrValidation, http.StatusBadRequest, "validation_error"},
	{models.ErrInvalidState, http.StatusBadRequest, "invalid_state"},
	{models.ErrPaymentVerificationFailed, http.StatusBadRequest, "payment_verification_failed"},
	{models.ErrAlreadyExists, http.StatusConflict, "already_exists"},
	{models.ErrAlreadyMarked, http.StatusConflict, "already_marked"},
	{models.ErrAlreadyAssessed, http.StatusConflict, "already_assessed"},
	{models.ErrDuplicateReputationEvent, http.StatusConflict, "duplicate_reputation_event"},
	{models.ErrConflict, http.StatusConflict, "conflict"},
}

func respondError(c *gin.Context, logger *logrus.Logger, funcName string, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			c.JSON(m.status, gin.H{"error": m.code, "message": err.Error()})
			return
		}
	}
	utils.LogError(logger, "handler", funcName, c.Request.Method+" "+c.FullPath(), gin.H{
		"user_id": c.GetString("userId"),
		"params":  c.Params,
	}, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "internal server error"})
}

func respondInvalid(c *gin.Context, problems []string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "validation_error",
		"message": strings.Join(problems, "; "),
		"details": problems,
	})
}

func respondOK(c *gin.Context, status int, body gin.H) {
	if body == nil {
		body = gin.H{}
	}
	body["success"] = true
	c.JSON(status, body)
}

// actor resolves the caller set by utils.AuthMiddleware.
func actor(c *gin.Context, logger *logrus.Logger) (models.Actor, bool) {
	a, err := utils.ActorFromContext(c)
	if err != nil {
		respondError(c, logger, "actor", err)
		return models.Actor{}, false
	}
	return a, true
}
