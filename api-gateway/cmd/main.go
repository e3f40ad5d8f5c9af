package main

import (
	"net/http"
	"time"

	"handyman-app/api-gateway/internal/config"
	"handyman-app/api-gateway/internal/middleware"
	"handyman-app/api-gateway/setup"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.LoadConfig()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_SECRET is required")
	}

	router, err := setup.NewRouter(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to configure routes")
	}

	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           middleware.Recovery(logger)(middleware.CORS(cfg.AllowedOrigins)(router)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.WithFields(logrus.Fields{
		"addr":        cfg.Port,
		"job_service": cfg.JobServiceURL,
	}).Info("API gateway listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Fatal("failed to run API gateway")
	}
}
