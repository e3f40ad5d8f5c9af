package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"handyman-app/job-service/internal/config"
	"handyman-app/job-service/internal/handler"
	"handyman-app/job-service/internal/repository"
	"handyman-app/job-service/internal/repository/memstore"
	"handyman-app/job-service/internal/services"
	"handyman-app/job-service/internal/telemetry"
	"handyman-app/job-service/internal/utils"

	"github.com/bsm/redislock"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg := config.LoadConfig()
	logger := utils.NewLogger(cfg.LogLevel)
	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_SECRET is required")
	}

	ctx, shutdownManager := utils.NewShutdownManager(context.Background(), logger)
	shutdownManager.StartListening()

	// 1. Ledger store
	var store *repository.Store
	switch cfg.StoreDriver {
	case "memory":
		logger.Warn("using in-memory ledger store; data is lost on restart")
		store = memstore.New().Repositories()
	default:
		mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to MongoDB")
		}
		if err := mongoClient.Ping(ctx, nil); err != nil {
			logger.WithError(err).Fatal("failed to ping MongoDB")
		}
		shutdownManager.Register("mongo", func(ctx context.Context) error {
			return mongoClient.Disconnect(ctx)
		})
		db := mongoClient.Database(cfg.MongoDatabase)
		if err := repository.EnsureIndexes(ctx, db); err != nil {
			logger.WithError(err).Fatal("failed to create indexes")
		}
		store = repository.NewMongoStore(mongoClient, db)
	}

	// 2. Redis: locks, cache, notifications
	var (
		rdb      *redis.Client
		locker   services.JobLocker = utils.NoopLocker{}
		cache    services.SearchCache
		notifier services.Notifier = utils.NewLogNotifier(logger)
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Fatal("invalid Redis URL")
		}
		rdb = redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Fatal("failed to ping Redis")
		}
		shutdownManager.Register("redis", func(context.Context) error {
			return rdb.Close()
		})
		locker = utils.NewRedisJobLocker(redislock.New(rdb), cfg.JobLockTTL)
		cache = utils.NewJSONCache(rdb, "workers_search:", cfg.WorkerSearchCacheTTL)
	} else {
		logger.Warn("REDIS_URL not set; job locks and worker search cache are disabled")
	}

	switch cfg.NotificationTransport {
	case "http":
		if cfg.NotifiServiceURL != "" {
			notifier = utils.NewHTTPNotifier(cfg.NotifiServiceURL, 5*time.Second)
		}
	case "redis":
		if rdb != nil {
			notifier = utils.NewRedisNotifier(rdb, cfg.NotificationChannel)
		}
	}
	logger.WithField("notifier", fmt.Sprintf("%T", notifier)).Info("notification sink configured")

	// 3. Services
	gateway := utils.NewRazorpayClient(cfg.RazorpayBaseURL, cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.GatewayTimeout)
	dispatcher := services.NewDispatcher(notifier, logger)
	reputationService := services.NewReputationService(store, dispatcher, logger)
	jobService := services.NewJobService(store, reputationService, gateway, locker, dispatcher, services.PaymentSettings{
		Currency: cfg.PaymentCurrency,
		KeyID:    cfg.RazorpayKeyID,
	}, logger)
	noShowService := services.NewNoShowService(store, reputationService, dispatcher, logger)
	workerService := services.NewWorkerService(store.Workers, cache, logger)

	services.NewLedgerAuditor(store.Workers, reputationService, cfg.LedgerAuditInterval, logger).Start(ctx)

	// 4. Router
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), utils.RequestLogger(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.GET("/metrics", gin.WrapH(telemetry.Handler()))

	handler.RegisterRoutes(router, handler.Handlers{
		Jobs:       handler.NewJobHandler(jobService, logger),
		NoShows:    handler.NewNoShowHandler(noShowService, logger),
		Reputation: handler.NewReputationHandler(reputationService, logger),
		Workers:    handler.NewWorkerHandler(workerService, logger),
	}, handler.AuthSettings{JWTSecret: cfg.JWTSecret, SessionCookie: cfg.SessionCookie})

	// 5. Server
	server := &http.Server{
		Addr:              cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	shutdownManager.Register("http", func(ctx context.Context) error {
		return server.Shutdown(ctx)
	})

	go func() {
		logger.WithField("addr", cfg.ServerPort).Info("job service running")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server error")
		}
	}()

	// the shutdown manager exits the process
	select {}
}
