package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agilasoft/logistics-sub000/internal/api/handlers"
	"github.com/agilasoft/logistics-sub000/internal/application"
	"github.com/agilasoft/logistics-sub000/internal/config"
	kafkaInfra "github.com/agilasoft/logistics-sub000/internal/infrastructure/kafka"
	mongoRepo "github.com/agilasoft/logistics-sub000/internal/infrastructure/mongodb"
	"github.com/agilasoft/logistics-sub000/pkg/kafka"
	"github.com/agilasoft/logistics-sub000/pkg/logging"
	"github.com/agilasoft/logistics-sub000/pkg/metrics"
	"github.com/agilasoft/logistics-sub000/pkg/mongodb"
)

const serviceName = "wms-allocation-engine"

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.LogLevel(cfg.LogLevel)
	logConfig.Environment = cfg.Environment
	logger := logging.New(logConfig)

	logger.Info("Starting allocation engine API")

	ctx := context.Background()

	metricsConfig := metrics.DefaultConfig(serviceName)
	m := metrics.New(metricsConfig)

	mongoClient, err := mongodb.NewClient(ctx, cfg.MongoDBConfig())
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	protectedMongo := mongodb.NewCircuitBreakerClient(mongoClient, logger)
	defer protectedMongo.Close(ctx)
	logger.Info("Connected to MongoDB", "database", cfg.MongoDB.Database)

	producer := kafka.NewProducer(cfg.KafkaConfig())
	publisher := kafkaInfra.NewEventPublisher(producer, m, logger)
	defer publisher.Close()
	logger.Info("Kafka producer initialized", "brokers", cfg.Kafka.Brokers)

	db := protectedMongo.Database()
	ledgerRepo := mongoRepo.NewLedgerRepository(db)
	jobRepo := mongoRepo.NewJobRepository(db)
	itemRepo := mongoRepo.NewItemRepository(db)
	locationRepo := mongoRepo.NewLocationRepository(db)
	huRepo := mongoRepo.NewHandlingUnitRepository(db)
	batchRepo := mongoRepo.NewBatchRepository(db)
	bomRepo := mongoRepo.NewBOMRepository(db)

	allocationCfg := cfg.AllocationConfig()
	locator := application.NewCandidateLocator(ledgerRepo, itemRepo, locationRepo, huRepo, batchRepo, logger)
	allocationService := application.NewAllocationService(
		jobRepo, itemRepo, locationRepo, huRepo, ledgerRepo, bomRepo,
		locator, publisher, m, logger, allocationCfg)
	txRunner := mongoRepo.NewTxRunner(protectedMongo)
	postingService := application.NewPostingService(
		jobRepo, itemRepo, locationRepo, huRepo, ledgerRepo, txRunner,
		publisher, m, logger, allocationCfg)
	capacityService := application.NewCapacityService(
		itemRepo, locationRepo, huRepo, ledgerRepo,
		publisher, m, logger, allocationCfg)
	ledgerService := application.NewLedgerService(ledgerRepo, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogging(logger, m))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": serviceName})
	})
	router.GET("/ready", func(c *gin.Context) {
		if err := protectedMongo.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	router.GET("/metrics", gin.WrapH(m.Handler()))

	v1 := router.Group("/api/v1")
	handlers.NewAllocationHandlers(allocationService, logger).RegisterRoutes(v1)
	handlers.NewPostingHandlers(postingService, logger).RegisterRoutes(v1)
	handlers.NewCapacityHandlers(capacityService, logger).RegisterRoutes(v1)
	handlers.NewLedgerHandlers(ledgerService, logger).RegisterRoutes(v1)

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Server error")
		}
	}()
	logger.Info("Server started", "addr", cfg.ServerAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server stopped")
}

// requestLogging records every request in the structured log and metrics
func requestLogging(logger *logging.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		logger.HTTPRequest(c.Request.Context(), c.Request.Method, path, c.Writer.Status(), duration, c.ClientIP())
		m.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), duration)
	}
}
