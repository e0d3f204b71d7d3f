package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/reservation-service/internal/api"
	"github.com/wms-platform/reservation-service/internal/application"
	"github.com/wms-platform/reservation-service/internal/config"
	"github.com/wms-platform/reservation-service/internal/domain"
	"github.com/wms-platform/reservation-service/internal/infrastructure/memory"
	mongoStore "github.com/wms-platform/reservation-service/internal/infrastructure/mongodb"
	"github.com/wms-platform/reservation-service/pkg/cloudevents"
	"github.com/wms-platform/reservation-service/pkg/idempotency"
	"github.com/wms-platform/reservation-service/pkg/kafka"
	"github.com/wms-platform/reservation-service/pkg/logging"
	"github.com/wms-platform/reservation-service/pkg/metrics"
	"github.com/wms-platform/reservation-service/pkg/middleware"
	"github.com/wms-platform/reservation-service/pkg/mongodb"
	"github.com/wms-platform/reservation-service/pkg/outbox"
	outboxMongo "github.com/wms-platform/reservation-service/pkg/outbox/mongodb"
	"github.com/wms-platform/reservation-service/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(logging.DefaultConfig(config.ServiceName)).WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	logger := logging.New(cfg.LoggerConfig())
	logger.SetDefault()
	logger.Info("Starting reservation-service API", "store", cfg.Store)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracerProvider, err := tracing.Initialize(ctx, cfg.Tracing)
	if err != nil {
		// continue without tracing
		logger.WithError(err).Error("Failed to initialize tracing")
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Failed to shutdown tracer")
			}
		}()
	}

	m := metrics.New(metrics.DefaultConfig(config.ServiceName))

	dispatcher := application.NewEventDispatcher(logger)
	dispatcher.Subscribe(cloudevents.QuotationConverted, func(ctx context.Context, event domain.DomainEvent) error {
		logger.Audit(ctx, "convert", "quotation", event.AggregateID(), nil)
		return nil
	})

	var (
		tx        domain.TransactionManager
		stager    *application.OutboxStager
		readiness = func(context.Context) error { return nil }
		keys      idempotency.KeyRepository
	)

	switch cfg.Store {
	case config.StoreMemory:
		tx = memory.NewStore(memory.WithLockWaitTimeout(cfg.Transaction.LockWaitTimeout))
		keys = idempotency.NewMemoryKeyRepository()
		logger.Warn("Using in-memory store, state is lost on restart")

	case config.StoreMongoDB:
		mongoClient, err := mongodb.NewClient(ctx, cfg.MongoDB)
		if err != nil {
			logger.WithError(err).Error("Failed to connect to MongoDB")
			os.Exit(1)
		}
		instrumentedMongo := mongodb.NewInstrumentedClient(mongoClient, m, logger)
		defer instrumentedMongo.Close(context.Background())
		logger.Info("Connected to MongoDB", "database", cfg.MongoDB.Database)

		manager := mongoStore.NewTransactionManager(instrumentedMongo, logger, cfg.TxOptions())
		if err := manager.EnsureIndexes(ctx); err != nil {
			logger.WithError(err).Error("Failed to create indexes")
			os.Exit(1)
		}
		tx = manager
		readiness = instrumentedMongo.HealthCheck

		keyRepo := idempotency.NewMongoKeyRepository(instrumentedMongo.Collection(idempotency.KeysCollection))
		if err := keyRepo.EnsureIndexes(ctx); err != nil {
			logger.WithError(err).Warn("Failed to create idempotency indexes")
		}
		keys = keyRepo

		if cfg.Outbox.Enabled {
			outboxRepo := outboxMongo.NewOutboxRepository(instrumentedMongo.Collection(mongoStore.OutboxCollection))
			if err := outboxRepo.EnsureIndexes(ctx); err != nil {
				logger.WithError(err).Warn("Failed to create outbox indexes")
			}
			stager = application.NewOutboxStager(outboxRepo, cloudevents.NewEventFactory(cloudevents.SourceReservation))

			if err := kafka.EnsureTopics(ctx, cfg.Kafka, kafka.DefaultTopicConfigs(1)); err != nil {
				logger.WithError(err).Warn("Failed to ensure Kafka topics")
			}
			producer := kafka.NewProductionProducer(cfg.Kafka, m, logger)
			defer producer.Close()

			outboxPublisher := outbox.NewPublisher(outboxRepo, producer, logger, m, &outbox.PublisherConfig{
				PollInterval: cfg.Outbox.PollInterval,
				BatchSize:    cfg.Outbox.BatchSize,
			})
			if err := outboxPublisher.Start(ctx); err != nil {
				logger.WithError(err).Error("Failed to start outbox publisher")
				os.Exit(1)
			}
			defer outboxPublisher.Stop()
			logger.Info("Outbox publisher started", "brokers", cfg.Kafka.Brokers)
		}
	}

	services := application.NewServices(tx, logger, m, application.Options{
		DefaultQuotationTTL: cfg.Reservation.DefaultQuotationTTL,
		Sweeper: &application.SweeperConfig{
			Interval:  cfg.Sweeper.Interval,
			BatchSize: cfg.Sweeper.BatchSize,
		},
		Outbox:    stager,
		Publisher: dispatcher,
	})

	if cfg.Sweeper.Enabled {
		if err := services.Sweeper.Start(ctx); err != nil {
			logger.WithError(err).Error("Failed to start expiration sweeper")
			os.Exit(1)
		}
		defer services.Sweeper.Stop()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	middlewareConfig := middleware.DefaultConfig(config.ServiceName, logger)
	middlewareConfig.Metrics = m
	middlewareConfig.EnableTracing = cfg.Tracing.Enabled
	middlewareConfig.ErrorMappings = application.ErrorMappings()
	if cfg.Idempotency.Enabled {
		idem := idempotency.DefaultConfig(config.ServiceName, keys, logger)
		idem.RequireKey = cfg.Idempotency.RequireKey
		idem.LockTimeout = cfg.Idempotency.LockTimeout
		idem.RetentionPeriod = cfg.Idempotency.RetentionPeriod
		middlewareConfig.Idempotency = idem
	}
	middleware.Setup(router, middlewareConfig)

	router.GET("/health", middleware.HealthCheck(config.ServiceName))
	router.GET("/ready", middleware.ReadinessCheck(config.ServiceName, readiness))
	router.GET("/metrics", middleware.MetricsEndpoint(m))

	api.RegisterRoutes(router, services, logger)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
			stop()
		}
	}()
	logger.Info("Server started", "addr", cfg.Server.Addr)

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server stopped")
}
