package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/workflow"

	"github.com/wms-platform/reservation-service/internal/activities"
	"github.com/wms-platform/reservation-service/internal/application"
	"github.com/wms-platform/reservation-service/internal/config"
	mongoStore "github.com/wms-platform/reservation-service/internal/infrastructure/mongodb"
	"github.com/wms-platform/reservation-service/internal/workflows"
	"github.com/wms-platform/reservation-service/pkg/cloudevents"
	"github.com/wms-platform/reservation-service/pkg/logging"
	"github.com/wms-platform/reservation-service/pkg/metrics"
	"github.com/wms-platform/reservation-service/pkg/mongodb"
	outboxMongo "github.com/wms-platform/reservation-service/pkg/outbox/mongodb"
	"github.com/wms-platform/reservation-service/pkg/temporal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(logging.DefaultConfig(config.ServiceName)).WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	logger := logging.New(cfg.LoggerConfig()).WithComponent("worker")
	logger.SetDefault()
	logger.Info("Starting reservation sweeper worker")

	if cfg.Store != config.StoreMongoDB {
		logger.Error("The worker needs the mongodb store", "store", cfg.Store)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New(metrics.DefaultConfig(config.ServiceName + "-worker"))

	mongoClient, err := mongodb.NewClient(ctx, cfg.MongoDB)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	instrumentedMongo := mongodb.NewInstrumentedClient(mongoClient, m, logger)
	defer instrumentedMongo.Close(context.Background())

	var stager *application.OutboxStager
	if cfg.Outbox.Enabled {
		outboxRepo := outboxMongo.NewOutboxRepository(instrumentedMongo.Collection(mongoStore.OutboxCollection))
		stager = application.NewOutboxStager(outboxRepo, cloudevents.NewEventFactory(cloudevents.SourceReservation))
	}

	services := application.NewServices(
		mongoStore.NewTransactionManager(instrumentedMongo, logger, cfg.TxOptions()),
		logger, m,
		application.Options{
			DefaultQuotationTTL: cfg.Reservation.DefaultQuotationTTL,
			Sweeper: &application.SweeperConfig{
				Interval:  cfg.Sweeper.Interval,
				BatchSize: cfg.Sweeper.BatchSize,
			},
			Outbox:    stager,
			Publisher: application.NewEventDispatcher(logger),
		},
	)

	temporalClient, err := temporal.NewClient(cfg.Temporal)
	if err != nil {
		logger.WithError(err).Error("Failed to create Temporal client")
		os.Exit(1)
	}
	defer temporalClient.Close()

	w := temporalClient.NewWorker(temporal.DefaultWorkerOptions(temporal.TaskQueues.Sweeper))
	w.RegisterWorkflowWithOptions(workflows.ExpirationSweepWorkflow, workflow.RegisterOptions{
		Name: temporal.WorkflowNames.ExpirationSweep,
	})
	sweeperActivities := activities.NewSweeperActivities(services.Sweeper, logger)
	w.RegisterActivityWithOptions(sweeperActivities.SweepExpiredQuotations, activity.RegisterOptions{
		Name: workflows.SweepExpiredQuotationsActivity,
	})

	if err := w.Start(); err != nil {
		logger.WithError(err).Error("Failed to start worker")
		os.Exit(1)
	}
	defer w.Stop()
	logger.Info("Worker started", "taskQueue", temporal.TaskQueues.Sweeper)

	run, err := temporalClient.EnsureCronWorkflow(ctx,
		cfg.Sweeper.WorkflowID,
		temporal.TaskQueues.Sweeper,
		cfg.Sweeper.Cron,
		temporal.WorkflowNames.ExpirationSweep,
		workflows.ExpirationSweepInput{Trigger: application.TriggerWorkflow},
	)
	if err != nil {
		logger.WithError(err).Error("Failed to schedule expiration sweep")
		os.Exit(1)
	}
	logger.Info("Expiration sweep scheduled", "workflowId", run.GetID(), "runId", run.GetRunID(), "cron", cfg.Sweeper.Cron)

	<-ctx.Done()
	logger.Info("Worker stopping")
}
