package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/construxio/sitehub-backend/internal/batch"
	"github.com/construxio/sitehub-backend/internal/command"
	"github.com/construxio/sitehub-backend/internal/data/snapshots"
	"github.com/construxio/sitehub-backend/internal/db"
	types "github.com/construxio/sitehub-backend/internal/domain"
	"github.com/construxio/sitehub-backend/internal/eventstream"
	httpx "github.com/construxio/sitehub-backend/internal/http"
	httpH "github.com/construxio/sitehub-backend/internal/http/handlers"
	"github.com/construxio/sitehub-backend/internal/observability"
	"github.com/construxio/sitehub-backend/internal/platform/envutil"
	"github.com/construxio/sitehub-backend/internal/platform/logger"
	"github.com/construxio/sitehub-backend/internal/projection"
	"github.com/construxio/sitehub-backend/internal/services"
	"github.com/construxio/sitehub-backend/internal/snapshot"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	partitions := envutil.Int("STREAM_PARTITIONS", 4)
	group := envutil.Str("STREAM_CONSUMER_GROUP", "sitehub-backend")
	consumerName := envutil.Str("STREAM_CONSUMER_NAME", hostname())
	retryAttempts := envutil.Int("COMMAND_RETRY_ATTEMPTS", 3)
	backoff := command.Backoff{
		Min:    envutil.Dur("COMMAND_RETRY_MIN_BACKOFF", 25*time.Millisecond),
		Max:    envutil.Dur("COMMAND_RETRY_MAX_BACKOFF", 500*time.Millisecond),
		Jitter: 0.25,
	}
	ignoredUsers := envutil.UUIDSet("PROJECTION_IGNORED_USER_IDS")

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Redis
	rdb, err := db.NewRedisClient(log)
	if err != nil {
		log.Error("Redis init failed", "error", err)
		os.Exit(1)
	}

	// Metrics
	metrics := observability.Init()

	// Snapshot stores
	log.Info("Setting up snapshot stores from main...")
	projectStore := snapshots.NewProjectStore(log, metrics)
	taskStore := snapshots.NewTaskStore(log, metrics)
	scheduleStore := snapshots.NewTaskScheduleStore(log, metrics)
	milestoneStore := snapshots.NewMilestoneStore(log, metrics)
	userStore := snapshots.NewUserStore(log, metrics)
	employeeStore := snapshots.NewEmployeeStore(log, metrics)

	// Projection
	participantProjector := projection.NewParticipantProjector(log, metrics, ignoredUsers)

	// Dispatcher
	dispatcher := snapshot.NewDispatcher(log)
	projectStore.Register(dispatcher)
	taskStore.Register(dispatcher)
	scheduleStore.Register(dispatcher)
	milestoneStore.Register(dispatcher)
	userStore.Register(dispatcher)
	employeeStore.Register(dispatcher)
	participantProjector.Register(dispatcher)

	// Event log
	producer := eventstream.NewProducer(rdb, partitions, log, metrics)
	gate := command.NewGate(thePG, producer, log, metrics, retryAttempts, backoff)

	// Services
	log.Info("Setting up services from main...")
	projectService := services.NewProjectService(thePG, log, gate, projectStore)
	taskService := services.NewTaskService(thePG, log, gate, taskStore)
	scheduleService := services.NewTaskScheduleService(thePG, log, gate, scheduleStore)
	milestoneService := services.NewMilestoneService(thePG, log, gate, milestoneStore)
	participantService := services.NewParticipantService(thePG, log, participantProjector)

	rescheduleCoordinator := batch.NewRescheduleCoordinator(
		thePG,
		scheduleStore,
		milestoneStore,
		batch.ShiftFunc(scheduleService.Shift),
		batch.ShiftFunc(milestoneService.Shift),
		producer,
		log,
		metrics,
	)

	// Consumer
	log.Info("Setting up stream consumer from main...")
	consumer := eventstream.NewConsumer(rdb, eventstream.ConsumerConfig{
		Group: group,
		Name:  consumerName,
		Kinds: []string{
			types.KindProject,
			types.KindTask,
			types.KindTaskSchedule,
			types.KindMilestone,
			types.KindUser,
			types.KindEmployee,
		},
		Partitions: partitions,
	}, snapshot.TransactionalHandler(thePG, dispatcher), log, metrics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("Consumer stopped", "error", err)
		}
	}()

	// Handlers
	log.Info("Setting up handlers from main...")
	projectHandler := httpH.NewProjectHandler(log, projectService, rescheduleCoordinator)
	taskHandler := httpH.NewTaskHandler(log, taskService)
	scheduleHandler := httpH.NewTaskScheduleHandler(log, scheduleService)
	milestoneHandler := httpH.NewMilestoneHandler(log, milestoneService)
	participantHandler := httpH.NewParticipantHandler(log, participantService)
	healthHandler := httpH.NewHealthHandler(thePG)

	// Router
	log.Info("Setting up router from main...")
	server := httpx.NewServer(httpx.RouterConfig{
		Log:                 log,
		Metrics:             metrics,
		ProjectHandler:      projectHandler,
		TaskHandler:         taskHandler,
		TaskScheduleHandler: scheduleHandler,
		MilestoneHandler:    milestoneHandler,
		ParticipantHandler:  participantHandler,
		HealthHandler:       healthHandler,
	})

	port := envutil.Str("PORT", "8080")
	fmt.Printf("Server listening on :%s\n", port)
	if err := server.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
	}
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "sitehub-backend"
	}
	return name
}
