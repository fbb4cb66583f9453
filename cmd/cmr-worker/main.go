package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/freightlinkhq/freightlink-backend/internal/cmr"
	"github.com/freightlinkhq/freightlink-backend/internal/cmrdocs"
	"github.com/freightlinkhq/freightlink-backend/internal/orders"
	"github.com/freightlinkhq/freightlink-backend/internal/users"
	"github.com/freightlinkhq/freightlink-backend/pkg/config"
	"github.com/freightlinkhq/freightlink-backend/pkg/db"
	"github.com/freightlinkhq/freightlink-backend/pkg/instance"
	"github.com/freightlinkhq/freightlink-backend/pkg/logger"
	"github.com/freightlinkhq/freightlink-backend/pkg/migrate"
	"github.com/freightlinkhq/freightlink-backend/pkg/outbox"
	"github.com/freightlinkhq/freightlink-backend/pkg/outbox/idempotency"
	"github.com/freightlinkhq/freightlink-backend/pkg/pubsub"
	"github.com/freightlinkhq/freightlink-backend/pkg/redis"
	"github.com/freightlinkhq/freightlink-backend/pkg/storage/gcs"
)

// Processed-event markers outlive the subscription's redelivery window.
const idempotencyTTL = 24 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "cmr-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cmr-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	gcsClient, err := gcs.NewClient(context.Background(), cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap gcs", err)
		os.Exit(1)
	}

	usersRepo := users.NewRepository(dbClient.DB())
	directory, err := users.NewDirectory(usersRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create user directory", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	ordersRepo := orders.NewRepository(dbClient.DB())
	ordersService, err := orders.NewService(ordersRepo, dbClient, outboxService, logg, int64(cfg.Pricing.ContractorShareBP))
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	cmrRepo := cmr.NewRepository(dbClient.DB())
	cmrService, err := cmr.NewService(
		cmrRepo,
		cmr.NewNumberSource(dbClient.DB()),
		ordersRepo,
		directory,
		ordersService,
		dbClient,
		outboxService,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create cmr service", err)
		os.Exit(1)
	}

	docsService, err := cmrdocs.NewService(
		cmrRepo,
		cmrRepo,
		ordersRepo,
		cmrdocs.NewArtifactRepository(dbClient.DB()),
		cmrdocs.NewGCSStore(gcsClient, cfg.GCS.BucketName),
		redisClient,
		nil,
		dbClient,
		outboxService,
		cfg.Render,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create document service", err)
		os.Exit(1)
	}

	idempotencyManager, err := idempotency.NewManager(redisClient, idempotencyTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency manager", err)
		os.Exit(1)
	}

	consumer, err := NewConsumer(cmrService, docsService, ordersService, pubsubClient.CMRSubscription(), idempotencyManager, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create cmr consumer", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "cmr-worker",
		"instance":    instance.GetID(),
	})
	logg.Info(ctx, "starting cmr worker")

	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cmr worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cmr worker shutting down gracefully")
}
