package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/caddelle/ops-backend/api/routes"
	"github.com/caddelle/ops-backend/internal/events"
	"github.com/caddelle/ops-backend/internal/events/idempotency"
	"github.com/caddelle/ops-backend/internal/events/payloads"
	"github.com/caddelle/ops-backend/internal/ledger"
	"github.com/caddelle/ops-backend/internal/notify"
	"github.com/caddelle/ops-backend/internal/publisher"
	"github.com/caddelle/ops-backend/internal/readmodel/clients"
	"github.com/caddelle/ops-backend/internal/readmodel/conferences"
	"github.com/caddelle/ops-backend/internal/readmodel/contracts"
	"github.com/caddelle/ops-backend/internal/readmodel/unrouted"
	"github.com/caddelle/ops-backend/internal/readmodel/users"
	"github.com/caddelle/ops-backend/internal/readmodel/work"
	"github.com/caddelle/ops-backend/pkg/config"
	"github.com/caddelle/ops-backend/pkg/db"
	"github.com/caddelle/ops-backend/pkg/logger"
	"github.com/caddelle/ops-backend/pkg/metrics"
	"github.com/caddelle/ops-backend/pkg/migrate"
	"github.com/caddelle/ops-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: cfg.App.ServiceName,
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

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	eventingMetrics := metrics.NewEventingMetrics(registry)

	decoderRegistry := events.NewRegistry()
	payloads.RegisterAll(decoderRegistry)

	routingTable, err := events.NewRoutingTable(events.RoutingTableParams{
		Overrides: cfg.Routing.Overrides,
		Logger:    logg,
		Metrics:   eventingMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build routing table", err)
		os.Exit(1)
	}

	topicTable, err := events.NewTopicTable(cfg.Kafka.Topics)
	if err != nil {
		logg.Error(context.Background(), "failed to build topic table", err)
		os.Exit(1)
	}

	var externalPublisher *publisher.Publisher
	if cfg.Kafka.Enabled() {
		externalPublisher, err = publisher.New(publisher.Params{
			Kafka:   cfg.Kafka,
			Topics:  topicTable,
			Metrics: eventingMetrics,
			Logger:  logg,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to build kafka publisher", err)
			os.Exit(1)
		}
		ctx := logg.WithField(context.Background(), "kafka_mode", cfg.Kafka.NormalizedMode())
		logg.Info(ctx, "external publisher enabled")
	}

	hub, err := notify.NewHub(redisClient, cfg.Notify, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build notify hub", err)
		os.Exit(1)
	}

	bus, err := events.NewBus(events.BusParams{
		QueueSize: cfg.Bus.QueueSize,
		Logger:    logg,
		Metrics:   eventingMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build event bus", err)
		os.Exit(1)
	}

	guard, err := idempotency.NewManager(redisClient, cfg.Events.IdempotencyTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to build idempotency guard", err)
		os.Exit(1)
	}

	if err := subscribeConsumers(dbClient, redisClient, decoderRegistry, guard, bus, logg); err != nil {
		logg.Error(context.Background(), "failed to subscribe consumers", err)
		os.Exit(1)
	}

	ledgerRepo := ledger.NewRepository(dbClient)

	handlerParams := events.HandlerParams{
		DB:            dbClient,
		Ledger:        ledgerRepo,
		Routing:       routingTable,
		Bus:           bus,
		Notifier:      hub,
		Logger:        logg,
		Producer:      cfg.App.ServiceName,
		SchemaVersion: cfg.Events.SchemaVersion,
	}
	if externalPublisher != nil {
		handlerParams.External = externalPublisher
	}
	handler, err := events.NewHandler(handlerParams)
	if err != nil {
		logg.Error(context.Background(), "failed to build command handler", err)
		os.Exit(1)
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := hub.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(runCtx, "notify hub stopped", err)
		}
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, handler, ledgerRepo, hub, registry),
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	select {
	case <-runCtx.Done():
		logg.Info(ctx, "shutdown signal received")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var shutdownErrs error
	if err := server.Shutdown(shutdownCtx); err != nil {
		shutdownErrs = multierr.Append(shutdownErrs, err)
	}
	// Drain the internal bus before flushing the producer so events accepted
	// just before the signal still reach the broker.
	if err := bus.Close(shutdownCtx); err != nil {
		shutdownErrs = multierr.Append(shutdownErrs, err)
	}
	if externalPublisher != nil {
		if err := externalPublisher.Close(); err != nil {
			shutdownErrs = multierr.Append(shutdownErrs, err)
		}
	}

	if shutdownErrs != nil {
		logg.Error(ctx, "shutdown finished with errors", shutdownErrs)
		os.Exit(1)
	}
	logg.Info(ctx, "shutdown complete")
}

func subscribeConsumers(
	dbClient *db.Client,
	redisClient *redis.Client,
	decoderRegistry *events.Registry,
	guard *idempotency.Manager,
	bus *events.Bus,
	logg *logger.Logger,
) error {
	clientsConsumer, err := clients.New(clients.Params{
		DB: dbClient, Registry: decoderRegistry, Guard: guard, Cache: redisClient, Logger: logg,
	})
	if err != nil {
		return err
	}
	if err := bus.Subscribe(events.AddressClients, clientsConsumer); err != nil {
		return err
	}

	usersConsumer, err := users.New(users.Params{
		DB: dbClient, Registry: decoderRegistry, Guard: guard, Cache: redisClient, Logger: logg,
	})
	if err != nil {
		return err
	}
	if err := bus.Subscribe(events.AddressUsers, usersConsumer); err != nil {
		return err
	}

	workConsumer, err := work.New(work.Params{
		DB: dbClient, Registry: decoderRegistry, Guard: guard, Cache: redisClient, Logger: logg,
	})
	if err != nil {
		return err
	}
	if err := bus.Subscribe(events.AddressWork, workConsumer); err != nil {
		return err
	}

	contractsConsumer, err := contracts.New(contracts.Params{
		DB: dbClient, Registry: decoderRegistry, Guard: guard, Cache: redisClient, Logger: logg,
	})
	if err != nil {
		return err
	}
	if err := bus.Subscribe(events.AddressContracts, contractsConsumer); err != nil {
		return err
	}

	conferencesConsumer, err := conferences.New(conferences.Params{
		DB: dbClient, Registry: decoderRegistry, Guard: guard, Cache: redisClient, Logger: logg,
	})
	if err != nil {
		return err
	}
	if err := bus.Subscribe(events.AddressConferences, conferencesConsumer); err != nil {
		return err
	}

	unroutedListener, err := unrouted.New(logg)
	if err != nil {
		return err
	}
	return bus.Subscribe(events.AddressDefault, unroutedListener)
}
