package main

import (
	"context"
	"fmt"
	migrations "poolsched/internal/migrations/sqlite"
	registryrepo "poolsched/internal/registry/repository"
	registryservice "poolsched/internal/registry/service"
	registryvalidator "poolsched/internal/registry/validator"
	"poolsched/internal/reservations/query"
	reservationrepo "poolsched/internal/reservations/repository"
	reservationservice "poolsched/internal/reservations/service"
	reservationvalidator "poolsched/internal/reservations/validator"
	"poolsched/pkg/config"
	"poolsched/pkg/kafka"
	kafka_config "poolsched/pkg/kafka/config"
	kafka_middleware "poolsched/pkg/kafka/middleware"
	"poolsched/pkg/lock"
	"poolsched/pkg/metrics"
)

// app is the wired service graph shared by every command.
type app struct {
	cfg          *config.Config
	registry     registryservice.RegistryService
	reservations reservationservice.ReservationService
	query        *query.Engine
	producer     *kafka.Producer
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	metrics.Register()
	cfg.Connect()

	registryRepo, reservationRepo, err := initRepositories(ctx, cfg)
	if err != nil {
		return nil, err
	}

	locker, err := lock.New(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	opts := []reservationservice.Option{}
	if cfg.KafkaEnabled {
		producer, err := initProducer(cfg)
		if err != nil {
			return nil, err
		}
		a.producer = producer
		opts = append(opts, reservationservice.WithPublisher(reservationservice.NewKafkaPublisher(producer, cfg.Now)))
	}

	a.registry = registryservice.NewRegistryService(
		registryRepo,
		registryvalidator.NewRegistryValidator(cfg.Log),
		cfg,
	)
	a.reservations = reservationservice.NewReservationService(
		reservationRepo,
		a.registry,
		locker,
		reservationvalidator.NewReservationValidator(cfg.Log),
		cfg,
		opts...,
	)
	a.registry.SetPurger(a.reservations)
	a.query = query.NewEngine(reservationRepo, a.registry, cfg)

	if cfg.SeedPath != "" {
		res, err := a.registry.Seed(ctx, cfg.SeedPath)
		if err != nil {
			return nil, fmt.Errorf("seed %s: %w", cfg.SeedPath, err)
		}
		cfg.Log.Info("Seed applied",
			"pools", res.Pools,
			"lanes", res.Lanes,
			"lockers", res.Lockers,
			"closures", res.Closures,
			"skipped", res.Skipped,
		)
	}

	cfg.Log.Info("Services initialized",
		"store_backend", cfg.StoreBackend,
		"lock_backend", cfg.LockBackend,
		"kafka_enabled", cfg.KafkaEnabled,
	)
	return a, nil
}

func initRepositories(ctx context.Context, cfg *config.Config) (registryrepo.RegistryRepository, reservationrepo.ReservationRepository, error) {
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		if err := migrations.RunMigration(ctx, cfg.Client.SQLite); err != nil {
			return nil, nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		return registryrepo.NewSQLiteRegistryRepository(cfg.Client.SQLite),
			reservationrepo.NewSQLiteReservationRepository(cfg.Client.SQLite), nil
	case config.BackendMongo:
		return registryrepo.NewMongoRegistryRepository(cfg),
			reservationrepo.NewMongoReservationRepository(cfg), nil
	case config.BackendMemory:
		return registryrepo.NewMemoryRegistryRepository(),
			reservationrepo.NewMemoryReservationRepository(), nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func initProducer(cfg *config.Config) (*kafka.Producer, error) {
	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		return nil, fmt.Errorf("load kafka config: %w", err)
	}
	producer, err := kafka.NewProducer(kafkaCfg, cfg.KafkaTopic, cfg.KafkaDLQTopic, cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	producer.Use(kafka_middleware.MetricsProducerMiddleware())
	return producer, nil
}

// close flushes the producer and releases every connection.
func (a *app) close() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.cfg.Log.Warn("Failed to close Kafka producer", "error", err)
		}
	}
	a.cfg.GracefulShutdown()
}
