package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"recolha/internal/addresses/repository"
	"recolha/internal/audit"
	"recolha/internal/schedules/handler"
	schedulerepo "recolha/internal/schedules/repository"
	"recolha/internal/schedules/rules"
	"recolha/internal/schedules/service"
	"recolha/internal/schedules/validator"
	"recolha/pkg/app"
	"recolha/pkg/clock"
	"recolha/pkg/config"
	"recolha/pkg/kafka"
	kafka_config "recolha/pkg/kafka/config"
	kafka_middleware "recolha/pkg/kafka/middleware"
	"recolha/pkg/metrics"
)

const ServiceName = "recolha"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()

	cfg.Log.Info("Starting waste collection scheduling service")
	m := metrics.NewMetrics(ServiceName, prometheus.DefaultRegisterer)
	serverApp := app.NewApplication(cfg, m)

	recorder := initAudit(cfg, m, serverApp)
	scheduleService := initServices(cfg, m, recorder)

	ping := func(ctx context.Context) error {
		return cfg.Client.Mongo.Ping(ctx, readpref.Primary())
	}
	serverApp.SetApp(
		handler.NewScheduleHandler(scheduleService, cfg.Log),
		handler.NewHealthHandler(ping, cfg.Log),
	)
	serverApp.Run()
}

func initAudit(cfg *config.Config, m *metrics.Metrics, serverApp *app.Application) service.AuditRecorder {
	sinks := []audit.Sink{{Name: audit.SinkMongo, Recorder: audit.NewMongoRecorder(cfg)}}

	if cfg.KafkaEnabled() {
		kafkaCfg, err := kafka_config.Load(cfg.KafkaBrokers)
		if err != nil {
			cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
		}
		kafkaCfg.LogConfiguration(cfg.Log.Info)

		producer, err := kafka.NewProducer(kafkaCfg, cfg.KafkaAuditTopic, cfg.Log)
		if err != nil {
			cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
		}
		producer.Use(kafka_middleware.MetricsProducerMiddleware(m))
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
		serverApp.OnShutdown("kafka producer", producer)

		sinks = append(sinks, audit.Sink{Name: audit.SinkKafka, Recorder: audit.NewKafkaRecorder(producer)})
		cfg.Log.Info("Audit events are also published to Kafka", "topic", cfg.KafkaAuditTopic)
	}

	return audit.NewMultiRecorder(m, cfg.Log, sinks...)
}

func initServices(cfg *config.Config, m *metrics.Metrics, recorder service.AuditRecorder) service.ScheduleService {
	categoryRules := rules.Default()
	if cfg.RulesFile != "" {
		loaded, err := rules.LoadFile(cfg.RulesFile)
		if err != nil {
			cfg.Log.Fatal("Failed to load category rules", "error", err, "path", cfg.RulesFile)
		}
		categoryRules = loaded
	}

	clk, err := clock.New(cfg.Timezone, nil)
	if err != nil {
		cfg.Log.Fatal("Failed to load timezone", "error", err, "timezone", cfg.Timezone)
	}

	hour, minute, err := cfg.Cutoff()
	if err != nil {
		cfg.Log.Fatal("Invalid cutoff time", "error", err)
	}

	scheduleService := service.NewScheduleService(service.Dependencies{
		Schedules:        schedulerepo.NewMongoScheduleRepository(cfg),
		Capacity:         schedulerepo.NewMongoCapacityRepository(cfg),
		Addresses:        repository.NewMongoAddressRepository(cfg),
		Rules:            categoryRules,
		Clock:            clk,
		Validator:        validator.NewScheduleValidator(categoryRules, clk, validator.Cutoff{Hour: hour, Minute: minute}),
		RequestValidator: validator.NewRequestValidator(categoryRules, cfg.Log),
		Audit:            recorder,
		Metrics:          m,
		Log:              cfg.Log,
		Settings: service.Settings{
			BaseURL:     cfg.BaseURL,
			HorizonDays: cfg.HorizonDays,
		},
	})

	cfg.Log.Info("Schedule service initialized",
		"database", cfg.MongoDatabaseName,
		"categories", categoryRules.Categories(),
		"timezone", cfg.Timezone,
	)
	return scheduleService
}
