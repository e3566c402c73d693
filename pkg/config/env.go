package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvTimezone    = "TIMEZONE"
	EnvCutoffTime  = "CUTOFF_TIME"
	EnvHorizonDays = "HORIZON_DAYS"
	EnvBaseURL     = "BASE_URL"
	EnvRulesFile   = "RULES_FILE"

	EnvRedisAddr = "REDIS_ADDR"

	EnvKafkaBrokers    = "KAFKA_BROKERS"
	EnvKafkaAuditTopic = "KAFKA_AUDIT_TOPIC"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
)
