package config

import "time"

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"

	LockLocal = "local"
	LockRedis = "redis"
	LockMongo = "mongo"

	LogOutputStdout = "stdout"
	LogOutputStderr = "stderr"
)

const (
	DefaultStoreBackend = BackendSQLite
	DefaultSQLitePath   = "data/poolsched.db"

	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "poolsched"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultLockBackend = LockLocal
	DefaultLockTTL     = 10 * time.Second
	DefaultLockTimeout = 5 * time.Second
	DefaultRedisAddr   = "localhost:6379"
	DefaultRedisDB     = 0

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultTimezone = "Local"

	DefaultKafkaEnabled  = false
	DefaultKafkaTopic    = "reservations.events"
	DefaultKafkaDLQTopic = ""

	DefaultPort                   = "9100"
	DefaultOverdueRefreshInterval = 1 * time.Minute

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
	DefaultLogOutput = LogOutputStdout
)
