package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ServiceName    = "omnipos-inventory-service"
	ServiceVersion = "0.1.0"
)

type Config struct {
	Server    ServerConfig
	Logger    LoggerConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Telemetry TelemetryConfig
	Inventory InventoryConfig
}

type ServerConfig struct {
	AppEnv      string
	GRPCPort    string
	MetricsPort string
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	ConnMaxIdleTime int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Enabled    bool
	Brokers    []string
	Topic      string
	GroupID    string
	AlertTopic string
}

type TelemetryConfig struct {
	Enabled      bool
	OtelEndpoint string
	OtelInsecure bool
}

// InventoryConfig controls the reservation engine itself.
type InventoryConfig struct {
	StoreBackend          string // memory | postgres
	LockBackend           string // memory | redis
	LockTTL               time.Duration
	LockWait              time.Duration // 0 waits until the request context ends
	ReservationTTL        time.Duration
	SweepInterval         time.Duration
	SweepBatchSize        int
	LowStockCheckInterval time.Duration
}

func LoadEnv() *Config {
	return &Config{
		Server: ServerConfig{
			AppEnv:      getEnv("APP_ENV", "dev"),
			GRPCPort:    getEnv("GRPC_PORT", ":8083"),
			MetricsPort: getEnv("METRICS_PORT", ":9093"),
		},
		Logger: LoggerConfig{
			Level:             getEnv("LOGGER_LEVEL", "debug"),
			Encoding:          getEnv("LOGGER_ENCODING", "console"),
			DisableCaller:     getEnvBool("LOGGER_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOGGER_DISABLE_STACKTRACE", true),
		},
		Postgres: PostgresConfig{
			Host:            getEnv("POSTGRES_HOST", "localhost"),
			Port:            getEnv("POSTGRES_PORT", "5433"),
			User:            getEnv("POSTGRES_USER", "omnipos"),
			Password:        getEnv("POSTGRES_PASSWORD", "omnipos"),
			DBName:          getEnv("POSTGRES_DB", "omnipos_inventory"),
			SSLMode:         getEnv("POSTGRES_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("POSTGRES_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvInt("POSTGRES_CONN_MAX_LIFETIME", 300),
			ConnMaxIdleTime: getEnvInt("POSTGRES_CONN_MAX_IDLE_TIME", 60),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Enabled:    getEnvBool("KAFKA_ENABLED", false),
			Brokers:    getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:      getEnv("KAFKA_TOPIC_ORDERS", "orders.events"),
			GroupID:    getEnv("KAFKA_GROUP_INVENTORY", "inventory"),
			AlertTopic: getEnv("KAFKA_TOPIC_INVENTORY_ALERTS", "inventory.alerts"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getEnvBool("OTEL_ENABLED", false),
			OtelEndpoint: getEnv("OTEL_ENDPOINT", "localhost:4318"),
			OtelInsecure: getEnvBool("OTEL_INSECURE", true),
		},
		Inventory: InventoryConfig{
			StoreBackend:          getEnv("INVENTORY_STORE_BACKEND", "memory"),
			LockBackend:           getEnv("INVENTORY_LOCK_BACKEND", "memory"),
			LockTTL:               getEnvDuration("INVENTORY_LOCK_TTL", 5*time.Second),
			LockWait:              getEnvDuration("INVENTORY_LOCK_WAIT", 10*time.Second),
			ReservationTTL:        getEnvDuration("INVENTORY_RESERVATION_TTL", 30*time.Minute),
			SweepInterval:         getEnvDuration("INVENTORY_SWEEP_INTERVAL", time.Minute),
			SweepBatchSize:        getEnvInt("INVENTORY_SWEEP_BATCH_SIZE", 100),
			LowStockCheckInterval: getEnvDuration("INVENTORY_LOW_STOCK_CHECK_INTERVAL", 15*time.Minute),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.Split(value, ",")
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("90s", "5m").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
