package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Поддерживаемые драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool
	SeedDemoData        bool

	RedisAddr                   string
	IdempotencyTTL              time.Duration
	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int

	KafkaBrokers       string
	OutboxTopic        string
	OutboxDLQTopic     string
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	ShippingAddressMinLength int
	RequestTimeout           time.Duration
	ShutdownTimeout          time.Duration

	LogLevel  string
	LogFormat string
}

// DefaultConfig возвращает настройки для локального запуска на памяти.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":8080",
		GRPCAddr:    ":50051",
		MetricsAddr: ":9090",

		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		SeedDemoData:        true,

		IdempotencyTTL:              24 * time.Hour,
		IdempotencyCleanupInterval:  10 * time.Minute,
		IdempotencyCleanupBatchSize: 500,

		OutboxTopic:        "shop.order.events",
		OutboxDLQTopic:     "shop.order.events.dlq",
		OutboxPollInterval: time.Second,
		OutboxBatchSize:    100,
		OutboxMaxAttempts:  3,
		OutboxRetryDelay:   50 * time.Millisecond,

		ShippingAddressMinLength: 10,
		RequestTimeout:           15 * time.Second,
		ShutdownTimeout:          5 * time.Second,

		LogLevel:  "info",
		LogFormat: "text",
	}
}

// LoadConfigFromEnv читает SHOP_* переменные поверх DefaultConfig.
// Перед чтением подгружаются envFiles (по умолчанию .env), если они существуют;
// уже заданные переменные окружения не перезаписываются.
func LoadConfigFromEnv(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", file, err)
		}
	}

	cfg := DefaultConfig()
	r := envReader{}

	cfg.HTTPAddr = r.str("SHOP_HTTP_ADDR", cfg.HTTPAddr)
	cfg.GRPCAddr = r.str("SHOP_GRPC_ADDR", cfg.GRPCAddr)
	cfg.MetricsAddr = r.str("SHOP_METRICS_ADDR", cfg.MetricsAddr)

	cfg.StorageDriver = strings.ToLower(r.str("SHOP_STORAGE_DRIVER", cfg.StorageDriver))
	cfg.PostgresDSN = r.str("SHOP_POSTGRES_DSN", cfg.PostgresDSN)
	cfg.PostgresAutoMigrate = r.boolean("SHOP_POSTGRES_AUTO_MIGRATE", cfg.PostgresAutoMigrate)
	cfg.SeedDemoData = r.boolean("SHOP_SEED_DEMO_DATA", cfg.SeedDemoData)

	cfg.RedisAddr = r.str("SHOP_REDIS_ADDR", cfg.RedisAddr)
	cfg.IdempotencyTTL = r.duration("SHOP_IDEMPOTENCY_TTL", cfg.IdempotencyTTL)
	cfg.IdempotencyCleanupInterval = r.duration("SHOP_IDEMPOTENCY_CLEANUP_INTERVAL", cfg.IdempotencyCleanupInterval)
	cfg.IdempotencyCleanupBatchSize = r.integer("SHOP_IDEMPOTENCY_CLEANUP_BATCH_SIZE", cfg.IdempotencyCleanupBatchSize)

	cfg.KafkaBrokers = r.str("SHOP_KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.OutboxTopic = r.str("SHOP_OUTBOX_TOPIC", cfg.OutboxTopic)
	cfg.OutboxDLQTopic = r.str("SHOP_OUTBOX_DLQ_TOPIC", cfg.OutboxDLQTopic)
	cfg.OutboxPollInterval = r.duration("SHOP_OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval)
	cfg.OutboxBatchSize = r.integer("SHOP_OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxMaxAttempts = r.integer("SHOP_OUTBOX_MAX_ATTEMPTS", cfg.OutboxMaxAttempts)
	cfg.OutboxRetryDelay = r.duration("SHOP_OUTBOX_RETRY_DELAY", cfg.OutboxRetryDelay)

	cfg.ShippingAddressMinLength = r.integer("SHOP_SHIPPING_ADDRESS_MIN_LENGTH", cfg.ShippingAddressMinLength)
	cfg.RequestTimeout = r.duration("SHOP_REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.ShutdownTimeout = r.duration("SHOP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)

	cfg.LogLevel = r.str("SHOP_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(r.str("SHOP_LOG_FORMAT", cfg.LogFormat))

	if err := errors.Join(r.errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error

	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("SHOP_POSTGRES_DSN is required for postgres storage driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}

	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http address is required"))
	}
	if c.OutboxBatchSize <= 0 {
		errs = append(errs, errors.New("outbox batch size must be positive"))
	}
	if c.OutboxMaxAttempts <= 0 {
		errs = append(errs, errors.New("outbox max attempts must be positive"))
	}
	if c.OutboxPollInterval <= 0 {
		errs = append(errs, errors.New("outbox poll interval must be positive"))
	}
	if c.ShippingAddressMinLength <= 0 {
		errs = append(errs, errors.New("shipping address min length must be positive"))
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unsupported log format %q", c.LogFormat))
	}

	return errors.Join(errs...)
}

// kafkaEnabled сообщает, что outbox нужно публиковать в Kafka.
func (c Config) kafkaEnabled() bool {
	return strings.TrimSpace(c.KafkaBrokers) != ""
}

// envReader читает переменные окружения и копит ошибки разбора.
type envReader struct {
	errs []error
}

func (r *envReader) lookup(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func (r *envReader) str(key, fallback string) string {
	if value, ok := r.lookup(key); ok {
		return value
	}
	return fallback
}

func (r *envReader) integer(key string, fallback int) int {
	value, ok := r.lookup(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid integer %q", key, value))
		return fallback
	}
	return parsed
}

func (r *envReader) boolean(key string, fallback bool) bool {
	value, ok := r.lookup(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid boolean %q", key, value))
		return fallback
	}
	return parsed
}

func (r *envReader) duration(key string, fallback time.Duration) time.Duration {
	value, ok := r.lookup(key)
	if !ok {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid duration %q", key, value))
		return fallback
	}
	return parsed
}
