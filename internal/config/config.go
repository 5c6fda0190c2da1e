package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Storage  StorageConfig
	Issue    IssueConfig
	Broker   BrokerConfig
	Watcher  WatcherConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values and the ticket cache TTL.
type RedisConfig struct {
	Addr            string
	Password        string
	DB              int
	CacheEnabled    bool
	TicketTTLSecond int
}

// LoggerConfig configures logging behavior. Format is json or console;
// Output is stdout, stderr or a file path.
type LoggerConfig struct {
	Level  string
	Format string
	Output string
}

// AuthConfig defines operator session token parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// StorageConfig locates uploaded videos and images.
type StorageConfig struct {
	Dir            string
	PublicBaseURL  string
	MaxUploadBytes int
}

// IssueConfig controls code generation and share links. PublicBaseURL is
// the prefix links are built on: <PublicBaseURL>/<code>.
type IssueConfig struct {
	PublicBaseURL    string
	RandomCodeLength int
	MaxBatchSize     int
	MaxCodeAttempts  int
}

// BrokerConfig points at the optional AMQP event sink.
type BrokerConfig struct {
	AMQPURL  string
	Exchange string
}

// WatcherConfig controls the unlock watcher.
type WatcherConfig struct {
	Enabled         bool
	IntervalSeconds int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	publicBase := strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/")

	appEnv := getEnv("APP_ENV", "development")
	jwtSecret := os.Getenv("AUTH_JWT_SECRET")
	if jwtSecret == "" {
		if appEnv != "development" {
			return nil, fmt.Errorf("AUTH_JWT_SECRET is required when APP_ENV=%s", appEnv)
		}
		jwtSecret = "dev-secret"
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "sticker-service"),
			Env:                   appEnv,
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:            getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:        os.Getenv("REDIS_PASSWORD"),
			DB:              redisDB,
			CacheEnabled:    getEnvAsBool("REDIS_CACHE_ENABLED", true),
			TicketTTLSecond: getEnvAsInt("REDIS_TICKET_TTL_SECONDS", 300),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
		Auth: AuthConfig{
			JWTSecret:             jwtSecret,
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Storage: StorageConfig{
			Dir:            getEnv("STORAGE_DIR", "data/assets"),
			PublicBaseURL:  strings.TrimRight(getEnv("STORAGE_PUBLIC_BASE_URL", publicBase+"/assets"), "/"),
			MaxUploadBytes: getEnvAsInt("STORAGE_MAX_UPLOAD_BYTES", 200<<20),
		},
		Issue: IssueConfig{
			PublicBaseURL:    strings.TrimRight(getEnv("SHARE_LINK_BASE_URL", publicBase+"/t"), "/"),
			RandomCodeLength: getEnvAsInt("ISSUE_RANDOM_CODE_LENGTH", 8),
			MaxBatchSize:     getEnvAsInt("ISSUE_MAX_BATCH_SIZE", 500),
			MaxCodeAttempts:  getEnvAsInt("ISSUE_MAX_CODE_ATTEMPTS", 5),
		},
		Broker: BrokerConfig{
			AMQPURL:  os.Getenv("AMQP_URL"),
			Exchange: getEnv("AMQP_EXCHANGE", "sticker.events"),
		},
		Watcher: WatcherConfig{
			Enabled:         getEnvAsBool("UNLOCK_WATCHER_ENABLED", true),
			IntervalSeconds: getEnvAsInt("UNLOCK_WATCHER_INTERVAL_SECONDS", 60),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// TicketTTL returns how long a cached ticket record lives.
func (r RedisConfig) TicketTTL() time.Duration {
	if r.TicketTTLSecond <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(r.TicketTTLSecond) * time.Second
}

// Interval returns the sweep period.
func (w WatcherConfig) Interval() time.Duration {
	if w.IntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(w.IntervalSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
