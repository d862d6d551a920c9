package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Broker    BrokerConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
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
	DSN             string
	MaxConns        int32
	MinConns        int32
	RunMigrations   bool
	ConnMaxIdleSec  int32
	ConnMaxLifeSec  int32
	ConnectAttempts int
	ConnectBackoff  time.Duration
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Broker drivers.
const (
	BrokerDriverKafka  = "kafka"
	BrokerDriverMemory = "memory"
)

// BrokerConfig holds message broker connection values.
type BrokerConfig struct {
	Driver          string
	Brokers         []string
	TopicPrefix     string
	ClientID        string
	Async           bool
	WriteTimeout    time.Duration
	MaxAttempts     int
	ConnectAttempts int
	ConnectBackoff  time.Duration
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level    string
	Encoding string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	// AccessTokenTTL is the token lifetime in minutes.
	AccessTokenTTL   int
	ClockSkewSeconds int
	BcryptCost       int
}

// CacheConfig controls entry lifetimes for cache-aside reads.
type CacheConfig struct {
	IdentityTTL time.Duration
	ResourceTTL time.Duration
}

// RateLimitConfig configures the global fixed-window limiter.
type RateLimitConfig struct {
	PerMinute int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	expireMinutes := 0
	if raw := os.Getenv("AUTH_JWT_EXPIRE_MINUTES"); raw != "" {
		expireMinutes, err = strconv.Atoi(raw)
		if err != nil || expireMinutes <= 0 {
			return nil, fmt.Errorf("invalid AUTH_JWT_EXPIRE_MINUTES: %q", raw)
		}
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "identity-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:             os.Getenv("POSTGRES_DSN"),
			MaxConns:        int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:        int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:   getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec:  int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec:  int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
			ConnectAttempts: getEnvAsInt("POSTGRES_CONNECT_ATTEMPTS", 5),
			ConnectBackoff:  getEnvAsDuration("POSTGRES_CONNECT_BACKOFF", 5*time.Second),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Broker: BrokerConfig{
			Driver:          strings.ToLower(getEnv("BROKER_DRIVER", BrokerDriverKafka)),
			Brokers:         getEnvAsList("BROKER_BROKERS"),
			TopicPrefix:     getEnv("BROKER_TOPIC_PREFIX", "identity-service"),
			ClientID:        getEnv("BROKER_CLIENT_ID", "identity-service"),
			Async:           getEnvAsBool("BROKER_ASYNC", true),
			WriteTimeout:    getEnvAsDuration("BROKER_WRITE_TIMEOUT", 10*time.Second),
			MaxAttempts:     getEnvAsInt("BROKER_MAX_ATTEMPTS", 5),
			ConnectAttempts: getEnvAsInt("BROKER_CONNECT_ATTEMPTS", 15),
			ConnectBackoff:  getEnvAsDuration("BROKER_CONNECT_BACKOFF", 3*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Encoding: getEnv("LOG_ENCODING", "json"),
		},
		Auth: AuthConfig{
			JWTSecret:        os.Getenv("AUTH_JWT_SECRET"),
			JWTIssuer:        os.Getenv("AUTH_JWT_ISSUER"),
			JWTAudience:      os.Getenv("AUTH_JWT_AUDIENCE"),
			AccessTokenTTL:   expireMinutes,
			ClockSkewSeconds: getEnvAsInt("AUTH_CLOCK_SKEW_SECONDS", 30),
			BcryptCost:       getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Cache: CacheConfig{
			IdentityTTL: getEnvAsDuration("CACHE_IDENTITY_TTL", 10*time.Minute),
			ResourceTTL: getEnvAsDuration("CACHE_RESOURCE_TTL", 10*time.Minute),
		},
		RateLimit: RateLimitConfig{
			PerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 100),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every required setting that is missing.
func (c *Config) Validate() error {
	required := map[string]bool{
		"POSTGRES_DSN":            c.Postgres.DSN != "",
		"REDIS_ADDR":              c.Redis.Addr != "",
		"AUTH_JWT_SECRET":         c.Auth.JWTSecret != "",
		"AUTH_JWT_ISSUER":         c.Auth.JWTIssuer != "",
		"AUTH_JWT_AUDIENCE":       c.Auth.JWTAudience != "",
		"AUTH_JWT_EXPIRE_MINUTES": c.Auth.AccessTokenTTL > 0,
	}
	switch c.Broker.Driver {
	case BrokerDriverKafka:
		required["BROKER_BROKERS"] = len(c.Broker.Brokers) > 0
	case BrokerDriverMemory:
	default:
		return fmt.Errorf("unsupported BROKER_DRIVER %q", c.Broker.Driver)
	}

	var missing []string
	for key, ok := range required {
		if !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// IsDevelopment reports whether verbose error details may be exposed.
func (a AppConfig) IsDevelopment() bool {
	return strings.EqualFold(a.Env, "development")
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// ClockSkew returns the accepted token clock skew.
func (a AuthConfig) ClockSkew() time.Duration {
	return time.Duration(a.ClockSkewSeconds) * time.Second
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

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
