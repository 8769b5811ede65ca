package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Billing  BillingConfig
	Clients  ClientsConfig
	Cache    CacheConfig
	Events   EventsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	Migrate      bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
	Issuer            string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// BillingConfig governs payout block arithmetic and the block-closing sweep.
type BillingConfig struct {
	BlockWeeks    int
	SweepEnabled  bool
	SweepInterval time.Duration
}

// ClientsConfig holds base URLs for collaborator services.
type ClientsConfig struct {
	DirectoryBaseURL     string
	PaymentsBaseURL      string
	NotificationsBaseURL string
	SessionsBaseURL      string
	Timeout              time.Duration
	InternalToken        string
}

// CacheConfig tunes read-side caching of cohort views.
type CacheConfig struct {
	Enabled   bool
	CohortTTL time.Duration
}

// EventsConfig tunes asynchronous domain-event delivery.
type EventsConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		Migrate:      v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
		Issuer:            v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	blockWeeks := v.GetInt("BILLING_BLOCK_WEEKS")
	if blockWeeks <= 0 {
		blockWeeks = 4
	}
	cfg.Billing = BillingConfig{
		BlockWeeks:    blockWeeks,
		SweepEnabled:  v.GetBool("PAYOUT_SWEEP_ENABLED"),
		SweepInterval: parseDuration(v.GetString("PAYOUT_SWEEP_INTERVAL"), time.Hour),
	}

	cfg.Clients = ClientsConfig{
		DirectoryBaseURL:     v.GetString("MEMBERS_SERVICE_URL"),
		PaymentsBaseURL:      v.GetString("PAYMENTS_SERVICE_URL"),
		NotificationsBaseURL: v.GetString("NOTIFICATIONS_SERVICE_URL"),
		SessionsBaseURL:      v.GetString("SESSIONS_SERVICE_URL"),
		Timeout:              parseDuration(v.GetString("CLIENTS_TIMEOUT"), 5*time.Second),
		InternalToken:        v.GetString("INTERNAL_SERVICE_TOKEN"),
	}

	cfg.Cache = CacheConfig{
		Enabled:   v.GetBool("ENABLE_CACHE"),
		CohortTTL: parseDuration(v.GetString("COHORT_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Events = EventsConfig{
		Workers:    v.GetInt("EVENTS_WORKERS"),
		BufferSize: v.GetInt("EVENTS_BUFFER_SIZE"),
		MaxRetries: v.GetInt("EVENTS_MAX_RETRIES"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "academy")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")
	v.SetDefault("JWT_ISSUER", "academy-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("BILLING_BLOCK_WEEKS", 4)
	v.SetDefault("PAYOUT_SWEEP_ENABLED", true)
	v.SetDefault("PAYOUT_SWEEP_INTERVAL", "1h")

	v.SetDefault("MEMBERS_SERVICE_URL", "http://localhost:8001")
	v.SetDefault("PAYMENTS_SERVICE_URL", "http://localhost:8002")
	v.SetDefault("NOTIFICATIONS_SERVICE_URL", "http://localhost:8003")
	v.SetDefault("SESSIONS_SERVICE_URL", "http://localhost:8004")
	v.SetDefault("CLIENTS_TIMEOUT", "5s")
	v.SetDefault("INTERNAL_SERVICE_TOKEN", "")

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("COHORT_CACHE_TTL", "5m")

	v.SetDefault("EVENTS_WORKERS", 2)
	v.SetDefault("EVENTS_BUFFER_SIZE", 64)
	v.SetDefault("EVENTS_MAX_RETRIES", 3)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
