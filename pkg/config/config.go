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

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string
	Store     StoreConfig

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Auth          AuthConfig
	CORS          CORSConfig
	Log           LogConfig
	Dashboard     DashboardConfig
	Notifications NotificationsConfig
	Simulation    SimulationConfig
	Uploads       UploadsConfig
	Backend       BackendConfig
	Seed          SeedConfig
}

// StoreConfig selects the record store implementation.
type StoreConfig struct {
	Driver string
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
	AutoMigrate  bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret          string
	Expiration      time.Duration
	GuestExpiration time.Duration
	Issuer          string
}

// AuthConfig tunes the login surface.
type AuthConfig struct {
	GuestViewerEnabled bool
	LoginRatePerMinute float64
	LoginRateBurst     int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// DashboardConfig governs summary caching.
type DashboardConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// NotificationsConfig sizes the new-report notification queue.
type NotificationsConfig struct {
	Workers    int
	Retries    int
	RetryDelay time.Duration
	Recent     int

	// AMQPURL enables the RabbitMQ fan-out when set.
	AMQPURL      string
	AMQPExchange string
}

// SimulationConfig controls the demo report generator.
type SimulationConfig struct {
	Enabled     bool
	MinInterval time.Duration
	MaxInterval time.Duration
	StartDelay  time.Duration
}

// UploadsConfig controls photo and proof storage.
type UploadsConfig struct {
	StorageDir       string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// BackendConfig controls the store availability probe.
type BackendConfig struct {
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration
}

// SeedConfig toggles demo data.
type SeedConfig struct {
	DefaultAccounts bool
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.Store = StoreConfig{Driver: strings.ToLower(strings.TrimSpace(v.GetString("STORE_DRIVER")))}
	if cfg.Store.Driver != StorePostgres {
		cfg.Store.Driver = StoreMemory
	}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:          v.GetString("JWT_SECRET"),
		Expiration:      parseDuration(v.GetString("JWT_EXPIRATION"), 12*time.Hour),
		GuestExpiration: parseDuration(v.GetString("GUEST_SESSION_EXPIRATION"), 8*time.Hour),
		Issuer:          v.GetString("JWT_ISSUER"),
	}

	cfg.Auth = AuthConfig{
		GuestViewerEnabled: v.GetBool("ENABLE_GUEST_VIEWER"),
		LoginRatePerMinute: v.GetFloat64("LOGIN_RATE_PER_MINUTE"),
		LoginRateBurst:     v.GetInt("LOGIN_RATE_BURST"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Dashboard = DashboardConfig{
		CacheEnabled: v.GetBool("DASHBOARD_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), time.Minute),
	}

	cfg.Notifications = NotificationsConfig{
		Workers:    v.GetInt("NOTIFY_WORKERS"),
		Retries:    v.GetInt("NOTIFY_RETRIES"),
		RetryDelay: parseDuration(v.GetString("NOTIFY_RETRY_DELAY"), 2*time.Second),
		Recent:     v.GetInt("NOTIFY_RECENT_LIMIT"),

		AMQPURL:      strings.TrimSpace(v.GetString("NOTIFY_AMQP_URL")),
		AMQPExchange: v.GetString("NOTIFY_AMQP_EXCHANGE"),
	}

	cfg.Simulation = SimulationConfig{
		Enabled:     v.GetBool("ENABLE_REPORT_SIMULATION"),
		MinInterval: parseDuration(v.GetString("SIMULATION_MIN_INTERVAL"), 30*time.Second),
		MaxInterval: parseDuration(v.GetString("SIMULATION_MAX_INTERVAL"), 60*time.Second),
		StartDelay:  parseDuration(v.GetString("SIMULATION_START_DELAY"), 10*time.Second),
	}
	if cfg.Simulation.MaxInterval < cfg.Simulation.MinInterval {
		cfg.Simulation.MaxInterval = cfg.Simulation.MinInterval
	}

	maxUpload := v.GetInt64("UPLOADS_MAX_FILE_SIZE")
	if maxUpload <= 0 {
		maxUpload = 5 * 1024 * 1024
	}
	cfg.Uploads = UploadsConfig{
		StorageDir:       v.GetString("UPLOADS_STORAGE_DIR"),
		SignedURLSecret:  v.GetString("UPLOADS_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("UPLOADS_SIGNED_URL_TTL"), 30*time.Minute),
		MaxFileSizeBytes: maxUpload,
		AllowedMIMEs:     splitAndTrim(v.GetString("UPLOADS_ALLOWED_MIME_TYPES")),
	}

	cfg.Backend = BackendConfig{
		ProbeInterval: parseDuration(v.GetString("BACKEND_PROBE_INTERVAL"), 15*time.Second),
		ProbeTimeout:  parseDuration(v.GetString("BACKEND_PROBE_TIMEOUT"), 2*time.Second),
	}

	cfg.Seed = SeedConfig{DefaultAccounts: v.GetBool("SEED_DEFAULT_ACCOUNTS")}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("STORE_DRIVER", StoreMemory)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "isagip")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "12h")
	v.SetDefault("GUEST_SESSION_EXPIRATION", "8h")
	v.SetDefault("JWT_ISSUER", "isagip-dashboard")

	v.SetDefault("ENABLE_GUEST_VIEWER", true)
	v.SetDefault("LOGIN_RATE_PER_MINUTE", 20)
	v.SetDefault("LOGIN_RATE_BURST", 5)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("DASHBOARD_CACHE_ENABLED", false)
	v.SetDefault("DASHBOARD_CACHE_TTL", "1m")

	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("NOTIFY_RETRIES", 3)
	v.SetDefault("NOTIFY_RETRY_DELAY", "2s")
	v.SetDefault("NOTIFY_RECENT_LIMIT", 50)
	v.SetDefault("NOTIFY_AMQP_URL", "")
	v.SetDefault("NOTIFY_AMQP_EXCHANGE", "isagip.notifications")

	v.SetDefault("ENABLE_REPORT_SIMULATION", false)
	v.SetDefault("SIMULATION_MIN_INTERVAL", "30s")
	v.SetDefault("SIMULATION_MAX_INTERVAL", "60s")
	v.SetDefault("SIMULATION_START_DELAY", "10s")

	v.SetDefault("UPLOADS_STORAGE_DIR", "./uploads")
	v.SetDefault("UPLOADS_SIGNED_URL_SECRET", "dev_uploads_secret")
	v.SetDefault("UPLOADS_SIGNED_URL_TTL", "30m")
	v.SetDefault("UPLOADS_MAX_FILE_SIZE", 5*1024*1024)
	v.SetDefault("UPLOADS_ALLOWED_MIME_TYPES", "image/jpeg,image/png,image/gif,image/webp")

	v.SetDefault("BACKEND_PROBE_INTERVAL", "15s")
	v.SetDefault("BACKEND_PROBE_TIMEOUT", "2s")

	v.SetDefault("SEED_DEFAULT_ACCOUNTS", true)
}

func isMissingFile(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "no such file")
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
