package config

import (
	"errors"
	"fmt"
	"io/fs"
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
	// TrustedProxies lists proxy addresses or CIDRs whose forwarding headers
	// are believed. Empty means the connection address is always used.
	TrustedProxies []string

	Database  DatabaseConfig
	Redis     RedisConfig
	Session   SessionConfig
	IPLookup  IPLookupConfig
	AdminJWT  AdminJWTConfig
	RateLimit RateLimitConfig
	Kafka     KafkaConfig
	IPHistory IPHistoryConfig
	CORS      CORSConfig
	Log       LogConfig
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
}

// DSN renders a postgres URL usable by both lib/pq and golang-migrate.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
}

// SessionConfig governs issuance and validation of device-bound sessions.
type SessionConfig struct {
	TTL                  time.Duration
	CookieName           string
	CookieSecure         bool
	CookieDomain         string
	MultiDeviceEnabled   bool
	ConflictRetries      int
	TrustPrivateNetworks bool
	JanitorInterval      time.Duration
}

// IPLookupConfig configures the ordered list of external IP services.
type IPLookupConfig struct {
	Services       []string
	AttemptTimeout time.Duration
	Budget         time.Duration
}

// AdminJWTConfig verifies bearer tokens issued by the admin console.
type AdminJWTConfig struct {
	Secret string
	Issuer string
}

// RateLimitConfig holds per-minute request limits keyed by IP and path.
type RateLimitConfig struct {
	Enabled      bool
	Window       time.Duration
	AuthLimit    int
	AdminLimit   int
	DefaultLimit int
}

// KafkaConfig toggles publication of session lifecycle events.
type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// IPHistoryConfig sizes the background writer for IP history records.
type IPHistoryConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.TrustedProxies = splitAndTrim(v.GetString("TRUSTED_PROXIES"))

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
		Enabled:  v.GetBool("REDIS_ENABLED"),
	}

	cfg.Session = SessionConfig{
		TTL:                  parseDuration(v.GetString("SESSION_TTL"), 7*24*time.Hour),
		CookieName:           v.GetString("SESSION_COOKIE_NAME"),
		CookieSecure:         v.GetBool("SESSION_COOKIE_SECURE"),
		CookieDomain:         v.GetString("SESSION_COOKIE_DOMAIN"),
		MultiDeviceEnabled:   v.GetBool("MULTI_DEVICE_ENABLED"),
		ConflictRetries:      v.GetInt("SESSION_CONFLICT_RETRIES"),
		TrustPrivateNetworks: v.GetBool("TRUST_PRIVATE_NETWORKS"),
		JanitorInterval:      parseDuration(v.GetString("SESSION_JANITOR_INTERVAL"), 10*time.Minute),
	}

	cfg.IPLookup = IPLookupConfig{
		Services:       splitAndTrim(v.GetString("IP_LOOKUP_SERVICES")),
		AttemptTimeout: parseDuration(v.GetString("IP_LOOKUP_TIMEOUT"), 5*time.Second),
		Budget:         parseDuration(v.GetString("IP_LOOKUP_BUDGET"), 15*time.Second),
	}

	cfg.AdminJWT = AdminJWTConfig{
		Secret: v.GetString("ADMIN_JWT_SECRET"),
		Issuer: v.GetString("ADMIN_JWT_ISSUER"),
	}

	cfg.RateLimit = RateLimitConfig{
		Enabled:      v.GetBool("RATE_LIMIT_ENABLED"),
		Window:       parseDuration(v.GetString("RATE_LIMIT_WINDOW"), time.Minute),
		AuthLimit:    v.GetInt("RATE_LIMIT_AUTH"),
		AdminLimit:   v.GetInt("RATE_LIMIT_ADMIN"),
		DefaultLimit: v.GetInt("RATE_LIMIT_DEFAULT"),
	}

	cfg.Kafka = KafkaConfig{
		Enabled: v.GetBool("KAFKA_ENABLED"),
		Brokers: splitAndTrim(v.GetString("KAFKA_BROKERS")),
		Topic:   v.GetString("KAFKA_SESSION_TOPIC"),
	}

	cfg.IPHistory = IPHistoryConfig{
		Workers:    v.GetInt("IP_HISTORY_WORKERS"),
		BufferSize: v.GetInt("IP_HISTORY_BUFFER"),
		MaxRetries: v.GetInt("IP_HISTORY_RETRIES"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("TRUSTED_PROXIES", "")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "sessionguard")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("SESSION_TTL", "168h")
	v.SetDefault("SESSION_COOKIE_NAME", "session_token")
	v.SetDefault("SESSION_COOKIE_SECURE", false)
	v.SetDefault("SESSION_COOKIE_DOMAIN", "")
	v.SetDefault("MULTI_DEVICE_ENABLED", false)
	v.SetDefault("SESSION_CONFLICT_RETRIES", 3)
	v.SetDefault("TRUST_PRIVATE_NETWORKS", false)
	v.SetDefault("SESSION_JANITOR_INTERVAL", "10m")

	v.SetDefault("IP_LOOKUP_SERVICES", "https://api.ipify.org?format=json#ip,https://httpbin.org/ip#origin,https://api.my-ip.io/ip.json#ip")
	v.SetDefault("IP_LOOKUP_TIMEOUT", "5s")
	v.SetDefault("IP_LOOKUP_BUDGET", "15s")

	v.SetDefault("ADMIN_JWT_SECRET", "dev_admin_secret")
	v.SetDefault("ADMIN_JWT_ISSUER", "")

	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_WINDOW", "1m")
	v.SetDefault("RATE_LIMIT_AUTH", 5)
	v.SetDefault("RATE_LIMIT_ADMIN", 20)
	v.SetDefault("RATE_LIMIT_DEFAULT", 100)

	v.SetDefault("KAFKA_ENABLED", false)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_SESSION_TOPIC", "session-events")

	v.SetDefault("IP_HISTORY_WORKERS", 2)
	v.SetDefault("IP_HISTORY_BUFFER", 256)
	v.SetDefault("IP_HISTORY_RETRIES", 3)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
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
