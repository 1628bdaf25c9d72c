package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	HTTPAddr     string
	OTLPEndpoint string

	// TechnicalGuestID is the member id used for walk-ins without an
	// account. Injected here so resolution never reads global state.
	TechnicalGuestID int64

	DefaultCurrency string
	TimeZone        string

	RedisAddr string

	RateLimit RateLimitConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBMetricsEnabled  bool

	Bootstrap BootstrapConfig
}

type BootstrapConfig struct {
	SeedDemoData bool
}

// RateLimitConfig caps write endpoints with a redis token bucket shared
// across instances. Requires RedisAddr when enabled.
type RateLimitConfig struct {
	Enabled        bool
	APIRate        float64
	APIBurst       int
	LockTTLSeconds int
}

// DefaultTechnicalGuestID is used when TECHNICAL_GUEST_ID is not set. The
// seed step guarantees a member row with this id exists.
const DefaultTechnicalGuestID int64 = 1

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "kassza"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),

		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		TechnicalGuestID: getenvInt64("TECHNICAL_GUEST_ID", DefaultTechnicalGuestID),

		DefaultCurrency: strings.ToUpper(getenv("DEFAULT_CURRENCY", "HUF")),
		TimeZone:        getenv("STUDIO_TIMEZONE", "Europe/Budapest"),

		RedisAddr: strings.TrimSpace(getenv("REDIS_ADDR", "")),

		RateLimit: RateLimitConfig{
			Enabled:        getenvBool("RATE_LIMIT_ENABLED", false),
			APIRate:        getenvFloat("RATE_LIMIT_API_RATE", 50),
			APIBurst:       getenvInt("RATE_LIMIT_API_BURST", 100),
			LockTTLSeconds: getenvInt("RATE_LIMIT_LOCK_TTL_SECONDS", 60),
		},

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "kassza"),
		DBUser:            getenv("DATABASE_USER", "kassza"),
		DBPassword:        getenv("DATABASE_PASSWORD", "kassza"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 1800),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 300),
		DBMetricsEnabled:  getenvBool("DATABASE_METRICS_ENABLED", true),

		Bootstrap: BootstrapConfig{
			SeedDemoData: getenvBool("BOOTSTRAP_SEED_DEMO_DATA", false),
		},
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
