package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/developer-yasir/support-panel/internal/domain"
)

// Config aggregates runtime configuration for the API and the dashboard.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Push      PushConfig
	Dashboard DashboardConfig
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
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis
// and ticket events are pushed to local subscribers only.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
	// File redirects output away from stdout, which the terminal
	// dashboard owns.
	File string
}

// AuthConfig defines token parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// PushConfig configures the websocket endpoint served by the API.
type PushConfig struct {
	Path                string
	WriteTimeoutSeconds int
}

// DashboardConfig configures the dashboard agent.
type DashboardConfig struct {
	APIURL                string
	PushURL               string
	Token                 string
	PollSeconds           int
	DebounceMillis        int
	NewTicketsTTLSeconds  int
	ReconnectDelaySeconds int
	MaxReconnectAttempts  int
	StartDate             string
	EndDate               string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "support-panel"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			Channel:  getEnv("REDIS_EVENTS_CHANNEL", "support-panel:ticket-events"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  os.Getenv("LOG_FILE"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Push: PushConfig{
			Path:                getEnv("PUSH_PATH", "/ws"),
			WriteTimeoutSeconds: getEnvAsInt("PUSH_WRITE_TIMEOUT_SECONDS", 10),
		},
		Dashboard: DashboardConfig{
			APIURL:                getEnv("DASHBOARD_API_URL", "http://127.0.0.1:8080"),
			PushURL:               os.Getenv("DASHBOARD_PUSH_URL"),
			Token:                 os.Getenv("DASHBOARD_TOKEN"),
			PollSeconds:           getEnvAsInt("DASHBOARD_POLL_SECONDS", 30),
			DebounceMillis:        getEnvAsInt("DASHBOARD_DEBOUNCE_MS", 1000),
			NewTicketsTTLSeconds:  getEnvAsInt("DASHBOARD_NEW_TICKETS_TTL_SECONDS", 5),
			ReconnectDelaySeconds: getEnvAsInt("DASHBOARD_RECONNECT_DELAY_SECONDS", 5),
			MaxReconnectAttempts:  getEnvAsInt("DASHBOARD_MAX_RECONNECT_ATTEMPTS", 5),
			StartDate:             os.Getenv("DASHBOARD_START_DATE"),
			EndDate:               os.Getenv("DASHBOARD_END_DATE"),
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

// IsProduction reports whether the service runs with APP_ENV=production.
func (a AppConfig) IsProduction() bool {
	return strings.EqualFold(a.Env, "production")
}

// AccessTokenTTL returns the lifetime of minted tokens.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// WriteTimeout bounds each websocket write.
func (p PushConfig) WriteTimeout() time.Duration {
	return time.Duration(p.WriteTimeoutSeconds) * time.Second
}

// PollInterval returns the periodic refresh interval.
func (d DashboardConfig) PollInterval() time.Duration {
	return time.Duration(d.PollSeconds) * time.Second
}

// Debounce returns the refresh coalescing window.
func (d DashboardConfig) Debounce() time.Duration {
	return time.Duration(d.DebounceMillis) * time.Millisecond
}

// NewTicketsTTL returns how long a new-ticket delta stays visible.
func (d DashboardConfig) NewTicketsTTL() time.Duration {
	return time.Duration(d.NewTicketsTTLSeconds) * time.Second
}

// ReconnectDelay returns the fixed delay between push reconnect attempts.
func (d DashboardConfig) ReconnectDelay() time.Duration {
	return time.Duration(d.ReconnectDelaySeconds) * time.Second
}

// Window parses the configured date filter.
func (d DashboardConfig) Window() (domain.FilterWindow, error) {
	return domain.NewFilterWindow(d.StartDate, d.EndDate)
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
