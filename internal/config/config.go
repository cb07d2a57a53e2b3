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
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Routes       RoutesConfig
	Tasks        TasksConfig
	RateLimit    RateLimitConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	SecureCookies         bool
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

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLHours   int
	RefreshTokenTTLHours  int
	BcryptCost            int
	BackendURL            string
	BackendTimeoutSeconds int
	EdgeVerify            bool
	SeedAdminEmail        string
	SeedAdminPassword     string
}

// RoutesConfig is the static route table.
type RoutesConfig struct {
	Public          []string
	StaffPrefixes   []string
	ManagerPrefixes []string
	LoginPath       string
}

// TasksConfig controls overdue persistence.
type TasksConfig struct {
	PersistOverdue       bool
	SweepIntervalSeconds int
}

// RateLimitConfig throttles login attempts.
type RateLimitConfig struct {
	LoginRPS   float64
	LoginBurst int
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	loginRPS, err := strconv.ParseFloat(getEnv("RATE_LIMIT_LOGIN_RPS", "1"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_LOGIN_RPS: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "taskboard-dashboard"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "127.0.0.1"),
			Port:                  getEnv("APP_PORT", "3000"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			SecureCookies:         getEnvAsBool("APP_SECURE_COOKIES", true),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:      os.Getenv("REDIS_ADDR"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        redisDB,
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "taskboard:"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLHours:   getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_HOURS", 7*24),
			RefreshTokenTTLHours:  getEnvAsInt("AUTH_REFRESH_TOKEN_TTL_HOURS", 30*24),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			BackendURL:            strings.TrimRight(os.Getenv("AUTH_BACKEND_URL"), "/"),
			BackendTimeoutSeconds: getEnvAsInt("AUTH_BACKEND_TIMEOUT_SECONDS", 10),
			EdgeVerify:            getEnvAsBool("AUTH_EDGE_VERIFY", true),
			SeedAdminEmail:        os.Getenv("SEED_ADMIN_EMAIL"),
			SeedAdminPassword:     os.Getenv("SEED_ADMIN_PASSWORD"),
		},
		Routes: RoutesConfig{
			Public:          getEnvAsList("ROUTES_PUBLIC", nil),
			StaffPrefixes:   getEnvAsList("ROUTES_STAFF_PREFIXES", []string{"/staff"}),
			ManagerPrefixes: getEnvAsList("ROUTES_MANAGER_PREFIXES", []string{"/manager"}),
			LoginPath:       getEnv("ROUTES_LOGIN_PATH", "/login"),
		},
		Tasks: TasksConfig{
			PersistOverdue:       getEnvAsBool("TASKS_PERSIST_OVERDUE", false),
			SweepIntervalSeconds: getEnvAsInt("TASKS_SWEEP_INTERVAL_SECONDS", 300),
		},
		RateLimit: RateLimitConfig{
			LoginRPS:   loginRPS,
			LoginBurst: getEnvAsInt("RATE_LIMIT_LOGIN_BURST", 5),
		},
		Notification: NotificationConfig{
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
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

// AccessTTL returns the access token lifetime.
func (a AuthConfig) AccessTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLHours) * time.Hour
}

// RefreshTTL returns the refresh token lifetime.
func (a AuthConfig) RefreshTTL() time.Duration {
	return time.Duration(a.RefreshTokenTTLHours) * time.Hour
}

// BackendTimeout returns the remote backend request timeout.
func (a AuthConfig) BackendTimeout() time.Duration {
	if a.BackendTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(a.BackendTimeoutSeconds) * time.Second
}

// SweepInterval returns the overdue sweep period.
func (t TasksConfig) SweepInterval() time.Duration {
	if t.SweepIntervalSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(t.SweepIntervalSeconds) * time.Second
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

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
