package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App      App
	HTTP     HTTP
	Database Database
	Auth     Auth
	Redis    Redis
	Metrics  Metrics
	AI       AI
}

type App struct {
	Env      string
	LogLevel string
}

type HTTP struct {
	Addr           string
	BaseURL        string
	CORSOrigins    []string
	LoginRateLimit string // ulule formatted rate, e.g. "10-M"
}

type Database struct {
	Driver       string
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	Debug        bool
}

type Auth struct {
	JWTSecret         string
	TokenTTL          time.Duration
	AllowRegistration bool
}

type Redis struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type Metrics struct {
	Enabled bool
}

type AI struct {
	GeminiAPIKey string
	Model        string
}

func defaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("BASE_URL", "http://localhost:8080")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("LOGIN_RATE_LIMIT", "10-M")
	v.SetDefault("DB_DRIVER", "mysql")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("ALLOW_REGISTRATION", false)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CATALOG_CACHE_TTL", "5m")
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("GEMINI_MODEL", "gemini-2.0-flash-001")
}

// Load reads .env (if present) into the process environment and then builds
// the config from environment variables.
func Load(envFiles ...string) (Config, error) {
	// A missing .env is normal in containers
	_ = godotenv.Load(envFiles...)

	v := viper.New()
	defaults(v)
	v.AutomaticEnv()
	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	c := Config{
		App: App{
			Env:      v.GetString("APP_ENV"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		HTTP: HTTP{
			Addr:           v.GetString("HTTP_ADDR"),
			BaseURL:        v.GetString("BASE_URL"),
			CORSOrigins:    splitList(v.GetString("CORS_ORIGINS")),
			LoginRateLimit: v.GetString("LOGIN_RATE_LIMIT"),
		},
		Database: Database{
			Driver:       strings.ToLower(v.GetString("DB_DRIVER")),
			DSN:          v.GetString("DB_DSN"),
			MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
			Debug:        v.GetString("APP_ENV") == "dev",
		},
		Auth: Auth{
			JWTSecret:         v.GetString("JWT_SECRET"),
			TokenTTL:          v.GetDuration("JWT_TTL"),
			AllowRegistration: v.GetBool("ALLOW_REGISTRATION"),
		},
		Redis: Redis{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			TTL:      v.GetDuration("CATALOG_CACHE_TTL"),
		},
		Metrics: Metrics{Enabled: v.GetBool("METRICS_ENABLED")},
		AI: AI{
			GeminiAPIKey: v.GetString("GEMINI_API_KEY"),
			Model:        v.GetString("GEMINI_MODEL"),
		},
	}

	if c.Database.DSN == "" {
		return c, fmt.Errorf("DB_DSN is required")
	}
	if c.Auth.JWTSecret == "" {
		return c, fmt.Errorf("JWT_SECRET is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return c, fmt.Errorf("JWT_TTL must be positive")
	}
	return c, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
