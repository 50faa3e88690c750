package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"rate_sentinel/internal/domain"
)

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	BackendBase string
	BackendKey  string
	BackendRPS  int
	Workers     int
	CacheTTL    time.Duration
	CORSOrigins []string
	Template    domain.TemplateOptions
}

func Load() Config {
	// a local .env is optional
	_ = godotenv.Load()

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	dec := func(k string, def decimal.Decimal) decimal.Decimal {
		if v := os.Getenv(k); v != "" {
			if d, err := decimal.NewFromString(v); err == nil && !d.IsNegative() {
				return d
			}
			log.Warn().Str("key", k).Str("value", v).Msg("ignoring invalid decimal")
		}
		return def
	}

	tmpl := domain.DefaultTemplateOptions()
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		LogLevel:    env("LOG_LEVEL", "info"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ""),
		MySQLDSN:    env("MYSQL_DSN", ""),
		RedisAddr:   env("REDIS_ADDR", "localhost:6379"),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),
		BackendBase: env("BACKEND_BASE_URL", "http://localhost:9000/api"),
		BackendKey:  env("BACKEND_API_KEY", ""),
		BackendRPS:  atoi("BACKEND_RPS", 10),
		Workers:     atoi("ACTIVATE_WORKERS", 4),
		CacheTTL:    time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,
		CORSOrigins: splitList(env("CORS_ORIGINS", "*")),
		Template: domain.TemplateOptions{
			GuardrailMax:        dec("DEFAULT_GUARDRAIL_MAX", tmpl.GuardrailMax),
			DifferentialPercent: dec("DEFAULT_DIFFERENTIAL_PCT", tmpl.DifferentialPercent),
			FloorDays:           atoi("DEFAULT_FLOOR_DAYS", tmpl.FloorDays),
		},
	}
	if c.BackendKey == "" {
		log.Warn().Msg("BACKEND_API_KEY is empty")
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
