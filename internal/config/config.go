package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mcuadros/go-defaults"
)

// Transport values accepted for AGE_API_TRANSPORT.
const (
	TransportHTTP = "http"
	TransportGRPC = "grpc"
)

// ErrMissingJWTSecret is returned when no token signing secret is configured.
var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set")

// Config holds the runtime settings of the service.
type Config struct {
	HTTPAddr        string        `toml:"http_addr" default:":8080"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" default:"15s"`

	AgeAPIURL       string        `toml:"age_api_url" default:"http://age-api:8000/age"`
	AgeAPITransport string        `toml:"age_api_transport" default:"http"`
	AgeAPIGRPCAddr  string        `toml:"age_api_grpc_addr" default:"age-api:50051"`
	AgeAPIToken     string        `toml:"age_api_token"`
	AgeAPITimeout   time.Duration `toml:"age_api_timeout" default:"30s"`
	AgeThreshold    float64       `toml:"age_threshold" default:"18"`

	DatabaseDSN string `toml:"database_dsn" default:"host=postgres user=postgres password=postgres dbname=agegate port=5432 sslmode=disable"`
	RedisAddr   string `toml:"redis_addr" default:"redis:6379"`

	SessionTTL time.Duration `toml:"session_ttl" default:"30m"`

	JWTSecret   string `toml:"jwt_secret"`
	JWTAudience string `toml:"jwt_audience"`

	LogFile string `toml:"log_file"`
}

// Load applies defaults, the optional TOML file named by AGEGATE_CONFIG and
// finally environment overrides.
func Load() (*Config, error) {
	cfg := &Config{}
	defaults.SetDefaults(cfg)

	if path := os.Getenv("AGEGATE_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode config file %s: %w", path, err)
		}
	}

	cfg.HTTPAddr = getEnv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.AgeAPIURL = getEnv("AGE_API_URL", cfg.AgeAPIURL)
	cfg.AgeAPITransport = getEnv("AGE_API_TRANSPORT", cfg.AgeAPITransport)
	cfg.AgeAPIGRPCAddr = getEnv("AGE_API_GRPC_ADDR", cfg.AgeAPIGRPCAddr)
	cfg.AgeAPIToken = getEnv("AGE_API_TOKEN", cfg.AgeAPIToken)
	cfg.DatabaseDSN = getEnv("DATABASE_DSN", cfg.DatabaseDSN)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.JWTAudience = getEnv("JWT_AUDIENCE", cfg.JWTAudience)
	cfg.LogFile = getEnv("LOG_FILE", cfg.LogFile)

	if raw := os.Getenv("SESSION_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("parse SESSION_TTL: %w", err)
		}
		cfg.SessionTTL = ttl
	}

	if raw := os.Getenv("AGE_THRESHOLD"); raw != "" {
		threshold, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("parse AGE_THRESHOLD: %w", err)
		}
		cfg.AgeThreshold = threshold
	}

	if cfg.JWTSecret == "" {
		return nil, ErrMissingJWTSecret
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("session ttl must be positive, got %s", cfg.SessionTTL)
	}

	switch cfg.AgeAPITransport {
	case TransportHTTP, TransportGRPC:
	default:
		return nil, fmt.Errorf("unsupported age api transport %q", cfg.AgeAPITransport)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
