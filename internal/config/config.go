package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DBDSN      string
	DBMaxConns int32
	HTTPAddr   string
	LogLevel   string
	RedisDSN   string

	// GitHub OAuth app credentials; never log these
	GitHubClientID     string
	GitHubClientSecret string
	GitHubRedirectURI  string

	JWTSecret   string
	FrontendURL string
	CORSOrigins []string

	CacheTTL      time.Duration
	SweepInterval time.Duration
}

func Load() (Config, error) {
	cfg := Config{
		DBDSN:              os.Getenv("DB_DSN"),
		HTTPAddr:           getenvDefault("HTTP_ADDR", ":8080"),
		LogLevel:           getenvDefault("LOG_LEVEL", "info"),
		RedisDSN:           getenvDefault("REDIS_DSN", "redis://localhost:6379/0"),
		GitHubClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		GitHubClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		GitHubRedirectURI:  getenvDefault("GITHUB_REDIRECT_URI", "http://localhost:8080/api/auth/callback"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		FrontendURL:        getenvDefault("FRONTEND_URL", "http://localhost:3000"),
	}

	if cfg.DBDSN == "" {
		return Config{}, errors.New("missing DB_DSN")
	}
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("missing JWT_SECRET")
	}
	if len(cfg.JWTSecret) < 16 {
		return Config{}, errors.New("JWT_SECRET must be at least 16 characters")
	}

	maxConns, err := getenvInt("DB_MAX_CONNS", 20)
	if err != nil || maxConns <= 0 {
		return Config{}, errors.New("DB_MAX_CONNS must be a positive integer")
	}
	cfg.DBMaxConns = int32(maxConns)

	ttlSeconds, err := getenvInt("CACHE_TTL_SECONDS", 86400)
	if err != nil || ttlSeconds <= 0 {
		return Config{}, errors.New("CACHE_TTL_SECONDS must be a positive integer")
	}
	cfg.CacheTTL = time.Duration(ttlSeconds) * time.Second

	sweepSeconds, err := getenvInt("SWEEP_INTERVAL_SECONDS", 3600)
	if err != nil || sweepSeconds <= 0 {
		return Config{}, errors.New("SWEEP_INTERVAL_SECONDS must be a positive integer")
	}
	cfg.SweepInterval = time.Duration(sweepSeconds) * time.Second

	// parse CORS origins
	corsOrigins := getenvDefault("CORS_ORIGINS", "")
	if corsOrigins != "" {
		cfg.CORSOrigins = strings.Split(corsOrigins, ",")
		for i := range cfg.CORSOrigins {
			cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
		}
	} else {
		cfg.CORSOrigins = []string{cfg.FrontendURL}
	}

	return cfg, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
