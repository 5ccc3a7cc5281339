package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig is loaded from environment variables only. ORACLE_URL is the
// single required setting; everything else has a usable default.
type AppConfig struct {
	OracleURL     string
	OracleTimeout time.Duration
	OracleRetries int

	DefaultDepth int

	RedisURL string
	CacheTTL time.Duration

	ListenAddr string

	MessageDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		OracleTimeout: 12 * time.Second,
		OracleRetries: 3,
		DefaultDepth:  12,
		CacheTTL:      6 * time.Hour,
		ListenAddr:    ":8080",
	}

	cfg.OracleURL = strings.TrimSpace(os.Getenv("ORACLE_URL"))
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.MessageDir = strings.TrimSpace(os.Getenv("MESSAGE_DIR"))

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("ORACLE_TIMEOUT_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.OracleTimeout = time.Duration(n) * time.Second
		}
	}
	if v := strings.TrimSpace(os.Getenv("ORACLE_RETRIES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.OracleRetries = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ORACLE_DEFAULT_DEPTH")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.DefaultDepth = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("CACHE_TTL_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheTTL = time.Duration(n) * time.Second
		}
	}

	if cfg.OracleURL == "" {
		return nil, errors.New("ORACLE_URL is required")
	}

	return cfg, nil
}
