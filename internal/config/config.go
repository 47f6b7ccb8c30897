// Package config reads process configuration from the environment:
// plain os.Getenv lookups with hardcoded defaults, no configuration
// framework or file format.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config is the full set of knobs cmd/kvserver needs at startup.
type Config struct {
	// ListenAddr is where the TCP key/value protocol listens.
	ListenAddr string
	// AdminAddr is where the read-only diagnostics HTTP surface listens.
	AdminAddr string
	// IdleTimeoutMS is how long a connection may sit without activity
	// before the event loop reaps it.
	IdleTimeoutMS int64
	// MaxConns bounds how many TCP connections are admitted at once.
	MaxConns int64
	// Env selects gin's mode and the zap logger config ("production" or
	// "development").
	Env string
}

// Load reads Config from the environment, falling back to built-in
// defaults.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:    getenv("KVSERVER_ADDR", "0.0.0.0:1234"),
		AdminAddr:     getenv("KVSERVER_ADMIN_ADDR", "127.0.0.1:8089"),
		IdleTimeoutMS: 5000,
		MaxConns:      4096,
		Env:           getenv("KVSERVER_ENV", "production"),
	}

	var err error
	if cfg.IdleTimeoutMS, err = getenvInt64("KVSERVER_IDLE_TIMEOUT_MS", cfg.IdleTimeoutMS); err != nil {
		return Config{}, err
	}
	if cfg.MaxConns, err = getenvInt64("KVSERVER_MAX_CONNS", cfg.MaxConns); err != nil {
		return Config{}, err
	}
	if cfg.IdleTimeoutMS <= 0 {
		return Config{}, fmt.Errorf("config: KVSERVER_IDLE_TIMEOUT_MS must be positive, got %d", cfg.IdleTimeoutMS)
	}
	if cfg.MaxConns <= 0 {
		return Config{}, fmt.Errorf("config: KVSERVER_MAX_CONNS must be positive, got %d", cfg.MaxConns)
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt64(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}
