// Package config provides runtime configuration values for the service.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds configuration knobs for the HTTP server and the ledger.
type Config struct {
	ServiceName     string
	Env             string
	HTTPAddr        string
	ShutdownTimeout time.Duration

	AdminAddress   string
	WarrantyWindow uint64
	StartHeight    uint64
	BlockInterval  time.Duration
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func uintenv(key string, def uint64) uint64 {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func durenvms(key string, defMs uint64) time.Duration {
	return time.Duration(uintenv(key, defMs)) * time.Millisecond
}

// Load collects configuration from environment with defaults.
func Load() Config {
	return Config{
		ServiceName:     getenv("SERVICE_NAME", "storeledger"),
		Env:             getenv("ENV", "dev"),
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		ShutdownTimeout: durenvms("SHUTDOWN_TIMEOUT_MS", 10_000),
		AdminAddress:    getenv("ADMIN_ADDRESS", "admin"),
		WarrantyWindow:  uintenv("WARRANTY_WINDOW", 100),
		StartHeight:     uintenv("START_HEIGHT", 1),
		BlockInterval:   durenvms("BLOCK_INTERVAL_MS", 1_000),
	}
}
