// Package config provides configuration parsing for the driftwatch CLI.
//
// It handles both command-line flags and environment variables, with flags
// taking precedence over environment variables. A .env file in the working
// directory is loaded first, so local setups can keep backend URLs out of
// the shell.
//
// Supported configuration sources (in order of precedence):
//   1. Command-line flags
//   2. Environment variables (including .env)
//   3. Default values
//
// Example usage:
//
//	cfg := config.ParseFlags()
//	// cfg.Args holds the positional test arguments
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	BackendURL    string
	PrometheusURL string
	Delay         time.Duration
	CheckDrift    int
	Timeout       time.Duration
	OutputPath    string
	HistoryPath   string
	SuitePath     string
	Listen        string
	LogFormat     string
	LogLevel      string

	// Args are the positional arguments: <test_type> [service] [count].
	Args []string
}

func ParseFlags() *Config {
	// Best effort; a missing .env file is not an error.
	_ = godotenv.Load()

	cfg := &Config{}

	flag.StringVar(&cfg.BackendURL, "url", getEnv("BACKEND_URL", "http://localhost:8000"), "ML backend base URL")
	flag.StringVar(&cfg.PrometheusURL, "prom-url", getEnv("PROMETHEUS_URL", ""), "Prometheus base URL for drift gauge assertions (optional)")
	flag.DurationVar(&cfg.Delay, "delay", getEnvDuration("REQUEST_DELAY", 0), "Delay between requests (0 = scenario default)")
	flag.IntVar(&cfg.CheckDrift, "check-drift", getEnvInt("CHECK_DRIFT_EVERY", 0), "Poll drift status every N requests (0 = scenario default)")
	flag.DurationVar(&cfg.Timeout, "timeout", getEnvDuration("REQUEST_TIMEOUT", 30*time.Second), "Per-request HTTP timeout")
	flag.StringVar(&cfg.OutputPath, "output", getEnv("OUTPUT_PATH", ""), "Write run results as JSON to this file")
	flag.StringVar(&cfg.HistoryPath, "history", getEnv("HISTORY_DB", ""), "SQLite file for run history (empty = in-memory only)")
	flag.StringVar(&cfg.SuitePath, "suite", getEnv("SUITE_FILE", ""), "YAML suite file to run instead of a single test type")
	flag.StringVar(&cfg.Listen, "listen", getEnv("DRIFTWATCH_LISTEN", ""), "Serve /healthz and /metrics on this address while running (empty = off)")
	flag.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format (text|json)")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level (debug|info|warn|error)")

	flag.Parse()

	// Validation
	if cfg.BackendURL == "" {
		fmt.Fprintln(os.Stderr, "Error: -url is required")
		flag.Usage()
		os.Exit(1)
	}

	cfg.Args = flag.Args()

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
