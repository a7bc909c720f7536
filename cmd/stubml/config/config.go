// Package config provides configuration parsing for the stubml server.
package config

import (
	"flag"
	"os"
	"strconv"
)

type Config struct {
	Listen         string
	ReferenceSize  int
	MinSamples     int
	DriftThreshold float64
	LogFormat      string
	LogLevel       string
}

func ParseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.Listen, "listen", getEnv("STUBML_LISTEN", ":8000"), "HTTP listen address")
	flag.IntVar(&cfg.ReferenceSize, "reference-size", getEnvInt("STUBML_REFERENCE_SIZE", 100), "Samples needed to build the drift reference")
	flag.IntVar(&cfg.MinSamples, "min-samples", getEnvInt("STUBML_MIN_SAMPLES", 50), "Current samples needed before drift is scored")
	flag.Float64Var(&cfg.DriftThreshold, "drift-threshold", getEnvFloat("STUBML_DRIFT_THRESHOLD", 0.2), "Relative mean shift that flags a feature")
	flag.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format (text|json)")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level (debug|info|warn|error)")

	flag.Parse()

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

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
