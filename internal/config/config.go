package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime settings. Environment variables win over the
// optional YAML file so container deployments can override single keys.
type Config struct {
	Port              string        `yaml:"port"`
	DatabaseURL       string        `yaml:"databaseUrl"`
	RedisURL          string        `yaml:"redisUrl"`
	TrafficServiceURL string        `yaml:"trafficServiceUrl"`
	OrderServiceURL   string        `yaml:"orderServiceUrl"`
	DefaultDepotLat   float64       `yaml:"defaultDepotLat"`
	DefaultDepotLng   float64       `yaml:"defaultDepotLng"`
	SolverTimeBudget  time.Duration `yaml:"solverTimeBudget"`
	MatrixConcurrency int           `yaml:"matrixConcurrency"`
	JobWorkers        int           `yaml:"jobWorkers"`
	JobQueueSize      int           `yaml:"jobQueueSize"`
	TrafficRateLimit  float64       `yaml:"trafficRateLimit"`
	TrafficCacheTTL   time.Duration `yaml:"trafficCacheTtl"`
}

// Defaults match the documented service behavior: Delhi depot fallback,
// 30s solver budget, 8-way matrix fan-out.
func defaults() Config {
	return Config{
		Port:              "8080",
		TrafficServiceURL: "http://localhost:8002/api/v1",
		OrderServiceURL:   "",
		DefaultDepotLat:   28.6139,
		DefaultDepotLng:   77.2090,
		SolverTimeBudget:  30 * time.Second,
		MatrixConcurrency: 8,
		JobWorkers:        2,
		JobQueueSize:      64,
		TrafficRateLimit:  20,
		TrafficCacheTTL:   2 * time.Minute,
	}
}

// Load reads CONFIG_FILE (if set) and overlays environment variables.
func Load() (Config, error) {
	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}
	overlayEnv(&cfg)
	if cfg.MatrixConcurrency < 1 {
		cfg.MatrixConcurrency = 1
	}
	if cfg.JobWorkers < 1 {
		cfg.JobWorkers = 1
	}
	if cfg.JobQueueSize < 1 {
		cfg.JobQueueSize = 1
	}
	return cfg, nil
}

func overlayEnv(cfg *Config) {
	setStr(&cfg.Port, "PORT")
	setStr(&cfg.DatabaseURL, "DATABASE_URL")
	setStr(&cfg.RedisURL, "REDIS_URL")
	setStr(&cfg.TrafficServiceURL, "TRAFFIC_SERVICE_URL")
	setStr(&cfg.OrderServiceURL, "ORDER_SERVICE_URL")
	setFloat(&cfg.DefaultDepotLat, "DEFAULT_DEPOT_LAT")
	setFloat(&cfg.DefaultDepotLng, "DEFAULT_DEPOT_LNG")
	setDur(&cfg.SolverTimeBudget, "SOLVER_TIME_BUDGET")
	setInt(&cfg.MatrixConcurrency, "MATRIX_CONCURRENCY")
	setInt(&cfg.JobWorkers, "JOB_WORKERS")
	setInt(&cfg.JobQueueSize, "JOB_QUEUE_SIZE")
	setFloat(&cfg.TrafficRateLimit, "TRAFFIC_RATE_LIMIT")
	setDur(&cfg.TrafficCacheTTL, "TRAFFIC_CACHE_TTL")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDur(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
