// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// # Worker Fleet Configuration

// WorkerConfig holds runtime configuration for the ingestion/discovery
// worker fleet. It is the only configuration struct in this package and
// carries none of the API server's crypto material: a worker process
// never reads SESSION_SECRET or JWT keys.
type WorkerConfig struct {

	// Deployment environment, shared with the API server
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Debug       bool   `env:"DEBUG"       envDefault:"false"`

	// Relational Database (PostgreSQL). The read URL falls back to the
	// primary when unset.
	DatabaseURL     string `env:"DATABASE_URL,required"`
	DatabaseReadURL string `env:"DATABASE_READ_URL"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value store (Redis). REDIS_WORKER_URL lets the fleet point at a
	// dedicated instance; it falls back to REDIS_URL. When
	// REDIS_SENTINEL_HOSTS is set (comma CSV of host:port), the fleet
	// connects through Sentinel instead and both URLs are ignored.
	RedisURL                string   `env:"REDIS_URL"`
	RedisWorkerURL          string   `env:"REDIS_WORKER_URL"`
	RedisSentinelHosts      []string `env:"REDIS_SENTINEL_HOSTS"`
	RedisSentinelMasterName string   `env:"REDIS_SENTINEL_MASTER_NAME" envDefault:"mymaster"`

	// WorkerInstances sizes the processor pool; 0 selects NumCPU.
	WorkerInstances int `env:"WORKER_INSTANCES" envDefault:"0"`

	// HealthPort serves /healthz and /metrics for the fleet.
	HealthPort string `env:"HEALTH_PORT" envDefault:"8081"`

	// TZ is validated to be UTC: every next_check_at comparison and
	// daily quota key assumes it.
	TZ string `env:"TZ" envDefault:"UTC"`
}

// LoadWorker parses environment variables into a [WorkerConfig].
func LoadWorker() (*WorkerConfig, error) {
	cfg := &WorkerConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse worker environment variables: %w", err)
	}

	if len(cfg.RedisSentinelHosts) == 0 && cfg.RedisURL == "" && cfg.RedisWorkerURL == "" {
		return nil, fmt.Errorf("config: one of REDIS_WORKER_URL, REDIS_URL or REDIS_SENTINEL_HOSTS is required")
	}
	if !strings.EqualFold(cfg.TZ, "UTC") {
		return nil, fmt.Errorf("config: TZ must be UTC, got %q", cfg.TZ)
	}

	return cfg, nil
}

// WorkerRedisURL resolves the effective non-Sentinel Redis URL.
func (c *WorkerConfig) WorkerRedisURL() string {
	if c.RedisWorkerURL != "" {
		return c.RedisWorkerURL
	}
	return c.RedisURL
}

// ReadDatabaseURL resolves the effective read-path DSN.
func (c *WorkerConfig) ReadDatabaseURL() string {
	if c.DatabaseReadURL != "" {
		return c.DatabaseReadURL
	}
	return c.DatabaseURL
}

// IsDevelopment reports whether the fleet runs in development mode.
func (c *WorkerConfig) IsDevelopment() bool {
	return c.Environment == "development"
}
