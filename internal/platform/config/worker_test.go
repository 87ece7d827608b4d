// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira/internal/platform/config"
)

func setBaseWorkerEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/yomira")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("TZ", "UTC")
}

func TestLoadWorker_Defaults(t *testing.T) {
	setBaseWorkerEnv(t)

	cfg, err := config.LoadWorker()
	require.NoError(t, err)
	require.Equal(t, "development", cfg.Environment)
	require.Equal(t, 0, cfg.WorkerInstances)
	require.Equal(t, "8081", cfg.HealthPort)
	require.Equal(t, "mymaster", cfg.RedisSentinelMasterName)
}

func TestLoadWorker_RequiresSomeRedisTarget(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/yomira")
	t.Setenv("REDIS_URL", "")
	t.Setenv("REDIS_WORKER_URL", "")
	t.Setenv("REDIS_SENTINEL_HOSTS", "")
	t.Setenv("TZ", "UTC")

	_, err := config.LoadWorker()
	require.Error(t, err)
}

func TestLoadWorker_RejectsNonUTC(t *testing.T) {
	setBaseWorkerEnv(t)
	t.Setenv("TZ", "Asia/Tokyo")

	_, err := config.LoadWorker()
	require.Error(t, err)
}

func TestWorkerConfig_Fallbacks(t *testing.T) {
	setBaseWorkerEnv(t)

	cfg, err := config.LoadWorker()
	require.NoError(t, err)
	require.Equal(t, "redis://localhost:6379/0", cfg.WorkerRedisURL())
	require.Equal(t, "postgres://localhost/yomira", cfg.ReadDatabaseURL())

	t.Setenv("REDIS_WORKER_URL", "redis://worker:6379/1")
	t.Setenv("DATABASE_READ_URL", "postgres://replica/yomira")
	cfg, err = config.LoadWorker()
	require.NoError(t, err)
	require.Equal(t, "redis://worker:6379/1", cfg.WorkerRedisURL())
	require.Equal(t, "postgres://replica/yomira", cfg.ReadDatabaseURL())
}

func TestLoadWorker_SentinelHostsCSV(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/yomira")
	t.Setenv("REDIS_SENTINEL_HOSTS", "s1:26379,s2:26379")
	t.Setenv("TZ", "UTC")

	cfg, err := config.LoadWorker()
	require.NoError(t, err)
	require.Equal(t, []string{"s1:26379", "s2:26379"}, cfg.RedisSentinelHosts)
}
