// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ratelimit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira/internal/ratelimit"
)

func noEnv(string) (string, bool) { return "", false }

func TestLoad_UsesDefaultWhenUnset(t *testing.T) {
	cfg, err := ratelimit.Load("mangadex", noEnv)
	require.NoError(t, err)
	assert.Equal(t, 5.0, cfg.RPS)
	assert.Equal(t, 10, cfg.Burst)
	assert.Equal(t, int64(250), cfg.CooldownMs)
}

func TestLoad_UnknownSource(t *testing.T) {
	_, err := ratelimit.Load("unknown-host", noEnv)
	assert.Error(t, err)
}

func TestLoad_EnvOverride(t *testing.T) {
	lookup := func(key string) (string, bool) {
		if key == "RATE_LIMIT_MANGADEX" {
			return "2.5,8,100", true
		}
		return "", false
	}
	cfg, err := ratelimit.Load("mangadex", lookup)
	require.NoError(t, err)
	assert.Equal(t, 2.5, cfg.RPS)
	assert.Equal(t, 8, cfg.Burst)
	assert.Equal(t, int64(100), cfg.CooldownMs)
}

func TestLoad_MalformedEnvOverride(t *testing.T) {
	lookup := func(key string) (string, bool) {
		if key == "RATE_LIMIT_MANGADEX" {
			return "not-a-number,8,100", true
		}
		return "", false
	}
	_, err := ratelimit.Load("mangadex", lookup)
	assert.Error(t, err)
}
