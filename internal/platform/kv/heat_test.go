// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package kv_test

import (
	stdctx "context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira/internal/platform/kv"
)

// fakeRedis is a minimal in-memory stand-in for [kv.RedisClient], used
// instead of a mocking library to match this codebase's no-mock testing
// convention (see internal/platform/validate/validate_test.go).
type fakeRedis struct {
	counts map[string]int64
	sets   map[string]map[string]struct{}
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{counts: map[string]int64{}, sets: map[string]map[string]struct{}{}}
}

func (f *fakeRedis) HIncrByResult(_ stdctx.Context, key, _ string, incr int64) (int64, error) {
	f.counts[key] += incr
	return f.counts[key], nil
}

func (f *fakeRedis) SAddResult(_ stdctx.Context, key string, member string) (int64, error) {
	if f.sets[key] == nil {
		f.sets[key] = map[string]struct{}{}
	}
	f.sets[key][member] = struct{}{}
	return int64(len(f.sets[key])), nil
}

func (f *fakeRedis) SCardResult(_ stdctx.Context, key string) (int64, error) {
	return int64(len(f.sets[key])), nil
}

func (f *fakeRedis) ExpireResult(_ stdctx.Context, _ string, _ time.Duration) (bool, error) {
	return true, nil
}

func TestHeat_HotWhenCountThresholdReached(t *testing.T) {
	fr := newFakeRedis()
	heat := kv.NewHeat(fr, kv.NewKeys("test"))
	ctx := stdctx.Background()

	count, unique, err := heat.Record(ctx, "obscurename", "")
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
	require.Equal(t, int64(0), unique)

	hot, err := heat.IsHot(ctx, "obscurename")
	require.NoError(t, err)
	require.False(t, hot, "single anonymous hit must not be hot")

	_, _, err = heat.Record(ctx, "obscurename", "")
	require.NoError(t, err)

	hot, err = heat.IsHot(ctx, "obscurename")
	require.NoError(t, err)
	require.True(t, hot, "second hit crosses count>=2 threshold")
}

func TestHeat_HotWhenUniqueUsersThresholdReached(t *testing.T) {
	fr := newFakeRedis()
	heat := kv.NewHeat(fr, kv.NewKeys("test"))
	ctx := stdctx.Background()

	_, _, err := heat.Record(ctx, "q", "user-1")
	require.NoError(t, err)
	hot, err := heat.IsHot(ctx, "q")
	require.NoError(t, err)
	require.False(t, hot)

	_, unique, err := heat.Record(ctx, "q", "user-2")
	require.NoError(t, err)
	require.Equal(t, int64(2), unique)

	hot, err = heat.IsHot(ctx, "q")
	require.NoError(t, err)
	require.True(t, hot, "second distinct user crosses unique_users>=2 threshold")
}
