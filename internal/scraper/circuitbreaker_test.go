// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package scraper

import (
	stdctx "context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira/internal/platform/apperr"
	"github.com/taibuivan/yomira/internal/platform/kv"
)

// fakeBreakerStore is an in-memory stand-in for [breakerStore], matching
// the codebase's no-mocking-library testing convention.
type fakeBreakerStore struct {
	values map[string]string
}

func newFakeBreakerStore() *fakeBreakerStore {
	return &fakeBreakerStore{values: map[string]string{}}
}

func (f *fakeBreakerStore) Get(_ stdctx.Context, key string) (string, error) {
	v, ok := f.values[key]
	if !ok {
		return "", errNotFound
	}
	return v, nil
}

func (f *fakeBreakerStore) Set(_ stdctx.Context, key, value string) error {
	f.values[key] = value
	return nil
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	store := newFakeBreakerStore()
	cb := newCircuitBreakerWithStore(store, kv.NewKeys("test"))
	ctx := stdctx.Background()

	for i := 0; i < consecutiveFailureThreshold-1; i++ {
		require.NoError(t, cb.Allow(ctx, "mangadex"))
		require.NoError(t, cb.RecordFailure(ctx, "mangadex"))
	}

	require.NoError(t, cb.Allow(ctx, "mangadex"), "breaker must stay closed below the threshold")

	require.NoError(t, cb.RecordFailure(ctx, "mangadex"))
	err := cb.Allow(ctx, "mangadex")
	require.Error(t, err)
	ae := apperr.As(err)
	require.NotNil(t, ae)
	require.Equal(t, "CIRCUIT_OPEN", ae.Code)
}

func TestCircuitBreaker_SuccessResetsState(t *testing.T) {
	store := newFakeBreakerStore()
	cb := newCircuitBreakerWithStore(store, kv.NewKeys("test"))
	ctx := stdctx.Background()

	for i := 0; i < consecutiveFailureThreshold; i++ {
		require.NoError(t, cb.RecordFailure(ctx, "comick"))
	}
	require.Error(t, cb.Allow(ctx, "comick"))

	rec, err := cb.read(ctx, "comick")
	require.NoError(t, err)
	rec.OpenedAtUnixMs = 1 // force cooldown elapsed
	require.NoError(t, cb.write(ctx, "comick", rec))

	require.NoError(t, cb.Allow(ctx, "comick"), "half-open probe must be let through")
	require.NoError(t, cb.RecordSuccess(ctx, "comick"))

	rec, err = cb.read(ctx, "comick")
	require.NoError(t, err)
	require.Equal(t, StateClosed, rec.State)
	require.Equal(t, 0, rec.ConsecutiveFailures)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	store := newFakeBreakerStore()
	cb := newCircuitBreakerWithStore(store, kv.NewKeys("test"))
	ctx := stdctx.Background()

	require.NoError(t, cb.write(ctx, "comick", breakerRecord{State: StateHalfOpen}))
	require.NoError(t, cb.RecordFailure(ctx, "comick"))

	rec, err := cb.read(ctx, "comick")
	require.NoError(t, err)
	require.Equal(t, StateOpen, rec.State)
}
