// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package kv

import (
	stdctx "context"
	"fmt"
	"time"
)

// heatWindow is the sliding window over which a query's heat is tracked.
const heatWindow = 10 * time.Minute

// heatCountField is the hash field holding a query's search count under
// the ":count" key; distinct searchers go in a set under the ":users" key.
const heatCountField = "count"

// Heat tracks how many times a normalized query has been searched, and by
// how many distinct users, within a sliding window. The search
// dispatcher treats a query as HOT when count >= 2 or unique users >= 2.
type Heat struct {
	raw  RedisClient
	keys Keys
}

// RedisClient is the subset of *redis.Client used by [Heat]; declared as
// an interface so tests can supply a narrow fake instead of a live
// connection (no mocking framework is used anywhere in this codebase).
type RedisClient interface {
	HIncrByResult(ctx stdctx.Context, key, field string, incr int64) (int64, error)
	SAddResult(ctx stdctx.Context, key string, member string) (int64, error)
	SCardResult(ctx stdctx.Context, key string) (int64, error)
	ExpireResult(ctx stdctx.Context, key string, ttl time.Duration) (bool, error)
}

// NewHeat constructs a [Heat] tracker.
func NewHeat(client RedisClient, keys Keys) *Heat {
	return &Heat{raw: client, keys: keys}
}

// Record registers one search hit for queryHash by userID (empty for an
// anonymous caller) and returns the updated (count, uniqueUsers) totals.
func (h *Heat) Record(ctx stdctx.Context, queryHash, userID string) (count, uniqueUsers int64, err error) {
	countKey := h.keys.SearchHeat(queryHash) + ":count"
	usersKey := h.keys.SearchHeat(queryHash) + ":users"

	count, err = h.raw.HIncrByResult(ctx, countKey, heatCountField, 1)
	if err != nil {
		return 0, 0, fmt.Errorf("kv: record heat count: %w", err)
	}
	if _, err := h.raw.ExpireResult(ctx, countKey, heatWindow); err != nil {
		return 0, 0, fmt.Errorf("kv: expire heat count: %w", err)
	}

	if userID != "" {
		if _, err := h.raw.SAddResult(ctx, usersKey, userID); err != nil {
			return 0, 0, fmt.Errorf("kv: record heat user: %w", err)
		}
		if _, err := h.raw.ExpireResult(ctx, usersKey, heatWindow); err != nil {
			return 0, 0, fmt.Errorf("kv: expire heat users: %w", err)
		}
	}

	uniqueUsers, err = h.raw.SCardResult(ctx, usersKey)
	if err != nil {
		return 0, 0, fmt.Errorf("kv: read heat unique users: %w", err)
	}

	return count, uniqueUsers, nil
}

// IsHot reports whether a query already meets the heat threshold without
// recording a new hit (used by the deferred-search retry path to
// re-check heat before re-enqueueing a `low_heat` deferral).
func (h *Heat) IsHot(ctx stdctx.Context, queryHash string) (bool, error) {
	countKey := h.keys.SearchHeat(queryHash) + ":count"
	usersKey := h.keys.SearchHeat(queryHash) + ":users"

	count, err := h.raw.HIncrByResult(ctx, countKey, heatCountField, 0)
	if err != nil {
		return false, fmt.Errorf("kv: read heat count: %w", err)
	}
	uniqueUsers, err := h.raw.SCardResult(ctx, usersKey)
	if err != nil {
		return false, fmt.Errorf("kv: read heat unique users: %w", err)
	}
	return count >= 2 || uniqueUsers >= 2, nil
}
