// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package kv

import (
	stdctx "context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Gate wraps the family of "claim a short-lived SET-NX-EX slot" patterns
// used throughout the search dispatcher: pending-request coalescing,
// per-IP cooldowns, and premium concurrency/quota counters.
type Gate struct {
	client *redis.Client
}

// NewGate constructs a [Gate].
func NewGate(client *redis.Client) *Gate {
	return &Gate{client: client}
}

// Claim atomically sets key to value with the given TTL only if key is
// absent. It reports whether the claim succeeded.
func (g *Gate) Claim(ctx stdctx.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("kv: claim %q: %w", key, err)
	}
	return ok, nil
}

// Put unconditionally sets key to value with ttl; the cache-write
// counterpart to [Gate.Claim].
func (g *Gate) Put(ctx stdctx.Context, key, value string, ttl time.Duration) error {
	if err := g.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("kv: put %q: %w", key, err)
	}
	return nil
}

// Get returns the current value stored at key, or ("", false) if absent.
func (g *Gate) Get(ctx stdctx.Context, key string) (string, bool, error) {
	val, err := g.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv: get %q: %w", key, err)
	}
	return val, true, nil
}

// Exists reports whether key is currently set, without reading its value.
func (g *Gate) Exists(ctx stdctx.Context, key string) (bool, error) {
	n, err := g.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("kv: exists %q: %w", key, err)
	}
	return n > 0, nil
}

// Incr increments a counter key by 1, setting ttl only the first time the
// key is created (so a counter expires ttl after its first increment, not
// ttl after every increment).
func (g *Gate) Incr(ctx stdctx.Context, key string, ttl time.Duration) (int64, error) {
	pipe := g.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("kv: incr %q: %w", key, err)
	}
	return incr.Val(), nil
}

// Decr decrements a counter key by 1. No floor is applied; keeping the
// value non-negative is left to the caller.
func (g *Gate) Decr(ctx stdctx.Context, key string) error {
	if err := g.client.Decr(ctx, key).Err(); err != nil {
		return fmt.Errorf("kv: decr %q: %w", key, err)
	}
	return nil
}

// IntVal reads an integer counter, returning 0 if absent.
func (g *Gate) IntVal(ctx stdctx.Context, key string) (int64, error) {
	val, err := g.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("kv: read counter %q: %w", key, err)
	}
	return val, nil
}

// Release removes a claimed key (e.g. clearing the pending-coalesce
// marker once the leader's search finishes).
func (g *Gate) Release(ctx stdctx.Context, key string) error {
	if err := g.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("kv: release %q: %w", key, err)
	}
	return nil
}
