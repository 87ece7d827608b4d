// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package kv

import (
	stdctx "context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// bucketTTL is the sliding TTL applied to both keys of a token bucket
// on every access, so buckets for idle sources clean themselves up.
const bucketTTL = time.Hour

// acquireScript refills the bucket by elapsed-time * rps (capped at
// burst), then either takes one token or reports how long the caller
// must wait for one. It runs as a single atomic script so concurrent
// acquirers across the worker fleet never observe a torn read/write of
// the two keys.
var acquireScript = redis.NewScript(`
local tokensKey = KEYS[1]
local refillKey = KEYS[2]
local rps = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttlMs = tonumber(ARGV[4])

local tokens = tonumber(redis.call("GET", tokensKey))
local lastRefill = tonumber(redis.call("GET", refillKey))

if tokens == nil then
	tokens = burst
end
if lastRefill == nil then
	lastRefill = now
end

local elapsedMs = now - lastRefill
if elapsedMs < 0 then
	elapsedMs = 0
end

tokens = math.min(burst, tokens + (elapsedMs / 1000.0) * rps)

local waitMs = 0
if tokens >= 1 then
	tokens = tokens - 1
else
	waitMs = math.ceil((1 - tokens) / rps * 1000.0)
end

redis.call("SET", tokensKey, tostring(tokens), "PX", ttlMs)
redis.call("SET", refillKey, tostring(now), "PX", ttlMs)

return waitMs
`)

// TokenBucket is a distributed, KV-backed token bucket shared by every
// worker process that calls [TokenBucket.Acquire] for the same source.
//
// # Why Redis, not an in-process limiter
//
// A per-process limiter (e.g. golang.org/x/time/rate) would let N worker
// processes each burn a full independent budget against the same
// upstream source. The bucket's state must live in one place shared by
// the fleet, so it is kept as a typed object whose state lives in the
// KV store, never in-process.
type TokenBucket struct {
	client *redis.Client
	keys   Keys
}

// NewTokenBucket constructs a [TokenBucket].
func NewTokenBucket(client *redis.Client, keys Keys) *TokenBucket {
	return &TokenBucket{client: client, keys: keys}
}

// Acquire attempts to take one token from source's bucket.
//
// It returns (true, 0) if a token was taken, or (false, waitMs) with the
// number of milliseconds the caller should sleep before retrying if the
// bucket is currently empty.
func (b *TokenBucket) Acquire(ctx stdctx.Context, source string, rps float64, burst int) (acquired bool, waitMs int64, err error) {
	now := time.Now().UnixMilli()
	keys := []string{b.keys.RateLimitTokens(source), b.keys.RateLimitLastRefill(source)}
	result, err := acquireScript.Run(ctx, b.client, keys, rps, burst, now, bucketTTL.Milliseconds()).Int64()
	if err != nil {
		return false, 0, fmt.Errorf("kv: token bucket acquire for %q: %w", source, err)
	}
	if result == 0 {
		return true, 0, nil
	}
	return false, result, nil
}
