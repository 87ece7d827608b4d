// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ratelimit

import (
	stdctx "context"
	"fmt"
	"os"
	"time"

	"github.com/taibuivan/yomira/internal/platform/apperr"
	"github.com/taibuivan/yomira/internal/platform/kv"
)

// defaultMaxWaitMs is the deadline [Limiter.Acquire] honors when the
// caller doesn't specify one.
const defaultMaxWaitMs = 30_000

// bucketAcquirer is the subset of [kv.TokenBucket] a [Limiter] needs,
// declared as an interface so tests can supply a deterministic fake
// instead of a live Redis connection.
type bucketAcquirer interface {
	Acquire(ctx stdctx.Context, source string, rps float64, burst int) (acquired bool, waitMs int64, err error)
}

// Limiter enforces the token-bucket budget plus a fixed per-request
// cooldown for every outbound scraper call.
//
// The token bucket itself is KV-backed ([kv.TokenBucket]) so the budget
// is shared fleet-wide; this type only adds the source-specific config
// lookup and the acquire/cooldown/retry loop on top.
type Limiter struct {
	bucket  bucketAcquirer
	configs map[string]Config
}

// NewLimiter resolves a [Config] for every name in sources (via [Load],
// using os.LookupEnv) and constructs a [Limiter] ready to gate them.
func NewLimiter(bucket *kv.TokenBucket, sources []string) (*Limiter, error) {
	configs := make(map[string]Config, len(sources))
	for _, s := range sources {
		cfg, err := Load(s, os.LookupEnv)
		if err != nil {
			return nil, err
		}
		configs[s] = cfg
	}
	return &Limiter{bucket: bucket, configs: configs}, nil
}

// newLimiterWithBucket builds a [Limiter] over an arbitrary
// [bucketAcquirer] and pre-resolved configs; used by tests.
func newLimiterWithBucket(bucket bucketAcquirer, configs map[string]Config) *Limiter {
	return &Limiter{bucket: bucket, configs: configs}
}

// Acquire blocks until source's budget admits one request, up to
// maxWaitMs (0 selects [defaultMaxWaitMs]). On success it also sleeps the
// source's configured cooldown before returning, so the caller's next
// action is already spaced out. Returns [apperr.RateLimited] if the
// deadline elapses first; the caller must treat this as back-pressure,
// not a hard failure.
func (l *Limiter) Acquire(ctx stdctx.Context, source string, maxWaitMs int64) error {
	cfg, ok := l.configs[source]
	if !ok {
		return fmt.Errorf("ratelimit: unknown source %q", source)
	}
	if maxWaitMs <= 0 {
		maxWaitMs = defaultMaxWaitMs
	}

	deadline := time.Now().Add(time.Duration(maxWaitMs) * time.Millisecond)

	for {
		acquired, waitMs, err := l.bucket.Acquire(ctx, source, cfg.RPS, cfg.Burst)
		if err != nil {
			return fmt.Errorf("ratelimit: acquire %s: %w", source, err)
		}
		if acquired {
			if cfg.CooldownMs > 0 {
				if err := sleepCtx(ctx, time.Duration(cfg.CooldownMs)*time.Millisecond); err != nil {
					return err
				}
			}
			return nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return apperr.RateLimited(int(maxWaitMs / 1000))
		}

		wait := time.Duration(waitMs) * time.Millisecond
		if wait > remaining {
			wait = remaining
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx stdctx.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
