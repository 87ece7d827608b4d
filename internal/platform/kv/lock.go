// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package kv

import (
	stdctx "context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLockNotAcquired is returned by [Locker.WithLock] when another holder
// currently owns the named lock. Callers must fail fast, never block -
// the scheduler relies on this to guarantee single-flight execution
// across a fleet of identical processes.
var ErrLockNotAcquired = errors.New("kv: lock not acquired")

// releaseScript compare-and-deletes a lock key only if the stored value
// still matches the token this holder set. This prevents a holder whose
// lock already expired (and was re-acquired by someone else) from
// releasing the new holder's lock out from under it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// Locker provides named distributed locks backed by Redis.
type Locker struct {
	client *redis.Client
	keys   Keys
}

// NewLocker constructs a [Locker].
func NewLocker(client *redis.Client, keys Keys) *Locker {
	return &Locker{client: client, keys: keys}
}

// WithLock acquires the named lock for ttl and invokes fn while holding
// it, releasing it (only if still owned) when fn returns.
//
// # Failure mode
//
// If the lock is already held, WithLock returns [ErrLockNotAcquired]
// immediately; it never waits or retries. This is what makes
// "scheduler:master" single-flight safe: a second scheduler instance that
// races a first loses the race and returns instead of blocking.
func (l *Locker) WithLock(ctx stdctx.Context, name string, ttl time.Duration, fn func(stdctx.Context) error) error {
	token, err := randomToken()
	if err != nil {
		return fmt.Errorf("kv: generate lock token: %w", err)
	}

	key := l.keys.Lock(name)
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return fmt.Errorf("kv: acquire lock %q: %w", name, err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		// Best-effort release; a crashed holder's lock still expires via ttl.
		releaseScript.Run(stdctx.WithoutCancel(ctx), l.client, []string{key}, token)
	}()

	return fn(ctx)
}

func randomToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
