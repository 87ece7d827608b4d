// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package scraper

import (
	stdctx "context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/yomira/internal/platform/apperr"
	"github.com/taibuivan/yomira/internal/platform/kv"
)

// breakerStore is the subset of *redis.Client a [CircuitBreaker] needs,
// declared as an interface so tests can supply a fake instead of a live
// connection (see internal/platform/kv.RedisClient for the same pattern).
type breakerStore interface {
	Get(ctx stdctx.Context, key string) (string, error)
	Set(ctx stdctx.Context, key, value string) error
}

// redisBreakerStore adapts *redis.Client to [breakerStore] for production use.
type redisBreakerStore struct{ client *redis.Client }

func (s redisBreakerStore) Get(ctx stdctx.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", errNotFound
	}
	return val, err
}

func (s redisBreakerStore) Set(ctx stdctx.Context, key, value string) error {
	return s.client.Set(ctx, key, value, 0).Err()
}

var errNotFound = errors.New("scraper: circuit state not found")

// State is one of the three circuit breaker states.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// consecutiveFailureThreshold is the number of tripping failures in a
// row that opens the breaker.
const consecutiveFailureThreshold = 5

// openCooldown is how long the breaker stays open before it moves to
// half-open.
const openCooldown = 60 * time.Second

// breakerRecord is the JSON payload stored as a plain string value under
// each source's own key (no TTL); the open cooldown is judged against the
// embedded OpenedAtUnixMs timestamp.
type breakerRecord struct {
	State               State `json:"state"`
	ConsecutiveFailures int   `json:"consecutive_failures"`
	OpenedAtUnixMs      int64 `json:"opened_at_unix_ms"`
}

// CircuitBreaker is a per-source breaker shared fleet-wide through Redis,
// so that any worker tripping a source stops every other worker from
// hammering it too.
type CircuitBreaker struct {
	store breakerStore
	keys  kv.Keys
}

// NewCircuitBreaker constructs a [CircuitBreaker] backed by a live Redis
// connection.
func NewCircuitBreaker(client *redis.Client, keys kv.Keys) *CircuitBreaker {
	return &CircuitBreaker{store: redisBreakerStore{client: client}, keys: keys}
}

// newCircuitBreakerWithStore builds a [CircuitBreaker] over an arbitrary
// [breakerStore]; used by tests to supply an in-memory fake.
func newCircuitBreakerWithStore(store breakerStore, keys kv.Keys) *CircuitBreaker {
	return &CircuitBreaker{store: store, keys: keys}
}

// Allow reports whether a call to source may proceed. It returns
// [apperr.CircuitOpen] when the breaker is open and the cooldown has not
// yet elapsed; once the cooldown elapses it transitions the stored state
// to half-open and lets the call through. While half-open every call is
// let through, with no limit on how many, until a success closes the
// circuit or a tripping failure reopens it.
func (b *CircuitBreaker) Allow(ctx stdctx.Context, source string) error {
	rec, err := b.read(ctx, source)
	if err != nil {
		return err
	}

	switch rec.State {
	case StateClosed, StateHalfOpen:
		return nil
	case StateOpen:
		if time.Since(time.UnixMilli(rec.OpenedAtUnixMs)) < openCooldown {
			return apperr.CircuitOpen(source)
		}
		rec.State = StateHalfOpen
		return b.write(ctx, source, rec)
	default:
		return nil
	}
}

// RecordSuccess resets the breaker to closed. A success observed while
// half-open closes the circuit.
func (b *CircuitBreaker) RecordSuccess(ctx stdctx.Context, source string) error {
	return b.write(ctx, source, breakerRecord{State: StateClosed})
}

// RecordFailure registers a tripping failure. Non-tripping kinds (rate
// limit, selector-not-found, invalid input) must not call this; they
// don't count toward the threshold.
func (b *CircuitBreaker) RecordFailure(ctx stdctx.Context, source string) error {
	rec, err := b.read(ctx, source)
	if err != nil {
		return err
	}

	if rec.State == StateHalfOpen {
		rec.State = StateOpen
		rec.ConsecutiveFailures = consecutiveFailureThreshold
		rec.OpenedAtUnixMs = time.Now().UnixMilli()
		return b.write(ctx, source, rec)
	}

	rec.ConsecutiveFailures++
	if rec.ConsecutiveFailures >= consecutiveFailureThreshold {
		rec.State = StateOpen
		rec.OpenedAtUnixMs = time.Now().UnixMilli()
	}
	return b.write(ctx, source, rec)
}

func (b *CircuitBreaker) read(ctx stdctx.Context, source string) (breakerRecord, error) {
	raw, err := b.store.Get(ctx, b.keys.CircuitBreaker(source))
	if errors.Is(err, errNotFound) {
		return breakerRecord{State: StateClosed}, nil
	}
	if err != nil {
		return breakerRecord{}, fmt.Errorf("scraper: read circuit state: %w", err)
	}
	var rec breakerRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return breakerRecord{State: StateClosed}, nil
	}
	return rec, nil
}

func (b *CircuitBreaker) write(ctx stdctx.Context, source string, rec breakerRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("scraper: marshal circuit state: %w", err)
	}
	if err := b.store.Set(ctx, b.keys.CircuitBreaker(source), string(payload)); err != nil {
		return fmt.Errorf("scraper: write circuit state: %w", err)
	}
	return nil
}
