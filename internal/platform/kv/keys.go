// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package kv provides the distributed coordination primitives the ingestion
backbone is built on: named locks, a token bucket, worker heartbeats, and
dedup/cooldown sets.

All state lives in Redis (never in process memory) so that every
primitive is shared correctly across a horizontally scaled worker fleet
(see the "Shared-resource policy" in the ingestion design: the KV store is
authoritative for counters, locks, heat, pending, deferred, cooldowns, and
heartbeats).

Keys are namespaced "app:<env>:<domain>:..." via [Keys].
*/
package kv

import "fmt"

// Keys builds namespaced Redis keys for a single deployment environment.
//
// # Why a struct instead of package functions?
//
// Every key in this service is environment-scoped (dev/staging/prod share
// infrastructure in some deployments). Threading the environment through a
// small builder avoids repeating "app:"+env+":" at every call site.
type Keys struct {
	Env string
}

// NewKeys constructs a [Keys] builder for the given environment name.
func NewKeys(env string) Keys {
	return Keys{Env: env}
}

func (k Keys) ns(domain, rest string) string {
	return fmt.Sprintf("app:%s:%s:%s", k.Env, domain, rest)
}

// Lock returns the key for a named distributed lock.
func (k Keys) Lock(name string) string { return k.ns("lock", name) }

// RateLimitTokens returns the token-count key for a source's token bucket.
func (k Keys) RateLimitTokens(source string) string {
	return k.ns("ratelimit", source+":tokens")
}

// RateLimitLastRefill returns the last-refill-timestamp key for a source's token bucket.
func (k Keys) RateLimitLastRefill(source string) string {
	return k.ns("ratelimit", source+":last_refill")
}

// WorkersHeartbeat returns the shared heartbeat hash key.
func (k Keys) WorkersHeartbeat() string { return k.ns("workers", "heartbeat") }

// CircuitBreaker returns the hash key for a source's circuit breaker state.
func (k Keys) CircuitBreaker(source string) string { return k.ns("circuit", source) }

// SearchCooldown returns the per-IP per-query cooldown key.
func (k Keys) SearchCooldown(ip, queryHash string) string {
	return k.ns("cooldown", "search:"+ip+":"+queryHash)
}

// SearchPending returns the in-flight coalescing key for a search fingerprint.
func (k Keys) SearchPending(fingerprint string) string {
	return k.ns("search", "pending:"+fingerprint)
}

// SearchCache returns the cached-result key for a search fingerprint.
func (k Keys) SearchCache(fingerprint string) string {
	return k.ns("search", "cache:"+fingerprint)
}

// SearchHeat returns the heat-tracking key for a normalized query hash.
func (k Keys) SearchHeat(queryHash string) string {
	return k.ns("search", "heat:"+queryHash)
}

// SearchDeferred returns the shared deferred-search set key.
func (k Keys) SearchDeferred() string { return k.ns("search", "deferred") }

// PremiumQuota returns the daily premium-search quota counter for a user.
func (k Keys) PremiumQuota(userID, yyyymmdd string) string {
	return k.ns("premium", "quota:"+userID+":"+yyyymmdd)
}

// PremiumConcurrency returns the active-job counter key for a premium user.
func (k Keys) PremiumConcurrency(userID string) string {
	return k.ns("premium", "concurrency:"+userID)
}

// QueueDLQ returns the dead-letter index set key for a named queue.
func (k Keys) QueueDLQ(queue string) string { return k.ns("queue", queue+":dead") }

// QueueDeadJob returns the per-job dead-letter record key, written with a
// 24h TTL so the DLQ self-prunes without a reaper process.
func (k Keys) QueueDeadJob(queue, jobID string) string {
	return k.ns("queue", queue+":dead:"+jobID)
}

// QueueWaiting returns the sorted-set key holding jobs ready to run, scored
// by priority then enqueue time.
func (k Keys) QueueWaiting(queue string) string { return k.ns("queue", queue+":waiting") }

// QueueScheduled returns the sorted-set key holding delayed jobs, scored by
// their ready-at timestamp.
func (k Keys) QueueScheduled(queue string) string { return k.ns("queue", queue+":scheduled") }

// QueueActive returns the set key holding jobIDs currently leased to a worker.
func (k Keys) QueueActive(queue string) string { return k.ns("queue", queue+":active") }

// QueueMembers returns the set key used to dedup enqueues: a jobID present
// here is already waiting, scheduled, or active, so re-adding it is a no-op.
func (k Keys) QueueMembers(queue string) string { return k.ns("queue", queue+":members") }

// QueueJob returns the hash key holding one job's kind/payload/priority/attempt.
func (k Keys) QueueJob(queue, jobID string) string { return k.ns("queue", queue+":job:"+jobID) }
