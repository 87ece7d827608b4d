// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package search

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/taibuivan/yomira/internal/platform/kv"
	"github.com/taibuivan/yomira/internal/platform/metrics"
	"github.com/taibuivan/yomira/internal/queue"
	"github.com/taibuivan/yomira/internal/worker"
)

const (
	// maxDeferredRetries drops an entry after its fifth retry cycle.
	maxDeferredRetries = 5

	// deferredRetryBatch bounds how many entries one scheduler cycle pulls.
	deferredRetryBatch = 10

	// deferredTTL expires the whole deferred set when nothing touches it,
	// bounding how long an abandoned entry can linger.
	deferredTTL = 7 * 24 * time.Hour
)

// deferredStore is the hash-ops subset of [kv.Client] the set uses.
type deferredStore interface {
	HSetFieldResult(ctx context.Context, key, field, value string) error
	HGetResult(ctx context.Context, key, field string) (string, bool, error)
	HRandFieldResult(ctx context.Context, key string, count int) ([]string, error)
	HDelResult(ctx context.Context, key string, fields ...string) error
	ExpireResult(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// DeferredSet parks searches that were not dispatched (heat cold, fleet
// offline, queue unhealthy, concurrency cap) for off-peak retry by the
// scheduler. Entries are keyed by query hash so a query deferred twice
// holds one slot.
type DeferredSet struct {
	store  deferredStore
	heat   heatTracker
	fleet  fleetMonitor
	queue  dispatchQueue
	keys   kv.Keys
	logger *slog.Logger
}

// NewDeferredSet constructs a [DeferredSet].
func NewDeferredSet(store deferredStore, heat heatTracker, fleet fleetMonitor, q dispatchQueue, keys kv.Keys, logger *slog.Logger) *DeferredSet {
	return &DeferredSet{store: store, heat: heat, fleet: fleet, queue: q, keys: keys, logger: logger}
}

// Park stores entry, preserving the retry count of an existing slot for
// the same query so repeated deferrals can't reset the drop clock.
func (s *DeferredSet) Park(ctx context.Context, entry deferredEntry) error {
	key := s.keys.SearchDeferred()

	if raw, ok, err := s.store.HGetResult(ctx, key, entry.QueryHash); err == nil && ok {
		var prior deferredEntry
		if json.Unmarshal([]byte(raw), &prior) == nil {
			entry.RetryCount = prior.RetryCount
		}
	}

	if err := s.store.HSetFieldResult(ctx, key, entry.QueryHash, entry.marshal()); err != nil {
		return err
	}
	_, err := s.store.ExpireResult(ctx, key, deferredTTL)
	return err
}

// RetryDeferred pulls up to ten random deferred entries and retries
// each: entries past the retry cap are dropped; low_heat entries are
// re-checked against current heat and re-parked (count incremented) if
// still cold; everything else re-enqueues unconditionally, since heat
// was already validated when the query was first dispatched. The whole
// pass requires a healthy system and is a no-op otherwise.
func (s *DeferredSet) RetryDeferred(ctx context.Context) error {
	online, err := s.fleet.AnyOnline(ctx)
	if err != nil || !online {
		return err
	}
	healthy, err := s.queue.Healthy(ctx, queueHealthThreshold)
	if err != nil || !healthy {
		return err
	}

	key := s.keys.SearchDeferred()
	hashes, err := s.store.HRandFieldResult(ctx, key, deferredRetryBatch)
	if err != nil {
		return err
	}

	for _, queryHash := range hashes {
		raw, ok, err := s.store.HGetResult(ctx, key, queryHash)
		if err != nil || !ok {
			continue
		}
		var entry deferredEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			// Unparseable entries can never be retried; clear the slot.
			s.drop(ctx, key, queryHash, "corrupt")
			continue
		}

		entry.RetryCount++
		if entry.RetryCount >= maxDeferredRetries {
			s.drop(ctx, key, queryHash, "retries_exhausted")
			continue
		}

		if entry.SkipReason == skipLowHeat {
			hot, err := s.heat.IsHot(ctx, queryHash)
			if err != nil {
				s.logger.Warn("deferred_heat_check_failed",
					slog.String("query_hash", queryHash), slog.Any("error", err))
				continue
			}
			if !hot {
				if err := s.store.HSetFieldResult(ctx, key, queryHash, entry.marshal()); err != nil {
					s.logger.Warn("deferred_repark_failed",
						slog.String("query_hash", queryHash), slog.Any("error", err))
				}
				continue
			}
		}

		if _, err := s.queue.Add(ctx, worker.KindCheckSource, worker.CheckSourcePayload{
			Trigger:    worker.TriggerSearch,
			SourceName: externalSource,
			Query:      entry.Query,
		}, queue.Options{
			JobID:    "search_" + queryHash,
			Priority: queue.PriorityLow,
		}); err != nil {
			s.logger.Error("deferred_enqueue_failed",
				slog.String("query_hash", queryHash), slog.Any("error", err))
			continue
		}

		if err := s.store.HDelResult(ctx, key, queryHash); err != nil {
			s.logger.Warn("deferred_clear_failed",
				slog.String("query_hash", queryHash), slog.Any("error", err))
		}
		s.logger.Info("deferred_search_requeued",
			slog.String("query_hash", queryHash),
			slog.Int("retry", entry.RetryCount))
	}
	return nil
}

func (s *DeferredSet) drop(ctx context.Context, key, queryHash, why string) {
	if err := s.store.HDelResult(ctx, key, queryHash); err != nil {
		s.logger.Warn("deferred_drop_failed",
			slog.String("query_hash", queryHash), slog.Any("error", err))
		return
	}
	metrics.SearchDispatchTotal.WithLabelValues("dropped").Inc()
	s.logger.Info("deferred_search_dropped",
		slog.String("query_hash", queryHash),
		slog.String("reason", why))
}
