// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/taibuivan/yomira/internal/core/series"
	"github.com/taibuivan/yomira/internal/platform/kv"
	"github.com/taibuivan/yomira/internal/platform/metrics"
	"github.com/taibuivan/yomira/internal/queue"
	"github.com/taibuivan/yomira/internal/worker"
	"github.com/taibuivan/yomira/pkg/uuidv7"
)

const (
	// localResultTarget: a query with at least this many local hits is
	// answered without external enrichment.
	localResultTarget = 5

	// localSearchLimit caps the local catalogue query.
	localSearchLimit = 20

	// cacheTTLRich / cacheTTLSparse: rich result sets cache longer since
	// they're unlikely to improve from a rescrape soon.
	cacheTTLRich   = time.Hour
	cacheTTLSparse = 5 * time.Minute

	// pendingTTL bounds how long a pending claim blocks coalesced
	// followers; coalesceWait is how long a follower polls for the
	// leader's cached result before answering from its own local query.
	pendingTTL       = 10 * time.Second
	coalesceWait     = 3 * time.Second
	coalesceInterval = 100 * time.Millisecond

	// premiumDailyQuota: bypass-eligible searches per premium user per day.
	premiumDailyQuota = 50

	// premiumMaxConcurrent: active external jobs per premium user.
	premiumMaxConcurrent = 2

	// concurrencySlotTTL bounds a leaked concurrency slot when the
	// releasing worker dies mid-job.
	concurrencySlotTTL = 2 * time.Minute

	// cooldownTTL suppresses repeat dispatch of the same query from the
	// same IP.
	cooldownTTL = 30 * time.Second

	// queueHealthThreshold: a discovery queue deeper than this is
	// unhealthy and new external work defers instead of piling on.
	queueHealthThreshold = 5_000

	// externalSource is the provider search-triggered check-source jobs
	// probe first; it has the richest catalogue of the allow-listed hosts.
	externalSource = "mangadex"
)

// Deferral skip reasons. low_heat deferrals re-check heat on retry;
// the system-health reasons re-enqueue unconditionally since heat was
// already validated at original dispatch.
const (
	skipLowHeat        = "low_heat"
	skipWorkersOffline = "workers_offline"
	skipQueueUnhealthy = "queue_unhealthy"
	skipConcurrency    = "concurrency_cap"
)

// catalog is the local-store subset the dispatcher queries.
type catalog interface {
	SearchByTitle(ctx context.Context, query string, limit int) ([]*series.Series, error)
}

// gate is the subset of [kv.Gate] the dispatcher claims slots on.
type gate interface {
	Claim(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	IntVal(ctx context.Context, key string) (int64, error)
	Release(ctx context.Context, key string) error
}

// heatTracker is the subset of [kv.Heat] the dispatcher records into.
type heatTracker interface {
	Record(ctx context.Context, queryHash, userID string) (count, uniqueUsers int64, err error)
	IsHot(ctx context.Context, queryHash string) (bool, error)
}

// fleetMonitor reports whether any worker is alive ([kv.Heartbeat]).
type fleetMonitor interface {
	AnyOnline(ctx context.Context) (bool, error)
}

// dispatchQueue is the enqueue/health surface of the discovery queue.
type dispatchQueue interface {
	Add(ctx context.Context, kind string, payload any, opts queue.Options) (string, error)
	Healthy(ctx context.Context, threshold int64) (bool, error)
}

// Dispatcher resolves user search queries against the local catalogue
// and decides whether each one earns an external catalog-enrichment job.
type Dispatcher struct {
	catalog  catalog
	gate     gate
	heat     heatTracker
	fleet    fleetMonitor
	queue    dispatchQueue
	deferred *DeferredSet
	keys     kv.Keys
	logger   *slog.Logger

	// sleep is swappable so coalescing tests don't wait real time.
	sleep func(ctx context.Context, d time.Duration)
}

// NewDispatcher constructs a [Dispatcher].
func NewDispatcher(cat catalog, g gate, heat heatTracker, fleet fleetMonitor, q dispatchQueue, deferred *DeferredSet, keys kv.Keys, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		catalog:  cat,
		gate:     g,
		heat:     heat,
		fleet:    fleet,
		queue:    q,
		deferred: deferred,
		keys:     keys,
		logger:   logger,
		sleep:    sleepCtx,
	}
}

// Dispatch runs one query through the full gate chain: cache, pending
// coalescing, local catalogue, then (only for thin results) intent,
// heat, system health, premium quota/concurrency, and the per-IP
// cooldown, ending in either an enqueued check-source job or a deferral.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Result, error) {
	fingerprint := Fingerprint(req.Query, req.Filters)
	cacheKey := d.keys.SearchCache(fingerprint)

	if cached, ok, err := d.gate.Get(ctx, cacheKey); err == nil && ok {
		var res Result
		if json.Unmarshal([]byte(cached), &res) == nil {
			metrics.SearchDispatchTotal.WithLabelValues("cache_hit").Inc()
			res.Status = StatusCached
			return res, nil
		}
	} else if err != nil {
		d.logger.Warn("search_cache_read_failed", slog.Any("error", err))
	}

	requestID := uuidv7.New()
	pendingKey := d.keys.SearchPending(fingerprint)
	claimed, err := d.gate.Claim(ctx, pendingKey, requestID, pendingTTL)
	if err != nil {
		d.logger.Warn("search_pending_claim_failed", slog.Any("error", err))
		claimed = true // degrade to doing the work ourselves
	}
	if !claimed {
		if res, ok := d.awaitLeader(ctx, cacheKey); ok {
			metrics.SearchDispatchTotal.WithLabelValues("coalesced").Inc()
			return res, nil
		}
		// Leader never published; fall through and answer locally without
		// re-claiming the slot.
	} else {
		defer func() {
			if err := d.gate.Release(context.WithoutCancel(ctx), pendingKey); err != nil {
				d.logger.Warn("search_pending_release_failed", slog.Any("error", err))
			}
		}()
	}

	hits, err := d.queryLocal(ctx, req.Query)
	if err != nil {
		return Result{}, err
	}

	res := Result{Status: StatusLocalOnly, Hits: hits}
	if claimed {
		d.cacheResult(ctx, cacheKey, res)
	}

	if req.Query == "" || req.Cursor != "" || len(hits) >= localResultTarget {
		metrics.SearchDispatchTotal.WithLabelValues("local_only").Inc()
		return res, nil
	}

	return d.dispatchExternal(ctx, req, res)
}

// awaitLeader polls the cache for the in-flight leader's result.
func (d *Dispatcher) awaitLeader(ctx context.Context, cacheKey string) (Result, bool) {
	deadline := time.Now().Add(coalesceWait)
	for time.Now().Before(deadline) {
		d.sleep(ctx, coalesceInterval)
		if ctx.Err() != nil {
			return Result{}, false
		}
		cached, ok, err := d.gate.Get(ctx, cacheKey)
		if err != nil || !ok {
			continue
		}
		var res Result
		if json.Unmarshal([]byte(cached), &res) == nil {
			res.Status = StatusCached
			return res, true
		}
	}
	return Result{}, false
}

func (d *Dispatcher) queryLocal(ctx context.Context, query string) ([]SeriesHit, error) {
	if query == "" {
		return nil, nil
	}
	matches, err := d.catalog.SearchByTitle(ctx, query, localSearchLimit)
	if err != nil {
		return nil, fmt.Errorf("search: local query: %w", err)
	}
	hits := make([]SeriesHit, 0, len(matches))
	for _, s := range matches {
		hits = append(hits, SeriesHit{
			ID:            s.ID,
			Title:         s.Title,
			ContentRating: string(s.ContentRating),
			LatestChapter: s.LatestChapter,
			TotalFollows:  s.TotalFollows,
			CoverURL:      s.BestCoverURL,
		})
	}
	return hits, nil
}

func (d *Dispatcher) cacheResult(ctx context.Context, cacheKey string, res Result) {
	// Empty result sets are never cached: a miss must stay eligible for
	// heat accumulation and external enrichment on every request.
	if len(res.Hits) == 0 {
		return
	}
	ttl := cacheTTLSparse
	if len(res.Hits) >= localResultTarget {
		ttl = cacheTTLRich
	}
	body, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := d.gate.Put(ctx, cacheKey, string(body), ttl); err != nil {
		d.logger.Warn("search_cache_write_failed", slog.Any("error", err))
	}
}

// dispatchExternal runs the gates that stand between a thin local
// result and an external scrape.
func (d *Dispatcher) dispatchExternal(ctx context.Context, req Request, local Result) (Result, error) {
	intent := DetectIntent(req.Query)
	if intent == IntentNoise && d.hasSubstringMatch(req.Query, local.Hits) {
		metrics.SearchDispatchTotal.WithLabelValues("local_only").Inc()
		return local, nil
	}

	queryHash := QueryHash(req.Query)

	hot, err := d.isHotOrBypassed(ctx, req, intent, queryHash)
	if err != nil {
		d.logger.Warn("search_heat_check_failed", slog.Any("error", err))
		hot = false
	}
	if !hot {
		return d.parkDeferred(ctx, req, queryHash, local, skipLowHeat)
	}

	if reason, healthy := d.systemHealthy(ctx); !healthy {
		return d.parkDeferred(ctx, req, queryHash, local, reason)
	}

	if req.IsPremium {
		over, err := d.overConcurrencyCap(ctx, req.UserID)
		if err != nil {
			d.logger.Warn("search_concurrency_check_failed", slog.Any("error", err))
		} else if over {
			return d.parkDeferred(ctx, req, queryHash, local, skipConcurrency)
		}
	}

	if req.IP != "" {
		cooldownKey := d.keys.SearchCooldown(req.IP, queryHash)
		fresh, err := d.gate.Claim(ctx, cooldownKey, "1", cooldownTTL)
		if err != nil {
			d.logger.Warn("search_cooldown_check_failed", slog.Any("error", err))
		} else if !fresh {
			metrics.SearchDispatchTotal.WithLabelValues("local_only").Inc()
			return local, nil
		}
	}

	jobID, err := d.enqueue(ctx, req, intent, queryHash)
	if err != nil {
		return Result{}, err
	}

	metrics.SearchDispatchTotal.WithLabelValues("external_enqueued").Inc()
	local.Status = StatusExternalEnqueued
	local.JobID = jobID
	return local, nil
}

// isHotOrBypassed applies heat gating with the two bypasses: forced
// intents, and premium users within their daily quota.
func (d *Dispatcher) isHotOrBypassed(ctx context.Context, req Request, intent Intent, queryHash string) (bool, error) {
	if intent.Forced() {
		return true, nil
	}

	if req.IsPremium && req.UserID != "" {
		day := time.Now().UTC().Format("20060102")
		quotaKey := d.keys.PremiumQuota(req.UserID, day)
		used, err := d.gate.IntVal(ctx, quotaKey)
		if err != nil {
			return false, err
		}
		if used < premiumDailyQuota {
			if _, err := d.gate.Incr(ctx, quotaKey, 24*time.Hour); err != nil {
				return false, err
			}
			return true, nil
		}
		// Quota exhausted: fall back to standard heat gating.
	}

	count, uniqueUsers, err := d.heat.Record(ctx, queryHash, req.UserID)
	if err != nil {
		return false, err
	}
	return count >= 2 || uniqueUsers >= 2, nil
}

// systemHealthy requires a live worker fleet and a responsive,
// shallow discovery queue.
func (d *Dispatcher) systemHealthy(ctx context.Context) (reason string, healthy bool) {
	online, err := d.fleet.AnyOnline(ctx)
	if err != nil || !online {
		return skipWorkersOffline, false
	}
	ok, err := d.queue.Healthy(ctx, queueHealthThreshold)
	if err != nil || !ok {
		return skipQueueUnhealthy, false
	}
	return "", true
}

func (d *Dispatcher) overConcurrencyCap(ctx context.Context, userID string) (bool, error) {
	key := d.keys.PremiumConcurrency(userID)
	active, err := d.gate.IntVal(ctx, key)
	if err != nil {
		return false, err
	}
	if active >= premiumMaxConcurrent {
		return true, nil
	}
	_, err = d.gate.Incr(ctx, key, concurrencySlotTTL)
	return false, err
}

func (d *Dispatcher) enqueue(ctx context.Context, req Request, intent Intent, queryHash string) (string, error) {
	priority := queue.PriorityStandard
	if req.IsPremium {
		priority = queue.PriorityCritical
	} else if intent == IntentKeyword {
		priority = queue.PriorityLow
	}

	jobID, err := d.queue.Add(ctx, worker.KindCheckSource, worker.CheckSourcePayload{
		Trigger:    worker.TriggerSearch,
		SourceName: externalSource,
		Query:      req.Query,
	}, queue.Options{
		JobID:    "search_" + queryHash,
		Priority: priority,
	})
	if err != nil {
		return "", fmt.Errorf("search: enqueue external lookup: %w", err)
	}
	return jobID, nil
}

// parkDeferred parks the query for the scheduler's off-peak retry pass.
func (d *Dispatcher) parkDeferred(ctx context.Context, req Request, queryHash string, local Result, reason string) (Result, error) {
	entry := deferredEntry{
		Query:      req.Query,
		QueryHash:  queryHash,
		SkipReason: reason,
		IsPremium:  req.IsPremium,
	}
	if err := d.deferred.Park(ctx, entry); err != nil {
		d.logger.Error("search_defer_failed",
			slog.String("query_hash", queryHash), slog.Any("error", err))
	}
	metrics.SearchDispatchTotal.WithLabelValues("deferred").Inc()
	d.logger.Info("search_deferred",
		slog.String("query_hash", queryHash),
		slog.String("reason", reason))

	local.Status = StatusDeferred
	return local, nil
}

// hasSubstringMatch reports whether any local hit's title contains the
// query as a substring, the signal that a noisy query already found
// what it was after.
func (d *Dispatcher) hasSubstringMatch(query string, hits []SeriesHit) bool {
	norm := Normalize(query)
	if norm == "" {
		return false
	}
	for _, h := range hits {
		if strings.Contains(Normalize(h.Title), norm) {
			return true
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
