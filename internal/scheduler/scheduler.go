// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package scheduler runs the master maintenance loop of the ingestion
backbone: a 5-minute tick that promotes/demotes source priorities,
retries deferred searches, watches queue health, and enqueues due
source syncs.

Only one instance across the whole fleet executes a tick at a time:
the entire tick body runs under the "scheduler:master" distributed
lock, and a second instance that races the first simply skips its
cycle instead of blocking.
*/
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/taibuivan/yomira/internal/core/series"
	"github.com/taibuivan/yomira/internal/platform/kv"
	"github.com/taibuivan/yomira/internal/platform/metrics"
	"github.com/taibuivan/yomira/internal/queue"
	"github.com/taibuivan/yomira/internal/worker"
)

// TickInterval is how often the master scheduler attempts a cycle.
const TickInterval = 5 * time.Minute

// masterLockTTL bounds how long a crashed leader blocks the next one.
const masterLockTTL = 60 * time.Second

// Safety-monitor thresholds: the free delivery queue backing up past
// freeQueueCriticalDepth jobs (or its head job sitting longer than
// freeQueueCriticalAge) is CRITICAL; totalWaitingWarning across all
// queues is a WARNING.
const (
	freeQueueCriticalDepth = 10_000
	freeQueueCriticalAge   = 5 * time.Minute
	totalWaitingWarning    = 50_000
)

// locker is the subset of [kv.Locker] the scheduler needs, an interface
// so tests can run ticks without Redis.
type locker interface {
	WithLock(ctx context.Context, name string, ttl time.Duration, fn func(context.Context) error) error
}

// syncQueue is the enqueue surface of the sync-source queue.
type syncQueue interface {
	AddBulk(ctx context.Context, jobs []queue.Job) ([]string, error)
}

// monitoredQueue is the read-only surface the safety monitor samples.
type monitoredQueue interface {
	Name() string
	WaitingCount(ctx context.Context) (int64, error)
	OldestWaitingAge(ctx context.Context) (age time.Duration, ok bool, err error)
}

// deferredRetrier is implemented by the search dispatcher's deferred
// store; the scheduler only triggers it, never inspects its entries.
type deferredRetrier interface {
	RetryDeferred(ctx context.Context) error
}

// Master is the leader-locked periodic scheduler.
//
// CoverRefresh and NotificationDigest are collaborator hooks owned by
// other subsystems; either may be nil, in which case the step is
// skipped.
type Master struct {
	Lock         locker
	Sources      series.Repository
	SyncQueue    syncQueue
	FreeDelivery monitoredQueue
	AllQueues    []monitoredQueue
	Deferred     deferredRetrier
	Logger       *slog.Logger

	CoverRefresh       func(context.Context) error
	NotificationDigest func(context.Context) error

	// now is swappable for tests.
	now func() time.Time
}

// NewMaster constructs a [Master] over the worker fleet's queues.
func NewMaster(lock *kv.Locker, sources series.Repository, queues worker.Queues, deferred deferredRetrier, logger *slog.Logger) *Master {
	all := make([]monitoredQueue, 0, len(queues.All()))
	for _, q := range queues.All() {
		all = append(all, q)
	}
	return &Master{
		Lock:         lock,
		Sources:      sources,
		SyncQueue:    queues.SyncSource,
		FreeDelivery: queues.NotificationDelivery,
		AllQueues:    all,
		Deferred:     deferred,
		Logger:       logger,
		now:          time.Now,
	}
}

// Run blocks, attempting a tick every [TickInterval] until ctx is
// cancelled. A tick lost to another leader or failed outright never
// stops the loop.
func (m *Master) Run(ctx context.Context) {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	m.Logger.Info("scheduler_started", slog.Duration("interval", TickInterval))
	for {
		select {
		case <-ctx.Done():
			m.Logger.Info("scheduler_stopped")
			return
		case <-ticker.C:
			m.TickOnce(ctx)
		}
	}
}

// TickOnce attempts one leader-locked cycle, absorbing lock contention
// and tick failures into metrics/logs.
func (m *Master) TickOnce(ctx context.Context) {
	err := m.Lock.WithLock(ctx, "scheduler:master", masterLockTTL, m.tick)
	switch {
	case errors.Is(err, kv.ErrLockNotAcquired):
		metrics.SchedulerTicksTotal.WithLabelValues("lock_lost").Inc()
		m.Logger.Debug("scheduler_tick_skipped_not_leader")
	case err != nil:
		metrics.SchedulerTicksTotal.WithLabelValues("error").Inc()
		m.Logger.Error("scheduler_tick_failed", slog.Any("error", err))
	default:
		metrics.SchedulerTicksTotal.WithLabelValues("ok").Inc()
	}
}

// tick runs one full maintenance cycle: priority maintenance, the
// cover-refresh hook, deferred-search retry, the digest hook, the
// safety monitor, then the sync enqueue.
func (m *Master) tick(ctx context.Context) error {
	if err := m.maintainPriorities(ctx); err != nil {
		return fmt.Errorf("scheduler: priority maintenance: %w", err)
	}

	if m.CoverRefresh != nil {
		if err := m.CoverRefresh(ctx); err != nil {
			m.Logger.Error("cover_refresh_failed", slog.Any("error", err))
		}
	}

	if m.Deferred != nil {
		if err := m.Deferred.RetryDeferred(ctx); err != nil {
			m.Logger.Error("deferred_search_retry_failed", slog.Any("error", err))
		}
	}

	if m.NotificationDigest != nil {
		if err := m.NotificationDigest(ctx); err != nil {
			m.Logger.Error("notification_digest_failed", slog.Any("error", err))
		}
	}

	m.monitorQueues(ctx)

	if err := m.enqueueDueSyncs(ctx); err != nil {
		return fmt.Errorf("scheduler: sync enqueue: %w", err)
	}
	return nil
}

// maintainPriorities promotes heavily-read sources to HOT and demotes
// stale ones a tier.
func (m *Master) maintainPriorities(ctx context.Context) error {
	promoted, err := m.Sources.PromoteHOT(ctx)
	if err != nil {
		return err
	}
	demoted, err := m.Sources.DemoteStale(ctx)
	if err != nil {
		return err
	}
	if len(promoted) > 0 || len(demoted) > 0 {
		m.Logger.Info("priority_maintenance",
			slog.Int("promoted", len(promoted)),
			slog.Int("demoted", len(demoted)))
	}
	return nil
}

// monitorQueues logs backlog alarms. It never fails the tick: a
// monitoring read error is itself only logged.
func (m *Master) monitorQueues(ctx context.Context) {
	depth, err := m.FreeDelivery.WaitingCount(ctx)
	if err != nil {
		m.Logger.Error("safety_monitor_read_failed", slog.Any("error", err))
		return
	}

	age, hasOldest, err := m.FreeDelivery.OldestWaitingAge(ctx)
	if err != nil {
		m.Logger.Error("safety_monitor_read_failed", slog.Any("error", err))
		return
	}

	if depth > freeQueueCriticalDepth || (hasOldest && age > freeQueueCriticalAge) {
		m.Logger.Error("delivery_queue_critical",
			slog.Int64("waiting", depth),
			slog.Duration("oldest_age", age))
	}

	var total int64
	for _, q := range m.AllQueues {
		n, err := q.WaitingCount(ctx)
		if err != nil {
			continue
		}
		total += n
	}
	if total > totalWaitingWarning {
		m.Logger.Warn("total_backlog_high", slog.Int64("waiting", total))
	}
}

// enqueueDueSyncs finds due sources, advances their next_check_at
// first, then enqueues check-source jobs in bulk. The advance-first
// ordering means a failed enqueue is retried cleanly next tick, and the
// deterministic job ID suppresses the duplicate if a prior enqueue is
// still in flight.
func (m *Master) enqueueDueSyncs(ctx context.Context) error {
	now := m.now()
	due, err := m.Sources.DueForSync(ctx, now, series.MaxSyncEnqueueBatch)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	byPriority := map[series.SyncPriority][]*series.Source{}
	for _, src := range due {
		byPriority[src.SyncPriority] = append(byPriority[src.SyncPriority], src)
	}

	for _, tier := range []series.SyncPriority{series.PriorityHot, series.PriorityWarm, series.PriorityCold} {
		sources := byPriority[tier]
		if len(sources) == 0 {
			continue
		}

		ids := make([]string, len(sources))
		for i, src := range sources {
			ids[i] = src.ID
		}
		if err := m.Sources.AdvanceNextCheck(ctx, ids, now.Add(tier.SyncInterval())); err != nil {
			return fmt.Errorf("advance next_check_at for %s: %w", tier, err)
		}

		jobs := make([]queue.Job, len(sources))
		for i, src := range sources {
			jobs[i] = queue.Job{
				Kind: worker.KindCheckSource,
				Payload: worker.CheckSourcePayload{
					Trigger:    worker.TriggerSync,
					SourceName: src.SourceName,
					SourceID:   src.SourceID,
					SeriesID:   src.SeriesID,
				},
				Options: queue.Options{
					JobID:    "sync-" + src.ID,
					Priority: tierPriority(tier),
				},
			}
		}
		if _, err := m.SyncQueue.AddBulk(ctx, jobs); err != nil {
			return fmt.Errorf("enqueue %s syncs: %w", tier, err)
		}
		metrics.SyncEnqueuedTotal.WithLabelValues(string(tier)).Add(float64(len(sources)))
	}

	m.Logger.Info("sync_enqueued", slog.Int("sources", len(due)))
	return nil
}

func tierPriority(p series.SyncPriority) queue.Priority {
	switch p {
	case series.PriorityHot:
		return queue.PriorityHot
	case series.PriorityWarm:
		return queue.PriorityWarm
	default:
		return queue.PriorityCold
	}
}
