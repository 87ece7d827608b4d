// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira/internal/core/series"
	"github.com/taibuivan/yomira/internal/platform/kv"
	"github.com/taibuivan/yomira/internal/queue"
)

// fakeLocker runs fn inline, or refuses when held is true.
type fakeLocker struct {
	held  bool
	calls int
}

func (f *fakeLocker) WithLock(ctx context.Context, name string, ttl time.Duration, fn func(context.Context) error) error {
	f.calls++
	if f.held {
		return kv.ErrLockNotAcquired
	}
	return fn(ctx)
}

// fakeSourceRepo implements the scheduler-facing slice of
// series.Repository, recording call order so the advance-before-enqueue
// ordering is observable.
type fakeSourceRepo struct {
	series.Repository
	due      []*series.Source
	log      []string // call order: "advance", plus "enqueue" recorded by fakeSyncQueue
	advanced map[string]time.Time
}

func newFakeSourceRepo(due []*series.Source) *fakeSourceRepo {
	return &fakeSourceRepo{due: due, advanced: map[string]time.Time{}}
}

func (f *fakeSourceRepo) PromoteHOT(ctx context.Context) ([]string, error)   { return nil, nil }
func (f *fakeSourceRepo) DemoteStale(ctx context.Context) ([]string, error)  { return nil, nil }
func (f *fakeSourceRepo) DueForSync(ctx context.Context, now time.Time, limit int) ([]*series.Source, error) {
	return f.due, nil
}

func (f *fakeSourceRepo) AdvanceNextCheck(ctx context.Context, sourceIDs []string, nextCheckAt time.Time) error {
	f.log = append(f.log, "advance")
	for _, id := range sourceIDs {
		f.advanced[id] = nextCheckAt
	}
	return nil
}

// fakeSyncQueue records bulk enqueues into the shared call log.
type fakeSyncQueue struct {
	repo *fakeSourceRepo
	jobs []queue.Job
}

func (f *fakeSyncQueue) AddBulk(ctx context.Context, jobs []queue.Job) ([]string, error) {
	f.repo.log = append(f.repo.log, "enqueue")
	f.jobs = append(f.jobs, jobs...)
	ids := make([]string, len(jobs))
	for i, j := range jobs {
		ids[i] = j.Options.JobID
	}
	return ids, nil
}

// fakeMonitoredQueue reports a fixed depth.
type fakeMonitoredQueue struct {
	name  string
	depth int64
}

func (f *fakeMonitoredQueue) Name() string                                      { return f.name }
func (f *fakeMonitoredQueue) WaitingCount(ctx context.Context) (int64, error)   { return f.depth, nil }
func (f *fakeMonitoredQueue) OldestWaitingAge(ctx context.Context) (time.Duration, bool, error) {
	return 0, false, nil
}

func testMaster(lock *fakeLocker, repo *fakeSourceRepo, sync *fakeSyncQueue) *Master {
	free := &fakeMonitoredQueue{name: "notification-delivery"}
	return &Master{
		Lock:         lock,
		Sources:      repo,
		SyncQueue:    sync,
		FreeDelivery: free,
		AllQueues:    []monitoredQueue{free},
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:          func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func dueSource(id string, priority series.SyncPriority) *series.Source {
	return &series.Source{
		ID:           id,
		SeriesID:     "series-" + id,
		SourceName:   "mangadex",
		SourceID:     "md-" + id,
		SyncPriority: priority,
	}
}

func TestTickOnce_LockHeldSkipsCycle(t *testing.T) {
	lock := &fakeLocker{held: true}
	repo := newFakeSourceRepo([]*series.Source{dueSource("a", series.PriorityHot)})
	sync := &fakeSyncQueue{repo: repo}

	testMaster(lock, repo, sync).TickOnce(context.Background())

	require.Equal(t, 1, lock.calls)
	require.Empty(t, repo.log, "a non-leader must not touch sources or queues")
	require.Empty(t, sync.jobs)
}

func TestTick_AdvancesNextCheckBeforeEnqueue(t *testing.T) {
	lock := &fakeLocker{}
	repo := newFakeSourceRepo([]*series.Source{dueSource("a", series.PriorityHot)})
	sync := &fakeSyncQueue{repo: repo}

	testMaster(lock, repo, sync).TickOnce(context.Background())

	require.Equal(t, []string{"advance", "enqueue"}, repo.log)
}

func TestTick_EnqueuesWithDeterministicJobIDsAndTierPriorities(t *testing.T) {
	lock := &fakeLocker{}
	repo := newFakeSourceRepo([]*series.Source{
		dueSource("hot1", series.PriorityHot),
		dueSource("warm1", series.PriorityWarm),
		dueSource("cold1", series.PriorityCold),
	})
	sync := &fakeSyncQueue{repo: repo}

	testMaster(lock, repo, sync).TickOnce(context.Background())

	require.Len(t, sync.jobs, 3)
	byID := map[string]queue.Job{}
	for _, j := range sync.jobs {
		byID[j.Options.JobID] = j
	}
	require.Equal(t, queue.PriorityHot, byID["sync-hot1"].Options.Priority)
	require.Equal(t, queue.PriorityWarm, byID["sync-warm1"].Options.Priority)
	require.Equal(t, queue.PriorityCold, byID["sync-cold1"].Options.Priority)
}

func TestTick_AdvancesByTierInterval(t *testing.T) {
	lock := &fakeLocker{}
	repo := newFakeSourceRepo([]*series.Source{
		dueSource("hot1", series.PriorityHot),
		dueSource("cold1", series.PriorityCold),
	})
	sync := &fakeSyncQueue{repo: repo}
	m := testMaster(lock, repo, sync)

	m.TickOnce(context.Background())

	now := m.now()
	require.Equal(t, now.Add(15*time.Minute), repo.advanced["hot1"])
	require.Equal(t, now.Add(24*time.Hour), repo.advanced["cold1"])
}

func TestTick_NoDueSourcesEnqueuesNothing(t *testing.T) {
	lock := &fakeLocker{}
	repo := newFakeSourceRepo(nil)
	sync := &fakeSyncQueue{repo: repo}

	testMaster(lock, repo, sync).TickOnce(context.Background())

	require.Empty(t, sync.jobs)
}
