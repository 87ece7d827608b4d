// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package search

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira/internal/core/series"
	"github.com/taibuivan/yomira/internal/platform/kv"
	"github.com/taibuivan/yomira/internal/queue"
)

// fakeCatalog returns a fixed local result set.
type fakeCatalog struct {
	hits []*series.Series
}

func (f *fakeCatalog) SearchByTitle(ctx context.Context, query string, limit int) ([]*series.Series, error) {
	return f.hits, nil
}

// fakeGate is an in-memory SET-NX/GET/INCR store; TTLs are ignored
// since no test sleeps past one.
type fakeGate struct {
	values map[string]string
}

func newFakeGate() *fakeGate { return &fakeGate{values: map[string]string{}} }

func (f *fakeGate) Claim(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value
	return true, nil
}

func (f *fakeGate) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	f.values[key] = value
	return nil
}

func (f *fakeGate) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakeGate) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, _ := strconv.ParseInt(f.values[key], 10, 64)
	n++
	f.values[key] = strconv.FormatInt(n, 10)
	return n, nil
}

func (f *fakeGate) IntVal(ctx context.Context, key string) (int64, error) {
	n, _ := strconv.ParseInt(f.values[key], 10, 64)
	return n, nil
}

func (f *fakeGate) Release(ctx context.Context, key string) error {
	delete(f.values, key)
	return nil
}

// fakeHeat counts Record calls per hash and tracks unique users.
type fakeHeat struct {
	counts map[string]int64
	users  map[string]map[string]bool
}

func newFakeHeat() *fakeHeat {
	return &fakeHeat{counts: map[string]int64{}, users: map[string]map[string]bool{}}
}

func (f *fakeHeat) Record(ctx context.Context, queryHash, userID string) (int64, int64, error) {
	f.counts[queryHash]++
	if userID != "" {
		if f.users[queryHash] == nil {
			f.users[queryHash] = map[string]bool{}
		}
		f.users[queryHash][userID] = true
	}
	return f.counts[queryHash], int64(len(f.users[queryHash])), nil
}

func (f *fakeHeat) IsHot(ctx context.Context, queryHash string) (bool, error) {
	return f.counts[queryHash] >= 2 || len(f.users[queryHash]) >= 2, nil
}

// fakeFleet reports a fixed online state.
type fakeFleet struct{ online bool }

func (f *fakeFleet) AnyOnline(ctx context.Context) (bool, error) { return f.online, nil }

// fakeQueue records enqueues and dedups on job ID like the real queue.
type fakeQueue struct {
	healthy bool
	added   []string // job IDs in Add order
	members map[string]bool
}

func newFakeQueue() *fakeQueue { return &fakeQueue{healthy: true, members: map[string]bool{}} }

func (f *fakeQueue) Add(ctx context.Context, kind string, payload any, opts queue.Options) (string, error) {
	if f.members[opts.JobID] {
		return opts.JobID, nil
	}
	f.members[opts.JobID] = true
	f.added = append(f.added, opts.JobID)
	return opts.JobID, nil
}

func (f *fakeQueue) Healthy(ctx context.Context, threshold int64) (bool, error) {
	return f.healthy, nil
}

// fakeDeferredStore is an in-memory hash.
type fakeDeferredStore struct {
	fields map[string]string
}

func newFakeDeferredStore() *fakeDeferredStore {
	return &fakeDeferredStore{fields: map[string]string{}}
}

func (f *fakeDeferredStore) HSetFieldResult(ctx context.Context, key, field, value string) error {
	f.fields[field] = value
	return nil
}

func (f *fakeDeferredStore) HGetResult(ctx context.Context, key, field string) (string, bool, error) {
	v, ok := f.fields[field]
	return v, ok, nil
}

func (f *fakeDeferredStore) HRandFieldResult(ctx context.Context, key string, count int) ([]string, error) {
	var out []string
	for field := range f.fields {
		if len(out) >= count {
			break
		}
		out = append(out, field)
	}
	return out, nil
}

func (f *fakeDeferredStore) HDelResult(ctx context.Context, key string, fields ...string) error {
	for _, field := range fields {
		delete(f.fields, field)
	}
	return nil
}

func (f *fakeDeferredStore) ExpireResult(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return true, nil
}

type dispatcherFixture struct {
	dispatcher *Dispatcher
	catalog    *fakeCatalog
	gate       *fakeGate
	heat       *fakeHeat
	fleet      *fakeFleet
	queue      *fakeQueue
	deferStore *fakeDeferredStore
}

func newDispatcherFixture() *dispatcherFixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	keys := kv.NewKeys("test")
	cat := &fakeCatalog{}
	g := newFakeGate()
	h := newFakeHeat()
	fl := &fakeFleet{online: true}
	q := newFakeQueue()
	ds := newFakeDeferredStore()
	deferred := NewDeferredSet(ds, h, fl, q, keys, logger)
	d := NewDispatcher(cat, g, h, fl, q, deferred, keys, logger)
	d.sleep = func(ctx context.Context, _ time.Duration) {}
	return &dispatcherFixture{dispatcher: d, catalog: cat, gate: g, heat: h, fleet: fl, queue: q, deferStore: ds}
}

func localSeries(n int) []*series.Series {
	out := make([]*series.Series, n)
	for i := range out {
		out[i] = &series.Series{ID: "s" + strconv.Itoa(i), Title: "Series " + strconv.Itoa(i)}
	}
	return out
}

func TestDispatch_RichLocalResultSkipsExternal(t *testing.T) {
	fx := newDispatcherFixture()
	fx.catalog.hits = localSeries(6)

	res, err := fx.dispatcher.Dispatch(context.Background(), Request{Query: "popular title", UserID: "u1"})
	require.NoError(t, err)
	require.Equal(t, StatusLocalOnly, res.Status)
	require.Len(t, res.Hits, 6)
	require.Empty(t, fx.queue.added)
}

func TestDispatch_CacheHitShortCircuits(t *testing.T) {
	fx := newDispatcherFixture()
	fx.catalog.hits = localSeries(6)
	ctx := context.Background()

	first, err := fx.dispatcher.Dispatch(ctx, Request{Query: "popular title"})
	require.NoError(t, err)
	require.Equal(t, StatusLocalOnly, first.Status)

	second, err := fx.dispatcher.Dispatch(ctx, Request{Query: "popular title"})
	require.NoError(t, err)
	require.Equal(t, StatusCached, second.Status)
	require.Len(t, second.Hits, 6)
}

func TestDispatch_ColdSingleUserDefers(t *testing.T) {
	fx := newDispatcherFixture()

	res, err := fx.dispatcher.Dispatch(context.Background(), Request{Query: "obscurename", UserID: "u1"})
	require.NoError(t, err)
	require.Equal(t, StatusDeferred, res.Status)
	require.Empty(t, fx.queue.added)

	raw, ok := fx.deferStore.fields[QueryHash("obscurename")]
	require.True(t, ok, "deferral must be parked for the retry scheduler")
	var entry deferredEntry
	require.NoError(t, json.Unmarshal([]byte(raw), &entry))
	require.Equal(t, "low_heat", entry.SkipReason)
}

func TestDispatch_SecondDistinctUserEnqueuesExternally(t *testing.T) {
	fx := newDispatcherFixture()
	ctx := context.Background()

	first, err := fx.dispatcher.Dispatch(ctx, Request{Query: "obscurename", UserID: "u1", IP: "1.1.1.1"})
	require.NoError(t, err)
	require.Equal(t, StatusDeferred, first.Status)

	second, err := fx.dispatcher.Dispatch(ctx, Request{Query: "obscurename", UserID: "u2", IP: "2.2.2.2"})
	require.NoError(t, err)
	require.Equal(t, StatusExternalEnqueued, second.Status)
	require.Equal(t, []string{"search_" + QueryHash("obscurename")}, fx.queue.added)

	// A third user's enqueue collapses onto the waiting job.
	third, err := fx.dispatcher.Dispatch(ctx, Request{Query: "obscurename", UserID: "u3", IP: "3.3.3.3"})
	require.NoError(t, err)
	require.Equal(t, StatusExternalEnqueued, third.Status)
	require.Len(t, fx.queue.added, 1, "duplicate enqueues must be suppressed by job ID")
}

func TestDispatch_ForcedIntentBypassesHeat(t *testing.T) {
	fx := newDispatcherFixture()

	res, err := fx.dispatcher.Dispatch(context.Background(), Request{Query: "follow obscurename", UserID: "u1"})
	require.NoError(t, err)
	require.Equal(t, StatusExternalEnqueued, res.Status)
}

func TestDispatch_PremiumWithinQuotaBypassesHeat(t *testing.T) {
	fx := newDispatcherFixture()

	res, err := fx.dispatcher.Dispatch(context.Background(), Request{
		Query: "obscurename", UserID: "u1", IsPremium: true,
	})
	require.NoError(t, err)
	require.Equal(t, StatusExternalEnqueued, res.Status)
}

func TestDispatch_PremiumQuotaExhaustedFallsBackToHeat(t *testing.T) {
	fx := newDispatcherFixture()
	ctx := context.Background()

	day := time.Now().UTC().Format("20060102")
	quotaKey := kv.NewKeys("test").PremiumQuota("u1", day)
	fx.gate.values[quotaKey] = "50"

	res, err := fx.dispatcher.Dispatch(ctx, Request{Query: "obscurename", UserID: "u1", IsPremium: true})
	require.NoError(t, err)
	require.Equal(t, StatusDeferred, res.Status, "the 51st bypass-eligible search must not bypass heat")
}

func TestDispatch_WorkersOfflineDefers(t *testing.T) {
	fx := newDispatcherFixture()
	fx.fleet.online = false

	res, err := fx.dispatcher.Dispatch(context.Background(), Request{Query: "follow obscurename", UserID: "u1"})
	require.NoError(t, err)
	require.Equal(t, StatusDeferred, res.Status)

	raw := fx.deferStore.fields[QueryHash("follow obscurename")]
	var entry deferredEntry
	require.NoError(t, json.Unmarshal([]byte(raw), &entry))
	require.Equal(t, "workers_offline", entry.SkipReason)
}

func TestDispatch_UnhealthyQueueDefers(t *testing.T) {
	fx := newDispatcherFixture()
	fx.queue.healthy = false

	res, err := fx.dispatcher.Dispatch(context.Background(), Request{Query: "follow obscurename", UserID: "u1"})
	require.NoError(t, err)
	require.Equal(t, StatusDeferred, res.Status)
}

func TestDispatch_PremiumConcurrencyCapDefers(t *testing.T) {
	fx := newDispatcherFixture()
	keys := kv.NewKeys("test")
	fx.gate.values[keys.PremiumConcurrency("u1")] = "2"

	res, err := fx.dispatcher.Dispatch(context.Background(), Request{
		Query: "follow obscurename", UserID: "u1", IsPremium: true,
	})
	require.NoError(t, err)
	require.Equal(t, StatusDeferred, res.Status)
}

func TestDispatch_CooldownSuppressesRepeatDispatch(t *testing.T) {
	fx := newDispatcherFixture()
	ctx := context.Background()

	first, err := fx.dispatcher.Dispatch(ctx, Request{Query: "follow obscurename", UserID: "u1", IP: "9.9.9.9"})
	require.NoError(t, err)
	require.Equal(t, StatusExternalEnqueued, first.Status)

	// Simulate the job completing so a fresh enqueue would be possible.
	fx.queue.members = map[string]bool{}

	second, err := fx.dispatcher.Dispatch(ctx, Request{Query: "follow obscurename", UserID: "u1", IP: "9.9.9.9"})
	require.NoError(t, err)
	require.Equal(t, StatusLocalOnly, second.Status)
	require.Len(t, fx.queue.added, 1, "cooldown must suppress the repeat dispatch")
}
