// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package queue

import (
	stdctx "context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira/internal/platform/kv"
)

// fakeStore is an in-memory [store] fake, matching this codebase's
// no-mocking-framework testing convention.
type fakeStore struct {
	clock   int64
	zsets   map[string]map[string]float64
	sets    map[string]map[string]bool
	hashes  map[string]map[string]string
	strings map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		zsets:   map[string]map[string]float64{},
		sets:    map[string]map[string]bool{},
		hashes:  map[string]map[string]string{},
		strings: map[string]string{},
	}
}

func (f *fakeStore) ZAdd(_ stdctx.Context, key string, score float64, member string) error {
	if f.zsets[key] == nil {
		f.zsets[key] = map[string]float64{}
	}
	f.zsets[key][member] = score
	return nil
}

func (f *fakeStore) ZPopMin(_ stdctx.Context, key string) (string, bool, error) {
	z := f.zsets[key]
	if len(z) == 0 {
		return "", false, nil
	}
	best, bestScore := "", 0.0
	first := true
	for m, s := range z {
		if first || s < bestScore {
			best, bestScore, first = m, s, false
		}
	}
	delete(z, best)
	return best, true, nil
}

func (f *fakeStore) ZRangeByScore(_ stdctx.Context, key string, maxScore float64) ([]string, error) {
	var out []string
	for m, s := range f.zsets[key] {
		if s <= maxScore {
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeStore) ZRangeWithScores(_ stdctx.Context, key string, start, stop int64) ([]ScoredMember, error) {
	members := make([]string, 0, len(f.zsets[key]))
	for m := range f.zsets[key] {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool { return f.zsets[key][members[i]] < f.zsets[key][members[j]] })
	if start < 0 {
		start = 0
	}
	if stop < 0 || int(stop) >= len(members) {
		stop = int64(len(members) - 1)
	}
	var out []ScoredMember
	for i := start; i <= stop && i < int64(len(members)); i++ {
		out = append(out, ScoredMember{Member: members[i], Score: f.zsets[key][members[i]]})
	}
	return out, nil
}

func (f *fakeStore) ZRem(_ stdctx.Context, key, member string) error {
	delete(f.zsets[key], member)
	return nil
}

func (f *fakeStore) ZCard(_ stdctx.Context, key string) (int64, error) {
	return int64(len(f.zsets[key])), nil
}

func (f *fakeStore) SAdd(_ stdctx.Context, key, member string) (bool, error) {
	if f.sets[key] == nil {
		f.sets[key] = map[string]bool{}
	}
	if f.sets[key][member] {
		return false, nil
	}
	f.sets[key][member] = true
	return true, nil
}

func (f *fakeStore) SRem(_ stdctx.Context, key, member string) error {
	delete(f.sets[key], member)
	return nil
}

func (f *fakeStore) HSet(_ stdctx.Context, key string, fields map[string]string) error {
	if f.hashes[key] == nil {
		f.hashes[key] = map[string]string{}
	}
	for k, v := range fields {
		f.hashes[key][k] = v
	}
	return nil
}

func (f *fakeStore) HGetAll(_ stdctx.Context, key string) (map[string]string, error) {
	out := map[string]string{}
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStore) Del(_ stdctx.Context, key string) error {
	delete(f.hashes, key)
	return nil
}

func (f *fakeStore) SetWithTTL(_ stdctx.Context, key, value string, _ time.Duration) error {
	f.strings[key] = value
	return nil
}

func testKeys() kv.Keys { return kv.NewKeys("test") }

func TestQueue_AddThenReserve(t *testing.T) {
	fs := newFakeStore()
	q := newQueueWithStore("check-source", fs, testKeys())
	ctx := stdctx.Background()

	id, err := q.Add(ctx, "check_source", map[string]string{"series_id": "s1"}, Options{Priority: PriorityHot})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	rec, err := q.Reserve(ctx)
	require.NoError(t, err)
	require.Equal(t, id, rec.ID)
	require.Equal(t, "check_source", rec.Kind)
	require.Equal(t, PriorityHot, rec.Priority)
	require.Equal(t, 0, rec.Attempt)
}

func TestQueue_ReserveEmptyReturnsErrEmpty(t *testing.T) {
	q := newQueueWithStore("check-source", newFakeStore(), testKeys())
	_, err := q.Reserve(stdctx.Background())
	require.ErrorIs(t, err, ErrEmpty)
}

func TestQueue_ReserveDrainsByPriorityThenFIFO(t *testing.T) {
	fs := newFakeStore()
	q := newQueueWithStore("sync", fs, testKeys())
	ctx := stdctx.Background()

	var ticks int64
	nowMs = func() int64 { ticks++; return ticks }
	defer func() { nowMs = func() int64 { return time.Now().UnixMilli() } }()

	coldID, _ := q.Add(ctx, "sync", nil, Options{Priority: PriorityCold})
	hotID, _ := q.Add(ctx, "sync", nil, Options{Priority: PriorityHot})
	warmID, _ := q.Add(ctx, "sync", nil, Options{Priority: PriorityWarm})
	hot2ID, _ := q.Add(ctx, "sync", nil, Options{Priority: PriorityHot})

	first, err := q.Reserve(ctx)
	require.NoError(t, err)
	require.Equal(t, hotID, first.ID)

	second, err := q.Reserve(ctx)
	require.NoError(t, err)
	require.Equal(t, hot2ID, second.ID, "equal priorities drain in enqueue order")

	third, err := q.Reserve(ctx)
	require.NoError(t, err)
	require.Equal(t, warmID, third.ID)

	fourth, err := q.Reserve(ctx)
	require.NoError(t, err)
	require.Equal(t, coldID, fourth.ID)
}

func TestQueue_AddDedupsOnJobID(t *testing.T) {
	fs := newFakeStore()
	q := newQueueWithStore("check-source", fs, testKeys())
	ctx := stdctx.Background()

	id1, err := q.Add(ctx, "check_source", nil, Options{JobID: "fixed", Priority: PriorityHot})
	require.NoError(t, err)

	id2, err := q.Add(ctx, "check_source", nil, Options{JobID: "fixed", Priority: PriorityHot})
	require.NoError(t, err)
	require.Equal(t, id1, id2)

	n, err := q.WaitingCount(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n, "a repeat Add with the same jobId must not double-enqueue")
}

func TestQueue_DelayedJobNotReservableUntilDue(t *testing.T) {
	fs := newFakeStore()
	q := newQueueWithStore("deferred-search", fs, testKeys())
	ctx := stdctx.Background()

	clock := int64(1000)
	nowMs = func() int64 { return clock }
	defer func() { nowMs = func() int64 { return time.Now().UnixMilli() } }()

	id, err := q.Add(ctx, "search", nil, Options{Priority: PriorityLow, Delay: 5 * time.Second})
	require.NoError(t, err)

	_, err = q.Reserve(ctx)
	require.ErrorIs(t, err, ErrEmpty, "a delayed job must not be reservable before its delay elapses")

	clock += 6000
	rec, err := q.Reserve(ctx)
	require.NoError(t, err)
	require.Equal(t, id, rec.ID)
}

func TestQueue_AckRemovesMembershipAllowingReAdd(t *testing.T) {
	fs := newFakeStore()
	q := newQueueWithStore("check-source", fs, testKeys())
	ctx := stdctx.Background()

	id, err := q.Add(ctx, "check_source", nil, Options{JobID: "job-1", Priority: PriorityHot})
	require.NoError(t, err)

	rec, err := q.Reserve(ctx)
	require.NoError(t, err)

	require.NoError(t, q.Ack(ctx, rec))

	id2, err := q.Add(ctx, "check_source", nil, Options{JobID: "job-1", Priority: PriorityHot})
	require.NoError(t, err)
	require.Equal(t, id, id2)

	n, err := q.WaitingCount(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n, "Add after Ack must be able to re-enqueue the same jobId")
}

func TestQueue_RetryReEnqueuesWithIncrementedAttempt(t *testing.T) {
	fs := newFakeStore()
	q := newQueueWithStore("check-source", fs, testKeys())
	ctx := stdctx.Background()

	_, err := q.Add(ctx, "check_source", nil, Options{JobID: "job-1", Priority: PriorityHot})
	require.NoError(t, err)

	rec, err := q.Reserve(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, rec.Attempt)

	require.NoError(t, q.Retry(ctx, rec, 0))

	rec2, err := q.Reserve(ctx)
	require.NoError(t, err)
	require.Equal(t, "job-1", rec2.ID)
	require.Equal(t, 1, rec2.Attempt)
}

func TestQueue_DeadLetterRemovesFromLiveStates(t *testing.T) {
	fs := newFakeStore()
	q := newQueueWithStore("check-source", fs, testKeys())
	ctx := stdctx.Background()

	_, err := q.Add(ctx, "check_source", nil, Options{JobID: "job-1", Priority: PriorityHot})
	require.NoError(t, err)

	rec, err := q.Reserve(ctx)
	require.NoError(t, err)

	require.NoError(t, q.DeadLetter(ctx, rec, "exhausted retries"))

	_, err = q.Reserve(ctx)
	require.ErrorIs(t, err, ErrEmpty)

	require.True(t, fs.sets[testKeys().QueueDLQ("check-source")]["job-1"])
	require.Contains(t, fs.strings, testKeys().QueueDeadJob("check-source", "job-1"))
}

func TestQueue_Healthy(t *testing.T) {
	fs := newFakeStore()
	q := newQueueWithStore("check-source", fs, testKeys())
	ctx := stdctx.Background()

	ok, err := q.Healthy(ctx, 10)
	require.NoError(t, err)
	require.True(t, ok)

	for i := 0; i < 10; i++ {
		_, err := q.Add(ctx, "check_source", nil, Options{Priority: PriorityHot})
		require.NoError(t, err)
	}

	ok, err = q.Healthy(ctx, 10)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestQueue_AddBulk(t *testing.T) {
	fs := newFakeStore()
	q := newQueueWithStore("sync", fs, testKeys())
	ctx := stdctx.Background()

	ids, err := q.AddBulk(ctx, []Job{
		{Kind: "sync", Payload: map[string]string{"id": "1"}, Options: Options{Priority: PriorityHot}},
		{Kind: "sync", Payload: map[string]string{"id": "2"}, Options: Options{Priority: PriorityWarm}},
	})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	n, err := q.WaitingCount(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
}
