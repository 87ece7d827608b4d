// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package queue implements named priority queues over Redis sorted sets: the
job transport between the scheduler/search dispatcher (producers) and the
worker pool (consumers).

Each queue keeps four keys: a "waiting" sorted set scored by
(priority, enqueue time) so lower-priority-number jobs drain first and ties
break FIFO; a "scheduled" sorted set for delayed jobs, scored by ready-at
time; an "active" set for jobs currently leased to a worker; and a
"members" set spanning all three states, used to make Add idempotent for a
given job ID.
*/
package queue

import (
	stdctx "context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/taibuivan/yomira/internal/platform/kv"
	"github.com/taibuivan/yomira/pkg/uuidv7"
)

// Priority tiers a job's drain order; lower drains first.
type Priority int

const (
	PriorityCritical Priority = 0  // premium search
	PriorityHot      Priority = 1  // HOT sync
	PriorityWarm     Priority = 2  // WARM sync
	PriorityCold     Priority = 3  // COLD sync
	PriorityStandard Priority = 5  // standard search
	PriorityLow      Priority = 10 // deferred retry
)

// ErrEmpty is returned by [Queue.Reserve] when no job is ready to run.
var ErrEmpty = errors.New("queue: no job ready")

// Options customizes a single [Queue.Add] call.
type Options struct {
	// JobID dedups the enqueue: supplying the same JobID twice while it's
	// waiting, scheduled, or active is a no-op. Empty generates a fresh
	// UUIDv7.
	JobID string
	// Priority controls drain order; lower values drain first.
	Priority Priority
	// Delay postpones visibility: the job sits in the scheduled set until
	// Delay elapses, then becomes eligible for [Queue.Reserve].
	Delay time.Duration
}

// Job bundles a payload with its enqueue [Options] for [Queue.AddBulk].
type Job struct {
	Kind    string
	Payload any
	Options Options
}

// Record is a reserved job handed to a worker, along with the bookkeeping
// needed to ack, retry, or dead-letter it.
type Record struct {
	ID       string
	Kind     string
	Payload  json.RawMessage
	Priority Priority
	Attempt  int
}

// Queue is one named priority queue.
type Queue struct {
	name  string
	store store
	keys  kv.Keys
}

// New constructs a [Queue] named name over a live Redis connection.
func New(client redisCmdable, keys kv.Keys, name string) *Queue {
	return newQueueWithStore(name, redisStore{client: client}, keys)
}

func newQueueWithStore(name string, s store, keys kv.Keys) *Queue {
	return &Queue{name: name, store: s, keys: keys}
}

// Add enqueues one job of kind carrying payload (marshaled to JSON), honoring
// opts.Delay and deduping on opts.JobID. Returns the job ID used (generated
// if opts.JobID was empty), even on a dedup no-op.
func (q *Queue) Add(ctx stdctx.Context, kind string, payload any, opts Options) (string, error) {
	jobID := opts.JobID
	if jobID == "" {
		jobID = uuidv7.New()
	}

	isNew, err := q.store.SAdd(ctx, q.keys.QueueMembers(q.name), jobID)
	if err != nil {
		return "", fmt.Errorf("queue %s: dedup check: %w", q.name, err)
	}
	if !isNew {
		return jobID, nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("queue %s: marshal payload: %w", q.name, err)
	}

	jobKey := q.keys.QueueJob(q.name, jobID)
	fields := map[string]string{
		"kind":     kind,
		"payload":  string(body),
		"priority": fmt.Sprintf("%d", opts.Priority),
		"attempt":  "0",
	}
	if err := q.store.HSet(ctx, jobKey, fields); err != nil {
		return "", fmt.Errorf("queue %s: write job record: %w", q.name, err)
	}

	now := nowMs()
	if opts.Delay > 0 {
		readyAt := now + opts.Delay.Milliseconds()
		if err := q.store.ZAdd(ctx, q.keys.QueueScheduled(q.name), float64(readyAt), jobID); err != nil {
			return "", fmt.Errorf("queue %s: schedule job: %w", q.name, err)
		}
		return jobID, nil
	}

	score := priorityScore(opts.Priority, now)
	if err := q.store.ZAdd(ctx, q.keys.QueueWaiting(q.name), score, jobID); err != nil {
		return "", fmt.Errorf("queue %s: enqueue job: %w", q.name, err)
	}
	return jobID, nil
}

// AddBulk enqueues every job in jobs, returning the job ID assigned to each
// in the same order.
func (q *Queue) AddBulk(ctx stdctx.Context, jobs []Job) ([]string, error) {
	ids := make([]string, 0, len(jobs))
	for _, j := range jobs {
		id, err := q.Add(ctx, j.Kind, j.Payload, j.Options)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Reserve promotes any scheduled jobs whose delay has elapsed into the
// waiting set, then pops and leases the single highest-priority (lowest
// score) waiting job. Returns [ErrEmpty] if nothing is ready.
func (q *Queue) Reserve(ctx stdctx.Context) (*Record, error) {
	if err := q.promoteDue(ctx); err != nil {
		return nil, err
	}

	jobID, ok, err := q.store.ZPopMin(ctx, q.keys.QueueWaiting(q.name))
	if err != nil {
		return nil, fmt.Errorf("queue %s: pop waiting: %w", q.name, err)
	}
	if !ok {
		return nil, ErrEmpty
	}

	if _, err := q.store.SAdd(ctx, q.keys.QueueActive(q.name), jobID); err != nil {
		return nil, fmt.Errorf("queue %s: mark active: %w", q.name, err)
	}

	fields, err := q.store.HGetAll(ctx, q.keys.QueueJob(q.name, jobID))
	if err != nil {
		return nil, fmt.Errorf("queue %s: read job record: %w", q.name, err)
	}
	return recordFromFields(jobID, fields), nil
}

// Ack marks rec as successfully completed: it is removed from active and
// members so a later Add with the same job ID can succeed again, and its
// job record is deleted.
func (q *Queue) Ack(ctx stdctx.Context, rec *Record) error {
	return q.forget(ctx, rec.ID)
}

// Retry re-enqueues rec after delay, incrementing its attempt counter, and
// removes it from the active set. Callers (the worker pool) decide whether
// to retry or dead-letter; Retry itself does not cap attempts.
func (q *Queue) Retry(ctx stdctx.Context, rec *Record, delay time.Duration) error {
	jobKey := q.keys.QueueJob(q.name, rec.ID)
	attempt := rec.Attempt + 1
	if err := q.store.HSet(ctx, jobKey, map[string]string{"attempt": fmt.Sprintf("%d", attempt)}); err != nil {
		return fmt.Errorf("queue %s: bump attempt for %s: %w", q.name, rec.ID, err)
	}
	if err := q.store.SRem(ctx, q.keys.QueueActive(q.name), rec.ID); err != nil {
		return fmt.Errorf("queue %s: clear active for %s: %w", q.name, rec.ID, err)
	}

	now := nowMs()
	if delay > 0 {
		readyAt := now + delay.Milliseconds()
		return wrapErr(q.store.ZAdd(ctx, q.keys.QueueScheduled(q.name), float64(readyAt), rec.ID),
			"queue %s: reschedule %s", q.name, rec.ID)
	}
	score := priorityScore(rec.Priority, now)
	return wrapErr(q.store.ZAdd(ctx, q.keys.QueueWaiting(q.name), score, rec.ID),
		"queue %s: re-enqueue %s", q.name, rec.ID)
}

// DeadLetter moves rec to the dead-letter set with a 24h TTL record and
// removes it from every live state.
const deadLetterTTL = 24 * time.Hour

func (q *Queue) DeadLetter(ctx stdctx.Context, rec *Record, reason string) error {
	dead := struct {
		Kind     string          `json:"kind"`
		Payload  json.RawMessage `json:"payload"`
		Reason   string          `json:"reason"`
		DiedAtMs int64           `json:"died_at_ms"`
	}{Kind: rec.Kind, Payload: rec.Payload, Reason: reason, DiedAtMs: nowMs()}

	body, err := json.Marshal(dead)
	if err != nil {
		return fmt.Errorf("queue %s: marshal dead letter for %s: %w", q.name, rec.ID, err)
	}
	if err := q.store.SetWithTTL(ctx, q.keys.QueueDeadJob(q.name, rec.ID), string(body), deadLetterTTL); err != nil {
		return fmt.Errorf("queue %s: write dead letter for %s: %w", q.name, rec.ID, err)
	}
	if _, err := q.store.SAdd(ctx, q.keys.QueueDLQ(q.name), rec.ID); err != nil {
		return fmt.Errorf("queue %s: index dead letter for %s: %w", q.name, rec.ID, err)
	}

	return q.forget(ctx, rec.ID)
}

// Name returns the queue's configured name, for logging and metrics labels.
func (q *Queue) Name() string { return q.name }

// OldestWaitingAge reports how long the job at the front of the waiting set
// has sat there, decoded from the enqueue timestamp packed into the
// low-order digits of its score (see priorityScore). ok is false if nothing is waiting.
// Because the front of the set is ranked by priority first, this is a proxy
// for "oldest job in the queue", not a true max; good enough for the
// scheduler's safety monitor, which only cares
// whether the queue has started to back up.
func (q *Queue) OldestWaitingAge(ctx stdctx.Context) (age time.Duration, ok bool, err error) {
	scored, err := q.store.ZRangeWithScores(ctx, q.keys.QueueWaiting(q.name), 0, 0)
	if err != nil {
		return 0, false, fmt.Errorf("queue %s: peek oldest waiting: %w", q.name, err)
	}
	if len(scored) == 0 {
		return 0, false, nil
	}
	enqueuedAtMs := scored[0].Score - float64(int64(scored[0].Score/1e15))*1e15
	return time.Since(time.UnixMilli(int64(enqueuedAtMs))), true, nil
}

// WaitingCount returns how many jobs are currently waiting to run, the
// basis for the queue-depth health check and metrics gauge.
func (q *Queue) WaitingCount(ctx stdctx.Context) (int64, error) {
	n, err := q.store.ZCard(ctx, q.keys.QueueWaiting(q.name))
	if err != nil {
		return 0, fmt.Errorf("queue %s: waiting count: %w", q.name, err)
	}
	return n, nil
}

// Healthy reports whether the queue's waiting depth is below threshold.
// The worker health server exposes this per queue.
func (q *Queue) Healthy(ctx stdctx.Context, threshold int64) (bool, error) {
	n, err := q.WaitingCount(ctx)
	if err != nil {
		return false, err
	}
	return n < threshold, nil
}

func (q *Queue) promoteDue(ctx stdctx.Context) error {
	due, err := q.store.ZRangeByScore(ctx, q.keys.QueueScheduled(q.name), float64(nowMs()))
	if err != nil {
		return fmt.Errorf("queue %s: list due jobs: %w", q.name, err)
	}
	for _, jobID := range due {
		if err := q.store.ZRem(ctx, q.keys.QueueScheduled(q.name), jobID); err != nil {
			return fmt.Errorf("queue %s: unschedule %s: %w", q.name, jobID, err)
		}
		fields, err := q.store.HGetAll(ctx, q.keys.QueueJob(q.name, jobID))
		if err != nil {
			return fmt.Errorf("queue %s: read due job %s: %w", q.name, jobID, err)
		}
		rec := recordFromFields(jobID, fields)
		score := priorityScore(rec.Priority, nowMs())
		if err := q.store.ZAdd(ctx, q.keys.QueueWaiting(q.name), score, jobID); err != nil {
			return fmt.Errorf("queue %s: promote %s: %w", q.name, jobID, err)
		}
	}
	return nil
}

func (q *Queue) forget(ctx stdctx.Context, jobID string) error {
	if err := q.store.SRem(ctx, q.keys.QueueActive(q.name), jobID); err != nil {
		return fmt.Errorf("queue %s: clear active for %s: %w", q.name, jobID, err)
	}
	if err := q.store.SRem(ctx, q.keys.QueueMembers(q.name), jobID); err != nil {
		return fmt.Errorf("queue %s: clear membership for %s: %w", q.name, jobID, err)
	}
	if err := q.store.Del(ctx, q.keys.QueueJob(q.name, jobID)); err != nil {
		return fmt.Errorf("queue %s: delete job record for %s: %w", q.name, jobID, err)
	}
	return nil
}

// priorityScore packs priority into the high-order part of a sorted-set
// score (priority × 1e15) and the enqueue time in milliseconds into the
// low-order digits, so jobs of equal priority drain FIFO without a second
// sort key.
func priorityScore(p Priority, enqueuedAtMs int64) float64 {
	return float64(p)*1e15 + float64(enqueuedAtMs)
}

func recordFromFields(jobID string, fields map[string]string) *Record {
	rec := &Record{ID: jobID, Kind: fields["kind"], Payload: json.RawMessage(fields["payload"])}
	fmt.Sscanf(fields["priority"], "%d", &rec.Priority)
	fmt.Sscanf(fields["attempt"], "%d", &rec.Attempt)
	return rec
}

func wrapErr(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// nowMs is the single time source queue.go uses, kept as a var so tests can
// override it instead of sleeping real wall-clock time.
var nowMs = func() int64 { return time.Now().UnixMilli() }
