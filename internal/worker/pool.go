// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package worker

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/taibuivan/yomira/internal/platform/metrics"
	"github.com/taibuivan/yomira/internal/queue"
)

// maxAttempts caps how many times a transiently failing job runs in total
// (first run included) before it is moved to the dead-letter set.
const maxAttempts = 5

// idlePollInterval is how long a pool goroutine sleeps after finding
// every queue empty, before polling again.
const idlePollInterval = 500 * time.Millisecond

// Pool drains the named queues with a bounded set of goroutines, each
// reserving one job at a time and dispatching it through the kind
// registry. Failed jobs are classified: retryable failures re-enqueue
// with exponential backoff and jitter up to [maxAttempts], permanent
// failures are logged and dropped.
type Pool struct {
	queues     []*queue.Queue
	processors map[string]Processor
	logger     *slog.Logger
	size       int

	// sleep is swappable so tests don't wait out real idle intervals.
	sleep func(ctx context.Context, d time.Duration)
}

// NewPool constructs a [Pool] of size goroutines (0 selects
// runtime.NumCPU()) over the given queues and processor registry.
func NewPool(queues []*queue.Queue, processors map[string]Processor, logger *slog.Logger, size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &Pool{
		queues:     queues,
		processors: processors,
		logger:     logger,
		size:       size,
		sleep:      sleepCtx,
	}
}

// Run blocks, draining jobs until ctx is cancelled. Every goroutine
// exits before Run returns, so a caller can treat its return as "all
// in-flight work finished or was re-enqueued".
func (p *Pool) Run(ctx context.Context) {
	done := make(chan struct{})
	for i := 0; i < p.size; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			p.loop(ctx)
		}()
	}
	for i := 0; i < p.size; i++ {
		<-done
	}
}

func (p *Pool) loop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		worked := p.drainOnce(ctx)
		if !worked {
			p.sleep(ctx, idlePollInterval)
		}
	}
}

// drainOnce polls every queue in priority order and processes at most
// one job. Reports whether any job was found.
func (p *Pool) drainOnce(ctx context.Context) bool {
	for _, q := range p.queues {
		rec, err := q.Reserve(ctx)
		if errors.Is(err, queue.ErrEmpty) {
			continue
		}
		if err != nil {
			p.logger.Error("queue_reserve_failed",
				slog.String("queue", q.Name()), slog.Any("error", err))
			continue
		}
		p.process(ctx, q, rec)
		return true
	}
	return false
}

func (p *Pool) process(ctx context.Context, q *queue.Queue, rec *queue.Record) {
	proc, ok := p.processors[rec.Kind]
	if !ok {
		p.logger.Error("unknown_job_kind",
			slog.String("queue", q.Name()), slog.String("kind", rec.Kind), slog.String("job_id", rec.ID))
		p.deadLetter(ctx, q, rec, "unknown kind "+rec.Kind)
		return
	}

	start := time.Now()
	err := proc(ctx, rec.Payload)
	metrics.JobDuration.WithLabelValues(rec.Kind).Observe(time.Since(start).Seconds())

	if err == nil {
		metrics.JobsProcessedTotal.WithLabelValues(rec.Kind, "ok").Inc()
		if ackErr := q.Ack(ctx, rec); ackErr != nil {
			p.logger.Error("job_ack_failed",
				slog.String("queue", q.Name()), slog.String("job_id", rec.ID), slog.Any("error", ackErr))
		}
		return
	}

	if !isRetryable(err) {
		// Permanent failure: log and drop. The job record is removed so a
		// later enqueue with the same ID can run against fixed inputs.
		p.logger.Warn("job_dropped",
			slog.String("queue", q.Name()),
			slog.String("kind", rec.Kind),
			slog.String("job_id", rec.ID),
			slog.Int("attempt", rec.Attempt),
			slog.Any("error", err))
		metrics.JobsProcessedTotal.WithLabelValues(rec.Kind, "dropped").Inc()
		if ackErr := q.Ack(ctx, rec); ackErr != nil {
			p.logger.Error("job_drop_ack_failed",
				slog.String("queue", q.Name()), slog.String("job_id", rec.ID), slog.Any("error", ackErr))
		}
		return
	}

	if rec.Attempt+1 >= maxAttempts {
		p.logger.Error("job_dead_lettered",
			slog.String("queue", q.Name()),
			slog.String("kind", rec.Kind),
			slog.String("job_id", rec.ID),
			slog.Int("attempt", rec.Attempt),
			slog.Any("error", err))
		metrics.JobsProcessedTotal.WithLabelValues(rec.Kind, "dead").Inc()
		p.deadLetter(ctx, q, rec, err.Error())
		return
	}

	delay := retryDelay(rec.Attempt)
	p.logger.Warn("job_retry_scheduled",
		slog.String("queue", q.Name()),
		slog.String("kind", rec.Kind),
		slog.String("job_id", rec.ID),
		slog.Int("attempt", rec.Attempt),
		slog.Duration("delay", delay),
		slog.Any("error", err))
	metrics.JobsProcessedTotal.WithLabelValues(rec.Kind, "retried").Inc()
	if retryErr := q.Retry(ctx, rec, delay); retryErr != nil {
		p.logger.Error("job_retry_failed",
			slog.String("queue", q.Name()), slog.String("job_id", rec.ID), slog.Any("error", retryErr))
	}
}

func (p *Pool) deadLetter(ctx context.Context, q *queue.Queue, rec *queue.Record, reason string) {
	if err := q.DeadLetter(ctx, rec, reason); err != nil {
		p.logger.Error("dead_letter_failed",
			slog.String("queue", q.Name()), slog.String("job_id", rec.ID), slog.Any("error", err))
	}
}

// retryDelay computes the backoff before attempt+1, exponential with
// jitter: attempt 0 retries after ~2s, doubling to a 5-minute ceiling.
func retryDelay(attempt int) time.Duration {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * time.Second
	bo.RandomizationFactor = 0.3
	bo.Multiplier = 2
	bo.MaxInterval = 5 * time.Minute

	d := bo.NextBackOff()
	for i := 0; i < attempt; i++ {
		d = bo.NextBackOff()
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// RefreshQueueDepthMetrics samples every queue's waiting depth into the
// queue-depth gauge; called periodically by the health server loop.
func RefreshQueueDepthMetrics(ctx context.Context, queues []*queue.Queue) {
	for _, q := range queues {
		n, err := q.WaitingCount(ctx)
		if err != nil {
			continue
		}
		metrics.QueueWaitingDepth.WithLabelValues(q.Name()).Set(float64(n))
	}
}
