// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package worker implements the five idempotent job processors that turn
a scraped payload into catalogue state and outbound notifications, plus
the bounded goroutine pool that drains them off
[github.com/taibuivan/yomira/internal/queue].

Every processor here assumes at-least-once delivery: a job may be
retried after a partial success, so each one is written to be safe to
re-run against state a previous attempt already partially wrote.
*/
package worker

import (
	"context"
	"log/slog"

	"github.com/taibuivan/yomira/internal/core/chapter"
	"github.com/taibuivan/yomira/internal/core/notify"
	"github.com/taibuivan/yomira/internal/core/series"
	"github.com/taibuivan/yomira/internal/queue"
	"github.com/taibuivan/yomira/internal/ratelimit"
	"github.com/taibuivan/yomira/internal/scraper"
)

// Job kind strings, used as both the queue.Record.Kind tag and the
// registry key the [Pool] dispatches on.
const (
	KindCheckSource          = "check-source"
	KindCanonicalize         = "canonicalize"
	KindChapterIngest        = "chapter-ingest"
	KindNotificationFanout   = "notification-fanout"
	KindNotificationDelivery = "notification-delivery"
)

// Queues bundles the named queues a worker fleet drains and enqueues
// into. NotificationDeliveryPremium lets the fanout processor route
// premium subscribers to their own higher-priority lane; SyncSource
// carries the scheduler's check-source jobs on a separate queue so bulk
// sync traffic never starves a user-triggered search probe.
type Queues struct {
	CheckSource                 *queue.Queue
	SyncSource                  *queue.Queue
	Canonicalize                *queue.Queue
	ChapterIngest               *queue.Queue
	NotificationFanout          *queue.Queue
	NotificationDelivery        *queue.Queue
	NotificationDeliveryPremium *queue.Queue
}

// All returns every named queue, in the fixed order the [Pool] polls
// them; check-source first since it's the only kind that performs
// outbound I/O and therefore the one most worth prioritizing over purely
// local DB work when a worker has spare capacity.
func (q Queues) All() []*queue.Queue {
	return []*queue.Queue{
		q.CheckSource,
		q.SyncSource,
		q.Canonicalize,
		q.ChapterIngest,
		q.NotificationFanout,
		q.NotificationDelivery,
		q.NotificationDeliveryPremium,
	}
}

// Deps bundles everything the five processors need, injected once at
// wiring time (cmd/worker/main.go).
type Deps struct {
	Scrapers  *scraper.Registry
	RateLimit *ratelimit.Limiter
	Chapters  *chapter.Service
	Series    series.Repository
	Notify    *notify.Service
	Queues    Queues
	Logger    *slog.Logger
}

// Processors wraps [Deps] with the five processor methods, registered
// with a [Pool] by job kind.
type Processors struct {
	deps Deps
}

// NewProcessors constructs a [Processors] over deps.
func NewProcessors(deps Deps) *Processors {
	return &Processors{deps: deps}
}

// Registry returns the kind -> [Processor] map a [Pool] dispatches
// through.
func (p *Processors) Registry() map[string]Processor {
	return map[string]Processor{
		KindCheckSource:          p.CheckSource,
		KindCanonicalize:         p.Canonicalize,
		KindChapterIngest:        p.ChapterIngest,
		KindNotificationFanout:   p.NotificationFanout,
		KindNotificationDelivery: p.NotificationDelivery,
	}
}

// Processor handles one reserved job's payload. A non-nil error signals
// failure to the [Pool], which classifies it (retryable vs. permanent)
// and either re-enqueues or dead-letters the job.
type Processor func(ctx context.Context, payload []byte) error
