// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package series

import (
	"context"
	"time"
)

// Repository is the data access contract for the [Series] aggregate and
// its [Source] bindings: the subset of the catalogue's CRUD the
// ingestion backbone needs, plus the scheduler/sync operations.
type Repository interface {
	// FindByID returns the series with the given ID.
	FindByID(ctx context.Context, id string) (*Series, error)

	// FindByTitleSlug returns the series whose slug matches the
	// normalized title, used by the canonicalize worker to match a
	// scraped hit against an existing [Series] before creating a new one.
	FindByTitleSlug(ctx context.Context, slug string) (*Series, error)

	// SearchByTitle returns up to limit series whose title loosely
	// matches query, ranked by follower count; the search dispatcher's
	// local-DB-query step, run before any scrape is
	// ever considered.
	SearchByTitle(ctx context.Context, query string, limit int) ([]*Series, error)

	// CreateSeries persists a brand-new [Series], used by canonicalize
	// when a scraped hit doesn't match any existing title.
	CreateSeries(ctx context.Context, s *Series) error

	// BumpLatestChapter conditionally advances LatestChapter, per the
	// invariant that it never decreases: `UPDATE ... WHERE $1 >
	// latest_chapter`.
	BumpLatestChapter(ctx context.Context, seriesID string, chapterNumber float64) error

	// RefreshBestCoverURL sets BestCoverURL only if it is currently empty;
	// an existing cover is never replaced, and trust score is not
	// consulted. Called post-commit by the ingestion worker.
	RefreshBestCoverURL(ctx context.Context, seriesID, coverURL string) error

	// FindSource returns the [Source] binding for (sourceName, sourceID),
	// used by canonicalize to decide insert-vs-update.
	FindSource(ctx context.Context, sourceName, sourceID string) (*Source, error)

	// CreateSource persists a new [Source] binding, used by canonicalize
	// the first time a provider reports a series.
	CreateSource(ctx context.Context, src *Source) error

	// RecordSuccess stamps LastSuccessAt/LastCheckedAt, resets
	// FailureCount to 0, and stores the reported chapter count. Called
	// by the ingestion worker after a successful chapter sync.
	RecordSuccess(ctx context.Context, sourceID string, sourceChapterCount int, at time.Time) error

	// RecordFailure increments FailureCount and stamps LastCheckedAt.
	// Called by the ingestion worker on a non-retryable scrape failure.
	RecordFailure(ctx context.Context, sourceID string, at time.Time) error

	// DueForSync returns up to limit sources whose NextCheckAt is null
	// or has elapsed, ordered by priority (HOT first) so the scheduler
	// drains the most urgent tier first when the row cap is hit.
	DueForSync(ctx context.Context, now time.Time, limit int) ([]*Source, error)

	// AdvanceNextCheck bulk-sets NextCheckAt = nextCheckAt for the given
	// source IDs. Must run BEFORE the scheduler enqueues jobs for the
	// same IDs.
	AdvanceNextCheck(ctx context.Context, sourceIDs []string, nextCheckAt time.Time) error

	// PromoteHOT promotes to HOT every source whose series currently has
	// more than [ReaderCountThreshold] library entries in status
	// 'reading'/'planning' (the ingestion backbone's definition of
	// "readers"). Returns the promoted source IDs for logging/metrics.
	PromoteHOT(ctx context.Context) ([]string, error)

	// DemoteStale demotes HOT sources whose LastSuccessAt is older than
	// [StaleHotWindow] and whose series is no longer above the reader
	// threshold to WARM, and WARM sources older than [StaleWarmWindow]
	// to COLD. Returns the demoted source IDs.
	DemoteStale(ctx context.Context) ([]string, error)
}
