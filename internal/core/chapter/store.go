// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package chapter

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Tx is the narrow subset of pgx.Tx a [Repository] needs, declared as an
// interface so tests supply a small in-memory fake instead of a live
// transaction; the same "narrow interface over the real client" shape
// already used by internal/platform/kv.RedisClient and
// internal/scraper.breakerStore.
type Tx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Repository is the data access contract for [LogicalChapter]/[ChapterSource]
// rows, scoped to a single DB transaction so [Service.SyncChapters] can
// batch multiple upserts under one commit.
type Repository interface {
	// UpsertLogicalChapter inserts or null-safe-merges the logical chapter
	// identified by (seriesID, c.Number) within tx. inserted reports
	// whether this call created a new row (vs. merged into an existing
	// one); callers use this to gate notification-fanout so retries of
	// an already-ingested chapter never spam subscribers again.
	UpsertLogicalChapter(ctx context.Context, tx Tx, seriesID string, c ScrapedChapter) (chapterID string, inserted bool, err error)

	// UpsertChapterSource inserts or updates the (seriesSourceID, chapterID)
	// binding within tx.
	UpsertChapterSource(ctx context.Context, tx Tx, seriesSourceID, chapterID string, c ScrapedChapter) error

	// CountChapters returns the number of distinct logical chapters bound
	// to seriesSourceID; the idempotent `source_chapter_count`.
	CountChapters(ctx context.Context, tx Tx, seriesSourceID string) (int, error)

	// Begin starts a new transaction, exposed so [Service.SyncChapters]
	// can own the batch/commit boundary explicitly.
	Begin(ctx context.Context) (Tx, error)

	// AcquireSeriesLock takes the session-scoped advisory lock for
	// seriesID without blocking. acquired is false when another session
	// already holds it. When acquired, release must be called exactly
	// once, on success and failure paths alike; it unlocks and returns
	// the underlying connection to the pool.
	AcquireSeriesLock(ctx context.Context, seriesID string) (release func(), acquired bool, err error)
}
