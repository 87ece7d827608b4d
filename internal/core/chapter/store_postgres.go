// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package chapter

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/yomira/internal/platform/database/schema"
	"github.com/taibuivan/yomira/internal/platform/dberr"
	"github.com/taibuivan/yomira/pkg/uuid"
)

// repository implements [Repository] using pgx, following the same
// dynamic-column / explicit-transaction conventions as
// internal/core/series's postgres store.
type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL-backed [Repository].
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Begin(ctx context.Context) (Tx, error) {
	return r.pool.Begin(ctx)
}

// AcquireSeriesLock takes pg_try_advisory_lock(hashtext(seriesID)) on a
// dedicated pooled connection. Advisory locks are session-scoped, so the
// connection is pinned until release runs; release unlocks and returns
// it to the pool in one step.
func (r *repository) AcquireSeriesLock(ctx context.Context, seriesID string) (func(), bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("postgres: acquire connection for series lock: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock(hashtext($1))", seriesID).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("postgres: try series lock %s: %w", seriesID, err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	release := func() {
		// Unlock on a context detached from the caller's: the lock must
		// be dropped even when the sync failed with a cancelled context.
		_, _ = conn.Exec(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock(hashtext($1))", seriesID)
		conn.Release()
	}
	return release, true, nil
}

// UpsertLogicalChapter inserts the chapter if (series_id, chapter_number)
// is new, or null-safe-merges onto the existing row otherwise: COALESCE
// keeps a previously-stored non-null title/published_at when the
// incoming value is null. `xmax = 0` is
// Postgres's idiom for "this row was just inserted, not updated" inside
// a RETURNING clause, used here instead of a second round-trip to learn
// insert-vs-update (the signal chapter-ingest needs to gate fan-out).
func (r *repository) UpsertLogicalChapter(ctx context.Context, tx Tx, seriesID string, c ScrapedChapter) (string, bool, error) {
	id := uuid.New()
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (%s, %s) DO UPDATE SET
			%s = COALESCE(EXCLUDED.%s, %s.%s),
			%s = COALESCE(EXCLUDED.%s, %s.%s)
		RETURNING %s, (xmax = 0) AS inserted
	`,
		schema.CoreLogicalChapter.Table,
		schema.CoreLogicalChapter.ID, schema.CoreLogicalChapter.ComicID,
		schema.CoreLogicalChapter.ChapterNumber, schema.CoreLogicalChapter.ChapterTitle,
		schema.CoreLogicalChapter.PublishedAt, schema.CoreLogicalChapter.FirstSeenAt,
		schema.CoreLogicalChapter.ComicID, schema.CoreLogicalChapter.ChapterNumber,
		schema.CoreLogicalChapter.ChapterTitle, schema.CoreLogicalChapter.ChapterTitle,
		schema.CoreLogicalChapter.Table, schema.CoreLogicalChapter.ChapterTitle,
		schema.CoreLogicalChapter.PublishedAt, schema.CoreLogicalChapter.PublishedAt,
		schema.CoreLogicalChapter.Table, schema.CoreLogicalChapter.PublishedAt,
		schema.CoreLogicalChapter.ID,
	)

	var returnedID string
	var inserted bool
	err := tx.QueryRow(ctx, query, id, seriesID, c.Number, c.Title, c.PublishedAt).Scan(&returnedID, &inserted)
	if err != nil {
		return "", false, dberr.WrapClassified(err, "upsert_logical_chapter")
	}
	return returnedID, inserted, nil
}

// UpsertChapterSource inserts or replaces the per-provider binding.
// Source-local fields (URL, title, source published time) are
// overwritten outright on every sync and the binding is marked available
// again; scanlation group and language are not written here, so they keep
// their stored values (or column defaults on insert); unlike the logical chapter, a
// single source's own record of its own chapter is authoritative for
// itself, so there is no cross-source null-safety concern here.
func (r *repository) UpsertChapterSource(ctx context.Context, tx Tx, seriesSourceID, chapterID string, c ScrapedChapter) error {
	id := uuid.New()
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, now(), true)
		ON CONFLICT (%s, %s) DO UPDATE SET
			%s = EXCLUDED.%s,
			%s = EXCLUDED.%s,
			%s = EXCLUDED.%s,
			%s = true
	`,
		schema.CoreChapterSource.Table,
		schema.CoreChapterSource.ID, schema.CoreChapterSource.SeriesSourceID,
		schema.CoreChapterSource.ChapterID, schema.CoreChapterSource.ChapterURL,
		schema.CoreChapterSource.ChapterTitle, schema.CoreChapterSource.SourcePublishedAt,
		schema.CoreChapterSource.DiscoveredAt, schema.CoreChapterSource.IsAvailable,
		schema.CoreChapterSource.SeriesSourceID, schema.CoreChapterSource.ChapterID,
		schema.CoreChapterSource.ChapterURL, schema.CoreChapterSource.ChapterURL,
		schema.CoreChapterSource.ChapterTitle, schema.CoreChapterSource.ChapterTitle,
		schema.CoreChapterSource.SourcePublishedAt, schema.CoreChapterSource.SourcePublishedAt,
		schema.CoreChapterSource.IsAvailable,
	)
	if _, err := tx.Exec(ctx, query, id, seriesSourceID, chapterID, c.URL, c.Title, c.PublishedAt); err != nil {
		return dberr.WrapClassified(err, "upsert_chapter_source")
	}
	return nil
}

// CountChapters reports the number of distinct logical chapters bound
// to seriesSourceID, used to set (not increment) source_chapter_count so
// repeated syncs of the same chapters never inflate the count.
func (r *repository) CountChapters(ctx context.Context, tx Tx, seriesSourceID string) (int, error) {
	query := fmt.Sprintf(
		"SELECT COUNT(DISTINCT %s) FROM %s WHERE %s = $1",
		schema.CoreChapterSource.ChapterID, schema.CoreChapterSource.Table, schema.CoreChapterSource.SeriesSourceID,
	)
	var count int
	if err := tx.QueryRow(ctx, query, seriesSourceID).Scan(&count); err != nil {
		return 0, dberr.WrapClassified(err, "count_source_chapters")
	}
	return count, nil
}
