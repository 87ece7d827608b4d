// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package series provides the PostgreSQL implementation of [Repository].

It keeps the catalogue's store conventions: pgx/v5
over a shared pool, dynamic column references via the schema package, and
explicit Begin/Rollback/Commit transactions for multi-statement writes.
*/
package series

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/yomira/internal/platform/apperr"
	"github.com/taibuivan/yomira/internal/platform/database/schema"
	"github.com/taibuivan/yomira/internal/platform/dberr"
	"github.com/taibuivan/yomira/pkg/slug"
)

// repository implements [Repository] using pgx.
type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL-backed [Repository].
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// FindByID returns the series with the given ID.
func (r *repository) FindByID(ctx context.Context, id string) (*Series, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1 AND %s IS NULL
	`,
		schema.CoreComic.ID, schema.CoreComic.Title, schema.CoreComic.BookType,
		schema.CoreComic.ContentRating, schema.CoreComic.LatestChapter,
		schema.CoreComic.FollowCount, schema.CoreComic.CoverURL,
		schema.CoreComic.CreatedAt, schema.CoreComic.UpdatedAt,
		schema.CoreComic.Table, schema.CoreComic.ID, schema.CoreComic.DeletedAt,
	)

	var s Series
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.Title, &s.Type, &s.ContentRating, &s.LatestChapter,
		&s.TotalFollows, &s.BestCoverURL, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.NotFound("Series")
		}
		return nil, dberr.WrapClassified(err, "find_series")
	}
	return &s, nil
}

// FindByTitleSlug returns the series whose slug matches exactly.
func (r *repository) FindByTitleSlug(ctx context.Context, slug string) (*Series, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1 AND %s IS NULL
	`,
		schema.CoreComic.ID, schema.CoreComic.Title, schema.CoreComic.BookType,
		schema.CoreComic.ContentRating, schema.CoreComic.LatestChapter,
		schema.CoreComic.FollowCount, schema.CoreComic.CoverURL,
		schema.CoreComic.CreatedAt, schema.CoreComic.UpdatedAt,
		schema.CoreComic.Table, schema.CoreComic.Slug, schema.CoreComic.DeletedAt,
	)

	var s Series
	err := r.pool.QueryRow(ctx, query, slug).Scan(
		&s.ID, &s.Title, &s.Type, &s.ContentRating, &s.LatestChapter,
		&s.TotalFollows, &s.BestCoverURL, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.NotFound("Series")
		}
		return nil, dberr.WrapClassified(err, "find_series_by_slug")
	}
	return &s, nil
}

// SearchByTitle returns series whose title loosely matches query, most
// followed first. Ranking by follow count is a deliberately simple
// relevance proxy; full-text ranking is not needed here, and the
// search dispatcher only uses this as a local-hit short-circuit before
// ever considering a scrape.
func (r *repository) SearchByTitle(ctx context.Context, query string, limit int) ([]*Series, error) {
	q := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s ILIKE '%%' || $1 || '%%' AND %s IS NULL
		ORDER BY %s DESC
		LIMIT $2
	`,
		schema.CoreComic.ID, schema.CoreComic.Title, schema.CoreComic.BookType,
		schema.CoreComic.ContentRating, schema.CoreComic.LatestChapter,
		schema.CoreComic.FollowCount, schema.CoreComic.CoverURL,
		schema.CoreComic.CreatedAt, schema.CoreComic.UpdatedAt,
		schema.CoreComic.Table, schema.CoreComic.Title, schema.CoreComic.DeletedAt,
		schema.CoreComic.FollowCount,
	)

	rows, err := r.pool.Query(ctx, q, query, limit)
	if err != nil {
		return nil, dberr.WrapClassified(err, "search_series_by_title")
	}
	defer rows.Close()

	var out []*Series
	for rows.Next() {
		var s Series
		if err := rows.Scan(
			&s.ID, &s.Title, &s.Type, &s.ContentRating, &s.LatestChapter,
			&s.TotalFollows, &s.BestCoverURL, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, dberr.WrapClassified(err, "scan_searched_series")
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

// CreateSeries inserts a new series row, deriving its slug from Title.
func (r *repository) CreateSeries(ctx context.Context, s *Series) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`,
		schema.CoreComic.Table,
		schema.CoreComic.ID, schema.CoreComic.Title, schema.CoreComic.Slug,
		schema.CoreComic.BookType, schema.CoreComic.ContentRating,
		schema.CoreComic.CoverURL, schema.CoreComic.CreatedAt,
	)
	if _, err := r.pool.Exec(ctx, query, s.ID, s.Title, slug.From(s.Title), s.Type, s.ContentRating, s.BestCoverURL); err != nil {
		return dberr.WrapClassified(err, "create_series")
	}
	return nil
}

// BumpLatestChapter conditionally advances latest_chapter; the
// WHERE clause is the monotonicity invariant; a lower or equal
// chapterNumber is a silent no-op, not an error, since a slower source
// reporting a chapter the fleet already ingested is expected traffic.
func (r *repository) BumpLatestChapter(ctx context.Context, seriesID string, chapterNumber float64) error {
	query := fmt.Sprintf(
		"UPDATE %s SET %s = $1, %s = now() WHERE %s = $2 AND (%s IS NULL OR $1 > %s)",
		schema.CoreComic.Table, schema.CoreComic.LatestChapter, schema.CoreComic.UpdatedAt,
		schema.CoreComic.ID, schema.CoreComic.LatestChapter, schema.CoreComic.LatestChapter,
	)
	if _, err := r.pool.Exec(ctx, query, chapterNumber, seriesID); err != nil {
		return dberr.WrapClassified(err, "bump_latest_chapter")
	}
	return nil
}

// RefreshBestCoverURL sets best_cover_url when it is currently empty.
// A richer "pick the highest-trust source's cover" policy is left as a
// follow-up; today every reporting source is treated as equally
// authoritative for cover art, since trust_score only gates sync
// cadence, not content selection.
func (r *repository) RefreshBestCoverURL(ctx context.Context, seriesID, coverURL string) error {
	if coverURL == "" {
		return nil
	}
	query := fmt.Sprintf(
		"UPDATE %s SET %s = $1 WHERE %s = $2 AND (%s IS NULL OR %s = '')",
		schema.CoreComic.Table, schema.CoreComic.CoverURL,
		schema.CoreComic.ID, schema.CoreComic.CoverURL, schema.CoreComic.CoverURL,
	)
	if _, err := r.pool.Exec(ctx, query, coverURL, seriesID); err != nil {
		return dberr.WrapClassified(err, "refresh_best_cover")
	}
	return nil
}

// FindSource returns the source binding for (sourceName, sourceID).
func (r *repository) FindSource(ctx context.Context, sourceName, sourceID string) (*Source, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1 AND %s = $2
	`,
		schema.CrawlerComicSource.ID, schema.CrawlerComicSource.ComicID,
		schema.CrawlerComicSource.SourceID, schema.CrawlerComicSource.SourceIDExt,
		schema.CrawlerComicSource.SourceURL, schema.CrawlerComicSource.TrustScore,
		schema.CrawlerComicSource.SyncPriority, schema.CrawlerComicSource.LastSuccessAt,
		schema.CrawlerComicSource.LastCheckedAt, schema.CrawlerComicSource.NextCheckAt,
		schema.CrawlerComicSource.FailureCount, schema.CrawlerComicSource.SourceChapterCount,
		schema.CrawlerComicSource.Table,
		schema.CrawlerComicSource.SourceID, schema.CrawlerComicSource.SourceIDExt,
	)

	var s Source
	err := r.pool.QueryRow(ctx, query, sourceName, sourceID).Scan(
		&s.ID, &s.SeriesID, &s.SourceName, &s.SourceID, &s.SourceURL, &s.TrustScore,
		&s.SyncPriority, &s.LastSuccessAt, &s.LastCheckedAt, &s.NextCheckAt,
		&s.FailureCount, &s.SourceChapterCount,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.NotFound("SeriesSource")
		}
		return nil, dberr.WrapClassified(err, "find_source")
	}
	return &s, nil
}

// CreateSource persists a new source binding, defaulting sync_priority
// to WARM; a brand-new binding hasn't yet earned HOT (no reader signal)
// nor gone stale enough for priority maintenance to demote it to COLD.
func (r *repository) CreateSource(ctx context.Context, src *Source) error {
	if src.SyncPriority == "" {
		src.SyncPriority = PriorityWarm
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		schema.CrawlerComicSource.Table,
		schema.CrawlerComicSource.ID, schema.CrawlerComicSource.ComicID,
		schema.CrawlerComicSource.SourceID, schema.CrawlerComicSource.SourceIDExt,
		schema.CrawlerComicSource.SourceURL, schema.CrawlerComicSource.TrustScore,
		schema.CrawlerComicSource.SyncPriority,
	)
	_, err := r.pool.Exec(ctx, query,
		src.ID, src.SeriesID, src.SourceName, src.SourceID, src.SourceURL,
		src.TrustScore, src.SyncPriority,
	)
	if err != nil {
		return dberr.WrapClassified(err, "create_source")
	}
	return nil
}

// RecordSuccess stamps success timestamps, clears failure_count, and
// stores the reported chapter count.
func (r *repository) RecordSuccess(ctx context.Context, sourceID string, sourceChapterCount int, at time.Time) error {
	query := fmt.Sprintf(
		"UPDATE %s SET %s = $1, %s = $1, %s = 0, %s = $2 WHERE %s = $3",
		schema.CrawlerComicSource.Table,
		schema.CrawlerComicSource.LastSuccessAt, schema.CrawlerComicSource.LastCheckedAt,
		schema.CrawlerComicSource.FailureCount, schema.CrawlerComicSource.SourceChapterCount,
		schema.CrawlerComicSource.ID,
	)
	if _, err := r.pool.Exec(ctx, query, at, sourceChapterCount, sourceID); err != nil {
		return dberr.WrapClassified(err, "record_source_success")
	}
	return nil
}

// RecordFailure increments failure_count and stamps last_checked_at.
func (r *repository) RecordFailure(ctx context.Context, sourceID string, at time.Time) error {
	query := fmt.Sprintf(
		"UPDATE %s SET %s = $1, %s = %s + 1 WHERE %s = $2",
		schema.CrawlerComicSource.Table,
		schema.CrawlerComicSource.LastCheckedAt, schema.CrawlerComicSource.FailureCount,
		schema.CrawlerComicSource.FailureCount, schema.CrawlerComicSource.ID,
	)
	if _, err := r.pool.Exec(ctx, query, at, sourceID); err != nil {
		return dberr.WrapClassified(err, "record_source_failure")
	}
	return nil
}

// DueForSync returns sources whose next_check_at is null or has
// elapsed, HOT first, capped at limit.
func (r *repository) DueForSync(ctx context.Context, now time.Time, limit int) ([]*Source, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s IS NULL OR %s <= $1
		ORDER BY CASE %s WHEN 'HOT' THEN 0 WHEN 'WARM' THEN 1 ELSE 2 END, %s NULLS FIRST
		LIMIT $2
	`,
		schema.CrawlerComicSource.ID, schema.CrawlerComicSource.ComicID,
		schema.CrawlerComicSource.SourceID, schema.CrawlerComicSource.SourceIDExt,
		schema.CrawlerComicSource.SourceURL, schema.CrawlerComicSource.TrustScore,
		schema.CrawlerComicSource.SyncPriority, schema.CrawlerComicSource.LastSuccessAt,
		schema.CrawlerComicSource.LastCheckedAt, schema.CrawlerComicSource.NextCheckAt,
		schema.CrawlerComicSource.FailureCount, schema.CrawlerComicSource.SourceChapterCount,
		schema.CrawlerComicSource.Table,
		schema.CrawlerComicSource.NextCheckAt, schema.CrawlerComicSource.NextCheckAt,
		schema.CrawlerComicSource.SyncPriority, schema.CrawlerComicSource.NextCheckAt,
	)

	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, dberr.WrapClassified(err, "due_for_sync")
	}
	defer rows.Close()

	var out []*Source
	for rows.Next() {
		var s Source
		if err := rows.Scan(
			&s.ID, &s.SeriesID, &s.SourceName, &s.SourceID, &s.SourceURL, &s.TrustScore,
			&s.SyncPriority, &s.LastSuccessAt, &s.LastCheckedAt, &s.NextCheckAt,
			&s.FailureCount, &s.SourceChapterCount,
		); err != nil {
			return nil, dberr.WrapClassified(err, "scan_due_source")
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

// AdvanceNextCheck bulk-sets next_check_at for the given source IDs.
func (r *repository) AdvanceNextCheck(ctx context.Context, sourceIDs []string, nextCheckAt time.Time) error {
	if len(sourceIDs) == 0 {
		return nil
	}
	query := fmt.Sprintf(
		"UPDATE %s SET %s = $1 WHERE %s = ANY($2)",
		schema.CrawlerComicSource.Table, schema.CrawlerComicSource.NextCheckAt, schema.CrawlerComicSource.ID,
	)
	if _, err := r.pool.Exec(ctx, query, nextCheckAt, sourceIDs); err != nil {
		return dberr.WrapClassified(err, "advance_next_check")
	}
	return nil
}

// PromoteHOT promotes every non-HOT source whose series has more than
// [ReaderCountThreshold] active library entries.
func (r *repository) PromoteHOT(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`
		WITH hot_series AS (
			SELECT %s AS comic_id
			FROM %s
			WHERE %s IN ('reading', 'planning')
			GROUP BY %s
			HAVING COUNT(*) > $1
		)
		UPDATE %s cs
		SET %s = 'HOT'
		FROM hot_series hs
		WHERE cs.%s = hs.comic_id AND cs.%s != 'HOT'
		RETURNING cs.%s
	`,
		schema.LibraryEntry.ComicID, schema.LibraryEntry.Table,
		schema.LibraryEntry.ReadingStatus, schema.LibraryEntry.ComicID,
		schema.CrawlerComicSource.Table, schema.CrawlerComicSource.SyncPriority,
		schema.CrawlerComicSource.ComicID, schema.CrawlerComicSource.SyncPriority,
		schema.CrawlerComicSource.ID,
	)

	rows, err := r.pool.Query(ctx, query, ReaderCountThreshold)
	if err != nil {
		return nil, dberr.WrapClassified(err, "promote_hot_sources")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, dberr.WrapClassified(err, "scan_promoted_source")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DemoteStale demotes HOT sources past [StaleHotWindow] (and no longer
// above the reader threshold) to WARM, and WARM sources past
// [StaleWarmWindow] to COLD.
func (r *repository) DemoteStale(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`
		WITH hot_series AS (
			SELECT %s AS comic_id
			FROM %s
			WHERE %s IN ('reading', 'planning')
			GROUP BY %s
			HAVING COUNT(*) > $3
		)
		UPDATE %s cs
		SET %s = CASE
			WHEN cs.%s = 'HOT' AND cs.%s < $1 AND cs.%s NOT IN (SELECT comic_id FROM hot_series) THEN 'WARM'
			WHEN cs.%s = 'WARM' AND cs.%s < $2 THEN 'COLD'
			ELSE cs.%s
		END
		WHERE
			(cs.%s = 'HOT' AND cs.%s < $1 AND cs.%s NOT IN (SELECT comic_id FROM hot_series))
			OR (cs.%s = 'WARM' AND cs.%s < $2)
		RETURNING cs.%s
	`,
		schema.LibraryEntry.ComicID, schema.LibraryEntry.Table,
		schema.LibraryEntry.ReadingStatus, schema.LibraryEntry.ComicID,
		schema.CrawlerComicSource.Table, schema.CrawlerComicSource.SyncPriority,
		schema.CrawlerComicSource.SyncPriority, schema.CrawlerComicSource.LastSuccessAt, schema.CrawlerComicSource.ComicID,
		schema.CrawlerComicSource.SyncPriority, schema.CrawlerComicSource.LastSuccessAt,
		schema.CrawlerComicSource.SyncPriority,
		schema.CrawlerComicSource.SyncPriority, schema.CrawlerComicSource.LastSuccessAt, schema.CrawlerComicSource.ComicID,
		schema.CrawlerComicSource.SyncPriority, schema.CrawlerComicSource.LastSuccessAt,
		schema.CrawlerComicSource.ID,
	)

	now := time.Now()
	rows, err := r.pool.Query(ctx, query, now.Add(-StaleHotWindow), now.Add(-StaleWarmWindow), ReaderCountThreshold)
	if err != nil {
		return nil, dberr.WrapClassified(err, "demote_stale_sources")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, dberr.WrapClassified(err, "scan_demoted_source")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
