// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package library

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/yomira/internal/core/series"
	"github.com/taibuivan/yomira/internal/platform/database/schema"
	"github.com/taibuivan/yomira/internal/platform/dberr"
	"github.com/taibuivan/yomira/pkg/uuid"
)

// repository implements [Repository] using pgx, following the same
// dynamic-column conventions as internal/core/series's store.
type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL-backed [Repository].
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// FindFanoutCandidates implements the notification-fanout filter:
// library entries with status != dropped, notify_new_chapters = true,
// content-rating within the user's safe-browsing cap, and no matching
// read record.
//
// The read filter is a NOT EXISTS against library.chapterread joined
// through core.logicalchapter (the table this pipeline writes) on
// (comicid, chapternumber). Keying on the series and number rather than
// one specific logical-chapter row is deliberate: a read recorded
// against any translation's chapter with this number counts as having
// read them all.
func (r *repository) FindFanoutCandidates(ctx context.Context, seriesID string, chapterNumber float64, rating series.ContentRating) ([]Subscriber, error) {
	query := fmt.Sprintf(`
		SELECT e.%s, a.%s
		FROM %s e
		JOIN %s a ON a.%s = e.%s
		LEFT JOIN %s p ON p.%s = e.%s
		WHERE e.%s = $1
		  AND e.%s != 'dropped'
		  AND e.%s = true
		  AND (p.%s IS NOT TRUE OR $3 = 'safe')
		  AND NOT EXISTS (
		    SELECT 1
		    FROM %s cr
		    JOIN %s lc ON lc.%s = cr.%s
		    WHERE cr.%s = e.%s
		      AND lc.%s = e.%s
		      AND lc.%s = $2
		  )
	`,
		schema.LibraryEntry.UserID, schema.UserAccount.Role,
		schema.LibraryEntry.Table,
		schema.UserAccount.Table, schema.UserAccount.ID, schema.LibraryEntry.UserID,
		schema.UserPreferences.Table, schema.UserPreferences.UserID, schema.LibraryEntry.UserID,
		schema.LibraryEntry.ComicID,
		schema.LibraryEntry.ReadingStatus,
		schema.LibraryEntry.NotifyNewChapters,
		schema.UserPreferences.HideNSFW,
		schema.CoreUserRead.Table,
		schema.CoreLogicalChapter.Table, schema.CoreLogicalChapter.ID, schema.CoreUserRead.ChapterID,
		schema.CoreUserRead.UserID, schema.LibraryEntry.UserID,
		schema.CoreLogicalChapter.ComicID, schema.LibraryEntry.ComicID,
		schema.CoreLogicalChapter.ChapterNumber,
	)

	rows, err := r.pool.Query(ctx, query, seriesID, chapterNumber, string(rating))
	if err != nil {
		return nil, dberr.WrapClassified(err, "find_fanout_candidates")
	}
	defer rows.Close()

	var out []Subscriber
	for rows.Next() {
		var sub Subscriber
		var role string
		if err := rows.Scan(&sub.UserID, &role); err != nil {
			return nil, dberr.WrapClassified(err, "scan_fanout_candidate")
		}
		sub.Tier = tierForRole(role)
		out = append(out, sub)
	}
	return out, rows.Err()
}

// tierForRole maps the account role users.account carries today onto the
// coarse free/premium split notification-delivery prioritizes by. Subscription lifecycle
// itself is out of scope; this only reads the flag.
func tierForRole(role string) string {
	if role == "premium" || role == "admin" {
		return "premium"
	}
	return "free"
}

// Upsert creates or updates a user's subscription to a series. Both the
// entry write and the conditional follow-count bump commit in one
// transaction; `xmax = 0` distinguishes the insert (count +1) from an
// update of an existing subscription (count untouched), so subscribing
// twice increases the count exactly once.
func (r *repository) Upsert(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.New()
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (%s, %s) DO UPDATE SET
			%s = EXCLUDED.%s,
			%s = EXCLUDED.%s,
			%s = EXCLUDED.%s,
			%s = now()
		RETURNING %s, %s, %s, %s, %s, %s, %s, %s, (xmax = 0) AS inserted
	`,
		schema.LibraryEntry.Table,
		schema.LibraryEntry.ID, schema.LibraryEntry.UserID, schema.LibraryEntry.ComicID,
		schema.LibraryEntry.ReadingStatus, schema.LibraryEntry.NotifyNewChapters,
		schema.LibraryEntry.PreferredSource, schema.LibraryEntry.CreatedAt, schema.LibraryEntry.UpdatedAt,
		schema.LibraryEntry.UserID, schema.LibraryEntry.ComicID,
		schema.LibraryEntry.ReadingStatus, schema.LibraryEntry.ReadingStatus,
		schema.LibraryEntry.NotifyNewChapters, schema.LibraryEntry.NotifyNewChapters,
		schema.LibraryEntry.PreferredSource, schema.LibraryEntry.PreferredSource,
		schema.LibraryEntry.UpdatedAt,
		schema.LibraryEntry.ID, schema.LibraryEntry.UserID, schema.LibraryEntry.ComicID,
		schema.LibraryEntry.ReadingStatus, schema.LibraryEntry.NotifyNewChapters,
		schema.LibraryEntry.PreferredSource, schema.LibraryEntry.CreatedAt, schema.LibraryEntry.UpdatedAt,
	)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Entry{}, dberr.WrapClassified(err, "begin_library_upsert")
	}
	defer tx.Rollback(ctx)

	var out Entry
	var inserted bool
	err = tx.QueryRow(ctx, query, e.ID, e.UserID, e.SeriesID, e.Status, e.NotifyNewChapters, e.PreferredSource).Scan(
		&out.ID, &out.UserID, &out.SeriesID, &out.Status, &out.NotifyNewChapters,
		&out.PreferredSource, &out.CreatedAt, &out.UpdatedAt, &inserted,
	)
	if err != nil {
		return Entry{}, dberr.WrapClassified(err, "upsert_library_entry")
	}

	if inserted {
		bump := fmt.Sprintf("UPDATE %s SET %s = %s + 1 WHERE %s = $1",
			schema.CoreComic.Table, schema.CoreComic.FollowCount,
			schema.CoreComic.FollowCount, schema.CoreComic.ID)
		if _, err := tx.Exec(ctx, bump, e.SeriesID); err != nil {
			return Entry{}, dberr.WrapClassified(err, "bump_follow_count")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Entry{}, dberr.WrapClassified(err, "commit_library_upsert")
	}
	return out, nil
}

// Remove deletes the subscription and, only when a row was actually
// deleted, decrements the series' follow count floored at zero.
func (r *repository) Remove(ctx context.Context, userID, seriesID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return dberr.WrapClassified(err, "begin_library_remove")
	}
	defer tx.Rollback(ctx)

	del := fmt.Sprintf("DELETE FROM %s WHERE %s = $1 AND %s = $2",
		schema.LibraryEntry.Table, schema.LibraryEntry.UserID, schema.LibraryEntry.ComicID)
	tag, err := tx.Exec(ctx, del, userID, seriesID)
	if err != nil {
		return dberr.WrapClassified(err, "remove_library_entry")
	}

	if tag.RowsAffected() > 0 {
		drop := fmt.Sprintf("UPDATE %s SET %s = GREATEST(%s - 1, 0) WHERE %s = $1",
			schema.CoreComic.Table, schema.CoreComic.FollowCount,
			schema.CoreComic.FollowCount, schema.CoreComic.ID)
		if _, err := tx.Exec(ctx, drop, seriesID); err != nil {
			return dberr.WrapClassified(err, "drop_follow_count")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return dberr.WrapClassified(err, "commit_library_remove")
	}
	return nil
}

// FindByUserAndSeries returns the subscription for (userID, seriesID).
func (r *repository) FindByUserAndSeries(ctx context.Context, userID, seriesID string) (*Entry, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1 AND %s = $2
	`,
		schema.LibraryEntry.ID, schema.LibraryEntry.UserID, schema.LibraryEntry.ComicID,
		schema.LibraryEntry.ReadingStatus, schema.LibraryEntry.NotifyNewChapters,
		schema.LibraryEntry.PreferredSource, schema.LibraryEntry.CreatedAt, schema.LibraryEntry.UpdatedAt,
		schema.LibraryEntry.Table,
		schema.LibraryEntry.UserID, schema.LibraryEntry.ComicID,
	)

	var e Entry
	err := r.pool.QueryRow(ctx, query, userID, seriesID).Scan(
		&e.ID, &e.UserID, &e.SeriesID, &e.Status, &e.NotifyNewChapters,
		&e.PreferredSource, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, dberr.WrapClassified(err, "find_library_entry")
	}
	return &e, nil
}
