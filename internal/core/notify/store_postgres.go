// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package notify

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/yomira/internal/platform/database/schema"
	"github.com/taibuivan/yomira/internal/platform/dberr"
)

// repository implements [Repository] using pgx, following the same
// dynamic-column conventions as internal/core/library's store.
type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL-backed [Repository].
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// DeliverBatch bulk-inserts one row per userID, relying on the
// uniqueness constraint over (user_id, logical_chapter_id, type) to
// silently skip rows already delivered.
// ON CONFLICT DO NOTHING means this is safe to call twice with the same
// userIDs.
func (r *repository) DeliverBatch(ctx context.Context, seriesID, logicalChapterID string, userIDs []string, metadata map[string]any) (int, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}

	// Row IDs are generated per-row in SQL; a single app-side UUID would
	// collide on the primary key for any batch larger than one user.
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s)
		SELECT gen_random_uuid(), uid, $1, $2, $3, $4, now()
		FROM unnest($5::text[]) AS uid
		ON CONFLICT (%s, %s, %s) DO NOTHING
	`,
		schema.NotifyNotification.Table,
		schema.NotifyNotification.ID, schema.NotifyNotification.UserID,
		schema.NotifyNotification.Type, schema.NotifyNotification.ComicID,
		schema.NotifyNotification.LogicalChapterID, schema.NotifyNotification.Metadata,
		schema.NotifyNotification.CreatedAt,
		schema.NotifyNotification.UserID, schema.NotifyNotification.LogicalChapterID,
		schema.NotifyNotification.Type,
	)

	tag, err := r.pool.Exec(ctx, query, TypeNewChapter, seriesID, logicalChapterID, metadata, userIDs)
	if err != nil {
		return 0, dberr.WrapClassified(err, "deliver_notification_batch")
	}
	return int(tag.RowsAffected()), nil
}

// FindUnreadUserIDs filters candidateUserIDs down to those with no
// library.chapterread record for (seriesID, chapterNumber); the
// delivery-time re-check, keyed the same way as the fan-out filter in
// internal/core/library (see that package's note on
// (seriesID, chapterNumber) vs per-logical-chapter keying).
//
// The read set resolves through core.logicalchapter, the table this
// pipeline actually writes; a read against any logical chapter with the
// same series and number counts.
func (r *repository) FindUnreadUserIDs(ctx context.Context, seriesID string, chapterNumber float64, candidateUserIDs []string) ([]string, error) {
	if len(candidateUserIDs) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT uid
		FROM unnest($1::text[]) AS uid
		WHERE NOT EXISTS (
			SELECT 1
			FROM %s cr
			JOIN %s lc ON lc.%s = cr.%s
			WHERE cr.%s = uid
			  AND lc.%s = $2
			  AND lc.%s = $3
		)
	`,
		schema.CoreUserRead.Table,
		schema.CoreLogicalChapter.Table, schema.CoreLogicalChapter.ID, schema.CoreUserRead.ChapterID,
		schema.CoreUserRead.UserID,
		schema.CoreLogicalChapter.ComicID,
		schema.CoreLogicalChapter.ChapterNumber,
	)

	rows, err := r.pool.Query(ctx, query, candidateUserIDs, seriesID, chapterNumber)
	if err != nil {
		return nil, dberr.WrapClassified(err, "find_unread_users")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, dberr.WrapClassified(err, "scan_unread_user")
		}
		out = append(out, uid)
	}
	return out, rows.Err()
}
