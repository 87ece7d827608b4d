// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package notify

import "context"

// Repository is the persistence contract for [Notification]'s
// dedup-enforced insert.
type Repository interface {
	// DeliverBatch inserts one notification per (userID, seriesID,
	// logicalChapterID, TypeNewChapter) tuple not already present,
	// silently skipping duplicates per the uniqueness constraint. Returns the number of rows actually inserted.
	DeliverBatch(ctx context.Context, seriesID, logicalChapterID string, userIDs []string, metadata map[string]any) (inserted int, err error)

	// FindUnreadUserIDs filters candidateUserIDs down to those with no
	// library.chapterread record for (seriesID, chapterNumber); the
	// delivery-time re-check, closing the
	// fan-out/delivery latency gap.
	FindUnreadUserIDs(ctx context.Context, seriesID string, chapterNumber float64, candidateUserIDs []string) ([]string, error)
}
