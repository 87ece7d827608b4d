// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package library

import (
	"context"

	"github.com/taibuivan/yomira/internal/core/series"
)

// Repository is the persistence contract for [Entry] and the
// notification-fanout candidate query.
type Repository interface {
	// FindFanoutCandidates returns subscribers eligible for a
	// notification about a newly ingested chapter of seriesID at
	// chapterNumber: status != dropped,
	// notify_new_chapters = true, content-rating within the user's
	// safe-browsing cap, and not already read.
	//
	// The read filter keys on (seriesID, chapterNumber) rather than a
	// specific chapter row id: a user who read any translation of a
	// numbered chapter is treated as having read them all.
	FindFanoutCandidates(ctx context.Context, seriesID string, chapterNumber float64, rating series.ContentRating) ([]Subscriber, error)

	// Upsert creates or updates a user's subscription to a series. The
	// series' follow count is incremented only when a new row is
	// inserted, so re-subscribing (or updating an existing entry) never
	// double-counts a follower.
	Upsert(ctx context.Context, e Entry) (Entry, error)

	// Remove deletes the (userID, seriesID) subscription and decrements
	// the series' follow count, floored at zero. Removing an entry that
	// doesn't exist is a no-op and leaves the count untouched.
	Remove(ctx context.Context, userID, seriesID string) error

	// FindByUserAndSeries returns the entry for (userID, seriesID), or
	// nil if the user is not subscribed.
	FindByUserAndSeries(ctx context.Context, userID, seriesID string) (*Entry, error)
}
