// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package series defines the canonical-work aggregate the ingestion
backbone tracks, and its per-provider source bindings.

Series carries the monotonic latest_chapter/total_follows invariants
every ingestion path must respect; Source carries the sync-priority
state the scheduler reads and mutates.
*/
package series

import "time"

// ContentRating classifies the audience suitability of a series. This
// extends the catalogue's three-value comic.ContentRating with the
// fourth tier the ingestion backbone's upstream providers report
// ("pornographic", distinct from "explicit").
type ContentRating string

const (
	ContentRatingSafe         ContentRating = "safe"
	ContentRatingSuggestive   ContentRating = "suggestive"
	ContentRatingErotica      ContentRating = "erotica"
	ContentRatingPornographic ContentRating = "pornographic"
)

// IsValid reports whether r is a recognised [ContentRating].
func (r ContentRating) IsValid() bool {
	switch r {
	case ContentRatingSafe, ContentRatingSuggestive, ContentRatingErotica, ContentRatingPornographic:
		return true
	}
	return false
}

// SyncPriority tiers how often a [Source] is checked for updates.
type SyncPriority string

const (
	PriorityHot  SyncPriority = "HOT"
	PriorityWarm SyncPriority = "WARM"
	PriorityCold SyncPriority = "COLD"
)

// SyncInterval returns the check interval for a priority tier.
func (p SyncPriority) SyncInterval() time.Duration {
	switch p {
	case PriorityHot:
		return 15 * time.Minute
	case PriorityWarm:
		return 4 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Series is the canonical work the ingestion backbone tracks across
// every external provider binding.
//
// Invariants: LatestChapter never decreases; TotalFollows is never
// negative. Both are enforced at the repository layer, not here; the
// struct itself is a plain data holder the way [comic.Comic] is.
type Series struct {
	ID            string
	Title         string
	Type          string
	ContentRating ContentRating
	LatestChapter float64
	TotalFollows  int64
	BestCoverURL  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Source is one external provider's binding to a [Series].
type Source struct {
	ID                 string
	SeriesID           string
	SourceName         string
	SourceID           string
	SourceURL          string
	TrustScore         float64
	SyncPriority       SyncPriority
	LastSuccessAt      *time.Time
	LastCheckedAt      *time.Time
	NextCheckAt        *time.Time
	FailureCount       int
	SourceChapterCount int
	CreatedAt          time.Time
}

// ReaderCountThreshold is the reader count above which a [Source] is
// promoted to HOT by priority maintenance.
const ReaderCountThreshold = 100

// StaleHotWindow and StaleWarmWindow are the last_success_at ages that
// demote a source a tier.
const (
	StaleHotWindow  = 24 * time.Hour
	StaleWarmWindow = 7 * 24 * time.Hour
)

// MaxSyncEnqueueBatch bounds how many due sources one scheduler tick
// advances and enqueues.
const MaxSyncEnqueueBatch = 500
