// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package chapter implements the ingestion backbone's source-agnostic
chapter identity and its per-provider bindings.

A [LogicalChapter] is unique per (series, chapter number) and is shared
across every external source that reports it; a [ChapterSource] is the
per-provider link carrying the URL, scanlation group, and language a
single source attaches to that chapter. [Service.SyncChapters] is the
transaction that keeps both in sync.
*/
package chapter

import "time"

// LogicalChapter is the source-agnostic chapter identity for a series,
// unique per (series_id, chapter_number). ChapterTitle, VolumeNumber and
// PublishedAt are pointers so a null-safe merge can distinguish "absent"
// from "explicitly cleared": an upsert must never overwrite a previously
// non-null field with null.
type LogicalChapter struct {
	ID            string
	SeriesID      string
	ChapterNumber float64
	ChapterTitle  *string
	VolumeNumber  *string
	PublishedAt   *time.Time
	FirstSeenAt   time.Time
}

// ChapterSource is one external provider's binding of a [LogicalChapter],
// unique per (series_source_id, chapter_id).
type ChapterSource struct {
	ID                string
	SeriesSourceID    string
	ChapterID         string
	ChapterURL        string
	ChapterTitle      *string
	ScanlationGroup   *string
	Language          string
	SourcePublishedAt *time.Time
	DiscoveredAt      time.Time
	IsAvailable       bool
}

// ScrapedChapter is one chapter entry as reported by an external source,
// the input unit [Service.SyncChapters] consumes. It deliberately
// mirrors scraper.ScrapedChapter's shape without importing that package,
// so this remains a leaf package any caller (worker, test, backfill
// script) can construct without pulling in the scraper/HTTP stack.
type ScrapedChapter struct {
	Number      float64
	Title       *string
	URL         string
	PublishedAt *time.Time
}
