// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package worker

import "github.com/taibuivan/yomira/internal/core/series"

// CheckSourceTrigger is "why this job exists": either a scheduled sync of
// a known [series.Source] binding, or a search-triggered discovery probe
// for a free-text query with no existing binding yet.
type CheckSourceTrigger string

const (
	TriggerSync   CheckSourceTrigger = "sync"
	TriggerSearch CheckSourceTrigger = "search"
)

// CheckSourcePayload is the check-source job body.
//
// SourceID is the provider-local identifier the scheduler already knows
// from the [series.Source] row it's syncing; it's empty on a
// search-triggered job, where Query stands in for it instead. The
// scraper package exposes no distinct "search" verb, only per-series
// scraping by a provider ID, so a search-mode check-source job scrapes
// Query directly as if it were one.
type CheckSourcePayload struct {
	Trigger    CheckSourceTrigger `json:"trigger"`
	SourceName string             `json:"source_name"`
	SourceID   string             `json:"source_id,omitempty"`
	Query      string             `json:"query,omitempty"`
	SeriesID   string             `json:"series_id,omitempty"`
}

// CanonicalizePayload is the canonicalize job body: a freshly scraped hit that needs matching against an existing
// [series.Series], or a brand-new one created for it.
type CanonicalizePayload struct {
	SourceName    string                `json:"source_name"`
	SourceID      string                `json:"source_id"`
	Title         string                `json:"title"`
	CoverURL      string                `json:"cover_url,omitempty"`
	ContentRating series.ContentRating  `json:"content_rating"`
	Chapters      []CanonicalizeChapter `json:"chapters"`
}

// CanonicalizeChapter is one chapter entry carried through a
// CanonicalizePayload, a transport-local mirror of
// [scraper.ScrapedChapter] so this package doesn't need to import
// scraper just to describe its job bodies.
type CanonicalizeChapter struct {
	Number      float64 `json:"number"`
	Title       string  `json:"title,omitempty"`
	PublishedAt *int64  `json:"published_at,omitempty"`
	SourceURL   string  `json:"source_url"`
}

// ChapterIngestPayload is the chapter-ingest job body: a single chapter to merge into an already-bound series/source.
type ChapterIngestPayload struct {
	SeriesID       string  `json:"series_id"`
	SeriesSourceID string  `json:"series_source_id"`
	SourceName     string  `json:"source_name"`
	Number         float64 `json:"number"`
	Title          string  `json:"title,omitempty"`
	PublishedAt    *int64  `json:"published_at,omitempty"`
	SourceURL      string  `json:"source_url"`
}

// NotificationFanoutPayload is the notification-fanout job body.
type NotificationFanoutPayload struct {
	SeriesID         string               `json:"series_id"`
	LogicalChapterID string               `json:"logical_chapter_id"`
	ChapterNumber    float64              `json:"chapter_number"`
	SourceName       string               `json:"source_name"`
	ContentRating    series.ContentRating `json:"content_rating"`
}

// NotificationDeliveryPayload is the notification-delivery job body
//: one chunk of candidate user IDs a fanout job
// produced.
type NotificationDeliveryPayload struct {
	SeriesID         string   `json:"series_id"`
	LogicalChapterID string   `json:"logical_chapter_id"`
	ChapterNumber    float64  `json:"chapter_number"`
	SourceName       string   `json:"source_name"`
	UserIDs          []string `json:"user_ids"`
	IsPremium        bool     `json:"is_premium"`
}
