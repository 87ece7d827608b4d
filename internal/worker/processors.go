// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	chaptercore "github.com/taibuivan/yomira/internal/core/chapter"
	"github.com/taibuivan/yomira/internal/core/series"
	"github.com/taibuivan/yomira/internal/platform/apperr"
	"github.com/taibuivan/yomira/internal/queue"
	"github.com/taibuivan/yomira/internal/scraper"
	"github.com/taibuivan/yomira/pkg/slug"
	"github.com/taibuivan/yomira/pkg/uuidv7"
)

// notificationJobPriority is the lane fanout jobs enqueue at; delivery
// jobs re-prioritize per tier when the fanout processor chunks them.
const notificationJobPriority = queue.PriorityStandard

// uuidv7New generates entity IDs, a var so tests can pin deterministic
// values.
var uuidv7New = uuidv7.New

// CheckSource fetches a source's current chapter list via the scraper
// registry (which itself handles the circuit breaker bookkeeping) and either enqueues a canonicalize job (search-triggered,
// no known series binding yet) or ingests directly into an already-bound
// series (scheduled sync).
func (p *Processors) CheckSource(ctx context.Context, raw []byte) error {
	var in CheckSourcePayload
	if err := json.Unmarshal(raw, &in); err != nil {
		return fmt.Errorf("worker: unmarshal check-source payload: %w", err)
	}

	source := scraper.Name(in.SourceName)
	if err := p.deps.RateLimit.Acquire(ctx, in.SourceName, 0); err != nil {
		return err
	}

	// Search-triggered jobs carry the free-text query as a stand-in
	// provider ID: the scraper interface only exposes per-series
	// scraping by a known ID, not a multi-hit search verb, so this
	// treats the query as a single candidate lookup.
	sourceID := in.SourceID
	if sourceID == "" {
		sourceID = in.Query
	}

	scraped, err := p.deps.Scrapers.Scrape(ctx, source, sourceID)
	if err != nil {
		return p.handleCheckSourceFailure(ctx, in, err)
	}

	chapters := make([]CanonicalizeChapter, 0, len(scraped.Chapters))
	for _, c := range scraped.Chapters {
		chapters = append(chapters, CanonicalizeChapter{
			Number:      c.Number,
			Title:       c.Title,
			PublishedAt: c.PublishedAt,
			SourceURL:   c.SourceURL,
		})
	}

	if in.Trigger == TriggerSync && in.SeriesID != "" {
		return p.ingestSyncedChapters(ctx, in, scraped, chapters)
	}

	payload := CanonicalizePayload{
		SourceName:    in.SourceName,
		SourceID:      scraped.SourceID,
		Title:         scraped.Title,
		CoverURL:      scraped.CoverURL,
		ContentRating: series.ContentRatingSafe,
		Chapters:      chapters,
	}
	_, err = p.deps.Queues.Canonicalize.Add(ctx, KindCanonicalize, payload, queue.Options{
		JobID:    "canon_" + in.SourceName + "_" + scraped.SourceID,
		Priority: queue.PriorityStandard,
	})
	return err
}

// ingestSyncedChapters is the scheduled-sync branch of CheckSource: the
// series/source binding already exists, so the scrape result can go
// straight through [chapter.Service.SyncChapters] instead of round
// tripping through canonicalize.
func (p *Processors) ingestSyncedChapters(ctx context.Context, in CheckSourcePayload, scraped scraper.ScrapedSeries, _ []CanonicalizeChapter) error {
	batch := make([]chaptercore.ScrapedChapter, 0, len(scraped.Chapters))
	for _, c := range scraped.Chapters {
		batch = append(batch, toChapterCoreScraped(c))
	}

	_, err := p.deps.Chapters.SyncChapters(ctx, in.SeriesID, in.SourceName, scraped.SourceID, batch, scraped.CoverURL)
	if err != nil {
		return p.handleCheckSourceFailure(ctx, in, err)
	}
	return nil
}

// handleCheckSourceFailure records a non-retryable sync failure against
// the source's failure count
// before propagating the error to the pool for retry/dead-letter
// classification. A retryable failure is left alone: the pool retries it
// without touching source health, since it hasn't actually failed yet.
func (p *Processors) handleCheckSourceFailure(ctx context.Context, in CheckSourcePayload, cause error) error {
	if in.Trigger == TriggerSync && !isRetryable(cause) {
		if rfErr := p.deps.Series.RecordFailure(ctx, in.SourceID, time.Now()); rfErr != nil {
			p.deps.Logger.Error("record_source_failure_failed",
				slog.String("source_id", in.SourceID), slog.Any("error", rfErr))
		}
	}
	return cause
}

// Canonicalize matches a freshly scraped hit against an existing
// [series.Series] by normalized title, creating one if no match exists,
// then binds (or confirms) the [series.Source] and syncs its chapters.
func (p *Processors) Canonicalize(ctx context.Context, raw []byte) error {
	var in CanonicalizePayload
	if err := json.Unmarshal(raw, &in); err != nil {
		return fmt.Errorf("worker: unmarshal canonicalize payload: %w", err)
	}

	titleSlug := slug.From(in.Title)
	match, err := p.deps.Series.FindByTitleSlug(ctx, titleSlug)
	if err != nil && !isNotFound(err) {
		return err
	}
	if match == nil {
		match = &series.Series{
			ID:            uuidv7New(),
			Title:         in.Title,
			Type:          "manga",
			ContentRating: in.ContentRating,
			BestCoverURL:  in.CoverURL,
		}
		if err := p.deps.Series.CreateSeries(ctx, match); err != nil {
			return err
		}
	}

	src, err := p.deps.Series.FindSource(ctx, in.SourceName, in.SourceID)
	if err != nil && !isNotFound(err) {
		return err
	}
	if src == nil {
		src = &series.Source{
			ID:         uuidv7New(),
			SeriesID:   match.ID,
			SourceName: in.SourceName,
			SourceID:   in.SourceID,
		}
		if err := p.deps.Series.CreateSource(ctx, src); err != nil {
			return err
		}
	}

	batch := make([]chaptercore.ScrapedChapter, 0, len(in.Chapters))
	for _, c := range in.Chapters {
		batch = append(batch, toChapterCoreScraped(scraper.ScrapedChapter{
			Number: c.Number, Title: c.Title, PublishedAt: c.PublishedAt, SourceURL: c.SourceURL,
		}))
	}

	_, err = p.deps.Chapters.SyncChapters(ctx, match.ID, in.SourceName, in.SourceID, batch, in.CoverURL)
	return err
}

// ChapterIngest merges a single already-scraped chapter into a known
// series/source binding, then enqueues a
// notification-fanout job; but only when the merge actually inserted a
// new [chapter.LogicalChapter] row, so a replayed job never double
// fans-out.
func (p *Processors) ChapterIngest(ctx context.Context, raw []byte) error {
	var in ChapterIngestPayload
	if err := json.Unmarshal(raw, &in); err != nil {
		return fmt.Errorf("worker: unmarshal chapter-ingest payload: %w", err)
	}

	c := chaptercore.ScrapedChapter{
		Number:      in.Number,
		Title:       nonEmptyPtr(in.Title),
		URL:         in.SourceURL,
		PublishedAt: unixPtrToTime(in.PublishedAt),
	}

	logicalChapterID, inserted, err := p.deps.Chapters.IngestOneBySourceID(ctx, in.SeriesID, in.SeriesSourceID, c)
	if err != nil {
		return err
	}
	if !inserted {
		return nil
	}

	s, err := p.deps.Series.FindByID(ctx, in.SeriesID)
	if err != nil {
		return err
	}

	fanout := NotificationFanoutPayload{
		SeriesID:         in.SeriesID,
		LogicalChapterID: logicalChapterID,
		ChapterNumber:    in.Number,
		SourceName:       in.SourceName,
		ContentRating:    s.ContentRating,
	}
	_, err = p.deps.Queues.NotificationFanout.Add(ctx, KindNotificationFanout, fanout, queue.Options{
		JobID:    "fanout_" + logicalChapterID,
		Priority: notificationJobPriority,
	})
	return err
}

// NotificationFanout selects the candidate subscribers for a newly
// ingested chapter and chunks them into notification-delivery jobs,
// splitting premium subscribers onto their own higher-priority queue.
func (p *Processors) NotificationFanout(ctx context.Context, raw []byte) error {
	var in NotificationFanoutPayload
	if err := json.Unmarshal(raw, &in); err != nil {
		return fmt.Errorf("worker: unmarshal notification-fanout payload: %w", err)
	}

	chunks, err := p.deps.Notify.Fanout(ctx, in.SeriesID, in.ChapterNumber, in.ContentRating)
	if err != nil {
		return err
	}

	for i, chunk := range chunks {
		q := p.deps.Queues.NotificationDelivery
		priority := queue.PriorityStandard
		if chunk.IsPremium {
			q = p.deps.Queues.NotificationDeliveryPremium
			priority = queue.PriorityCritical
		}

		payload := NotificationDeliveryPayload{
			SeriesID:         in.SeriesID,
			LogicalChapterID: in.LogicalChapterID,
			ChapterNumber:    in.ChapterNumber,
			SourceName:       in.SourceName,
			UserIDs:          chunk.UserIDs,
			IsPremium:        chunk.IsPremium,
		}
		jobID := fmt.Sprintf("deliver_%s_%d", in.LogicalChapterID, i)
		if _, err := q.Add(ctx, KindNotificationDelivery, payload, queue.Options{JobID: jobID, Priority: priority}); err != nil {
			return err
		}
	}
	return nil
}

// NotificationDelivery re-checks read status and inserts one
// notification row per still-unread candidate.
func (p *Processors) NotificationDelivery(ctx context.Context, raw []byte) error {
	var in NotificationDeliveryPayload
	if err := json.Unmarshal(raw, &in); err != nil {
		return fmt.Errorf("worker: unmarshal notification-delivery payload: %w", err)
	}

	_, err := p.deps.Notify.Deliver(ctx, in.SeriesID, in.LogicalChapterID, in.ChapterNumber, in.SourceName, in.UserIDs)
	return err
}

func toChapterCoreScraped(c scraper.ScrapedChapter) chaptercore.ScrapedChapter {
	return chaptercore.ScrapedChapter{
		Number:      c.Number,
		Title:       nonEmptyPtr(c.Title),
		URL:         c.SourceURL,
		PublishedAt: unixPtrToTime(c.PublishedAt),
	}
}

func nonEmptyPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func unixPtrToTime(unix *int64) *time.Time {
	if unix == nil {
		return nil
	}
	t := time.Unix(*unix, 0).UTC()
	return &t
}

// isNotFound reports whether err is the repository's not-found kind,
// which canonicalize treats as "create it" rather than a failure.
func isNotFound(err error) bool {
	ae := apperr.As(err)
	return ae != nil && ae.Code == "NOT_FOUND"
}

// isRetryable classifies a processor failure using the scraper's own
// [scraper.Kind] taxonomy when available, falling back to
// [apperr.Retryable] for errors that never touched the scraper (rate
// limiter deadlines, repository failures already wrapped as
// [apperr.AppError] by internal/platform/dberr).
func isRetryable(err error) bool {
	var scrapeErr *scraper.ScrapeError
	if errors.As(err, &scrapeErr) {
		return scrapeErr.Kind.Retryable()
	}
	return apperr.Retryable(err)
}
