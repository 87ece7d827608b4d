// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package chapter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/taibuivan/yomira/internal/core/series"
)

// batchSize and batchTimeout bound each ingestion transaction: "Chapters are
// processed in batches of 50, each batch wrapped in a DB transaction
// with a 30s timeout."
const (
	batchSize    = 50
	batchTimeout = 30 * time.Second
)

// Service implements the ingestion transaction and the single-chapter path the chapter-ingest worker
// uses.
//
// A Service never holds a DB transaction across outbound
// I/O: apart from [Service.SyncOnDemand], which runs its caller-supplied
// fetch before opening any transaction, every parameter is
// already-fetched data, and every transaction this package opens spans
// only DB statements.
type Service struct {
	chapters Repository
	series   series.Repository
	logger   *slog.Logger
}

// NewService constructs a [Service].
func NewService(chapters Repository, seriesRepo series.Repository, logger *slog.Logger) *Service {
	return &Service{chapters: chapters, series: seriesRepo, logger: logger}
}

// SyncChapters upserts chapters for (seriesID, sourceName, sourceID),
// batching in groups of [batchSize]. It returns the
// number of chapters processed; an empty slice is a no-op returning 0.
//
// coverURL, if non-empty, is applied as a best-effort post-commit
// refresh of the series' best_cover_url.
func (s *Service) SyncChapters(ctx context.Context, seriesID, sourceName, sourceID string, chapters []ScrapedChapter, coverURL string) (int, error) {
	if len(chapters) == 0 {
		return 0, nil
	}

	src, err := s.series.FindSource(ctx, sourceName, sourceID)
	if err != nil {
		return 0, err
	}

	var maxNumber float64
	sawChapter := false
	for start := 0; start < len(chapters); start += batchSize {
		end := start + batchSize
		if end > len(chapters) {
			end = len(chapters)
		}
		batch := chapters[start:end]
		if err := s.syncBatch(ctx, src.ID, seriesID, batch); err != nil {
			return 0, err
		}
		for _, c := range batch {
			if !sawChapter || c.Number > maxNumber {
				maxNumber = c.Number
			}
			sawChapter = true
		}
	}

	count, err := s.countChapters(ctx, src.ID)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	if err := s.series.RecordSuccess(ctx, src.ID, count, now); err != nil {
		return 0, fmt.Errorf("chapter: record sync success for source %s: %w", src.ID, err)
	}
	if sawChapter {
		if err := s.series.BumpLatestChapter(ctx, seriesID, maxNumber); err != nil {
			return 0, fmt.Errorf("chapter: bump latest chapter for series %s: %w", seriesID, err)
		}
	}

	if coverURL != "" {
		if err := s.series.RefreshBestCoverURL(ctx, seriesID, coverURL); err != nil {
			s.logger.Warn("best_cover_refresh_failed",
				slog.String("series_id", seriesID), slog.Any("error", err))
		}
	}

	return len(chapters), nil
}

// syncBatch upserts one batch of chapters inside a single transaction.
func (s *Service) syncBatch(ctx context.Context, seriesSourceID, seriesID string, batch []ScrapedChapter) error {
	batchCtx, cancel := context.WithTimeout(ctx, batchTimeout)
	defer cancel()

	tx, err := s.chapters.Begin(batchCtx)
	if err != nil {
		return fmt.Errorf("chapter: begin batch transaction: %w", err)
	}
	defer tx.Rollback(batchCtx)

	for _, c := range batch {
		chapterID, _, err := s.chapters.UpsertLogicalChapter(batchCtx, tx, seriesID, c)
		if err != nil {
			return err
		}
		if err := s.chapters.UpsertChapterSource(batchCtx, tx, seriesSourceID, chapterID, c); err != nil {
			return err
		}
	}

	if err := tx.Commit(batchCtx); err != nil {
		return fmt.Errorf("chapter: commit batch: %w", err)
	}
	return nil
}

func (s *Service) countChapters(ctx context.Context, seriesSourceID string) (int, error) {
	tx, err := s.chapters.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("chapter: begin count transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	count, err := s.chapters.CountChapters(ctx, tx, seriesSourceID)
	if err != nil {
		return 0, err
	}
	return count, tx.Commit(ctx)
}

// SyncOnDemand runs fetch (the outbound scrape) under the series'
// advisory lock, then merges its chapters through [Service.SyncChapters].
//
// performed is false when another session already holds the lock: a
// concurrent on-demand sync for the same series is in flight, so this
// one returns without any outbound I/O rather than racing it. The lock
// is released on success and failure paths alike, before this function
// returns.
func (s *Service) SyncOnDemand(ctx context.Context, seriesID, sourceName, sourceID string, fetch func(context.Context) ([]ScrapedChapter, string, error)) (count int, performed bool, err error) {
	release, acquired, err := s.chapters.AcquireSeriesLock(ctx, seriesID)
	if err != nil {
		return 0, false, err
	}
	if !acquired {
		s.logger.Info("on_demand_sync_skipped_concurrent",
			slog.String("series_id", seriesID))
		return 0, false, nil
	}
	defer release()

	chapters, coverURL, err := fetch(ctx)
	if err != nil {
		return 0, true, err
	}

	count, err = s.SyncChapters(ctx, seriesID, sourceName, sourceID, chapters, coverURL)
	return count, true, err
}

// IngestOne upserts a single chapter (the shape the chapter-ingest
// worker calls with) and reports whether a brand-new [LogicalChapter]
// row was created. The caller uses that flag to gate a
// notification-fanout enqueue: a replayed job that merges onto an
// already-ingested chapter must never trigger a second round of
// notifications.
func (s *Service) IngestOne(ctx context.Context, seriesID, sourceName, sourceID string, c ScrapedChapter) (chapterID string, inserted bool, err error) {
	src, err := s.series.FindSource(ctx, sourceName, sourceID)
	if err != nil {
		return "", false, err
	}
	return s.ingestOne(ctx, seriesID, src.ID, c)
}

// IngestOneBySourceID is [IngestOne] for callers that already hold the
// internal [series.Source] ID; the chapter-ingest worker's payload carries
// it directly, so there's no need to round-trip through
// [series.Repository.FindSource] a second time.
func (s *Service) IngestOneBySourceID(ctx context.Context, seriesID, seriesSourceID string, c ScrapedChapter) (chapterID string, inserted bool, err error) {
	return s.ingestOne(ctx, seriesID, seriesSourceID, c)
}

func (s *Service) ingestOne(ctx context.Context, seriesID, seriesSourceID string, c ScrapedChapter) (chapterID string, inserted bool, err error) {
	batchCtx, cancel := context.WithTimeout(ctx, batchTimeout)
	defer cancel()

	tx, err := s.chapters.Begin(batchCtx)
	if err != nil {
		return "", false, fmt.Errorf("chapter: begin ingest transaction: %w", err)
	}
	defer tx.Rollback(batchCtx)

	chapterID, inserted, err = s.chapters.UpsertLogicalChapter(batchCtx, tx, seriesID, c)
	if err != nil {
		return "", false, err
	}
	if err := s.chapters.UpsertChapterSource(batchCtx, tx, seriesSourceID, chapterID, c); err != nil {
		return "", false, err
	}
	if err := tx.Commit(batchCtx); err != nil {
		return "", false, fmt.Errorf("chapter: commit ingest: %w", err)
	}

	if err := s.series.BumpLatestChapter(ctx, seriesID, c.Number); err != nil {
		return chapterID, inserted, fmt.Errorf("chapter: bump latest chapter for series %s: %w", seriesID, err)
	}
	return chapterID, inserted, nil
}
