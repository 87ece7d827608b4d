// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taibuivan/yomira/internal/core/library"
	"github.com/taibuivan/yomira/internal/core/series"
)

// FanoutChunkSize is how many candidate user IDs one notification-delivery
// job carries.
const FanoutChunkSize = 500

// Chunk is one partition of fan-out candidates, already split by tier so
// the caller can route premium/free users to separate delivery queues.
type Chunk struct {
	IsPremium bool
	UserIDs   []string
}

// Service implements the fan-out and delivery halves of the
// notification pipeline, the same service-over-narrow-repository shape
// as [chapter.Service].
type Service struct {
	library library.Repository
	notify  Repository
	logger  *slog.Logger
}

// NewService constructs a [Service].
func NewService(libraryRepo library.Repository, notifyRepo Repository, logger *slog.Logger) *Service {
	return &Service{library: libraryRepo, notify: notifyRepo, logger: logger}
}

// Fanout selects notification candidates for a newly ingested chapter of
// seriesID at chapterNumber and partitions them into tier-chunked
// [Chunk]s of at most [FanoutChunkSize] users each; the shape the
// notification-fanout worker enqueues into notification-delivery jobs.
func (s *Service) Fanout(ctx context.Context, seriesID string, chapterNumber float64, rating series.ContentRating) ([]Chunk, error) {
	subs, err := s.library.FindFanoutCandidates(ctx, seriesID, chapterNumber, rating)
	if err != nil {
		return nil, fmt.Errorf("notify: fanout candidates for series %s: %w", seriesID, err)
	}
	if len(subs) == 0 {
		return nil, nil
	}

	byTier := map[bool][]string{}
	for _, sub := range subs {
		premium := sub.Tier == "premium"
		byTier[premium] = append(byTier[premium], sub.UserID)
	}

	var chunks []Chunk
	for _, premium := range []bool{true, false} {
		ids := byTier[premium]
		for start := 0; start < len(ids); start += FanoutChunkSize {
			end := start + FanoutChunkSize
			if end > len(ids) {
				end = len(ids)
			}
			chunks = append(chunks, Chunk{IsPremium: premium, UserIDs: ids[start:end]})
		}
	}
	return chunks, nil
}

// Deliver re-checks read-status for candidateUserIDs (closing the
// latency gap between fan-out and delivery), then bulk
// inserts a NEW_CHAPTER notification for every user that still hasn't
// read the chapter, relying on the natural-key uniqueness constraint to
// make replays idempotent.
func (s *Service) Deliver(ctx context.Context, seriesID, logicalChapterID string, chapterNumber float64, sourceName string, candidateUserIDs []string) (delivered int, err error) {
	if len(candidateUserIDs) == 0 {
		return 0, nil
	}

	unread, err := s.notify.FindUnreadUserIDs(ctx, seriesID, chapterNumber, candidateUserIDs)
	if err != nil {
		return 0, fmt.Errorf("notify: re-check unread users for series %s: %w", seriesID, err)
	}
	if len(unread) == 0 {
		return 0, nil
	}

	metadata := NewChapterMetadata(chapterNumber, sourceName)
	inserted, err := s.notify.DeliverBatch(ctx, seriesID, logicalChapterID, unread, metadata)
	if err != nil {
		return 0, fmt.Errorf("notify: deliver batch for chapter %s: %w", logicalChapterID, err)
	}

	s.logger.Info("notification_delivered",
		slog.String("series_id", seriesID),
		slog.String("logical_chapter_id", logicalChapterID),
		slog.Int("candidates", len(candidateUserIDs)),
		slog.Int("delivered", inserted),
	)
	return inserted, nil
}
