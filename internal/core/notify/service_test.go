// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package notify_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira/internal/core/library"
	"github.com/taibuivan/yomira/internal/core/notify"
	"github.com/taibuivan/yomira/internal/core/series"
)

// fakeLibraryRepo implements library.Repository with a fixed candidate
// list, matching this codebase's no-mocking-framework convention.
type fakeLibraryRepo struct {
	library.Repository
	candidates []library.Subscriber
}

func (f *fakeLibraryRepo) FindFanoutCandidates(ctx context.Context, seriesID string, chapterNumber float64, rating series.ContentRating) ([]library.Subscriber, error) {
	return f.candidates, nil
}

// fakeNotifyRepo is an in-memory [notify.Repository] tracking delivered
// rows by (userID, logicalChapterID) to exercise the dedup invariant.
type fakeNotifyRepo struct {
	alreadyRead map[string]bool // userID already read this chapter
	delivered   map[string]bool // userID|logicalChapterID
}

func newFakeNotifyRepo() *fakeNotifyRepo {
	return &fakeNotifyRepo{alreadyRead: map[string]bool{}, delivered: map[string]bool{}}
}

func (f *fakeNotifyRepo) FindUnreadUserIDs(ctx context.Context, seriesID string, chapterNumber float64, candidateUserIDs []string) ([]string, error) {
	var out []string
	for _, uid := range candidateUserIDs {
		if !f.alreadyRead[uid] {
			out = append(out, uid)
		}
	}
	return out, nil
}

func (f *fakeNotifyRepo) DeliverBatch(ctx context.Context, seriesID, logicalChapterID string, userIDs []string, metadata map[string]any) (int, error) {
	inserted := 0
	for _, uid := range userIDs {
		key := uid + "|" + logicalChapterID
		if f.delivered[key] {
			continue
		}
		f.delivered[key] = true
		inserted++
	}
	return inserted, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFanout_PartitionsByTierAndChunks(t *testing.T) {
	var candidates []library.Subscriber
	for i := 0; i < 510; i++ {
		tier := "free"
		if i%2 == 0 {
			tier = "premium"
		}
		candidates = append(candidates, library.Subscriber{UserID: "u" + string(rune(i)), Tier: tier})
	}
	libRepo := &fakeLibraryRepo{candidates: candidates}
	svc := notify.NewService(libRepo, newFakeNotifyRepo(), testLogger())

	chunks, err := svc.Fanout(context.Background(), "series-1", 2, series.ContentRatingSafe)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	require.Len(t, chunks, 2, "255 premium and 255 free users give one chunk per tier")
	require.True(t, chunks[0].IsPremium, "premium chunks come first")
	require.False(t, chunks[1].IsPremium)

	for _, c := range chunks {
		require.LessOrEqual(t, len(c.UserIDs), notify.FanoutChunkSize)
	}
}

func TestFanout_EmptyCandidatesReturnsNoChunks(t *testing.T) {
	libRepo := &fakeLibraryRepo{candidates: nil}
	svc := notify.NewService(libRepo, newFakeNotifyRepo(), testLogger())

	chunks, err := svc.Fanout(context.Background(), "series-1", 2, series.ContentRatingSafe)
	require.NoError(t, err)
	require.Empty(t, chunks)
}

func TestDeliver_IdempotentOnReplay(t *testing.T) {
	repo := newFakeNotifyRepo()
	svc := notify.NewService(&fakeLibraryRepo{}, repo, testLogger())
	ctx := context.Background()

	n1, err := svc.Deliver(ctx, "series-1", "lc-1", 2, "mangadex", []string{"u1", "u2"})
	require.NoError(t, err)
	require.Equal(t, 2, n1)

	n2, err := svc.Deliver(ctx, "series-1", "lc-1", 2, "mangadex", []string{"u1", "u2"})
	require.NoError(t, err)
	require.Equal(t, 0, n2, "replaying delivery must not insert a second row per user")
}

func TestDeliver_PreemptiveReadFilterExcludesAlreadyRead(t *testing.T) {
	repo := newFakeNotifyRepo()
	repo.alreadyRead["u1"] = true
	svc := notify.NewService(&fakeLibraryRepo{}, repo, testLogger())

	n, err := svc.Deliver(context.Background(), "series-1", "lc-1", 2, "mangadex", []string{"u1", "u2"})
	require.NoError(t, err)
	require.Equal(t, 1, n, "a user who already read the chapter must not receive a notification")
}

func TestDeliver_EmptyCandidatesIsNoOp(t *testing.T) {
	repo := newFakeNotifyRepo()
	svc := notify.NewService(&fakeLibraryRepo{}, repo, testLogger())

	n, err := svc.Deliver(context.Background(), "series-1", "lc-1", 2, "mangadex", nil)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}
