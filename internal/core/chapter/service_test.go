// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package chapter_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira/internal/core/chapter"
	"github.com/taibuivan/yomira/internal/core/series"
	"github.com/taibuivan/yomira/pkg/pointer"
	"github.com/taibuivan/yomira/pkg/uuid"
)

// fakeTx is a committed-in-memory-map transaction fake, implementing
// [chapter.Tx] without any real database connection; matching this
// codebase's no-mocking-framework convention (hand-written fakes over
// narrow interfaces).
type fakeTx struct{ store *fakeChapterRepo }

func (fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (fakeTx) Commit(ctx context.Context) error                             { return nil }
func (fakeTx) Rollback(ctx context.Context) error                           { return nil }

// fakeChapterRepo is an in-memory [chapter.Repository] keyed the same
// way the real schema is: logical chapters by (seriesID, number),
// chapter sources by (seriesSourceID, chapterID).
type fakeChapterRepo struct {
	logical map[string]*chapter.LogicalChapter // key: seriesID + "/" + number
	sources map[string]bool                    // key: seriesSourceID + "/" + chapterID

	locked   map[string]bool // seriesID -> advisory lock held
	released int
}

func newFakeChapterRepo() *fakeChapterRepo {
	return &fakeChapterRepo{
		logical: make(map[string]*chapter.LogicalChapter),
		sources: make(map[string]bool),
		locked:  make(map[string]bool),
	}
}

func logicalKey(seriesID string, number float64) string {
	return seriesID + "/" + formatNumber(number)
}

func formatNumber(n float64) string {
	return time.Duration(n * 1000).String()
}

func (r *fakeChapterRepo) Begin(ctx context.Context) (chapter.Tx, error) {
	return fakeTx{store: r}, nil
}

func (r *fakeChapterRepo) UpsertLogicalChapter(ctx context.Context, tx chapter.Tx, seriesID string, c chapter.ScrapedChapter) (string, bool, error) {
	key := logicalKey(seriesID, c.Number)
	if existing, ok := r.logical[key]; ok {
		if c.Title != nil {
			existing.ChapterTitle = c.Title
		}
		if c.PublishedAt != nil {
			existing.PublishedAt = c.PublishedAt
		}
		return existing.ID, false, nil
	}
	lc := &chapter.LogicalChapter{
		ID:            uuid.New(),
		SeriesID:      seriesID,
		ChapterNumber: c.Number,
		ChapterTitle:  c.Title,
		PublishedAt:   c.PublishedAt,
		FirstSeenAt:   time.Now(),
	}
	r.logical[key] = lc
	return lc.ID, true, nil
}

func (r *fakeChapterRepo) UpsertChapterSource(ctx context.Context, tx chapter.Tx, seriesSourceID, chapterID string, c chapter.ScrapedChapter) error {
	r.sources[seriesSourceID+"/"+chapterID] = true
	return nil
}

func (r *fakeChapterRepo) CountChapters(ctx context.Context, tx chapter.Tx, seriesSourceID string) (int, error) {
	count := 0
	for key := range r.sources {
		if len(key) > len(seriesSourceID) && key[:len(seriesSourceID)] == seriesSourceID {
			count++
		}
	}
	return count, nil
}

func (r *fakeChapterRepo) AcquireSeriesLock(ctx context.Context, seriesID string) (func(), bool, error) {
	if r.locked[seriesID] {
		return nil, false, nil
	}
	r.locked[seriesID] = true
	return func() {
		r.locked[seriesID] = false
		r.released++
	}, true, nil
}

// fakeSeriesRepo implements series.Repository, recording the calls
// SyncChapters/IngestOne make so tests can assert on the monotonic and
// idempotent invariants.
type fakeSeriesRepo struct {
	series.Repository
	source         *series.Source
	latestByID     map[string]float64
	recordedCounts map[string]int
	coverRefreshes int
	coverErr       error
}

func newFakeSeriesRepo(src *series.Source) *fakeSeriesRepo {
	return &fakeSeriesRepo{
		source:         src,
		latestByID:     make(map[string]float64),
		recordedCounts: make(map[string]int),
	}
}

func (f *fakeSeriesRepo) FindSource(ctx context.Context, sourceName, sourceID string) (*series.Source, error) {
	return f.source, nil
}

func (f *fakeSeriesRepo) RecordSuccess(ctx context.Context, sourceID string, count int, at time.Time) error {
	f.recordedCounts[sourceID] = count
	return nil
}

func (f *fakeSeriesRepo) BumpLatestChapter(ctx context.Context, seriesID string, chapterNumber float64) error {
	if chapterNumber > f.latestByID[seriesID] {
		f.latestByID[seriesID] = chapterNumber
	}
	return nil
}

func (f *fakeSeriesRepo) RefreshBestCoverURL(ctx context.Context, seriesID, coverURL string) error {
	f.coverRefreshes++
	return f.coverErr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSyncChapters_EmptyInputIsNoOp(t *testing.T) {
	chapters := newFakeChapterRepo()
	seriesRepo := newFakeSeriesRepo(&series.Source{ID: "src-1"})
	svc := chapter.NewService(chapters, seriesRepo, testLogger())

	n, err := svc.SyncChapters(context.Background(), "series-1", "mangadex", "md-1", nil, "")
	require.NoError(t, err)
	require.Equal(t, 0, n)
	require.Empty(t, seriesRepo.recordedCounts)
}

func TestSyncChapters_Idempotent(t *testing.T) {
	chapters := newFakeChapterRepo()
	seriesRepo := newFakeSeriesRepo(&series.Source{ID: "src-1"})
	svc := chapter.NewService(chapters, seriesRepo, testLogger())

	input := []chapter.ScrapedChapter{{Number: 1, Title: pointer.To("Ch 1"), URL: "https://x/1"}}

	for i := 0; i < 3; i++ {
		_, err := svc.SyncChapters(context.Background(), "series-1", "mangadex", "md-1", input, "")
		require.NoError(t, err)
	}

	require.Len(t, chapters.logical, 1, "repeated sync must not create duplicate logical chapters")
	require.Equal(t, 1, seriesRepo.recordedCounts["src-1"], "source_chapter_count must equal distinct chapters, not call count")
}

func TestSyncChapters_NullSafeTitleMerge(t *testing.T) {
	chapters := newFakeChapterRepo()
	seriesRepo := newFakeSeriesRepo(&series.Source{ID: "src-1"})
	svc := chapter.NewService(chapters, seriesRepo, testLogger())
	ctx := context.Background()

	_, err := svc.SyncChapters(ctx, "series-1", "mangadex", "md-1",
		[]chapter.ScrapedChapter{{Number: 1, Title: pointer.To("Good")}}, "")
	require.NoError(t, err)

	_, err = svc.SyncChapters(ctx, "series-1", "mangadex", "md-1",
		[]chapter.ScrapedChapter{{Number: 1, Title: nil}}, "")
	require.NoError(t, err)

	got := chapters.logical[logicalKey("series-1", 1)]
	require.Equal(t, "Good", *got.ChapterTitle, "a null title must not overwrite a previously stored one")
}

func TestSyncChapters_NullThenNonNullTitle(t *testing.T) {
	chapters := newFakeChapterRepo()
	seriesRepo := newFakeSeriesRepo(&series.Source{ID: "src-1"})
	svc := chapter.NewService(chapters, seriesRepo, testLogger())
	ctx := context.Background()

	_, err := svc.SyncChapters(ctx, "series-1", "mangadex", "md-1",
		[]chapter.ScrapedChapter{{Number: 1, Title: nil}}, "")
	require.NoError(t, err)

	_, err = svc.SyncChapters(ctx, "series-1", "mangadex", "md-1",
		[]chapter.ScrapedChapter{{Number: 1, Title: pointer.To("B")}}, "")
	require.NoError(t, err)

	got := chapters.logical[logicalKey("series-1", 1)]
	require.Equal(t, "B", *got.ChapterTitle)
}

func TestSyncChapters_MonotonicLatestOutOfOrder(t *testing.T) {
	chapters := newFakeChapterRepo()
	seriesRepo := newFakeSeriesRepo(&series.Source{ID: "src-1"})
	svc := chapter.NewService(chapters, seriesRepo, testLogger())
	ctx := context.Background()

	orders := [][]float64{{5, 10, 11}, {11, 5, 10}, {10, 11, 5}}
	for _, order := range orders {
		t.Run("", func(t *testing.T) {
			chapters = newFakeChapterRepo()
			seriesRepo = newFakeSeriesRepo(&series.Source{ID: "src-1"})
			svc = chapter.NewService(chapters, seriesRepo, testLogger())
			for _, n := range order {
				_, err := svc.SyncChapters(ctx, "series-1", "mangadex", "md-1",
					[]chapter.ScrapedChapter{{Number: n}}, "")
				require.NoError(t, err)
			}
			require.Equal(t, float64(11), seriesRepo.latestByID["series-1"])
		})
	}
}

func TestIngestOne_GatesFanoutOnInsertOnly(t *testing.T) {
	chapters := newFakeChapterRepo()
	seriesRepo := newFakeSeriesRepo(&series.Source{ID: "src-1"})
	svc := chapter.NewService(chapters, seriesRepo, testLogger())
	ctx := context.Background()

	_, inserted, err := svc.IngestOne(ctx, "series-1", "mangadex", "md-1", chapter.ScrapedChapter{Number: 2})
	require.NoError(t, err)
	require.True(t, inserted, "first ingestion of a chapter must report inserted=true")

	_, inserted, err = svc.IngestOne(ctx, "series-1", "mangadex", "md-1", chapter.ScrapedChapter{Number: 2})
	require.NoError(t, err)
	require.False(t, inserted, "replaying an already-ingested chapter must report inserted=false")
}

func TestSyncOnDemand_SecondConcurrentSyncSkipsIO(t *testing.T) {
	chapters := newFakeChapterRepo()
	seriesRepo := newFakeSeriesRepo(&series.Source{ID: "src-1"})
	svc := chapter.NewService(chapters, seriesRepo, testLogger())
	ctx := context.Background()

	chapters.locked["series-1"] = true // another session holds the advisory lock

	fetched := false
	_, performed, err := svc.SyncOnDemand(ctx, "series-1", "mangadex", "md-1",
		func(context.Context) ([]chapter.ScrapedChapter, string, error) {
			fetched = true
			return nil, "", nil
		})
	require.NoError(t, err)
	require.False(t, performed)
	require.False(t, fetched, "a losing on-demand sync must not perform outbound I/O")
}

func TestSyncOnDemand_ReleasesLockOnSuccessAndFailure(t *testing.T) {
	chapters := newFakeChapterRepo()
	seriesRepo := newFakeSeriesRepo(&series.Source{ID: "src-1"})
	svc := chapter.NewService(chapters, seriesRepo, testLogger())
	ctx := context.Background()

	n, performed, err := svc.SyncOnDemand(ctx, "series-1", "mangadex", "md-1",
		func(context.Context) ([]chapter.ScrapedChapter, string, error) {
			return []chapter.ScrapedChapter{{Number: 1}}, "", nil
		})
	require.NoError(t, err)
	require.True(t, performed)
	require.Equal(t, 1, n)
	require.Equal(t, 1, chapters.released)
	require.False(t, chapters.locked["series-1"])

	_, performed, err = svc.SyncOnDemand(ctx, "series-1", "mangadex", "md-1",
		func(context.Context) ([]chapter.ScrapedChapter, string, error) {
			return nil, "", context.DeadlineExceeded
		})
	require.Error(t, err)
	require.True(t, performed)
	require.Equal(t, 2, chapters.released, "the lock must be released on the failure path too")
	require.False(t, chapters.locked["series-1"])
}

func TestSyncChapters_CoverRefreshFailureDoesNotFailCount(t *testing.T) {
	chapters := newFakeChapterRepo()
	seriesRepo := newFakeSeriesRepo(&series.Source{ID: "src-1"})
	seriesRepo.coverErr = errors.New("cover store unavailable")
	svc := chapter.NewService(chapters, seriesRepo, testLogger())

	n, err := svc.SyncChapters(context.Background(), "series-1", "mangadex", "md-1",
		[]chapter.ScrapedChapter{{Number: 1}}, "https://covers/1.jpg")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, 1, seriesRepo.coverRefreshes)
}
