// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package scraper_test

import (
	stdctx "context"
	"io"
	stdhttp "net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira/internal/scraper"
)

// fakeDoer returns a canned response for every request, matching the
// codebase's no-mocking-library convention for narrow interface seams.
type fakeDoer struct {
	status int
	body   string
	err    error
}

func (f *fakeDoer) Do(_ *stdhttp.Request) (*stdhttp.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &stdhttp.Response{
		StatusCode: f.status,
		Body:       io.NopCloser(strings.NewReader(f.body)),
	}, nil
}

func TestMangaDexAdapter_ParsesAggregate(t *testing.T) {
	body := `{"volumes":{"1":{"chapters":{"c1":{"chapter":"1"},"c2":{"chapter":"2"}}}}}`
	adapter := scraper.NewMangaDexAdapter(&fakeDoer{status: 200, body: body})

	series, err := adapter.ScrapeSeries(stdctx.Background(), "0196e000-0000-7000-8000-000000000000")
	require.NoError(t, err)
	assert.Len(t, series.Chapters, 2)
}

func TestMangaDexAdapter_RejectsInvalidSourceID(t *testing.T) {
	adapter := scraper.NewMangaDexAdapter(&fakeDoer{status: 200, body: "{}"})

	_, err := adapter.ScrapeSeries(stdctx.Background(), "not-a-uuid")
	require.Error(t, err)
	var se *scraper.ScrapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, scraper.KindInvalidInput, se.Kind)
}

func TestMangaParkAdapter_ClassifiesRateLimit(t *testing.T) {
	adapter := scraper.NewMangaParkAdapter(&fakeDoer{status: stdhttp.StatusTooManyRequests, body: ""})

	_, err := adapter.ScrapeSeries(stdctx.Background(), "one-piece")
	require.Error(t, err)
	var se *scraper.ScrapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, scraper.KindRateLimit, se.Kind)
	assert.False(t, se.Kind.TripsBreaker())
}

func TestComickAdapter_ClassifiesProxyBlocked(t *testing.T) {
	adapter := scraper.NewComickAdapter(&fakeDoer{status: stdhttp.StatusForbidden, body: ""})

	_, err := adapter.ScrapeSeries(stdctx.Background(), "one-piece")
	require.Error(t, err)
	var se *scraper.ScrapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, scraper.KindProxyBlocked, se.Kind)
	assert.True(t, se.Kind.TripsBreaker())
}

func TestMangaSeeAdapter_ParsesChapters(t *testing.T) {
	body := `{"title":"Example","cover_url":"https://example.com/c.jpg","chapters":[{"number":10.5,"title":"Ch 10.5"}]}`
	adapter := scraper.NewMangaSeeAdapter(&fakeDoer{status: 200, body: body})

	series, err := adapter.ScrapeSeries(stdctx.Background(), "12345")
	require.NoError(t, err)
	require.Len(t, series.Chapters, 1)
	assert.Equal(t, 10.5, series.Chapters[0].Number)
}

func TestMangaSeeAdapter_RejectsNonNumericID(t *testing.T) {
	adapter := scraper.NewMangaSeeAdapter(&fakeDoer{status: 200, body: "{}"})

	_, err := adapter.ScrapeSeries(stdctx.Background(), "abc")
	require.Error(t, err)
}
