// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package scraper

import (
	stdctx "context"
	"encoding/json"
	"fmt"
	"io"
	stdhttp "net/http"
	"regexp"
	"time"
)

// httpDoer is the seam every adapter calls through instead of
// http.DefaultClient directly, so tests can substitute a fake transport
// without touching the network.
type httpDoer interface {
	Do(req *stdhttp.Request) (*stdhttp.Response, error)
}

// requestTimeout bounds a single outbound scrape call.
const requestTimeout = 15 * time.Second

// base holds the fields every concrete adapter shares: its source name,
// the HTTP seam, and the request builder for its provider's API shape.
type base struct {
	name     Name
	doer     httpDoer
	safeURL  SafeURL
	endpoint func(sourceID string) string
	decode   func(body io.Reader, sourceID string) (ScrapedSeries, error)
	idFormat *regexp.Regexp
}

func (b *base) scrape(ctx stdctx.Context, sourceID string) (ScrapedSeries, error) {
	if !b.idFormat.MatchString(sourceID) {
		return ScrapedSeries{}, newScrapeError(string(b.name), KindInvalidInput,
			fmt.Errorf("sourceId %q does not match %s format", sourceID, b.name))
	}

	target := b.endpoint(sourceID)
	if err := b.safeURL.Validate(target); err != nil {
		return ScrapedSeries{}, newScrapeError(string(b.name), KindInvalidInput, err)
	}

	reqCtx, cancel := stdctx.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := stdhttp.NewRequestWithContext(reqCtx, stdhttp.MethodGet, target, nil)
	if err != nil {
		return ScrapedSeries{}, newScrapeError(string(b.name), KindInvalidInput, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.doer.Do(req)
	if err != nil {
		return ScrapedSeries{}, newScrapeError(string(b.name), classifyTransportErr(err), err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case stdhttp.StatusTooManyRequests:
		return ScrapedSeries{}, newScrapeError(string(b.name), KindRateLimit,
			fmt.Errorf("429 from %s", b.name))
	case stdhttp.StatusForbidden:
		return ScrapedSeries{}, newScrapeError(string(b.name), KindProxyBlocked,
			fmt.Errorf("403 from %s", b.name))
	case stdhttp.StatusNotFound:
		return ScrapedSeries{}, newScrapeError(string(b.name), KindSelectorNotFound,
			fmt.Errorf("404 from %s for %s", b.name, sourceID))
	}
	if resp.StatusCode >= 500 {
		return ScrapedSeries{}, newScrapeError(string(b.name), KindNetwork,
			fmt.Errorf("%d from %s", resp.StatusCode, b.name))
	}
	if resp.StatusCode != stdhttp.StatusOK {
		return ScrapedSeries{}, newScrapeError(string(b.name), KindSelectorNotFound,
			fmt.Errorf("unexpected status %d from %s", resp.StatusCode, b.name))
	}

	series, err := b.decode(resp.Body, sourceID)
	if err != nil {
		return ScrapedSeries{}, newScrapeError(string(b.name), KindSelectorNotFound, err)
	}
	return series, nil
}

// # MangaDex
//
// https://api.mangadex.org/manga/{id}/aggregate shapes its response as
// volumes -> chapters; this adapter flattens that into [ScrapedSeries].

var mangaDexIDFormat = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

type mangaDexAggregate struct {
	Volumes map[string]struct {
		Chapters map[string]struct {
			Chapter string `json:"chapter"`
		} `json:"chapters"`
	} `json:"volumes"`
}

// NewMangaDexAdapter constructs the [Scraper] for api.mangadex.org.
func NewMangaDexAdapter(doer httpDoer) Scraper {
	b := &base{
		name:     MangaDex,
		doer:     doer,
		idFormat: mangaDexIDFormat,
		endpoint: func(id string) string {
			return "https://api.mangadex.org/manga/" + id + "/aggregate"
		},
		decode: func(body io.Reader, sourceID string) (ScrapedSeries, error) {
			var agg mangaDexAggregate
			if err := json.NewDecoder(body).Decode(&agg); err != nil {
				return ScrapedSeries{}, fmt.Errorf("decode mangadex aggregate: %w", err)
			}
			series := ScrapedSeries{SourceID: sourceID}
			for _, vol := range agg.Volumes {
				for _, ch := range vol.Chapters {
					num, err := parseChapterNumber(ch.Chapter)
					if err != nil {
						continue
					}
					series.Chapters = append(series.Chapters, ScrapedChapter{Number: num})
				}
			}
			return series, nil
		},
	}
	return &adapter{b}
}

// # MangaPark

var slugIDFormat = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,127}$`)

type mangaParkPayload struct {
	Title    string `json:"title"`
	CoverURL string `json:"cover_url"`
	Chapters []struct {
		Number      float64 `json:"number"`
		Title       string  `json:"title"`
		PublishedAt *int64  `json:"published_at"`
		URL         string  `json:"url"`
	} `json:"chapters"`
}

// NewMangaParkAdapter constructs the [Scraper] for mangapark.io.
func NewMangaParkAdapter(doer httpDoer) Scraper {
	b := &base{
		name:     MangaPark,
		doer:     doer,
		idFormat: slugIDFormat,
		endpoint: func(id string) string {
			return "https://mangapark.io/apo/comic/" + id
		},
		decode: decodeGenericPayload(MangaPark),
	}
	return &adapter{b}
}

// # Comick

// NewComickAdapter constructs the [Scraper] for comick.io.
func NewComickAdapter(doer httpDoer) Scraper {
	b := &base{
		name:     Comick,
		doer:     doer,
		idFormat: slugIDFormat,
		endpoint: func(id string) string {
			return "https://comick.io/api/comic/" + id + "/chapters"
		},
		decode: decodeGenericPayload(Comick),
	}
	return &adapter{b}
}

// # MangaSee

var numericIDFormat = regexp.MustCompile(`^[0-9]{1,10}$`)

// NewMangaSeeAdapter constructs the [Scraper] for mangasee123.com.
func NewMangaSeeAdapter(doer httpDoer) Scraper {
	b := &base{
		name:     MangaSee,
		doer:     doer,
		idFormat: numericIDFormat,
		endpoint: func(id string) string {
			return "https://mangasee123.com/rss/" + id + ".json"
		},
		decode: decodeGenericPayload(MangaSee),
	}
	return &adapter{b}
}

// adapter adapts *base to the [Scraper] interface.
type adapter struct{ *base }

func (a *adapter) ScrapeSeries(ctx stdctx.Context, sourceID string) (ScrapedSeries, error) {
	return a.scrape(ctx, sourceID)
}

// decodeGenericPayload builds a decoder for the three adapters (MangaPark,
// Comick, MangaSee) that share one flat JSON chapter-list shape.
func decodeGenericPayload(name Name) func(io.Reader, string) (ScrapedSeries, error) {
	return func(body io.Reader, sourceID string) (ScrapedSeries, error) {
		var p mangaParkPayload
		if err := json.NewDecoder(body).Decode(&p); err != nil {
			return ScrapedSeries{}, fmt.Errorf("decode %s payload: %w", name, err)
		}
		series := ScrapedSeries{SourceID: sourceID, Title: p.Title, CoverURL: p.CoverURL}
		for _, ch := range p.Chapters {
			series.Chapters = append(series.Chapters, ScrapedChapter{
				Number:      ch.Number,
				Title:       ch.Title,
				PublishedAt: ch.PublishedAt,
				SourceURL:   ch.URL,
			})
		}
		return series, nil
	}
}

func parseChapterNumber(s string) (float64, error) {
	var n float64
	_, err := fmt.Sscanf(s, "%f", &n)
	return n, err
}
