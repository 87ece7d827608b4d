// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package scraper implements the outbound adapters that pull chapter lists
from external manga hosts.

Every adapter is a thin [Scraper] wrapping an injectable HTTP doer so
tests never reach the network, fronted by a per-source [CircuitBreaker]
that is KV-backed to share trip state across the whole worker fleet.
*/
package scraper

import stdctx "context"

// ScrapedChapter is one chapter entry as reported by an upstream source,
// before it is merged into a LogicalChapter by the ingestion worker.
type ScrapedChapter struct {
	Number      float64
	Title       string
	PublishedAt *int64 // unix seconds, nil when the source omits it
	SourceURL   string
}

// ScrapedSeries is the result of one successful scrape: the source's
// current chapter list plus whatever cover art it reports.
type ScrapedSeries struct {
	SourceID string
	Title    string
	CoverURL string
	Chapters []ScrapedChapter
}

// Scraper pulls the current chapter list for one series from a single
// external source.
type Scraper interface {
	// ScrapeSeries fetches sourceID's current state. Implementations
	// return failures as a [*ScrapeError] carrying a [Kind] so callers
	// (the circuit breaker, the worker retry policy) can decide what to
	// do without inspecting transport-level errors themselves.
	ScrapeSeries(ctx stdctx.Context, sourceID string) (ScrapedSeries, error)
}

// Name identifies a supported external source. Matches the
// crawler.source slug already used by the relational schema.
type Name string

const (
	MangaDex  Name = "mangadex"
	MangaPark Name = "mangapark"
	Comick    Name = "comick"
	MangaSee  Name = "mangasee"
)
