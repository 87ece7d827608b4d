// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package scraper

import (
	stdctx "context"
	"errors"
)

// Registry looks up the [Scraper] for a source name and wraps every call
// with the shared [CircuitBreaker], so callers never talk to an adapter
// directly and can never forget to record a trip.
type Registry struct {
	adapters map[Name]Scraper
	breaker  *CircuitBreaker
}

// NewRegistry constructs a [Registry] over the four allow-listed sources.
func NewRegistry(breaker *CircuitBreaker, doer httpDoer) *Registry {
	return &Registry{
		breaker: breaker,
		adapters: map[Name]Scraper{
			MangaDex:  NewMangaDexAdapter(doer),
			MangaPark: NewMangaParkAdapter(doer),
			Comick:    NewComickAdapter(doer),
			MangaSee:  NewMangaSeeAdapter(doer),
		},
	}
}

// Scrape runs source's adapter for sourceID, gated by that source's
// circuit breaker. A tripping failure records a breaker failure; any
// success (including the half-open probe) closes the circuit.
func (r *Registry) Scrape(ctx stdctx.Context, source Name, sourceID string) (ScrapedSeries, error) {
	if err := r.breaker.Allow(ctx, string(source)); err != nil {
		return ScrapedSeries{}, err
	}

	adapter, ok := r.adapters[source]
	if !ok {
		return ScrapedSeries{}, newScrapeError(string(source), KindInvalidInput,
			errUnknownSource(source))
	}

	series, err := adapter.ScrapeSeries(ctx, sourceID)
	if err != nil {
		var scrapeErr *ScrapeError
		if errors.As(err, &scrapeErr) && scrapeErr.Kind.TripsBreaker() {
			_ = r.breaker.RecordFailure(ctx, string(source))
		}
		return ScrapedSeries{}, err
	}

	_ = r.breaker.RecordSuccess(ctx, string(source))
	return series, nil
}

func errUnknownSource(source Name) error {
	return &unknownSourceError{source: source}
}

type unknownSourceError struct{ source Name }

func (e *unknownSourceError) Error() string {
	return "scraper: unknown source " + string(e.source)
}
