// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package search implements the heat-gated external search dispatcher: the
path from a user's free-text query to either a cached answer, a local
catalogue result, an enqueued catalog-enrichment job, or a deferral for
off-peak retry.

The dispatcher never talks to external sources itself. Its only output
is a check-source job on the discovery queue; everything else is gate
bookkeeping in the KV store.
*/
package search

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"unicode"

	"github.com/taibuivan/yomira/pkg/slug"
)

// Status is where a query landed in the dispatch state machine.
type Status string

const (
	StatusCached           Status = "cached"
	StatusCoalesced        Status = "coalesced"
	StatusLocalOnly        Status = "local_only"
	StatusExternalEnqueued Status = "external_enqueued"
	StatusDeferred         Status = "deferred"
)

// Request is one user-initiated search.
type Request struct {
	UserID    string
	IsPremium bool
	Query     string
	Filters   map[string]string
	Cursor    string
	IP        string
}

// SeriesHit is one local catalogue match, the formatted shape that is
// cached and returned.
type SeriesHit struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	ContentRating string  `json:"content_rating"`
	LatestChapter float64 `json:"latest_chapter"`
	TotalFollows  int64   `json:"total_follows"`
	CoverURL      string  `json:"cover_url,omitempty"`
}

// Result is the dispatcher's answer: the local hits it found plus where
// the query ended up. JobID is set only for [StatusExternalEnqueued].
type Result struct {
	Status Status      `json:"status"`
	Hits   []SeriesHit `json:"hits"`
	JobID  string      `json:"job_id,omitempty"`
}

// Intent classifies what the user is trying to do with a query, driving
// the external-enrichment decision.
type Intent string

const (
	IntentTitle    Intent = "title"    // looks like a specific work's name
	IntentKeyword  Intent = "keyword"  // broad exploration, lower urgency
	IntentNoise    Intent = "noise"    // too short/garbled to enrich on
	IntentFollow   Intent = "follow"   // explicit follow verb
	IntentTrack    Intent = "track"    // explicit track verb
	IntentBookmark Intent = "bookmark" // explicit bookmark verb
)

// Forced reports whether the intent bypasses heat gating: the user has
// explicitly said they want to bind this work to their library, so one
// cold lookup is always worth the scrape.
func (i Intent) Forced() bool {
	return i == IntentFollow || i == IntentTrack || i == IntentBookmark
}

// forcedVerbs maps a leading verb to its forced [Intent].
var forcedVerbs = map[string]Intent{
	"follow":   IntentFollow,
	"track":    IntentTrack,
	"bookmark": IntentBookmark,
}

// keywordMarkers are generic catalogue words whose presence suggests
// exploration rather than a specific title.
var keywordMarkers = map[string]bool{
	"manga": true, "manhwa": true, "manhua": true, "comic": true,
	"series": true, "romance": true, "action": true, "isekai": true,
}

// DetectIntent classifies query. The rules are deliberately cheap and
// deterministic: a leading follow/track/bookmark verb forces dispatch,
// anything shorter than three letters (or purely non-letter) is noise,
// generic catalogue vocabulary reads as keyword exploration, and
// everything else is assumed to be a title lookup.
func DetectIntent(query string) Intent {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return IntentNoise
	}

	words := strings.Fields(q)
	if intent, ok := forcedVerbs[words[0]]; ok && len(words) > 1 {
		return intent
	}

	letters := 0
	for _, r := range q {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if letters < 3 {
		return IntentNoise
	}

	for _, w := range words {
		if keywordMarkers[w] {
			return IntentKeyword
		}
	}
	return IntentTitle
}

// Normalize collapses a query to the canonical form used for heat,
// cooldown, and cache keys, so "One  Piece!" and "one piece" share one
// budget.
func Normalize(query string) string {
	return slug.From(query)
}

// QueryHash returns the short stable hash of a normalized query, used
// as the heat/cooldown/deferred key segment and in external job IDs.
func QueryHash(query string) string {
	sum := sha256.Sum256([]byte(Normalize(query)))
	return hex.EncodeToString(sum[:])[:16]
}

// Fingerprint identifies a (query, filters) combination for the result
// cache and pending coalescing. Filters are serialized in sorted key
// order so two maps with the same content always collide.
func Fingerprint(query string, filters map[string]string) string {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(Normalize(query))
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(filters[k])
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])[:24]
}

// deferredEntry is the JSON record parked in the deferred set.
type deferredEntry struct {
	Query      string `json:"query"`
	QueryHash  string `json:"query_hash"`
	SkipReason string `json:"skip_reason"`
	RetryCount int    `json:"retry_count"`
	IsPremium  bool   `json:"is_premium"`
}

func (e deferredEntry) marshal() string {
	b, _ := json.Marshal(e)
	return string(b)
}
