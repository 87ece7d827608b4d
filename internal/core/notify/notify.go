// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package notify implements the notification pipeline's two processors -
fan-out (candidate selection) and delivery (idempotent per-user insert)
- and the dedup invariant: at most one row per
(user, logical_chapter, type=NEW_CHAPTER).

Only NEW_CHAPTER is implemented; the social notification types
dedup key is mentioned for the type enum's shape but no social-event
producer exists anywhere else in this module, so TypeNewChapter is the
only constructor wired to a real caller.
*/
package notify

import "time"

// Type is the notification category. NEW_CHAPTER is the only type this
// module's pipeline ever produces; the enum stays open so a future
// producer (e.g. a social-activity feed) can add one without touching
// the dedup machinery.
type Type string

const TypeNewChapter Type = "NEW_CHAPTER"

// Notification is a user-facing event. Metadata carries
// type-specific fields; for NEW_CHAPTER, chapter_number and
// source_name; kept as a map rather than a typed struct so the
// dedup/storage layer stays agnostic to future types.
type Notification struct {
	ID               string
	UserID           string
	Type             Type
	SeriesID         string
	LogicalChapterID string
	Metadata         map[string]any
	ReadAt           *time.Time
	CreatedAt        time.Time
}

// NewChapterMetadata builds the Metadata map for a NEW_CHAPTER event.
func NewChapterMetadata(chapterNumber float64, sourceName string) map[string]any {
	return map[string]any{
		"chapter_number": chapterNumber,
		"source_name":    sourceName,
	}
}
