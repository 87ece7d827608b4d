// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package library manages per-user series subscriptions and exposes the fan-out candidate query
notification-fanout consults before chunking into delivery jobs.
*/
package library

import "time"

// Status is the lifecycle of a user's subscription to a series.
type Status string

const (
	StatusReading   Status = "reading"
	StatusCompleted Status = "completed"
	StatusPlanning  Status = "planning"
	StatusDropped   Status = "dropped"
	StatusPaused    Status = "paused"
)

// Entry is a user's subscription to a series, unique per (UserID, SeriesID).
type Entry struct {
	ID                string
	UserID            string
	SeriesID          string
	Status            Status
	NotifyNewChapters bool
	PreferredSource   *string
	LastReadChapterID *string
	LastReadAt        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Subscriber is one fan-out candidate: a library entry that passed every
// notification-fanout filter except the final per-user
// tier/priority chunking, which the caller performs.
type Subscriber struct {
	UserID string
	Tier   string // e.g. "free", "premium"; drives delivery queue priority
}
