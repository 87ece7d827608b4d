// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package kv

import (
	stdctx "context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// heartbeatInterval is how often a worker process writes its liveness record.
const heartbeatInterval = 5 * time.Second

// heartbeatExpiry is the nominal lifetime of one heartbeat (two beat
// intervals). It is not applied as a Redis expiry: beat writes a field of
// a shared hash, which carries no TTL, and readers judge staleness against
// heartbeatOnlineWindow instead.
const heartbeatExpiry = 10 * time.Second

// heartbeatOnlineWindow is the maximum age at which a heartbeat is still
// considered "online" by readers (slightly looser than heartbeatExpiry
// so a reader racing the next write doesn't flap a healthy worker offline).
const heartbeatOnlineWindow = 15 * time.Second

// Beat is a single worker's liveness record.
type Beat struct {
	Timestamp int64  `json:"timestamp"`
	PID       int    `json:"pid"`
	Health    string `json:"health"`
}

// Heartbeat lets a worker process announce liveness and lets callers ask
// "is anyone online" before dispatching work that depends on the worker
// fleet, e.g. the search dispatcher's system-health gate.
type Heartbeat struct {
	client *redis.Client
	keys   Keys
}

// NewHeartbeat constructs a [Heartbeat].
func NewHeartbeat(client *redis.Client, keys Keys) *Heartbeat {
	return &Heartbeat{client: client, keys: keys}
}

// Run writes this process's heartbeat every 5s until ctx is cancelled.
// workerID should be stable per-process (e.g. hostname+pid) so that
// concurrent workers don't clobber each other's field in the shared hash.
func (h *Heartbeat) Run(ctx stdctx.Context, workerID string) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	h.beat(ctx, workerID)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.beat(ctx, workerID)
		}
	}
}

func (h *Heartbeat) beat(ctx stdctx.Context, workerID string) {
	beat := Beat{Timestamp: time.Now().UnixMilli(), PID: os.Getpid(), Health: "ok"}
	payload, err := json.Marshal(beat)
	if err != nil {
		return
	}
	// HSET has no per-field TTL in Redis, so the field's staleness is
	// judged by its embedded timestamp rather than key expiry; the hash
	// itself keeps no TTL since other workers' live fields must persist.
	h.client.HSet(ctx, h.keys.WorkersHeartbeat(), workerID, payload)
}

// AnyOnline reports whether at least one worker has beaten within
// heartbeatOnlineWindow.
func (h *Heartbeat) AnyOnline(ctx stdctx.Context) (bool, error) {
	fields, err := h.client.HGetAll(ctx, h.keys.WorkersHeartbeat()).Result()
	if err != nil {
		return false, fmt.Errorf("kv: read heartbeat hash: %w", err)
	}

	now := time.Now()
	for _, raw := range fields {
		var beat Beat
		if err := json.Unmarshal([]byte(raw), &beat); err != nil {
			continue
		}
		age := now.Sub(time.UnixMilli(beat.Timestamp))
		if age < heartbeatOnlineWindow {
			return true, nil
		}
	}
	return false, nil
}
