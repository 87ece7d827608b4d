// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package kv_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/yomira/internal/platform/kv"
)

func TestKeys_Namespacing(t *testing.T) {
	keys := kv.NewKeys("prod")

	assert.Equal(t, "app:prod:lock:scheduler:master", keys.Lock("scheduler:master"))
	assert.Equal(t, "app:prod:ratelimit:mangadex:tokens", keys.RateLimitTokens("mangadex"))
	assert.Equal(t, "app:prod:ratelimit:mangadex:last_refill", keys.RateLimitLastRefill("mangadex"))
	assert.Equal(t, "app:prod:workers:heartbeat", keys.WorkersHeartbeat())
	assert.Equal(t, "app:prod:circuit:mangadex", keys.CircuitBreaker("mangadex"))
	assert.Equal(t, "app:prod:cooldown:search:1.2.3.4:abc", keys.SearchCooldown("1.2.3.4", "abc"))
	assert.Equal(t, "app:prod:search:pending:abc", keys.SearchPending("abc"))
	assert.Equal(t, "app:prod:search:cache:abc", keys.SearchCache("abc"))
	assert.Equal(t, "app:prod:search:heat:abc", keys.SearchHeat("abc"))
	assert.Equal(t, "app:prod:search:deferred", keys.SearchDeferred())
	assert.Equal(t, "app:prod:premium:quota:u1:20260729", keys.PremiumQuota("u1", "20260729"))
	assert.Equal(t, "app:prod:premium:concurrency:u1", keys.PremiumConcurrency("u1"))
	assert.Equal(t, "app:prod:queue:check-source:dead", keys.QueueDLQ("check-source"))
	assert.Equal(t, "app:prod:queue:check-source:dead:job-1", keys.QueueDeadJob("check-source", "job-1"))
	assert.Equal(t, "app:prod:queue:check-source:waiting", keys.QueueWaiting("check-source"))
	assert.Equal(t, "app:prod:queue:check-source:scheduled", keys.QueueScheduled("check-source"))
	assert.Equal(t, "app:prod:queue:check-source:active", keys.QueueActive("check-source"))
	assert.Equal(t, "app:prod:queue:check-source:members", keys.QueueMembers("check-source"))
	assert.Equal(t, "app:prod:queue:check-source:job:job-1", keys.QueueJob("check-source", "job-1"))
}
