// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package queue

import (
	stdctx "context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// store is the subset of Redis verbs [Queue] needs, declared as an
// interface so tests can supply an in-memory fake instead of a live
// connection, matching this codebase's no-mocking-framework convention
// (see internal/platform/kv.RedisClient, internal/ratelimit.bucketAcquirer).
type store interface {
	ZAdd(ctx stdctx.Context, key string, score float64, member string) error
	// ZPopMin pops the lowest-scored member of key. ok is false if key is empty.
	ZPopMin(ctx stdctx.Context, key string) (member string, ok bool, err error)
	// ZRangeByScore returns members scored at most maxScore.
	ZRangeByScore(ctx stdctx.Context, key string, maxScore float64) ([]string, error)
	// ZRangeWithScores returns the members (and their raw scores) ranked
	// start..stop ascending, used to peek the waiting set without popping.
	ZRangeWithScores(ctx stdctx.Context, key string, start, stop int64) ([]ScoredMember, error)
	ZRem(ctx stdctx.Context, key, member string) error
	ZCard(ctx stdctx.Context, key string) (int64, error)
	// SAdd reports whether member was newly added (false if already present).
	SAdd(ctx stdctx.Context, key, member string) (bool, error)
	SRem(ctx stdctx.Context, key, member string) error
	HSet(ctx stdctx.Context, key string, fields map[string]string) error
	HGetAll(ctx stdctx.Context, key string) (map[string]string, error)
	Del(ctx stdctx.Context, key string) error
	SetWithTTL(ctx stdctx.Context, key, value string, ttl time.Duration) error
}

// ScoredMember is a sorted-set member paired with its raw score, returned by
// [store.ZRangeWithScores].
type ScoredMember struct {
	Member string
	Score  float64
}

// redisCmdable is the subset of *redis.Client [redisStore] wraps.
type redisCmdable interface {
	ZAdd(ctx stdctx.Context, key string, members ...redis.Z) *redis.IntCmd
	ZPopMin(ctx stdctx.Context, key string, count ...int64) *redis.ZSliceCmd
	ZRangeByScore(ctx stdctx.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd
	ZRangeWithScores(ctx stdctx.Context, key string, start, stop int64) *redis.ZSliceCmd
	ZRem(ctx stdctx.Context, key string, members ...any) *redis.IntCmd
	ZCard(ctx stdctx.Context, key string) *redis.IntCmd
	SAdd(ctx stdctx.Context, key string, members ...any) *redis.IntCmd
	SRem(ctx stdctx.Context, key string, members ...any) *redis.IntCmd
	HSet(ctx stdctx.Context, key string, values ...any) *redis.IntCmd
	HGetAll(ctx stdctx.Context, key string) *redis.MapStringStringCmd
	Del(ctx stdctx.Context, keys ...string) *redis.IntCmd
	Set(ctx stdctx.Context, key string, value any, ttl time.Duration) *redis.StatusCmd
}

// redisStore adapts a live *redis.Client (or *redis.ClusterClient, both
// satisfy [redisCmdable]) to [store].
type redisStore struct {
	client redisCmdable
}

func (r redisStore) ZAdd(ctx stdctx.Context, key string, score float64, member string) error {
	return r.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

func (r redisStore) ZPopMin(ctx stdctx.Context, key string) (string, bool, error) {
	res, err := r.client.ZPopMin(ctx, key, 1).Result()
	if err != nil {
		return "", false, err
	}
	if len(res) == 0 {
		return "", false, nil
	}
	member, _ := res[0].Member.(string)
	return member, true, nil
}

func (r redisStore) ZRangeByScore(ctx stdctx.Context, key string, maxScore float64) ([]string, error) {
	return r.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatFloat(maxScore, 'f', -1, 64),
	}).Result()
}

func (r redisStore) ZRangeWithScores(ctx stdctx.Context, key string, start, stop int64) ([]ScoredMember, error) {
	res, err := r.client.ZRangeWithScores(ctx, key, start, stop).Result()
	if err != nil {
		return nil, err
	}
	out := make([]ScoredMember, 0, len(res))
	for _, z := range res {
		member, _ := z.Member.(string)
		out = append(out, ScoredMember{Member: member, Score: z.Score})
	}
	return out, nil
}

func (r redisStore) ZRem(ctx stdctx.Context, key, member string) error {
	return r.client.ZRem(ctx, key, member).Err()
}

func (r redisStore) ZCard(ctx stdctx.Context, key string) (int64, error) {
	return r.client.ZCard(ctx, key).Result()
}

func (r redisStore) SAdd(ctx stdctx.Context, key, member string) (bool, error) {
	n, err := r.client.SAdd(ctx, key, member).Result()
	return n > 0, err
}

func (r redisStore) SRem(ctx stdctx.Context, key, member string) error {
	return r.client.SRem(ctx, key, member).Err()
}

func (r redisStore) HSet(ctx stdctx.Context, key string, fields map[string]string) error {
	values := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		values = append(values, k, v)
	}
	return r.client.HSet(ctx, key, values...).Err()
}

func (r redisStore) HGetAll(ctx stdctx.Context, key string) (map[string]string, error) {
	return r.client.HGetAll(ctx, key).Result()
}

func (r redisStore) Del(ctx stdctx.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r redisStore) SetWithTTL(ctx stdctx.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}
