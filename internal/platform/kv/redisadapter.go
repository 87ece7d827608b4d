// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package kv

import (
	stdctx "context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client adapts a live *redis.Client to the narrow [RedisClient] interface
// consumed by [Heat]. Production callers construct this once alongside
// the rest of the KV primitives; tests supply their own small fake
// instead.
type Client struct {
	Raw *redis.Client
}

// NewClient wraps raw for use as a [RedisClient].
func NewClient(raw *redis.Client) Client { return Client{Raw: raw} }

func (c Client) HIncrByResult(ctx stdctx.Context, key, field string, incr int64) (int64, error) {
	return c.Raw.HIncrBy(ctx, key, field, incr).Result()
}

func (c Client) SAddResult(ctx stdctx.Context, key string, member string) (int64, error) {
	return c.Raw.SAdd(ctx, key, member).Result()
}

func (c Client) SCardResult(ctx stdctx.Context, key string) (int64, error) {
	return c.Raw.SCard(ctx, key).Result()
}

func (c Client) ExpireResult(ctx stdctx.Context, key string, ttl time.Duration) (bool, error) {
	return c.Raw.Expire(ctx, key, ttl).Result()
}

func (c Client) HSetFieldResult(ctx stdctx.Context, key, field, value string) error {
	return c.Raw.HSet(ctx, key, field, value).Err()
}

func (c Client) HGetResult(ctx stdctx.Context, key, field string) (string, bool, error) {
	val, err := c.Raw.HGet(ctx, key, field).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c Client) HRandFieldResult(ctx stdctx.Context, key string, count int) ([]string, error) {
	return c.Raw.HRandField(ctx, key, count).Result()
}

func (c Client) HDelResult(ctx stdctx.Context, key string, fields ...string) error {
	return c.Raw.HDel(ctx, key, fields...).Err()
}
