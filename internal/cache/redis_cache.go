package cache

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const keyPrefix = "canteen:report-url:"

type RedisURLCache struct {
	client *redis.Client
}

func NewRedisURLCache(addr string, password string, db int) *RedisURLCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisURLCache{client: client}
}

func (c *RedisURLCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisURLCache) Close() error {
	return c.client.Close()
}

func (c *RedisURLCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *RedisURLCache) Set(ctx context.Context, key string, url string, ttl time.Duration) error {
	if url == "" || ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, keyPrefix+key, url, ttl).Err()
}

func (c *RedisURLCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, keyPrefix+key).Err()
}
