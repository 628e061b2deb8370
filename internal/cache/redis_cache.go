package cache

import (
	"context"

	redis "github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr string, password string, db int) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisStore{client: client}
}

func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (c *RedisStore) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisStore) Close() error {
	return c.client.Close()
}

type redisBatch struct {
	ctx  context.Context
	pipe redis.Pipeliner
}

func (b redisBatch) Append(key string, value []byte) {
	b.pipe.RPush(b.ctx, key, value)
}

func (b redisBatch) IncrementField(key string, field string, delta int64) {
	b.pipe.HIncrBy(b.ctx, key, field, delta)
}

func (b redisBatch) IncrementFieldFloat(key string, field string, delta float64) {
	b.pipe.HIncrByFloat(b.ctx, key, field, delta)
}

// Exec wraps the batch in MULTI/EXEC.
func (c *RedisStore) Exec(ctx context.Context, fill func(Batch)) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		fill(redisBatch{ctx: ctx, pipe: pipe})
		return nil
	})
	return err
}

func (c *RedisStore) ReadList(ctx context.Context, key string) ([]string, error) {
	items, err := c.client.LRange(ctx, key, 0, -1).Result()
	if err == redis.Nil {
		return nil, nil
	}
	return items, err
}

func (c *RedisStore) ReadHash(ctx context.Context, key string) (map[string]string, error) {
	fields, err := c.client.HGetAll(ctx, key).Result()
	if err == redis.Nil {
		return map[string]string{}, nil
	}
	return fields, err
}

func (c *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
