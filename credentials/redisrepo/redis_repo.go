package redisrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jrsteele09/go-vehicle-market/credentials"
	"github.com/redis/go-redis/v9"
)

var _ credentials.Repo = (*Repo)(nil)

// Repo stores each credential as a plain string under prefix+key.
type Repo struct {
	rdb    redis.UniversalClient
	prefix string
}

func New(rdb redis.UniversalClient, prefix string) *Repo {
	return &Repo{rdb: rdb, prefix: prefix}
}

func (r *Repo) key(k credentials.Key) string {
	return r.prefix + string(k)
}

func (r *Repo) Get(ctx context.Context, key credentials.Key) (*string, error) {
	v, err := r.rdb.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return &v, nil
}

func (r *Repo) Upsert(ctx context.Context, key credentials.Key, value string) error {
	if err := r.rdb.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, key credentials.Key) error {
	if err := r.rdb.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}
