package blobstore

import (
	"context"
	"errors"

	"github.com/go-redis/redis/v8"
)

// RedisStore stores blobs as plain redis strings without expiry.
type RedisStore struct {
	r      redis.Cmdable
	prefix string
}

// NewRedisStore creates a redis backed store. prefix namespaces every key.
func NewRedisStore(r redis.Cmdable, prefix string) *RedisStore {
	return &RedisStore{r: r, prefix: prefix}
}

func (s *RedisStore) namespaced(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

func (s *RedisStore) ReadBlob(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.r.Get(ctx, s.namespaced(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (s *RedisStore) WriteBlob(ctx context.Context, key string, blob []byte) error {
	return s.r.Set(ctx, s.namespaced(key), blob, 0).Err()
}

func (s *RedisStore) DeleteBlob(ctx context.Context, key string) error {
	return s.r.Del(ctx, s.namespaced(key)).Err()
}

// Close releases the client when the store owns it.
func (s *RedisStore) Close() error {
	if c, ok := s.r.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
