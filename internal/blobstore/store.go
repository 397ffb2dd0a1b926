// Package blobstore provides the storages the durable cache tier can persist into.
package blobstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// Supported drivers for Open.
const (
	DriverNone     = "none"
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Store is a key/blob storage. A missing blob is reported as (nil, false, nil).
type Store interface {
	ReadBlob(ctx context.Context, key string) ([]byte, bool, error)
	WriteBlob(ctx context.Context, key string, blob []byte) error
	DeleteBlob(ctx context.Context, key string) error
	Close() error
}

// Options selects and configures the storage returned by Open.
type Options struct {
	Driver string
	// DSN is the database connection string for the sqlite and postgres drivers.
	DSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	// Prefix namespaces redis keys.
	Prefix string

	ConnectTimeout time.Duration
}

// Open builds the Store named by opts.Driver. DriverNone yields a nil Store,
// which runs the cache without a durable tier.
func Open(ctx context.Context, opts Options) (Store, error) {
	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	driver := strings.ToLower(strings.TrimSpace(opts.Driver))
	switch driver {
	case DriverNone, "":
		return nil, nil
	case DriverMemory:
		return NewMemory(), nil
	case DriverSQLite, DriverPostgres:
		store, err := OpenSQL(driver, opts.DSN)
		if err != nil {
			return nil, err
		}
		cctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := store.EnsureSchema(cctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	case DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:        opts.RedisAddr,
			Password:    opts.RedisPassword,
			DB:          opts.RedisDB,
			DialTimeout: timeout,
		})

		cctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if _, err := client.Ping(cctx).Result(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		return NewRedisStore(client, opts.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown blob store driver %q", opts.Driver)
	}
}
