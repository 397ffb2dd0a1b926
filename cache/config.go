package cache

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/viccon/sturdyc"

	"github.com/goliatone/go-dashboard-cache/internal/cacheinfra"
)

// Blob codecs accepted by Config.Codec.
const (
	CodecJSON    = cacheinfra.CodecJSON
	CodecMsgpack = cacheinfra.CodecMsgpack
)

// Config exposes cache configuration options for consumers of the cache package.
type Config struct {
	Capacity                   int
	NumShards                  int
	MaxAge                     time.Duration
	EvictionPercentage         int
	EvictionInterval           time.Duration
	DisableContinuousEvictions bool
	SaveInterval               time.Duration
	DurableMaxAge              time.Duration
	CriticalPatterns           []string
	PurgeOnLoad                []string
	BlobKey                    string
	Codec                      string
}

// DefaultConfig returns a Config populated with the dashboard defaults:
// a 30 minute MaxAge and a 60 second durable save interval.
func DefaultConfig() Config {
	return convertFromInternal(cacheinfra.DefaultConfig())
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return c.toInternal().Validate()
}

// Service is a CacheService with a lifecycle. Init must be called before use
// and Close on shutdown so pending durable writes are not lost.
type Service interface {
	CacheService
	Init(ctx context.Context) error
	Close(ctx context.Context) error
	Stats() (memory, durable int)
}

// ServiceOption customizes the service built by NewCacheService.
type ServiceOption = cacheinfra.Option

// WithLogger sets the logger used by the cache tiers.
func WithLogger(logger logrus.FieldLogger) ServiceOption {
	return cacheinfra.WithLogger(logger)
}

// WithMetrics reports tier lookups and durable writes to metrics.
func WithMetrics(metrics Metrics) ServiceOption {
	return cacheinfra.WithObserver(metrics)
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock sturdyc.Clock) ServiceOption {
	return cacheinfra.WithClock(clock)
}

// NewCacheService constructs the default two-tier cache. store may be nil to
// run without a durable tier.
func NewCacheService(cfg Config, store DurableStore, opts ...ServiceOption) (Service, error) {
	var blobs cacheinfra.BlobStore
	if store != nil {
		blobs = store
	}
	svc, err := cacheinfra.NewTwoTierService(cfg.toInternal(), blobs, opts...)
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func (c Config) toInternal() cacheinfra.Config {
	return cacheinfra.Config{
		Capacity:                   c.Capacity,
		NumShards:                  c.NumShards,
		MaxAge:                     c.MaxAge,
		EvictionPercentage:         c.EvictionPercentage,
		EvictionInterval:           c.EvictionInterval,
		DisableContinuousEvictions: c.DisableContinuousEvictions,
		SaveInterval:               c.SaveInterval,
		DurableMaxAge:              c.DurableMaxAge,
		CriticalPatterns:           append([]string(nil), c.CriticalPatterns...),
		PurgeOnLoad:                append([]string(nil), c.PurgeOnLoad...),
		BlobKey:                    c.BlobKey,
		Codec:                      c.Codec,
	}
}

func convertFromInternal(cfg cacheinfra.Config) Config {
	return Config{
		Capacity:                   cfg.Capacity,
		NumShards:                  cfg.NumShards,
		MaxAge:                     cfg.MaxAge,
		EvictionPercentage:         cfg.EvictionPercentage,
		EvictionInterval:           cfg.EvictionInterval,
		DisableContinuousEvictions: cfg.DisableContinuousEvictions,
		SaveInterval:               cfg.SaveInterval,
		DurableMaxAge:              cfg.DurableMaxAge,
		CriticalPatterns:           append([]string(nil), cfg.CriticalPatterns...),
		PurgeOnLoad:                append([]string(nil), cfg.PurgeOnLoad...),
		BlobKey:                    cfg.BlobKey,
		Codec:                      cfg.Codec,
	}
}
