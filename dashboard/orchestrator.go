// Package dashboard serves dashboard datasets through the two-tier cache,
// the analytics API and the store fallback chain.
package dashboard

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/goliatone/go-dashboard-cache/cache"
	"github.com/goliatone/go-dashboard-cache/fallback"
	"github.com/goliatone/go-dashboard-cache/remote"
)

// Data sources reported to logs and metrics.
const (
	SourceCache   = "cache"
	SourceNetwork = "network"
	SourceStale   = "stale"
	SourceError   = "error"
)

// StoreDatasetPrefix prefixes the dataset name of store-scoped keys.
const StoreDatasetPrefix = "store_"

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithKeyBuilder replaces the default key builder.
func WithKeyBuilder(kb cache.KeyBuilder) Option {
	return func(o *Orchestrator) {
		if kb != nil {
			o.keys = kb
		}
	}
}

// WithMetrics sets the metrics receiver.
func WithMetrics(m cache.Metrics) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithLogger sets the orchestrator logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Orchestrator is the entry point for dashboard data requests.
// It is safe for concurrent use.
type Orchestrator struct {
	cache    cache.CacheService
	registry *remote.Registry
	resolver *fallback.Resolver
	keys     cache.KeyBuilder
	metrics  cache.Metrics
	logger   logrus.FieldLogger

	group    singleflight.Group
	inflight *xsync.MapOf[string, int]
	active   atomic.Int64

	errMu   sync.RWMutex
	lastErr error
}

// NewOrchestrator wires the orchestrator. resolver may be nil when store
// scoped datasets are not used.
func NewOrchestrator(svc cache.CacheService, registry *remote.Registry, resolver *fallback.Resolver, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cache:    svc,
		registry: registry,
		resolver: resolver,
		keys:     cache.NewDefaultKeyBuilder(),
		metrics:  cache.NopMetrics{},
		logger:   logrus.StandardLogger(),
		inflight: xsync.NewMapOf[string, int](),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type fetchResult struct {
	data   json.RawMessage
	source string
}

// FetchAPIData returns the payload cached under cacheKey or fetches it with
// op. When op fails with a transport error and the durable tier still holds
// a copy for cacheKey, that copy is returned instead of the error.
func (o *Orchestrator) FetchAPIData(ctx context.Context, op remote.Operation, params cache.Params, cacheKey string) (json.RawMessage, error) {
	start := time.Now()
	log := o.logger.WithFields(logrus.Fields{
		"request_id": uuid.NewString(),
		"key":        cacheKey,
	})

	if op == nil {
		err := cache.NewUnknownTargetError("operation", cacheKey)
		o.recordErr(err)
		return nil, err
	}
	params = params.Normalize()

	if data, ok := o.cache.Get(ctx, cacheKey); ok {
		o.done(log, SourceCache, start)
		return data, nil
	}

	o.begin(cacheKey)
	defer o.end(cacheKey)

	v, err, shared := o.group.Do(cacheKey, func() (any, error) {
		if data, ok := o.cache.Get(ctx, cacheKey); ok {
			return fetchResult{data: data, source: SourceCache}, nil
		}
		res, err := op(ctx, params)
		if err != nil {
			return nil, err
		}
		o.cache.Set(ctx, cacheKey, res.Data)
		return fetchResult{data: res.Data, source: SourceNetwork}, nil
	})
	if shared {
		log = log.WithField("shared", true)
	}

	if err != nil {
		if cache.IsTransportError(err) {
			if stale, ok := o.cache.GetStale(ctx, cacheKey); ok {
				log.WithError(err).Warn("analytics api unreachable, serving stale data")
				o.done(log, SourceStale, start)
				return stale, nil
			}
		}
		o.recordErr(err)
		log.WithError(err).Error("dataset request failed")
		o.metrics.ObserveFetch(SourceError)
		return nil, err
	}

	result := v.(fetchResult)
	o.done(log, result.source, start)
	return result.data, nil
}

// FetchNamed resolves service.operation from the registry and fetches it.
func (o *Orchestrator) FetchNamed(ctx context.Context, service, operation string, params cache.Params, cacheKey string) (json.RawMessage, error) {
	op, err := o.registry.Lookup(service, operation)
	if err != nil {
		o.recordErr(err)
		return nil, err
	}
	return o.FetchAPIData(ctx, op, params, cacheKey)
}

// FetchDataset fetches service.operation keyed by its dataset name and params.
func (o *Orchestrator) FetchDataset(ctx context.Context, service, operation string, params cache.Params) (json.RawMessage, error) {
	dataset := o.registry.Dataset(service, operation)
	if dataset == "" {
		err := cache.NewUnknownTargetError("operation", service+"."+operation)
		o.recordErr(err)
		return nil, err
	}
	return o.FetchNamed(ctx, service, operation, params, o.DatasetKey(dataset, params))
}

// DatasetKey builds the cache key of dataset for params.
func (o *Orchestrator) DatasetKey(dataset string, params cache.Params) string {
	return o.keys.BuildKey(dataset, params.Normalize())
}

// StoreDataKey builds the cache key FetchStoreData uses.
func (o *Orchestrator) StoreDataKey(store string, endpoint fallback.Endpoint, params cache.Params) string {
	scoped := params.Normalize().Without(cache.ParamStoreName)
	if store = normalizeStore(store); store != "" {
		scoped[cache.ParamStoreName] = store
	}
	return o.keys.BuildKey(StoreDatasetPrefix+endpoint.Dataset(), scoped)
}

// FetchStoreData returns store-scoped data for endpoint through the fallback
// chain. It fails only for unknown endpoints. Degraded results are returned
// but not cached.
func (o *Orchestrator) FetchStoreData(ctx context.Context, store, endpointName string, params cache.Params) (json.RawMessage, error) {
	start := time.Now()
	endpoint, err := fallback.ParseEndpoint(endpointName)
	if err != nil {
		o.recordErr(err)
		return nil, err
	}
	if o.resolver == nil {
		err := cache.NewUnknownTargetError("endpoint", endpointName)
		o.recordErr(err)
		return nil, err
	}

	store = normalizeStore(store)
	params = params.Normalize()
	key := o.StoreDataKey(store, endpoint, params)
	log := o.logger.WithFields(logrus.Fields{
		"request_id": uuid.NewString(),
		"key":        key,
		"store":      store,
		"endpoint":   string(endpoint),
	})

	if data, ok := o.cache.Get(ctx, key); ok {
		o.done(log, SourceCache, start)
		return data, nil
	}

	o.begin(key)
	defer o.end(key)

	v, _, _ := o.group.Do(key, func() (any, error) {
		if data, ok := o.cache.Get(ctx, key); ok {
			return fetchResult{data: data, source: SourceCache}, nil
		}

		res := o.resolver.Resolve(ctx, endpoint, store, params)
		o.metrics.ObserveFallback(string(res.Source))
		source := "fallback:" + string(res.Source)

		if res.Cacheable() {
			o.cache.Set(ctx, key, res.Data)
			return fetchResult{data: res.Data, source: source}, nil
		}

		if res.Err != nil && cache.IsTransportError(res.Err) {
			if stale, ok := o.cache.GetStale(ctx, key); ok {
				log.WithError(res.Err).Warn("analytics api unreachable, serving stale store data")
				return fetchResult{data: stale, source: SourceStale}, nil
			}
		}
		if res.Source == fallback.SourceUnavailable && res.Err != nil {
			o.recordErr(res.Err)
		}
		return fetchResult{data: res.Data, source: source}, nil
	})

	result := v.(fetchResult)
	o.done(log, result.source, start)
	return result.data, nil
}

// InvalidateCache removes every key containing pattern and returns the count.
func (o *Orchestrator) InvalidateCache(ctx context.Context, pattern string) int {
	removed := o.cache.Invalidate(ctx, pattern)
	o.logger.WithFields(logrus.Fields{"pattern": pattern, "removed": removed}).Debug("cache invalidated")
	return removed
}

// Invalidate lets the orchestrator act as an Invalidator.
func (o *Orchestrator) Invalidate(ctx context.Context, pattern string) int {
	return o.InvalidateCache(ctx, pattern)
}

// ClearAllCache empties both cache tiers.
func (o *Orchestrator) ClearAllCache(ctx context.Context) {
	o.cache.Clear(ctx)
}

// GetCachedAPIData returns the fresh cached payload for key.
func (o *Orchestrator) GetCachedAPIData(ctx context.Context, key string) (json.RawMessage, bool) {
	return o.cache.Get(ctx, key)
}

// Loading reports whether any remote request is in flight.
func (o *Orchestrator) Loading() bool {
	return o.active.Load() > 0
}

// LoadingKey reports whether a remote request for key is in flight.
func (o *Orchestrator) LoadingKey(key string) bool {
	n, ok := o.inflight.Load(key)
	return ok && n > 0
}

// Err returns the last page-level error.
func (o *Orchestrator) Err() error {
	o.errMu.RLock()
	defer o.errMu.RUnlock()
	return o.lastErr
}

// ClearErr resets the page-level error.
func (o *Orchestrator) ClearErr() {
	o.recordErr(nil)
}

func (o *Orchestrator) recordErr(err error) {
	o.errMu.Lock()
	o.lastErr = err
	o.errMu.Unlock()
}

func (o *Orchestrator) begin(key string) {
	o.active.Add(1)
	o.inflight.Compute(key, func(n int, loaded bool) (int, bool) {
		return n + 1, false
	})
}

func (o *Orchestrator) end(key string) {
	o.inflight.Compute(key, func(n int, loaded bool) (int, bool) {
		return n - 1, n <= 1
	})
	o.active.Add(-1)
}

func (o *Orchestrator) done(log logrus.FieldLogger, source string, start time.Time) {
	o.metrics.ObserveFetch(source)
	log.WithFields(logrus.Fields{
		"source":  source,
		"elapsed": time.Since(start),
	}).Debug("dataset served")
}

func normalizeStore(store string) string {
	store = strings.TrimSpace(store)
	if strings.EqualFold(store, cache.AllStores) {
		return ""
	}
	return store
}
