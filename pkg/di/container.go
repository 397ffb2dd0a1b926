package di

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/viccon/sturdyc"

	"github.com/goliatone/go-dashboard-cache/cache"
	"github.com/goliatone/go-dashboard-cache/dashboard"
	"github.com/goliatone/go-dashboard-cache/fallback"
	"github.com/goliatone/go-dashboard-cache/internal/blobstore"
	"github.com/goliatone/go-dashboard-cache/internal/config"
	"github.com/goliatone/go-dashboard-cache/internal/metrics"
	"github.com/goliatone/go-dashboard-cache/remote"
)

// Container wires the dashboard data layer: durable blob storage, the two-tier
// cache, the analytics API client and registry, the store fallback resolver,
// the orchestrator and the filter state with its invalidation manager.
// Every component is created once and shared.
type Container struct {
	settings config.Settings
	logger   logrus.FieldLogger

	store        blobstore.Store
	cacheService cache.Service
	keyBuilder   cache.KeyBuilder
	metrics      *metrics.Prometheus

	client   *remote.Client
	registry *remote.Registry
	resolver *fallback.Resolver

	orchestrator *dashboard.Orchestrator
	filters      *dashboard.FilterStore
	invalidation *dashboard.InvalidationManager
	stores       *dashboard.StoreDirectory
}

type options struct {
	logger   logrus.FieldLogger
	store    blobstore.Store
	registry *remote.Registry
	clock    sturdyc.Clock
}

// Option customizes NewContainer.
type Option func(*options)

// WithLogger sets the logger shared by every component.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithBlobStore replaces the storage selected by the blob settings.
func WithBlobStore(store blobstore.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithRegistry replaces the registry backed by the analytics API client.
func WithRegistry(registry *remote.Registry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// WithClock replaces the cache clock, mainly for tests.
func WithClock(clock sturdyc.Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// NewContainer builds and initializes every component from settings. The
// durable tier is loaded before NewContainer returns; call Close on shutdown.
func NewContainer(ctx context.Context, settings config.Settings, opts ...Option) (*Container, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logrus.StandardLogger()
	}

	cacheConfig := settings.CacheConfig()
	if err := cacheConfig.Validate(); err != nil {
		return nil, err
	}

	c := &Container{
		settings:   settings,
		logger:     o.logger,
		keyBuilder: cache.NewDefaultKeyBuilder(),
		metrics:    metrics.NewPrometheus(),
	}

	store := o.store
	if store == nil {
		opened, err := blobstore.Open(ctx, settings.BlobOptions())
		if err != nil {
			return nil, err
		}
		store = opened
	}
	c.store = store

	cacheOpts := []cache.ServiceOption{cache.WithLogger(o.logger), cache.WithMetrics(c.metrics)}
	if o.clock != nil {
		cacheOpts = append(cacheOpts, cache.WithClock(o.clock))
	}
	var durable cache.DurableStore
	if store != nil {
		durable = store
	}
	svc, err := cache.NewCacheService(cacheConfig, durable, cacheOpts...)
	if err != nil {
		c.closeStore()
		return nil, err
	}
	if err := svc.Init(ctx); err != nil {
		c.closeStore()
		return nil, err
	}
	c.cacheService = svc

	c.registry = o.registry
	if c.registry == nil {
		client, err := remote.NewClient(settings.APIBaseURL,
			remote.WithTimeout(settings.APITimeout),
			remote.WithClientLogger(o.logger),
		)
		if err != nil {
			_ = c.Close(ctx)
			return nil, err
		}
		c.client = client
		c.registry = remote.NewClientRegistry(client)
	}

	ops, err := fallback.OperationsFrom(c.registry)
	if err != nil {
		_ = c.Close(ctx)
		return nil, err
	}
	aliases, err := settings.Aliases()
	if err != nil {
		_ = c.Close(ctx)
		return nil, err
	}
	var matcher fallback.StoreMatcher = fallback.FuzzyMatcher{}
	if len(aliases) > 0 {
		matcher = fallback.NewAliasMatcher(aliases, matcher)
	}
	c.resolver = fallback.NewResolver(ops, fallback.WithMatcher(matcher), fallback.WithLogger(o.logger))

	c.orchestrator = dashboard.NewOrchestrator(svc, c.registry, c.resolver,
		dashboard.WithKeyBuilder(c.keyBuilder),
		dashboard.WithMetrics(c.metrics),
		dashboard.WithLogger(o.logger),
	)

	c.filters = dashboard.NewFilterStore(dashboard.DefaultFilterState(nowFrom(o.clock)))
	c.invalidation = dashboard.NewInvalidationManager(c.orchestrator, o.logger)
	c.filters.Subscribe(ctx, c.invalidation)
	c.stores = dashboard.NewStoreDirectory(c.orchestrator, c.filters, o.logger)

	return c, nil
}

// NewContainerWithDefaults builds a container from the environment.
func NewContainerWithDefaults(ctx context.Context, opts ...Option) (*Container, error) {
	settings, err := config.Parse()
	if err != nil {
		return nil, err
	}
	return NewContainer(ctx, settings, opts...)
}

func (c *Container) Settings() config.Settings                   { return c.settings }
func (c *Container) CacheService() cache.Service                  { return c.cacheService }
func (c *Container) KeyBuilder() cache.KeyBuilder                 { return c.keyBuilder }
func (c *Container) Metrics() *metrics.Prometheus                 { return c.metrics }
func (c *Container) Registry() *remote.Registry                   { return c.registry }
func (c *Container) Client() *remote.Client                       { return c.client }
func (c *Container) Resolver() *fallback.Resolver                 { return c.resolver }
func (c *Container) Orchestrator() *dashboard.Orchestrator        { return c.orchestrator }
func (c *Container) Filters() *dashboard.FilterStore              { return c.filters }
func (c *Container) Invalidation() *dashboard.InvalidationManager { return c.invalidation }
func (c *Container) Stores() *dashboard.StoreDirectory            { return c.stores }

// Close flushes the durable tier and releases the blob storage.
func (c *Container) Close(ctx context.Context) error {
	var err error
	if c.cacheService != nil {
		err = c.cacheService.Close(ctx)
	}
	return errors.Join(err, c.closeStore())
}

func (c *Container) closeStore() error {
	if c.store == nil {
		return nil
	}
	return c.store.Close()
}

func nowFrom(clock sturdyc.Clock) time.Time {
	if clock != nil {
		return clock.Now()
	}
	return time.Now()
}
