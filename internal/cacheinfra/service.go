package cacheinfra

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/viccon/sturdyc"
)

// Lookup tiers reported to the Observer.
const (
	TierMemory  = "memory"
	TierDurable = "durable"
)

// Observer receives cache tier observations. cache.Metrics satisfies it.
type Observer interface {
	ObserveLookup(tier string, hit bool)
	ObservePersist(ok bool)
}

type nopObserver struct{}

func (nopObserver) ObserveLookup(string, bool) {}
func (nopObserver) ObservePersist(bool)        {}

// Option configures a TwoTierService.
type Option func(*TwoTierService)

// WithLogger sets the logger used for durable tier diagnostics.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *TwoTierService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver sets the receiver of lookup and persistence observations.
func WithObserver(observer Observer) Option {
	return func(s *TwoTierService) {
		if observer != nil {
			s.observer = observer
		}
	}
}

// WithClock overrides the clock used for freshness checks and the save loop.
func WithClock(clock sturdyc.Clock) Option {
	return func(s *TwoTierService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

var errAlreadyStarted = errors.New("cache service already initialized")

// TwoTierService is the dashboard cache: a sturdyc in-process tier backed by
// a durable tier that survives restarts. It is safe for concurrent use.
type TwoTierService struct {
	cfg      Config
	clock    sturdyc.Clock
	logger   logrus.FieldLogger
	observer Observer
	memory   *memoryTier
	durable  *durableTier

	lifecycle sync.Mutex
	started   bool
	stop      context.CancelFunc
	done      chan struct{}
}

// NewTwoTierService validates cfg and builds both tiers. store may be nil, in
// which case the cache runs with the in-process tier only.
// Call Init before use and Close on shutdown.
func NewTwoTierService(cfg Config, store BlobStore, opts ...Option) (*TwoTierService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	codec, err := CodecFor(cfg.Codec)
	if err != nil {
		return nil, err
	}

	s := &TwoTierService{
		cfg:      cfg,
		clock:    sturdyc.NewClock(),
		logger:   logrus.StandardLogger(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.memory = newMemoryTier(cfg, s.clock)
	s.durable = newDurableTier(store, codec, cfg.BlobKey, s.logger, s.observer)

	return s, nil
}

// Init loads the durable blob once and starts the periodic write-back loop.
func (s *TwoTierService) Init(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.started {
		return errAlreadyStarted
	}
	s.started = true

	s.durable.load(ctx, s.cfg.PurgeOnLoad)

	if s.cfg.SaveInterval <= 0 || !s.durable.enabled() {
		return nil
	}

	// the ticker is created before the loop starts so no tick can be missed
	ticks, stopTicker := s.clock.NewTicker(s.cfg.SaveInterval)
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.stop = cancel
	s.done = make(chan struct{})

	go s.saveLoop(loopCtx, ticks, stopTicker)
	return nil
}

func (s *TwoTierService) saveLoop(ctx context.Context, ticks <-chan time.Time, stopTicker func()) {
	defer close(s.done)
	defer stopTicker()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			if s.durable.isDirty() {
				_ = s.durable.save(ctx)
			}
		}
	}
}

// Close stops the write-back loop and persists any pending changes.
func (s *TwoTierService) Close(ctx context.Context) error {
	s.lifecycle.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.lifecycle.Unlock()

	if stop != nil {
		stop()
		<-done
	}

	if s.durable.isDirty() {
		return s.durable.save(ctx)
	}
	return nil
}

// Get returns a fresh in-process value, or a durable value copied back into
// the in-process tier with a new insertion time.
func (s *TwoTierService) Get(ctx context.Context, key string) (json.RawMessage, bool) {
	if value, ok := s.memory.get(key); ok {
		s.observer.ObserveLookup(TierMemory, true)
		return value, true
	}
	// expired entries linger in sturdyc until the next sweep
	s.memory.delete(key)
	s.observer.ObserveLookup(TierMemory, false)

	entry, ok := s.durable.get(key)
	if ok && s.cfg.DurableMaxAge > 0 && s.clock.Since(entry.InsertedAt) > s.cfg.DurableMaxAge {
		ok = false
	}
	s.observer.ObserveLookup(TierDurable, ok)
	if !ok {
		return nil, false
	}

	s.logger.WithField("key", key).Debug("serving from durable cache")
	s.memory.set(key, entry.Value)
	return entry.Value, true
}

// GetStale returns the durable value for key regardless of its age.
func (s *TwoTierService) GetStale(ctx context.Context, key string) (json.RawMessage, bool) {
	entry, ok := s.durable.get(key)
	if !ok {
		return nil, false
	}
	return entry.Value, true
}

// Set writes value to both tiers. Keys matching a critical pattern are
// persisted immediately; everything else waits for the save loop.
func (s *TwoTierService) Set(ctx context.Context, key string, value json.RawMessage) {
	s.memory.set(key, value)
	s.durable.set(key, value, s.clock.Now())

	if s.isCritical(key) {
		_ = s.durable.save(ctx)
	}
}

// Invalidate removes every key containing pattern from both tiers and returns
// the number of distinct keys removed. An empty pattern removes nothing.
func (s *TwoTierService) Invalidate(ctx context.Context, pattern string) int {
	if pattern == "" {
		return 0
	}

	removed := make(map[string]struct{})
	for _, key := range s.memory.deleteMatching(pattern) {
		removed[key] = struct{}{}
	}

	durableRemoved := s.durable.remove(pattern)
	for _, key := range durableRemoved {
		removed[key] = struct{}{}
	}

	if len(durableRemoved) > 0 {
		s.logger.WithFields(logrus.Fields{
			"pattern": pattern,
			"count":   len(durableRemoved),
		}).Info("durable cache invalidated")
		_ = s.durable.save(ctx)
	}

	return len(removed)
}

// Clear empties both tiers and deletes the durable blob.
func (s *TwoTierService) Clear(ctx context.Context) {
	s.memory.clear()
	s.durable.clear(ctx)
	s.logger.Info("all cache tiers cleared")
}

// Flush persists the durable tier now.
func (s *TwoTierService) Flush(ctx context.Context) error {
	return s.durable.save(ctx)
}

// Stats reports the number of entries held by each tier.
func (s *TwoTierService) Stats() (memory, durable int) {
	return s.memory.size(), s.durable.len()
}

func (s *TwoTierService) isCritical(key string) bool {
	for _, pattern := range s.cfg.CriticalPatterns {
		if strings.Contains(key, pattern) {
			return true
		}
	}
	return false
}
