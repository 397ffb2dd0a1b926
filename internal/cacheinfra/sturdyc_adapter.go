package cacheinfra

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/viccon/sturdyc"
)

// Config holds the configuration for the two-tier dashboard cache.
// The in-process tier options map directly onto sturdyc; the remaining
// fields govern the durable tier.
type Config struct {
	// Capacity defines the maximum number of entries the in-process tier can store.
	// Must be greater than 0.
	Capacity int

	// NumShards determines the number of sturdyc shards for concurrent access.
	// Must be greater than 0 and not exceed Capacity.
	NumShards int

	// MaxAge is how long an in-process entry stays fresh after insertion.
	// Must be greater than 0. Default: 30 minutes
	MaxAge time.Duration

	// EvictionPercentage specifies what percentage of entries to evict
	// when the in-process tier reaches its capacity. Must be between 1-100.
	EvictionPercentage int

	// EvictionInterval sets how often sturdyc sweeps expired entries.
	// Zero value uses the sturdyc default.
	EvictionInterval time.Duration

	// DisableContinuousEvictions turns off the background sweep entirely.
	DisableContinuousEvictions bool

	// SaveInterval is the period of the durable tier write-back loop.
	// Zero disables periodic saves; writes then only happen on critical keys,
	// invalidation and Flush. Default: 60 seconds
	SaveInterval time.Duration

	// DurableMaxAge bounds which durable entries may be copied back into the
	// in-process tier. Zero means durable entries never age out.
	DurableMaxAge time.Duration

	// CriticalPatterns lists key substrings whose writes are persisted immediately.
	CriticalPatterns []string

	// PurgeOnLoad lists key substrings dropped from the durable tier at load time.
	PurgeOnLoad []string

	// BlobKey names the single blob the durable tier is stored under.
	BlobKey string

	// Codec selects the blob encoding: "json" or "msgpack".
	Codec string
}

// DefaultConfig returns a Config with the dashboard defaults.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          64,
		MaxAge:             30 * time.Minute,
		EvictionPercentage: 10,
		EvictionInterval:   0, // Use default
		SaveInterval:       60 * time.Second,
		DurableMaxAge:      0,
		CriticalPatterns:   []string{"sales", "kpi"},
		PurgeOnLoad:        []string{"store_list"},
		BlobKey:            "LePain_dashboard_cache",
		Codec:              CodecJSON,
	}
}

// ToSturdycOptions converts the Config to a sturdyc.Option slice.
// Capacity, NumShards, MaxAge and EvictionPercentage are passed directly
// to sturdyc.New and are not included in the options.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option

	if c.DisableContinuousEvictions {
		options = append(options, sturdyc.WithNoContinuousEvictions())
	} else if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}

	return options
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}

	if c.NumShards <= 0 {
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	}

	if c.NumShards > c.Capacity {
		return &ConfigError{Field: "NumShards", Message: "must not exceed Capacity"}
	}

	if c.MaxAge <= 0 {
		return &ConfigError{Field: "MaxAge", Message: "must be greater than 0"}
	}

	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}

	if c.EvictionInterval < 0 {
		return &ConfigError{Field: "EvictionInterval", Message: "must be non-negative"}
	}

	if c.SaveInterval < 0 {
		return &ConfigError{Field: "SaveInterval", Message: "must be non-negative"}
	}

	if c.DurableMaxAge < 0 {
		return &ConfigError{Field: "DurableMaxAge", Message: "must be non-negative"}
	}

	if strings.TrimSpace(c.BlobKey) == "" {
		return &ConfigError{Field: "BlobKey", Message: "must not be empty"}
	}

	if _, err := CodecFor(c.Codec); err != nil {
		return &ConfigError{Field: "Codec", Message: err.Error()}
	}

	for _, p := range c.CriticalPatterns {
		if p == "" {
			return &ConfigError{Field: "CriticalPatterns", Message: "must not contain empty patterns"}
		}
	}

	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// memoryTier is the in-process tier, a sturdyc client holding raw JSON payloads.
// Entry freshness is enforced by sturdyc using the configured MaxAge as TTL.
type memoryTier struct {
	client *sturdyc.Client[json.RawMessage]
}

func newMemoryTier(cfg Config, clock sturdyc.Clock) *memoryTier {
	options := cfg.ToSturdycOptions()
	if clock != nil {
		options = append(options, sturdyc.WithClock(clock))
	}

	client := sturdyc.New[json.RawMessage](
		cfg.Capacity,
		cfg.NumShards,
		cfg.MaxAge,
		cfg.EvictionPercentage,
		options...,
	)

	return &memoryTier{client: client}
}

func (m *memoryTier) get(key string) (json.RawMessage, bool) {
	return m.client.Get(key)
}

// set stores value, restarting its freshness window.
func (m *memoryTier) set(key string, value json.RawMessage) {
	m.client.Set(key, value)
}

func (m *memoryTier) delete(key string) {
	m.client.Delete(key)
}

// deleteMatching removes every key containing pattern and returns the removed keys.
func (m *memoryTier) deleteMatching(pattern string) []string {
	var removed []string
	for _, key := range m.client.ScanKeys() {
		if strings.Contains(key, pattern) {
			m.client.Delete(key)
			removed = append(removed, key)
		}
	}
	return removed
}

func (m *memoryTier) clear() {
	for _, key := range m.client.ScanKeys() {
		m.client.Delete(key)
	}
}

func (m *memoryTier) size() int {
	return m.client.Size()
}
