package cache

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrInvalidResultType is returned when a cached payload cannot be decoded into the requested type.
var ErrInvalidResultType = errors.New("cache: cached payload does not match requested type")

// KeyBuilder derives a cache key from a dataset name and its request parameters.
// It is responsible for producing stable keys across calls and process restarts.
type KeyBuilder interface {
	BuildKey(dataset string, params Params) string
}

// DurableStore is the scoped key/blob storage the durable tier persists into.
// Implementations must treat a missing blob as (nil, false, nil).
type DurableStore interface {
	ReadBlob(ctx context.Context, key string) ([]byte, bool, error)
	WriteBlob(ctx context.Context, key string, blob []byte) error
	DeleteBlob(ctx context.Context, key string) error
}

// CacheService exposes the two-tier cache operations used by the dashboard orchestrator.
// Values are raw JSON payloads exactly as returned by the analytics API.
type CacheService interface {
	Get(ctx context.Context, key string) (json.RawMessage, bool)
	GetStale(ctx context.Context, key string) (json.RawMessage, bool)
	Set(ctx context.Context, key string, value json.RawMessage)
	Invalidate(ctx context.Context, pattern string) int
	Clear(ctx context.Context)
	Flush(ctx context.Context) error
}

// Metrics receives cache and fetch observations. Implementations must be safe for concurrent use.
type Metrics interface {
	ObserveLookup(tier string, hit bool)
	ObserveFetch(source string)
	ObserveFallback(source string)
	ObservePersist(ok bool)
}

// NopMetrics discards every observation.
type NopMetrics struct{}

func (NopMetrics) ObserveLookup(string, bool) {}
func (NopMetrics) ObserveFetch(string)        {}
func (NopMetrics) ObserveFallback(string)     {}
func (NopMetrics) ObservePersist(bool)        {}

// Decode is a type-safe helper that unmarshals a cached payload into T.
func Decode[T any](raw json.RawMessage) (T, error) {
	var out T
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		var zero T
		return zero, errors.Join(ErrInvalidResultType, err)
	}
	return out, nil
}

// GetAs looks up key and decodes the payload into T. ok is false on a miss or a decode failure.
func GetAs[T any](ctx context.Context, service CacheService, key string) (T, bool) {
	raw, ok := service.Get(ctx, key)
	if !ok {
		var zero T
		return zero, false
	}
	out, err := Decode[T](raw)
	if err != nil {
		var zero T
		return zero, false
	}
	return out, true
}
