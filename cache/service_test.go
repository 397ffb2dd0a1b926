package cache

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/viccon/sturdyc"
)

type memoryDurableStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func (m *memoryDurableStore) ReadBlob(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key]
	return data, ok, nil
}

func (m *memoryDurableStore) WriteBlob(ctx context.Context, key string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blobs == nil {
		m.blobs = make(map[string][]byte)
	}
	m.blobs[key] = blob
	return nil
}

func (m *memoryDurableStore) DeleteBlob(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

func silentLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Capacity = 50
	cfg.NumShards = 1
	cfg.SaveInterval = 0
	return cfg
}

func TestNewCacheService(t *testing.T) {
	t.Run("invalid config", func(t *testing.T) {
		cfg := smallConfig()
		cfg.Codec = "gob"
		if _, err := NewCacheService(cfg, nil); err == nil {
			t.Fatal("expected error for unknown codec")
		}
	})

	t.Run("in-process tier only", func(t *testing.T) {
		ctx := context.Background()
		svc, err := NewCacheService(smallConfig(), nil, WithLogger(silentLogger()))
		if err != nil {
			t.Fatalf("NewCacheService() failed: %v", err)
		}
		if err := svc.Init(ctx); err != nil {
			t.Fatalf("Init() failed: %v", err)
		}
		defer svc.Close(ctx)

		svc.Set(ctx, "kpi_summary::all", json.RawMessage(`{"total_sales":5}`))
		if _, ok := svc.Get(ctx, "kpi_summary::all"); !ok {
			t.Error("expected hit")
		}
		if _, ok := svc.GetStale(ctx, "kpi_summary::all"); ok {
			t.Error("expected no stale value without a durable tier")
		}
		if err := svc.Flush(ctx); err != nil {
			t.Errorf("Flush() without durable store should be a no-op, got %v", err)
		}
	})
}

func TestCacheService_MaxAgeBoundary(t *testing.T) {
	ctx := context.Background()
	clock := sturdyc.NewTestClock(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	cfg := smallConfig()
	cfg.DurableMaxAge = cfg.MaxAge

	svc, err := NewCacheService(cfg, &memoryDurableStore{}, WithLogger(silentLogger()), WithClock(clock))
	if err != nil {
		t.Fatalf("NewCacheService() failed: %v", err)
	}
	if err := svc.Init(ctx); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	defer svc.Close(ctx)

	key := NewDefaultKeyBuilder().BuildKey("daily_sales", Params{ParamStartDate: "2025-03-01", ParamEndDate: "2025-03-31"})
	svc.Set(ctx, key, json.RawMessage(`[]`))

	clock.Add(cfg.MaxAge - time.Millisecond)
	if _, ok := svc.Get(ctx, key); !ok {
		t.Fatal("expected entry younger than MaxAge to be served")
	}

	clock.Add(2 * time.Millisecond)
	if _, ok := svc.Get(ctx, key); ok {
		t.Fatal("expected entry older than MaxAge to be absent")
	}
}

func TestCacheService_DurableRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := &memoryDurableStore{}
	cfg := smallConfig()

	first, err := NewCacheService(cfg, store, WithLogger(silentLogger()))
	if err != nil {
		t.Fatalf("NewCacheService() failed: %v", err)
	}
	if err := first.Init(ctx); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	first.Set(ctx, "payment_types::all", json.RawMessage(`[{"payment_type":"card"}]`))
	if err := first.Close(ctx); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	second, err := NewCacheService(cfg, store, WithLogger(silentLogger()))
	if err != nil {
		t.Fatalf("NewCacheService() failed: %v", err)
	}
	if err := second.Init(ctx); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	defer second.Close(ctx)

	type payment struct {
		PaymentType string `json:"payment_type"`
	}
	got, ok := GetAs[[]payment](ctx, second, "payment_types::all")
	if !ok {
		t.Fatal("expected entry to survive restart")
	}
	if len(got) != 1 || got[0].PaymentType != "card" {
		t.Errorf("unexpected payload: %+v", got)
	}
	if mem, dur := second.Stats(); mem != 1 || dur != 1 {
		t.Errorf("expected one entry per tier, got memory=%d durable=%d", mem, dur)
	}
}

func TestDecode(t *testing.T) {
	type kpi struct {
		TotalSales float64 `json:"total_sales"`
	}

	tests := []struct {
		name    string
		raw     json.RawMessage
		want    kpi
		wantErr bool
	}{
		{name: "valid payload", raw: json.RawMessage(`{"total_sales":1200.5}`), want: kpi{TotalSales: 1200.5}},
		{name: "empty payload", raw: nil, want: kpi{}},
		{name: "wrong shape", raw: json.RawMessage(`[1,2]`), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode[kpi](tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidResultType) {
					t.Fatalf("expected ErrInvalidResultType, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

// mapCacheService is a minimal CacheService used to exercise the helpers.
type mapCacheService struct {
	values map[string]json.RawMessage
}

func (m *mapCacheService) Get(ctx context.Context, key string) (json.RawMessage, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *mapCacheService) GetStale(ctx context.Context, key string) (json.RawMessage, bool) {
	return m.Get(ctx, key)
}

func (m *mapCacheService) Set(ctx context.Context, key string, value json.RawMessage) {
	m.values[key] = value
}

func (m *mapCacheService) Invalidate(ctx context.Context, pattern string) int { return 0 }
func (m *mapCacheService) Clear(ctx context.Context)                         {}
func (m *mapCacheService) Flush(ctx context.Context) error                   { return nil }

func TestGetAs(t *testing.T) {
	ctx := context.Background()
	svc := &mapCacheService{values: map[string]json.RawMessage{
		"good": json.RawMessage(`["명동점","석촌점"]`),
		"bad":  json.RawMessage(`{"not":"a list"}`),
	}}

	got, ok := GetAs[[]string](ctx, svc, "good")
	if !ok || len(got) != 2 || got[1] != "석촌점" {
		t.Errorf("expected decoded list, got %v (ok=%v)", got, ok)
	}

	if _, ok := GetAs[[]string](ctx, svc, "bad"); ok {
		t.Error("expected decode failure to be reported as a miss")
	}

	if _, ok := GetAs[[]string](ctx, svc, "missing"); ok {
		t.Error("expected miss for unknown key")
	}
}

func TestNopMetrics(t *testing.T) {
	var m Metrics = NopMetrics{}
	m.ObserveLookup("memory", true)
	m.ObserveFetch("remote")
	m.ObserveFallback("placeholder")
	m.ObservePersist(false)
}
