package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-dashboard-cache/cache"
	"github.com/goliatone/go-dashboard-cache/dashboard"
	"github.com/goliatone/go-dashboard-cache/fallback"
	"github.com/goliatone/go-dashboard-cache/internal/blobstore"
	"github.com/goliatone/go-dashboard-cache/internal/httpapi"
	"github.com/goliatone/go-dashboard-cache/internal/metrics"
	"github.com/goliatone/go-dashboard-cache/remote"
)

type fixture struct {
	server  *httpapi.Server
	cache   cache.Service
	filters *dashboard.FilterStore
}

func jsonOp(payload string) remote.Operation {
	return func(ctx context.Context, params cache.Params) (*remote.Response, error) {
		return &remote.Response{Data: json.RawMessage(payload), Status: http.StatusOK}, nil
	}
}

func failingOp(err error) remote.Operation {
	return func(ctx context.Context, params cache.Params) (*remote.Response, error) {
		return nil, err
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := cache.DefaultConfig()
	cfg.Capacity = 100
	cfg.NumShards = 2
	cfg.SaveInterval = 0
	svc, err := cache.NewCacheService(cfg, blobstore.NewMemory(), cache.WithLogger(logger))
	require.NoError(t, err)
	require.NoError(t, svc.Init(ctx))
	t.Cleanup(func() { _ = svc.Close(ctx) })

	registry := remote.NewRegistry()
	registry.Register("sales.getDailySales", "daily_sales", func(ctx context.Context, params cache.Params) (*remote.Response, error) {
		if params.StoreName() != "" {
			return &remote.Response{Data: json.RawMessage(`[]`), Status: http.StatusOK}, nil
		}
		return &remote.Response{Data: json.RawMessage(`[{"date":"2025-03-01","store_name":"명동점","total_sales":100}]`), Status: http.StatusOK}, nil
	})
	registry.Register("sales.getHourlySales", "hourly_sales", jsonOp(`[]`))
	registry.Register("sales.getProductSales", "product_sales", jsonOp(`[]`))
	registry.Register("kpi.getSummary", "kpi_summary", failingOp(cache.NewLogicError(http.StatusUnprocessableEntity, "invalid range", "/api/kpi/summary")))
	registry.Register("trends.getSalesTrend", "sales_trend", failingOp(cache.NewTransportError(errors.New("refused"), "/api/trends/sales")))
	registry.Register("stores.getStoreList", dashboard.StoreListKey, jsonOp(`[{"id":1,"name":"명동점"}]`))

	ops, err := fallback.OperationsFrom(registry)
	require.NoError(t, err)
	resolver := fallback.NewResolver(ops, fallback.WithLogger(logger))

	prom := metrics.NewPrometheus()
	orch := dashboard.NewOrchestrator(svc, registry, resolver, dashboard.WithLogger(logger), dashboard.WithMetrics(prom))
	filters := dashboard.NewFilterStore(dashboard.DefaultFilterState(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	filters.Subscribe(ctx, dashboard.NewInvalidationManager(orch, logger))

	server := httpapi.NewServer(httpapi.ServerConfig{Addr: "127.0.0.1:0"}, httpapi.Deps{
		Orchestrator: orch,
		Filters:      filters,
		Stores:       dashboard.NewStoreDirectory(orch, filters, logger),
		Stats:        svc,
		Metrics:      prom,
		Logger:       logger,
	})
	return &fixture{server: server, cache: svc, filters: filters}
}

func (f *fixture) do(t *testing.T, method, target string, body any) (*httptest.ResponseRecorder, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.server.Echo().ServeHTTP(rec, req)
	return rec, rec.Body.Bytes()
}

func TestDatasets(t *testing.T) {
	f := newFixture(t)

	rec, body := f.do(t, http.MethodGet, "/api/datasets/sales/getDailySales?store_name=all", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"date":"2025-03-01","store_name":"명동점","total_sales":100}]`, string(body))

	_, ok := f.cache.Get(context.Background(), "daily_sales::2025-03-01_to_2025-03-31::all")
	assert.True(t, ok, "dataset should be cached under the filter date range")
}

func TestDatasets_ErrorMapping(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		target string
		status int
		code   string
	}{
		{"logic error keeps upstream status", "/api/datasets/kpi/getSummary", http.StatusUnprocessableEntity, cache.TextCodeRemote},
		{"transport error is bad gateway", "/api/datasets/trends/getSalesTrend", http.StatusBadGateway, cache.TextCodeTransport},
		{"unknown operation is bad request", "/api/datasets/sales/getEverything", http.StatusBadRequest, cache.TextCodeUnknownTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := f.do(t, http.MethodGet, tt.target, nil)
			require.Equal(t, tt.status, rec.Code)

			var res struct {
				Error string `json:"error"`
				Code  string `json:"code"`
			}
			require.NoError(t, json.Unmarshal(body, &res))
			assert.Equal(t, tt.code, res.Code)
			assert.NotEmpty(t, res.Error)
		})
	}
}

func TestStoreData(t *testing.T) {
	f := newFixture(t)

	target := "/api/stores/" + url.PathEscape("명동점") + "/daily?start_date=2025-03-01&end_date=2025-03-01"
	rec, body := f.do(t, http.MethodGet, target, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"date":"2025-03-01","store_name":"명동점","total_sales":100}]`, string(body))

	rec, _ = f.do(t, http.MethodGet, "/api/stores/"+url.PathEscape("명동점")+"/weekly", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStores(t *testing.T) {
	f := newFixture(t)

	rec, body := f.do(t, http.MethodGet, "/api/stores", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stores []dashboard.Store
	require.NoError(t, json.Unmarshal(body, &stores))
	require.Len(t, stores, 2)
	assert.Equal(t, dashboard.AllStoresOption, stores[0])
	assert.Equal(t, dashboard.Store{ID: "1", Name: "명동점"}, stores[1])
	assert.Equal(t, "", f.filters.State().SelectedStore)
}

func TestCacheEndpoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := "daily_sales::2025-03-01_to_2025-03-31::all"
	f.cache.Set(ctx, key, json.RawMessage(`[1,2]`))
	f.cache.Set(ctx, "notices::all", json.RawMessage(`[]`))

	rec, body := f.do(t, http.MethodGet, "/api/cache/"+url.PathEscape(key), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[1,2]`, string(body))

	rec, _ = f.do(t, http.MethodGet, "/api/cache/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = f.do(t, http.MethodDelete, "/api/cache", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = f.do(t, http.MethodDelete, "/api/cache?pattern=sales", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"pattern":"sales","removed":1}`, string(body))

	rec, _ = f.do(t, http.MethodDelete, "/api/cache/all", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	_, ok := f.cache.Get(ctx, "notices::all")
	assert.False(t, ok)
}

func TestFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.cache.Set(ctx, "kpi_summary::2025-03-01_to_2025-03-31::all", json.RawMessage(`{}`))

	rec, body := f.do(t, http.MethodGet, "/api/filters", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(body), `"selected_store":"석촌점"`)

	patch := map[string]any{"date_range": map[string]string{"start_date": "2025-02-01", "end_date": "2025-02-28"}}
	rec, body = f.do(t, http.MethodPut, "/api/filters", patch)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(body), `"changed":true`)

	_, ok := f.cache.Get(ctx, "kpi_summary::2025-03-01_to_2025-03-31::all")
	assert.False(t, ok, "filter change should invalidate kpi data")

	rec, body = f.do(t, http.MethodPut, "/api/filters", patch)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(body), `"changed":false`)

	bad := map[string]any{"date_range": map[string]string{"start_date": "2025-02-28", "end_date": "2025-02-01"}}
	rec, _ = f.do(t, http.MethodPut, "/api/filters", bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusHealthAndMetrics(t *testing.T) {
	f := newFixture(t)
	f.cache.Set(context.Background(), "notices::all", json.RawMessage(`[]`))

	f.do(t, http.MethodGet, "/api/datasets/kpi/getSummary", nil)

	rec, body := f.do(t, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status struct {
		Loading        bool   `json:"loading"`
		Error          string `json:"error"`
		MemoryEntries  int    `json:"memory_entries"`
		DurableEntries int    `json:"durable_entries"`
	}
	require.NoError(t, json.Unmarshal(body, &status))
	assert.False(t, status.Loading)
	assert.Contains(t, status.Error, "invalid range")
	assert.Equal(t, 1, status.MemoryEntries)
	assert.Equal(t, 1, status.DurableEntries)

	rec, _ = f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body = f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(string(body), "dashboard_cache_fetches_total"))
}
