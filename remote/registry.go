package remote

import (
	"sort"
	"sync"

	"github.com/goliatone/go-dashboard-cache/cache"
)

// Endpoint describes one read operation of the analytics API.
type Endpoint struct {
	// Name is the "service.operation" identifier.
	Name string
	// Path may contain {name} segments filled from request params.
	Path string
	// Dataset is the key prefix used when caching the operation's results.
	Dataset string
}

// Endpoints lists every read operation of the analytics API.
var Endpoints = []Endpoint{
	{Name: "sales.getDailySales", Path: "/api/sales/daily", Dataset: "daily_sales"},
	{Name: "sales.getProductSales", Path: "/api/sales/products", Dataset: "product_sales"},
	{Name: "sales.getHourlySales", Path: "/api/sales/hourly", Dataset: "hourly_sales"},
	{Name: "sales.getHourlyProductSales", Path: "/api/sales/products/hourly", Dataset: "hourly_product_sales"},
	{Name: "sales.getPaymentTypes", Path: "/api/sales/payment_types", Dataset: "payment_types"},
	{Name: "sales.getSalesComparison", Path: "/api/sales/comparison", Dataset: "sales_comparison"},

	{Name: "kpi.getSummary", Path: "/api/kpi/summary", Dataset: "kpi_summary"},
	{Name: "kpi.getTrends", Path: "/api/kpi/trends", Dataset: "kpi_trends"},
	{Name: "kpi.getProductMetrics", Path: "/api/kpi/products", Dataset: "kpi_products"},
	{Name: "kpi.getCategoryMetrics", Path: "/api/kpi/categories", Dataset: "kpi_categories"},

	{Name: "stores.getStoreList", Path: "/api/stores", Dataset: "store_list"},
	{Name: "stores.getStoreDetails", Path: "/api/stores/{id}", Dataset: "store_details"},
	{Name: "stores.getStoreBenchmark", Path: "/api/stores/{id}/benchmark", Dataset: "store_benchmark"},

	{Name: "analytics.getAnomalies", Path: "/api/analytics/anomalies", Dataset: "analytics_anomalies"},
	{Name: "analytics.getCorrelations", Path: "/api/analytics/correlations", Dataset: "analytics_correlations"},
	{Name: "analytics.getPatterns", Path: "/api/analytics/patterns", Dataset: "analytics_patterns"},
	{Name: "analytics.getFactors", Path: "/api/analytics/factors", Dataset: "analytics_factors"},
	{Name: "analytics.getForecast", Path: "/api/analytics/forecast", Dataset: "analytics_forecast"},

	{Name: "compare.getStoresComparison", Path: "/api/compare/store", Dataset: "compare_store"},
	{Name: "compare.getStoreComparison", Path: "/api/compare/store", Dataset: "compare_store"},
	{Name: "compare.getBenchmark", Path: "/api/compare/benchmark", Dataset: "compare_benchmark"},
	{Name: "compare.getFactors", Path: "/api/compare/factors", Dataset: "compare_factors"},
	{Name: "compare.getBestPractices", Path: "/api/compare/best_practices", Dataset: "compare_best_practices"},
	{Name: "compare.getTopPerformers", Path: "/api/compare/top_performers", Dataset: "top_performers"},

	{Name: "trends.getForecast", Path: "/api/trends/forecast", Dataset: "trends_forecast"},
	{Name: "trends.getSeasonality", Path: "/api/trends/seasonality", Dataset: "trends_seasonality"},

	{Name: "notice.getNotices", Path: "/api/notice", Dataset: "notices"},
	{Name: "notice.getNoticeById", Path: "/api/notice/{id}", Dataset: "notice_detail"},
}

type registered struct {
	op      Operation
	dataset string
}

// Registry maps "service.operation" names to operations.
type Registry struct {
	mu  sync.RWMutex
	ops map[string]registered
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]registered)}
}

// NewClientRegistry registers every entry of Endpoints against client.
func NewClientRegistry(client *Client) *Registry {
	r := NewRegistry()
	for _, ep := range Endpoints {
		r.Register(ep.Name, ep.Dataset, client.Operation(ep.Path))
	}
	return r
}

// Register adds or replaces the operation stored under name.
func (r *Registry) Register(name, dataset string, op Operation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[name] = registered{op: op, dataset: dataset}
}

// Lookup returns the operation registered as service.operation.
func (r *Registry) Lookup(service, operation string) (Operation, error) {
	entry, ok := r.lookup(service + "." + operation)
	if !ok {
		return nil, cache.NewUnknownTargetError("operation", service+"."+operation)
	}
	return entry.op, nil
}

// Dataset returns the dataset name of service.operation, or "" when unknown.
func (r *Registry) Dataset(service, operation string) string {
	entry, _ := r.lookup(service + "." + operation)
	return entry.dataset
}

// Names lists the registered operations in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) lookup(name string) (registered, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.ops[name]
	return entry, ok
}
