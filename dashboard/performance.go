package dashboard

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/goliatone/go-dashboard-cache/cache"
)

// StorePerformance summarizes one store over a daily sales dataset.
type StorePerformance struct {
	TotalSales     float64 `json:"totalSales"`
	TotalCustomers float64 `json:"totalCustomers"`
	AverageTicket  float64 `json:"averageTicket"`
	SalesCount     int     `json:"salesCount"`
}

// AggregateStorePerformance groups daily sales rows by store. Rows without a
// store name are skipped.
func AggregateStorePerformance(raw json.RawMessage) (map[string]StorePerformance, error) {
	var rows []struct {
		StoreName     string  `json:"store_name"`
		TotalSales    float64 `json:"total_sales"`
		CustomerCount float64 `json:"customer_count"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, cache.NewMalformedResponseError(fmt.Errorf("daily sales: %w", err), "sales.getDailySales")
	}

	out := make(map[string]StorePerformance)
	for _, row := range rows {
		if row.StoreName == "" {
			continue
		}
		p := out[row.StoreName]
		p.TotalSales += row.TotalSales
		p.TotalCustomers += row.CustomerCount
		p.SalesCount++
		out[row.StoreName] = p
	}

	for name, p := range out {
		if p.TotalCustomers > 0 {
			p.AverageTicket = p.TotalSales / p.TotalCustomers
		}
		out[name] = p
	}
	return out, nil
}

// StorePerformance fetches the daily sales dataset for params and aggregates it.
func (o *Orchestrator) StorePerformance(ctx context.Context, params cache.Params) (map[string]StorePerformance, error) {
	raw, err := o.FetchDataset(ctx, "sales", "getDailySales", params)
	if err != nil {
		return nil, err
	}
	return AggregateStorePerformance(raw)
}
