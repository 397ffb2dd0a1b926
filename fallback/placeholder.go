package fallback

import (
	"encoding/json"
	"time"

	"github.com/goliatone/go-dashboard-cache/cache"
)

const dateLayout = "2006-01-02"

// maxPlaceholderDays bounds daily placeholders for absurd ranges.
const maxPlaceholderDays = 3660

// PlaceholderProducts is the catalog used for product placeholders.
var PlaceholderProducts = []string{"우유식빵", "단팥빵", "크로와상"}

type dailyPlaceholder struct {
	Date                string `json:"date"`
	StoreName           string `json:"store_name"`
	TotalSales          int    `json:"total_sales"`
	ActualSales         int    `json:"actual_sales"`
	TotalDiscount       int    `json:"total_discount"`
	TransactionCount    int    `json:"transaction_count"`
	AvgTransactionValue int    `json:"avg_transaction_value"`
}

type hourlyPlaceholder struct {
	HourOfDay        int    `json:"hour_of_day"`
	TotalSales       int    `json:"total_sales"`
	ActualSales      int    `json:"actual_sales"`
	TransactionCount int    `json:"transaction_count"`
	StoreName        string `json:"store_name"`
}

type productPlaceholder struct {
	ProductName string `json:"product_name"`
	TotalSales  int    `json:"total_sales"`
	Quantity    int    `json:"quantity"`
	StoreName   string `json:"store_name"`
}

// Placeholder synthesizes zero-valued records shaped like endpoint's payload.
// The result depends only on its arguments.
func Placeholder(endpoint Endpoint, store string, params cache.Params) json.RawMessage {
	var v any
	switch endpoint {
	case Daily:
		v = dailyPlaceholders(store, params.String(cache.ParamStartDate), params.String(cache.ParamEndDate))
	case Hourly:
		rows := make([]hourlyPlaceholder, 24)
		for h := range rows {
			rows[h] = hourlyPlaceholder{HourOfDay: h, StoreName: store}
		}
		v = rows
	case Products:
		rows := make([]productPlaceholder, len(PlaceholderProducts))
		for i, name := range PlaceholderProducts {
			rows[i] = productPlaceholder{ProductName: name, StoreName: store}
		}
		v = rows
	default:
		return json.RawMessage("[]")
	}

	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("[]")
	}
	return data
}

// dailyPlaceholders returns one row per calendar day in [start, end].
// Missing, unparseable or inverted ranges produce no rows.
func dailyPlaceholders(store, start, end string) []dailyPlaceholder {
	rows := []dailyPlaceholder{}
	from, err := time.Parse(dateLayout, start)
	if err != nil {
		return rows
	}
	to, err := time.Parse(dateLayout, end)
	if err != nil || to.Before(from) {
		return rows
	}

	for d := from; !d.After(to) && len(rows) < maxPlaceholderDays; d = d.AddDate(0, 0, 1) {
		rows = append(rows, dailyPlaceholder{Date: d.Format(dateLayout), StoreName: store})
	}
	return rows
}
