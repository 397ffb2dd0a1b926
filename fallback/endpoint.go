package fallback

import (
	"strings"

	"github.com/goliatone/go-dashboard-cache/cache"
	"github.com/goliatone/go-dashboard-cache/remote"
)

// Endpoint is a store-scoped dataset the resolver knows how to degrade.
type Endpoint string

const (
	Daily    Endpoint = "daily"
	Hourly   Endpoint = "hourly"
	Products Endpoint = "products"
)

// Endpoints lists the supported endpoints.
var Endpoints = []Endpoint{Daily, Hourly, Products}

// ParseEndpoint validates name. Unknown names yield a validation error.
func ParseEndpoint(name string) (Endpoint, error) {
	e := Endpoint(strings.ToLower(strings.TrimSpace(name)))
	switch e {
	case Daily, Hourly, Products:
		return e, nil
	}
	return "", cache.NewUnknownTargetError("endpoint", name)
}

// Operation returns the service and operation backing e.
func (e Endpoint) Operation() (service, operation string) {
	switch e {
	case Daily:
		return "sales", "getDailySales"
	case Hourly:
		return "sales", "getHourlySales"
	case Products:
		return "sales", "getProductSales"
	}
	return "", ""
}

// Dataset is the cache dataset name for e.
func (e Endpoint) Dataset() string {
	switch e {
	case Daily:
		return "daily_sales"
	case Hourly:
		return "hourly_sales"
	case Products:
		return "product_sales"
	}
	return string(e)
}

// Operations maps each endpoint to its remote operation.
type Operations map[Endpoint]remote.Operation

// OperationsFrom resolves every endpoint against registry.
func OperationsFrom(registry *remote.Registry) (Operations, error) {
	ops := make(Operations, len(Endpoints))
	for _, e := range Endpoints {
		service, operation := e.Operation()
		op, err := registry.Lookup(service, operation)
		if err != nil {
			return nil, err
		}
		ops[e] = op
	}
	return ops, nil
}
