package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-dashboard-cache/cache"
)

// StoreListKey is the cache key of the store selector list. It is purged from
// the durable tier on every start.
const StoreListKey = "store_list"

// AllStoresOption is the selector entry meaning every store.
var AllStoresOption = Store{ID: cache.AllStores, Name: "전체"}

// DefaultStores is used when the store list cannot be fetched.
var DefaultStores = []Store{
	AllStoresOption,
	{ID: "store-1", Name: "명동점"},
	{ID: "store-2", Name: "석촌점"},
	{ID: "store-3", Name: "몽핀점"},
}

// StoreDirectory loads the store selector list into the filter state.
type StoreDirectory struct {
	orch    *Orchestrator
	filters *FilterStore
	logger  logrus.FieldLogger
}

// NewStoreDirectory creates a directory publishing into filters.
func NewStoreDirectory(orch *Orchestrator, filters *FilterStore, logger logrus.FieldLogger) *StoreDirectory {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &StoreDirectory{orch: orch, filters: filters, logger: logger}
}

// Load returns the store list, from cache when possible, and selects all
// stores in the filter state. A failed fetch falls back to DefaultStores and
// records a page-level error; Load itself does not fail.
func (d *StoreDirectory) Load(ctx context.Context) []Store {
	stores := d.load(ctx)

	all := ""
	d.filters.Update(ctx, FilterPatch{Stores: stores, SelectedStore: &all})
	return stores
}

func (d *StoreDirectory) load(ctx context.Context) []Store {
	if cached, ok := cache.GetAs[[]Store](ctx, d.orch.cache, StoreListKey); ok {
		d.logger.WithField("stores", len(cached)).Debug("store list loaded from cache")
		return withAllOption(cached)
	}

	d.orch.begin(StoreListKey)
	defer d.orch.end(StoreListKey)

	stores, err := d.fetch(ctx)
	if err != nil {
		d.logger.WithError(err).Warn("store list unavailable, using default stores")
		stores = append([]Store(nil), DefaultStores...)
		d.orch.recordErr(fmt.Errorf("failed to load the store list: %w", err))
	}

	if data, err := json.Marshal(stores); err == nil {
		d.orch.cache.Set(ctx, StoreListKey, data)
	}
	return stores
}

func (d *StoreDirectory) fetch(ctx context.Context) ([]Store, error) {
	op, err := d.orch.registry.Lookup("stores", "getStoreList")
	if err != nil {
		return nil, err
	}
	res, err := op(ctx, nil)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		ID   json.RawMessage `json:"id"`
		Name string          `json:"name"`
	}
	if err := json.Unmarshal(res.Data, &rows); err != nil {
		return nil, cache.NewMalformedResponseError(err, "stores.getStoreList")
	}

	stores := make([]Store, 0, len(rows)+1)
	stores = append(stores, AllStoresOption)
	for i, row := range rows {
		id := rawID(row.ID)
		if id == "" {
			id = fmt.Sprintf("store-%d", i)
		}
		stores = append(stores, Store{ID: id, Name: row.Name})
	}
	return stores, nil
}

// withAllOption prepends the all-stores entry when it is missing.
func withAllOption(stores []Store) []Store {
	for _, s := range stores {
		if s.ID == AllStoresOption.ID {
			return stores
		}
	}
	return append([]Store{AllStoresOption}, stores...)
}

func rawID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}
