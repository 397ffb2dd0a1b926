// Package cache provides the caching interfaces, key building and error
// classification shared by the dashboard data layer.
//
// # Overview
//
// The package exports the contracts the rest of the module is written against:
//
//   - CacheService: the two-tier cache of raw JSON payloads
//   - KeyBuilder: derives stable keys from a dataset name and its Params
//   - DurableStore: the blob storage behind the durable tier
//   - Metrics: receives lookup, fetch, fallback and persistence observations
//
// NewCacheService returns the default implementation: a sturdyc in-process
// tier whose entries stay fresh for Config.MaxAge, backed by a durable tier
// that is loaded once at Init, written back every Config.SaveInterval and
// written immediately when a key matching Config.CriticalPatterns changes.
//
// # Basic Usage
//
//	svc, err := cache.NewCacheService(cache.DefaultConfig(), store, cache.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	if err := svc.Init(ctx); err != nil {
//		return err
//	}
//	defer svc.Close(ctx)
//
//	key := cache.NewDefaultKeyBuilder().BuildKey("daily_sales", cache.Params{
//		cache.ParamStartDate: "2025-03-01",
//		cache.ParamEndDate:   "2025-03-31",
//	})
//	svc.Set(ctx, key, payload)
//
// # Keys
//
// Keys keep the dataset, date range and store readable so that substring
// invalidation works:
//
//	daily_sales::2025-03-01_to_2025-03-31::all
//	store_hourly_sales::2025-03-01_to_2025-03-31::몽핀점::limit=24
//
// Additional parameters are sorted by name. When they serialize to more than
// MaxInlineSegment bytes they are replaced by an xxhash digest.
//
// # Invalidation
//
// Invalidate removes every key containing the pattern from both tiers. It is
// a plain substring match, so "sales" also removes "store_daily_sales" keys.
//
// # Error Handling
//
// Durable tier failures never surface from Get, Set or Invalidate; they are
// logged and the in-process tier keeps working. Remote call failures are
// classified with IsTransportError and IsLogicError so callers can decide
// whether stale data may be served.
package cache
