package cache

import (
	"fmt"
	"strings"
)

// Well known request parameter names understood by the analytics API.
const (
	ParamStartDate  = "start_date"
	ParamEndDate    = "end_date"
	ParamStoreName  = "store_name"
	ParamStoreNames = "store_names"
	ParamLimit      = "limit"
)

// AllStores is the store selector used in keys for unscoped requests.
const AllStores = "all"

// Params holds the scalar query parameters of a dataset request.
type Params map[string]any

// Clone returns a shallow copy of p. A nil receiver yields an empty, writable map.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Without returns a copy of p with the given keys removed.
func (p Params) Without(keys ...string) Params {
	out := p.Clone()
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// With returns a copy of p with key set to value.
func (p Params) With(key string, value any) Params {
	out := p.Clone()
	out[key] = value
	return out
}

// String returns the parameter as a trimmed string, or "" when absent or nil.
func (p Params) String(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []string:
		if len(t) == 0 {
			return ""
		}
		return strings.TrimSpace(t[0])
	case []any:
		if len(t) == 0 || t[0] == nil {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(t[0]))
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// StoreName returns the store selector carried by p, or "" for all stores.
func (p Params) StoreName() string {
	name := p.String(ParamStoreName)
	if strings.EqualFold(name, AllStores) {
		return ""
	}
	return name
}

// Normalize collapses list-valued store selectors to their first element and
// renames the legacy store_names parameter to store_name. A blank or "all"
// selector is removed so the request matches its unscoped cache key.
func (p Params) Normalize() Params {
	out := p.Clone()
	if names, ok := out[ParamStoreNames]; ok {
		if _, has := out[ParamStoreName]; !has || out.String(ParamStoreName) == "" {
			out[ParamStoreName] = names
		}
		delete(out, ParamStoreNames)
	}
	if _, ok := out[ParamStoreName]; ok {
		if name := out.StoreName(); name != "" {
			out[ParamStoreName] = name
		} else {
			delete(out, ParamStoreName)
		}
	}
	return out
}
