package cache

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = "::"

// MaxInlineSegment is the longest extra-parameter segment kept verbatim in a key.
// Longer segments are replaced by a digest so keys stay bounded.
const MaxInlineSegment = 96

// dateRangeSeparator joins the start and end date inside the date segment.
const dateRangeSeparator = "_to_"

// defaultKeyBuilder implements KeyBuilder with a fixed segment layout:
//
//	<dataset>::<start>_to_<end>::<store|all>::<name=value>...
//
// The dataset, date and store segments are always readable so that substring
// invalidation ("sales", "kpi", ...) keeps matching.
type defaultKeyBuilder struct{}

// NewDefaultKeyBuilder creates a new instance of the default key builder.
func NewDefaultKeyBuilder() KeyBuilder {
	return &defaultKeyBuilder{}
}

// BuildKey derives a deterministic key for dataset and params.
func (b *defaultKeyBuilder) BuildKey(dataset string, params Params) string {
	parts := []string{strings.TrimSpace(dataset)}

	start := params.String(ParamStartDate)
	end := params.String(ParamEndDate)
	if start != "" || end != "" {
		parts = append(parts, start+dateRangeSeparator+end)
	}

	store := params.StoreName()
	if store == "" {
		store = AllStores
	}
	parts = append(parts, store)

	if extra := b.extraSegment(params); extra != "" {
		parts = append(parts, extra)
	}

	return strings.Join(parts, KeySeparator)
}

// extraSegment serializes every parameter that is not part of the fixed layout,
// sorted by name for determinism.
func (b *defaultKeyBuilder) extraSegment(params Params) string {
	names := make([]string, 0, len(params))
	for name := range params {
		switch name {
		case ParamStartDate, ParamEndDate, ParamStoreName, ParamStoreNames:
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)

	pairs := make([]string, len(names))
	for i, name := range names {
		pairs[i] = name + "=" + serializeValue(params[name])
	}

	segment := strings.Join(pairs, KeySeparator)
	if len(segment) > MaxInlineSegment {
		return "h" + strconv.FormatUint(xxhash.Sum64String(segment), 16)
	}
	return segment
}

// serializeValue renders a parameter value deterministically.
func serializeValue(v any) string {
	if v == nil {
		return "nil"
	}

	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return t.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return "nil"
		}
		return serializeValue(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return "[]"
		}
		items := make([]string, rv.Len())
		for i := range items {
			items[i] = serializeValue(rv.Index(i).Interface())
		}
		return "[" + strings.Join(items, ",") + "]"
	case reflect.Map:
		return serializeMap(rv)
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return fmt.Sprintf("%v", v)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return "unsupported:" + reflect.TypeOf(v).String()
	}
	return string(data)
}

// serializeMap renders map entries sorted by their serialized key.
func serializeMap(rv reflect.Value) string {
	if rv.IsNil() {
		return "{}"
	}
	pairs := make([]string, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		pairs = append(pairs, serializeValue(iter.Key().Interface())+"="+serializeValue(iter.Value().Interface()))
	}
	sort.Strings(pairs)
	return "{" + strings.Join(pairs, ",") + "}"
}
