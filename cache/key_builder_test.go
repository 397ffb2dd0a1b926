package cache

import (
	"strings"
	"testing"
	"time"
)

type stringerValue struct{ name string }

func (s stringerValue) String() string { return "stringer:" + s.name }

func TestDefaultKeyBuilder_BuildKey(t *testing.T) {
	builder := NewDefaultKeyBuilder()

	tests := []struct {
		name    string
		dataset string
		params  Params
		want    string
	}{
		{
			name:    "dataset only",
			dataset: "store_list",
			params:  nil,
			want:    "store_list::all",
		},
		{
			name:    "date range without store",
			dataset: "daily_sales",
			params:  Params{ParamStartDate: "2025-03-01", ParamEndDate: "2025-03-31"},
			want:    "daily_sales::2025-03-01_to_2025-03-31::all",
		},
		{
			name:    "scoped to a store",
			dataset: "store_daily_sales",
			params:  Params{ParamStartDate: "2025-03-01", ParamEndDate: "2025-03-31", ParamStoreName: "몽핀점"},
			want:    "store_daily_sales::2025-03-01_to_2025-03-31::몽핀점",
		},
		{
			name:    "all selector is unscoped",
			dataset: "kpi_summary",
			params:  Params{ParamStoreName: "all"},
			want:    "kpi_summary::all",
		},
		{
			name:    "list selector uses first store",
			dataset: "hourly_sales",
			params:  Params{ParamStoreName: []string{"명동점", "석촌점"}},
			want:    "hourly_sales::명동점",
		},
		{
			name:    "extra parameters sorted by name",
			dataset: "product_sales",
			params:  Params{ParamLimit: 15, "category": "bread", ParamStartDate: "2025-03-01", ParamEndDate: "2025-03-31"},
			want:    "product_sales::2025-03-01_to_2025-03-31::all::category=bread::limit=15",
		},
		{
			name:    "nil and slice values",
			dataset: "analytics_anomalies",
			params:  Params{"threshold": nil, "metrics": []int{1, 2}},
			want:    "analytics_anomalies::all::metrics=[1,2]::threshold=nil",
		},
		{
			name:    "stringer and time values",
			dataset: "analytics_forecast",
			params: Params{
				"model": stringerValue{name: "arima"},
				"as_of": time.Date(2025, 3, 1, 9, 0, 0, 0, time.FixedZone("KST", 9*3600)),
			},
			want: "analytics_forecast::all::as_of=2025-03-01T00:00:00Z::model=stringer:arima",
		},
		{
			name:    "map values sorted",
			dataset: "payment_types",
			params:  Params{"filter": map[string]int{"b": 2, "a": 1}},
			want:    "payment_types::all::filter={a=1,b=2}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := builder.BuildKey(tt.dataset, tt.params)
			if got != tt.want {
				t.Errorf("BuildKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDefaultKeyBuilder_Deterministic(t *testing.T) {
	builder := NewDefaultKeyBuilder()
	params := Params{"a": 1, "b": "two", "c": []string{"x", "y"}, ParamStoreName: "석촌점"}

	first := builder.BuildKey("daily_sales", params)
	for i := 0; i < 50; i++ {
		if got := builder.BuildKey("daily_sales", params.Clone()); got != first {
			t.Fatalf("expected stable key, got %q then %q", first, got)
		}
	}
}

func TestDefaultKeyBuilder_DistinctParams(t *testing.T) {
	builder := NewDefaultKeyBuilder()

	a := builder.BuildKey("product_sales", Params{ParamLimit: 10})
	b := builder.BuildKey("product_sales", Params{ParamLimit: 15})
	c := builder.BuildKey("product_sales", Params{ParamLimit: 10, ParamStoreName: "명동점"})

	if a == b || a == c || b == c {
		t.Errorf("expected distinct keys, got %q %q %q", a, b, c)
	}
}

func TestDefaultKeyBuilder_LongSegmentIsHashed(t *testing.T) {
	builder := NewDefaultKeyBuilder()
	long := strings.Repeat("x", MaxInlineSegment+1)

	key := builder.BuildKey("daily_sales", Params{ParamStartDate: "2025-03-01", ParamEndDate: "2025-03-31", "note": long})
	if strings.Contains(key, long) {
		t.Fatal("expected long segment to be replaced by a digest")
	}
	if !strings.HasPrefix(key, "daily_sales::2025-03-01_to_2025-03-31::all::h") {
		t.Errorf("expected readable prefix before the digest, got %q", key)
	}

	other := builder.BuildKey("daily_sales", Params{ParamStartDate: "2025-03-01", ParamEndDate: "2025-03-31", "note": long + "y"})
	if key == other {
		t.Error("expected different long values to hash differently")
	}
}
