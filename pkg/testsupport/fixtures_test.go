package testsupport

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/goliatone/go-dashboard-cache/cache"
)

func TestLoadFixture(t *testing.T) {
	data := LoadFixture(t, FixturePath("daily_sales.json"))
	if len(data) == 0 {
		t.Fatal("expected fixture data")
	}

	var rows []struct {
		Date       string  `json:"date"`
		StoreName  string  `json:"store_name"`
		TotalSales float64 `json:"total_sales"`
	}
	LoadFixtureJSON(t, FixturePath("daily_sales.json"), &rows)
	if len(rows) != 3 || rows[0].StoreName != "몽핀점" || rows[2].TotalSales != 30000 {
		t.Errorf("unexpected rows %+v", rows)
	}
}

func TestDailyRows_MatchesGolden(t *testing.T) {
	CompareWithGolden(t, GoldenPath("daily_rows.json"), DailyRows("몽핀점", 0, "2025-02-01", "2025-02-02"))
}

func TestWriteGolden(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.json")
	WriteGolden(t, path, json.RawMessage(`{"a":1}`))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read golden file: %v", err)
	}
	if string(data) != "{\n  \"a\": 1\n}\n" {
		t.Errorf("unexpected golden content %q", data)
	}

	// formatting differences are ignored
	CompareWithGolden(t, path, json.RawMessage(`{ "a" : 1 }`))
}

func TestCompareWithGolden_CreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "created.json")
	CompareWithGolden(t, path, json.RawMessage(`[]`))

	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected golden file to be created: %v", err)
	}
}

func TestPaths(t *testing.T) {
	if got := FixturePath("a.json"); got != filepath.Join("testdata", "a.json") {
		t.Errorf("unexpected fixture path %q", got)
	}
	if got := GoldenPath("a.json"); got != filepath.Join("testdata", "golden", "a.json") {
		t.Errorf("unexpected golden path %q", got)
	}
}

func TestScriptedAPI(t *testing.T) {
	ctx := context.Background()
	refused := cache.NewTransportError(errors.New("refused"), "/api/kpi/summary")
	api := NewScriptedAPI().
		RespondScoped("sales.getDailySales", json.RawMessage(`[]`), LoadFixture(t, FixturePath("daily_sales.json"))).
		Fail("kpi.getSummary", refused)
	registry := api.Registry()

	daily, err := registry.Lookup("sales", "getDailySales")
	if err != nil {
		t.Fatalf("Lookup() failed: %v", err)
	}

	scoped, err := daily(ctx, cache.Params{cache.ParamStoreName: []string{"몽핀점"}})
	if err != nil || string(scoped.Data) != `[]` {
		t.Errorf("expected empty scoped answer, got %s (%v)", scoped.Data, err)
	}
	unscoped, err := daily(ctx, cache.Params{cache.ParamStoreName: "all"})
	if err != nil || len(unscoped.Data) < 10 {
		t.Errorf("expected fixture for unscoped request, got %s (%v)", unscoped.Data, err)
	}
	if got := api.Calls("sales.getDailySales"); got != 2 {
		t.Errorf("expected 2 calls, got %d", got)
	}

	kpi, _ := registry.Lookup("kpi", "getSummary")
	if _, err := kpi(ctx, nil); !cache.IsTransportError(err) {
		t.Errorf("expected scripted transport error, got %v", err)
	}

	notices, _ := registry.Lookup("notice", "getNotices")
	res, err := notices(ctx, nil)
	if err != nil || string(res.Data) != `[]` {
		t.Errorf("expected empty array for unscripted operation, got %s (%v)", res.Data, err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := notices(cancelled, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context error, got %v", err)
	}
}
