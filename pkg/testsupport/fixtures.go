package testsupport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// FixturePath constructs a path to a fixture file relative to the testdata directory.
func FixturePath(filename string) string {
	return filepath.Join("testdata", filename)
}

// GoldenPath constructs a path to a golden file relative to the testdata directory.
func GoldenPath(filename string) string {
	return filepath.Join("testdata", "golden", filename)
}

// LoadFixture loads a recorded analytics API payload.
func LoadFixture(t testing.TB, path string) json.RawMessage {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture from %s: %v", path, err)
	}
	if !json.Valid(data) {
		t.Fatalf("fixture %s is not valid JSON", path)
	}
	return json.RawMessage(data)
}

// LoadFixtureJSON loads a fixture and unmarshals it into dest.
func LoadFixtureJSON(t testing.TB, path string, dest any) {
	t.Helper()

	if err := json.Unmarshal(LoadFixture(t, path), dest); err != nil {
		t.Fatalf("failed to unmarshal JSON fixture from %s: %v", path, err)
	}
}

// WriteGolden writes payload, indented, to a golden file.
func WriteGolden(t testing.TB, path string, payload json.RawMessage) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, indent(t, payload), 0o644); err != nil {
		t.Fatalf("failed to write golden file to %s: %v", path, err)
	}
}

// CompareWithGolden compares payload with a golden file, ignoring formatting.
// A missing golden file is created from payload.
func CompareWithGolden(t testing.TB, path string, payload json.RawMessage) {
	t.Helper()

	expected, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		t.Logf("golden file %s does not exist, creating it", path)
		WriteGolden(t, path, payload)
		return
	}
	if err != nil {
		t.Fatalf("failed to read golden file %s: %v", path, err)
	}

	want, got := indent(t, expected), indent(t, payload)
	if !bytes.Equal(want, got) {
		t.Errorf("payload mismatch for %s:\nExpected:\n%s\nActual:\n%s", path, want, got)
	}
}

// DailyRows builds a daily sales payload with one row per date for store.
func DailyRows(store string, sales float64, dates ...string) json.RawMessage {
	rows := make([]string, len(dates))
	for i, date := range dates {
		rows[i] = fmt.Sprintf(`{"date":%q,"store_name":%q,"total_sales":%v}`, date, store, sales)
	}
	return json.RawMessage("[" + strings.Join(rows, ",") + "]")
}

func indent(t testing.TB, data []byte) []byte {
	t.Helper()

	var out bytes.Buffer
	if err := json.Indent(&out, bytes.TrimSpace(data), "", "  "); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	out.WriteByte('\n')
	return out.Bytes()
}
