package fallback

import "testing"

func TestFuzzyMatcher(t *testing.T) {
	tests := []struct {
		record    string
		requested string
		want      bool
	}{
		{"몽핀점", "몽핀점", true},
		{"MONG", "mong", true},
		{"몽핀점", "몽핀", true},
		{"몽핀", "몽핀점", true},
		{"석촌점", "몽핀점", false},
		{"", "몽핀점", false},
		{"몽핀점", "", false},
	}

	var m FuzzyMatcher
	for _, tt := range tests {
		if got := m.Match(tt.record, tt.requested); got != tt.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tt.record, tt.requested, got, tt.want)
		}
	}
}

func TestAliasMatcher(t *testing.T) {
	m := NewAliasMatcher(map[string][]string{
		"명동점": {"명동성당점", "Myeongdong"},
	}, nil)

	tests := []struct {
		record    string
		requested string
		want      bool
	}{
		{"명동성당점", "명동점", true},
		{"myeongdong", "명동점", true},
		{"명동점", "명동성당점", true},
		// aliased names do not fall back to substring matching
		{"명동 본점", "명동점", false},
		// names without an entry use the fallback matcher
		{"몽핀", "몽핀점", true},
	}

	for _, tt := range tests {
		if got := m.Match(tt.record, tt.requested); got != tt.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tt.record, tt.requested, got, tt.want)
		}
	}
}

func TestParseAliases(t *testing.T) {
	got, err := ParseAliases("명동점=명동성당점, Myeongdong ; 몽핀점=몽핀;석촌점=")
	if err != nil {
		t.Fatalf("ParseAliases() failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %v", got)
	}
	if v := got["명동점"]; len(v) != 2 || v[1] != "Myeongdong" {
		t.Errorf("unexpected variants for 명동점: %v", v)
	}
	if _, ok := got["석촌점"]; !ok {
		t.Error("expected entry without variants to be kept")
	}

	if _, err := ParseAliases("=몽핀"); err == nil {
		t.Error("expected error for missing canonical name")
	}
	if _, err := ParseAliases("몽핀점"); err == nil {
		t.Error("expected error for entry without '='")
	}
}
