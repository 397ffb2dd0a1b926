package fallback

import (
	"fmt"
	"strings"
)

// StoreMatcher decides whether a record's store name refers to the requested store.
type StoreMatcher interface {
	Match(recordName, requested string) bool
}

// FuzzyMatcher matches case-insensitively when the names are equal or either
// one contains the other, so "몽핀" and "몽핀점" refer to the same store.
type FuzzyMatcher struct{}

func (FuzzyMatcher) Match(recordName, requested string) bool {
	a := strings.ToLower(strings.TrimSpace(recordName))
	b := strings.ToLower(strings.TrimSpace(requested))
	if a == "" || b == "" {
		return false
	}
	return a == b || strings.Contains(a, b) || strings.Contains(b, a)
}

// AliasMatcher resolves names through an explicit alias table. Names without
// an entry are delegated to the fallback matcher.
type AliasMatcher struct {
	groups   map[string]int
	fallback StoreMatcher
}

// NewAliasMatcher builds a matcher from canonical name -> accepted variants.
// A nil fallback uses FuzzyMatcher.
func NewAliasMatcher(aliases map[string][]string, fallback StoreMatcher) *AliasMatcher {
	if fallback == nil {
		fallback = FuzzyMatcher{}
	}
	m := &AliasMatcher{groups: make(map[string]int), fallback: fallback}
	group := 0
	for canonical, variants := range aliases {
		m.groups[normalizeName(canonical)] = group
		for _, v := range variants {
			if n := normalizeName(v); n != "" {
				m.groups[n] = group
			}
		}
		group++
	}
	return m
}

func (m *AliasMatcher) Match(recordName, requested string) bool {
	g, ok := m.groups[normalizeName(requested)]
	if !ok {
		return m.fallback.Match(recordName, requested)
	}
	rg, ok := m.groups[normalizeName(recordName)]
	return ok && rg == g
}

// ParseAliases reads "canonical=variant,variant;canonical=variant".
func ParseAliases(raw string) (map[string][]string, error) {
	out := make(map[string][]string)
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		canonical, variants, ok := strings.Cut(entry, "=")
		canonical = strings.TrimSpace(canonical)
		if !ok || canonical == "" {
			return nil, fmt.Errorf("invalid store alias entry %q", entry)
		}
		for _, v := range strings.Split(variants, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out[canonical] = append(out[canonical], v)
			}
		}
		if _, seen := out[canonical]; !seen {
			out[canonical] = nil
		}
	}
	return out, nil
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
