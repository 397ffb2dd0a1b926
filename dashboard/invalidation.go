package dashboard

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// DefaultInvalidationGroups are the key patterns dropped on every filter change.
var DefaultInvalidationGroups = []string{"sales", "kpi", "analytics", "store_status"}

// Invalidator removes cache entries matching a pattern.
type Invalidator interface {
	Invalidate(ctx context.Context, pattern string) int
}

// InvalidationManager clears filter dependent cache groups when the filter
// state changes. The first observation is the initial mount and is skipped.
type InvalidationManager struct {
	cache  Invalidator
	groups []string
	logger logrus.FieldLogger

	mu      sync.Mutex
	mounted bool
}

// NewInvalidationManager creates a manager for groups, or the default groups
// when none are given.
func NewInvalidationManager(c Invalidator, logger logrus.FieldLogger, groups ...string) *InvalidationManager {
	if len(groups) == 0 {
		groups = DefaultInvalidationGroups
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &InvalidationManager{cache: c, groups: groups, logger: logger}
}

// Observe implements FilterObserver.
func (m *InvalidationManager) Observe(ctx context.Context, prev, next FilterState) {
	m.mu.Lock()
	first := !m.mounted
	m.mounted = true
	m.mu.Unlock()

	if first || prev.Equal(next) {
		return
	}

	total := 0
	for _, group := range m.groups {
		total += m.cache.Invalidate(ctx, group)
	}
	m.logger.WithFields(logrus.Fields{
		"groups":  m.groups,
		"removed": total,
	}).Info("filters changed, cache invalidated")
}
