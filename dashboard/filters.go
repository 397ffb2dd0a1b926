package dashboard

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/goliatone/go-dashboard-cache/cache"
)

// DefaultSelectedStore is the store selected before the store list is loaded.
const DefaultSelectedStore = "석촌점"

// DateRange is an inclusive range of "2006-01-02" dates.
type DateRange struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// Store is an entry of the store selector.
type Store struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FilterState is the dashboard filter selection.
type FilterState struct {
	DateRange       DateRange `json:"date_range"`
	Stores          []Store   `json:"stores"`
	SelectedStore   string    `json:"selected_store"`
	ProductCategory string    `json:"product_category"`
}

// DefaultFilterState selects March 1 to March 31 of now's year.
func DefaultFilterState(now time.Time) FilterState {
	year := now.Year()
	return FilterState{
		DateRange: DateRange{
			StartDate: time.Date(year, time.March, 1, 0, 0, 0, 0, time.UTC).Format("2006-01-02"),
			EndDate:   time.Date(year, time.March, 31, 0, 0, 0, 0, time.UTC).Format("2006-01-02"),
		},
		Stores:        []Store{},
		SelectedStore: DefaultSelectedStore,
	}
}

// Equal reports whether f and o select the same data.
func (f FilterState) Equal(o FilterState) bool {
	return f.DateRange == o.DateRange &&
		f.SelectedStore == o.SelectedStore &&
		f.ProductCategory == o.ProductCategory &&
		slices.Equal(f.Stores, o.Stores)
}

// Params returns the request parameters selected by f. An empty selected
// store means all stores and adds no store parameter.
func (f FilterState) Params() cache.Params {
	p := cache.Params{}
	if f.DateRange.StartDate != "" {
		p[cache.ParamStartDate] = f.DateRange.StartDate
	}
	if f.DateRange.EndDate != "" {
		p[cache.ParamEndDate] = f.DateRange.EndDate
	}
	if f.SelectedStore != "" {
		p[cache.ParamStoreName] = f.SelectedStore
	}
	return p
}

// FilterPatch is a partial update. Nil fields are left unchanged.
type FilterPatch struct {
	DateRange       *DateRange `json:"date_range,omitempty"`
	Stores          []Store    `json:"stores,omitempty"`
	SelectedStore   *string    `json:"selected_store,omitempty"`
	ProductCategory *string    `json:"product_category,omitempty"`
}

// Validate checks the date range of the patch.
func (p FilterPatch) Validate() error {
	if p.DateRange == nil {
		return nil
	}
	start, err := time.Parse("2006-01-02", p.DateRange.StartDate)
	if err != nil {
		return cache.NewInvalidParamError(cache.ParamStartDate, fmt.Sprintf("%q is not a date", p.DateRange.StartDate))
	}
	end, err := time.Parse("2006-01-02", p.DateRange.EndDate)
	if err != nil {
		return cache.NewInvalidParamError(cache.ParamEndDate, fmt.Sprintf("%q is not a date", p.DateRange.EndDate))
	}
	if end.Before(start) {
		return cache.NewInvalidParamError(cache.ParamEndDate, "must not be before start_date")
	}
	return nil
}

// FilterObserver is notified of filter transitions.
type FilterObserver interface {
	Observe(ctx context.Context, prev, next FilterState)
}

// FilterStore owns the filter state. All mutations go through Update.
type FilterStore struct {
	mu        sync.RWMutex
	state     FilterState
	observers []FilterObserver
}

// NewFilterStore creates a store holding initial.
func NewFilterStore(initial FilterState) *FilterStore {
	return &FilterStore{state: initial}
}

// State returns a copy of the current state.
func (s *FilterStore) State() FilterState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Subscribe registers o and delivers the current state to it as the
// initial observation.
func (s *FilterStore) Subscribe(ctx context.Context, o FilterObserver) {
	s.mu.Lock()
	s.observers = append(s.observers, o)
	current := s.state.clone()
	s.mu.Unlock()

	o.Observe(ctx, current, current)
}

// Update applies patch. Observers are notified only when the state changed.
func (s *FilterStore) Update(ctx context.Context, patch FilterPatch) (FilterState, bool) {
	s.mu.Lock()
	prev := s.state.clone()
	next := s.state.clone()
	if patch.DateRange != nil {
		next.DateRange = *patch.DateRange
	}
	if patch.Stores != nil {
		next.Stores = slices.Clone(patch.Stores)
	}
	if patch.SelectedStore != nil {
		next.SelectedStore = *patch.SelectedStore
	}
	if patch.ProductCategory != nil {
		next.ProductCategory = *patch.ProductCategory
	}

	if prev.Equal(next) {
		s.mu.Unlock()
		return prev, false
	}
	s.state = next
	observers := slices.Clone(s.observers)
	s.mu.Unlock()

	for _, o := range observers {
		o.Observe(ctx, prev, next.clone())
	}
	return next.clone(), true
}

func (f FilterState) clone() FilterState {
	f.Stores = slices.Clone(f.Stores)
	return f
}
