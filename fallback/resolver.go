// Package fallback resolves store-scoped datasets through a degrade chain:
// scoped remote call, then the unscoped call filtered by store name, then
// synthetic placeholder records.
package fallback

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-dashboard-cache/cache"
)

// Source records which step of the chain produced a Resolution.
type Source string

const (
	SourceScoped      Source = "scoped"
	SourceUnscoped    Source = "unscoped"
	SourceFiltered    Source = "filtered"
	SourcePlaceholder Source = "placeholder"
	SourceUnavailable Source = "unavailable"
)

// Resolution is the outcome of Resolve. Data is always a JSON array.
type Resolution struct {
	Data   json.RawMessage
	Source Source
	// Err is the remote failure that forced a degraded Source, if any.
	Err error
}

// Cacheable reports whether Data came from a successful remote answer.
func (r Resolution) Cacheable() bool {
	switch r.Source {
	case SourceScoped, SourceUnscoped, SourceFiltered:
		return true
	}
	return false
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMatcher replaces the store matcher used on unscoped data.
func WithMatcher(m StoreMatcher) Option {
	return func(r *Resolver) {
		if m != nil {
			r.matcher = m
		}
	}
}

// WithLogger sets the resolver logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Resolver implements the store fallback chain.
type Resolver struct {
	ops     Operations
	matcher StoreMatcher
	logger  logrus.FieldLogger
}

// NewResolver creates a resolver over ops.
func NewResolver(ops Operations, opts ...Option) *Resolver {
	r := &Resolver{
		ops:     ops,
		matcher: FuzzyMatcher{},
		logger:  logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns store-scoped data for endpoint. It never fails: when no
// real data can be obtained it returns placeholders, or an empty array for
// unscoped requests.
func (r *Resolver) Resolve(ctx context.Context, endpoint Endpoint, store string, params cache.Params) Resolution {
	store = strings.TrimSpace(store)
	if strings.EqualFold(store, cache.AllStores) {
		store = ""
	}
	base := params.Normalize().Without(cache.ParamStoreName)

	log := r.logger.WithFields(logrus.Fields{
		"endpoint": string(endpoint),
		"store":    store,
	})

	op, ok := r.ops[endpoint]
	if !ok {
		err := cache.NewUnknownTargetError("endpoint", string(endpoint))
		log.WithError(err).Warn("no operation for endpoint")
		return Resolution{Data: json.RawMessage("[]"), Source: SourceUnavailable, Err: err}
	}

	if store == "" {
		res, err := op(ctx, base)
		if err != nil {
			log.WithError(err).Warn("unscoped request failed")
			return Resolution{Data: json.RawMessage("[]"), Source: SourceUnavailable, Err: err}
		}
		return Resolution{Data: res.Data, Source: SourceUnscoped}
	}

	res, err := op(ctx, base.With(cache.ParamStoreName, store))
	if err != nil {
		log.WithError(err).Debug("scoped request failed, trying unscoped data")
	} else if records := r.scopedRecords(endpoint, store, res.Data); len(records) > 0 {
		return Resolution{Data: encodeRecords(records), Source: SourceScoped}
	} else {
		log.Debug("scoped response has no usable data, trying unscoped data")
	}

	if ctx.Err() != nil {
		return r.placeholder(log, endpoint, store, params, ctx.Err())
	}

	res, err = op(ctx, base)
	if err != nil {
		log.WithError(err).Warn("unscoped request failed")
		return r.placeholder(log, endpoint, store, params, err)
	}

	records, _ := decodeRecords(res.Data)
	var matched []Record
	for _, rec := range records {
		if r.matcher.Match(rec.StoreName(), store) {
			matched = append(matched, rec.withStore(store))
		}
	}
	if len(matched) > 0 {
		log.WithField("records", len(matched)).Info("store data resolved from unscoped dataset")
		return Resolution{Data: encodeRecords(matched), Source: SourceFiltered}
	}

	return r.placeholder(log, endpoint, store, params, nil)
}

// scopedRecords keeps records that name store exactly and carry sales.
// Zero sales are meaningful only for the daily endpoint.
func (r *Resolver) scopedRecords(endpoint Endpoint, store string, raw json.RawMessage) []Record {
	records, ok := decodeRecords(raw)
	if !ok {
		return nil
	}
	var out []Record
	for _, rec := range records {
		if !strings.EqualFold(rec.StoreName(), store) {
			continue
		}
		if endpoint != Daily && rec.Number(fieldTotalSales) <= 0 {
			continue
		}
		out = append(out, rec.withStore(store))
	}
	return out
}

func (r *Resolver) placeholder(log logrus.FieldLogger, endpoint Endpoint, store string, params cache.Params, err error) Resolution {
	log.Info("no store data available, using placeholders")
	return Resolution{
		Data:   Placeholder(endpoint, store, params),
		Source: SourcePlaceholder,
		Err:    err,
	}
}
