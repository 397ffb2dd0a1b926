package cacheinfra

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/sirupsen/logrus"
)

// TextCodeDurableStorage tags read, write and parse failures of the durable tier.
const TextCodeDurableStorage = "DURABLE_STORAGE_FAILURE"

// BlobStore is the storage the durable tier persists into.
// It mirrors cache.DurableStore so adapters can be passed straight through.
type BlobStore interface {
	ReadBlob(ctx context.Context, key string) ([]byte, bool, error)
	WriteBlob(ctx context.Context, key string, blob []byte) error
	DeleteBlob(ctx context.Context, key string) error
}

// durableTier keeps an in-memory mirror of the persisted blob. The mirror is
// loaded once and written back as a whole; storage failures are logged and
// never propagate into in-process cache operations.
type durableTier struct {
	store   BlobStore
	codec   BlobCodec
	blobKey string
	logger  logrus.FieldLogger
	observe Observer

	mu      sync.Mutex
	entries map[string]durableEntry
	dirty   bool

	// saveMu orders writes so an older snapshot never lands after a newer one.
	saveMu sync.Mutex
}

func newDurableTier(store BlobStore, codec BlobCodec, blobKey string, logger logrus.FieldLogger, observe Observer) *durableTier {
	return &durableTier{
		store:   store,
		codec:   codec,
		blobKey: blobKey,
		logger:  logger,
		observe: observe,
		entries: make(map[string]durableEntry),
	}
}

func (d *durableTier) enabled() bool {
	return d.store != nil
}

// load replaces the mirror with the persisted blob. A missing, unreadable,
// corrupt or outdated blob leaves the mirror empty.
func (d *durableTier) load(ctx context.Context, purge []string) {
	if !d.enabled() {
		return
	}

	entries := make(map[string]durableEntry)
	dirty := false

	data, ok, err := d.store.ReadBlob(ctx, d.blobKey)
	switch {
	case err != nil:
		d.logFailure(err, "read")
	case !ok:
		d.logger.WithField("blob_key", d.blobKey).Debug("no durable cache blob found")
	default:
		decoded, decodeErr := decodeBlob(d.codec, data)
		if decodeErr != nil {
			d.logFailure(decodeErr, "parse")
			// rewrite so the unusable blob is replaced on the next save
			dirty = true
		} else {
			entries = decoded
		}
	}

	for key := range entries {
		for _, pattern := range purge {
			if pattern != "" && strings.Contains(key, pattern) {
				delete(entries, key)
				dirty = true
				d.logger.WithField("key", key).Debug("purged durable cache entry on load")
				break
			}
		}
	}

	d.mu.Lock()
	d.entries = entries
	d.dirty = dirty
	d.mu.Unlock()

	d.logger.WithFields(logrus.Fields{
		"blob_key": d.blobKey,
		"entries":  len(entries),
	}).Info("durable cache loaded")
}

func (d *durableTier) get(key string) (durableEntry, bool) {
	if !d.enabled() {
		return durableEntry{}, false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.entries[key]
	return entry, ok
}

func (d *durableTier) set(key string, value json.RawMessage, now time.Time) {
	if !d.enabled() {
		return
	}
	d.mu.Lock()
	d.entries[key] = durableEntry{Value: value, InsertedAt: now}
	d.dirty = true
	d.mu.Unlock()
}

// remove deletes every key containing pattern and returns the removed keys.
func (d *durableTier) remove(pattern string) []string {
	if !d.enabled() {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	var removed []string
	for key := range d.entries {
		if strings.Contains(key, pattern) {
			delete(d.entries, key)
			removed = append(removed, key)
		}
	}
	if len(removed) > 0 {
		d.dirty = true
	}
	return removed
}

// clear empties the mirror and deletes the persisted blob.
func (d *durableTier) clear(ctx context.Context) {
	if !d.enabled() {
		return
	}

	d.saveMu.Lock()
	defer d.saveMu.Unlock()

	d.mu.Lock()
	d.entries = make(map[string]durableEntry)
	d.dirty = false
	d.mu.Unlock()

	if err := d.store.DeleteBlob(ctx, d.blobKey); err != nil {
		d.logFailure(err, "delete")
	}
}

func (d *durableTier) isDirty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dirty
}

func (d *durableTier) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// save serializes a snapshot of the mirror and writes it as one blob.
// The returned error is already logged.
func (d *durableTier) save(ctx context.Context) error {
	if !d.enabled() {
		return nil
	}

	d.saveMu.Lock()
	defer d.saveMu.Unlock()

	d.mu.Lock()
	snapshot := make(map[string]durableEntry, len(d.entries))
	for k, v := range d.entries {
		snapshot[k] = v
	}
	d.dirty = false
	d.mu.Unlock()

	data, err := encodeBlob(d.codec, snapshot)
	if err == nil {
		err = d.store.WriteBlob(ctx, d.blobKey, data)
	}
	if err != nil {
		d.mu.Lock()
		d.dirty = true
		d.mu.Unlock()
		d.observe.ObservePersist(false)
		return d.logFailure(err, "write")
	}

	d.observe.ObservePersist(true)
	d.logger.WithFields(logrus.Fields{
		"blob_key": d.blobKey,
		"entries":  len(snapshot),
		"bytes":    len(data),
	}).Debug("durable cache saved")
	return nil
}

func (d *durableTier) logFailure(err error, action string) error {
	wrapped := goerrors.Wrap(err, goerrors.CategoryInternal, "durable cache "+action+" failed").
		WithTextCode(TextCodeDurableStorage)
	fields := logrus.Fields{"blob_key": d.blobKey, "action": action}
	if errors.Is(err, errBlobVersion) {
		fields["reason"] = "version"
	}
	d.logger.WithFields(fields).WithError(wrapped).Warn("durable cache unavailable, continuing with in-process tier")
	return wrapped
}
