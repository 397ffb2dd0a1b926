package cacheinfra

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// BlobVersion is the envelope version written by this package. Blobs carrying
// any other version are discarded on load.
const BlobVersion = 1

// Supported blob codecs.
const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

var errBlobVersion = errors.New("durable blob version mismatch")

// durableEntry is one key of the durable tier.
type durableEntry struct {
	Value      json.RawMessage `json:"value" msgpack:"value"`
	InsertedAt time.Time       `json:"inserted_at" msgpack:"inserted_at"`
}

// blobEnvelope is the serialized form of the whole durable tier.
type blobEnvelope struct {
	Version int                     `json:"version" msgpack:"version"`
	Entries map[string]durableEntry `json:"entries" msgpack:"entries"`
}

// BlobCodec encodes the durable tier envelope.
type BlobCodec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type jsonCodec struct{}

func (jsonCodec) Name() string                       { return CodecJSON }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

type msgpackCodec struct{}

func (msgpackCodec) Name() string                       { return CodecMsgpack }
func (msgpackCodec) Marshal(v any) ([]byte, error)      { return msgpack.Marshal(v) }
func (msgpackCodec) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

// CodecFor returns the codec registered under name. An empty name selects JSON.
func CodecFor(name string) (BlobCodec, error) {
	switch name {
	case "", CodecJSON:
		return jsonCodec{}, nil
	case CodecMsgpack:
		return msgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

func encodeBlob(codec BlobCodec, entries map[string]durableEntry) ([]byte, error) {
	return codec.Marshal(blobEnvelope{Version: BlobVersion, Entries: entries})
}

func decodeBlob(codec BlobCodec, data []byte) (map[string]durableEntry, error) {
	var env blobEnvelope
	if err := codec.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if env.Version != BlobVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", errBlobVersion, env.Version, BlobVersion)
	}
	if env.Entries == nil {
		env.Entries = make(map[string]durableEntry)
	}
	return env.Entries, nil
}
