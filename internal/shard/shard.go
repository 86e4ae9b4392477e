// Package shard implements the sharded record store (the "Collection"
// of the spec): uniform record distribution across a fixed number of
// shards, versioned binary shard files, and delegation to the merge
// engine and registered sort indexes on every mutation.
package shard

import (
	"context"
	"crypto/md5" //nolint:gosec // used only as a uniform hash for shard assignment, not for security
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/javanhut/bdb/internal/bdberr"
	"github.com/javanhut/bdb/internal/codec"
	"github.com/javanhut/bdb/internal/record"
	"github.com/javanhut/bdb/internal/storage"
	"github.com/javanhut/bdb/internal/uuidgen"
)

// DefaultShardCount is the shard count used when a Store is opened
// without an explicit override.
const DefaultShardCount = 100

const (
	shardFileVersionV1 uint32 = 1 // fields only
	shardFileVersionV2 uint32 = 2 // fields + metadata (current)
)

// OwnerOf computes the shard id a normalized (unhyphenated, lowercase)
// record id belongs to: the first four bytes of MD5(raw 16-byte id),
// read big-endian, modulo shardCount.
func OwnerOf(normalizedID string, shardCount uint32) (uint32, error) {
	raw, err := uuidgen.Raw(normalizedID)
	if err != nil {
		return 0, err
	}
	sum := md5.Sum(raw[:]) //nolint:gosec
	h := binary.BigEndian.Uint32(sum[:4])
	return h % shardCount, nil
}

// shardBody is the decoded contents of one shard file: records keyed
// by normalized (unhyphenated) id.
type shardBody struct {
	records map[string]*record.Record
}

func encodeShardFile(body map[string]*record.Record) ([]byte, error) {
	ids := make([]string, 0, len(body))
	for id := range body {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	w := codec.NewWriter()
	w.U32(uint32(len(ids)))
	for _, id := range ids {
		rec := body[id]
		raw, err := uuidgen.Raw(id)
		if err != nil {
			return nil, err
		}
		w.Raw(raw[:])
		if err := w.WriteSelfDelimitedBSON(rec.Fields); err != nil {
			return nil, err
		}
		if err := w.WriteSelfDelimitedBSON(metadataOrEmpty(rec.Metadata)); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

func metadataOrEmpty(m *record.Meta) *record.Meta {
	if m == nil {
		return &record.Meta{}
	}
	return m
}

func decodeShardFileV2(body []byte) (shardBody, error) {
	return decodeShardFile(body, true)
}

func decodeShardFileV1(body []byte) (shardBody, error) {
	return decodeShardFile(body, false)
}

func decodeShardFile(body []byte, hasMetadata bool) (shardBody, error) {
	r := codec.NewReader(body)
	count, err := r.U32()
	if err != nil {
		return shardBody{}, err
	}

	records := make(map[string]*record.Record, count)
	for i := uint32(0); i < count; i++ {
		raw, err := r.Raw(16)
		if err != nil {
			return shardBody{}, err
		}
		var id [16]byte
		copy(id[:], raw)
		normalized := fmt.Sprintf("%x", id[:])

		fields, err := r.ReadSelfDelimitedBSON()
		if err != nil {
			return shardBody{}, err
		}

		meta := &record.Meta{}
		if hasMetadata {
			m, err := codec.ReadSelfDelimitedBSONInto[record.Meta](r)
			if err != nil {
				return shardBody{}, err
			}
			meta = &m
		}

		records[normalized] = &record.Record{
			ID:       uuidgen.Canonical(normalized),
			Fields:   record.Fields(fields),
			Metadata: meta,
		}
	}

	return shardBody{records: records}, nil
}

var shardDecoders = codec.Decoders[shardBody]{
	shardFileVersionV1: decodeShardFileV1,
	shardFileVersionV2: decodeShardFileV2,
}

// saveShard frames and writes a shard's full record set.
func saveShard(ctx context.Context, st storage.Store, path string, records map[string]*record.Record) error {
	body, err := encodeShardFile(records)
	if err != nil {
		return err
	}
	return codec.Save(ctx, st, path, shardFileVersionV2, body)
}

// loadShard reads a shard file, returning (nil, false, nil) if it does
// not exist.
func loadShard(ctx context.Context, st storage.Store, path string) (map[string]*record.Record, bool, error) {
	body, ok, err := codec.Load(ctx, st, path, shardDecoders, nil, bdberr.ErrCorruptShard)
	if err != nil || !ok {
		return nil, ok, err
	}
	return body.records, true, nil
}
