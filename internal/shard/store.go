package shard

import (
	"context"
	"fmt"
	"sort"

	"github.com/javanhut/bdb/internal/bdberr"
	"github.com/javanhut/bdb/internal/clock"
	"github.com/javanhut/bdb/internal/fieldmerge"
	"github.com/javanhut/bdb/internal/record"
	"github.com/javanhut/bdb/internal/storage"
	"github.com/javanhut/bdb/internal/uuidgen"
)

// IndexHook lets a collection's registered sort indexes stay in sync
// with every record mutation, without internal/shard importing
// internal/sortindex (which itself needs to import internal/shard to
// drive a full index build).
type IndexHook interface {
	OnInsert(ctx context.Context, rec *record.Record) error
	OnUpdate(ctx context.Context, newRec, oldRec *record.Record) error
	OnDelete(ctx context.Context, id string, oldRec *record.Record) error
}

// NopHook is an IndexHook that does nothing, used when a collection has
// no sort indexes registered.
type NopHook struct{}

func (NopHook) OnInsert(context.Context, *record.Record) error                { return nil }
func (NopHook) OnUpdate(context.Context, *record.Record, *record.Record) error { return nil }
func (NopHook) OnDelete(context.Context, string, *record.Record) error        { return nil }

// WriteOptions tunes an Update or Replace call per §4.1's operations
// table: Upsert creates the record under the given id if it does not
// already exist; TS overrides the clock-provided timestamp when
// non-zero, letting callers (e.g. a merge-driven reconciliation) stamp
// a write with a timestamp other than "now".
type WriteOptions struct {
	Upsert bool
	TS     uint64
}

// Store is a single collection's sharded record store: shardCount
// shard files under root, each holding a disjoint slice of records
// keyed by id, plus the IndexHook (given to New or SetHook) that keeps
// registered sort indexes in step with mutations.
type Store struct {
	st         storage.Store
	root       string
	shardCount uint32
	clock      clock.Provider
	ids        uuidgen.Generator
	hook       IndexHook
}

// New opens a collection store rooted at root (e.g. "collections/events")
// with shardCount shards. hook may be nil, equivalent to NopHook{}.
func New(st storage.Store, root string, shardCount uint32, clk clock.Provider, ids uuidgen.Generator, hook IndexHook) *Store {
	if shardCount == 0 {
		shardCount = DefaultShardCount
	}
	if hook == nil {
		hook = NopHook{}
	}
	return &Store{st: st, root: root, shardCount: shardCount, clock: clk, ids: ids, hook: hook}
}

// SetHook replaces the store's index hook; a nil hook is treated as
// NopHook{}.
func (s *Store) SetHook(hook IndexHook) {
	if hook == nil {
		hook = NopHook{}
	}
	s.hook = hook
}

// ShardCount returns the fixed shard count this store was opened with.
func (s *Store) ShardCount() uint32 { return s.shardCount }

func (s *Store) shardPath(shardID uint32) string {
	return fmt.Sprintf("%s/shards/%04d.shard", s.root, shardID)
}

func (s *Store) ownerShard(normalizedID string) (uint32, error) {
	return OwnerOf(normalizedID, s.shardCount)
}

// Insert creates a new record from fields, assigning it a fresh id and
// setting the root metadata timestamp to the current clock time; per
// §3, the root timestamp is a default for fields lacking an explicit
// stamp of their own, so no per-leaf metadata is written here. Returns
// ErrDuplicateInsert in the vanishingly unlikely event the generated id
// already exists in its shard.
func (s *Store) Insert(ctx context.Context, fields record.Fields) (*record.Record, error) {
	return s.InsertAt(ctx, fields, 0)
}

// InsertAt is Insert with an explicit timestamp override (§4.1's
// insert(record, ts?)); ts == 0 uses the clock's current time.
func (s *Store) InsertAt(ctx context.Context, fields record.Fields, ts uint64) (*record.Record, error) {
	id := s.ids.Generate()
	normalized, err := uuidgen.Normalize(id)
	if err != nil {
		return nil, err
	}
	return s.insertWithID(ctx, normalized, fields, ts)
}

// InsertWithID creates a new record under a caller-supplied id, for
// callers that must preserve an existing id.
func (s *Store) InsertWithID(ctx context.Context, id string, fields record.Fields) (*record.Record, error) {
	normalized, err := uuidgen.Normalize(id)
	if err != nil {
		return nil, err
	}
	return s.insertWithID(ctx, normalized, fields, 0)
}

func (s *Store) insertWithID(ctx context.Context, normalized string, fields record.Fields, ts uint64) (*record.Record, error) {
	shardID, err := s.ownerShard(normalized)
	if err != nil {
		return nil, err
	}
	path := s.shardPath(shardID)

	records, _, err := loadShard(ctx, s.st, path)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = map[string]*record.Record{}
	}
	if _, exists := records[normalized]; exists {
		return nil, bdberr.ErrDuplicateInsert
	}

	if ts == 0 {
		ts = s.clock.Now()
	}
	rec := &record.Record{
		ID:       uuidgen.Canonical(normalized),
		Fields:   record.CloneFields(fields),
		Metadata: &record.Meta{Timestamp: ts},
	}
	records[normalized] = rec

	if err := saveShard(ctx, s.st, path, records); err != nil {
		return nil, err
	}
	if err := s.hook.OnInsert(ctx, rec); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// Get returns the record with the given id, or (nil, false, nil) if it
// does not exist.
func (s *Store) Get(ctx context.Context, id string) (*record.Record, bool, error) {
	normalized, err := uuidgen.Normalize(id)
	if err != nil {
		return nil, false, err
	}
	shardID, err := s.ownerShard(normalized)
	if err != nil {
		return nil, false, err
	}
	records, ok, err := loadShard(ctx, s.st, s.shardPath(shardID))
	if err != nil || !ok {
		return nil, false, err
	}
	rec, found := records[normalized]
	if !found {
		return nil, false, nil
	}
	return rec.Clone(), true, nil
}

// Update applies a deep-merge partial update to an existing record,
// stamping only the leaves that actually changed. Returns
// (nil, false, nil) if the id does not exist, unless opts.Upsert is
// set, in which case a fresh record is created from updates (§4.1's
// update(id, updates, {upsert?, ts?})).
func (s *Store) Update(ctx context.Context, id string, updates record.Fields, opts WriteOptions) (*record.Record, bool, error) {
	normalized, err := uuidgen.Normalize(id)
	if err != nil {
		return nil, false, err
	}
	shardID, err := s.ownerShard(normalized)
	if err != nil {
		return nil, false, err
	}
	path := s.shardPath(shardID)

	records, _, err := loadShard(ctx, s.st, path)
	if err != nil {
		return nil, false, err
	}
	existing, found := records[normalized]
	if !found {
		if !opts.Upsert {
			return nil, false, nil
		}
		rec, err := s.insertWithID(ctx, normalized, updates, opts.TS)
		if err != nil {
			return nil, false, err
		}
		return rec, true, nil
	}
	if records == nil {
		records = map[string]*record.Record{}
	}

	ts := opts.TS
	if ts == 0 {
		ts = s.clock.Now()
	}
	newFields := fieldmerge.UpdateFields(existing.Fields, updates)
	newMeta := fieldmerge.UpdateMetadata(existing.Fields, updates, existing.Metadata, ts)

	rec := &record.Record{ID: existing.ID, Fields: newFields, Metadata: newMeta}
	records[normalized] = rec

	if err := saveShard(ctx, s.st, path, records); err != nil {
		return nil, false, err
	}
	if err := s.hook.OnUpdate(ctx, rec, existing.Clone()); err != nil {
		return nil, false, err
	}
	return rec.Clone(), true, nil
}

// Replace overwrites a record's entire field tree, assigning a single
// root metadata timestamp at the current clock time (or opts.TS, if
// non-zero) and discarding prior per-field history (§4.1: replace
// "assigns a single root timestamp to the replacement"). Returns
// (nil, false, nil) if the id does not exist, unless opts.Upsert is
// set, in which case fields is inserted fresh under id.
func (s *Store) Replace(ctx context.Context, id string, fields record.Fields, opts WriteOptions) (*record.Record, bool, error) {
	normalized, err := uuidgen.Normalize(id)
	if err != nil {
		return nil, false, err
	}
	shardID, err := s.ownerShard(normalized)
	if err != nil {
		return nil, false, err
	}
	path := s.shardPath(shardID)

	records, _, err := loadShard(ctx, s.st, path)
	if err != nil {
		return nil, false, err
	}
	existing, found := records[normalized]
	if !found {
		if !opts.Upsert {
			return nil, false, nil
		}
		rec, err := s.insertWithID(ctx, normalized, fields, opts.TS)
		if err != nil {
			return nil, false, err
		}
		return rec, true, nil
	}
	if records == nil {
		records = map[string]*record.Record{}
	}

	ts := opts.TS
	if ts == 0 {
		ts = s.clock.Now()
	}
	rec := &record.Record{ID: existing.ID, Fields: record.CloneFields(fields), Metadata: &record.Meta{Timestamp: ts}}
	records[normalized] = rec

	if err := saveShard(ctx, s.st, path, records); err != nil {
		return nil, false, err
	}
	if err := s.hook.OnUpdate(ctx, rec, existing.Clone()); err != nil {
		return nil, false, err
	}
	return rec.Clone(), true, nil
}

// Delete removes a record by id, deleting the shard file outright if
// it becomes empty. Returns false if the id did not exist.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	normalized, err := uuidgen.Normalize(id)
	if err != nil {
		return false, err
	}
	shardID, err := s.ownerShard(normalized)
	if err != nil {
		return false, err
	}
	path := s.shardPath(shardID)

	records, ok, err := loadShard(ctx, s.st, path)
	if err != nil || !ok {
		return false, err
	}
	existing, found := records[normalized]
	if !found {
		return false, nil
	}
	delete(records, normalized)

	if len(records) == 0 {
		if err := s.st.DeleteFile(ctx, path); err != nil {
			return false, err
		}
	} else if err := saveShard(ctx, s.st, path, records); err != nil {
		return false, err
	}

	if err := s.hook.OnDelete(ctx, existing.ID, existing.Clone()); err != nil {
		return false, err
	}
	return true, nil
}

// ShardRecords returns one shard's records sorted by normalized id, the
// deterministic per-shard order an index build processes in. Returns
// an empty slice if the shard file does not exist.
func (s *Store) ShardRecords(ctx context.Context, shardID uint32) ([]*record.Record, error) {
	records, ok, err := loadShard(ctx, s.st, s.shardPath(shardID))
	if err != nil || !ok {
		return nil, err
	}
	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]*record.Record, len(ids))
	for i, id := range ids {
		out[i] = records[id]
	}
	return out, nil
}

// GetAll loads and returns every record in the collection. Intended for
// small collections and tests; IterateRecords should be preferred for
// anything shard-count-sized or larger.
func (s *Store) GetAll(ctx context.Context) ([]*record.Record, error) {
	var out []*record.Record
	err := s.IterateRecords(ctx, func(rec *record.Record) error {
		out = append(out, rec)
		return nil
	})
	return out, err
}

// IterateRecords calls fn once per record across every shard, in shard
// order. Iteration stops at the first error fn returns.
func (s *Store) IterateRecords(ctx context.Context, fn func(*record.Record) error) error {
	return s.IterateShards(ctx, func(_ uint32, records map[string]*record.Record) error {
		for _, rec := range records {
			if err := fn(rec.Clone()); err != nil {
				return err
			}
		}
		return nil
	})
}

// IterateShards calls fn once per existing shard file, in shard-id
// order, with that shard's full record set. Missing shard files are
// skipped. Iteration stops at the first error fn returns.
func (s *Store) IterateShards(ctx context.Context, fn func(shardID uint32, records map[string]*record.Record) error) error {
	for shardID := uint32(0); shardID < s.shardCount; shardID++ {
		records, ok, err := loadShard(ctx, s.st, s.shardPath(shardID))
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := fn(shardID, records); err != nil {
			return err
		}
	}
	return nil
}

// Drop removes every shard file in the collection.
func (s *Store) Drop(ctx context.Context) error {
	return s.st.DeleteDir(ctx, s.root)
}
