package bdb

import (
	"context"
	"fmt"

	"github.com/javanhut/bdb/internal/record"
	"github.com/javanhut/bdb/internal/shard"
	"github.com/javanhut/bdb/internal/sortindex"
)

// Collection is one named bucket of records plus whatever sort indexes
// have been built against it. It's a thin wrapper over shard.Store that
// keeps the live index hook in sync with EnsureSortIndex/DeleteSortIndex.
type Collection struct {
	db    *DB
	name  string
	store *shard.Store
	hook  *liveHook
}

func (c *Collection) Insert(ctx context.Context, fields record.Fields) (*record.Record, error) {
	return c.store.Insert(ctx, fields)
}

// InsertAt is Insert with an explicit timestamp override (§4.1's
// insert(record, ts?)).
func (c *Collection) InsertAt(ctx context.Context, fields record.Fields, ts uint64) (*record.Record, error) {
	return c.store.InsertAt(ctx, fields, ts)
}

func (c *Collection) Get(ctx context.Context, id string) (*record.Record, bool, error) {
	return c.store.Get(ctx, id)
}

func (c *Collection) Update(ctx context.Context, id string, updates record.Fields, opts shard.WriteOptions) (*record.Record, bool, error) {
	return c.store.Update(ctx, id, updates, opts)
}

func (c *Collection) Replace(ctx context.Context, id string, fields record.Fields, opts shard.WriteOptions) (*record.Record, bool, error) {
	return c.store.Replace(ctx, id, fields, opts)
}

func (c *Collection) Delete(ctx context.Context, id string) (bool, error) {
	return c.store.Delete(ctx, id)
}

func (c *Collection) GetAll(ctx context.Context) ([]*record.Record, error) {
	return c.store.GetAll(ctx)
}

// GetAllPage returns one shard's worth of records at a time: the
// contents of the next non-empty shard at or after cursor, plus the
// cursor to resume from on the following call (nil once the scan has
// reached the end). Matches §4.1's getAll(cursor?) table entry.
func (c *Collection) GetAllPage(ctx context.Context, cursor *uint32) ([]*record.Record, *uint32, error) {
	start := uint32(0)
	if cursor != nil {
		start = *cursor
	}
	count := c.store.ShardCount()
	for shardID := start; shardID < count; shardID++ {
		records, err := c.store.ShardRecords(ctx, shardID)
		if err != nil {
			return nil, nil, err
		}
		if len(records) == 0 {
			continue
		}
		var next *uint32
		if shardID+1 < count {
			n := shardID + 1
			next = &n
		}
		return records, next, nil
	}
	return nil, nil, nil
}

func (c *Collection) IterateRecords(ctx context.Context, fn func(*record.Record) error) error {
	return c.store.IterateRecords(ctx, fn)
}

// EnsureSortIndex builds (or reopens) a sort index over this
// collection's field, in direction dir, and wires it into the live
// index hook so future mutations keep it current. If an index with the
// same (field, direction) already exists it's loaded instead of
// rebuilt. A page or key size left zero in opts takes the database
// config's value.
func (c *Collection) EnsureSortIndex(ctx context.Context, field string, dir sortindex.Direction, opts sortindex.Options) (*sortindex.Index, error) {
	entries, err := loadManifest(ctx, c.db.st, c.name)
	if err != nil {
		return nil, err
	}
	if opts.PageSize <= 0 {
		opts.PageSize = c.db.cfg.PageSize
	}
	if opts.KeySize <= 0 {
		opts.KeySize = c.db.cfg.KeySize
	}
	want := entryFromSpec(field, dir, opts)

	for _, e := range entries {
		if e.key() == want.key() {
			idx := sortindex.New(c.db.st, c.db.ids, c.name, field, dir, e.options())
			if _, err := idx.Load(ctx); err != nil {
				return nil, err
			}
			c.hook.add(want.key(), idx)
			return idx, nil
		}
	}

	buildOpts := sortindex.BuildOptions{
		BatchSize:       c.db.cfg.BatchSize,
		CheckpointEvery: c.db.cfg.CheckpointEvery,
	}
	idx, err := sortindex.Build(ctx, c.db.st, c.db.ids, c.store, c.name, field, dir, opts, buildOpts, c.db.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("bdb: build index %s.%s: %w", c.name, want.key(), err)
	}

	entries = append(entries, want)
	if err := saveManifest(ctx, c.db.st, c.name, entries); err != nil {
		return nil, err
	}
	c.hook.add(want.key(), idx)
	return idx, nil
}

// DeleteSortIndex removes a registered sort index and stops it from
// receiving future mutations.
func (c *Collection) DeleteSortIndex(ctx context.Context, field string, dir sortindex.Direction) error {
	entries, err := loadManifest(ctx, c.db.st, c.name)
	if err != nil {
		return err
	}
	target := entryFromSpec(field, dir, sortindex.Options{}).key()

	kept := entries[:0]
	found := false
	for _, e := range entries {
		if e.key() == target {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	if !found {
		return nil
	}

	idx := sortindex.New(c.db.st, c.db.ids, c.name, field, dir, sortindex.Options{})
	if err := idx.DeleteIndex(ctx); err != nil {
		return err
	}
	c.hook.remove(target)
	return saveManifest(ctx, c.db.st, c.name, kept)
}

// Drop deletes every registered sort index and all shard data for this
// collection.
func (c *Collection) Drop(ctx context.Context) error {
	entries, err := loadManifest(ctx, c.db.st, c.name)
	if err != nil {
		return err
	}
	for _, e := range entries {
		idx := sortindex.New(c.db.st, c.db.ids, c.name, e.Field, sortindex.Direction(e.Direction), sortindex.Options{})
		if err := idx.DeleteIndex(ctx); err != nil {
			return err
		}
	}
	if err := c.db.st.DeleteDir(ctx, "sort_indexes/"+c.name); err != nil {
		return err
	}
	if err := c.store.Drop(ctx); err != nil {
		return err
	}
	delete(c.db.collections, c.name)
	return nil
}
