// Package bdb is the outer database object (§2 item 8): it enumerates
// collections under collections/ and lazily instantiates a shard.Store
// for each, wiring every collection's live index hook and handing out
// an indexmanager.Manager for batched mutation callers.
package bdb

import (
	"context"
	"fmt"
	"sort"

	"github.com/javanhut/bdb/internal/bdberr"
	"github.com/javanhut/bdb/internal/bdbconfig"
	"github.com/javanhut/bdb/internal/clock"
	"github.com/javanhut/bdb/internal/indexmanager"
	"github.com/javanhut/bdb/internal/record"
	"github.com/javanhut/bdb/internal/shard"
	"github.com/javanhut/bdb/internal/sortindex"
	"github.com/javanhut/bdb/internal/storage"
	"github.com/javanhut/bdb/internal/uuidgen"
)

const collectionsRoot = "collections"

// DB is a single BDB directory: a storage port plus the configuration
// (shard count, index page/key sizes, batch thresholds) every
// collection it opens is built with.
type DB struct {
	st          storage.Store
	cfg         *bdbconfig.Config
	clock       clock.Provider
	ids         uuidgen.Generator
	collections map[string]*Collection
}

// Open returns a DB backed by st, configured with cfg. cfg may be nil,
// in which case bdbconfig.DefaultConfig() is used.
func Open(st storage.Store, cfg *bdbconfig.Config) *DB {
	if cfg == nil {
		cfg = bdbconfig.DefaultConfig()
	}
	return &DB{
		st:          st,
		cfg:         cfg,
		clock:       clock.System{},
		ids:         uuidgen.System{},
		collections: map[string]*Collection{},
	}
}

// Collection returns the named collection, instantiating its
// shard.Store on first access and reloading any sort indexes it has a
// manifest entry for.
func (db *DB) Collection(ctx context.Context, name string) (*Collection, error) {
	if c, ok := db.collections[name]; ok {
		return c, nil
	}

	hook := newLiveHook()
	store := shard.New(db.st, collectionRoot(name), db.cfg.ShardCount, db.clock, db.ids, hook)
	c := &Collection{db: db, name: name, store: store, hook: hook}

	entries, err := loadManifest(ctx, db.st, name)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		idx := sortindex.New(db.st, db.ids, name, e.Field, sortindex.Direction(e.Direction), e.options())
		loaded, err := idx.Load(ctx)
		if err != nil {
			return nil, err
		}
		if loaded {
			hook.add(e.key(), idx)
		}
	}

	db.collections[name] = c
	return c, nil
}

func collectionRoot(name string) string {
	return fmt.Sprintf("%s/%s", collectionsRoot, name)
}

// ListCollections enumerates every collection directory under
// collections/, in lexical order.
func (db *DB) ListCollections(ctx context.Context) ([]string, error) {
	var names []string
	cursor := ""
	for {
		page, err := db.st.ListDirs(ctx, collectionsRoot, 1000, cursor)
		if err != nil {
			return nil, err
		}
		names = append(names, page.Names...)
		if page.Next == "" {
			break
		}
		cursor = page.Next
	}
	sort.Strings(names)
	return names, nil
}

// IndexManager returns an indexmanager.Manager wired to this DB's
// storage port, id generator, and collection index provider, for
// callers that want to amortize a batch of mutations across every
// registered index before a single commit.
func (db *DB) IndexManager() *indexmanager.Manager {
	return indexmanager.New(db.st, db.ids, dbIndexProvider{db})
}

// dbIndexProvider adapts DB's per-collection manifest to
// indexmanager.Provider's (collection) -> []IndexSpec shape.
type dbIndexProvider struct{ db *DB }

func (p dbIndexProvider) ListIndexes(collection string) ([]indexmanager.IndexSpec, error) {
	entries, err := loadManifest(context.Background(), p.db.st, collection)
	if err != nil {
		return nil, err
	}
	specs := make([]indexmanager.IndexSpec, len(entries))
	for i, e := range entries {
		specs[i] = indexmanager.IndexSpec{
			Field:     e.Field,
			Direction: sortindex.Direction(e.Direction),
			Options:   e.options(),
		}
	}
	return specs, nil
}

// Stats is read-only introspection over a collection's on-disk shape:
// record/shard counts and the page counts of every registered sort
// index. Not part of the distilled core spec; a supplemental feature
// (see SPEC_FULL.md) since any real deployment wants this for
// operational visibility.
type Stats struct {
	Collection     string
	ShardCount     uint32
	RecordCount    int
	NonEmptyShards int
	Indexes        []IndexStats
}

// IndexStats summarizes one registered sort index's size.
type IndexStats struct {
	Field        string
	Direction    string
	TotalEntries int
	TotalPages   int
}

// Stats computes Stats for the named collection. It loads every shard
// file once, so it is O(collection size) — intended for CLI/operator
// use, not a hot path.
func (db *DB) Stats(ctx context.Context, name string) (*Stats, error) {
	c, err := db.Collection(ctx, name)
	if err != nil {
		return nil, err
	}

	s := &Stats{Collection: name, ShardCount: c.store.ShardCount()}
	err = c.store.IterateShards(ctx, func(_ uint32, records map[string]*record.Record) error {
		s.NonEmptyShards++
		s.RecordCount += len(records)
		return nil
	})
	if err != nil {
		return nil, err
	}

	entries, err := loadManifest(ctx, db.st, name)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		idx, ok := c.hook.indexes[e.key()]
		if !ok {
			continue
		}
		a, err := idx.Analyze(ctx)
		if err != nil {
			return nil, err
		}
		s.Indexes = append(s.Indexes, IndexStats{
			Field:        e.Field,
			Direction:    e.Direction,
			TotalEntries: a.TotalEntries,
			TotalPages:   a.TotalPages,
		})
	}
	return s, nil
}

// FindByIndex resolves (field, direction) to the collection's loaded
// sort index, or returns bdberr.ErrIndexMissing. Supplemental (see
// SPEC_FULL.md): §7 names IndexMissing for exactly this lookup but the
// distilled spec never spells out the caller.
func (c *Collection) FindByIndex(field string, dir sortindex.Direction) (*sortindex.Index, error) {
	idx, ok := c.hook.indexes[field+"_"+string(dir)]
	if !ok {
		return nil, bdberr.ErrIndexMissing
	}
	return idx, nil
}
