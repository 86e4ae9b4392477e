package sortindex

import (
	"context"

	"github.com/javanhut/bdb/internal/record"
	"github.com/javanhut/bdb/internal/storage"
	"github.com/javanhut/bdb/internal/uuidgen"
)

// BatchIndex is the deferred-write counterpart to Index: every mutation
// lands in an in-memory cache until Commit flushes it. Used by the
// index manager to amortize storage round-trips across many mutations
// applied to a collection in one pass.
type BatchIndex struct {
	core  *core
	batch *batchPersistence
}

// NewBatch opens a deferred-write index over the same
// (collection, field, direction) an Index would use.
func NewBatch(st storage.Store, ids uuidgen.Generator, collection, field string, dir Direction, opts Options) *BatchIndex {
	root := IndexRoot(collection, field, dir)
	disk := newDiskPersistence(st, root)
	batch := newBatchPersistence(disk)
	cmp := NewComparator(opts.FieldType, dir)
	return &BatchIndex{
		core:  newCore(batch, cmp, ids, field, opts.PageSize, opts.KeySize),
		batch: batch,
	}
}

// Load reads tree.dat (via the underlying disk persistence, caching
// the snapshot), returning false if the index has never been built.
func (b *BatchIndex) Load(ctx context.Context) (bool, error) {
	return b.core.load(ctx)
}

func (b *BatchIndex) Add(ctx context.Context, rec *record.Record) error {
	return b.core.add(ctx, rec)
}

func (b *BatchIndex) Update(ctx context.Context, newRec, oldRec *record.Record) error {
	return b.core.update(ctx, newRec, oldRec)
}

func (b *BatchIndex) Delete(ctx context.Context, id string, oldRec *record.Record) error {
	return b.core.delete(ctx, id, oldRec)
}

// Commit flushes every cached mutation to storage in one pass: dirty
// leaves, the tree (if changed), then deleted leaf files.
func (b *BatchIndex) Commit(ctx context.Context) error {
	return b.batch.commit(ctx)
}
