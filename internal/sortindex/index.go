package sortindex

import (
	"context"
	"fmt"

	"github.com/javanhut/bdb/internal/record"
	"github.com/javanhut/bdb/internal/storage"
	"github.com/javanhut/bdb/internal/uuidgen"
)

// Options configures a sort index at creation time.
type Options struct {
	FieldType FieldType // empty infers from the first value seen
	PageSize  int       // default DefaultPageSize
	KeySize   int        // default DefaultKeySize
}

// Index is a persistent, immediate-write B+ tree sort index over one
// (collection, field, direction).
type Index struct {
	core *core
	disk *diskPersistence
	dir  Direction
}

// IndexRoot returns the directory a (collection, field, direction)
// index lives under.
func IndexRoot(collection, field string, dir Direction) string {
	return fmt.Sprintf("sort_indexes/%s/%s_%s", collection, field, dir)
}

// New opens (without loading) a sort index over collection's field, in
// the given direction.
func New(st storage.Store, ids uuidgen.Generator, collection, field string, dir Direction, opts Options) *Index {
	root := IndexRoot(collection, field, dir)
	disk := newDiskPersistence(st, root)
	cmp := NewComparator(opts.FieldType, dir)
	return &Index{
		core: newCore(disk, cmp, ids, field, opts.PageSize, opts.KeySize),
		disk: disk,
		dir:  dir,
	}
}

// Load reads tree.dat, returning false if the index has never been
// built.
func (idx *Index) Load(ctx context.Context) (bool, error) {
	return idx.core.load(ctx)
}

// EnsureLoaded loads the index if a tree.dat exists, or materializes a
// fresh empty one and persists it immediately otherwise.
func (idx *Index) EnsureLoaded(ctx context.Context) error {
	ok, err := idx.core.load(ctx)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	idx.core.initEmpty()
	return idx.core.flushTree(ctx)
}

func (idx *Index) GetPage(ctx context.Context, pageID string) (Page, error) {
	return idx.core.getPage(ctx, pageID)
}

func (idx *Index) FindByValue(ctx context.Context, value any) ([]Entry, error) {
	return idx.core.findByValue(ctx, value)
}

func (idx *Index) FindByRange(ctx context.Context, q RangeQuery) ([]Entry, error) {
	return idx.core.findByRange(ctx, q)
}

func (idx *Index) Add(ctx context.Context, rec *record.Record) error {
	return idx.core.add(ctx, rec)
}

func (idx *Index) Update(ctx context.Context, newRec, oldRec *record.Record) error {
	return idx.core.update(ctx, newRec, oldRec)
}

func (idx *Index) Delete(ctx context.Context, id string, oldRec *record.Record) error {
	return idx.core.delete(ctx, id, oldRec)
}

// DeleteIndex removes the whole index directory.
func (idx *Index) DeleteIndex(ctx context.Context) error {
	return idx.disk.deleteAll(ctx)
}

// TotalEntries and TotalPages expose the index's running totals
// directly, without the not-loaded check Analyze makes.
func (idx *Index) TotalEntries() int { return idx.core.totalEntries }
func (idx *Index) TotalPages() int   { return idx.core.totalPages }

// Analyze reports the loaded index's shape: total entries, total leaf
// pages, field name/direction/type, and the root page id. Returns
// ErrIndexNotLoaded if the index hasn't been Load'd/Build'd yet, per
// §7's IndexNotLoaded error kind.
func (idx *Index) Analyze(ctx context.Context) (AnalyzeResult, error) {
	return idx.core.analyze()
}

// AnalyzeResult is the shape Analyze reports.
type AnalyzeResult struct {
	FieldName    string
	Direction    Direction
	FieldType    FieldType
	TotalEntries int
	TotalPages   int
	RootPageID   string
}
