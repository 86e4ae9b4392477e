package sortindex

import (
	"context"
	"fmt"

	"github.com/javanhut/bdb/internal/storage"
)

func treeFilePath(root string) string { return root + "/tree.dat" }
func leafFilePath(root, pageID string) string {
	return fmt.Sprintf("%s/%s.leaf", root, pageID)
}

// diskPersistence writes straight through to the storage port: the
// immediate-write policy backing Index.
type diskPersistence struct {
	st   storage.Store
	root string
}

func newDiskPersistence(st storage.Store, root string) *diskPersistence {
	return &diskPersistence{st: st, root: root}
}

func (p *diskPersistence) LoadTree(ctx context.Context) (treeSnapshot, bool, error) {
	return loadTreeFile(ctx, p.st, treeFilePath(p.root))
}

func (p *diskPersistence) SaveTree(ctx context.Context, snap treeSnapshot) error {
	return saveTreeFile(ctx, p.st, treeFilePath(p.root), snap)
}

func (p *diskPersistence) LoadLeaf(ctx context.Context, pageID string) ([]Entry, bool, error) {
	return loadLeafFile(ctx, p.st, leafFilePath(p.root, pageID))
}

func (p *diskPersistence) SaveLeaf(ctx context.Context, pageID string, entries []Entry) error {
	return saveLeafFile(ctx, p.st, leafFilePath(p.root, pageID), entries)
}

func (p *diskPersistence) DeleteLeafFile(ctx context.Context, pageID string) error {
	return p.st.DeleteFile(ctx, leafFilePath(p.root, pageID))
}

func (p *diskPersistence) deleteAll(ctx context.Context) error {
	return p.st.DeleteDir(ctx, p.root)
}

// batchPersistence redirects every write to four in-memory structures
// — a leaf cache, a dirty-leaves set, a deleted-leaves set, and a
// tree-changed flag — so a batch of mutations can be applied without
// touching storage until Commit.
type batchPersistence struct {
	disk *diskPersistence

	leafCache map[string][]Entry
	dirty     map[string]struct{}
	deleted   map[string]struct{}

	treeSnap    *treeSnapshot
	treeChanged bool
}

func newBatchPersistence(disk *diskPersistence) *batchPersistence {
	return &batchPersistence{
		disk:      disk,
		leafCache: map[string][]Entry{},
		dirty:     map[string]struct{}{},
		deleted:   map[string]struct{}{},
	}
}

func (p *batchPersistence) LoadTree(ctx context.Context) (treeSnapshot, bool, error) {
	if p.treeSnap != nil {
		return *p.treeSnap, true, nil
	}
	snap, ok, err := p.disk.LoadTree(ctx)
	if err != nil || !ok {
		return snap, ok, err
	}
	p.treeSnap = &snap
	return snap, true, nil
}

func (p *batchPersistence) SaveTree(ctx context.Context, snap treeSnapshot) error {
	p.treeSnap = &snap
	p.treeChanged = true
	return nil
}

func (p *batchPersistence) LoadLeaf(ctx context.Context, pageID string) ([]Entry, bool, error) {
	if _, gone := p.deleted[pageID]; gone {
		return nil, false, nil
	}
	if cached, ok := p.leafCache[pageID]; ok {
		return cached, true, nil
	}
	entries, ok, err := p.disk.LoadLeaf(ctx, pageID)
	if err != nil || !ok {
		return entries, ok, err
	}
	p.leafCache[pageID] = entries
	return entries, true, nil
}

func (p *batchPersistence) SaveLeaf(ctx context.Context, pageID string, entries []Entry) error {
	p.leafCache[pageID] = entries
	p.dirty[pageID] = struct{}{}
	delete(p.deleted, pageID)
	return nil
}

func (p *batchPersistence) DeleteLeafFile(ctx context.Context, pageID string) error {
	delete(p.leafCache, pageID)
	delete(p.dirty, pageID)
	p.deleted[pageID] = struct{}{}
	return nil
}

// commit writes every dirty leaf, writes the tree if changed, deletes
// every deleted leaf file, then clears all four structures.
func (p *batchPersistence) commit(ctx context.Context) error {
	for pageID := range p.dirty {
		if err := p.disk.SaveLeaf(ctx, pageID, p.leafCache[pageID]); err != nil {
			return err
		}
	}
	if p.treeChanged && p.treeSnap != nil {
		if err := p.disk.SaveTree(ctx, *p.treeSnap); err != nil {
			return err
		}
	}
	for pageID := range p.deleted {
		if err := p.disk.DeleteLeafFile(ctx, pageID); err != nil {
			return err
		}
	}

	p.leafCache = map[string][]Entry{}
	p.dirty = map[string]struct{}{}
	p.deleted = map[string]struct{}{}
	p.treeChanged = false
	return nil
}
