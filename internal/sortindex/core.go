package sortindex

import (
	"context"
	"fmt"

	"github.com/javanhut/bdb/internal/bdberr"
	"github.com/javanhut/bdb/internal/record"
	"github.com/javanhut/bdb/internal/uuidgen"
)

// Persistence is the "save-leaf/save-tree/delete-leaf-file" policy a
// core engine is built against: an Index writes straight through to
// storage, a BatchIndex defers everything to an in-memory cache until
// Commit.
type Persistence interface {
	LoadTree(ctx context.Context) (treeSnapshot, bool, error)
	SaveTree(ctx context.Context, snap treeSnapshot) error
	LoadLeaf(ctx context.Context, pageID string) ([]Entry, bool, error)
	SaveLeaf(ctx context.Context, pageID string, entries []Entry) error
	DeleteLeafFile(ctx context.Context, pageID string) error
}

// RangeQuery bounds a findByRange scan. Min/Max are nil for an
// unbounded side.
type RangeQuery struct {
	Min, Max                   any
	MinInclusive, MaxInclusive bool
}

// Page is the result of getPage: one leaf's worth of entries plus the
// index-wide totals and the neighboring page ids.
type Page struct {
	Records        []Entry
	TotalRecords   int
	CurrentPageID  string
	TotalPages     int
	NextPageID     string
	PreviousPageID string
}

// core is the algorithmic body shared by Index and BatchIndex: the
// B+ tree descent, split, and traversal logic, parameterized over a
// Persistence policy so the two persistence models (immediate,
// deferred-to-commit) can share one implementation.
type core struct {
	persist   Persistence
	cmp       *Comparator
	ids       uuidgen.Generator
	pageSize  int
	keySize   int
	fieldName string

	nodes        map[string]*node
	parentOf     map[string]string
	rootID       string
	totalEntries int
	totalPages   int
	loaded       bool
}

func newCore(persist Persistence, cmp *Comparator, ids uuidgen.Generator, fieldName string, pageSize, keySize int) *core {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if keySize <= 0 {
		keySize = DefaultKeySize
	}
	return &core{
		persist:   persist,
		cmp:       cmp,
		ids:       ids,
		pageSize:  pageSize,
		keySize:   keySize,
		fieldName: fieldName,
	}
}

// DefaultPageSize is the default number of entries per leaf before a
// split is triggered.
const DefaultPageSize = 1000

// DefaultKeySize is the default number of separator keys per internal
// node before a split is triggered.
const DefaultKeySize = 100

func (n *node) clone() *node {
	out := &node{PageID: n.PageID, NextLeaf: n.NextLeaf, PrevLeaf: n.PrevLeaf}
	out.Keys = append(out.Keys, n.Keys...)
	out.Children = append(out.Children, n.Children...)
	return out
}

func indexOf(ss []string, v string) int {
	for i, s := range ss {
		if s == v {
			return i
		}
	}
	return -1
}

// load reads tree.dat via the persistence policy and reconstructs
// parent links by a root-down traversal. Returns false if no tree.dat
// exists yet.
func (c *core) load(ctx context.Context) (bool, error) {
	snap, ok, err := c.persist.LoadTree(ctx)
	if err != nil || !ok {
		return false, err
	}
	c.nodes = snap.Nodes
	c.rootID = snap.RootPageID
	c.totalEntries = snap.TotalEntries
	c.totalPages = snap.TotalPages
	if snap.FieldName != "" {
		c.fieldName = snap.FieldName
	}
	c.cmp.Direction = snap.Direction
	if snap.FieldType != "" {
		c.cmp.FieldType = snap.FieldType
	}
	c.parentOf = map[string]string{}
	if err := c.reconstructParents(); err != nil {
		return false, err
	}
	c.loaded = true
	return true, nil
}

func (c *core) reconstructParents() error {
	if c.rootID == "" {
		return nil
	}
	var walk func(id string) error
	walk = func(id string) error {
		n, ok := c.nodes[id]
		if !ok {
			return fmt.Errorf("sortindex: dangling node reference %q", id)
		}
		for _, child := range n.Children {
			c.parentOf[child] = id
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(c.rootID)
}

// initEmpty materializes a brand-new single-leaf-root tree in memory,
// without touching storage. The caller flushes it explicitly.
func (c *core) initEmpty() {
	rootID := c.ids.Generate()
	c.nodes = map[string]*node{rootID: {PageID: rootID}}
	c.parentOf = map[string]string{}
	c.rootID = rootID
	c.totalEntries = 0
	c.totalPages = 1
	c.loaded = true
}

func (c *core) snapshot() treeSnapshot {
	return treeSnapshot{
		FieldName:    c.fieldName,
		Direction:    c.cmp.Direction,
		FieldType:    c.cmp.FieldType,
		TotalEntries: c.totalEntries,
		TotalPages:   c.totalPages,
		RootPageID:   c.rootID,
		Nodes:        c.nodes,
	}
}

func (c *core) flushTree(ctx context.Context) error {
	return c.persist.SaveTree(ctx, c.snapshot())
}

// analyze reports the loaded tree's shape. Returns ErrIndexNotLoaded if
// load/build hasn't run yet, matching getPage/add/update/delete/findBy*.
func (c *core) analyze() (AnalyzeResult, error) {
	if !c.loaded {
		return AnalyzeResult{}, bdberr.ErrIndexNotLoaded
	}
	return AnalyzeResult{
		FieldName:    c.fieldName,
		Direction:    c.cmp.Direction,
		FieldType:    c.cmp.FieldType,
		TotalEntries: c.totalEntries,
		TotalPages:   c.totalPages,
		RootPageID:   c.rootID,
	}, nil
}

// descend walks from the root to the leaf that should contain value,
// returning the full root-to-leaf path (leaf last).
func (c *core) descend(ctx context.Context, value any) (leafID string, path []string, err error) {
	id := c.rootID
	for {
		path = append(path, id)
		n, ok := c.nodes[id]
		if !ok {
			return "", nil, fmt.Errorf("sortindex: missing node %q", id)
		}
		if n.isLeaf() {
			return id, path, nil
		}
		idx := 0
		for idx < len(n.Keys) {
			cmp, cerr := c.cmp.Compare(value, n.Keys[idx])
			if cerr != nil {
				return "", nil, cerr
			}
			if cmp < 0 {
				break
			}
			idx++
		}
		id = n.Children[idx]
	}
}

func (c *core) leftmostLeaf(ctx context.Context) (string, error) {
	id := c.rootID
	for {
		n, ok := c.nodes[id]
		if !ok {
			return "", fmt.Errorf("sortindex: missing node %q", id)
		}
		if n.isLeaf() {
			return id, nil
		}
		id = n.Children[0]
	}
}

func (c *core) pathTo(nodeID string) ([]string, error) {
	var path []string
	id := nodeID
	for {
		path = append(path, id)
		if id == c.rootID {
			break
		}
		parent, ok := c.parentOf[id]
		if !ok {
			return nil, fmt.Errorf("sortindex: no parent recorded for %q", id)
		}
		id = parent
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// getPage returns one leaf page, resolving an empty pageID to the
// leftmost leaf.
func (c *core) getPage(ctx context.Context, pageID string) (Page, error) {
	if !c.loaded {
		return Page{}, bdberr.ErrIndexNotLoaded
	}
	if pageID == "" {
		var err error
		pageID, err = c.leftmostLeaf(ctx)
		if err != nil {
			return Page{}, err
		}
	}
	n, ok := c.nodes[pageID]
	if !ok || !n.isLeaf() {
		return Page{}, fmt.Errorf("sortindex: unknown leaf page %q", pageID)
	}
	entries, _, err := c.persist.LoadLeaf(ctx, pageID)
	if err != nil {
		return Page{}, err
	}
	return Page{
		Records:        entries,
		TotalRecords:   c.totalEntries,
		CurrentPageID:  pageID,
		TotalPages:     c.totalPages,
		NextPageID:     n.NextLeaf,
		PreviousPageID: n.PrevLeaf,
	}, nil
}

func (c *core) findByValue(ctx context.Context, value any) ([]Entry, error) {
	if !c.loaded {
		return nil, bdberr.ErrIndexNotLoaded
	}
	leafID, _, err := c.descend(ctx, value)
	if err != nil {
		return nil, err
	}

	entries, _, err := c.persist.LoadLeaf(ctx, leafID)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range entries {
		cmp, err := c.cmp.Compare(e.Value, value)
		if err != nil {
			return nil, err
		}
		if cmp == 0 {
			out = append(out, e)
		}
	}

	prevID := c.nodes[leafID].PrevLeaf
	for prevID != "" {
		pe, _, err := c.persist.LoadLeaf(ctx, prevID)
		if err != nil {
			return nil, err
		}
		if len(pe) == 0 {
			break
		}
		cmp, err := c.cmp.Compare(pe[len(pe)-1].Value, value)
		if err != nil {
			return nil, err
		}
		if cmp != 0 {
			break
		}
		var matched []Entry
		for _, e := range pe {
			cmp, err := c.cmp.Compare(e.Value, value)
			if err != nil {
				return nil, err
			}
			if cmp == 0 {
				matched = append(matched, e)
			}
		}
		out = append(matched, out...)
		prevID = c.nodes[prevID].PrevLeaf
	}

	nextID := c.nodes[leafID].NextLeaf
	for nextID != "" {
		ne, _, err := c.persist.LoadLeaf(ctx, nextID)
		if err != nil {
			return nil, err
		}
		if len(ne) == 0 {
			break
		}
		cmp, err := c.cmp.Compare(ne[0].Value, value)
		if err != nil {
			return nil, err
		}
		if cmp != 0 {
			break
		}
		for _, e := range ne {
			cmp, err := c.cmp.Compare(e.Value, value)
			if err != nil {
				return nil, err
			}
			if cmp == 0 {
				out = append(out, e)
			}
		}
		nextID = c.nodes[nextID].NextLeaf
	}

	if len(out) == 0 {
		return c.scanAllForValue(ctx, value)
	}
	return out, nil
}

func (c *core) scanAllForValue(ctx context.Context, value any) ([]Entry, error) {
	leafID, err := c.leftmostLeaf(ctx)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for leafID != "" {
		entries, _, err := c.persist.LoadLeaf(ctx, leafID)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			cmp, err := c.cmp.Compare(e.Value, value)
			if err != nil {
				return nil, err
			}
			if cmp == 0 {
				out = append(out, e)
			}
		}
		leafID = c.nodes[leafID].NextLeaf
	}
	return out, nil
}

// findByRange walks the leaf chain collecting entries within [min,max].
// Bound checks always use ascending value order regardless of the
// index's own direction; early termination (skipping the tail of the
// chain once past max) only fires for ascending indexes, where chain
// order and value order coincide.
func (c *core) findByRange(ctx context.Context, q RangeQuery) ([]Entry, error) {
	if !c.loaded {
		return nil, bdberr.ErrIndexNotLoaded
	}
	boundCmp := NewComparator(c.cmp.FieldType, Asc)

	var leafID string
	var err error
	if q.Min != nil && c.cmp.Direction == Asc {
		leafID, _, err = c.descend(ctx, q.Min)
	} else {
		leafID, err = c.leftmostLeaf(ctx)
	}
	if err != nil {
		return nil, err
	}

	var out []Entry
	for leafID != "" {
		entries, _, err := c.persist.LoadLeaf(ctx, leafID)
		if err != nil {
			return nil, err
		}
		stop := false
		for _, e := range entries {
			if q.Min != nil {
				cmp, err := boundCmp.Compare(e.Value, q.Min)
				if err != nil {
					return nil, err
				}
				if cmp < 0 || (cmp == 0 && !q.MinInclusive) {
					continue
				}
			}
			if q.Max != nil {
				cmp, err := boundCmp.Compare(e.Value, q.Max)
				if err != nil {
					return nil, err
				}
				if cmp > 0 || (cmp == 0 && !q.MaxInclusive) {
					if c.cmp.Direction == Asc {
						stop = true
						break
					}
					continue
				}
			}
			out = append(out, e)
		}
		if stop {
			break
		}
		leafID = c.nodes[leafID].NextLeaf
	}
	return out, nil
}

func (c *core) add(ctx context.Context, rec *record.Record) error {
	if !c.loaded {
		return bdberr.ErrIndexNotLoaded
	}
	value, ok := rec.Fields[c.fieldName]
	if !ok {
		return nil
	}

	leafID, path, err := c.descend(ctx, value)
	if err != nil {
		return err
	}
	entries, _, err := c.persist.LoadLeaf(ctx, leafID)
	if err != nil {
		return err
	}

	entries = append(entries, Entry{ID: rec.ID, Value: value, Fields: record.CloneFields(rec.Fields)})
	sortEntries(entries, c.cmp)
	c.totalEntries++

	becameFirst := entries[0].ID == rec.ID

	if err := c.persist.SaveLeaf(ctx, leafID, entries); err != nil {
		return err
	}
	if becameFirst {
		if err := c.updateAncestorSeparator(path, entries[0].Value); err != nil {
			return err
		}
	}

	if len(entries) > int(float64(c.pageSize)*1.5) {
		if err := c.splitLeaf(ctx, leafID, path); err != nil {
			return err
		}
	}

	return c.flushTree(ctx)
}

func (c *core) update(ctx context.Context, newRec, oldRec *record.Record) error {
	if oldRec != nil {
		if err := c.delete(ctx, oldRec.ID, oldRec); err != nil {
			return err
		}
	}
	return c.add(ctx, newRec)
}

func (c *core) delete(ctx context.Context, id string, oldRec *record.Record) error {
	if !c.loaded {
		return bdberr.ErrIndexNotLoaded
	}
	value, ok := oldRec.Fields[c.fieldName]
	if !ok {
		return nil
	}

	leafID, path, err := c.descend(ctx, value)
	if err != nil {
		return err
	}
	entries, _, err := c.persist.LoadLeaf(ctx, leafID)
	if err != nil {
		return err
	}

	pos := indexOfEntry(entries, id)
	if pos == -1 {
		leafID, entries, pos, err = c.scanChainForID(ctx, id)
		if err != nil {
			return err
		}
		if pos == -1 {
			return nil
		}
		path, err = c.pathTo(leafID)
		if err != nil {
			return err
		}
	}

	wasFirst := pos == 0
	entries = append(entries[:pos], entries[pos+1:]...)
	c.totalEntries--

	if len(entries) == 0 && c.totalPages > 1 {
		if err := c.unlinkLeaf(leafID); err != nil {
			return err
		}
		if err := c.persist.DeleteLeafFile(ctx, leafID); err != nil {
			return err
		}
	} else {
		if err := c.persist.SaveLeaf(ctx, leafID, entries); err != nil {
			return err
		}
		if wasFirst && len(entries) > 0 {
			if err := c.updateAncestorSeparator(path, entries[0].Value); err != nil {
				return err
			}
		}
	}

	return c.flushTree(ctx)
}

func indexOfEntry(entries []Entry, id string) int {
	for i, e := range entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (c *core) scanChainForID(ctx context.Context, id string) (string, []Entry, int, error) {
	leafID, err := c.leftmostLeaf(ctx)
	if err != nil {
		return "", nil, -1, err
	}
	for leafID != "" {
		entries, _, err := c.persist.LoadLeaf(ctx, leafID)
		if err != nil {
			return "", nil, -1, err
		}
		if pos := indexOfEntry(entries, id); pos != -1 {
			return leafID, entries, pos, nil
		}
		leafID = c.nodes[leafID].NextLeaf
	}
	return "", nil, -1, nil
}

func (c *core) updateAncestorSeparator(path []string, newValue any) error {
	// path is root-to-leaf. Walk upward from the changed node's parent;
	// a node that is the leftmost (index 0) child of its parent has no
	// separator of its own to rewrite, so keep climbing until we find
	// an ancestor that isn't leftmost, or run out of path.
	for i := len(path) - 1; i > 0; i-- {
		childID := path[i]
		parentID := path[i-1]
		parent, ok := c.nodes[parentID]
		if !ok {
			return fmt.Errorf("sortindex: missing parent node %q", parentID)
		}
		pos := indexOf(parent.Children, childID)
		if pos <= 0 {
			continue
		}
		parent.Keys[pos-1] = newValue
		return nil
	}
	return nil
}

func (c *core) unlinkLeaf(leafID string) error {
	n, ok := c.nodes[leafID]
	if !ok {
		return fmt.Errorf("sortindex: missing leaf %q", leafID)
	}
	if n.PrevLeaf != "" {
		if p, ok := c.nodes[n.PrevLeaf]; ok {
			p.NextLeaf = n.NextLeaf
		}
	}
	if n.NextLeaf != "" {
		if nx, ok := c.nodes[n.NextLeaf]; ok {
			nx.PrevLeaf = n.PrevLeaf
		}
	}

	if parentID, ok := c.parentOf[leafID]; ok {
		parent := c.nodes[parentID]
		pos := indexOf(parent.Children, leafID)
		if pos >= 0 {
			parent.Children = append(parent.Children[:pos], parent.Children[pos+1:]...)
			switch {
			case pos > 0:
				parent.Keys = append(parent.Keys[:pos-1], parent.Keys[pos:]...)
			case len(parent.Keys) > 0:
				parent.Keys = parent.Keys[1:]
			}
		}
	}

	delete(c.nodes, leafID)
	delete(c.parentOf, leafID)
	c.totalPages--
	return nil
}

func (c *core) splitLeaf(ctx context.Context, leafID string, path []string) error {
	entries, _, err := c.persist.LoadLeaf(ctx, leafID)
	if err != nil {
		return err
	}
	sortEntries(entries, c.cmp)

	mid := len(entries) / 2
	leftEntries := append([]Entry{}, entries[:mid]...)
	rightEntries := append([]Entry{}, entries[mid:]...)

	rightID := c.ids.Generate()
	leftNode := c.nodes[leafID]
	oldNext := leftNode.NextLeaf

	rightNode := &node{PageID: rightID, PrevLeaf: leafID, NextLeaf: oldNext}
	leftNode.NextLeaf = rightID
	if oldNext != "" {
		if nx, ok := c.nodes[oldNext]; ok {
			nx.PrevLeaf = rightID
		}
	}
	c.nodes[rightID] = rightNode
	c.totalPages++

	if err := c.persist.SaveLeaf(ctx, leafID, leftEntries); err != nil {
		return err
	}
	if err := c.persist.SaveLeaf(ctx, rightID, rightEntries); err != nil {
		return err
	}

	sepKey := rightEntries[0].Value

	if len(path) == 1 {
		return c.newRoot(leafID, rightID, sepKey)
	}

	parentID := path[len(path)-2]
	return c.insertIntoParent(parentID, leafID, rightID, sepKey, path[:len(path)-1])
}

func (c *core) newRoot(leftID, rightID string, sepKey any) error {
	rootID := c.ids.Generate()
	c.nodes[rootID] = &node{PageID: rootID, Keys: []any{sepKey}, Children: []string{leftID, rightID}}
	c.rootID = rootID
	if c.parentOf == nil {
		c.parentOf = map[string]string{}
	}
	c.parentOf[leftID] = rootID
	c.parentOf[rightID] = rootID
	return nil
}

func (c *core) insertIntoParent(parentID, leftID, rightID string, sepKey any, pathToParent []string) error {
	parent, ok := c.nodes[parentID]
	if !ok {
		return fmt.Errorf("sortindex: missing parent node %q", parentID)
	}
	pos := indexOf(parent.Children, leftID)
	if pos < 0 {
		return fmt.Errorf("sortindex: parent %q does not reference child %q", parentID, leftID)
	}

	children := append([]string{}, parent.Children[:pos+1]...)
	children = append(children, rightID)
	children = append(children, parent.Children[pos+1:]...)

	keys := append([]any{}, parent.Keys[:pos]...)
	keys = append(keys, sepKey)
	keys = append(keys, parent.Keys[pos:]...)

	parent.Children = children
	parent.Keys = keys
	c.parentOf[rightID] = parentID

	if len(parent.Keys) > int(float64(c.keySize)*1.2) {
		return c.splitInternal(parentID, pathToParent)
	}
	return nil
}

func (c *core) splitInternal(nodeID string, path []string) error {
	n, ok := c.nodes[nodeID]
	if !ok {
		return fmt.Errorf("sortindex: missing node %q", nodeID)
	}
	mid := len(n.Keys) / 2
	promoted := n.Keys[mid]

	leftKeys := append([]any{}, n.Keys[:mid]...)
	rightKeys := append([]any{}, n.Keys[mid+1:]...)
	leftChildren := append([]string{}, n.Children[:mid+1]...)
	rightChildren := append([]string{}, n.Children[mid+1:]...)

	rightID := c.ids.Generate()
	rightNode := &node{PageID: rightID, Keys: rightKeys, Children: rightChildren}
	n.Keys = leftKeys
	n.Children = leftChildren
	c.nodes[rightID] = rightNode
	for _, child := range rightChildren {
		c.parentOf[child] = rightID
	}

	if len(path) == 1 {
		return c.newRoot(nodeID, rightID, promoted)
	}

	parentID := path[len(path)-2]
	return c.insertIntoParent(parentID, nodeID, rightID, promoted, path[:len(path)-1])
}
