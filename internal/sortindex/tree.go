package sortindex

import (
	"context"
	"sort"

	"github.com/javanhut/bdb/internal/bdberr"
	"github.com/javanhut/bdb/internal/codec"
	"github.com/javanhut/bdb/internal/storage"
	"go.mongodb.org/mongo-driver/bson"
)

const treeFileVersion uint32 = 2

// node is one page of the tree: a leaf (Children empty, NextLeaf/
// PrevLeaf meaningful) or an internal node (Children non-empty, Keys
// holds len(Children)-1 separator keys, NextLeaf/PrevLeaf unused).
type node struct {
	PageID   string
	Keys     []any
	Children []string
	NextLeaf string
	PrevLeaf string
}

func (n *node) isLeaf() bool { return len(n.Children) == 0 }

// treeSnapshot is the full decoded contents of tree.dat.
type treeSnapshot struct {
	FieldName    string
	Direction    Direction
	FieldType    FieldType
	TotalEntries int
	TotalPages   int
	RootPageID   string
	Nodes        map[string]*node
}

func encodeTree(snap treeSnapshot) ([]byte, error) {
	w := codec.NewWriter()
	w.LenPrefixedString(snap.FieldName)
	w.LenPrefixedString(string(snap.Direction))
	w.LenPrefixedString(string(snap.FieldType))
	w.U64(0) // reserved timestamp
	w.U32(uint32(snap.TotalEntries))
	w.U32(uint32(snap.TotalPages))
	w.LenPrefixedString(snap.RootPageID)

	ids := make([]string, 0, len(snap.Nodes))
	for id := range snap.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	w.U32(uint32(len(ids)))
	for _, id := range ids {
		n := snap.Nodes[id]
		w.LenPrefixedString(n.PageID)
		if err := w.WriteBSON(map[string]any{"keys": n.Keys}); err != nil {
			return nil, err
		}
		w.U32(uint32(len(n.Children)))
		for _, child := range n.Children {
			w.LenPrefixedString(child)
		}
		w.LenPrefixedString(n.NextLeaf)
		w.LenPrefixedString(n.PrevLeaf)
	}
	return w.Bytes(), nil
}

func decodeTreeV2(body []byte) (treeSnapshot, error) {
	r := codec.NewReader(body)
	var snap treeSnapshot

	fieldName, err := r.LenPrefixedString()
	if err != nil {
		return snap, err
	}
	direction, err := r.LenPrefixedString()
	if err != nil {
		return snap, err
	}
	fieldType, err := r.LenPrefixedString()
	if err != nil {
		return snap, err
	}
	if _, err := r.U64(); err != nil { // reserved timestamp
		return snap, err
	}
	totalEntries, err := r.U32()
	if err != nil {
		return snap, err
	}
	totalPages, err := r.U32()
	if err != nil {
		return snap, err
	}
	rootPageID, err := r.LenPrefixedString()
	if err != nil {
		return snap, err
	}
	nodeCount, err := r.U32()
	if err != nil {
		return snap, err
	}

	nodes := make(map[string]*node, nodeCount)
	for i := uint32(0); i < nodeCount; i++ {
		pageID, err := r.LenPrefixedString()
		if err != nil {
			return snap, err
		}
		keysDoc, err := r.ReadBSON()
		if err != nil {
			return snap, err
		}
		keysRaw, _ := keysDoc["keys"].(bson.A)
		keys := make([]any, len(keysRaw))
		copy(keys, keysRaw)

		childCount, err := r.U32()
		if err != nil {
			return snap, err
		}
		children := make([]string, childCount)
		for j := uint32(0); j < childCount; j++ {
			children[j], err = r.LenPrefixedString()
			if err != nil {
				return snap, err
			}
		}
		nextLeaf, err := r.LenPrefixedString()
		if err != nil {
			return snap, err
		}
		prevLeaf, err := r.LenPrefixedString()
		if err != nil {
			return snap, err
		}

		nodes[pageID] = &node{
			PageID:   pageID,
			Keys:     keys,
			Children: children,
			NextLeaf: nextLeaf,
			PrevLeaf: prevLeaf,
		}
	}

	snap = treeSnapshot{
		FieldName:    fieldName,
		Direction:    Direction(direction),
		FieldType:    FieldType(fieldType),
		TotalEntries: int(totalEntries),
		TotalPages:   int(totalPages),
		RootPageID:   rootPageID,
		Nodes:        nodes,
	}
	return snap, nil
}

var treeDecoders = codec.Decoders[treeSnapshot]{
	treeFileVersion: decodeTreeV2,
}

func saveTreeFile(ctx context.Context, st storage.Store, path string, snap treeSnapshot) error {
	body, err := encodeTree(snap)
	if err != nil {
		return err
	}
	return codec.Save(ctx, st, path, treeFileVersion, body)
}

func loadTreeFile(ctx context.Context, st storage.Store, path string) (treeSnapshot, bool, error) {
	return codec.Load(ctx, st, path, treeDecoders, nil, bdberr.ErrCorruptIndex)
}
