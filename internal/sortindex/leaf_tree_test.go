package sortindex

import (
	"reflect"
	"testing"

	"github.com/javanhut/bdb/internal/record"
)

func TestLeafEncodeDecodeRoundTrip(t *testing.T) {
	entries := []Entry{
		{ID: "a", Value: int32(1), Fields: record.Fields{"score": int32(1), "name": "alice"}},
		{ID: "b", Value: int32(2), Fields: record.Fields{"score": int32(2), "name": "bob"}},
	}

	body, err := encodeLeaf(entries)
	if err != nil {
		t.Fatalf("encodeLeaf: %v", err)
	}
	got, err := decodeLeaf(body)
	if err != nil {
		t.Fatalf("decodeLeaf: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("got %d entries, want %d", len(got), len(entries))
	}
	for i := range entries {
		if got[i].ID != entries[i].ID {
			t.Fatalf("entry %d id = %q, want %q", i, got[i].ID, entries[i].ID)
		}
		if got[i].Fields["name"] != entries[i].Fields["name"] {
			t.Fatalf("entry %d name = %v, want %v", i, got[i].Fields["name"], entries[i].Fields["name"])
		}
	}
}

func TestTreeEncodeDecodeRoundTrip(t *testing.T) {
	snap := treeSnapshot{
		FieldName:    "score",
		Direction:    Asc,
		FieldType:    TypeNumber,
		TotalEntries: 42,
		TotalPages:   2,
		RootPageID:   "root",
		Nodes: map[string]*node{
			"root": {PageID: "root", Keys: []any{int32(50)}, Children: []string{"leaf1", "leaf2"}},
			"leaf1": {PageID: "leaf1", NextLeaf: "leaf2"},
			"leaf2": {PageID: "leaf2", PrevLeaf: "leaf1"},
		},
	}

	body, err := encodeTree(snap)
	if err != nil {
		t.Fatalf("encodeTree: %v", err)
	}
	got, err := decodeTreeV2(body)
	if err != nil {
		t.Fatalf("decodeTreeV2: %v", err)
	}

	if got.FieldName != snap.FieldName || got.Direction != snap.Direction || got.FieldType != snap.FieldType {
		t.Fatalf("header mismatch: %+v", got)
	}
	if got.TotalEntries != snap.TotalEntries || got.TotalPages != snap.TotalPages || got.RootPageID != snap.RootPageID {
		t.Fatalf("totals/root mismatch: %+v", got)
	}
	if len(got.Nodes) != len(snap.Nodes) {
		t.Fatalf("node count = %d, want %d", len(got.Nodes), len(snap.Nodes))
	}
	root := got.Nodes["root"]
	if root == nil || !reflect.DeepEqual(root.Children, []string{"leaf1", "leaf2"}) {
		t.Fatalf("root node mismatch: %+v", root)
	}
	if len(root.Keys) != 1 {
		t.Fatalf("expected 1 separator key, got %v", root.Keys)
	}
	leaf1 := got.Nodes["leaf1"]
	if leaf1 == nil || leaf1.NextLeaf != "leaf2" || !leaf1.isLeaf() {
		t.Fatalf("leaf1 mismatch: %+v", leaf1)
	}
}
