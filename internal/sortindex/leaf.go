package sortindex

import (
	"context"
	"sort"

	"github.com/javanhut/bdb/internal/bdberr"
	"github.com/javanhut/bdb/internal/codec"
	"github.com/javanhut/bdb/internal/record"
	"github.com/javanhut/bdb/internal/storage"
)

const leafFileVersion uint32 = 1

// Entry is one record's projection into a sort index's leaf: its id,
// the value the index is sorted on, and a cached copy of its full
// field tree (so getPage/findByValue/findByRange never re-touch the
// collection's shard files).
type Entry struct {
	ID     string
	Value  any
	Fields record.Fields
}

func encodeLeaf(entries []Entry) ([]byte, error) {
	w := codec.NewWriter()
	w.U32(uint32(len(entries)))
	for _, e := range entries {
		w.LenPrefixedString(e.ID)
		if err := w.WriteSelfDelimitedBSON(map[string]any{"value": e.Value}); err != nil {
			return nil, err
		}
		if err := w.WriteSelfDelimitedBSON(e.Fields); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

func decodeLeaf(body []byte) ([]Entry, error) {
	r := codec.NewReader(body)
	count, err := r.U32()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, count)
	for i := uint32(0); i < count; i++ {
		id, err := r.LenPrefixedString()
		if err != nil {
			return nil, err
		}
		wrapped, err := r.ReadSelfDelimitedBSON()
		if err != nil {
			return nil, err
		}
		fields, err := r.ReadSelfDelimitedBSON()
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{ID: id, Value: wrapped["value"], Fields: record.Fields(fields)})
	}
	return entries, nil
}

// legacyDecodeLeaf is the undocumented fallback path: the raw bytes
// (after the trailing 32-byte checksum has already been stripped by
// the framed-file reader) are parsed as a bare sequence of BSON
// documents with no recordCount prefix and no per-field id framing,
// one whole-record document per entry. Its exact historical shape is
// not specified; this is a best-effort decode and is not expected to
// succeed on most corrupt files.
func legacyDecodeLeaf(raw []byte) ([]Entry, error) {
	r := codec.NewReader(raw)
	var entries []Entry
	for r.Remaining() > 0 {
		doc, err := r.ReadSelfDelimitedBSON()
		if err != nil {
			return nil, err
		}
		id, _ := doc["_id"].(string)
		fields, _ := record.AsObject(doc["fields"])
		entries = append(entries, Entry{ID: id, Value: doc["value"], Fields: fields})
	}
	return entries, nil
}

var leafDecoders = codec.Decoders[[]Entry]{
	leafFileVersion: decodeLeaf,
}

func saveLeafFile(ctx context.Context, st storage.Store, path string, entries []Entry) error {
	body, err := encodeLeaf(entries)
	if err != nil {
		return err
	}
	return codec.Save(ctx, st, path, leafFileVersion, body)
}

func loadLeafFile(ctx context.Context, st storage.Store, path string) ([]Entry, bool, error) {
	return codec.Load(ctx, st, path, leafDecoders, legacyDecodeLeaf, bdberr.ErrCorruptIndex)
}

// sortEntries sorts entries in place by the comparator's ordering.
func sortEntries(entries []Entry, cmp *Comparator) {
	sort.SliceStable(entries, func(i, j int) bool {
		c, err := cmp.Compare(entries[i].Value, entries[j].Value)
		if err != nil {
			return false
		}
		return c < 0
	})
}
