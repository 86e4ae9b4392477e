// Package record defines the internal record and metadata tree shapes
// (see the data model in SPEC_FULL.md) that every other core package
// operates on.
package record

import (
	"reflect"

	"go.mongodb.org/mongo-driver/bson"
)

// Fields is a schemaless field tree: string keys to scalars, nested
// Fields, arrays, or nil. Arrays are opaque leaves — the merge and
// update logic never descends into them.
type Fields = bson.M

// Meta mirrors a Fields tree's shape, carrying the last-modified
// timestamp of each leaf. A node with a non-nil Sub but zero Timestamp
// is purely structural (its own field was never written, but some
// descendant was).
type Meta struct {
	Timestamp uint64           `bson:"timestamp,omitempty"`
	Sub       map[string]*Meta `bson:"fields,omitempty"`
}

// Record is a record in internal form: a canonical-hex _id, a
// schemaless field tree, and a metadata tree shadowing it.
type Record struct {
	ID       string
	Fields   Fields
	Metadata *Meta
}

// CloneFields deep-copies a Fields tree. Arrays are copied by
// reference at the slice-header level (elements are never mutated in
// place by the merge/update logic, only replaced wholesale).
func CloneFields(f Fields) Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Fields:
		return CloneFields(t)
	case bson.M:
		return CloneFields(Fields(t))
	case map[string]any:
		return CloneFields(Fields(t))
	default:
		return v
	}
}

// CloneMeta deep-copies a Meta tree.
func CloneMeta(m *Meta) *Meta {
	if m == nil {
		return nil
	}
	out := &Meta{Timestamp: m.Timestamp}
	if m.Sub != nil {
		out.Sub = make(map[string]*Meta, len(m.Sub))
		for k, v := range m.Sub {
			out.Sub[k] = CloneMeta(v)
		}
	}
	return out
}

// Clone deep-copies a Record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	return &Record{
		ID:       r.ID,
		Fields:   CloneFields(r.Fields),
		Metadata: CloneMeta(r.Metadata),
	}
}

// asObject reports whether v is a nested field tree (as opposed to a
// scalar or array leaf), returning it normalized to Fields.
func asObject(v any) (Fields, bool) {
	switch t := v.(type) {
	case Fields:
		return t, true
	case bson.M:
		return Fields(t), true
	case map[string]any:
		return Fields(t), true
	default:
		return nil, false
	}
}

// AsObject exposes asObject for callers outside this package (the
// merge and fieldmerge packages need the same object-vs-leaf test).
func AsObject(v any) (Fields, bool) { return asObject(v) }

// DeepEqual reports whether two field-tree values are structurally
// equal, used by UpdateMetadata to skip stamping unchanged leaves.
func DeepEqual(a, b any) bool {
	return reflect.DeepEqual(normalizeForCompare(a), normalizeForCompare(b))
}

// normalizeForCompare collapses the several map shapes BSON decoding
// can hand back (bson.M, map[string]any) into a single comparable
// shape so DeepEqual isn't fooled by wrapper-type differences.
func normalizeForCompare(v any) any {
	if obj, ok := asObject(v); ok {
		out := make(map[string]any, len(obj))
		for k, val := range obj {
			out[k] = normalizeForCompare(val)
		}
		return out
	}
	if arr, ok := v.(bson.A); ok {
		out := make([]any, len(arr))
		for i, e := range arr {
			out[i] = normalizeForCompare(e)
		}
		return out
	}
	if arr, ok := v.([]any); ok {
		out := make([]any, len(arr))
		for i, e := range arr {
			out[i] = normalizeForCompare(e)
		}
		return out
	}
	return v
}
