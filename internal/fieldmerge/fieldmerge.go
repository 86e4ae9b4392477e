// Package fieldmerge implements the field/metadata updater: pure
// functions producing a new field tree and a new metadata tree from an
// existing tree and an updates tree.
package fieldmerge

import "github.com/javanhut/bdb/internal/record"

// Deleted is the "undefined" sentinel: assigning Deleted to a key in an
// updates tree removes that key from the resulting field tree (and
// still stamps a metadata entry, recording the deletion's timestamp).
type Deleted struct{}

// Delete is the canonical Deleted value callers assign in an updates
// tree to mark a field for removal.
var Delete = Deleted{}

func isDelete(v any) bool {
	_, ok := v.(Deleted)
	return ok
}

// UpdateFields returns a new field tree produced by deep-merging
// updates into old. old is never mutated. Recurses when both sides of
// a key are nested objects; otherwise the update replaces the old
// value outright. Arrays are leaves — never descended into. If updates
// is empty, old is returned unchanged (satisfies UpdateFields(x, {})
// === x).
func UpdateFields(old record.Fields, updates record.Fields) record.Fields {
	if len(updates) == 0 {
		return old
	}

	out := record.CloneFields(old)
	if out == nil {
		out = record.Fields{}
	}

	for k, v := range updates {
		if isDelete(v) {
			delete(out, k)
			continue
		}

		newObj, newIsObj := record.AsObject(v)
		oldVal, hasOld := out[k]
		oldObj, oldIsObj := record.AsObject(oldVal)

		if hasOld && newIsObj && oldIsObj {
			out[k] = UpdateFields(oldObj, newObj)
			continue
		}
		out[k] = v
	}
	return out
}

func metaEmpty(m *record.Meta) bool {
	return m == nil || (m.Timestamp == 0 && len(m.Sub) == 0)
}

// UpdateMetadata returns a new metadata tree recording the timestamp
// of every leaf changed fields) by updates, given the field tree the
// update is being applied against (oldFields, pre-update) and the
// existing metadata tree (oldMeta, may be nil). If oldMeta's own
// timestamp is already >= ts, oldMeta is returned unchanged — metadata
// never regresses. Leaves whose new value is deep-equal to the
// existing field value are left unstamped. Existing metadata entries
// for keys not mentioned in updates are preserved verbatim.
func UpdateMetadata(oldFields record.Fields, updates record.Fields, oldMeta *record.Meta, ts uint64) *record.Meta {
	if oldMeta != nil && oldMeta.Timestamp >= ts {
		return oldMeta
	}
	if len(updates) == 0 {
		return record.CloneMeta(oldMeta)
	}

	newMeta := record.CloneMeta(oldMeta)
	if newMeta == nil {
		newMeta = &record.Meta{}
	}

	for k, v := range updates {
		if isDelete(v) {
			if newMeta.Sub == nil {
				newMeta.Sub = map[string]*record.Meta{}
			}
			newMeta.Sub[k] = &record.Meta{Timestamp: ts}
			continue
		}

		oldVal, hasOld := oldFields[k]
		if hasOld && record.DeepEqual(v, oldVal) {
			continue
		}

		if newObj, ok := record.AsObject(v); ok {
			oldObj, _ := record.AsObject(oldVal)
			var oldSub *record.Meta
			if newMeta.Sub != nil {
				oldSub = newMeta.Sub[k]
			}
			nested := UpdateMetadata(oldObj, newObj, oldSub, ts)
			if metaEmpty(nested) {
				if newMeta.Sub != nil {
					delete(newMeta.Sub, k)
				}
				continue
			}
			if newMeta.Sub == nil {
				newMeta.Sub = map[string]*record.Meta{}
			}
			newMeta.Sub[k] = nested
			continue
		}

		if newMeta.Sub == nil {
			newMeta.Sub = map[string]*record.Meta{}
		}
		newMeta.Sub[k] = &record.Meta{Timestamp: ts}
	}

	return newMeta
}
