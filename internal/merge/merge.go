// Package merge implements the last-write-wins reconciliation engine:
// two records sharing an id are merged field by field using per-field
// timestamp metadata, with a stale-tombstone cleanup pass.
package merge

import (
	"github.com/javanhut/bdb/internal/bdberr"
	"github.com/javanhut/bdb/internal/record"
)

// operand is one side of a field-level merge: its value (if present),
// the metadata node recorded for it (if any), and its effective
// timestamp once parent-default fallback has been applied.
type operand struct {
	value   any
	present bool
	meta    *record.Meta
	effTS   uint64
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

// mergeValues merges a single field's two operands under LWW rules: a
// missing side always loses to a present one; between two present
// primitive/array values the side with the strictly greater timestamp
// wins, ties breaking toward v2; between two present object values,
// MergeFields is invoked instead.
func mergeValues(a, b operand) (value any, present bool, meta *record.Meta) {
	aObj, aIsObj := record.AsObject(a.value)
	bObj, bIsObj := record.AsObject(b.value)

	if a.present && b.present && aIsObj && bIsObj {
		fields, m := mergeFieldsInner(aObj, bObj, a.meta, b.meta, a.effTS, b.effTS)
		return fields, true, m
	}

	if !a.present && !b.present {
		winner := a
		if b.effTS >= a.effTS {
			winner = b
		}
		if winner.meta != nil {
			return nil, false, winner.meta
		}
		return nil, false, &record.Meta{Timestamp: winner.effTS}
	}

	if !a.present {
		return b.value, true, &record.Meta{Timestamp: b.effTS}
	}
	if !b.present {
		return a.value, true, &record.Meta{Timestamp: a.effTS}
	}

	if a.effTS > b.effTS {
		return a.value, true, &record.Meta{Timestamp: a.effTS}
	}
	return b.value, true, &record.Meta{Timestamp: b.effTS}
}

// mergeFieldsInner merges two field trees given their shadowing
// metadata nodes and the timestamp each side's children fall back to
// when they carry no explicit stamp of their own.
func mergeFieldsInner(a, b record.Fields, aMeta, bMeta *record.Meta, aParentTS, bParentTS uint64) (record.Fields, *record.Meta) {
	keys := map[string]struct{}{}
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}
	if aMeta != nil {
		for k := range aMeta.Sub {
			keys[k] = struct{}{}
		}
	}
	if bMeta != nil {
		for k := range bMeta.Sub {
			keys[k] = struct{}{}
		}
	}

	outFields := record.Fields{}
	outSub := map[string]*record.Meta{}

	for k := range keys {
		aVal, aPresent := a[k]
		bVal, bPresent := b[k]

		var aSub, bSub *record.Meta
		if aMeta != nil {
			aSub = aMeta.Sub[k]
		}
		if bMeta != nil {
			bSub = bMeta.Sub[k]
		}

		aEff := aParentTS
		if aSub != nil {
			aEff = aSub.Timestamp
		}
		bEff := bParentTS
		if bSub != nil {
			bEff = bSub.Timestamp
		}

		val, present, m := mergeValues(
			operand{value: aVal, present: aPresent, meta: aSub, effTS: aEff},
			operand{value: bVal, present: bPresent, meta: bSub, effTS: bEff},
		)
		if present {
			outFields[k] = val
		}
		if m != nil {
			outSub[k] = m
		}
	}

	out := &record.Meta{Timestamp: min64(aParentTS, bParentTS)}
	if len(outSub) > 0 {
		out.Sub = outSub
	}
	return outFields, out
}

// MergeFields merges two field trees under LWW, given the metadata
// trees shadowing each and the root timestamp each falls back to. The
// returned metadata's root timestamp is min(aRootTS, bRootTS) — the
// conservative lower bound described in SPEC_FULL.md's open-question
// notes; per-field timestamps within it are exact.
func MergeFields(a, b record.Fields, aMeta, bMeta *record.Meta, aRootTS, bRootTS uint64) (record.Fields, *record.Meta) {
	return mergeFieldsInner(a, b, aMeta, bMeta, aRootTS, bRootTS)
}

func metaTimestamp(m *record.Meta) uint64 {
	if m == nil {
		return 0
	}
	return m.Timestamp
}

// MergeRecords reconciles two records sharing an id, producing a new
// record whose fields and metadata are the LWW merge, with stale
// metadata (timestamp <= 0) pruned. Returns ErrMergeIDMismatch if the
// ids differ.
func MergeRecords(r1, r2 *record.Record) (*record.Record, error) {
	if r1.ID != r2.ID {
		return nil, bdberr.ErrMergeIDMismatch
	}

	fields, meta := mergeFieldsInner(r1.Fields, r2.Fields, r1.Metadata, r2.Metadata, metaTimestamp(r1.Metadata), metaTimestamp(r2.Metadata))
	meta = CleanupMetadata(meta, 0)

	return &record.Record{ID: r1.ID, Fields: fields, Metadata: meta}, nil
}

// CleanupMetadata recursively prunes sub-trees whose own timestamp is
// <= cutoff and whose nested fields all pruned away, returning nil if
// the whole node becomes empty.
func CleanupMetadata(m *record.Meta, cutoff uint64) *record.Meta {
	if m == nil {
		return nil
	}

	var newSub map[string]*record.Meta
	for k, v := range m.Sub {
		if cleaned := CleanupMetadata(v, cutoff); cleaned != nil {
			if newSub == nil {
				newSub = map[string]*record.Meta{}
			}
			newSub[k] = cleaned
		}
	}

	if m.Timestamp <= cutoff && len(newSub) == 0 {
		return nil
	}

	out := &record.Meta{Timestamp: m.Timestamp}
	if len(newSub) > 0 {
		out.Sub = newSub
	}
	return out
}
