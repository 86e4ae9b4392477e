// Package bdberr defines the sentinel error kinds surfaced by the BDB
// core so callers can branch on kind with errors.Is instead of matching
// strings.
package bdberr

import "errors"

var (
	// ErrInvalidUUID is returned when a record id is not 16 raw bytes
	// once hyphens are stripped.
	ErrInvalidUUID = errors.New("bdb: invalid uuid")

	// ErrDuplicateInsert is returned by insert when the id already
	// exists in its target shard.
	ErrDuplicateInsert = errors.New("bdb: duplicate insert")

	// ErrIndexNotLoaded is returned by any sort-index operation invoked
	// before Load or Build has completed.
	ErrIndexNotLoaded = errors.New("bdb: index not loaded")

	// ErrIndexMissing is returned when looking up an index by
	// (field, direction) that has never been created.
	ErrIndexMissing = errors.New("bdb: index missing")

	// ErrTypeMismatch is returned when the comparator encounters
	// incompatible value types and no explicit type was configured.
	ErrTypeMismatch = errors.New("bdb: comparator type mismatch")

	// ErrMergeIDMismatch is returned by MergeRecords when the two
	// records carry different ids.
	ErrMergeIDMismatch = errors.New("bdb: merge id mismatch")

	// ErrCorruptShard is returned when a shard file is truncated, its
	// checksum does not validate, or its body does not decode. Shard
	// files have no legacy fallback.
	ErrCorruptShard = errors.New("bdb: corrupt shard file")

	// ErrCorruptIndex is returned when a tree or leaf file is truncated,
	// its checksum does not validate, or its body does not decode. Only
	// leaf files get the legacy fallback on a checksum mismatch; this
	// error follows if that fallback also fails to parse.
	ErrCorruptIndex = errors.New("bdb: corrupt index file")
)
