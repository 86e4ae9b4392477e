// Package uuidgen provides the UUID-generator external collaborator
// (see the storage port spec) and the canonical/raw id helpers shared
// by the shard store.
package uuidgen

import (
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
	"github.com/javanhut/bdb/internal/bdberr"
)

// Generator produces canonical v4 hyphenated UUID strings.
type Generator interface {
	Generate() string
}

// System is the production Generator, backed by google/uuid.
type System struct{}

// Generate returns a fresh canonical v4 UUID, e.g.
// "12345678-1234-1234-1234-123456789012".
func (System) Generate() string {
	return uuid.New().String()
}

// Normalize strips hyphens and lowercases id, then validates that the
// result decodes to exactly 16 raw bytes. Normalize deliberately
// skips UUID-version/variant validation (historical malformed ids must
// still round-trip) but does enforce the 16-byte length.
func Normalize(id string) (string, error) {
	stripped := strings.ToLower(strings.ReplaceAll(id, "-", ""))
	raw, err := hex.DecodeString(stripped)
	if err != nil || len(raw) != 16 {
		return "", bdberr.ErrInvalidUUID
	}
	return stripped, nil
}

// Raw decodes a normalized (unhyphenated, lowercase) id into its 16 raw
// bytes.
func Raw(normalized string) ([16]byte, error) {
	var out [16]byte
	b, err := hex.DecodeString(normalized)
	if err != nil || len(b) != 16 {
		return out, bdberr.ErrInvalidUUID
	}
	copy(out[:], b)
	return out, nil
}

// Canonical formats a normalized 32-hex-char id into the 8-4-4-4-12
// hyphenated form.
func Canonical(normalized string) string {
	if len(normalized) != 32 {
		return normalized
	}
	return strings.Join([]string{
		normalized[0:8],
		normalized[8:12],
		normalized[12:16],
		normalized[16:20],
		normalized[20:32],
	}, "-")
}
