package codec

import (
	"bytes"
	"context"
	"fmt"

	"github.com/javanhut/bdb/internal/storage"
	"lukechampine.com/blake3"
)

// checksumSize is the width of the trailing digest on every framed
// file: version+body hashed with blake3.Sum256, which produces exactly
// the 32 bytes the wire format calls for.
const checksumSize = 32

// Save frames body as [u32 version][body][32-byte checksum] and writes
// it to path. New files always write the current version; the caller
// picks it.
func Save(ctx context.Context, store storage.Store, path string, version uint32, body []byte) error {
	w := NewWriter()
	w.U32(version)
	w.Raw(body)
	sum := blake3.Sum256(w.Bytes())
	w.Raw(sum[:])
	return store.Write(ctx, path, "application/octet-stream", w.Bytes())
}

// Decoders maps a file version to the function that decodes its body
// into T.
type Decoders[T any] map[uint32]func(body []byte) (T, error)

// Load reads path, validates its checksum, and dispatches to the
// decoder registered for the embedded version. If the checksum does
// not validate and legacyDecode is non-nil, it is given the last
// 32 bytes stripped off (the undocumented legacy format — see
// DESIGN.md) as a last resort before corruptErr is returned. Load
// returns (zero, false, nil) if the file does not exist.
func Load[T any](
	ctx context.Context,
	store storage.Store,
	path string,
	decoders Decoders[T],
	legacyDecode func(raw []byte) (T, error),
	corruptErr error,
) (T, bool, error) {
	var zero T

	data, err := store.Read(ctx, path)
	if err != nil {
		return zero, false, err
	}
	if data == nil {
		return zero, false, nil
	}
	if len(data) < 4+checksumSize {
		return zero, false, fmt.Errorf("%w: %s: truncated file (%d bytes)", corruptErr, path, len(data))
	}

	versionAndBody := data[:len(data)-checksumSize]
	wantSum := data[len(data)-checksumSize:]
	gotSum := blake3.Sum256(versionAndBody)

	if !bytes.Equal(gotSum[:], wantSum) {
		if legacyDecode != nil {
			if v, lerr := legacyDecode(versionAndBody); lerr == nil {
				return v, true, nil
			}
		}
		return zero, false, fmt.Errorf("%w: %s: checksum mismatch", corruptErr, path)
	}

	r := NewReader(versionAndBody)
	version, err := r.U32()
	if err != nil {
		return zero, false, fmt.Errorf("%w: %s: %v", corruptErr, path, err)
	}

	decode, ok := decoders[version]
	if !ok {
		return zero, false, fmt.Errorf("%w: %s: unsupported version %d", corruptErr, path, version)
	}

	body := versionAndBody[4:]
	v, err := decode(body)
	if err != nil {
		return zero, false, fmt.Errorf("%w: %s: %v", corruptErr, path, err)
	}
	return v, true, nil
}
