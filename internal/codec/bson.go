package codec

import (
	"encoding/binary"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// EncodeBSON marshals v (typically a bson.M field or metadata tree)
// to its BSON wire bytes.
func EncodeBSON(v any) ([]byte, error) {
	b, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: bson encode: %w", err)
	}
	return b, nil
}

// DecodeBSON unmarshals BSON wire bytes into a bson.M.
func DecodeBSON(data []byte) (bson.M, error) {
	var m bson.M
	if err := bson.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("codec: bson decode: %w", err)
	}
	return m, nil
}

// WriteBSON appends a u32-length-prefixed BSON encoding of v.
func (w *Writer) WriteBSON(v any) error {
	b, err := EncodeBSON(v)
	if err != nil {
		return err
	}
	w.LenPrefixedBytes(b)
	return nil
}

// ReadBSON reads a u32-length-prefixed BSON blob into a bson.M.
func (r *Reader) ReadBSON() (bson.M, error) {
	b, err := r.LenPrefixedBytes()
	if err != nil {
		return nil, err
	}
	return DecodeBSON(b)
}

// WriteSelfDelimitedBSON appends a BSON encoding of v with no extra
// length prefix — a BSON document's own first four bytes are its
// total length, so the shard and leaf file layouts rely on that
// self-description instead of double-framing it.
func (w *Writer) WriteSelfDelimitedBSON(v any) error {
	b, err := EncodeBSON(v)
	if err != nil {
		return err
	}
	w.Raw(b)
	return nil
}

// ReadSelfDelimitedBSON reads one self-delimited BSON document: it
// peeks the little-endian int32 length every BSON document starts
// with, then consumes exactly that many bytes.
func (r *Reader) ReadSelfDelimitedBSON() (bson.M, error) {
	raw, err := r.peekSelfDelimitedBSON()
	if err != nil {
		return nil, err
	}
	return DecodeBSON(raw)
}

func (r *Reader) peekSelfDelimitedBSON() ([]byte, error) {
	if err := r.need(4); err != nil {
		return nil, err
	}
	docLen := binary.LittleEndian.Uint32(r.buf[r.pos : r.pos+4])
	if docLen < 4 {
		return nil, fmt.Errorf("codec: invalid bson document length %d", docLen)
	}
	return r.Raw(int(docLen))
}

// ReadSelfDelimitedBSONInto reads one self-delimited BSON document
// straight into a typed value T (a struct with bson tags), the same
// framing ReadSelfDelimitedBSON uses for bson.M.
func ReadSelfDelimitedBSONInto[T any](r *Reader) (T, error) {
	var out T
	raw, err := r.peekSelfDelimitedBSON()
	if err != nil {
		return out, err
	}
	if err := bson.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("codec: bson decode: %w", err)
	}
	return out, nil
}
