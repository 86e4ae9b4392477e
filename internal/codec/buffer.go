// Package codec implements the primitive byte-buffer readers/writers
// and the framed-file format ([version][body][checksum]) that every
// shard, tree, and leaf file is built on.
package codec

import (
	"encoding/binary"
	"fmt"
)

// Writer accumulates a byte buffer with little-endian primitive and
// length-prefixed writers, mirroring the hand-rolled encoders the
// corpus uses for its own binary page/pack formats.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// U8 appends a single byte.
func (w *Writer) U8(v uint8) { w.buf = append(w.buf, v) }

// U32 appends a little-endian uint32.
func (w *Writer) U32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// U64 appends a little-endian uint64.
func (w *Writer) U64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// LenPrefixedBytes appends a u32 length prefix followed by raw bytes.
func (w *Writer) LenPrefixedBytes(v []byte) {
	w.U32(uint32(len(v)))
	w.buf = append(w.buf, v...)
}

// LenPrefixedString appends a u32 length prefix followed by the UTF-8
// encoding of s.
func (w *Writer) LenPrefixedString(s string) {
	w.LenPrefixedBytes([]byte(s))
}

// Raw appends data verbatim with no length prefix.
func (w *Writer) Raw(data []byte) {
	w.buf = append(w.buf, data...)
}

// Reader consumes a byte buffer with the same primitive layout Writer
// produces, returning an error instead of panicking on truncation.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential reads.
func NewReader(buf []byte) *Reader { return &Reader{buf: buf} }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

func (r *Reader) need(n int) error {
	if r.Remaining() < n {
		return fmt.Errorf("codec: short read: need %d bytes, have %d", n, r.Remaining())
	}
	return nil
}

// U8 reads a single byte.
func (r *Reader) U8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

// U32 reads a little-endian uint32.
func (r *Reader) U32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

// U64 reads a little-endian uint64.
func (r *Reader) U64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

// LenPrefixedBytes reads a u32 length prefix followed by that many raw
// bytes.
func (r *Reader) LenPrefixedBytes() ([]byte, error) {
	n, err := r.U32()
	if err != nil {
		return nil, err
	}
	if err := r.need(int(n)); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.buf[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return out, nil
}

// LenPrefixedString reads a u32-length-prefixed UTF-8 string.
func (r *Reader) LenPrefixedString() (string, error) {
	b, err := r.LenPrefixedBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Raw reads exactly n raw bytes with no length prefix.
func (r *Reader) Raw(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.buf[r.pos:r.pos+n])
	r.pos += n
	return out, nil
}
