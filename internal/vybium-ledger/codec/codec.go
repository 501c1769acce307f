// Package codec implements the little-endian wire format shared by every
// value that crosses a service boundary.
//
// Fields are concatenated in declared order. Optional fields carry a one-byte
// presence flag (0 absent, 1 present followed by the value); sequences carry a
// u32 count; byte strings carry a u32 length. Decoders never panic on hostile
// input: truncation, unknown flags and oversized counts all surface as
// errs.SerializationError.
package codec

import (
	"encoding/binary"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/core"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/errs"
)

// MaxSequenceLen caps decoded sequence counts and byte lengths.
const MaxSequenceLen = 1 << 16

const (
	flagAbsent  byte = 0
	flagPresent byte = 1
)

// Encoder is implemented by every wire type.
type Encoder interface {
	Encode(w *Writer) error
}

// Writer accumulates an encoding.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty writer.
func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 256)}
}

// Bytes returns the accumulated encoding.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// U8 appends one byte.
func (w *Writer) U8(v uint8) {
	w.buf = append(w.buf, v)
}

// U16 appends a little-endian u16.
func (w *Writer) U16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

// U32 appends a little-endian u32.
func (w *Writer) U32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

// U64 appends a little-endian u64.
func (w *Writer) U64(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

// Bool appends 0 or 1.
func (w *Writer) Bool(v bool) {
	if v {
		w.U8(1)
		return
	}
	w.U8(0)
}

// Raw appends b without a length prefix.
func (w *Writer) Raw(b []byte) {
	w.buf = append(w.buf, b...)
}

// VarBytes appends a length-prefixed byte string.
func (w *Writer) VarBytes(b []byte) error {
	if len(b) > MaxSequenceLen {
		return errs.Newf(errs.SerializationError, "byte string of %d bytes exceeds limit", len(b))
	}
	w.U32(uint32(len(b)))
	w.Raw(b)
	return nil
}

// String appends a length-prefixed UTF-8 string.
func (w *Writer) String(s string) error {
	return w.VarBytes([]byte(s))
}

// Element appends a canonical field element.
func (w *Writer) Element(e field.Element) {
	w.U64(e.Value())
}

// Digest appends a digest.
func (w *Writer) Digest(d core.Digest) {
	for _, e := range d {
		w.Element(e)
	}
}

// Len appends a sequence count.
func (w *Writer) Len(n int) error {
	if n > MaxSequenceLen {
		return errs.Newf(errs.SerializationError, "sequence of %d items exceeds limit", n)
	}
	w.U32(uint32(n))
	return nil
}

// Reader consumes an encoding.
type Reader struct {
	data []byte
	off  int
}

// NewReader returns a reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

func (r *Reader) take(n int, what string) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, errs.Newf(errs.SerializationError, "truncated %s at offset %d", what, r.off)
	}
	out := r.data[r.off : r.off+n]
	r.off += n
	return out, nil
}

// U8 reads one byte.
func (r *Reader) U8() (uint8, error) {
	b, err := r.take(1, "u8")
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// U16 reads a little-endian u16.
func (r *Reader) U16() (uint16, error) {
	b, err := r.take(2, "u16")
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// U32 reads a little-endian u32.
func (r *Reader) U32() (uint32, error) {
	b, err := r.take(4, "u32")
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// U64 reads a little-endian u64.
func (r *Reader) U64() (uint64, error) {
	b, err := r.take(8, "u64")
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Bool reads a strict 0/1 byte.
func (r *Reader) Bool() (bool, error) {
	v, err := r.U8()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, errs.Newf(errs.SerializationError, "invalid boolean byte %d", v)
	}
}

// Raw reads exactly n bytes. The returned slice is a copy.
func (r *Reader) Raw(n int) ([]byte, error) {
	b, err := r.take(n, "bytes")
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// VarBytes reads a length-prefixed byte string.
func (r *Reader) VarBytes() ([]byte, error) {
	n, err := r.Len()
	if err != nil {
		return nil, err
	}
	return r.Raw(n)
}

// String reads a length-prefixed string.
func (r *Reader) String() (string, error) {
	b, err := r.VarBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Element reads a canonical field element.
func (r *Reader) Element() (field.Element, error) {
	b, err := r.take(core.ElementSize, "field element")
	if err != nil {
		return field.Zero, err
	}
	e, err := core.ElementFromBytes(b)
	if err != nil {
		return field.Zero, errs.Wrap(errs.SerializationError, "field element", err)
	}
	return e, nil
}

// Digest reads a digest.
func (r *Reader) Digest() (core.Digest, error) {
	var d core.Digest
	for i := range d {
		e, err := r.Element()
		if err != nil {
			return d, err
		}
		d[i] = e
	}
	return d, nil
}

// Len reads a sequence count and rejects counts above MaxSequenceLen or
// counts that cannot possibly fit in the remaining input.
func (r *Reader) Len() (int, error) {
	n, err := r.U32()
	if err != nil {
		return 0, err
	}
	if n > MaxSequenceLen {
		return 0, errs.Newf(errs.SerializationError, "sequence count %d exceeds limit", n)
	}
	if int(n) > r.Remaining() {
		return 0, errs.Newf(errs.SerializationError, "sequence count %d exceeds remaining %d bytes", n, r.Remaining())
	}
	return int(n), nil
}

// Finish fails when unread bytes remain.
func (r *Reader) Finish() error {
	if r.Remaining() != 0 {
		return errs.Newf(errs.SerializationError, "%d trailing bytes", r.Remaining())
	}
	return nil
}

// WriteOption writes the presence flag and, when v is non-nil, the value.
func WriteOption[T any](w *Writer, v *T, enc func(*Writer, *T) error) error {
	if v == nil {
		w.U8(flagAbsent)
		return nil
	}
	w.U8(flagPresent)
	return enc(w, v)
}

// ReadOption reads a presence flag and, when set, decodes the value.
func ReadOption[T any](r *Reader, dec func(*Reader) (*T, error)) (*T, error) {
	flag, err := r.U8()
	if err != nil {
		return nil, err
	}
	switch flag {
	case flagAbsent:
		return nil, nil
	case flagPresent:
		return dec(r)
	default:
		return nil, errs.Newf(errs.SerializationError, "invalid option flag %d", flag)
	}
}

// WriteSlice writes a count followed by each item.
func WriteSlice[T any](w *Writer, items []T, enc func(*Writer, T) error) error {
	if err := w.Len(len(items)); err != nil {
		return err
	}
	for _, item := range items {
		if err := enc(w, item); err != nil {
			return err
		}
	}
	return nil
}

// ReadSlice reads a count followed by that many items.
func ReadSlice[T any](r *Reader, dec func(*Reader) (T, error)) ([]T, error) {
	n, err := r.Len()
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, n)
	for i := 0; i < n; i++ {
		item, err := dec(r)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// Marshal encodes e into a fresh buffer.
func Marshal(e Encoder) ([]byte, error) {
	w := NewWriter()
	if err := e.Encode(w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Unmarshal decodes data with dec and requires every byte to be consumed.
func Unmarshal[T any](data []byte, dec func(*Reader) (T, error)) (T, error) {
	r := NewReader(data)
	v, err := dec(r)
	if err != nil {
		var zero T
		return zero, err
	}
	if err := r.Finish(); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}
