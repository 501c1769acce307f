package core

import (
	"encoding/binary"
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

// ElementSize is the canonical encoded size of a field element in bytes.
const ElementSize = 8

// bytesPerElement is the number of payload bytes packed into one element.
// Seven bytes always stay below the Goldilocks modulus.
const bytesPerElement = 7

// ElementToBytes encodes a field element as 8 little-endian bytes.
func ElementToBytes(e field.Element) []byte {
	out := make([]byte, ElementSize)
	binary.LittleEndian.PutUint64(out, e.Value())
	return out
}

// ElementFromBytes decodes a canonical field element. Values at or above the
// modulus are rejected so every element has exactly one encoding.
func ElementFromBytes(b []byte) (field.Element, error) {
	if len(b) != ElementSize {
		return field.Zero, fmt.Errorf("field element must be %d bytes, got %d", ElementSize, len(b))
	}
	v := binary.LittleEndian.Uint64(b)
	if v >= field.P {
		return field.Zero, fmt.Errorf("non-canonical field element %d", v)
	}
	return field.New(v), nil
}

// ElementFromUint64 converts v into a field element, failing when v does not
// fit below the modulus.
func ElementFromUint64(v uint64) (field.Element, error) {
	if v >= field.P {
		return field.Zero, fmt.Errorf("value %d exceeds field capacity", v)
	}
	return field.New(v), nil
}

// U64ToElements splits v into two 32-bit limbs (low, high). The mapping is
// injective over the whole u64 range, which a single element is not.
func U64ToElements(v uint64) []field.Element {
	return []field.Element{
		field.New(v & 0xffffffff),
		field.New(v >> 32),
	}
}

// BytesToElements packs b into field elements, 7 bytes per element, prefixed
// with the byte length so that distinct inputs never collide.
func BytesToElements(b []byte) []field.Element {
	out := make([]field.Element, 0, 1+(len(b)+bytesPerElement-1)/bytesPerElement)
	out = append(out, field.New(uint64(len(b))))
	for i := 0; i < len(b); i += bytesPerElement {
		end := i + bytesPerElement
		if end > len(b) {
			end = len(b)
		}
		var v uint64
		for j, c := range b[i:end] {
			v |= uint64(c) << (j * 8)
		}
		out = append(out, field.New(v))
	}
	return out
}

// BoolToElement maps false to zero and true to one.
func BoolToElement(b bool) field.Element {
	if b {
		return field.One
	}
	return field.Zero
}
