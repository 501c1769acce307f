package core

import (
	"encoding/hex"
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/hash"
)

// DigestSize is the encoded size of a digest in bytes.
const DigestSize = hash.DigestLen * ElementSize

// Digest is a Tip5 digest. Identifiers, commitments and roots are digests.
type Digest hash.Digest

// Elements returns the digest as a slice of field elements.
func (d Digest) Elements() []field.Element {
	out := make([]field.Element, len(d))
	copy(out, d[:])
	return out
}

// Bytes returns the canonical little-endian encoding of the digest.
func (d Digest) Bytes() []byte {
	out := make([]byte, 0, DigestSize)
	for _, e := range d {
		out = append(out, ElementToBytes(e)...)
	}
	return out
}

// String returns the digest as lowercase hex.
func (d Digest) String() string {
	return hex.EncodeToString(d.Bytes())
}

// IsZero reports whether every element of the digest is zero.
func (d Digest) IsZero() bool {
	for _, e := range d {
		if !e.IsZero() {
			return false
		}
	}
	return true
}

// Equal reports whether two digests are identical.
func (d Digest) Equal(other Digest) bool {
	for i := range d {
		if !d[i].Equal(other[i]) {
			return false
		}
	}
	return true
}

// DigestFromBytes decodes a canonical digest.
func DigestFromBytes(b []byte) (Digest, error) {
	var d Digest
	if len(b) != DigestSize {
		return d, fmt.Errorf("digest must be %d bytes, got %d", DigestSize, len(b))
	}
	for i := range d {
		e, err := ElementFromBytes(b[i*ElementSize : (i+1)*ElementSize])
		if err != nil {
			return d, fmt.Errorf("digest element %d: %w", i, err)
		}
		d[i] = e
	}
	return d, nil
}

// ParseDigest decodes the hex form produced by String.
func ParseDigest(s string) (Digest, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Digest{}, fmt.Errorf("invalid digest hex: %w", err)
	}
	return DigestFromBytes(raw)
}

// HashElements hashes elems under a domain separator using variable-length Tip5.
func HashElements(domain string, elems ...field.Element) Digest {
	input := BytesToElements([]byte(domain))
	input = append(input, elems...)
	return Digest(hash.HashVarlen(input))
}

// HashDigests hashes a sequence of digests under a domain separator.
func HashDigests(domain string, digests ...Digest) Digest {
	elems := make([]field.Element, 0, len(digests)*hash.DigestLen+1)
	elems = append(elems, field.New(uint64(len(digests))))
	for _, d := range digests {
		elems = append(elems, d[:]...)
	}
	return HashElements(domain, elems...)
}
