// Package account holds signing keys and addresses.
//
// A PrivateKey is a 32-byte seed. Everything else is derived from it with
// HKDF-SHA256 under fixed info strings: the ed25519 signing key that
// authorizes requests, the view seed that feeds transcript view keys, and the
// tag seed that feeds record serial numbers.
package account

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"io"
	"strings"

	"github.com/mr-tron/base58/base58"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"golang.org/x/crypto/hkdf"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/core"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/errs"
)

const (
	// SeedSize is the size of a private key seed.
	SeedSize = 32
	// AddressSize is the size of an address.
	AddressSize = ed25519.PublicKeySize
	// SignatureSize is the size of a request signature.
	SignatureSize = ed25519.SignatureSize

	privateKeyPrefix = "VPrivateKey1"
	addressPrefix    = "vy1"

	hkdfInfoSigning = "vybium/account/signing/v1"
	hkdfInfoView    = "vybium/account/view/v1"
	hkdfInfoTag     = "vybium/account/tag/v1"
)

// PrivateKey is the signing authority of an account.
type PrivateKey struct {
	seed    [SeedSize]byte
	signing ed25519.PrivateKey
	view    [32]byte
	tag     [32]byte
	address Address
}

// NewPrivateKey samples a fresh seed from rng.
func NewPrivateKey(rng io.Reader) (*PrivateKey, error) {
	var seed [SeedSize]byte
	if _, err := io.ReadFull(rng, seed[:]); err != nil {
		return nil, fmt.Errorf("sample seed: %w", err)
	}
	return PrivateKeyFromSeedBytes(seed)
}

// PrivateKeyFromSeedBytes derives the full key material from seed.
func PrivateKeyFromSeedBytes(seed [SeedSize]byte) (*PrivateKey, error) {
	signingSeed, err := hkdfExpand(seed[:], hkdfInfoSigning, ed25519.SeedSize)
	if err != nil {
		return nil, err
	}
	viewSeed, err := hkdfExpand(seed[:], hkdfInfoView, 32)
	if err != nil {
		return nil, err
	}
	tagSeed, err := hkdfExpand(seed[:], hkdfInfoTag, 32)
	if err != nil {
		return nil, err
	}

	k := &PrivateKey{seed: seed, signing: ed25519.NewKeyFromSeed(signingSeed)}
	copy(k.view[:], viewSeed)
	copy(k.tag[:], tagSeed)
	copy(k.address[:], k.signing.Public().(ed25519.PublicKey))
	return k, nil
}

// ParsePrivateKey parses the string form produced by String.
func ParsePrivateKey(s string) (*PrivateKey, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, privateKeyPrefix) {
		return nil, errs.Newf(errs.ParseError, "private key must start with %q", privateKeyPrefix)
	}
	raw, err := base58.Decode(s[len(privateKeyPrefix):])
	if err != nil {
		return nil, errs.Wrap(errs.ParseError, "private key encoding", err)
	}
	if len(raw) != SeedSize {
		return nil, errs.Newf(errs.ParseError, "private key must decode to %d bytes, got %d", SeedSize, len(raw))
	}
	var seed [SeedSize]byte
	copy(seed[:], raw)
	return PrivateKeyFromSeedBytes(seed)
}

// String returns the base58 form of the seed. Never log it.
func (k *PrivateKey) String() string {
	return privateKeyPrefix + base58.Encode(k.seed[:])
}

// Seed returns a copy of the seed.
func (k *PrivateKey) Seed() [SeedSize]byte {
	return k.seed
}

// Address returns the account address.
func (k *PrivateKey) Address() Address {
	return k.address
}

// Sign signs message with the account's ed25519 key.
func (k *PrivateKey) Sign(message []byte) []byte {
	return ed25519.Sign(k.signing, message)
}

// ViewElements returns the view seed as field elements.
func (k *PrivateKey) ViewElements() []field.Element {
	return core.BytesToElements(k.view[:])
}

// TagElements returns the tag seed as field elements.
func (k *PrivateKey) TagElements() []field.Element {
	return core.BytesToElements(k.tag[:])
}

// Equal reports whether two keys share a seed.
func (k *PrivateKey) Equal(other *PrivateKey) bool {
	if k == nil || other == nil {
		return k == other
	}
	return k.seed == other.seed
}

// Address identifies an account on the ledger.
type Address [AddressSize]byte

// ParseAddress parses the string form produced by String.
func ParseAddress(s string) (Address, error) {
	var a Address
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, addressPrefix) {
		return a, errs.Newf(errs.ParseError, "address must start with %q", addressPrefix)
	}
	raw, err := base58.Decode(s[len(addressPrefix):])
	if err != nil {
		return a, errs.Wrap(errs.ParseError, "address encoding", err)
	}
	if len(raw) != AddressSize {
		return a, errs.Newf(errs.ParseError, "address must decode to %d bytes, got %d", AddressSize, len(raw))
	}
	copy(a[:], raw)
	return a, nil
}

// String returns the base58 form of the address.
func (a Address) String() string {
	return addressPrefix + base58.Encode(a[:])
}

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Elements returns the address as field elements.
func (a Address) Elements() []field.Element {
	return core.BytesToElements(a[:])
}

// Verify checks an ed25519 signature made by this address.
func (a Address) Verify(message, signature []byte) bool {
	if len(signature) != SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(a[:]), message, signature)
}

func hkdfExpand(seed []byte, info string, outLen int) ([]byte, error) {
	reader := hkdf.New(sha256.New, seed, nil, []byte(info))
	out := make([]byte, outLen)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, err
	}
	return out, nil
}
