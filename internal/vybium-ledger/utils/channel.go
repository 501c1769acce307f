package utils

import (
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/core"
)

// Hash functions a Channel can run on.
const (
	HashSHA3    = "sha3"
	HashSHA256  = "sha256"
	HashBlake2b = "blake2b"
)

// Channel is a Fiat-Shamir transcript. Prover and verifier feed it the same
// messages in the same order and draw the same challenges.
type Channel struct {
	state    []byte
	hashFunc string
}

// NewChannel creates a channel. An empty hashFunc selects sha3.
func NewChannel(hashFunc string) *Channel {
	if hashFunc == "" {
		hashFunc = HashSHA3
	}
	return &Channel{
		state:    []byte{0},
		hashFunc: hashFunc,
	}
}

// Send absorbs data into the transcript.
func (c *Channel) Send(data []byte) {
	c.state = c.hash(append(c.state, data...))
}

// SendLabeled absorbs a label followed by data, so that equal payloads under
// different labels yield different states.
func (c *Channel) SendLabeled(label string, data []byte) {
	msg := make([]byte, 0, len(label)+1+len(data))
	msg = append(msg, label...)
	msg = append(msg, 0)
	c.Send(append(msg, data...))
}

// SendDigest absorbs a digest under label.
func (c *Channel) SendDigest(label string, d core.Digest) {
	c.SendLabeled(label, d.Bytes())
}

// SendElements absorbs field elements under label.
func (c *Channel) SendElements(label string, elems []field.Element) {
	buf := make([]byte, 0, len(elems)*core.ElementSize)
	for _, e := range elems {
		buf = append(buf, core.ElementToBytes(e)...)
	}
	c.SendLabeled(label, buf)
}

// ReceiveRandomInt draws an integer in [min, max]. It returns nil if
// min > max.
func (c *Channel) ReceiveRandomInt(min, max *big.Int) *big.Int {
	if min.Cmp(max) > 0 {
		return nil
	}
	stateAsInt := new(big.Int).SetBytes(c.state)
	rangeSize := new(big.Int).Sub(max, min)
	rangeSize.Add(rangeSize, big.NewInt(1))

	random := new(big.Int).Mod(stateAsInt, rangeSize)
	random.Add(random, min)

	c.state = c.hash(c.state)
	return random
}

// ReceiveIndex draws an index in [0, n). n must be positive.
func (c *Channel) ReceiveIndex(n int) int {
	if n <= 0 {
		panic(fmt.Sprintf("utils: ReceiveIndex(%d)", n))
	}
	return int(c.ReceiveRandomInt(big.NewInt(0), big.NewInt(int64(n-1))).Int64())
}

// ReceiveElement draws a Goldilocks field element.
func (c *Channel) ReceiveElement() field.Element {
	max := new(big.Int).SetUint64(field.P - 1)
	return field.New(c.ReceiveRandomInt(big.NewInt(0), max).Uint64())
}

func (c *Channel) hash(data []byte) []byte {
	switch c.hashFunc {
	case HashSHA256:
		h := sha256.Sum256(data)
		return h[:]
	case HashBlake2b:
		h := blake2b.Sum256(data)
		return h[:]
	default:
		h := sha3.Sum256(data)
		return h[:]
	}
}
