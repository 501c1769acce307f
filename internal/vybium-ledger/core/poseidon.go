package core

import (
	"sync"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/hash"
)

// Poseidon over Goldilocks with an x^7 S-box. Record commitments, tags, nonces
// and the transcript commitment use it because every round is a low-degree
// transition that the VM can prove one row at a time.
const (
	PoseidonWidth         = 12
	PoseidonRate          = 8
	PoseidonFullRounds    = 8
	PoseidonPartialRounds = 22
	PoseidonRounds        = PoseidonFullRounds + PoseidonPartialRounds
	PoseidonSboxDegree    = 7
)

// PoseidonState is the full permutation state.
type PoseidonState [PoseidonWidth]field.Element

var (
	poseidonOnce sync.Once
	poseidonRC   [PoseidonRounds]PoseidonState
	poseidonMDS  [PoseidonWidth][PoseidonWidth]field.Element
)

func poseidonParams() {
	poseidonOnce.Do(func() {
		lfsr := hash.NewGrainLFSR(&hash.PoseidonParameters{
			SecurityLevel: 128,
			FieldSize:     64,
			Width:         PoseidonWidth,
			Rate:          PoseidonRate,
			RoundsFull:    PoseidonFullRounds,
			RoundsPartial: PoseidonPartialRounds,
			SboxPower:     PoseidonSboxDegree,
		})
		for r := range poseidonRC {
			for i := range poseidonRC[r] {
				poseidonRC[r][i] = lfsr.NextFieldElement()
			}
		}
		// Cauchy matrix 1/(x_i + y_j) with x = 0..11 and y = 12..23.
		for i := range poseidonMDS {
			for j := range poseidonMDS[i] {
				poseidonMDS[i][j] = field.New(uint64(i + j + PoseidonWidth)).Inverse()
			}
		}
	})
}

// PoseidonRoundConstants returns the constants added at the start of round r.
func PoseidonRoundConstants(r int) PoseidonState {
	poseidonParams()
	return poseidonRC[r]
}

// PoseidonMDS returns entry (i, j) of the mixing matrix.
func PoseidonMDS(i, j int) field.Element {
	poseidonParams()
	return poseidonMDS[i][j]
}

// PoseidonFullRound reports whether round r applies the S-box to every lane.
func PoseidonFullRound(r int) bool {
	half := PoseidonFullRounds / 2
	return r < half || r >= half+PoseidonPartialRounds
}

// PoseidonSbox computes x^7.
func PoseidonSbox(x field.Element) field.Element {
	x2 := x.Square()
	x4 := x2.Square()
	return x4.Mul(x2).Mul(x)
}

// PoseidonRound applies round r to s.
func PoseidonRound(s PoseidonState, r int) PoseidonState {
	poseidonParams()
	var t PoseidonState
	for i := range s {
		t[i] = s[i].Add(poseidonRC[r][i])
	}
	if PoseidonFullRound(r) {
		for i := range t {
			t[i] = PoseidonSbox(t[i])
		}
	} else {
		t[0] = PoseidonSbox(t[0])
	}
	var out PoseidonState
	for i := range out {
		acc := field.Zero
		for j := range t {
			acc = acc.Add(poseidonMDS[i][j].Mul(t[j]))
		}
		out[i] = acc
	}
	return out
}

// PoseidonPermute applies all rounds.
func PoseidonPermute(s PoseidonState) PoseidonState {
	for r := 0; r < PoseidonRounds; r++ {
		s = PoseidonRound(s, r)
	}
	return s
}

// Sponge is a Poseidon sponge over whole blocks. Squeezing reads the state
// without permuting, so a sponge can keep absorbing after a squeeze.
type Sponge struct {
	state PoseidonState
}

// NewSponge returns a sponge in the all-zero state.
func NewSponge() *Sponge {
	return &Sponge{}
}

// SpongeFromState resumes a sponge at s.
func SpongeFromState(s PoseidonState) *Sponge {
	return &Sponge{state: s}
}

// State returns the current permutation state.
func (s *Sponge) State() PoseidonState {
	return s.state
}

// AbsorbBlock adds block to the rate lanes and permutes.
func (s *Sponge) AbsorbBlock(block [PoseidonRate]field.Element) {
	for i, e := range block {
		s.state[i] = s.state[i].Add(e)
	}
	s.state = PoseidonPermute(s.state)
}

// Absorb absorbs elems block by block, zero padding the last block.
func (s *Sponge) Absorb(elems []field.Element) {
	for len(elems) > 0 {
		var block [PoseidonRate]field.Element
		n := copy(block[:], elems)
		s.AbsorbBlock(block)
		elems = elems[n:]
	}
}

// Squeeze reads a digest from the first lanes.
func (s *Sponge) Squeeze() Digest {
	var d Digest
	copy(d[:], s.state[:len(d)])
	return d
}

var domainElements sync.Map

// DomainElement maps a domain separator to a single field element.
func DomainElement(domain string) field.Element {
	if v, ok := domainElements.Load(domain); ok {
		return v.(field.Element)
	}
	e := HashElements(domain)[0]
	domainElements.Store(domain, e)
	return e
}

// PoseidonFrame returns the sponge input for hashing elems under domain: the
// domain element, the element count, then elems.
func PoseidonFrame(domain string, elems ...field.Element) []field.Element {
	in := make([]field.Element, 0, 2+len(elems))
	in = append(in, DomainElement(domain), field.New(uint64(len(elems))))
	return append(in, elems...)
}

// PoseidonHash hashes elems under a domain separator.
func PoseidonHash(domain string, elems ...field.Element) Digest {
	sp := NewSponge()
	sp.Absorb(PoseidonFrame(domain, elems...))
	return sp.Squeeze()
}
