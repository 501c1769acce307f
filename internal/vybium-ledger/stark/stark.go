// Package stark proves and verifies algebraic execution traces.
//
// A trace is a table of Goldilocks elements whose rows are linked by the
// transition constraints of an AIR. The prover interpolates every column,
// adds a random multiple of the trace zerofier for zero knowledge, commits to
// the low-degree extension, divides the combined constraints by their
// zerofiers, and shows with DEEP-FRI that the quotient and the trace are of
// low degree. Every challenge comes from a Fiat-Shamir channel that first
// absorbs the claim.
package stark

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/core"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/utils"
)

// Parameters configure the proof system.
type Parameters struct {
	// FRIExpansionFactor is the ratio between the FRI domain and the degree
	// bound. Must be a power of two.
	FRIExpansionFactor int

	// NumCollinearityChecks is the number of FRI queries.
	NumCollinearityChecks int

	// NumTraceRandomizers is the number of random coefficients added to each
	// trace column. It must exceed the number of points at which a column is
	// opened, which is two per query plus the two out-of-domain points.
	NumTraceRandomizers int

	// FinalDegree bounds the degree of the last FRI layer, which is sent in
	// the clear.
	FinalDegree int

	// HashFunction selects the channel hash.
	HashFunction string
}

// DefaultParameters returns the parameters used by the ledger.
func DefaultParameters() Parameters {
	return Parameters{
		FRIExpansionFactor:    4,
		NumCollinearityChecks: 40,
		NumTraceRandomizers:   2*40 + 2,
		FinalDegree:           8,
		HashFunction:          utils.HashSHA3,
	}
}

// Validate checks the parameters for consistency.
func (p Parameters) Validate() error {
	switch {
	case p.FRIExpansionFactor < 2 || !isPowerOfTwo(p.FRIExpansionFactor):
		return fmt.Errorf("FRI expansion factor must be a power of 2 >= 2, got %d", p.FRIExpansionFactor)
	case p.NumCollinearityChecks < 1:
		return fmt.Errorf("need at least one collinearity check")
	case p.NumTraceRandomizers < 2*p.NumCollinearityChecks+2:
		return fmt.Errorf("%d trace randomizers cannot hide %d openings", p.NumTraceRandomizers, 2*p.NumCollinearityChecks+2)
	case p.FinalDegree < 1 || !isPowerOfTwo(p.FinalDegree):
		return fmt.Errorf("final degree must be a power of 2, got %d", p.FinalDegree)
	}
	return nil
}

// Elements encodes the parameters for the transcript and for key digests.
func (p Parameters) Elements() []field.Element {
	elems := []field.Element{
		field.New(uint64(p.FRIExpansionFactor)),
		field.New(uint64(p.NumCollinearityChecks)),
		field.New(uint64(p.NumTraceRandomizers)),
		field.New(uint64(p.FinalDegree)),
	}
	return append(elems, core.BytesToElements([]byte(p.HashFunction))...)
}

// layout holds the sizes derived from the trace height and the AIR degree.
type layout struct {
	height      int // trace rows
	traceDegree int // exclusive bound on randomized column degree
	degree      int // FRI degree bound, a power of two
	fri         *ArithmeticDomain
	rounds      int // number of FRI folds
	finalDegree int
}

func newLayout(p Parameters, height, constraintDegree int) (*layout, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if height < 2 || !isPowerOfTwo(height) {
		return nil, fmt.Errorf("trace height must be a power of 2, got %d", height)
	}
	if constraintDegree < 1 {
		return nil, fmt.Errorf("constraint degree must be positive")
	}
	l := &layout{height: height, traceDegree: height + p.NumTraceRandomizers}
	// Transition numerators have degree at most constraintDegree*(traceDegree-1)+1
	// and are divided by a zerofier of degree height.
	quotient := constraintDegree*(l.traceDegree-1) + 1 - height
	bound := l.traceDegree
	if quotient+1 > bound {
		bound = quotient + 1
	}
	l.degree = nextPowerOfTwo(bound)
	fri, err := NewArithmeticDomain(l.degree * p.FRIExpansionFactor)
	if err != nil {
		return nil, err
	}
	l.fri = fri.WithOffset(field.Generator())
	l.finalDegree = l.degree
	for l.finalDegree > p.FinalDegree {
		l.finalDegree /= 2
		l.rounds++
	}
	return l, nil
}

func isPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	n++
	return n
}

func log2(n int) int {
	k := 0
	for n > 1 {
		n >>= 1
		k++
	}
	return k
}
