package stark

import (
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/core"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/utils"
)

// Boundary pins a trace column to a value in the first row.
type Boundary struct {
	Column int
	Value  field.Element
}

// AIR is an algebraic intermediate representation: committed trace columns,
// public preprocessed columns, and transition constraints that every pair of
// consecutive rows satisfies except the last one.
type AIR interface {
	// Width is the number of committed trace columns.
	Width() int
	// Height is the number of rows, a power of two.
	Height() int
	// Preprocessed returns the public columns. The verifier rebuilds them
	// from the claim, so they are never committed.
	Preprocessed() [][]field.Element
	// NumConstraints is the number of transition constraints.
	NumConstraints() int
	// Degree bounds the total degree of every transition constraint in the
	// trace and preprocessed columns.
	Degree() int
	// Evaluate writes the transition constraint values for a row and its
	// successor into out. pre is the preprocessed row of cur.
	Evaluate(cur, next, pre, out []field.Element)
	// Boundary lists the first-row constraints.
	Boundary() []Boundary
}

// Claim is the public statement a proof is about.
type Claim struct {
	// Program identifies the AIR, usually a digest of its preprocessed
	// columns' shape.
	Program core.Digest
	// Input lists the public values the AIR was built from.
	Input []field.Element
	// Bindings are digests the proof is tied to without the AIR reading
	// them, such as a transition id and a state root.
	Bindings []core.Digest
}

func (c *Claim) absorb(ch *utils.Channel, p Parameters, air AIR) {
	ch.SendElements("params", p.Elements())
	ch.SendDigest("program", c.Program)
	ch.SendElements("input", c.Input)
	for _, b := range c.Bindings {
		ch.SendDigest("binding", b)
	}
	ch.SendElements("shape", []field.Element{
		field.New(uint64(air.Width())),
		field.New(uint64(air.Height())),
		field.New(uint64(air.NumConstraints())),
		field.New(uint64(len(air.Boundary()))),
	})
}
