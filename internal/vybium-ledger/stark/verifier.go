package stark

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/polynomial"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/utils"
)

// Verify checks proof against air and claim. Every rejection wraps
// ErrInvalidProof.
func Verify(p Parameters, air AIR, claim *Claim, proof *Proof) error {
	if err := verify(p, air, claim, proof); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	return nil
}

func verify(p Parameters, air AIR, claim *Claim, proof *Proof) error {
	l, err := newLayout(p, air.Height(), air.Degree())
	if err != nil {
		return err
	}
	if err := checkShape(air); err != nil {
		return err
	}
	width := air.Width()
	committed := l.rounds - 1
	if committed < 0 {
		committed = 0
	}
	switch {
	case len(proof.OOD.Current) != width || len(proof.OOD.Next) != width:
		return fmt.Errorf("out-of-domain rows must have %d values", width)
	case len(proof.LayerRoots) != committed:
		return fmt.Errorf("got %d FRI layer roots, want %d", len(proof.LayerRoots), committed)
	case len(proof.FinalPoly) != l.finalDegree:
		return fmt.Errorf("final polynomial has %d coefficients, want %d", len(proof.FinalPoly), l.finalDegree)
	case len(proof.Queries) != p.NumCollinearityChecks:
		return fmt.Errorf("got %d queries, want %d", len(proof.Queries), p.NumCollinearityChecks)
	}

	ch := utils.NewChannel(p.HashFunction)
	claim.absorb(ch, p, air)
	ch.SendDigest("trace", proof.TraceRoot)
	weights := draw(ch, air.NumConstraints()+len(air.Boundary()))
	ch.SendDigest("quotient", proof.QuotientRoot)

	h, err := NewArithmeticDomain(l.height)
	if err != nil {
		return err
	}
	z := sampleOOD(ch, l)
	wz := z.Mul(h.Generator)

	pre := air.Preprocessed()
	preZ := make([]field.Element, len(pre))
	for c, col := range pre {
		preZ[c] = polynomial.New(h.Interpolate(col)).Evaluate(z)
	}
	out := make([]field.Element, air.NumConstraints())
	air.Evaluate(proof.OOD.Current, proof.OOD.Next, preZ, out)
	lastRow := h.Generator.ModPow(uint64(l.height - 1))
	invZH := z.ModPow(uint64(l.height)).Sub(field.One).Inverse()
	invFirst := z.Sub(field.One).Inverse()
	expected := composeQuotient(weights, out, proof.OOD.Current, air.Boundary(), z, lastRow, invZH, invFirst)
	if !expected.Equal(proof.OOD.Quotient) {
		return fmt.Errorf("out-of-domain quotient does not match the constraints")
	}
	ch.SendElements("ood", proof.OOD.elements())

	beta := draw(ch, width)
	gamma := draw(ch, width)
	delta := ch.ReceiveElement()

	alphas := make([]field.Element, l.rounds)
	for i := range alphas {
		alphas[i] = ch.ReceiveElement()
		if i+1 < l.rounds {
			ch.SendDigest("fri", proof.LayerRoots[i])
		}
	}
	ch.SendElements("final", proof.FinalPoly)
	final := polynomial.New(proof.FinalPoly)

	half := l.fri.Length / 2
	for k, q := range proof.Queries {
		idx := ch.ReceiveIndex(half)
		if err := verifyQuery(l, q, idx, proof, final, alphas, beta, gamma, delta, z, wz, width); err != nil {
			return fmt.Errorf("query %d: %w", k, err)
		}
	}
	return nil
}

func verifyQuery(l *layout, q Query, idx int, proof *Proof, final *polynomial.Polynomial, alphas, beta, gamma []field.Element, delta, z, wz field.Element, width int) error {
	half := l.fri.Length / 2
	if len(q.Trace[0]) != width || len(q.Trace[1]) != width {
		return fmt.Errorf("trace opening must have %d values per row", width)
	}
	if err := checkOpening(proof.TraceRoot, half, idx, q.Trace[0], q.Trace[1], q.TracePath); err != nil {
		return fmt.Errorf("trace: %w", err)
	}
	if err := checkOpening(proof.QuotientRoot, half, idx, q.Quotient[:1], q.Quotient[1:], q.QuotientPath); err != nil {
		return fmt.Errorf("quotient: %w", err)
	}
	if len(q.Layers) != len(proof.LayerRoots) {
		return fmt.Errorf("got %d layer openings, want %d", len(q.Layers), len(proof.LayerRoots))
	}

	x := l.fri.Element(idx)
	var vals [2]field.Element
	for side, pt := range []field.Element{x, x.Neg()} {
		vals[side] = deepValue(beta, gamma, delta, &proof.OOD, q.Trace[side], q.Quotient[side],
			pt.Sub(z).Inverse(), pt.Sub(wz).Inverse())
	}

	domain := l.fri
	if l.rounds == 0 {
		if !final.Evaluate(x).Equal(vals[0]) || !final.Evaluate(x.Neg()).Equal(vals[1]) {
			return fmt.Errorf("final polynomial disagrees with the first layer")
		}
		return nil
	}
	size := half
	for i, alpha := range alphas {
		folded := fold(vals[0], vals[1], domain.Element(idx), alpha)
		domain = domain.Halve()
		if i+1 == l.rounds {
			if !final.Evaluate(domain.Element(idx)).Equal(folded) {
				return fmt.Errorf("final polynomial disagrees with layer %d", i+1)
			}
			break
		}
		size /= 2
		leaf := idx % size
		op := q.Layers[i]
		if err := checkOpening(proof.LayerRoots[i], size, leaf, op.Values[:1], op.Values[1:], op.Path); err != nil {
			return fmt.Errorf("layer %d: %w", i+1, err)
		}
		side := 0
		if idx >= size {
			side = 1
		}
		if !op.Values[side].Equal(folded) {
			return fmt.Errorf("layer %d is not a fold of layer %d", i+1, i)
		}
		vals, idx = op.Values, leaf
	}
	return nil
}
